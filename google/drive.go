// ABOUTME: Google Drive file listing and search
// ABOUTME: Returns trimmed file descriptors for linking study material
package google

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"

	"github.com/harperreed/schoolsync/models"
)

const (
	defaultDrivePageSize = 10
	searchPageSize       = 20
	driveFileFields      = "id, name, mimeType, webViewLink, webContentLink, thumbnailLink, size, modifiedTime"
)

type Drive struct {
	service *drive.Service
}

func NewDrive(ctx context.Context, opts ...option.ClientOption) (*Drive, error) {
	service, err := drive.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create drive service: %w", err)
	}
	return &Drive{service: service}, nil
}

func (d *Drive) ListFiles(ctx context.Context, query string, pageSize int64) ([]models.DriveFile, error) {
	if pageSize <= 0 {
		pageSize = defaultDrivePageSize
	}
	call := d.service.Files.List().
		PageSize(pageSize).
		Fields("files(" + driveFileFields + ")").
		Context(ctx)
	if query != "" {
		call = call.Q(query)
	}

	resp, err := call.Do()
	if err != nil {
		return nil, fmt.Errorf("failed to list drive files: %w", err)
	}
	files := make([]models.DriveFile, 0, len(resp.Files))
	for _, f := range resp.Files {
		files = append(files, toDriveFile(f))
	}
	return files, nil
}

func (d *Drive) GetFile(ctx context.Context, fileID string) (*models.DriveFile, error) {
	f, err := d.service.Files.Get(fileID).Fields(driveFileFields).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to get drive file %s: %w", fileID, err)
	}
	file := toDriveFile(f)
	return &file, nil
}

// SearchFilesByName finds non-trashed files whose name contains name.
func (d *Drive) SearchFilesByName(ctx context.Context, name string) ([]models.DriveFile, error) {
	return d.ListFiles(ctx, searchQuery(name), searchPageSize)
}

func searchQuery(name string) string {
	escaped := strings.NewReplacer(`\`, `\\`, `'`, `\'`).Replace(name)
	return fmt.Sprintf("name contains '%s' and trashed = false", escaped)
}

func toDriveFile(f *drive.File) models.DriveFile {
	return models.DriveFile{
		ID:             f.Id,
		Name:           f.Name,
		MimeType:       f.MimeType,
		WebViewLink:    f.WebViewLink,
		WebContentLink: f.WebContentLink,
		ThumbnailLink:  f.ThumbnailLink,
		Size:           f.Size,
		ModifiedTime:   f.ModifiedTime,
	}
}
