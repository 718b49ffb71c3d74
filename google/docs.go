// ABOUTME: Google Docs operations backing per-task notes
// ABOUTME: Creates, rewrites and reads plain-text documents
package google

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/api/docs/v1"
	"google.golang.org/api/option"

	"github.com/harperreed/schoolsync/logging"
)

type Docs struct {
	service *docs.Service
}

func NewDocs(ctx context.Context, opts ...option.ClientOption) (*Docs, error) {
	service, err := docs.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create docs service: %w", err)
	}
	return &Docs{service: service}, nil
}

// DocURL is the edit link for a document id.
func DocURL(docID string) string {
	return fmt.Sprintf("https://docs.google.com/document/d/%s/edit", docID)
}

// Create makes a document titled title and inserts content at the start of the body.
func (d *Docs) Create(ctx context.Context, title, content string) (docID, url string, err error) {
	doc, err := d.service.Documents.Create(&docs.Document{Title: title}).Context(ctx).Do()
	if err != nil {
		logging.Error().Err(err).Str("title", title).Msg("Failed to create Google Doc")
		return "", "", fmt.Errorf("failed to create document: %w", err)
	}

	if content != "" {
		req := &docs.BatchUpdateDocumentRequest{Requests: []*docs.Request{insertAtStart(content)}}
		if _, err := d.service.Documents.BatchUpdate(doc.DocumentId, req).Context(ctx).Do(); err != nil {
			return "", "", fmt.Errorf("failed to write document %s: %w", doc.DocumentId, err)
		}
	}

	logging.Info().Str("doc_id", doc.DocumentId).Str("title", title).Msg("Created Google Doc")
	return doc.DocumentId, DocURL(doc.DocumentId), nil
}

// Update replaces the whole body text of docID with content.
func (d *Docs) Update(ctx context.Context, docID, content string) error {
	doc, err := d.service.Documents.Get(docID).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("failed to get document %s: %w", docID, err)
	}

	var requests []*docs.Request
	// The final newline of a body cannot be deleted.
	if end := bodyEndIndex(doc) - 1; end > 1 {
		requests = append(requests, &docs.Request{
			DeleteContentRange: &docs.DeleteContentRangeRequest{
				Range: &docs.Range{StartIndex: 1, EndIndex: end},
			},
		})
	}
	requests = append(requests, insertAtStart(content))

	req := &docs.BatchUpdateDocumentRequest{Requests: requests}
	if _, err := d.service.Documents.BatchUpdate(docID, req).Context(ctx).Do(); err != nil {
		logging.Error().Err(err).Str("doc_id", docID).Msg("Failed to update Google Doc")
		return fmt.Errorf("failed to update document %s: %w", docID, err)
	}
	logging.Info().Str("doc_id", docID).Msg("Updated Google Doc")
	return nil
}

// GetContent concatenates the paragraph text runs of docID.
func (d *Docs) GetContent(ctx context.Context, docID string) (string, error) {
	doc, err := d.service.Documents.Get(docID).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("failed to get document %s: %w", docID, err)
	}

	var b strings.Builder
	if doc.Body == nil {
		return "", nil
	}
	for _, el := range doc.Body.Content {
		if el.Paragraph == nil {
			continue
		}
		for _, pe := range el.Paragraph.Elements {
			if pe.TextRun != nil {
				b.WriteString(pe.TextRun.Content)
			}
		}
	}
	return b.String(), nil
}

func insertAtStart(text string) *docs.Request {
	return &docs.Request{
		InsertText: &docs.InsertTextRequest{
			Location: &docs.Location{Index: 1},
			Text:     text,
		},
	}
}

func bodyEndIndex(doc *docs.Document) int64 {
	if doc.Body == nil || len(doc.Body.Content) == 0 {
		return 1
	}
	return doc.Body.Content[len(doc.Body.Content)-1].EndIndex
}
