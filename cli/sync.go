// ABOUTME: One-shot sync and Google login CLI commands
// ABOUTME: google-login runs the OAuth consent flow against a local callback server
package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/exec"
	"runtime"
	"sort"
	"time"

	"github.com/harperreed/schoolsync/google"
	"github.com/harperreed/schoolsync/models"
)

// SyncCommand runs one full sync in-process and prints the counts.
func SyncCommand(ctx context.Context, app *App, args []string) error {
	return syncCommand(ctx, app, args, os.Stdout)
}

func syncCommand(ctx context.Context, app *App, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("sync", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}

	result, err := app.Orchestrator.RunFullSync(ctx, "cli")
	if err != nil {
		return fmt.Errorf("sync failed: %w", err)
	}
	printResult(out, result)
	return nil
}

func printResult(out io.Writer, r *models.SyncResult) {
	_, _ = fmt.Fprintf(out, "✓ Sync complete (%s)\n", r.TriggeredBy)
	_, _ = fmt.Fprintf(out, "  Tasks:     %d\n", r.Tasks)
	_, _ = fmt.Fprintf(out, "  Deadlines: %d\n", r.Deadlines)
	_, _ = fmt.Fprintf(out, "  Grades:    %d\n", r.Grades)
	_, _ = fmt.Fprintf(out, "  Lessons:   %d\n", r.Lessons)
	_, _ = fmt.Fprintf(out, "  Timetable: %d\n", r.TimetableEntries)

	collections := make([]string, 0, len(r.Rejected))
	for c := range r.Rejected {
		collections = append(collections, c)
	}
	sort.Strings(collections)
	for _, c := range collections {
		_, _ = fmt.Fprintf(out, "  ! Rejected %d %s record(s)\n", r.Rejected[c], c)
	}
}

// GoogleLoginCommand links a Google account for a user without the HTTP API running.
func GoogleLoginCommand(ctx context.Context, app *App, args []string) error {
	fs := flag.NewFlagSet("google-login", flag.ContinueOnError)
	userID := fs.String("user", "demo-user", "User to link the account to")
	port := fs.Int("port", 8085, "Local port for the OAuth callback")
	noBrowser := fs.Bool("no-browser", false, "Print the consent URL without opening a browser")
	if err := fs.Parse(args); err != nil {
		return err
	}

	auth := app.Google.Auth()
	if !auth.Configured() {
		return fmt.Errorf("GOOGLE_CLIENT_ID and GOOGLE_CLIENT_SECRET must be set")
	}

	listener, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", *port))
	if err != nil {
		return fmt.Errorf("failed to start callback server: %w", err)
	}
	redirect := fmt.Sprintf("http://localhost:%d/oauth/callback", *port)

	done := make(chan *models.OAuthToken, 1)
	errCh := make(chan error, 1)
	mux := http.NewServeMux()
	mux.Handle("/oauth/callback", loginCallback(auth, *userID, redirect, done, errCh))
	server := &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		if err := server.Serve(listener); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	authURL := auth.AuthURLWithRedirect(*userID, redirect)
	fmt.Println("Opening browser for Google OAuth...")
	fmt.Printf("\nIf browser doesn't open, visit this URL:\n%s\n\n", authURL)
	if !*noBrowser {
		_ = openBrowser(authURL)
	}

	select {
	case token := <-done:
		fmt.Printf("\n✓ Authenticated %s\n", token.UserID)
		fmt.Printf("✓ Granted scopes: %s\n\n", token.Scope)
		fmt.Println("Ready! Run 'schoolsync serve' and POST /sync/google/calendar to import events.")
		return nil
	case err := <-errCh:
		return fmt.Errorf("OAuth flow failed: %w", err)
	case <-ctx.Done():
		return ctx.Err()
	}
}

// loginCallback exchanges the code once; later hits are answered but ignored.
func loginCallback(auth *google.Auth, userID, redirect string, done chan<- *models.OAuthToken, errCh chan<- error) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		code := r.URL.Query().Get("code")
		if code == "" {
			http.Error(w, "Authorization code is required", http.StatusBadRequest)
			report(errCh, fmt.Errorf("no authorization code received"))
			return
		}

		token, err := auth.ExchangeWithRedirect(r.Context(), userID, code, redirect)
		if err != nil {
			http.Error(w, "Failed to obtain tokens", http.StatusInternalServerError)
			report(errCh, fmt.Errorf("failed to exchange code: %w", err))
			return
		}

		_, _ = fmt.Fprintf(w, "Authorization successful! You can close this window.")
		select {
		case done <- token:
		default:
		}
	})
}

func report(errCh chan<- error, err error) {
	select {
	case errCh <- err:
	default:
	}
}

// openBrowser attempts to open URL in default browser
func openBrowser(url string) error {
	var cmd string
	var args []string

	switch runtime.GOOS {
	case "darwin":
		cmd = "open"
		args = []string{url}
	case "windows":
		cmd = "cmd"
		args = []string{"/c", "start", url}
	default:
		cmd = "xdg-open"
		args = []string{url}
	}

	return exec.Command(cmd, args...).Start()
}
