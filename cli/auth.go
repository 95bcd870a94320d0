// ABOUTME: Google authorization CLI command
// ABOUTME: Runs the installed-app OAuth flow and stores the token for Gmail, Calendar, and Sheets
package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os/exec"
	"runtime"

	"github.com/harperreed/retainiq/workspace"
	"golang.org/x/oauth2"
)

// AuthInitCommand handles OAuth setup
func AuthInitCommand(app *App, args []string) error {
	fs := flag.NewFlagSet("init", flag.ExitOnError)
	addr := fs.String("listen", ":8080", "Address for the OAuth callback server")
	_ = fs.Parse(args)

	ctx := context.Background()
	g := app.Config.Google
	if g.ServiceAccount != "" {
		fmt.Println("A service account is configured; OAuth is not needed.")
		return nil
	}

	config := workspace.NewOAuthConfig(g.ClientID, g.ClientSecret)
	if config.ClientID == "" || config.ClientSecret == "" {
		return fmt.Errorf("GOOGLE_CLIENT_ID and GOOGLE_CLIENT_SECRET must be set")
	}

	// Buffered so a late callback never blocks the handler.
	callbackChan := make(chan *oauth2.Token, 1)
	errChan := make(chan error, 1)

	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/callback", func(w http.ResponseWriter, r *http.Request) {
		code := r.URL.Query().Get("code")
		if code == "" {
			errChan <- fmt.Errorf("no authorization code received")
			http.Error(w, "missing authorization code", http.StatusBadRequest)
			return
		}

		token, err := config.Exchange(ctx, code)
		if err != nil {
			errChan <- fmt.Errorf("failed to exchange code: %w", err)
			http.Error(w, "token exchange failed", http.StatusBadGateway)
			return
		}

		callbackChan <- token
		_, _ = fmt.Fprintf(w, "Authorization successful! You can close this window.")
	})

	server := &http.Server{Addr: *addr, Handler: mux}
	go func() {
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	authURL := config.AuthCodeURL("state", oauth2.AccessTypeOffline)

	fmt.Println("Opening browser for Google OAuth...")
	fmt.Printf("\nIf browser doesn't open, visit this URL:\n%s\n\n", authURL)

	_ = openBrowser(authURL)

	select {
	case token := <-callbackChan:
		_ = server.Shutdown(ctx)

		path := g.TokenPath
		if path == "" {
			path = workspace.DefaultTokenPath()
		}
		if err := workspace.SaveToken(path, token); err != nil {
			return fmt.Errorf("failed to save token: %w", err)
		}

		fmt.Printf("\n%s\n", okStyle.Render("✓ Authenticated successfully"))
		fmt.Printf("✓ Token saved to %s\n\n", path)
		fmt.Println("Ready! Run 'retainiq agent run --tier entry --dry-run' to try an agent.")

		return nil

	case err := <-errChan:
		_ = server.Shutdown(ctx)
		return fmt.Errorf("OAuth flow failed: %w", err)
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

	command := exec.Command(cmd, args...)
	return command.Start()
}
