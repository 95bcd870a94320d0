// ABOUTME: Credentials for Google Workspace APIs
// ABOUTME: Service-account delegation or an installed-app OAuth token stored at XDG paths
package workspace

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/adrg/xdg"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
)

// Scopes covers sending mail, creating events, and writing reports.
var Scopes = []string{
	"https://www.googleapis.com/auth/gmail.send",
	"https://www.googleapis.com/auth/calendar.events",
	"https://www.googleapis.com/auth/spreadsheets",
	"https://www.googleapis.com/auth/drive.file",
}

// AuthConfig selects how API clients authenticate. A service account takes
// precedence over a stored OAuth token.
type AuthConfig struct {
	// ServiceAccount is either inline JSON or a path to a key file.
	ServiceAccount string
	// Subject is the user impersonated through domain-wide delegation.
	Subject      string
	ClientID     string
	ClientSecret string
	// TokenPath overrides DefaultTokenPath.
	TokenPath string
}

// NewOAuthConfig creates the installed-app OAuth2 config.
func NewOAuthConfig(clientID, clientSecret string) *oauth2.Config {
	if clientID == "" {
		clientID = os.Getenv("GOOGLE_CLIENT_ID")
	}
	if clientSecret == "" {
		clientSecret = os.Getenv("GOOGLE_CLIENT_SECRET")
	}

	return &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  "http://localhost:8080/oauth/callback",
		Scopes:       Scopes,
		Endpoint:     google.Endpoint,
	}
}

// DefaultTokenPath returns XDG-compliant path for storing OAuth tokens.
func DefaultTokenPath() string {
	return filepath.Join(xdg.DataHome, "retainiq", "google-credentials.json")
}

// SaveToken writes an OAuth token with owner-only permissions.
func SaveToken(path string, token *oauth2.Token) error {
	if path == "" {
		path = DefaultTokenPath()
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create token directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to create token file: %w", err)
	}
	defer func() { _ = f.Close() }()

	if err := json.NewEncoder(f).Encode(token); err != nil {
		return fmt.Errorf("failed to encode token: %w", err)
	}

	return nil
}

// LoadToken reads an OAuth token saved by SaveToken.
func LoadToken(path string) (*oauth2.Token, error) {
	if path == "" {
		path = DefaultTokenPath()
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open token file: %w", err)
	}
	defer func() { _ = f.Close() }()

	var token oauth2.Token
	if err := json.NewDecoder(f).Decode(&token); err != nil {
		return nil, fmt.Errorf("failed to decode token: %w", err)
	}

	return &token, nil
}

// HTTPClient returns an authenticated client for the configured credentials.
func HTTPClient(ctx context.Context, cfg AuthConfig) (*http.Client, error) {
	if cfg.ServiceAccount != "" {
		key, err := serviceAccountKey(cfg.ServiceAccount)
		if err != nil {
			return nil, err
		}
		jwt, err := google.JWTConfigFromJSON(key, Scopes...)
		if err != nil {
			return nil, fmt.Errorf("failed to parse service account key: %w", err)
		}
		jwt.Subject = cfg.Subject
		return jwt.Client(ctx), nil
	}

	config := NewOAuthConfig(cfg.ClientID, cfg.ClientSecret)
	if config.ClientID == "" || config.ClientSecret == "" {
		return nil, fmt.Errorf("google credentials not configured. Set a service account or GOOGLE_CLIENT_ID and GOOGLE_CLIENT_SECRET")
	}

	token, err := LoadToken(cfg.TokenPath)
	if err != nil {
		return nil, fmt.Errorf("no authentication token found. Run 'retainiq auth init' first: %w", err)
	}

	return config.Client(ctx, token), nil
}

// ClientOptions wraps HTTPClient for the generated API constructors.
func ClientOptions(ctx context.Context, cfg AuthConfig) ([]option.ClientOption, error) {
	client, err := HTTPClient(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return []option.ClientOption{option.WithHTTPClient(client)}, nil
}

func serviceAccountKey(value string) ([]byte, error) {
	trimmed := strings.TrimSpace(value)
	if strings.HasPrefix(trimmed, "{") {
		return []byte(trimmed), nil
	}
	key, err := os.ReadFile(trimmed)
	if err != nil {
		return nil, fmt.Errorf("failed to read service account key: %w", err)
	}
	return key, nil
}
