// ABOUTME: OAuth configuration and per-user token management for Google APIs
// ABOUTME: Builds consent URLs, exchanges codes and hands out refreshing HTTP clients
package google

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"golang.org/x/oauth2"
	googleoauth "golang.org/x/oauth2/google"

	"github.com/harperreed/schoolsync/config"
	"github.com/harperreed/schoolsync/db"
	"github.com/harperreed/schoolsync/logging"
	"github.com/harperreed/schoolsync/models"
)

// DefaultScope is stored when Google does not echo the granted scopes.
const DefaultScope = "google-apis"

// ErrNoToken means the user has not connected a Google account.
var ErrNoToken = errors.New("no google oauth token found")

// ErrIncompleteToken is returned when a code exchange yields no refresh token or expiry.
var ErrIncompleteToken = errors.New("failed to obtain tokens")

// NewOAuthConfig creates the OAuth2 config for Google APIs.
func NewOAuthConfig(cfg config.GoogleConfig) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RedirectURL:  cfg.RedirectURI,
		Scopes:       cfg.Scopes,
		Endpoint:     googleoauth.Endpoint,
	}
}

type Auth struct {
	config *oauth2.Config
	tokens *db.TokenRepository
}

func NewAuth(oauthConfig *oauth2.Config, tokens *db.TokenRepository) *Auth {
	return &Auth{config: oauthConfig, tokens: tokens}
}

// Configured reports whether client credentials are present.
func (a *Auth) Configured() bool {
	return a.config.ClientID != "" && a.config.ClientSecret != ""
}

// AuthURL returns the consent URL. state round-trips the user id through the callback.
func (a *Auth) AuthURL(state string) string {
	return a.config.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
}

// AuthURLWithRedirect is AuthURL for a one-off redirect target, used by the CLI login flow.
func (a *Auth) AuthURLWithRedirect(state, redirectURL string) string {
	cfg := *a.config
	cfg.RedirectURL = redirectURL
	return cfg.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
}

// Exchange trades an authorization code for tokens and stores them for userID.
func (a *Auth) Exchange(ctx context.Context, userID, code string) (*models.OAuthToken, error) {
	return a.exchange(ctx, a.config, userID, code)
}

// ExchangeWithRedirect is Exchange for a code obtained via AuthURLWithRedirect.
func (a *Auth) ExchangeWithRedirect(ctx context.Context, userID, code, redirectURL string) (*models.OAuthToken, error) {
	cfg := *a.config
	cfg.RedirectURL = redirectURL
	return a.exchange(ctx, &cfg, userID, code)
}

func (a *Auth) exchange(ctx context.Context, cfg *oauth2.Config, userID, code string) (*models.OAuthToken, error) {
	tok, err := cfg.Exchange(ctx, code)
	if err != nil {
		logging.Error().Err(err).Str("user_id", userID).Msg("Failed to exchange authorization code")
		return nil, fmt.Errorf("failed to exchange authorization code: %w", err)
	}
	if tok.AccessToken == "" || tok.RefreshToken == "" || tok.Expiry.IsZero() {
		return nil, ErrIncompleteToken
	}

	stored, err := a.tokens.UpsertToken(ctx, userID, tok.AccessToken, tok.RefreshToken, grantedScope(tok), tok.Expiry.UnixMilli())
	if err != nil {
		return nil, err
	}
	logging.Info().Str("user_id", userID).Msg("Google OAuth successful")
	return stored, nil
}

func grantedScope(tok *oauth2.Token) string {
	switch s := tok.Extra("scope").(type) {
	case string:
		if s != "" {
			return s
		}
	case []any:
		parts := make([]string, 0, len(s))
		for _, p := range s {
			if str, ok := p.(string); ok {
				parts = append(parts, str)
			}
		}
		if len(parts) > 0 {
			return strings.Join(parts, " ")
		}
	}
	return DefaultScope
}

// TokenSource returns a refreshing token source for userID that persists refreshed tokens.
func (a *Auth) TokenSource(ctx context.Context, userID string) (oauth2.TokenSource, error) {
	record, err := a.tokens.GetTokenByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, fmt.Errorf("%w for user %s", ErrNoToken, userID)
	}

	current := &oauth2.Token{
		AccessToken:  record.AccessToken,
		RefreshToken: record.RefreshToken,
		TokenType:    record.TokenType,
		Expiry:       record.Expiry(),
	}
	src := &persistingTokenSource{
		ctx:    ctx,
		base:   a.config.TokenSource(ctx, current),
		tokens: a.tokens,
		userID: userID,
		last:   current.AccessToken,
	}
	return oauth2.ReuseTokenSource(current, src), nil
}

// Client returns an HTTP client authorized as userID.
func (a *Auth) Client(ctx context.Context, userID string) (*http.Client, error) {
	ts, err := a.TokenSource(ctx, userID)
	if err != nil {
		return nil, err
	}
	return oauth2.NewClient(ctx, ts), nil
}
