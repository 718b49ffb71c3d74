// ABOUTME: Client-credentials token source for the Pronote gateway
// ABOUTME: Wrapped in a reuse source that refreshes when under 30 seconds of validity remain
package pronote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/oauth2"
)

// RefreshMargin is how early a cached token is treated as expired.
const RefreshMargin = 30 * time.Second

const defaultTokenLifetime = 3600

type tokenGrant struct {
	Token     string `json:"token"`
	ExpiresIn int    `json:"expiresIn"`
}

// tokenResponse accepts both {data:[{token,expiresIn}]} and a bare {token,expiresIn}.
type tokenResponse struct {
	Data []tokenGrant `json:"data"`
	tokenGrant
}

type credentialsSource struct {
	httpClient   *http.Client
	tokenURL     string
	clientID     string
	clientSecret string
	timeout      time.Duration
}

// Token performs the client-credentials exchange.
func (s *credentialsSource) Token() (*oauth2.Token, error) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	body, err := json.Marshal(map[string]string{
		"client_id":     s.clientID,
		"client_secret": s.clientSecret,
		"grant_type":    "client_credentials",
	})
	if err != nil {
		return nil, &AuthError{Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.tokenURL, bytes.NewReader(body))
	if err != nil {
		return nil, &AuthError{Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, &AuthError{Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, &AuthError{Err: fmt.Errorf("token endpoint returned status %d", resp.StatusCode)}
	}

	var parsed tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, &AuthError{Err: fmt.Errorf("failed to decode token response: %w", err)}
	}

	grant := parsed.tokenGrant
	if len(parsed.Data) > 0 {
		grant = parsed.Data[0]
	}
	if grant.Token == "" {
		return nil, &AuthError{Err: errors.New("missing token")}
	}
	if grant.ExpiresIn <= 0 {
		grant.ExpiresIn = defaultTokenLifetime
	}

	return &oauth2.Token{
		AccessToken: grant.Token,
		TokenType:   "Bearer",
		Expiry:      time.Now().Add(time.Duration(grant.ExpiresIn) * time.Second),
	}, nil
}

// newTokenSource caches tokens until RefreshMargin before expiry.
func newTokenSource(src *credentialsSource) oauth2.TokenSource {
	return oauth2.ReuseTokenSourceWithExpiry(nil, src, RefreshMargin)
}
