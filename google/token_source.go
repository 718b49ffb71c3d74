// ABOUTME: Token source wrapper that writes refreshed Google tokens back to storage
// ABOUTME: Keeps the stored refresh token when Google does not rotate it
package google

import (
	"context"
	"sync"

	"golang.org/x/oauth2"

	"github.com/harperreed/schoolsync/db"
	"github.com/harperreed/schoolsync/logging"
)

type persistingTokenSource struct {
	ctx    context.Context
	base   oauth2.TokenSource
	tokens *db.TokenRepository
	userID string

	mu   sync.Mutex
	last string
}

func (s *persistingTokenSource) Token() (*oauth2.Token, error) {
	tok, err := s.base.Token()
	if err != nil {
		logging.Error().Err(err).Str("user_id", s.userID).Msg("Failed to refresh access token")
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if tok.AccessToken == s.last {
		return tok, nil
	}

	// Empty refresh token and scope keep the stored values.
	scope, _ := tok.Extra("scope").(string)
	if _, err := s.tokens.UpsertToken(s.ctx, s.userID, tok.AccessToken, tok.RefreshToken, scope, tok.Expiry.UnixMilli()); err != nil {
		logging.Warn().Err(err).Str("user_id", s.userID).Msg("Failed to persist refreshed token")
	} else {
		logging.Info().Str("user_id", s.userID).Msg("Refreshed Google access token")
	}
	s.last = tok.AccessToken
	return tok, nil
}
