// ABOUTME: Storage for productivity-suite OAuth tokens, one row per user
// ABOUTME: Upserts on user_id and keeps the stored refresh token when a refresh omits it
package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/harperreed/schoolsync/models"
)

type TokenRepository struct {
	db *DB
}

func NewTokenRepository(db *DB) *TokenRepository {
	return &TokenRepository{db: db}
}

// UpsertToken stores tokens for userID. An empty refreshToken keeps the existing one.
func (r *TokenRepository) UpsertToken(ctx context.Context, userID, accessToken, refreshToken, scope string, expiryDate int64) (*models.OAuthToken, error) {
	now := toDBTime(time.Now())

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO google_oauth_tokens (id, user_id, access_token, refresh_token, scope, token_type, expiry_date, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, 'Bearer', ?, ?, ?)
		ON CONFLICT (user_id) DO UPDATE SET
			access_token = excluded.access_token,
			refresh_token = CASE WHEN excluded.refresh_token = '' THEN google_oauth_tokens.refresh_token ELSE excluded.refresh_token END,
			scope = CASE WHEN excluded.scope = '' THEN google_oauth_tokens.scope ELSE excluded.scope END,
			expiry_date = excluded.expiry_date,
			updated_at = excluded.updated_at
	`, uuid.NewString(), userID, accessToken, refreshToken, scope, expiryDate, now, now)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert token for %s: %w", userID, err)
	}
	return r.GetTokenByUserID(ctx, userID)
}

// GetTokenByUserID returns nil, nil when the user has no linked account.
func (r *TokenRepository) GetTokenByUserID(ctx context.Context, userID string) (*models.OAuthToken, error) {
	var t models.OAuthToken
	err := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, access_token, refresh_token, scope, token_type, expiry_date, created_at, updated_at
		FROM google_oauth_tokens WHERE user_id = ?
	`, userID).Scan(&t.ID, &t.UserID, &t.AccessToken, &t.RefreshToken, &t.Scope, &t.TokenType,
		&t.ExpiryDate, &t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get token for %s: %w", userID, err)
	}
	return &t, nil
}

func (r *TokenRepository) DeleteTokenByUserID(ctx context.Context, userID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM google_oauth_tokens WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("failed to delete token for %s: %w", userID, err)
	}
	return nil
}
