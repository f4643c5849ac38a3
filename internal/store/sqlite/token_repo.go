package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"chatline/internal/domain"
)

type TokenRepo struct {
	db *sql.DB
}

func NewTokenRepo(db *sql.DB) *TokenRepo {
	return &TokenRepo{db: db}
}

var _ domain.TokenRepository = (*TokenRepo)(nil)

// Save upserts the refresh token for a user. A reissue supersedes the
// previous row, keeping at most one active credential per user.
func (r *TokenRepo) Save(ctx context.Context, userID int64, refreshToken string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO tokens (user_id, refresh_token, created_at)
		VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(user_id) DO UPDATE SET
			refresh_token = excluded.refresh_token,
			created_at = CURRENT_TIMESTAMP
	`, userID, refreshToken)
	if err != nil {
		return fmt.Errorf("save token: %w", err)
	}
	return nil
}

func (r *TokenRepo) Find(ctx context.Context, refreshToken string) (*domain.Token, error) {
	t := &domain.Token{}
	err := r.db.QueryRowContext(ctx, `
		SELECT user_id, refresh_token, created_at FROM tokens WHERE refresh_token = ?
	`, refreshToken).Scan(&t.UserID, &t.RefreshToken, &t.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find token: %w", err)
	}
	return t, nil
}

func (r *TokenRepo) Delete(ctx context.Context, refreshToken string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM tokens WHERE refresh_token = ?`, refreshToken); err != nil {
		return fmt.Errorf("delete token: %w", err)
	}
	return nil
}

func (r *TokenRepo) DeleteForUser(ctx context.Context, userID int64) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM tokens WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("delete user tokens: %w", err)
	}
	return nil
}
