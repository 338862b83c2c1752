package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
)

var ErrTokenNotFound = errors.New("token not found")

// TokenRepository stores bearer tokens. Rows are never expired or revoked.
type TokenRepository struct {
	db *sqlx.DB
}

func NewTokenRepository(db *sqlx.DB) *TokenRepository {
	return &TokenRepository{db: db}
}

// Create records a freshly issued token for userID.
func (r *TokenRepository) Create(ctx context.Context, token, userID string) error {
	query := r.db.Rebind(`INSERT INTO tokens (token, user_id) VALUES (?, ?)`)
	_, err := r.db.ExecContext(ctx, query, token, userID)
	return err
}

// UserID resolves a token to the owning user.
func (r *TokenRepository) UserID(ctx context.Context, token string) (string, error) {
	query := r.db.Rebind(`SELECT user_id FROM tokens WHERE token = ?`)

	var userID string
	if err := r.db.GetContext(ctx, &userID, query, token); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrTokenNotFound
		}
		return "", err
	}
	return userID, nil
}
