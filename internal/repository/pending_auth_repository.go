package repository

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"

	"github.com/maheshrc27/crosspost/internal/models"
)

// PendingAuthRepository stores in-flight OAuth 1.0a handshakes. There is at
// most one per (user, platform); Create replaces any earlier one.
type PendingAuthRepository interface {
	Create(ctx context.Context, s *models.PendingAuthSession) (int64, error)
	GetByRequestToken(ctx context.Context, requestToken string) (*models.PendingAuthSession, error)
	Remove(ctx context.Context, id int64) error
}

type pendingAuthRepository struct {
	db *sql.DB
}

func NewPendingAuthRepository(db *sql.DB) PendingAuthRepository {
	return &pendingAuthRepository{db: db}
}

func (r *pendingAuthRepository) Create(ctx context.Context, s *models.PendingAuthSession) (int64, error) {
	query := `
		INSERT INTO pending_auth_sessions (user_id, platform, request_token, request_secret, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id, platform) DO UPDATE SET
			request_token = EXCLUDED.request_token,
			request_secret = EXCLUDED.request_secret,
			created_at = EXCLUDED.created_at
		RETURNING id
	`

	var id int64
	err := r.db.QueryRowContext(ctx, query, s.UserID, s.Platform, s.RequestToken, s.RequestSecret, s.CreatedAt).Scan(&id)
	if err != nil {
		slog.Info(err.Error())
		return 0, err
	}
	return id, nil
}

func (r *pendingAuthRepository) GetByRequestToken(ctx context.Context, requestToken string) (*models.PendingAuthSession, error) {
	query := `
		SELECT id, user_id, platform, request_token, request_secret, created_at
		FROM pending_auth_sessions
		WHERE request_token = $1
	`

	var s models.PendingAuthSession
	err := r.db.QueryRowContext(ctx, query, requestToken).Scan(
		&s.ID, &s.UserID, &s.Platform, &s.RequestToken, &s.RequestSecret, &s.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		slog.Info(err.Error())
		return nil, err
	}
	return &s, nil
}

func (r *pendingAuthRepository) Remove(ctx context.Context, id int64) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM pending_auth_sessions WHERE id = $1`, id); err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}
