package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/maheshrc27/crosspost/internal/models"
)

// PendingSelectionRepository stores candidate sets awaiting a user choice.
// Expiry is enforced by the caller on read.
type PendingSelectionRepository interface {
	Create(ctx context.Context, ps *models.PendingSelection) error
	GetByID(ctx context.Context, id string) (*models.PendingSelection, error)
	Remove(ctx context.Context, tx *sql.Tx, id string) error
}

type pendingSelectionRepository struct {
	db *sql.DB
}

func NewPendingSelectionRepository(db *sql.DB) PendingSelectionRepository {
	return &pendingSelectionRepository{db: db}
}

// Create drops any earlier selection for the same user and platform before
// inserting ps.
func (r *pendingSelectionRepository) Create(ctx context.Context, ps *models.PendingSelection) error {
	candidates, err := json.Marshal(ps.Candidates)
	if err != nil {
		return err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `DELETE FROM pending_selections WHERE user_id = $1 AND platform = $2`, ps.UserID, ps.Platform)
	if err != nil {
		slog.Info(err.Error())
		return err
	}

	query := `
		INSERT INTO pending_selections (id, user_id, platform, candidates, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err = tx.ExecContext(ctx, query, ps.ID, ps.UserID, ps.Platform, candidates, ps.ExpiresAt, ps.CreatedAt)
	if err != nil {
		slog.Info(err.Error())
		return err
	}

	if err = tx.Commit(); err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

func (r *pendingSelectionRepository) GetByID(ctx context.Context, id string) (*models.PendingSelection, error) {
	query := `
		SELECT id, user_id, platform, candidates, expires_at, created_at
		FROM pending_selections
		WHERE id = $1
	`

	var ps models.PendingSelection
	var candidates []byte
	err := r.db.QueryRowContext(ctx, query, id).Scan(&ps.ID, &ps.UserID, &ps.Platform, &candidates, &ps.ExpiresAt, &ps.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		slog.Info(err.Error())
		return nil, err
	}

	if err := json.Unmarshal(candidates, &ps.Candidates); err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	return &ps, nil
}

func (r *pendingSelectionRepository) Remove(ctx context.Context, tx *sql.Tx, id string) error {
	if _, err := pick(r.db, tx).ExecContext(ctx, `DELETE FROM pending_selections WHERE id = $1`, id); err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}
