package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/maheshrc27/crosspost/internal/models"
)

type PostTargetRepository interface {
	Create(ctx context.Context, tx *sql.Tx, t *models.PostTarget) (int64, error)
	ListByPostID(ctx context.Context, postID int64) ([]*models.PostTarget, error)
	UpdateResult(ctx context.Context, t *models.PostTarget) error
}

type postTargetRepository struct {
	db *sql.DB
}

func NewPostTargetRepository(db *sql.DB) PostTargetRepository {
	return &postTargetRepository{db: db}
}

const postTargetColumns = `id, post_id, account_id, platform, status, external_id,
	error_message, published_at, created_at, updated_at`

func scanPostTarget(row rowScanner) (*models.PostTarget, error) {
	var t models.PostTarget
	var published sql.NullTime
	err := row.Scan(&t.ID, &t.PostID, &t.AccountID, &t.Platform, &t.Status, &t.ExternalID,
		&t.ErrorMessage, &published, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if published.Valid {
		p := published.Time
		t.PublishedAt = &p
	}
	return &t, nil
}

func (r *postTargetRepository) Create(ctx context.Context, tx *sql.Tx, t *models.PostTarget) (int64, error) {
	query := `
		INSERT INTO post_targets (post_id, account_id, platform, status)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`

	var id int64
	err := pick(r.db, tx).QueryRowContext(ctx, query, t.PostID, t.AccountID, t.Platform, t.Status).Scan(&id)
	if err != nil {
		slog.Info(err.Error())
		return 0, fmt.Errorf("insert target: %w", err)
	}
	return id, nil
}

func (r *postTargetRepository) ListByPostID(ctx context.Context, postID int64) ([]*models.PostTarget, error) {
	query := `SELECT ` + postTargetColumns + ` FROM post_targets WHERE post_id = $1 ORDER BY id`

	rows, err := r.db.QueryContext(ctx, query, postID)
	if err != nil {
		slog.Info(err.Error())
		return nil, fmt.Errorf("query rows: %w", err)
	}
	defer rows.Close()

	var targets []*models.PostTarget
	for rows.Next() {
		t, err := scanPostTarget(rows)
		if err != nil {
			slog.Info(err.Error())
			return nil, fmt.Errorf("scan row: %w", err)
		}
		targets = append(targets, t)
	}

	if err := rows.Err(); err != nil {
		slog.Info(err.Error())
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return targets, nil
}

// UpdateResult stores the outcome of a publish attempt.
func (r *postTargetRepository) UpdateResult(ctx context.Context, t *models.PostTarget) error {
	query := `
		UPDATE post_targets
		SET status = $2,
			external_id = $3,
			error_message = $4,
			published_at = $5,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = $1
	`
	_, err := r.db.ExecContext(ctx, query, t.ID, t.Status, t.ExternalID, t.ErrorMessage, nullTimePtr(t.PublishedAt))
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}
