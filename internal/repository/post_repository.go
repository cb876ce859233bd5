package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/maheshrc27/crosspost/internal/models"
)

type PostRepository interface {
	Create(ctx context.Context, tx *sql.Tx, post *models.Post) (int64, error)
	GetByID(ctx context.Context, id int64) (*models.Post, error)
	ListByUserID(ctx context.Context, userID int64) ([]*models.Post, error)
	UpdateStatus(ctx context.Context, postID int64, status string) error
	SetPreviewToken(ctx context.Context, postID int64, token string, expiresAt time.Time) error
	Remove(ctx context.Context, id int64) error
}

type postRepository struct {
	db *sql.DB
}

func NewPostRepository(db *sql.DB) PostRepository {
	return &postRepository{db: db}
}

const postColumns = `id, user_id, caption, caption_overrides, scheduled_time, status,
	preview_token, preview_expires_at, created_at, updated_at`

func scanPost(row rowScanner) (*models.Post, error) {
	var post models.Post
	var overrides []byte
	var scheduled, previewExpires sql.NullTime
	err := row.Scan(&post.ID, &post.UserID, &post.Caption, &overrides, &scheduled, &post.Status,
		&post.PreviewToken, &previewExpires, &post.CreatedAt, &post.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if scheduled.Valid {
		t := scheduled.Time
		post.ScheduledTime = &t
	}
	post.PreviewExpiresAt = previewExpires.Time

	if len(overrides) > 0 {
		if err := json.Unmarshal(overrides, &post.CaptionOverrides); err != nil {
			return nil, err
		}
	}
	if len(post.CaptionOverrides) == 0 {
		post.CaptionOverrides = nil
	}
	return &post, nil
}

func (r *postRepository) Create(ctx context.Context, tx *sql.Tx, post *models.Post) (int64, error) {
	overrides := post.CaptionOverrides
	if overrides == nil {
		overrides = map[models.Platform]string{}
	}
	encoded, err := json.Marshal(overrides)
	if err != nil {
		return 0, err
	}

	query := `
		INSERT INTO posts (user_id, caption, caption_overrides, scheduled_time, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`

	var id int64
	err = pick(r.db, tx).QueryRowContext(ctx, query,
		post.UserID, post.Caption, encoded, nullTimePtr(post.ScheduledTime), post.Status).Scan(&id)
	if err != nil {
		slog.Info(err.Error())
		return 0, err
	}

	return id, nil
}

func (r *postRepository) GetByID(ctx context.Context, id int64) (*models.Post, error) {
	query := `SELECT ` + postColumns + ` FROM posts WHERE id = $1`

	post, err := scanPost(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		slog.Info(err.Error())
		return nil, err
	}
	return post, nil
}

func (r *postRepository) ListByUserID(ctx context.Context, userID int64) ([]*models.Post, error) {
	query := `SELECT ` + postColumns + ` FROM posts WHERE user_id = $1 ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	var posts []*models.Post
	for rows.Next() {
		post, err := scanPost(rows)
		if err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		posts = append(posts, post)
	}

	if err := rows.Err(); err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	return posts, nil
}

func (r *postRepository) UpdateStatus(ctx context.Context, postID int64, status string) error {
	query := `UPDATE posts SET status = $1, updated_at = CURRENT_TIMESTAMP WHERE id = $2`
	if _, err := r.db.ExecContext(ctx, query, status, postID); err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

func (r *postRepository) SetPreviewToken(ctx context.Context, postID int64, token string, expiresAt time.Time) error {
	query := `
		UPDATE posts
		SET preview_token = $1,
			preview_expires_at = $2,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = $3
	`
	if _, err := r.db.ExecContext(ctx, query, token, expiresAt, postID); err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

func (r *postRepository) Remove(ctx context.Context, id int64) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM posts WHERE id = $1`, id); err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}
