package repository

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/maheshrc27/crosspost/internal/models"
)

// MarkerRepository records automation actions already taken. Markers are
// write-once: creating an existing marker is a no-op.
type MarkerRepository interface {
	ListExternalIDs(ctx context.Context, userID int64, platform models.Platform, kind string) (map[string]struct{}, error)
	Create(ctx context.Context, m *models.AutomationMarker) error
}

type markerRepository struct {
	db *sql.DB
}

func NewMarkerRepository(db *sql.DB) MarkerRepository {
	return &markerRepository{db: db}
}

func (r *markerRepository) ListExternalIDs(ctx context.Context, userID int64, platform models.Platform, kind string) (map[string]struct{}, error) {
	query := `
		SELECT external_id FROM automation_markers
		WHERE user_id = $1 AND platform = $2 AND kind = $3
	`
	rows, err := r.db.QueryContext(ctx, query, userID, platform, kind)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	ids := make(map[string]struct{})
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		ids[id] = struct{}{}
	}

	if err := rows.Err(); err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	return ids, nil
}

func (r *markerRepository) Create(ctx context.Context, m *models.AutomationMarker) error {
	query := `
		INSERT INTO automation_markers (user_id, platform, kind, external_id)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id, platform, kind, external_id) DO NOTHING
	`
	if _, err := r.db.ExecContext(ctx, query, m.UserID, m.Platform, m.Kind, m.ExternalID); err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}
