package repository

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"

	"github.com/maheshrc27/crosspost/internal/models"
)

type AutomationSettingsRepository interface {
	GetByUserID(ctx context.Context, userID int64) (*models.AutomationSettings, error)
	Upsert(ctx context.Context, s *models.AutomationSettings) error
	ListEnabled(ctx context.Context) ([]*models.AutomationSettings, error)
}

type automationSettingsRepository struct {
	db *sql.DB
}

func NewAutomationSettingsRepository(db *sql.DB) AutomationSettingsRepository {
	return &automationSettingsRepository{db: db}
}

const automationSettingsColumns = `id, user_id, welcome_enabled, welcome_message, reply_enabled,
	reply_keyword, reply_message, created_at, updated_at`

func scanAutomationSettings(row rowScanner) (*models.AutomationSettings, error) {
	var s models.AutomationSettings
	err := row.Scan(&s.ID, &s.UserID, &s.WelcomeEnabled, &s.WelcomeMessage, &s.ReplyEnabled,
		&s.ReplyKeyword, &s.ReplyMessage, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *automationSettingsRepository) GetByUserID(ctx context.Context, userID int64) (*models.AutomationSettings, error) {
	query := `SELECT ` + automationSettingsColumns + ` FROM automation_settings WHERE user_id = $1`

	s, err := scanAutomationSettings(r.db.QueryRowContext(ctx, query, userID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		slog.Info(err.Error())
		return nil, err
	}
	return s, nil
}

func (r *automationSettingsRepository) Upsert(ctx context.Context, s *models.AutomationSettings) error {
	query := `
		INSERT INTO automation_settings (
			user_id, welcome_enabled, welcome_message, reply_enabled, reply_keyword, reply_message
		)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (user_id) DO UPDATE SET
			welcome_enabled = EXCLUDED.welcome_enabled,
			welcome_message = EXCLUDED.welcome_message,
			reply_enabled = EXCLUDED.reply_enabled,
			reply_keyword = EXCLUDED.reply_keyword,
			reply_message = EXCLUDED.reply_message,
			updated_at = CURRENT_TIMESTAMP
	`
	_, err := r.db.ExecContext(ctx, query, s.UserID, s.WelcomeEnabled, s.WelcomeMessage,
		s.ReplyEnabled, s.ReplyKeyword, s.ReplyMessage)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

// ListEnabled returns every user with at least one automation switched on.
func (r *automationSettingsRepository) ListEnabled(ctx context.Context) ([]*models.AutomationSettings, error) {
	query := `SELECT ` + automationSettingsColumns + ` FROM automation_settings
		WHERE welcome_enabled OR reply_enabled
		ORDER BY user_id`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	var settings []*models.AutomationSettings
	for rows.Next() {
		s, err := scanAutomationSettings(rows)
		if err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		settings = append(settings, s)
	}

	if err := rows.Err(); err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	return settings, nil
}
