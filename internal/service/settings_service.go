package service

import (
	"context"
	"log/slog"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/maheshrc27/crosspost/internal/models"
	"github.com/maheshrc27/crosspost/internal/repository"
	"github.com/maheshrc27/crosspost/internal/transfer"
)

type SettingsService interface {
	GetSettingsInfo(ctx context.Context, userID int64) (*models.AutomationSettings, error)
	UpdateSettings(ctx context.Context, userID int64, update *transfer.AutomationSettingsUpdate) (*models.AutomationSettings, error)
}

type settingsService struct {
	sr repository.AutomationSettingsRepository
	v  *validator.Validate
}

func NewSettingsService(sr repository.AutomationSettingsRepository) SettingsService {
	return &settingsService{
		sr: sr,
		v:  validator.New(),
	}
}

// GetSettingsInfo returns the stored settings, or disabled defaults for a
// user who never saved any.
func (s *settingsService) GetSettingsInfo(ctx context.Context, userID int64) (*models.AutomationSettings, error) {
	if userID == 0 {
		return nil, ErrUnauthenticated
	}

	settings, err := s.sr.GetByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if settings == nil {
		return &models.AutomationSettings{UserID: userID}, nil
	}
	return settings, nil
}

func (s *settingsService) UpdateSettings(ctx context.Context, userID int64, update *transfer.AutomationSettingsUpdate) (*models.AutomationSettings, error) {
	if userID == 0 {
		return nil, ErrUnauthenticated
	}
	if update == nil {
		return nil, invalidInput("settings are nil")
	}
	if err := s.v.Struct(update); err != nil {
		slog.Info(err.Error())
		return nil, invalidInput(err.Error())
	}

	settings := &models.AutomationSettings{
		UserID:         userID,
		WelcomeEnabled: update.WelcomeEnabled,
		WelcomeMessage: strings.TrimSpace(update.WelcomeMessage),
		ReplyEnabled:   update.ReplyEnabled,
		ReplyKeyword:   strings.TrimSpace(update.ReplyKeyword),
		ReplyMessage:   strings.TrimSpace(update.ReplyMessage),
	}
	if err := s.sr.Upsert(ctx, settings); err != nil {
		return nil, err
	}
	return settings, nil
}
