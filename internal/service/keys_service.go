package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/maheshrc27/crosspost/internal/models"
	"github.com/maheshrc27/crosspost/internal/repository"
	"github.com/maheshrc27/crosspost/pkg/utils"
)

const maxApiKeys = 5

type ApiKeyService interface {
	Create(ctx context.Context, userID int64) (*models.ApiKey, error)
	List(ctx context.Context, userID int64) ([]*models.ApiKey, error)
	GetUserID(ctx context.Context, apiKey string) (int64, error)
	RemoveAPIKey(ctx context.Context, userID, keyID int64) error
}

type apiKeyService struct {
	k repository.ApiKeyRepository
}

func NewApiKeyService(k repository.ApiKeyRepository) ApiKeyService {
	return &apiKeyService{
		k: k,
	}
}

func (s *apiKeyService) Create(ctx context.Context, userID int64) (*models.ApiKey, error) {
	if userID == 0 {
		return nil, ErrUnauthenticated
	}

	keys, err := s.k.ListByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(keys) >= maxApiKeys {
		return nil, invalidInput(fmt.Sprintf("only %d api keys can be created", maxApiKeys))
	}

	key, err := utils.GenerateRandomKey(16)
	if err != nil {
		slog.Info(err.Error())
		return nil, fmt.Errorf("error generating api key: %w", err)
	}

	apiKey := &models.ApiKey{
		UserID: userID,
		Key:    key,
	}
	apiKey.ID, err = s.k.Create(ctx, apiKey)
	if err != nil {
		return nil, fmt.Errorf("error saving api key: %w", err)
	}
	return apiKey, nil
}

func (s *apiKeyService) GetUserID(ctx context.Context, apiKey string) (int64, error) {
	if apiKey == "" {
		return 0, ErrUnauthenticated
	}

	userID, exists, err := s.k.GetUserIDByKey(ctx, apiKey)
	if err != nil {
		return 0, err
	}
	if !exists {
		return 0, ErrUnauthenticated
	}
	return userID, nil
}

func (s *apiKeyService) List(ctx context.Context, userID int64) ([]*models.ApiKey, error) {
	if userID == 0 {
		return nil, ErrUnauthenticated
	}

	apiKeys, err := s.k.ListByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("error getting api keys: %w", err)
	}
	return apiKeys, nil
}

func (s *apiKeyService) RemoveAPIKey(ctx context.Context, userID, keyID int64) error {
	if userID == 0 {
		return ErrUnauthenticated
	}
	if keyID == 0 {
		return invalidInput("key id is not valid")
	}

	owned, err := s.k.CheckByUserID(ctx, keyID, userID)
	if err != nil {
		return err
	}
	if !owned {
		slog.Info("api key not owned by user", "key_id", keyID, "user_id", userID)
		return ErrNotFoundOrExpired
	}

	return s.k.Remove(ctx, keyID)
}
