package service

import (
	"context"
	"fmt"

	"github.com/maheshrc27/crosspost/internal/models"
	"github.com/maheshrc27/crosspost/internal/repository"
)

type UserService interface {
	GetUserInfo(ctx context.Context, id int64) (*models.User, error)
	RemoveUser(ctx context.Context, userID int64) error
}

type userService struct {
	u repository.UserRepository
}

func NewUserService(u repository.UserRepository) UserService {
	return &userService{
		u: u,
	}
}

func (s *userService) GetUserInfo(ctx context.Context, id int64) (*models.User, error) {
	if id == 0 {
		return nil, ErrUnauthenticated
	}

	user, err := s.u.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("error getting user info: %w", err)
	}
	if user == nil {
		return nil, ErrNotFoundOrExpired
	}
	return user, nil
}

// RemoveUser deletes the user; accounts, posts and keys go with it through
// foreign key cascades.
func (s *userService) RemoveUser(ctx context.Context, userID int64) error {
	if userID == 0 {
		return ErrUnauthenticated
	}
	return s.u.Remove(ctx, userID)
}
