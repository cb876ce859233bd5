package service

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/maheshrc27/crosspost/internal/models"
	"github.com/maheshrc27/crosspost/internal/repository"
	gonanoid "github.com/matoous/go-nanoid/v2"
)

// SelectionService parks the identities a single login may connect until the
// user picks one.
type SelectionService interface {
	SavePending(ctx context.Context, userID int64, platform models.Platform, candidates []models.Candidate) (*models.PendingSelection, error)
	ListPending(ctx context.Context, userID int64, id string) ([]models.Candidate, error)
	Finalize(ctx context.Context, userID int64, id, candidateID string) (*models.SocialAccount, error)
}

type selectionService struct {
	ttl time.Duration
	tx  repository.Transactor
	ps  repository.PendingSelectionRepository
	sa  repository.SocialAccountRepository
	now func() time.Time
}

func NewSelectionService(
	ttl time.Duration,
	tx repository.Transactor,
	ps repository.PendingSelectionRepository,
	sa repository.SocialAccountRepository) SelectionService {
	return newSelectionService(ttl, tx, ps, sa)
}

func newSelectionService(
	ttl time.Duration,
	tx repository.Transactor,
	ps repository.PendingSelectionRepository,
	sa repository.SocialAccountRepository) *selectionService {
	return &selectionService{
		ttl: ttl,
		tx:  tx,
		ps:  ps,
		sa:  sa,
		now: time.Now,
	}
}

func (s *selectionService) SavePending(ctx context.Context, userID int64, platform models.Platform, candidates []models.Candidate) (*models.PendingSelection, error) {
	if userID == 0 {
		return nil, ErrUnauthenticated
	}
	if len(candidates) == 0 {
		return nil, invalidInput("no candidates")
	}

	id, err := gonanoid.New()
	if err != nil {
		return nil, err
	}

	now := s.now()
	ps := &models.PendingSelection{
		ID:         id,
		UserID:     userID,
		Platform:   platform,
		Candidates: candidates,
		ExpiresAt:  now.Add(s.ttl),
		CreatedAt:  now,
	}
	if err := s.ps.Create(ctx, ps); err != nil {
		return nil, err
	}
	return ps, nil
}

// load applies the read rules shared by list and finalize: missing or
// expired is not found (expired records are purged), then ownership.
func (s *selectionService) load(ctx context.Context, userID int64, id string) (*models.PendingSelection, error) {
	if userID == 0 {
		return nil, ErrUnauthenticated
	}

	ps, err := s.ps.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if ps == nil {
		return nil, ErrNotFoundOrExpired
	}

	if ps.Expired(s.now()) {
		if err := s.ps.Remove(ctx, nil, ps.ID); err != nil {
			return nil, err
		}
		return nil, ErrNotFoundOrExpired
	}

	if ps.UserID != userID {
		return nil, ErrForbidden
	}
	return ps, nil
}

func (s *selectionService) ListPending(ctx context.Context, userID int64, id string) ([]models.Candidate, error) {
	ps, err := s.load(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	return ps.Candidates, nil
}

func (s *selectionService) Finalize(ctx context.Context, userID int64, id, candidateID string) (*models.SocialAccount, error) {
	ps, err := s.load(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	candidate, ok := ps.Candidate(candidateID)
	if !ok {
		return nil, fmt.Errorf("%w: %q is not one of the offered candidates", ErrInvalidSelection, candidateID)
	}

	account := &models.SocialAccount{
		UserID:          userID,
		Platform:        ps.Platform,
		AccountID:       candidate.ID,
		AccountName:     candidate.Name,
		AccountUsername: candidate.Username,
		ProfilePicture:  candidate.PictureURL,
		AccessToken:     candidate.AccessToken,
	}

	err = s.tx.WithTx(ctx, func(tx *sql.Tx) error {
		id, err := s.sa.Upsert(ctx, tx, account)
		if err != nil {
			return err
		}
		account.ID = id
		return s.ps.Remove(ctx, tx, ps.ID)
	})
	if err != nil {
		return nil, err
	}

	account.AccountStatus = models.AccountStatusActive
	return account, nil
}
