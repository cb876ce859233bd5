// Package testutil provides an in-memory implementation of the repository
// interfaces and a controllable clock for service and handler tests.
package testutil

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/maheshrc27/crosspost/internal/models"
	"github.com/maheshrc27/crosspost/internal/repository"
)

// Store keeps every table in maps guarded by one mutex. Records are copied
// on the way in and out so callers cannot mutate stored state.
type Store struct {
	mu sync.Mutex

	seq int64

	users      map[int64]models.User
	keys       map[int64]models.ApiKey
	accounts   map[int64]models.SocialAccount
	pending    map[int64]models.PendingAuthSession
	selections map[string]models.PendingSelection
	markers    map[string]models.AutomationMarker
	settings   map[int64]models.AutomationSettings
	posts      map[int64]models.Post
	media      []models.PostMedia
	targets    map[int64]models.PostTarget
	history    []models.PostingHistory
	assets     map[int64]models.MediaAsset

	// MarkerErr, when set, is returned by every marker write.
	MarkerErr error
}

func NewStore() *Store {
	return &Store{
		users:      map[int64]models.User{},
		keys:       map[int64]models.ApiKey{},
		accounts:   map[int64]models.SocialAccount{},
		pending:    map[int64]models.PendingAuthSession{},
		selections: map[string]models.PendingSelection{},
		markers:    map[string]models.AutomationMarker{},
		settings:   map[int64]models.AutomationSettings{},
		posts:      map[int64]models.Post{},
		targets:    map[int64]models.PostTarget{},
		assets:     map[int64]models.MediaAsset{},
	}
}

func (s *Store) nextID() int64 {
	s.seq++
	return s.seq
}

func (s *Store) Tx() repository.Transactor { return memTx{} }
func (s *Store) Users() repository.UserRepository { return (*userRepo)(s) }
func (s *Store) Keys() repository.ApiKeyRepository { return (*keyRepo)(s) }
func (s *Store) Accounts() repository.SocialAccountRepository { return (*accountRepo)(s) }
func (s *Store) PendingAuth() repository.PendingAuthRepository { return (*pendingRepo)(s) }
func (s *Store) Selections() repository.PendingSelectionRepository { return (*selectionRepo)(s) }
func (s *Store) Markers() repository.MarkerRepository { return (*markerRepo)(s) }
func (s *Store) Settings() repository.AutomationSettingsRepository { return (*settingsRepo)(s) }
func (s *Store) Posts() repository.PostRepository { return (*postRepo)(s) }
func (s *Store) PostMedia() repository.PostMediaRepository { return (*mediaRepo)(s) }
func (s *Store) Targets() repository.PostTargetRepository { return (*targetRepo)(s) }
func (s *Store) History() repository.PostingHistoryRepository { return (*historyRepo)(s) }
func (s *Store) Assets() repository.MediaAssetRepository { return (*assetRepo)(s) }

// Snapshot helpers for assertions.

func (s *Store) AccountCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.accounts)
}

func (s *Store) PendingAuthCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

func (s *Store) SelectionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.selections)
}

func (s *Store) MarkerCount(userID int64, kind string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, m := range s.markers {
		if m.UserID == userID && m.Kind == kind {
			n++
		}
	}
	return n
}

func (s *Store) HistoryCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.history)
}

type memTx struct{}

func (memTx) WithTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	return fn(nil)
}

// users

type userRepo Store

func (r *userRepo) GetByID(ctx context.Context, id int64) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

func (r *userRepo) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, nil
}

func (r *userRepo) Create(ctx context.Context, user *models.User) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u := *user
	u.ID = (*Store)(r).nextID()
	r.users[u.ID] = u
	return u.ID, nil
}

func (r *userRepo) Update(ctx context.Context, user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[user.ID]; ok {
		r.users[user.ID] = *user
	}
	return nil
}

func (r *userRepo) Remove(ctx context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.users, id)
	return nil
}

// api keys

type keyRepo Store

func (r *keyRepo) GetUserIDByKey(ctx context.Context, apiKey string) (int64, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, k := range r.keys {
		if k.Key == apiKey {
			return k.UserID, true, nil
		}
	}
	return 0, false, nil
}

func (r *keyRepo) ListByUserID(ctx context.Context, userID int64) ([]*models.ApiKey, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.ApiKey
	for _, k := range r.keys {
		if k.UserID == userID {
			k := k
			out = append(out, &k)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *keyRepo) Create(ctx context.Context, apiKey *models.ApiKey) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := *apiKey
	k.ID = (*Store)(r).nextID()
	r.keys[k.ID] = k
	return k.ID, nil
}

func (r *keyRepo) CheckByUserID(ctx context.Context, keyID, userID int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	k, ok := r.keys[keyID]
	return ok && k.UserID == userID, nil
}

func (r *keyRepo) Remove(ctx context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.keys, id)
	return nil
}

// social accounts

type accountRepo Store

func mergeString(incoming, stored string) string {
	if incoming == "" {
		return stored
	}
	return incoming
}

func (r *accountRepo) Upsert(ctx context.Context, tx *sql.Tx, sa *models.SocialAccount) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, cur := range r.accounts {
		if cur.UserID == sa.UserID && cur.Platform == sa.Platform && cur.AccountID == sa.AccountID {
			cur.AccountName = mergeString(sa.AccountName, cur.AccountName)
			cur.AccountUsername = mergeString(sa.AccountUsername, cur.AccountUsername)
			cur.ProfilePicture = mergeString(sa.ProfilePicture, cur.ProfilePicture)
			cur.AccessToken = mergeString(sa.AccessToken, cur.AccessToken)
			cur.AccessSecret = mergeString(sa.AccessSecret, cur.AccessSecret)
			cur.RefreshToken = mergeString(sa.RefreshToken, cur.RefreshToken)
			if !sa.TokenExpiresAt.IsZero() {
				cur.TokenExpiresAt = sa.TokenExpiresAt
			}
			cur.AccountStatus = models.AccountStatusActive
			r.accounts[id] = cur
			return id, nil
		}
	}
	acc := *sa
	acc.ID = (*Store)(r).nextID()
	acc.AccountStatus = models.AccountStatusActive
	r.accounts[acc.ID] = acc
	return acc.ID, nil
}

func (r *accountRepo) GetByID(ctx context.Context, id int64) (*models.SocialAccount, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sa, ok := r.accounts[id]
	if !ok {
		return nil, nil
	}
	return &sa, nil
}

func (r *accountRepo) GetByPlatform(ctx context.Context, userID int64, platform models.Platform) (*models.SocialAccount, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var found *models.SocialAccount
	for _, sa := range r.accounts {
		if sa.UserID == userID && sa.Platform == platform {
			if found == nil || sa.ID > found.ID {
				sa := sa
				found = &sa
			}
		}
	}
	return found, nil
}

func (r *accountRepo) filter(keep func(models.SocialAccount) bool) []*models.SocialAccount {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.SocialAccount
	for _, sa := range r.accounts {
		if keep(sa) {
			sa := sa
			out = append(out, &sa)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (r *accountRepo) ListByUserID(ctx context.Context, userID int64) ([]*models.SocialAccount, error) {
	return r.filter(func(sa models.SocialAccount) bool { return sa.UserID == userID }), nil
}

func (r *accountRepo) ListExpiring(ctx context.Context, before time.Time) ([]*models.SocialAccount, error) {
	return r.filter(func(sa models.SocialAccount) bool {
		return !sa.TokenExpiresAt.IsZero() && sa.TokenExpiresAt.Before(before) &&
			sa.RefreshToken != "" && sa.AccountStatus == models.AccountStatusActive
	}), nil
}

func (r *accountRepo) SetToken(ctx context.Context, sa *models.SocialAccount) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.accounts[sa.ID]
	if !ok {
		return sql.ErrNoRows
	}
	cur.AccessToken = mergeString(sa.AccessToken, cur.AccessToken)
	cur.AccessSecret = mergeString(sa.AccessSecret, cur.AccessSecret)
	cur.RefreshToken = mergeString(sa.RefreshToken, cur.RefreshToken)
	if !sa.TokenExpiresAt.IsZero() {
		cur.TokenExpiresAt = sa.TokenExpiresAt
	}
	cur.AccountStatus = models.AccountStatusActive
	r.accounts[sa.ID] = cur
	return nil
}

func (r *accountRepo) SetStatus(ctx context.Context, id int64, status string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.accounts[id]; ok {
		cur.AccountStatus = status
		r.accounts[id] = cur
	}
	return nil
}

func (r *accountRepo) Remove(ctx context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.accounts, id)
	return nil
}

// pending auth sessions

type pendingRepo Store

func (r *pendingRepo) Create(ctx context.Context, s *models.PendingAuthSession) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, cur := range r.pending {
		if cur.UserID == s.UserID && cur.Platform == s.Platform {
			delete(r.pending, id)
		}
	}
	rec := *s
	rec.ID = (*Store)(r).nextID()
	r.pending[rec.ID] = rec
	return rec.ID, nil
}

func (r *pendingRepo) GetByRequestToken(ctx context.Context, requestToken string) (*models.PendingAuthSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.pending {
		if s.RequestToken == requestToken {
			return &s, nil
		}
	}
	return nil, nil
}

func (r *pendingRepo) Remove(ctx context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.pending, id)
	return nil
}

// pending selections

type selectionRepo Store

func (r *selectionRepo) Create(ctx context.Context, ps *models.PendingSelection) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, cur := range r.selections {
		if cur.UserID == ps.UserID && cur.Platform == ps.Platform {
			delete(r.selections, id)
		}
	}
	rec := *ps
	rec.Candidates = append([]models.Candidate(nil), ps.Candidates...)
	r.selections[rec.ID] = rec
	return nil
}

func (r *selectionRepo) GetByID(ctx context.Context, id string) (*models.PendingSelection, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ps, ok := r.selections[id]
	if !ok {
		return nil, nil
	}
	ps.Candidates = append([]models.Candidate(nil), ps.Candidates...)
	return &ps, nil
}

func (r *selectionRepo) Remove(ctx context.Context, tx *sql.Tx, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.selections, id)
	return nil
}

// automation markers

type markerRepo Store

func markerKey(userID int64, platform models.Platform, kind, externalID string) string {
	return fmt.Sprintf("%d|%s|%s|%s", userID, platform, kind, externalID)
}

func (r *markerRepo) ListExternalIDs(ctx context.Context, userID int64, platform models.Platform, kind string) (map[string]struct{}, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := map[string]struct{}{}
	for _, m := range r.markers {
		if m.UserID == userID && m.Platform == platform && m.Kind == kind {
			ids[m.ExternalID] = struct{}{}
		}
	}
	return ids, nil
}

func (r *markerRepo) Create(ctx context.Context, m *models.AutomationMarker) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.MarkerErr != nil {
		return r.MarkerErr
	}
	key := markerKey(m.UserID, m.Platform, m.Kind, m.ExternalID)
	if _, ok := r.markers[key]; !ok {
		r.markers[key] = *m
	}
	return nil
}

// automation settings

type settingsRepo Store

func (r *settingsRepo) GetByUserID(ctx context.Context, userID int64) (*models.AutomationSettings, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.settings[userID]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

func (r *settingsRepo) Upsert(ctx context.Context, s *models.AutomationSettings) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec := *s
	if cur, ok := r.settings[s.UserID]; ok {
		rec.ID = cur.ID
	} else {
		rec.ID = (*Store)(r).nextID()
	}
	r.settings[s.UserID] = rec
	return nil
}

func (r *settingsRepo) ListEnabled(ctx context.Context) ([]*models.AutomationSettings, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.AutomationSettings
	for _, s := range r.settings {
		if s.WelcomeEnabled || s.ReplyEnabled {
			s := s
			out = append(out, &s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}

// posts

type postRepo Store

func copyPost(p models.Post) *models.Post {
	if p.CaptionOverrides != nil {
		overrides := make(map[models.Platform]string, len(p.CaptionOverrides))
		for k, v := range p.CaptionOverrides {
			overrides[k] = v
		}
		p.CaptionOverrides = overrides
	}
	return &p
}

func (r *postRepo) Create(ctx context.Context, tx *sql.Tx, post *models.Post) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p := *copyPost(*post)
	p.ID = (*Store)(r).nextID()
	p.Media = nil
	p.MediaOverrides = nil
	r.posts[p.ID] = p
	return p.ID, nil
}

func (r *postRepo) GetByID(ctx context.Context, id int64) (*models.Post, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.posts[id]
	if !ok {
		return nil, nil
	}
	return copyPost(p), nil
}

func (r *postRepo) ListByUserID(ctx context.Context, userID int64) ([]*models.Post, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Post
	for _, p := range r.posts {
		if p.UserID == userID {
			out = append(out, copyPost(p))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (r *postRepo) UpdateStatus(ctx context.Context, postID int64, status string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.posts[postID]; ok {
		p.Status = status
		r.posts[postID] = p
	}
	return nil
}

func (r *postRepo) SetPreviewToken(ctx context.Context, postID int64, token string, expiresAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.posts[postID]; ok {
		p.PreviewToken = token
		p.PreviewExpiresAt = expiresAt
		r.posts[postID] = p
	}
	return nil
}

func (r *postRepo) Remove(ctx context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.posts, id)
	for tid, t := range r.targets {
		if t.PostID == id {
			delete(r.targets, tid)
		}
	}
	kept := r.media[:0]
	for _, m := range r.media {
		if m.PostID != id {
			kept = append(kept, m)
		}
	}
	r.media = kept
	return nil
}

// post media

type mediaRepo Store

func (r *mediaRepo) Create(ctx context.Context, tx *sql.Tx, pm *models.PostMedia) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.media = append(r.media, *pm)
	return nil
}

func (r *mediaRepo) ListByPostID(ctx context.Context, postID int64) ([]*models.PostMedia, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.PostMedia
	for _, m := range r.media {
		if m.PostID == postID {
			m := m
			out = append(out, &m)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Platform != out[j].Platform {
			return out[i].Platform < out[j].Platform
		}
		return out[i].DisplayOrder < out[j].DisplayOrder
	})
	return out, nil
}

// post targets

type targetRepo Store

func (r *targetRepo) Create(ctx context.Context, tx *sql.Tx, t *models.PostTarget) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec := *t
	rec.ID = (*Store)(r).nextID()
	r.targets[rec.ID] = rec
	return rec.ID, nil
}

func (r *targetRepo) ListByPostID(ctx context.Context, postID int64) ([]*models.PostTarget, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.PostTarget
	for _, t := range r.targets {
		if t.PostID == postID {
			t := t
			out = append(out, &t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *targetRepo) UpdateResult(ctx context.Context, t *models.PostTarget) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.targets[t.ID]
	if !ok {
		return nil
	}
	cur.Status = t.Status
	cur.ExternalID = t.ExternalID
	cur.ErrorMessage = t.ErrorMessage
	cur.PublishedAt = t.PublishedAt
	r.targets[t.ID] = cur
	return nil
}

// posting history

type historyRepo Store

func (r *historyRepo) Create(ctx context.Context, ph *models.PostingHistory) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec := *ph
	rec.ID = (*Store)(r).nextID()
	r.history = append(r.history, rec)
	return rec.ID, nil
}

func (r *historyRepo) ListByUserID(ctx context.Context, userID int64) ([]*models.PostingHistory, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.PostingHistory
	for _, ph := range r.history {
		if ph.UserID == userID {
			ph := ph
			out = append(out, &ph)
		}
	}
	return out, nil
}

// media assets

type assetRepo Store

func (r *assetRepo) Create(ctx context.Context, ma *models.MediaAsset) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec := *ma
	rec.ID = (*Store)(r).nextID()
	r.assets[rec.ID] = rec
	return rec.ID, nil
}

func (r *assetRepo) GetByID(ctx context.Context, id int64) (*models.MediaAsset, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ma, ok := r.assets[id]
	if !ok {
		return nil, nil
	}
	return &ma, nil
}
