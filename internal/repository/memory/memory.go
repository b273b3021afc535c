// Package memory is an in-process Store backed by maps. It is selected with
// store_type=memory and loses everything on restart.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rs/xid"
	"github.com/sakif/repo-rater/internal/apperror"
	"github.com/sakif/repo-rater/internal/model"
	"github.com/sakif/repo-rater/internal/repository"
)

var _ repository.Store = (*Store)(nil)

type Store struct {
	mu        sync.RWMutex
	users     map[string]*model.User // keyed by external id
	cards     []model.Card           // insertion order
	blacklist *model.Blacklist
	now       func() time.Time
}

func New() *Store {
	return &Store{
		users: make(map[string]*model.User),
		now:   time.Now,
	}
}

func (s *Store) Close() error { return nil }

func (s *Store) GetByExternalID(_ context.Context, externalID string) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[externalID]
	if !ok {
		return nil, apperror.NotFound("user", externalID)
	}
	copied := *u
	return &copied, nil
}

func (s *Store) Upsert(_ context.Context, user *model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if existing, ok := s.users[user.ExternalID]; ok {
		existing.Name = user.Name
		existing.Handle = user.Handle
		existing.Image = user.Image
		existing.UpdatedAt = now
		*user = *existing
		return nil
	}

	user.ID = xid.New().String()
	user.Blocked = false
	user.BlockReason = ""
	user.CreatedAt = now
	user.UpdatedAt = now
	stored := *user
	s.users[user.ExternalID] = &stored
	return nil
}

func (s *Store) Block(_ context.Context, externalID, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[externalID]
	if !ok {
		return apperror.NotFound("user", externalID)
	}
	u.Blocked = true
	u.BlockReason = reason
	u.UpdatedAt = s.now()
	return nil
}

func (s *Store) Create(_ context.Context, card *model.Card) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	card.ID = xid.New().String()
	if card.PostedAt.IsZero() {
		card.PostedAt = s.now()
	}
	stored := *card
	stored.User = nil
	s.cards = append(s.cards, stored)
	return nil
}

func (s *Store) FindByURL(_ context.Context, url string) (*model.Card, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, c := range s.cards {
		if c.URL == url {
			found := c
			return &found, nil
		}
	}
	return nil, apperror.NotFound("card", url)
}

func (s *Store) FindPostedSince(_ context.Context, userID string, since time.Time) (*model.Card, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var newest *model.Card
	for i := range s.cards {
		c := s.cards[i]
		if c.UserID == nil || *c.UserID != userID || !c.PostedAt.After(since) {
			continue
		}
		if newest == nil || c.PostedAt.After(newest.PostedAt) {
			found := c
			newest = &found
		}
	}
	if newest == nil {
		return nil, apperror.NotFound("recent card for user", userID)
	}
	return newest, nil
}

// List mirrors the SQL ordering: posted_at DESC, then id DESC.
func (s *Store) List(_ context.Context, opts repository.ListOptions) ([]model.Card, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	byID := make(map[string]*model.User, len(s.users))
	for _, u := range s.users {
		byID[u.ID] = u
	}

	cards := make([]model.Card, 0, len(s.cards))
	for _, c := range s.cards {
		if c.UserID != nil {
			if u, ok := byID[*c.UserID]; ok {
				copied := *u
				c.User = &copied
			}
		}
		cards = append(cards, c)
	}

	sort.SliceStable(cards, func(i, j int) bool {
		if cards[i].PostedAt.Equal(cards[j].PostedAt) {
			return cards[i].ID > cards[j].ID
		}
		return cards[i].PostedAt.After(cards[j].PostedAt)
	})

	if opts.Offset > 0 {
		if opts.Offset >= len(cards) {
			return []model.Card{}, nil
		}
		cards = cards[opts.Offset:]
	}
	if opts.Limit > 0 && opts.Limit < len(cards) {
		cards = cards[:opts.Limit]
	}
	return cards, nil
}

func (s *Store) GetBlacklist(_ context.Context) (*model.Blacklist, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.blacklist == nil {
		return &model.Blacklist{Words: []model.BlacklistEntry{}}, nil
	}
	words := make([]model.BlacklistEntry, len(s.blacklist.Words))
	copy(words, s.blacklist.Words)
	return &model.Blacklist{Words: words}, nil
}

func (s *Store) CreateBlacklistIfNotExists(_ context.Context, bl *model.Blacklist) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.blacklist != nil {
		return false, nil
	}
	words := make([]model.BlacklistEntry, len(bl.Words))
	copy(words, bl.Words)
	s.blacklist = &model.Blacklist{Words: words}
	return true, nil
}
