package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/sakif/repo-rater/internal/apperror"
	"github.com/sakif/repo-rater/internal/model"
	"github.com/sakif/repo-rater/internal/repository"
)

// =========================================================================
// FAKE STORE
// =========================================================================
//
// fakeStore implements the user, card and blacklist repositories in memory.
// Each *Err field, when set, makes the matching method fail so tests can
// drive the store-failure paths. The counters let tests assert that a
// rejected submission wrote nothing.

type fakeStore struct {
	mu        sync.Mutex
	users     map[string]*model.User // keyed by external id
	cards     []model.Card
	blacklist *model.Blacklist
	nextID    int

	getUserErr   error
	upsertErr    error
	blockErr     error
	createErr    error
	findURLErr   error
	findSinceErr error
	listErr      error
	blacklistErr error

	upserts        int
	blocks         int
	creates        int
	findURLCalls   int
	blacklistReads int
}

var (
	_ repository.UserRepository      = (*fakeStore)(nil)
	_ repository.CardRepository      = (*fakeStore)(nil)
	_ repository.BlacklistRepository = (*fakeStore)(nil)
)

func newFakeStore(words ...string) *fakeStore {
	bl := &model.Blacklist{}
	for _, w := range words {
		bl.Words = append(bl.Words, model.BlacklistEntry{Word: w, Category: model.CategoryOther})
	}
	return &fakeStore{
		users:     make(map[string]*model.User),
		blacklist: bl,
	}
}

func (f *fakeStore) id(prefix string) string {
	f.nextID++
	return fmt.Sprintf("%s-%d", prefix, f.nextID)
}

func (f *fakeStore) GetByExternalID(_ context.Context, externalID string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getUserErr != nil {
		return nil, f.getUserErr
	}
	u, ok := f.users[externalID]
	if !ok {
		return nil, apperror.NotFound("user", externalID)
	}
	copied := *u
	return &copied, nil
}

func (f *fakeStore) Upsert(_ context.Context, user *model.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.upserts++
	if f.upsertErr != nil {
		return f.upsertErr
	}
	if existing, ok := f.users[user.ExternalID]; ok {
		existing.Name = user.Name
		existing.Handle = user.Handle
		existing.Image = user.Image
		*user = *existing
		return nil
	}
	user.ID = f.id("user")
	copied := *user
	f.users[user.ExternalID] = &copied
	return nil
}

func (f *fakeStore) Block(_ context.Context, externalID, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.blocks++
	if f.blockErr != nil {
		return f.blockErr
	}
	u, ok := f.users[externalID]
	if !ok {
		return apperror.NotFound("user", externalID)
	}
	u.Blocked = true
	u.BlockReason = reason
	return nil
}

func (f *fakeStore) Create(_ context.Context, card *model.Card) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.creates++
	if f.createErr != nil {
		return f.createErr
	}
	card.ID = f.id("card")
	f.cards = append(f.cards, *card)
	return nil
}

func (f *fakeStore) FindByURL(_ context.Context, url string) (*model.Card, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.findURLCalls++
	if f.findURLErr != nil {
		return nil, f.findURLErr
	}
	for i := range f.cards {
		if f.cards[i].URL == url {
			c := f.cards[i]
			return &c, nil
		}
	}
	return nil, apperror.NotFound("card", url)
}

func (f *fakeStore) FindPostedSince(_ context.Context, userID string, since time.Time) (*model.Card, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.findSinceErr != nil {
		return nil, f.findSinceErr
	}
	for i := range f.cards {
		c := f.cards[i]
		if c.UserID != nil && *c.UserID == userID && c.PostedAt.After(since) {
			return &c, nil
		}
	}
	return nil, apperror.NotFound("card", userID)
}

func (f *fakeStore) List(_ context.Context, opts repository.ListOptions) ([]model.Card, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}

	out := make([]model.Card, len(f.cards))
	copy(out, f.cards)
	sort.SliceStable(out, func(i, j int) bool { return out[i].PostedAt.After(out[j].PostedAt) })

	for i := range out {
		if out[i].UserID == nil {
			continue
		}
		for _, u := range f.users {
			if u.ID == *out[i].UserID {
				copied := *u
				out[i].User = &copied
			}
		}
	}

	if opts.Offset >= len(out) {
		return []model.Card{}, nil
	}
	out = out[opts.Offset:]
	if opts.Limit > 0 && opts.Limit < len(out) {
		out = out[:opts.Limit]
	}
	return out, nil
}

func (f *fakeStore) GetBlacklist(_ context.Context) (*model.Blacklist, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.blacklistReads++
	if f.blacklistErr != nil {
		return nil, f.blacklistErr
	}
	return f.blacklist, nil
}

func (f *fakeStore) CreateBlacklistIfNotExists(_ context.Context, bl *model.Blacklist) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.blacklist.Words) > 0 {
		return false, nil
	}
	f.blacklist = bl
	return true, nil
}

// addCard stores a card directly, bypassing the pipeline.
func (f *fakeStore) addCard(c model.Card) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c.ID = f.id("card")
	f.cards = append(f.cards, c)
}

func (f *fakeStore) cardCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.cards)
}

func (f *fakeStore) user(externalID string) *model.User {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[externalID]
	if !ok {
		return nil
	}
	copied := *u
	return &copied
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// stateRecorder is a slog.Handler that keeps the target state of every
// "submission state" record, in order.
type stateRecorder struct {
	mu     sync.Mutex
	states []State
}

func (r *stateRecorder) Enabled(context.Context, slog.Level) bool { return true }

func (r *stateRecorder) Handle(_ context.Context, rec slog.Record) error {
	if rec.Message != "submission state" {
		return nil
	}
	rec.Attrs(func(a slog.Attr) bool {
		if a.Key == "to" {
			r.mu.Lock()
			r.states = append(r.states, State(a.Value.String()))
			r.mu.Unlock()
		}
		return true
	})
	return nil
}

func (r *stateRecorder) WithAttrs([]slog.Attr) slog.Handler { return r }
func (r *stateRecorder) WithGroup(string) slog.Handler      { return r }
