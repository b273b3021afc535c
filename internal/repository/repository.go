// Package repository declares the document-store contracts the services
// depend on. Implementations live in subpackages (sqlite, memory).
//
// Lookups that find nothing return an apperror.ErrNotFound error, so callers
// can tell "absent" apart from a failing store with errors.Is.
package repository

import (
	"context"
	"time"

	"github.com/sakif/repo-rater/internal/model"
)

type ListOptions struct {
	Limit  int // <= 0 means no limit
	Offset int
}

type UserRepository interface {
	GetByExternalID(ctx context.Context, externalID string) (*model.User, error)
	// Upsert creates the user on first sight, otherwise patches name, handle
	// and image. On return user holds the stored record, block state included.
	Upsert(ctx context.Context, user *model.User) error
	Block(ctx context.Context, externalID, reason string) error
}

type CardRepository interface {
	// Create assigns the card an ID. PostedAt is kept if set, else set to now.
	Create(ctx context.Context, card *model.Card) error
	FindByURL(ctx context.Context, url string) (*model.Card, error)
	// FindPostedSince returns a card by userID posted strictly after since.
	FindPostedSince(ctx context.Context, userID string, since time.Time) (*model.Card, error)
	// List returns cards newest first with Card.User resolved.
	List(ctx context.Context, opts ListOptions) ([]model.Card, error)
}

type BlacklistRepository interface {
	// GetBlacklist returns an empty list when no configuration exists.
	GetBlacklist(ctx context.Context) (*model.Blacklist, error)
	CreateBlacklistIfNotExists(ctx context.Context, bl *model.Blacklist) (bool, error)
}

// Store is the whole document store as the server wires it.
type Store interface {
	UserRepository
	CardRepository
	BlacklistRepository
	Close() error
}
