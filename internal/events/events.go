// Package events carries "something changed in the store" notifications to
// live feed subscribers.
//
// Subscribers never apply events incrementally: any event means "re-query
// the full ordered list". That keeps delivery best-effort. A subscriber whose
// buffer is full already has a refetch pending, so dropping further events
// for it loses nothing.
package events

import (
	"context"
	"time"
)

// Event kinds.
const (
	CardCreated = "card.created"
	UserUpdated = "user.updated"
	UserBlocked = "user.blocked"
)

type Event struct {
	Kind string    `json:"kind"`
	ID   string    `json:"id"`
	At   time.Time `json:"at"`
}

// Notifier publishes and fans out change events.
type Notifier interface {
	Publish(ctx context.Context, ev Event) error
	// Subscribe returns a channel of events that is closed once ctx is done.
	Subscribe(ctx context.Context) (<-chan Event, error)
	Close() error
}

// subscriberBuffer is how many undelivered events a subscriber may hold.
const subscriberBuffer = 16
