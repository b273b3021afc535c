package events

import (
	"context"
	"sync"
)

var _ Notifier = (*Local)(nil)

// Local fans events out to subscribers inside this process. It is used when
// no Redis URL is configured (single instance deployments, tests).
type Local struct {
	mu     sync.Mutex
	subs   map[int]chan Event
	nextID int
	closed bool
}

func NewLocal() *Local {
	return &Local{subs: make(map[int]chan Event)}
}

func (l *Local) Publish(_ context.Context, ev Event) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, ch := range l.subs {
		select {
		case ch <- ev:
		default: // subscriber already has a refetch pending
		}
	}
	return nil
}

func (l *Local) Subscribe(ctx context.Context) (<-chan Event, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	ch := make(chan Event, subscriberBuffer)
	if l.closed {
		close(ch)
		return ch, nil
	}

	id := l.nextID
	l.nextID++
	l.subs[id] = ch

	go func() {
		<-ctx.Done()
		l.remove(id)
	}()
	return ch, nil
}

func (l *Local) remove(id int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if ch, ok := l.subs[id]; ok {
		delete(l.subs, id)
		close(ch)
	}
}

// Close ends every subscription.
func (l *Local) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	for id, ch := range l.subs {
		delete(l.subs, id)
		close(ch)
	}
	l.closed = true
	return nil
}
