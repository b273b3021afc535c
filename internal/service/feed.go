package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/sakif/repo-rater/internal/events"
	"github.com/sakif/repo-rater/internal/model"
	"github.com/sakif/repo-rater/internal/repository"
)

// MaxPreviewFetches bounds how many pages the feed fetches at once.
const MaxPreviewFetches = 8

// Previewer fetches link-preview metadata for a URL.
type Previewer interface {
	Preview(ctx context.Context, url string) (*model.Preview, error)
}

// FeedItem is one card as the feed displays it.
type FeedItem struct {
	ID       string         `json:"id"`
	URL      string         `json:"url"`
	Comment  string         `json:"comment"`
	Rating   int            `json:"rating"`
	PostedAt time.Time      `json:"postedAt"`
	Identity model.Identity `json:"identity"`
	// Preview is nil while unknown or when the page could not be fetched;
	// clients render a placeholder.
	Preview *model.Preview `json:"preview,omitempty"`
}

type FeedOptions struct {
	WithPreviews bool
	Limit        int
	Offset       int
}

// FeedService renders the card feed, newest first.
type FeedService struct {
	cards    repository.CardRepository
	previews Previewer
	notifier events.Notifier
	logger   *slog.Logger
}

func NewFeedService(
	cards repository.CardRepository,
	previews Previewer,
	notifier events.Notifier,
	logger *slog.Logger,
) *FeedService {
	return &FeedService{
		cards:    cards,
		previews: previews,
		notifier: notifier,
		logger:   logger,
	}
}

// List returns the feed. With WithPreviews set, every card's page is fetched
// in parallel; a failed fetch leaves that item's Preview nil and never fails
// the list.
func (s *FeedService) List(ctx context.Context, opts FeedOptions) ([]FeedItem, error) {
	cards, err := s.cards.List(ctx, repository.ListOptions{Limit: opts.Limit, Offset: opts.Offset})
	if err != nil {
		s.logger.Error("failed to list cards", slog.String("error", err.Error()))
		return nil, fmt.Errorf("listing cards: %w", err)
	}

	items := make([]FeedItem, len(cards))
	for i := range cards {
		c := &cards[i]
		items[i] = FeedItem{
			ID:       c.ID,
			URL:      c.URL,
			Comment:  c.Comment,
			Rating:   c.Rating,
			PostedAt: c.PostedAt,
			Identity: model.ResolveIdentity(c),
		}
	}

	if opts.WithPreviews && s.previews != nil {
		s.attachPreviews(ctx, items)
	}
	return items, nil
}

// attachPreviews writes each result back by index, so completion order
// cannot attach a preview to the wrong card.
func (s *FeedService) attachPreviews(ctx context.Context, items []FeedItem) {
	var g errgroup.Group
	g.SetLimit(MaxPreviewFetches)

	for i := range items {
		i := i
		g.Go(func() error {
			p, err := s.previews.Preview(ctx, items[i].URL)
			if err != nil {
				s.logger.Warn("preview unavailable",
					slog.String("card", items[i].ID),
					slog.String("url", items[i].URL),
					slog.String("error", err.Error()),
				)
				return nil
			}
			items[i].Preview = p
			return nil
		})
	}
	_ = g.Wait()
}

// Watch delivers the current feed to fn, then delivers the full feed again
// after every store change. It returns when ctx is done, when the event
// stream ends, or with the first error fn returns. Nothing is delivered
// after ctx is done.
//
// A failed refetch is logged and skipped; the next change retries.
func (s *FeedService) Watch(ctx context.Context, opts FeedOptions, fn func([]FeedItem) error) error {
	// Subscribe before the first read so a change landing in between
	// still triggers a refetch.
	changes, err := s.notifier.Subscribe(ctx)
	if err != nil {
		return fmt.Errorf("subscribing to feed changes: %w", err)
	}

	items, err := s.List(ctx, opts)
	if err != nil {
		return err
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if err := fn(items); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case _, ok := <-changes:
			if !ok {
				return ctx.Err()
			}
			drain(changes)

			items, err := s.List(ctx, opts)
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if err != nil {
				continue
			}
			if err := fn(items); err != nil {
				return err
			}
		}
	}
}

// drain discards queued events; the refetch that follows covers them.
func drain(ch <-chan events.Event) {
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				return
			}
		default:
			return
		}
	}
}
