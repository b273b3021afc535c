package events

import (
	"context"
	"log/slog"

	"github.com/sakif/repo-rater/internal/model"
	"github.com/sakif/repo-rater/internal/repository"
)

var _ repository.Store = (*PublishingStore)(nil)

// PublishingStore decorates a Store so every successful write that can change
// what the feed shows also publishes an event. A failed publish is logged and
// never fails the write: the data is already committed.
type PublishingStore struct {
	repository.Store
	notifier Notifier
	logger   *slog.Logger
}

func NewPublishingStore(store repository.Store, notifier Notifier, logger *slog.Logger) *PublishingStore {
	return &PublishingStore{Store: store, notifier: notifier, logger: logger}
}

func (s *PublishingStore) Create(ctx context.Context, card *model.Card) error {
	if err := s.Store.Create(ctx, card); err != nil {
		return err
	}
	s.publish(ctx, Event{Kind: CardCreated, ID: card.ID, At: card.PostedAt})
	return nil
}

func (s *PublishingStore) Upsert(ctx context.Context, user *model.User) error {
	if err := s.Store.Upsert(ctx, user); err != nil {
		return err
	}
	s.publish(ctx, Event{Kind: UserUpdated, ID: user.ID, At: user.UpdatedAt})
	return nil
}

func (s *PublishingStore) Block(ctx context.Context, externalID, reason string) error {
	if err := s.Store.Block(ctx, externalID, reason); err != nil {
		return err
	}
	s.publish(ctx, Event{Kind: UserBlocked, ID: externalID})
	return nil
}

func (s *PublishingStore) publish(ctx context.Context, ev Event) {
	if err := s.notifier.Publish(context.WithoutCancel(ctx), ev); err != nil {
		s.logger.Warn("failed to publish feed event",
			slog.String("kind", ev.Kind),
			slog.String("id", ev.ID),
			slog.String("error", err.Error()),
		)
	}
}
