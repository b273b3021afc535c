// Package service contains the business logic layer of the application.
//
// THE LAYERS:
//
//	Handler (HTTP layer)     → parses requests, writes responses
//	Service (Business layer) → validates, enforces rules, orchestrates
//	Repository (Data layer)  → reads/writes the document store
//
// Services take repository interfaces, never a concrete store, so tests run
// against hand-written fakes and the server can pick SQLite or memory.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/sakif/repo-rater/internal/apperror"
	"github.com/sakif/repo-rater/internal/model"
	"github.com/sakif/repo-rater/internal/repository"
)

// RefreshAfter is how long the client waits before reloading the feed after
// a successful submission.
const RefreshAfter = 10 * time.Second

// Candidate is what a visitor submits.
type Candidate struct {
	RepoURL         string
	Comment         string
	Rating          int
	PostAsAnonymous bool
}

// Receipt confirms a committed submission.
type Receipt struct {
	CardID       string
	RefreshAfter time.Duration
}

// State is where a submission attempt is in its lifecycle.
//
//	Idle → Validating → Rejected
//	                  ↘ Writing → Committed
//	                            ↘ Failed
type State string

const (
	StateIdle       State = "idle"
	StateValidating State = "validating"
	StateRejected   State = "rejected"
	StateWriting    State = "writing"
	StateCommitted  State = "committed"
	StateFailed     State = "failed"
)

// Outcome maps the error returned by Submit to the terminal state it means.
// A store failure during the checks ends in StateFailed as well.
func Outcome(err error) State {
	switch {
	case err == nil:
		return StateCommitted
	case errors.Is(err, apperror.ErrStore):
		return StateFailed
	default:
		return StateRejected
	}
}

// SubmissionService runs the validation and anti-abuse pipeline for new
// cards and writes the ones that pass.
//
// RULE ORDER:
// Blocking rules run first, one after another, and the first failure ends
// the attempt (block check, content filter, rate limit). Field rules then
// all run and their messages are merged into one validation error, so the
// visitor sees every problem with the form at once.
//
// There is no transaction around the checks and the write. Two concurrent
// submissions of the same URL can both pass the uniqueness check.
type SubmissionService struct {
	users    repository.UserRepository
	cards    repository.CardRepository
	blocking []Rule
	fields   []Rule
	now      func() time.Time
	logger   *slog.Logger
}

func NewSubmissionService(
	users repository.UserRepository,
	cards repository.CardRepository,
	blacklist repository.BlacklistRepository,
	logger *slog.Logger,
) *SubmissionService {
	return &SubmissionService{
		users: users,
		cards: cards,
		blocking: []Rule{
			blockRule{users: users},
			contentRule{users: users, blacklist: blacklist},
			rateRule{cards: cards},
		},
		fields: []Rule{
			urlRule{cards: cards},
			commentRule{},
			ratingRule{},
		},
		now:    time.Now,
		logger: logger,
	}
}

// Submit validates c and, when every rule passes, creates the card.
// session is nil for an unauthenticated visitor.
//
// Errors are *apperror.AppError values: ErrBlocked, ErrContentRejected,
// ErrRateLimited, ErrValidation (with every failing field), or ErrStore when
// the store failed during a check or the write.
func (s *SubmissionService) Submit(ctx context.Context, c Candidate, session *model.Session) (*Receipt, error) {
	a := &Attempt{Candidate: c, Session: session, Now: s.now(), State: StateIdle}

	receipt, err := s.run(ctx, a)
	s.advance(a, Outcome(err))
	return receipt, err
}

func (s *SubmissionService) run(ctx context.Context, a *Attempt) (*Receipt, error) {
	s.advance(a, StateValidating)

	for _, rule := range s.blocking {
		if err := rule.Check(ctx, a); err != nil {
			return nil, s.reject(rule, a, err)
		}
	}

	invalid := make(map[string]string)
	for _, rule := range s.fields {
		err := rule.Check(ctx, a)
		if err == nil {
			continue
		}
		fields := apperror.FieldErrors(err)
		if fields == nil {
			return nil, s.reject(rule, a, err)
		}
		for field, msg := range fields {
			if _, seen := invalid[field]; !seen {
				invalid[field] = msg
			}
		}
	}
	if len(invalid) > 0 {
		err := apperror.FieldsInvalid(invalid)
		s.logger.Info("submission rejected",
			slog.String("rule", "fields"),
			slog.String("url", a.Candidate.RepoURL),
			slog.Int("fields", len(invalid)),
		)
		return nil, err
	}

	s.advance(a, StateWriting)
	return s.write(ctx, a)
}

// advance moves the attempt to the next state.
func (s *SubmissionService) advance(a *Attempt, to State) {
	s.logger.Debug("submission state",
		slog.String("from", string(a.State)),
		slog.String("to", string(to)),
		slog.String("url", a.Candidate.RepoURL),
	)
	a.State = to
}

func (s *SubmissionService) write(ctx context.Context, a *Attempt) (*Receipt, error) {
	card := &model.Card{
		URL:       a.Candidate.RepoURL,
		Comment:   a.Candidate.Comment,
		Rating:    a.Candidate.Rating,
		Anonymous: a.Candidate.PostAsAnonymous,
	}

	if a.Session != nil {
		user := model.UserFromSession(a.Session)
		if err := s.users.Upsert(ctx, user); err != nil {
			return nil, s.fail("upsert user", a, err)
		}
		card.UserID = &user.ID
	}

	card.PostedAt = s.now()
	if err := s.cards.Create(ctx, card); err != nil {
		return nil, s.fail("create card", a, err)
	}

	s.logger.Info("card created",
		slog.String("id", card.ID),
		slog.String("url", card.URL),
		slog.Bool("anonymous", card.Anonymous),
	)
	return &Receipt{CardID: card.ID, RefreshAfter: RefreshAfter}, nil
}

// reject passes rule rejections through and turns anything else into a
// store failure.
func (s *SubmissionService) reject(rule Rule, a *Attempt, err error) error {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) && !errors.Is(err, apperror.ErrNotFound) && !errors.Is(err, apperror.ErrStore) {
		s.logger.Info("submission rejected",
			slog.String("rule", rule.Name()),
			slog.String("url", a.Candidate.RepoURL),
			slog.String("reason", appErr.Message),
		)
		return err
	}
	return s.fail(rule.Name(), a, err)
}

func (s *SubmissionService) fail(step string, a *Attempt, err error) error {
	s.logger.Error("submission failed",
		slog.String("step", step),
		slog.String("url", a.Candidate.RepoURL),
		slog.String("error", err.Error()),
	)
	return apperror.Store(MsgSubmissionFailed, err)
}
