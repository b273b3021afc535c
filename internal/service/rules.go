package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/sakif/repo-rater/internal/apperror"
	"github.com/sakif/repo-rater/internal/model"
	"github.com/sakif/repo-rater/internal/repository"
)

// Submission rule parameters and user-facing messages.
const (
	GitHubURLPrefix  = "https://github.com/"
	MaxCommentLength = 150
	MinRating        = 1
	MaxRating        = 5
	RateLimitWindow  = time.Minute

	AutoBlockReason = "Automatic block due to use of blacklisted words"

	MsgBlocked          = "Your account has been blocked from posting"
	MsgContentRejected  = "Your submission contains inappropriate content"
	MsgRateLimited      = "Please wait 1 minute before posting again"
	MsgInvalidURL       = "Please enter a valid GitHub repository URL"
	MsgDuplicateURL     = "This repository has already been rated"
	MsgCommentRequired  = "Please share your thoughts"
	MsgCommentTooLong   = "Thoughts must be 150 characters or less"
	MsgRatingRequired   = "Please select a rating"
	MsgSubmissionFailed = "Failed to submit repository. Please try again."
)

// Field names used in validation errors. They match the JSON request keys.
const (
	FieldRepoURL = "repoUrl"
	FieldComment = "comment"
	FieldRating  = "rating"
)

// Attempt is the state one submission carries through the rules.
type Attempt struct {
	Candidate Candidate
	Session   *model.Session
	Now       time.Time
	State     State

	// User is the stored record of the session's user, loaded by the block
	// check. Nil for visitors and for users who never posted or signed in.
	User *model.User
}

// Rule is a single submission check. A rule returns an *apperror.AppError for
// a rejection and any other error for a store failure.
type Rule interface {
	Name() string
	Check(ctx context.Context, a *Attempt) error
}

// blockRule rejects users whose account has been blocked.
type blockRule struct {
	users repository.UserRepository
}

func (blockRule) Name() string { return "block" }

func (r blockRule) Check(ctx context.Context, a *Attempt) error {
	if a.Session == nil {
		return nil
	}

	user, err := r.users.GetByExternalID(ctx, a.Session.ExternalID)
	if errors.Is(err, apperror.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("looking up user %s: %w", a.Session.ExternalID, err)
	}

	a.User = user
	if user.Blocked {
		return apperror.Blocked(MsgBlocked)
	}
	return nil
}

// contentRule rejects blacklisted words in the comment or URL. A signed-in
// submitter is blocked as a side effect, even though nothing else is written.
type contentRule struct {
	users     repository.UserRepository
	blacklist repository.BlacklistRepository
}

func (contentRule) Name() string { return "content" }

func (r contentRule) Check(ctx context.Context, a *Attempt) error {
	bl, err := r.blacklist.GetBlacklist(ctx)
	if err != nil {
		return fmt.Errorf("loading blacklist: %w", err)
	}

	if !ContainsBlacklisted(bl, a.Candidate.Comment) && !ContainsBlacklisted(bl, a.Candidate.RepoURL) {
		return nil
	}

	if a.Session != nil {
		if a.User == nil {
			user := model.UserFromSession(a.Session)
			if err := r.users.Upsert(ctx, user); err != nil {
				return fmt.Errorf("creating user %s before block: %w", a.Session.ExternalID, err)
			}
			a.User = user
		}
		if err := r.users.Block(ctx, a.Session.ExternalID, AutoBlockReason); err != nil {
			return fmt.Errorf("blocking user %s: %w", a.Session.ExternalID, err)
		}
		a.User.Blocked = true
		a.User.BlockReason = AutoBlockReason
	}

	return apperror.ContentRejected(FieldComment, MsgContentRejected)
}

// ContainsBlacklisted reports whether text contains any non-blank blacklisted
// word, ignoring case. Matching is by substring, not by token.
func ContainsBlacklisted(bl *model.Blacklist, text string) bool {
	if bl == nil {
		return false
	}
	text = strings.ToLower(text)
	for _, entry := range bl.Words {
		word := strings.ToLower(strings.TrimSpace(entry.Word))
		if word == "" {
			continue
		}
		if strings.Contains(text, word) {
			return true
		}
	}
	return false
}

// rateRule allows one card per user per RateLimitWindow.
type rateRule struct {
	cards repository.CardRepository
}

func (rateRule) Name() string { return "rate" }

func (r rateRule) Check(ctx context.Context, a *Attempt) error {
	if a.Session == nil || a.User == nil {
		return nil
	}

	_, err := r.cards.FindPostedSince(ctx, a.User.ID, a.Now.Add(-RateLimitWindow))
	if errors.Is(err, apperror.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("checking recent cards for %s: %w", a.User.ID, err)
	}
	return apperror.RateLimited(MsgRateLimited)
}

// urlRule checks the URL shape and, when the shape is valid, that nobody
// rated the repository before.
type urlRule struct {
	cards repository.CardRepository
}

func (urlRule) Name() string { return "url" }

func (r urlRule) Check(ctx context.Context, a *Attempt) error {
	url := a.Candidate.RepoURL
	if !strings.HasPrefix(url, GitHubURLPrefix) {
		return apperror.ValidationFailed(FieldRepoURL, MsgInvalidURL)
	}

	_, err := r.cards.FindByURL(ctx, url)
	if errors.Is(err, apperror.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("checking url %s: %w", url, err)
	}
	return apperror.ValidationFailed(FieldRepoURL, MsgDuplicateURL)
}

type commentRule struct{}

func (commentRule) Name() string { return "comment" }

func (commentRule) Check(_ context.Context, a *Attempt) error {
	comment := a.Candidate.Comment
	if strings.TrimSpace(comment) == "" {
		return apperror.ValidationFailed(FieldComment, MsgCommentRequired)
	}
	if utf8.RuneCountInString(comment) > MaxCommentLength {
		return apperror.ValidationFailed(FieldComment, MsgCommentTooLong)
	}
	return nil
}

type ratingRule struct{}

func (ratingRule) Name() string { return "rating" }

func (ratingRule) Check(_ context.Context, a *Attempt) error {
	if a.Candidate.Rating < MinRating || a.Candidate.Rating > MaxRating {
		return apperror.ValidationFailed(FieldRating, MsgRatingRequired)
	}
	return nil
}
