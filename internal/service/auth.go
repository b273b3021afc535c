package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sakif/repo-rater/internal/auth"
	"github.com/sakif/repo-rater/internal/model"
	"github.com/sakif/repo-rater/internal/repository"
)

// AuthService turns a completed GitHub sign-in into a stored user and a
// session token.
//
//	AuthHandler (HTTP) → AuthService → UserRepository
//	                                 ↘ TokenService (JWT)
type AuthService struct {
	users  repository.UserRepository
	tokens *auth.TokenService
	logger *slog.Logger
}

func NewAuthService(users repository.UserRepository, tokens *auth.TokenService, logger *slog.Logger) *AuthService {
	return &AuthService{
		users:  users,
		tokens: tokens,
		logger: logger,
	}
}

// AuthResult bundles the stored user and the issued token so the handler
// can set the cookie and respond in one step.
type AuthResult struct {
	User    *model.User
	Session *model.Session
	Token   string
}

// SignIn upserts the GitHub user (create on first sign-in, refresh name,
// handle and avatar afterwards) and issues a session token.
//
// Blocked users can still sign in. The block only stops them from posting.
func (s *AuthService) SignIn(ctx context.Context, ghUser *auth.GitHubUser) (*AuthResult, error) {
	if ghUser == nil {
		return nil, fmt.Errorf("service/auth: GitHub user must not be nil")
	}

	sess := ghUser.Session()
	user := model.UserFromSession(sess)
	if err := s.users.Upsert(ctx, user); err != nil {
		return nil, fmt.Errorf("service/auth: upserting user (externalID=%s): %w", sess.ExternalID, err)
	}

	s.logger.Info("user signed in via GitHub",
		slog.String("userID", user.ID),
		slog.String("handle", user.Handle),
		slog.Bool("blocked", user.Blocked),
	)

	token, err := s.tokens.Generate(sess)
	if err != nil {
		return nil, fmt.Errorf("service/auth: generating token for user %s: %w", user.ID, err)
	}

	return &AuthResult{User: user, Session: sess, Token: token}, nil
}
