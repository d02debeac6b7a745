// Package service holds the Warbler business rules that sit above storage:
// signup, login and the follow/like helpers the CLI uses.
//
//	cmd/warbler → UserService (rules) → repository.Store (SQLite)
//	            ↘ auth.PasswordService (bcrypt)
//
// The service never reads HTTP requests or the environment. Everything it
// needs is injected through NewUserService.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/sakif/warbler/internal/apperror"
	"github.com/sakif/warbler/internal/auth"
	"github.com/sakif/warbler/internal/model"
	"github.com/sakif/warbler/internal/repository"
)

// UserService implements account and relationship operations.
//
// DEPENDENCIES (injected via NewUserService):
//   - store      repository.Store        → reads plus unit-of-work writes
//   - passwords  *auth.PasswordService   → bcrypt hashing and verification
//   - logger     *slog.Logger            → structured logging
type UserService struct {
	store     repository.Store
	passwords *auth.PasswordService
	logger    *slog.Logger
}

// NewUserService wires a UserService. A nil logger falls back to slog.Default.
func NewUserService(store repository.Store, passwords *auth.PasswordService, logger *slog.Logger) *UserService {
	if logger == nil {
		logger = slog.Default()
	}
	return &UserService{store: store, passwords: passwords, logger: logger}
}

// Signup builds a new user with a hashed password. The user is NOT saved:
// the caller adds it to a session and commits, which is where a duplicate
// or missing username/email is reported as apperror.ErrIntegrity.
//
// An empty imageURL means the default profile image.
func (s *UserService) Signup(username, email, password, imageURL string) (*model.User, error) {
	hash, err := s.passwords.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("service/user: signup %q: %w", username, err)
	}
	if imageURL == "" {
		imageURL = model.DefaultImageURL
	}
	return &model.User{
		Username: username,
		Email:    email,
		Password: hash,
		ImageURL: imageURL,
	}, nil
}

// Register is Signup followed by a one-shot commit.
func (s *UserService) Register(ctx context.Context, username, email, password, imageURL string) (*model.User, error) {
	u, err := s.Signup(username, email, password, imageURL)
	if err != nil {
		return nil, err
	}
	if err := s.apply(ctx, func(uow repository.UnitOfWork) { uow.AddUser(u) }); err != nil {
		return nil, fmt.Errorf("service/user: registering %q: %w", username, err)
	}
	s.logger.Info("user registered", slog.Int64("userID", u.ID), slog.String("username", u.Username))
	return u, nil
}

// Authenticate returns the user whose username and password match.
//
// A wrong password and an unknown username both return (nil, nil) so the
// caller cannot tell them apart. Only a storage failure is an error.
func (s *UserService) Authenticate(ctx context.Context, username, password string) (*model.User, error) {
	u, err := s.store.GetUserByUsername(ctx, username)
	if errors.Is(err, apperror.ErrNotFound) {
		s.logger.Debug("login failed: unknown user", slog.String("username", username))
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("service/user: looking up %q: %w", username, err)
	}

	err = s.passwords.Verify(u.Password, password)
	switch {
	case err == nil:
		s.logger.Info("user authenticated", slog.Int64("userID", u.ID))
		return u, nil
	case errors.Is(err, auth.ErrMismatch):
		s.logger.Debug("login failed: wrong password", slog.String("username", username))
		return nil, nil
	default:
		// A malformed stored hash can never match anything.
		s.logger.Warn("stored password hash unusable",
			slog.Int64("userID", u.ID),
			slog.String("error", err.Error()),
		)
		return nil, nil
	}
}

// IsFollowing reports whether u follows other.
func (s *UserService) IsFollowing(ctx context.Context, u, other *model.User) (bool, error) {
	return s.store.IsFollowing(ctx, u.ID, other.ID)
}

// IsFollowedBy reports whether other follows u.
func (s *UserService) IsFollowedBy(ctx context.Context, u, other *model.User) (bool, error) {
	return s.store.IsFollowedBy(ctx, u.ID, other.ID)
}

// Follow makes follower follow followed.
func (s *UserService) Follow(ctx context.Context, follower, followed *model.User) error {
	if err := s.apply(ctx, func(uow repository.UnitOfWork) { uow.Follow(follower, followed) }); err != nil {
		return fmt.Errorf("service/user: %s follows %s: %w", follower.Username, followed.Username, err)
	}
	s.logger.Info("follow added",
		slog.Int64("followerID", follower.ID),
		slog.Int64("followedID", followed.ID),
	)
	return nil
}

// Unfollow removes the follow edge. A missing edge is apperror.ErrNotFound.
func (s *UserService) Unfollow(ctx context.Context, follower, followed *model.User) error {
	if err := s.apply(ctx, func(uow repository.UnitOfWork) { uow.Unfollow(follower, followed) }); err != nil {
		return fmt.Errorf("service/user: %s unfollows %s: %w", follower.Username, followed.Username, err)
	}
	s.logger.Info("follow removed",
		slog.Int64("followerID", follower.ID),
		slog.Int64("followedID", followed.ID),
	)
	return nil
}

// ToggleLike likes m for u, or unlikes it when already liked. It returns
// whether the message is liked afterwards.
func (s *UserService) ToggleLike(ctx context.Context, u *model.User, m *model.Message) (bool, error) {
	liked, err := s.store.IsLiked(ctx, u.ID, m.ID)
	if err != nil {
		return false, fmt.Errorf("service/user: checking like: %w", err)
	}

	err = s.apply(ctx, func(uow repository.UnitOfWork) {
		if liked {
			uow.Unlike(u, m)
		} else {
			uow.Like(u, m)
		}
	})
	if err != nil {
		return liked, fmt.Errorf("service/user: toggling like on message %d: %w", m.ID, err)
	}

	s.logger.Debug("like toggled",
		slog.Int64("userID", u.ID),
		slog.Int64("messageID", m.ID),
		slog.Bool("liked", !liked),
	)
	return !liked, nil
}

// Post saves a new message authored by u.
func (s *UserService) Post(ctx context.Context, u *model.User, text string) (*model.Message, error) {
	if strings.TrimSpace(text) == "" {
		return nil, apperror.ValidationFailed("text", "message text is required")
	}
	if utf8.RuneCountInString(text) > model.MaxMessageLength {
		return nil, apperror.ValidationFailed("text",
			fmt.Sprintf("message text must be at most %d characters", model.MaxMessageLength))
	}

	m := &model.Message{Text: text, UserID: u.ID}
	if err := s.apply(ctx, func(uow repository.UnitOfWork) { uow.AddMessage(m) }); err != nil {
		return nil, fmt.Errorf("service/user: posting message: %w", err)
	}
	return m, nil
}

// apply runs fn against a fresh unit of work and commits it. On failure the
// queued work is discarded.
func (s *UserService) apply(ctx context.Context, fn func(uow repository.UnitOfWork)) error {
	uow := s.store.Begin()
	fn(uow)
	if err := uow.Commit(ctx); err != nil {
		uow.Rollback()
		return err
	}
	return nil
}
