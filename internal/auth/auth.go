// Package auth simulates sign-in. It checks that the fields are present and
// the password is long enough, then remembers the user. No credentials are
// stored or verified.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/safar/go-storefront/internal/kv"
	"github.com/safar/go-storefront/internal/models"
	"go.uber.org/zap"
)

const MinPasswordLength = 6

var ErrInvalidCredentials = errors.New("invalid credentials")

type Service struct {
	store  *kv.Store
	delay  time.Duration
	logger *zap.Logger
}

func NewService(store *kv.Store, delay time.Duration, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, delay: delay, logger: logger.Named("auth")}
}

// Login signs in as email. The display name is the part before '@'.
func (s *Service) Login(ctx context.Context, email, password string) (*models.User, error) {
	s.wait()
	if email == "" || len(password) < MinPasswordLength {
		return nil, ErrInvalidCredentials
	}
	name, _, _ := strings.Cut(email, "@")
	return s.remember(ctx, models.User{ID: uuid.NewString(), Name: name, Email: email})
}

func (s *Service) Signup(ctx context.Context, name, email, password string) (*models.User, error) {
	s.wait()
	if name == "" || email == "" || len(password) < MinPasswordLength {
		return nil, ErrInvalidCredentials
	}
	return s.remember(ctx, models.User{ID: uuid.NewString(), Name: name, Email: email})
}

func (s *Service) Logout(ctx context.Context) error {
	var current *models.User
	return s.store.Update(ctx, kv.KeyUser, &current, func() error {
		if current == nil {
			return kv.ErrSkipWrite
		}
		current = nil
		return nil
	})
}

// Current returns the signed-in user, or nil.
func (s *Service) Current(ctx context.Context) (*models.User, error) {
	var current *models.User
	if err := s.store.Load(ctx, kv.KeyUser, &current); err != nil {
		return nil, err
	}
	return current, nil
}

// wait runs to completion whatever the caller's context says.
func (s *Service) wait() {
	if s.delay > 0 {
		time.Sleep(s.delay)
	}
}

func (s *Service) remember(ctx context.Context, user models.User) (*models.User, error) {
	var current *models.User
	err := s.store.Update(ctx, kv.KeyUser, &current, func() error {
		current = &user
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("save user: %w", err)
	}
	s.logger.Info("signed in", zap.String("user_id", user.ID))
	return &user, nil
}
