package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"spendly/internal/auth"
	"spendly/internal/core"
	"spendly/internal/log"
	"spendly/internal/storage"
)

var ErrFederatedDisabled = errors.New("federated sign-in is not configured")

// Session is the result of a successful sign-in.
type Session struct {
	User      core.User
	Token     string
	ExpiresAt time.Time
}

// FederatedProvider runs an external sign-in flow.
type FederatedProvider interface {
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (auth.FederatedIdentity, error)
}

type AuthService struct {
	store     storage.UserStore
	passwords *auth.PasswordAuthenticator
	tokens    *auth.JWTManager
	federated FederatedProvider
	logger    *log.Logger
	now       func() time.Time
}

// NewAuthService builds the service. federated may be nil.
func NewAuthService(store storage.UserStore, tokens *auth.JWTManager, federated FederatedProvider, logger *log.Logger) *AuthService {
	if logger == nil {
		logger = log.Discard()
	}
	return &AuthService{
		store:     store,
		passwords: auth.NewPasswordAuthenticator(store),
		tokens:    tokens,
		federated: federated,
		logger:    logger.WithComponent(log.ComponentAuth),
		now:       time.Now,
	}
}

func (s *AuthService) FederatedEnabled() bool { return s.federated != nil }

// Register creates a password account and signs it in.
func (s *AuthService) Register(ctx context.Context, email, password, confirm string) (Session, error) {
	user, err := s.passwords.Register(ctx, email, password, confirm)
	if err != nil {
		s.logger.WarnContext(ctx, "Registration rejected", log.FieldOperation, log.OpRegister, log.FieldError, err)
		return Session{}, err
	}
	s.logger.InfoContext(ctx, "User registered", log.FieldOperation, log.OpRegister, log.FieldUserID, user.ID)
	return s.issue(ctx, user)
}

// Login verifies a password and records the sign-in.
func (s *AuthService) Login(ctx context.Context, email, password string) (Session, error) {
	user, err := s.passwords.Authenticate(ctx, email, password)
	if err != nil {
		s.logger.WarnContext(ctx, "Login failed", log.FieldOperation, log.OpLogin, log.FieldError, err)
		return Session{}, err
	}
	return s.signIn(ctx, user)
}

// FederatedURL returns the provider consent URL for state.
func (s *AuthService) FederatedURL(state string) (string, error) {
	if s.federated == nil {
		return "", ErrFederatedDisabled
	}
	return s.federated.AuthCodeURL(state), nil
}

// FederatedCallback completes the provider flow, linking or creating the
// account.
func (s *AuthService) FederatedCallback(ctx context.Context, code string) (Session, error) {
	if s.federated == nil {
		return Session{}, ErrFederatedDisabled
	}
	id, err := s.federated.Exchange(ctx, code)
	if err != nil {
		s.logger.WarnContext(ctx, "Federated sign-in failed", log.FieldOperation, log.OpLogin, log.FieldError, err)
		return Session{}, fmt.Errorf("federated sign-in: %w", err)
	}
	email, err := auth.NormalizeEmail(id.Email)
	if err != nil {
		return Session{}, err
	}
	user, err := s.store.UpsertFederatedUser(ctx, storage.UserRecord{
		User: core.User{
			Email:       email,
			DisplayName: id.DisplayName,
			PhotoURL:    id.PhotoURL,
		},
		Provider: id.Provider,
		Subject:  id.Subject,
	})
	if err != nil {
		return Session{}, core.AsSetupError(fmt.Errorf("upsert federated user: %w", err))
	}
	return s.signIn(ctx, user)
}

// Authenticate resolves a session token to its user.
func (s *AuthService) Authenticate(ctx context.Context, token string) (core.User, error) {
	claims, err := s.tokens.Validate(token)
	if err != nil {
		return core.User{}, err
	}
	user, err := s.store.GetUserByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return core.User{}, auth.ErrInvalidToken
		}
		return core.User{}, fmt.Errorf("get user: %w", err)
	}
	return user, nil
}

func (s *AuthService) signIn(ctx context.Context, user core.User) (Session, error) {
	if err := s.store.TouchLogin(ctx, user.ID, s.now()); err != nil {
		// stale last-login is not worth failing a sign-in
		s.logger.WarnContext(ctx, "Failed to record login", log.FieldUserID, user.ID, log.FieldError, err)
	}
	s.logger.InfoContext(ctx, "User signed in", log.FieldOperation, log.OpLogin, log.FieldUserID, user.ID)
	return s.issue(ctx, user)
}

func (s *AuthService) issue(_ context.Context, user core.User) (Session, error) {
	token, err := s.tokens.Generate(user)
	if err != nil {
		return Session{}, err
	}
	return Session{User: user, Token: token, ExpiresAt: s.now().Add(s.tokens.TTL())}, nil
}
