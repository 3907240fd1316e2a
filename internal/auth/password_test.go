package auth

import (
	"context"
	"errors"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"spendly/internal/storage/memory"
)

func newAuthenticator() *PasswordAuthenticator {
	a := NewPasswordAuthenticator(memory.NewStore())
	a.cost = bcrypt.MinCost
	return a
}

func TestRegisterValidation(t *testing.T) {
	tests := []struct {
		name     string
		email    string
		password string
		confirm  string
		wantErr  error
	}{
		{"bad email", "nope", "secret1", "secret1", ErrInvalidEmail},
		{"short password", "a@b.co", "12345", "12345", ErrWeakPassword},
		{"mismatch", "a@b.co", "secret1", "secret2", ErrPasswordMismatch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newAuthenticator().Register(context.Background(), tt.email, tt.password, tt.confirm)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestRegisterAndAuthenticate(t *testing.T) {
	ctx := context.Background()
	a := newAuthenticator()

	user, err := a.Register(ctx, "  Mario@Example.com ", "secret1", "secret1")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if user.Email != "mario@example.com" || user.DisplayName != "mario" || user.ID == "" {
		t.Fatalf("unexpected user %+v", user)
	}

	if _, err := a.Register(ctx, "mario@example.com", "secret1", "secret1"); !errors.Is(err, ErrEmailExists) {
		t.Fatalf("expected ErrEmailExists, got %v", err)
	}

	got, err := a.Authenticate(ctx, "mario@example.com", "secret1")
	if err != nil || got.ID != user.ID {
		t.Fatalf("authenticate: %+v %v", got, err)
	}
	if _, err := a.Authenticate(ctx, "mario@example.com", "wrong!"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if _, err := a.Authenticate(ctx, "luigi@example.com", "secret1"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}
