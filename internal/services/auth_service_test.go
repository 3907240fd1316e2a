package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"spendly/internal/auth"
	"spendly/internal/storage/memory"
)

type fakeFederated struct {
	identity auth.FederatedIdentity
	err      error
}

func (f fakeFederated) AuthCodeURL(state string) string {
	return "https://accounts.example.com/auth?state=" + state
}

func (f fakeFederated) Exchange(context.Context, string) (auth.FederatedIdentity, error) {
	return f.identity, f.err
}

func newAuthService(federated FederatedProvider) (*AuthService, *memory.Store) {
	st := memory.NewStore()
	return NewAuthService(st, auth.NewJWTManager("0123456789abcdef", time.Hour), federated, nil), st
}

func TestAuthService_RegisterLoginAuthenticate(t *testing.T) {
	ctx := context.Background()
	svc, _ := newAuthService(nil)

	reg, err := svc.Register(ctx, "ana@example.com", "hunter2", "hunter2")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if reg.Token == "" || reg.User.ID == "" || !reg.ExpiresAt.After(time.Now()) {
		t.Fatalf("unexpected session %+v", reg)
	}

	login, err := svc.Login(ctx, "ana@example.com", "hunter2")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	user, err := svc.Authenticate(ctx, login.Token)
	if err != nil || user.ID != reg.User.ID {
		t.Fatalf("authenticate: %+v %v", user, err)
	}

	if _, err := svc.Login(ctx, "ana@example.com", "wrong-pass"); !errors.Is(err, auth.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if _, err := svc.Register(ctx, "ana@example.com", "hunter2", "hunter2"); !errors.Is(err, auth.ErrEmailExists) {
		t.Fatalf("expected ErrEmailExists, got %v", err)
	}
}

func TestAuthService_AuthenticateRejects(t *testing.T) {
	ctx := context.Background()
	svc, _ := newAuthService(nil)

	if _, err := svc.Authenticate(ctx, "garbage"); !errors.Is(err, auth.ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}

	// a valid token for a user the store does not know
	other, _ := newAuthService(nil)
	s, err := other.Register(ctx, "ghost@example.com", "secret1", "secret1")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Authenticate(ctx, s.Token); !errors.Is(err, auth.ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for unknown user, got %v", err)
	}
}

func TestAuthService_Federated(t *testing.T) {
	ctx := context.Background()

	disabled, _ := newAuthService(nil)
	if _, err := disabled.FederatedURL("s"); !errors.Is(err, ErrFederatedDisabled) {
		t.Fatalf("expected ErrFederatedDisabled, got %v", err)
	}

	svc, st := newAuthService(fakeFederated{identity: auth.FederatedIdentity{
		Provider: "google", Subject: "sub-9", Email: "Fed@Example.com", DisplayName: "Fed",
	}})
	url, err := svc.FederatedURL("abc")
	if err != nil || url == "" {
		t.Fatalf("url: %q %v", url, err)
	}

	first, err := svc.FederatedCallback(ctx, "code")
	if err != nil {
		t.Fatalf("callback: %v", err)
	}
	second, err := svc.FederatedCallback(ctx, "code")
	if err != nil {
		t.Fatalf("second callback: %v", err)
	}
	if first.User.ID != second.User.ID || first.User.Email != "fed@example.com" {
		t.Fatalf("federated sign-in should reuse the account: %+v %+v", first.User, second.User)
	}
	if _, err := st.GetProfile(ctx, first.User.ID); err != nil {
		t.Fatalf("profile missing: %v", err)
	}

	failing, _ := newAuthService(fakeFederated{err: errors.New("denied")})
	if _, err := failing.FederatedCallback(ctx, "code"); err == nil {
		t.Fatal("expected error")
	}
}
