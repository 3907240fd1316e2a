package auth

import (
	"errors"
	"testing"
	"time"

	"spendly/internal/core"
)

func TestJWTRoundTrip(t *testing.T) {
	m := NewJWTManager("0123456789abcdef", time.Hour)
	tok, err := m.Generate(core.User{ID: "u1", Email: "a@b.c"})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	claims, err := m.Validate(tok)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if claims.UserID != "u1" || claims.Email != "a@b.c" {
		t.Fatalf("unexpected claims %+v", claims)
	}
}

func TestJWTValidateFailures(t *testing.T) {
	m := NewJWTManager("0123456789abcdef", time.Hour)
	tok, err := m.Generate(core.User{ID: "u1"})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	other := NewJWTManager("fedcba9876543210", time.Hour)
	expired := NewJWTManager("0123456789abcdef", time.Hour)
	expired.now = func() time.Time { return time.Now().Add(2 * time.Hour) }

	tests := []struct {
		name    string
		m       *JWTManager
		token   string
		wantErr error
	}{
		{"empty", m, "", ErrMissingToken},
		{"garbage", m, "not.a.token", ErrInvalidToken},
		{"wrong secret", other, tok, ErrInvalidToken},
		{"expired", expired, tok, ErrInvalidToken},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := tt.m.Validate(tt.token); !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestJWTGenerateRequiresUser(t *testing.T) {
	m := NewJWTManager("0123456789abcdef", time.Hour)
	if _, err := m.Generate(core.User{}); !errors.Is(err, core.ErrMissingOwner) {
		t.Fatalf("expected ErrMissingOwner, got %v", err)
	}
}
