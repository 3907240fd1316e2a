// Package storage persists users, profiles and expenses.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"spendly/internal/core"
)

var (
	ErrNotFound    = errors.New("not found")
	ErrEmailExists = errors.New("email already registered")
)

// Provider values for UserRecord.Provider.
const (
	ProviderPassword = "password"
	ProviderGoogle   = "google"
)

// UserRecord is a user row including sign-in material.
type UserRecord struct {
	User         core.User
	PasswordHash string
	Provider     string
	Subject      string // federated account id
}

// UserStore manages accounts and their profile.
type UserStore interface {
	// CreateUser inserts a new account with a default budget.
	CreateUser(ctx context.Context, rec UserRecord) (core.User, error)
	GetUserByEmail(ctx context.Context, email string) (UserRecord, error)
	GetUserByID(ctx context.Context, id string) (core.User, error)
	// UpsertFederatedUser finds an account by provider subject or email and
	// creates one when none exists.
	UpsertFederatedUser(ctx context.Context, rec UserRecord) (core.User, error)
	GetProfile(ctx context.Context, userID string) (core.Profile, error)
	UpdateBudget(ctx context.Context, userID string, budget decimal.Decimal) error
	TouchLogin(ctx context.Context, userID string, at time.Time) error
}

// ExpenseStore manages a user's expenses. Every method is scoped to the
// owning user.
type ExpenseStore interface {
	// ListExpenses returns all expenses of userID ordered by timestamp,
	// newest first.
	ListExpenses(ctx context.Context, userID string) ([]core.Expense, error)
	GetExpense(ctx context.Context, userID, id string) (core.Expense, error)
	// CreateExpense stores e, assigning an ID when empty.
	CreateExpense(ctx context.Context, e core.Expense) (core.Expense, error)
	// UpdateExpense changes amount, category and description only.
	UpdateExpense(ctx context.Context, userID, id string, edit core.ExpenseEdit) (core.Expense, error)
	DeleteExpense(ctx context.Context, userID, id string) error
}

type Store interface {
	UserStore
	ExpenseStore
	Ping(ctx context.Context) error
	Close() error
}
