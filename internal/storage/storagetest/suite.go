// Package storagetest holds the behaviour every storage.Store must share.
package storagetest

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"spendly/internal/core"
	"spendly/internal/storage"
)

// StoreSuite runs against the store returned by New before each test.
type StoreSuite struct {
	suite.Suite
	New   func() storage.Store
	store storage.Store
	ctx   context.Context
}

func (s *StoreSuite) SetupTest() {
	s.store = s.New()
	s.ctx = context.Background()
}

func (s *StoreSuite) TearDownTest() {
	if s.store != nil {
		s.store.Close()
	}
}

func (s *StoreSuite) user(email string) core.User {
	u, err := s.store.CreateUser(s.ctx, storage.UserRecord{
		User:         core.User{Email: email, DisplayName: "Test"},
		PasswordHash: "hash",
	})
	require.NoError(s.T(), err)
	return u
}

func (s *StoreSuite) expense(userID string, amount int64, ts time.Time) core.Expense {
	e, err := s.store.CreateExpense(s.ctx, core.Expense{
		UserID:      userID,
		Amount:      decimal.NewFromInt(amount),
		Category:    core.CategoryFood,
		Description: "item",
		Timestamp:   ts,
	})
	require.NoError(s.T(), err)
	return e
}

func (s *StoreSuite) TestCreateUserAndProfile() {
	u := s.user("Alice@Example.com ")
	assert.NotEmpty(s.T(), u.ID)
	assert.Equal(s.T(), "alice@example.com", u.Email)

	rec, err := s.store.GetUserByEmail(s.ctx, "ALICE@example.com")
	require.NoError(s.T(), err)
	assert.Equal(s.T(), u.ID, rec.User.ID)
	assert.Equal(s.T(), "hash", rec.PasswordHash)
	assert.Equal(s.T(), storage.ProviderPassword, rec.Provider)

	p, err := s.store.GetProfile(s.ctx, u.ID)
	require.NoError(s.T(), err)
	assert.True(s.T(), p.MonthlyBudget.Equal(core.DefaultMonthlyBudget), "default budget, got %s", p.MonthlyBudget)
}

func (s *StoreSuite) TestDuplicateEmail() {
	s.user("dup@example.com")
	_, err := s.store.CreateUser(s.ctx, storage.UserRecord{User: core.User{Email: "DUP@example.com"}})
	assert.ErrorIs(s.T(), err, storage.ErrEmailExists)
}

func (s *StoreSuite) TestMissingUser() {
	_, err := s.store.GetUserByID(s.ctx, "nope")
	assert.ErrorIs(s.T(), err, storage.ErrNotFound)
	_, err = s.store.GetUserByEmail(s.ctx, "nope@example.com")
	assert.ErrorIs(s.T(), err, storage.ErrNotFound)
	_, err = s.store.GetProfile(s.ctx, "nope")
	assert.ErrorIs(s.T(), err, storage.ErrNotFound)
	assert.ErrorIs(s.T(), s.store.UpdateBudget(s.ctx, "nope", decimal.NewFromInt(1)), storage.ErrNotFound)
}

func (s *StoreSuite) TestUpdateBudgetAndTouchLogin() {
	u := s.user("b@example.com")
	require.NoError(s.T(), s.store.UpdateBudget(s.ctx, u.ID, decimal.RequireFromString("1234.5")))
	at := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	require.NoError(s.T(), s.store.TouchLogin(s.ctx, u.ID, at))

	p, err := s.store.GetProfile(s.ctx, u.ID)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), "1234.5", p.MonthlyBudget.String())
	assert.True(s.T(), p.LastLogin.Equal(at))
}

func (s *StoreSuite) TestUpsertFederatedUser() {
	created, err := s.store.UpsertFederatedUser(s.ctx, storage.UserRecord{
		User:     core.User{Email: "fed@example.com", DisplayName: "Fed"},
		Provider: storage.ProviderGoogle,
		Subject:  "sub-1",
	})
	require.NoError(s.T(), err)

	again, err := s.store.UpsertFederatedUser(s.ctx, storage.UserRecord{
		User:     core.User{Email: "fed@example.com", PhotoURL: "https://img"},
		Provider: storage.ProviderGoogle,
		Subject:  "sub-1",
	})
	require.NoError(s.T(), err)
	assert.Equal(s.T(), created.ID, again.ID)
	assert.Equal(s.T(), "Fed", again.DisplayName)
	assert.Equal(s.T(), "https://img", again.PhotoURL)

	// existing password account is linked by email
	pw := s.user("linked@example.com")
	linked, err := s.store.UpsertFederatedUser(s.ctx, storage.UserRecord{
		User:     core.User{Email: "linked@example.com"},
		Provider: storage.ProviderGoogle,
		Subject:  "sub-2",
	})
	require.NoError(s.T(), err)
	assert.Equal(s.T(), pw.ID, linked.ID)

	_, err = s.store.GetProfile(s.ctx, created.ID)
	assert.NoError(s.T(), err)
}

func (s *StoreSuite) TestListExpensesNewestFirst() {
	u := s.user("list@example.com")
	base := time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)
	s.expense(u.ID, 1, base)
	s.expense(u.ID, 3, base.Add(2*time.Hour))
	s.expense(u.ID, 2, base.Add(time.Hour))

	other := s.user("other@example.com")
	s.expense(other.ID, 99, base.Add(3*time.Hour))

	got, err := s.store.ListExpenses(s.ctx, u.ID)
	require.NoError(s.T(), err)
	require.Len(s.T(), got, 3)
	assert.Equal(s.T(), int64(3), got[0].Amount.IntPart())
	assert.Equal(s.T(), int64(2), got[1].Amount.IntPart())
	assert.Equal(s.T(), int64(1), got[2].Amount.IntPart())
	assert.True(s.T(), got[0].Timestamp.Equal(base.Add(2*time.Hour)))

	empty, err := s.store.ListExpenses(s.ctx, "nobody")
	require.NoError(s.T(), err)
	assert.NotNil(s.T(), empty)
	assert.Empty(s.T(), empty)
}

func (s *StoreSuite) TestUpdateExpenseKeepsIdentity() {
	u := s.user("upd@example.com")
	ts := time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)
	e := s.expense(u.ID, 10, ts)

	got, err := s.store.UpdateExpense(s.ctx, u.ID, e.ID, core.ExpenseEdit{
		Amount:      decimal.RequireFromString("12.75"),
		Category:    core.CategoryTransport,
		Description: "taxi",
	})
	require.NoError(s.T(), err)
	assert.Equal(s.T(), e.ID, got.ID)
	assert.Equal(s.T(), u.ID, got.UserID)
	assert.True(s.T(), got.Timestamp.Equal(ts))
	assert.Equal(s.T(), "12.75", got.Amount.String())
	assert.Equal(s.T(), core.CategoryTransport, got.Category)
	assert.Equal(s.T(), "taxi", got.Description)
}

func (s *StoreSuite) TestExpensesAreOwnerScoped() {
	owner := s.user("owner@example.com")
	intruder := s.user("intruder@example.com")
	e := s.expense(owner.ID, 10, time.Now())

	_, err := s.store.GetExpense(s.ctx, intruder.ID, e.ID)
	assert.ErrorIs(s.T(), err, storage.ErrNotFound)
	_, err = s.store.UpdateExpense(s.ctx, intruder.ID, e.ID, core.ExpenseEdit{Amount: decimal.NewFromInt(1), Category: core.CategoryOther, Description: "x"})
	assert.ErrorIs(s.T(), err, storage.ErrNotFound)
	assert.ErrorIs(s.T(), s.store.DeleteExpense(s.ctx, intruder.ID, e.ID), storage.ErrNotFound)

	require.NoError(s.T(), s.store.DeleteExpense(s.ctx, owner.ID, e.ID))
	_, err = s.store.GetExpense(s.ctx, owner.ID, e.ID)
	assert.ErrorIs(s.T(), err, storage.ErrNotFound)
}

func (s *StoreSuite) TestPing() {
	assert.NoError(s.T(), s.store.Ping(s.ctx))
}
