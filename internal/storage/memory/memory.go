// Package memory is an in-process storage.Store used for development and
// tests.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"spendly/internal/core"
	"spendly/internal/storage"
)

var _ storage.Store = (*Store)(nil)

type Store struct {
	mu       sync.RWMutex
	users    map[string]storage.UserRecord
	profiles map[string]core.Profile
	byEmail  map[string]string
	expenses map[string]map[string]core.Expense // user id -> expense id -> expense
	now      func() time.Time
}

func NewStore() *Store {
	return &Store{
		users:    make(map[string]storage.UserRecord),
		profiles: make(map[string]core.Profile),
		byEmail:  make(map[string]string),
		expenses: make(map[string]map[string]core.Expense),
		now:      time.Now,
	}
}

func (s *Store) Ping(context.Context) error { return nil }
func (s *Store) Close() error               { return nil }

func (s *Store) insertUser(rec storage.UserRecord) core.User {
	if rec.User.ID == "" {
		rec.User.ID = uuid.NewString()
	}
	if rec.Provider == "" {
		rec.Provider = storage.ProviderPassword
	}
	rec.User.Email = strings.ToLower(strings.TrimSpace(rec.User.Email))
	now := s.now()
	s.users[rec.User.ID] = rec
	s.byEmail[rec.User.Email] = rec.User.ID
	s.profiles[rec.User.ID] = core.Profile{
		UserID:        rec.User.ID,
		MonthlyBudget: core.DefaultMonthlyBudget,
		CreatedAt:     now,
		LastLogin:     now,
	}
	return rec.User
}

func (s *Store) CreateUser(_ context.Context, rec storage.UserRecord) (core.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byEmail[strings.ToLower(strings.TrimSpace(rec.User.Email))]; ok {
		return core.User{}, storage.ErrEmailExists
	}
	return s.insertUser(rec), nil
}

func (s *Store) GetUserByEmail(_ context.Context, email string) (storage.UserRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byEmail[strings.ToLower(strings.TrimSpace(email))]
	if !ok {
		return storage.UserRecord{}, storage.ErrNotFound
	}
	return s.users[id], nil
}

func (s *Store) GetUserByID(_ context.Context, id string) (core.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.users[id]
	if !ok {
		return core.User{}, storage.ErrNotFound
	}
	return rec.User, nil
}

func (s *Store) UpsertFederatedUser(_ context.Context, rec storage.UserRecord) (core.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := ""
	if rec.Subject != "" {
		for uid, u := range s.users {
			if u.Provider == rec.Provider && u.Subject == rec.Subject {
				id = uid
				break
			}
		}
	}
	if id == "" {
		id = s.byEmail[strings.ToLower(strings.TrimSpace(rec.User.Email))]
	}
	if id == "" {
		return s.insertUser(rec), nil
	}

	existing := s.users[id]
	if rec.User.DisplayName != "" {
		existing.User.DisplayName = rec.User.DisplayName
	}
	if rec.User.PhotoURL != "" {
		existing.User.PhotoURL = rec.User.PhotoURL
	}
	if existing.Subject == "" {
		existing.Subject = rec.Subject
	}
	s.users[id] = existing
	p := s.profiles[id]
	p.LastLogin = s.now()
	s.profiles[id] = p
	return existing.User, nil
}

func (s *Store) GetProfile(_ context.Context, userID string) (core.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[userID]
	if !ok {
		return core.Profile{}, storage.ErrNotFound
	}
	return p, nil
}

func (s *Store) UpdateBudget(_ context.Context, userID string, budget decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[userID]
	if !ok {
		return storage.ErrNotFound
	}
	p.MonthlyBudget = budget
	s.profiles[userID] = p
	return nil
}

func (s *Store) TouchLogin(_ context.Context, userID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[userID]
	if !ok {
		return storage.ErrNotFound
	}
	p.LastLogin = at
	s.profiles[userID] = p
	return nil
}

func (s *Store) ListExpenses(_ context.Context, userID string) ([]core.Expense, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]core.Expense, 0, len(s.expenses[userID]))
	for _, e := range s.expenses[userID] {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].Timestamp.After(out[j].Timestamp)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (s *Store) GetExpense(_ context.Context, userID, id string) (core.Expense, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.expenses[userID][id]
	if !ok {
		return core.Expense{}, storage.ErrNotFound
	}
	return e, nil
}

func (s *Store) CreateExpense(_ context.Context, e core.Expense) (core.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[e.UserID]; !ok {
		return core.Expense{}, storage.ErrNotFound
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if s.expenses[e.UserID] == nil {
		s.expenses[e.UserID] = make(map[string]core.Expense)
	}
	s.expenses[e.UserID][e.ID] = e
	return e, nil
}

func (s *Store) UpdateExpense(_ context.Context, userID, id string, edit core.ExpenseEdit) (core.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.expenses[userID][id]
	if !ok {
		return core.Expense{}, storage.ErrNotFound
	}
	e = e.Apply(edit)
	s.expenses[userID][id] = e
	return e, nil
}

func (s *Store) DeleteExpense(_ context.Context, userID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.expenses[userID][id]; !ok {
		return storage.ErrNotFound
	}
	delete(s.expenses[userID], id)
	return nil
}
