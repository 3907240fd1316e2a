// Package memory is an in-process sheets.ExpenseExporter.
package memory

import (
	"context"
	"sync"

	"spendly/internal/core"
	"spendly/internal/sheets"
)

var _ sheets.ExpenseExporter = (*Store)(nil)

type Store struct {
	mu    sync.Mutex
	rows  map[string]core.Expense
	order []string
	err   error
}

func New() *Store {
	return &Store{rows: make(map[string]core.Expense)}
}

// FailWith makes every following call return err until reset with nil.
func (s *Store) FailWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

func (s *Store) Upsert(_ context.Context, e core.Expense) error {
	if err := e.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	if _, ok := s.rows[e.ID]; !ok {
		s.order = append(s.order, e.ID)
	}
	s.rows[e.ID] = e
	return nil
}

func (s *Store) Remove(_ context.Context, expenseID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	if _, ok := s.rows[expenseID]; !ok {
		return nil
	}
	delete(s.rows, expenseID)
	kept := s.order[:0]
	for _, id := range s.order {
		if id != expenseID {
			kept = append(kept, id)
		}
	}
	s.order = kept
	return nil
}

// Rows returns the exported expenses in first-written order.
func (s *Store) Rows() []core.Expense {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.Expense, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.rows[id])
	}
	return out
}
