// Package services orchestrates the store, live streams and the export
// queue behind the HTTP handlers.
package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"spendly/internal/amqp"
	"spendly/internal/core"
	"spendly/internal/log"
	"spendly/internal/metrics"
	"spendly/internal/storage"
	"spendly/internal/stream"
)

// ChangePublisher sends expense change notifications to the export queue.
type ChangePublisher interface {
	PublishExpenseChange(ctx context.Context, msg *amqp.ExpenseChangeMessage) error
}

// ExpenseService writes through the store first and only then notifies
// subscribers and the export queue.
type ExpenseService struct {
	store     storage.ExpenseStore
	hub       *stream.Hub
	publisher ChangePublisher
	metrics   *metrics.Metrics
	logger    *log.Logger
	now       func() time.Time
}

// NewExpenseService builds the service. hub, publisher and m may be nil.
func NewExpenseService(store storage.ExpenseStore, hub *stream.Hub, publisher ChangePublisher, m *metrics.Metrics, logger *log.Logger) *ExpenseService {
	if logger == nil {
		logger = log.Discard()
	}
	return &ExpenseService{
		store:     store,
		hub:       hub,
		publisher: publisher,
		metrics:   m,
		logger:    logger.WithComponent(log.ComponentExpense),
		now:       time.Now,
	}
}

// List returns all expenses of userID, newest first.
func (s *ExpenseService) List(ctx context.Context, userID string) ([]core.Expense, error) {
	expenses, err := s.store.ListExpenses(ctx, userID)
	if err != nil {
		return nil, core.AsSetupError(fmt.Errorf("list expenses: %w", err))
	}
	return expenses, nil
}

func (s *ExpenseService) Get(ctx context.Context, userID, id string) (core.Expense, error) {
	e, err := s.store.GetExpense(ctx, userID, id)
	if err != nil {
		return core.Expense{}, core.AsSetupError(fmt.Errorf("get expense: %w", err))
	}
	return e, nil
}

// Create stamps a new expense with the current time and stores it.
func (s *ExpenseService) Create(ctx context.Context, userID string, edit core.ExpenseEdit) (core.Expense, error) {
	e := core.Expense{UserID: userID, Timestamp: s.now()}.Apply(edit)
	if err := e.Validate(); err != nil {
		return core.Expense{}, err
	}

	saved, err := s.store.CreateExpense(ctx, e)
	if err != nil {
		return core.Expense{}, core.AsSetupError(fmt.Errorf("save expense: %w", err))
	}

	s.logChange(ctx, log.OpCreate, saved)
	s.notify(ctx, amqp.OpCreated, saved)
	return saved, nil
}

// Update changes amount, category and description of an existing expense.
func (s *ExpenseService) Update(ctx context.Context, userID, id string, edit core.ExpenseEdit) (core.Expense, error) {
	edit.Description = strings.TrimSpace(edit.Description)
	if err := edit.Validate(); err != nil {
		return core.Expense{}, err
	}

	saved, err := s.store.UpdateExpense(ctx, userID, id, edit)
	if err != nil {
		return core.Expense{}, core.AsSetupError(fmt.Errorf("update expense: %w", err))
	}

	s.logChange(ctx, log.OpUpdate, saved)
	s.notify(ctx, amqp.OpUpdated, saved)
	return saved, nil
}

func (s *ExpenseService) Delete(ctx context.Context, userID, id string) error {
	if err := s.store.DeleteExpense(ctx, userID, id); err != nil {
		return core.AsSetupError(fmt.Errorf("delete expense: %w", err))
	}

	deleted := core.Expense{ID: id, UserID: userID}
	s.logger.InfoContext(ctx, "Expense deleted",
		log.FieldOperation, log.OpDelete,
		log.FieldExpenseID, id,
		log.FieldUserID, userID)
	s.notify(ctx, amqp.OpDeleted, deleted)
	return nil
}

// Recent returns the recent-activity feed of userID at now.
func (s *ExpenseService) Recent(ctx context.Context, userID string, now time.Time) ([]core.Expense, error) {
	expenses, err := s.List(ctx, userID)
	if err != nil {
		return nil, err
	}
	return core.RecentActivity(expenses, now), nil
}

// Report builds the monthly report of userID against budget.
func (s *ExpenseService) Report(ctx context.Context, userID string, year int, month time.Month, budget decimal.Decimal, loc *time.Location) (core.MonthlyReport, error) {
	expenses, err := s.List(ctx, userID)
	if err != nil {
		return core.MonthlyReport{}, err
	}
	return core.BuildMonthlyReport(expenses, year, int(month), budget, loc), nil
}

func (s *ExpenseService) logChange(ctx context.Context, op string, e core.Expense) {
	fields := log.NewFields().
		WithOperation(op).
		WithExpense(e.ID, e.UserID, e.Description, core.FormatAmount(e.Amount), string(e.Category))
	s.logger.InfoContext(ctx, "Expense saved", fields.ToSlice()...)
}

// notify fans the change out. Publishing failures never fail the write that
// already succeeded.
func (s *ExpenseService) notify(ctx context.Context, op string, e core.Expense) {
	s.metrics.ExpenseWritten(op)

	if s.hub != nil {
		s.hub.Publish(stream.Event{Kind: stream.ExpensesChanged, UserID: e.UserID})
	}

	if s.publisher == nil {
		s.logger.DebugContext(ctx, "AMQP publisher not configured, skipping change message")
		return
	}
	if err := s.publisher.PublishExpenseChange(ctx, amqp.NewExpenseChangeMessage(op, e)); err != nil {
		s.metrics.PublishFailed()
		fields := log.NewFields().WithOperation(op).WithError(err)
		fields[log.FieldExpenseID] = e.ID
		s.logger.ErrorContext(ctx, "Failed to publish expense change", fields.ToSlice()...)
	}
}
