// Package worker mirrors expense changes into the spreadsheet export.
package worker

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"spendly/internal/amqp"
	"spendly/internal/core"
	"spendly/internal/log"
	"spendly/internal/sheets"
	"spendly/internal/storage"
)

// Stats counts handled messages.
type Stats struct {
	Exported  int64
	Removed   int64
	Discarded int64
	Failed    int64
}

// SyncWorker applies change messages to an exporter. When a store is set the
// current state of an expense is read from it, so stale or reordered
// messages converge on what is stored.
type SyncWorker struct {
	exporter sheets.ExpenseExporter
	store    storage.ExpenseStore
	logger   *log.Logger

	exported, removed, discarded, failed atomic.Int64
}

func NewSyncWorker(exporter sheets.ExpenseExporter, store storage.ExpenseStore, logger *log.Logger) *SyncWorker {
	if logger == nil {
		logger = log.Discard()
	}
	return &SyncWorker{
		exporter: exporter,
		store:    store,
		logger:   logger.WithComponent(log.ComponentWorker),
	}
}

// Handle processes one message. Errors wrapping amqp.ErrDiscard should not be
// retried.
func (w *SyncWorker) Handle(ctx context.Context, msg *amqp.ExpenseChangeMessage) error {
	w.logger.InfoContext(ctx, "Processing expense change",
		log.FieldOperation, msg.Op,
		log.FieldExpenseID, msg.ExpenseID,
		log.FieldUserID, msg.UserID)

	var err error
	switch msg.Op {
	case amqp.OpDeleted:
		err = w.remove(ctx, msg.ExpenseID)
	case amqp.OpCreated, amqp.OpUpdated:
		err = w.export(ctx, msg)
	default:
		err = fmt.Errorf("%w: unknown op %q", amqp.ErrDiscard, msg.Op)
	}
	return w.classify(ctx, msg, err)
}

func (w *SyncWorker) export(ctx context.Context, msg *amqp.ExpenseChangeMessage) error {
	e, err := msg.Expense()
	if err != nil {
		return fmt.Errorf("%w: %w", amqp.ErrDiscard, err)
	}

	if w.store != nil {
		current, err := w.store.GetExpense(ctx, msg.UserID, msg.ExpenseID)
		switch {
		case errors.Is(err, storage.ErrNotFound):
			// deleted after the message was published
			return w.remove(ctx, msg.ExpenseID)
		case err != nil:
			return fmt.Errorf("get expense from storage: %w", err)
		default:
			e = current
		}
	}

	if err := e.Validate(); err != nil {
		return fmt.Errorf("%w: %w", amqp.ErrDiscard, err)
	}
	if err := w.exporter.Upsert(ctx, e); err != nil {
		return fmt.Errorf("export expense: %w", err)
	}
	w.exported.Add(1)
	w.logger.InfoContext(ctx, "Exported expense",
		log.FieldExpenseID, e.ID,
		log.FieldAmount, core.FormatAmount(e.Amount),
		log.FieldCategory, string(e.Category))
	return nil
}

func (w *SyncWorker) remove(ctx context.Context, id string) error {
	if err := w.exporter.Remove(ctx, id); err != nil {
		return fmt.Errorf("remove exported expense: %w", err)
	}
	w.removed.Add(1)
	w.logger.InfoContext(ctx, "Removed exported expense", log.FieldExpenseID, id)
	return nil
}

// classify turns setup problems into discards so a disabled API does not
// loop the queue.
func (w *SyncWorker) classify(ctx context.Context, msg *amqp.ExpenseChangeMessage, err error) error {
	if err == nil {
		return nil
	}
	if url, ok := core.DetectSetupRequired(err); ok {
		w.discarded.Add(1)
		w.logger.ErrorContext(ctx, "Export backend needs setup, discarding message",
			log.FieldSetupURL, url,
			log.FieldExpenseID, msg.ExpenseID,
			log.FieldError, err)
		return fmt.Errorf("%w: %w", amqp.ErrDiscard, &core.SetupError{URL: url, Err: err})
	}
	if errors.Is(err, amqp.ErrDiscard) {
		w.discarded.Add(1)
		return err
	}
	w.failed.Add(1)
	return err
}

// Resync exports every stored expense of userID, continuing past failures.
func (w *SyncWorker) Resync(ctx context.Context, userID string) (int, error) {
	if w.store == nil {
		return 0, errors.New("resync requires a store")
	}
	expenses, err := w.store.ListExpenses(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("list expenses: %w", err)
	}

	synced := 0
	var errs []error
	for _, e := range expenses {
		if err := w.exporter.Upsert(ctx, e); err != nil {
			w.logger.ErrorContext(ctx, "Failed to export expense during resync",
				log.FieldExpenseID, e.ID, log.FieldError, err)
			errs = append(errs, err)
			continue
		}
		synced++
	}
	w.logger.InfoContext(ctx, "Resync completed",
		log.FieldUserID, userID,
		"total", len(expenses),
		"synced", synced,
		"errors", len(errs))
	return synced, errors.Join(errs...)
}

func (w *SyncWorker) Stats() Stats {
	return Stats{
		Exported:  w.exported.Load(),
		Removed:   w.removed.Load(),
		Discarded: w.discarded.Load(),
		Failed:    w.failed.Load(),
	}
}
