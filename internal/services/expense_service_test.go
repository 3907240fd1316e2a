package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"spendly/internal/amqp"
	"spendly/internal/core"
	"spendly/internal/log"
	"spendly/internal/storage"
	"spendly/internal/storage/memory"
	"spendly/internal/stream"
)

type recordingPublisher struct {
	mu   sync.Mutex
	msgs []*amqp.ExpenseChangeMessage
	err  error
}

func (p *recordingPublisher) PublishExpenseChange(_ context.Context, msg *amqp.ExpenseChangeMessage) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.msgs = append(p.msgs, msg)
	return p.err
}

func (p *recordingPublisher) ops() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.msgs))
	for i, m := range p.msgs {
		out[i] = m.Op
	}
	return out
}

func newUser(t *testing.T, st storage.UserStore) core.User {
	t.Helper()
	u, err := st.CreateUser(context.Background(), storage.UserRecord{User: core.User{Email: "svc@example.com"}})
	if err != nil {
		t.Fatal(err)
	}
	return u
}

func edit(amount, desc string) core.ExpenseEdit {
	return core.ExpenseEdit{
		Amount:      decimal.RequireFromString(amount),
		Category:    core.CategoryFood,
		Description: desc,
	}
}

func TestExpenseService_CreateNotifies(t *testing.T) {
	ctx := context.Background()
	st := memory.NewStore()
	u := newUser(t, st)
	hub := stream.NewHub()
	sub := hub.Subscribe(u.ID)
	defer sub.Close()
	pub := &recordingPublisher{}

	svc := NewExpenseService(st, hub, pub, nil, log.Discard())
	fixed := time.Date(2024, 7, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return fixed }

	e, err := svc.Create(ctx, u.ID, edit("12.40", "  Lunch  "))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if e.ID == "" || e.Description != "Lunch" || !e.Timestamp.Equal(fixed) || e.UserID != u.ID {
		t.Fatalf("unexpected expense %+v", e)
	}

	select {
	case ev := <-sub.C():
		if ev.Kind != stream.ExpensesChanged {
			t.Fatalf("unexpected event %+v", ev)
		}
	default:
		t.Fatal("expected stream event")
	}
	if ops := pub.ops(); len(ops) != 1 || ops[0] != amqp.OpCreated {
		t.Fatalf("unexpected published ops %v", ops)
	}
}

func TestExpenseService_ValidationStopsWrite(t *testing.T) {
	ctx := context.Background()
	st := memory.NewStore()
	u := newUser(t, st)
	pub := &recordingPublisher{}
	svc := NewExpenseService(st, nil, pub, nil, nil)

	tests := []struct {
		name string
		edit core.ExpenseEdit
		want error
	}{
		{"zero amount", core.ExpenseEdit{Amount: decimal.Zero, Category: core.CategoryFood, Description: "x"}, core.ErrInvalidAmount},
		{"blank description", edit("1", "   "), core.ErrEmptyDescription},
		{"bad category", core.ExpenseEdit{Amount: decimal.NewFromInt(1), Category: "pets", Description: "x"}, core.ErrInvalidCategory},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.Create(ctx, u.ID, tt.edit); !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}

	list, _ := svc.List(ctx, u.ID)
	if len(list) != 0 || len(pub.ops()) != 0 {
		t.Fatalf("invalid input must not be stored or published: %v %v", list, pub.ops())
	}
}

func TestExpenseService_UpdateDelete(t *testing.T) {
	ctx := context.Background()
	st := memory.NewStore()
	u := newUser(t, st)
	pub := &recordingPublisher{}
	svc := NewExpenseService(st, stream.NewHub(), pub, nil, nil)

	e, err := svc.Create(ctx, u.ID, edit("5", "Coffee"))
	if err != nil {
		t.Fatal(err)
	}
	updated, err := svc.Update(ctx, u.ID, e.ID, edit("6", "Coffee and cake"))
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if !updated.Amount.Equal(decimal.NewFromInt(6)) || !updated.Timestamp.Equal(e.Timestamp) {
		t.Fatalf("unexpected update %+v", updated)
	}

	if _, err := svc.Update(ctx, "someone-else", e.ID, edit("6", "x")); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for foreign user, got %v", err)
	}

	if err := svc.Delete(ctx, u.ID, e.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := svc.Get(ctx, u.ID, e.ID); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
	want := []string{amqp.OpCreated, amqp.OpUpdated, amqp.OpDeleted}
	if ops := pub.ops(); len(ops) != 3 || ops[0] != want[0] || ops[1] != want[1] || ops[2] != want[2] {
		t.Fatalf("ops = %v, want %v", ops, want)
	}
}

func TestExpenseService_PublishFailureDoesNotFailWrite(t *testing.T) {
	ctx := context.Background()
	st := memory.NewStore()
	u := newUser(t, st)
	pub := &recordingPublisher{err: errors.New("broker down")}
	svc := NewExpenseService(st, nil, pub, nil, nil)

	if _, err := svc.Create(ctx, u.ID, edit("3", "Bread")); err != nil {
		t.Fatalf("create should succeed when publishing fails: %v", err)
	}
	list, _ := svc.List(ctx, u.ID)
	if len(list) != 1 {
		t.Fatalf("expected stored expense, got %v", list)
	}
}

func TestExpenseService_RecentAndReport(t *testing.T) {
	ctx := context.Background()
	st := memory.NewStore()
	u := newUser(t, st)
	svc := NewExpenseService(st, nil, nil, nil, nil)

	now := time.Date(2024, 3, 20, 12, 0, 0, 0, time.UTC)
	for i, ts := range []time.Time{now.Add(-time.Hour), now.Add(-10 * 24 * time.Hour), now.AddDate(0, -1, 0)} {
		svc.now = func() time.Time { return ts }
		if _, err := svc.Create(ctx, u.ID, edit("100", "item")); err != nil {
			t.Fatalf("create %d: %v", i, err)
		}
	}

	recent, err := svc.Recent(ctx, u.ID, now)
	if err != nil || len(recent) != 1 {
		t.Fatalf("recent = %v, %v", recent, err)
	}

	r, err := svc.Report(ctx, u.ID, 2024, time.March, decimal.NewFromInt(1000), time.UTC)
	if err != nil {
		t.Fatal(err)
	}
	if r.Count != 2 || !r.Total.Equal(decimal.NewFromInt(200)) || r.PercentOfBudget != 20 {
		t.Fatalf("unexpected report %+v", r)
	}
}

type failingStore struct {
	storage.ExpenseStore
	err error
}

func (f failingStore) ListExpenses(context.Context, string) ([]core.Expense, error) {
	return nil, f.err
}

func TestExpenseService_SetupErrorSurfaces(t *testing.T) {
	svc := NewExpenseService(failingStore{err: errors.New(
		"FAILED_PRECONDITION: The query requires an index. You can create it here: https://console.firebase.google.com/project/x/firestore/indexes?create=abc")}, nil, nil, nil, nil)

	_, err := svc.List(context.Background(), "u")
	if !errors.Is(err, core.ErrSetupRequired) {
		t.Fatalf("expected ErrSetupRequired, got %v", err)
	}
	if url, ok := core.DetectSetupRequired(err); !ok || url != "https://console.firebase.google.com/project/x/firestore/indexes?create=abc" {
		t.Fatalf("unexpected url %q", url)
	}
}
