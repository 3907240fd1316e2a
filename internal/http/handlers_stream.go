package http

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"spendly/internal/app"
	"spendly/internal/core"
	"spendly/internal/log"
	"spendly/internal/stream"
)

// handleStream pushes the dashboard view model over Server-Sent Events. The
// connection owns one app.State and changes it only through app.Reduce.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user := currentUser(r)
	logger := log.FromContext(ctx).WithComponent(log.ComponentStream)
	rc := http.NewResponseController(w)

	sub := s.deps.Hub.Subscribe(user.ID)
	defer sub.Close()
	s.deps.Metrics.StreamOpened()
	defer s.deps.Metrics.StreamClosed()

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-store")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	view := app.ViewDashboard
	if v, ok := app.ParseView(r.URL.Query().Get("view")); ok {
		view = v
	}
	state := app.Reduce(app.Initial(), app.AuthChanged{User: &user})
	state = app.Reduce(state, app.Navigate{View: view})
	state = s.reloadExpenses(ctx, state, user.ID)
	state = s.reloadBudget(ctx, state, user.ID)

	send := func(st app.State) bool {
		if st.SetupURL != "" {
			if err := writeEvent(w, "setup_required", map[string]string{"url": st.SetupURL}); err != nil {
				return false
			}
		}
		model := app.Dashboard(st, s.now(), s.deps.Location)
		if err := writeEvent(w, "state", toDashboardJSON(model, s.deps.Location)); err != nil {
			return false
		}
		return rc.Flush() == nil
	}
	if !send(state) {
		return
	}
	logger.DebugContext(ctx, "Stream opened",
		log.FieldUserID, user.ID,
		"subscribers", s.deps.Hub.Subscribers(user.ID))

	ticker := time.NewTicker(s.heartbeat)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			logger.DebugContext(ctx, "Stream closed", log.FieldUserID, user.ID)
			return
		case <-s.closing:
			return
		case ev, ok := <-sub.C():
			if !ok {
				return
			}
			switch ev.Kind {
			case stream.ExpensesChanged:
				state = s.reloadExpenses(ctx, state, user.ID)
			case stream.ProfileChanged:
				state = s.reloadBudget(ctx, state, user.ID)
			}
			if !send(state) {
				return
			}
		case <-ticker.C:
			if _, err := io.WriteString(w, ": ping\n\n"); err != nil || rc.Flush() != nil {
				return
			}
		}
	}
}

func (s *Server) reloadExpenses(ctx context.Context, st app.State, userID string) app.State {
	expenses, err := s.deps.Expenses.List(ctx, userID)
	if err != nil {
		return s.reloadFailed(ctx, st, err)
	}
	st = app.Reduce(st, app.ExpensesLoaded{Expenses: expenses})
	return app.Reduce(st, app.SetupResolved{})
}

func (s *Server) reloadBudget(ctx context.Context, st app.State, userID string) app.State {
	budget, err := s.deps.Profiles.Budget(ctx, userID)
	if err != nil {
		return s.reloadFailed(ctx, st, err)
	}
	return app.Reduce(st, app.BudgetLoaded{Budget: budget})
}

// reloadFailed keeps the last snapshot. A setup link switches the client to
// the setup screen.
func (s *Server) reloadFailed(ctx context.Context, st app.State, err error) app.State {
	logger := log.FromContext(ctx)
	if url, ok := core.DetectSetupRequired(err); ok {
		logger.ErrorContext(ctx, "Backend setup required", log.FieldSetupURL, url, log.FieldError, err)
		return app.Reduce(st, app.SetupRequired{URL: url})
	}
	if ctx.Err() == nil {
		logger.ErrorContext(ctx, "Stream reload failed", log.FieldError, err)
	}
	return st
}

func writeEvent(w io.Writer, event string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s event: %w", event, err)
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
	return err
}
