package http

import (
	"context"
	"net/http"
	"time"

	"spendly/internal/core"
	"spendly/internal/log"
	mwauth "spendly/internal/middleware/auth"
	appweb "spendly/web"
)

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	NewResponse().JSON(map[string]string{
		"status":    "ok",
		"timestamp": s.now().Format(time.RFC3339),
	}).Write(w)
}

// handleReady checks that the store answers.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status, httpStatus := "ready", http.StatusOK
	checks := map[string]string{
		"store":        "ok",
		"rate_limiter": "ok",
	}
	if s.deps.Store == nil {
		checks["store"] = "not_configured"
		status, httpStatus = "not_ready", http.StatusServiceUnavailable
	} else if err := s.deps.Store.Ping(ctx); err != nil {
		checks["store"] = "failed: " + err.Error()
		status, httpStatus = "not_ready", http.StatusServiceUnavailable
		s.logger.WarnContext(r.Context(), "Readiness check failed", log.FieldError, err)
	}

	NewResponse().Status(httpStatus).JSON(map[string]any{
		"status":    status,
		"timestamp": s.now().Format(time.RFC3339),
		"checks":    checks,
	}).Write(w)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	page, err := appweb.StaticFS.ReadFile("static/index.html")
	if err != nil {
		s.writeError(w, r, "index", err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(page)
}

// currentUser returns the user stored by the auth middleware. Routes are
// only registered behind it, so a missing user is a wiring bug.
func currentUser(r *http.Request) core.User {
	u, _ := mwauth.UserFromContext(r.Context())
	return u
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)
	profile, err := s.deps.Profiles.Profile(r.Context(), user.ID)
	if err != nil {
		s.writeError(w, r, log.OpRead, err)
		return
	}
	NewResponse().JSON(map[string]any{
		"user":       toUserJSON(user),
		"profile":    toProfileJSON(profile),
		"categories": categoriesJSON(),
	}).Write(w)
}

func categoriesJSON() []map[string]string {
	cats := core.Categories()
	out := make([]map[string]string, 0, len(cats))
	for _, c := range cats {
		out = append(out, map[string]string{"code": string(c), "label": c.Label()})
	}
	return out
}
