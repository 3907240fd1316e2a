package http

import (
	"crypto/subtle"
	"net/http"
	"time"

	"spendly/internal/auth"
	"spendly/internal/log"
	mwauth "spendly/internal/middleware/auth"
	"spendly/internal/services"
)

const (
	stateCookie = "oauth_state"
	stateTTL    = 10 * time.Minute
)

func secureRequest(r *http.Request) bool {
	return r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https"
}

func setSessionCookie(w http.ResponseWriter, r *http.Request, sess services.Session) {
	http.SetCookie(w, &http.Cookie{
		Name:     mwauth.SessionCookie,
		Value:    sess.Token,
		Path:     "/",
		Expires:  sess.ExpiresAt,
		HttpOnly: true,
		Secure:   secureRequest(r),
		SameSite: http.SameSiteLaxMode,
	})
}

func clearCookie(w http.ResponseWriter, r *http.Request, name, path string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     path,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   secureRequest(r),
		SameSite: http.SameSiteLaxMode,
	})
}

func sessionJSON(sess services.Session) map[string]any {
	return map[string]any{
		"user":       toUserJSON(sess.User),
		"token":      sess.Token,
		"expires_at": sess.ExpiresAt.UnixMilli(),
	}
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	p := NewRequestBodyParser(w, r)
	if err := p.Parse(); err != nil {
		s.writeError(w, r, log.OpRegister, err)
		return
	}
	sess, err := s.deps.Auth.Register(r.Context(), p.Get("email"), p.Get("password"), p.Get("confirm_password"))
	if err != nil {
		s.writeError(w, r, log.OpRegister, err)
		return
	}
	setSessionCookie(w, r, sess)
	NewResponse().Status(http.StatusCreated).JSON(sessionJSON(sess)).Write(w)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	p := NewRequestBodyParser(w, r)
	if err := p.Parse(); err != nil {
		s.writeError(w, r, log.OpLogin, err)
		return
	}
	sess, err := s.deps.Auth.Login(r.Context(), p.Get("email"), p.Get("password"))
	if err != nil {
		s.writeError(w, r, log.OpLogin, err)
		return
	}
	setSessionCookie(w, r, sess)
	NewResponse().JSON(sessionJSON(sess)).Write(w)
}

// handleLogout clears the cookie and any per-user receipt state. Tokens are
// stateless, so a bearer token stays valid until it expires.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if user, err := s.deps.Auth.Authenticate(r.Context(), mwauth.TokenFromRequest(r)); err == nil {
		if s.deps.Drafts != nil {
			s.deps.Drafts.Discard(user.ID)
		}
		if s.deps.Credentials != nil {
			s.deps.Credentials.Forget(user.ID)
		}
		if s.deps.Keyring != nil {
			s.deps.Keyring.Clear(user.ID)
		}
	}
	clearCookie(w, r, mwauth.SessionCookie, "/")
	NewResponse().Status(http.StatusNoContent).Write(w)
}

func (s *Server) handleGoogleLogin(w http.ResponseWriter, r *http.Request) {
	state, err := auth.NewState()
	if err != nil {
		s.writeError(w, r, log.OpLogin, err)
		return
	}
	url, err := s.deps.Auth.FederatedURL(state)
	if err != nil {
		s.writeError(w, r, log.OpLogin, err)
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookie,
		Value:    state,
		Path:     "/auth/google",
		MaxAge:   int(stateTTL.Seconds()),
		HttpOnly: true,
		Secure:   secureRequest(r),
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, url, http.StatusFound)
}

func (s *Server) handleGoogleCallback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if e := q.Get("error"); e != "" {
		BadRequestError("Google sign-in was cancelled: " + sanitizeInput(e)).Write(w)
		return
	}

	c, err := r.Cookie(stateCookie)
	state := q.Get("state")
	if err != nil || state == "" || subtle.ConstantTimeCompare([]byte(c.Value), []byte(state)) != 1 {
		BadRequestError("Sign-in state mismatch, please try again.").Write(w)
		return
	}
	clearCookie(w, r, stateCookie, "/auth/google")

	sess, err := s.deps.Auth.FederatedCallback(r.Context(), q.Get("code"))
	if err != nil {
		s.writeError(w, r, log.OpLogin, err)
		return
	}
	setSessionCookie(w, r, sess)
	http.Redirect(w, r, "/", http.StatusFound)
}
