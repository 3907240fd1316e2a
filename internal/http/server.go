package http

import (
	"context"
	"io/fs"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"spendly/internal/log"
	"spendly/internal/metrics"
	mwauth "spendly/internal/middleware/auth"
	"spendly/internal/middleware/ratelimit"
	"spendly/internal/middleware/security"
	"spendly/internal/middleware/trace"
	"spendly/internal/receipt"
	"spendly/internal/services"
	"spendly/internal/stream"
	appweb "spendly/web"
)

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps are the collaborators the server routes requests to.
type Deps struct {
	Store       Pinger
	Expenses    *services.ExpenseService
	Profiles    *services.ProfileService
	Auth        *services.AuthService
	Hub         *stream.Hub
	Drafts      *receipt.Drafts
	Recognizer  *receipt.Recognizer
	Keyring     *receipt.Keyring
	Credentials *receipt.Credentials

	Metrics  *metrics.Metrics
	Gatherer prometheus.Gatherer
	Logger   *log.Logger

	// Location decides calendar months for reports.
	Location *time.Location
	// RateLimitPerMinute bounds mutating requests per client.
	RateLimitPerMinute int
	// MaxImageBytes bounds receipt uploads.
	MaxImageBytes int
}

type Server struct {
	http.Server
	deps   Deps
	logger *log.Logger
	now    func() time.Time

	limiter          *ratelimit.Limiter
	recognizeLimiter *ratelimit.Limiter
	detector         *security.Detector

	// heartbeat is the idle interval between stream keep-alives.
	heartbeat    time.Duration
	closing      chan struct{}
	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(addr string, deps Deps) *Server {
	if deps.Logger == nil {
		deps.Logger = log.Discard()
	}
	if deps.Location == nil {
		deps.Location = time.Local
	}
	if deps.MaxImageBytes <= 0 {
		deps.MaxImageBytes = receipt.DefaultMaxImageBytes
	}
	if deps.Gatherer == nil {
		deps.Gatherer = prometheus.DefaultGatherer
	}

	s := &Server{
		deps:      deps,
		logger:    deps.Logger.WithComponent(log.ComponentHTTP),
		now:       time.Now,
		detector:  security.NewDetector(),
		heartbeat: 25 * time.Second,
		closing:   make(chan struct{}),
		limiter: ratelimit.NewLimiter(ratelimit.Config{
			RequestsPerMinute: deps.RateLimitPerMinute,
			Methods:           []string{http.MethodPost, http.MethodPut, http.MethodDelete},
		}),
		recognizeLimiter: ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: 10}),
	}

	mux := http.NewServeMux()
	s.routes(mux)

	var handler http.Handler = mux
	handler = s.limiter.Middleware(s.detector.ExtractClientIP, s.onRateLimit)(handler)
	handler = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(handler)
	handler = s.detector.Middleware(deps.Logger)(handler)
	handler = trace.NewMiddleware(deps.Logger, s.detector.ExtractClientIP, deps.Metrics).Middleware(handler)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

func (s *Server) routes(mux *http.ServeMux) {
	authed := mwauth.Require(s.deps.Auth)
	api := func(pattern string, h http.HandlerFunc) {
		mux.Handle(pattern, security.NoStore(authed(h)))
	}
	public := func(pattern string, h http.HandlerFunc) {
		mux.Handle(pattern, security.NoStore(h))
	}

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.Handle("GET /metrics", promhttp.HandlerFor(s.deps.Gatherer, promhttp.HandlerOpts{}))

	public("POST /api/auth/register", s.handleRegister)
	public("POST /api/auth/login", s.handleLogin)
	public("POST /api/auth/logout", s.handleLogout)
	public("GET /auth/google/login", s.handleGoogleLogin)
	public("GET /auth/google/callback", s.handleGoogleCallback)

	api("GET /api/me", s.handleMe)
	api("GET /api/expenses", s.handleListExpenses)
	api("POST /api/expenses", s.handleCreateExpense)
	api("GET /api/expenses/{id}", s.handleGetExpense)
	api("PUT /api/expenses/{id}", s.handleUpdateExpense)
	api("DELETE /api/expenses/{id}", s.handleDeleteExpense)
	api("GET /api/activity", s.handleActivity)
	api("GET /api/report", s.handleReport)
	api("PUT /api/budget", s.handleUpdateBudget)
	api("GET /api/stream", s.handleStream)

	api("GET /api/draft", s.handleGetDraft)
	api("PUT /api/draft", s.handleUpdateDraft)
	api("DELETE /api/draft", s.handleDiscardDraft)
	api("POST /api/draft/image", s.handleCaptureImage)
	api("DELETE /api/draft/image", s.handleClearImage)
	api("POST /api/draft/submit", s.handleSubmitDraft)
	api("PUT /api/receipt/credential", s.handleSetCredential)
	mux.Handle("POST /api/draft/recognize",
		s.recognizeLimiter.Middleware(s.detector.ExtractClientIP, s.onRateLimit)(
			security.NoStore(authed(http.HandlerFunc(s.handleRecognize)))))

	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		mux.Handle("GET /static/", security.StaticAssetMiddleware(3600)(static))
	} else {
		s.logger.Warn("Failed to mount embedded static FS", log.FieldError, err)
	}
	mux.HandleFunc("GET /{$}", s.handleIndex)
}

func (s *Server) onRateLimit(w http.ResponseWriter, r *http.Request) {
	log.FromContext(r.Context()).WarnContext(r.Context(), "Rate limit exceeded",
		log.FieldComponent, log.ComponentRateLimit,
		log.FieldClientIP, s.detector.ExtractClientIP(r),
		log.FieldMethod, r.Method,
		log.FieldPath, r.URL.Path)
	ErrorResponse(http.StatusTooManyRequests, CodeBusy, "Too many requests. Please try again later.").Write(w)
}

// Shutdown stops the limiters and gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		// Open streams never go idle on their own.
		close(s.closing)
		s.limiter.Stop()
		s.recognizeLimiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}
