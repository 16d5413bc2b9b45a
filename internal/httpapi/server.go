// Package httpapi exposes the classgate engine over HTTP with chi.
package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/MrEthical07/classgate"
	"github.com/MrEthical07/classgate/middleware"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// Service is the engine surface the API needs. *classgate.Engine
// satisfies it.
type Service interface {
	middleware.Authenticator

	RequestRegistrationCode(ctx context.Context, email string) error
	CompleteRegistration(ctx context.Context, in classgate.RegistrationInput) (*classgate.Session, error)
	Login(ctx context.Context, email, password string) (*classgate.Session, error)
	Refresh(ctx context.Context, refreshToken string) (*classgate.Session, error)
	User(ctx context.Context, userID string) (classgate.User, error)
	ProfileStats(ctx context.Context, userID string) (classgate.ProfileStats, error)

	RequestJoin(ctx context.Context, caller classgate.Identity, classroomID, studentEmail string) error
	RedeemJoin(ctx context.Context, caller classgate.Identity, classroomID, studentEmail, code string) (classgate.JoinResult, error)
	CancelJoin(ctx context.Context, caller classgate.Identity, classroomID, studentEmail string) error

	AccessTTL() time.Duration
	RefreshTTL() time.Duration
}

// Options configures transport concerns that are not part of the engine.
type Options struct {
	AllowedOrigins []string
	SecureCookies  bool
	SameSite       http.SameSite
	// TrustProxyHeaders enables X-Forwarded-For / X-Real-IP handling.
	TrustProxyHeaders bool
	// Metrics serves GET /metrics when set.
	Metrics http.Handler
	// Ready is consulted by GET /health when set.
	Ready  func(ctx context.Context) error
	Logger *slog.Logger
}

type Server struct {
	svc    Service
	opts   Options
	logger *slog.Logger
}

func NewServer(svc Service, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{svc: svc, opts: opts, logger: logger}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	if s.opts.TrustProxyHeaders {
		r.Use(chimw.RealIP)
	}
	r.Use(middleware.ClientIP)
	r.Use(s.requestLogger)
	r.Use(chimw.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.opts.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", s.handleHealth)
	if s.opts.Metrics != nil {
		r.Handle("/metrics", s.opts.Metrics)
	}

	guard := middleware.Guard(s.svc)

	r.Route("/auth", func(r chi.Router) {
		r.Post("/sendotp", s.handleSendCode)
		r.Post("/register", s.handleRegister)
		r.Post("/login", s.handleLogin)
		r.Post("/refresh", s.handleRefresh)
		r.Get("/logout", s.handleLogout)
		r.With(guard).Get("/checklogin", s.handleCheckLogin)
		r.With(guard).Get("/getuser", s.handleGetUser)
	})

	r.Route("/class/join", func(r chi.Router) {
		r.Use(guard)
		r.Post("/request", s.handleJoinRequest)
		r.Post("/redeem", s.handleJoinRedeem)
		r.Post("/cancel", s.handleJoinCancel)
	})

	r.With(guard).Get("/profile/profile-stats", s.handleProfileStats)

	return r
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.DebugContext(r.Context(), "http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"request_id", chimw.GetReqID(r.Context()),
		)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.opts.Ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.opts.Ready(ctx); err != nil {
			s.logger.WarnContext(r.Context(), "health check failed", "error", err)
			writeJSON(w, http.StatusServiceUnavailable, envelope{OK: false, Message: "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, envelope{OK: true, Message: "ok"})
}
