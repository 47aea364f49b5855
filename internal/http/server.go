package http

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/kina2711/subscription-analytics/internal/amqp"
	"github.com/kina2711/subscription-analytics/internal/log"
	"github.com/kina2711/subscription-analytics/internal/metrics"
	"github.com/kina2711/subscription-analytics/internal/middleware/ratelimit"
	"github.com/kina2711/subscription-analytics/internal/middleware/security"
	"github.com/kina2711/subscription-analytics/internal/services"
)

// RefreshPublisher queues a background refresh.
type RefreshPublisher interface {
	PublishRefresh(ctx context.Context, reason string) (*amqp.RefreshMessage, error)
}

// Deps are the collaborators of the server. Publisher and Metrics are optional.
type Deps struct {
	Service      *services.AnalyticsService
	Publisher    RefreshPublisher
	Metrics      *metrics.Metrics
	Logger       *log.Logger
	RefreshLimit ratelimit.Config
}

type Server struct {
	http.Server
	svc       *services.AnalyticsService
	publisher RefreshPublisher
	limiter   *ratelimit.Limiter
	logger    *log.Logger
}

func NewServer(addr string, deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = log.Nop()
	}
	s := &Server{
		svc:       deps.Service,
		publisher: deps.Publisher,
		limiter:   ratelimit.NewLimiter(deps.RefreshLimit),
		logger:    logger.WithComponent(log.ComponentHTTP),
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(log.Middleware(s.logger))
	r.Use(log.RequestIDMiddleware(func(r *http.Request) string {
		return middleware.GetReqID(r.Context())
	}))
	r.Use(log.AccessLog)
	r.Use(security.Headers(security.DefaultHeadersConfig()))

	r.Get("/healthz", s.handleHealth)
	if deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", deps.Metrics.Handler())
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Timeout(60 * time.Second))
		r.Get("/summary", s.handleSummary)
		r.Get("/cohorts", s.handleCohorts)
		r.Get("/transactions", s.handleTransactions)
		r.Get("/products", s.handleProducts)
		r.Get("/runs", s.handleRuns)
		r.With(s.limiter.Middleware(func(w http.ResponseWriter, r *http.Request) {
			NewJSONResponse().
				Status(http.StatusTooManyRequests).
				Error("rate limit exceeded, try again later").
				Send(w, r)
		})).Post("/refresh", s.handleRefresh)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		NewJSONResponse().Status(http.StatusNotFound).Error("not found").Send(w, r)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		NewJSONResponse().Status(http.StatusMethodNotAllowed).Error("method not allowed").Send(w, r)
	})

	s.Server = http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      90 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

// Shutdown stops accepting requests and releases the rate limiter.
func (s *Server) Shutdown(ctx context.Context) error {
	s.limiter.Stop()
	return s.Server.Shutdown(ctx)
}
