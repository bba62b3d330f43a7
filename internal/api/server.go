package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"WagerHouse/internal/engine"
	"WagerHouse/internal/observability"
	"WagerHouse/internal/projection"
	"WagerHouse/internal/query"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// Config holds the HTTP listener settings.
type Config struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// Server routes HTTP traffic to the engine and the read side.
type Server struct {
	house    *engine.House
	queries  *query.Service
	history  *projection.OutcomeHistory
	health   *observability.HealthChecker
	metrics  *observability.Metrics
	log      zerolog.Logger
	validate *validator.Validate

	srv *http.Server
}

func NewServer(
	cfg Config,
	house *engine.House,
	queries *query.Service,
	history *projection.OutcomeHistory,
	health *observability.HealthChecker,
	metrics *observability.Metrics,
) *Server {
	if history == nil {
		history = projection.NewOutcomeHistory(0)
	}
	s := &Server{
		house:    house,
		queries:  queries,
		history:  history,
		health:   health,
		metrics:  metrics,
		log:      observability.NewLogger("api"),
		validate: validator.New(),
	}
	s.srv = &http.Server{
		Addr:         cfg.Addr,
		Handler:      s.router(),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}
	return s
}

func (s *Server) router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(s.log))
	r.Use(middleware.Recoverer)
	if s.metrics != nil {
		r.Use(s.instrument)
	}

	r.Route("/v1", func(r chi.Router) {
		r.Route("/bettors/{bettorID}", func(r chi.Router) {
			r.Post("/deposits", s.handleDeposit)
			r.Post("/withdrawals", s.handleWithdraw)
			r.Get("/balance", s.handleBalance)
			r.Get("/bets", s.handleBetHistory)
			r.Get("/journal", s.handleJournalHistory)
		})
		r.Route("/games", func(r chi.Router) {
			r.Get("/", s.handleListGames)
			r.Post("/", s.handleCreateGame)
			r.Get("/outcomes", s.handleOutcomes)
			r.Route("/{gameID}", func(r chi.Router) {
				r.Get("/", s.handleGetGame)
				r.Get("/live", s.handleGameLive)
				r.Post("/bets", s.handlePlaceBet)
				r.Post("/close", s.handleCloseGame)
				r.Post("/settle", s.handleSettle)
				r.Post("/refunds", s.handleRefund)
			})
		})
		r.Route("/house", func(r chi.Router) {
			r.Get("/", s.handleHouseSummary)
			r.Get("/exposure", s.handleExposure)
			r.Post("/bankroll/deposits", s.handleBankrollTopUp)
			r.Post("/bankroll/withdrawals", s.handleBankrollWithdraw)
			r.Put("/exposure-ceiling", s.handleSetCeiling)
			r.Post("/credential/rotate", s.handleRotateCredential)
		})
		r.Get("/integrity", s.handleIntegrity)
	})

	if s.health != nil {
		r.Get("/healthz", s.health.LivenessHandler)
		r.Get("/readyz", s.health.ReadinessHandler)
	}
	r.Handle("/metrics", promhttp.Handler())

	return r
}

// Handler exposes the routing tree, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.srv.Handler
}

// Start serves requests until Shutdown or a listener error.
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.srv.Addr).Msg("http server listening")
	if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown stops accepting connections and drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

// ----------------------------------------------------------------------------
// Shared handler plumbing
// ----------------------------------------------------------------------------

func (s *Server) renderErr(w http.ResponseWriter, r *http.Request, resp Response) {
	render.Status(r, resp.Status)
	render.JSON(w, r, resp)
}

// renderFault translates an engine rejection. Classified rejections are the
// engine talking to the caller and log at debug; anything unclassified is a
// server problem and logs at error.
func (s *Server) renderFault(w http.ResponseWriter, r *http.Request, err error) {
	resp := FromFault(err)
	if resp.Status == http.StatusInternalServerError {
		s.log.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
	} else {
		s.log.Debug().Str("code", resp.Code).Str("path", r.URL.Path).Msg("request rejected")
	}
	s.renderErr(w, r, resp)
}

// renderQueryErr hides read-path failures behind a plain 500.
func (s *Server) renderQueryErr(w http.ResponseWriter, r *http.Request, err error) {
	s.log.Error().Err(err).Str("path", r.URL.Path).Msg("query failed")
	s.renderErr(w, r, Err(http.StatusInternalServerError, CodeInternal, "query failed"))
}

// decode reads and validates a JSON body. A false return means the error
// response is already written.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, req interface{}) bool {
	if err := render.DecodeJSON(r.Body, req); err != nil {
		s.renderErr(w, r, Err(http.StatusBadRequest, CodeValidation, "malformed request body"))
		return false
	}
	if err := s.validate.Struct(req); err != nil {
		s.renderErr(w, r, ValidationError(err.(validator.ValidationErrors)))
		return false
	}
	return true
}

// pathUUID parses a uuid path segment. A false return means the error
// response is already written.
func (s *Server) pathUUID(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		s.renderErr(w, r, Err(http.StatusBadRequest, CodeValidation, "path segment "+name+" must be a uuid"))
		return uuid.Nil, false
	}
	return id, true
}

// limitParam reads ?limit= with a default and a hard cap.
func limitParam(r *http.Request, def, max int) int {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return def
	}
	if n > max {
		return max
	}
	return n
}

// cursorParam reads ?after_sequence= for keyset pagination. Absent or
// unparseable means first page.
func cursorParam(r *http.Request) *int64 {
	raw := r.URL.Query().Get("after_sequence")
	if raw == "" {
		return nil
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil
	}
	return &n
}
