// Package api implements app.Runner for the API server process.
package api

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	apphttp "github.com/hatchmark/hatchmark/pkg/app/http"
	"github.com/hatchmark/hatchmark/pkg/auth"
	"github.com/hatchmark/hatchmark/pkg/certificate"
	"github.com/hatchmark/hatchmark/pkg/config"
	"github.com/hatchmark/hatchmark/pkg/dispute"
	"github.com/hatchmark/hatchmark/pkg/eventfeed"
	"github.com/hatchmark/hatchmark/pkg/ledger/memledger"
	"github.com/hatchmark/hatchmark/pkg/pgutil"
	"github.com/hatchmark/hatchmark/pkg/projection"
)

// Server holds cfg to init the api server.
type Server struct {
	cfg *config.APIServerConfig
}

// NewServer initializes new api server.
func NewServer(cfg *config.APIServerConfig) *Server {
	return &Server{cfg: cfg}
}

// Run starts the API server. It blocks until an OS shutdown signal is
// received or a fatal server error occurs.
func (s *Server) Run() error {
	if s.cfg == nil {
		return fmt.Errorf("api server config is nil")
	}
	cfg := s.cfg

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger, err := config.NewLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("setup logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting Hatchmark API server",
		zap.String("host", cfg.Server.Host),
		zap.Int("port", cfg.Server.Port),
	)

	db, err := pgutil.ConnectDB(&cfg.Database)
	if err != nil {
		return fmt.Errorf("connect projection db: %w", err)
	}
	defer func() { _ = db.Close() }()
	logger.Info("Connected to projection database",
		zap.String("host", cfg.Database.Host),
		zap.String("database", cfg.Database.Database),
	)

	store := projection.NewStore(db)

	reg, err := s.newLedger()
	if err != nil {
		return err
	}

	certService := certificate.NewService(store, logger,
		cfg.Matcher.RegisterThreshold, cfg.Matcher.VerifyThreshold)
	dispService := dispute.NewService(store, logger)

	verifier := auth.NewVerifier([]byte(cfg.Auth.JWTSecret), cfg.Auth.Issuer)

	router := s.setupRouter(reg, certService, dispService, verifier, logger)

	return apphttp.ServeAndWait(ctx, router, logger, &cfg.Server)
}

// newLedger builds the in-process registry ledger from config.
func (s *Server) newLedger() (*memledger.Ledger, error) {
	var opts []memledger.Option
	if raw := s.cfg.Ledger.MinStake; raw != "" {
		minStake, err := decimal.NewFromString(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid ledger.min_stake %q: %w", raw, err)
		}
		opts = append(opts, memledger.WithMinStake(minStake))
	}
	return memledger.New(opts...), nil
}

func (s *Server) setupRouter(
	reg *memledger.Ledger,
	certService *certificate.Service,
	dispService *dispute.Service,
	verifier *auth.Verifier,
	logger *zap.Logger,
) chi.Router {
	requestTimeout := s.cfg.Ledger.RequestTimeout
	if requestTimeout <= 0 {
		requestTimeout = 60 * time.Second
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(requestTimeout))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	certHandler := certificate.NewHandler(certService, logger)
	dispHandler := dispute.NewHandler(dispService, logger)

	r.Route("/api/v1", func(r chi.Router) {
		// Transaction-building endpoints are open: the descriptors they
		// return mutate nothing until signed and submitted, and the
		// signature names the actor.
		r.Group(func(r chi.Router) {
			r.Post("/verify", apphttp.HandleError(certHandler.Verify))
			r.Post("/register", apphttp.HandleError(certHandler.Register))
			r.Post("/flag", apphttp.HandleError(dispHandler.Flag))
			r.Get("/certificates", apphttp.HandleError(certHandler.List))
			r.Get("/certificates/{certID}", apphttp.HandleError(certHandler.Get))
			r.Get("/certificates/{certID}/disputes", apphttp.HandleError(dispHandler.ListForCert))
			r.Get("/disputes/{disputeID}", apphttp.HandleError(dispHandler.Get))
		})

		// Resolve checks the claimed identity against the projected
		// creator before building anything, so it needs a bearer token.
		r.Group(func(r chi.Router) {
			r.Use(verifier.Middleware)
			r.Post("/disputes/{disputeID}/resolve", apphttp.HandleError(dispHandler.Resolve))
		})
	})

	// The indexer replicates ledger events through this feed, and signed
	// transactions enter the ledger through its submit endpoint.
	feedHandler := eventfeed.NewHandler(reg, logger)
	r.Route("/ledger", feedHandler.Routes)

	return r
}
