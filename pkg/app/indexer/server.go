// Package indexer implements app.Runner for the indexer process.
package indexer

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	apphttp "github.com/hatchmark/hatchmark/pkg/app/http"
	"github.com/hatchmark/hatchmark/pkg/config"
	"github.com/hatchmark/hatchmark/pkg/eventfeed"
	indexerengine "github.com/hatchmark/hatchmark/pkg/indexer"
	"github.com/hatchmark/hatchmark/pkg/pgutil"
	"github.com/hatchmark/hatchmark/pkg/projection"
)

// Server holds configuration for the indexer process.
type Server struct {
	cfg *config.IndexerProcessConfig
}

// NewServer initializes a new indexer Server.
func NewServer(cfg *config.IndexerProcessConfig) *Server {
	return &Server{cfg: cfg}
}

// Run starts the indexer engine and the operational HTTP server. It blocks
// until an OS shutdown signal is received or a fatal server error occurs.
func (s *Server) Run() error {
	if s.cfg == nil {
		return fmt.Errorf("indexer config is nil")
	}
	cfg := s.cfg

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger, err := config.NewLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting Hatchmark event indexer",
		zap.String("feed_url", cfg.Ledger.FeedURL),
		zap.Duration("poll_interval", cfg.Indexer.PollInterval),
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
	source := eventfeed.NewClient(cfg.Ledger.FeedURL)

	engine := indexerengine.NewEngine(source, store, logger,
		indexerengine.WithPollInterval(cfg.Indexer.PollInterval),
		indexerengine.WithPageSize(cfg.Indexer.PageSize),
	)
	engine.Start(ctx)
	defer engine.Stop()

	router := s.newRouter()

	return apphttp.ServeAndWait(ctx, router, logger, &cfg.Server)
}

// newRouter builds the operational endpoints: health and metrics only.
func (s *Server) newRouter() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	r.Handle("/metrics", promhttp.Handler())

	return r
}
