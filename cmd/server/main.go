package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/liamcoop/cvrisk/assessment"
	"github.com/liamcoop/cvrisk/internal/config"
	"github.com/liamcoop/cvrisk/internal/logger"
	"github.com/liamcoop/cvrisk/rules"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"
)

type Server struct {
	svc     *assessment.Service
	cfg     *config.Config
	limiter *rate.Limiter
	router  *chi.Mux
}

func NewServer(svc *assessment.Service, cfg *config.Config) *Server {
	s := &Server{
		svc:     svc,
		cfg:     cfg,
		limiter: rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst),
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(s.cfg.SlowRequestThreshold))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(s.cfg.RequestTimeout))

	// Health check and metrics
	r.Get("/api/v1/health", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(s.rateLimit)
		r.Use(bodyLimit(s.cfg.MaxBodyBytes))

		r.Get("/api/rules", s.handleRules)

		r.Route("/api/risk-assessment", func(r chi.Router) {
			r.Post("/", s.handleAssess)
			r.Get("/", s.handleListAssessments)
			r.Post("/form", s.handleAssessForm)
			r.Post("/batch", s.handleAssessBatch)
			r.Post("/explain", s.handleExplain)

			r.Get("/{id}", s.handleGetAssessment)
			r.Delete("/{id}", s.handleDeleteAssessment)
		})
	})

	s.router = r
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// openStore connects to PostgreSQL when a database URL is configured,
// otherwise assessments are kept in memory
func openStore(ctx context.Context, cfg *config.Config) (assessment.Store, func() error, error) {
	if !cfg.UsesDatabase() {
		logger.Info("DATABASE_URL not set, keeping assessments in memory")
		return assessment.NewInMemoryStore(), func() error { return nil }, nil
	}

	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return assessment.NewPostgresStore(db), db.Close, nil
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load configuration", "error", err)
	}

	level, err := logger.ParseLevel(cfg.LogLevel)
	if err != nil {
		logger.Warn("Invalid LOG_LEVEL", "error", err)
	}
	logger.SetLevel(level)

	if err := logger.RegisterMetrics(prometheus.DefaultRegisterer); err != nil {
		logger.Fatal("Failed to register logger metrics", "error", err)
	}

	startCtx, cancelStart := context.WithTimeout(context.Background(), 10*time.Second)
	store, closeStore, err := openStore(startCtx, cfg)
	cancelStart()
	if err != nil {
		logger.Fatal("Failed to open assessment store", "error", err)
	}
	defer closeStore()

	engine, err := rules.NewEngine(rules.WithLogger(logger.Logger))
	if err != nil {
		logger.Fatal("Failed to compile rule catalogue", "error", err)
	}

	svc := assessment.NewService(engine, store,
		assessment.WithBatchLimits(cfg.BatchMaxItems, cfg.BatchConcurrency),
		assessment.WithServiceLogger(logger.Logger),
	)

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      NewServer(svc, cfg),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown handling
	go func() {
		logger.Info("Server starting", "port", cfg.Port, "database", cfg.UsesDatabase())
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed to start", "error", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("Server shutdown error", "error", err)
	}

	logger.Info("Server stopped")
	_ = logger.Shutdown(ctx)
}
