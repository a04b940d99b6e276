// Package app provides application initialization and lifecycle management.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/bissquit/newsletter/internal/config"
	"github.com/bissquit/newsletter/internal/email"
	"github.com/bissquit/newsletter/internal/pkg/ctxlog"
	"github.com/bissquit/newsletter/internal/pkg/httputil"
	"github.com/bissquit/newsletter/internal/pkg/metrics"
	"github.com/bissquit/newsletter/internal/pkg/postgres"
	"github.com/bissquit/newsletter/internal/subscriptions"
	subscriptionspostgres "github.com/bissquit/newsletter/internal/subscriptions/postgres"
	"github.com/bissquit/newsletter/internal/version"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	connectTimeout        = 30 * time.Second
	requestTimeout        = 60 * time.Second
	dbMetricsInterval     = 15 * time.Second
	openAPISpecPath       = "api/openapi/openapi.yaml"
	readinessPingDeadline = 2 * time.Second
)

// App represents the application instance.
type App struct {
	settings      *config.Settings
	logger        *slog.Logger
	db            *pgxpool.Pool
	emailClient   *email.Client
	server        *http.Server
	listener      net.Listener
	metricsCancel context.CancelFunc
}

// New builds the application from resolved settings. The listener is bound
// immediately so that port 0 resolves to a concrete address before Run.
func New(settings *config.Settings, logger *slog.Logger) (*App, error) {
	sender, err := settings.EmailClient.Sender()
	if err != nil {
		return nil, fmt.Errorf("parse email sender: %w", err)
	}

	emailClient := email.NewClient(email.Config{
		BaseURL:            settings.EmailClient.BaseURL,
		Sender:             sender,
		AuthorizationToken: settings.EmailClient.AuthorizationToken,
		Timeout:            settings.EmailClient.Timeout(),
	})

	connectCtx, connectCancel := context.WithTimeout(context.Background(), connectTimeout)
	defer connectCancel()

	db, err := postgres.Connect(connectCtx, postgres.Config{
		DSN:             settings.Database.WithDB(),
		MaxConns:        settings.Database.MaxConnections,
		ConnectAttempts: settings.Database.ConnectAttempts,
	})
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	listener, err := net.Listen("tcp", settings.Application.Address())
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("listen on %s: %w", settings.Application.Address(), err)
	}

	metricsCtx, metricsCancel := context.WithCancel(context.Background())

	app := &App{
		settings:      settings,
		logger:        logger,
		db:            db,
		emailClient:   emailClient,
		listener:      listener,
		metricsCancel: metricsCancel,
	}

	go metrics.CollectDBPoolMetrics(metricsCtx, db, dbMetricsInterval)

	app.server = &http.Server{
		Handler:           app.setupRouter(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      requestTimeout + 5*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	return app, nil
}

// Addr returns the address the server is listening on.
func (a *App) Addr() string {
	return a.listener.Addr().String()
}

// Run serves HTTP until Shutdown is called.
func (a *App) Run() error {
	a.logger.Info("starting server",
		"address", a.Addr(),
		"version", version.Version,
	)

	if err := a.server.Serve(a.listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the application.
func (a *App) Shutdown(ctx context.Context) error {
	a.logger.Info("shutting down server")

	a.metricsCancel()

	err := a.server.Shutdown(ctx)
	a.db.Close()

	if err != nil {
		return fmt.Errorf("shutdown server: %w", err)
	}
	return nil
}

// Router returns the HTTP handler for testing.
func (a *App) Router() http.Handler {
	return a.server.Handler
}

// DB returns the connection pool. Used in tests to inspect stored rows.
func (a *App) DB() *pgxpool.Pool {
	return a.db
}

func (a *App) setupRouter() *chi.Mux {
	r := chi.NewRouter()

	// Metrics middleware must be first to measure full request time
	r.Use(httputil.MetricsMiddleware)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(httputil.RequestLoggerMiddleware(a.logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(requestTimeout))

	r.Get("/health_check", a.healthCheckHandler)
	r.Get("/healthz", a.healthCheckHandler)
	r.Get("/readyz", a.readyzHandler)
	r.Get("/version", a.versionHandler)
	r.Handle("/metrics", promhttp.Handler())

	r.Get("/api/openapi.yaml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/x-yaml")
		http.ServeFile(w, r, openAPISpecPath)
	})

	subscriptionsRepo := subscriptionspostgres.NewRepository(a.db)
	subscriptionsService := subscriptions.NewService(subscriptionsRepo, a.emailClient, a.settings.Application.BaseURL)
	subscriptions.NewHandler(subscriptionsService).RegisterRoutes(r)

	return r
}

func (a *App) healthCheckHandler(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func (a *App) readyzHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readinessPingDeadline)
	defer cancel()

	if err := a.db.Ping(ctx); err != nil {
		ctxlog.FromContext(r.Context()).Error("readiness check failed", "error", err)
		httputil.Text(w, http.StatusServiceUnavailable, "Database unavailable")
		return
	}

	httputil.Text(w, http.StatusOK, "OK")
}

func (a *App) versionHandler(w http.ResponseWriter, _ *http.Request) {
	httputil.JSON(w, http.StatusOK, map[string]string{
		"version":    version.Version,
		"commit":     version.GitCommit,
		"build_date": version.BuildDate,
	})
}
