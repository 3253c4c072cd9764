// Package app wires together configuration, infrastructure connections, and
// the domain packages into the three runtime modes: api, worker, scheduler.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/riverqueue/river"

	"github.com/eternalsentinel/sentinel/internal/audit"
	"github.com/eternalsentinel/sentinel/internal/auth"
	"github.com/eternalsentinel/sentinel/internal/config"
	"github.com/eternalsentinel/sentinel/internal/httpserver"
	"github.com/eternalsentinel/sentinel/internal/opsalert"
	"github.com/eternalsentinel/sentinel/internal/platform"
	"github.com/eternalsentinel/sentinel/internal/telemetry"
	"github.com/eternalsentinel/sentinel/pkg/admin"
	"github.com/eternalsentinel/sentinel/pkg/checkin"
	"github.com/eternalsentinel/sentinel/pkg/letter"
	"github.com/eternalsentinel/sentinel/pkg/queue"
	"github.com/eternalsentinel/sentinel/pkg/scheduler"
	"github.com/eternalsentinel/sentinel/pkg/trustee"
	"github.com/eternalsentinel/sentinel/pkg/user"
	"github.com/eternalsentinel/sentinel/pkg/worker"
)

// Run is the main application entry point. It reads config, connects to
// infrastructure, and starts the mode cfg.Mode selects.
func Run(ctx context.Context, cfg *config.Config) error {
	logger := telemetry.NewLogger(cfg.LogFormat, cfg.LogLevel)
	slog.SetDefault(logger)

	logger.Info("starting eternal sentinel",
		"mode", cfg.Mode,
		"listen", cfg.ListenAddr(),
	)

	db, err := platform.NewPostgresPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer db.Close()

	rdb, err := platform.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("connecting to redis: %w", err)
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			logger.Error("closing redis", "error", err)
		}
	}()

	if err := platform.RunMigrations(cfg.DatabaseURL, cfg.MigrationsDir); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	logger.Info("migrations applied")

	metricsReg := prometheus.NewRegistry()
	metricsReg.MustRegister(telemetry.All()...)

	auditWriter := audit.NewWriter(db, logger)
	notifier := opsalert.NewNotifier(cfg.SlackBotToken, cfg.SlackOpsChannel, logger)

	queueClient, err := newQueueClient(db, cfg, logger, auditWriter, notifier, cfg.Mode == "worker")
	if err != nil {
		return fmt.Errorf("creating queue client: %w", err)
	}

	switch cfg.Mode {
	case "api":
		return runAPI(ctx, cfg, logger, db, rdb, metricsReg, queueClient, auditWriter, notifier)
	case "worker":
		return runWorker(ctx, logger, queueClient)
	case "scheduler":
		return runScheduler(ctx, cfg, logger, db, rdb, queueClient, notifier)
	default:
		return fmt.Errorf("unknown mode: %s", cfg.Mode)
	}
}

// newQueueClient builds the River-backed queue client. In worker mode the
// three river.Worker implementations are registered so river.Client.Start
// actually processes jobs; api and scheduler modes only ever enqueue, so
// Workers is left nil. The workers are constructed with a nil queue
// reference and wired up via SetQueue once the client they need to enqueue
// through exists, breaking what would otherwise be a construction cycle
// (the workers need the client, and river.NewClient needs the workers
// already registered).
func newQueueClient(db *pgxpool.Pool, cfg *config.Config, logger *slog.Logger, auditWriter *audit.Writer, notifier *opsalert.Notifier, withWorkers bool) (*queue.Client, error) {
	riverCfg := queue.Config{WorkerConcurrency: cfg.WorkerConcurrency}

	var checkInWorker *worker.CheckInWorker
	var escalationWorker *worker.EscalationWorker
	var releaseWorker *worker.ReleaseWorker

	if withWorkers {
		checkInWorker = worker.NewCheckInWorker(db, nil, logger)
		escalationWorker = worker.NewEscalationWorker(db, nil, auditWriter, logger)
		releaseWorker = worker.NewReleaseWorker(db, nil, auditWriter, notifier, logger)

		workers := river.NewWorkers()
		river.AddWorker(workers, checkInWorker)
		river.AddWorker(workers, escalationWorker)
		river.AddWorker(workers, releaseWorker)
		riverCfg.Workers = workers
	}

	client, err := queue.NewClient(db, riverCfg)
	if err != nil {
		return nil, err
	}

	if withWorkers {
		checkInWorker.SetQueue(client)
		escalationWorker.SetQueue(client)
		releaseWorker.SetQueue(client)
	}

	return client, nil
}

func runAPI(ctx context.Context, cfg *config.Config, logger *slog.Logger, db *pgxpool.Pool, rdb *redis.Client, metricsReg *prometheus.Registry, queueClient *queue.Client, auditWriter *audit.Writer, notifier *opsalert.Notifier) error {
	sessionSecret := cfg.SessionSecret
	if sessionSecret == "" {
		sessionSecret = auth.GenerateDevSecret()
		logger.Info("session: using auto-generated dev secret (set SENTINEL_SESSION_SECRET in production)")
	}
	sessionMgr, err := auth.NewSessionManager(sessionSecret, cfg.SessionMaxAge)
	if err != nil {
		return fmt.Errorf("creating session manager: %w", err)
	}

	auditWriter.Start(ctx)
	defer auditWriter.Close()

	srv := httpserver.NewServer(cfg, logger, db, rdb, metricsReg)
	srv.Router.Use(auth.Middleware(sessionMgr))

	// --- Auth (local admin login only; the end-user web surface's own
	// authentication is out of scope, per spec.md's Non-goals) ---
	loginHandler := auth.NewLoginHandler(sessionMgr, db, logger)
	srv.Router.Post("/auth/login", loginHandler.HandleLogin)
	srv.Router.Get("/auth/config", loginHandler.HandleAuthConfig)
	srv.Router.Get("/auth/me", loginHandler.HandleMe)
	srv.Router.Post("/auth/logout", loginHandler.HandleLogout)

	// --- Public domain routes ---
	checkinService := checkin.NewService(db, auditWriter)
	checkinHandler := checkin.NewHandler(db, checkinService, logger)
	srv.APIRouter.Mount("/checkin", checkinHandler.PublicRoutes())
	srv.APIRouter.With(auth.RequireAuth).Post("/checkin/confirm-manual", checkinHandler.AuthenticatedRoute())

	trusteeService := trustee.NewService(db, queueClient)
	trusteeHandler := trustee.NewHandler(db, trusteeService, logger, auditWriter)
	srv.APIRouter.Mount("/trustee", trusteeHandler.PublicRoutes())

	letterService := letter.NewService(db)
	letterHandler := letter.NewHandler(letterService, logger, auditWriter)
	srv.APIRouter.With(auth.RequireAuth).Mount("/letters", letterHandler.Routes())

	// --- Administrative routes (gated behind a local admin session) ---
	srv.APIRouter.Route("/admin", func(r chi.Router) {
		r.Use(auth.RequireRole(auth.RoleAdmin))
		r.Mount("/overrides", admin.NewHandler(admin.NewService(db, queueClient, auditWriter), logger).Routes())
		r.Mount("/trustees", trusteeHandler.AdminRoutes())
	})

	userService := user.NewService(db, logger)
	userHandler := user.NewHandler(db, userService, logger, auditWriter)
	srv.APIRouter.With(auth.RequireRole(auth.RoleAdmin)).Mount("/users", userHandler.Routes())

	auditHandler := audit.NewHandler(db, logger)
	srv.APIRouter.With(auth.RequireRole(auth.RoleAdmin)).Mount("/audit-log", auditHandler.Routes())

	httpSrv := &http.Server{
		Addr:         cfg.ListenAddr(),
		Handler:      srv,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("api server listening", "addr", cfg.ListenAddr())
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down api server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

func runWorker(ctx context.Context, logger *slog.Logger, queueClient *queue.Client) error {
	logger.Info("worker started")
	if err := queueClient.Start(ctx); err != nil {
		return fmt.Errorf("starting queue client: %w", err)
	}
	<-ctx.Done()
	logger.Info("shutting down worker")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return queueClient.Stop(shutdownCtx)
}

func runScheduler(ctx context.Context, cfg *config.Config, logger *slog.Logger, db *pgxpool.Pool, rdb *redis.Client, queueClient *queue.Client, notifier *opsalert.Notifier) error {
	instanceID, err := os.Hostname()
	if err != nil || instanceID == "" {
		instanceID = fmt.Sprintf("sentinel-scheduler-%d", os.Getpid())
	}
	sched := scheduler.New(db, rdb, queueClient, notifier, logger, instanceID, cfg.CheckInPollInterval, cfg.SchedulerBatchSize)
	return sched.Run(ctx)
}
