package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/dentacare/clinic-portal/cmd/mainconfig"
	"github.com/dentacare/clinic-portal/internal/api/router"
	"github.com/dentacare/clinic-portal/internal/app/bootstrap"
	"github.com/dentacare/clinic-portal/internal/appointments"
	"github.com/dentacare/clinic-portal/internal/auth"
	"github.com/dentacare/clinic-portal/internal/availability"
	"github.com/dentacare/clinic-portal/internal/blog"
	"github.com/dentacare/clinic-portal/internal/booking"
	"github.com/dentacare/clinic-portal/internal/catalog"
	"github.com/dentacare/clinic-portal/internal/changefeed"
	appconfig "github.com/dentacare/clinic-portal/internal/config"
	"github.com/dentacare/clinic-portal/internal/dentists"
	"github.com/dentacare/clinic-portal/internal/gallery"
	httpmiddleware "github.com/dentacare/clinic-portal/internal/http/middleware"
	"github.com/dentacare/clinic-portal/internal/notify"
	"github.com/dentacare/clinic-portal/internal/observability/metrics"
	"github.com/dentacare/clinic-portal/internal/platform/pgdb"
	"github.com/dentacare/clinic-portal/internal/schedule"
	"github.com/dentacare/clinic-portal/pkg/logging"
)

func main() {
	mainconfig.LoadEnv(nil)

	// Load configuration
	cfg := appconfig.Load()

	// Initialize logger
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting dentacare clinic portal API",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := buildApp(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize", "error", err)
		os.Exit(1)
	}
	defer a.close()

	// Create HTTP server
	srv := &http.Server{
		Addr:        ":" + cfg.Port,
		Handler:     a.handler,
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, run := range a.background {
		g.Go(func() error { return run(gctx) })
	}
	g.Go(func() error {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down server...")
		// Graceful shutdown with timeout
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
	logger.Info("server stopped")
}

// app is the wired API: its HTTP handler, the loops that run beside the
// server, and the resources to release on exit.
type app struct {
	handler    http.Handler
	background []func(context.Context) error
	closers    []func()
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func buildApp(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) (*app, error) {
	a := &app{}
	clock := catalog.SystemClock{Location: cfg.ClinicLocation()}
	metricsHandler, portalMetrics := setupPortalMetrics()

	var awsCfg *aws.Config
	if loaded, err := mainconfig.LoadAWSConfig(ctx, cfg); err != nil {
		logger.Warn("aws config unavailable; using local media and queue", "error", err)
	} else {
		awsCfg = &loaded
	}

	redisClient := bootstrap.BuildRedisClient(ctx, cfg, logger, true)
	if redisClient != nil {
		a.closers = append(a.closers, func() { _ = redisClient.Close() })
	}
	broker := bootstrap.BuildBroker(redisClient, logger)
	guard := bootstrap.BuildGuard(redisClient, cfg.ToggleLockTTL)

	// With the Postgres listener on, the triggers are the single source of
	// change events.
	var changes changefeed.Publisher = broker
	if cfg.ChangefeedPGListen && cfg.DatabaseURL != "" {
		changes = changefeed.Nop{}
		listener := changefeed.NewPGListener(cfg.DatabaseURL, broker, logger)
		a.background = append(a.background, listener.Run)
	}

	// Storage
	var (
		dentistRepo dentists.Repository     = dentists.NewInMemoryRepository(dentists.Seed...)
		apptRepo    appointments.Repository = appointments.NewInMemoryRepository()
		blockedRepo schedule.Repository     = schedule.NewInMemoryRepository()
		postRepo    blog.Repository         = blog.NewInMemoryRepository()
		imageRepo   gallery.Repository      = gallery.NewInMemoryRepository()
		sqlDB       *sql.DB
	)
	if pool := connectPostgresPool(ctx, cfg.DatabaseURL, logger); pool != nil {
		a.closers = append(a.closers, pool.Close)
		dentistRepo = dentists.NewPostgresRepository(pool)
		apptRepo = appointments.NewPostgresRepository(pool)
		blockedRepo = schedule.NewPostgresRepository(pool)
		postRepo = blog.NewPostgresRepository(pool)
		imageRepo = gallery.NewPostgresRepository(pool)
		sqlDB = stdlib.OpenDBFromPool(pool)
		a.closers = append(a.closers, func() { _ = sqlDB.Close() })
	}

	// Notifications
	queue, err := bootstrap.BuildNotifyQueue(cfg, awsCfg)
	if err != nil {
		return nil, err
	}
	notifier := notify.NewNotifier(queue, logger)
	if worker := setupInlineWorker(ctx, cfg, queue, bootstrap.BuildMailer(cfg, awsCfg, logger), portalMetrics, logger); worker != nil {
		a.closers = append(a.closers, func() { waitForInlineWorker(worker, logger) })
	}

	// Services
	apptSvc := appointments.NewService(apptRepo, changes, notifier, portalMetrics, logger)
	availSvc := availability.NewService(blockedRepo, apptRepo, portalMetrics)
	toggler := schedule.NewToggler(blockedRepo, guard, changes, portalMetrics, logger)
	objects := bootstrap.BuildObjectStore(cfg, awsCfg, logger)
	author := blog.NewAuthor(postRepo, objects, changes, portalMetrics, logger)
	gallerySvc := gallery.NewService(imageRepo, objects, changes, portalMetrics, logger)
	bookingSvc := booking.NewService(booking.Deps{
		Sessions:     bootstrap.BuildSessionStore(redisClient, cfg.BookingSessionTTL),
		Dentists:     dentistRepo,
		Availability: availSvc,
		Appointments: apptRepo,
		Guard:        guard,
		Changes:      changes,
		Feed:         broker,
		Notifier:     notifier,
		Clock:        clock,
		Metrics:      portalMetrics,
		Logger:       logger,
	})

	checkOrigin := httpmiddleware.OriginChecker(cfg.CORSAllowedOrigins)
	routerCfg := &router.Config{
		Logger:              logger,
		DentistsHandler:     dentists.NewHandler(dentistRepo, logger),
		AvailabilityHandler: availability.NewHandler(availSvc, dentistRepo, clock, logger),
		BookingHandler:      booking.NewHandler(bookingSvc, checkOrigin, logger),
		AppointmentsHandler: appointments.NewHandler(apptSvc, logger),
		ScheduleHandler:     schedule.NewHandler(blockedRepo, toggler, logger),
		BlogHandler:         blog.NewHandler(postRepo, author, logger),
		GalleryHandler:      gallery.NewHandler(gallerySvc, logger),
		RealtimeHandler:     changefeed.NewHandler(broker, checkOrigin, logger),
		RateLimiter:         httpmiddleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst),
		MetricsHandler:      metricsHandler,
		CORSAllowedOrigins:  cfg.CORSAllowedOrigins,
	}

	// Admin area
	authSvc, err := setupAuth(cfg, sqlDB, redisClient, logger)
	if err != nil {
		return nil, err
	}
	if authSvc != nil {
		routerCfg.AuthHandler = auth.NewHandler(authSvc, logger)
		routerCfg.Admin = authSvc
	} else {
		logger.Warn("admin area disabled; set DATABASE_URL and AUTH_JWT_SECRET to enable it")
	}

	a.background = append(a.background, evictIdleClients(routerCfg.RateLimiter))
	a.handler = router.New(routerCfg)
	return a, nil
}

func setupPortalMetrics() (http.Handler, *metrics.PortalMetrics) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{}), metrics.NewPortalMetrics(reg)
}

func connectPostgresPool(ctx context.Context, databaseURL string, logger *logging.Logger) *pgxpool.Pool {
	if databaseURL == "" {
		logger.Warn("DATABASE_URL not set; using in-memory storage")
		return nil
	}
	pool, err := pgdb.Connect(ctx, databaseURL)
	if err != nil {
		logger.Error("failed to connect to postgres; using in-memory storage", "error", err)
		return nil
	}
	return pool
}

// setupAuth returns nil when accounts are not configured.
func setupAuth(cfg *appconfig.Config, sqlDB *sql.DB, redisClient *redis.Client, logger *logging.Logger) (*auth.Service, error) {
	if sqlDB == nil || cfg.AuthJWTSecret == "" {
		return nil, nil
	}
	tokens, err := auth.NewTokens(cfg.AuthJWTSecret, cfg.AuthTokenTTL)
	if err != nil {
		return nil, err
	}
	return auth.NewService(auth.NewUserStore(sqlDB), tokens, bootstrap.BuildRevoker(redisClient), logger), nil
}

// setupInlineWorker drains an in-memory notification queue inside the API
// process. SQS queues are drained by cmd/notify-worker instead.
func setupInlineWorker(ctx context.Context, cfg *appconfig.Config, queue notify.Queue, mailer notify.Mailer, m *metrics.PortalMetrics, logger *logging.Logger) *notify.Worker {
	if _, ok := queue.(*notify.MemoryQueue); !ok {
		return nil
	}
	worker := notify.NewWorker(queue, mailer, logger,
		notify.WithWorkerCount(cfg.WorkerCount),
		notify.WithMetrics(m),
	)
	worker.Start(ctx)
	logger.Info("inline notification worker started", "workers", cfg.WorkerCount)
	return worker
}

func waitForInlineWorker(worker *notify.Worker, logger *logging.Logger) {
	done := make(chan struct{})
	go func() {
		worker.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(10 * time.Second):
		logger.Warn("inline notification worker did not stop in time")
	}
}

func evictIdleClients(rl *httpmiddleware.RateLimiter) func(context.Context) error {
	return func(ctx context.Context) error {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				rl.Evict(10 * time.Minute)
			}
		}
	}
}
