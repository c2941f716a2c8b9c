package main // Entry point package

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/iliyamo/event-reservation/internal/config"     // Internal config loader
	"github.com/iliyamo/event-reservation/internal/database"   // connections and schema
	"github.com/iliyamo/event-reservation/internal/handler"    // HTTP handlers
	"github.com/iliyamo/event-reservation/internal/middleware" // logging, cache, rate limit
	"github.com/iliyamo/event-reservation/internal/queue"      // lifecycle events
	"github.com/iliyamo/event-reservation/internal/repository" // SQL repositories
	"github.com/iliyamo/event-reservation/internal/router"     // Internal router setup
	"github.com/iliyamo/event-reservation/internal/service"    // reservation lifecycle engine
	"github.com/iliyamo/event-reservation/internal/storage"    // ticket archive
	"github.com/iliyamo/event-reservation/internal/ticket"     // QR signing
)

func main() {
	cfg := config.Load() // Load environment config

	logger, err := config.NewLogger(cfg.Env, cfg.LogLevel)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()

	db, err := openDB(cfg)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer db.Close()

	// Redis is optional: without it locks are process-local and the cache
	// and rate limiter turn into no-ops.
	rdb, err := config.NewRedisClient(context.Background())
	var locker service.Locker = service.NewLocalLocker()
	if err == nil {
		defer rdb.Close()
		locker = service.NewRedisLocker(rdb, "lock:reservation", 10*time.Second)
	} else {
		logger.Warn("redis unavailable; using in-process reservation locks", zap.Error(err))
	}

	var publisher service.LifecyclePublisher = service.NopPublisher{}
	if cfg.RabbitMQURL != "" {
		p := queue.NewPublisher(cfg.RabbitMQURL, logger)
		defer p.Close()
		publisher = p
	}

	var archive service.TicketArchive
	if cfg.TicketBucket != "" {
		a, err := storage.NewTicketArchive(context.Background(), storage.S3Config{
			Region:          cfg.AWSRegion,
			AccessKeyID:     cfg.AWSAccessKeyID,
			SecretAccessKey: cfg.AWSSecretAccessKey,
			Bucket:          cfg.TicketBucket,
		}, logger)
		if err != nil {
			logger.Warn("ticket archive disabled", zap.Error(err))
		} else {
			archive = a
		}
	}

	events := repository.NewEventRepo(db)
	reservations := repository.NewReservationRepo(db)

	engine := service.NewReservationService(events, reservations, repository.NewLedger(db), locker, publisher, logger, service.Policy{
		CancelWindow: cfg.CancelWindow(),
		CheckInLead:  cfg.CheckInLead(),
		MaxTickets:   cfg.MaxTickets,
	})
	eventSvc := service.NewEventService(events, logger)
	ticketSvc := service.NewTicketService(reservations, engine, ticket.NewSigner(cfg.QRSecret), archive, logger)

	cacheCfg := config.LoadCacheConfig()
	rateCfg := config.LoadRateLimitConfig()

	var purge func(ctx context.Context) error
	if rdb != nil && cacheCfg.Enabled {
		purge = func(ctx context.Context) error { return middleware.PurgeCache(ctx, cacheCfg, rdb) }
	}

	e := echo.New() // Create Echo instance
	e.HideBanner = true
	e.Use(echomw.RequestID())
	e.Use(echomw.Recover())
	e.Use(middleware.RequestLogger(logger))

	router.RegisterRoutes(e, handler.Health(db))
	router.RegisterAuth(e,
		handler.NewAuthHandler(cfg, repository.NewUserRepo(db), repository.NewTokenRepo(db), logger),
		cfg.JWTSecret,
		middleware.NewTokenBucket(rateCfg, rdb, logger))
	router.RegisterPublic(e, handler.NewPublicHandler(eventSvc, logger), middleware.NewRedisCache(cacheCfg, rdb, logger))
	router.RegisterReservations(e,
		handler.NewReservationHandler(engine, ticketSvc, logger),
		cfg.JWTSecret,
		middleware.NewTokenBucket(rateCfg.Reservations(), rdb, logger))
	router.RegisterAdmin(e,
		handler.NewAdminEventHandler(eventSvc, reservations, purge, logger),
		handler.NewAdminReservationHandler(engine, ticketSvc, logger),
		cfg.JWTSecret)

	ctx, stop := context.WithCancel(context.Background())
	defer stop()
	if cfg.RabbitMQURL != "" && cfg.ConsumerEnabled {
		consumer := &queue.Consumer{URL: cfg.RabbitMQURL, LogDir: cfg.AuditLogDir, Log: logger}
		go func() {
			logger.Info("lifecycle consumer started", zap.String("dir", cfg.AuditLogDir))
			if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("lifecycle consumer", zap.Error(err))
			}
		}()
	}

	addr := ":" + cfg.Port // Address string with port
	go func() {
		logger.Info("server listening", zap.String("addr", addr), zap.String("env", cfg.Env), zap.String("db", cfg.DBDriver))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down")

	stop()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
}

// openDB connects to the configured driver and applies the schema.
// OpenSQLite migrates on its own.
func openDB(cfg config.Config) (*sql.DB, error) {
	if cfg.DBDriver == "sqlite" {
		return database.OpenSQLite(cfg.SQLitePath)
	}
	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := database.Migrate(ctx, db, "mysql"); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}
