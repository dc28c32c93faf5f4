// Command server runs the event booking API, its expiry sweep and the
// booking event consumer.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/iliyamo/eventix-booking/internal/config"
	"github.com/iliyamo/eventix-booking/internal/database"
	"github.com/iliyamo/eventix-booking/internal/handler"
	"github.com/iliyamo/eventix-booking/internal/middleware"
	"github.com/iliyamo/eventix-booking/internal/queue"
	"github.com/iliyamo/eventix-booking/internal/repository"
	"github.com/iliyamo/eventix-booking/internal/router"
	"github.com/iliyamo/eventix-booking/internal/service"
	"github.com/iliyamo/eventix-booking/internal/worker"
)

func main() {
	logger := logrus.New()
	if err := run(logger); err != nil {
		logger.WithError(err).Fatal("booking service stopped")
	}
}

func run(logger *logrus.Logger) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := setupLogger(logger, cfg); err != nil {
		return err
	}

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		return fmt.Errorf("connecting to db: %w", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.WithError(err).Error("failed to close db connection")
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := database.Migrate(ctx, db); err != nil {
		return fmt.Errorf("migrating schema: %w", err)
	}

	var publisher service.EventPublisher = queue.NopPublisher{}
	if cfg.BrokerEnabled {
		publisher = queue.NewPublisher(cfg.RabbitURL)
	}

	store := repository.NewStore(db)
	svc := service.New(service.Deps{
		Tx:           store,
		Events:       repository.NewEventRepo(db),
		Reservations: repository.NewReservationRepo(db),
		Payments:     repository.NewPaymentRepo(db),
		Tickets:      repository.NewTicketRepo(db),
		Publisher:    publisher,
		Logger:       logger.WithField("component", "booking"),
		HoldTTL:      cfg.HoldTTL,
	})

	// Rate limiting needs Redis; without it the limiter lets every request
	// through.
	var scripter redis.Scripter
	if cfg.RateLimit.Enabled {
		rdb, err := config.NewRedisClient(ctx, config.RedisOptions())
		if err != nil {
			logger.WithError(err).Warn("redis unavailable; rate limiting disabled")
		} else {
			scripter = rdb
			defer func() {
				if err := rdb.Close(); err != nil {
					logger.WithError(err).Error("failed to close redis connection")
				}
			}()
		}
	}
	limiter := middleware.NewRateLimiter(cfg.RateLimit, scripter, logger.WithField("component", "ratelimit"))

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())
	e.Use(middleware.RequestLogger(logger.WithField("component", "http")))

	router.RegisterRoutes(e, db)
	router.RegisterBooking(e, handler.NewBookingHandler(svc, logger.WithField("component", "http")), cfg.JWTSecret, limiter.Middleware())

	sweep := worker.NewExpirySweep(svc.Reservations, cfg.SweepInterval, cfg.SweepBatch, logger.WithField("component", "expiry"))

	g, runCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return ignoreCancel(sweep.Run(runCtx))
	})

	if cfg.BrokerEnabled {
		audit, closeAudit, err := auditLogger(cfg.AuditLogPath)
		if err != nil {
			return err
		}
		defer closeAudit()
		consumer := queue.NewConsumer(cfg.RabbitURL, logger.WithField("component", "consumer"), audit)
		g.Go(func() error {
			return ignoreCancel(consumer.Run(runCtx))
		})
	}

	g.Go(func() error {
		addr := ":" + cfg.Port
		logger.WithFields(logrus.Fields{"addr": addr, "env": cfg.Env}).Info("Starting HTTP server...")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("starting http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-runCtx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		logger.Info("Shutting down HTTP server...")
		if err := e.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutting down http server: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return fmt.Errorf("waiting for shutdown: %w", err)
	}
	logger.Info("Shutdown complete.")
	return nil
}

func setupLogger(logger *logrus.Logger, cfg config.Config) error {
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("parsing LOG_LEVEL: %w", err)
	}
	logger.SetLevel(level)
	if cfg.LogFormat == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return nil
}

// auditLogger opens the audit file in append mode, creating its directory.
func auditLogger(path string) (*logrus.Logger, func(), error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, nil, fmt.Errorf("creating audit log dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("opening audit log: %w", err)
	}
	audit := logrus.New()
	audit.SetOutput(f)
	audit.SetFormatter(&logrus.JSONFormatter{})
	return audit, func() { _ = f.Close() }, nil
}

func ignoreCancel(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
