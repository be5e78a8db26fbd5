package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/sankalp/sankalp/internal/auth"
	"github.com/sankalp/sankalp/internal/cache"
	"github.com/sankalp/sankalp/internal/config"
	"github.com/sankalp/sankalp/internal/notify"
	"github.com/sankalp/sankalp/internal/repository"
	"github.com/sankalp/sankalp/internal/repository/postgres"
	sqliteRepo "github.com/sankalp/sankalp/internal/repository/sqlite"
	"github.com/sankalp/sankalp/internal/service"
)

// Deps is the assembled dependency graph shared by the HTTP server and the
// admin CLI. Open builds it from a config.Config; Close releases it.
//
// BACKEND SELECTION:
//   - DATABASE_URL set → Postgres (pgxpool), otherwise SQLite at DB_PATH
//   - REDIS_URL set    → Redis cache, otherwise in-process memory
//   - AMQP_URL set     → notifications go through RabbitMQ, otherwise inline
//   - SMTP_HOST set    → real email, otherwise emails are logged
type Deps struct {
	Store    repository.Store
	Cache    cache.Store
	Mail     notify.Publisher
	Queue    *notify.AMQP // nil unless AMQP_URL is set
	Sender   notify.Sender
	Calendar service.Calendar

	Tokens    *auth.TokenService
	Auth      *service.AuthService
	Users     *service.UserService
	Habits    *service.HabitService
	CheckIns  *service.CheckInService
	Stats     *service.StatsService
	Reminders *service.ReminderService

	closers []func() error
}

// Open connects every backend the config names and wires the services.
func Open(ctx context.Context, cfg config.Config, logger *slog.Logger) (*Deps, error) {
	d := &Deps{}
	ok := false
	defer func() {
		if !ok {
			d.Close()
		}
	}()

	store, err := openStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	d.Store = store
	d.closers = append(d.closers, store.Close)

	if cfg.RedisURL != "" {
		r, err := cache.NewRedis(ctx, cfg.RedisURL, "sankalp:")
		if err != nil {
			return nil, fmt.Errorf("connecting to redis: %w", err)
		}
		d.Cache = r
		logger.Info("cache: redis")
	} else {
		d.Cache = cache.NewMemory(time.Minute)
		logger.Info("cache: in-process memory")
	}
	d.closers = append(d.closers, d.Cache.Close)

	if cfg.SMTPConfigured() {
		d.Sender = notify.NewSMTPSender(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword, cfg.SMTPFrom)
	} else {
		logger.Warn("SMTP not configured, emails will only be logged")
		d.Sender = notify.NewLogSender(logger)
	}

	if cfg.AMQPURL != "" {
		q, err := notify.DialAMQP(cfg.AMQPURL, cfg.AMQPQueue)
		if err != nil {
			return nil, fmt.Errorf("connecting to amqp: %w", err)
		}
		d.Queue = q
		d.Mail = q
		d.closers = append(d.closers, q.Close)
		logger.Info("notifications: amqp queue", slog.String("queue", cfg.AMQPQueue))
	} else {
		d.Mail = notify.NewDirect(d.Sender, logger)
	}

	tokens, err := auth.NewTokenService(cfg.JWTSecret)
	if err != nil {
		return nil, fmt.Errorf("creating token service: %w", err)
	}
	d.Tokens = tokens

	d.Calendar = service.DefaultCalendar(cfg.Location)
	stats := service.NewStatsCache(d.Cache, service.DefaultStatsTTL, logger)

	d.Auth = service.NewAuthService(store, tokens, auth.NewPasswordService(), auth.NewOTPStore(d.Cache), d.Mail, logger)
	d.Users = service.NewUserService(store, logger)
	d.Habits = service.NewHabitService(store, stats, logger)
	d.CheckIns = service.NewCheckInService(store, stats, d.Calendar, logger)
	d.Stats = service.NewStatsService(store, stats, d.Calendar, cfg.AtRiskHour, logger)
	d.Reminders = service.NewReminderService(store, d.Cache, d.Mail, d.Calendar, logger)

	ok = true
	return d, nil
}

// Worker returns the queue consumer that delivers queued notifications.
func (d *Deps) Worker(logger *slog.Logger) *notify.Worker {
	return notify.NewWorker(d.Sender, d.Cache, logger)
}

// Close releases backends in reverse order of opening.
func (d *Deps) Close() error {
	var errs []error
	for i := len(d.closers) - 1; i >= 0; i-- {
		if err := d.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	d.closers = nil
	return errors.Join(errs...)
}

func openStore(ctx context.Context, cfg config.Config, logger *slog.Logger) (repository.Store, error) {
	if cfg.DatabaseURL != "" {
		db, err := postgres.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("opening postgres: %w", err)
		}
		logger.Info("store: postgres")
		return db, nil
	}

	if cfg.DBPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}
	db, err := sqliteRepo.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite: %w", err)
	}
	logger.Info("store: sqlite", slog.String("path", cfg.DBPath))
	return db, nil
}
