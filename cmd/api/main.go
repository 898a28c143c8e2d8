package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/geocoder89/bienesraices/internal/auth"
	"github.com/geocoder89/bienesraices/internal/config"
	"github.com/geocoder89/bienesraices/internal/db"
	"github.com/geocoder89/bienesraices/internal/domain/user"
	httpx "github.com/geocoder89/bienesraices/internal/http"
	"github.com/geocoder89/bienesraices/internal/http/handlers"
	"github.com/geocoder89/bienesraices/internal/notifications"
	"github.com/geocoder89/bienesraices/internal/observability"
	"github.com/geocoder89/bienesraices/internal/queue/redisclient"
	"github.com/geocoder89/bienesraices/internal/repo/memory"
	"github.com/geocoder89/bienesraices/internal/repo/mysql"
	"github.com/geocoder89/bienesraices/internal/repo/postgres"
	"github.com/geocoder89/bienesraices/internal/tokens"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

func main() {
	// a missing .env is fine, the environment may already be set
	_ = godotenv.Load()

	// Load the config set up
	cfg := config.Load()

	// start up the observability logger
	log := observability.NewLogger(cfg.Env)
	slog.SetDefault(log)

	for _, w := range cfg.Warnings {
		log.Warn("config", "warning", w)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := observability.InitTracer(ctx, observability.TracerConfig{
		ServiceName: "bienesraices-api",
		Env:         cfg.Env,
		Endpoint:    cfg.OTELEndpoint,
		SampleRatio: cfg.OTELSampleRatio,
	})
	if err != nil {
		log.Error("tracer init failed", "err", err)
		os.Exit(1)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	prom := observability.NewProm(reg)

	users, closeStore, err := openStore(ctx, cfg, prom, log)
	if err != nil {
		log.Error("store init failed", "driver", cfg.DBDriver, "err", err)
		os.Exit(1)
	}
	defer closeStore()

	checks := []handlers.Check{{Name: "users", Ping: users.Ping}}

	notifier, closeNotifier, redisCheck := buildNotifier(cfg, prom, log)
	defer closeNotifier()
	if redisCheck != nil {
		checks = append(checks, *redisCheck)
	}

	accounts := tokens.NewManager(users,
		tokens.WithTTL(cfg.TokenTTL),
		tokens.WithObserver(prom),
	)

	// set up routers with the log
	router, err := httpx.NewRouter(log, cfg, httpx.Deps{
		Accounts: accounts,
		Users:    users,
		Notifier: notifier,
		Sessions: auth.NewManager(cfg.SessionSecret, cfg.SessionTTL),
		Prom:     prom,
		Gatherer: reg,
		Checks:   checks,
	})
	if err != nil {
		log.Error("router init failed", "err", err)
		os.Exit(1)
	}

	// server set up
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("Server starting", "port", cfg.Port, "env", cfg.Env, "db", cfg.DBDriver, "mail", cfg.MailDelivery, "public_url", cfg.PublicURL())
		err := srv.ListenAndServe()

		if err != nil && err != http.ErrServerClosed {
			log.Error("server failed", "err", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown

	<-ctx.Done()
	log.Info("server shutting down")

	shutdownCtx, cancel := config.WithTimeout(10 * time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "err", err)
	}

	if err := shutdownTracer(shutdownCtx); err != nil {
		log.Error("tracer shutdown failed", "err", err)
	}

	log.Info("shutdown complete")
}

// openStore picks the user store for DB_DRIVER and applies migrations.
func openStore(ctx context.Context, cfg config.Config, prom *observability.Prom, log *slog.Logger) (user.Repository, func(), error) {
	switch cfg.DBDriver {
	case config.DriverMemory:
		log.Warn("using in-memory user store, accounts are lost on restart")
		return memory.NewUsersRepo(), func() {}, nil

	case config.DriverMySQL:
		sqlDB, err := db.NewMySQL(cfg.MySQLDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("mysql connect: %w", err)
		}
		if cfg.DBMigrate {
			if err := db.Migrate(ctx, sqlDB, db.DialectMySQL); err != nil {
				sqlDB.Close()
				return nil, nil, err
			}
		}
		return mysql.NewUsersRepo(sqlDB, prom), func() { sqlDB.Close() }, nil

	default:
		pool, err := db.NewPool(cfg.DBURL)
		if err != nil {
			return nil, nil, fmt.Errorf("db connect: %w", err)
		}
		if cfg.DBMigrate {
			if err := db.MigratePool(ctx, pool); err != nil {
				pool.Close()
				return nil, nil, err
			}
		}
		return postgres.NewUsersRepo(pool, prom), pool.Close, nil
	}
}

// buildNotifier picks the delivery mode for MAIL_DELIVERY. Every mode is
// metered; the synchronous ones also sit behind the circuit breaker.
func buildNotifier(cfg config.Config, prom *observability.Prom, log *slog.Logger) (notifications.Notifier, func(), *handlers.Check) {
	links := notifications.Links{BaseURL: cfg.PublicURL()}
	protect := notifications.ProtectedNotifierConfig{
		Timeout:          5 * time.Second,
		FailureThreshold: 5,
		Cooldown:         30 * time.Second,
		OnStateChange: func(from, to string) {
			log.Warn("mail circuit breaker", "from", from, "to", to)
			prom.BreakerState(from, to)
		},
	}

	switch cfg.MailDelivery {
	case config.DeliverySMTP:
		smtp := notifications.NewSMTPNotifier(smtpConfig(cfg), links)
		return notifications.NewMeteredNotifier(notifications.NewProtectedNotifier(smtp, protect), prom), func() {}, nil

	case config.DeliveryQueue:
		rdb := redisclient.New(cfg)
		box := rdb.Outbox()
		check := &handlers.Check{Name: "redis", Ping: rdb.Ping}
		closer := func() {
			if err := rdb.Close(); err != nil {
				log.Error("redis close failed", "err", err)
			}
		}
		return notifications.NewMeteredNotifier(notifications.NewQueueNotifier(box), prom), closer, check

	default:
		return notifications.NewMeteredNotifier(notifications.NewLogNotifier(log, links), prom), func() {}, nil
	}
}

func smtpConfig(cfg config.Config) notifications.SMTPConfig {
	return notifications.SMTPConfig{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUser,
		Password: cfg.SMTPPassword,
		From:     cfg.MailFrom,
	}
}
