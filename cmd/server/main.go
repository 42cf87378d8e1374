package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/redis/go-redis/v9"

	"regpay/internal/admin"
	"regpay/internal/event"
	"regpay/internal/payment"
	"regpay/internal/platform/config"
	"regpay/internal/platform/logger"
	"regpay/internal/platform/metrics"
	"regpay/internal/reconcile"
	"regpay/internal/reconcile/tracer"
	"regpay/internal/registration/store"
	"regpay/internal/session"
	httptransport "regpay/internal/transport/http"
	"regpay/internal/upstream"
)

// main wires high-level dependencies and keeps the server lifecycle small.
// Business logic lives in the internal services packages.
func main() {
	cfg := config.Load()
	log := logger.New()

	log.Info("initializing regpay gateway",
		"addr", cfg.Addr,
		"backend", cfg.BackendBaseURL,
		"snapshot_backend", cfg.SnapshotBackend,
		"session_backend", cfg.SessionBackend,
	)

	m := metrics.New()

	snapshots, err := newSnapshotStore(cfg, log)
	if err != nil {
		log.Error("snapshot store init failed", "error", err)
		os.Exit(1)
	}

	sessionStore, err := newSessionStore(cfg, log)
	if err != nil {
		log.Error("session store init failed", "error", err)
		os.Exit(1)
	}
	sessions := session.NewManager(sessionStore, log,
		session.WithMetrics(m),
		session.WithDefaultTTL(cfg.SessionTTL),
	)

	client := upstream.New(cfg.BackendBaseURL, log,
		upstream.WithDefaultTimeout(cfg.DefaultTimeout),
		upstream.WithTokenSource(sessions),
		upstream.WithMetrics(m),
	)

	events := event.NewService(client, log)
	payments := payment.NewService(client, log)
	admins := admin.NewService(client, sessions, payments, log, cfg.AdminTimeout, cfg.LongTimeout)

	engine := reconcile.NewEngine(payments, snapshots, log,
		reconcile.WithMetrics(m),
		reconcile.WithTracer(tracer.NewOTel()),
		reconcile.WithLabels(cfg.Institution, cfg.EventName),
	)

	handler := httptransport.NewHandler(events, payments, admins, engine, snapshots, client, m, log)
	router := httptransport.NewRouter(handler, &cfg, log)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	log.Info("starting http server", "addr", cfg.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown on SIGINT
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt)
	<-quit

	log.Info("shutting down server gracefully")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
		os.Exit(1)
	}

	log.Info("server stopped")
}

func newSnapshotStore(cfg config.Config, log *slog.Logger) (store.Store, error) {
	switch cfg.SnapshotBackend {
	case "sqlite":
		return store.OpenSQLite(cfg.SQLitePath, log)
	case "redis":
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		client := redis.NewClient(opts)
		if err := client.Ping(context.Background()).Err(); err != nil {
			return nil, err
		}
		return store.NewRedis(client, log), nil
	default:
		return store.NewInMemory(), nil
	}
}

func newSessionStore(cfg config.Config, log *slog.Logger) (session.Store, error) {
	if cfg.SessionBackend == "file" {
		return session.NewFileStore(cfg.SessionPath, cfg.SessionSecret, log)
	}
	return session.NewInMemoryStore(), nil
}
