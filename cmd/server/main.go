package main

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/jgirmay/pyguide/internal/common/database"
	contentmodels "github.com/jgirmay/pyguide/internal/content/models"
	identitymodels "github.com/jgirmay/pyguide/internal/identity/models"
	learningmodels "github.com/jgirmay/pyguide/internal/learning/models"
	"github.com/jgirmay/pyguide/internal/metrics"
	"github.com/jgirmay/pyguide/internal/realtime"
	"github.com/jgirmay/pyguide/pkg/config"
	"github.com/jgirmay/pyguide/pkg/logger"
)

const version = "1.0.0"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if err := logger.Init(cfg.Server.Env); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()
	lg := logger.L()

	lg.Info("initializing database", zap.String("type", cfg.Database.Type))
	db, err := database.InitWithType(cfg.Database.Type, cfg.Database.DSN, cfg.Server.Env == "development")
	if err != nil {
		lg.Fatal("database connection failed", zap.Error(err))
	}
	defer database.Close()

	if err := database.Migrate(db,
		&identitymodels.User{},
		&identitymodels.Role{},
		&identitymodels.AdminAudit{},
		&contentmodels.Section{},
		&contentmodels.Subject{},
		&contentmodels.Content{},
		&learningmodels.Attempt{},
		&learningmodels.QuestioningSession{},
		&learningmodels.SubjectProgress{},
	); err != nil {
		lg.Fatal("migration failed", zap.Error(err))
	}

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	bus, redisBus, err := newBus(ctx, cfg.Redis, lg)
	if err != nil {
		lg.Fatal("event bus unavailable", zap.Error(err))
	}

	m := metrics.New()
	hub := realtime.NewHub(lg, m)
	go hub.Run(ctx)
	unsubscribe := bus.Subscribe(hub.Dispatch)

	app := buildApp(cfg, db, bus, hub, m, lg)

	apiServer := &http.Server{
		Addr:         net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
		Handler:      app.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	opsServer := &http.Server{
		Addr:         net.JoinHostPort(cfg.Server.Host, cfg.Server.OpsPort),
		Handler:      opsRouter(db, redisBus, m),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	done := make(chan struct{})
	go func() {
		sig := <-sigChan
		lg.Info("received signal, shutting down", zap.String("signal", sig.String()))

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := apiServer.Shutdown(shutdownCtx); err != nil {
			lg.Error("api server shutdown", zap.Error(err))
		}
		if err := opsServer.Shutdown(shutdownCtx); err != nil {
			lg.Error("ops server shutdown", zap.Error(err))
		}
		close(done)
	}()

	go func() {
		lg.Info("ops listener started", zap.String("addr", opsServer.Addr))
		if err := opsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			lg.Error("ops listener failed", zap.Error(err))
		}
	}()

	lg.Info("pyguide api started",
		zap.String("addr", apiServer.Addr),
		zap.String("env", cfg.Server.Env),
		zap.String("version", version),
	)
	if err := apiServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		lg.Fatal("api server failed", zap.Error(err))
	}
	<-done

	app.lessons.Close()
	unsubscribe()
	stop()
	if err := bus.Close(); err != nil {
		lg.Warn("event bus close", zap.Error(err))
	}
	lg.Info("server stopped")
}

// newBus returns the redis-backed bus when REDIS_ADDR is set and the in-memory bus otherwise.
func newBus(ctx context.Context, cfg config.RedisConfig, lg *zap.Logger) (realtime.Bus, *realtime.RedisBus, error) {
	if cfg.Addr == "" {
		lg.Info("using in-memory event bus")
		return realtime.NewMemoryBus(256), nil, nil
	}

	rb, err := realtime.NewRedisBus(lg, cfg.Addr, cfg.Channel)
	if err != nil {
		return nil, nil, err
	}
	if err := rb.StartForwarder(ctx); err != nil {
		_ = rb.Close()
		return nil, nil, err
	}
	lg.Info("using redis event bus", zap.String("addr", cfg.Addr), zap.String("channel", cfg.Channel))
	return rb, rb, nil
}
