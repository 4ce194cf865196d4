package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mcclellann/loanTracker/pkg/config"
	"github.com/mcclellann/loanTracker/pkg/ledger"
	"github.com/mcclellann/loanTracker/pkg/logger"
	"github.com/mcclellann/loanTracker/pkg/models"
	"github.com/mcclellann/loanTracker/pkg/notify"
	"github.com/mcclellann/loanTracker/pkg/store"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if err := logger.Init(cfg.LogLevel); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	if err := run(cfg); err != nil {
		logger.Error("server exited", err)
		logger.Sync()
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	storage, err := openStore(context.Background(), cfg.Store)
	if err != nil {
		return fmt.Errorf("failed to initialize %s store: %w", cfg.Store.Driver, err)
	}
	defer storage.Close()

	sender, err := newSender(cfg)
	if err != nil {
		return err
	}
	dispatcher := notify.NewDispatcher(sender, cfg.Notify.QueueSize, cfg.Notify.Workers, cfg.Notify.SendTimeout)

	opts := []ledger.Option{ledger.WithDispatcher(dispatcher)}
	if cfg.StrictTransitions {
		opts = append(opts, ledger.WithTransitionPolicy(models.StrictTransitions))
	}
	server := NewServer(ledger.NewLedger(storage, opts...))

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      NewRouter(server, cfg.AllowedOrigins),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("server starting",
			zap.Int("port", cfg.Port),
			zap.String("store", cfg.Store.Driver),
			zap.Bool("smtp", cfg.SMTPEnabled()),
			zap.Bool("strict_transitions", cfg.StrictTransitions),
		)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-quit:
		logger.Info("shutting down server", zap.String("signal", sig.String()))
	case err := <-serveErr:
		if err != nil {
			_ = dispatcher.Close(context.Background())
			return fmt.Errorf("server failed: %w", err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", err)
	}
	if err := dispatcher.Close(ctx); err != nil {
		logger.Warn("pending notifications abandoned", zap.Error(err))
	}

	logger.Info("server stopped")
	return nil
}

func openStore(ctx context.Context, cfg config.StoreConfig) (store.Storage, error) {
	switch cfg.Driver {
	case config.DriverRedis:
		return store.NewRedisStore(ctx, &redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		}, cfg.RedisPrefix)
	case config.DriverMemory:
		return store.NewMemoryStore(), nil
	default:
		return store.NewSQLiteStore(cfg.SQLitePath)
	}
}

func newSender(cfg *config.Config) (notify.Sender, error) {
	if !cfg.SMTPEnabled() {
		return notify.LogSender{}, nil
	}
	sender, err := notify.NewSMTPSender(notify.SMTPConfig{
		Host:     cfg.SMTP.Host,
		Port:     cfg.SMTP.Port,
		Username: cfg.SMTP.Username,
		Password: cfg.SMTP.Password,
		From:     cfg.SMTP.From,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to configure smtp: %w", err)
	}
	return sender, nil
}
