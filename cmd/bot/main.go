package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"carwatch/internal/alert"
	"carwatch/internal/config"
	"carwatch/internal/fetcher"
	"carwatch/internal/parser"
	"carwatch/internal/ratelimit"
	"carwatch/internal/scheduler"
	"carwatch/internal/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}

	log := newLogger(cfg.LogLevel)

	if dir := filepath.Dir(cfg.DatabasePath); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			log.Error("create data directory", "path", dir, "error", err)
			os.Exit(1)
		}
	}

	store, err := storage.NewSQLite(cfg.DatabasePath)
	if err != nil {
		log.Error("open database", "path", cfg.DatabasePath, "error", err)
		os.Exit(1)
	}

	var alerts alert.Sink
	if cfg.HasTelegram() {
		alerts, err = alert.NewTelegram(cfg.TelegramAPIKey, cfg.TelegramChatID, log)
		if err != nil {
			log.Error("create telegram sink", "error", err)
			_ = store.Close()
			os.Exit(1)
		}
	} else {
		log.Warn("telegram credentials not configured, alerts go to the log only")
		alerts = alert.NewLogSink(log)
	}

	limiter := ratelimit.New(cfg.RateLimitRequests, cfg.RateLimitWindow)
	fetch := fetcher.New(limiter, fetcher.Options{
		Timeout:     cfg.RequestTimeout,
		MaxAttempts: cfg.MaxRetries,
		BaseDelay:   cfg.RetryDelay,
		UserAgent:   cfg.UserAgent,
	}, log)
	parse := parser.New(cfg.SourceName, log)

	sched := scheduler.New(store, fetch, parse, alerts, scheduler.Config{
		BaseURL:          cfg.BaseURL,
		MaxPages:         cfg.MaxPages,
		Interval:         cfg.MainLoopInterval,
		Retention:        cfg.DeleteOlderThan,
		CheckPolicy:      cfg.CheckRobotsTxt,
		MaxCycleFailures: cfg.MaxCycleFailures,
	}, log)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	log.Info("starting carwatch", "source", cfg.SourceName, "pages", cfg.MaxPages)

	runErr := sched.Run(ctx)

	if err := store.Close(); err != nil {
		log.Error("close database", "error", err)
	}
	if runErr != nil {
		log.Error("scheduler stopped", "error", runErr)
		os.Exit(1)
	}
	log.Info("carwatch stopped")
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
