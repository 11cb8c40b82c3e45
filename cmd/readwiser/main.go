// Package main contains the entrypoint for the ReadWiser Telegram bot.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbot "github.com/go-telegram/bot"
	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/edgard/readwiser/internal/bot"
	"github.com/edgard/readwiser/internal/bot/handlers"
	"github.com/edgard/readwiser/internal/bot/tasks"
	"github.com/edgard/readwiser/internal/config"
	"github.com/edgard/readwiser/internal/database"
	"github.com/edgard/readwiser/internal/digest"
	"github.com/edgard/readwiser/internal/logger"
	"github.com/edgard/readwiser/internal/metadata"
	"github.com/edgard/readwiser/internal/metrics"
	"github.com/edgard/readwiser/internal/pending"
	"github.com/edgard/readwiser/internal/resilience"
	"github.com/edgard/readwiser/internal/telegram"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	exitCode := run(ctx)
	stop()
	os.Exit(exitCode)
}

// run wires config, logger, database, telegram client, handlers and scheduler,
// blocks until shutdown and returns the process exit code.
func run(ctx context.Context) int {
	configPath := flag.String("config", "./config.yaml", "Path to configuration file")
	flag.Parse()

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("Failed to load .env file", "error", err)
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		slog.Error("Failed to load configuration", "path", *configPath, "error", err)
		return 1
	}

	log := logger.NewLogger(cfg.Logger.Level, cfg.Logger.JSON)
	log.Info("Logger initialized", "level", cfg.Logger.Level, "json", cfg.Logger.JSON)

	db, err := database.NewDB(cfg.Database.Path, cfg.Database.BusyTimeout)
	if err != nil {
		log.Error("Failed to connect to database", "path", cfg.Database.Path, "error", err)
		return 1
	}
	defer database.CloseDB(db)

	metrics.MustRegister(prometheus.DefaultRegisterer)

	clock := clockwork.NewRealClock()
	store := database.NewStore(db, log, clock)
	fetcher := metadata.NewGuardedFetcher(
		metadata.NewHTTPFetcher(metadata.Config{
			Timeout:      cfg.Metadata.Timeout,
			MaxBodyBytes: cfg.Metadata.MaxBodyBytes,
			UserAgent:    cfg.Metadata.UserAgent,
		}, log),
		resilience.New(resilience.Config{
			Name:        "metadata",
			Attempts:    cfg.Metadata.RetryAttempts,
			Delay:       cfg.Metadata.RetryDelay,
			MaxFailures: cfg.Metadata.BreakerFailures,
			Cooldown:    cfg.Metadata.BreakerCooldown,
			Retryable:   metadata.IsTransient,
		}, log),
	)

	hDeps := handlers.HandlerDeps{
		Logger:       log,
		Config:       cfg,
		Store:        store,
		Pending:      pending.New(cfg.Pending.TTL, clock),
		Fetcher:      fetcher,
		Clock:        clock,
		NewMessenger: telegram.HandlerMessenger,
	}

	// The default handler only saves quotes and never reads hDeps.Digest.
	botOpts := []tgbot.Option{
		tgbot.WithMiddlewares(logger.Middleware(log)),
		tgbot.WithDefaultHandler(handlers.NewDefaultHandler(hDeps)),
	}
	tg, err := telegram.NewTelegramBot(cfg.Telegram.Token, log, botOpts...)
	if err != nil {
		log.Error("Failed to create Telegram bot", "error", err)
		return 1
	}

	digestSvc := digest.NewService(store, telegram.NewMessenger(tg), cfg.Digest.Count, clock, log)
	hDeps.Digest = digestSvc

	if err := telegram.RegisterHandlers(tg, log, handlers.RegisterAllCommands(hDeps)); err != nil {
		log.Error("Failed to register Telegram handlers", "error", err)
		return 1
	}
	if err := telegram.SetCommands(ctx, tg, log, handlers.MenuCommands()); err != nil {
		log.Warn("Failed to publish command menu", "error", err)
	}

	tDeps := tasks.TaskDeps{
		Logger: log,
		Store:  store,
		Digest: digestSvc,
		Config: cfg,
	}
	sched, err := bot.NewScheduler(log, &cfg.Scheduler, tasks.RegisterAllTasks(tDeps), clock)
	if err != nil {
		log.Error("Failed to create scheduler", "error", err)
		return 1
	}

	app := bot.NewBot(log, cfg, store, tg, sched)

	log.Info("Starting bot...")
	runErr := app.Run(ctx)

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		log.Error("Bot stopped due to error", "error", runErr)
		time.Sleep(time.Second)
		return 1
	}

	log.Info("Bot stopped gracefully.")
	return 0
}
