package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"shoporders/internal/config"
	"shoporders/internal/db"
	"shoporders/internal/notify"
	outboxrepo "shoporders/internal/repository/outbox"
	"github.com/rs/zerolog"
)

func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		fatalLog := zerolog.New(os.Stderr)
		fatalLog.Fatal().Err(err).Msg("load config")
	}
	logger := zerolog.New(os.Stdout).With().Timestamp().Str("component", "notifier").Logger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.Connect(ctx, cfg.DBConnString)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect db")
	}
	defer pool.Close()

	dispatcher := notify.NewDispatcher(outboxrepo.NewPostgres(pool), cfg.KafkaTopic, cfg.Brokers(), cfg.OutboxPollPeriod, logger)

	logger.Info().Str("topic", cfg.KafkaTopic).Strs("brokers", cfg.Brokers()).Msg("dispatcher started")
	dispatcher.Run(ctx)
	logger.Info().Msg("dispatcher stopped")
}
