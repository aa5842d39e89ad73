package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"tg-content-assistant/internal/adapters/repo"
	"tg-content-assistant/internal/adapters/telegram"
	"tg-content-assistant/internal/infra/config"
	"tg-content-assistant/internal/infra/log"
	"tg-content-assistant/internal/infra/metrics"
	"tg-content-assistant/internal/infra/queue"
	"tg-content-assistant/internal/usecase/schedule"
)

func main() {
	cfg := config.Load()
	logger := log.WithComponent(log.NewLogger(cfg.AppEnv), "scheduler")
	metrics.MustRegister(prometheus.DefaultRegisterer)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()
	metrics.StartServer(ctx, logger, cfg.MetricsAddr)

	store, err := repo.Open(cfg.Storage.Driver, cfg.PGDSN, cfg.Storage.SQLitePath)
	if err != nil {
		logger.Fatal().Err(err).Msg("scheduler: нет подключения к БД")
	}
	defer store.Close()
	if err := store.Migrate(ctx); err != nil {
		logger.Fatal().Err(err).Msg("scheduler: не удалось применить миграции")
	}

	botAPI, err := tgbotapi.NewBotAPI(cfg.Telegram.Token)
	if err != nil {
		logger.Fatal().Err(err).Msg("scheduler: не удалось создать бота")
	}
	sender := telegram.NewSender(botAPI, cfg.Telegram.SendRPS, logger)

	host, err := os.Hostname()
	if err != nil {
		host = "scheduler"
	}
	runner := schedule.NewRunner(store, store, sender, nil, schedule.RunnerConfig{
		Owner:       fmt.Sprintf("%s-%d", host, os.Getpid()),
		Tick:        cfg.Scheduler.Tick,
		LeaseTTL:    cfg.Scheduler.LeaseTTL,
		MaxAttempts: cfg.Scheduler.MaxAttempts,
		BatchSize:   cfg.Scheduler.BatchSize,
	}, logger)

	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer client.Close()
		wake := queue.NewRedisWakeQueue(client, cfg.Scheduler.WakeQueue)
		go wake.Listen(ctx, logger, runner.Wake)
	}

	if err := runner.Run(ctx); err != nil {
		logger.Error().Err(err).Msg("scheduler: цикл публикации остановлен с ошибкой")
	}
}
