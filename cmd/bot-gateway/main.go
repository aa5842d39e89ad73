package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"tg-content-assistant/internal/adapters/billingclient"
	"tg-content-assistant/internal/adapters/bot"
	"tg-content-assistant/internal/adapters/repo"
	"tg-content-assistant/internal/adapters/session"
	"tg-content-assistant/internal/adapters/stylist"
	"tg-content-assistant/internal/adapters/telegram"
	"tg-content-assistant/internal/domain"
	"tg-content-assistant/internal/infra/cache"
	"tg-content-assistant/internal/infra/config"
	httpinfra "tg-content-assistant/internal/infra/http"
	"tg-content-assistant/internal/infra/log"
	"tg-content-assistant/internal/infra/metrics"
	"tg-content-assistant/internal/infra/openai"
	"tg-content-assistant/internal/infra/queue"
	"tg-content-assistant/internal/usecase/channels"
	"tg-content-assistant/internal/usecase/content"
	"tg-content-assistant/internal/usecase/schedule"
	"tg-content-assistant/internal/usecase/wizard"
)

// updateDedupTTL задаёт, сколько помним обработанный update_id: Telegram повторяет
// вебхук, если не дождался ответа.
const updateDedupTTL = 10 * time.Minute

func main() {
	cfg := config.Load()
	logger := log.NewLogger(cfg.AppEnv)
	metrics.MustRegister(prometheus.DefaultRegisterer)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	loc, err := schedule.LoadLocation(cfg.TZ)
	if err != nil {
		logger.Fatal().Err(err).Str("tz", cfg.TZ).Msg("некорректный часовой пояс")
	}

	store, err := repo.Open(cfg.Storage.Driver, cfg.PGDSN, cfg.Storage.SQLitePath)
	if err != nil {
		logger.Fatal().Err(err).Msg("не удалось подключиться к БД")
	}
	defer store.Close()
	if err := store.Migrate(ctx); err != nil {
		logger.Fatal().Err(err).Msg("не удалось применить миграции")
	}

	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer redisClient.Close()
	}

	var sessions domain.SessionStore = session.NewMemory(cfg.Session.TTL)
	if redisClient != nil {
		sessions = session.NewRedis(redisClient, cfg.Session.TTL, cfg.Session.LockTTL)
	}

	var transformer domain.StyleTransformer = stylist.NewEcho()
	if cfg.OpenAI.APIKey != "" {
		client := openai.NewClient(cfg.OpenAI.APIKey, cfg.OpenAI.BaseURL, cfg.OpenAI.Timeout)
		transformer = stylist.NewOpenAI(client, cfg.OpenAI.Model, cfg.OpenAI.SystemPrompt, cfg.OpenAI.Temperature)
	} else {
		logger.Warn().Msg("OPENAI_API_KEY не задан, стилист возвращает текст без изменений")
	}

	var balance domain.Balance = store
	if cfg.Billing.URL != "" {
		client, err := billingclient.New(cfg.Billing.URL, billingclient.WithTimeout(cfg.Billing.Timeout))
		if err != nil {
			logger.Fatal().Err(err).Msg("не удалось создать клиент биллинга")
		}
		balance = client
	}

	botAPI, err := tgbotapi.NewBotAPI(cfg.Telegram.Token)
	if err != nil {
		logger.Fatal().Err(err).Msg("не удалось создать бота")
	}
	sender := telegram.NewSender(botAPI, cfg.Telegram.SendRPS, log.WithComponent(logger, "sender"))

	// Без Redis бот сам ведёт очередь публикаций, с Redis будит отдельный планировщик.
	var notifier schedule.Notifier
	if redisClient != nil {
		notifier = queue.NewRedisWakeQueue(redisClient, cfg.Scheduler.WakeQueue)
	} else {
		runner := schedule.NewRunner(store, store, sender, nil, schedule.RunnerConfig{
			Owner:       runnerOwner(),
			Tick:        cfg.Scheduler.Tick,
			LeaseTTL:    cfg.Scheduler.LeaseTTL,
			MaxAttempts: cfg.Scheduler.MaxAttempts,
			BatchSize:   cfg.Scheduler.BatchSize,
		}, log.WithComponent(logger, "scheduler"))
		notifier = runner
		go func() {
			if err := runner.Run(ctx); err != nil {
				logger.Error().Err(err).Msg("планировщик остановлен с ошибкой")
			}
		}()
	}

	channelService := channels.NewService(store, cfg.ChannelLimit)
	contentService := content.NewService(store, store, balance, transformer, cfg.OpenAI.Timeout, log.WithComponent(logger, "content"))
	scheduleService := schedule.NewService(store, store, store, notifier, nil, log.WithComponent(logger, "schedule"))
	publisher := schedule.NewPublisher(store, store, store, sender, nil, log.WithComponent(logger, "publisher"))
	engine := wizard.NewEngine(sessions, wizard.Services{
		Channels:  channelService,
		Content:   contentService,
		Scheduler: scheduleService,
	}, nil, loc, log.WithComponent(logger, "wizard"))

	catalog, err := bot.DefaultCatalog()
	if err != nil {
		logger.Fatal().Err(err).Msg("не удалось загрузить тексты бота")
	}
	h := bot.NewHandler(botAPI, log.WithComponent(logger, "bot"), catalog, bot.UseCases{
		Dialogs:   engine,
		Content:   contentService,
		Channels:  channelService,
		Scheduler: scheduleService,
		Publisher: publisher,
	}, loc)

	var dedup *cache.Locker
	if redisClient != nil {
		dedup = cache.NewLocker(redisClient)
	}

	server := httpinfra.NewServer(logger)
	server.Router.Post("/bot/webhook", func(w http.ResponseWriter, r *http.Request) {
		var update tgbotapi.Update
		if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		handle := func() error {
			h.HandleUpdate(r.Context(), update)
			return nil
		}
		if dedup == nil {
			_ = handle()
		} else if err := dedup.Once(r.Context(), "tg:update:"+strconv.Itoa(update.UpdateID), updateDedupTTL, handle); err != nil {
			logger.Error().Err(err).Int("update_id", update.UpdateID).Msg("не удалось проверить повтор апдейта")
			_ = handle()
		}
		w.WriteHeader(http.StatusOK)
	})

	if cfg.Telegram.WebhookURL != "" {
		webhook, err := tgbotapi.NewWebhook(cfg.Telegram.WebhookURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("некорректный адрес вебхука")
		}
		if _, err := botAPI.Request(webhook); err != nil {
			logger.Error().Err(err).Msg("не удалось зарегистрировать вебхук")
		}
	}

	go func() {
		logger.Info().Msg("бот-гейтвей запущен")
		if err := server.Start(fmt.Sprintf(":%d", cfg.Port)); err != nil {
			logger.Error().Err(err).Msg("HTTP сервер остановлен")
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("остановка бота")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = server.Shutdown(shutdownCtx)
}

func runnerOwner() string {
	host, err := os.Hostname()
	if err != nil {
		host = "bot-gateway"
	}
	return fmt.Sprintf("%s-%d", host, os.Getpid())
}
