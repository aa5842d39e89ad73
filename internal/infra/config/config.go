package config

import (
	"errors"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// AppConfig описывает конфигурацию сервисов.
type AppConfig struct {
	AppEnv string `envconfig:"APP_ENV" default:"dev"`
	TZ     string `envconfig:"TZ" default:"Europe/Moscow"`
	Port   int    `envconfig:"PORT" default:"8080"`

	Telegram struct {
		Token      string  `envconfig:"TG_BOT_TOKEN"`
		WebhookURL string  `envconfig:"TG_WEBHOOK_URL"`
		SendRPS    float64 `envconfig:"TG_SEND_RPS" default:"20"`
	} `envconfig:""`

	Storage struct {
		Driver     string `envconfig:"STORAGE_DRIVER" default:"postgres"`
		SQLitePath string `envconfig:"SQLITE_PATH" default:"data/assistant.db"`
	} `envconfig:""`

	PGDSN string `envconfig:"PG_DSN"`

	RedisAddr string `envconfig:"REDIS_ADDR"`

	Session struct {
		TTL     time.Duration `envconfig:"SESSION_TTL" default:"24h"`
		LockTTL time.Duration `envconfig:"SESSION_LOCK_TTL" default:"2m"`
	} `envconfig:""`

	OpenAI struct {
		APIKey  string        `envconfig:"OPENAI_API_KEY"`
		BaseURL string        `envconfig:"OPENAI_BASE_URL"`
		Model   string        `envconfig:"OPENAI_MODEL" default:"gpt-4.1-mini"`
		Timeout time.Duration `envconfig:"OPENAI_TIMEOUT" default:"60s"`

		// SystemPrompt заменяет инструкцию стилиста по умолчанию.
		SystemPrompt string  `envconfig:"OPENAI_SYSTEM_PROMPT"`
		Temperature  float64 `envconfig:"OPENAI_TEMPERATURE" default:"0.5"`
	} `envconfig:""`

	ChannelLimit int `envconfig:"CHANNEL_LIMIT" default:"10"`

	Scheduler struct {
		Tick        time.Duration `envconfig:"SCHEDULER_TICK" default:"30s"`
		MaxAttempts int           `envconfig:"SCHEDULER_MAX_ATTEMPTS" default:"5"`
		LeaseTTL    time.Duration `envconfig:"SCHEDULER_LEASE_TTL" default:"2m"`
		BatchSize   int           `envconfig:"SCHEDULER_BATCH" default:"50"`
		WakeQueue   string        `envconfig:"SCHEDULER_WAKE_QUEUE" default:"publish_wake"`
	} `envconfig:""`

	Billing struct {
		URL     string        `envconfig:"BILLING_URL"`
		Timeout time.Duration `envconfig:"BILLING_TIMEOUT" default:"10s"`
	} `envconfig:""`

	MetricsAddr string `envconfig:"METRICS_ADDR" default:":9090"`
}

// Load загружает конфиг из окружения, предварительно читая .env, если он есть.
func Load() AppConfig {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("не удалось прочитать .env: %v", err)
	}
	var cfg AppConfig
	if err := envconfig.Process("", &cfg); err != nil {
		log.Fatalf("не удалось загрузить конфиг: %v", err)
	}
	return cfg
}
