package main

import (
	"log"
	"log/slog"
	"time"

	"github.com/caarlos0/env/v11"
)

var logLevels = map[uint8]slog.Level{
	0: slog.LevelDebug,
	1: slog.LevelInfo,
	2: slog.LevelWarn,
	3: slog.LevelError,
}

type System struct {
	Port     string `env:"SYSTEM_PORT" envDefault:"9094"`
	LogLevel uint8  `env:"SYSTEM_LOG_LEVEL" envDefault:"1"` // 0 - debug, 1 - info, 2 - warn, 3 - error
}

type Moderation struct {
	// ReportCooldown suppresses duplicate reports from the same
	// reporter against the same target while an earlier one is open.
	ReportCooldown        time.Duration `env:"MODERATION_REPORT_COOLDOWN" envDefault:"24h"`
	SweepInterval         time.Duration `env:"MODERATION_SWEEP_INTERVAL" envDefault:"1m"`
	ReversalRetryInterval time.Duration `env:"MODERATION_REVERSAL_RETRY_INTERVAL" envDefault:"30s"`
}

type Collaborators struct {
	IdentityBaseURL  string `env:"IDENTITY_BASE_URL" required:"true"`
	DirectoryBaseURL string `env:"DIRECTORY_BASE_URL" required:"true"`
	ContentBaseURL   string `env:"CONTENT_BASE_URL" required:"true"`
	EventsWebhookURL string `env:"EVENTS_WEBHOOK_URL" envDefault:""`
}

type Metrics struct {
	Namespace        string `env:"NAMESPACE" default:"moderation"`
	ServerSubsystem  string `env:"SERVER_SUBSYSTEM" default:"mod-server"`
	WorkersSubsystem string `env:"WORKERS_SUBSYSTEM" default:"mod-workers"`
	DbSubsystem      string `env:"DB_SUBSYSTEM" default:"mod-db"`
	ClientsSubsystem string `env:"CLIENTS_SUBSYSTEM" default:"mod-clients"`
}

type Postgress struct {
	Host     string `env:"DB_HOST" required:"true"`
	Port     string `env:"DB_PORT" required:"true"`
	User     string `env:"DB_USER" required:"true"`
	Password string `env:"DB_PASSWORD" required:"true"`
	Name     string `env:"DB_NAME" required:"true"`
}

type Config struct {
	System        System
	Moderation    Moderation
	Collaborators Collaborators
	Metrics       Metrics
	DB            Postgress
}

func loadConfig() *Config {
	cfg := &Config{}
	if err := env.Parse(&cfg.System); err != nil {
		log.Fatalf("Failed to parse system config: %v", err)
	}
	if err := env.Parse(&cfg.Moderation); err != nil {
		log.Fatalf("Failed to parse moderation config: %v", err)
	}
	if err := env.Parse(&cfg.Collaborators); err != nil {
		log.Fatalf("Failed to parse collaborators config: %v", err)
	}
	if err := env.Parse(&cfg.Metrics); err != nil {
		log.Fatalf("Failed to parse metrics config: %v", err)
	}
	if err := env.Parse(&cfg.DB); err != nil {
		log.Fatalf("Failed to parse db config: %v", err)
	}

	return cfg
}
