package config

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/joho/godotenv"
	"go-simpler.org/env"
)

type Config struct {
	AppEnv    string `env:"APP_ENV" default:"development"`
	Port      string `env:"PORT" default:"8080"`
	LogLevel  string `env:"LOG_LEVEL" default:"info"`
	LogFormat string `env:"LOG_FORMAT" default:"text"`

	// Provider selection. The simulated provider is the default so the
	// server runs without broker credentials.
	UseMockData       bool   `env:"USE_MOCK_DATA" default:"true"`
	BrokerBaseURL     string `env:"BROKER_BASE_URL"`
	BrokerClientID    string `env:"BROKER_CLIENT_ID"`
	BrokerAccessToken string `env:"BROKER_ACCESS_TOKEN"`

	// Circuit breaker guarding all provider calls.
	BreakerFailureThreshold uint32        `env:"BREAKER_FAILURE_THRESHOLD" default:"5"`
	BreakerOpenTimeout      time.Duration `env:"BREAKER_OPEN_TIMEOUT" default:"30s"`

	// Polling scheduler. Cadences are per-channel data (domain.ChannelSpec);
	// only the failure backoff is tunable.
	PollFailureBackoff time.Duration `env:"POLL_FAILURE_BACKOFF" default:"5s"`

	// Event history retained for resume. Retention is an explicit constant
	// of the deployment, not an inferred value.
	EventBufferSize int `env:"EVENT_BUFFER_SIZE" default:"1000"`

	// Connection limits.
	MaxConnections      int64   `env:"MAX_CONNECTIONS" default:"2000"`
	MaxConnectionsPerIP int     `env:"MAX_CONNECTIONS_PER_IP" default:"20"`
	ConnectionRateLimit float64 `env:"CONNECTION_RATE_LIMIT" default:"5"`
	ConnectionRateBurst int     `env:"CONNECTION_RATE_BURST" default:"10"`

	// Per-connection outbound queue and inbound rate limit.
	ClientSendBuffer int     `env:"CLIENT_SEND_BUFFER" default:"32"`
	MessageRateLimit float64 `env:"MESSAGE_RATE_LIMIT" default:"10"`
	MessageRateBurst int     `env:"MESSAGE_RATE_BURST" default:"20"`

	// Backpressure: emit a summary instead of a full delta past either bound.
	SummaryMaxChanges int `env:"SUMMARY_MAX_CHANGES" default:"200"`
	SummaryMaxClients int `env:"SUMMARY_MAX_CLIENTS" default:"250"`

	// Connection liveness.
	PingInterval time.Duration `env:"PING_INTERVAL" default:"30s"`
	IdleTimeout  time.Duration `env:"IDLE_TIMEOUT" default:"5m"`
	WriteTimeout time.Duration `env:"WRITE_TIMEOUT" default:"5s"`

	// Simulated provider price-walk interval.
	MockUpdateInterval time.Duration `env:"MOCK_UPDATE_INTERVAL" default:"2s"`
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	var cfg Config
	if err := env.Load(&cfg, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func validate(cfg *Config) error {
	if !cfg.UseMockData {
		required := map[string]string{
			"BROKER_BASE_URL":     cfg.BrokerBaseURL,
			"BROKER_CLIENT_ID":    cfg.BrokerClientID,
			"BROKER_ACCESS_TOKEN": cfg.BrokerAccessToken,
		}
		for name, value := range required {
			if value == "" {
				return fmt.Errorf("%s is required when USE_MOCK_DATA=false", name)
			}
		}
	}

	if cfg.BreakerFailureThreshold == 0 {
		return errors.New("BREAKER_FAILURE_THRESHOLD must be at least 1")
	}
	if cfg.EventBufferSize < 1 {
		return errors.New("EVENT_BUFFER_SIZE must be at least 1")
	}
	if cfg.ClientSendBuffer < 1 {
		return errors.New("CLIENT_SEND_BUFFER must be at least 1")
	}
	if cfg.IdleTimeout <= cfg.PingInterval {
		return errors.New("IDLE_TIMEOUT must be longer than PING_INTERVAL")
	}

	return nil
}
