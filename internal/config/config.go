// Package config loads relay configuration from the environment.
// Adapted directly from ws/config.go: same caarlos0/env + godotenv
// loading sequence and Validate()/LogConfig() pair, with the
// websocket-proxy's Kafka/CPU fields replaced by the relay's own
// listen, protocol, and admission settings (spec §3, §4.3, §8).
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

// Config holds every environment-tunable relay setting.
//
// Tags:
//
//	env: environment variable name
//	envDefault: default value if not set
type Config struct {
	// Network
	Addr             string `env:"RELAY_ADDR" envDefault:":8080"`
	RemoteIPHeader   string `env:"RELAY_REMOTE_IP_HEADER" envDefault:""`
	RelayName        string `env:"RELAY_NAME" envDefault:"nostr-rs-relay"`
	RelayDescription string `env:"RELAY_DESCRIPTION" envDefault:""`
	RelayPubkey      string `env:"RELAY_PUBKEY" envDefault:""`
	RelayContact     string `env:"RELAY_CONTACT" envDefault:""`

	// Protocol limits (spec §4)
	MaxEventBytes           int `env:"RELAY_MAX_EVENT_BYTES" envDefault:"131072"`
	MaxSubscriptionsPerConn int `env:"RELAY_MAX_SUBS_PER_CONN" envDefault:"20"`
	SubscriptionsPerMin     int `env:"RELAY_SUBS_PER_MIN" envDefault:"0"`
	RejectFutureSeconds     int `env:"RELAY_REJECT_FUTURE_SECONDS" envDefault:"0"`

	// Timing
	PingIntervalSeconds int `env:"RELAY_PING_INTERVAL_SECONDS" envDefault:"300"`
	IdleTimeoutSeconds  int `env:"RELAY_IDLE_TIMEOUT_SECONDS" envDefault:"1200"`

	// Buffers / concurrency (spec §4.5, §4.6)
	BroadcastBufferSize    int `env:"RELAY_BROADCAST_BUFFER" envDefault:"256"`
	EventPersistBufferSize int `env:"RELAY_EVENT_PERSIST_BUFFER" envDefault:"1024"`
	MaxBlockingThreads     int `env:"RELAY_MAX_BLOCKING_THREADS" envDefault:"16"`

	// Admission control (gopsutil, generalized from ws's CPU thresholds)
	CPURejectThreshold float64 `env:"RELAY_CPU_REJECT_THRESHOLD" envDefault:"90.0"`
	MemRejectThreshold float64 `env:"RELAY_MEM_REJECT_THRESHOLD" envDefault:"90.0"`

	// Metadata bus (optional NATS backing, spec §4.6)
	NATSURL string `env:"RELAY_NATS_URL" envDefault:""`

	// NIP-05 verification service (spec §5)
	NIP05VerificationEnabled bool `env:"RELAY_NIP05_VERIFICATION_ENABLED" envDefault:"false"`

	// Admin / metrics auth (supplemented feature, see DESIGN.md)
	MetricsJWTSecret string `env:"RELAY_METRICS_JWT_SECRET" envDefault:""`

	// Monitoring
	MetricsInterval time.Duration `env:"RELAY_METRICS_INTERVAL" envDefault:"15s"`

	// Logging
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	Environment string `env:"ENVIRONMENT" envDefault:"development"`
}

// Load reads configuration from a .env file (if present) then the
// environment, applying defaults and validating the result. Priority:
// real env vars > .env file > struct defaults.
func Load(logger *zerolog.Logger) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		if logger != nil {
			logger.Info().Msg("no .env file found, using environment variables only")
		}
	} else if logger != nil {
		logger.Info().Msg("loaded configuration from .env file")
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// Validate checks configuration for internally inconsistent or
// out-of-range values.
func (c *Config) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("RELAY_ADDR is required")
	}
	if c.MaxEventBytes < 1 {
		return fmt.Errorf("RELAY_MAX_EVENT_BYTES must be > 0, got %d", c.MaxEventBytes)
	}
	if c.MaxSubscriptionsPerConn < 0 {
		return fmt.Errorf("RELAY_MAX_SUBS_PER_CONN must be >= 0, got %d", c.MaxSubscriptionsPerConn)
	}
	if c.PingIntervalSeconds < 1 {
		return fmt.Errorf("RELAY_PING_INTERVAL_SECONDS must be > 0, got %d", c.PingIntervalSeconds)
	}
	if c.CPURejectThreshold < 0 || c.CPURejectThreshold > 100 {
		return fmt.Errorf("RELAY_CPU_REJECT_THRESHOLD must be 0-100, got %.1f", c.CPURejectThreshold)
	}
	if c.MemRejectThreshold < 0 || c.MemRejectThreshold > 100 {
		return fmt.Errorf("RELAY_MEM_REJECT_THRESHOLD must be 0-100, got %.1f", c.MemRejectThreshold)
	}

	validLogLevels := map[string]bool{"trace": true, "debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("LOG_LEVEL must be one of: trace, debug, info, warn, error (got: %s)", c.LogLevel)
	}
	validLogFormats := map[string]bool{"json": true, "pretty": true}
	if !validLogFormats[c.LogFormat] {
		return fmt.Errorf("LOG_FORMAT must be one of: json, pretty (got: %s)", c.LogFormat)
	}
	return nil
}

// LogConfig emits the loaded configuration as a structured log record.
func (c *Config) LogConfig(logger zerolog.Logger) {
	logger.Info().
		Str("environment", c.Environment).
		Str("addr", c.Addr).
		Str("relay_name", c.RelayName).
		Int("max_event_bytes", c.MaxEventBytes).
		Int("max_subs_per_conn", c.MaxSubscriptionsPerConn).
		Int("subs_per_min", c.SubscriptionsPerMin).
		Int("ping_interval_seconds", c.PingIntervalSeconds).
		Int("idle_timeout_seconds", c.IdleTimeoutSeconds).
		Int("broadcast_buffer", c.BroadcastBufferSize).
		Int("event_persist_buffer", c.EventPersistBufferSize).
		Int("max_blocking_threads", c.MaxBlockingThreads).
		Float64("cpu_reject_threshold", c.CPURejectThreshold).
		Float64("mem_reject_threshold", c.MemRejectThreshold).
		Str("log_level", c.LogLevel).
		Str("log_format", c.LogFormat).
		Msg("relay configuration loaded")
}
