package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	libconfig "trackhub/backend/libs/config"
	"trackhub/backend/libs/framing"
	"trackhub/backend/services/tracking-service/internal/analytics"
	"trackhub/backend/services/tracking-service/internal/decoder"
)

// Database drivers.
const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Config defines tracking service configuration.
type Config struct {
	HTTP struct {
		Port string `yaml:"port" env:"TRACKING_HTTP_PORT"`
	} `yaml:"http"`
	Database struct {
		DSN     string `yaml:"dsn" env:"DATABASE_URL"`
		Driver  string `yaml:"driver" env:"DATABASE_DRIVER"`
		Migrate bool   `yaml:"migrate" env:"DATABASE_MIGRATE"`
	} `yaml:"database"`
	TCP struct {
		Addresses     []string      `yaml:"addresses" env:"TCP_LISTEN_ADDRS"`
		ProxyProtocol bool          `yaml:"proxyProtocol" env:"TCP_PROXY_PROTOCOL"`
		Broadcast     bool          `yaml:"broadcast" env:"TCP_BROADCAST"`
		IdleTimeout   time.Duration `yaml:"idleTimeout" env:"TCP_IDLE_TIMEOUT"`
	} `yaml:"tcp"`
	Framing framing.Settings `yaml:"framing"`
	Decoder struct {
		Default string `yaml:"default" env:"DECODER_DEFAULT"`
	} `yaml:"decoder"`
	Auth struct {
		JWTSecret      string `yaml:"jwtSecret" env:"JWT_SECRET"`
		GlobalTenantID int64  `yaml:"globalTenantId" env:"GLOBAL_TENANT_ID"`
	} `yaml:"auth"`
	Redis struct {
		Addr     string `yaml:"addr" env:"REDIS_ADDR"`
		Password string `yaml:"password" env:"REDIS_PASSWORD"`
		DB       int    `yaml:"db" env:"REDIS_DB"`
		Channel  string `yaml:"channel" env:"REDIS_CHANNEL"`
	} `yaml:"redis"`
	NATS struct {
		URL     string `yaml:"url" env:"NATS_URL"`
		Subject string `yaml:"subject" env:"NATS_SUBJECT"`
	} `yaml:"nats"`
	WebSocket struct {
		PingIntervalSeconds int `yaml:"pingIntervalSeconds" env:"WS_PING_INTERVAL_SECONDS"`
		WriteTimeoutSeconds int `yaml:"writeTimeoutSeconds" env:"WS_WRITE_TIMEOUT_SECONDS"`
	} `yaml:"websocket"`
	Analytics struct {
		TripGap time.Duration `yaml:"tripGap" env:"ANALYTICS_TRIP_GAP"`
	} `yaml:"analytics"`
	CORS struct {
		AllowedOrigins []string `yaml:"allowedOrigins" env:"CORS_ALLOWED_ORIGINS"`
	} `yaml:"cors"`
}

// Load configuration using shared helper.
func Load() (*Config, error) {
	cfg := &Config{}
	cfg.HTTP.Port = "8084"
	cfg.Database.Driver = DriverPostgres
	cfg.TCP.Addresses = []string{"0.0.0.0:9000"}
	cfg.TCP.IdleTimeout = 30 * time.Minute
	cfg.Framing = framing.DefaultSettings()
	cfg.Decoder.Default = decoder.ProtocolGPS103
	cfg.Auth.GlobalTenantID = 1
	cfg.Redis.Channel = "positions"
	cfg.NATS.Subject = "positions"
	cfg.WebSocket.PingIntervalSeconds = 30
	cfg.WebSocket.WriteTimeoutSeconds = 15
	cfg.Analytics.TripGap = analytics.DefaultTripGap

	if err := libconfig.LoadConfig(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks settings that cannot be defaulted.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case DriverPostgres:
		if strings.TrimSpace(c.Database.DSN) == "" {
			return errors.New("config: database dsn required")
		}
	case DriverMemory:
	default:
		return fmt.Errorf("config: unknown database driver %q", c.Database.Driver)
	}
	if c.TCP.IdleTimeout < 0 {
		return errors.New("config: tcp idle timeout must not be negative")
	}
	return nil
}

// HTTPAddress returns :port style.
func (c *Config) HTTPAddress() string {
	port := strings.TrimSpace(c.HTTP.Port)
	if port == "" {
		port = "8084"
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return fmt.Sprintf(":%s", port)
}

// FramingConfig returns the device stream framing with the tcp idle timeout.
func (c *Config) FramingConfig() framing.Config {
	return c.Framing.Config(c.TCP.IdleTimeout)
}

// PingInterval returns the websocket keepalive period.
func (c *Config) PingInterval() time.Duration {
	if c.WebSocket.PingIntervalSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.WebSocket.PingIntervalSeconds) * time.Second
}

// WriteTimeout returns the websocket write deadline.
func (c *Config) WriteTimeout() time.Duration {
	if c.WebSocket.WriteTimeoutSeconds <= 0 {
		return 15 * time.Second
	}
	return time.Duration(c.WebSocket.WriteTimeoutSeconds) * time.Second
}

// TripGap returns the idle gap that separates trips.
func (c *Config) TripGap() time.Duration {
	if c.Analytics.TripGap <= 0 {
		return analytics.DefaultTripGap
	}
	return c.Analytics.TripGap
}
