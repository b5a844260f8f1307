package config

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	libconfig "trackhub/backend/libs/config"
	"trackhub/backend/libs/framing"
)

// Config defines ingest gateway configuration.
type Config struct {
	Listen struct {
		Port          string        `yaml:"port" env:"GATEWAY_PORT"`
		ProxyProtocol bool          `yaml:"proxyProtocol" env:"GATEWAY_PROXY_PROTOCOL"`
		IdleTimeout   time.Duration `yaml:"idleTimeout" env:"GATEWAY_IDLE_TIMEOUT"`
	} `yaml:"listen"`
	Primary struct {
		URL         string        `yaml:"url" env:"PRIMARY_DESTINATION"`
		Timeout     time.Duration `yaml:"timeout" env:"PRIMARY_TIMEOUT"`
		MaxInFlight int           `yaml:"maxInFlight" env:"PRIMARY_MAX_IN_FLIGHT"`
	} `yaml:"primary"`
	Targets   []string `yaml:"targets" env:"GATEWAY_TARGETS"`
	Secondary string   `yaml:"secondaryDestination" env:"SECONDARY_DESTINATION"`
	Target    struct {
		QueueSize    int           `yaml:"queueSize" env:"TARGET_QUEUE_SIZE"`
		DialTimeout  time.Duration `yaml:"dialTimeout" env:"TARGET_DIAL_TIMEOUT"`
		WriteTimeout time.Duration `yaml:"writeTimeout" env:"TARGET_WRITE_TIMEOUT"`
	} `yaml:"target"`
	Framing framing.Settings `yaml:"framing"`
}

// Load configuration using shared helper.
func Load() (*Config, error) {
	cfg := &Config{}
	cfg.Listen.Port = "9000"
	cfg.Listen.IdleTimeout = 30 * time.Minute
	cfg.Primary.Timeout = 5 * time.Second
	cfg.Primary.MaxInFlight = 64
	cfg.Target.QueueSize = 64
	cfg.Target.DialTimeout = 5 * time.Second
	cfg.Target.WriteTimeout = 5 * time.Second
	cfg.Framing = framing.DefaultSettings()

	if err := libconfig.LoadConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ListenAddress returns host:port for the device listener.
func (c *Config) ListenAddress() string {
	port := strings.TrimSpace(c.Listen.Port)
	if port == "" {
		port = "9000"
	}
	if strings.Contains(port, ":") {
		return port
	}
	return fmt.Sprintf("0.0.0.0:%s", port)
}

// FramingConfig returns the device stream framing with the idle timeout.
func (c *Config) FramingConfig() framing.Config {
	return c.Framing.Config(c.Listen.IdleTimeout)
}

// TargetAddresses merges targets and the secondary destination. Entries
// that are not host:port are returned separately so the caller can log them.
func (c *Config) TargetAddresses() (valid, invalid []string) {
	entries := append([]string(nil), c.Targets...)
	if c.Secondary != "" {
		entries = append(entries, libconfig.SplitList(c.Secondary)...)
	}
	seen := make(map[string]bool, len(entries))
	for _, entry := range entries {
		entry = strings.TrimSpace(entry)
		if entry == "" || seen[entry] {
			continue
		}
		seen[entry] = true
		if validTarget(entry) {
			valid = append(valid, entry)
		} else {
			invalid = append(invalid, entry)
		}
	}
	return valid, invalid
}

func validTarget(addr string) bool {
	host, port, err := net.SplitHostPort(addr)
	if err != nil || host == "" {
		return false
	}
	n, err := strconv.Atoi(port)
	return err == nil && n > 0 && n <= 65535
}
