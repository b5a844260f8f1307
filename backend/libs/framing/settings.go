package framing

import (
	"strings"
	"time"
)

// Settings is the configuration file form of Config. Delimiters accept the
// escapes \n, \r, \t and \0 so they survive YAML and environment variables.
type Settings struct {
	Delimiters   string        `yaml:"delimiters" env:"FRAMING_DELIMITERS"`
	MaxFrameSize int           `yaml:"maxFrameSize" env:"FRAMING_MAX_FRAME_SIZE"`
	FlushAfter   time.Duration `yaml:"flushAfter" env:"FRAMING_FLUSH_AFTER"`
}

// DefaultSettings mirrors DefaultConfig.
func DefaultSettings() Settings {
	return Settings{
		Delimiters:   `\n\r#`,
		MaxFrameSize: DefaultMaxFrameSize,
		FlushAfter:   DefaultFlushAfter,
	}
}

// Config resolves the settings into a reader Config.
func (s Settings) Config(idleTimeout time.Duration) Config {
	flush := s.FlushAfter
	if flush <= 0 {
		flush = DefaultFlushAfter
	}
	return Config{
		Delimiters:   ParseDelimiters(s.Delimiters),
		MaxFrameSize: s.MaxFrameSize,
		FlushAfter:   flush,
		IdleTimeout:  idleTimeout,
	}.normalized()
}

var delimiterEscapes = strings.NewReplacer(`\n`, "\n", `\r`, "\r", `\t`, "\t", `\0`, "\x00")

// ParseDelimiters expands escapes and removes duplicate bytes.
func ParseDelimiters(s string) []byte {
	expanded := delimiterEscapes.Replace(s)
	seen := make(map[byte]bool, len(expanded))
	out := make([]byte, 0, len(expanded))
	for i := 0; i < len(expanded); i++ {
		b := expanded[i]
		if seen[b] {
			continue
		}
		seen[b] = true
		out = append(out, b)
	}
	return out
}
