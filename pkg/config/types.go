package config

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"gopkg.in/yaml.v3"
)

// Config is the main configuration struct.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Sync    SyncConfig    `yaml:"sync"`
	Cleanup CleanupConfig `yaml:"cleanup"`
	Logging LoggingConfig `yaml:"logging"`
}

// ServerConfig holds the debug HTTP listener and storage settings.
type ServerConfig struct {
	Address string `yaml:"address"`
	Port    int    `yaml:"port"`
	DBPath  string `yaml:"db_path"`
	// InboxAddress is this node's routing identifier handed to peers in
	// control payloads.
	InboxAddress string          `yaml:"inbox_address"`
	RateLimit    RateLimitConfig `yaml:"rate_limit"`
}

// RateLimitConfig bounds requests on the debug listener.
type RateLimitConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

// SyncConfig tunes the delta-sync engine.
type SyncConfig struct {
	MaxMessages           int      `yaml:"max_messages"`
	RequestExpiry         Duration `yaml:"request_expiry"`
	AggressiveSyncTimeout Duration `yaml:"aggressive_sync_timeout"`
	MaxChunkSize          ByteSize `yaml:"max_chunk_size"`
	TombstoneMaxAge       Duration `yaml:"tombstone_max_age"`
}

// CleanupConfig holds the tombstone reaper schedule.
type CleanupConfig struct {
	Enabled bool   `yaml:"enabled"`
	Cron    string `yaml:"cron"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // text|json
}

// Addr returns host:port for the debug HTTP listener.
func (c *Config) Addr() string {
	addr := c.Server.Address
	if addr == "" {
		addr = "0.0.0.0"
	}
	p := c.Server.Port
	if p == 0 {
		p = 8080
	}
	return fmt.Sprintf("%s:%d", addr, p)
}

// ByteSize is a byte count. YAML accepts plain integers or strings with a
// unit suffix ("5MiB", "512kb"); humanize covers both forms.
type ByteSize int64

func (b *ByteSize) UnmarshalYAML(node *yaml.Node) error {
	text := strings.TrimSpace(node.Value)
	if text == "" {
		*b = 0
		return nil
	}
	n, err := humanize.ParseBytes(text)
	if err != nil {
		return fmt.Errorf("cannot read %q as a byte size: %w", node.Value, err)
	}
	if n > math.MaxInt64 {
		return fmt.Errorf("byte size %q overflows", node.Value)
	}
	*b = ByteSize(n)
	return nil
}

func (b ByteSize) Bytes() int64 { return int64(b) }

// Duration wraps time.Duration. YAML accepts Go duration strings ("30s")
// or bare numbers, which are read as milliseconds — every protocol timing
// (request expiry, aggressive timeout) is millisecond-based on the wire.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	text := strings.TrimSpace(node.Value)
	if text == "" {
		*d = 0
		return nil
	}
	if ms, err := strconv.ParseInt(text, 10, 64); err == nil {
		*d = Duration(time.Duration(ms) * time.Millisecond)
		return nil
	}
	parsed, err := time.ParseDuration(text)
	if err != nil {
		return fmt.Errorf("cannot read %q as a duration: %w", node.Value, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) Duration() time.Duration { return time.Duration(d) }
