package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Config is the CLI configuration.
type Config struct {
	Store     BackendConfig `mapstructure:"store"`
	Queue     QueueConfig   `mapstructure:"queue"`
	Documents BackendConfig `mapstructure:"documents"`
	Worker    WorkerConfig  `mapstructure:"worker"`
	HTTP      HTTPConfig    `mapstructure:"http"`
	Log       LogConfig     `mapstructure:"log"`
	Audit     AuditConfig   `mapstructure:"audit"`
	Events    EventsConfig  `mapstructure:"events"`
}

// BackendConfig selects a persistence driver.
type BackendConfig struct {
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
	// Database names the MongoDB database.
	Database string `mapstructure:"database"`
}

// QueueConfig selects the queue backend.
type QueueConfig struct {
	Driver string `mapstructure:"driver"`
	URL    string `mapstructure:"url"`
	Codec  string `mapstructure:"codec"`

	// Limits cap concurrency and start rate per queue name.
	Limits []QueueLimit `mapstructure:"limits"`
}

// QueueLimit is one entry of queue.limits.
type QueueLimit struct {
	Name           string  `mapstructure:"name"`
	MaxConcurrency int     `mapstructure:"max_concurrency"`
	RateLimit      float64 `mapstructure:"rate_limit"`
	RateBurst      int     `mapstructure:"rate_burst"`
}

// WorkerConfig configures the worker pool and sweeper.
type WorkerConfig struct {
	Concurrency     int           `mapstructure:"concurrency"`
	Queues          []string      `mapstructure:"queues"`
	PollInterval    time.Duration `mapstructure:"poll_interval"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	SweepInterval   time.Duration `mapstructure:"sweep_interval"`
	SweepThreshold  time.Duration `mapstructure:"sweep_threshold"`
}

// HTTPConfig configures the operator API listener.
type HTTPConfig struct {
	Addr string `mapstructure:"addr"`
}

// AuditConfig enables the JSON lines audit trail.
type AuditConfig struct {
	File string `mapstructure:"file"`
}

// EventsConfig enables publishing lifecycle events to a Redis stream.
type EventsConfig struct {
	Stream string `mapstructure:"stream"`
	URL    string `mapstructure:"url"`
	MaxLen int64  `mapstructure:"max_len"`
}

// LogConfig configures the slog handler.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	File   string `mapstructure:"file"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.dsn", "file:docsync.db")
	v.SetDefault("store.database", "docsync")
	v.SetDefault("queue.driver", "memory")
	v.SetDefault("queue.url", "redis://localhost:6379/0")
	v.SetDefault("queue.codec", "msgpack")
	v.SetDefault("documents.driver", "sqlite")
	v.SetDefault("documents.dsn", "file:docsync.db")
	v.SetDefault("worker.concurrency", 4)
	v.SetDefault("worker.queues", []string{"default"})
	v.SetDefault("worker.poll_interval", 500*time.Millisecond)
	v.SetDefault("worker.shutdown_timeout", 30*time.Second)
	v.SetDefault("worker.sweep_interval", time.Minute)
	v.SetDefault("worker.sweep_threshold", 5*time.Minute)
	v.SetDefault("http.addr", ":8080")
	v.SetDefault("events.url", "redis://localhost:6379/0")
	v.SetDefault("events.max_len", 100000)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// flagKeys maps persistent flags to config keys.
var flagKeys = map[string]string{
	"store":      "store.driver",
	"store-dsn":  "store.dsn",
	"queue":      "queue.driver",
	"log-level":  "log.level",
	"log-format": "log.format",
	"log-file":   "log.file",
	"audit-file": "audit.file",
}

// loadConfig merges defaults, the config file, .env, DOCSYNC_* variables
// and flags, in increasing precedence.
func loadConfig(cmd *cobra.Command, file string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("DOCSYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", file, err)
		}
	}

	for flag, key := range flagKeys {
		if f := cmd.Flags().Lookup(flag); f != nil {
			if err := v.BindPFlag(key, f); err != nil {
				return nil, err
			}
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return &c, nil
}

// newLogger builds the process logger. With a log file set, output goes to
// a lumberjack-rotated file.
func newLogger(c LogConfig) (*slog.Logger, io.Closer) {
	var (
		w      io.Writer = os.Stderr
		closer io.Closer
	)
	if c.File != "" {
		lj := &lumberjack.Logger{
			Filename:   c.File,
			MaxSize:    100,
			MaxBackups: 5,
			MaxAge:     28,
			Compress:   true,
		}
		w, closer = lj, lj
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}

	var h slog.Handler
	if strings.EqualFold(c.Format, "json") {
		h = slog.NewJSONHandler(w, opts)
	} else {
		h = slog.NewTextHandler(w, opts)
	}
	return slog.New(h), closer
}
