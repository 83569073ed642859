// Package config loads process configuration for the sandbox server.
//
// Values come from defaults, an optional YAML file, and the environment.
// Every key can be set with the MESH_SANDBOX_ prefix (dots become
// underscores, e.g. MESH_SANDBOX_HTTP_ADDR). The unprefixed names used by
// earlier deployments (AUTH_MODE, STORE_MODE, SHARED_KEY, ...) are bound too.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/rbaliyan/meshsandbox/auth"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of every environment variable.
const EnvPrefix = "MESH_SANDBOX"

// Store modes.
const (
	StoreCanned = "canned"
	StoreMemory = "memory"
	StoreFile   = "file"
)

// Log formats.
const (
	LogJSON = "json"
	LogText = "text"
)

var (
	// ErrInvalidStoreMode is returned for a store mode other than canned, memory or file.
	ErrInvalidStoreMode = errors.New("config: invalid store mode")

	// ErrInvalidAuthMode is returned for an auth mode that auth.ParseMode rejects.
	ErrInvalidAuthMode = errors.New("config: invalid auth mode")

	// ErrMissingSharedKey is returned when full auth is enabled without a shared key.
	ErrMissingSharedKey = errors.New("config: shared key is required in full auth mode")

	// ErrInvalidValue is returned for out-of-range numeric or enum settings.
	ErrInvalidValue = errors.New("config: invalid value")
)

// Config holds the server configuration.
type Config struct {
	Env                  string `mapstructure:"env"`
	BuildLabel           string `mapstructure:"build_label"`
	AuthMode             string `mapstructure:"auth_mode"`
	StoreMode            string `mapstructure:"store_mode"`
	SharedKey            string `mapstructure:"shared_key"`
	FileStoreDir         string `mapstructure:"file_store_dir"`
	FixtureDir           string `mapstructure:"fixture_dir"`
	InboxRetentionDays   int    `mapstructure:"inbox_retention_days"`
	MessageRetentionDays int    `mapstructure:"message_retention_days"`

	HTTP      HTTPConfig      `mapstructure:"http"`
	Log       LogConfig       `mapstructure:"log"`
	Events    EventsConfig    `mapstructure:"events"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// HTTPConfig configures the listener.
type HTTPConfig struct {
	Addr            string        `mapstructure:"addr"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// LogConfig configures the slog handler.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// EventsConfig selects the lifecycle event transport. An empty RedisAddr
// leaves events on the in-process noop transport.
type EventsConfig struct {
	RedisAddr     string `mapstructure:"redis_addr"`
	RedisPassword string `mapstructure:"redis_password"`
	RedisDB       int    `mapstructure:"redis_db"`
	Fatal         bool   `mapstructure:"fatal"`
}

// TelemetryConfig toggles OpenTelemetry instrumentation.
type TelemetryConfig struct {
	Tracing     bool   `mapstructure:"tracing"`
	Metrics     bool   `mapstructure:"metrics"`
	ServiceName string `mapstructure:"service_name"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Env:                  "local",
		BuildLabel:           "latest",
		AuthMode:             string(auth.ModeNone),
		StoreMode:            StoreCanned,
		SharedKey:            auth.DefaultSharedKey,
		FileStoreDir:         "/tmp/mesh_store",
		InboxRetentionDays:   5,
		MessageRetentionDays: 30,
		HTTP: HTTPConfig{
			Addr:            ":8700",
			ShutdownTimeout: 10 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: LogJSON,
		},
		Telemetry: TelemetryConfig{
			ServiceName: "meshsandbox",
		},
	}
}

// SetDefaults registers the defaults on v so they are available even
// without a config file.
func SetDefaults(v *viper.Viper) {
	d := Default()

	v.SetDefault("env", d.Env)
	v.SetDefault("build_label", d.BuildLabel)
	v.SetDefault("auth_mode", d.AuthMode)
	v.SetDefault("store_mode", d.StoreMode)
	v.SetDefault("shared_key", d.SharedKey)
	v.SetDefault("file_store_dir", d.FileStoreDir)
	v.SetDefault("fixture_dir", d.FixtureDir)
	v.SetDefault("inbox_retention_days", d.InboxRetentionDays)
	v.SetDefault("message_retention_days", d.MessageRetentionDays)

	v.SetDefault("http.addr", d.HTTP.Addr)
	v.SetDefault("http.shutdown_timeout", d.HTTP.ShutdownTimeout)

	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)

	v.SetDefault("events.redis_addr", d.Events.RedisAddr)
	v.SetDefault("events.redis_password", d.Events.RedisPassword)
	v.SetDefault("events.redis_db", d.Events.RedisDB)
	v.SetDefault("events.fatal", d.Events.Fatal)

	v.SetDefault("telemetry.tracing", d.Telemetry.Tracing)
	v.SetDefault("telemetry.metrics", d.Telemetry.Metrics)
	v.SetDefault("telemetry.service_name", d.Telemetry.ServiceName)
}

// legacyEnv maps keys to the unprefixed variable names still honoured.
var legacyEnv = map[string]string{
	"env":                    "ENV",
	"build_label":            "BUILD_LABEL",
	"auth_mode":              "AUTH_MODE",
	"store_mode":             "STORE_MODE",
	"shared_key":             "SHARED_KEY",
	"file_store_dir":         "FILE_STORE_DIR",
	"inbox_retention_days":   "INBOX_RETENTION_DAYS",
	"message_retention_days": "MESSAGE_RETENTION_DAYS",
}

// Load reads the configuration from v. If the "config" key names a file it is
// read; a missing default config file is not an error.
func Load(v *viper.Viper) (*Config, error) {
	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, legacy := range legacyEnv {
		// prefixed name first so it wins over the legacy one
		prefixed := EnvPrefix + "_" + strings.ToUpper(key)
		if err := v.BindEnv(key, prefixed, legacy); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", key, err)
		}
	}

	if file := v.GetString("config"); file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", file, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) normalize() {
	c.StoreMode = strings.ToLower(strings.TrimSpace(c.StoreMode))
	c.Log.Format = strings.ToLower(strings.TrimSpace(c.Log.Format))
	if mode, err := auth.ParseMode(c.AuthMode); err == nil {
		c.AuthMode = string(mode)
	}
}

// Validate checks that modes are known and values are in range.
func (c *Config) Validate() error {
	switch c.StoreMode {
	case StoreCanned, StoreMemory, StoreFile:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidStoreMode, c.StoreMode)
	}

	mode, err := auth.ParseMode(c.AuthMode)
	if err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidAuthMode, c.AuthMode)
	}
	if mode == auth.ModeFull && c.SharedKey == "" {
		return ErrMissingSharedKey
	}

	if c.StoreMode == StoreFile && c.FileStoreDir == "" {
		return fmt.Errorf("%w: file_store_dir is required in file store mode", ErrInvalidValue)
	}
	if c.InboxRetentionDays <= 0 {
		return fmt.Errorf("%w: inbox_retention_days must be positive", ErrInvalidValue)
	}
	if c.MessageRetentionDays < 0 {
		return fmt.Errorf("%w: message_retention_days must not be negative", ErrInvalidValue)
	}
	if _, err := c.SlogLevel(); err != nil {
		return err
	}
	switch c.Log.Format {
	case LogJSON, LogText:
	default:
		return fmt.Errorf("%w: log format %q", ErrInvalidValue, c.Log.Format)
	}
	return nil
}

// Auth returns the parsed auth mode.
func (c *Config) Auth() auth.Mode {
	mode, err := auth.ParseMode(c.AuthMode)
	if err != nil {
		return auth.ModeNone
	}
	return mode
}

// InboxRetention is how long a delivered message stays in an inbox.
func (c *Config) InboxRetention() time.Duration {
	return time.Duration(c.InboxRetentionDays) * 24 * time.Hour
}

// MessageRetention is how long file-mode message files are kept. Zero keeps them forever.
func (c *Config) MessageRetention() time.Duration {
	return time.Duration(c.MessageRetentionDays) * 24 * time.Hour
}

// SlogLevel parses Log.Level.
func (c *Config) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return 0, fmt.Errorf("%w: log level %q", ErrInvalidValue, c.Log.Level)
	}
	return level, nil
}

// LogValue implements slog.LogValuer. Secrets are redacted.
func (c *Config) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("env", c.Env),
		slog.String("build_label", c.BuildLabel),
		slog.String("auth_mode", c.AuthMode),
		slog.String("store_mode", c.StoreMode),
		slog.String("shared_key", redact(c.SharedKey)),
		slog.String("file_store_dir", c.FileStoreDir),
		slog.Int("inbox_retention_days", c.InboxRetentionDays),
		slog.Int("message_retention_days", c.MessageRetentionDays),
		slog.String("http_addr", c.HTTP.Addr),
		slog.String("log_level", c.Log.Level),
		slog.Bool("redis_events", c.Events.RedisAddr != ""),
	)
}

func redact(s string) string {
	if s == "" {
		return ""
	}
	return "[REDACTED]"
}
