package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config holds the complete swimsync configuration.
type Config struct {
	Logging    LoggingConfig    `mapstructure:"logging"`
	Link       LinkConfig       `mapstructure:"link"`
	HTTP       HTTPConfig       `mapstructure:"http"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Session    SessionConfig    `mapstructure:"session"`
	Sensor     SensorConfig     `mapstructure:"sensor"`
	Workouts   WorkoutsConfig   `mapstructure:"workouts"`
	Parameters ParametersConfig `mapstructure:"parameters"`
}

// LoggingConfig defines the log sink.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Console    bool   `mapstructure:"console"`
}

// LinkConfig defines how the two devices reach each other.
type LinkConfig struct {
	PeerURL           string        `mapstructure:"peer_url"`
	Discover          bool          `mapstructure:"discover"`
	ServiceName       string        `mapstructure:"service_name"`
	DiscoverTimeout   time.Duration `mapstructure:"discover_timeout"`
	RetryMaxAttempts  int           `mapstructure:"retry_max_attempts"`
	RetryBackoff      time.Duration `mapstructure:"retry_backoff"`
	ReplyTimeout      time.Duration `mapstructure:"reply_timeout"`
	WriteTimeout      time.Duration `mapstructure:"write_timeout"`
	ReconnectInterval time.Duration `mapstructure:"reconnect_interval"`
}

// HTTPConfig defines the companion's listener.
type HTTPConfig struct {
	ListenAddress string `mapstructure:"listen_address"`
	Port          int    `mapstructure:"port"`
	Advertise     bool   `mapstructure:"advertise"`
}

// StorageConfig defines the session database.
type StorageConfig struct {
	Path      string `mapstructure:"path"`
	CacheSize int    `mapstructure:"cache_size"`
}

// SessionConfig defines session timing.
type SessionConfig struct {
	Countdown      time.Duration `mapstructure:"countdown"`
	CountdownTick  time.Duration `mapstructure:"countdown_tick"`
	RepetitionTick time.Duration `mapstructure:"repetition_tick"`
	BodyWeightKg   float64       `mapstructure:"body_weight_kg"`
}

// SensorConfig selects the heart-rate source on the watch.
type SensorConfig struct {
	Source  string `mapstructure:"source"` // "ble", "simulated" or "none"
	Address string `mapstructure:"address"`
}

// WorkoutsConfig points at the companion's workout definitions.
type WorkoutsConfig struct {
	LibraryPath string `mapstructure:"library_path"`
}

// ParametersConfig locates the watch's cached swim parameters.
type ParametersConfig struct {
	CachePath string `mapstructure:"cache_path"`
}

// Load reads configuration from an optional file, SWIMSYNC_* environment
// variables and the flags in fs that were set on the command line.
func Load(configPath string, fs *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("SWIMSYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if fs != nil {
		if err := bindFlags(v, fs); err != nil {
			return nil, err
		}
	}

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// flagKeys maps command-line flag names to configuration keys.
var flagKeys = map[string]string{
	"log-level":   "logging.level",
	"log-file":    "logging.file",
	"peer":        "link.peer_url",
	"discover":    "link.discover",
	"listen":      "http.listen_address",
	"port":        "http.port",
	"db":          "storage.path",
	"workouts":    "workouts.library_path",
	"sensor":      "sensor.source",
	"sensor-addr": "sensor.address",
}

func bindFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	for name, key := range flagKeys {
		flag := fs.Lookup(name)
		if flag == nil || !flag.Changed {
			continue
		}
		if err := v.BindPFlag(key, flag); err != nil {
			return fmt.Errorf("failed to bind flag %s: %w", name, err)
		}
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	dataDir := defaultDataDir()

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.file", filepath.Join(dataDir, "swimsync.log"))
	v.SetDefault("logging.max_size_mb", 10)
	v.SetDefault("logging.max_backups", 3)
	v.SetDefault("logging.max_age_days", 28)
	v.SetDefault("logging.console", false)

	v.SetDefault("link.peer_url", "")
	v.SetDefault("link.discover", true)
	v.SetDefault("link.service_name", "_swimsync._tcp")
	v.SetDefault("link.discover_timeout", "3s")
	v.SetDefault("link.retry_max_attempts", 3)
	v.SetDefault("link.retry_backoff", "1s")
	v.SetDefault("link.reply_timeout", "5s")
	v.SetDefault("link.write_timeout", "5s")
	v.SetDefault("link.reconnect_interval", "2s")

	v.SetDefault("http.listen_address", "0.0.0.0")
	v.SetDefault("http.port", 8765)
	v.SetDefault("http.advertise", true)

	v.SetDefault("storage.path", filepath.Join(dataDir, "sessions.db"))
	v.SetDefault("storage.cache_size", 64)

	v.SetDefault("session.countdown", "3s")
	v.SetDefault("session.countdown_tick", "50ms")
	v.SetDefault("session.repetition_tick", "500ms")
	v.SetDefault("session.body_weight_kg", 70.0)

	v.SetDefault("sensor.source", "simulated")
	v.SetDefault("sensor.address", "")

	v.SetDefault("workouts.library_path", filepath.Join(dataDir, "workouts.yaml"))
	v.SetDefault("parameters.cache_path", filepath.Join(dataDir, "parameters.json"))
}

func defaultDataDir() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		homeDir = "."
	}
	return filepath.Join(homeDir, ".swimsync")
}

func validate(cfg *Config) error {
	if cfg.Link.RetryMaxAttempts < 1 {
		return fmt.Errorf("link.retry_max_attempts must be at least 1")
	}
	if cfg.Link.RetryBackoff <= 0 {
		return fmt.Errorf("link.retry_backoff must be positive")
	}
	if cfg.Link.ReplyTimeout <= 0 {
		return fmt.Errorf("link.reply_timeout must be positive")
	}
	if cfg.Link.WriteTimeout <= 0 {
		return fmt.Errorf("link.write_timeout must be positive")
	}
	if cfg.Session.Countdown <= 0 {
		return fmt.Errorf("session.countdown must be positive")
	}
	if cfg.Session.CountdownTick <= 0 || cfg.Session.RepetitionTick <= 0 {
		return fmt.Errorf("session ticks must be positive")
	}
	if cfg.HTTP.Port < 1 || cfg.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535")
	}
	switch cfg.Sensor.Source {
	case "ble", "simulated", "none":
	default:
		return fmt.Errorf("sensor.source must be one of ble, simulated, none (got %q)", cfg.Sensor.Source)
	}
	return nil
}
