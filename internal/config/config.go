// Package config loads procureflow settings from a config file, PROCUREFLOW_
// environment variables and built-in defaults.
package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/spf13/viper"

	"procureflow/internal/blob"
	"procureflow/internal/core"
)

// EnvPrefix namespaces environment overrides, e.g. PROCUREFLOW_STORAGE_DRIVER.
const EnvPrefix = "PROCUREFLOW"

// Metrics backends served on /metrics.
const (
	MetricsExpvar     = "expvar"
	MetricsPrometheus = "prometheus"
	MetricsNone       = "none"
)

// Config is the fully resolved application configuration.
type Config struct {
	Storage StorageConfig `mapstructure:"storage"`
	Blob    BlobConfig    `mapstructure:"blob"`
	Server  ServerConfig  `mapstructure:"server"`
	Logging LoggingConfig `mapstructure:"logging"`
	Metrics MetricsConfig `mapstructure:"metrics"`
}

// StorageConfig selects the snapshot slot.
type StorageConfig struct {
	Driver      core.StorageDriver `mapstructure:"driver"`
	SQLitePath  string             `mapstructure:"sqlite_path"`
	PostgresDSN string             `mapstructure:"postgres_dsn"`
	Key         string             `mapstructure:"key"`
}

// BlobConfig configures the blob store used by the blob storage driver.
type BlobConfig struct {
	Driver blob.Driver   `mapstructure:"driver"`
	FSRoot string        `mapstructure:"fs_root"`
	S3     blob.S3Config `mapstructure:"s3"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

// LoggingConfig configures slog output.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// MetricsConfig selects the metrics exporter.
type MetricsConfig struct {
	Backend string `mapstructure:"backend"`
}

var defaults = map[string]any{
	"storage.driver":            string(core.StorageSQLite),
	"storage.sqlite_path":       "procureflow.db",
	"storage.postgres_dsn":      "",
	"storage.key":               "",
	"blob.driver":               string(blob.DriverFilesystem),
	"blob.fs_root":              "./blobdata",
	"blob.s3.region":            "",
	"blob.s3.bucket":            "",
	"blob.s3.endpoint":          "",
	"blob.s3.access_key_id":     "",
	"blob.s3.secret_access_key": "",
	"blob.s3.session_token":     "",
	"blob.s3.path_style":        false,
	"server.addr":               ":8080",
	"logging.level":             "info",
	"logging.format":            "console",
	"metrics.backend":           MetricsPrometheus,
}

// SetDefaults registers every known key so environment overrides are seen
// by Unmarshal.
func SetDefaults(v *viper.Viper) {
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
}

// New returns a viper instance wired for procureflow: defaults, env prefix
// and the config file (explicit path, or config.yaml in the working
// directory or $HOME/.config/procureflow). A missing config file is not an error.
func New(cfgFile string) (*viper.Viper, error) {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(home + "/.config/procureflow")
		}
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}
	return v, nil
}

// Load decodes and validates the configuration held by v.
func Load(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	cfg.Storage.SQLitePath = expandPath(cfg.Storage.SQLitePath)
	cfg.Blob.FSRoot = expandPath(cfg.Blob.FSRoot)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects unknown drivers and malformed settings.
func (c Config) Validate() error {
	var errs []error
	storageDrivers := []core.StorageDriver{core.StorageMemory, core.StorageSQLite, core.StoragePostgres, core.StorageBlob}
	if !slices.Contains(storageDrivers, c.Storage.Driver) {
		errs = append(errs, fmt.Errorf("storage.driver: unsupported value %q", c.Storage.Driver))
	}
	if c.Storage.Driver == core.StorageBlob {
		blobDrivers := []blob.Driver{blob.DriverFilesystem, blob.DriverS3, blob.DriverMemory}
		if !slices.Contains(blobDrivers, c.Blob.Driver) {
			errs = append(errs, fmt.Errorf("blob.driver: unsupported value %q", c.Blob.Driver))
		}
		if c.Blob.Driver == blob.DriverS3 && c.Blob.S3.Bucket == "" {
			errs = append(errs, errors.New("blob.s3.bucket: required for the s3 driver"))
		}
	}
	if c.Server.Addr == "" {
		errs = append(errs, errors.New("server.addr: must not be empty"))
	}
	if !slices.Contains([]string{"debug", "info", "warn", "error"}, c.Logging.Level) {
		errs = append(errs, fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level))
	}
	if !slices.Contains([]string{"console", "json"}, c.Logging.Format) {
		errs = append(errs, fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format))
	}
	if !slices.Contains([]string{MetricsExpvar, MetricsPrometheus, MetricsNone}, c.Metrics.Backend) {
		errs = append(errs, fmt.Errorf("metrics.backend: unsupported value %q", c.Metrics.Backend))
	}
	return errors.Join(errs...)
}

// StorageConfig maps the settings onto core.StorageConfig.
func (c Config) StorageConfig() core.StorageConfig {
	return core.StorageConfig{
		Driver:      c.Storage.Driver,
		SQLitePath:  c.Storage.SQLitePath,
		PostgresDSN: c.Storage.PostgresDSN,
		Key:         c.Storage.Key,
		Blob: blob.Config{
			Driver: c.Blob.Driver,
			FSRoot: c.Blob.FSRoot,
			S3:     c.Blob.S3,
		},
	}
}

func expandPath(path string) string {
	if strings.HasPrefix(path, "~") {
		if home, err := os.UserHomeDir(); err == nil {
			path = home + path[1:]
		}
	}
	return os.ExpandEnv(path)
}
