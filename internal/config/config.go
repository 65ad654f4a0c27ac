package config

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

// Supported database/sql driver names
const (
	DriverSQLite     = "sqlite3"
	DriverMySQL      = "mysql"
	DriverClickHouse = "clickhouse"
)

type Config struct {
	Database      DatabaseConfig      `mapstructure:"database"`
	Server        ServerConfig        `mapstructure:"server"`
	Stream        StreamConfig        `mapstructure:"stream"`
	Persist       PersistConfig       `mapstructure:"persist"`
	Monitoring    MonitoringConfig    `mapstructure:"monitoring"`
	Logging       LoggingConfig       `mapstructure:"logging"`
	Observability ObservabilityConfig `mapstructure:"observability"`
}

type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"`
	DSN             string        `mapstructure:"dsn"`
	Table           string        `mapstructure:"table"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

type ServerConfig struct {
	Host              string        `mapstructure:"host"`
	Port              int           `mapstructure:"port"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout"`
	IdleTimeout       time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout"`
}

type StreamConfig struct {
	SequentialChunkSize int    `mapstructure:"sequential_chunk_size"`
	DefaultChunkSize    int    `mapstructure:"default_chunk_size"`
	MaxChunkSize        int    `mapstructure:"max_chunk_size"`
	OutputDir           string `mapstructure:"output_dir"`
	SequentialFolder    string `mapstructure:"sequential_folder"`
	PaginatedFolder     string `mapstructure:"paginated_folder"`
	NamespaceByStream   bool   `mapstructure:"namespace_by_stream"`
}

type PersistConfig struct {
	WorkerCount     int           `mapstructure:"worker_count"`
	QueueSize       int           `mapstructure:"queue_size"`
	DispatchTimeout time.Duration `mapstructure:"dispatch_timeout"`
}

type MonitoringConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	Port        int    `mapstructure:"port"`
	MetricsPath string `mapstructure:"metrics_path"`
	HealthPath  string `mapstructure:"health_path"`
}

type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	OutputPath string `mapstructure:"output_path"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
	Compress   bool   `mapstructure:"compress"`
	LocalTime  bool   `mapstructure:"local_time"`
}

type ObservabilityConfig struct {
	ErrorReporting ErrorReportingConfig `mapstructure:"error_reporting"`
	APM            APMConfig            `mapstructure:"apm"`
}

type ErrorReportingConfig struct {
	Enabled  bool         `mapstructure:"enabled"`
	Provider string       `mapstructure:"provider"` // sentry, noop
	Sentry   SentryConfig `mapstructure:"sentry"`
}

type SentryConfig struct {
	DSN          string        `mapstructure:"dsn"`
	Environment  string        `mapstructure:"environment"`
	Release      string        `mapstructure:"release"`
	SampleRate   float64       `mapstructure:"sample_rate"`
	Debug        bool          `mapstructure:"debug"`
	FlushTimeout time.Duration `mapstructure:"flush_timeout"`
}

type APMConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	LicenseKey string `mapstructure:"license_key"`
	AppName    string `mapstructure:"app_name"`
}

func Load(configPath string) (*Config, error) {
	v := viper.New()

	v.SetConfigType("yaml")

	setDefaults(v)

	// Read config file as raw bytes so environment variables can be
	// expanded before viper parses the document.
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	expandedData, err := expandEnvWithDefaults(string(data))
	if err != nil {
		return nil, fmt.Errorf("failed to expand environment variables: %w", err)
	}

	if err := v.ReadConfig(bytes.NewReader([]byte(expandedData))); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("database.driver", DriverSQLite)
	v.SetDefault("database.table", "large_table")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "1h")

	v.SetDefault("server.host", "127.0.0.1")
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.read_header_timeout", "10s")
	v.SetDefault("server.idle_timeout", "2m")
	v.SetDefault("server.shutdown_timeout", "30s")

	v.SetDefault("stream.sequential_chunk_size", 1000)
	v.SetDefault("stream.default_chunk_size", 100)
	v.SetDefault("stream.max_chunk_size", 100000)
	v.SetDefault("stream.output_dir", ".")
	v.SetDefault("stream.sequential_folder", "chunks")
	v.SetDefault("stream.paginated_folder", "chunks_paginated")
	v.SetDefault("stream.namespace_by_stream", false)

	v.SetDefault("persist.worker_count", 4)
	v.SetDefault("persist.queue_size", 64)
	v.SetDefault("persist.dispatch_timeout", "5s")

	v.SetDefault("monitoring.enabled", true)
	v.SetDefault("monitoring.port", 9090)
	v.SetDefault("monitoring.metrics_path", "/metrics")
	v.SetDefault("monitoring.health_path", "/health")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output_path", "stdout")
	v.SetDefault("logging.max_size", 100)
	v.SetDefault("logging.max_backups", 3)
	v.SetDefault("logging.max_age", 7)
	v.SetDefault("logging.compress", true)
	v.SetDefault("logging.local_time", true)

	v.SetDefault("observability.error_reporting.enabled", false)
	v.SetDefault("observability.error_reporting.provider", "sentry")
	v.SetDefault("observability.error_reporting.sentry.sample_rate", 1.0)
	v.SetDefault("observability.error_reporting.sentry.flush_timeout", "5s")

	v.SetDefault("observability.apm.enabled", false)
	v.SetDefault("observability.apm.app_name", "bulkstream")
}

func validate(cfg *Config) error {
	switch cfg.Database.Driver {
	case DriverSQLite, DriverMySQL, DriverClickHouse:
	default:
		return fmt.Errorf("database.driver must be one of: %s, %s, %s",
			DriverSQLite, DriverMySQL, DriverClickHouse)
	}
	if cfg.Database.DSN == "" {
		return fmt.Errorf("database.dsn is required")
	}
	if cfg.Database.Table == "" {
		return fmt.Errorf("database.table is required")
	}
	if err := validateRange(cfg.Database.MaxOpenConns, 1, 1000, "database.max_open_conns"); err != nil {
		return err
	}
	if cfg.Database.MaxIdleConns < 0 || cfg.Database.MaxIdleConns > cfg.Database.MaxOpenConns {
		return fmt.Errorf("database.max_idle_conns (%d) must be between 0 and database.max_open_conns (%d)",
			cfg.Database.MaxIdleConns, cfg.Database.MaxOpenConns)
	}
	if err := validatePositiveDuration(cfg.Database.ConnMaxLifetime, "database.conn_max_lifetime"); err != nil {
		return err
	}

	if err := validatePort(cfg.Server.Port, "server.port"); err != nil {
		return err
	}
	if err := validatePositiveDuration(cfg.Server.ReadHeaderTimeout, "server.read_header_timeout"); err != nil {
		return err
	}
	if err := validatePositiveDuration(cfg.Server.ShutdownTimeout, "server.shutdown_timeout"); err != nil {
		return err
	}

	if err := validateRange(cfg.Stream.SequentialChunkSize, 1, 1000000, "stream.sequential_chunk_size"); err != nil {
		return err
	}
	if err := validateRange(cfg.Stream.DefaultChunkSize, 1, 1000000, "stream.default_chunk_size"); err != nil {
		return err
	}
	if cfg.Stream.MaxChunkSize < cfg.Stream.DefaultChunkSize {
		return fmt.Errorf("stream.max_chunk_size (%d) cannot be smaller than stream.default_chunk_size (%d)",
			cfg.Stream.MaxChunkSize, cfg.Stream.DefaultChunkSize)
	}
	if cfg.Stream.OutputDir == "" {
		return fmt.Errorf("stream.output_dir is required")
	}
	if cfg.Stream.SequentialFolder == "" || cfg.Stream.PaginatedFolder == "" {
		return fmt.Errorf("stream.sequential_folder and stream.paginated_folder are required")
	}
	if cfg.Stream.SequentialFolder == cfg.Stream.PaginatedFolder {
		return fmt.Errorf("stream.sequential_folder and stream.paginated_folder must differ")
	}

	if err := validateRange(cfg.Persist.WorkerCount, 1, 100, "persist.worker_count"); err != nil {
		return err
	}
	if err := validateRange(cfg.Persist.QueueSize, 1, 100000, "persist.queue_size"); err != nil {
		return err
	}
	if err := validatePositiveDuration(cfg.Persist.DispatchTimeout, "persist.dispatch_timeout"); err != nil {
		return err
	}

	if cfg.Monitoring.Enabled {
		if err := validatePort(cfg.Monitoring.Port, "monitoring.port"); err != nil {
			return err
		}
		if cfg.Monitoring.Port == cfg.Server.Port {
			return fmt.Errorf("monitoring.port must differ from server.port")
		}
	}

	if err := validateRange(cfg.Logging.MaxSize, 1, 1000, "logging.max_size"); err != nil {
		return err
	}
	if err := validateRange(cfg.Logging.MaxBackups, 0, 100, "logging.max_backups"); err != nil {
		return err
	}
	if err := validateRange(cfg.Logging.MaxAge, 0, 365, "logging.max_age"); err != nil {
		return err
	}

	if cfg.Observability.APM.Enabled && cfg.Observability.APM.LicenseKey == "" {
		return fmt.Errorf("observability.apm.license_key is required when APM is enabled")
	}

	return nil
}

// validatePort checks if a port number is in the valid range (1-65535)
func validatePort(port int, name string) error {
	if port < 1 || port > 65535 {
		return fmt.Errorf("%s must be between 1 and 65535, got %d", name, port)
	}
	return nil
}

// validatePositiveDuration checks if a duration is positive
func validatePositiveDuration(d time.Duration, name string) error {
	if d <= 0 {
		return fmt.Errorf("%s must be positive, got %v", name, d)
	}
	return nil
}

// validateRange checks if an integer is within a specified range
func validateRange(value int, min int, max int, name string) error {
	if value < min || value > max {
		return fmt.Errorf("%s must be between %d and %d, got %d", name, min, max, value)
	}
	return nil
}
