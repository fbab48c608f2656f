package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

type Config struct {
	App          AppConfig          `mapstructure:"app"`
	Database     DatabaseConfig     `mapstructure:"database"`
	JWT          JWTConfig          `mapstructure:"jwt"`
	CORS         CORSConfig         `mapstructure:"cors"`
	Attendance   AttendanceConfig   `mapstructure:"attendance"`
	Ledger       LedgerConfig       `mapstructure:"ledger"`
	Notification NotificationConfig `mapstructure:"notification"`
	Kafka        KafkaConfig        `mapstructure:"kafka"`
	ClickHouse   ClickHouseConfig   `mapstructure:"clickhouse"`
}

// AppConfig holds application configuration
type AppConfig struct {
	Port     int    `mapstructure:"port"`
	Env      string `mapstructure:"env"`
	LogLevel string `mapstructure:"log_level"`
}

type DatabaseConfig struct {
	Driver   string `mapstructure:"driver"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
	SSLMode  string `mapstructure:"ssl_mode"`
	Migrate  bool   `mapstructure:"migrate"`
}

// JWTConfig holds JWT configuration
type JWTConfig struct {
	Secret           string `mapstructure:"secret"`
	AccessExpiration string `mapstructure:"access_expiration"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type AttendanceConfig struct {
	MaxRetries         int           `mapstructure:"max_retries"`
	DefaultTimezone    string        `mapstructure:"default_timezone"`
	StaleAfter         time.Duration `mapstructure:"stale_after"`
	StaleCheckInterval time.Duration `mapstructure:"stale_check_interval"`
}

type LedgerConfig struct {
	ReconcileInterval time.Duration `mapstructure:"reconcile_interval"`
	LeakAfter         time.Duration `mapstructure:"leak_after"`
	AutoResolve       bool          `mapstructure:"auto_resolve"`
}

type NotificationConfig struct {
	Workers         int           `mapstructure:"workers"`
	QueueSize       int           `mapstructure:"queue_size"`
	DeliveryTimeout time.Duration `mapstructure:"delivery_timeout"`
	StreamBuffer    int           `mapstructure:"stream_buffer"`
}

type KafkaConfig struct {
	Enabled  bool     `mapstructure:"enabled"`
	Brokers  []string `mapstructure:"brokers"`
	Topic    string   `mapstructure:"topic"`
	Username string   `mapstructure:"username"`
	Password string   `mapstructure:"password"`
	TLS      bool     `mapstructure:"tls"`
}

type ClickHouseConfig struct {
	Enabled  bool     `mapstructure:"enabled"`
	Addr     []string `mapstructure:"addr"`
	Database string   `mapstructure:"database"`
	Username string   `mapstructure:"username"`
	Password string   `mapstructure:"password"`
	Table    string   `mapstructure:"table"`
}

// binding is one config key, its environment variable and default.
type binding struct {
	key string
	env string
	def any
}

var bindings = []binding{
	{"app.port", "APP_PORT", 8080},
	{"app.env", "APP_ENV", "development"},
	{"app.log_level", "LOG_LEVEL", "info"},

	{"database.driver", "DB_DRIVER", DriverPostgres},
	{"database.host", "DB_HOST", "localhost"},
	{"database.port", "DB_PORT", 5432},
	{"database.user", "DB_USER", "postgres"},
	{"database.password", "DB_PASSWORD", ""},
	{"database.name", "DB_NAME", "hris_timekeeping"},
	{"database.ssl_mode", "DB_SSL_MODE", "disable"},
	{"database.migrate", "DB_MIGRATE", true},

	{"jwt.secret", "JWT_SECRET_KEY", ""},
	{"jwt.access_expiration", "JWT_ACCESS_EXPIRATION_TIME", "1h"},

	{"cors.allowed_origins", "CORS_ALLOWED_ORIGINS", []string{"http://localhost:3000"}},

	{"attendance.max_retries", "ATTENDANCE_MAX_RETRIES", 3},
	{"attendance.default_timezone", "ATTENDANCE_DEFAULT_TIMEZONE", "UTC"},
	{"attendance.stale_after", "ATTENDANCE_STALE_AFTER", "48h"},
	{"attendance.stale_check_interval", "ATTENDANCE_STALE_CHECK_INTERVAL", "1h"},

	{"ledger.reconcile_interval", "LEDGER_RECONCILE_INTERVAL", "1h"},
	{"ledger.leak_after", "LEDGER_LEAK_AFTER", "24h"},
	{"ledger.auto_resolve", "LEDGER_AUTO_RESOLVE", false},

	{"notification.workers", "NOTIFICATION_WORKERS", 2},
	{"notification.queue_size", "NOTIFICATION_QUEUE_SIZE", 1000},
	{"notification.delivery_timeout", "NOTIFICATION_DELIVERY_TIMEOUT", "5s"},
	{"notification.stream_buffer", "NOTIFICATION_STREAM_BUFFER", 16},

	{"kafka.enabled", "KAFKA_ENABLED", false},
	{"kafka.brokers", "KAFKA_BROKERS", []string{}},
	{"kafka.topic", "KAFKA_TOPIC", "leave.status-changed"},
	{"kafka.username", "KAFKA_USERNAME", ""},
	{"kafka.password", "KAFKA_PASSWORD", ""},
	{"kafka.tls", "KAFKA_TLS", false},

	{"clickhouse.enabled", "CLICKHOUSE_ENABLED", false},
	{"clickhouse.addr", "CLICKHOUSE_ADDR", []string{}},
	{"clickhouse.database", "CLICKHOUSE_DATABASE", "default"},
	{"clickhouse.username", "CLICKHOUSE_USERNAME", "default"},
	{"clickhouse.password", "CLICKHOUSE_PASSWORD", ""},
	{"clickhouse.table", "CLICKHOUSE_TABLE", "audit_events"},
}

// Load reads an optional .env file, then the environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load .env: %w", err)
		}
		slog.Info("no .env file found, using environment only")
	}
	return FromEnv()
}

// FromEnv builds the config from environment variables and defaults.
func FromEnv() (*Config, error) {
	v := viper.New()
	for _, b := range bindings {
		if err := v.BindEnv(b.key, b.env); err != nil {
			return nil, fmt.Errorf("bind %s: %w", b.env, err)
		}
		v.SetDefault(b.key, b.def)
	}
	v.AutomaticEnv()

	config := &Config{}
	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("unable to decode into struct: %w", err)
	}
	config.Kafka.Brokers = splitList(config.Kafka.Brokers)
	config.ClickHouse.Addr = splitList(config.ClickHouse.Addr)
	config.CORS.AllowedOrigins = splitList(config.CORS.AllowedOrigins)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return config, nil
}

// splitList accepts both repeated values and one comma separated value.
func splitList(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.JWT.Secret == "" {
		return fmt.Errorf("JWT_SECRET_KEY is required")
	}
	if _, err := time.ParseDuration(c.JWT.AccessExpiration); err != nil {
		return fmt.Errorf("invalid JWT_ACCESS_EXPIRATION_TIME: %w", err)
	}

	switch c.Database.Driver {
	case DriverPostgres:
		if c.Database.Password == "" {
			return fmt.Errorf("DB_PASSWORD is required")
		}
	case DriverMemory:
	default:
		return fmt.Errorf("DB_DRIVER must be %q or %q", DriverPostgres, DriverMemory)
	}

	if c.Attendance.MaxRetries < 1 {
		return fmt.Errorf("ATTENDANCE_MAX_RETRIES must be at least 1")
	}
	if _, err := time.LoadLocation(c.Attendance.DefaultTimezone); err != nil {
		return fmt.Errorf("invalid ATTENDANCE_DEFAULT_TIMEZONE: %w", err)
	}
	if c.Ledger.LeakAfter < 0 || c.Attendance.StaleAfter < 0 {
		return fmt.Errorf("LEDGER_LEAK_AFTER and ATTENDANCE_STALE_AFTER must not be negative")
	}

	if c.Kafka.Enabled {
		if len(c.Kafka.Brokers) == 0 {
			return fmt.Errorf("KAFKA_BROKERS is required when KAFKA_ENABLED is set")
		}
		if c.Kafka.Topic == "" {
			return fmt.Errorf("KAFKA_TOPIC is required when KAFKA_ENABLED is set")
		}
	}
	if c.ClickHouse.Enabled && len(c.ClickHouse.Addr) == 0 {
		return fmt.Errorf("CLICKHOUSE_ADDR is required when CLICKHOUSE_ENABLED is set")
	}
	return nil
}

// DatabaseURL returns the PostgreSQL connection string
func (c *Config) DatabaseURL() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.Database.User, c.Database.Password),
		Host:     fmt.Sprintf("%s:%d", c.Database.Host, c.Database.Port),
		Path:     c.Database.Name,
		RawQuery: "sslmode=" + url.QueryEscape(c.Database.SSLMode),
	}
	return u.String()
}

// LogLevel maps LOG_LEVEL to a slog level, defaulting to info.
func (c *Config) LogLevel() slog.Level {
	switch strings.ToLower(c.App.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
