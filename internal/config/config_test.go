package config

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func baseEnv(t *testing.T) {
	t.Helper()
	t.Setenv("JWT_SECRET_KEY", "test-secret")
	t.Setenv("DB_DRIVER", DriverMemory)
}

func TestFromEnv_Defaults(t *testing.T) {
	// Setup
	baseEnv(t)

	// Act
	cfg, err := FromEnv()

	// Assert
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.App.Port)
	assert.Equal(t, "1h", cfg.JWT.AccessExpiration)
	assert.Equal(t, 3, cfg.Attendance.MaxRetries)
	assert.Equal(t, 48*time.Hour, cfg.Attendance.StaleAfter)
	assert.Equal(t, 24*time.Hour, cfg.Ledger.LeakAfter)
	assert.False(t, cfg.Ledger.AutoResolve)
	assert.Equal(t, 5*time.Second, cfg.Notification.DeliveryTimeout)
	assert.Equal(t, []string{"http://localhost:3000"}, cfg.CORS.AllowedOrigins)
	assert.False(t, cfg.Kafka.Enabled)
	assert.Equal(t, "audit_events", cfg.ClickHouse.Table)
}

func TestFromEnv_Overrides(t *testing.T) {
	// Setup
	baseEnv(t)
	t.Setenv("APP_PORT", "9090")
	t.Setenv("LEDGER_AUTO_RESOLVE", "true")
	t.Setenv("ATTENDANCE_STALE_AFTER", "36h")
	t.Setenv("KAFKA_ENABLED", "true")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example,https://b.example")

	// Act
	cfg, err := FromEnv()

	// Assert
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.App.Port)
	assert.True(t, cfg.Ledger.AutoResolve)
	assert.Equal(t, 36*time.Hour, cfg.Attendance.StaleAfter)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORS.AllowedOrigins)
}

func TestFromEnv_Invalid(t *testing.T) {
	cases := []struct {
		name string
		env  map[string]string
	}{
		{"missing secret", map[string]string{"JWT_SECRET_KEY": ""}},
		{"bad ttl", map[string]string{"JWT_ACCESS_EXPIRATION_TIME": "soon"}},
		{"postgres without password", map[string]string{"DB_DRIVER": DriverPostgres, "DB_PASSWORD": ""}},
		{"unknown driver", map[string]string{"DB_DRIVER": "sqlite"}},
		{"zero retries", map[string]string{"ATTENDANCE_MAX_RETRIES": "0"}},
		{"bad timezone", map[string]string{"ATTENDANCE_DEFAULT_TIMEZONE": "Mars/Olympus"}},
		{"kafka without brokers", map[string]string{"KAFKA_ENABLED": "true"}},
		{"clickhouse without addr", map[string]string{"CLICKHOUSE_ENABLED": "true"}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			// Setup
			baseEnv(t)
			for k, v := range tc.env {
				t.Setenv(k, v)
			}

			// Act
			_, err := FromEnv()

			// Assert
			assert.Error(t, err)
		})
	}
}

func TestDatabaseURL(t *testing.T) {
	// Setup
	cfg := &Config{Database: DatabaseConfig{
		Host: "db", Port: 5432, User: "app", Password: "p@ss word", Name: "timekeeping", SSLMode: "require",
	}}

	// Act & Assert
	assert.Equal(t, "postgres://app:p%40ss%20word@db:5432/timekeeping?sslmode=require", cfg.DatabaseURL())
}

func TestLogLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, (&Config{App: AppConfig{LogLevel: "DEBUG"}}).LogLevel())
	assert.Equal(t, slog.LevelWarn, (&Config{App: AppConfig{LogLevel: "warning"}}).LogLevel())
	assert.Equal(t, slog.LevelInfo, (&Config{}).LogLevel())
}
