package clickhouse

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/cmlabs-hris/hris-timekeeping/internal/domain/audit"
)

type Config struct {
	Addr     []string
	Database string
	Username string
	Password string
	Table    string
}

// Connect opens and pings a native connection.
func Connect(ctx context.Context, cfg Config) (driver.Conn, error) {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: cfg.Addr,
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
		ClientInfo: clickhouse.ClientInfo{
			Products: []struct {
				Name    string
				Version string
			}{
				{Name: "hris-timekeeping", Version: "1.0"},
			},
		},
		DialTimeout: 5 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("open clickhouse: %w", err)
	}

	if err := conn.Ping(ctx); err != nil {
		if exception, ok := err.(*clickhouse.Exception); ok {
			slog.Error("clickhouse ping failed", "code", exception.Code, "message", exception.Message)
		}
		return nil, fmt.Errorf("ping clickhouse: %w", err)
	}
	slog.Info("clickhouse connected", "addr", cfg.Addr, "database", cfg.Database)
	return conn, nil
}

const createTable = `
CREATE TABLE IF NOT EXISTS %s (
	id          String,
	occurred_at DateTime64(3, 'UTC'),
	actor_id    String,
	entity      LowCardinality(String),
	entity_id   String,
	action      LowCardinality(String),
	detail      String
) ENGINE = MergeTree
ORDER BY (entity, entity_id, occurred_at)`

// Recorder appends audit events to a MergeTree table, one batch per call.
type Recorder struct {
	conn  driver.Conn
	table string
}

// NewRecorder creates the audit table when missing.
func NewRecorder(ctx context.Context, conn driver.Conn, table string) (*Recorder, error) {
	if table == "" {
		table = "audit_events"
	}
	if err := conn.Exec(ctx, fmt.Sprintf(createTable, table)); err != nil {
		return nil, fmt.Errorf("create audit table %s: %w", table, err)
	}
	return &Recorder{conn: conn, table: table}, nil
}

// Record implements audit.Recorder.
func (r *Recorder) Record(ctx context.Context, events ...audit.Event) error {
	if len(events) == 0 {
		return nil
	}

	batch, err := r.conn.PrepareBatch(ctx, "INSERT INTO "+r.table)
	if err != nil {
		return fmt.Errorf("prepare audit batch: %w", err)
	}
	defer batch.Abort()

	for _, e := range events {
		row, err := Row(e)
		if err != nil {
			return err
		}
		if err := batch.Append(row...); err != nil {
			return fmt.Errorf("append audit event %s: %w", e.ID, err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send audit batch: %w", err)
	}
	return nil
}

// Row returns the column values of e in table order.
func Row(e audit.Event) ([]any, error) {
	detail := "{}"
	if len(e.Detail) > 0 {
		b, err := json.Marshal(e.Detail)
		if err != nil {
			return nil, fmt.Errorf("encode audit detail %s: %w", e.ID, err)
		}
		detail = string(b)
	}
	return []any{e.ID, e.OccurredAt.UTC(), e.ActorID, e.Entity, e.EntityID, e.Action, detail}, nil
}
