package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"github.com/joseph-ayodele/doc-intake/internal/common"
)

type Config struct {
	DSN              string
	MaxConns         int32
	MinConns         int32
	MaxConnLifetime  time.Duration
	MaxConnIdleTime  time.Duration
	DialTimeout      time.Duration
	StatementTimeout time.Duration
}

// ConfigFrom copies the database section of the application config.
func ConfigFrom(c common.DatabaseConfig) Config {
	return Config{
		DSN:              c.DSN,
		MaxConns:         c.MaxConns,
		MinConns:         c.MinConns,
		MaxConnLifetime:  c.MaxConnLifetime,
		MaxConnIdleTime:  c.MaxConnIdleTime,
		DialTimeout:      c.DialTimeout,
		StatementTimeout: c.StatementTimeout,
	}
}

// DB is the shared handle behind the repositories.
type DB struct {
	drv     *entsql.Driver
	pool    *pgxpool.Pool
	dialect string
	logger  *slog.Logger
}

// Open connects to Postgres for postgres:// and postgresql:// DSNs and to SQLite otherwise.
func Open(ctx context.Context, cfg Config, logger *slog.Logger) (*DB, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if isPostgres(cfg.DSN) {
		return openPostgres(ctx, cfg, logger)
	}
	return openSQLite(ctx, cfg, logger)
}

func isPostgres(dsn string) bool {
	return strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://")
}

func openPostgres(ctx context.Context, cfg Config, logger *slog.Logger) (*DB, error) {
	logger.Info("connecting to database", "driver", dialect.Postgres)
	pc, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		logger.Error("failed to parse database config", "error", err)
		return nil, fmt.Errorf("%w: parse dsn: %v", common.ErrDatabase, err)
	}

	if cfg.MaxConns > 0 {
		pc.MaxConns = cfg.MaxConns
	}
	pc.MinConns = cfg.MinConns
	pc.MaxConnLifetime = cfg.MaxConnLifetime
	pc.MaxConnIdleTime = cfg.MaxConnIdleTime
	pc.ConnConfig.RuntimeParams["application_name"] = "doc-intake"
	if cfg.StatementTimeout > 0 {
		pc.ConnConfig.RuntimeParams["statement_timeout"] = fmt.Sprint(cfg.StatementTimeout.Milliseconds())
	}

	if cfg.DialTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.DialTimeout)
		defer cancel()
	}
	pool, err := pgxpool.NewWithConfig(ctx, pc)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		return nil, fmt.Errorf("%w: %v", common.ErrDatabase, err)
	}

	db := stdlib.OpenDBFromPool(pool)
	logger.Info("successfully connected to database")
	return &DB{drv: entsql.OpenDB(dialect.Postgres, db), pool: pool, dialect: dialect.Postgres, logger: logger}, nil
}

func openSQLite(ctx context.Context, cfg Config, logger *slog.Logger) (*DB, error) {
	logger.Info("connecting to database", "driver", dialect.SQLite, "dsn", cfg.DSN)
	db, err := sql.Open("sqlite", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrDatabase, err)
	}
	// :memory: databases exist per connection
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		logger.Error("failed to connect to database", "error", err)
		return nil, fmt.Errorf("%w: %v", common.ErrDatabase, err)
	}
	logger.Info("successfully connected to database")
	return &DB{drv: entsql.OpenDB(dialect.SQLite, db), dialect: dialect.SQLite, logger: logger}, nil
}

// Dialect reports the ent dialect name in use.
func (d *DB) Dialect() string { return d.dialect }

// Close closes the database connections gracefully
func (d *DB) Close() {
	d.logger.Info("closing database connections")
	if err := d.drv.Close(); err != nil {
		d.logger.Error("failed to close database", "error", err)
	}
	if d.pool != nil {
		d.pool.Close()
	}
	d.logger.Info("database connections closed")
}

// HealthCheck pings the database within timeout.
func (d *DB) HealthCheck(ctx context.Context, timeout time.Duration) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	d.logger.Debug("pinging database")
	if err := d.drv.DB().PingContext(ctx); err != nil {
		d.logger.Error("database ping failed", "error", err)
		return fmt.Errorf("%w: ping: %v", common.ErrDatabase, err)
	}
	d.logger.Debug("database ping successful")
	return nil
}

// schema is portable across SQLite and Postgres: TEXT ids, BIGINT unix-ms timestamps
// and INTEGER 0/1 flags.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS ` + tableDocuments + ` (
	sha256 TEXT NOT NULL,
	file_id TEXT NOT NULL,
	source_path TEXT NOT NULL DEFAULT '',
	detected_mime TEXT NOT NULL,
	extension TEXT NOT NULL DEFAULT '',
	size_bytes BIGINT NOT NULL,
	first_seen_at BIGINT NOT NULL,
	PRIMARY KEY (sha256)
)`,
	`CREATE TABLE IF NOT EXISTS ` + tableExtractions + ` (
	id TEXT NOT NULL,
	sha256 TEXT NOT NULL,
	file_id TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL,
	document_type TEXT NOT NULL DEFAULT 'UNKNOWN',
	overall DOUBLE PRECISION NOT NULL DEFAULT 0,
	needs_review INTEGER NOT NULL DEFAULT 0,
	text_source TEXT NOT NULL DEFAULT '',
	ocr_provider TEXT NOT NULL DEFAULT '',
	error_message TEXT NOT NULL DEFAULT '',
	payload TEXT NOT NULL DEFAULT '',
	created_at BIGINT NOT NULL,
	PRIMARY KEY (id)
)`,
	`CREATE TABLE IF NOT EXISTS ` + tableOcrAttempts + ` (
	extraction_id TEXT NOT NULL,
	seq INTEGER NOT NULL,
	engine TEXT NOT NULL,
	provider TEXT NOT NULL,
	page INTEGER NOT NULL DEFAULT 0,
	confidence DOUBLE PRECISION NOT NULL DEFAULT 0,
	elapsed_ms BIGINT NOT NULL DEFAULT 0,
	failed INTEGER NOT NULL DEFAULT 0,
	error_message TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (extraction_id, seq)
)`,
	"CREATE INDEX IF NOT EXISTS extractions_sha256_created_at ON " + tableExtractions + " (sha256, created_at)",
	"CREATE INDEX IF NOT EXISTS extractions_document_type ON " + tableExtractions + " (document_type)",
}

// Migrate creates the tables and indexes when missing.
func (d *DB) Migrate(ctx context.Context) error {
	for _, q := range schema {
		if err := d.drv.Exec(ctx, q, []any{}, nil); err != nil {
			return fmt.Errorf("%w: migrate: %v", common.ErrDatabase, err)
		}
	}
	d.logger.Info("database migrated", "dialect", d.dialect)
	return nil
}

const (
	tableDocuments   = "documents"
	tableExtractions = "extractions"
	tableOcrAttempts = "ocr_attempts"
)

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func fromUnixMs(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}
