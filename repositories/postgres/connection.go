package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hirewise/llm-proxy/config"
	_ "github.com/lib/pq" // PostgreSQL driver
	"go.uber.org/zap"
)

// DB wraps the sql.DB connection pool
type DB struct {
	*sql.DB
	logger *zap.Logger
}

// NewDB creates a new database connection pool
func NewDB(cfg config.DatabaseConfig, logger *zap.Logger) (*DB, error) {
	dsn := cfg.DSN()

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info("database connection established",
		zap.String("connection", cfg.LogString()))

	return &DB{
		DB:     db,
		logger: logger,
	}, nil
}

// Close closes the database connection pool
func (db *DB) Close() error {
	db.logger.Info("closing database connection")
	return db.DB.Close()
}

// HealthCheck performs a health check on the database
func (db *DB) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("database health check failed: %w", err)
	}

	var result int
	if err := db.QueryRowContext(ctx, "SELECT 1").Scan(&result); err != nil {
		return fmt.Errorf("database query check failed: %w", err)
	}

	return nil
}

// Stats returns database connection pool statistics
func (db *DB) Stats() sql.DBStats {
	return db.DB.Stats()
}

// InitSchema initializes the database schema
func (db *DB) InitSchema(ctx context.Context) error {
	schema := `
		-- Usage records: append-only accounting facts, one row per proxied call
		CREATE TABLE IF NOT EXISTS usage_records (
			id UUID PRIMARY KEY,
			session_id VARCHAR(255) NOT NULL,
			submission_id VARCHAR(255) NOT NULL,
			provider VARCHAR(100) NOT NULL,
			model VARCHAR(100) NOT NULL,
			prompt_tokens INTEGER NOT NULL DEFAULT 0,
			completion_tokens INTEGER NOT NULL DEFAULT 0,
			total_tokens INTEGER NOT NULL DEFAULT 0,
			cost DECIMAL(12, 8) NOT NULL DEFAULT 0,
			latency_ms INTEGER NOT NULL DEFAULT 0,
			success BOOLEAN NOT NULL,
			error_kind VARCHAR(50),
			tokens_estimated BOOLEAN NOT NULL DEFAULT false,
			pricing_unknown BOOLEAN NOT NULL DEFAULT false,
			timestamp TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		);

		-- Pricing overrides: written only by deployment tooling
		CREATE TABLE IF NOT EXISTS pricing_entries (
			provider VARCHAR(100) NOT NULL,
			model VARCHAR(100) NOT NULL,
			input_cost_per_token DECIMAL(16, 12) NOT NULL,
			output_cost_per_token DECIMAL(16, 12) NOT NULL,
			PRIMARY KEY (provider, model)
		);

		CREATE INDEX IF NOT EXISTS idx_usage_records_session_id ON usage_records(session_id);
		CREATE INDEX IF NOT EXISTS idx_usage_records_submission_id ON usage_records(submission_id);
		CREATE INDEX IF NOT EXISTS idx_usage_records_timestamp ON usage_records(timestamp);
		CREATE INDEX IF NOT EXISTS idx_usage_records_provider ON usage_records(provider);
	`

	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	db.logger.Info("database schema initialized")
	return nil
}
