package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hirewise/llm-proxy/models"
	"github.com/hirewise/llm-proxy/repositories"
	"go.uber.org/zap"
)

// UsageRepository implements the repositories.UsageRepository interface
type UsageRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewUsageRepository creates a new usage repository
func NewUsageRepository(db *DB, logger *zap.Logger) repositories.UsageRepository {
	return &UsageRepository{
		db:     db,
		logger: logger,
	}
}

// Insert appends a usage record. Records are append-only; there is no
// update path by design.
func (r *UsageRepository) Insert(ctx context.Context, record *models.UsageRecord) error {
	query := `
		INSERT INTO usage_records (
			id, session_id, submission_id, provider, model,
			prompt_tokens, completion_tokens, total_tokens, cost, latency_ms,
			success, error_kind, tokens_estimated, pricing_unknown, timestamp
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15
		)
	`

	_, err := r.db.ExecContext(ctx, query,
		record.ID,
		record.SessionID,
		record.SubmissionID,
		record.Provider,
		record.Model,
		record.PromptTokens,
		record.CompletionTokens,
		record.TotalTokens,
		record.Cost,
		record.LatencyMs,
		record.Success,
		record.ErrorKind,
		record.TokensEstimated,
		record.PricingUnknown,
		record.Timestamp,
	)

	if err != nil {
		return fmt.Errorf("failed to insert usage record: %w", err)
	}

	r.logger.Debug("usage record inserted",
		zap.String("id", record.ID.String()),
		zap.String("session_id", record.SessionID))
	return nil
}

// GetBySessionID retrieves usage records for a session with pagination
func (r *UsageRepository) GetBySessionID(ctx context.Context, sessionID string, limit, offset int) ([]*models.UsageRecord, error) {
	query := `
		SELECT id, session_id, submission_id, provider, model,
		       prompt_tokens, completion_tokens, total_tokens, cost, latency_ms,
		       success, error_kind, tokens_estimated, pricing_unknown, timestamp
		FROM usage_records
		WHERE session_id = $1
		ORDER BY timestamp DESC
		LIMIT $2 OFFSET $3
	`

	return r.queryUsageRecords(ctx, query, sessionID, limit, offset)
}

// GetBySubmissionID retrieves usage records for a submission with pagination
func (r *UsageRepository) GetBySubmissionID(ctx context.Context, submissionID string, limit, offset int) ([]*models.UsageRecord, error) {
	query := `
		SELECT id, session_id, submission_id, provider, model,
		       prompt_tokens, completion_tokens, total_tokens, cost, latency_ms,
		       success, error_kind, tokens_estimated, pricing_unknown, timestamp
		FROM usage_records
		WHERE submission_id = $1
		ORDER BY timestamp DESC
		LIMIT $2 OFFSET $3
	`

	return r.queryUsageRecords(ctx, query, submissionID, limit, offset)
}

// SummarizeSession aggregates calls, tokens, cost and latency for a session
func (r *UsageRepository) SummarizeSession(ctx context.Context, sessionID string) (*models.UsageSummary, error) {
	query := `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE NOT success),
		       COALESCE(SUM(total_tokens), 0),
		       COALESCE(SUM(cost), 0),
		       COALESCE(SUM(latency_ms), 0)
		FROM usage_records
		WHERE session_id = $1
	`

	summary := &models.UsageSummary{SessionID: sessionID}
	err := r.db.QueryRowContext(ctx, query, sessionID).Scan(
		&summary.Calls,
		&summary.FailedCalls,
		&summary.TotalTokens,
		&summary.TotalCost,
		&summary.TotalLatency,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to summarize session usage: %w", err)
	}

	return summary, nil
}

// queryUsageRecords is a helper method to query multiple usage records
func (r *UsageRepository) queryUsageRecords(ctx context.Context, query string, args ...interface{}) ([]*models.UsageRecord, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query usage records: %w", err)
	}
	defer rows.Close()

	var records []*models.UsageRecord
	for rows.Next() {
		record := &models.UsageRecord{}
		var errorKind sql.NullString
		err := rows.Scan(
			&record.ID,
			&record.SessionID,
			&record.SubmissionID,
			&record.Provider,
			&record.Model,
			&record.PromptTokens,
			&record.CompletionTokens,
			&record.TotalTokens,
			&record.Cost,
			&record.LatencyMs,
			&record.Success,
			&errorKind,
			&record.TokensEstimated,
			&record.PricingUnknown,
			&record.Timestamp,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan usage record: %w", err)
		}
		if errorKind.Valid {
			record.ErrorKind = &errorKind.String
		}
		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating usage record rows: %w", err)
	}

	return records, nil
}
