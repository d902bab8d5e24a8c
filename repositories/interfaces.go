package repositories

import (
	"context"

	"github.com/hirewise/llm-proxy/models"
)

// UsageRepository persists usage records. Inserts are append-only and must be
// safe for concurrent writers; records are never updated or deleted.
type UsageRepository interface {
	// Insert appends a usage record
	Insert(ctx context.Context, record *models.UsageRecord) error

	// GetBySessionID retrieves usage records for a session with pagination
	GetBySessionID(ctx context.Context, sessionID string, limit, offset int) ([]*models.UsageRecord, error)

	// GetBySubmissionID retrieves usage records for a submission with pagination
	GetBySubmissionID(ctx context.Context, submissionID string, limit, offset int) ([]*models.UsageRecord, error)

	// SummarizeSession aggregates calls, tokens, cost and latency for a session
	SummarizeSession(ctx context.Context, sessionID string) (*models.UsageSummary, error)
}

// PricingRepository reads operator-deployed pricing overrides. The store is
// only written by deployment tooling, never by this service.
type PricingRepository interface {
	// ListAll returns every pricing entry
	ListAll(ctx context.Context) ([]*models.PricingEntry, error)
}
