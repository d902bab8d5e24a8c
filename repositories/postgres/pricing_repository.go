package postgres

import (
	"context"
	"fmt"

	"github.com/hirewise/llm-proxy/models"
	"github.com/hirewise/llm-proxy/repositories"
	"go.uber.org/zap"
)

// PricingRepository implements the repositories.PricingRepository interface
type PricingRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewPricingRepository creates a new pricing repository
func NewPricingRepository(db *DB, logger *zap.Logger) repositories.PricingRepository {
	return &PricingRepository{
		db:     db,
		logger: logger,
	}
}

// ListAll returns every pricing entry. Called once at startup to layer
// operator overrides on top of the shipped defaults.
func (r *PricingRepository) ListAll(ctx context.Context) ([]*models.PricingEntry, error) {
	query := `
		SELECT provider, model, input_cost_per_token, output_cost_per_token
		FROM pricing_entries
		ORDER BY provider, model
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query pricing entries: %w", err)
	}
	defer rows.Close()

	var entries []*models.PricingEntry
	for rows.Next() {
		entry := &models.PricingEntry{}
		err := rows.Scan(
			&entry.Provider,
			&entry.Model,
			&entry.InputCostPerToken,
			&entry.OutputCostPerToken,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan pricing entry: %w", err)
		}
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating pricing entry rows: %w", err)
	}

	r.logger.Debug("pricing entries loaded", zap.Int("count", len(entries)))
	return entries, nil
}
