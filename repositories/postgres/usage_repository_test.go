package postgres

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/hirewise/llm-proxy/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newMockDB(t *testing.T) (*DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return &DB{DB: db, logger: zap.NewNop()}, mock
}

func TestUsageRepositoryInsert(t *testing.T) {
	t.Run("inserts a complete record", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewUsageRepository(db, zap.NewNop())

		record := models.NewUsageRecord("sess-1", "sub-1", "openai", "gpt-4o-mini").
			WithTokens(100, 50, false).
			WithCost(0.2, false).
			WithOutcome(true, "")

		mock.ExpectExec("INSERT INTO usage_records").
			WithArgs(
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
			).
			WillReturnResult(sqlmock.NewResult(0, 1))

		err := repo.Insert(context.Background(), record)
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("wraps database errors", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewUsageRepository(db, zap.NewNop())

		record := models.NewUsageRecord("sess-1", "sub-1", "openai", "gpt-4o-mini")

		mock.ExpectExec("INSERT INTO usage_records").
			WillReturnError(sql.ErrConnDone)

		err := repo.Insert(context.Background(), record)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "failed to insert usage record")
	})
}

func TestUsageRepositoryGetBySessionID(t *testing.T) {
	t.Run("scans records including nullable error kind", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewUsageRepository(db, zap.NewNop())

		okRecord := models.NewUsageRecord("sess-1", "sub-1", "openai", "gpt-4o-mini").
			WithTokens(100, 50, false).
			WithCost(0.2, false).
			WithOutcome(true, "")
		failedRecord := models.NewUsageRecord("sess-1", "sub-2", "anthropic", "claude-3-5-haiku-latest").
			WithOutcome(false, "rate_limited")

		rows := sqlmock.NewRows([]string{
			"id", "session_id", "submission_id", "provider", "model",
			"prompt_tokens", "completion_tokens", "total_tokens", "cost", "latency_ms",
			"success", "error_kind", "tokens_estimated", "pricing_unknown", "timestamp",
		}).
			AddRow(okRecord.ID, okRecord.SessionID, okRecord.SubmissionID, okRecord.Provider, okRecord.Model,
				okRecord.PromptTokens, okRecord.CompletionTokens, okRecord.TotalTokens, okRecord.Cost, okRecord.LatencyMs,
				okRecord.Success, nil, okRecord.TokensEstimated, okRecord.PricingUnknown, okRecord.Timestamp).
			AddRow(failedRecord.ID, failedRecord.SessionID, failedRecord.SubmissionID, failedRecord.Provider, failedRecord.Model,
				0, 0, 0, 0.0, 0,
				false, "rate_limited", false, false, failedRecord.Timestamp)

		mock.ExpectQuery("SELECT (.+) FROM usage_records").
			WithArgs("sess-1", 10, 0).
			WillReturnRows(rows)

		records, err := repo.GetBySessionID(context.Background(), "sess-1", 10, 0)
		require.NoError(t, err)
		require.Len(t, records, 2)

		assert.Nil(t, records[0].ErrorKind)
		assert.True(t, records[0].Success)

		require.NotNil(t, records[1].ErrorKind)
		assert.Equal(t, "rate_limited", *records[1].ErrorKind)
		assert.False(t, records[1].Success)

		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestUsageRepositorySummarizeSession(t *testing.T) {
	t.Run("aggregates session totals", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewUsageRepository(db, zap.NewNop())

		rows := sqlmock.NewRows([]string{"count", "failed", "tokens", "cost", "latency"}).
			AddRow(5, 1, 1200, 0.0345, 8200)

		mock.ExpectQuery("SELECT (.+) FROM usage_records").
			WithArgs("sess-1").
			WillReturnRows(rows)

		summary, err := repo.SummarizeSession(context.Background(), "sess-1")
		require.NoError(t, err)

		assert.Equal(t, "sess-1", summary.SessionID)
		assert.Equal(t, 5, summary.Calls)
		assert.Equal(t, 1, summary.FailedCalls)
		assert.Equal(t, 1200, summary.TotalTokens)
		assert.InDelta(t, 0.0345, summary.TotalCost, 1e-9)
		assert.Equal(t, 8200, summary.TotalLatency)

		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("empty session yields zero summary", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewUsageRepository(db, zap.NewNop())

		rows := sqlmock.NewRows([]string{"count", "failed", "tokens", "cost", "latency"}).
			AddRow(0, 0, 0, 0.0, 0)

		mock.ExpectQuery("SELECT (.+) FROM usage_records").
			WithArgs("sess-unknown").
			WillReturnRows(rows)

		summary, err := repo.SummarizeSession(context.Background(), "sess-unknown")
		require.NoError(t, err)
		assert.Equal(t, 0, summary.Calls)
		assert.Equal(t, 0.0, summary.TotalCost)
	})
}

func TestPricingRepositoryListAll(t *testing.T) {
	t.Run("returns all entries", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewPricingRepository(db, zap.NewNop())

		rows := sqlmock.NewRows([]string{"provider", "model", "input_cost_per_token", "output_cost_per_token"}).
			AddRow("openai", "gpt-4o-mini", 0.00000015, 0.0000006).
			AddRow("anthropic", "claude-3-5-haiku-latest", 0.0000008, 0.000004)

		mock.ExpectQuery("SELECT (.+) FROM pricing_entries").
			WillReturnRows(rows)

		entries, err := repo.ListAll(context.Background())
		require.NoError(t, err)
		require.Len(t, entries, 2)
		assert.Equal(t, "openai", entries[0].Provider)
		assert.InDelta(t, 0.0000006, entries[0].OutputCostPerToken, 1e-12)
	})

	t.Run("empty table yields no entries", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewPricingRepository(db, zap.NewNop())

		rows := sqlmock.NewRows([]string{"provider", "model", "input_cost_per_token", "output_cost_per_token"})
		mock.ExpectQuery("SELECT (.+) FROM pricing_entries").WillReturnRows(rows)

		entries, err := repo.ListAll(context.Background())
		require.NoError(t, err)
		assert.Empty(t, entries)
	})
}

func TestUsageRecordTimestamps(t *testing.T) {
	before := time.Now()
	record := models.NewUsageRecord("s", "sub", "openai", "gpt-4o")
	after := time.Now()

	assert.False(t, record.Timestamp.Before(before))
	assert.False(t, record.Timestamp.After(after))
}
