package metering

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hirewise/llm-proxy/models"
	"github.com/hirewise/llm-proxy/pricing"
	"github.com/hirewise/llm-proxy/providers"
	"github.com/hirewise/llm-proxy/repositories"
	"go.uber.org/zap"
)

// CallOutcome describes one finished provider call, successful or not
type CallOutcome struct {
	SessionID    string
	SubmissionID string
	Provider     string
	Model        string

	// Response is the provider response, nil when the call failed
	Response *providers.ChatResponse

	// Err is the terminal error, nil when the call succeeded
	Err error

	Latency time.Duration

	// PromptChars is the total character length of the request messages,
	// used to estimate prompt tokens when the provider reports no usage
	PromptChars int
}

// Service computes usage records for call outcomes and persists them in the
// background. Record computation is synchronous so callers always get the
// accounting result; persistence is best-effort and never fails the caller.
type Service struct {
	usageRepo     repositories.UsageRepository
	pricingTable  *pricing.Table
	logger        *zap.Logger
	recordChan    chan *models.UsageRecord
	workerCount   int
	bufferSize    int
	charsPerToken int
	dropped       atomic.Int64
	wg            sync.WaitGroup
	ctx           context.Context
	cancel        context.CancelFunc
	started       bool
	mu            sync.Mutex
}

// Config holds configuration for the metering Service
type Config struct {
	BufferSize    int // Size of the record buffer channel
	WorkerCount   int // Number of concurrent persistence workers
	CharsPerToken int // Characters per token for the estimation heuristic
}

// DefaultConfig returns the default configuration
func DefaultConfig() Config {
	return Config{
		BufferSize:    10000,
		WorkerCount:   5,
		CharsPerToken: 4,
	}
}

// NewService creates a new metering Service instance
func NewService(usageRepo repositories.UsageRepository, pricingTable *pricing.Table, logger *zap.Logger, config Config) *Service {
	ctx, cancel := context.WithCancel(context.Background())

	if config.CharsPerToken <= 0 {
		config.CharsPerToken = 4
	}

	return &Service{
		usageRepo:     usageRepo,
		pricingTable:  pricingTable,
		logger:        logger,
		recordChan:    make(chan *models.UsageRecord, config.BufferSize),
		workerCount:   config.WorkerCount,
		bufferSize:    config.BufferSize,
		charsPerToken: config.CharsPerToken,
		ctx:           ctx,
		cancel:        cancel,
		started:       false,
	}
}

// Start starts the background persistence workers
func (s *Service) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return fmt.Errorf("metering service already started")
	}

	for i := 0; i < s.workerCount; i++ {
		s.wg.Add(1)
		go s.worker(i)
	}

	s.started = true
	s.logger.Info("started metering service",
		zap.Int("worker_count", s.workerCount),
		zap.Int("buffer_size", s.bufferSize))

	return nil
}

// Stop gracefully stops the metering service.
// Waits for all pending records to be persisted.
func (s *Service) Stop(timeout time.Duration) error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return fmt.Errorf("metering service not started")
	}
	// Mark stopped and close under the same lock enqueue sends under, so a
	// Record racing with shutdown drops instead of sending on a closed channel
	s.started = false
	s.logger.Info("stopping metering service", zap.Int("pending_records", len(s.recordChan)))
	close(s.recordChan)
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("metering service stopped gracefully")
		s.cancel()
		return nil
	case <-time.After(timeout):
		s.cancel()
		return fmt.Errorf("metering service stop timeout after %v", timeout)
	}
}

// Record builds the usage record for one call outcome and queues it for
// persistence. The record is returned synchronously even when the buffer is
// full or the store is down; accounting data is never lost to the caller.
func (s *Service) Record(outcome CallOutcome) *models.UsageRecord {
	record := models.NewUsageRecord(outcome.SessionID, outcome.SubmissionID, outcome.Provider, outcome.Model)
	record.LatencyMs = int(outcome.Latency.Milliseconds())

	if outcome.Err != nil {
		record.WithOutcome(false, string(providers.KindOf(outcome.Err)))
	} else {
		promptTokens, completionTokens, estimated := s.resolveTokens(outcome)
		record.WithTokens(promptTokens, completionTokens, estimated)

		entry, known := s.pricingTable.Lookup(outcome.Provider, outcome.Model)
		record.WithCost(entry.Cost(promptTokens, completionTokens), !known)
		record.WithOutcome(true, "")
	}

	s.enqueue(record)
	return record
}

// resolveTokens returns the token split for a successful call, falling back
// to the text-length heuristic when the provider reported no usage
func (s *Service) resolveTokens(outcome CallOutcome) (prompt, completion int, estimated bool) {
	if outcome.Response != nil && outcome.Response.Usage != nil {
		usage := outcome.Response.Usage
		return usage.PromptTokens, usage.CompletionTokens, false
	}

	prompt = outcome.PromptChars / s.charsPerToken
	if outcome.Response != nil {
		completion = len(outcome.Response.Content) / s.charsPerToken
	}
	return prompt, completion, true
}

// enqueue hands the record to the persistence workers without blocking.
// The lock spans the send so Stop cannot close the channel mid-enqueue.
func (s *Service) enqueue(record *models.UsageRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		s.dropped.Add(1)
		s.logger.Warn("metering service not running, dropping record",
			zap.String("session_id", record.SessionID),
			zap.String("submission_id", record.SubmissionID))
		return
	}

	select {
	case s.recordChan <- record:
	default:
		s.dropped.Add(1)
		s.logger.Warn("usage record channel full, dropping record",
			zap.String("session_id", record.SessionID),
			zap.String("submission_id", record.SubmissionID),
			zap.String("provider", record.Provider))
	}
}

// worker persists records from the channel
func (s *Service) worker(id int) {
	defer s.wg.Done()

	s.logger.Debug("metering worker started", zap.Int("worker_id", id))

	for record := range s.recordChan {
		if err := s.persist(record); err != nil {
			s.logger.Error("failed to persist usage record",
				zap.Int("worker_id", id),
				zap.Error(err),
				zap.String("session_id", record.SessionID),
				zap.String("provider", record.Provider))
		}
	}

	s.logger.Debug("metering worker stopped", zap.Int("worker_id", id))
}

// persist writes a single usage record to the store
func (s *Service) persist(record *models.UsageRecord) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.usageRepo.Insert(ctx, record); err != nil {
		return fmt.Errorf("failed to insert usage record: %w", err)
	}

	return nil
}

// GetStats returns statistics about the metering service
func (s *Service) GetStats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	return Stats{
		BufferSize:     s.bufferSize,
		PendingRecords: len(s.recordChan),
		DroppedRecords: s.dropped.Load(),
		WorkerCount:    s.workerCount,
		Started:        s.started,
	}
}

// Stats represents metering service statistics
type Stats struct {
	BufferSize     int
	PendingRecords int
	DroppedRecords int64
	WorkerCount    int
	Started        bool
}
