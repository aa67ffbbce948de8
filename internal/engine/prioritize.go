// Package engine implements queue prioritization and employee assignment.
// All decision logic is pure; the Engine type wires it to storage.
package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/shopqueue/shop-queue/internal/metrics"
	"github.com/shopqueue/shop-queue/internal/middleware"
	"github.com/shopqueue/shop-queue/internal/models"
	"github.com/shopqueue/shop-queue/internal/store"
)

// QueueReader reads queue entries for scoring and assignment.
type QueueReader interface {
	GetByID(ctx context.Context, id string) (*store.Queue, error)
	ListWaiting(ctx context.Context, limit int) ([]*store.Queue, error)
}

// QueueWriter applies engine decisions to stored queues.
type QueueWriter interface {
	UpdatePriority(ctx context.Context, id, priority string, score float64) error
	Claim(ctx context.Context, queueID, employeeID string) (*store.Queue, error)
}

// EmployeeReader lists assignment candidates.
type EmployeeReader interface {
	ListAssignable(ctx context.Context, filter store.AssignableFilter) ([]*store.Employee, error)
}

// RotationSource hands out monotonically increasing rotation indexes for
// round-robin assignment. Indexes survive restarts.
type RotationSource interface {
	NextIndex(ctx context.Context) (int64, error)
}

// Engine coordinates scoring and assignment over the store layer.
type Engine struct {
	queues    QueueReader
	writer    QueueWriter
	employees EmployeeReader
	rotations RotationSource

	logger           zerolog.Logger
	now              func() time.Time
	queuePageSize    int
	employeePageSize int
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock overrides the engine clock. Tests use this to freeze time.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithPageSizes overrides the read page sizes for the waiting pool and the
// candidate pool.
func WithPageSizes(queuePageSize, employeePageSize int) Option {
	return func(e *Engine) {
		if queuePageSize > 0 {
			e.queuePageSize = queuePageSize
		}
		if employeePageSize > 0 {
			e.employeePageSize = employeePageSize
		}
	}
}

// New creates an Engine over the given collaborators.
func New(queues QueueReader, writer QueueWriter, employees EmployeeReader, rotations RotationSource, logger zerolog.Logger, opts ...Option) *Engine {
	e := &Engine{
		queues:           queues,
		writer:           writer,
		employees:        employees,
		rotations:        rotations,
		logger:           logger,
		now:              time.Now,
		queuePageSize:    1000,
		employeePageSize: 100,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// PrioritySummary tallies a batch of priority results.
type PrioritySummary struct {
	Total  int `json:"total"`
	Normal int `json:"normal"`
	High   int `json:"high"`
	Urgent int `json:"urgent"`
}

// PrioritizationOutcome is the result of one batch prioritization run.
type PrioritizationOutcome struct {
	Strategy string           `json:"strategy"`
	Results  []PriorityResult `json:"results"`
	Summary  PrioritySummary  `json:"summary"`
}

// PrioritizeInput describes one batch prioritization request. PageSize bounds
// the waiting-pool read; zero falls back to the engine default.
type PrioritizeInput struct {
	QueueIDs []string
	Strategy string
	PageSize int
}

// normalizeScoringStrategy maps unknown scoring strategy names to the
// wait-time fallback so outcomes always report the strategy actually applied.
func normalizeScoringStrategy(strategy string) string {
	switch strategy {
	case models.ScoringWaitTime,
		models.ScoringCustomerTier,
		models.ScoringServiceComplexity,
		models.ScoringRevenue,
		models.ScoringCombined:
		return strategy
	default:
		return models.ScoringWaitTime
	}
}

// Prioritize scores the requested queues under the given strategy and writes
// the resulting priority and score back to storage. Queue ids absent from the
// waiting pool get a sentinel result instead of failing the batch, and a
// failed write skips that queue without aborting the rest.
func (e *Engine) Prioritize(ctx context.Context, shopID string, input PrioritizeInput) (*PrioritizationOutcome, error) {
	if shopID == "" {
		return nil, fmt.Errorf("%w: shop id is required", ErrValidation)
	}
	if len(input.QueueIDs) == 0 {
		return nil, fmt.Errorf("%w: queue ids are required", ErrValidation)
	}

	ctx = middleware.WithShop(ctx, shopID)
	effective := normalizeScoringStrategy(input.Strategy)

	pageSize := input.PageSize
	if pageSize <= 0 {
		pageSize = e.queuePageSize
	}

	pool, err := e.queues.ListWaiting(ctx, pageSize)
	if err != nil {
		return nil, fmt.Errorf("%w: listing waiting queues: %v", ErrOperationFailed, err)
	}

	byID := make(map[string]*store.Queue, len(pool))
	for _, queue := range pool {
		byID[queue.ID] = queue
	}

	now := e.now()
	outcome := &PrioritizationOutcome{
		Strategy: effective,
		Results:  make([]PriorityResult, 0, len(input.QueueIDs)),
	}

	for _, queueID := range input.QueueIDs {
		queue, ok := byID[queueID]
		if !ok {
			e.logger.Warn().
				Str("shop_id", shopID).
				Str("queue_id", queueID).
				Msg("queue not in waiting pool, returning sentinel result")
			metrics.PrioritizationMisses.Inc()
			outcome.Results = append(outcome.Results, NotFoundResult(queueID))
			outcome.tally(models.QueuePriorityNormal)
			continue
		}

		result := Score(SnapshotFromQueue(queue, now), effective)
		if err := e.writer.UpdatePriority(ctx, queue.ID, result.Priority, result.Score); err != nil {
			e.logger.Warn().
				Err(err).
				Str("shop_id", shopID).
				Str("queue_id", queue.ID).
				Msg("skipping failed priority write")
			metrics.PriorityWriteFailures.Inc()
		}
		outcome.Results = append(outcome.Results, result)
		outcome.tally(result.Priority)
	}

	metrics.PrioritizationRuns.WithLabelValues(effective).Inc()
	e.logger.Info().
		Str("shop_id", shopID).
		Str("strategy", effective).
		Int("total", outcome.Summary.Total).
		Int("urgent", outcome.Summary.Urgent).
		Msg("prioritization run complete")

	return outcome, nil
}

func (o *PrioritizationOutcome) tally(priority string) {
	o.Summary.Total++
	switch priority {
	case models.QueuePriorityUrgent:
		o.Summary.Urgent++
	case models.QueuePriorityHigh:
		o.Summary.High++
	default:
		o.Summary.Normal++
	}
}
