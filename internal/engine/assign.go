package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopqueue/shop-queue/internal/metrics"
	"github.com/shopqueue/shop-queue/internal/middleware"
	"github.com/shopqueue/shop-queue/internal/models"
	"github.com/shopqueue/shop-queue/internal/store"
)

// AssignInput describes one auto-assignment request. CandidateLimit bounds
// the eligibility read; zero falls back to the engine default.
type AssignInput struct {
	QueueID        string
	Strategy       string
	DepartmentID   *string
	RequiredSkills []string
	CandidateLimit int
}

// AssignmentResult is the outcome of a successful auto-assignment.
type AssignmentResult struct {
	Queue                *store.Queue `json:"queue"`
	AssignedEmployeeID   string       `json:"assigned_employee_id"`
	AssignedEmployeeName string       `json:"assigned_employee_name"`
	StrategyUsed         string       `json:"strategy_used"`
	Reason               string       `json:"reason"`
}

// normalizeAssignStrategy maps unknown assignment strategy names to
// load balancing.
func normalizeAssignStrategy(strategy string) string {
	switch strategy {
	case models.AssignLoadBalancing,
		models.AssignRoundRobin,
		models.AssignPriority,
		models.AssignSkills:
		return strategy
	default:
		return models.AssignLoadBalancing
	}
}

// SelectEmployee picks one candidate under the given strategy. It is pure:
// the rotation index is supplied by the caller, so round-robin selection is
// fully determined by its arguments. Candidate order is preserved from the
// read layer, which keeps ties stable.
func SelectEmployee(candidates []*store.Employee, strategy string, rotationIndex int64) (*store.Employee, string, error) {
	if len(candidates) == 0 {
		return nil, "", ErrNoEligibleEmployees
	}

	switch normalizeAssignStrategy(strategy) {
	case models.AssignRoundRobin:
		slot := int(rotationIndex % int64(len(candidates)))
		if slot < 0 {
			slot += len(candidates)
		}
		return candidates[slot], fmt.Sprintf("rotation slot %d of %d", slot, len(candidates)), nil

	case models.AssignPriority, models.AssignSkills:
		return nil, "", fmt.Errorf("%w: %s", ErrStrategyNotImplemented, strategy)

	default:
		best := candidates[0]
		for _, candidate := range candidates[1:] {
			if candidate.ActiveQueues < best.ActiveQueues {
				best = candidate
			}
		}
		return best, fmt.Sprintf("least busy with %d active queue(s)", best.ActiveQueues), nil
	}
}

// AutoAssign assigns one waiting queue to an employee under the given
// strategy. The claim is conditional on the queue still being waiting and
// unassigned, so two racing assignments cannot both win.
func (e *Engine) AutoAssign(ctx context.Context, shopID string, input AssignInput) (*AssignmentResult, error) {
	if shopID == "" {
		return nil, fmt.Errorf("%w: shop id is required", ErrValidation)
	}
	if input.QueueID == "" {
		return nil, fmt.Errorf("%w: queue id is required", ErrValidation)
	}

	ctx = middleware.WithShop(ctx, shopID)
	strategy := normalizeAssignStrategy(input.Strategy)

	queue, err := e.queues.GetByID(ctx, input.QueueID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			metrics.AssignmentFailures.WithLabelValues("not_found").Inc()
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: loading queue: %v", ErrOperationFailed, err)
	}
	if queue.Status != models.QueueStatusWaiting || queue.ServedByEmployeeID != nil {
		metrics.AssignmentFailures.WithLabelValues("precondition").Inc()
		return nil, fmt.Errorf("%w: queue %s has status %s", ErrPreconditionFailed, queue.ID, queue.Status)
	}

	if strategy == models.AssignPriority || strategy == models.AssignSkills {
		metrics.AssignmentFailures.WithLabelValues("not_implemented").Inc()
		return nil, fmt.Errorf("%w: %s", ErrStrategyNotImplemented, strategy)
	}

	candidateLimit := input.CandidateLimit
	if candidateLimit <= 0 {
		candidateLimit = e.employeePageSize
	}

	candidates, err := e.employees.ListAssignable(ctx, store.AssignableFilter{
		DepartmentID:   input.DepartmentID,
		RequiredSkills: input.RequiredSkills,
		Limit:          candidateLimit,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: listing assignable employees: %v", ErrOperationFailed, err)
	}
	if len(candidates) == 0 {
		metrics.AssignmentFailures.WithLabelValues("no_candidates").Inc()
		return nil, ErrNoEligibleEmployees
	}

	var rotationIndex int64
	if strategy == models.AssignRoundRobin {
		rotationIndex, err = e.rotations.NextIndex(ctx)
		if err != nil {
			return nil, fmt.Errorf("%w: advancing rotation: %v", ErrOperationFailed, err)
		}
	}

	selected, reason, err := SelectEmployee(candidates, strategy, rotationIndex)
	if err != nil {
		return nil, err
	}

	claimed, err := e.writer.Claim(ctx, queue.ID, selected.ID)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrQueueNotClaimable):
			metrics.AssignmentFailures.WithLabelValues("lost_race").Inc()
			return nil, fmt.Errorf("%w: queue %s was claimed concurrently", ErrPreconditionFailed, queue.ID)
		case errors.Is(err, store.ErrNotFound):
			metrics.AssignmentFailures.WithLabelValues("not_found").Inc()
			return nil, ErrNotFound
		default:
			return nil, fmt.Errorf("%w: claiming queue: %v", ErrOperationFailed, err)
		}
	}

	metrics.Assignments.WithLabelValues(strategy).Inc()
	e.logger.Info().
		Str("shop_id", shopID).
		Str("queue_id", claimed.ID).
		Str("employee_id", selected.ID).
		Str("strategy", strategy).
		Msg("queue assigned")

	return &AssignmentResult{
		Queue:                claimed,
		AssignedEmployeeID:   selected.ID,
		AssignedEmployeeName: selected.Name,
		StrategyUsed:         strategy,
		Reason:               reason,
	}, nil
}
