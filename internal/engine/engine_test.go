package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/shopqueue/shop-queue/internal/middleware"
	"github.com/shopqueue/shop-queue/internal/models"
	"github.com/shopqueue/shop-queue/internal/store"
)

type priorityWrite struct {
	queueID  string
	priority string
	score    float64
}

type fakeQueueStore struct {
	waiting   []*store.Queue
	lastLimit int

	writes     []priorityWrite
	failWrites map[string]error

	claimed     map[string]string
	claimErr    error
	claimResult *store.Queue
}

func (f *fakeQueueStore) GetByID(ctx context.Context, id string) (*store.Queue, error) {
	for _, queue := range f.waiting {
		if queue.ID == id {
			return queue, nil
		}
	}
	return nil, store.ErrNotFound
}

func (f *fakeQueueStore) ListWaiting(ctx context.Context, limit int) ([]*store.Queue, error) {
	f.lastLimit = limit
	return f.waiting, nil
}

func (f *fakeQueueStore) UpdatePriority(ctx context.Context, id, priority string, score float64) error {
	if err, ok := f.failWrites[id]; ok {
		return err
	}
	f.writes = append(f.writes, priorityWrite{queueID: id, priority: priority, score: score})
	return nil
}

func (f *fakeQueueStore) Claim(ctx context.Context, queueID, employeeID string) (*store.Queue, error) {
	if f.claimErr != nil {
		return nil, f.claimErr
	}
	if f.claimed == nil {
		f.claimed = map[string]string{}
	}
	f.claimed[queueID] = employeeID
	if f.claimResult != nil {
		return f.claimResult, nil
	}
	queue, err := f.GetByID(ctx, queueID)
	if err != nil {
		return nil, err
	}
	copied := *queue
	copied.Status = models.QueueStatusInProgress
	copied.ServedByEmployeeID = &employeeID
	return &copied, nil
}

type fakeEmployeeStore struct {
	candidates []*store.Employee
	lastFilter store.AssignableFilter
	err        error
}

func (f *fakeEmployeeStore) ListAssignable(ctx context.Context, filter store.AssignableFilter) ([]*store.Employee, error) {
	f.lastFilter = filter
	return f.candidates, f.err
}

type fakeRotationStore struct {
	next  int64
	calls int
}

func (f *fakeRotationStore) NextIndex(ctx context.Context) (int64, error) {
	f.calls++
	index := f.next
	f.next++
	return index, nil
}

const testShopID = "3f0c9d7e-2b1a-4c5d-8e6f-7a8b9c0d1e2f"

func newTestEngine(queues *fakeQueueStore, employees *fakeEmployeeStore, rotations *fakeRotationStore, opts ...Option) *Engine {
	return New(queues, queues, employees, rotations, zerolog.Nop(), opts...)
}

func waitingQueue(id string, waitedMinutes int, now time.Time) *store.Queue {
	return &store.Queue{
		ID:           id,
		ShopID:       testShopID,
		Status:       models.QueueStatusWaiting,
		CustomerTier: models.TierRegular,
		CreatedAt:    now.Add(-time.Duration(waitedMinutes) * time.Minute),
	}
}

func TestPrioritizeScoresAndWritesBatch(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	queues := &fakeQueueStore{waiting: []*store.Queue{
		waitingQueue("q-long", 45, now),
		waitingQueue("q-mid", 20, now),
		waitingQueue("q-short", 5, now),
	}}
	eng := newTestEngine(queues, &fakeEmployeeStore{}, &fakeRotationStore{}, WithClock(func() time.Time { return now }))

	outcome, err := eng.Prioritize(context.Background(), testShopID, PrioritizeInput{
		QueueIDs: []string{"q-long", "q-mid", "q-short"},
		Strategy: models.ScoringWaitTime,
	})
	require.NoError(t, err)
	require.Equal(t, models.ScoringWaitTime, outcome.Strategy)
	require.Len(t, outcome.Results, 3)

	require.Equal(t, models.QueuePriorityHigh, outcome.Results[0].Priority)
	require.Equal(t, 90.0, outcome.Results[0].Score)
	require.Equal(t, models.QueuePriorityHigh, outcome.Results[1].Priority)
	require.Equal(t, 60.0, outcome.Results[1].Score)
	require.Equal(t, models.QueuePriorityNormal, outcome.Results[2].Priority)

	require.Equal(t, 3, outcome.Summary.Total)
	require.Equal(t, outcome.Summary.Total, outcome.Summary.Normal+outcome.Summary.High+outcome.Summary.Urgent)
	require.Len(t, queues.writes, 3)
	require.Equal(t, priorityWrite{queueID: "q-long", priority: models.QueuePriorityHigh, score: 90}, queues.writes[0])
}

func TestPrioritizeMissingQueueGetsSentinel(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	queues := &fakeQueueStore{waiting: []*store.Queue{waitingQueue("q-real", 10, now)}}
	eng := newTestEngine(queues, &fakeEmployeeStore{}, &fakeRotationStore{}, WithClock(func() time.Time { return now }))

	outcome, err := eng.Prioritize(context.Background(), testShopID, PrioritizeInput{
		QueueIDs: []string{"q-real", "q-ghost"},
		Strategy: models.ScoringWaitTime,
	})
	require.NoError(t, err)
	require.Len(t, outcome.Results, 2)

	sentinel := outcome.Results[1]
	require.Equal(t, "q-ghost", sentinel.QueueID)
	require.Equal(t, models.QueuePriorityNormal, sentinel.Priority)
	require.Equal(t, 50.0, sentinel.Score)
	require.Contains(t, sentinel.Reason, "not found")

	// The sentinel never reaches storage.
	require.Len(t, queues.writes, 1)
	require.Equal(t, "q-real", queues.writes[0].queueID)
}

func TestPrioritizeContinuesPastFailedWrite(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	queues := &fakeQueueStore{
		waiting:    []*store.Queue{waitingQueue("q-bad", 45, now), waitingQueue("q-good", 45, now)},
		failWrites: map[string]error{"q-bad": errors.New("connection reset")},
	}
	eng := newTestEngine(queues, &fakeEmployeeStore{}, &fakeRotationStore{}, WithClock(func() time.Time { return now }))

	outcome, err := eng.Prioritize(context.Background(), testShopID, PrioritizeInput{
		QueueIDs: []string{"q-bad", "q-good"},
		Strategy: models.ScoringWaitTime,
	})
	require.NoError(t, err)
	require.Len(t, outcome.Results, 2)
	require.Equal(t, 2, outcome.Summary.Total)
	require.Len(t, queues.writes, 1)
	require.Equal(t, "q-good", queues.writes[0].queueID)
}

func TestPrioritizeValidation(t *testing.T) {
	eng := newTestEngine(&fakeQueueStore{}, &fakeEmployeeStore{}, &fakeRotationStore{})

	_, err := eng.Prioritize(context.Background(), "", PrioritizeInput{QueueIDs: []string{"q1"}, Strategy: models.ScoringWaitTime})
	require.ErrorIs(t, err, ErrValidation)

	_, err = eng.Prioritize(context.Background(), testShopID, PrioritizeInput{Strategy: models.ScoringWaitTime})
	require.ErrorIs(t, err, ErrValidation)
}

func TestPrioritizeUnknownStrategyFallsBack(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	queues := &fakeQueueStore{waiting: []*store.Queue{waitingQueue("q1", 45, now)}}
	eng := newTestEngine(queues, &fakeEmployeeStore{}, &fakeRotationStore{}, WithClock(func() time.Time { return now }))

	outcome, err := eng.Prioritize(context.Background(), testShopID, PrioritizeInput{QueueIDs: []string{"q1"}, Strategy: "fifo"})
	require.NoError(t, err)
	require.Equal(t, models.ScoringWaitTime, outcome.Strategy)
	require.Equal(t, 90.0, outcome.Results[0].Score)
}

func TestPrioritizePageSizeBoundsWaitingRead(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	queues := &fakeQueueStore{waiting: []*store.Queue{waitingQueue("q1", 10, now)}}
	eng := newTestEngine(queues, &fakeEmployeeStore{}, &fakeRotationStore{}, WithClock(func() time.Time { return now }))

	_, err := eng.Prioritize(context.Background(), testShopID, PrioritizeInput{
		QueueIDs: []string{"q1"},
		Strategy: models.ScoringWaitTime,
		PageSize: 10,
	})
	require.NoError(t, err)
	require.Equal(t, 10, queues.lastLimit)

	// A zero page size falls back to the engine default.
	_, err = eng.Prioritize(context.Background(), testShopID, PrioritizeInput{
		QueueIDs: []string{"q1"},
		Strategy: models.ScoringWaitTime,
	})
	require.NoError(t, err)
	require.Equal(t, 1000, queues.lastLimit)
}

func employeeWithLoad(id, name string, activeQueues int) *store.Employee {
	return &store.Employee{
		ID:           id,
		ShopID:       testShopID,
		Name:         name,
		Status:       models.EmployeeStatusActive,
		ActiveQueues: activeQueues,
	}
}

func TestSelectEmployeeLeastBusy(t *testing.T) {
	candidates := []*store.Employee{
		employeeWithLoad("e1", "Ana", 3),
		employeeWithLoad("e2", "Ben", 1),
		employeeWithLoad("e3", "Cruz", 2),
	}
	selected, reason, err := SelectEmployee(candidates, models.AssignLoadBalancing, 0)
	require.NoError(t, err)
	require.Equal(t, "e2", selected.ID)
	require.Contains(t, reason, "least busy")
}

func TestSelectEmployeeLeastBusyTiesAreStable(t *testing.T) {
	candidates := []*store.Employee{
		employeeWithLoad("e1", "Ana", 1),
		employeeWithLoad("e2", "Ben", 1),
	}
	selected, _, err := SelectEmployee(candidates, models.AssignLoadBalancing, 0)
	require.NoError(t, err)
	require.Equal(t, "e1", selected.ID)
}

func TestSelectEmployeeRoundRobinFollowsClockModulo(t *testing.T) {
	candidates := []*store.Employee{
		employeeWithLoad("e1", "Ana", 0),
		employeeWithLoad("e2", "Ben", 0),
		employeeWithLoad("e3", "Cruz", 0),
	}

	frozen := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	millis := frozen.UnixMilli()
	want := candidates[millis%3]

	selected, _, err := SelectEmployee(candidates, models.AssignRoundRobin, millis)
	require.NoError(t, err)
	require.Equal(t, want.ID, selected.ID)
}

func TestSelectEmployeeRoundRobinCyclesThroughPool(t *testing.T) {
	candidates := []*store.Employee{
		employeeWithLoad("e1", "Ana", 0),
		employeeWithLoad("e2", "Ben", 0),
		employeeWithLoad("e3", "Cruz", 0),
	}
	var order []string
	for index := int64(0); index < 6; index++ {
		selected, _, err := SelectEmployee(candidates, models.AssignRoundRobin, index)
		require.NoError(t, err)
		order = append(order, selected.ID)
	}
	require.Equal(t, []string{"e1", "e2", "e3", "e1", "e2", "e3"}, order)
}

func TestSelectEmployeeUnimplementedStrategies(t *testing.T) {
	candidates := []*store.Employee{employeeWithLoad("e1", "Ana", 0)}

	_, _, err := SelectEmployee(candidates, models.AssignPriority, 0)
	require.ErrorIs(t, err, ErrStrategyNotImplemented)

	_, _, err = SelectEmployee(candidates, models.AssignSkills, 0)
	require.ErrorIs(t, err, ErrStrategyNotImplemented)
}

func TestSelectEmployeeEmptyPool(t *testing.T) {
	_, _, err := SelectEmployee(nil, models.AssignLoadBalancing, 0)
	require.ErrorIs(t, err, ErrNoEligibleEmployees)
}

func TestSelectEmployeeUnknownStrategyDefaultsToLoadBalancing(t *testing.T) {
	candidates := []*store.Employee{
		employeeWithLoad("e1", "Ana", 2),
		employeeWithLoad("e2", "Ben", 0),
	}
	selected, _, err := SelectEmployee(candidates, "random", 0)
	require.NoError(t, err)
	require.Equal(t, "e2", selected.ID)
}

func TestAutoAssignClaimsLeastBusyEmployee(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	queues := &fakeQueueStore{waiting: []*store.Queue{waitingQueue("q1", 10, now)}}
	employees := &fakeEmployeeStore{candidates: []*store.Employee{
		employeeWithLoad("e1", "Ana", 2),
		employeeWithLoad("e2", "Ben", 0),
	}}
	eng := newTestEngine(queues, employees, &fakeRotationStore{})

	result, err := eng.AutoAssign(context.Background(), testShopID, AssignInput{
		QueueID:  "q1",
		Strategy: models.AssignLoadBalancing,
	})
	require.NoError(t, err)
	require.Equal(t, "e2", result.AssignedEmployeeID)
	require.Equal(t, "Ben", result.AssignedEmployeeName)
	require.Equal(t, models.AssignLoadBalancing, result.StrategyUsed)
	require.Equal(t, models.QueueStatusInProgress, result.Queue.Status)
	require.Equal(t, "e2", queues.claimed["q1"])
}

func TestAutoAssignRoundRobinAdvancesRotation(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	queues := &fakeQueueStore{waiting: []*store.Queue{
		waitingQueue("q1", 10, now),
		waitingQueue("q2", 10, now),
	}}
	employees := &fakeEmployeeStore{candidates: []*store.Employee{
		employeeWithLoad("e1", "Ana", 0),
		employeeWithLoad("e2", "Ben", 0),
	}}
	rotations := &fakeRotationStore{}
	eng := newTestEngine(queues, employees, rotations)

	first, err := eng.AutoAssign(context.Background(), testShopID, AssignInput{QueueID: "q1", Strategy: models.AssignRoundRobin})
	require.NoError(t, err)
	second, err := eng.AutoAssign(context.Background(), testShopID, AssignInput{QueueID: "q2", Strategy: models.AssignRoundRobin})
	require.NoError(t, err)

	require.Equal(t, "e1", first.AssignedEmployeeID)
	require.Equal(t, "e2", second.AssignedEmployeeID)
	require.Equal(t, 2, rotations.calls)
}

func TestAutoAssignQueueNotFound(t *testing.T) {
	eng := newTestEngine(&fakeQueueStore{}, &fakeEmployeeStore{}, &fakeRotationStore{})
	_, err := eng.AutoAssign(context.Background(), testShopID, AssignInput{QueueID: "q-ghost"})
	require.ErrorIs(t, err, ErrNotFound)
}

func TestAutoAssignRejectsNonWaitingQueue(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	queue := waitingQueue("q1", 10, now)
	queue.Status = models.QueueStatusServing
	queues := &fakeQueueStore{waiting: []*store.Queue{queue}}
	eng := newTestEngine(queues, &fakeEmployeeStore{}, &fakeRotationStore{})

	_, err := eng.AutoAssign(context.Background(), testShopID, AssignInput{QueueID: "q1"})
	require.ErrorIs(t, err, ErrPreconditionFailed)
	require.Empty(t, queues.claimed)
}

func TestAutoAssignRejectsAlreadyAssignedQueue(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	employeeID := "e-prior"
	queue := waitingQueue("q1", 10, now)
	queue.ServedByEmployeeID = &employeeID
	queues := &fakeQueueStore{waiting: []*store.Queue{queue}}
	eng := newTestEngine(queues, &fakeEmployeeStore{}, &fakeRotationStore{})

	_, err := eng.AutoAssign(context.Background(), testShopID, AssignInput{QueueID: "q1"})
	require.ErrorIs(t, err, ErrPreconditionFailed)
	require.Empty(t, queues.claimed)
}

func TestAutoAssignNoEligibleEmployees(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	queues := &fakeQueueStore{waiting: []*store.Queue{waitingQueue("q1", 10, now)}}
	eng := newTestEngine(queues, &fakeEmployeeStore{}, &fakeRotationStore{})

	_, err := eng.AutoAssign(context.Background(), testShopID, AssignInput{QueueID: "q1"})
	require.ErrorIs(t, err, ErrNoEligibleEmployees)
	require.Empty(t, queues.claimed)
}

func TestAutoAssignLostClaimRaceFailsPrecondition(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	queues := &fakeQueueStore{
		waiting:  []*store.Queue{waitingQueue("q1", 10, now)},
		claimErr: store.ErrQueueNotClaimable,
	}
	employees := &fakeEmployeeStore{candidates: []*store.Employee{employeeWithLoad("e1", "Ana", 0)}}
	eng := newTestEngine(queues, employees, &fakeRotationStore{})

	_, err := eng.AutoAssign(context.Background(), testShopID, AssignInput{QueueID: "q1"})
	require.ErrorIs(t, err, ErrPreconditionFailed)
}

func TestAutoAssignUnimplementedStrategy(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	queues := &fakeQueueStore{waiting: []*store.Queue{waitingQueue("q1", 10, now)}}
	eng := newTestEngine(queues, &fakeEmployeeStore{}, &fakeRotationStore{})

	_, err := eng.AutoAssign(context.Background(), testShopID, AssignInput{QueueID: "q1", Strategy: models.AssignSkills})
	require.ErrorIs(t, err, ErrStrategyNotImplemented)
}

func TestAutoAssignPassesEligibilityFilter(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	queues := &fakeQueueStore{waiting: []*store.Queue{waitingQueue("q1", 10, now)}}
	employees := &fakeEmployeeStore{candidates: []*store.Employee{employeeWithLoad("e1", "Ana", 0)}}
	eng := newTestEngine(queues, employees, &fakeRotationStore{})

	deptID := "d1"
	_, err := eng.AutoAssign(context.Background(), testShopID, AssignInput{
		QueueID:        "q1",
		Strategy:       models.AssignLoadBalancing,
		DepartmentID:   &deptID,
		RequiredSkills: []string{"detailing"},
	})
	require.NoError(t, err)
	require.Equal(t, &deptID, employees.lastFilter.DepartmentID)
	require.Equal(t, []string{"detailing"}, employees.lastFilter.RequiredSkills)
	require.Equal(t, 100, employees.lastFilter.Limit)
}

func TestAutoAssignCandidateLimitBoundsEligibilityRead(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	queues := &fakeQueueStore{waiting: []*store.Queue{waitingQueue("q1", 10, now)}}
	employees := &fakeEmployeeStore{candidates: []*store.Employee{employeeWithLoad("e1", "Ana", 0)}}
	eng := newTestEngine(queues, employees, &fakeRotationStore{})

	_, err := eng.AutoAssign(context.Background(), testShopID, AssignInput{
		QueueID:        "q1",
		Strategy:       models.AssignLoadBalancing,
		CandidateLimit: 7,
	})
	require.NoError(t, err)
	require.Equal(t, 7, employees.lastFilter.Limit)
}

func TestEngineInjectsShopIntoContext(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	queues := &shopCapturingQueueStore{fakeQueueStore: fakeQueueStore{waiting: []*store.Queue{waitingQueue("q1", 10, now)}}}
	eng := New(queues, queues, &fakeEmployeeStore{}, &fakeRotationStore{}, zerolog.Nop(), WithClock(func() time.Time { return now }))

	_, err := eng.Prioritize(context.Background(), testShopID, PrioritizeInput{QueueIDs: []string{"q1"}, Strategy: models.ScoringWaitTime})
	require.NoError(t, err)
	require.Equal(t, testShopID, queues.seenShopID)
}

type shopCapturingQueueStore struct {
	fakeQueueStore
	seenShopID string
}

func (s *shopCapturingQueueStore) ListWaiting(ctx context.Context, limit int) ([]*store.Queue, error) {
	s.seenShopID = middleware.ShopFromContext(ctx)
	return s.fakeQueueStore.ListWaiting(ctx, limit)
}
