package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/shopqueue/shop-queue/internal/middleware"
	"github.com/shopqueue/shop-queue/internal/models"
)

// Queue represents one customer's pending-service record at a shop.
type Queue struct {
	ID                 string         `json:"id"`
	ShopID             string         `json:"shop_id"`
	CustomerID         *string        `json:"customer_id,omitempty"`
	CustomerTier       string         `json:"customer_tier"`
	Number             int32          `json:"number"`
	Status             string         `json:"status"`
	Priority           string         `json:"priority"`
	PriorityScore      float64        `json:"priority_score"`
	ServedByEmployeeID *string        `json:"served_by_employee_id,omitempty"`
	CalledAt           *time.Time     `json:"called_at,omitempty"`
	CompletedAt        *time.Time     `json:"completed_at,omitempty"`
	CreatedAt          time.Time      `json:"created_at"`
	UpdatedAt          time.Time      `json:"updated_at"`
	Services           []QueueService `json:"services"`
}

// QueueService is one ordered service line on a queue entry.
type QueueService struct {
	ID          string  `json:"id"`
	QueueID     string  `json:"queue_id"`
	ServiceName string  `json:"service_name"`
	UnitPrice   float64 `json:"unit_price"`
	Quantity    int32   `json:"quantity"`
	Position    int32   `json:"position"`
}

// QueueStore provides shop-isolated access to queue entries.
type QueueStore struct {
	db *sql.DB
}

// NewQueueStore creates a new QueueStore with the given database connection.
func NewQueueStore(db *sql.DB) *QueueStore {
	return &QueueStore{db: db}
}

const queueSelectColumns = `q.id, q.shop_id, q.customer_id, COALESCE(c.tier, 'regular'), q.number,
	q.status, q.priority, q.priority_score, q.served_by_employee_id,
	q.called_at, q.completed_at, q.created_at, q.updated_at`

const queueFromClause = " FROM queues q LEFT JOIN customers c ON c.id = q.customer_id "

// QueueFilter defines filtering options for listing queues.
type QueueFilter struct {
	Status     string
	EmployeeID *string
	Limit      int
	Offset     int
}

// GetByID retrieves a queue entry with its service lines within the current
// shop. The RLS policy ensures only rows in the current shop are visible.
func (s *QueueStore) GetByID(ctx context.Context, id string) (*Queue, error) {
	shopID := middleware.ShopFromContext(ctx)
	if shopID == "" {
		return nil, ErrNoShop
	}

	conn, err := WithShop(ctx, s.db)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	query := "SELECT " + queueSelectColumns + queueFromClause + "WHERE q.id = $1"
	queue, err := scanQueue(conn.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get queue: %w", err)
	}

	// Double-check shop isolation at app layer (defense in depth)
	if queue.ShopID != shopID {
		return nil, ErrForbidden
	}

	if err := s.attachServiceLines(ctx, conn, []*Queue{queue}); err != nil {
		return nil, err
	}

	return queue, nil
}

// List retrieves queue entries in the current shop matching the filter,
// oldest first.
func (s *QueueStore) List(ctx context.Context, filter QueueFilter) ([]*Queue, error) {
	shopID := middleware.ShopFromContext(ctx)
	if shopID == "" {
		return nil, ErrNoShop
	}

	conn, err := WithShop(ctx, s.db)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	query, args := buildQueueListQuery(shopID, filter)
	rows, err := conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list queues: %w", err)
	}
	defer rows.Close()

	queues := make([]*Queue, 0)
	for rows.Next() {
		queue, err := scanQueue(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan queue: %w", err)
		}
		queues = append(queues, queue)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error reading queues: %w", err)
	}

	if err := s.attachServiceLines(ctx, conn, queues); err != nil {
		return nil, err
	}

	return queues, nil
}

// ListWaiting retrieves up to limit waiting queues for the current shop with
// their service lines. This is the candidate pool for batch prioritization.
func (s *QueueStore) ListWaiting(ctx context.Context, limit int) ([]*Queue, error) {
	return s.List(ctx, QueueFilter{Status: models.QueueStatusWaiting, Limit: limit})
}

// ServiceLineInput defines one service line on a new queue entry.
type ServiceLineInput struct {
	ServiceName string
	UnitPrice   float64
	Quantity    int32
}

// CreateQueueInput defines the input for a customer joining the queue.
type CreateQueueInput struct {
	CustomerID *string
	Services   []ServiceLineInput
}

// Create creates a new waiting queue entry with its service lines. The
// per-shop ticket number is allocated inside the same transaction.
func (s *QueueStore) Create(ctx context.Context, input CreateQueueInput) (*Queue, error) {
	shopID := middleware.ShopFromContext(ctx)
	if shopID == "" {
		return nil, ErrNoShop
	}

	tx, err := WithShopTx(ctx, s.db)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	query := `INSERT INTO queues (shop_id, customer_id, number, status, priority)
		VALUES (
			$1, $2,
			(SELECT COALESCE(MAX(number), 0) + 1 FROM queues WHERE shop_id = $1),
			$3, $4
		)
		RETURNING id, shop_id, customer_id, number, status, priority, priority_score,
			served_by_employee_id, called_at, completed_at, created_at, updated_at`

	var queue Queue
	var customerID, servedBy sql.NullString
	var calledAt, completedAt sql.NullTime
	err = tx.QueryRowContext(ctx, query,
		shopID,
		nullableString(input.CustomerID),
		models.QueueStatusWaiting,
		models.QueuePriorityNormal,
	).Scan(
		&queue.ID,
		&queue.ShopID,
		&customerID,
		&queue.Number,
		&queue.Status,
		&queue.Priority,
		&queue.PriorityScore,
		&servedBy,
		&calledAt,
		&completedAt,
		&queue.CreatedAt,
		&queue.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create queue: %w", err)
	}
	if customerID.Valid {
		queue.CustomerID = &customerID.String
	}
	queue.CustomerTier = models.TierRegular

	queue.Services = make([]QueueService, 0, len(input.Services))
	for i, line := range input.Services {
		name := strings.TrimSpace(line.ServiceName)
		if name == "" {
			return nil, fmt.Errorf("service line %d: name is required", i+1)
		}
		quantity := line.Quantity
		if quantity < 1 {
			quantity = 1
		}

		var service QueueService
		err := tx.QueryRowContext(ctx,
			`INSERT INTO queue_services (queue_id, service_name, unit_price, quantity, position)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING id, queue_id, service_name, unit_price, quantity, position`,
			queue.ID, name, line.UnitPrice, quantity, i+1,
		).Scan(
			&service.ID,
			&service.QueueID,
			&service.ServiceName,
			&service.UnitPrice,
			&service.Quantity,
			&service.Position,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create service line: %w", err)
		}
		queue.Services = append(queue.Services, service)
	}

	if queue.CustomerID != nil {
		var tier string
		err := tx.QueryRowContext(ctx, "SELECT tier FROM customers WHERE id = $1", *queue.CustomerID).Scan(&tier)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("failed to read customer tier: %w", err)
		}
		if err == nil {
			queue.CustomerTier = tier
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit queue creation: %w", err)
	}

	return &queue, nil
}

// UpdateStatus moves a queue to the given status, stamping completed_at on
// completion. Transition legality is the caller's concern.
func (s *QueueStore) UpdateStatus(ctx context.Context, id, status string) (*Queue, error) {
	shopID := middleware.ShopFromContext(ctx)
	if shopID == "" {
		return nil, ErrNoShop
	}

	conn, err := WithShop(ctx, s.db)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	query := `UPDATE queues AS q
		SET status = $1,
			completed_at = CASE WHEN $1 = 'completed' THEN NOW() ELSE completed_at END,
			updated_at = NOW()
		WHERE q.id = $2 AND q.shop_id = $3
		RETURNING ` + queueReturningColumns
	queue, err := scanQueue(conn.QueryRowContext(ctx, query, status, id, shopID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to update queue status: %w", err)
	}

	if err := s.attachServiceLines(ctx, conn, []*Queue{queue}); err != nil {
		return nil, err
	}
	return queue, nil
}

// UpdatePriority persists the computed priority and score for one queue.
func (s *QueueStore) UpdatePriority(ctx context.Context, id, priority string, score float64) error {
	shopID := middleware.ShopFromContext(ctx)
	if shopID == "" {
		return ErrNoShop
	}

	conn, err := WithShop(ctx, s.db)
	if err != nil {
		return err
	}
	defer conn.Close()

	result, err := conn.ExecContext(ctx,
		`UPDATE queues SET priority = $1, priority_score = $2, updated_at = NOW()
		WHERE id = $3 AND shop_id = $4`,
		priority, score, id, shopID,
	)
	if err != nil {
		return fmt.Errorf("failed to update queue priority: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read priority update result: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// ErrQueueNotClaimable is returned by Claim when the queue exists but is not
// in a claimable state (wrong status or already assigned).
var ErrQueueNotClaimable = errors.New("queue is not claimable")

// Claim atomically assigns a waiting, unassigned queue to an employee and
// moves it to in_progress, stamping called_at. The WHERE clause is the
// compare-and-swap guard against double assignment: a concurrent claim that
// lost the race matches zero rows.
func (s *QueueStore) Claim(ctx context.Context, queueID, employeeID string) (*Queue, error) {
	shopID := middleware.ShopFromContext(ctx)
	if shopID == "" {
		return nil, ErrNoShop
	}

	conn, err := WithShop(ctx, s.db)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	query := `UPDATE queues AS q
		SET served_by_employee_id = $1, status = $2, called_at = NOW(), updated_at = NOW()
		WHERE q.id = $3 AND q.shop_id = $4
			AND q.status = $5
			AND q.served_by_employee_id IS NULL
		RETURNING ` + queueReturningColumns
	queue, err := scanQueue(conn.QueryRowContext(ctx, query,
		employeeID, models.QueueStatusInProgress, queueID, shopID, models.QueueStatusWaiting,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// Distinguish a missing queue from a lost race / wrong state.
			var exists bool
			checkErr := conn.QueryRowContext(ctx,
				"SELECT EXISTS (SELECT 1 FROM queues WHERE id = $1 AND shop_id = $2)",
				queueID, shopID,
			).Scan(&exists)
			if checkErr != nil {
				return nil, fmt.Errorf("failed to check queue after claim: %w", checkErr)
			}
			if !exists {
				return nil, ErrNotFound
			}
			return nil, ErrQueueNotClaimable
		}
		return nil, fmt.Errorf("failed to claim queue: %w", err)
	}

	if err := s.attachServiceLines(ctx, conn, []*Queue{queue}); err != nil {
		return nil, err
	}
	return queue, nil
}

// Position returns the 1-based position of a waiting queue among the shop's
// waiting queues, ordered by priority rank then arrival time.
func (s *QueueStore) Position(ctx context.Context, id string) (int, error) {
	shopID := middleware.ShopFromContext(ctx)
	if shopID == "" {
		return 0, ErrNoShop
	}

	conn, err := WithShop(ctx, s.db)
	if err != nil {
		return 0, err
	}
	defer conn.Close()

	query := `WITH target AS (
		SELECT created_at, priority FROM queues
		WHERE id = $1 AND shop_id = $2 AND status = $3
	)
	SELECT COUNT(*) + 1
	FROM queues q, target t
	WHERE q.shop_id = $2 AND q.status = $3 AND q.id <> $1
		AND (
			queue_priority_rank(q.priority) > queue_priority_rank(t.priority)
			OR (queue_priority_rank(q.priority) = queue_priority_rank(t.priority) AND q.created_at < t.created_at)
		)`

	var position int
	err = conn.QueryRowContext(ctx, query, id, shopID, models.QueueStatusWaiting).Scan(&position)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrNotFound
		}
		return 0, fmt.Errorf("failed to compute queue position: %w", err)
	}
	return position, nil
}

// StatusSummary holds per-status counts for the dashboard.
type StatusSummary struct {
	Waiting    int `json:"waiting"`
	Confirmed  int `json:"confirmed"`
	InProgress int `json:"in_progress"`
	Serving    int `json:"serving"`
	Completed  int `json:"completed"`
	Cancelled  int `json:"cancelled"`
	Total      int `json:"total"`
}

// Summary returns queue counts by status for the current shop.
func (s *QueueStore) Summary(ctx context.Context) (*StatusSummary, error) {
	shopID := middleware.ShopFromContext(ctx)
	if shopID == "" {
		return nil, ErrNoShop
	}

	conn, err := WithShop(ctx, s.db)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	rows, err := conn.QueryContext(ctx,
		"SELECT status, COUNT(*) FROM queues WHERE shop_id = $1 GROUP BY status",
		shopID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to summarize queues: %w", err)
	}
	defer rows.Close()

	var summary StatusSummary
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("failed to scan queue summary: %w", err)
		}
		switch status {
		case models.QueueStatusWaiting:
			summary.Waiting = count
		case models.QueueStatusConfirmed:
			summary.Confirmed = count
		case models.QueueStatusInProgress:
			summary.InProgress = count
		case models.QueueStatusServing:
			summary.Serving = count
		case models.QueueStatusCompleted:
			summary.Completed = count
		case models.QueueStatusCancelled:
			summary.Cancelled = count
		}
		summary.Total += count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error reading queue summary: %w", err)
	}

	return &summary, nil
}

// queueReturningColumns mirrors queueSelectColumns for UPDATE ... RETURNING
// statements, where the customers join is not available and the tier is
// resolved by subquery.
const queueReturningColumns = `q.id, q.shop_id, q.customer_id,
	COALESCE((SELECT tier FROM customers WHERE id = q.customer_id), 'regular'), q.number,
	q.status, q.priority, q.priority_score, q.served_by_employee_id,
	q.called_at, q.completed_at, q.created_at, q.updated_at`

func buildQueueListQuery(shopID string, filter QueueFilter) (string, []interface{}) {
	conditions := []string{"q.shop_id = $1"}
	args := []interface{}{shopID}

	if filter.Status != "" {
		args = append(args, filter.Status)
		conditions = append(conditions, fmt.Sprintf("q.status = $%d", len(args)))
	}
	if filter.EmployeeID != nil {
		args = append(args, *filter.EmployeeID)
		conditions = append(conditions, fmt.Sprintf("q.served_by_employee_id = $%d", len(args)))
	}

	query := "SELECT " + queueSelectColumns + queueFromClause +
		"WHERE " + strings.Join(conditions, " AND ") + " ORDER BY q.created_at"

	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	return query, args
}

func scanQueue(scanner interface{ Scan(...any) error }) (*Queue, error) {
	var queue Queue
	var customerID sql.NullString
	var servedBy sql.NullString
	var calledAt sql.NullTime
	var completedAt sql.NullTime

	err := scanner.Scan(
		&queue.ID,
		&queue.ShopID,
		&customerID,
		&queue.CustomerTier,
		&queue.Number,
		&queue.Status,
		&queue.Priority,
		&queue.PriorityScore,
		&servedBy,
		&calledAt,
		&completedAt,
		&queue.CreatedAt,
		&queue.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if customerID.Valid {
		queue.CustomerID = &customerID.String
	}
	if servedBy.Valid {
		queue.ServedByEmployeeID = &servedBy.String
	}
	if calledAt.Valid {
		t := calledAt.Time
		queue.CalledAt = &t
	}
	if completedAt.Valid {
		t := completedAt.Time
		queue.CompletedAt = &t
	}
	queue.Services = make([]QueueService, 0)

	return &queue, nil
}

func (s *QueueStore) attachServiceLines(ctx context.Context, q Querier, queues []*Queue) error {
	if len(queues) == 0 {
		return nil
	}

	ids := make([]string, 0, len(queues))
	byID := make(map[string]*Queue, len(queues))
	for _, queue := range queues {
		ids = append(ids, queue.ID)
		byID[queue.ID] = queue
	}

	rows, err := q.QueryContext(ctx,
		`SELECT id, queue_id, service_name, unit_price, quantity, position
		FROM queue_services WHERE queue_id = ANY($1) ORDER BY queue_id, position`,
		pq.Array(ids),
	)
	if err != nil {
		return fmt.Errorf("failed to load service lines: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var service QueueService
		if err := rows.Scan(
			&service.ID,
			&service.QueueID,
			&service.ServiceName,
			&service.UnitPrice,
			&service.Quantity,
			&service.Position,
		); err != nil {
			return fmt.Errorf("failed to scan service line: %w", err)
		}
		if queue, ok := byID[service.QueueID]; ok {
			queue.Services = append(queue.Services, service)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("error reading service lines: %w", err)
	}

	return nil
}
