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

// Employee represents a shop roster entry.
type Employee struct {
	ID           string    `json:"id"`
	ShopID       string    `json:"shop_id"`
	DepartmentID *string   `json:"department_id,omitempty"`
	Name         string    `json:"name"`
	Status       string    `json:"status"`
	Skills       []string  `json:"skills"`
	ActiveQueues int       `json:"active_queues"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// EmployeeStore provides shop-isolated access to employees.
type EmployeeStore struct {
	db *sql.DB
}

// NewEmployeeStore creates a new EmployeeStore with the given database
// connection.
func NewEmployeeStore(db *sql.DB) *EmployeeStore {
	return &EmployeeStore{db: db}
}

const employeeSelectColumns = "e.id, e.shop_id, e.department_id, e.name, e.status, e.skills, e.created_at, e.updated_at"

// CreateEmployeeInput defines the input for creating an employee.
type CreateEmployeeInput struct {
	Name         string
	DepartmentID *string
	Status       string
	Skills       []string
}

// Create creates a new employee in the current shop.
func (s *EmployeeStore) Create(ctx context.Context, input CreateEmployeeInput) (*Employee, error) {
	shopID := middleware.ShopFromContext(ctx)
	if shopID == "" {
		return nil, ErrNoShop
	}

	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, fmt.Errorf("employee name is required")
	}
	status := input.Status
	if status == "" {
		status = models.EmployeeStatusActive
	}
	skills := input.Skills
	if skills == nil {
		skills = []string{}
	}

	conn, err := WithShop(ctx, s.db)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	query := `INSERT INTO employees (shop_id, department_id, name, status, skills)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, shop_id, department_id, name, status, skills, created_at, updated_at`

	employee, err := scanEmployee(conn.QueryRowContext(ctx, query,
		shopID,
		nullableString(input.DepartmentID),
		name,
		status,
		pq.Array(skills),
	))
	if err != nil {
		return nil, fmt.Errorf("failed to create employee: %w", err)
	}
	return employee, nil
}

// EmployeeFilter defines filtering options for listing employees.
type EmployeeFilter struct {
	Status       string
	DepartmentID *string
	Limit        int
}

// List retrieves employees in the current shop matching the filter.
func (s *EmployeeStore) List(ctx context.Context, filter EmployeeFilter) ([]*Employee, error) {
	shopID := middleware.ShopFromContext(ctx)
	if shopID == "" {
		return nil, ErrNoShop
	}

	conn, err := WithShop(ctx, s.db)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	conditions := []string{"e.shop_id = $1"}
	args := []interface{}{shopID}
	if filter.Status != "" {
		args = append(args, filter.Status)
		conditions = append(conditions, fmt.Sprintf("e.status = $%d", len(args)))
	}
	if filter.DepartmentID != nil {
		args = append(args, *filter.DepartmentID)
		conditions = append(conditions, fmt.Sprintf("e.department_id = $%d", len(args)))
	}

	query := "SELECT " + employeeSelectColumns + " FROM employees e WHERE " +
		strings.Join(conditions, " AND ") + " ORDER BY e.created_at"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list employees: %w", err)
	}
	defer rows.Close()

	employees := make([]*Employee, 0)
	for rows.Next() {
		employee, err := scanEmployee(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan employee: %w", err)
		}
		employees = append(employees, employee)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error reading employees: %w", err)
	}

	return employees, nil
}

// UpdateStatus changes an employee's status.
func (s *EmployeeStore) UpdateStatus(ctx context.Context, id, status string) (*Employee, error) {
	shopID := middleware.ShopFromContext(ctx)
	if shopID == "" {
		return nil, ErrNoShop
	}

	conn, err := WithShop(ctx, s.db)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	query := `UPDATE employees SET status = $1, updated_at = NOW()
		WHERE id = $2 AND shop_id = $3
		RETURNING id, shop_id, department_id, name, status, skills, created_at, updated_at`
	employee, err := scanEmployee(conn.QueryRowContext(ctx, query, status, id, shopID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to update employee status: %w", err)
	}
	return employee, nil
}

// AssignableFilter narrows the candidate pool for auto-assignment.
type AssignableFilter struct {
	DepartmentID   *string
	RequiredSkills []string
	Limit          int
}

// ListAssignable retrieves up to limit active employees eligible for
// assignment, each carrying its current count of active (in_progress or
// serving) queues. Candidates are ordered by creation time so selection
// strategies see a stable input order.
func (s *EmployeeStore) ListAssignable(ctx context.Context, filter AssignableFilter) ([]*Employee, error) {
	shopID := middleware.ShopFromContext(ctx)
	if shopID == "" {
		return nil, ErrNoShop
	}

	conn, err := WithShop(ctx, s.db)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	conditions := []string{"e.shop_id = $1", "e.status = $2"}
	args := []interface{}{shopID, models.EmployeeStatusActive}
	if filter.DepartmentID != nil {
		args = append(args, *filter.DepartmentID)
		conditions = append(conditions, fmt.Sprintf("e.department_id = $%d", len(args)))
	}
	if len(filter.RequiredSkills) > 0 {
		args = append(args, pq.Array(filter.RequiredSkills))
		conditions = append(conditions, fmt.Sprintf("e.skills @> $%d", len(args)))
	}

	query := `SELECT ` + employeeSelectColumns + `, COUNT(q.id) AS active_queues
		FROM employees e
		LEFT JOIN queues q ON q.served_by_employee_id = e.id AND q.status IN ('in_progress', 'serving')
		WHERE ` + strings.Join(conditions, " AND ") + `
		GROUP BY e.id
		ORDER BY e.created_at`
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list assignable employees: %w", err)
	}
	defer rows.Close()

	employees := make([]*Employee, 0)
	for rows.Next() {
		var employee Employee
		var departmentID sql.NullString
		err := rows.Scan(
			&employee.ID,
			&employee.ShopID,
			&departmentID,
			&employee.Name,
			&employee.Status,
			pq.Array(&employee.Skills),
			&employee.CreatedAt,
			&employee.UpdatedAt,
			&employee.ActiveQueues,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan assignable employee: %w", err)
		}
		if departmentID.Valid {
			employee.DepartmentID = &departmentID.String
		}
		employees = append(employees, &employee)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error reading assignable employees: %w", err)
	}

	return employees, nil
}

func scanEmployee(scanner interface{ Scan(...any) error }) (*Employee, error) {
	var employee Employee
	var departmentID sql.NullString

	err := scanner.Scan(
		&employee.ID,
		&employee.ShopID,
		&departmentID,
		&employee.Name,
		&employee.Status,
		pq.Array(&employee.Skills),
		&employee.CreatedAt,
		&employee.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if departmentID.Valid {
		employee.DepartmentID = &departmentID.String
	}
	if employee.Skills == nil {
		employee.Skills = []string{}
	}

	return &employee, nil
}
