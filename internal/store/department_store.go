package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopqueue/shop-queue/internal/middleware"
)

// Department represents a shop department.
type Department struct {
	ID        string    `json:"id"`
	ShopID    string    `json:"shop_id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// DepartmentStore provides shop-isolated access to departments.
type DepartmentStore struct {
	db *sql.DB
}

// NewDepartmentStore creates a new DepartmentStore with the given database
// connection.
func NewDepartmentStore(db *sql.DB) *DepartmentStore {
	return &DepartmentStore{db: db}
}

// Create creates a new department in the current shop.
func (s *DepartmentStore) Create(ctx context.Context, name string) (*Department, error) {
	shopID := middleware.ShopFromContext(ctx)
	if shopID == "" {
		return nil, ErrNoShop
	}

	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("department name is required")
	}

	conn, err := WithShop(ctx, s.db)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	department := Department{
		ID:     uuid.NewString(),
		ShopID: shopID,
		Name:   name,
	}
	err = conn.QueryRowContext(ctx,
		`INSERT INTO departments (id, shop_id, name) VALUES ($1, $2, $3) RETURNING created_at`,
		department.ID, shopID, name,
	).Scan(&department.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create department: %w", err)
	}

	return &department, nil
}

// GetByID retrieves a department by ID within the current shop.
func (s *DepartmentStore) GetByID(ctx context.Context, id string) (*Department, error) {
	shopID := middleware.ShopFromContext(ctx)
	if shopID == "" {
		return nil, ErrNoShop
	}

	conn, err := WithShop(ctx, s.db)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	var department Department
	err = conn.QueryRowContext(ctx,
		"SELECT id, shop_id, name, created_at FROM departments WHERE id = $1 AND shop_id = $2",
		id, shopID,
	).Scan(&department.ID, &department.ShopID, &department.Name, &department.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get department: %w", err)
	}
	return &department, nil
}

// List retrieves all departments in the current shop.
func (s *DepartmentStore) List(ctx context.Context) ([]*Department, error) {
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
		"SELECT id, shop_id, name, created_at FROM departments WHERE shop_id = $1 ORDER BY name",
		shopID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list departments: %w", err)
	}
	defer rows.Close()

	departments := make([]*Department, 0)
	for rows.Next() {
		var department Department
		if err := rows.Scan(&department.ID, &department.ShopID, &department.Name, &department.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan department: %w", err)
		}
		departments = append(departments, &department)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error reading departments: %w", err)
	}

	return departments, nil
}

// Delete removes a department. Employees keep running with a NULL department
// via the FK's ON DELETE SET NULL.
func (s *DepartmentStore) Delete(ctx context.Context, id string) error {
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
		"DELETE FROM departments WHERE id = $1 AND shop_id = $2",
		id, shopID,
	)
	if err != nil {
		return fmt.Errorf("failed to delete department: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read delete result: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}
