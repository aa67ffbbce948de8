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
	"github.com/shopqueue/shop-queue/internal/models"
)

// Customer represents a shop customer.
type Customer struct {
	ID        string    `json:"id"`
	ShopID    string    `json:"shop_id"`
	Name      string    `json:"name"`
	Phone     *string   `json:"phone,omitempty"`
	Email     *string   `json:"email,omitempty"`
	Tier      string    `json:"tier"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CustomerStore provides shop-isolated access to customers.
type CustomerStore struct {
	db *sql.DB
}

// NewCustomerStore creates a new CustomerStore with the given database
// connection.
func NewCustomerStore(db *sql.DB) *CustomerStore {
	return &CustomerStore{db: db}
}

const customerSelectColumns = "id, shop_id, name, phone, email, tier, created_at, updated_at"

// CreateCustomerInput defines the input for creating a customer.
type CreateCustomerInput struct {
	Name  string
	Phone *string
	Email *string
	Tier  string
}

// Create creates a new customer in the current shop.
func (s *CustomerStore) Create(ctx context.Context, input CreateCustomerInput) (*Customer, error) {
	shopID := middleware.ShopFromContext(ctx)
	if shopID == "" {
		return nil, ErrNoShop
	}

	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, fmt.Errorf("customer name is required")
	}
	tier := strings.ToLower(strings.TrimSpace(input.Tier))
	if tier == "" {
		tier = models.TierRegular
	}

	conn, err := WithShop(ctx, s.db)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	query := `INSERT INTO customers (id, shop_id, name, phone, email, tier)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING ` + customerSelectColumns
	customer, err := scanCustomer(conn.QueryRowContext(ctx, query,
		uuid.NewString(),
		shopID,
		name,
		nullableString(input.Phone),
		nullableString(input.Email),
		tier,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to create customer: %w", err)
	}
	return customer, nil
}

// GetByID retrieves a customer by ID within the current shop.
func (s *CustomerStore) GetByID(ctx context.Context, id string) (*Customer, error) {
	shopID := middleware.ShopFromContext(ctx)
	if shopID == "" {
		return nil, ErrNoShop
	}

	conn, err := WithShop(ctx, s.db)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	query := "SELECT " + customerSelectColumns + " FROM customers WHERE id = $1 AND shop_id = $2"
	customer, err := scanCustomer(conn.QueryRowContext(ctx, query, id, shopID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get customer: %w", err)
	}
	return customer, nil
}

// List retrieves customers in the current shop, newest first.
func (s *CustomerStore) List(ctx context.Context, limit int) ([]*Customer, error) {
	shopID := middleware.ShopFromContext(ctx)
	if shopID == "" {
		return nil, ErrNoShop
	}

	conn, err := WithShop(ctx, s.db)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	query := "SELECT " + customerSelectColumns + " FROM customers WHERE shop_id = $1 ORDER BY created_at DESC"
	args := []interface{}{shopID}
	if limit > 0 {
		args = append(args, limit)
		query += " LIMIT $2"
	}

	rows, err := conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list customers: %w", err)
	}
	defer rows.Close()

	customers := make([]*Customer, 0)
	for rows.Next() {
		customer, err := scanCustomer(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan customer: %w", err)
		}
		customers = append(customers, customer)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error reading customers: %w", err)
	}

	return customers, nil
}

func scanCustomer(scanner interface{ Scan(...any) error }) (*Customer, error) {
	var customer Customer
	var phone, email sql.NullString

	err := scanner.Scan(
		&customer.ID,
		&customer.ShopID,
		&customer.Name,
		&phone,
		&email,
		&customer.Tier,
		&customer.CreatedAt,
		&customer.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if phone.Valid {
		customer.Phone = &phone.String
	}
	if email.Valid {
		customer.Email = &email.String
	}

	return &customer, nil
}
