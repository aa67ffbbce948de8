// Package store provides database access with row-level shop isolation.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	_ "github.com/lib/pq"
	"github.com/shopqueue/shop-queue/internal/middleware"
)

var (
	// ErrNoShop is returned when a shop ID is required but not present.
	ErrNoShop = errors.New("shop ID not found in context")
	// ErrNotFound is returned when a requested entity does not exist.
	ErrNotFound = errors.New("entity not found")
	// ErrForbidden is returned when access to an entity is denied.
	ErrForbidden = errors.New("access denied")
)

var (
	globalDB     *sql.DB
	globalDBErr  error
	globalDBOnce sync.Once
)

// DB returns the shared database connection pool.
func DB() (*sql.DB, error) {
	globalDBOnce.Do(func() {
		dbURL := strings.TrimSpace(os.Getenv("DATABASE_URL"))
		if dbURL == "" {
			globalDBErr = errors.New("DATABASE_URL is not set")
			return
		}

		db, err := sql.Open("postgres", dbURL)
		if err != nil {
			globalDBErr = err
			return
		}

		if err := db.Ping(); err != nil {
			_ = db.Close()
			globalDBErr = err
			return
		}

		globalDB = db
	})

	return globalDB, globalDBErr
}

// WithShop sets the app.shop_id session variable for RLS policies.
// This must be called before any query that uses RLS-protected tables.
func WithShop(ctx context.Context, db *sql.DB) (*sql.Conn, error) {
	shopID := middleware.ShopFromContext(ctx)
	if shopID == "" {
		return nil, ErrNoShop
	}
	return WithShopID(ctx, db, shopID)
}

// WithShopID sets the app.shop_id session variable for RLS policies using an
// explicit shop ID instead of extracting it from context. Useful for admin
// operations or service-to-service calls.
func WithShopID(ctx context.Context, db *sql.DB, shopID string) (*sql.Conn, error) {
	if shopID == "" {
		return nil, ErrNoShop
	}

	conn, err := db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire connection: %w", err)
	}

	_, err = conn.ExecContext(ctx, "SET LOCAL app.shop_id = $1", shopID)
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to set shop: %w", err)
	}

	return conn, nil
}

// WithShopTx starts a transaction with the shop context set.
// The caller must commit or rollback the transaction.
func WithShopTx(ctx context.Context, db *sql.DB) (*sql.Tx, error) {
	shopID := middleware.ShopFromContext(ctx)
	if shopID == "" {
		return nil, ErrNoShop
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}

	_, err = tx.ExecContext(ctx, "SET LOCAL app.shop_id = $1", shopID)
	if err != nil {
		_ = tx.Rollback()
		return nil, fmt.Errorf("failed to set shop: %w", err)
	}

	return tx, nil
}

// Querier is an interface for database query execution.
// *sql.DB, *sql.Conn, and *sql.Tx all implement this interface.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// nullableString converts a *string to a sql-compatible value.
func nullableString(value *string) interface{} {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return trimmed
}
