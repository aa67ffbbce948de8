package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Shop represents a tenant.
type Shop struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Slug      string    `json:"slug"`
	Tier      string    `json:"tier"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ShopStore provides access to shops. Shops are the tenancy root and are not
// themselves RLS-scoped.
type ShopStore struct {
	db *sql.DB
}

// NewShopStore creates a new ShopStore with the given database connection.
func NewShopStore(db *sql.DB) *ShopStore {
	return &ShopStore{db: db}
}

const shopSelectColumns = "id, name, slug, tier, created_at, updated_at"

// Create creates a new shop.
func (s *ShopStore) Create(ctx context.Context, name, slug, tier string) (*Shop, error) {
	name = strings.TrimSpace(name)
	slug = strings.ToLower(strings.TrimSpace(slug))
	if name == "" || slug == "" {
		return nil, fmt.Errorf("shop name and slug are required")
	}
	if tier == "" {
		tier = "free"
	}

	query := `INSERT INTO shops (name, slug, tier) VALUES ($1, $2, $3) RETURNING ` + shopSelectColumns
	shop, err := scanShop(s.db.QueryRowContext(ctx, query, name, slug, tier))
	if err != nil {
		return nil, fmt.Errorf("failed to create shop: %w", err)
	}
	return shop, nil
}

// GetByID retrieves a shop by ID.
func (s *ShopStore) GetByID(ctx context.Context, id string) (*Shop, error) {
	query := "SELECT " + shopSelectColumns + " FROM shops WHERE id = $1"
	shop, err := scanShop(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get shop: %w", err)
	}
	return shop, nil
}

// GetBySlug retrieves a shop by its slug.
func (s *ShopStore) GetBySlug(ctx context.Context, slug string) (*Shop, error) {
	query := "SELECT " + shopSelectColumns + " FROM shops WHERE slug = $1"
	shop, err := scanShop(s.db.QueryRowContext(ctx, query, strings.ToLower(strings.TrimSpace(slug))))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get shop by slug: %w", err)
	}
	return shop, nil
}

func scanShop(scanner interface{ Scan(...any) error }) (*Shop, error) {
	var shop Shop
	err := scanner.Scan(
		&shop.ID,
		&shop.Name,
		&shop.Slug,
		&shop.Tier,
		&shop.CreatedAt,
		&shop.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &shop, nil
}
