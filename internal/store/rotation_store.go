package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/shopqueue/shop-queue/internal/middleware"
)

// RotationStore persists the per-shop round-robin cursor. A clock-seeded
// rotation repeats within the same millisecond; a persisted counter with an
// atomic increment gives each assignment its own slot.
type RotationStore struct {
	db *sql.DB
}

// NewRotationStore creates a new RotationStore with the given database
// connection.
func NewRotationStore(db *sql.DB) *RotationStore {
	return &RotationStore{db: db}
}

// NextIndex atomically increments and returns the shop's rotation index.
// The first call for a shop returns 0.
func (s *RotationStore) NextIndex(ctx context.Context) (int64, error) {
	shopID := middleware.ShopFromContext(ctx)
	if shopID == "" {
		return 0, ErrNoShop
	}

	conn, err := WithShop(ctx, s.db)
	if err != nil {
		return 0, err
	}
	defer conn.Close()

	var next int64
	err = conn.QueryRowContext(ctx,
		`INSERT INTO assignment_rotations (shop_id, next_index) VALUES ($1, 1)
		ON CONFLICT (shop_id)
		DO UPDATE SET next_index = assignment_rotations.next_index + 1
		RETURNING next_index - 1`,
		shopID,
	).Scan(&next)
	if err != nil {
		return 0, fmt.Errorf("failed to advance rotation index: %w", err)
	}
	return next, nil
}
