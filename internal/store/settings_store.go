package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopqueue/shop-queue/internal/middleware"
	"github.com/shopqueue/shop-queue/internal/models"
)

// ShopSettings holds per-shop engine defaults.
type ShopSettings struct {
	ShopID             string    `json:"shop_id"`
	ScoringStrategy    string    `json:"scoring_strategy"`
	AssignmentStrategy string    `json:"assignment_strategy"`
	QueuePageSize      int       `json:"queue_page_size"`
	EmployeePageSize   int       `json:"employee_page_size"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// SettingsStore provides shop-isolated access to shop settings.
type SettingsStore struct {
	db *sql.DB
}

// NewSettingsStore creates a new SettingsStore with the given database
// connection.
func NewSettingsStore(db *sql.DB) *SettingsStore {
	return &SettingsStore{db: db}
}

// defaultSettings returns the engine defaults for shops that have never
// saved settings.
func defaultSettings(shopID string) *ShopSettings {
	return &ShopSettings{
		ShopID:             shopID,
		ScoringStrategy:    models.ScoringCombined,
		AssignmentStrategy: models.AssignLoadBalancing,
		QueuePageSize:      1000,
		EmployeePageSize:   100,
	}
}

// Get retrieves the current shop's settings, falling back to defaults when
// none have been saved yet.
func (s *SettingsStore) Get(ctx context.Context) (*ShopSettings, error) {
	shopID := middleware.ShopFromContext(ctx)
	if shopID == "" {
		return nil, ErrNoShop
	}

	conn, err := WithShop(ctx, s.db)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	var settings ShopSettings
	err = conn.QueryRowContext(ctx,
		`SELECT shop_id, scoring_strategy, assignment_strategy, queue_page_size, employee_page_size, updated_at
		FROM shop_settings WHERE shop_id = $1`,
		shopID,
	).Scan(
		&settings.ShopID,
		&settings.ScoringStrategy,
		&settings.AssignmentStrategy,
		&settings.QueuePageSize,
		&settings.EmployeePageSize,
		&settings.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return defaultSettings(shopID), nil
		}
		return nil, fmt.Errorf("failed to get shop settings: %w", err)
	}
	return &settings, nil
}

// UpdateSettingsInput defines the input for saving shop settings.
type UpdateSettingsInput struct {
	ScoringStrategy    string
	AssignmentStrategy string
	QueuePageSize      int
	EmployeePageSize   int
}

// Upsert saves the current shop's settings.
func (s *SettingsStore) Upsert(ctx context.Context, input UpdateSettingsInput) (*ShopSettings, error) {
	shopID := middleware.ShopFromContext(ctx)
	if shopID == "" {
		return nil, ErrNoShop
	}

	if input.QueuePageSize <= 0 || input.EmployeePageSize <= 0 {
		return nil, fmt.Errorf("page sizes must be greater than zero")
	}

	conn, err := WithShop(ctx, s.db)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	var settings ShopSettings
	err = conn.QueryRowContext(ctx,
		`INSERT INTO shop_settings (shop_id, scoring_strategy, assignment_strategy, queue_page_size, employee_page_size, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		ON CONFLICT (shop_id) DO UPDATE SET
			scoring_strategy = EXCLUDED.scoring_strategy,
			assignment_strategy = EXCLUDED.assignment_strategy,
			queue_page_size = EXCLUDED.queue_page_size,
			employee_page_size = EXCLUDED.employee_page_size,
			updated_at = NOW()
		RETURNING shop_id, scoring_strategy, assignment_strategy, queue_page_size, employee_page_size, updated_at`,
		shopID,
		input.ScoringStrategy,
		input.AssignmentStrategy,
		input.QueuePageSize,
		input.EmployeePageSize,
	).Scan(
		&settings.ShopID,
		&settings.ScoringStrategy,
		&settings.AssignmentStrategy,
		&settings.QueuePageSize,
		&settings.EmployeePageSize,
		&settings.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to save shop settings: %w", err)
	}
	return &settings, nil
}
