package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"auction-service/internal/auctionerrors"
	"auction-service/internal/models"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/shopspring/decimal"
)

type Store struct {
	db *sqlx.DB
}

// NewStore creates a new database store
func NewStore(databaseURL string) (*Store, error) {
	db, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// GetDB returns the underlying database connection
func (s *Store) GetDB() *sqlx.DB {
	return s.db
}

// GetUserByID retrieves a user by ID
func (s *Store) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	err := s.db.GetContext(ctx, &user, "SELECT * FROM users WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("user %s: %w", id, auctionerrors.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// SupplierMetrics is the slice of user columns owned by the reliability
// tracker.
type SupplierMetrics struct {
	TotalDeliveries    int
	OnTimeDeliveries   int
	OnTimeDeliveryRate float64
	TotalEarnings      decimal.Decimal
	LastDeliveryDate   time.Time
	ReliabilityScore   float64
	IsActiveSupplier   bool
}

// UpdateSupplierMetrics persists recomputed reliability metrics for a user
func (s *Store) UpdateSupplierMetrics(ctx context.Context, userID string, m SupplierMetrics) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE users SET
			total_deliveries = $1,
			on_time_deliveries = $2,
			on_time_delivery_rate = $3,
			total_earnings = $4,
			last_delivery_date = $5,
			reliability_score = $6,
			is_active_supplier = $7
		WHERE id = $8`,
		m.TotalDeliveries, m.OnTimeDeliveries, m.OnTimeDeliveryRate,
		m.TotalEarnings, m.LastDeliveryDate, m.ReliabilityScore,
		m.IsActiveSupplier, userID)
	return err
}

// IsEventProcessed checks if an event has been processed
func (s *Store) IsEventProcessed(ctx context.Context, eventID string) (bool, error) {
	var exists bool
	err := s.db.GetContext(ctx, &exists,
		"SELECT EXISTS(SELECT 1 FROM processed_events WHERE event_id = $1)", eventID)
	return exists, err
}

// MarkEventProcessed marks an event as processed
func (s *Store) MarkEventProcessed(ctx context.Context, eventID, eventType string) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO processed_events (event_id, event_type) VALUES ($1, $2) ON CONFLICT (event_id) DO NOTHING",
		eventID, eventType)
	return err
}
