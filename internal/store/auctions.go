package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"auction-service/internal/auctionerrors"
	"auction-service/internal/models"

	"github.com/shopspring/decimal"
)

// CreateAuction inserts a new auction
func (s *Store) CreateAuction(ctx context.Context, auction *models.Auction) error {
	query := `
		INSERT INTO auctions (
			id, name, description, quantity, budget, category_id, buyer_id,
			location, start_time, end_time, image_url, status, delivery_status,
			expected_delivery_date
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING created_at, updated_at`

	return s.db.QueryRowxContext(ctx, query,
		auction.ID, auction.Name, auction.Description, auction.Quantity,
		auction.Budget, auction.CategoryID, auction.BuyerID, auction.Location,
		auction.StartTime, auction.EndTime, auction.ImageURL, auction.Status,
		auction.DeliveryStatus, auction.ExpectedDeliveryDate,
	).Scan(&auction.CreatedAt, &auction.UpdatedAt)
}

// GetAuctionByID retrieves an auction by ID
func (s *Store) GetAuctionByID(ctx context.Context, id string) (*models.Auction, error) {
	var auction models.Auction
	err := s.db.GetContext(ctx, &auction, "SELECT * FROM auctions WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("auction %s: %w", id, auctionerrors.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &auction, nil
}

// AuctionFilter narrows ListAuctions results. Zero values mean no filter.
type AuctionFilter struct {
	Status     models.AuctionStatus
	CategoryID string
	Name       string
}

// ListAuctions retrieves auctions newest-first, optionally filtered
func (s *Store) ListAuctions(ctx context.Context, filter AuctionFilter) ([]models.Auction, error) {
	query := "SELECT * FROM auctions WHERE 1=1"
	args := []interface{}{}

	if filter.Status != "" {
		args = append(args, filter.Status)
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	if filter.CategoryID != "" {
		args = append(args, filter.CategoryID)
		query += fmt.Sprintf(" AND category_id = $%d", len(args))
	}
	if filter.Name != "" {
		args = append(args, "%"+filter.Name+"%")
		query += fmt.Sprintf(" AND name ILIKE $%d", len(args))
	}
	query += " ORDER BY created_at DESC"

	var auctions []models.Auction
	err := s.db.SelectContext(ctx, &auctions, query, args...)
	return auctions, err
}

// ListAuctionsByBuyer retrieves auctions owned by a buyer, newest-first
func (s *Store) ListAuctionsByBuyer(ctx context.Context, buyerID string) ([]models.Auction, error) {
	var auctions []models.Auction
	err := s.db.SelectContext(ctx, &auctions,
		"SELECT * FROM auctions WHERE buyer_id = $1 ORDER BY created_at DESC", buyerID)
	return auctions, err
}

// UpdateAuctionStatus updates the derived status field. Last write wins;
// the value is recomputable from the stored time window.
func (s *Store) UpdateAuctionStatus(ctx context.Context, auctionID string, status models.AuctionStatus) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE auctions SET status = $1, updated_at = NOW() WHERE id = $2",
		status, auctionID)
	return err
}

// UpdateLowestBid refreshes the advisory lowest-bid cache and provisional
// winner, only when the new amount undercuts the stored one and the winner
// pass has not run yet. Returns whether the row changed.
func (s *Store) UpdateLowestBid(ctx context.Context, auctionID, bidID string, amount decimal.Decimal) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE auctions
		SET lowest_bid_amount = $2, winner_bid_id = $3, updated_at = NOW()
		WHERE id = $1
		  AND NOT finalized
		  AND (lowest_bid_amount IS NULL OR lowest_bid_amount > $2)`,
		auctionID, amount, bidID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// CloseAuction stamps the authoritative winner and records the finalize.
// The guard is the finalized flag, not status: the status machine may have
// moved the auction to over already, and that must not swallow the winner
// pass. Exactly one concurrent caller observes updated=true. A nil
// winnerBidID records a no-bid close.
func (s *Store) CloseAuction(ctx context.Context, auctionID string, winnerBidID *string, amount decimal.NullDecimal) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE auctions
		SET status = 'over', finalized = TRUE, winner_bid_id = $2, lowest_bid_amount = $3, updated_at = NOW()
		WHERE id = $1 AND NOT finalized`,
		auctionID, winnerBidID, amount)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// ListAuctionsPastEnd finds auctions whose window has closed but whose
// winner pass never ran, e.g. after a restart lost the in-memory timers.
// Keyed on the finalized flag so an auction whose status already reached
// over still gets repaired.
func (s *Store) ListAuctionsPastEnd(ctx context.Context, now time.Time) ([]models.Auction, error) {
	var auctions []models.Auction
	err := s.db.SelectContext(ctx, &auctions,
		"SELECT * FROM auctions WHERE end_time <= $1 AND NOT finalized ORDER BY end_time", now)
	return auctions, err
}

// ListAuctionsPastStart finds auctions inside their window still marked
// upcoming.
func (s *Store) ListAuctionsPastStart(ctx context.Context, now time.Time) ([]models.Auction, error) {
	var auctions []models.Auction
	err := s.db.SelectContext(ctx, &auctions,
		"SELECT * FROM auctions WHERE start_time <= $1 AND end_time > $1 AND status = 'upcoming' ORDER BY start_time", now)
	return auctions, err
}

// ListOpenAuctions finds auctions not yet finalized, with their end times,
// for re-arming timers at startup.
func (s *Store) ListOpenAuctions(ctx context.Context) ([]models.Auction, error) {
	var auctions []models.Auction
	err := s.db.SelectContext(ctx, &auctions,
		"SELECT * FROM auctions WHERE NOT finalized ORDER BY end_time")
	return auctions, err
}

// MarkPaid flips the payment flag
func (s *Store) MarkPaid(ctx context.Context, auctionID string) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE auctions SET paid = TRUE, updated_at = NOW() WHERE id = $1", auctionID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("auction %s: %w", auctionID, auctionerrors.ErrNotFound)
	}
	return nil
}

// UpdateDeliveryState persists the delivery sub-state of an auction
func (s *Store) UpdateDeliveryState(ctx context.Context, auction *models.Auction) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE auctions SET
			delivery_status = $1,
			actual_delivery_date = $2,
			delivery_confirmed = $3,
			delivery_confirmed_at = $4,
			delivery_notes = $5,
			updated_at = NOW()
		WHERE id = $6`,
		auction.DeliveryStatus, auction.ActualDeliveryDate,
		auction.DeliveryConfirmed, auction.DeliveryConfirmedAt,
		auction.DeliveryNotes, auction.ID)
	return err
}

// DeleteAuctionTx removes an auction and cascades to its bids in one
// transaction
func (s *Store) DeleteAuctionTx(ctx context.Context, auctionID string) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM cart_items WHERE auction_id = $1", auctionID); err != nil {
		return fmt.Errorf("failed to delete cart items: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM bids WHERE auction_id = $1", auctionID); err != nil {
		return fmt.Errorf("failed to delete bids: %w", err)
	}

	res, err := tx.ExecContext(ctx, "DELETE FROM auctions WHERE id = $1", auctionID)
	if err != nil {
		return fmt.Errorf("failed to delete auction: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("auction %s: %w", auctionID, auctionerrors.ErrNotFound)
	}

	return tx.Commit()
}
