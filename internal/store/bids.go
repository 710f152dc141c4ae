package store

import (
	"context"
	"database/sql"
	"fmt"

	"auction-service/internal/auctionerrors"
	"auction-service/internal/models"
)

// CreateBid appends a bid to the ledger
func (s *Store) CreateBid(ctx context.Context, bid *models.Bid) error {
	query := `
		INSERT INTO bids (id, auction_id, bidder_id, amount)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at`

	return s.db.QueryRowxContext(ctx, query,
		bid.ID, bid.AuctionID, bid.BidderID, bid.Amount,
	).Scan(&bid.CreatedAt)
}

// GetBidByID retrieves a bid by ID
func (s *Store) GetBidByID(ctx context.Context, id string) (*models.Bid, error) {
	var bid models.Bid
	err := s.db.GetContext(ctx, &bid, "SELECT * FROM bids WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("bid %s: %w", id, auctionerrors.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &bid, nil
}

// ListBidsByAuction returns an auction's bids in submission order. The
// secondary id ordering keeps the scan deterministic when timestamps
// collide.
func (s *Store) ListBidsByAuction(ctx context.Context, auctionID string) ([]models.Bid, error) {
	var bids []models.Bid
	err := s.db.SelectContext(ctx, &bids,
		"SELECT * FROM bids WHERE auction_id = $1 ORDER BY created_at ASC, id ASC", auctionID)
	return bids, err
}

// ListBidsByBidder returns a supplier's bids, newest-first
func (s *Store) ListBidsByBidder(ctx context.Context, bidderID string) ([]models.Bid, error) {
	var bids []models.Bid
	err := s.db.SelectContext(ctx, &bids,
		"SELECT * FROM bids WHERE bidder_id = $1 ORDER BY created_at DESC", bidderID)
	return bids, err
}

// ListBidderIDsByAuction returns the distinct bidder ids on an auction
func (s *Store) ListBidderIDsByAuction(ctx context.Context, auctionID string) ([]string, error) {
	var ids []string
	err := s.db.SelectContext(ctx, &ids,
		"SELECT DISTINCT bidder_id FROM bids WHERE auction_id = $1", auctionID)
	return ids, err
}
