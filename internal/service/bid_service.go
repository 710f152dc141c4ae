package service

import (
	"context"
	"fmt"
	"time"

	"auction-service/internal/auctionerrors"
	"auction-service/internal/models"
	"auction-service/internal/util"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// BidStore is the persistence surface BidService depends on
type BidStore interface {
	GetAuctionByID(ctx context.Context, id string) (*models.Auction, error)
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	CreateBid(ctx context.Context, bid *models.Bid) error
	UpdateLowestBid(ctx context.Context, auctionID, bidID string, amount decimal.Decimal) (bool, error)
	ListBidsByAuction(ctx context.Context, auctionID string) ([]models.Bid, error)
	ListBidsByBidder(ctx context.Context, bidderID string) ([]models.Bid, error)
}

// LowestBidCache is the advisory Redis cache of each auction's current
// lowest bid. Finalize never trusts it; staleness self-heals there.
type LowestBidCache interface {
	SetLowestBid(ctx context.Context, auctionID string, amount decimal.Decimal, ttl time.Duration) error
	GetLowestBid(ctx context.Context, auctionID string) (decimal.Decimal, bool, error)
	InvalidateLowestBid(ctx context.Context, auctionID string) error
}

// BidService is the append-only bid ledger
type BidService struct {
	store     BidStore
	cache     LowestBidCache
	publisher EventPublisher
	cacheTTL  time.Duration
	now       func() time.Time
	logger    *zap.Logger
}

// NewBidService creates a new bid service
func NewBidService(store BidStore, cache LowestBidCache, publisher EventPublisher, cacheTTL time.Duration) *BidService {
	return &BidService{
		store:     store,
		cache:     cache,
		publisher: publisher,
		cacheTTL:  cacheTTL,
		now:       time.Now,
		logger:    util.GetLogger(),
	}
}

// PlaceBid validates and records a supplier's bid on an auction.
// Preconditions are checked in order; the first failure wins.
func (s *BidService) PlaceBid(ctx context.Context, auctionID, bidderID string, amount decimal.Decimal) (*models.Bid, error) {
	ctx, span := util.StartSpan(ctx, "BidService.PlaceBid")
	defer span.End()

	if !amount.IsPositive() {
		util.BidsRejectedTotal.WithLabelValues("invalid_amount").Inc()
		return nil, fmt.Errorf("%w: bid amount must be positive", auctionerrors.ErrValidation)
	}

	auction, err := s.store.GetAuctionByID(ctx, auctionID)
	if err != nil {
		util.BidsRejectedTotal.WithLabelValues("auction_not_found").Inc()
		return nil, err
	}

	// Status is judged against the clock, not the stored field, so a bid
	// arriving before the scheduler's activate timer fired is still
	// accepted and one arriving after endTime is still rejected.
	if status := ComputeStatus(s.now(), auction.StartTime, auction.EndTime, auction.Status); status != models.StatusActive {
		util.BidsRejectedTotal.WithLabelValues("bidding_closed").Inc()
		return nil, fmt.Errorf("%w: bidding is closed for this need", auctionerrors.ErrInvalidState)
	}

	bidder, err := s.store.GetUserByID(ctx, bidderID)
	if err != nil {
		util.BidsRejectedTotal.WithLabelValues("bidder_not_found").Inc()
		return nil, err
	}
	if !bidder.Role.CanBid() {
		util.BidsRejectedTotal.WithLabelValues("wrong_role").Inc()
		return nil, fmt.Errorf("%w: only suppliers can place bids", auctionerrors.ErrUnauthorized)
	}
	if bidder.ID == auction.BuyerID {
		util.BidsRejectedTotal.WithLabelValues("self_bid").Inc()
		return nil, fmt.Errorf("%w: cannot bid on your own need", auctionerrors.ErrUnauthorized)
	}

	if lowest, ok := s.currentLowest(ctx, auction); ok && amount.GreaterThanOrEqual(lowest) {
		util.BidsRejectedTotal.WithLabelValues("not_competitive").Inc()
		return nil, fmt.Errorf("%w: bid must be lower than the current lowest bid of %s",
			auctionerrors.ErrValidation, lowest.String())
	}

	bid := &models.Bid{
		ID:        uuid.New().String(),
		AuctionID: auctionID,
		BidderID:  bidderID,
		Amount:    amount,
	}
	if err := s.store.CreateBid(ctx, bid); err != nil {
		return nil, fmt.Errorf("failed to record bid: %w", err)
	}

	util.BidsPlacedTotal.Inc()

	// Provisional winner for display only; the finalize pass supersedes it
	// unconditionally. A failure here leaves the cache stale, which is
	// acceptable and self-heals at finalize.
	undercut, err := s.store.UpdateLowestBid(ctx, auctionID, bid.ID, amount)
	if err != nil {
		s.logger.Error("Failed to update lowest-bid cache",
			zap.String("auction_id", auctionID),
			zap.Error(err))
	} else if undercut {
		if err := s.cache.SetLowestBid(ctx, auctionID, amount, s.cacheTTL); err != nil {
			s.logger.Warn("Failed to refresh Redis lowest-bid cache",
				zap.String("auction_id", auctionID),
				zap.Error(err))
		}
	}

	s.logger.Info("Bid placed",
		zap.String("bid_id", bid.ID),
		zap.String("auction_id", auctionID),
		zap.String("bidder_id", bidderID),
		zap.String("amount", amount.String()))

	event := &models.BidPlacedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeBidPlaced,
			Timestamp: s.now(),
		},
		AuctionID:  auctionID,
		BidID:      bid.ID,
		BidderID:   bidderID,
		BidderName: bidder.FullName,
		Amount:     amount,
	}
	if err := s.publisher.PublishBidPlaced(ctx, event); err != nil {
		s.logger.Error("Failed to publish BidPlaced event", zap.Error(err))
	}

	return bid, nil
}

// currentLowest returns the auction's current lowest bid, preferring the
// Redis cache and falling back to the stored advisory column.
func (s *BidService) currentLowest(ctx context.Context, auction *models.Auction) (decimal.Decimal, bool) {
	if amount, ok, err := s.cache.GetLowestBid(ctx, auction.ID); err == nil && ok {
		return amount, true
	} else if err != nil {
		s.logger.Warn("Lowest-bid cache read failed",
			zap.String("auction_id", auction.ID),
			zap.Error(err))
	}
	if auction.LowestBidAmount.Valid {
		return auction.LowestBidAmount.Decimal, true
	}
	return decimal.Zero, false
}

// ListBidsByAuction returns all bids on an auction in submission order
func (s *BidService) ListBidsByAuction(ctx context.Context, auctionID string) ([]models.Bid, error) {
	if _, err := s.store.GetAuctionByID(ctx, auctionID); err != nil {
		return nil, err
	}
	return s.store.ListBidsByAuction(ctx, auctionID)
}

// ListBidsByBidder returns all bids a supplier has placed
func (s *BidService) ListBidsByBidder(ctx context.Context, bidderID string) ([]models.Bid, error) {
	return s.store.ListBidsByBidder(ctx, bidderID)
}
