package service

import (
	"context"
	"fmt"
	"time"

	"auction-service/internal/models"
	"auction-service/internal/util"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// FinalizeStore is the persistence surface FinalizeService depends on
type FinalizeStore interface {
	GetAuctionByID(ctx context.Context, id string) (*models.Auction, error)
	ListBidsByAuction(ctx context.Context, auctionID string) ([]models.Bid, error)
	CloseAuction(ctx context.Context, auctionID string, winnerBidID *string, amount decimal.NullDecimal) (bool, error)
	GetBidByID(ctx context.Context, id string) (*models.Bid, error)
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	EnsureCart(ctx context.Context, userID string) (string, error)
	AddCartItem(ctx context.Context, cartID, auctionID string) error
}

// FinalizeLocker narrows the window in which two finalize calls race. The
// compare-and-set in CloseAuction is the authoritative guard; the lock only
// spares the loser a redundant bid scan.
type FinalizeLocker interface {
	AcquireLock(ctx context.Context, lockKey string, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, lockKey string) error
}

// FinalizeResult reports the outcome of a finalize call. Winner is nil when
// the auction closed with no bids. AlreadyFinalized means a previous or
// concurrent call had already closed the auction; no side effects ran.
type FinalizeResult struct {
	Winner           *models.Bid `json:"winner"`
	AlreadyFinalized bool        `json:"already_finalized"`
}

// FinalizeService is the winner selection engine
type FinalizeService struct {
	store     FinalizeStore
	locker    FinalizeLocker
	publisher EventPublisher
	lockTTL   time.Duration
	now       func() time.Time
	logger    *zap.Logger
}

// NewFinalizeService creates a new finalize service
func NewFinalizeService(store FinalizeStore, locker FinalizeLocker, publisher EventPublisher, lockTTL time.Duration) *FinalizeService {
	return &FinalizeService{
		store:     store,
		locker:    locker,
		publisher: publisher,
		lockTTL:   lockTTL,
		now:       time.Now,
		logger:    util.GetLogger(),
	}
}

// Finalize closes an auction and stamps the authoritative winner: the
// lowest bid, ties broken by submission order. It is invoked redundantly
// from the scheduler, the reconciliation sweep, the live-event trigger and
// the API; exactly one invocation performs the winner assignment, cart
// provisioning and fan-out.
func (s *FinalizeService) Finalize(ctx context.Context, auctionID string) (*FinalizeResult, error) {
	ctx, span := util.StartSpan(ctx, "FinalizeService.Finalize")
	defer span.End()

	start := time.Now()
	defer func() {
		util.FinalizeLatency.Observe(time.Since(start).Seconds())
	}()

	lockKey := fmt.Sprintf("finalize:%s", auctionID)
	acquired, err := s.locker.AcquireLock(ctx, lockKey, s.lockTTL)
	if err != nil {
		s.logger.Warn("Finalize lock unavailable, relying on status compare-and-set",
			zap.String("auction_id", auctionID),
			zap.Error(err))
	} else if !acquired {
		util.AuctionsFinalizedTotal.WithLabelValues("already_finalized").Inc()
		return s.alreadyFinalized(ctx, auctionID)
	} else {
		defer func() {
			if err := s.locker.ReleaseLock(ctx, lockKey); err != nil {
				s.logger.Warn("Failed to release finalize lock", zap.Error(err))
			}
		}()
	}

	auction, err := s.store.GetAuctionByID(ctx, auctionID)
	if err != nil {
		return nil, err
	}

	// The status machine may have stamped the auction over before the winner
	// pass ran, so the guard is the finalized flag, never the status.
	if auction.Finalized {
		util.AuctionsFinalizedTotal.WithLabelValues("already_finalized").Inc()
		return s.alreadyFinalized(ctx, auctionID)
	}

	bids, err := s.store.ListBidsByAuction(ctx, auctionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load bids: %w", err)
	}

	if len(bids) == 0 {
		closed, err := s.store.CloseAuction(ctx, auctionID, nil, decimal.NullDecimal{})
		if err != nil {
			return nil, fmt.Errorf("failed to close auction: %w", err)
		}
		if !closed {
			util.AuctionsFinalizedTotal.WithLabelValues("already_finalized").Inc()
			return s.alreadyFinalized(ctx, auctionID)
		}
		util.AuctionsFinalizedTotal.WithLabelValues("no_bids").Inc()
		s.logger.Info("Auction closed with no bids", zap.String("auction_id", auctionID))
		return &FinalizeResult{Winner: nil}, nil
	}

	winner := selectWinner(bids)

	closed, err := s.store.CloseAuction(ctx, auctionID, &winner.ID,
		decimal.NullDecimal{Decimal: winner.Amount, Valid: true})
	if err != nil {
		return nil, fmt.Errorf("failed to close auction: %w", err)
	}
	if !closed {
		// A concurrent finalize won the compare-and-set and owns the side
		// effects.
		util.AuctionsFinalizedTotal.WithLabelValues("already_finalized").Inc()
		return s.alreadyFinalized(ctx, auctionID)
	}

	util.AuctionsFinalizedTotal.WithLabelValues("winner").Inc()
	s.logger.Info("Auction finalized",
		zap.String("auction_id", auctionID),
		zap.String("winner_bid_id", winner.ID),
		zap.String("amount", winner.Amount.String()))

	// Persisted state is consistent from here on; provisioning and fan-out
	// failures are logged, never fatal to the finalize.
	if err := s.provisionCart(ctx, winner.BidderID, auctionID); err != nil {
		s.logger.Error("Failed to provision winner cart",
			zap.String("auction_id", auctionID),
			zap.String("bidder_id", winner.BidderID),
			zap.Error(err))
	}

	s.publishEnded(ctx, auction, winner)

	return &FinalizeResult{Winner: winner}, nil
}

// selectWinner scans the bid ledger once in submission order, tracking the
// minimum amount. The strict less-than keeps the first bid at the minimum,
// which makes repeated finalize calls deterministic.
func selectWinner(bids []models.Bid) *models.Bid {
	winner := &bids[0]
	for i := 1; i < len(bids); i++ {
		if bids[i].Amount.LessThan(winner.Amount) {
			winner = &bids[i]
		}
	}
	return winner
}

// alreadyFinalized builds the benign repeat-call result from stored state
func (s *FinalizeService) alreadyFinalized(ctx context.Context, auctionID string) (*FinalizeResult, error) {
	auction, err := s.store.GetAuctionByID(ctx, auctionID)
	if err != nil {
		return nil, err
	}

	result := &FinalizeResult{AlreadyFinalized: true}
	if auction.WinnerBidID != nil {
		bid, err := s.store.GetBidByID(ctx, *auction.WinnerBidID)
		if err != nil {
			return nil, err
		}
		result.Winner = bid
	}
	return result, nil
}

// provisionCart ensures the winning bidder has a cart containing the won
// auction. Idempotent.
func (s *FinalizeService) provisionCart(ctx context.Context, bidderID, auctionID string) error {
	cartID, err := s.store.EnsureCart(ctx, bidderID)
	if err != nil {
		return fmt.Errorf("failed to ensure cart: %w", err)
	}
	if err := s.store.AddCartItem(ctx, cartID, auctionID); err != nil {
		return fmt.Errorf("failed to add cart item: %w", err)
	}
	return nil
}

func (s *FinalizeService) publishEnded(ctx context.Context, auction *models.Auction, winner *models.Bid) {
	event := &models.AuctionEndedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeAuctionEnded,
			Timestamp: s.now(),
		},
		AuctionID:   auction.ID,
		WinnerBidID: &winner.ID,
		Amount:      decimal.NullDecimal{Decimal: winner.Amount, Valid: true},
	}
	event.WinnerUserID = winner.BidderID
	if bidder, err := s.store.GetUserByID(ctx, winner.BidderID); err == nil {
		event.WinnerName = bidder.FullName
	} else {
		s.logger.Warn("Failed to load winner profile for event",
			zap.String("bidder_id", winner.BidderID),
			zap.Error(err))
	}

	if err := s.publisher.PublishAuctionEnded(ctx, event); err != nil {
		s.logger.Error("Failed to publish AuctionEnded event", zap.Error(err))
	}
}
