package service

import (
	"context"
	"fmt"
	"time"

	"auction-service/internal/auctionerrors"
	"auction-service/internal/models"
	"auction-service/internal/store"
	"auction-service/internal/util"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// EventPublisher is the slice of the broker used by the services. Failures
// to publish are logged, never propagated: domain events are out-of-band.
type EventPublisher interface {
	PublishAuctionCreated(ctx context.Context, event *models.AuctionCreatedEvent) error
	PublishBidPlaced(ctx context.Context, event *models.BidPlacedEvent) error
	PublishAuctionEnded(ctx context.Context, event *models.AuctionEndedEvent) error
	PublishDeliveryConfirmed(ctx context.Context, event *models.DeliveryConfirmedEvent) error
}

// AuctionStore is the persistence surface AuctionService depends on
type AuctionStore interface {
	CreateAuction(ctx context.Context, auction *models.Auction) error
	GetAuctionByID(ctx context.Context, id string) (*models.Auction, error)
	ListAuctions(ctx context.Context, filter store.AuctionFilter) ([]models.Auction, error)
	ListAuctionsByBuyer(ctx context.Context, buyerID string) ([]models.Auction, error)
	UpdateAuctionStatus(ctx context.Context, auctionID string, status models.AuctionStatus) error
	MarkPaid(ctx context.Context, auctionID string) error
	DeleteAuctionTx(ctx context.Context, auctionID string) error
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	GetBidByID(ctx context.Context, id string) (*models.Bid, error)
}

// AuctionService handles auction lifecycle business logic
type AuctionService struct {
	store     AuctionStore
	publisher EventPublisher
	onCreated func(*models.Auction)
	now       func() time.Time
	logger    *zap.Logger
}

// NewAuctionService creates a new auction service
func NewAuctionService(store AuctionStore, publisher EventPublisher) *AuctionService {
	return &AuctionService{
		store:     store,
		publisher: publisher,
		now:       time.Now,
		logger:    util.GetLogger(),
	}
}

// SetAuctionCreatedHook registers the callback invoked synchronously after
// each successful creation. The scheduler uses it to arm lifecycle timers
// without watching a storage change feed.
func (s *AuctionService) SetAuctionCreatedHook(hook func(*models.Auction)) {
	s.onCreated = hook
}

// CreateAuctionRequest represents a buyer posting a need
type CreateAuctionRequest struct {
	Name                 string          `json:"name" binding:"required"`
	Description          string          `json:"description" binding:"required"`
	Quantity             int             `json:"quantity" binding:"required,min=1"`
	Budget               decimal.Decimal `json:"budget" binding:"required"`
	CategoryID           string          `json:"category_id" binding:"required"`
	BuyerID              string          `json:"buyer_id" binding:"required"`
	Location             string          `json:"location" binding:"required"`
	StartTime            time.Time       `json:"start_time" binding:"required"`
	EndTime              time.Time       `json:"end_time" binding:"required"`
	ImageURL             string          `json:"image_url"`
	ExpectedDeliveryDate *time.Time      `json:"expected_delivery_date"`
}

// CreateAuction creates a new auction for a buyer need
func (s *AuctionService) CreateAuction(ctx context.Context, req *CreateAuctionRequest) (*models.Auction, error) {
	ctx, span := util.StartSpan(ctx, "AuctionService.CreateAuction")
	defer span.End()

	if !req.Budget.IsPositive() {
		return nil, fmt.Errorf("%w: budget must be positive", auctionerrors.ErrValidation)
	}
	if !req.StartTime.Before(req.EndTime) {
		return nil, fmt.Errorf("%w: start time must be before end time", auctionerrors.ErrValidation)
	}

	buyer, err := s.store.GetUserByID(ctx, req.BuyerID)
	if err != nil {
		return nil, err
	}
	switch buyer.Role {
	case models.RoleBuyer:
	case models.RoleSupplier, models.RoleAdmin:
		return nil, fmt.Errorf("%w: only buyers can post needs", auctionerrors.ErrUnauthorized)
	default:
		return nil, fmt.Errorf("%w: unknown role %q", auctionerrors.ErrUnauthorized, buyer.Role)
	}

	now := s.now()
	auction := &models.Auction{
		ID:                   uuid.New().String(),
		Name:                 req.Name,
		Description:          req.Description,
		Quantity:             req.Quantity,
		Budget:               req.Budget,
		CategoryID:           req.CategoryID,
		BuyerID:              req.BuyerID,
		Location:             req.Location,
		StartTime:            req.StartTime,
		EndTime:              req.EndTime,
		ImageURL:             req.ImageURL,
		Status:               ComputeStatus(now, req.StartTime, req.EndTime, models.StatusUpcoming),
		DeliveryStatus:       models.DeliveryPending,
		ExpectedDeliveryDate: req.ExpectedDeliveryDate,
	}

	if err := s.store.CreateAuction(ctx, auction); err != nil {
		return nil, fmt.Errorf("failed to create auction: %w", err)
	}

	util.AuctionsCreatedTotal.Inc()
	s.logger.Info("Auction created",
		zap.String("auction_id", auction.ID),
		zap.String("buyer_id", auction.BuyerID),
		zap.Time("end_time", auction.EndTime))

	if s.onCreated != nil {
		s.onCreated(auction)
	}

	event := &models.AuctionCreatedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeAuctionCreated,
			Timestamp: now,
		},
		AuctionID: auction.ID,
		BuyerID:   auction.BuyerID,
		Name:      auction.Name,
		StartTime: auction.StartTime,
		EndTime:   auction.EndTime,
	}
	if err := s.publisher.PublishAuctionCreated(ctx, event); err != nil {
		s.logger.Error("Failed to publish AuctionCreated event", zap.Error(err))
	}

	return auction, nil
}

// GetAuction retrieves an auction by ID
func (s *AuctionService) GetAuction(ctx context.Context, auctionID string) (*models.Auction, error) {
	return s.store.GetAuctionByID(ctx, auctionID)
}

// ListAuctions retrieves auctions matching the filter
func (s *AuctionService) ListAuctions(ctx context.Context, filter store.AuctionFilter) ([]models.Auction, error) {
	return s.store.ListAuctions(ctx, filter)
}

// ListAuctionsByBuyer retrieves auctions owned by a buyer
func (s *AuctionService) ListAuctionsByBuyer(ctx context.Context, buyerID string) ([]models.Auction, error) {
	return s.store.ListAuctionsByBuyer(ctx, buyerID)
}

// RecomputeStatus reconciles an auction's stored status with the clock. It
// is the on-demand leg of the lifecycle: the scheduler, a live-event
// trigger and a direct API call can all land here concurrently without
// harm.
func (s *AuctionService) RecomputeStatus(ctx context.Context, auctionID string) (*models.Auction, error) {
	ctx, span := util.StartSpan(ctx, "AuctionService.RecomputeStatus")
	defer span.End()

	auction, err := s.store.GetAuctionByID(ctx, auctionID)
	if err != nil {
		return nil, err
	}

	status := ComputeStatus(s.now(), auction.StartTime, auction.EndTime, auction.Status)
	if status == auction.Status {
		return auction, nil
	}

	if err := s.store.UpdateAuctionStatus(ctx, auctionID, status); err != nil {
		return nil, fmt.Errorf("failed to update auction status: %w", err)
	}
	s.logger.Info("Auction status updated",
		zap.String("auction_id", auctionID),
		zap.String("from", string(auction.Status)),
		zap.String("to", string(status)))

	auction.Status = status
	return auction, nil
}

// WinnerView is the winner of a finalized auction with the bidder profile
// populated.
type WinnerView struct {
	Bid    *models.Bid  `json:"bid"`
	Bidder *models.User `json:"bidder"`
}

// GetWinner returns the winning bid of a finalized auction
func (s *AuctionService) GetWinner(ctx context.Context, auctionID string) (*WinnerView, error) {
	auction, err := s.store.GetAuctionByID(ctx, auctionID)
	if err != nil {
		return nil, err
	}
	if auction.WinnerBidID == nil {
		return nil, fmt.Errorf("%w: auction %s has no winner", auctionerrors.ErrNotFound, auctionID)
	}

	bid, err := s.store.GetBidByID(ctx, *auction.WinnerBidID)
	if err != nil {
		return nil, err
	}
	bidder, err := s.store.GetUserByID(ctx, bid.BidderID)
	if err != nil {
		return nil, err
	}
	return &WinnerView{Bid: bid, Bidder: bidder}, nil
}

// MarkPaid flips the auction's payment flag
func (s *AuctionService) MarkPaid(ctx context.Context, auctionID string) (*models.Auction, error) {
	if err := s.store.MarkPaid(ctx, auctionID); err != nil {
		return nil, err
	}
	return s.store.GetAuctionByID(ctx, auctionID)
}

// DeleteAuction removes an auction and its bids. Only the owning buyer may
// delete. A lifecycle timer already armed for this auction will later
// no-op on not-found.
func (s *AuctionService) DeleteAuction(ctx context.Context, auctionID, requesterID string) error {
	auction, err := s.store.GetAuctionByID(ctx, auctionID)
	if err != nil {
		return err
	}
	if auction.BuyerID != requesterID {
		return fmt.Errorf("%w: only the auction owner can delete it", auctionerrors.ErrUnauthorized)
	}

	if err := s.store.DeleteAuctionTx(ctx, auctionID); err != nil {
		return err
	}
	s.logger.Info("Auction deleted", zap.String("auction_id", auctionID))
	return nil
}
