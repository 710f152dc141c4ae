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

// DeliveryStore is the persistence surface DeliveryService depends on
type DeliveryStore interface {
	GetAuctionByID(ctx context.Context, id string) (*models.Auction, error)
	GetBidByID(ctx context.Context, id string) (*models.Bid, error)
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	UpdateDeliveryState(ctx context.Context, auction *models.Auction) error
	UpdateSupplierMetrics(ctx context.Context, userID string, m store.SupplierMetrics) error
}

// DeliveryService handles the post-win delivery flow and the supplier
// reliability tracker coupled to it.
type DeliveryService struct {
	store     DeliveryStore
	publisher EventPublisher
	now       func() time.Time
	logger    *zap.Logger
}

// NewDeliveryService creates a new delivery service
func NewDeliveryService(store DeliveryStore, publisher EventPublisher) *DeliveryService {
	return &DeliveryService{
		store:     store,
		publisher: publisher,
		now:       time.Now,
		logger:    util.GetLogger(),
	}
}

// UpdateDeliveryStatus moves an auction through the non-terminal delivery
// states. The delivered transition goes through ConfirmDelivery, which is
// the only trigger of the reliability tracker.
func (s *DeliveryService) UpdateDeliveryStatus(ctx context.Context, auctionID string, status models.DeliveryStatus, notes string) (*models.Auction, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("%w: unknown delivery status %q", auctionerrors.ErrValidation, status)
	}
	if status == models.DeliveryDelivered {
		return nil, fmt.Errorf("%w: use delivery confirmation to mark delivered", auctionerrors.ErrValidation)
	}

	auction, err := s.store.GetAuctionByID(ctx, auctionID)
	if err != nil {
		return nil, err
	}
	if auction.WinnerBidID == nil {
		return nil, fmt.Errorf("%w: auction has no winner to deliver for", auctionerrors.ErrInvalidState)
	}
	if auction.DeliveryConfirmed {
		return nil, fmt.Errorf("%w: delivery already confirmed", auctionerrors.ErrInvalidState)
	}

	auction.DeliveryStatus = status
	if notes != "" {
		auction.DeliveryNotes = notes
	}
	if err := s.store.UpdateDeliveryState(ctx, auction); err != nil {
		return nil, fmt.Errorf("failed to update delivery state: %w", err)
	}
	return auction, nil
}

// ConfirmDelivery records the buyer's delivery confirmation and feeds the
// supplier reliability tracker.
func (s *DeliveryService) ConfirmDelivery(ctx context.Context, auctionID string, actualDate time.Time, notes string) (*models.Auction, error) {
	ctx, span := util.StartSpan(ctx, "DeliveryService.ConfirmDelivery")
	defer span.End()

	auction, err := s.store.GetAuctionByID(ctx, auctionID)
	if err != nil {
		return nil, err
	}
	if auction.WinnerBidID == nil {
		return nil, fmt.Errorf("%w: auction has no winner to confirm delivery for", auctionerrors.ErrInvalidState)
	}
	if auction.DeliveryConfirmed {
		return nil, fmt.Errorf("%w: delivery already confirmed", auctionerrors.ErrInvalidState)
	}

	winnerBid, err := s.store.GetBidByID(ctx, *auction.WinnerBidID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	auction.DeliveryStatus = models.DeliveryDelivered
	auction.ActualDeliveryDate = &actualDate
	auction.DeliveryConfirmed = true
	auction.DeliveryConfirmedAt = &now
	if notes != "" {
		auction.DeliveryNotes = notes
	}

	if err := s.store.UpdateDeliveryState(ctx, auction); err != nil {
		return nil, fmt.Errorf("failed to update delivery state: %w", err)
	}

	// On-time is only judged when an expected date was set; an untracked
	// delivery counts toward totals but not toward the on-time count.
	onTime := auction.ExpectedDeliveryDate != nil && !actualDate.After(*auction.ExpectedDeliveryDate)

	if err := s.RecordDelivery(ctx, winnerBid.BidderID, onTime, winnerBid.Amount); err != nil {
		s.logger.Error("Failed to update supplier reliability metrics",
			zap.String("auction_id", auctionID),
			zap.String("supplier_id", winnerBid.BidderID),
			zap.Error(err))
	}

	util.DeliveriesConfirmedTotal.WithLabelValues(fmt.Sprintf("%t", onTime)).Inc()

	event := &models.DeliveryConfirmedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeDeliveryConfirmed,
			Timestamp: now,
		},
		AuctionID:  auctionID,
		SupplierID: winnerBid.BidderID,
		OnTime:     onTime,
		Amount:     winnerBid.Amount,
	}
	if err := s.publisher.PublishDeliveryConfirmed(ctx, event); err != nil {
		s.logger.Error("Failed to publish DeliveryConfirmed event", zap.Error(err))
	}

	return auction, nil
}

// RecordDelivery folds one completed delivery into the supplier's rolling
// reliability metrics. The score weighs on-time rate at 60% and caps the
// experience component at 40 points, keeping the result in [0,100].
func (s *DeliveryService) RecordDelivery(ctx context.Context, supplierID string, onTime bool, amount decimal.Decimal) error {
	supplier, err := s.store.GetUserByID(ctx, supplierID)
	if err != nil {
		return err
	}

	m := store.SupplierMetrics{
		TotalDeliveries:  supplier.TotalDeliveries + 1,
		OnTimeDeliveries: supplier.OnTimeDeliveries,
		TotalEarnings:    supplier.TotalEarnings.Add(amount),
		LastDeliveryDate: s.now(),
		IsActiveSupplier: true,
	}
	if onTime {
		m.OnTimeDeliveries++
	}
	m.OnTimeDeliveryRate = float64(m.OnTimeDeliveries) / float64(m.TotalDeliveries) * 100
	m.ReliabilityScore = reliabilityScore(m.OnTimeDeliveryRate, m.TotalDeliveries)

	if err := s.store.UpdateSupplierMetrics(ctx, supplierID, m); err != nil {
		return fmt.Errorf("failed to persist supplier metrics: %w", err)
	}

	s.logger.Info("Supplier reliability updated",
		zap.String("supplier_id", supplierID),
		zap.Int("total_deliveries", m.TotalDeliveries),
		zap.Float64("on_time_rate", m.OnTimeDeliveryRate),
		zap.Float64("reliability_score", m.ReliabilityScore))
	return nil
}

// reliabilityScore is a bounded weighted blend of on-time rate and
// delivery experience.
func reliabilityScore(onTimeRate float64, totalDeliveries int) float64 {
	experience := float64(totalDeliveries) * 2
	if experience > 40 {
		experience = 40
	}
	score := onTimeRate*0.6 + experience
	if score > 100 {
		score = 100
	}
	if score < 0 {
		score = 0
	}
	return score
}
