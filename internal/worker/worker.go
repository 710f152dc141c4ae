package worker

import (
	"context"
	"fmt"
	"time"

	"auction-service/internal/broker"
	"auction-service/internal/models"
	"auction-service/internal/realtime"
	"auction-service/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Store is the persistence surface the notification worker depends on
type Store interface {
	GetAuctionByID(ctx context.Context, id string) (*models.Auction, error)
	ListBidderIDsByAuction(ctx context.Context, auctionID string) ([]string, error)
	CreateNotification(ctx context.Context, n *models.Notification) error
	IsEventProcessed(ctx context.Context, eventID string) (bool, error)
	MarkEventProcessed(ctx context.Context, eventID, eventType string) error
}

// NotificationWorker consumes domain events and fans them out as stored
// notifications plus live pushes. It is the only writer of the
// notifications table.
type NotificationWorker struct {
	store    Store
	consumer *broker.Consumer
	hub      *realtime.Hub
	logger   *zap.Logger
}

// NewNotificationWorker creates a notification worker over a Kafka consumer
func NewNotificationWorker(store Store, consumer *broker.Consumer, hub *realtime.Hub) *NotificationWorker {
	return &NotificationWorker{
		store:    store,
		consumer: consumer,
		hub:      hub,
		logger:   util.GetLogger(),
	}
}

// Start consumes events until the context is cancelled
func (w *NotificationWorker) Start(ctx context.Context) error {
	handler := broker.NewEventHandler()
	handler.OnBidPlaced(w.handleBidPlaced)
	handler.OnAuctionEnded(w.handleAuctionEnded)

	w.logger.Info("Notification worker started")
	return w.consumer.StartConsuming(ctx, handler.HandleMessage)
}

// handleBidPlaced notifies the auction owner and every bidder, the actor
// included, that a new bid landed, and pushes the new price to all live
// sessions. The actor's own notification confirms the bid.
func (w *NotificationWorker) handleBidPlaced(ctx context.Context, event *models.BidPlacedEvent) error {
	processed, err := w.store.IsEventProcessed(ctx, event.EventID)
	if err != nil {
		return fmt.Errorf("failed to check event status: %w", err)
	}
	if processed {
		w.logger.Info("Event already processed, skipping", zap.String("event_id", event.EventID))
		return nil
	}

	auction, err := w.store.GetAuctionByID(ctx, event.AuctionID)
	if err != nil {
		return fmt.Errorf("failed to load auction %s: %w", event.AuctionID, err)
	}

	recipients, err := w.recipients(ctx, auction)
	if err != nil {
		return err
	}

	amount := event.Amount.StringFixed(2)
	for _, userID := range recipients {
		message := fmt.Sprintf("%s placed a bid of %s on %q", event.BidderName, amount, auction.Name)
		if userID == event.BidderID {
			message = fmt.Sprintf("You placed a bid of %s on %q", amount, auction.Name)
		}
		w.notify(ctx, userID, models.NotificationBidPlaced, auction.ID, message, "newBidNotification")
	}

	w.hub.Broadcast(ctx, "newBidData", map[string]interface{}{
		"auction_id": event.AuctionID,
		"bid_id":     event.BidID,
		"bidder_id":  event.BidderID,
		"amount":     event.Amount,
	})

	if err := w.store.MarkEventProcessed(ctx, event.EventID, event.EventType); err != nil {
		w.logger.Error("Failed to mark event processed", zap.String("event_id", event.EventID), zap.Error(err))
	}
	return nil
}

// handleAuctionEnded notifies the owner and all bidders about the outcome.
// The winner gets a personalized message; everyone else gets the winner's
// name.
func (w *NotificationWorker) handleAuctionEnded(ctx context.Context, event *models.AuctionEndedEvent) error {
	processed, err := w.store.IsEventProcessed(ctx, event.EventID)
	if err != nil {
		return fmt.Errorf("failed to check event status: %w", err)
	}
	if processed {
		w.logger.Info("Event already processed, skipping", zap.String("event_id", event.EventID))
		return nil
	}

	auction, err := w.store.GetAuctionByID(ctx, event.AuctionID)
	if err != nil {
		return fmt.Errorf("failed to load auction %s: %w", event.AuctionID, err)
	}

	recipients, err := w.recipients(ctx, auction)
	if err != nil {
		return err
	}

	amount := "no bids"
	if event.Amount.Valid {
		amount = event.Amount.Decimal.StringFixed(2)
	}
	for _, userID := range recipients {
		message := fmt.Sprintf("%s won %q at %s", event.WinnerName, auction.Name, amount)
		if userID == event.WinnerUserID {
			message = fmt.Sprintf("You won %q at %s", auction.Name, amount)
		}
		w.notify(ctx, userID, models.NotificationAuctionEnded, auction.ID, message, "newBidNotification")
	}

	w.hub.Broadcast(ctx, "winnerSelected", map[string]interface{}{
		"auction_id":     event.AuctionID,
		"winner_bid_id":  event.WinnerBidID,
		"winner_user_id": event.WinnerUserID,
		"winner_name":    event.WinnerName,
		"amount":         event.Amount,
	})
	w.hub.Broadcast(ctx, "setStatus", map[string]interface{}{
		"auction_id": event.AuctionID,
		"status":     models.StatusOver,
	})

	if err := w.store.MarkEventProcessed(ctx, event.EventID, event.EventType); err != nil {
		w.logger.Error("Failed to mark event processed", zap.String("event_id", event.EventID), zap.Error(err))
	}
	return nil
}

// recipients is the auction owner plus every distinct bidder
func (w *NotificationWorker) recipients(ctx context.Context, auction *models.Auction) ([]string, error) {
	bidders, err := w.store.ListBidderIDsByAuction(ctx, auction.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list bidders for auction %s: %w", auction.ID, err)
	}

	seen := make(map[string]bool, len(bidders)+1)
	out := make([]string, 0, len(bidders)+1)
	for _, id := range append([]string{auction.BuyerID}, bidders...) {
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out, nil
}

// notify writes one notification and pushes it to the recipient's live
// session. A failure for one recipient is logged and counted but never
// blocks the rest.
func (w *NotificationWorker) notify(ctx context.Context, userID, nType, auctionID, message, liveEvent string) {
	n := &models.Notification{
		ID:        uuid.New().String(),
		UserID:    userID,
		Message:   message,
		Type:      nType,
		AuctionID: auctionID,
		Link:      fmt.Sprintf("/auctions/%s", auctionID),
		CreatedAt: time.Now(),
	}
	if err := w.store.CreateNotification(ctx, n); err != nil {
		util.NotificationFanoutFailures.Inc()
		w.logger.Error("Failed to create notification",
			zap.String("user_id", userID),
			zap.String("auction_id", auctionID),
			zap.Error(err))
		return
	}
	util.NotificationsCreatedTotal.Inc()
	w.hub.SendToUser(ctx, userID, liveEvent, n)
}
