package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"auction-service/internal/models"

	"github.com/segmentio/kafka-go"
)

// EventPublisher handles publishing domain events
type EventPublisher struct {
	producer *Producer
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher(producer *Producer) *EventPublisher {
	return &EventPublisher{producer: producer}
}

// PublishAuctionCreated publishes AuctionCreated event
func (ep *EventPublisher) PublishAuctionCreated(ctx context.Context, event *models.AuctionCreatedEvent) error {
	key := fmt.Sprintf("auction-%s", event.AuctionID)
	return ep.producer.PublishEvent(ctx, key, event)
}

// PublishBidPlaced publishes BidPlaced event
func (ep *EventPublisher) PublishBidPlaced(ctx context.Context, event *models.BidPlacedEvent) error {
	key := fmt.Sprintf("auction-%s", event.AuctionID)
	return ep.producer.PublishEvent(ctx, key, event)
}

// PublishAuctionEnded publishes AuctionEnded event
func (ep *EventPublisher) PublishAuctionEnded(ctx context.Context, event *models.AuctionEndedEvent) error {
	key := fmt.Sprintf("auction-%s", event.AuctionID)
	return ep.producer.PublishEvent(ctx, key, event)
}

// PublishDeliveryConfirmed publishes DeliveryConfirmed event
func (ep *EventPublisher) PublishDeliveryConfirmed(ctx context.Context, event *models.DeliveryConfirmedEvent) error {
	key := fmt.Sprintf("auction-%s", event.AuctionID)
	return ep.producer.PublishEvent(ctx, key, event)
}

// EventHandler handles incoming events
type EventHandler struct {
	onBidPlaced    func(context.Context, *models.BidPlacedEvent) error
	onAuctionEnded func(context.Context, *models.AuctionEndedEvent) error
}

// NewEventHandler creates a new event handler
func NewEventHandler() *EventHandler {
	return &EventHandler{}
}

// OnBidPlaced registers a handler for BidPlaced events
func (eh *EventHandler) OnBidPlaced(handler func(context.Context, *models.BidPlacedEvent) error) {
	eh.onBidPlaced = handler
}

// OnAuctionEnded registers a handler for AuctionEnded events
func (eh *EventHandler) OnAuctionEnded(handler func(context.Context, *models.AuctionEndedEvent) error) {
	eh.onAuctionEnded = handler
}

// HandleMessage routes messages to appropriate handlers
func (eh *EventHandler) HandleMessage(ctx context.Context, msg kafka.Message) error {
	var baseEvent models.BaseEvent
	if err := json.Unmarshal(msg.Value, &baseEvent); err != nil {
		return fmt.Errorf("failed to unmarshal base event: %w", err)
	}

	log.Printf("Handling event: type=%s, id=%s", baseEvent.EventType, baseEvent.EventID)

	switch baseEvent.EventType {
	case models.EventTypeBidPlaced:
		if eh.onBidPlaced != nil {
			var event models.BidPlacedEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal BidPlaced event: %w", err)
			}
			return eh.onBidPlaced(ctx, &event)
		}

	case models.EventTypeAuctionEnded:
		if eh.onAuctionEnded != nil {
			var event models.AuctionEndedEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal AuctionEnded event: %w", err)
			}
			return eh.onAuctionEnded(ctx, &event)
		}

	default:
		log.Printf("Unhandled event type: %s", baseEvent.EventType)
	}

	return nil
}
