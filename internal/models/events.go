package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Event types
const (
	EventTypeAuctionCreated    = "AUCTION_CREATED"
	EventTypeBidPlaced         = "BID_PLACED"
	EventTypeAuctionEnded      = "AUCTION_ENDED"
	EventTypeDeliveryConfirmed = "DELIVERY_CONFIRMED"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// AuctionCreatedEvent published when a buyer posts a need
type AuctionCreatedEvent struct {
	BaseEvent
	AuctionID string    `json:"auction_id"`
	BuyerID   string    `json:"buyer_id"`
	Name      string    `json:"name"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
}

// BidPlacedEvent published when a supplier bid is recorded
type BidPlacedEvent struct {
	BaseEvent
	AuctionID  string          `json:"auction_id"`
	BidID      string          `json:"bid_id"`
	BidderID   string          `json:"bidder_id"`
	BidderName string          `json:"bidder_name"`
	Amount     decimal.Decimal `json:"amount"`
}

// AuctionEndedEvent published when an auction is finalized. WinnerBidID is
// nil when the auction closed with no bids.
type AuctionEndedEvent struct {
	BaseEvent
	AuctionID    string              `json:"auction_id"`
	WinnerBidID  *string             `json:"winner_bid_id,omitempty"`
	WinnerUserID string              `json:"winner_user_id,omitempty"`
	WinnerName   string              `json:"winner_name,omitempty"`
	Amount       decimal.NullDecimal `json:"amount,omitempty"`
}

// DeliveryConfirmedEvent published when a buyer confirms delivery
type DeliveryConfirmedEvent struct {
	BaseEvent
	AuctionID  string          `json:"auction_id"`
	SupplierID string          `json:"supplier_id"`
	OnTime     bool            `json:"on_time"`
	Amount     decimal.Decimal `json:"amount"`
}
