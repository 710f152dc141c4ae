package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Role is the closed set of account types. Role checks happen through
// exhaustive switches, never through raw string comparison.
type Role string

const (
	RoleBuyer    Role = "buyer"
	RoleSupplier Role = "supplier"
	RoleAdmin    Role = "admin"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleBuyer, RoleSupplier, RoleAdmin:
		return true
	}
	return false
}

// CanBid reports whether an account with this role may place bids.
func (r Role) CanBid() bool {
	switch r {
	case RoleSupplier:
		return true
	case RoleBuyer, RoleAdmin:
		return false
	}
	return false
}

// AuctionStatus is the auction lifecycle state. Over is terminal.
type AuctionStatus string

const (
	StatusUpcoming AuctionStatus = "upcoming"
	StatusActive   AuctionStatus = "active"
	StatusOver     AuctionStatus = "over"
)

// Valid reports whether s is a known auction status.
func (s AuctionStatus) Valid() bool {
	switch s {
	case StatusUpcoming, StatusActive, StatusOver:
		return true
	}
	return false
}

// DeliveryStatus tracks the post-win delivery sub-state of an auction.
type DeliveryStatus string

const (
	DeliveryPending   DeliveryStatus = "pending"
	DeliveryInTransit DeliveryStatus = "in_transit"
	DeliveryDelivered DeliveryStatus = "delivered"
	DeliveryDelayed   DeliveryStatus = "delayed"
	DeliveryCancelled DeliveryStatus = "cancelled"
)

// Valid reports whether s is a known delivery status.
func (s DeliveryStatus) Valid() bool {
	switch s {
	case DeliveryPending, DeliveryInTransit, DeliveryDelivered, DeliveryDelayed, DeliveryCancelled:
		return true
	}
	return false
}

// User represents a marketplace account. Supplier reliability metrics are
// embedded and only ever mutated by the delivery confirmation flow.
type User struct {
	ID                 string          `db:"id" json:"id"`
	FullName           string          `db:"full_name" json:"full_name"`
	Email              string          `db:"email" json:"email"`
	Role               Role            `db:"role" json:"role"`
	TotalDeliveries    int             `db:"total_deliveries" json:"total_deliveries"`
	OnTimeDeliveries   int             `db:"on_time_deliveries" json:"on_time_deliveries"`
	OnTimeDeliveryRate float64         `db:"on_time_delivery_rate" json:"on_time_delivery_rate"`
	TotalEarnings      decimal.Decimal `db:"total_earnings" json:"total_earnings"`
	LastDeliveryDate   *time.Time      `db:"last_delivery_date" json:"last_delivery_date,omitempty"`
	ReliabilityScore   float64         `db:"reliability_score" json:"reliability_score"`
	IsActiveSupplier   bool            `db:"is_active_supplier" json:"is_active_supplier"`
	CreatedAt          time.Time       `db:"created_at" json:"created_at"`
}

// Auction represents one buyer need. The winner field references a Bid id,
// never a user id, and is assigned at most once. Status is derived data and
// can reach over before the winner pass runs; Finalized is set only by that
// pass and is what makes it run exactly once.
type Auction struct {
	ID              string              `db:"id" json:"id"`
	Name            string              `db:"name" json:"name"`
	Description     string              `db:"description" json:"description"`
	Quantity        int                 `db:"quantity" json:"quantity"`
	Budget          decimal.Decimal     `db:"budget" json:"budget"`
	CategoryID      string              `db:"category_id" json:"category_id"`
	BuyerID         string              `db:"buyer_id" json:"buyer_id"`
	Location        string              `db:"location" json:"location"`
	StartTime       time.Time           `db:"start_time" json:"start_time"`
	EndTime         time.Time           `db:"end_time" json:"end_time"`
	ImageURL        string              `db:"image_url" json:"image_url,omitempty"`
	Status          AuctionStatus       `db:"status" json:"status"`
	Finalized       bool                `db:"finalized" json:"finalized"`
	WinnerBidID     *string             `db:"winner_bid_id" json:"winner_bid_id,omitempty"`
	LowestBidAmount decimal.NullDecimal `db:"lowest_bid_amount" json:"lowest_bid_amount,omitempty"`
	Paid            bool                `db:"paid" json:"paid"`

	ExpectedDeliveryDate *time.Time     `db:"expected_delivery_date" json:"expected_delivery_date,omitempty"`
	ActualDeliveryDate   *time.Time     `db:"actual_delivery_date" json:"actual_delivery_date,omitempty"`
	DeliveryStatus       DeliveryStatus `db:"delivery_status" json:"delivery_status"`
	DeliveryConfirmed    bool           `db:"delivery_confirmed" json:"delivery_confirmed"`
	DeliveryConfirmedAt  *time.Time     `db:"delivery_confirmed_at" json:"delivery_confirmed_at,omitempty"`
	DeliveryNotes        string         `db:"delivery_notes" json:"delivery_notes,omitempty"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Bid is one supplier offer on one auction. Bids are immutable once written
// and are removed only as a cascade of auction deletion.
type Bid struct {
	ID        string          `db:"id" json:"id"`
	AuctionID string          `db:"auction_id" json:"auction_id"`
	BidderID  string          `db:"bidder_id" json:"bidder_id"`
	Amount    decimal.Decimal `db:"amount" json:"amount"`
	CreatedAt time.Time       `db:"created_at" json:"created_at"`
}

// Notification types
const (
	NotificationBidPlaced    = "BID_PLACED"
	NotificationAuctionEnded = "AUCTION_ENDED"
)

// Notification is one fan-out message instance for one user.
type Notification struct {
	ID        string    `db:"id" json:"id"`
	UserID    string    `db:"user_id" json:"user_id"`
	Message   string    `db:"message" json:"message"`
	Type      string    `db:"type" json:"type"`
	AuctionID string    `db:"auction_id" json:"auction_id"`
	Link      string    `db:"link" json:"link"`
	Read      bool      `db:"read" json:"read"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Cart holds the auctions a supplier has won. Created lazily on first win.
type Cart struct {
	ID        string    `db:"id" json:"id"`
	UserID    string    `db:"user_id" json:"user_id"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// CartItem is one won-auction reference inside a cart.
type CartItem struct {
	CartID    string    `db:"cart_id" json:"cart_id"`
	AuctionID string    `db:"auction_id" json:"auction_id"`
	AddedAt   time.Time `db:"added_at" json:"added_at"`
}

// ProcessedEvent for consumer-side idempotency
type ProcessedEvent struct {
	EventID     string    `db:"event_id"`
	EventType   string    `db:"event_type"`
	ProcessedAt time.Time `db:"processed_at"`
}
