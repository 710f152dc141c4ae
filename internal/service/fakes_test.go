package service

import (
	"context"
	"fmt"
	"time"

	"auction-service/internal/auctionerrors"
	"auction-service/internal/models"
	"auction-service/internal/store"

	"github.com/shopspring/decimal"
)

// fakeStore is an in-memory stand-in for the Postgres store that mirrors
// its compare-and-set semantics.
type fakeStore struct {
	auctions  map[string]*models.Auction
	users     map[string]*models.User
	bids      []models.Bid
	carts     map[string]string   // userID -> cartID
	cartItems map[string][]string // cartID -> auctionIDs
	metrics   map[string]store.SupplierMetrics

	closeAuctionCalls int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		auctions:  make(map[string]*models.Auction),
		users:     make(map[string]*models.User),
		carts:     make(map[string]string),
		cartItems: make(map[string][]string),
		metrics:   make(map[string]store.SupplierMetrics),
	}
}

func (f *fakeStore) CreateAuction(_ context.Context, auction *models.Auction) error {
	cp := *auction
	f.auctions[auction.ID] = &cp
	return nil
}

func (f *fakeStore) GetAuctionByID(_ context.Context, id string) (*models.Auction, error) {
	a, ok := f.auctions[id]
	if !ok {
		return nil, fmt.Errorf("auction %s: %w", id, auctionerrors.ErrNotFound)
	}
	cp := *a
	return &cp, nil
}

func (f *fakeStore) ListAuctions(_ context.Context, _ store.AuctionFilter) ([]models.Auction, error) {
	var out []models.Auction
	for _, a := range f.auctions {
		out = append(out, *a)
	}
	return out, nil
}

func (f *fakeStore) ListAuctionsByBuyer(_ context.Context, buyerID string) ([]models.Auction, error) {
	var out []models.Auction
	for _, a := range f.auctions {
		if a.BuyerID == buyerID {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (f *fakeStore) UpdateAuctionStatus(_ context.Context, auctionID string, status models.AuctionStatus) error {
	a, ok := f.auctions[auctionID]
	if !ok {
		return fmt.Errorf("auction %s: %w", auctionID, auctionerrors.ErrNotFound)
	}
	a.Status = status
	return nil
}

func (f *fakeStore) MarkPaid(_ context.Context, auctionID string) error {
	a, ok := f.auctions[auctionID]
	if !ok {
		return fmt.Errorf("auction %s: %w", auctionID, auctionerrors.ErrNotFound)
	}
	a.Paid = true
	return nil
}

func (f *fakeStore) DeleteAuctionTx(_ context.Context, auctionID string) error {
	if _, ok := f.auctions[auctionID]; !ok {
		return fmt.Errorf("auction %s: %w", auctionID, auctionerrors.ErrNotFound)
	}
	delete(f.auctions, auctionID)
	var kept []models.Bid
	for _, b := range f.bids {
		if b.AuctionID != auctionID {
			kept = append(kept, b)
		}
	}
	f.bids = kept
	return nil
}

func (f *fakeStore) GetUserByID(_ context.Context, id string) (*models.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, fmt.Errorf("user %s: %w", id, auctionerrors.ErrNotFound)
	}
	cp := *u
	return &cp, nil
}

func (f *fakeStore) CreateBid(_ context.Context, bid *models.Bid) error {
	if bid.CreatedAt.IsZero() {
		bid.CreatedAt = time.Now()
	}
	f.bids = append(f.bids, *bid)
	return nil
}

func (f *fakeStore) GetBidByID(_ context.Context, id string) (*models.Bid, error) {
	for _, b := range f.bids {
		if b.ID == id {
			cp := b
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("bid %s: %w", id, auctionerrors.ErrNotFound)
}

func (f *fakeStore) ListBidsByAuction(_ context.Context, auctionID string) ([]models.Bid, error) {
	var out []models.Bid
	for _, b := range f.bids {
		if b.AuctionID == auctionID {
			out = append(out, b)
		}
	}
	return out, nil
}

func (f *fakeStore) ListBidsByBidder(_ context.Context, bidderID string) ([]models.Bid, error) {
	var out []models.Bid
	for _, b := range f.bids {
		if b.BidderID == bidderID {
			out = append(out, b)
		}
	}
	return out, nil
}

func (f *fakeStore) UpdateLowestBid(_ context.Context, auctionID, bidID string, amount decimal.Decimal) (bool, error) {
	a, ok := f.auctions[auctionID]
	if !ok {
		return false, nil
	}
	if a.Finalized {
		return false, nil
	}
	if a.LowestBidAmount.Valid && !a.LowestBidAmount.Decimal.GreaterThan(amount) {
		return false, nil
	}
	a.LowestBidAmount = decimal.NullDecimal{Decimal: amount, Valid: true}
	a.WinnerBidID = &bidID
	return true, nil
}

func (f *fakeStore) CloseAuction(_ context.Context, auctionID string, winnerBidID *string, amount decimal.NullDecimal) (bool, error) {
	f.closeAuctionCalls++
	a, ok := f.auctions[auctionID]
	if !ok {
		return false, nil
	}
	if a.Finalized {
		return false, nil
	}
	a.Status = models.StatusOver
	a.Finalized = true
	a.WinnerBidID = winnerBidID
	a.LowestBidAmount = amount
	return true, nil
}

func (f *fakeStore) EnsureCart(_ context.Context, userID string) (string, error) {
	if id, ok := f.carts[userID]; ok {
		return id, nil
	}
	id := "cart-" + userID
	f.carts[userID] = id
	return id, nil
}

func (f *fakeStore) AddCartItem(_ context.Context, cartID, auctionID string) error {
	for _, existing := range f.cartItems[cartID] {
		if existing == auctionID {
			return nil
		}
	}
	f.cartItems[cartID] = append(f.cartItems[cartID], auctionID)
	return nil
}

func (f *fakeStore) UpdateDeliveryState(_ context.Context, auction *models.Auction) error {
	a, ok := f.auctions[auction.ID]
	if !ok {
		return fmt.Errorf("auction %s: %w", auction.ID, auctionerrors.ErrNotFound)
	}
	*a = *auction
	return nil
}

func (f *fakeStore) UpdateSupplierMetrics(_ context.Context, userID string, m store.SupplierMetrics) error {
	if _, ok := f.users[userID]; !ok {
		return fmt.Errorf("user %s: %w", userID, auctionerrors.ErrNotFound)
	}
	f.metrics[userID] = m
	return nil
}

// fakePublisher records every published event
type fakePublisher struct {
	created   []*models.AuctionCreatedEvent
	placed    []*models.BidPlacedEvent
	ended     []*models.AuctionEndedEvent
	confirmed []*models.DeliveryConfirmedEvent
}

func (p *fakePublisher) PublishAuctionCreated(_ context.Context, e *models.AuctionCreatedEvent) error {
	p.created = append(p.created, e)
	return nil
}

func (p *fakePublisher) PublishBidPlaced(_ context.Context, e *models.BidPlacedEvent) error {
	p.placed = append(p.placed, e)
	return nil
}

func (p *fakePublisher) PublishAuctionEnded(_ context.Context, e *models.AuctionEndedEvent) error {
	p.ended = append(p.ended, e)
	return nil
}

func (p *fakePublisher) PublishDeliveryConfirmed(_ context.Context, e *models.DeliveryConfirmedEvent) error {
	p.confirmed = append(p.confirmed, e)
	return nil
}

// fakeCache is an in-memory lowest-bid cache
type fakeCache struct {
	amounts map[string]decimal.Decimal
}

func newFakeCache() *fakeCache {
	return &fakeCache{amounts: make(map[string]decimal.Decimal)}
}

func (c *fakeCache) SetLowestBid(_ context.Context, auctionID string, amount decimal.Decimal, _ time.Duration) error {
	c.amounts[auctionID] = amount
	return nil
}

func (c *fakeCache) GetLowestBid(_ context.Context, auctionID string) (decimal.Decimal, bool, error) {
	amount, ok := c.amounts[auctionID]
	return amount, ok, nil
}

func (c *fakeCache) InvalidateLowestBid(_ context.Context, auctionID string) error {
	delete(c.amounts, auctionID)
	return nil
}

// fakeLocker hands the lock to the first caller and refuses the rest until
// released
type fakeLocker struct {
	held map[string]bool
}

func newFakeLocker() *fakeLocker {
	return &fakeLocker{held: make(map[string]bool)}
}

func (l *fakeLocker) AcquireLock(_ context.Context, key string, _ time.Duration) (bool, error) {
	if l.held[key] {
		return false, nil
	}
	l.held[key] = true
	return true, nil
}

func (l *fakeLocker) ReleaseLock(_ context.Context, key string) error {
	delete(l.held, key)
	return nil
}
