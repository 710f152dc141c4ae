package store

import (
	"context"
	"database/sql"

	"auction-service/internal/models"

	"github.com/google/uuid"
)

// EnsureCart returns the id of the user's cart, creating it when absent
func (s *Store) EnsureCart(ctx context.Context, userID string) (string, error) {
	var cartID string
	err := s.db.GetContext(ctx, &cartID,
		"SELECT id FROM carts WHERE user_id = $1", userID)
	if err == nil {
		return cartID, nil
	}
	if err != sql.ErrNoRows {
		return "", err
	}

	cartID = uuid.New().String()
	// Another finalize path may have created the cart in between; the
	// conflict clause folds both into the same row.
	err = s.db.GetContext(ctx, &cartID, `
		INSERT INTO carts (id, user_id) VALUES ($1, $2)
		ON CONFLICT (user_id) DO UPDATE SET user_id = EXCLUDED.user_id
		RETURNING id`,
		cartID, userID)
	return cartID, err
}

// AddCartItem adds an auction reference to a cart. Idempotent membership
// add.
func (s *Store) AddCartItem(ctx context.Context, cartID, auctionID string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO cart_items (cart_id, auction_id) VALUES ($1, $2)
		ON CONFLICT (cart_id, auction_id) DO NOTHING`,
		cartID, auctionID)
	return err
}

// ListCartAuctions returns the auctions referenced by a user's cart
func (s *Store) ListCartAuctions(ctx context.Context, userID string) ([]models.Auction, error) {
	var auctions []models.Auction
	err := s.db.SelectContext(ctx, &auctions, `
		SELECT a.* FROM auctions a
		JOIN cart_items ci ON ci.auction_id = a.id
		JOIN carts c ON c.id = ci.cart_id
		WHERE c.user_id = $1
		ORDER BY ci.added_at DESC`,
		userID)
	return auctions, err
}
