package store

import (
	"context"
	"fmt"

	"auction-service/internal/auctionerrors"
	"auction-service/internal/models"
)

// CreateNotification persists one fan-out message for one user
func (s *Store) CreateNotification(ctx context.Context, n *models.Notification) error {
	query := `
		INSERT INTO notifications (id, user_id, message, type, auction_id, link)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at`

	return s.db.QueryRowxContext(ctx, query,
		n.ID, n.UserID, n.Message, n.Type, n.AuctionID, n.Link,
	).Scan(&n.CreatedAt)
}

// ListNotificationsByUser returns a user's notifications, newest-first
func (s *Store) ListNotificationsByUser(ctx context.Context, userID string) ([]models.Notification, error) {
	var notifications []models.Notification
	err := s.db.SelectContext(ctx, &notifications,
		"SELECT * FROM notifications WHERE user_id = $1 ORDER BY created_at DESC", userID)
	return notifications, err
}

// MarkNotificationRead flips the read flag
func (s *Store) MarkNotificationRead(ctx context.Context, notificationID string) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE notifications SET read = TRUE WHERE id = $1", notificationID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("notification %s: %w", notificationID, auctionerrors.ErrNotFound)
	}
	return nil
}
