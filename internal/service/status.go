package service

import (
	"time"

	"auction-service/internal/models"
)

// ComputeStatus derives an auction's lifecycle state from the clock and its
// time window. Over is terminal: once an auction has been closed no value
// of now moves it back, which is what makes redundant recomputation from
// the scheduler, the bid socket and the API safe.
func ComputeStatus(now, startTime, endTime time.Time, current models.AuctionStatus) models.AuctionStatus {
	if current == models.StatusOver {
		return models.StatusOver
	}
	if now.Before(startTime) {
		return models.StatusUpcoming
	}
	if now.Before(endTime) {
		return models.StatusActive
	}
	return models.StatusOver
}
