package service

import (
	"context"
	"testing"
	"time"

	"auction-service/internal/auctionerrors"
	"auction-service/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDeliveryFixture(t *testing.T) (*DeliveryService, *fakeStore, *fakePublisher, time.Time) {
	t.Helper()

	st := newFakeStore()
	pub := &fakePublisher{}
	svc := NewDeliveryService(st, pub)

	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	st.users["supplier-1"] = &models.User{ID: "supplier-1", FullName: "Fresh Farms", Role: models.RoleSupplier}

	winner := "b1"
	expected := now.Add(48 * time.Hour)
	st.auctions["a1"] = &models.Auction{
		ID:                   "a1",
		BuyerID:              "buyer-1",
		Status:               models.StatusOver,
		WinnerBidID:          &winner,
		DeliveryStatus:       models.DeliveryPending,
		ExpectedDeliveryDate: &expected,
	}
	st.bids = append(st.bids, models.Bid{
		ID:        "b1",
		AuctionID: "a1",
		BidderID:  "supplier-1",
		Amount:    decimal.NewFromInt(700),
	})

	return svc, st, pub, now
}

func TestUpdateDeliveryStatus(t *testing.T) {
	svc, st, _, _ := newDeliveryFixture(t)
	ctx := context.Background()

	a, err := svc.UpdateDeliveryStatus(ctx, "a1", models.DeliveryInTransit, "left the warehouse")
	require.NoError(t, err)
	assert.Equal(t, models.DeliveryInTransit, a.DeliveryStatus)
	assert.Equal(t, "left the warehouse", a.DeliveryNotes)
	assert.Equal(t, models.DeliveryInTransit, st.auctions["a1"].DeliveryStatus)

	_, err = svc.UpdateDeliveryStatus(ctx, "a1", "teleported", "")
	assert.ErrorIs(t, err, auctionerrors.ErrValidation)

	// Delivered only via confirmation
	_, err = svc.UpdateDeliveryStatus(ctx, "a1", models.DeliveryDelivered, "")
	assert.ErrorIs(t, err, auctionerrors.ErrValidation)
}

func TestUpdateDeliveryStatusRequiresWinner(t *testing.T) {
	svc, st, _, _ := newDeliveryFixture(t)
	st.auctions["a1"].WinnerBidID = nil

	_, err := svc.UpdateDeliveryStatus(context.Background(), "a1", models.DeliveryInTransit, "")
	assert.ErrorIs(t, err, auctionerrors.ErrInvalidState)
}

func TestConfirmDeliveryOnTime(t *testing.T) {
	svc, st, pub, now := newDeliveryFixture(t)
	ctx := context.Background()

	actual := now.Add(24 * time.Hour) // a day before the expected date
	a, err := svc.ConfirmDelivery(ctx, "a1", actual, "all good")
	require.NoError(t, err)

	assert.Equal(t, models.DeliveryDelivered, a.DeliveryStatus)
	assert.True(t, a.DeliveryConfirmed)
	require.NotNil(t, a.ActualDeliveryDate)
	assert.Equal(t, actual, *a.ActualDeliveryDate)
	require.NotNil(t, a.DeliveryConfirmedAt)

	m := st.metrics["supplier-1"]
	assert.Equal(t, 1, m.TotalDeliveries)
	assert.Equal(t, 1, m.OnTimeDeliveries)
	assert.Equal(t, float64(100), m.OnTimeDeliveryRate)
	assert.True(t, m.TotalEarnings.Equal(decimal.NewFromInt(700)))
	assert.True(t, m.IsActiveSupplier)

	require.Len(t, pub.confirmed, 1)
	assert.True(t, pub.confirmed[0].OnTime)
	assert.Equal(t, "supplier-1", pub.confirmed[0].SupplierID)
}

func TestConfirmDeliveryLate(t *testing.T) {
	svc, st, pub, now := newDeliveryFixture(t)

	actual := now.Add(72 * time.Hour) // past the 48h expected date
	_, err := svc.ConfirmDelivery(context.Background(), "a1", actual, "")
	require.NoError(t, err)

	m := st.metrics["supplier-1"]
	assert.Equal(t, 1, m.TotalDeliveries)
	assert.Equal(t, 0, m.OnTimeDeliveries)
	assert.Equal(t, float64(0), m.OnTimeDeliveryRate)

	require.Len(t, pub.confirmed, 1)
	assert.False(t, pub.confirmed[0].OnTime)
}

func TestConfirmDeliveryWithoutExpectedDate(t *testing.T) {
	svc, st, _, now := newDeliveryFixture(t)
	st.auctions["a1"].ExpectedDeliveryDate = nil

	// No expected date to judge against: counts toward totals, not on-time
	_, err := svc.ConfirmDelivery(context.Background(), "a1", now, "")
	require.NoError(t, err)

	m := st.metrics["supplier-1"]
	assert.Equal(t, 1, m.TotalDeliveries)
	assert.Equal(t, 0, m.OnTimeDeliveries)
}

func TestConfirmDeliveryOnlyOnce(t *testing.T) {
	svc, _, pub, now := newDeliveryFixture(t)
	ctx := context.Background()

	_, err := svc.ConfirmDelivery(ctx, "a1", now, "")
	require.NoError(t, err)

	_, err = svc.ConfirmDelivery(ctx, "a1", now, "")
	assert.ErrorIs(t, err, auctionerrors.ErrInvalidState)
	assert.Len(t, pub.confirmed, 1)

	// Sub-state updates are frozen after confirmation too
	_, err = svc.UpdateDeliveryStatus(ctx, "a1", models.DeliveryDelayed, "")
	assert.ErrorIs(t, err, auctionerrors.ErrInvalidState)
}

func TestConfirmDeliveryRequiresWinner(t *testing.T) {
	svc, st, _, now := newDeliveryFixture(t)
	st.auctions["a1"].WinnerBidID = nil

	_, err := svc.ConfirmDelivery(context.Background(), "a1", now, "")
	assert.ErrorIs(t, err, auctionerrors.ErrInvalidState)
}

func TestReliabilityScoreBounds(t *testing.T) {
	// Rate 100 with deep experience caps at 100
	assert.Equal(t, float64(100), reliabilityScore(100, 50))

	// Experience component caps at 40 points
	assert.Equal(t, float64(40), reliabilityScore(0, 1000))

	// Fresh supplier, one on-time delivery: 60 + 2
	assert.Equal(t, float64(62), reliabilityScore(100, 1))

	// Fresh supplier, one late delivery
	assert.Equal(t, float64(2), reliabilityScore(0, 1))

	// Never negative, never above 100
	for _, rate := range []float64{0, 25, 50, 75, 100} {
		for _, total := range []int{0, 1, 10, 100} {
			score := reliabilityScore(rate, total)
			assert.GreaterOrEqual(t, score, float64(0))
			assert.LessOrEqual(t, score, float64(100))
		}
	}
}

func TestRecordDeliveryAccumulates(t *testing.T) {
	svc, st, _, _ := newDeliveryFixture(t)
	ctx := context.Background()

	require.NoError(t, svc.RecordDelivery(ctx, "supplier-1", true, decimal.NewFromInt(100)))

	// The fake keeps metrics outside the user row; fold them back in the
	// way the SQL update would.
	m := st.metrics["supplier-1"]
	u := st.users["supplier-1"]
	u.TotalDeliveries = m.TotalDeliveries
	u.OnTimeDeliveries = m.OnTimeDeliveries
	u.TotalEarnings = m.TotalEarnings

	require.NoError(t, svc.RecordDelivery(ctx, "supplier-1", false, decimal.NewFromInt(200)))

	m = st.metrics["supplier-1"]
	assert.Equal(t, 2, m.TotalDeliveries)
	assert.Equal(t, 1, m.OnTimeDeliveries)
	assert.Equal(t, float64(50), m.OnTimeDeliveryRate)
	assert.True(t, m.TotalEarnings.Equal(decimal.NewFromInt(300)))
	assert.Equal(t, float64(34), m.ReliabilityScore) // 50*0.6 + 2*2
}
