package db

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cueclub/internal/model"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	database, err := NewDB(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	return database
}

func testUser(t *testing.T, database *DB, telegramID int64) *model.User {
	t.Helper()
	u, err := database.GetOrCreateUserByTelegramID(context.Background(), telegramID, "user", "Test", "User")
	require.NoError(t, err)
	return u
}

func testBooking(userID int64, start time.Time, game model.GameType, units int) *model.Booking {
	return &model.Booking{
		Ref:       "ref-" + start.Format("150405"),
		UserID:    userID,
		Name:      "Ravi",
		Phone:     "9991234567",
		Game:      game,
		Units:     units,
		StartTime: start,
		EndTime:   start.Add(time.Duration(30*units) * time.Minute),
		Amount:    80 * units,
		Method:    model.PayCash,
	}
}

func TestCreateBookingWithChecks_OverlapRejected(t *testing.T) {
	database := openTestDB(t)
	ctx := context.Background()

	u1 := testUser(t, database, 100)
	u2 := testUser(t, database, 200)

	day := time.Now().AddDate(0, 0, 3)
	start := time.Date(day.Year(), day.Month(), day.Day(), 10, 0, 0, 0, time.Local)

	first := testBooking(u1.ID, start, model.GameSnooker, 1)
	require.NoError(t, database.CreateBookingWithChecks(ctx, first, time.Now()))
	assert.Equal(t, model.StatusPending, first.Status)

	// Overlapping interval for a different user is refused.
	second := testBooking(u2.ID, start.Add(15*time.Minute), model.GameSnooker, 1)
	err := database.CreateBookingWithChecks(ctx, second, time.Now())
	assert.ErrorIs(t, err, ErrSlotNotAvailable)

	// Adjacent interval starting at the first's end is accepted.
	third := testBooking(u2.ID, start.Add(30*time.Minute), model.GameSnooker, 1)
	assert.NoError(t, database.CreateBookingWithChecks(ctx, third, time.Now()))
}

func TestCreateBookingWithChecks_RejectedBookingDoesNotBlock(t *testing.T) {
	database := openTestDB(t)
	ctx := context.Background()

	u1 := testUser(t, database, 100)
	u2 := testUser(t, database, 200)

	day := time.Now().AddDate(0, 0, 3)
	start := time.Date(day.Year(), day.Month(), day.Day(), 12, 0, 0, 0, time.Local)

	first := testBooking(u1.ID, start, model.GameSnooker, 1)
	require.NoError(t, database.CreateBookingWithChecks(ctx, first, time.Now()))
	require.NoError(t, database.UpdateBookingStatus(ctx, first.ID, model.StatusRejected))

	// The rejected booking released its interval.
	second := testBooking(u2.ID, start, model.GameSnooker, 1)
	assert.NoError(t, database.CreateBookingWithChecks(ctx, second, time.Now()))
}

func TestCreateBookingWithChecks_SinglePendingPerUser(t *testing.T) {
	database := openTestDB(t)
	ctx := context.Background()

	u := testUser(t, database, 100)
	day := time.Now().AddDate(0, 0, 3)
	start := time.Date(day.Year(), day.Month(), day.Day(), 14, 0, 0, 0, time.Local)

	first := testBooking(u.ID, start, model.GameSnooker, 1)
	require.NoError(t, database.CreateBookingWithChecks(ctx, first, time.Now()))

	// A second submission on a free slot still fails while one is pending.
	second := testBooking(u.ID, start.Add(2*time.Hour), model.GameSnooker, 1)
	err := database.CreateBookingWithChecks(ctx, second, time.Now())
	assert.ErrorIs(t, err, ErrPendingExists)

	// Once the first is decided, a new submission goes through.
	require.NoError(t, database.UpdateBookingStatus(ctx, first.ID, model.StatusApproved))
	assert.NoError(t, database.CreateBookingWithChecks(ctx, second, time.Now()))
}

func TestListUserBookings_FiltersAndOrders(t *testing.T) {
	database := openTestDB(t)
	ctx := context.Background()

	u := testUser(t, database, 100)
	other := testUser(t, database, 200)

	day := time.Now().AddDate(0, 0, 3)
	for i, hour := range []int{10, 12, 14} {
		start := time.Date(day.Year(), day.Month(), day.Day(), hour, 0, 0, 0, time.Local)
		b := testBooking(u.ID, start, model.GameSnooker, 1)
		require.NoError(t, database.CreateBookingWithChecks(ctx, b, time.Now()))
		if i < 2 {
			require.NoError(t, database.UpdateBookingStatus(ctx, b.ID, model.StatusApproved))
		}
	}
	foreign := testBooking(other.ID,
		time.Date(day.Year(), day.Month(), day.Day(), 16, 0, 0, 0, time.Local),
		model.GameSnooker, 1)
	require.NoError(t, database.CreateBookingWithChecks(ctx, foreign, time.Now()))

	got, err := database.ListUserBookings(ctx, u.ID, 2)
	require.NoError(t, err)
	require.Len(t, got, 2)

	// Newest first, other users' rows excluded.
	assert.Equal(t, 14, got[0].StartTime.Hour())
	assert.Equal(t, 12, got[1].StartTime.Hour())
	for _, b := range got {
		assert.Equal(t, u.ID, b.UserID)
	}
}

func TestUpdateBookingStatus_TerminalClosure(t *testing.T) {
	database := openTestDB(t)
	ctx := context.Background()

	u := testUser(t, database, 100)
	day := time.Now().AddDate(0, 0, 3)
	start := time.Date(day.Year(), day.Month(), day.Day(), 16, 0, 0, 0, time.Local)

	b := testBooking(u.ID, start, model.GameEightBallPool, 1)
	b.EndTime = start.Add(time.Hour)
	require.NoError(t, database.CreateBookingWithChecks(ctx, b, time.Now()))

	require.NoError(t, database.UpdateBookingStatus(ctx, b.ID, model.StatusRejected))

	// Approving a rejected booking is refused.
	err := database.UpdateBookingStatus(ctx, b.ID, model.StatusApproved)
	assert.ErrorIs(t, err, ErrTerminalStatus)

	got, err := database.GetBooking(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusRejected, got.Status)
}

func TestMembershipLifecycle(t *testing.T) {
	database := openTestDB(t)
	ctx := context.Background()

	u := testUser(t, database, 100)
	m := &model.MembershipRequest{
		UserID:     u.ID,
		FullName:   "Ravi Kumar",
		Phone:      "9991234567",
		Email:      "ravi@example.com",
		GovtIDType: "aadhaar",
		GovtIDNo:   "1234-5678-9012",
		Fee:        5000,
		Method:     model.PayCash,
	}
	require.NoError(t, database.CreateMembershipRequest(ctx, m))

	// Second application while one is pending is refused.
	err := database.CreateMembershipRequest(ctx, &model.MembershipRequest{
		UserID: u.ID, FullName: "Ravi Kumar", Phone: "9991234567",
		Email: "ravi@example.com", GovtIDType: "pan", GovtIDNo: "X", Fee: 5000,
		Method: model.PayCash,
	})
	assert.ErrorIs(t, err, ErrPendingExists)

	activatedAt := time.Now()
	require.NoError(t, database.ActivateMembership(ctx, m.ID, activatedAt))

	got, err := database.GetMembershipRequest(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, model.MembershipActive, got.Status)
	require.NotNil(t, got.ActivatedAt)
	assert.Equal(t, 30, got.RemainingDays(activatedAt))

	// Re-activating is refused: pending -> active is the only way in.
	assert.ErrorIs(t, database.ActivateMembership(ctx, m.ID, time.Now()), ErrTerminalStatus)

	// Cancellation clears status and the activation stamp.
	require.NoError(t, database.CancelMembership(ctx, u.ID))
	got, err = database.GetMembershipRequest(ctx, m.ID)
	require.NoError(t, err)
	assert.Empty(t, got.Status)
	assert.Nil(t, got.ActivatedAt)
}
