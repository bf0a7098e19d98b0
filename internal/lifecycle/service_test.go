package lifecycle

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"cueclub/internal/db"
	"cueclub/internal/events"
	"cueclub/internal/model"
)

type mockStore struct {
	mock.Mock
}

func (m *mockStore) CreateBookingWithChecks(ctx context.Context, b *model.Booking, now time.Time) error {
	args := m.Called(ctx, b, now)
	return args.Error(0)
}

func (m *mockStore) GetBooking(ctx context.Context, id int64) (*model.Booking, error) {
	args := m.Called(ctx, id)
	if b := args.Get(0); b != nil {
		return b.(*model.Booking), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockStore) UpdateBookingStatus(ctx context.Context, id int64, status string) error {
	args := m.Called(ctx, id, status)
	return args.Error(0)
}

func (m *mockStore) GetUserPendingBooking(ctx context.Context, userID int64) (*model.Booking, error) {
	args := m.Called(ctx, userID)
	if b := args.Get(0); b != nil {
		return b.(*model.Booking), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockStore) ListPendingBookings(ctx context.Context) ([]model.Booking, error) {
	args := m.Called(ctx)
	return args.Get(0).([]model.Booking), args.Error(1)
}

func (m *mockStore) ListUserBookings(ctx context.Context, userID int64, limit int) ([]model.Booking, error) {
	args := m.Called(ctx, userID, limit)
	return args.Get(0).([]model.Booking), args.Error(1)
}

func (m *mockStore) CreateMembershipRequest(ctx context.Context, r *model.MembershipRequest) error {
	args := m.Called(ctx, r)
	return args.Error(0)
}

func (m *mockStore) GetMembershipRequest(ctx context.Context, id int64) (*model.MembershipRequest, error) {
	args := m.Called(ctx, id)
	if r := args.Get(0); r != nil {
		return r.(*model.MembershipRequest), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockStore) GetUserMembership(ctx context.Context, userID int64) (*model.MembershipRequest, error) {
	args := m.Called(ctx, userID)
	if r := args.Get(0); r != nil {
		return r.(*model.MembershipRequest), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockStore) ListPendingMembershipRequests(ctx context.Context) ([]model.MembershipRequest, error) {
	args := m.Called(ctx)
	return args.Get(0).([]model.MembershipRequest), args.Error(1)
}

func (m *mockStore) ActivateMembership(ctx context.Context, id int64, activatedAt time.Time) error {
	args := m.Called(ctx, id, activatedAt)
	return args.Error(0)
}

func (m *mockStore) RejectMembership(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *mockStore) CancelMembership(ctx context.Context, userID int64) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

func newTestService(store Store) *Service {
	return NewService(store, events.NewBus(), zerolog.Nop())
}

func TestSubmitBooking_ComputesIntervalAndAmount(t *testing.T) {
	store := &mockStore{}
	store.On("CreateBookingWithChecks", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	svc := newTestService(store)
	start := time.Date(2026, 9, 1, 18, 0, 0, 0, time.Local)

	b, err := svc.SubmitBooking(context.Background(), BookingInput{
		UserID: 7, Name: "Ravi", Phone: "9991234567",
		Game: model.GameSnooker, Units: 2, StartTime: start,
		Method: model.PayCash,
	})
	require.NoError(t, err)

	assert.Equal(t, start.Add(time.Hour), b.EndTime)
	assert.Equal(t, 160, b.Amount)
	assert.NotEmpty(t, b.Ref)
	store.AssertExpectations(t)
}

func TestSubmitBooking_PoolFlatPriceIgnoresUnits(t *testing.T) {
	store := &mockStore{}
	store.On("CreateBookingWithChecks", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	svc := newTestService(store)
	start := time.Date(2026, 9, 1, 20, 0, 0, 0, time.Local)

	b, err := svc.SubmitBooking(context.Background(), BookingInput{
		UserID: 7, Name: "Ravi", Phone: "9991234567",
		Game: model.GameEightBallPool, Units: 3, StartTime: start,
		Method: model.PayCash,
	})
	require.NoError(t, err)

	assert.Equal(t, start.Add(time.Hour), b.EndTime)
	assert.Equal(t, 120, b.Amount)
}

func TestSubmitBooking_UPIRequiresUTR(t *testing.T) {
	store := &mockStore{}
	svc := newTestService(store)

	_, err := svc.SubmitBooking(context.Background(), BookingInput{
		UserID: 7, Name: "Ravi", Phone: "9991234567",
		Game: model.GameSnooker, Units: 1,
		StartTime: time.Date(2026, 9, 1, 18, 0, 0, 0, time.Local),
		Method:    model.PayUPI, UTR: "   ",
	})
	assert.ErrorIs(t, err, db.ErrUTRRequired)

	// Nothing was persisted.
	store.AssertNotCalled(t, "CreateBookingWithChecks", mock.Anything, mock.Anything, mock.Anything)
}

func TestSubmitBooking_Validation(t *testing.T) {
	svc := newTestService(&mockStore{})
	start := time.Date(2026, 9, 1, 18, 0, 0, 0, time.Local)

	_, err := svc.SubmitBooking(context.Background(), BookingInput{
		UserID: 7, Phone: "9991234567", Game: model.GameSnooker, StartTime: start,
	})
	assert.ErrorIs(t, err, ErrMissingFields)

	_, err = svc.SubmitBooking(context.Background(), BookingInput{
		UserID: 7, Name: "Ravi", Phone: "9991234567", Game: "carrom", StartTime: start,
	})
	assert.ErrorIs(t, err, ErrBadGame)
}

func TestSubmitBooking_StorePropagatesConflict(t *testing.T) {
	store := &mockStore{}
	store.On("CreateBookingWithChecks", mock.Anything, mock.Anything, mock.Anything).
		Return(db.ErrSlotNotAvailable)

	svc := newTestService(store)
	_, err := svc.SubmitBooking(context.Background(), BookingInput{
		UserID: 7, Name: "Ravi", Phone: "9991234567",
		Game: model.GameSnooker, Units: 1,
		StartTime: time.Date(2026, 9, 1, 18, 0, 0, 0, time.Local),
		Method:    model.PayCash,
	})
	assert.ErrorIs(t, err, db.ErrSlotNotAvailable)
}

func TestDecideBooking_PublishesEvent(t *testing.T) {
	store := &mockStore{}
	decided := &model.Booking{ID: 5, UserID: 7, Status: model.StatusApproved}
	store.On("UpdateBookingStatus", mock.Anything, int64(5), model.StatusApproved).Return(nil)
	store.On("GetBooking", mock.Anything, int64(5)).Return(decided, nil)

	bus := events.NewBus()
	var got []events.Event
	bus.Subscribe(events.TypeBookingDecided, func(e events.Event) { got = append(got, e) })

	svc := NewService(store, bus, zerolog.Nop())
	b, err := svc.ApproveBooking(context.Background(), 5)
	require.NoError(t, err)

	assert.Equal(t, model.StatusApproved, b.Status)
	require.Len(t, got, 1)
	assert.Equal(t, int64(5), got[0].RecordID)
	assert.Equal(t, int64(7), got[0].UserID)
}

func TestDecideBooking_TerminalRefusal(t *testing.T) {
	store := &mockStore{}
	store.On("UpdateBookingStatus", mock.Anything, int64(5), model.StatusRejected).
		Return(db.ErrTerminalStatus)

	svc := newTestService(store)
	_, err := svc.RejectBooking(context.Background(), 5)
	assert.ErrorIs(t, err, db.ErrTerminalStatus)
	store.AssertNotCalled(t, "GetBooking", mock.Anything, mock.Anything)
}

func TestApproveMembership_StampsActivation(t *testing.T) {
	store := &mockStore{}
	activated := time.Now()
	active := &model.MembershipRequest{
		ID: 9, UserID: 7, Status: model.MembershipActive, ActivatedAt: &activated,
	}
	store.On("ActivateMembership", mock.Anything, int64(9), mock.AnythingOfType("time.Time")).Return(nil)
	store.On("GetMembershipRequest", mock.Anything, int64(9)).Return(active, nil)

	svc := newTestService(store)
	m, err := svc.ApproveMembership(context.Background(), 9)
	require.NoError(t, err)
	assert.Equal(t, model.MembershipActive, m.Status)
	store.AssertExpectations(t)
}

func TestSubmitMembership_UPIRequiresUTR(t *testing.T) {
	store := &mockStore{}
	svc := newTestService(store)

	_, err := svc.SubmitMembership(context.Background(), MembershipInput{
		UserID: 7, FullName: "Ravi Kumar", Phone: "9991234567",
		GovtIDType: "aadhaar", GovtIDNo: "1234-5678-9012",
		Method: model.PayUPI,
	})
	assert.ErrorIs(t, err, db.ErrUTRRequired)
	store.AssertNotCalled(t, "CreateMembershipRequest", mock.Anything, mock.Anything)
}

func TestSubmitMembership_FixedFee(t *testing.T) {
	store := &mockStore{}
	store.On("CreateMembershipRequest", mock.Anything, mock.Anything).Return(nil)

	svc := newTestService(store)
	m, err := svc.SubmitMembership(context.Background(), MembershipInput{
		UserID: 7, FullName: "Ravi Kumar", Phone: "9991234567",
		GovtIDType: "pan", GovtIDNo: "ABCDE1234F",
		Method: model.PayCash,
	})
	require.NoError(t, err)
	assert.Equal(t, MembershipFee, m.Fee)
}

func TestPendingApprovals_MergedAndOrdered(t *testing.T) {
	store := &mockStore{}
	base := time.Date(2026, 9, 1, 10, 0, 0, 0, time.Local)

	store.On("ListPendingBookings", mock.Anything).Return([]model.Booking{
		{
			ID: 1, Name: "Ravi", Phone: "999", Game: model.GameSnooker,
			StartTime: base.Add(8 * time.Hour), EndTime: base.Add(8*time.Hour + 30*time.Minute),
			Amount: 80, Method: model.PayCash, CreatedAt: base.Add(2 * time.Hour),
		},
	}, nil)
	store.On("ListPendingMembershipRequests", mock.Anything).Return([]model.MembershipRequest{
		{ID: 2, FullName: "Asha", Phone: "888", Fee: 5000, Method: model.PayUPI,
			UTR: "UTR123", RequestedAt: base.Add(time.Hour)},
	}, nil)

	svc := newTestService(store)
	items, err := svc.PendingApprovals(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 2)

	// Oldest first regardless of kind.
	assert.Equal(t, model.ApprovalMembership, items[0].Kind)
	assert.Equal(t, model.ApprovalBooking, items[1].Kind)
	assert.Contains(t, items[1].Detail, "Snooker")
	assert.Contains(t, items[1].Detail, "18:00-18:30")
}

// overlapStore reproduces the store's submission sequence for the
// single-pending rule: read the user's open pending booking, branch, then
// insert. The rendezvous holds every caller between the read and the
// insert until all of them have read.
type overlapStore struct {
	mockStore
	rendezvous sync.WaitGroup

	mu      sync.Mutex
	pending []*model.Booking
}

func (s *overlapStore) CreateBookingWithChecks(_ context.Context, b *model.Booking, _ time.Time) error {
	s.mu.Lock()
	open := len(s.pending) > 0
	s.mu.Unlock()

	s.rendezvous.Done()
	s.rendezvous.Wait()

	if open {
		return db.ErrPendingExists
	}
	s.mu.Lock()
	b.Status = model.StatusPending
	s.pending = append(s.pending, b)
	s.mu.Unlock()
	return nil
}

// The single-pending rule is a read-then-branch check, not a transactional
// one. Two submissions that both read before either writes each pass the
// check, and the user ends up with two pending bookings.
func TestSubmitBooking_PendingCheckWindow(t *testing.T) {
	store := &overlapStore{}
	store.rendezvous.Add(2)
	svc := newTestService(store)

	day := time.Date(2026, 9, 1, 0, 0, 0, 0, time.Local)
	errs := make(chan error, 2)
	submit := func(hour int) {
		_, err := svc.SubmitBooking(context.Background(), BookingInput{
			UserID: 7, Name: "Ravi", Phone: "9991234567",
			Game: model.GameSnooker, Units: 1,
			StartTime: day.Add(time.Duration(hour) * time.Hour),
			Method:    model.PayCash,
		})
		errs <- err
	}

	go submit(15)
	go submit(18)
	require.NoError(t, <-errs)
	require.NoError(t, <-errs)

	store.mu.Lock()
	defer store.mu.Unlock()
	assert.Len(t, store.pending, 2)
}
