package reminder

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"cueclub/internal/model"
)

type fakeStore struct {
	mu       sync.Mutex
	bookings []model.Booking
	marked   []int64
}

func (f *fakeStore) GetUpcomingApprovedBookings(context.Context, time.Duration) ([]model.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.bookings, nil
}

func (f *fakeStore) MarkReminderSent(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.marked = append(f.marked, id)
	return nil
}

type fakeNotifier struct {
	mu       sync.Mutex
	notified []int64
}

func (f *fakeNotifier) NotifyReminder(_ context.Context, b model.Booking) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notified = append(f.notified, b.ID)
	return nil
}

func TestCheckNowSendsInsideWindow(t *testing.T) {
	now := time.Now()
	store := &fakeStore{bookings: []model.Booking{
		{ID: 1, UserID: 10, StartTime: now.Add(time.Hour)},     // inside lead time
		{ID: 2, UserID: 20, StartTime: now.Add(3 * time.Hour)}, // too early
		{ID: 3, UserID: 30, StartTime: now.Add(30 * time.Minute), ReminderSent: true},
	}}
	notifier := &fakeNotifier{}

	svc := NewService(Config{LeadTime: 2 * time.Hour}, store, notifier, zerolog.Nop())
	svc.CheckNow()

	assert.ElementsMatch(t, []int64{1}, notifier.notified)
	assert.ElementsMatch(t, []int64{1}, store.marked)
}

func TestStartStopIdempotent(t *testing.T) {
	store := &fakeStore{}
	svc := NewService(Config{CheckInterval: time.Hour}, store, &fakeNotifier{}, zerolog.Nop())

	svc.Start()
	svc.Start() // second start is a no-op
	svc.Stop()
	svc.Stop() // second stop is a no-op
}

func TestDefaultsApplied(t *testing.T) {
	svc := NewService(Config{}, &fakeStore{}, &fakeNotifier{}, zerolog.Nop())
	assert.Equal(t, DefaultConfig().CheckInterval, svc.config.CheckInterval)
	assert.Equal(t, DefaultConfig().LeadTime, svc.config.LeadTime)
	assert.Equal(t, DefaultConfig().MaxConcurrent, svc.config.MaxConcurrent)
}
