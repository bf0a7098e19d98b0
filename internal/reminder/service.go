// Package reminder sends a heads-up to members shortly before their
// approved table time.
package reminder

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"cueclub/internal/model"
)

// Config holds the reminder loop settings.
type Config struct {
	// CheckInterval is how often to scan for upcoming bookings.
	CheckInterval time.Duration

	// LeadTime is how far before the slot start the reminder goes out.
	LeadTime time.Duration

	// MaxConcurrent limits parallel notification sends.
	MaxConcurrent int
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		CheckInterval: 10 * time.Minute,
		LeadTime:      2 * time.Hour,
		MaxConcurrent: 10,
	}
}

// Store is the booking surface the reminder loop scans.
type Store interface {
	GetUpcomingApprovedBookings(ctx context.Context, lookAhead time.Duration) ([]model.Booking, error)
	MarkReminderSent(ctx context.Context, id int64) error
}

// Notifier delivers a reminder to the booking's owner.
type Notifier interface {
	NotifyReminder(ctx context.Context, booking model.Booking) error
}

// Service scans for approved bookings entering the reminder window and
// notifies their owners once each.
type Service struct {
	config   Config
	store    Store
	notifier Notifier
	logger   zerolog.Logger

	stopCh  chan struct{}
	wg      sync.WaitGroup
	mu      sync.Mutex
	running bool
}

// NewService creates a reminder service. Zero config fields fall back to
// defaults.
func NewService(config Config, store Store, notifier Notifier, logger zerolog.Logger) *Service {
	def := DefaultConfig()
	if config.CheckInterval == 0 {
		config.CheckInterval = def.CheckInterval
	}
	if config.LeadTime == 0 {
		config.LeadTime = def.LeadTime
	}
	if config.MaxConcurrent == 0 {
		config.MaxConcurrent = def.MaxConcurrent
	}
	return &Service{
		config:   config,
		store:    store,
		notifier: notifier,
		logger:   logger.With().Str("component", "reminder").Logger(),
		stopCh:   make(chan struct{}),
	}
}

// Start begins the check loop.
func (s *Service) Start() {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.mu.Unlock()

	s.wg.Add(1)
	go s.loop()

	s.logger.Info().
		Dur("check_interval", s.config.CheckInterval).
		Dur("lead_time", s.config.LeadTime).
		Msg("reminder service started")
}

// Stop shuts the loop down and waits for in-flight sends.
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.mu.Unlock()

	close(s.stopCh)
	s.wg.Wait()
	s.logger.Info().Msg("reminder service stopped")
}

func (s *Service) loop() {
	defer s.wg.Done()

	s.check()

	ticker := time.NewTicker(s.config.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.check()
		}
	}
}

func (s *Service) check() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	// Scan slightly past the lead time so a slow tick cannot skip anyone.
	bookings, err := s.store.GetUpcomingApprovedBookings(ctx, s.config.LeadTime+s.config.CheckInterval)
	if err != nil {
		s.logger.Error().Err(err).Msg("scan upcoming bookings")
		return
	}
	if len(bookings) == 0 {
		return
	}

	sem := make(chan struct{}, s.config.MaxConcurrent)
	var wg sync.WaitGroup

	now := time.Now()
	for _, booking := range bookings {
		if booking.ReminderSent {
			continue
		}
		if now.Before(booking.StartTime.Add(-s.config.LeadTime)) {
			continue
		}

		wg.Add(1)
		sem <- struct{}{}
		go func(b model.Booking) {
			defer wg.Done()
			defer func() { <-sem }()
			s.send(ctx, b)
		}(booking)
	}
	wg.Wait()
}

func (s *Service) send(ctx context.Context, b model.Booking) {
	if err := s.notifier.NotifyReminder(ctx, b); err != nil {
		s.logger.Error().Err(err).
			Int64("booking_id", b.ID).
			Int64("user_id", b.UserID).
			Msg("send reminder")
		return
	}

	if err := s.store.MarkReminderSent(ctx, b.ID); err != nil {
		// The notification went out; log and move on rather than resend.
		s.logger.Error().Err(err).Int64("booking_id", b.ID).Msg("mark reminder sent")
	}

	s.logger.Info().
		Int64("booking_id", b.ID).
		Int64("user_id", b.UserID).
		Time("start", b.StartTime).
		Msg("reminder sent")
}

// CheckNow triggers an immediate scan, bypassing the ticker.
func (s *Service) CheckNow() {
	s.check()
}
