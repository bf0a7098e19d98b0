// Package lifecycle implements the booking lifecycle manager: submission
// validation, payment gating, the pending -> approved/rejected state machine
// and the merged admin review feed.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"cueclub/internal/db"
	"cueclub/internal/events"
	"cueclub/internal/metrics"
	"cueclub/internal/model"
	"cueclub/internal/slots"
)

// MembershipFee is the fixed 30-day membership price in rupees.
const MembershipFee = 5000

var (
	// ErrMissingFields is returned when a submission lacks required data.
	ErrMissingFields = errors.New("required fields missing")

	// ErrBadGame is returned for an unknown game type.
	ErrBadGame = errors.New("unknown game type")
)

// Store is the persistence surface the lifecycle manager drives.
type Store interface {
	CreateBookingWithChecks(ctx context.Context, b *model.Booking, now time.Time) error
	GetBooking(ctx context.Context, id int64) (*model.Booking, error)
	UpdateBookingStatus(ctx context.Context, id int64, status string) error
	GetUserPendingBooking(ctx context.Context, userID int64) (*model.Booking, error)
	ListPendingBookings(ctx context.Context) ([]model.Booking, error)
	ListUserBookings(ctx context.Context, userID int64, limit int) ([]model.Booking, error)

	CreateMembershipRequest(ctx context.Context, m *model.MembershipRequest) error
	GetMembershipRequest(ctx context.Context, id int64) (*model.MembershipRequest, error)
	GetUserMembership(ctx context.Context, userID int64) (*model.MembershipRequest, error)
	ListPendingMembershipRequests(ctx context.Context) ([]model.MembershipRequest, error)
	ActivateMembership(ctx context.Context, id int64, activatedAt time.Time) error
	RejectMembership(ctx context.Context, id int64) error
	CancelMembership(ctx context.Context, userID int64) error
}

// Service coordinates booking and membership state transitions.
type Service struct {
	store  Store
	bus    *events.Bus
	logger zerolog.Logger
	now    func() time.Time
}

// NewService creates a lifecycle service over the given store.
func NewService(store Store, bus *events.Bus, logger zerolog.Logger) *Service {
	return &Service{
		store:  store,
		bus:    bus,
		logger: logger.With().Str("component", "lifecycle").Logger(),
		now:    time.Now,
	}
}

// BookingInput carries the fields of a booking submission.
type BookingInput struct {
	UserID    int64
	Name      string
	Phone     string
	Game      model.GameType
	Units     int
	StartTime time.Time
	Method    string
	UTR       string
}

// SubmitBooking validates the input, computes the interval and price, and
// persists the booking in pending status. UPI submissions without a UTR are
// refused before anything is written.
func (s *Service) SubmitBooking(ctx context.Context, in BookingInput) (*model.Booking, error) {
	if in.Name == "" || in.Phone == "" || in.StartTime.IsZero() {
		return nil, ErrMissingFields
	}
	if !in.Game.Valid() {
		return nil, ErrBadGame
	}
	if in.Units < 1 {
		in.Units = 1
	}
	if in.Method == model.PayUPI && strings.TrimSpace(in.UTR) == "" {
		metrics.IncSubmitRejected("utr_missing")
		return nil, db.ErrUTRRequired
	}

	b := &model.Booking{
		Ref:       newRef(),
		UserID:    in.UserID,
		Name:      in.Name,
		Phone:     in.Phone,
		Game:      in.Game,
		Units:     in.Units,
		StartTime: in.StartTime,
		EndTime:   in.StartTime.Add(slots.GameDuration(in.Game, in.Units)),
		Amount:    slots.GameAmount(in.Game, in.Units),
		Method:    in.Method,
		UTR:       strings.TrimSpace(in.UTR),
	}

	if err := s.store.CreateBookingWithChecks(ctx, b, s.now()); err != nil {
		switch {
		case errors.Is(err, db.ErrSlotNotAvailable):
			metrics.IncSubmitRejected("slot_taken")
		case errors.Is(err, db.ErrSlotInPast):
			metrics.IncSubmitRejected("slot_past")
		case errors.Is(err, db.ErrPendingExists):
			metrics.IncSubmitRejected("pending_exists")
		}
		return nil, err
	}

	metrics.IncBookingCreated(b.Method)
	s.logger.Info().
		Str("ref", b.Ref).
		Int64("user_id", b.UserID).
		Str("game", string(b.Game)).
		Time("start", b.StartTime).
		Msg("booking submitted")

	s.bus.Publish(events.Event{
		Type:     events.TypeBookingCreated,
		RecordID: b.ID,
		UserID:   b.UserID,
		Status:   b.Status,
	})
	return b, nil
}

// PendingBooking returns the user's open pending booking, or nil. The bot
// shows a read-only card instead of the booking flow while one exists.
func (s *Service) PendingBooking(ctx context.Context, userID int64) (*model.Booking, error) {
	return s.store.GetUserPendingBooking(ctx, userID)
}

// UserBookings returns the user's recent bookings, newest first.
func (s *Service) UserBookings(ctx context.Context, userID int64, limit int) ([]model.Booking, error) {
	return s.store.ListUserBookings(ctx, userID, limit)
}

// ApproveBooking moves a pending booking to approved.
func (s *Service) ApproveBooking(ctx context.Context, id int64) (*model.Booking, error) {
	return s.decideBooking(ctx, id, model.StatusApproved)
}

// RejectBooking moves a pending booking to rejected, releasing its slot.
func (s *Service) RejectBooking(ctx context.Context, id int64) (*model.Booking, error) {
	return s.decideBooking(ctx, id, model.StatusRejected)
}

func (s *Service) decideBooking(ctx context.Context, id int64, status string) (*model.Booking, error) {
	if err := s.store.UpdateBookingStatus(ctx, id, status); err != nil {
		return nil, err
	}
	b, err := s.store.GetBooking(ctx, id)
	if err != nil {
		return nil, err
	}

	metrics.IncAdminDecision("booking", status)
	s.logger.Info().
		Int64("booking_id", id).
		Str("status", status).
		Msg("booking decided")

	s.bus.Publish(events.Event{
		Type:     events.TypeBookingDecided,
		RecordID: b.ID,
		UserID:   b.UserID,
		Status:   b.Status,
	})
	return b, nil
}

// MembershipInput carries the fields of a membership application.
type MembershipInput struct {
	UserID     int64
	FullName   string
	Phone      string
	Email      string
	GovtIDType string
	GovtIDNo   string
	Method     string
	UTR        string
}

// SubmitMembership validates and persists a pending membership application.
func (s *Service) SubmitMembership(ctx context.Context, in MembershipInput) (*model.MembershipRequest, error) {
	if in.FullName == "" || in.Phone == "" || in.GovtIDType == "" || in.GovtIDNo == "" {
		return nil, ErrMissingFields
	}
	if in.Method == model.PayUPI && strings.TrimSpace(in.UTR) == "" {
		metrics.IncSubmitRejected("utr_missing")
		return nil, db.ErrUTRRequired
	}

	m := &model.MembershipRequest{
		UserID:     in.UserID,
		FullName:   in.FullName,
		Phone:      in.Phone,
		Email:      in.Email,
		GovtIDType: in.GovtIDType,
		GovtIDNo:   in.GovtIDNo,
		Fee:        MembershipFee,
		Method:     in.Method,
		UTR:        strings.TrimSpace(in.UTR),
	}
	if err := s.store.CreateMembershipRequest(ctx, m); err != nil {
		if errors.Is(err, db.ErrPendingExists) {
			metrics.IncSubmitRejected("membership_open")
		}
		return nil, err
	}

	s.logger.Info().Int64("user_id", m.UserID).Msg("membership application submitted")
	s.bus.Publish(events.Event{
		Type:     events.TypeMembershipCreated,
		RecordID: m.ID,
		UserID:   m.UserID,
		Status:   m.Status,
	})
	return m, nil
}

// Membership returns the user's latest pending or active membership, or nil.
func (s *Service) Membership(ctx context.Context, userID int64) (*model.MembershipRequest, error) {
	return s.store.GetUserMembership(ctx, userID)
}

// ApproveMembership activates a pending request and stamps the activation
// time; the 30-day expiry is always derived from that stamp, never stored.
func (s *Service) ApproveMembership(ctx context.Context, id int64) (*model.MembershipRequest, error) {
	if err := s.store.ActivateMembership(ctx, id, s.now()); err != nil {
		return nil, err
	}
	return s.membershipDecided(ctx, id, "approve")
}

// RejectMembership marks a pending request rejected.
func (s *Service) RejectMembership(ctx context.Context, id int64) (*model.MembershipRequest, error) {
	if err := s.store.RejectMembership(ctx, id); err != nil {
		return nil, err
	}
	return s.membershipDecided(ctx, id, "reject")
}

func (s *Service) membershipDecided(ctx context.Context, id int64, decision string) (*model.MembershipRequest, error) {
	m, err := s.store.GetMembershipRequest(ctx, id)
	if err != nil {
		return nil, err
	}

	metrics.IncAdminDecision("membership", decision)
	s.logger.Info().
		Int64("request_id", id).
		Str("decision", decision).
		Msg("membership decided")

	s.bus.Publish(events.Event{
		Type:     events.TypeMembershipDecided,
		RecordID: m.ID,
		UserID:   m.UserID,
		Status:   m.Status,
	})
	return m, nil
}

// CancelMembership revokes the user's active membership.
func (s *Service) CancelMembership(ctx context.Context, userID int64) error {
	if err := s.store.CancelMembership(ctx, userID); err != nil {
		return err
	}
	s.logger.Info().Int64("user_id", userID).Msg("membership cancelled")
	return nil
}

// PendingApprovals merges pending bookings and membership requests into one
// review feed, oldest first.
func (s *Service) PendingApprovals(ctx context.Context) ([]model.PendingApprovalItem, error) {
	bookings, err := s.store.ListPendingBookings(ctx)
	if err != nil {
		return nil, err
	}
	requests, err := s.store.ListPendingMembershipRequests(ctx)
	if err != nil {
		return nil, err
	}

	items := make([]model.PendingApprovalItem, 0, len(bookings)+len(requests))
	for _, b := range bookings {
		items = append(items, model.PendingApprovalItem{
			Kind:        model.ApprovalBooking,
			ID:          b.ID,
			Name:        b.Name,
			Phone:       b.Phone,
			Detail:      fmt.Sprintf("%s %s %s", b.Game.Label(), b.Date(), b.TimeLabel()),
			Amount:      b.Amount,
			Method:      b.Method,
			UTR:         b.UTR,
			RequestedAt: b.CreatedAt,
		})
	}
	for _, m := range requests {
		items = append(items, model.PendingApprovalItem{
			Kind:        model.ApprovalMembership,
			ID:          m.ID,
			Name:        m.FullName,
			Phone:       m.Phone,
			Detail:      fmt.Sprintf("Membership %d days", model.MembershipDays),
			Amount:      m.Fee,
			Method:      m.Method,
			UTR:         m.UTR,
			RequestedAt: m.RequestedAt,
		})
	}

	sort.Slice(items, func(i, j int) bool {
		return items[i].RequestedAt.Before(items[j].RequestedAt)
	})
	return items, nil
}

func newRef() string {
	return "CB-" + strings.ToUpper(uuid.NewString()[:8])
}
