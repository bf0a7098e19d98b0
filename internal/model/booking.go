package model

import "time"

// GameType identifies a bookable game resource.
type GameType string

const (
	GameSnooker       GameType = "snooker"
	GameEightBallPool GameType = "8ball"
)

// Label returns the display name used in menus and receipts.
func (g GameType) Label() string {
	switch g {
	case GameSnooker:
		return "Snooker"
	case GameEightBallPool:
		return "8 Ball Pool"
	}
	return string(g)
}

// Valid reports whether g is a known game type.
func (g GameType) Valid() bool {
	return g == GameSnooker || g == GameEightBallPool
}

// Booking statuses. Pending is the initial state; approved and rejected
// are terminal.
const (
	StatusPending  = "pending"
	StatusApproved = "approved"
	StatusRejected = "rejected"
)

// IsTerminalStatus reports whether no further transition is allowed.
func IsTerminalStatus(status string) bool {
	return status == StatusApproved || status == StatusRejected
}

// Payment methods.
const (
	PayCash = "cash"
	PayUPI  = "upi"
)

// Booking represents a request to occupy a table for a time interval.
// StartTime and EndTime are same-day wall-clock datetimes; Date() derives
// the calendar day.
type Booking struct {
	ID           int64     `json:"id"`
	Ref          string    `json:"ref"`
	UserID       int64     `json:"user_id"`
	Name         string    `json:"name"`
	Phone        string    `json:"phone"`
	Game         GameType  `json:"game"`
	Units        int       `json:"units"`
	StartTime    time.Time `json:"start_time"`
	EndTime      time.Time `json:"end_time"`
	Amount       int       `json:"amount"`
	Method       string    `json:"method"`
	UTR          string    `json:"utr,omitempty"`
	Status       string    `json:"status"`
	ReminderSent bool      `json:"reminder_sent"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Date returns the booking's calendar day as YYYY-MM-DD.
func (b *Booking) Date() string {
	return b.StartTime.Format("2006-01-02")
}

// Duration returns the booked interval length.
func (b *Booking) Duration() time.Duration {
	return b.EndTime.Sub(b.StartTime)
}

// Holding reports whether the booking counts against slot availability.
// Rejected bookings release their interval.
func (b *Booking) Holding() bool {
	return b.Status == StatusPending || b.Status == StatusApproved
}

// OverlapsWith checks two bookings for interval conflict using half-open
// [start, end) semantics: a booking ending at 10:30 does not collide with
// one starting at 10:30.
func (b *Booking) OverlapsWith(other *Booking) bool {
	return b.StartTime.Before(other.EndTime) && other.StartTime.Before(b.EndTime)
}

// TimeLabel formats the interval as "15:04-15:04" for display.
func (b *Booking) TimeLabel() string {
	return b.StartTime.Format("15:04") + "-" + b.EndTime.Format("15:04")
}
