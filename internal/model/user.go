package model

import "time"

// User is a club member account keyed by Telegram ID.
type User struct {
	ID         int64     `json:"id"`
	TelegramID int64     `json:"telegram_id"`
	Username   string    `json:"username"`
	FirstName  string    `json:"first_name"`
	LastName   string    `json:"last_name"`
	Phone      string    `json:"phone"`
	PushToken  string    `json:"push_token,omitempty"`
	IsAdmin    bool      `json:"is_admin"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// DisplayName returns the best available human-readable name.
func (u *User) DisplayName() string {
	switch {
	case u.FirstName != "" && u.LastName != "":
		return u.FirstName + " " + u.LastName
	case u.FirstName != "":
		return u.FirstName
	case u.Username != "":
		return "@" + u.Username
	}
	return "user"
}

// PendingApprovalKind discriminates items in the admin review feed.
type PendingApprovalKind string

const (
	ApprovalBooking    PendingApprovalKind = "booking"
	ApprovalMembership PendingApprovalKind = "membership"
)

// PendingApprovalItem is a read model merging pending bookings and pending
// membership requests for the admin feed. It is derived, never persisted.
type PendingApprovalItem struct {
	Kind        PendingApprovalKind
	ID          int64
	Name        string
	Phone       string
	Detail      string // "Snooker 2026-08-28 18:00-18:30" or "Membership 30 days"
	Amount      int
	Method      string
	UTR         string
	RequestedAt time.Time
}
