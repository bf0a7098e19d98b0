package model

import "time"

// MembershipDays is the fixed membership term.
const MembershipDays = 30

// Membership statuses. An empty status means the request was cancelled or
// the user never applied.
const (
	MembershipPending = "pending"
	MembershipActive  = "active"
)

// MembershipRequest is a 30-day membership application. ActivatedAt is set
// if and only if the request is active.
type MembershipRequest struct {
	ID          int64      `json:"id"`
	UserID      int64      `json:"user_id"`
	FullName    string     `json:"full_name"`
	Phone       string     `json:"phone"`
	Email       string     `json:"email"`
	GovtIDType  string     `json:"govt_id_type"`
	GovtIDNo    string     `json:"govt_id_no"`
	Fee         int        `json:"fee"`
	Method      string     `json:"method"`
	UTR         string     `json:"utr,omitempty"`
	Status      string     `json:"status"`
	RequestedAt time.Time  `json:"requested_at"`
	ActivatedAt *time.Time `json:"activated_at,omitempty"`
}

// RemainingDays computes days left on an active membership relative to now.
// Expiry is always derived, never stored, so a client with a skewed clock
// can disagree with the server about the exact expiry moment.
func (m *MembershipRequest) RemainingDays(now time.Time) int {
	if m.Status != MembershipActive || m.ActivatedAt == nil {
		return 0
	}
	elapsed := int(now.Sub(*m.ActivatedAt).Hours() / 24)
	return MembershipDays - elapsed
}

// Expired reports whether an active membership has run out its term.
func (m *MembershipRequest) Expired(now time.Time) bool {
	return m.Status == MembershipActive && m.RemainingDays(now) <= 0
}
