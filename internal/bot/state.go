package bot

import "sync"

type flowStep string

const (
	stepNone flowStep = "none"

	// booking flow
	stepGame    flowStep = "game"
	stepUnits   flowStep = "units"
	stepDate    flowStep = "date"
	stepSlot    flowStep = "slot"
	stepName    flowStep = "name"
	stepPhone   flowStep = "phone"
	stepPay     flowStep = "pay"
	stepUTR     flowStep = "utr"
	stepConfirm flowStep = "confirm"

	// membership flow
	stepMemberName    flowStep = "member_name"
	stepMemberPhone   flowStep = "member_phone"
	stepMemberEmail   flowStep = "member_email"
	stepMemberIDType  flowStep = "member_id_type"
	stepMemberIDNo    flowStep = "member_id_no"
	stepMemberPay     flowStep = "member_pay"
	stepMemberUTR     flowStep = "member_utr"
	stepMemberConfirm flowStep = "member_confirm"

	// admin broadcast flow
	stepBroadcastText    flowStep = "broadcast_text"
	stepBroadcastConfirm flowStep = "broadcast_confirm"
)

// BookingDraft accumulates the booking flow's answers.
type BookingDraft struct {
	Game      string
	Units     int
	Date      string // YYYY-MM-DD
	TimeLabel string // HH:MM-HH:MM
	Name      string
	Phone     string
	Method    string
	UTR       string
}

// MembershipDraft accumulates the membership application answers.
type MembershipDraft struct {
	FullName   string
	Phone      string
	Email      string
	GovtIDType string
	GovtIDNo   string
	Method     string
	UTR        string
}

type userState struct {
	Step       flowStep
	Booking    BookingDraft
	Membership MembershipDraft
	Broadcast  string
}

type stateStore struct {
	mu sync.Mutex
	m  map[int64]*userState
}

func newStateStore() *stateStore {
	return &stateStore{m: make(map[int64]*userState)}
}

func (s *stateStore) get(userID int64) *userState {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.m[userID]
	if st == nil {
		st = &userState{Step: stepNone}
		s.m[userID] = st
	}
	return st
}

func (s *stateStore) reset(userID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.m, userID)
}
