package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMembershipRequest_RemainingDays(t *testing.T) {
	activated := datetime(2026, 1, 1, 12, 0)
	m := MembershipRequest{Status: MembershipActive, ActivatedAt: &activated}

	// At the instant of activation the full term remains.
	assert.Equal(t, 30, m.RemainingDays(activated))

	// 10 full days later.
	assert.Equal(t, 20, m.RemainingDays(activated.AddDate(0, 0, 10)))

	// Partial days are floored: 10 days and 6 hours still counts as 10.
	assert.Equal(t, 20, m.RemainingDays(activated.AddDate(0, 0, 10).Add(6*time.Hour)))

	// Past the term.
	assert.Equal(t, 0, m.RemainingDays(activated.AddDate(0, 0, 30)))
	assert.True(t, m.Expired(activated.AddDate(0, 0, 30)))
	assert.False(t, m.Expired(activated.AddDate(0, 0, 29)))
}

func TestMembershipRequest_RemainingDaysInactive(t *testing.T) {
	m := MembershipRequest{Status: MembershipPending}
	assert.Equal(t, 0, m.RemainingDays(time.Now()))
	assert.False(t, m.Expired(time.Now()))
}
