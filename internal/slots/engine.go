// Package slots implements the slot availability engine: a pure function of
// (existing holding bookings, proposed interval, reference now) deciding
// which start times of the club day may still be booked.
package slots

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"cueclub/internal/model"
)

// Club day boundaries and candidate step. The slot menu runs 10:00-22:00
// in 30-minute steps.
const (
	DayOpen     = "10:00"
	DayClose    = "22:00"
	StepMinutes = 30
)

// Pricing and duration rules per game type.
const (
	SnookerMinutesPerGame = 30
	SnookerPricePerGame   = 80
	PoolMinutes           = 60
	PoolPriceFlat         = 120
)

var (
	// ErrSlotUnavailable is returned when the proposed interval conflicts
	// with an existing holding booking at submission time.
	ErrSlotUnavailable = errors.New("slot unavailable")

	// ErrSlotInPast is returned when the proposed start has already passed.
	ErrSlotInPast = errors.New("slot is in the past")
)

// Interval is a half-open [Start, End) time range.
type Interval struct {
	Start time.Time
	End   time.Time
}

// Overlaps reports whether two half-open intervals conflict:
// [s1,e1) and [s2,e2) overlap iff s1 < e2 && e1 > s2.
func Overlaps(a, b Interval) bool {
	return a.Start.Before(b.End) && b.Start.Before(a.End)
}

// GameDuration returns the booked interval length for a game type.
// Snooker books 30 minutes per game; pool is a fixed one-hour block and
// ignores any unit count.
func GameDuration(game model.GameType, units int) time.Duration {
	if game == model.GameEightBallPool {
		return PoolMinutes * time.Minute
	}
	if units < 1 {
		units = 1
	}
	return time.Duration(units*SnookerMinutesPerGame) * time.Minute
}

// GameAmount returns the rupee amount for a game type. Snooker is priced
// per game, pool flat per hour block.
func GameAmount(game model.GameType, units int) int {
	if game == model.GameEightBallPool {
		return PoolPriceFlat
	}
	if units < 1 {
		units = 1
	}
	return units * SnookerPricePerGame
}

// ParseUnits parses a user-supplied game count, defaulting to 1 when the
// input is unparseable or non-positive.
func ParseUnits(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 1 {
		return 1
	}
	return n
}

// Candidate is one entry of the day's start-time menu.
type Candidate struct {
	Start     time.Time
	End       time.Time
	Available bool
	Reason    string // "booked" or "past" when unavailable
}

// Label formats the candidate interval for keyboards.
func (c Candidate) Label() string {
	return c.Start.Format("15:04") + "-" + c.End.Format("15:04")
}

// DayMenu builds the fixed menu of candidate start times for a date, game
// type and unit count, marking each as available or not. existing must
// contain only intervals that hold a slot (pending or approved bookings of
// the same date and game type). now disables past starts when date is today.
func DayMenu(date time.Time, game model.GameType, units int, existing []Interval, now time.Time) []Candidate {
	duration := GameDuration(game, units)
	open := onDate(date, DayOpen)
	end := onDate(date, DayClose)

	var menu []Candidate
	for cursor := open; !cursor.Add(duration).After(end); cursor = cursor.Add(StepMinutes * time.Minute) {
		c := Candidate{Start: cursor, End: cursor.Add(duration), Available: true}
		if sameDay(date, now) && cursor.Before(now) {
			c.Available = false
			c.Reason = "past"
		} else if conflicts(Interval{c.Start, c.End}, existing) {
			c.Available = false
			c.Reason = "booked"
		}
		menu = append(menu, c)
	}
	return menu
}

// CheckBookable re-applies the availability decision for a proposed start
// at submission time. Render-time menus may be stale, so this check is
// mandatory before persisting.
func CheckBookable(start time.Time, game model.GameType, units int, existing []Interval, now time.Time) error {
	if sameDay(start, now) && start.Before(now) {
		return ErrSlotInPast
	}
	proposed := Interval{Start: start, End: start.Add(GameDuration(game, units))}
	if conflicts(proposed, existing) {
		return ErrSlotUnavailable
	}
	return nil
}

func conflicts(proposed Interval, existing []Interval) bool {
	for _, e := range existing {
		if Overlaps(proposed, e) {
			return true
		}
	}
	return false
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

func onDate(date time.Time, clock string) time.Time {
	parts := strings.SplitN(clock, ":", 2)
	hour, _ := strconv.Atoi(parts[0])
	minute := 0
	if len(parts) == 2 {
		minute, _ = strconv.Atoi(parts[1])
	}
	return time.Date(date.Year(), date.Month(), date.Day(), hour, minute, 0, 0, date.Location())
}
