package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"cueclub/internal/model"
	"cueclub/internal/slots"
)

const bookingColumns = `id, ref, user_id, name, phone, game, units,
	start_time, end_time, amount, method, utr, status, reminder_sent,
	created_at, updated_at`

func scanBooking(row interface{ Scan(...any) error }) (*model.Booking, error) {
	var b model.Booking
	var utr sql.NullString
	err := row.Scan(
		&b.ID, &b.Ref, &b.UserID, &b.Name, &b.Phone, &b.Game, &b.Units,
		&b.StartTime, &b.EndTime, &b.Amount, &b.Method, &utr, &b.Status,
		&b.ReminderSent, &b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if utr.Valid {
		b.UTR = utr.String
	}
	return &b, nil
}

// HoldingIntervals returns the [start,end) intervals of pending and
// approved bookings for one (date, game) pair. Rejected bookings do not
// hold a slot.
func (db *DB) HoldingIntervals(ctx context.Context, date string, game model.GameType) ([]slots.Interval, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT start_time, end_time FROM bookings
		WHERE game = ? AND date(start_time) = date(?)
		  AND status IN ('pending', 'approved')`,
		game, date,
	)
	if err != nil {
		return nil, fmt.Errorf("query holding intervals: %w", err)
	}
	defer rows.Close()

	var out []slots.Interval
	for rows.Next() {
		var iv slots.Interval
		if err := rows.Scan(&iv.Start, &iv.End); err != nil {
			return nil, err
		}
		out = append(out, iv)
	}
	return out, rows.Err()
}

// CreateBookingWithChecks re-validates availability inside the write path
// and inserts the booking in pending status. The render-time menu may be
// stale, so the conflict check runs again here against the latest rows.
// The duplicate-pending guard is a read-then-branch check; two
// near-simultaneous submissions can still slip through it.
func (db *DB) CreateBookingWithChecks(ctx context.Context, b *model.Booking, now time.Time) error {
	pending, err := db.GetUserPendingBooking(ctx, b.UserID)
	if err != nil {
		return err
	}
	if pending != nil {
		return ErrPendingExists
	}

	existing, err := db.HoldingIntervals(ctx, b.Date(), b.Game)
	if err != nil {
		return err
	}
	switch err := slots.CheckBookable(b.StartTime, b.Game, b.Units, existing, now); err {
	case slots.ErrSlotUnavailable:
		return ErrSlotNotAvailable
	case slots.ErrSlotInPast:
		return ErrSlotInPast
	case nil:
	default:
		return err
	}

	res, err := db.ExecContext(ctx, `
		INSERT INTO bookings (ref, user_id, name, phone, game, units,
			start_time, end_time, amount, method, utr, status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 'pending')`,
		b.Ref, b.UserID, b.Name, b.Phone, b.Game, b.Units,
		b.StartTime, b.EndTime, b.Amount, b.Method, nullable(b.UTR),
	)
	if err != nil {
		return fmt.Errorf("insert booking: %w", err)
	}
	b.ID, _ = res.LastInsertId()
	b.Status = model.StatusPending
	return nil
}

// GetBooking loads a booking by ID.
func (db *DB) GetBooking(ctx context.Context, id int64) (*model.Booking, error) {
	row := db.QueryRowContext(ctx,
		`SELECT `+bookingColumns+` FROM bookings WHERE id = ?`, id)
	b, err := scanBooking(row)
	if err == sql.ErrNoRows {
		return nil, ErrBookingNotFound
	}
	return b, err
}

// UpdateBookingStatus moves a booking to a new status. Transitions out of
// approved or rejected are refused: those states are terminal.
func (db *DB) UpdateBookingStatus(ctx context.Context, id int64, status string) error {
	current, err := db.GetBooking(ctx, id)
	if err != nil {
		return err
	}
	if model.IsTerminalStatus(current.Status) {
		return ErrTerminalStatus
	}

	_, err = db.ExecContext(ctx, `
		UPDATE bookings SET status = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`, status, id)
	if err != nil {
		return fmt.Errorf("update booking status: %w", err)
	}
	return nil
}

// GetUserPendingBooking returns the user's pending booking, or nil.
func (db *DB) GetUserPendingBooking(ctx context.Context, userID int64) (*model.Booking, error) {
	row := db.QueryRowContext(ctx, `
		SELECT `+bookingColumns+` FROM bookings
		WHERE user_id = ? AND status = 'pending'
		ORDER BY created_at DESC LIMIT 1`, userID)
	b, err := scanBooking(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return b, err
}

// ListPendingBookings returns all pending bookings, oldest first.
func (db *DB) ListPendingBookings(ctx context.Context) ([]model.Booking, error) {
	return db.listBookings(ctx, `status = 'pending' ORDER BY created_at ASC`)
}

// ListUserBookings returns up to limit bookings for a user, newest first.
func (db *DB) ListUserBookings(ctx context.Context, userID int64, limit int) ([]model.Booking, error) {
	if limit <= 0 {
		limit = 10
	}
	return db.listBookings(ctx,
		`user_id = ? ORDER BY start_time DESC LIMIT ?`, userID, limit)
}

// ListBookingsByDate returns bookings on a date (YYYY-MM-DD), earliest first.
func (db *DB) ListBookingsByDate(ctx context.Context, date string) ([]model.Booking, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT `+bookingColumns+` FROM bookings
		WHERE date(start_time) = date(?)
		ORDER BY start_time ASC`, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectBookings(rows)
}

// SearchBookings filters bookings by optional date, name, game and phone,
// mirroring the admin booking viewer's equality filters.
func (db *DB) SearchBookings(ctx context.Context, date, name string, game model.GameType, phone string) ([]model.Booking, error) {
	where := []string{"1=1"}
	var args []any
	if date != "" {
		where = append(where, "date(start_time) = date(?)")
		args = append(args, date)
	}
	if name != "" {
		where = append(where, "name = ?")
		args = append(args, name)
	}
	if game != "" {
		where = append(where, "game = ?")
		args = append(args, game)
	}
	if phone != "" {
		where = append(where, "phone = ?")
		args = append(args, phone)
	}

	rows, err := db.QueryContext(ctx,
		`SELECT `+bookingColumns+` FROM bookings WHERE `+strings.Join(where, " AND ")+
			` ORDER BY start_time DESC LIMIT 100`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectBookings(rows)
}

// GetUpcomingApprovedBookings returns approved bookings starting within the
// look-ahead window that have not been reminded yet.
func (db *DB) GetUpcomingApprovedBookings(ctx context.Context, lookAhead time.Duration) ([]model.Booking, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT `+bookingColumns+` FROM bookings
		WHERE status = 'approved' AND reminder_sent = 0
		  AND start_time BETWEEN ? AND ?
		ORDER BY start_time ASC`,
		time.Now(), time.Now().Add(lookAhead))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectBookings(rows)
}

// MarkReminderSent flags a booking as reminded.
func (db *DB) MarkReminderSent(ctx context.Context, id int64) error {
	_, err := db.ExecContext(ctx,
		`UPDATE bookings SET reminder_sent = 1, updated_at = CURRENT_TIMESTAMP WHERE id = ?`, id)
	return err
}

// DeleteOldBookings removes bookings older than the retention window and
// returns the number deleted. Used by the audit cleanup.
func (db *DB) DeleteOldBookings(ctx context.Context, olderThan time.Duration) (int64, error) {
	res, err := db.ExecContext(ctx,
		`DELETE FROM bookings WHERE end_time < ?`, time.Now().Add(-olderThan))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (db *DB) listBookings(ctx context.Context, whereAndOrder string, args ...any) ([]model.Booking, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT `+bookingColumns+` FROM bookings WHERE `+whereAndOrder, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectBookings(rows)
}

func collectBookings(rows *sql.Rows) ([]model.Booking, error) {
	var out []model.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *b)
	}
	return out, rows.Err()
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
