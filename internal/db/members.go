package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"cueclub/internal/model"
)

const membershipColumns = `id, user_id, full_name, phone, email,
	govt_id_type, govt_id_no, fee, method, utr, status, requested_at,
	activated_at`

func scanMembership(row interface{ Scan(...any) error }) (*model.MembershipRequest, error) {
	var m model.MembershipRequest
	var utr sql.NullString
	var activated sql.NullTime
	err := row.Scan(
		&m.ID, &m.UserID, &m.FullName, &m.Phone, &m.Email,
		&m.GovtIDType, &m.GovtIDNo, &m.Fee, &m.Method, &utr, &m.Status,
		&m.RequestedAt, &activated,
	)
	if err != nil {
		return nil, err
	}
	if utr.Valid {
		m.UTR = utr.String
	}
	if activated.Valid {
		t := activated.Time
		m.ActivatedAt = &t
	}
	return &m, nil
}

// CreateMembershipRequest inserts a pending membership application. A user
// with an existing pending request or a live membership cannot re-apply.
func (db *DB) CreateMembershipRequest(ctx context.Context, m *model.MembershipRequest) error {
	open, err := db.GetUserMembership(ctx, m.UserID)
	if err != nil {
		return err
	}
	if open != nil && (open.Status == model.MembershipPending || !open.Expired(time.Now())) {
		return ErrPendingExists
	}

	res, err := db.ExecContext(ctx, `
		INSERT INTO membership_requests (user_id, full_name, phone, email,
			govt_id_type, govt_id_no, fee, method, utr, status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, 'pending')`,
		m.UserID, m.FullName, m.Phone, m.Email,
		m.GovtIDType, m.GovtIDNo, m.Fee, m.Method, nullable(m.UTR),
	)
	if err != nil {
		return fmt.Errorf("insert membership request: %w", err)
	}
	m.ID, _ = res.LastInsertId()
	m.Status = model.MembershipPending
	return nil
}

// GetMembershipRequest loads a request by ID.
func (db *DB) GetMembershipRequest(ctx context.Context, id int64) (*model.MembershipRequest, error) {
	row := db.QueryRowContext(ctx,
		`SELECT `+membershipColumns+` FROM membership_requests WHERE id = ?`, id)
	m, err := scanMembership(row)
	if err == sql.ErrNoRows {
		return nil, ErrRequestNotFound
	}
	return m, err
}

// GetUserMembership returns the user's latest pending or active request,
// or nil when the user has none.
func (db *DB) GetUserMembership(ctx context.Context, userID int64) (*model.MembershipRequest, error) {
	row := db.QueryRowContext(ctx, `
		SELECT `+membershipColumns+` FROM membership_requests
		WHERE user_id = ? AND status IN ('pending', 'active')
		ORDER BY requested_at DESC LIMIT 1`, userID)
	m, err := scanMembership(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return m, err
}

// ListPendingMembershipRequests returns all pending requests, oldest first.
func (db *DB) ListPendingMembershipRequests(ctx context.Context) ([]model.MembershipRequest, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT `+membershipColumns+` FROM membership_requests
		WHERE status = 'pending' ORDER BY requested_at ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.MembershipRequest
	for rows.Next() {
		m, err := scanMembership(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *m)
	}
	return out, rows.Err()
}

// ActivateMembership promotes a pending request to active and stamps the
// activation time. Activation from a non-pending state is refused.
func (db *DB) ActivateMembership(ctx context.Context, id int64, activatedAt time.Time) error {
	current, err := db.GetMembershipRequest(ctx, id)
	if err != nil {
		return err
	}
	if current.Status != model.MembershipPending {
		return ErrTerminalStatus
	}

	_, err = db.ExecContext(ctx, `
		UPDATE membership_requests SET status = 'active', activated_at = ?
		WHERE id = ?`, activatedAt, id)
	if err != nil {
		return fmt.Errorf("activate membership: %w", err)
	}
	return nil
}

// RejectMembership marks a pending request rejected. No profile side
// effects beyond the status field.
func (db *DB) RejectMembership(ctx context.Context, id int64) error {
	current, err := db.GetMembershipRequest(ctx, id)
	if err != nil {
		return err
	}
	if current.Status != model.MembershipPending {
		return ErrTerminalStatus
	}

	_, err = db.ExecContext(ctx,
		`UPDATE membership_requests SET status = 'rejected' WHERE id = ?`, id)
	return err
}

// CancelMembership clears an active membership: the status empties and the
// activation timestamp is nulled, so a fresh request cycle is required.
func (db *DB) CancelMembership(ctx context.Context, userID int64) error {
	res, err := db.ExecContext(ctx, `
		UPDATE membership_requests SET status = '', activated_at = NULL
		WHERE user_id = ? AND status = 'active'`, userID)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrMembershipNotFound
	}
	return nil
}
