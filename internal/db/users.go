package db

import (
	"context"
	"database/sql"
	"fmt"

	"cueclub/internal/model"
)

// GetOrCreateUserByTelegramID upserts a user record from Telegram profile
// fields and returns it.
func (db *DB) GetOrCreateUserByTelegramID(ctx context.Context, telegramID int64, username, firstName, lastName string) (*model.User, error) {
	u, err := db.GetUserByTelegramID(ctx, telegramID)
	if err != nil {
		return nil, err
	}
	if u != nil {
		if u.Username != username || u.FirstName != firstName || u.LastName != lastName {
			_, _ = db.ExecContext(ctx, `
				UPDATE users SET username = ?, first_name = ?, last_name = ?,
					updated_at = CURRENT_TIMESTAMP
				WHERE telegram_id = ?`,
				username, firstName, lastName, telegramID)
		}
		return u, nil
	}

	res, err := db.ExecContext(ctx, `
		INSERT INTO users (telegram_id, username, first_name, last_name)
		VALUES (?, ?, ?, ?)`,
		telegramID, username, firstName, lastName)
	if err != nil {
		return nil, fmt.Errorf("insert user: %w", err)
	}
	id, _ := res.LastInsertId()
	return &model.User{
		ID:         id,
		TelegramID: telegramID,
		Username:   username,
		FirstName:  firstName,
		LastName:   lastName,
	}, nil
}

// GetUserByTelegramID returns a user by Telegram ID, or nil.
func (db *DB) GetUserByTelegramID(ctx context.Context, telegramID int64) (*model.User, error) {
	row := db.QueryRowContext(ctx, `
		SELECT id, telegram_id, username, first_name, last_name, phone,
			push_token, is_admin, created_at, updated_at
		FROM users WHERE telegram_id = ?`, telegramID)
	return scanUser(row)
}

// GetUserByID returns a user by internal ID, or nil.
func (db *DB) GetUserByID(ctx context.Context, id int64) (*model.User, error) {
	row := db.QueryRowContext(ctx, `
		SELECT id, telegram_id, username, first_name, last_name, phone,
			push_token, is_admin, created_at, updated_at
		FROM users WHERE id = ?`, id)
	return scanUser(row)
}

func scanUser(row interface{ Scan(...any) error }) (*model.User, error) {
	var u model.User
	var username, firstName, lastName, phone, pushToken sql.NullString
	err := row.Scan(&u.ID, &u.TelegramID, &username, &firstName, &lastName,
		&phone, &pushToken, &u.IsAdmin, &u.CreatedAt, &u.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	u.Username = username.String
	u.FirstName = firstName.String
	u.LastName = lastName.String
	u.Phone = phone.String
	u.PushToken = pushToken.String
	return &u, nil
}

// ListUsers returns all registered users, newest first.
func (db *DB) ListUsers(ctx context.Context) ([]model.User, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, telegram_id, username, first_name, last_name, phone,
			push_token, is_admin, created_at, updated_at
		FROM users ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *u)
	}
	return out, rows.Err()
}

// DeleteUser removes a user record. Admin accounts are refused; drop them
// from the admin list first.
func (db *DB) DeleteUser(ctx context.Context, id int64) error {
	u, err := db.GetUserByID(ctx, id)
	if err != nil {
		return err
	}
	if u == nil {
		return ErrUserNotFound
	}
	if u.IsAdmin {
		return ErrAdminProtected
	}
	_, err = db.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
	return err
}

// SyncAdminFlags stamps users.is_admin from the configured admin list so
// the stored flag tracks the config across reloads.
func (db *DB) SyncAdminFlags(ctx context.Context, adminIDs []int64) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		UPDATE users SET is_admin = 0, updated_at = CURRENT_TIMESTAMP
		WHERE is_admin = 1`); err != nil {
		return err
	}
	for _, id := range adminIDs {
		if _, err := tx.ExecContext(ctx, `
			UPDATE users SET is_admin = 1, updated_at = CURRENT_TIMESTAMP
			WHERE telegram_id = ?`, id); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// SetPushToken stores the user's Expo push address.
func (db *DB) SetPushToken(ctx context.Context, userID int64, token string) error {
	_, err := db.ExecContext(ctx, `
		UPDATE users SET push_token = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`, token, userID)
	return err
}

// ClearPushToken drops a device token, used when the push gateway reports
// the device as no longer registered.
func (db *DB) ClearPushToken(ctx context.Context, token string) error {
	_, err := db.ExecContext(ctx, `
		UPDATE users SET push_token = NULL, updated_at = CURRENT_TIMESTAMP
		WHERE push_token = ?`, token)
	return err
}

// ListUserTelegramIDs returns the Telegram chat IDs of all users for
// broadcast fan-out.
func (db *DB) ListUserTelegramIDs(ctx context.Context) ([]int64, error) {
	rows, err := db.QueryContext(ctx, `SELECT telegram_id FROM users`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ListPushTokens returns all non-empty push tokens for broadcast fan-out.
func (db *DB) ListPushTokens(ctx context.Context) ([]string, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT push_token FROM users WHERE push_token IS NOT NULL AND push_token != ''`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tokens []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, err
		}
		tokens = append(tokens, t)
	}
	return tokens, rows.Err()
}

// LogBroadcast records an admin broadcast and its fan-out outcome.
func (db *DB) LogBroadcast(ctx context.Context, adminID int64, body string, sent, failed int) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO broadcasts (admin_id, body, sent, failed)
		VALUES (?, ?, ?, ?)`, adminID, body, sent, failed)
	return err
}
