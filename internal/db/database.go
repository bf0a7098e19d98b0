package db

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"
)

// Sentinel errors surfaced to the bot layer, matched with errors.Is.
var (
	ErrSlotNotAvailable   = errors.New("slot not available")
	ErrSlotInPast         = errors.New("slot is in the past")
	ErrPendingExists      = errors.New("user already has a pending request")
	ErrBookingNotFound    = errors.New("booking not found")
	ErrRequestNotFound    = errors.New("membership request not found")
	ErrTerminalStatus     = errors.New("status is terminal")
	ErrUTRRequired        = errors.New("utr required for upi payment")
	ErrMembershipNotFound = errors.New("no active membership")
	ErrUserNotFound       = errors.New("user not found")
	ErrAdminProtected     = errors.New("admin accounts cannot be deleted")
)

// DB wraps sql.DB for the club service.
type DB struct {
	*sql.DB
}

// NewDB opens the database at path and runs migrations.
func NewDB(path string) (*DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	if err := createTables(db); err != nil {
		return nil, err
	}
	return &DB{db}, nil
}

func createTables(db *sql.DB) error {
	queries := []string{
		// Users keyed by Telegram ID; push_token is the Expo push address.
		`CREATE TABLE IF NOT EXISTS users (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			telegram_id INTEGER UNIQUE NOT NULL,
			username TEXT,
			first_name TEXT,
			last_name TEXT,
			phone TEXT,
			push_token TEXT,
			is_admin BOOLEAN NOT NULL DEFAULT 0,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		// Quick-game bookings
		`CREATE TABLE IF NOT EXISTS bookings (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			ref TEXT UNIQUE NOT NULL,
			user_id INTEGER NOT NULL,
			name TEXT NOT NULL,
			phone TEXT NOT NULL,
			game TEXT NOT NULL,
			units INTEGER NOT NULL DEFAULT 1,
			start_time DATETIME NOT NULL,
			end_time DATETIME NOT NULL,
			amount INTEGER NOT NULL,
			method TEXT NOT NULL,
			utr TEXT,
			status TEXT NOT NULL DEFAULT 'pending',
			reminder_sent BOOLEAN NOT NULL DEFAULT 0,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (user_id) REFERENCES users(id)
		)`,

		// 30-day membership requests
		`CREATE TABLE IF NOT EXISTS membership_requests (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id INTEGER NOT NULL,
			full_name TEXT NOT NULL,
			phone TEXT NOT NULL,
			email TEXT NOT NULL,
			govt_id_type TEXT NOT NULL,
			govt_id_no TEXT NOT NULL,
			fee INTEGER NOT NULL,
			method TEXT NOT NULL,
			utr TEXT,
			status TEXT NOT NULL DEFAULT 'pending',
			requested_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			activated_at DATETIME,
			FOREIGN KEY (user_id) REFERENCES users(id)
		)`,

		// Broadcast log for the admin notice history
		`CREATE TABLE IF NOT EXISTS broadcasts (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			admin_id INTEGER NOT NULL,
			body TEXT NOT NULL,
			sent INTEGER NOT NULL DEFAULT 0,
			failed INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		// Indexes
		`CREATE INDEX IF NOT EXISTS idx_bookings_times ON bookings(game, start_time, end_time)`,
		`CREATE INDEX IF NOT EXISTS idx_bookings_status ON bookings(status)`,
		`CREATE INDEX IF NOT EXISTS idx_bookings_user ON bookings(user_id, status)`,
		`CREATE INDEX IF NOT EXISTS idx_membership_user ON membership_requests(user_id, status)`,
		`CREATE INDEX IF NOT EXISTS idx_membership_status ON membership_requests(status)`,
	}

	for _, q := range queries {
		if _, err := db.Exec(q); err != nil {
			return fmt.Errorf("exec migration %s: %w", trimSQL(q), err)
		}
	}
	return nil
}

func trimSQL(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > 60 {
		return s[:60] + "..."
	}
	return s
}
