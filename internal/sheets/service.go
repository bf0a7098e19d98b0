// Package sheets mirrors the booking ledger into a Google Spreadsheet the
// club owner already works in. The sync is one-way: the database is the
// source of truth and the sheet only follows it.
package sheets

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"cueclub/internal/model"
)

var headerRow = []any{
	"ID", "Ref", "Name", "Phone", "Game", "Date", "Time", "Amount", "Method", "UTR", "Status",
}

// Config identifies the target spreadsheet.
type Config struct {
	Enabled         bool
	CredentialsFile string
	SpreadsheetID   string
	SheetName       string
}

// SheetsService pushes bookings into a spreadsheet tab. rowCache remembers
// which sheet row a booking landed on so repeated syncs update in place.
type SheetsService struct {
	config Config
	srv    *sheets.Service
	logger zerolog.Logger

	cacheMu  sync.Mutex
	rowCache map[int64]int
}

// NewSheetsService builds a client from a service-account credentials file.
func NewSheetsService(ctx context.Context, config Config, logger zerolog.Logger) (*SheetsService, error) {
	if config.SheetName == "" {
		config.SheetName = "Bookings"
	}

	srv, err := sheets.NewService(ctx, option.WithCredentialsFile(config.CredentialsFile))
	if err != nil {
		return nil, fmt.Errorf("create sheets client: %w", err)
	}

	return &SheetsService{
		config:   config,
		srv:      srv,
		logger:   logger.With().Str("component", "sheets").Logger(),
		rowCache: make(map[int64]int),
	}, nil
}

// SyncBookings mirrors the given bookings into the sheet. The first run
// writes the header and every row in one shot and fills the row cache;
// later runs update each booking in place at its cached row and give
// unseen bookings the next free row. Rejected bookings are skipped: the
// owner's ledger tracks money, and a rejected booking never collected
// any. ClearCache sends the next run back through the full rewrite.
func (s *SheetsService) SyncBookings(ctx context.Context, bookings []model.Booking) error {
	active := s.filterActiveBookings(bookings)

	if s.cacheEmpty() {
		return s.writeAll(ctx, active)
	}

	for i := range active {
		b := &active[i]
		row, ok := s.getCachedRow(b.ID)
		if !ok {
			row = s.nextRow()
		}
		rangeRef := fmt.Sprintf("%s!A%d", s.config.SheetName, row)
		_, err := s.srv.Spreadsheets.Values.Update(s.config.SpreadsheetID, rangeRef,
			&sheets.ValueRange{Values: [][]any{bookingRowValues(b)}}).
			ValueInputOption("RAW").
			Context(ctx).
			Do()
		if err != nil {
			return fmt.Errorf("update sheet row %d: %w", row, err)
		}
		s.setCachedRow(b.ID, row)
	}

	s.logger.Info().Int("rows", len(active)).Msg("bookings synced to sheet")
	return nil
}

func (s *SheetsService) writeAll(ctx context.Context, active []model.Booking) error {
	values := make([][]any, 0, len(active)+1)
	values = append(values, headerRow)
	for i, b := range active {
		values = append(values, bookingRowValues(&b))
		s.setCachedRow(b.ID, i+2) // row 1 is the header
	}

	rangeRef := fmt.Sprintf("%s!A1", s.config.SheetName)
	_, err := s.srv.Spreadsheets.Values.Update(s.config.SpreadsheetID, rangeRef,
		&sheets.ValueRange{Values: values}).
		ValueInputOption("RAW").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("update sheet: %w", err)
	}

	s.logger.Info().Int("rows", len(active)).Msg("sheet rewritten")
	return nil
}

func (s *SheetsService) filterActiveBookings(bookings []model.Booking) []model.Booking {
	out := make([]model.Booking, 0, len(bookings))
	for _, b := range bookings {
		if b.Status == model.StatusRejected {
			continue
		}
		out = append(out, b)
	}
	return out
}

func bookingRowValues(b *model.Booking) []any {
	return []any{
		b.ID,
		b.Ref,
		b.Name,
		b.Phone,
		b.Game.Label(),
		b.Date(),
		b.TimeLabel(),
		b.Amount,
		b.Method,
		b.UTR,
		b.Status,
	}
}

func (s *SheetsService) cacheEmpty() bool {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	return len(s.rowCache) == 0
}

// nextRow is the first sheet row no cached booking occupies.
func (s *SheetsService) nextRow() int {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	return len(s.rowCache) + 2 // row 1 is the header
}

func (s *SheetsService) getCachedRow(bookingID int64) (int, bool) {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	row, ok := s.rowCache[bookingID]
	return row, ok
}

func (s *SheetsService) setCachedRow(bookingID int64, row int) {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	s.rowCache[bookingID] = row
}

// ClearCache drops the row cache, forcing the next sync to relearn row
// positions.
func (s *SheetsService) ClearCache() {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	s.rowCache = make(map[int64]int)
}
