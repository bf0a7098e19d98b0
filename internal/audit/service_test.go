package audit

import (
	"context"
	"database/sql"
	"io"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeExporter struct{}

func (fakeExporter) GetTableNames(context.Context) ([]string, error) {
	return []string{"bookings"}, nil
}

func (fakeExporter) GetTableData(_ context.Context, _ string) ([]map[string]any, []string, error) {
	return []map[string]any{
		{"id": int64(1), "name": "Ravi"},
		{"id": int64(2), "name": "Asha"},
	}, []string{"id", "name"}, nil
}

func (fakeExporter) GetDB() *sql.DB { return nil }

type fakeNotifier struct {
	filename string
	size     int
}

func (f *fakeNotifier) SendDocument(_ context.Context, filename string, data io.Reader, _ string) error {
	f.filename = filename
	b, _ := io.ReadAll(data)
	f.size = len(b)
	return nil
}

type fakeCleaner struct {
	olderThan time.Duration
}

func (f *fakeCleaner) DeleteOldBookings(_ context.Context, olderThan time.Duration) (int64, error) {
	f.olderThan = olderThan
	return 7, nil
}

func TestExportNowBuildsWorkbook(t *testing.T) {
	notifier := &fakeNotifier{}
	svc := NewService(Config{}, fakeExporter{}, NewExcelizeWriter, notifier, nil, zerolog.Nop())

	require.NoError(t, svc.ExportNow())
	assert.NotZero(t, notifier.size, "workbook bytes were sent")
	assert.Contains(t, notifier.filename, ".xlsx")
}

func TestCleanupUsesRetention(t *testing.T) {
	cleaner := &fakeCleaner{}
	svc := NewService(Config{RetentionDays: 30}, fakeExporter{}, NewExcelizeWriter, nil, cleaner, zerolog.Nop())

	svc.RunExportAndCleanup()
	assert.Equal(t, 30*24*time.Hour, cleaner.olderThan)
}

func TestReportFilename(t *testing.T) {
	assert.Equal(t, "August_2026.xlsx",
		ReportFilename(time.Date(2026, time.August, 15, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, "July_2026.xlsx",
		PreviousMonthFilename(time.Date(2026, time.August, 15, 0, 0, 0, 0, time.UTC)))
}

func TestNextFirstOfMonth(t *testing.T) {
	now := time.Date(2026, time.August, 28, 13, 0, 0, 0, time.UTC)
	next := nextFirstOfMonth(now)
	assert.Equal(t, time.September, next.Month())
	assert.Equal(t, 1, next.Day())
}
