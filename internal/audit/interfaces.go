// Package audit produces the club's monthly bookkeeping export: every
// database table dumped to an Excel workbook, delivered to the admins, then
// old booking rows pruned past the retention window.
package audit

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"time"
)

// TableExporter provides raw table access for the export.
type TableExporter interface {
	GetTableNames(ctx context.Context) ([]string, error)
	GetTableData(ctx context.Context, tableName string) ([]map[string]any, []string, error)
	GetDB() *sql.DB
}

// ExcelWriter writes the workbook, one sheet per table.
type ExcelWriter interface {
	AddSheet(name string) error
	WriteHeader(columns []string) error
	WriteRow(row []any) error
	Save(w io.Writer) error
	SaveToFile(path string) error
}

// Notifier delivers the finished report to the admins.
type Notifier interface {
	SendDocument(ctx context.Context, filename string, data io.Reader, caption string) error
}

// Cleaner prunes data past the retention window.
type Cleaner interface {
	DeleteOldBookings(ctx context.Context, olderThan time.Duration) (int64, error)
}

// ReportFilename names the workbook after a month, e.g. "July_2026.xlsx".
func ReportFilename(t time.Time) string {
	return fmt.Sprintf("%s_%d.xlsx", t.Month().String(), t.Year())
}

// PreviousMonthFilename names the report for the month just closed.
func PreviousMonthFilename(now time.Time) string {
	return ReportFilename(now.AddDate(0, -1, 0))
}
