package audit

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Config holds the audit scheduler settings.
type Config struct {
	// RetentionDays is how long finished bookings stay in the live table.
	RetentionDays int

	// ExportOnStart runs an export immediately when the service starts.
	ExportOnStart bool
}

// Service runs the monthly export and the retention cleanup.
type Service struct {
	config   Config
	exporter TableExporter
	writer   func() ExcelWriter
	notifier Notifier
	cleaner  Cleaner
	logger   zerolog.Logger

	stopCh  chan struct{}
	wg      sync.WaitGroup
	mu      sync.Mutex
	running bool
}

// NewService creates an audit service. writerFactory produces a fresh
// workbook per export run.
func NewService(config Config, exporter TableExporter, writerFactory func() ExcelWriter,
	notifier Notifier, cleaner Cleaner, logger zerolog.Logger) *Service {
	if config.RetentionDays <= 0 {
		config.RetentionDays = 90
	}
	return &Service{
		config:   config,
		exporter: exporter,
		writer:   writerFactory,
		notifier: notifier,
		cleaner:  cleaner,
		logger:   logger.With().Str("component", "audit").Logger(),
		stopCh:   make(chan struct{}),
	}
}

// Start schedules the export for the first of each month.
func (s *Service) Start() {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.mu.Unlock()

	if s.config.ExportOnStart {
		go s.RunExportAndCleanup()
	}

	s.wg.Add(1)
	go s.loop()

	s.logger.Info().Int("retention_days", s.config.RetentionDays).Msg("audit service started")
}

// Stop shuts the scheduler down.
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.mu.Unlock()

	close(s.stopCh)
	s.wg.Wait()
	s.logger.Info().Msg("audit service stopped")
}

func (s *Service) loop() {
	defer s.wg.Done()

	nextRun := nextFirstOfMonth(time.Now())
	timer := time.NewTimer(time.Until(nextRun))
	defer timer.Stop()

	s.logger.Info().Time("next_run", nextRun).Msg("audit export scheduled")

	for {
		select {
		case <-s.stopCh:
			return
		case <-timer.C:
			s.RunExportAndCleanup()
			nextRun = nextFirstOfMonth(time.Now())
			timer.Reset(time.Until(nextRun))
			s.logger.Info().Time("next_run", nextRun).Msg("audit export scheduled")
		}
	}
}

func nextFirstOfMonth(now time.Time) time.Time {
	return time.Date(now.Year(), now.Month()+1, 1, 0, 1, 0, 0, now.Location())
}

// RunExportAndCleanup exports all tables and then prunes old bookings.
func (s *Service) RunExportAndCleanup() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()

	if err := s.export(ctx); err != nil {
		s.logger.Error().Err(err).Msg("audit export failed")
	}
	if err := s.cleanup(ctx); err != nil {
		s.logger.Error().Err(err).Msg("audit cleanup failed")
	}
}

func (s *Service) export(ctx context.Context) error {
	if s.exporter == nil || s.writer == nil {
		return fmt.Errorf("exporter or writer not configured")
	}

	tables, err := s.exporter.GetTableNames(ctx)
	if err != nil {
		return fmt.Errorf("get table names: %w", err)
	}
	if len(tables) == 0 {
		return nil
	}

	excel := s.writer()
	for _, table := range tables {
		data, columns, err := s.exporter.GetTableData(ctx, table)
		if err != nil {
			s.logger.Error().Err(err).Str("table", table).Msg("read table")
			continue
		}
		if err := excel.AddSheet(table); err != nil {
			s.logger.Error().Err(err).Str("table", table).Msg("add sheet")
			continue
		}
		if err := excel.WriteHeader(columns); err != nil {
			s.logger.Error().Err(err).Str("table", table).Msg("write header")
			continue
		}
		for _, row := range data {
			values := make([]any, len(columns))
			for i, col := range columns {
				values[i] = row[col]
			}
			if err := excel.WriteRow(values); err != nil {
				s.logger.Error().Err(err).Str("table", table).Msg("write row")
			}
		}
		s.logger.Debug().Str("table", table).Int("rows", len(data)).Msg("table exported")
	}

	var buf bytes.Buffer
	if err := excel.Save(&buf); err != nil {
		return fmt.Errorf("save workbook: %w", err)
	}

	if s.notifier != nil {
		filename := PreviousMonthFilename(time.Now())
		caption := fmt.Sprintf("Monthly club report %s", filename)
		if err := s.notifier.SendDocument(ctx, filename, &buf, caption); err != nil {
			return fmt.Errorf("send report: %w", err)
		}
		s.logger.Info().Str("filename", filename).Msg("audit report sent")
	}
	return nil
}

func (s *Service) cleanup(ctx context.Context) error {
	if s.cleaner == nil {
		return nil
	}

	retention := time.Duration(s.config.RetentionDays) * 24 * time.Hour
	deleted, err := s.cleaner.DeleteOldBookings(ctx, retention)
	if err != nil {
		return fmt.Errorf("delete old bookings: %w", err)
	}
	s.logger.Info().Int64("deleted", deleted).Msg("old bookings pruned")
	return nil
}

// ExportNow runs an export outside the schedule.
func (s *Service) ExportNow() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()
	return s.export(ctx)
}
