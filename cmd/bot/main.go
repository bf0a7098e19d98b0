package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"cueclub/internal/api"
	"cueclub/internal/audit"
	"cueclub/internal/bot"
	"cueclub/internal/broadcast"
	"cueclub/internal/config"
	"cueclub/internal/db"
	"cueclub/internal/events"
	"cueclub/internal/lifecycle"
	"cueclub/internal/metrics"
	"cueclub/internal/payment"
	"cueclub/internal/push"
	"cueclub/internal/reminder"
	"cueclub/internal/sheets"
)

func main() {
	_ = godotenv.Load()

	output := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	logger := zerolog.New(output).With().Timestamp().Logger()

	cfg, err := config.Load(os.Getenv("CLUB_CONFIG_PATH"))
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}

	if cfg.Telegram.BotToken == "" || cfg.Telegram.BotToken == "YOUR_BOT_TOKEN_HERE" {
		logger.Fatal().Msg("set telegram.bot_token in config")
	}

	database, err := db.NewDB(cfg.Database.Path)
	if err != nil {
		logger.Fatal().Err(err).Msg("open db error")
	}
	defer database.Close()

	if err := database.SyncAdminFlags(context.Background(), cfg.Admins); err != nil {
		logger.Error().Err(err).Msg("sync admin flags failed")
	}

	var rdb *redis.Client
	if cfg.Redis.Address != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}

	var pusher *push.Client
	if cfg.Push.Enabled {
		pusher = push.NewClient(cfg.Push.Endpoint, rdb, logger)
	}

	bus := events.NewBus()
	svc := lifecycle.NewService(database, bus, logger)

	upi := payment.UPI{PayeeAddress: cfg.UPI.PayeeAddress, PayeeName: cfg.UPI.PayeeName}

	var botPusher bot.Pusher
	if pusher != nil {
		botPusher = pusher
	}
	b, err := bot.New(cfg.Telegram.BotToken, database, svc, bus, upi, botPusher, cfg.Admins, &logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("create bot error")
	}

	var broadcastPusher broadcast.Pusher
	if pusher != nil {
		broadcastPusher = pusher
	}
	broadcaster := broadcast.NewService(database, b, broadcastPusher, logger)
	b.SetBroadcastHandler(func(adminID int64, body string) {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		result, err := broadcaster.Send(ctx, adminID, body)
		if err != nil {
			logger.Error().Err(err).Msg("broadcast failed")
			return
		}
		_ = b.SendText(adminID, fmt.Sprintf("Broadcast done: %d sent, %d failed", result.Sent, result.Failed))
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Hot reload of the admin list without a restart.
	if err := config.Watch(ctx, os.Getenv("CLUB_CONFIG_PATH"), 30*time.Second, func(updated *config.Config) {
		if updated == nil {
			return
		}
		b.UpdateAdmins(updated.Admins)
		if err := database.SyncAdminFlags(ctx, updated.Admins); err != nil {
			logger.Error().Err(err).Msg("sync admin flags failed")
		}
	}); err != nil {
		logger.Error().Err(err).Msg("config watch failed")
	}

	if cfg.Reminder.Enabled {
		remCfg := reminder.Config{
			CheckInterval: time.Duration(cfg.Reminder.CheckIntervalMin) * time.Minute,
			LeadTime:      time.Duration(cfg.Reminder.LeadTimeMin) * time.Minute,
		}
		rem := reminder.NewService(remCfg, database, b, logger)
		rem.Start()
		defer rem.Stop()
	}

	if cfg.Audit.Enabled {
		auditSvc := audit.NewService(
			audit.Config{RetentionDays: cfg.Audit.RetentionDays},
			database, audit.NewExcelizeWriter, b, database, logger)
		auditSvc.Start()
		defer auditSvc.Stop()
		b.SetExportHandler(auditSvc.ExportNow)
	}

	if cfg.Sheets.Enabled {
		sheetsSvc, err := sheets.NewSheetsService(ctx, sheets.Config{
			Enabled:         true,
			CredentialsFile: cfg.Sheets.CredentialsFile,
			SpreadsheetID:   cfg.Sheets.SpreadsheetID,
			SheetName:       cfg.Sheets.SheetName,
		}, logger)
		if err != nil {
			logger.Error().Err(err).Msg("sheets client unavailable")
		} else {
			go runSheetsSync(ctx, sheetsSvc, database, &logger)
		}
	}

	if cfg.API.Enabled {
		apiSrv := api.NewHTTPServer(cfg.API.Address, database, rdb, logger)
		go func() {
			if err := apiSrv.Start(); err != nil {
				logger.Error().Err(err).Msg("availability api error")
			}
		}()
		go func() {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = apiSrv.Shutdown(shutdownCtx)
		}()
	}

	if pusher != nil {
		go runReceiptSweep(ctx, pusher, database, &logger)
	}

	if cfg.Monitoring.HealthCheckPort == 0 {
		cfg.Monitoring.HealthCheckPort = 8090
	}
	go startHealthServer(ctx, cfg.Monitoring.HealthCheckPort, database, rdb, &logger)

	if cfg.Monitoring.PrometheusEnabled {
		if cfg.Monitoring.PrometheusPort == 0 {
			cfg.Monitoring.PrometheusPort = 9090
		}
		metrics.Register()
		go startMetricsServer(ctx, cfg.Monitoring.PrometheusPort, &logger)
	}

	if cfg.Backup.Enabled {
		backupSvc := db.NewBackupService(cfg.Database.Path, db.BackupConfig{
			Enabled:       true,
			IntervalHours: cfg.Backup.IntervalHours,
			Path:          cfg.Backup.Path,
			RetentionDays: cfg.Backup.RetentionDays,
		}, &logger)
		go backupSvc.Start(ctx)
	}

	logger.Info().Msg("club bot started")
	b.Start(ctx)
}

// runSheetsSync mirrors recent bookings into the spreadsheet every few
// minutes. The sheet is a convenience ledger; the database stays the source
// of truth.
func runSheetsSync(ctx context.Context, svc *sheets.SheetsService, database *db.DB, logger *zerolog.Logger) {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	sync := func() {
		syncCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
		bookings, err := database.SearchBookings(syncCtx, "", "", "", "")
		if err != nil {
			logger.Error().Err(err).Msg("sheets sync: load bookings")
			return
		}
		if err := svc.SyncBookings(syncCtx, bookings); err != nil {
			logger.Error().Err(err).Msg("sheets sync failed")
		}
	}

	sync()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sync()
		}
	}
}

// runReceiptSweep periodically collects push delivery receipts and unlinks
// tokens the gateway reports as dead.
func runReceiptSweep(ctx context.Context, pusher *push.Client, database *db.DB, logger *zerolog.Logger) {
	ticker := time.NewTicker(30 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sweepCtx, cancel := context.WithTimeout(ctx, time.Minute)
			dead, err := pusher.SweepReceipts(sweepCtx)
			if err != nil {
				logger.Error().Err(err).Msg("receipt sweep failed")
				cancel()
				continue
			}
			for _, token := range dead {
				if err := database.ClearPushToken(sweepCtx, token); err != nil {
					logger.Error().Err(err).Str("token", token).Msg("clear dead push token")
				}
			}
			cancel()
		}
	}
}

func startHealthServer(ctx context.Context, port int, database *db.DB, rdb *redis.Client, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, _ *http.Request) {
		ctxPing, cancel := context.WithTimeout(ctx, time.Second)
		defer cancel()
		if err := database.PingContext(ctxPing); err != nil {
			http.Error(w, "db not ready", http.StatusServiceUnavailable)
			return
		}
		if rdb != nil {
			if err := rdb.Ping(ctxPing).Err(); err != nil {
				http.Error(w, "redis not ready", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("health server error")
	}
}

func startMetricsServer(ctx context.Context, port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("metrics server error")
	}
}
