package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"assetbook/internal/api"
	"assetbook/internal/cache"
	"assetbook/internal/config"
	"assetbook/internal/events"
	"assetbook/internal/metrics"
	"assetbook/internal/models"
	"assetbook/internal/notify"
	"assetbook/internal/service"
	"assetbook/internal/sheets"
	"assetbook/internal/store"
)

func main() {
	// Initialize logger
	output := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	logger := zerolog.New(output).With().Timestamp().Logger()

	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg, err := config.Load(os.Getenv("ASSETBOOK_CONFIG_PATH"))
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}

	bus := events.NewBus()
	st, err := store.New(cfg.Database.Path, bus)
	if err != nil {
		logger.Fatal().Err(err).Msg("open db error")
	}
	defer st.Close()

	var rdb *redis.Client
	if cfg.Redis.Address != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}

	guard := cache.NewBookingGuard(rdb, cfg.GuardTTL(), &logger)
	snapshots := cache.NewSnapshotCache(rdb, cfg.CacheTTL())

	var notifier *notify.TelegramNotifier
	if cfg.Telegram.Enabled && cfg.Telegram.BotToken != "" {
		notifier, err = notify.NewTelegramNotifier(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Telegram.Debug, &logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("create telegram notifier error")
		}
	}

	svc := service.NewBookingService(st, guard, notifierOrNil(notifier), &logger)
	server := api.NewHTTPServer(st, svc, snapshots, &logger, api.Options{
		Port:            cfg.API.Port,
		RateLimitPerSec: cfg.API.RateLimitPerSec,
		RateBurst:       cfg.API.RateBurst,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go startHealthServer(ctx, cfg.Monitoring.HealthCheckPort, st, rdb, &logger)

	if cfg.Monitoring.PrometheusEnabled {
		metrics.Register()
		go startMetricsServer(ctx, cfg.Monitoring.PrometheusPort, &logger)
	}

	backup := store.NewBackupService(cfg.Database.Path, cfg.Backup, &logger)
	go backup.Start(ctx)

	if notifier != nil {
		digest := notify.NewDigestScheduler(st, notifier, 9, &logger)
		go digest.Start(ctx)
	}

	if cfg.Sheets.Enabled {
		if err := startSheetsSync(ctx, cfg, st, &logger); err != nil {
			logger.Error().Err(err).Msg("sheets sync disabled")
		}
	}

	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(ctxShutdown)
	}()

	logger.Info().Msg("assetbook server started")
	if err := server.Start(); err != nil {
		logger.Fatal().Err(err).Msg("api server error")
	}
}

// notifierOrNil keeps the typed-nil pointer out of the service interface.
func notifierOrNil(n *notify.TelegramNotifier) service.Notifier {
	if n == nil {
		return nil
	}
	return n
}

// startSheetsSync mirrors each organization's bookings into the spreadsheet.
// The first snapshot does a full sheet rewrite; later snapshots are diffed
// against the previous one so only the changed booking rows are written,
// through the sheet service's row cache.
func startSheetsSync(ctx context.Context, cfg *config.Config, st *store.Store, logger *zerolog.Logger) error {
	sheetsSvc, err := sheets.NewSheetsService(ctx, cfg.Sheets.CredentialsFile, cfg.Sheets.SpreadsheetID, logger)
	if err != nil {
		return err
	}

	orgs, err := st.ListOrganizations(ctx)
	if err != nil {
		return err
	}

	for _, org := range orgs {
		orgID := org.ID
		var mu sync.Mutex
		var prev map[string]models.Booking

		_, err := st.SubscribeBookings(ctx, orgID, func(bookings []models.Booking) {
			mu.Lock()
			defer mu.Unlock()

			assets, err := st.ListAssets(ctx, orgID)
			if err != nil {
				logger.Error().Err(err).Str("org_id", orgID).Msg("sheets sync: list assets failed")
				return
			}

			current := make(map[string]models.Booking, len(bookings))
			for _, b := range bookings {
				current[b.ID] = b
			}

			if prev == nil {
				if err := sheetsSvc.SyncBookings(ctx, bookings, assets); err != nil {
					logger.Error().Err(err).Str("org_id", orgID).Msg("sheets sync: full sync failed")
					return
				}
				prev = current
			} else {
				degraded := false
				for id := range prev {
					if _, ok := current[id]; ok {
						continue
					}
					if err := sheetsSvc.RemoveBookingRow(ctx, id); err != nil {
						logger.Error().Err(err).Str("org_id", orgID).Str("booking_id", id).Msg("sheets sync: remove row failed")
						degraded = true
					}
				}
				for id, b := range current {
					if old, ok := prev[id]; ok && old.Version == b.Version {
						continue
					}
					if err := sheetsSvc.UpsertBookingRow(ctx, &b, assets); err != nil {
						logger.Error().Err(err).Str("org_id", orgID).Str("booking_id", id).Msg("sheets sync: upsert row failed")
						degraded = true
					}
				}
				if degraded {
					// The sheet may no longer match the cache; fall back
					// to a full rewrite on the next snapshot.
					sheetsSvc.ClearCache()
					prev = nil
				} else {
					prev = current
				}
			}

			start := time.Now()
			end := start.AddDate(0, 1, 0)
			if err := sheetsSvc.PushSchedule(ctx, assets, bookings, start, end); err != nil {
				logger.Error().Err(err).Str("org_id", orgID).Msg("sheets sync: push failed")
			}
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func startHealthServer(ctx context.Context, port int, st *store.Store, rdb *redis.Client, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, _ *http.Request) {
		ctxPing, cancel := context.WithTimeout(ctx, time.Second)
		defer cancel()
		if err := st.Ping(ctxPing); err != nil {
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
