package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"habitping/internal/audit"
	"habitping/internal/config"
	"habitping/internal/database"
	"habitping/internal/reminders"
	"habitping/internal/transport"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

func main() {
	// Initialize logger
	output := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	logger := zerolog.New(output).With().Timestamp().Logger()

	_ = godotenv.Load()

	cfg, err := config.Load(os.Getenv("HABITPING_CONFIG"))
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}

	db, err := database.NewDB(cfg.Database.Path, &logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("open db error")
	}
	defer db.Close()

	sender, err := buildTransport(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("create transport error")
	}

	var metrics *reminders.Metrics
	if cfg.Monitoring.PrometheusEnabled {
		metrics = reminders.NewMetrics("habitping")
	}

	dispatcher := reminders.NewDispatcher(reminders.DispatcherConfig{
		RatePerSecond: cfg.SendRate(),
		Burst:         cfg.SendBurst(),
	}, sender, metrics, &logger)

	sweeper := reminders.NewSweeper(reminders.SweeperConfig{
		MaxConcurrentSends: cfg.MaxConcurrentSends(),
		SendTimeout:        cfg.SendTimeout(),
	}, db, dispatcher, db, metrics, &logger)

	var rdb *redis.Client
	var lock reminders.SweepLock
	if cfg.Redis.Address != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		lock = reminders.NewRedisSweepLock(rdb, "habitping:sweep:lock", cfg.LockTTL())
	}

	scheduler := reminders.NewScheduler(reminders.SchedulerConfig{
		Interval: cfg.SweepInterval(),
	}, sweeper, lock, &logger)

	exporter := audit.NewExporter(db, &logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Backup.Enabled {
		backup := database.NewBackupService(cfg.Database.Path, database.BackupConfig{
			Enabled:       true,
			Interval:      cfg.BackupInterval(),
			StoragePath:   cfg.Backup.Path,
			RetentionDays: cfg.Backup.RetentionDays,
		}, &logger)
		go backup.Start(ctx)
	}

	if cfg.Monitoring.HealthCheckPort == 0 {
		cfg.Monitoring.HealthCheckPort = 8090
	}
	go startHealthServer(ctx, cfg.Monitoring.HealthCheckPort, db, rdb, scheduler, exporter, &logger)

	if cfg.Monitoring.PrometheusEnabled {
		if cfg.Monitoring.PrometheusPort == 0 {
			cfg.Monitoring.PrometheusPort = 9090
		}
		go startMetricsServer(ctx, cfg.Monitoring.PrometheusPort, &logger)
	}

	logger.Info().
		Str("transport", cfg.Transport.Kind).
		Dur("interval", cfg.SweepInterval()).
		Msg("habitping started")
	scheduler.Start(ctx)
}

func buildTransport(cfg *config.Config) (reminders.Transport, error) {
	switch cfg.Transport.Kind {
	case "smtp":
		if cfg.Email.Host == "" || cfg.Email.From == "" {
			return nil, errors.New("set email.host and email.from for smtp transport")
		}
		return transport.NewSMTP(transport.SMTPConfig{
			Host:     cfg.Email.Host,
			Port:     cfg.Email.Port,
			Username: cfg.Email.Username,
			Password: cfg.Email.Password,
			From:     cfg.Email.From,
		}), nil
	case "telegram":
		if cfg.Telegram.BotToken == "" {
			return nil, errors.New("set telegram.bot_token for telegram transport")
		}
		return transport.NewTelegram(cfg.Telegram.BotToken)
	default:
		return nil, fmt.Errorf("unknown transport.kind %q", cfg.Transport.Kind)
	}
}

func startHealthServer(
	ctx context.Context,
	port int,
	db *database.DB,
	rdb *redis.Client,
	scheduler *reminders.Scheduler,
	exporter *audit.Exporter,
	logger *zerolog.Logger,
) {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, _ *http.Request) {
		ctxPing, cancel := context.WithTimeout(ctx, time.Second)
		defer cancel()
		if err := db.PingContext(ctxPing); err != nil {
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
	mux.HandleFunc("/run", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		summary, err := scheduler.RunNow(r.Context())
		if errors.Is(err, reminders.ErrSweepInFlight) {
			http.Error(w, err.Error(), http.StatusConflict)
			return
		}
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(summary)
	})
	mux.HandleFunc("/report.xlsx", func(w http.ResponseWriter, r *http.Request) {
		now := time.Now()
		from := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		w.Header().Set("Content-Disposition", "attachment; filename="+audit.Filename(now))
		if err := exporter.Export(r.Context(), from, now, w); err != nil {
			logger.Error().Err(err).Msg("report export error")
		}
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
