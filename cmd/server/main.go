// cmd/server/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/codr1/transitdash/internal/config"
	"github.com/codr1/transitdash/internal/dashboard"
	"github.com/codr1/transitdash/internal/db"
	"github.com/codr1/transitdash/internal/email"
	"github.com/codr1/transitdash/internal/metrics"
	"github.com/codr1/transitdash/internal/ratelimit"
	"github.com/codr1/transitdash/internal/scheduler"
)

func setupLogger(environment string) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if environment == "development" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
	zerolog.DefaultContextLogger = &log.Logger
}

func main() {
	configPath := flag.String("config", "config/app.yaml", "Path to the YAML configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Str("config", *configPath).Msg("Failed to load configuration")
	}
	setupLogger(cfg.App.Environment)

	database, err := db.NewFromConfig(cfg)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.Database.Driver).Msg("Failed to open database")
	}
	defer database.Close()

	loc, err := cfg.Location()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load dashboard timezone")
	}

	service := dashboard.NewService(
		db.NewRepository(database),
		metrics.NewEngine(loc),
		dashboard.Config{RefreshTimeout: cfg.Dashboard.RefreshTimeout},
	)

	var limiter *ratelimit.Limiter
	if cfg.Dashboard.ManualRefreshPerMinute > 0 {
		limiter = ratelimit.New(&ratelimit.Config{PerMinute: cfg.Dashboard.ManualRefreshPerMinute})
		defer limiter.Close()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var notifier scheduler.AlertNotifier
	if cfg.Notify.Enabled {
		sesClient, err := email.NewSESClient(ctx, email.SESConfig{
			Region:          cfg.Notify.Region,
			Sender:          cfg.Notify.Sender,
			AccessKeyID:     cfg.Notify.AccessKeyID,
			SecretAccessKey: cfg.Notify.SecretAccessKey,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize SES client")
		}
		notifier = email.NewAlertDigest(sesClient, cfg.Notify.Recipient)
		log.Info().Str("recipient", cfg.Notify.Recipient).Msg("Alert digests enabled")
	}

	if err := scheduler.Init(); err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize scheduler")
	}
	sched, err := scheduler.ServiceInstance()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load scheduler")
	}
	if err := sched.RegisterRefreshJobs(service, notifier, scheduler.RefreshJobs{
		GlobalCron:  cfg.Dashboard.GlobalCron,
		CompanyCron: cfg.Dashboard.CompanyCron,
	}); err != nil {
		log.Fatal().Err(err).Msg("Failed to register refresh jobs")
	}

	if _, err := service.Refresh(ctx, metrics.GlobalScope); err != nil {
		log.Warn().Err(err).Msg("Initial dashboard refresh failed")
	}

	server := newServer(cfg, service, limiter)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := scheduler.Start(); err != nil {
			return fmt.Errorf("scheduler start: %w", err)
		}
		<-ctx.Done()
		if err := scheduler.Stop(); err != nil {
			return fmt.Errorf("scheduler stop: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		log.Info().Int("port", cfg.App.Port).Msg("Starting server")
		if err := server.ListenAndServe(); err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownTimeout := cfg.App.ShutdownTimeout
		if shutdownTimeout <= 0 {
			shutdownTimeout = 30 * time.Second
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		log.Info().Msg("Shutting down server")
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown error: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("Server terminated with error")
		os.Exit(1)
	}
}
