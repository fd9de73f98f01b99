package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/codr1/transitdash/internal/metrics"
)

const (
	GlobalRefreshJob  = "dashboard_global_refresh"
	CompanyRefreshJob = "dashboard_company_refresh"

	defaultJobTimeout = 2 * time.Minute
)

// Refresher is implemented by dashboard.Service.
type Refresher interface {
	Refresh(ctx context.Context, scope metrics.Scope) (metrics.Snapshot, error)
	RefreshCompanies(ctx context.Context) (int, error)
}

// AlertNotifier is implemented by email.AlertDigest.
type AlertNotifier interface {
	Notify(ctx context.Context, snapshot metrics.Snapshot) (bool, error)
}

type RefreshJobs struct {
	GlobalCron  string
	CompanyCron string
	Timeout     time.Duration
}

// RegisterRefreshJobs adds the global and per-company refresh jobs to s. A
// nil notifier disables alert digests. An empty cron expression leaves that
// job out.
func (s *Service) RegisterRefreshJobs(refresher Refresher, notifier AlertNotifier, jobs RefreshJobs) error {
	if refresher == nil {
		return fmt.Errorf("refresh jobs require a refresher")
	}
	timeout := jobs.Timeout
	if timeout <= 0 {
		timeout = defaultJobTimeout
	}

	if jobs.GlobalCron != "" {
		jobLogger := log.With().
			Str("component", "dashboard_refresh_job").
			Str("job_name", GlobalRefreshJob).
			Logger()
		_, err := s.AddJob(GlobalRefreshJob, jobs.GlobalCron, func() {
			ctx, cancel := context.WithTimeout(context.Background(), timeout)
			defer cancel()
			runGlobalRefresh(jobLogger.WithContext(ctx), refresher, notifier)
		})
		if err != nil {
			return fmt.Errorf("add global refresh job: %w", err)
		}
	}

	if jobs.CompanyCron != "" {
		jobLogger := log.With().
			Str("component", "dashboard_refresh_job").
			Str("job_name", CompanyRefreshJob).
			Logger()
		_, err := s.AddJob(CompanyRefreshJob, jobs.CompanyCron, func() {
			ctx, cancel := context.WithTimeout(context.Background(), timeout)
			defer cancel()
			runCompanyRefresh(jobLogger.WithContext(ctx), refresher)
		})
		if err != nil {
			return fmt.Errorf("add company refresh job: %w", err)
		}
	}
	return nil
}

func runGlobalRefresh(ctx context.Context, refresher Refresher, notifier AlertNotifier) {
	logger := zerolog.Ctx(ctx)

	snapshot, err := refresher.Refresh(ctx, metrics.GlobalScope)
	if err != nil {
		logger.Error().Err(err).Msg("Scheduled global refresh failed")
		return
	}
	if notifier == nil {
		return
	}
	if _, err := notifier.Notify(ctx, snapshot); err != nil {
		logger.Error().Err(err).Str("snapshot_id", snapshot.ID).Msg("Alert digest failed")
	}
}

func runCompanyRefresh(ctx context.Context, refresher Refresher) {
	logger := zerolog.Ctx(ctx)

	refreshed, err := refresher.RefreshCompanies(ctx)
	if err != nil {
		logger.Error().Err(err).Int("refreshed", refreshed).Msg("Scheduled company refresh had failures")
		return
	}
	logger.Debug().Int("refreshed", refreshed).Msg("Scheduled company refresh completed")
}
