// internal/api/dashboard/handlers.go
package dashboard

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/codr1/transitdash/internal/api/apiutil"
	appdashboard "github.com/codr1/transitdash/internal/dashboard"
	"github.com/codr1/transitdash/internal/metrics"
	"github.com/codr1/transitdash/internal/ratelimit"
	"github.com/codr1/transitdash/internal/request"
)

// Snapshots is the part of dashboard.Service the handlers use.
type Snapshots interface {
	Snapshot(ctx context.Context, scope metrics.Scope) (metrics.Snapshot, error)
	Refresh(ctx context.Context, scope metrics.Scope) (metrics.Snapshot, error)
}

type handlerDeps struct {
	snapshots  Snapshots
	limiter    *ratelimit.Limiter
	trustProxy bool
}

var (
	deps     handlerDeps
	depsOnce sync.Once
)

// InitHandlers must be called during server startup before handling
// requests. A nil limiter leaves manual refreshes unthrottled.
func InitHandlers(snapshots Snapshots, limiter *ratelimit.Limiter, trustProxy bool) {
	if snapshots == nil {
		log.Warn().Msg("InitHandlers called with nil snapshot source; dashboard handlers will be unavailable")
		return
	}
	depsOnce.Do(func() {
		deps = handlerDeps{snapshots: snapshots, limiter: limiter, trustProxy: trustProxy}
	})
}

func RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/dashboard", HandleDashboard)
	mux.HandleFunc("GET /api/v1/dashboard/alerts", HandleAlerts)
	mux.HandleFunc("POST /api/v1/dashboard/refresh", HandleRefresh)
}

// HandleDashboard returns the stored snapshot for GET /api/v1/dashboard,
// computing it once if the scope has never been refreshed.
func HandleDashboard(w http.ResponseWriter, r *http.Request) {
	snapshot, ok := loadSnapshot(w, r, false)
	if !ok {
		return
	}
	writeJSON(w, r, http.StatusOK, snapshot)
}

type alertsResponse struct {
	SnapshotID  string          `json:"snapshotId"`
	Scope       metrics.Scope   `json:"scope"`
	GeneratedAt time.Time       `json:"generatedAt"`
	Alerts      []metrics.Alert `json:"alerts"`
}

// HandleAlerts returns only the alert list for GET /api/v1/dashboard/alerts.
func HandleAlerts(w http.ResponseWriter, r *http.Request) {
	snapshot, ok := loadSnapshot(w, r, false)
	if !ok {
		return
	}
	alerts := snapshot.Alerts
	if alerts == nil {
		alerts = []metrics.Alert{}
	}
	writeJSON(w, r, http.StatusOK, alertsResponse{
		SnapshotID:  snapshot.ID,
		Scope:       snapshot.Scope,
		GeneratedAt: snapshot.GeneratedAt,
		Alerts:      alerts,
	})
}

// HandleRefresh recomputes the snapshot for POST /api/v1/dashboard/refresh.
func HandleRefresh(w http.ResponseWriter, r *http.Request) {
	snapshot, ok := loadSnapshot(w, r, true)
	if !ok {
		return
	}
	writeJSON(w, r, http.StatusOK, snapshot)
}

func loadSnapshot(w http.ResponseWriter, r *http.Request, refresh bool) (metrics.Snapshot, bool) {
	d := deps
	if d.snapshots == nil {
		apiutil.WriteError(w, r, apiutil.HandlerError{
			Status:  http.StatusInternalServerError,
			Message: "Dashboard not initialized",
		})
		return metrics.Snapshot{}, false
	}

	scope, err := resolveScope(r)
	if err != nil {
		apiutil.WriteError(w, r, apiutil.HandlerError{Status: http.StatusBadRequest, Message: err.Error(), Err: err})
		return metrics.Snapshot{}, false
	}

	var snapshot metrics.Snapshot
	if refresh {
		if d.limiter != nil {
			ip := ratelimit.GetClientIP(r, d.trustProxy)
			if result := d.limiter.Allow(ip); !result.Allowed {
				ratelimit.LogRefreshThrottled(r.Context(), ip, scope.String(), result.RetryAfter)
				w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds(result.RetryAfter)))
				apiutil.WriteError(w, r, apiutil.HandlerError{
					Status:  http.StatusTooManyRequests,
					Message: "Too many refresh requests",
				})
				return metrics.Snapshot{}, false
			}
		}
		snapshot, err = d.snapshots.Refresh(r.Context(), scope)
	} else {
		snapshot, err = d.snapshots.Snapshot(r.Context(), scope)
	}
	if err != nil {
		apiutil.WriteError(w, r, classifyError(err))
		return metrics.Snapshot{}, false
	}
	return snapshot, true
}

func resolveScope(r *http.Request) (metrics.Scope, error) {
	companyID, err := request.CompanyIDFromRequest(r)
	if err != nil {
		return metrics.Scope{}, err
	}
	if companyID == 0 {
		return metrics.GlobalScope, nil
	}
	return metrics.CompanyScope(companyID), nil
}

func classifyError(err error) apiutil.HandlerError {
	switch {
	case errors.Is(err, appdashboard.ErrCompanyNotFound):
		return apiutil.HandlerError{Status: http.StatusNotFound, Message: "Company not found", Err: err}
	// A timed-out read is also a RepositoryError; the deadline wins.
	case errors.Is(err, context.DeadlineExceeded):
		return apiutil.HandlerError{Status: http.StatusGatewayTimeout, Message: "Dashboard refresh timed out", Err: err}
	case errors.Is(err, appdashboard.ErrRepository):
		return apiutil.HandlerError{Status: http.StatusServiceUnavailable, Message: "Dashboard data unavailable", Err: err}
	default:
		return apiutil.HandlerError{Status: http.StatusInternalServerError, Message: "Failed to load dashboard", Err: err}
	}
}

func retryAfterSeconds(d time.Duration) int {
	seconds := int((d + time.Second - 1) / time.Second)
	if seconds < 1 {
		return 1
	}
	return seconds
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, payload any) {
	if err := apiutil.WriteJSON(w, status, payload); err != nil {
		log.Ctx(r.Context()).Error().Err(err).Msg("Failed to write dashboard response")
	}
}
