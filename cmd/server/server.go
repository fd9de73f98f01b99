// cmd/server/server.go
package main

import (
	"net/http"
	"strconv"
	"time"

	"github.com/codr1/transitdash/internal/api"
	apidashboard "github.com/codr1/transitdash/internal/api/dashboard"
	"github.com/codr1/transitdash/internal/config"
	"github.com/codr1/transitdash/internal/dashboard"
	"github.com/codr1/transitdash/internal/ratelimit"
)

func newServer(cfg *config.Config, service *dashboard.Service, limiter *ratelimit.Limiter) *http.Server {
	router := http.NewServeMux()

	handler := api.ChainMiddleware(
		router,
		api.WithLogging,
		api.WithRecovery,
		api.WithRequestID,
		api.WithContentType,
	)

	apidashboard.InitHandlers(service, limiter, cfg.Dashboard.TrustProxy)
	registerRoutes(router)

	// Refreshes may run a full repository read; leave room for the refresh timeout.
	writeTimeout := service.RefreshTimeout() + 15*time.Second

	return &http.Server{
		Addr:         ":" + strconv.Itoa(cfg.App.Port),
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: writeTimeout,
		IdleTimeout:  60 * time.Second,
	}
}

func registerRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	apidashboard.RegisterRoutes(mux)
}
