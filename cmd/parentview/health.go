package main

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rickgao/athlete-live/internal/connection"
	"github.com/rickgao/athlete-live/internal/metrics"
)

// newStatusHandler serves Prometheus metrics and a /health summary of the
// connection. pool may be nil when persistence is off.
func newStatusHandler(metricsPath string, collector *metrics.Collector, mgr *connection.Manager, pool *pgxpool.Pool) http.Handler {
	mux := http.NewServeMux()
	mux.Handle(metricsPath, collector.Handler())

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		st := mgr.Status()
		health := struct {
			Status     string         `json:"status"`
			Components map[string]any `json:"components"`
		}{
			Status:     "healthy",
			Components: make(map[string]any),
		}

		conn := map[string]any{
			"state":   st.State.String(),
			"pending": st.QueueDepth,
		}
		if st.LastError != nil {
			conn["last_error"] = st.LastError.Error()
		}
		if st.Suspended {
			conn["suspended"] = true
		}
		if _, at, ok := mgr.Dispatcher().LastMessage(); ok {
			conn["last_message_at"] = at.UTC().Format(time.RFC3339)
		}
		health.Components["connection"] = conn
		if st.State != connection.StateConnected {
			health.Status = "degraded"
		}

		if pool != nil {
			if err := pool.Ping(ctx); err != nil {
				health.Status = "unhealthy"
				health.Components["database"] = map[string]string{
					"status": "disconnected",
					"error":  err.Error(),
				}
			} else {
				health.Components["database"] = "connected"
			}
		}

		w.Header().Set("Content-Type", "application/json")
		if health.Status == "unhealthy" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		json.NewEncoder(w).Encode(health)
	})

	return mux
}
