package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rickgao/effectwatch/internal/connection"
	"github.com/rickgao/effectwatch/internal/effect"
	"github.com/rickgao/effectwatch/internal/render"
	"github.com/rickgao/effectwatch/internal/router"
	"github.com/rickgao/effectwatch/internal/version"
	"github.com/rickgao/effectwatch/internal/writer"
)

// createHealthHandler creates the HTTP handler for health checks and the
// JSON view of the effects. pool and w are nil when history is disabled.
func createHealthHandler(
	conn connection.Manager,
	rtr router.Router,
	store *effect.Store,
	pool *pgxpool.Pool,
	w *writer.EventWriter,
	logger *slog.Logger,
) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(rw http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		health := struct {
			Status     string         `json:"status"`
			Version    version.Info   `json:"version"`
			Components map[string]any `json:"components"`
		}{
			Status:     "healthy",
			Version:    version.Get(),
			Components: make(map[string]any),
		}

		// Check connection
		cs := conn.Stats()
		health.Components["connection"] = map[string]any{
			"state":             cs.State.String(),
			"session_id":        cs.SessionID,
			"attempts":          cs.Attempts,
			"sessions":          cs.Sessions,
			"failures":          cs.Failures,
			"messages_received": cs.MessagesReceived,
			"last_error":        cs.LastError,
		}
		if cs.State != connection.StateConnected {
			health.Status = "degraded"
		}

		health.Components["router"] = rtr.Stats()
		health.Components["store"] = store.Stats()

		// Check history database
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
		if w != nil {
			health.Components["writer"] = w.Stats()
		}

		// Set response
		rw.Header().Set("Content-Type", "application/json")
		if health.Status == "unhealthy" {
			rw.WriteHeader(http.StatusServiceUnavailable)
		}
		if err := json.NewEncoder(rw).Encode(health); err != nil {
			logger.Debug("write health response", "error", err)
		}
	})

	mux.HandleFunc("/effects", func(rw http.ResponseWriter, r *http.Request) {
		snap := store.Snapshot()
		records := snap.RenderList()

		type effectView struct {
			ID          string  `json:"id"`
			Title       string  `json:"title,omitempty"`
			Description string  `json:"description,omitempty"`
			Progress    float64 `json:"progress"`
			State       string  `json:"state,omitempty"`
			Class       string  `json:"class"`
		}
		effects := make([]effectView, len(records))
		for i, rec := range records {
			effects[i] = effectView{
				ID:          rec.ID,
				Title:       rec.Title,
				Description: rec.Description,
				Progress:    rec.Progress,
				State:       string(rec.State),
				Class:       render.ClassName(rec.State),
			}
		}

		rw.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(rw).Encode(map[string]any{
			"count":   snap.Len(),
			"showing": len(effects),
			"version": snap.Version(),
			"effects": effects,
		}); err != nil {
			logger.Debug("write effects response", "error", err)
		}
	})

	return mux
}
