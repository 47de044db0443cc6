package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/searchsync/searchsync/infrastructure/api/middleware"
)

// Pinger checks a dependency's liveness.
type Pinger interface {
	Ping(ctx context.Context) error
}

// healthResponse is the /healthz body.
type healthResponse struct {
	Status   string `json:"status"`
	Database string `json:"database"`
	Vector   string `json:"vector"`
}

// HealthHandler answers GET /healthz. Degraded vector capability is
// reported but does not fail the check; an unreachable database does.
func HealthHandler(db Pinger, vectorEnabled bool, logger *slog.Logger) http.HandlerFunc {
	if logger == nil {
		logger = slog.Default()
	}
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		resp := healthResponse{Status: "ok", Database: "ok", Vector: "enabled"}
		if !vectorEnabled {
			resp.Vector = "disabled"
		}

		status := http.StatusOK
		if err := db.Ping(ctx); err != nil {
			logger.Error("health check database ping failed", "error", err)
			resp.Status = "unavailable"
			resp.Database = "unreachable"
			status = http.StatusServiceUnavailable
		}

		middleware.WriteJSON(w, status, resp)
	}
}
