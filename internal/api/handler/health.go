package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/daap14/billstore/internal/api/middleware"
	"github.com/daap14/billstore/internal/api/response"
)

// pingTimeout bounds the database probe of one health request.
const pingTimeout = 2 * time.Second

// DBPinger checks database reachability and reports pool accounting.
// *store.Store satisfies it.
type DBPinger interface {
	Ping(ctx context.Context) error
	Stats() *pgxpool.Stat
}

// HealthHandler handles the GET /health endpoint.
type HealthHandler struct {
	db      DBPinger
	version string
}

// NewHealthHandler creates a new HealthHandler.
func NewHealthHandler(db DBPinger, version string) *HealthHandler {
	return &HealthHandler{
		db:      db,
		version: version,
	}
}

type poolStatus struct {
	Acquired    int32 `json:"acquired"`
	Idle        int32 `json:"idle"`
	Total       int32 `json:"total"`
	Max         int32 `json:"max"`
	EmptyWaits  int64 `json:"emptyWaits"`
	CanceledAcq int64 `json:"canceledAcquires"`
}

type databaseStatus struct {
	Connected bool        `json:"connected"`
	Pool      *poolStatus `json:"pool"`
}

type healthData struct {
	Status   string         `json:"status"`
	Version  string         `json:"version"`
	Database databaseStatus `json:"database"`
}

// ServeHTTP handles the health check request.
func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	ctx, cancel := context.WithTimeout(r.Context(), pingTimeout)
	defer cancel()

	status := "healthy"
	connected := true
	if err := h.db.Ping(ctx); err != nil {
		slog.WarnContext(r.Context(), "database health check failed", "error", err, "requestId", requestID)
		status = "degraded"
		connected = false
	}

	var pool *poolStatus
	if s := h.db.Stats(); s != nil {
		pool = &poolStatus{
			Acquired:    s.AcquiredConns(),
			Idle:        s.IdleConns(),
			Total:       s.TotalConns(),
			Max:         s.MaxConns(),
			EmptyWaits:  s.EmptyAcquireCount(),
			CanceledAcq: s.CanceledAcquireCount(),
		}
	}

	data := healthData{
		Status:  status,
		Version: h.version,
		Database: databaseStatus{
			Connected: connected,
			Pool:      pool,
		},
	}

	response.Success(w, http.StatusOK, data, requestID)
}
