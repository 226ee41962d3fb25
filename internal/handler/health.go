package handler

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"valshop-api/pkg/apierror"
	"valshop-api/pkg/response"
)

// Counter is anything that can report a row count; used as the storage health check.
type Counter interface {
	Count(ctx context.Context) (int64, error)
}

// Handler serves health endpoints.
type Handler struct {
	service   string
	version   string
	storage   Counter
	startTime time.Time
}

// New creates a new health handler.
func New(service, version string, storage Counter) *Handler {
	return &Handler{
		service:   service,
		version:   version,
		storage:   storage,
		startTime: time.Now(),
	}
}

// StatusChecks represents the checks in status response
type StatusChecks struct {
	Storage  string  `json:"storage"`
	MemoryMB float64 `json:"memory_mb"`
}

// Status handles GET /api/status
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	requestStart := time.Now()

	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)
	memoryMB := float64(memStats.Alloc) / 1024 / 1024

	storage := "ok"
	if h.storage != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		_, err := h.storage.Count(ctx)
		cancel()
		if err != nil {
			storage = "error"
		}
	}

	status := "ok"
	if storage != "ok" {
		status = "degraded"
	}

	body := response.Fields{
		"service":        h.service,
		"version":        h.version,
		"status":         status,
		"timestamp":      time.Now().UTC().Format(time.RFC3339),
		"uptime_seconds": int64(time.Since(h.startTime).Seconds()),
		"ping_ms":        time.Since(requestStart).Milliseconds(),
		"checks": StatusChecks{
			Storage:  storage,
			MemoryMB: float64(int(memoryMB*100)) / 100,
		},
	}

	w.Header().Set("Cache-Control", "no-store, no-cache, must-revalidate")
	if status != "ok" {
		response.ErrorWith(w, apierror.ServiceUnavailable("会话存储不可用"), body)
		return
	}
	response.OK(w, body)
}
