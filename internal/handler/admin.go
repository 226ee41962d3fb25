package handler

import (
	"context"
	"log"
	"net/http"
	"runtime"
	"time"

	"valshop-api/internal/cache"
	"valshop-api/internal/model"
	"valshop-api/internal/repository"
	"valshop-api/pkg/apierror"
	"valshop-api/pkg/response"
)

// CatalogMaintainer is the operator side of the catalog.
type CatalogMaintainer interface {
	DatabaseStatus() model.CatalogStatus
	ExtractFromSnapshots(ctx context.Context) (int, error)
}

// Sweeper runs an immediate cleanup.
type Sweeper interface {
	RunNow() (int64, error)
}

// AdminHandler handles operator HTTP requests.
type AdminHandler struct {
	users       repository.UserRepository // Interface instead of concrete type
	cache       cache.Cache
	catalog     CatalogMaintainer
	sweeper     Sweeper
	storageType string
	cacheType   string
	startTime   time.Time
}

// NewAdminHandler creates a new admin handler.
func NewAdminHandler(
	users repository.UserRepository,
	c cache.Cache,
	catalog CatalogMaintainer,
	sweeper Sweeper,
	storageType, cacheType string,
) *AdminHandler {
	return &AdminHandler{
		users:       users,
		cache:       c,
		catalog:     catalog,
		sweeper:     sweeper,
		storageType: storageType,
		cacheType:   cacheType,
		startTime:   time.Now(),
	}
}

// GetStats handles GET /api/admin/stats
func (h *AdminHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	stats := make(response.Fields)

	// System info
	stats["uptime_seconds"] = int64(time.Since(h.startTime).Seconds())
	stats["uptime_human"] = time.Since(h.startTime).Round(time.Second).String()
	stats["server_time"] = time.Now().Format(time.RFC3339)

	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)
	stats["memory"] = map[string]interface{}{
		"alloc_mb":      float64(memStats.Alloc) / 1024 / 1024,
		"sys_mb":        float64(memStats.Sys) / 1024 / 1024,
		"heap_inuse_mb": float64(memStats.HeapInuse) / 1024 / 1024,
		"num_gc":        memStats.NumGC,
		"goroutines":    runtime.NumGoroutine(),
	}

	// Session store
	sessions := map[string]interface{}{"type": h.storageType}
	if n, err := h.users.Count(ctx); err == nil {
		sessions["records"] = n
		sessions["status"] = "connected"
	} else {
		sessions["status"] = "error"
		sessions["error"] = err.Error()
	}
	stats["sessions"] = sessions

	// Cache
	cacheStats := map[string]interface{}{"type": h.cacheType}
	if h.cache != nil {
		if keys, err := h.cache.Keys(ctx, "shop_"); err == nil {
			cacheStats["storefront_snapshots"] = len(keys)
			cacheStats["status"] = "connected"
		} else {
			cacheStats["status"] = "error"
			cacheStats["error"] = err.Error()
		}
		if ok, err := h.cache.Exists(ctx, "prices"); err == nil {
			cacheStats["prices_cached"] = ok
		}
	} else {
		cacheStats["status"] = "not_configured"
	}
	stats["cache"] = cacheStats

	if h.catalog != nil {
		stats["catalog"] = h.catalog.DatabaseStatus()
	}

	stats["runtime"] = map[string]interface{}{
		"go_version": runtime.Version(),
		"os":         runtime.GOOS,
		"arch":       runtime.GOARCH,
		"cpus":       runtime.NumCPU(),
	}

	response.OK(w, stats)
}

// ExtractCatalog handles POST /api/admin/catalog/extract
func (h *AdminHandler) ExtractCatalog(w http.ResponseWriter, r *http.Request) {
	added, err := h.catalog.ExtractFromSnapshots(r.Context())
	if err != nil {
		log.Printf("[AdminHandler] Catalog extraction failed: %v", err)
		response.Error(w, apierror.InternalError("提取商店数据失败"))
		return
	}
	response.OK(w, response.Fields{"added": added})
}

// Cleanup handles POST /api/admin/cleanup
func (h *AdminHandler) Cleanup(w http.ResponseWriter, r *http.Request) {
	removed, err := h.sweeper.RunNow()
	if err != nil {
		log.Printf("[AdminHandler] Cleanup failed: %v", err)
		response.Error(w, apierror.InternalError(""))
		return
	}
	response.OK(w, response.Fields{"removed": removed})
}
