package handler

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"valshop-api/internal/middleware"
	"valshop-api/internal/service"
	"valshop-api/pkg/apierror"
	"valshop-api/pkg/response"
)

// maxShopSkins bounds one /api/skins/shop request.
const maxShopSkins = 64

// SkinsHandler serves the skin catalog.
type SkinsHandler struct {
	catalog Catalog
}

// NewSkinsHandler creates a new skins handler.
func NewSkinsHandler(catalog Catalog) *SkinsHandler {
	return &SkinsHandler{catalog: catalog}
}

// ShopSkinsRequest represents the request body for item details.
type ShopSkinsRequest struct {
	UUIDs []string `json:"uuids"`
}

// ShopSkins handles POST /api/skins/shop
func (h *SkinsHandler) ShopSkins(w http.ResponseWriter, r *http.Request) {
	var req ShopSkinsRequest
	if err := decodeBody(r, &req); err != nil || len(req.UUIDs) == 0 || len(req.UUIDs) > maxShopSkins {
		response.Error(w, apierror.BadRequest("请提供有效的皮肤UUID数组"))
		return
	}
	for _, id := range req.UUIDs {
		if strings.TrimSpace(id) == "" {
			response.Error(w, apierror.BadRequest("请提供有效的皮肤UUID数组"))
			return
		}
	}

	sessionID := middleware.GetSessionID(r.Context())
	log.Printf("[SkinsHandler] Session %s requested %d items", sessionID, len(req.UUIDs))

	skins := h.catalog.ShopSkins(r.Context(), sessionID, req.UUIDs)
	response.OK(w, response.Fields{"skins": skins})
}

// Check handles GET /api/skins/check
func (h *SkinsHandler) Check(w http.ResponseWriter, r *http.Request) {
	st := h.catalog.DatabaseStatus()
	if !st.Exists {
		response.OK(w, response.Fields{
			"exists":  false,
			"message": "皮肤数据库文件不存在",
		})
		return
	}

	lastUpdated := st.LastUpdated
	if lastUpdated == "" {
		lastUpdated = "未知"
	}
	response.OK(w, response.Fields{
		"exists": true,
		"stats": map[string]interface{}{
			"lastUpdated": lastUpdated,
			"skinCount":   st.SkinCount,
			"weaponCount": st.WeaponCount,
			"tierCount":   st.TierCount,
			"fileSize":    fmt.Sprintf("%.2f MB", float64(st.Size)/(1024*1024)),
		},
	})
}

// UpdateDatabase handles GET /api/skins/update-database
func (h *SkinsHandler) UpdateDatabase(w http.ResponseWriter, r *http.Request) {
	log.Printf("[SkinsHandler] Session %s requested a catalog update", middleware.GetSessionID(r.Context()))

	report, err := h.catalog.UpdateDatabase(r.Context())
	if err != nil {
		log.Printf("[SkinsHandler] Catalog update failed: %v", err)
		response.Error(w, apierror.InternalError("更新皮肤数据库失败"))
		return
	}
	response.OK(w, response.Fields{
		"message": "皮肤数据库更新成功",
		"stats":   report,
	})
}

// Search handles GET /api/skins/search?q=&limit=
func (h *SkinsHandler) Search(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			response.Error(w, apierror.BadRequest("limit must be a positive integer"))
			return
		}
		limit = n
	}

	skins, err := h.catalog.SearchSkins(r.Context(), r.URL.Query().Get("q"), limit)
	if err != nil {
		if errors.Is(err, service.ErrInvalidInput) {
			response.Error(w, apierror.BadRequest("请提供搜索关键词"))
			return
		}
		log.Printf("[SkinsHandler] Search failed: %v", err)
		response.Error(w, apierror.UpstreamUnavailable("搜索皮肤失败"))
		return
	}
	response.OK(w, response.Fields{"skins": skins})
}

// Weapons handles GET /api/skins/weapons
func (h *SkinsHandler) Weapons(w http.ResponseWriter, r *http.Request) {
	weapons, err := h.catalog.Weapons(r.Context())
	if err != nil {
		log.Printf("[SkinsHandler] Weapon list failed: %v", err)
		response.Error(w, apierror.UpstreamUnavailable("获取武器数据失败"))
		return
	}
	response.OK(w, response.Fields{"weapons": weapons})
}

// WeaponSkins handles GET /api/skins/weapons/{uuid}
func (h *SkinsHandler) WeaponSkins(w http.ResponseWriter, r *http.Request) {
	weaponUUID := chi.URLParam(r, "uuid")
	skins, err := h.catalog.WeaponSkins(r.Context(), weaponUUID)
	if err != nil {
		if errors.Is(err, service.ErrInvalidInput) {
			response.Error(w, apierror.BadRequest("weapon uuid is required"))
			return
		}
		log.Printf("[SkinsHandler] Weapon skins failed for %s: %v", weaponUUID, err)
		response.Error(w, apierror.UpstreamUnavailable("获取武器皮肤失败"))
		return
	}
	response.OK(w, response.Fields{"skins": skins})
}
