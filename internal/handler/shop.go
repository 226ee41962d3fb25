package handler

import (
	"net/http"

	"valshop-api/internal/middleware"
	"valshop-api/pkg/response"
)

// ShopHandler serves the storefront views. Every route sits behind
// Sessions.Require, so a session id is always present.
type ShopHandler struct {
	shop Storefront
}

// NewShopHandler creates a new shop handler.
func NewShopHandler(shop Storefront) *ShopHandler {
	return &ShopHandler{shop: shop}
}

// Daily handles GET /api/shop/daily
func (h *ShopHandler) Daily(w http.ResponseWriter, r *http.Request) {
	daily, err := h.shop.DailyOffers(r.Context(), middleware.GetSessionID(r.Context()))
	if err != nil {
		response.Error(w, shopError(err, "获取商店数据失败"))
		return
	}
	fields := response.Fields{
		"offers":  daily.Offers,
		"expires": daily.Expires,
		"cached":  daily.Cached,
	}
	if daily.Accessory != nil {
		fields["accessory"] = daily.Accessory
	}
	response.OK(w, fields)
}

// Bundles handles GET /api/shop/bundles
func (h *ShopHandler) Bundles(w http.ResponseWriter, r *http.Request) {
	bundles, err := h.shop.Bundles(r.Context(), middleware.GetSessionID(r.Context()))
	if err != nil {
		response.Error(w, shopError(err, "获取捆绑包数据失败"))
		return
	}
	response.OK(w, response.Fields{"bundles": bundles})
}

// NightMarket handles GET /api/shop/nightmarket. A closed night market
// reports offers=false.
func (h *ShopHandler) NightMarket(w http.ResponseWriter, r *http.Request) {
	nm, err := h.shop.NightMarket(r.Context(), middleware.GetSessionID(r.Context()))
	if err != nil {
		response.Error(w, shopError(err, "获取夜市数据失败"))
		return
	}
	if nm.Offers == nil {
		response.OK(w, response.Fields{"offers": false})
		return
	}
	response.OK(w, response.Fields{
		"offers":  nm.Offers,
		"expires": nm.Expires,
	})
}

// Balance handles GET /api/shop/balance
func (h *ShopHandler) Balance(w http.ResponseWriter, r *http.Request) {
	bal, err := h.shop.Balance(r.Context(), middleware.GetSessionID(r.Context()))
	if err != nil {
		response.Error(w, shopError(err, "获取余额数据失败"))
		return
	}
	response.OK(w, response.Fields{
		"vp":  bal.VP,
		"rad": bal.Rad,
		"kc":  bal.KC,
	})
}

// Prices handles GET /api/shop/prices
func (h *ShopHandler) Prices(w http.ResponseWriter, r *http.Request) {
	prices, cached, err := h.shop.Prices(r.Context(), middleware.GetSessionID(r.Context()))
	if err != nil {
		response.Error(w, shopError(err, "获取价格数据失败"))
		return
	}
	response.OK(w, response.Fields{
		"prices": prices,
		"cached": cached,
	})
}
