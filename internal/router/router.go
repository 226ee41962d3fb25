package router

import (
	"net/http"

	"valshop-api/internal/handler"
	"valshop-api/internal/middleware"
	"valshop-api/pkg/apierror"
	"valshop-api/pkg/response"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
)

// Config holds the configuration for creating a router.
type Config struct {
	Handler        *handler.Handler
	AuthHandler    *handler.AuthHandler
	ShopHandler    *handler.ShopHandler
	SkinsHandler   *handler.SkinsHandler
	UserHandler    *handler.UserHandler
	AdminHandler   *handler.AdminHandler
	Sessions       *middleware.Sessions
	AdminAuth      func(http.Handler) http.Handler
	AllowedOrigins []string
}

// New creates and configures the HTTP router.
func New(cfg Config) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware stack (applies to ALL routes)
	r.Use(middleware.RequestID)
	r.Use(middleware.Recovery)
	r.Use(middleware.Logging)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", middleware.RequestIDHeader, middleware.AdminKeyHeader},
		ExposedHeaders:   []string{middleware.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(cfg.Sessions.Middleware)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		response.Error(w, apierror.NotFound("接口不存在"))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		response.Error(w, apierror.MethodNotAllowed(""))
	})

	if cfg.Handler != nil {
		r.Get("/api/status", cfg.Handler.Status)
	}

	// Login endpoints create or read the session themselves.
	if cfg.AuthHandler != nil {
		r.Route("/api/auth", func(r chi.Router) {
			r.Post("/login", cfg.AuthHandler.Login)
			r.Post("/2fa", cfg.AuthHandler.SecondFactor)
			r.Post("/cookies", cfg.AuthHandler.CookieLogin)
			r.Post("/logout", cfg.AuthHandler.Logout)
			r.Get("/check", cfg.AuthHandler.Check)
		})
	}

	if cfg.SkinsHandler != nil {
		r.Get("/api/skins/check", cfg.SkinsHandler.Check)
		r.Get("/api/skins/search", cfg.SkinsHandler.Search)
		r.Get("/api/skins/weapons", cfg.SkinsHandler.Weapons)
		r.Get("/api/skins/weapons/{uuid}", cfg.SkinsHandler.WeaponSkins)
	}

	// SESSION routes
	r.Group(func(r chi.Router) {
		r.Use(cfg.Sessions.Require)

		if cfg.ShopHandler != nil {
			r.Route("/api/shop", func(r chi.Router) {
				r.Get("/daily", cfg.ShopHandler.Daily)
				r.Get("/bundles", cfg.ShopHandler.Bundles)
				r.Get("/nightmarket", cfg.ShopHandler.NightMarket)
				r.Get("/balance", cfg.ShopHandler.Balance)
				r.Get("/prices", cfg.ShopHandler.Prices)
			})
		}

		if cfg.SkinsHandler != nil {
			r.Post("/api/skins/shop", cfg.SkinsHandler.ShopSkins)
			r.Get("/api/skins/update-database", cfg.SkinsHandler.UpdateDatabase)
		}

		if cfg.UserHandler != nil {
			r.Route("/api/user", func(r chi.Router) {
				r.Get("/profile", cfg.UserHandler.Profile)
				r.Delete("/account", cfg.UserHandler.DeleteAccount)
				r.Get("/region", cfg.UserHandler.Region)
				r.Post("/refresh", cfg.UserHandler.Refresh)
			})
		}
	})

	// ADMIN routes
	if cfg.AdminHandler != nil && cfg.AdminAuth != nil {
		r.Route("/api/admin", func(r chi.Router) {
			r.Use(cfg.AdminAuth)
			r.Get("/stats", cfg.AdminHandler.GetStats)
			r.Post("/catalog/extract", cfg.AdminHandler.ExtractCatalog)
			r.Post("/cleanup", cfg.AdminHandler.Cleanup)
		})
	}

	return r
}
