package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"valshop-api/internal/cache"
	"valshop-api/internal/config"
	"valshop-api/internal/handler"
	"valshop-api/internal/middleware"
	"valshop-api/internal/repository"
	"valshop-api/internal/riot"
	"valshop-api/internal/router"
	"valshop-api/internal/service"
	"valshop-api/internal/valapi"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("Starting valshop API...")

	// Load configuration
	cfg := config.MustLoad()
	log.Printf("Environment: %s", cfg.App.Environment)

	users, err := openUserStore(&cfg.Storage)
	if err != nil {
		log.Fatalf("Failed to initialize session store: %v", err)
	}
	defer users.Close()

	store, local, err := openCache(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize cache: %v", err)
	}
	if closer, ok := store.(interface{ Close() error }); ok {
		defer closer.Close()
	}

	// Upstream clients
	catalogAPI := valapi.NewClient(valapi.Config{
		BaseURL:  cfg.Upstream.CatalogURL,
		Language: cfg.Upstream.CatalogLang,
		Timeout:  cfg.Upstream.Timeout,
	})
	authClient := riot.NewAuthClient(riot.AuthConfig{
		AuthURL:        cfg.Upstream.AuthURL,
		EntitlementURL: cfg.Upstream.EntitlementURL,
		RegionURL:      cfg.Upstream.RegionURL,
		Timeout:        cfg.Upstream.Timeout,
	})
	storeClient := riot.NewStoreClient(riot.StoreConfig{
		BaseURL: cfg.Upstream.StoreURL,
		Timeout: cfg.Upstream.Timeout,
	}, catalogAPI)

	// Services
	catalogFile := repository.NewCatalogFile(cfg.Storage.CatalogPath())
	authService := service.NewAuthService(authClient, users, cfg.App.StorePasswords)
	shopService := service.NewShopService(authService, storeClient, store, catalogAPI, cfg.Cache.PricesTTL)
	catalogService := service.NewCatalogService(catalogAPI, catalogFile, store, cfg.Cache.CatalogTTL)
	shopService.SetCatalog(catalogService)
	catalogService.SetPriceSource(shopService)

	if cfg.App.UpdateOnStart {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
			defer cancel()
			log.Println("Initializing skin catalog...")
			report, err := catalogService.UpdateDatabase(ctx)
			if err != nil {
				log.Printf("Warning: skin catalog initialization failed: %v", err)
				return
			}
			log.Printf("Skin catalog ready: %d new, %d updated, %d total",
				report.NewSkins, report.UpdatedSkins, report.TotalSkins)
		}()
	}

	// Cleanup of abandoned second-factor logins and expired cache files
	cleanupCfg := service.DefaultCleanupConfig()
	cleanupCfg.PendingThreshold = cfg.Session.PendingMFATTL
	cleanupCfg.CleanupInterval = cfg.Session.CleanupInterval
	scheduler := service.NewCleanupScheduler(users, cleanupCfg)
	if local != nil {
		scheduler.AddPurger(service.PurgerFunc(func(ctx context.Context) (int64, error) {
			n, err := local.PurgeExpired(ctx)
			return int64(n), err
		}))
	}
	scheduler.Start()

	// Handlers
	sessions := middleware.NewSessions(cfg.Session.CookieName, cfg.Session.Secure || cfg.App.IsProduction())

	r := router.New(router.Config{
		Handler:        handler.New(cfg.App.Name, cfg.App.Version, users),
		AuthHandler:    handler.NewAuthHandler(authService, sessions),
		ShopHandler:    handler.NewShopHandler(shopService),
		SkinsHandler:   handler.NewSkinsHandler(catalogService),
		UserHandler:    handler.NewUserHandler(authService, sessions),
		AdminHandler:   handler.NewAdminHandler(users, store, catalogService, scheduler, cfg.Storage.Type, cfg.Cache.Type),
		Sessions:       sessions,
		AdminAuth:      middleware.NewAdminAuth(cfg.App.AdminKey),
		AllowedOrigins: cfg.CORS.Origins(),
	})

	// Create HTTP server
	srv := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server in goroutine
	go func() {
		log.Printf("Server listening on %s", cfg.Server.Address())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	scheduler.Stop()

	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}

	log.Println("Server stopped")
	fmt.Println("Goodbye!")
}

// openUserStore selects the session store backend.
func openUserStore(cfg *config.StorageConfig) (repository.UserRepository, error) {
	switch cfg.Type {
	case "sqlite":
		if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
			return nil, err
		}
		repo, err := repository.NewSQLiteUserRepository(cfg.SQLitePath())
		if err != nil {
			return nil, err
		}
		log.Println("SQLite session store initialized")
		return repo, nil
	case "mysql":
		repo, err := repository.NewMySQLUserRepository(cfg.DSN())
		if err != nil {
			return nil, err
		}
		log.Println("MySQL session store initialized")
		return repo, nil
	case "postgres", "postgresql":
		repo, err := repository.NewPostgresUserRepository(cfg.DSN())
		if err != nil {
			return nil, err
		}
		log.Println("PostgreSQL session store initialized")
		return repo, nil
	default: // file
		repo, err := repository.NewFileUserRepository(cfg.UsersDir())
		if err != nil {
			return nil, err
		}
		log.Printf("File session store initialized at %s", cfg.UsersDir())
		return repo, nil
	}
}

// expiringCache is a backend whose expired entries the cleanup scheduler
// must sweep. Redis expires keys itself and the memory cache runs its own
// sweep, so only the file cache is returned as one.
type expiringCache interface {
	PurgeExpired(ctx context.Context) (int, error)
}

// openCache selects the cache backend.
func openCache(cfg *config.Config) (cache.Cache, expiringCache, error) {
	switch cfg.Cache.Type {
	case "memory":
		log.Println("Memory cache initialized")
		return cache.NewMemoryCache(), nil, nil
	case "redis":
		rc, err := cache.NewRedisCache(cache.RedisConfig{
			Addr:      cfg.Cache.RedisAddress(),
			Password:  cfg.Cache.RedisPassword,
			DB:        cfg.Cache.RedisDB,
			KeyPrefix: cfg.Cache.RedisPrefix,
		})
		if err != nil {
			log.Printf("Warning: Redis connection failed, falling back to file cache: %v", err)
			break
		}
		return rc, nil, nil
	}

	fc, err := cache.NewFileCache(cfg.Storage.CacheDir())
	if err != nil {
		return nil, nil, err
	}
	log.Printf("File cache initialized at %s", cfg.Storage.CacheDir())
	return fc, fc, nil
}
