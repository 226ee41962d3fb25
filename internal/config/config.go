package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

func init() {
	// Load .env file if it exists (silent fail if not)
	_ = godotenv.Load()
}

// Config holds all application configuration loaded from environment variables.
type Config struct {
	Server   ServerConfig
	App      AppConfig
	Session  SessionConfig
	Storage  StorageConfig
	Cache    CacheConfig
	Upstream UpstreamConfig
	CORS     CORSConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string        `envconfig:"SERVER_HOST" default:"0.0.0.0"`
	Port            int           `envconfig:"SERVER_PORT" default:"3000"`
	ReadTimeout     time.Duration `envconfig:"SERVER_READ_TIMEOUT" default:"15s"`
	WriteTimeout    time.Duration `envconfig:"SERVER_WRITE_TIMEOUT" default:"120s"`
	ShutdownTimeout time.Duration `envconfig:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`
}

// AppConfig holds application-level settings.
type AppConfig struct {
	Name           string `envconfig:"APP_NAME" default:"valshop-api"`
	Environment    string `envconfig:"APP_ENV" default:"development"`
	Version        string `envconfig:"APP_VERSION" default:"1.0.0"`
	AdminKey       string `envconfig:"ADMIN_KEY" default:""`
	StorePasswords bool   `envconfig:"STORE_PASSWORDS" default:"false"` // keep base64 credentials for re-login
	UpdateOnStart  bool   `envconfig:"CATALOG_UPDATE_ON_START" default:"true"`
}

// SessionConfig holds local session cookie settings.
type SessionConfig struct {
	CookieName      string        `envconfig:"SESSION_COOKIE_NAME" default:"valshop.sid"`
	Secure          bool          `envconfig:"SESSION_COOKIE_SECURE" default:"false"`
	PendingMFATTL   time.Duration `envconfig:"SESSION_PENDING_MFA_TTL" default:"15m"`
	CleanupInterval time.Duration `envconfig:"SESSION_CLEANUP_INTERVAL" default:"10m"`
}

// StorageConfig holds user record storage settings.
type StorageConfig struct {
	Type    string `envconfig:"STORAGE_TYPE" default:"file"` // file, sqlite, mysql or postgres
	DataDir string `envconfig:"DATA_DIR" default:"./data"`
	// SQL settings (mysql / postgres)
	Host     string `envconfig:"DB_HOST" default:"localhost"`
	Port     int    `envconfig:"DB_PORT" default:"3306"`
	Name     string `envconfig:"DB_NAME" default:"valshop"`
	User     string `envconfig:"DB_USER" default:"root"`
	Password string `envconfig:"DB_PASS" default:""`
	SSLMode  string `envconfig:"DB_SSLMODE" default:"disable"`
}

// CacheConfig holds cache settings.
type CacheConfig struct {
	Type       string        `envconfig:"CACHE_TYPE" default:"file"` // file, memory or redis
	PricesTTL  time.Duration `envconfig:"CACHE_PRICES_TTL" default:"24h"`
	CatalogTTL time.Duration `envconfig:"CACHE_CATALOG_TTL" default:"168h"`

	RedisHost     string `envconfig:"REDIS_HOST" default:"localhost"`
	RedisPort     int    `envconfig:"REDIS_PORT" default:"6379"`
	RedisPassword string `envconfig:"REDIS_PASSWORD" default:""`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`
	RedisPrefix   string `envconfig:"REDIS_PREFIX" default:"valshop:cache"`
}

// UpstreamConfig holds the base URLs of every upstream API.
type UpstreamConfig struct {
	AuthURL        string        `envconfig:"RIOT_AUTH_URL" default:"https://auth.riotgames.com"`
	EntitlementURL string        `envconfig:"RIOT_ENTITLEMENT_URL" default:"https://entitlements.auth.riotgames.com/api/token/v1"`
	RegionURL      string        `envconfig:"RIOT_REGION_URL" default:"https://riot-geo.pas.si.riotgames.com/pas/v1/product/valorant"`
	StoreURL       string        `envconfig:"RIOT_STORE_URL" default:"https://pd.%s.a.pvp.net"` // %s is the shard
	CatalogURL     string        `envconfig:"VALAPI_URL" default:"https://valorant-api.com"`
	CatalogLang    string        `envconfig:"VALAPI_LANGUAGE" default:"zh-CN"`
	Timeout        time.Duration `envconfig:"UPSTREAM_TIMEOUT" default:"20s"`
}

// CORSConfig holds cross-origin settings for the browser client.
type CORSConfig struct {
	AllowedOrigins string `envconfig:"CORS_ORIGIN" default:"http://localhost:3000"`
}

// Origins returns the configured origins as a slice.
func (c *CORSConfig) Origins() []string {
	parts := strings.Split(c.AllowedOrigins, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Address returns the server address in host:port format.
func (s *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// UsersDir returns the directory holding one file per session.
func (s *StorageConfig) UsersDir() string {
	return filepath.Join(s.DataDir, "users")
}

// CacheDir returns the directory holding one file per cache key.
func (s *StorageConfig) CacheDir() string {
	return filepath.Join(s.DataDir, "cache")
}

// CatalogPath returns the path of the shared local catalog file.
func (s *StorageConfig) CatalogPath() string {
	return filepath.Join(s.DataDir, "skins_data.json")
}

// SQLitePath returns the SQLite database file path.
func (s *StorageConfig) SQLitePath() string {
	return filepath.Join(s.DataDir, "users.db")
}

// DSN returns the data source name for the configured SQL backend.
func (s *StorageConfig) DSN() string {
	switch s.Type {
	case "postgres", "postgresql":
		return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
			s.User, s.Password, s.Host, s.Port, s.Name, s.SSLMode)
	case "mysql":
		return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true",
			s.User, s.Password, s.Host, s.Port, s.Name)
	default:
		return s.SQLitePath()
	}
}

// RedisAddress returns the Redis address in host:port format.
func (c *CacheConfig) RedisAddress() string {
	return fmt.Sprintf("%s:%d", c.RedisHost, c.RedisPort)
}

// IsProduction returns true if running in production mode.
func (a *AppConfig) IsProduction() bool {
	return a.Environment == "production"
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config

	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return &cfg, nil
}

// MustLoad loads configuration or panics on error.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}
