// Package valapi is a client for the public valorant-api.com catalog.
package valapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

// ErrNotFound is returned when the catalog has no entry for the requested id.
var ErrNotFound = errors.New("catalog entry not found")

// versionTTL bounds how long a resolved game version is reused.
const versionTTL = time.Hour

// Config holds the catalog client settings.
type Config struct {
	BaseURL  string
	Language string
	Timeout  time.Duration
}

// Client is a valorant-api.com client.
type Client struct {
	httpClient *http.Client
	baseURL    string
	language   string

	mu        sync.Mutex
	version   *Version
	fetchedAt time.Time
}

// Version is the current game build.
type Version struct {
	ManifestID        string `json:"manifestId"`
	Branch            string `json:"branch"`
	Version           string `json:"version"`
	BuildVersion      string `json:"buildVersion"`
	RiotClientVersion string `json:"riotClientVersion"`
	BuildDate         string `json:"buildDate"`
}

type Weapon struct {
	UUID            string `json:"uuid"`
	DisplayName     string `json:"displayName"`
	Category        string `json:"category"`
	DefaultSkinUUID string `json:"defaultSkinUuid"`
	DisplayIcon     string `json:"displayIcon"`
	Skins           []Skin `json:"skins"`
}

// ShortCategory strips the enum prefix, "EEquippableCategory::Heavy" becomes "Heavy".
func (w *Weapon) ShortCategory() string {
	if i := strings.LastIndex(w.Category, "::"); i >= 0 {
		return w.Category[i+2:]
	}
	return w.Category
}

type Skin struct {
	UUID            string      `json:"uuid"`
	DisplayName     string      `json:"displayName"`
	ThemeUUID       string      `json:"themeUuid"`
	ContentTierUUID string      `json:"contentTierUuid"`
	DisplayIcon     string      `json:"displayIcon"`
	Chromas         []Chroma    `json:"chromas"`
	Levels          []SkinLevel `json:"levels"`
}

type Chroma struct {
	UUID        string `json:"uuid"`
	DisplayName string `json:"displayName"`
	DisplayIcon string `json:"displayIcon"`
	FullRender  string `json:"fullRender"`
	Swatch      string `json:"swatch"`
}

type SkinLevel struct {
	UUID          string `json:"uuid"`
	DisplayName   string `json:"displayName"`
	DisplayIcon   string `json:"displayIcon"`
	FullRender    string `json:"fullRender,omitempty"`
	StreamedVideo string `json:"streamedVideo"`
}

// Icon returns the best display icon of the level.
func (l *SkinLevel) Icon() string {
	if l.DisplayIcon != "" {
		return l.DisplayIcon
	}
	return l.FullRender
}

type ContentTier struct {
	UUID           string `json:"uuid"`
	DevName        string `json:"devName"`
	DisplayName    string `json:"displayName"`
	Rank           int    `json:"rank"`
	HighlightColor string `json:"highlightColor"`
	DisplayIcon    string `json:"displayIcon"`
}

type Bundle struct {
	UUID        string `json:"uuid"`
	DisplayName string `json:"displayName"`
	DisplayIcon string `json:"displayIcon"`
}

// envelope is the common response wrapper.
type envelope struct {
	Status int             `json:"status"`
	Data   json.RawMessage `json:"data"`
	Error  string          `json:"error,omitempty"`
}

// NewClient creates a catalog client.
func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 20 * time.Second
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		language:   cfg.Language,
	}
}

// get performs a GET request and decodes the envelope data into result.
func (c *Client) get(ctx context.Context, path string, localized bool, result interface{}) error {
	target := c.baseURL + path
	if localized && c.language != "" {
		target += "?language=" + url.QueryEscape(c.language)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%s: %w", path, ErrNotFound)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("API error: status %d, body: %s", resp.StatusCode, string(body))
	}

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	if env.Status != http.StatusOK {
		if env.Status == http.StatusNotFound {
			return fmt.Errorf("%s: %w", path, ErrNotFound)
		}
		return fmt.Errorf("API error: envelope status %d", env.Status)
	}
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return fmt.Errorf("%s: %w", path, ErrNotFound)
	}

	if err := json.Unmarshal(env.Data, result); err != nil {
		return fmt.Errorf("failed to decode data: %w", err)
	}
	return nil
}

// Version fetches the current game version.
func (c *Client) Version(ctx context.Context) (*Version, error) {
	var v Version
	if err := c.get(ctx, "/v1/version", false, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

// CurrentVersion returns the game version, reusing a recent answer.
func (c *Client) CurrentVersion(ctx context.Context) (*Version, error) {
	c.mu.Lock()
	if c.version != nil && time.Since(c.fetchedAt) < versionTTL {
		v := c.version
		c.mu.Unlock()
		return v, nil
	}
	c.mu.Unlock()

	v, err := c.Version(ctx)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.version = v
	c.fetchedAt = time.Now()
	c.mu.Unlock()
	return v, nil
}

// ClientVersion returns the riot client version string for storefront calls.
func (c *Client) ClientVersion(ctx context.Context) (string, error) {
	v, err := c.CurrentVersion(ctx)
	if err != nil {
		return "", err
	}
	return v.RiotClientVersion, nil
}

// Weapons fetches every weapon with its skins.
func (c *Client) Weapons(ctx context.Context) ([]Weapon, error) {
	var out []Weapon
	if err := c.get(ctx, "/v1/weapons", true, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ContentTiers fetches the rarity tiers.
func (c *Client) ContentTiers(ctx context.Context) ([]ContentTier, error) {
	var out []ContentTier
	if err := c.get(ctx, "/v1/contenttiers", false, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Skins fetches every weapon skin.
func (c *Client) Skins(ctx context.Context) ([]Skin, error) {
	var out []Skin
	if err := c.get(ctx, "/v1/weapons/skins", true, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// SkinLevel fetches a single skin level.
func (c *Client) SkinLevel(ctx context.Context, uuid string) (*SkinLevel, error) {
	var out SkinLevel
	if err := c.get(ctx, "/v1/weapons/skinlevels/"+url.PathEscape(uuid), true, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Bundle fetches a single bundle.
func (c *Client) Bundle(ctx context.Context, uuid string) (*Bundle, error) {
	var out Bundle
	if err := c.get(ctx, "/v1/bundles/"+url.PathEscape(uuid), true, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
