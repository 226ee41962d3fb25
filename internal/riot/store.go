package riot

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"valshop-api/internal/model"
	"valshop-api/pkg/token"
)

// Currency ids used by the wallet and offers documents.
const (
	CurrencyVP  = "85ad13f7-3d1b-5128-9eb2-7cd8ee0b5741"
	CurrencyRad = "e59aa87c-4cbf-517a-5983-6e81511be9b7"
	CurrencyKC  = "85ca954a-41f2-ce94-9b45-8ca3dd39a00d"

	// DefaultClientVersion is sent when the version source is unavailable.
	DefaultClientVersion = "release-08.11-shipping-14-2539458"
)

// clientPlatform is the base64 of the tab-indented, CRLF-terminated
// platform document the game backend expects.
var clientPlatform = func() string {
	doc := "{\r\n" +
		"\t\"platformType\": \"PC\",\r\n" +
		"\t\"platformOS\": \"Windows\",\r\n" +
		"\t\"platformOSVersion\": \"10.0.19042.1.256.64bit\",\r\n" +
		"\t\"platformChipset\": \"Unknown\"\r\n" +
		"}"
	return base64.StdEncoding.EncodeToString([]byte(doc))
}()

// ClientPlatform returns the X-Riot-ClientPlatform header value.
func ClientPlatform() string {
	return clientPlatform
}

// VersionSource resolves the current game client version.
type VersionSource interface {
	ClientVersion(ctx context.Context) (string, error)
}

// Credentials identify an account to the game backend.
type Credentials struct {
	Region      string
	PUUID       string
	AccessToken string
	Entitlement string
}

// StoreConfig holds the game backend settings.
type StoreConfig struct {
	BaseURL string // format string with one %s for the shard
	Timeout time.Duration
}

// StoreClient fetches storefront, wallet and offers from the game backend.
type StoreClient struct {
	httpClient *http.Client
	baseURL    string
	versions   VersionSource
}

// NewStoreClient creates a game backend client.
func NewStoreClient(cfg StoreConfig, versions VersionSource) *StoreClient {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 20 * time.Second
	}
	return &StoreClient{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    cfg.BaseURL,
		versions:   versions,
	}
}

// ShardFor maps a live region to the storefront shard.
func ShardFor(region string) string {
	switch region {
	case "", "latam", "br":
		return "na"
	default:
		return region
	}
}

func (c *StoreClient) endpoint(region, path string) string {
	base := c.baseURL
	if strings.Contains(base, "%s") {
		base = fmt.Sprintf(base, ShardFor(region))
	}
	return strings.TrimRight(base, "/") + path
}

func (c *StoreClient) clientVersion(ctx context.Context) string {
	if c.versions == nil {
		return DefaultClientVersion
	}
	v, err := c.versions.ClientVersion(ctx)
	if err != nil || v == "" {
		return DefaultClientVersion
	}
	return v
}

// errorBody is the error document returned by the game backend.
type errorBody struct {
	HTTPStatus int    `json:"httpStatus"`
	ErrorCode  string `json:"errorCode"`
	Message    string `json:"message"`
}

// classify maps an error document to the failure taxonomy. It returns nil
// when the body is not an error document.
func classify(body []byte) error {
	var e errorBody
	if err := json.Unmarshal(body, &e); err != nil || e.ErrorCode == "" {
		return nil
	}
	switch {
	case e.HTTPStatus == http.StatusBadRequest && e.ErrorCode == "BAD_CLAIMS":
		return ErrInvalidToken
	case e.HTTPStatus == http.StatusForbidden && e.ErrorCode == "SCHEDULED_DOWNTIME",
		e.HTTPStatus == http.StatusTooManyRequests && e.ErrorCode == "RESOURCE_EXHAUSTED":
		return ErrMaintenance
	}
	return nil
}

// do sends a request to the game backend and decodes a 200 body into out.
func (c *StoreClient) do(ctx context.Context, method string, creds Credentials, path string, out interface{}) error {
	var body io.Reader
	if method == http.MethodPost {
		body = bytes.NewReader([]byte("{}"))
	}

	target := c.endpoint(creds.Region, path)
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json, text/plain, */*")
	req.Header.Set("User-Agent", UserAgent)
	req.Header.Set("Authorization", "Bearer "+creds.AccessToken)
	req.Header.Set("X-Riot-Entitlements-JWT", creds.Entitlement)
	req.Header.Set("X-Riot-ClientPlatform", ClientPlatform())
	req.Header.Set("X-Riot-ClientVersion", c.clientVersion(ctx))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w: %v", method, path, ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, ErrUpstreamUnavailable)
	}

	if cerr := classify(data); cerr != nil {
		log.Printf("[StoreClient] %s rejected for %s (token %s...): %v",
			path, creds.PUUID, token.Prefix(creds.AccessToken, 10), cerr)
		return cerr
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s status %d: %w", path, resp.StatusCode, ErrUpstreamUnavailable)
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode %s: %w", path, ErrUpstreamUnavailable)
	}
	return nil
}

// Storefront fetches the account storefront.
func (c *StoreClient) Storefront(ctx context.Context, creds Credentials) (*model.Storefront, error) {
	var sf model.Storefront
	if err := c.do(ctx, http.MethodPost, creds, "/store/v3/storefront/"+creds.PUUID, &sf); err != nil {
		return nil, err
	}
	return &sf, nil
}

// Wallet fetches the account balances.
func (c *StoreClient) Wallet(ctx context.Context, creds Credentials) (*model.Wallet, error) {
	var w model.Wallet
	if err := c.do(ctx, http.MethodGet, creds, "/store/v1/wallet/"+creds.PUUID, &w); err != nil {
		return nil, err
	}
	return &w, nil
}

// Offers fetches the price list and flattens it to the first cost of each offer.
func (c *StoreClient) Offers(ctx context.Context, creds Credentials) (map[string]int, error) {
	var list model.OfferList
	if err := c.do(ctx, http.MethodPost, creds, "/store/v1/offers/", &list); err != nil {
		return nil, err
	}

	prices := make(map[string]int, len(list.Offers))
	for _, o := range list.Offers {
		if cost, ok := FirstCost(o.Cost); ok {
			prices[o.OfferID] = cost
		}
	}
	return prices, nil
}

// FirstCost returns the VP cost if present, otherwise any single cost.
func FirstCost(costs map[string]int) (int, bool) {
	if v, ok := costs[CurrencyVP]; ok {
		return v, true
	}
	for _, v := range costs {
		return v, true
	}
	return 0, false
}
