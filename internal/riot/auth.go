package riot

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"valshop-api/pkg/cookie"
	"valshop-api/pkg/token"
)

const (
	// UserAgent is the game client agent the provider accepts without a captcha.
	UserAgent = "ShooterGame/13 Windows/10.0.19043.1.256.64bit"

	// DefaultRegion is used when the region lookup fails.
	DefaultRegion = "ap"
)

// EssentialCookies are the provider cookies needed to re-derive tokens.
var EssentialCookies = []string{"ssid", "sub", "csid", "clid", "tdid"}

// AuthConfig holds the identity provider endpoints.
type AuthConfig struct {
	AuthURL        string // e.g. https://auth.riotgames.com
	EntitlementURL string
	RegionURL      string
	Timeout        time.Duration
}

// AuthClient talks to the identity provider. It never follows redirects.
type AuthClient struct {
	httpClient     *http.Client
	authURL        string
	entitlementURL string
	regionURL      string
}

// AuthResponse is the body returned by the authorization endpoint.
type AuthResponse struct {
	Type     string `json:"type"`
	Error    string `json:"error,omitempty"`
	Response struct {
		Parameters struct {
			URI string `json:"uri"`
		} `json:"parameters"`
	} `json:"response"`
	Multifactor struct {
		Method string `json:"method"`
		Email  string `json:"email"`
	} `json:"multifactor"`
}

// RedirectURI returns the token-bearing redirect of a successful response.
func (r *AuthResponse) RedirectURI() string {
	return r.Response.Parameters.URI
}

// Profile is the account profile resolved after login.
type Profile struct {
	PUUID    string
	Username string
}

// NewAuthClient creates an identity provider client.
func NewAuthClient(cfg AuthConfig) *AuthClient {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 20 * time.Second
	}
	return &AuthClient{
		httpClient: &http.Client{
			Timeout: timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		authURL:        strings.TrimRight(cfg.AuthURL, "/"),
		entitlementURL: cfg.EntitlementURL,
		regionURL:      cfg.RegionURL,
	}
}

// doRequest sends a JSON request with the game client headers.
func (c *AuthClient) doRequest(ctx context.Context, method, target string, body interface{}, headers map[string]string) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("User-Agent", UserAgent)
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w: %v", method, target, ErrUpstreamUnreachable, err)
	}
	if resp.StatusCode == http.StatusTooManyRequests {
		resp.Body.Close()
		return nil, fmt.Errorf("%s %s: %w", method, target, ErrRateLimited)
	}
	return resp, nil
}

func (c *AuthClient) authorizationURL() string {
	return c.authURL + "/api/v1/authorization"
}

// RequestAuthCookies opens a login session and returns its cookies.
func (c *AuthClient) RequestAuthCookies(ctx context.Context) (map[string]string, error) {
	resp, err := c.doRequest(ctx, http.MethodPost, c.authorizationURL(), map[string]string{
		"client_id":     "riot-client",
		"nonce":         "1",
		"redirect_uri":  "http://localhost/redirect",
		"response_type": "token id_token",
		"scope":         "openid link ban lol_region",
	}, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("auth cookies status %d: %w", resp.StatusCode, ErrUpstreamUnavailable)
	}
	return cookie.ParseSetCookie(resp.Header.Values("Set-Cookie")), nil
}

// SubmitCredentials sends the username and password on the login session.
// The returned cookies are the session cookies merged with any new ones.
func (c *AuthClient) SubmitCredentials(ctx context.Context, cookies map[string]string, username, password string) (*AuthResponse, map[string]string, error) {
	return c.putAuthorization(ctx, cookies, map[string]interface{}{
		"type":     "auth",
		"username": username,
		"password": password,
		"remember": true,
	})
}

// SubmitMFACode answers a second-factor challenge.
func (c *AuthClient) SubmitMFACode(ctx context.Context, cookies map[string]string, code string) (*AuthResponse, map[string]string, error) {
	return c.putAuthorization(ctx, cookies, map[string]interface{}{
		"type":           "multifactor",
		"code":           code,
		"rememberDevice": true,
	})
}

func (c *AuthClient) putAuthorization(ctx context.Context, cookies map[string]string, body interface{}) (*AuthResponse, map[string]string, error) {
	resp, err := c.doRequest(ctx, http.MethodPut, c.authorizationURL(), body, map[string]string{
		"Cookie": cookie.Stringify(cookies),
	})
	if err != nil {
		return nil, cookies, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, cookies, fmt.Errorf("authorization status %d: %w", resp.StatusCode, ErrUpstreamUnavailable)
	}

	merged := cookie.Merge(cookies, cookie.ParseSetCookie(resp.Header.Values("Set-Cookie")))

	var out AuthResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, merged, fmt.Errorf("failed to decode authorization response: %w", ErrUpstreamUnavailable)
	}
	return &out, merged, nil
}

// AuthorizeWithCookies requests the implicit-grant redirect using stored
// provider cookies and returns the access and identity tokens.
func (c *AuthClient) AuthorizeWithCookies(ctx context.Context, cookies map[string]string) (string, string, error) {
	if len(cookies) == 0 {
		return "", "", ErrMissingCookies
	}

	q := url.Values{}
	q.Set("redirect_uri", "https://playvalorant.com/opt_in")
	q.Set("client_id", "play-valorant-web-prod")
	q.Set("response_type", "token id_token")
	q.Set("scope", "account openid")
	q.Set("nonce", "1")
	target := c.authURL + "/authorize?" + strings.ReplaceAll(q.Encode(), "+", "%20")

	resp, err := c.doRequest(ctx, http.MethodGet, target, nil, map[string]string{
		"Cookie": cookie.Stringify(cookies),
	})
	if err != nil {
		return "", "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusFound && resp.StatusCode != http.StatusSeeOther {
		return "", "", fmt.Errorf("authorize status %d: %w", resp.StatusCode, ErrTokenExtraction)
	}

	location := resp.Header.Get("Location")
	if location == "" || strings.HasPrefix(location, "/login") {
		return "", "", ErrCookieExpired
	}
	if !strings.Contains(location, "access_token=") {
		return "", "", ErrTokenExtraction
	}
	return ExtractTokens(location)
}

// ExtractTokens reads access_token and id_token from a redirect URI fragment.
func ExtractTokens(uri string) (string, string, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return "", "", fmt.Errorf("failed to parse redirect: %w", ErrTokenExtraction)
	}
	params, err := url.ParseQuery(u.Fragment)
	if err != nil {
		return "", "", fmt.Errorf("failed to parse fragment: %w", ErrTokenExtraction)
	}
	access := params.Get("access_token")
	if access == "" {
		return "", "", ErrTokenExtraction
	}
	return access, params.Get("id_token"), nil
}

// FetchUserInfo resolves the account profile. It falls back to the access
// token claims and finally to a generated name, so it only fails when the
// token carries no subject at all.
func (c *AuthClient) FetchUserInfo(ctx context.Context, accessToken string) (*Profile, error) {
	var info struct {
		Sub  string `json:"sub"`
		Acct *struct {
			GameName string `json:"game_name"`
			TagLine  string `json:"tag_line"`
		} `json:"acct"`
	}

	resp, err := c.doRequest(ctx, http.MethodGet, c.authURL+"/userinfo", nil, map[string]string{
		"Authorization": "Bearer " + accessToken,
	})
	if err == nil {
		defer resp.Body.Close()
		if resp.StatusCode == http.StatusOK {
			if derr := json.NewDecoder(resp.Body).Decode(&info); derr == nil && info.Acct != nil && info.Acct.GameName != "" {
				return &Profile{PUUID: info.Sub, Username: info.Acct.GameName + "#" + info.Acct.TagLine}, nil
			}
		} else {
			log.Printf("[AuthClient] userinfo status %d, using token claims", resp.StatusCode)
		}
	} else {
		log.Printf("[AuthClient] userinfo failed, using token claims: %v", err)
	}

	return ProfileFromToken(accessToken)
}

// ProfileFromToken builds a profile from the access token claims alone.
func ProfileFromToken(accessToken string) (*Profile, error) {
	claims, err := token.Decode(accessToken)
	if err != nil || claims.Subject() == "" {
		return nil, fmt.Errorf("no subject in access token: %w", ErrTokenExtraction)
	}
	p := &Profile{PUUID: claims.Subject()}
	if name, tag, ok := claims.Account(); ok && name != "" {
		p.Username = name + "#" + tag
	} else {
		p.Username = FallbackUsername(p.PUUID)
	}
	return p, nil
}

// FallbackUsername is the display name used when no game name is known.
func FallbackUsername(puuid string) string {
	if len(puuid) > 8 {
		puuid = puuid[:8]
	}
	return "玩家-" + puuid
}

// FetchEntitlement exchanges the access token for an entitlement token.
func (c *AuthClient) FetchEntitlement(ctx context.Context, accessToken string) (string, error) {
	resp, err := c.doRequest(ctx, http.MethodPost, c.entitlementURL, map[string]string{}, map[string]string{
		"Authorization": "Bearer " + accessToken,
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrEntitlementFetch, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("entitlement status %d: %w", resp.StatusCode, ErrEntitlementFetch)
	}

	var out struct {
		EntitlementsToken string `json:"entitlements_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil || out.EntitlementsToken == "" {
		return "", fmt.Errorf("no entitlements_token in response: %w", ErrEntitlementFetch)
	}
	return out.EntitlementsToken, nil
}

// FetchRegion resolves the live region of the account.
func (c *AuthClient) FetchRegion(ctx context.Context, accessToken, idToken string) (string, error) {
	resp, err := c.doRequest(ctx, http.MethodPut, c.regionURL, map[string]string{
		"id_token": idToken,
	}, map[string]string{
		"Authorization": "Bearer " + accessToken,
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrRegionFetch, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("region status %d: %w", resp.StatusCode, ErrRegionFetch)
	}

	var out struct {
		Affinities struct {
			Live string `json:"live"`
		} `json:"affinities"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil || out.Affinities.Live == "" {
		return "", fmt.Errorf("no live affinity in response: %w", ErrRegionFetch)
	}
	return out.Affinities.Live, nil
}
