package riot

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testToken(t *testing.T, claims map[string]interface{}) string {
	t.Helper()
	header := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"RS256","typ":"JWT"}`))
	payload, err := json.Marshal(claims)
	require.NoError(t, err)
	return header + "." + base64.RawURLEncoding.EncodeToString(payload) + ".sig"
}

func newTestAuthClient(srv *httptest.Server) *AuthClient {
	return NewAuthClient(AuthConfig{
		AuthURL:        srv.URL,
		EntitlementURL: srv.URL + "/entitlements",
		RegionURL:      srv.URL + "/region",
	})
}

func TestRequestAuthCookies(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v1/authorization", r.URL.Path)

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "riot-client", body["client_id"])
		assert.Equal(t, UserAgent, r.Header.Get("User-Agent"))

		w.Header().Add("Set-Cookie", "asid=abc; Path=/; HttpOnly")
		w.Header().Add("Set-Cookie", "clid=ue1; Path=/")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	cookies, err := newTestAuthClient(srv).RequestAuthCookies(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"asid": "abc", "clid": "ue1"}, cookies)
}

func TestSubmitCredentials_Multifactor(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Contains(t, r.Header.Get("Cookie"), "asid=abc")

		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "auth", body["type"])
		assert.Equal(t, "u1", body["username"])
		assert.Equal(t, "p1", body["password"])

		w.Header().Add("Set-Cookie", "ssid=new; Path=/")
		_, _ = w.Write([]byte(`{"type":"multifactor","multifactor":{"method":"email","email":"a@b.com"}}`))
	}))
	defer srv.Close()

	resp, cookies, err := newTestAuthClient(srv).SubmitCredentials(context.Background(),
		map[string]string{"asid": "abc"}, "u1", "p1")
	require.NoError(t, err)
	assert.Equal(t, "multifactor", resp.Type)
	assert.Equal(t, "email", resp.Multifactor.Method)
	assert.Equal(t, "a@b.com", resp.Multifactor.Email)
	assert.Equal(t, map[string]string{"asid": "abc", "ssid": "new"}, cookies)
}

func TestSubmitCredentials_StatusErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   error
	}{
		{"rate limited", http.StatusTooManyRequests, ErrRateLimited},
		{"server error", http.StatusInternalServerError, ErrUpstreamUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			_, _, err := newTestAuthClient(srv).SubmitCredentials(context.Background(), nil, "u", "p")
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestSubmitCredentials_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	client := newTestAuthClient(srv)
	srv.Close()

	_, _, err := client.SubmitCredentials(context.Background(), nil, "u", "p")
	assert.ErrorIs(t, err, ErrUpstreamUnreachable)
}

func TestAuthorizeWithCookies(t *testing.T) {
	access := testToken(t, map[string]interface{}{"sub": "puuid-1", "exp": 4102444800})

	tests := []struct {
		name     string
		status   int
		location string
		wantErr  error
	}{
		{"token redirect", http.StatusSeeOther, "https://playvalorant.com/opt_in#access_token=" + access + "&id_token=idt&expires_in=3600", nil},
		{"stale cookie", http.StatusFound, "/login", ErrCookieExpired},
		{"no token", http.StatusFound, "https://playvalorant.com/opt_in?error=x", ErrTokenExtraction},
		{"not a redirect", http.StatusOK, "", ErrTokenExtraction},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/authorize", r.URL.Path)
				assert.Equal(t, "play-valorant-web-prod", r.URL.Query().Get("client_id"))
				assert.Equal(t, "token id_token", r.URL.Query().Get("response_type"))
				assert.Equal(t, "ssid=s1", r.Header.Get("Cookie"))
				if tt.location != "" {
					w.Header().Set("Location", tt.location)
				}
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			got, idt, err := newTestAuthClient(srv).AuthorizeWithCookies(context.Background(), map[string]string{"ssid": "s1"})
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, access, got)
			assert.Equal(t, "idt", idt)
		})
	}
}

func TestAuthorizeWithCookies_Empty(t *testing.T) {
	client := NewAuthClient(AuthConfig{AuthURL: "http://127.0.0.1:1"})
	_, _, err := client.AuthorizeWithCookies(context.Background(), nil)
	assert.ErrorIs(t, err, ErrMissingCookies)
}

func TestExtractTokens(t *testing.T) {
	access, idt, err := ExtractTokens("http://localhost/redirect#access_token=aaa&scope=openid&id_token=bbb")
	require.NoError(t, err)
	assert.Equal(t, "aaa", access)
	assert.Equal(t, "bbb", idt)

	_, _, err = ExtractTokens("http://localhost/redirect#scope=openid")
	assert.ErrorIs(t, err, ErrTokenExtraction)
}

func TestFetchUserInfo(t *testing.T) {
	access := testToken(t, map[string]interface{}{
		"sub":  "0123456789abcdef",
		"acct": map[string]interface{}{"game_name": "Tok", "tag_line": "EN"},
	})

	t.Run("userinfo endpoint", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/userinfo", r.URL.Path)
			assert.Equal(t, "Bearer "+access, r.Header.Get("Authorization"))
			_, _ = w.Write([]byte(`{"sub":"0123456789abcdef","acct":{"game_name":"Api","tag_line":"CN1"}}`))
		}))
		defer srv.Close()

		p, err := newTestAuthClient(srv).FetchUserInfo(context.Background(), access)
		require.NoError(t, err)
		assert.Equal(t, "Api#CN1", p.Username)
		assert.Equal(t, "0123456789abcdef", p.PUUID)
	})

	t.Run("falls back to token claims", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusForbidden)
		}))
		defer srv.Close()

		p, err := newTestAuthClient(srv).FetchUserInfo(context.Background(), access)
		require.NoError(t, err)
		assert.Equal(t, "Tok#EN", p.Username)
	})
}

func TestProfileFromToken_Fallbacks(t *testing.T) {
	p, err := ProfileFromToken(testToken(t, map[string]interface{}{"sub": "0123456789abcdef"}))
	require.NoError(t, err)
	assert.Equal(t, "玩家-01234567", p.Username)

	_, err = ProfileFromToken("garbage")
	assert.ErrorIs(t, err, ErrTokenExtraction)
}

func TestFetchEntitlement(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Header.Get("Authorization") {
		case "Bearer good":
			_, _ = w.Write([]byte(`{"entitlements_token":"ent-1"}`))
		case "Bearer empty":
			_, _ = w.Write([]byte(`{}`))
		default:
			w.WriteHeader(http.StatusForbidden)
		}
	}))
	defer srv.Close()
	client := newTestAuthClient(srv)

	ent, err := client.FetchEntitlement(context.Background(), "good")
	require.NoError(t, err)
	assert.Equal(t, "ent-1", ent)

	_, err = client.FetchEntitlement(context.Background(), "empty")
	assert.ErrorIs(t, err, ErrEntitlementFetch)

	_, err = client.FetchEntitlement(context.Background(), "bad")
	assert.ErrorIs(t, err, ErrEntitlementFetch)
}

func TestFetchRegion(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		if body["id_token"] == "idt" {
			_, _ = w.Write([]byte(`{"affinities":{"pbe":"na","live":"kr"}}`))
			return
		}
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()
	client := newTestAuthClient(srv)

	region, err := client.FetchRegion(context.Background(), "rso", "idt")
	require.NoError(t, err)
	assert.Equal(t, "kr", region)

	_, err = client.FetchRegion(context.Background(), "rso", "other")
	assert.True(t, errors.Is(err, ErrRegionFetch))
}

func TestIsRejection(t *testing.T) {
	assert.True(t, IsRejection(ErrInvalidCredentials))
	assert.True(t, IsRejection(ErrCookieExpired))
	assert.False(t, IsRejection(ErrUpstreamUnreachable))
	assert.False(t, IsRejection(ErrMaintenance))
	assert.True(t, IsRejection(fmt.Errorf("login: %w", ErrSecondFactorInvalid)))
	assert.True(t, IsRejection(ErrMissingCookies))
	assert.True(t, IsRejection(ErrTokenExtraction))
	assert.False(t, IsRejection(ErrUpstreamUnavailable))
	assert.False(t, IsRejection(ErrRateLimited))
}
