package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestSessionLifetime(t *testing.T) {
	assert.Equal(t, 30*24*time.Hour, SessionLifetime(true))
	assert.Equal(t, 24*time.Hour, SessionLifetime(false))
}

func TestSessions_RequireWithoutCookie(t *testing.T) {
	s := NewSessions("valshop.sid", false)
	called := false
	h := s.Middleware(s.Require(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	})))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/shop/daily", nil))

	assert.False(t, called)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "未认证，请先登录", body["error"])
}

func TestSessions_CookieReachesHandler(t *testing.T) {
	s := NewSessions("valshop.sid", false)
	var got string
	h := s.Middleware(s.Require(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = GetSessionID(r.Context())
	})))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: "valshop.sid", Value: "abc"})
	h.ServeHTTP(httptest.NewRecorder(), req)
	assert.Equal(t, "abc", got)
}

func TestSessions_Issue(t *testing.T) {
	s := NewSessions("valshop.sid", true)

	t.Run("new session remembered", func(t *testing.T) {
		rec := httptest.NewRecorder()
		id := s.Issue(rec, httptest.NewRequest(http.MethodPost, "/", nil), true)
		assert.NotEmpty(t, id)

		cookies := rec.Result().Cookies()
		require.Len(t, cookies, 2)
		assert.Equal(t, "valshop.sid", cookies[0].Name)
		assert.Equal(t, id, cookies[0].Value)
		assert.True(t, cookies[0].HttpOnly)
		assert.True(t, cookies[0].Secure)
		assert.Equal(t, int((30 * 24 * time.Hour).Seconds()), cookies[0].MaxAge)
		assert.Equal(t, RememberCookieName, cookies[1].Name)
		assert.Equal(t, "true", cookies[1].Value)
		assert.False(t, cookies[1].HttpOnly)
	})

	t.Run("existing session kept", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", nil)
		req = req.WithContext(WithSessionID(req.Context(), "existing"))
		rec := httptest.NewRecorder()
		assert.Equal(t, "existing", s.Issue(rec, req, false))
		assert.Equal(t, int((24 * time.Hour).Seconds()), rec.Result().Cookies()[0].MaxAge)
	})
}

func TestRecovery(t *testing.T) {
	h := RequestID(Recovery(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	})))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "服务器错误", decode(t, rec)["error"])
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestRequestID_KeepsValidHeader(t *testing.T) {
	const id = "3f0b8c1e-6a2d-4c4e-9a51-3c1f0e7d2b11"
	var seen string
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", id)
	h.ServeHTTP(httptest.NewRecorder(), req)
	assert.Equal(t, id, seen)

	req.Header.Set(RequestIDHeader, "not-a-uuid\r\n")
	h.ServeHTTP(httptest.NewRecorder(), req)
	assert.NotEqual(t, "not-a-uuid\r\n", seen)
	assert.Len(t, seen, 36)
}

func TestGetRequestID_OutsideRequest(t *testing.T) {
	assert.Equal(t, "-", GetRequestID(context.Background()))
	assert.Equal(t, "job-1", GetRequestID(WithRequestID(context.Background(), "job-1")))
}

func TestAdminAuth(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	cases := []struct {
		name     string
		adminKey string
		header   string
		want     int
	}{
		{"disabled", "", "anything", http.StatusForbidden},
		{"missing", "secret", "", http.StatusUnauthorized},
		{"wrong", "secret", "nope", http.StatusUnauthorized},
		{"valid", "secret", "secret", http.StatusNoContent},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/admin/stats", nil)
			if tc.header != "" {
				req.Header.Set(AdminKeyHeader, tc.header)
			}
			rec := httptest.NewRecorder()
			NewAdminAuth(tc.adminKey)(ok).ServeHTTP(rec, req)
			assert.Equal(t, tc.want, rec.Code)
		})
	}
}
