package middleware

import (
	"context"
	"net/http"
	"time"

	"valshop-api/pkg/apierror"
	"valshop-api/pkg/uid"
)

// SessionIDKey is the context key for the local session id.
const SessionIDKey contextKey = "session_id"

// RememberCookieName is the client-visible flag mirroring the remember-me choice.
const RememberCookieName = "rememberMe"

const (
	rememberLifetime = 30 * 24 * time.Hour
	defaultLifetime  = 24 * time.Hour
)

// SessionLifetime is the cookie lifetime for a remember-me choice.
func SessionLifetime(remember bool) time.Duration {
	if remember {
		return rememberLifetime
	}
	return defaultLifetime
}

// Sessions maps the session cookie to a session id on each request.
type Sessions struct {
	cookieName string
	secure     bool
}

// NewSessions creates the session cookie handler.
func NewSessions(cookieName string, secure bool) *Sessions {
	if cookieName == "" {
		cookieName = "valshop.sid"
	}
	return &Sessions{cookieName: cookieName, secure: secure}
}

// Middleware reads the session cookie into the request context. Requests
// without a cookie pass through with an empty session id.
func (s *Sessions) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if c, err := r.Cookie(s.cookieName); err == nil && c.Value != "" {
			ctx := context.WithValue(r.Context(), SessionIDKey, c.Value)
			r = r.WithContext(ctx)
		}
		next.ServeHTTP(w, r)
	})
}

// Require rejects requests that carry no session.
func (s *Sessions) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if GetSessionID(r.Context()) == "" {
			writeError(w, apierror.Unauthorized(""))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Issue returns the request's session id, creating one if needed, and
// (re)sets the session and remember-me cookies with the matching lifetime.
func (s *Sessions) Issue(w http.ResponseWriter, r *http.Request, remember bool) string {
	id := GetSessionID(r.Context())
	if id == "" {
		id = uid.New()
	}

	lifetime := SessionLifetime(remember)
	expires := time.Now().Add(lifetime)

	http.SetCookie(w, &http.Cookie{
		Name:     s.cookieName,
		Value:    id,
		Path:     "/",
		Expires:  expires,
		MaxAge:   int(lifetime.Seconds()),
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	})

	flag := "false"
	if remember {
		flag = "true"
	}
	http.SetCookie(w, &http.Cookie{
		Name:     RememberCookieName,
		Value:    flag,
		Path:     "/",
		Expires:  expires,
		MaxAge:   int(lifetime.Seconds()),
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return id
}

// Clear expires both cookies.
func (s *Sessions) Clear(w http.ResponseWriter) {
	for _, name := range []string{s.cookieName, RememberCookieName} {
		http.SetCookie(w, &http.Cookie{
			Name:     name,
			Value:    "",
			Path:     "/",
			MaxAge:   -1,
			HttpOnly: name == s.cookieName,
			Secure:   s.secure,
			SameSite: http.SameSiteLaxMode,
		})
	}
}

// GetSessionID retrieves the session id from context.
func GetSessionID(ctx context.Context) string {
	if id, ok := ctx.Value(SessionIDKey).(string); ok {
		return id
	}
	return ""
}

// WithSessionID stores a session id in ctx.
func WithSessionID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, SessionIDKey, id)
}
