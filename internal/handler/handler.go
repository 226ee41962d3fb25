package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"

	"valshop-api/internal/model"
	"valshop-api/internal/riot"
	"valshop-api/internal/service"
	"valshop-api/pkg/apierror"
)

// Authenticator is the login surface used by the auth and user handlers.
type Authenticator interface {
	LoginWithPassword(ctx context.Context, sessionID, username, password string) (*service.AuthResult, error)
	SubmitSecondFactor(ctx context.Context, sessionID, code string) (*service.AuthResult, error)
	LoginWithCookie(ctx context.Context, sessionID, raw string) (*service.AuthResult, error)
	EnsureAuthenticated(ctx context.Context, sessionID string) (*model.User, error)
	Refresh(ctx context.Context, sessionID string) (*service.AuthResult, error)
	Logout(ctx context.Context, sessionID string) error
	DeleteAccount(ctx context.Context, sessionID string) error
}

// Storefront is the shop surface.
type Storefront interface {
	DailyOffers(ctx context.Context, sessionID string) (*model.DailyOffers, error)
	Bundles(ctx context.Context, sessionID string) ([]model.Bundle, error)
	NightMarket(ctx context.Context, sessionID string) (*model.NightMarket, error)
	Balance(ctx context.Context, sessionID string) (*model.Balance, error)
	Prices(ctx context.Context, sessionID string) (map[string]int, bool, error)
}

// Catalog is the skin catalog surface.
type Catalog interface {
	ShopSkins(ctx context.Context, sessionID string, uuids []string) []model.CatalogItem
	SearchSkins(ctx context.Context, query string, limit int) ([]model.CatalogItem, error)
	Weapons(ctx context.Context) ([]model.Weapon, error)
	WeaponSkins(ctx context.Context, weaponUUID string) ([]model.CatalogItem, error)
	UpdateDatabase(ctx context.Context) (*model.UpdateReport, error)
	DatabaseStatus() model.CatalogStatus
}

var (
	_ Authenticator = (*service.AuthService)(nil)
	_ Storefront    = (*service.ShopService)(nil)
	_ Catalog       = (*service.CatalogService)(nil)
)

const (
	msgExpired       = "认证已过期，请重新登录"
	msgInvalidInput  = "请求参数无效"
	msgLoginFailed   = "登录失败，请检查用户名和密码"
	msgCookieFailed  = "登录失败，Cookies可能已过期"
	msgCodeInvalid   = "验证码无效"
	msgInvalidSess   = "无效的会话"
	msgRateLimited   = "请求过于频繁，请稍后再试"
	msgRefreshFailed = "令牌刷新失败，请重新登录"
)

// loginError maps a failed login step to its response. fallback is used for
// upstream failures that carry no user-facing meaning.
func loginError(err error, fallback string) *apierror.Error {
	switch {
	case errors.Is(err, service.ErrInvalidInput):
		return apierror.BadRequest(msgInvalidInput)
	case errors.Is(err, service.ErrNoPendingChallenge):
		return apierror.BadRequest(msgInvalidSess)
	case errors.Is(err, riot.ErrRateLimited):
		return apierror.Maintenance(msgRateLimited)
	case errors.Is(err, riot.ErrInvalidCredentials):
		return apierror.UpstreamRejected(msgLoginFailed)
	case errors.Is(err, riot.ErrSecondFactorInvalid):
		return apierror.UpstreamRejected(msgCodeInvalid)
	case errors.Is(err, riot.ErrCookieExpired), errors.Is(err, riot.ErrMissingCookies):
		return apierror.UpstreamRejected(msgCookieFailed)
	case riot.IsRejection(err):
		return apierror.UpstreamRejected(fallback)
	}
	log.Printf("[Handler] Login failed: %v", err)
	return apierror.UpstreamUnavailable(fallback)
}

// shopError maps a failed storefront call. An expired login is a 401; the
// rest is reported in-band so the client can show it.
func shopError(err error, fallback string) *apierror.Error {
	switch {
	case errors.Is(err, service.ErrNotAuthenticated):
		return apierror.Unauthorized(msgExpired)
	case errors.Is(err, riot.ErrMaintenance), errors.Is(err, riot.ErrRateLimited):
		return apierror.Maintenance("")
	case errors.Is(err, riot.ErrInvalidToken):
		return apierror.UpstreamRejected(riot.ErrInvalidToken.Error())
	}
	log.Printf("[Handler] %s: %v", fallback, err)
	return apierror.UpstreamUnavailable(fallback)
}

// decodeBody reads a JSON request body into dst.
func decodeBody(r *http.Request, dst interface{}) error {
	defer r.Body.Close()
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		return err
	}
	if len(body) == 0 {
		return nil
	}
	return json.Unmarshal(body, dst)
}
