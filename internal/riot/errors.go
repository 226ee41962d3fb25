package riot

import "errors"

// Upstream failure taxonomy. Callers match with errors.Is.
var (
	ErrUpstreamUnreachable  = errors.New("upstream_unreachable")
	ErrInvalidCredentials   = errors.New("invalid_credentials")
	ErrSecondFactorRequired = errors.New("second_factor_required")
	ErrSecondFactorInvalid  = errors.New("second_factor_invalid")
	ErrTokenExtraction      = errors.New("token_extraction_failed")
	ErrEntitlementFetch     = errors.New("entitlement_fetch_failed")
	ErrRegionFetch          = errors.New("region_fetch_failed")
	ErrCookieExpired        = errors.New("cookie_expired")
	ErrMissingCookies       = errors.New("missing_cookies")
	ErrRateLimited          = errors.New("rate_limited")
	ErrInvalidToken         = errors.New("invalid_token")
	ErrMaintenance          = errors.New("maintenance")
	ErrUpstreamUnavailable  = errors.New("upstream_unavailable")
)

// IsRejection reports whether err means the provider refused the login
// itself, as opposed to being unavailable.
func IsRejection(err error) bool {
	return errors.Is(err, ErrInvalidCredentials) ||
		errors.Is(err, ErrSecondFactorInvalid) ||
		errors.Is(err, ErrCookieExpired) ||
		errors.Is(err, ErrMissingCookies) ||
		errors.Is(err, ErrTokenExtraction)
}
