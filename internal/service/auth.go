package service

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log"
	"time"

	"valshop-api/internal/model"
	"valshop-api/internal/repository"
	"valshop-api/internal/riot"
	"valshop-api/pkg/cookie"
	"valshop-api/pkg/token"
)

var (
	// ErrNotAuthenticated means the session has no usable login.
	ErrNotAuthenticated = errors.New("not_authenticated")

	// ErrNoPendingChallenge means a second-factor code arrived without a
	// preceding password login.
	ErrNoPendingChallenge = errors.New("no_pending_challenge")

	// ErrInvalidInput is returned for missing required fields.
	ErrInvalidInput = errors.New("invalid_input")
)

// tokenGuardBand is how close to expiry a bearer token may get before it is
// refreshed instead of reused.
const tokenGuardBand = 10 * time.Second

// IdentityProvider is the upstream login protocol.
type IdentityProvider interface {
	RequestAuthCookies(ctx context.Context) (map[string]string, error)
	SubmitCredentials(ctx context.Context, cookies map[string]string, username, password string) (*riot.AuthResponse, map[string]string, error)
	SubmitMFACode(ctx context.Context, cookies map[string]string, code string) (*riot.AuthResponse, map[string]string, error)
	AuthorizeWithCookies(ctx context.Context, cookies map[string]string) (string, string, error)
	FetchUserInfo(ctx context.Context, accessToken string) (*riot.Profile, error)
	FetchEntitlement(ctx context.Context, accessToken string) (string, error)
	FetchRegion(ctx context.Context, accessToken, idToken string) (string, error)
}

var _ IdentityProvider = (*riot.AuthClient)(nil)

// MFAChallenge describes an outstanding second-factor request.
type MFAChallenge struct {
	Method string `json:"method"`
	Email  string `json:"email"`
}

// AuthResult is the outcome of a login attempt that did not fail. Exactly one
// of a completed login (MFA == nil) or a pending challenge is reported.
type AuthResult struct {
	User *model.User
	MFA  *MFAChallenge
}

// Authenticated reports whether the login completed.
func (r *AuthResult) Authenticated() bool {
	return r != nil && r.User != nil && r.MFA == nil
}

// secrets are the reusable login materials gathered during a flow.
type secrets struct {
	login    string
	password string
	cookies  map[string]string
}

// AuthService drives the identity provider flows and owns the user records.
type AuthService struct {
	provider       IdentityProvider
	users          repository.UserRepository
	storePasswords bool
	now            func() time.Time
}

// NewAuthService creates an auth service. When storePasswords is set the
// login and base64 password are kept so a session can re-login on its own.
func NewAuthService(provider IdentityProvider, users repository.UserRepository, storePasswords bool) *AuthService {
	return &AuthService{
		provider:       provider,
		users:          users,
		storePasswords: storePasswords,
		now:            time.Now,
	}
}

// User returns the record of a session.
func (s *AuthService) User(ctx context.Context, sessionID string) (*model.User, error) {
	if sessionID == "" {
		return nil, ErrNotAuthenticated
	}
	user, err := s.users.Get(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	if user == nil {
		return nil, ErrNotAuthenticated
	}
	return user, nil
}

// LoginWithPassword runs the credential exchange. A second-factor challenge
// is persisted as a pending record and reported through AuthResult.MFA.
func (s *AuthService) LoginWithPassword(ctx context.Context, sessionID, username, password string) (*AuthResult, error) {
	if sessionID == "" || username == "" || password == "" {
		return nil, ErrInvalidInput
	}

	cookies, err := s.provider.RequestAuthCookies(ctx)
	if err != nil {
		return nil, err
	}

	resp, cookies, err := s.provider.SubmitCredentials(ctx, cookies, username, password)
	if err != nil {
		return nil, err
	}

	switch resp.Type {
	case "error":
		log.Printf("[AuthService] Login rejected for session %s: %s", sessionID, resp.Error)
		return nil, fmt.Errorf("%s: %w", resp.Error, riot.ErrInvalidCredentials)

	case "multifactor":
		return s.savePending(ctx, sessionID, secrets{login: username, password: password, cookies: cookies}, resp)

	case "response":
		user, err := s.completeRedirect(ctx, sessionID, secrets{login: username, password: password, cookies: cookies}, resp.RedirectURI())
		if err != nil {
			return nil, err
		}
		return &AuthResult{User: user}, nil
	}

	return nil, fmt.Errorf("unexpected authorization type %q: %w", resp.Type, riot.ErrUpstreamUnavailable)
}

// savePending stores the interim cookies so the second-factor code can be
// submitted on the same provider session.
func (s *AuthService) savePending(ctx context.Context, sessionID string, sec secrets, resp *riot.AuthResponse) (*AuthResult, error) {
	user, err := s.users.Get(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	if user == nil {
		user = &model.User{ID: sessionID}
	}

	user.Auth = &model.AuthBundle{
		Pending2FA: s.now().UnixMilli(),
		Cookies:    sec.cookies,
	}
	if s.storePasswords {
		user.Auth.Login = sec.login
		user.Auth.Password = base64.StdEncoding.EncodeToString([]byte(sec.password))
	}
	user.UpdatedAt = s.now()

	if err := s.users.Save(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to save pending login: %w", err)
	}

	log.Printf("[AuthService] Second factor required for session %s (method: %s)", sessionID, resp.Multifactor.Method)
	return &AuthResult{
		User: user,
		MFA:  &MFAChallenge{Method: resp.Multifactor.Method, Email: resp.Multifactor.Email},
	}, nil
}

// SubmitSecondFactor answers the challenge issued by a previous password login.
func (s *AuthService) SubmitSecondFactor(ctx context.Context, sessionID, code string) (*AuthResult, error) {
	if sessionID == "" || code == "" {
		return nil, ErrInvalidInput
	}

	user, err := s.users.Get(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	if user == nil || !user.Auth.IsPending() || !user.Auth.HasCookies() {
		return nil, ErrNoPendingChallenge
	}

	resp, cookies, err := s.provider.SubmitMFACode(ctx, user.Auth.Cookies, code)
	if err != nil {
		return nil, err
	}
	if resp.Type == "error" || resp.Error == "multifactor_attempt_failed" {
		log.Printf("[AuthService] Second factor rejected for session %s: %s", sessionID, resp.Error)
		return nil, riot.ErrSecondFactorInvalid
	}

	sec := secrets{cookies: cookies}
	if user.Auth.HasCredentials() {
		sec.login = user.Auth.Login
		if pw, err := base64.StdEncoding.DecodeString(user.Auth.Password); err == nil {
			sec.password = string(pw)
		}
	}

	completed, err := s.completeRedirect(ctx, sessionID, sec, resp.RedirectURI())
	if err != nil {
		return nil, err
	}
	return &AuthResult{User: completed}, nil
}

// LoginWithCookie logs in with a raw Cookie header copied from a browser
// session on the provider.
func (s *AuthService) LoginWithCookie(ctx context.Context, sessionID, raw string) (*AuthResult, error) {
	if sessionID == "" || raw == "" {
		return nil, ErrInvalidInput
	}

	user, err := s.loginWithCookies(ctx, sessionID, cookie.ParseHeader(raw))
	if err != nil {
		return nil, err
	}
	return &AuthResult{User: user}, nil
}

// loginWithCookies authorizes with the essential subset of cookies and
// persists only that subset.
func (s *AuthService) loginWithCookies(ctx context.Context, sessionID string, all map[string]string) (*model.User, error) {
	cookies := cookie.Filter(all, riot.EssentialCookies...)
	if len(cookies) == 0 {
		return nil, riot.ErrMissingCookies
	}

	access, idToken, err := s.provider.AuthorizeWithCookies(ctx, cookies)
	if err != nil {
		return nil, err
	}
	return s.complete(ctx, sessionID, secrets{cookies: cookies}, access, idToken)
}

func (s *AuthService) completeRedirect(ctx context.Context, sessionID string, sec secrets, uri string) (*model.User, error) {
	access, idToken, err := riot.ExtractTokens(uri)
	if err != nil {
		return nil, err
	}
	return s.complete(ctx, sessionID, sec, access, idToken)
}

// complete resolves profile, entitlement and region for a fresh token pair
// and persists the record. Only the entitlement is required.
func (s *AuthService) complete(ctx context.Context, sessionID string, sec secrets, access, idToken string) (*model.User, error) {
	profile, err := s.provider.FetchUserInfo(ctx, access)
	if err != nil {
		return nil, err
	}

	entitlement, err := s.provider.FetchEntitlement(ctx, access)
	if err != nil {
		log.Printf("[AuthService] Entitlement lookup failed for %s: %v", profile.PUUID, err)
		return nil, err
	}

	region, err := s.provider.FetchRegion(ctx, access, idToken)
	if err != nil {
		log.Printf("[AuthService] Region lookup failed for %s, using %q: %v", profile.PUUID, riot.DefaultRegion, err)
		region = riot.DefaultRegion
	}

	user, err := s.users.Get(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	if user == nil {
		user = &model.User{ID: sessionID}
	}

	bundle := &model.AuthBundle{
		AccessToken: access,
		IDToken:     idToken,
		Entitlement: entitlement,
		Cookies:     sec.cookies,
	}
	if s.storePasswords && sec.login != "" && sec.password != "" {
		bundle.Login = sec.login
		bundle.Password = base64.StdEncoding.EncodeToString([]byte(sec.password))
	} else if s.storePasswords && user.Auth.HasCredentials() {
		bundle.Login = user.Auth.Login
		bundle.Password = user.Auth.Password
	}

	now := s.now()
	user.PUUID = profile.PUUID
	user.Username = profile.Username
	user.Region = region
	user.Auth = bundle
	user.AuthFailures = 0
	user.LastFetchedData = now.UnixMilli()
	user.UpdatedAt = now
	upsertAccount(user)

	if err := s.users.Save(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	log.Printf("[AuthService] Session %s logged in as %s (%s, token %s)",
		sessionID, user.Username, user.Region, token.Prefix(access, 10))
	return user, nil
}

// upsertAccount records the primary account in the linked accounts list.
func upsertAccount(user *model.User) {
	entry := &model.User{
		ID:              user.ID,
		PUUID:           user.PUUID,
		Username:        user.Username,
		Region:          user.Region,
		Auth:            user.Auth,
		LastFetchedData: user.LastFetchedData,
		UpdatedAt:       user.UpdatedAt,
	}
	for i, acc := range user.Accounts {
		if acc != nil && acc.PUUID == user.PUUID {
			user.Accounts[i] = entry
			return
		}
	}
	user.Accounts = append(user.Accounts, entry)
}

// Refresh re-derives tokens from stored cookies, then stored credentials.
// When both fail for any reason other than a pending challenge or rate
// limiting, the stored login is cleared.
func (s *AuthService) Refresh(ctx context.Context, sessionID string) (*AuthResult, error) {
	user, err := s.User(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if user.Auth == nil {
		return nil, ErrNotAuthenticated
	}

	log.Printf("[AuthService] Refreshing tokens for session %s", sessionID)

	lastErr := ErrNotAuthenticated
	if user.Auth.HasCookies() && !user.Auth.IsPending() {
		refreshed, err := s.loginWithCookies(ctx, sessionID, user.Auth.Cookies)
		if err == nil {
			return &AuthResult{User: refreshed}, nil
		}
		log.Printf("[AuthService] Cookie refresh failed for session %s: %v", sessionID, err)
		lastErr = err
	}

	if user.Auth.HasCredentials() {
		password, err := base64.StdEncoding.DecodeString(user.Auth.Password)
		if err == nil {
			result, err := s.LoginWithPassword(ctx, sessionID, user.Auth.Login, string(password))
			if err == nil {
				return result, nil
			}
			log.Printf("[AuthService] Password refresh failed for session %s: %v", sessionID, err)
			lastErr = err
		}
	}

	if errors.Is(lastErr, riot.ErrRateLimited) {
		return nil, lastErr
	}

	user.Auth = nil
	user.AuthFailures++
	user.UpdatedAt = s.now()
	if err := s.users.Save(ctx, user); err != nil {
		log.Printf("[AuthService] Failed to clear login for session %s: %v", sessionID, err)
	}
	return nil, lastErr
}

// EnsureAuthenticated returns the session user with a bearer token that is
// valid for at least tokenGuardBand, refreshing it when needed.
func (s *AuthService) EnsureAuthenticated(ctx context.Context, sessionID string) (*model.User, error) {
	user, err := s.User(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !user.Auth.HasTokens() {
		return nil, ErrNotAuthenticated
	}

	expiry := token.ExpiryOf(user.Auth.AccessToken)
	if expiry > s.now().Add(tokenGuardBand).UnixMilli() {
		return user, nil
	}

	result, err := s.Refresh(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNotAuthenticated, err)
	}
	if !result.Authenticated() {
		return nil, fmt.Errorf("%w: %w", ErrNotAuthenticated, riot.ErrSecondFactorRequired)
	}
	return result.User, nil
}

// Logout forgets the stored login but keeps the record.
func (s *AuthService) Logout(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return nil
	}
	user, err := s.users.Get(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("failed to load session: %w", err)
	}
	if user == nil {
		return nil
	}
	user.Auth = nil
	user.UpdatedAt = s.now()
	return s.users.Save(ctx, user)
}

// DeleteAccount removes the session record entirely.
func (s *AuthService) DeleteAccount(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return ErrNotAuthenticated
	}
	return s.users.Delete(ctx, sessionID)
}

// CredentialsOf returns the game backend credentials of a logged-in user.
func CredentialsOf(user *model.User) riot.Credentials {
	creds := riot.Credentials{Region: user.Region, PUUID: user.PUUID}
	if user.Auth != nil {
		creds.AccessToken = user.Auth.AccessToken
		creds.Entitlement = user.Auth.Entitlement
	}
	return creds
}
