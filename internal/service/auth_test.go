package service

import (
	"context"
	"encoding/base64"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"valshop-api/internal/model"
	"valshop-api/internal/riot"
)

func multifactorResponse() *riot.AuthResponse {
	resp := &riot.AuthResponse{Type: "multifactor"}
	resp.Multifactor.Method = "email"
	resp.Multifactor.Email = "a@b.com"
	return resp
}

func successResponse(access string) *riot.AuthResponse {
	resp := &riot.AuthResponse{Type: "response"}
	resp.Response.Parameters.URI = redirectFor(access)
	return resp
}

func TestLoginWithPassword_MultifactorStoresPendingRecord(t *testing.T) {
	ctx := context.Background()
	repo := newUserRepo(t)
	provider := newFakeProvider("")
	provider.credResp = multifactorResponse()
	svc := NewAuthService(provider, repo, false)

	result, err := svc.LoginWithPassword(ctx, "session-1", "u1", "p1")
	require.NoError(t, err)
	require.NotNil(t, result.MFA)
	assert.False(t, result.Authenticated())
	assert.Equal(t, "email", result.MFA.Method)
	assert.Equal(t, "a@b.com", result.MFA.Email)

	stored, err := repo.Get(ctx, "session-1")
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.True(t, stored.Auth.IsPending())
	assert.False(t, stored.Auth.HasTokens())
	assert.Equal(t, "ssid-value", stored.Auth.Cookies["ssid"])
	assert.Empty(t, stored.Auth.Login, "credentials are not kept unless enabled")
	assert.Empty(t, stored.Auth.Password)
}

func TestLoginWithPassword_MultifactorKeepsCredentialsWhenEnabled(t *testing.T) {
	ctx := context.Background()
	repo := newUserRepo(t)
	provider := newFakeProvider("")
	provider.credResp = multifactorResponse()
	svc := NewAuthService(provider, repo, true)

	_, err := svc.LoginWithPassword(ctx, "session-1", "u1", "p1")
	require.NoError(t, err)

	stored, err := repo.Get(ctx, "session-1")
	require.NoError(t, err)
	assert.Equal(t, "u1", stored.Auth.Login)
	assert.Equal(t, base64.StdEncoding.EncodeToString([]byte("p1")), stored.Auth.Password)
}

func TestLoginWithPassword_Success(t *testing.T) {
	ctx := context.Background()
	repo := newUserRepo(t)
	access := makeToken(t, testPUUID, time.Now().Add(time.Hour))
	provider := newFakeProvider(access)
	provider.credResp = successResponse(access)
	svc := NewAuthService(provider, repo, false)

	result, err := svc.LoginWithPassword(ctx, "session-1", "u1", "p1")
	require.NoError(t, err)
	require.True(t, result.Authenticated())

	user := result.User
	assert.Equal(t, testPUUID, user.PUUID)
	assert.Equal(t, "Tester#CN1", user.Username)
	assert.Equal(t, "kr", user.Region)
	assert.Equal(t, access, user.Auth.AccessToken)
	assert.Equal(t, "idt-value", user.Auth.IDToken)
	assert.Equal(t, "ent-value", user.Auth.Entitlement)
	assert.Zero(t, user.AuthFailures)
	require.Len(t, user.Accounts, 1)
	assert.Equal(t, testPUUID, user.Accounts[0].PUUID)

	// Within the validity window no further upstream call is made.
	calls := provider.total()
	again, err := svc.EnsureAuthenticated(ctx, "session-1")
	require.NoError(t, err)
	assert.Equal(t, testPUUID, again.PUUID)
	assert.Equal(t, calls, provider.total())
}

func TestLoginWithPassword_Rejected(t *testing.T) {
	ctx := context.Background()
	repo := newUserRepo(t)
	provider := newFakeProvider("")
	provider.credResp = &riot.AuthResponse{Type: "error", Error: "auth_failure"}
	svc := NewAuthService(provider, repo, false)

	_, err := svc.LoginWithPassword(ctx, "session-1", "u1", "wrong")
	require.Error(t, err)
	assert.ErrorIs(t, err, riot.ErrInvalidCredentials)
	assert.True(t, riot.IsRejection(err))

	stored, err := repo.Get(ctx, "session-1")
	require.NoError(t, err)
	assert.Nil(t, stored, "failed logins never persist")
}

func TestLoginWithPassword_InvalidInput(t *testing.T) {
	provider := newFakeProvider("")
	svc := NewAuthService(provider, newUserRepo(t), false)

	_, err := svc.LoginWithPassword(context.Background(), "session-1", "", "p1")
	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.Zero(t, provider.total(), "validation happens before any upstream call")
}

func TestLoginWithPassword_EntitlementFailureIsFatal(t *testing.T) {
	ctx := context.Background()
	repo := newUserRepo(t)
	access := makeToken(t, testPUUID, time.Now().Add(time.Hour))
	provider := newFakeProvider(access)
	provider.credResp = successResponse(access)
	provider.entitlementErr = riot.ErrEntitlementFetch
	svc := NewAuthService(provider, repo, false)

	_, err := svc.LoginWithPassword(ctx, "session-1", "u1", "p1")
	assert.ErrorIs(t, err, riot.ErrEntitlementFetch)

	stored, err := repo.Get(ctx, "session-1")
	require.NoError(t, err)
	assert.Nil(t, stored)
}

func TestLoginWithPassword_RegionFailureUsesDefault(t *testing.T) {
	ctx := context.Background()
	access := makeToken(t, testPUUID, time.Now().Add(time.Hour))
	provider := newFakeProvider(access)
	provider.credResp = successResponse(access)
	provider.regionErr = riot.ErrRegionFetch
	svc := NewAuthService(provider, newUserRepo(t), false)

	result, err := svc.LoginWithPassword(ctx, "session-1", "u1", "p1")
	require.NoError(t, err)
	assert.Equal(t, riot.DefaultRegion, result.User.Region)
}

func TestSubmitSecondFactor(t *testing.T) {
	ctx := context.Background()
	access := makeToken(t, testPUUID, time.Now().Add(time.Hour))

	t.Run("without pending challenge", func(t *testing.T) {
		provider := newFakeProvider(access)
		svc := NewAuthService(provider, newUserRepo(t), false)

		_, err := svc.SubmitSecondFactor(ctx, "session-1", "123456")
		assert.ErrorIs(t, err, ErrNoPendingChallenge)
		assert.Zero(t, provider.count("mfa"))
	})

	t.Run("wrong code", func(t *testing.T) {
		repo := newUserRepo(t)
		provider := newFakeProvider(access)
		provider.credResp = multifactorResponse()
		provider.mfaResp = &riot.AuthResponse{Type: "multifactor", Error: "multifactor_attempt_failed"}
		svc := NewAuthService(provider, repo, false)

		_, err := svc.LoginWithPassword(ctx, "session-1", "u1", "p1")
		require.NoError(t, err)

		_, err = svc.SubmitSecondFactor(ctx, "session-1", "000000")
		assert.ErrorIs(t, err, riot.ErrSecondFactorInvalid)

		stored, err := repo.Get(ctx, "session-1")
		require.NoError(t, err)
		assert.True(t, stored.Auth.IsPending(), "pending record survives a wrong code")
	})

	t.Run("accepted code", func(t *testing.T) {
		repo := newUserRepo(t)
		provider := newFakeProvider(access)
		provider.credResp = multifactorResponse()
		provider.mfaResp = successResponse(access)
		svc := NewAuthService(provider, repo, false)

		_, err := svc.LoginWithPassword(ctx, "session-1", "u1", "p1")
		require.NoError(t, err)

		result, err := svc.SubmitSecondFactor(ctx, "session-1", "123456")
		require.NoError(t, err)
		assert.True(t, result.Authenticated())

		stored, err := repo.Get(ctx, "session-1")
		require.NoError(t, err)
		assert.False(t, stored.Auth.IsPending())
		assert.True(t, stored.Auth.HasTokens())
		assert.Equal(t, "ent-value", stored.Auth.Entitlement)
	})
}

func TestLoginWithCookie(t *testing.T) {
	ctx := context.Background()
	access := makeToken(t, testPUUID, time.Now().Add(time.Hour))

	t.Run("keeps only essential cookies", func(t *testing.T) {
		provider := newFakeProvider(access)
		svc := NewAuthService(provider, newUserRepo(t), false)

		result, err := svc.LoginWithCookie(ctx, "session-1", "ssid=abc; tracking=1;\nclid=ec1; __cf_bm=zzz")
		require.NoError(t, err)
		assert.True(t, result.Authenticated())
		assert.Equal(t, map[string]string{"ssid": "abc", "clid": "ec1"}, provider.lastCookies)
		assert.Equal(t, provider.lastCookies, result.User.Auth.Cookies)
	})

	t.Run("no essential cookie", func(t *testing.T) {
		provider := newFakeProvider(access)
		svc := NewAuthService(provider, newUserRepo(t), false)

		_, err := svc.LoginWithCookie(ctx, "session-1", "tracking=1; other=2")
		assert.ErrorIs(t, err, riot.ErrMissingCookies)
		assert.Zero(t, provider.count("authorize"))
	})

	t.Run("stale cookie", func(t *testing.T) {
		provider := newFakeProvider(access)
		provider.cookieErr = riot.ErrCookieExpired
		svc := NewAuthService(provider, newUserRepo(t), false)

		_, err := svc.LoginWithCookie(ctx, "session-1", "ssid=old")
		assert.ErrorIs(t, err, riot.ErrCookieExpired)
	})
}

func TestEnsureAuthenticated_GuardBand(t *testing.T) {
	ctx := context.Background()

	t.Run("far from expiry makes no call", func(t *testing.T) {
		repo := newUserRepo(t)
		loggedInUser(t, repo, "session-1", time.Hour)
		provider := newFakeProvider("")
		svc := NewAuthService(provider, repo, false)

		user, err := svc.EnsureAuthenticated(ctx, "session-1")
		require.NoError(t, err)
		assert.Equal(t, testPUUID, user.PUUID)
		assert.Zero(t, provider.total())
	})

	t.Run("within ten seconds refreshes", func(t *testing.T) {
		repo := newUserRepo(t)
		loggedInUser(t, repo, "session-1", 5*time.Second)
		fresh := makeToken(t, testPUUID, time.Now().Add(time.Hour))
		provider := newFakeProvider(fresh)
		svc := NewAuthService(provider, repo, false)

		user, err := svc.EnsureAuthenticated(ctx, "session-1")
		require.NoError(t, err)
		assert.Equal(t, 1, provider.count("authorize"))
		assert.Equal(t, fresh, user.Auth.AccessToken)
	})

	t.Run("clock at the guard band boundary refreshes", func(t *testing.T) {
		repo := newUserRepo(t)
		user := loggedInUser(t, repo, "session-1", time.Hour)
		fresh := makeToken(t, testPUUID, time.Now().Add(2*time.Hour))
		provider := newFakeProvider(fresh)
		svc := NewAuthService(provider, repo, false)

		claimsExpiry := time.Now().Add(time.Hour).Truncate(time.Second)
		svc.now = func() time.Time { return claimsExpiry.Add(-tokenGuardBand) }

		_, err := svc.EnsureAuthenticated(ctx, user.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, provider.count("authorize"))
	})

	t.Run("no session", func(t *testing.T) {
		svc := NewAuthService(newFakeProvider(""), newUserRepo(t), false)
		_, err := svc.EnsureAuthenticated(ctx, "missing")
		assert.ErrorIs(t, err, ErrNotAuthenticated)
	})

	t.Run("pending challenge is not a login", func(t *testing.T) {
		repo := newUserRepo(t)
		require.NoError(t, repo.Save(ctx, &model.User{
			ID:   "session-1",
			Auth: &model.AuthBundle{Pending2FA: time.Now().UnixMilli(), AccessToken: "stale"},
		}))
		svc := NewAuthService(newFakeProvider(""), repo, false)

		_, err := svc.EnsureAuthenticated(ctx, "session-1")
		assert.ErrorIs(t, err, ErrNotAuthenticated)
	})
}

func TestRefresh(t *testing.T) {
	ctx := context.Background()

	t.Run("failure clears the stored login", func(t *testing.T) {
		repo := newUserRepo(t)
		loggedInUser(t, repo, "session-1", time.Second)
		provider := newFakeProvider("")
		provider.cookieErr = riot.ErrCookieExpired
		svc := NewAuthService(provider, repo, false)

		_, err := svc.EnsureAuthenticated(ctx, "session-1")
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrNotAuthenticated)
		assert.ErrorIs(t, err, riot.ErrCookieExpired)

		stored, err := repo.Get(ctx, "session-1")
		require.NoError(t, err)
		require.NotNil(t, stored)
		assert.Nil(t, stored.Auth)
		assert.Equal(t, 1, stored.AuthFailures)
	})

	t.Run("rate limiting keeps the stored login", func(t *testing.T) {
		repo := newUserRepo(t)
		loggedInUser(t, repo, "session-1", time.Second)
		provider := newFakeProvider("")
		provider.cookieErr = riot.ErrRateLimited
		svc := NewAuthService(provider, repo, false)

		_, err := svc.Refresh(ctx, "session-1")
		assert.ErrorIs(t, err, riot.ErrRateLimited)

		stored, err := repo.Get(ctx, "session-1")
		require.NoError(t, err)
		assert.NotNil(t, stored.Auth)
	})

	t.Run("cookie re-login keeps only essential cookies", func(t *testing.T) {
		repo := newUserRepo(t)
		user := loggedInUser(t, repo, "session-1", 5*time.Second)
		user.Auth.Cookies = map[string]string{"asid": "interim", "ssid": "ssid-value", "clid": "clid-value"}
		require.NoError(t, repo.Save(ctx, user))

		fresh := makeToken(t, testPUUID, time.Now().Add(time.Hour))
		provider := newFakeProvider(fresh)
		svc := NewAuthService(provider, repo, false)

		_, err := svc.EnsureAuthenticated(ctx, "session-1")
		require.NoError(t, err)

		want := map[string]string{"ssid": "ssid-value", "clid": "clid-value"}
		assert.Equal(t, want, provider.lastCookies)

		stored, err := repo.Get(ctx, "session-1")
		require.NoError(t, err)
		assert.Equal(t, want, stored.Auth.Cookies)
	})

	t.Run("no essential cookies skips authorize", func(t *testing.T) {
		repo := newUserRepo(t)
		user := loggedInUser(t, repo, "session-1", time.Second)
		user.Auth.Cookies = map[string]string{"asid": "interim"}
		require.NoError(t, repo.Save(ctx, user))

		provider := newFakeProvider("")
		svc := NewAuthService(provider, repo, false)

		_, err := svc.Refresh(ctx, "session-1")
		assert.ErrorIs(t, err, riot.ErrMissingCookies)
		assert.Zero(t, provider.count("authorize"))
	})

	t.Run("falls back to stored credentials", func(t *testing.T) {
		repo := newUserRepo(t)
		user := loggedInUser(t, repo, "session-1", time.Second)
		user.Auth.Login = "u1"
		user.Auth.Password = base64.StdEncoding.EncodeToString([]byte("p1"))
		require.NoError(t, repo.Save(ctx, user))

		fresh := makeToken(t, testPUUID, time.Now().Add(time.Hour))
		provider := newFakeProvider(fresh)
		provider.cookieErr = riot.ErrCookieExpired
		provider.credResp = successResponse(fresh)
		svc := NewAuthService(provider, repo, true)

		result, err := svc.Refresh(ctx, "session-1")
		require.NoError(t, err)
		assert.True(t, result.Authenticated())
		assert.Equal(t, 1, provider.count("credentials"))
		assert.Equal(t, "u1", result.User.Auth.Login)
	})
}

func TestLogoutAndDelete(t *testing.T) {
	ctx := context.Background()
	repo := newUserRepo(t)
	loggedInUser(t, repo, "session-1", time.Hour)
	svc := NewAuthService(newFakeProvider(""), repo, false)

	require.NoError(t, svc.Logout(ctx, "session-1"))
	require.NoError(t, svc.Logout(ctx, "never-existed"))

	stored, err := repo.Get(ctx, "session-1")
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Nil(t, stored.Auth)

	_, err = svc.EnsureAuthenticated(ctx, "session-1")
	assert.True(t, errors.Is(err, ErrNotAuthenticated))

	require.NoError(t, svc.DeleteAccount(ctx, "session-1"))
	_, err = svc.User(ctx, "session-1")
	assert.ErrorIs(t, err, ErrNotAuthenticated)
}
