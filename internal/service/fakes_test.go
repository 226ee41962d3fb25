package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"valshop-api/internal/cache"
	"valshop-api/internal/model"
	"valshop-api/internal/repository"
	"valshop-api/internal/riot"
	"valshop-api/internal/valapi"
)

const testPUUID = "7f0a1c3e-0000-4000-8000-00000000abcd"

// makeToken returns an unsigned-verification token with sub and exp claims.
func makeToken(t *testing.T, sub string, exp time.Time) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": sub,
		"exp": exp.Unix(),
		"acct": map[string]interface{}{
			"game_name": "Tester",
			"tag_line":  "CN1",
		},
	})
	signed, err := tok.SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return signed
}

func redirectFor(access string) string {
	return "https://playvalorant.com/opt_in#access_token=" + access + "&scope=openid&id_token=idt-value&token_type=Bearer&expires_in=3600"
}

type fakeProvider struct {
	mu    sync.Mutex
	calls map[string]int

	credResp  *riot.AuthResponse
	credErr   error
	mfaResp   *riot.AuthResponse
	mfaErr    error
	access    string
	cookieErr error

	entitlementErr error
	regionErr      error

	lastCookies map[string]string
}

var _ IdentityProvider = (*fakeProvider)(nil)

func newFakeProvider(access string) *fakeProvider {
	return &fakeProvider{calls: make(map[string]int), access: access}
}

func (f *fakeProvider) hit(name string) {
	f.mu.Lock()
	f.calls[name]++
	f.mu.Unlock()
}

func (f *fakeProvider) count(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

func (f *fakeProvider) total() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		n += c
	}
	return n
}

func (f *fakeProvider) RequestAuthCookies(ctx context.Context) (map[string]string, error) {
	f.hit("cookies")
	return map[string]string{"asid": "interim"}, nil
}

func (f *fakeProvider) SubmitCredentials(ctx context.Context, cookies map[string]string, username, password string) (*riot.AuthResponse, map[string]string, error) {
	f.hit("credentials")
	if f.credErr != nil {
		return nil, cookies, f.credErr
	}
	merged := map[string]string{"asid": cookies["asid"], "ssid": "ssid-value", "clid": "clid-value"}
	return f.credResp, merged, nil
}

func (f *fakeProvider) SubmitMFACode(ctx context.Context, cookies map[string]string, code string) (*riot.AuthResponse, map[string]string, error) {
	f.hit("mfa")
	if f.mfaErr != nil {
		return nil, cookies, f.mfaErr
	}
	return f.mfaResp, cookies, nil
}

func (f *fakeProvider) AuthorizeWithCookies(ctx context.Context, cookies map[string]string) (string, string, error) {
	f.hit("authorize")
	f.mu.Lock()
	f.lastCookies = cookies
	f.mu.Unlock()
	if f.cookieErr != nil {
		return "", "", f.cookieErr
	}
	return f.access, "idt-value", nil
}

func (f *fakeProvider) FetchUserInfo(ctx context.Context, accessToken string) (*riot.Profile, error) {
	f.hit("userinfo")
	return riot.ProfileFromToken(accessToken)
}

func (f *fakeProvider) FetchEntitlement(ctx context.Context, accessToken string) (string, error) {
	f.hit("entitlement")
	if f.entitlementErr != nil {
		return "", f.entitlementErr
	}
	return "ent-value", nil
}

func (f *fakeProvider) FetchRegion(ctx context.Context, accessToken, idToken string) (string, error) {
	f.hit("region")
	if f.regionErr != nil {
		return "", f.regionErr
	}
	return "kr", nil
}

type fakeStore struct {
	mu         sync.Mutex
	storefront *model.Storefront
	wallet     *model.Wallet
	offers     map[string]int
	err        error
	calls      map[string]int
}

var _ StoreBackend = (*fakeStore)(nil)

func newFakeStore(sf *model.Storefront) *fakeStore {
	return &fakeStore{storefront: sf, calls: make(map[string]int)}
}

func (f *fakeStore) hit(name string) {
	f.mu.Lock()
	f.calls[name]++
	f.mu.Unlock()
}

func (f *fakeStore) count(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

func (f *fakeStore) Storefront(ctx context.Context, creds riot.Credentials) (*model.Storefront, error) {
	f.hit("storefront")
	if f.err != nil {
		return nil, f.err
	}
	return f.storefront, nil
}

func (f *fakeStore) Wallet(ctx context.Context, creds riot.Credentials) (*model.Wallet, error) {
	f.hit("wallet")
	if f.err != nil {
		return nil, f.err
	}
	return f.wallet, nil
}

func (f *fakeStore) Offers(ctx context.Context, creds riot.Credentials) (map[string]int, error) {
	f.hit("offers")
	if f.err != nil {
		return nil, f.err
	}
	return f.offers, nil
}

type fakeCatalogAPI struct {
	mu       sync.Mutex
	manifest string
	weapons  []valapi.Weapon
	tiers    []valapi.ContentTier
	skins    []valapi.Skin
	levels   map[string]*valapi.SkinLevel
	bundles  map[string]*valapi.Bundle
	err      error
	calls    map[string]int
}

var (
	_ CatalogAPI   = (*fakeCatalogAPI)(nil)
	_ BundleSource = (*fakeCatalogAPI)(nil)
)

func newFakeCatalogAPI() *fakeCatalogAPI {
	return &fakeCatalogAPI{
		manifest: "manifest-1",
		levels:   make(map[string]*valapi.SkinLevel),
		bundles:  make(map[string]*valapi.Bundle),
		calls:    make(map[string]int),
	}
}

func (f *fakeCatalogAPI) hit(name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[name]++
	return f.err
}

func (f *fakeCatalogAPI) count(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

func (f *fakeCatalogAPI) CurrentVersion(ctx context.Context) (*valapi.Version, error) {
	if err := f.hit("version"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return &valapi.Version{ManifestID: f.manifest, RiotClientVersion: "release-test"}, nil
}

func (f *fakeCatalogAPI) Weapons(ctx context.Context) ([]valapi.Weapon, error) {
	if err := f.hit("weapons"); err != nil {
		return nil, err
	}
	return f.weapons, nil
}

func (f *fakeCatalogAPI) ContentTiers(ctx context.Context) ([]valapi.ContentTier, error) {
	if err := f.hit("tiers"); err != nil {
		return nil, err
	}
	return f.tiers, nil
}

func (f *fakeCatalogAPI) Skins(ctx context.Context) ([]valapi.Skin, error) {
	if err := f.hit("skins"); err != nil {
		return nil, err
	}
	return f.skins, nil
}

func (f *fakeCatalogAPI) SkinLevel(ctx context.Context, uuid string) (*valapi.SkinLevel, error) {
	if err := f.hit("level"); err != nil {
		return nil, err
	}
	if l, ok := f.levels[uuid]; ok {
		return l, nil
	}
	return nil, valapi.ErrNotFound
}

func (f *fakeCatalogAPI) Bundle(ctx context.Context, uuid string) (*valapi.Bundle, error) {
	if err := f.hit("bundle"); err != nil {
		return nil, err
	}
	if b, ok := f.bundles[uuid]; ok {
		return b, nil
	}
	return nil, valapi.ErrNotFound
}

// sampleCatalog fills the fake with one weapon carrying two skins.
func sampleCatalog(f *fakeCatalogAPI) {
	f.tiers = []valapi.ContentTier{
		{UUID: "tier-deluxe", DevName: "Deluxe", HighlightColor: "009587ff", DisplayIcon: "https://icons/deluxe.png"},
	}
	f.weapons = []valapi.Weapon{{
		UUID:        "weapon-vandal",
		DisplayName: "暴徒",
		Category:    "EEquippableCategory::Rifle",
		DisplayIcon: "https://icons/vandal.png",
		Skins: []valapi.Skin{
			{
				UUID:            "skin-prime",
				DisplayName:     "Prime Vandal",
				ContentTierUUID: "tier-deluxe",
				Levels: []valapi.SkinLevel{
					{UUID: "level-prime-1", DisplayName: "Prime Vandal", DisplayIcon: "https://icons/prime.png"},
					{UUID: "level-prime-2", DisplayName: "Prime Vandal Level 2"},
				},
			},
			{
				UUID:        "skin-standard",
				DisplayName: "Standard Vandal",
				ThemeUUID:   defaultThemeUUID,
				Chromas:     []valapi.Chroma{{UUID: "chroma-std", FullRender: "https://icons/std-full.png"}},
				Levels:      []valapi.SkinLevel{{UUID: "level-std-1", DisplayName: "Standard Vandal"}},
			},
		},
	}}
	f.skins = f.weapons[0].Skins
}

// loggedInUser stores a session with a token valid for ttl.
func loggedInUser(t *testing.T, repo repository.UserRepository, sessionID string, ttl time.Duration) *model.User {
	t.Helper()
	user := &model.User{
		ID:       sessionID,
		PUUID:    testPUUID,
		Username: "Tester#CN1",
		Region:   "ap",
		Auth: &model.AuthBundle{
			AccessToken: makeToken(t, testPUUID, time.Now().Add(ttl)),
			IDToken:     "idt-value",
			Entitlement: "ent-value",
			Cookies:     map[string]string{"ssid": "ssid-value"},
		},
	}
	require.NoError(t, repo.Save(context.Background(), user))
	return user
}

func newUserRepo(t *testing.T) repository.UserRepository {
	t.Helper()
	repo, err := repository.NewFileUserRepository(t.TempDir())
	require.NoError(t, err)
	return repo
}

func newMemoryCache(t *testing.T) *cache.MemoryCache {
	t.Helper()
	c := cache.NewMemoryCache()
	t.Cleanup(func() { _ = c.Close() })
	return c
}
