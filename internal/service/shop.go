package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"golang.org/x/sync/errgroup"

	"valshop-api/internal/cache"
	"valshop-api/internal/model"
	"valshop-api/internal/repository"
	"valshop-api/internal/riot"
	"valshop-api/internal/valapi"
)

const (
	// pricesKey is the process-wide price table cache key.
	pricesKey = "prices"

	// shopKeyPrefix prefixes the per-account storefront snapshot keys.
	shopKeyPrefix = "shop_"

	// skinItemType is the item type id of weapon skin levels.
	skinItemType = "e7c63390-eda7-46e0-bb7a-a6abdacd2433"

	bundlePlaceholderIcon = "https://media.valorant-api.com/bundles/placeholder.png"
	unknownBundleName     = "未知捆绑包"
	unknownItemName       = "未知物品"

	// enrichLimit bounds concurrent catalog lookups per response.
	enrichLimit = 8
)

// StoreBackend is the game backend the shop reads from.
type StoreBackend interface {
	Storefront(ctx context.Context, creds riot.Credentials) (*model.Storefront, error)
	Wallet(ctx context.Context, creds riot.Credentials) (*model.Wallet, error)
	Offers(ctx context.Context, creds riot.Credentials) (map[string]int, error)
}

var _ StoreBackend = (*riot.StoreClient)(nil)

// ItemLookup resolves display data for an item id. It never fails.
type ItemLookup interface {
	Lookup(ctx context.Context, uuid string) model.CatalogItem
}

// BundleSource resolves bundle display data.
type BundleSource interface {
	Bundle(ctx context.Context, uuid string) (*valapi.Bundle, error)
}

// StorefrontResult is a storefront snapshot with where it came from.
type StorefrontResult struct {
	User     *model.User
	Snapshot *model.CachedStorefront
	Cached   bool
}

// ShopService reads and reshapes storefront data.
type ShopService struct {
	auth      *AuthService
	store     StoreBackend
	cache     cache.Cache
	catalog   ItemLookup
	bundles   BundleSource
	pricesTTL time.Duration
	now       func() time.Time
}

// NewShopService creates a shop service. The catalog is attached with
// SetCatalog because the catalog in turn reads prices from the shop.
func NewShopService(auth *AuthService, store StoreBackend, c cache.Cache, bundles BundleSource, pricesTTL time.Duration) *ShopService {
	if pricesTTL == 0 {
		pricesTTL = 24 * time.Hour
	}
	return &ShopService{
		auth:      auth,
		store:     store,
		cache:     c,
		bundles:   bundles,
		pricesTTL: pricesTTL,
		now:       time.Now,
	}
}

// SetCatalog sets the item lookup used to name bundle and night market items.
func (s *ShopService) SetCatalog(catalog ItemLookup) {
	s.catalog = catalog
}

// Storefront returns the account storefront, served from the per-account
// snapshot until the daily offers expire.
func (s *ShopService) Storefront(ctx context.Context, sessionID string) (*StorefrontResult, error) {
	user, err := s.auth.EnsureAuthenticated(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	key := shopKeyPrefix + user.PUUID
	now := s.now().Unix()

	var snap model.CachedStorefront
	if err := cache.GetJSON(ctx, s.cache, key, &snap); err == nil && snap.Storefront != nil && snap.Remaining(now) > 0 {
		return &StorefrontResult{User: user, Snapshot: &snap, Cached: true}, nil
	}

	sf, err := s.store.Storefront(ctx, CredentialsOf(user))
	if err != nil {
		log.Printf("[ShopService] Storefront fetch failed for %s: %v", user.PUUID, err)
		return nil, err
	}

	fresh := &model.CachedStorefront{Storefront: sf, FetchedAt: now}
	if ttl := time.Duration(sf.SkinsPanelLayout.SingleItemOffersRemainingDurationInSeconds) * time.Second; ttl > 0 {
		if err := cache.SetJSON(ctx, s.cache, key, fresh, ttl); err != nil {
			log.Printf("[ShopService] Failed to cache storefront for %s: %v", user.PUUID, err)
		}
	}
	return &StorefrontResult{User: user, Snapshot: fresh}, nil
}

// DailyOffers returns the daily skin offers and the accessory store.
func (s *ShopService) DailyOffers(ctx context.Context, sessionID string) (*model.DailyOffers, error) {
	res, err := s.Storefront(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	now := s.now().Unix()
	elapsed := now - res.Snapshot.FetchedAt
	sf := res.Snapshot.Storefront

	out := &model.DailyOffers{
		Offers:  sf.SkinsPanelLayout.SingleItemOffers,
		Expires: now + sf.SkinsPanelLayout.SingleItemOffersRemainingDurationInSeconds - elapsed,
		Cached:  res.Cached,
	}
	if out.Offers == nil {
		out.Offers = []string{}
	}

	acc := &model.AccessoryBlock{
		Offers:  make([]model.AccessoryItem, 0, len(sf.AccessoryStore.AccessoryStoreOffers)),
		Expires: now + sf.AccessoryStore.AccessoryStoreRemainingDurationInSeconds - elapsed,
	}
	for _, o := range sf.AccessoryStore.AccessoryStoreOffers {
		acc.Offers = append(acc.Offers, model.AccessoryItem{
			Cost:       o.Offer.Cost[riot.CurrencyKC],
			Rewards:    o.Offer.Rewards,
			ContractID: o.ContractID,
		})
	}
	out.Accessory = acc
	return out, nil
}

// Bundles returns the featured bundles with every item named.
func (s *ShopService) Bundles(ctx context.Context, sessionID string) ([]model.Bundle, error) {
	res, err := s.Storefront(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	now := s.now().Unix()
	elapsed := now - res.Snapshot.FetchedAt
	raw := res.Snapshot.Storefront.FeaturedBundle.Bundles

	out := make([]model.Bundle, len(raw))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(enrichLimit)
	for i := range raw {
		g.Go(func() error {
			out[i] = s.formatBundle(gctx, &raw[i], now-elapsed)
			return nil
		})
	}
	_ = g.Wait()

	return out, nil
}

// formatBundle reshapes a featured bundle. base is the snapshot fetch time.
func (s *ShopService) formatBundle(ctx context.Context, raw *model.RawBundle, base int64) model.Bundle {
	b := model.Bundle{
		UUID:    raw.DataAssetID,
		Name:    unknownBundleName,
		Expires: base + raw.DurationRemainingInSeconds,
		Items:   make([]model.BundleItem, len(raw.Items)),
	}

	if s.bundles != nil && raw.DataAssetID != "" {
		if info, err := s.bundles.Bundle(ctx, raw.DataAssetID); err == nil {
			if info.DisplayName != "" {
				b.Name = info.DisplayName
			}
			b.Icon = info.DisplayIcon
		} else if !errors.Is(err, valapi.ErrNotFound) {
			log.Printf("[ShopService] Bundle lookup failed for %s: %v", raw.DataAssetID, err)
		}
	}
	if b.Icon == "" {
		b.Icon = bundlePlaceholderIcon
	}

	sum := 0
	for i, item := range raw.Items {
		bi := model.BundleItem{
			UUID:      item.Item.ItemID,
			Type:      item.Item.ItemTypeID,
			Name:      unknownItemName,
			Icon:      repository.SkinIconURL(item.Item.ItemID),
			Price:     item.DiscountedPrice,
			BasePrice: item.BasePrice,
			Discount:  item.DiscountPercent,
			Amount:    item.Item.Amount,
		}
		if item.Item.ItemTypeID == skinItemType && s.catalog != nil {
			found := s.catalog.Lookup(ctx, item.Item.ItemID)
			if found.Source != SourcePlaceholder {
				bi.Name = found.Name
			}
			bi.Icon = found.Icon
		}
		sum += item.DiscountedPrice
		b.Items[i] = bi
	}

	if price, ok := riot.FirstCost(raw.TotalDiscountedCost); ok {
		b.Price = &price
	} else if len(raw.Items) > 0 {
		b.Price = &sum
	}
	if baseCost, ok := riot.FirstCost(raw.TotalBaseCost); ok {
		b.BasePrice = &baseCost
	} else {
		b.BasePrice = b.Price
	}
	return b
}

// NightMarket returns the bonus store, or a nil Offers slice when closed.
func (s *ShopService) NightMarket(ctx context.Context, sessionID string) (*model.NightMarket, error) {
	res, err := s.Storefront(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	bonus := res.Snapshot.Storefront.BonusStore
	if bonus == nil {
		return &model.NightMarket{}, nil
	}

	now := s.now().Unix()
	out := &model.NightMarket{
		Offers:  make([]model.NightMarketOffer, len(bonus.BonusStoreOffers)),
		Expires: now + bonus.BonusStoreRemainingDurationInSeconds - (now - res.Snapshot.FetchedAt),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(enrichLimit)
	for i := range bonus.BonusStoreOffers {
		g.Go(func() error {
			offer := bonus.BonusStoreOffers[i]
			item := model.NightMarketOffer{
				UUID:    offer.Offer.OfferID,
				Name:    unknownSkinName,
				Icon:    repository.SkinIconURL(offer.Offer.OfferID),
				Percent: offer.DiscountPercent,
			}
			if s.catalog != nil {
				found := s.catalog.Lookup(gctx, offer.Offer.OfferID)
				item.Name = found.Name
				item.Icon = found.Icon
			}
			item.RealPrice, _ = riot.FirstCost(offer.Offer.Cost)
			item.NMPrice, _ = riot.FirstCost(offer.DiscountCosts)
			out.Offers[i] = item
			return nil
		})
	}
	_ = g.Wait()

	return out, nil
}

// Balance returns the wallet. It always reads through to the game backend.
func (s *ShopService) Balance(ctx context.Context, sessionID string) (*model.Balance, error) {
	user, err := s.auth.EnsureAuthenticated(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	wallet, err := s.store.Wallet(ctx, CredentialsOf(user))
	if err != nil {
		log.Printf("[ShopService] Wallet fetch failed for %s: %v", user.PUUID, err)
		return nil, err
	}
	return &model.Balance{
		VP:  wallet.Balances[riot.CurrencyVP],
		Rad: wallet.Balances[riot.CurrencyRad],
		KC:  wallet.Balances[riot.CurrencyKC],
	}, nil
}

// Prices returns the offer price table. The table is shared by every
// session and kept for pricesTTL.
func (s *ShopService) Prices(ctx context.Context, sessionID string) (map[string]int, bool, error) {
	user, err := s.auth.EnsureAuthenticated(ctx, sessionID)
	if err != nil {
		return nil, false, err
	}

	var fresh map[string]int
	raw, err := s.cache.GetOrSet(ctx, pricesKey, s.pricesTTL, func() ([]byte, error) {
		prices, err := s.store.Offers(ctx, CredentialsOf(user))
		if err != nil {
			return nil, err
		}
		if prices == nil {
			prices = map[string]int{}
		}
		fresh = prices
		return json.Marshal(prices)
	})
	if err != nil {
		if fresh != nil {
			log.Printf("[ShopService] Failed to cache prices: %v", err)
			return fresh, false, nil
		}
		log.Printf("[ShopService] Offers fetch failed: %v", err)
		return nil, false, err
	}
	if fresh != nil {
		return fresh, false, nil
	}

	var prices map[string]int
	if err := json.Unmarshal(raw, &prices); err != nil {
		return nil, false, fmt.Errorf("decode cached prices: %w", err)
	}
	return prices, true, nil
}

// CachedPrices returns the price table if it is cached.
func (s *ShopService) CachedPrices(ctx context.Context) (map[string]int, bool) {
	var prices map[string]int
	if err := cache.GetJSON(ctx, s.cache, pricesKey, &prices); err != nil || len(prices) == 0 {
		return nil, false
	}
	return prices, true
}
