package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"valshop-api/internal/cache"
	"valshop-api/internal/model"
	"valshop-api/internal/repository"
	"valshop-api/internal/valapi"
)

// Item sources reported in CatalogItem.Source.
const (
	SourceLocal       = "local"
	SourceSnapshot    = "catalog"
	SourceRemote      = "remote"
	SourcePlaceholder = "placeholder"
)

const (
	snapshotKey           = "skins"
	snapshotFormatVersion = 1

	// defaultThemeUUID marks the stock skin of each weapon.
	defaultThemeUUID = "5a629df4-4765-0214-bd40-fbb96542941f"

	unknownSkinName    = "未知皮肤"
	defaultSearchLimit = 20
)

// CatalogAPI is the public catalog the service reads from.
type CatalogAPI interface {
	CurrentVersion(ctx context.Context) (*valapi.Version, error)
	Weapons(ctx context.Context) ([]valapi.Weapon, error)
	ContentTiers(ctx context.Context) ([]valapi.ContentTier, error)
	Skins(ctx context.Context) ([]valapi.Skin, error)
	SkinLevel(ctx context.Context, uuid string) (*valapi.SkinLevel, error)
}

var _ CatalogAPI = (*valapi.Client)(nil)

// PriceSource supplies the offer price table.
type PriceSource interface {
	CachedPrices(ctx context.Context) (map[string]int, bool)
	Prices(ctx context.Context, sessionID string) (map[string]int, bool, error)
}

var _ PriceSource = (*ShopService)(nil)

// Resolver is one step of the item lookup chain.
type Resolver interface {
	Name() string
	Resolve(ctx context.Context, uuid string) (model.CatalogItem, bool)
}

// CatalogService resolves display data for items and serves catalog queries.
type CatalogService struct {
	api         CatalogAPI
	file        *repository.CatalogFile
	cache       cache.Cache
	snapshotTTL time.Duration
	prices      PriceSource
	resolvers   []Resolver

	mu    sync.RWMutex
	snap  *model.CatalogSnapshot
	group singleflight.Group
}

var _ ItemLookup = (*CatalogService)(nil)

// NewCatalogService creates a catalog service with the standard resolver
// chain: local file, catalog snapshot, direct item query.
func NewCatalogService(api CatalogAPI, file *repository.CatalogFile, c cache.Cache, snapshotTTL time.Duration) *CatalogService {
	s := &CatalogService{
		api:         api,
		file:        file,
		cache:       c,
		snapshotTTL: snapshotTTL,
	}
	s.resolvers = []Resolver{
		&localFileResolver{file: file},
		&snapshotResolver{catalog: s},
		&remoteResolver{api: api, file: file},
	}
	return s
}

// SetPriceSource sets where item prices come from.
func (s *CatalogService) SetPriceSource(prices PriceSource) {
	s.prices = prices
}

// Resolvers returns the lookup chain in order.
func (s *CatalogService) Resolvers() []Resolver {
	return s.resolvers
}

// Lookup returns a displayable record for uuid. It never fails: when every
// resolver misses, a placeholder with a deterministic icon is returned.
func (s *CatalogService) Lookup(ctx context.Context, uuid string) model.CatalogItem {
	if uuid == "" {
		return placeholderItem(uuid)
	}
	for _, r := range s.resolvers {
		item, ok := r.Resolve(ctx, uuid)
		if !ok {
			continue
		}
		item.UUID = uuid
		if item.Name == "" {
			item.Name = unknownSkinName
		}
		if item.Icon == "" {
			item.Icon = repository.SkinIconURL(uuid)
		}
		return item
	}
	return placeholderItem(uuid)
}

func placeholderItem(uuid string) model.CatalogItem {
	return model.CatalogItem{
		UUID:   uuid,
		Name:   unknownSkinName,
		Icon:   repository.SkinIconURL(uuid),
		Source: SourcePlaceholder,
	}
}

// ShopSkins resolves the given items with their prices. Prices come from
// the cached price table, then the game backend, then the local file.
func (s *CatalogService) ShopSkins(ctx context.Context, sessionID string, uuids []string) []model.CatalogItem {
	prices := s.priceTable(ctx, sessionID)

	out := make([]model.CatalogItem, len(uuids))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(enrichLimit)
	for i, id := range uuids {
		g.Go(func() error {
			item := s.Lookup(gctx, id)
			if p, ok := prices[id]; ok && p > 0 {
				item.Price = &p
			}
			out[i] = item
			return nil
		})
	}
	_ = g.Wait()
	return out
}

func (s *CatalogService) priceTable(ctx context.Context, sessionID string) map[string]int {
	if s.prices != nil {
		if prices, ok := s.prices.CachedPrices(ctx); ok {
			return prices
		}
		if sessionID != "" {
			prices, _, err := s.prices.Prices(ctx, sessionID)
			if err == nil && len(prices) > 0 {
				return prices
			}
			if err != nil {
				log.Printf("[CatalogService] Price lookup failed, using local prices: %v", err)
			}
		}
	}
	return s.file.Prices()
}

// Snapshot returns the public catalog for the current game version. The
// snapshot is rebuilt whenever the manifest id changes.
func (s *CatalogService) Snapshot(ctx context.Context) (*model.CatalogSnapshot, error) {
	version, err := s.api.CurrentVersion(ctx)
	if err != nil {
		if snap := s.current(); snap != nil {
			return snap, nil
		}
		var cached model.CatalogSnapshot
		if cerr := cache.GetJSON(ctx, s.cache, snapshotKey, &cached); cerr == nil && cached.FormatVersion == snapshotFormatVersion {
			s.setCurrent(&cached)
			return &cached, nil
		}
		return nil, fmt.Errorf("failed to resolve game version: %w", err)
	}

	if snap := s.current(); snap != nil && snap.GameVersion == version.ManifestID {
		return snap, nil
	}

	v, err, _ := s.group.Do(version.ManifestID, func() (interface{}, error) {
		var cached model.CatalogSnapshot
		if err := cache.GetJSON(ctx, s.cache, snapshotKey, &cached); err == nil &&
			cached.FormatVersion == snapshotFormatVersion && cached.GameVersion == version.ManifestID {
			s.setCurrent(&cached)
			return &cached, nil
		}
		return s.buildSnapshot(ctx, version.ManifestID)
	})
	if err != nil {
		return nil, err
	}
	return v.(*model.CatalogSnapshot), nil
}

func (s *CatalogService) current() *model.CatalogSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap
}

func (s *CatalogService) setCurrent(snap *model.CatalogSnapshot) {
	s.mu.Lock()
	s.snap = snap
	s.mu.Unlock()
}

func (s *CatalogService) buildSnapshot(ctx context.Context, manifestID string) (*model.CatalogSnapshot, error) {
	var (
		weapons []valapi.Weapon
		tiers   []valapi.ContentTier
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		weapons, err = s.api.Weapons(gctx)
		return err
	})
	g.Go(func() (err error) {
		tiers, err = s.api.ContentTiers(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to fetch catalog: %w", err)
	}

	snap := newSnapshot(manifestID, weapons, tiers)
	snap.Timestamp = time.Now().UnixMilli()

	if err := cache.SetJSON(ctx, s.cache, snapshotKey, snap, s.snapshotTTL); err != nil {
		log.Printf("[CatalogService] Failed to cache catalog snapshot: %v", err)
	}
	s.setCurrent(snap)

	log.Printf("[CatalogService] Catalog snapshot built for %s: %d weapons, %d skins, %d tiers",
		manifestID, len(snap.Weapons), len(snap.Skins), len(snap.Tiers))
	return snap, nil
}

// newSnapshot indexes weapons and their skins by first level id.
func newSnapshot(manifestID string, weapons []valapi.Weapon, tiers []valapi.ContentTier) *model.CatalogSnapshot {
	snap := &model.CatalogSnapshot{
		FormatVersion: snapshotFormatVersion,
		GameVersion:   manifestID,
		Weapons:       make(map[string]model.Weapon, len(weapons)),
		Skins:         make(map[string]model.SnapshotSkin),
		Tiers:         make(map[string]model.Tier, len(tiers)),
	}

	for _, t := range tiers {
		snap.Tiers[t.UUID] = model.Tier{
			UUID:  t.UUID,
			Name:  t.DevName,
			Color: t.HighlightColor,
			Icon:  t.DisplayIcon,
		}
	}

	for _, w := range weapons {
		snap.Weapons[w.UUID] = model.Weapon{
			UUID:     w.UUID,
			Name:     w.DisplayName,
			Category: w.ShortCategory(),
			Icon:     w.DisplayIcon,
		}
		for _, skin := range w.Skins {
			if len(skin.Levels) == 0 {
				continue
			}
			first := skin.Levels[0].UUID
			snap.Skins[first] = model.SnapshotSkin{
				UUID:     first,
				SkinUUID: skin.UUID,
				Weapon:   w.UUID,
				Name:     skin.DisplayName,
				Icon:     skinIcon(&w, &skin),
				Tier:     skin.ContentTierUUID,
			}
		}
	}
	return snap
}

// skinIcon picks the best render of a skin: the full render for stock
// skins, otherwise the first level icon, then a chroma, then the weapon.
func skinIcon(w *valapi.Weapon, skin *valapi.Skin) string {
	var icon string
	if skin.ThemeUUID == defaultThemeUUID {
		if len(skin.Chromas) > 0 {
			icon = skin.Chromas[0].FullRender
		}
	} else {
		for _, l := range skin.Levels {
			if l.DisplayIcon != "" {
				icon = l.DisplayIcon
				break
			}
		}
	}
	if icon == "" && len(skin.Chromas) > 0 {
		icon = skin.Chromas[0].FullRender
		if icon == "" {
			icon = skin.Chromas[0].DisplayIcon
		}
	}
	if icon == "" {
		icon = w.DisplayIcon
	}
	return icon
}

func snapshotItem(snap *model.CatalogSnapshot, skin model.SnapshotSkin) model.CatalogItem {
	item := model.CatalogItem{
		UUID:   skin.UUID,
		Name:   skin.Name,
		Icon:   skin.Icon,
		Source: SourceSnapshot,
	}
	if w, ok := snap.Weapons[skin.Weapon]; ok {
		item.Weapon = w.Name
	}
	if t, ok := snap.Tiers[skin.Tier]; ok {
		item.Tier = t.Name
	}
	if item.Icon == "" {
		item.Icon = repository.SkinIconURL(skin.UUID)
	}
	return item
}

// SearchSkins matches skin names case-insensitively. Catalog entries come
// first, then local file entries not already listed.
func (s *CatalogService) SearchSkins(ctx context.Context, query string, limit int) ([]model.CatalogItem, error) {
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return nil, ErrInvalidInput
	}

	results := make([]model.CatalogItem, 0, limit)
	seen := make(map[string]bool)

	snap, err := s.Snapshot(ctx)
	if err != nil {
		log.Printf("[CatalogService] Search without catalog snapshot: %v", err)
	} else {
		for _, skin := range sortedSkins(snap.Skins) {
			if len(results) >= limit {
				return results, nil
			}
			if strings.Contains(strings.ToLower(skin.Name), q) {
				results = append(results, snapshotItem(snap, skin))
				seen[skin.UUID] = true
			}
		}
	}

	doc, err := s.file.Snapshot()
	if err != nil {
		if len(results) == 0 && snap == nil {
			return nil, err
		}
		return results, nil
	}

	ids := make([]string, 0, len(doc.Skins))
	for id := range doc.Skins {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		if len(results) >= limit {
			break
		}
		entry := doc.Skins[id]
		if seen[id] || !strings.Contains(strings.ToLower(entry.Name), q) {
			continue
		}
		results = append(results, localItem(id, entry, doc))
	}
	return results, nil
}

func sortedSkins(skins map[string]model.SnapshotSkin) []model.SnapshotSkin {
	out := make([]model.SnapshotSkin, 0, len(skins))
	for _, s := range skins {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].UUID < out[j].UUID
	})
	return out
}

// Weapons lists the weapons of the current catalog.
func (s *CatalogService) Weapons(ctx context.Context) ([]model.Weapon, error) {
	snap, err := s.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]model.Weapon, 0, len(snap.Weapons))
	for _, w := range snap.Weapons {
		out = append(out, w)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Category != out[j].Category {
			return out[i].Category < out[j].Category
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

// WeaponSkins lists the skins of one weapon.
func (s *CatalogService) WeaponSkins(ctx context.Context, weaponUUID string) ([]model.CatalogItem, error) {
	if weaponUUID == "" {
		return nil, ErrInvalidInput
	}
	snap, err := s.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]model.CatalogItem, 0)
	for _, skin := range sortedSkins(snap.Skins) {
		if skin.Weapon == weaponUUID {
			out = append(out, snapshotItem(snap, skin))
		}
	}
	return out, nil
}

// localFileResolver reads the shared catalog file.
type localFileResolver struct {
	file *repository.CatalogFile
}

func (r *localFileResolver) Name() string { return SourceLocal }

func (r *localFileResolver) Resolve(ctx context.Context, uuid string) (model.CatalogItem, bool) {
	entry, ok, err := r.file.Get(uuid)
	if err != nil {
		log.Printf("[CatalogService] Local catalog unreadable: %v", err)
		return model.CatalogItem{}, false
	}
	if !ok {
		return model.CatalogItem{}, false
	}
	item := model.CatalogItem{
		UUID:   uuid,
		Name:   entry.Name,
		Icon:   entry.ImageURL,
		Weapon: entry.Weapon,
		Tier:   entry.Tier,
		Price:  entry.Price,
		Source: SourceLocal,
	}
	if w, ok := r.file.Weapon(entry.Weapon); ok {
		item.Weapon = w.Name
	}
	return item, true
}

func localItem(uuid string, entry model.SkinEntry, doc *model.CatalogDocument) model.CatalogItem {
	item := model.CatalogItem{
		UUID:   uuid,
		Name:   entry.Name,
		Icon:   entry.ImageURL,
		Weapon: entry.Weapon,
		Tier:   entry.Tier,
		Price:  entry.Price,
		Source: SourceLocal,
	}
	if w, ok := doc.Weapons[entry.Weapon]; ok {
		item.Weapon = w.Name
	}
	return item
}

// snapshotResolver reads the in-memory public catalog.
type snapshotResolver struct {
	catalog *CatalogService
}

func (r *snapshotResolver) Name() string { return SourceSnapshot }

func (r *snapshotResolver) Resolve(ctx context.Context, uuid string) (model.CatalogItem, bool) {
	snap, err := r.catalog.Snapshot(ctx)
	if err != nil {
		log.Printf("[CatalogService] Catalog snapshot unavailable: %v", err)
		return model.CatalogItem{}, false
	}
	skin, ok := snap.Skins[uuid]
	if !ok {
		return model.CatalogItem{}, false
	}
	return snapshotItem(snap, skin), true
}

// remoteResolver queries a single item and records it in the local file.
type remoteResolver struct {
	api  CatalogAPI
	file *repository.CatalogFile
}

func (r *remoteResolver) Name() string { return SourceRemote }

func (r *remoteResolver) Resolve(ctx context.Context, uuid string) (model.CatalogItem, bool) {
	level, err := r.api.SkinLevel(ctx, uuid)
	if err != nil {
		if !errors.Is(err, valapi.ErrNotFound) {
			log.Printf("[CatalogService] Item lookup failed for %s: %v", uuid, err)
		}
		return model.CatalogItem{}, false
	}
	if level.DisplayName == "" {
		return model.CatalogItem{}, false
	}

	icon := level.Icon()
	if icon == "" {
		icon = repository.SkinIconURL(uuid)
	}
	if err := r.file.Put(uuid, model.SkinEntry{Name: level.DisplayName, ImageURL: icon}); err != nil {
		log.Printf("[CatalogService] Failed to record %s in local catalog: %v", uuid, err)
	}

	return model.CatalogItem{
		UUID:   uuid,
		Name:   level.DisplayName,
		Icon:   icon,
		Source: SourceRemote,
	}, true
}
