package service

import (
	"context"
	"fmt"
	"log"

	"golang.org/x/sync/errgroup"

	"valshop-api/internal/cache"
	"valshop-api/internal/model"
	"valshop-api/internal/repository"
	"valshop-api/internal/valapi"
)

// UpdateDatabase merges every skin level of the public catalog into the
// local catalog file. Existing entries are only completed, never replaced.
func (s *CatalogService) UpdateDatabase(ctx context.Context) (*model.UpdateReport, error) {
	var (
		tiers   []valapi.ContentTier
		weapons []valapi.Weapon
		skins   []valapi.Skin
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		tiers, err = s.api.ContentTiers(gctx)
		return err
	})
	g.Go(func() (err error) {
		weapons, err = s.api.Weapons(gctx)
		return err
	})
	g.Go(func() (err error) {
		skins, err = s.api.Skins(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to fetch catalog: %w", err)
	}

	// Skins do not name their weapon; the weapon list does.
	weaponOf := make(map[string]string)
	for _, w := range weapons {
		for _, skin := range w.Skins {
			weaponOf[skin.UUID] = w.UUID
		}
	}

	report := &model.UpdateReport{}
	err := s.file.Update(func(doc *model.CatalogDocument) error {
		for _, t := range tiers {
			doc.SkinTiers[t.UUID] = model.Tier{
				UUID:  t.UUID,
				Name:  t.DevName,
				Color: t.HighlightColor,
				Icon:  t.DisplayIcon,
			}
		}
		for _, w := range weapons {
			doc.Weapons[w.UUID] = model.Weapon{
				UUID:     w.UUID,
				Name:     w.DisplayName,
				Category: w.ShortCategory(),
				Icon:     w.DisplayIcon,
			}
		}

		for _, skin := range skins {
			tier := ""
			if t, ok := doc.SkinTiers[skin.ContentTierUUID]; ok {
				tier = t.Name
			}
			weapon := weaponOf[skin.UUID]

			for _, level := range skin.Levels {
				icon := levelIcon(&skin, &level)

				entry, exists := doc.Skins[level.UUID]
				if !exists {
					name := level.DisplayName
					if name == "" {
						name = skin.DisplayName
					}
					doc.Skins[level.UUID] = model.SkinEntry{
						Name:     name,
						Weapon:   weapon,
						Tier:     tier,
						ImageURL: icon,
					}
					report.NewSkins++
					continue
				}

				changed := false
				if (entry.ImageURL == "" || entry.ImageURL == repository.SkinIconURL(level.UUID)) && icon != entry.ImageURL {
					entry.ImageURL = icon
					changed = true
				}
				if entry.Weapon == "" && weapon != "" {
					entry.Weapon = weapon
					changed = true
				}
				if entry.Tier == "" && tier != "" {
					entry.Tier = tier
					changed = true
				}
				if changed {
					doc.Skins[level.UUID] = entry
					report.UpdatedSkins++
				}
			}
		}
		report.TotalSkins = len(doc.Skins)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to save local catalog: %w", err)
	}

	log.Printf("[CatalogService] Local catalog updated: %d new, %d updated, %d total",
		report.NewSkins, report.UpdatedSkins, report.TotalSkins)
	return report, nil
}

// levelIcon picks the icon of a skin level, falling back to the first
// chroma and finally the deterministic media URL.
func levelIcon(skin *valapi.Skin, level *valapi.SkinLevel) string {
	if level.DisplayIcon != "" {
		return level.DisplayIcon
	}
	if len(skin.Chromas) > 0 {
		if skin.Chromas[0].FullRender != "" {
			return skin.Chromas[0].FullRender
		}
		if skin.Chromas[0].DisplayIcon != "" {
			return skin.Chromas[0].DisplayIcon
		}
	}
	return repository.SkinIconURL(level.UUID)
}

// DatabaseStatus describes the local catalog file.
func (s *CatalogService) DatabaseStatus() model.CatalogStatus {
	return s.file.Stat()
}

// ExtractFromSnapshots records in the local catalog every item seen in the
// cached storefront snapshots that the file does not know yet.
func (s *CatalogService) ExtractFromSnapshots(ctx context.Context) (int, error) {
	keys, err := s.cache.Keys(ctx, shopKeyPrefix)
	if err != nil {
		return 0, fmt.Errorf("failed to list storefront snapshots: %w", err)
	}

	seen := make(map[string]bool)
	var ids []string
	add := func(id string) {
		if id != "" && !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}

	for _, key := range keys {
		var snap model.CachedStorefront
		if err := cache.GetJSON(ctx, s.cache, key, &snap); err != nil || snap.Storefront == nil {
			continue
		}
		sf := snap.Storefront
		for _, id := range sf.SkinsPanelLayout.SingleItemOffers {
			add(id)
		}
		for _, b := range sf.FeaturedBundle.Bundles {
			for _, item := range b.Items {
				if item.Item.ItemTypeID == skinItemType {
					add(item.Item.ItemID)
				}
			}
		}
		if sf.BonusStore != nil {
			for _, o := range sf.BonusStore.BonusStoreOffers {
				add(o.Offer.OfferID)
			}
		}
	}

	added := 0
	for _, id := range ids {
		if _, ok, err := s.file.Get(id); err != nil || ok {
			continue
		}
		item := s.Lookup(ctx, id)
		switch item.Source {
		case SourceRemote:
			// already recorded by the resolver
			added++
		case SourceSnapshot:
			if err := s.file.Put(id, model.SkinEntry{Name: item.Name, Tier: item.Tier, ImageURL: item.Icon}); err != nil {
				log.Printf("[CatalogService] Failed to record %s: %v", id, err)
				continue
			}
			added++
		}
	}

	log.Printf("[CatalogService] Extracted %d new items from %d storefront snapshots", added, len(keys))
	return added, nil
}
