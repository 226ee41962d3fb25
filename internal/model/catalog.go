package model

// CatalogItem is the display record for a purchasable item. Price is nil when
// no price source could supply one.
type CatalogItem struct {
	UUID   string `json:"uuid"`
	Name   string `json:"name"`
	Icon   string `json:"icon"`
	Weapon string `json:"weapon,omitempty"`
	Tier   string `json:"tier,omitempty"`
	Price  *int   `json:"price"`
	Source string `json:"source,omitempty"`
}

// SkinEntry is one item in the local catalog file.
type SkinEntry struct {
	Name     string `json:"name"`
	Weapon   string `json:"weapon,omitempty"`
	Tier     string `json:"tier,omitempty"`
	Price    *int   `json:"price,omitempty"`
	ImageURL string `json:"image_url"`
}

// Tier is a rarity tier.
type Tier struct {
	UUID  string `json:"uuid"`
	Name  string `json:"name"`
	Color string `json:"color,omitempty"`
	Icon  string `json:"icon,omitempty"`
}

// Weapon is a weapon family with its skins.
type Weapon struct {
	UUID     string `json:"uuid"`
	Name     string `json:"name"`
	Category string `json:"category,omitempty"`
	Icon     string `json:"icon,omitempty"`
}

// CatalogDocument is the on-disk layout of the local catalog file.
type CatalogDocument struct {
	FormatVersion string               `json:"format_version"`
	Description   string               `json:"description"`
	LastUpdated   string               `json:"last_updated"`
	SkinTiers     map[string]Tier      `json:"skin_tiers"`
	Weapons       map[string]Weapon    `json:"weapons"`
	Skins         map[string]SkinEntry `json:"skins"`
}

// CatalogStatus summarises the local catalog file.
type CatalogStatus struct {
	Exists      bool   `json:"exists"`
	Path        string `json:"path"`
	Size        int64  `json:"size"`
	LastUpdated string `json:"lastUpdated,omitempty"`
	SkinCount   int    `json:"skinCount"`
	WeaponCount int    `json:"weaponCount"`
	TierCount   int    `json:"tierCount"`
}

// UpdateReport summarises a catalog database update.
type UpdateReport struct {
	NewSkins     int `json:"newSkins"`
	UpdatedSkins int `json:"updatedSkins"`
	TotalSkins   int `json:"totalSkins"`
}

// CatalogSnapshot is the process-wide copy of the public catalog for one
// game version.
type CatalogSnapshot struct {
	FormatVersion int                     `json:"formatVersion"`
	GameVersion   string                  `json:"gameVersion"`
	Weapons       map[string]Weapon       `json:"weapons"`
	Skins         map[string]SnapshotSkin `json:"skins"`
	Tiers         map[string]Tier         `json:"rarities"`
	Timestamp     int64                   `json:"timestamp"`
}

// SnapshotSkin is a skin keyed by its first level id.
type SnapshotSkin struct {
	UUID     string `json:"uuid"`
	SkinUUID string `json:"skinUuid"`
	Weapon   string `json:"weapon"`
	Name     string `json:"name"`
	Icon     string `json:"icon"`
	Tier     string `json:"rarity,omitempty"`
}
