package repository

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"valshop-api/internal/model"
)

const catalogFormatVersion = "1.0"

// SkinIconURL is the deterministic icon URL of a skin level.
func SkinIconURL(uuid string) string {
	return "https://media.valorant-api.com/weaponskinlevels/" + uuid + "/displayicon.png"
}

// CatalogFile is the shared local catalog document (skins_data.json).
// The document is kept in memory and reloaded when the file changes on disk.
type CatalogFile struct {
	path string

	mu      sync.RWMutex
	doc     *model.CatalogDocument
	modTime time.Time
}

// NewCatalogFile creates a catalog backed by path. The file may not exist yet.
func NewCatalogFile(path string) *CatalogFile {
	return &CatalogFile{path: path}
}

// Path returns the file location.
func (c *CatalogFile) Path() string {
	return c.path
}

func emptyCatalog() *model.CatalogDocument {
	return &model.CatalogDocument{
		FormatVersion: catalogFormatVersion,
		Description:   "Valorant skin catalog",
		SkinTiers:     map[string]model.Tier{},
		Weapons:       map[string]model.Weapon{},
		Skins:         map[string]model.SkinEntry{},
	}
}

// load refreshes the in-memory document if the file changed. Caller holds mu.
func (c *CatalogFile) load() error {
	info, err := os.Stat(c.path)
	if errors.Is(err, os.ErrNotExist) {
		if c.doc == nil {
			c.doc = emptyCatalog()
		}
		return nil
	}
	if err != nil {
		return err
	}
	if c.doc != nil && info.ModTime().Equal(c.modTime) {
		return nil
	}

	data, err := os.ReadFile(c.path)
	if err != nil {
		return err
	}
	doc := emptyCatalog()
	if err := json.Unmarshal(data, doc); err != nil {
		return fmt.Errorf("failed to parse %s: %w", filepath.Base(c.path), err)
	}
	if doc.Skins == nil {
		doc.Skins = map[string]model.SkinEntry{}
	}
	if doc.Weapons == nil {
		doc.Weapons = map[string]model.Weapon{}
	}
	if doc.SkinTiers == nil {
		doc.SkinTiers = map[string]model.Tier{}
	}

	missing := 0
	for id, s := range doc.Skins {
		if s.ImageURL == "" {
			s.ImageURL = SkinIconURL(id)
			doc.Skins[id] = s
			missing++
		}
	}
	if missing > 0 {
		log.Printf("[CatalogFile] Filled %d missing icons with placeholders", missing)
	}

	c.doc = doc
	c.modTime = info.ModTime()
	return nil
}

// save writes the in-memory document. Caller holds mu for writing.
func (c *CatalogFile) save() error {
	c.doc.LastUpdated = time.Now().UTC().Format(time.RFC3339)
	if c.doc.FormatVersion == "" {
		c.doc.FormatVersion = catalogFormatVersion
	}

	data, err := json.MarshalIndent(c.doc, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(c.path), 0o755); err != nil {
		return err
	}

	tmp := c.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	if err := os.Rename(tmp, c.path); err != nil {
		return err
	}
	if info, err := os.Stat(c.path); err == nil {
		c.modTime = info.ModTime()
	}
	return nil
}

// Get returns the entry for a skin level.
func (c *CatalogFile) Get(uuid string) (model.SkinEntry, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.load(); err != nil {
		return model.SkinEntry{}, false, err
	}
	s, ok := c.doc.Skins[uuid]
	return s, ok, nil
}

// Weapon returns a weapon by uuid.
func (c *CatalogFile) Weapon(uuid string) (model.Weapon, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.load(); err != nil {
		return model.Weapon{}, false
	}
	w, ok := c.doc.Weapons[uuid]
	return w, ok
}

// Put stores an entry and persists the file.
func (c *CatalogFile) Put(uuid string, entry model.SkinEntry) error {
	return c.Update(func(doc *model.CatalogDocument) error {
		doc.Skins[uuid] = entry
		return nil
	})
}

// Update applies fn to the document and persists it if fn succeeds.
func (c *CatalogFile) Update(fn func(doc *model.CatalogDocument) error) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.load(); err != nil {
		log.Printf("[CatalogFile] Starting from an empty catalog: %v", err)
		c.doc = emptyCatalog()
	}
	if err := fn(c.doc); err != nil {
		return err
	}
	return c.save()
}

// Snapshot returns a copy of the document.
func (c *CatalogFile) Snapshot() (*model.CatalogDocument, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.load(); err != nil {
		return nil, err
	}

	out := *c.doc
	out.Skins = make(map[string]model.SkinEntry, len(c.doc.Skins))
	for k, v := range c.doc.Skins {
		out.Skins[k] = v
	}
	out.Weapons = make(map[string]model.Weapon, len(c.doc.Weapons))
	for k, v := range c.doc.Weapons {
		out.Weapons[k] = v
	}
	out.SkinTiers = make(map[string]model.Tier, len(c.doc.SkinTiers))
	for k, v := range c.doc.SkinTiers {
		out.SkinTiers[k] = v
	}
	return &out, nil
}

// Prices returns the known prices recorded in the file.
func (c *CatalogFile) Prices() map[string]int {
	c.mu.Lock()
	defer c.mu.Unlock()

	prices := make(map[string]int)
	if err := c.load(); err != nil {
		return prices
	}
	for id, s := range c.doc.Skins {
		if s.Price != nil && *s.Price > 0 {
			prices[id] = *s.Price
		}
	}
	return prices
}

// Stat summarises the file for diagnostics.
func (c *CatalogFile) Stat() model.CatalogStatus {
	c.mu.Lock()
	defer c.mu.Unlock()

	st := model.CatalogStatus{Path: c.path}
	info, err := os.Stat(c.path)
	if err != nil {
		return st
	}
	st.Exists = true
	st.Size = info.Size()

	if err := c.load(); err != nil {
		return st
	}
	st.LastUpdated = c.doc.LastUpdated
	st.SkinCount = len(c.doc.Skins)
	st.WeaponCount = len(c.doc.Weapons)
	st.TierCount = len(c.doc.SkinTiers)
	return st
}
