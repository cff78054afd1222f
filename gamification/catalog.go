package gamification

import (
	"sort"
	"sync"

	"gorm.io/gorm"

	"github.com/tidyapp/tidy/config"
	"github.com/tidyapp/tidy/models"
)

// ActionDef describes one action the awarder can reward: its point value and
// an optional per-account daily cap (0 = unlimited).
type ActionDef struct {
	Key      string
	Points   int
	DailyCap int
}

// Catalog is the in-memory action catalog consumed by the Awarder. It is
// loaded from the actions table and swapped atomically on reload, so admin
// edits take effect without restarting.
type Catalog struct {
	mu      sync.RWMutex
	actions map[string]ActionDef
}

// NewCatalog builds a catalog from explicit definitions. Used directly in tests;
// production code goes through LoadCatalog.
func NewCatalog(defs []ActionDef) *Catalog {
	c := &Catalog{actions: make(map[string]ActionDef, len(defs))}
	for _, d := range defs {
		c.actions[d.Key] = d
	}
	return c
}

// Lookup returns the definition for an action key.
func (c *Catalog) Lookup(key string) (ActionDef, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	d, ok := c.actions[key]
	return d, ok
}

// Keys returns all configured action keys in sorted order.
func (c *Catalog) Keys() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	keys := make([]string, 0, len(c.actions))
	for k := range c.actions {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Reload replaces the catalog contents from the actions table.
func (c *Catalog) Reload(db *gorm.DB) error {
	var rows []models.Action
	if err := db.Find(&rows).Error; err != nil {
		return err
	}
	next := make(map[string]ActionDef, len(rows))
	for _, r := range rows {
		next[r.Key] = ActionDef{Key: r.Key, Points: r.Points, DailyCap: r.DailyCap}
	}
	c.mu.Lock()
	c.actions = next
	c.mu.Unlock()
	return nil
}

// SeedActions inserts catalog rows that do not exist yet. Existing rows are
// left untouched so admin tuning survives restarts.
func SeedActions(db *gorm.DB, seeds []config.ActionConfig) error {
	for _, s := range seeds {
		var count int64
		if err := db.Model(&models.Action{}).Where("`key` = ?", s.Key).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			continue
		}
		row := models.Action{
			Key:         s.Key,
			Points:      s.Points,
			DailyCap:    s.DailyCap,
			Description: s.Description,
		}
		if err := db.Create(&row).Error; err != nil {
			return err
		}
	}
	return nil
}

// LoadCatalog seeds missing actions from configuration and loads the full
// table into a fresh catalog.
func LoadCatalog(db *gorm.DB, seeds []config.ActionConfig) (*Catalog, error) {
	if err := SeedActions(db, seeds); err != nil {
		return nil, err
	}
	c := NewCatalog(nil)
	if err := c.Reload(db); err != nil {
		return nil, err
	}
	return c, nil
}
