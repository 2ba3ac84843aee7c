// Package catalog loads the Albion item reference (items.json) and the
// per-city popular item lists.
package catalog

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"regexp"
	"sort"
	"strings"

	"github.com/sahilm/fuzzy"

	"github.com/millelog/albion-market-tools/internal/logger"
)

var (
	enchantSuffixRe = regexp.MustCompile(`@\d+$`)
	tierNameRe      = regexp.MustCompile(`^(.*?)\s*\[([\d.]+)\]`)
)

// Item is one catalog entry.
type Item struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type rawItem struct {
	UniqueName     string            `json:"UniqueName"`
	LocalizedNames map[string]string `json:"LocalizedNames"`
}

// Catalog maps item ids to English names and back.
type Catalog struct {
	items  []Item            // sorted by id
	byID   map[string]string // id -> EN-US name
	byName map[string]string // EN-US name -> base id (no @N)
}

// searchItems implements fuzzy.Source over catalog names.
type searchItems []Item

func (s searchItems) String(i int) string { return s[i].Name }
func (s searchItems) Len() int            { return len(s) }

// Load parses items.json. Entries without a UniqueName or an EN-US name are
// skipped with a warning.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	var raws []json.RawMessage
	if err := json.Unmarshal(data, &raws); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}

	c := New(nil)
	skipped := 0
	for _, raw := range raws {
		var ri rawItem
		if err := json.Unmarshal(raw, &ri); err != nil {
			skipped++
			continue
		}
		name := ri.LocalizedNames["EN-US"]
		if ri.UniqueName == "" || name == "" {
			skipped++
			continue
		}
		c.add(Item{ID: ri.UniqueName, Name: name})
	}
	c.sortItems()
	if skipped > 0 {
		log.Printf("[CATALOG] skipped %d malformed entries in %s", skipped, path)
	}
	logger.Success("CATALOG", fmt.Sprintf("Loaded %d items", len(c.items)))
	return c, nil
}

// New builds a catalog from items. Later duplicates win.
func New(items []Item) *Catalog {
	c := &Catalog{byID: make(map[string]string), byName: make(map[string]string)}
	for _, it := range items {
		c.add(it)
	}
	c.sortItems()
	return c
}

func (c *Catalog) add(it Item) {
	if _, dup := c.byID[it.ID]; !dup {
		c.items = append(c.items, it)
	} else {
		for i := range c.items {
			if c.items[i].ID == it.ID {
				c.items[i].Name = it.Name
			}
		}
	}
	c.byID[it.ID] = it.Name
	c.byName[it.Name] = enchantSuffixRe.ReplaceAllString(it.ID, "")
}

func (c *Catalog) sortItems() {
	sort.Slice(c.items, func(i, j int) bool { return c.items[i].ID < c.items[j].ID })
}

// Len returns the number of items.
func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.items)
}

// Name returns the English name of itemID, falling back to the name of the
// unenchanted base item. Unknown ids give "".
func (c *Catalog) Name(itemID string) string {
	if c == nil {
		return ""
	}
	if n, ok := c.byID[itemID]; ok {
		return n
	}
	return c.byID[enchantSuffixRe.ReplaceAllString(itemID, "")]
}

// IDs returns every item id, sorted.
func (c *Catalog) IDs() []string {
	if c == nil {
		return nil
	}
	ids := make([]string, len(c.items))
	for i, it := range c.items {
		ids[i] = it.ID
	}
	return ids
}

// Search returns up to limit items whose name fuzzy-matches query, best first.
func (c *Catalog) Search(query string, limit int) []Item {
	query = strings.TrimSpace(query)
	if c == nil || query == "" {
		return []Item{}
	}
	matches := fuzzy.FindFrom(query, searchItems(c.items))
	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}
	out := make([]Item, len(matches))
	for i, m := range matches {
		out[i] = c.items[m.Index]
	}
	return out
}

// ResolveUniqueName turns a display label such as "Adept's Bag [4.1]" into
// the item id "T4_BAG@1". The enchantment is the part after the last dot;
// level 0 carries no suffix.
func (c *Catalog) ResolveUniqueName(label string) (string, bool) {
	if c == nil {
		return "", false
	}
	m := tierNameRe.FindStringSubmatch(label)
	if m == nil {
		return "", false
	}
	base, ok := c.byName[strings.TrimSpace(m[1])]
	if !ok {
		return "", false
	}
	tier := m[2]
	enchant := tier[strings.LastIndex(tier, ".")+1:]
	if !strings.Contains(tier, ".") || strings.Trim(enchant, "0") == "" {
		return base, true
	}
	return base + "@" + strings.TrimLeft(enchant, "0"), true
}
