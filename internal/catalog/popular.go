package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"

	"github.com/millelog/albion-market-tools/internal/engine"
)

// PopularItem is one entry of a popular_items/<City>.json file.
type PopularItem struct {
	Name         string  `json:"name"`
	UniqueName   string  `json:"unique_name,omitempty"`
	Volume       float64 `json:"volume"`
	AveragePrice float64 `json:"average_price"`
}

// PopularList is the popular item list of one location.
type PopularList struct {
	Location string
	Items    []PopularItem
}

// LoadPopular reads dir/<location>.json. A missing file yields an empty list.
// Entries without a unique_name are resolved from their display name through
// c; unresolved ones are dropped.
func LoadPopular(dir, location string, c *Catalog) (PopularList, error) {
	list := PopularList{Location: location, Items: []PopularItem{}}
	path := filepath.Join(dir, location+".json")
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		log.Printf("[CATALOG] Warning: no popular items file for %s", location)
		return list, nil
	}
	if err != nil {
		return list, fmt.Errorf("read popular items %s: %w", location, err)
	}

	var items []PopularItem
	if err := json.Unmarshal(data, &items); err != nil {
		return list, fmt.Errorf("parse popular items %s: %w", location, err)
	}
	for _, it := range items {
		if it.UniqueName == "" {
			id, ok := c.ResolveUniqueName(it.Name)
			if !ok {
				log.Printf("[CATALOG] Warning: could not find unique name for %q", it.Name)
				continue
			}
			it.UniqueName = id
		}
		list.Items = append(list.Items, it)
	}
	return list, nil
}

// SavePopular writes list to dir/<location>.json, creating dir if needed.
func SavePopular(dir string, list PopularList) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create popular dir: %w", err)
	}
	data, err := json.MarshalIndent(list.Items, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, list.Location+".json"), data, 0o644)
}

// Stats converts the list into quality-1 candidates for the flip engine.
func (l PopularList) Stats(c *Catalog) []engine.HistoricalStat {
	out := make([]engine.HistoricalStat, 0, len(l.Items))
	for _, it := range l.Items {
		name := c.Name(it.UniqueName)
		if name == "" {
			name = it.Name
		}
		out = append(out, engine.HistoricalStat{
			Location:     l.Location,
			ItemID:       it.UniqueName,
			ItemName:     name,
			Quality:      1,
			AvgItemCount: it.Volume,
			AvgPrice:     it.AveragePrice,
			MarketValue:  it.Volume * it.AveragePrice,
		})
	}
	return out
}

// PopularCandidates loads the popular list of every location and converts it
// to flip candidates. A location whose file fails to parse is logged and left
// empty.
func PopularCandidates(dir string, locations []string, c *Catalog) map[string][]engine.HistoricalStat {
	out := make(map[string][]engine.HistoricalStat, len(locations))
	for _, loc := range locations {
		list, err := LoadPopular(dir, loc, c)
		if err != nil {
			log.Printf("[CATALOG] %v", err)
		}
		out[loc] = list.Stats(c)
	}
	return out
}
