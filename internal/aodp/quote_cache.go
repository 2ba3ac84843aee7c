package aodp

import (
	"log"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru"
	"golang.org/x/sync/singleflight"
)

const quoteCacheSize = 20000

type quoteKey struct {
	Location string
	ItemID   string
}

type quoteEntry struct {
	quotes  []Quote // every quality of the item
	expires time.Time
}

// QuoteCache is a bounded, thread-safe cache of current quotes per
// (location, item). Entries expire after ttl. A singleflight.Group coalesces
// identical in-flight fetches.
type QuoteCache struct {
	cache *lru.Cache
	ttl   time.Duration
	group singleflight.Group
	now   func() time.Time
}

// NewQuoteCache creates a cache holding at most size items.
func NewQuoteCache(size int, ttl time.Duration) *QuoteCache {
	cache, _ := lru.New(size)
	return &QuoteCache{cache: cache, ttl: ttl, now: time.Now}
}

// Get returns the cached quotes of an item if present and not expired.
func (qc *QuoteCache) Get(location, itemID string) ([]Quote, bool) {
	v, ok := qc.cache.Get(quoteKey{location, itemID})
	if !ok {
		return nil, false
	}
	e := v.(*quoteEntry)
	if qc.now().After(e.expires) {
		qc.cache.Remove(quoteKey{location, itemID})
		return nil, false
	}
	return e.quotes, true
}

// Put stores the quotes of one item.
func (qc *QuoteCache) Put(location, itemID string, quotes []Quote) {
	qc.cache.Add(quoteKey{location, itemID}, &quoteEntry{
		quotes:  quotes,
		expires: qc.now().Add(qc.ttl),
	})
}

// Purge empties the cache.
func (qc *QuoteCache) Purge() { qc.cache.Purge() }

// Len returns the number of cached items, expired ones included.
func (qc *QuoteCache) Len() int { return qc.cache.Len() }

// Fetch serves itemIDs from the cache and calls fetch for the rest. Only items
// that came back with at least one quote are cached, so an item missed by a
// failed batch is asked for again next time.
func (qc *QuoteCache) Fetch(location string, itemIDs []string, fetch func(missing []string) []Quote) []Quote {
	var out []Quote
	var missing []string
	for _, id := range itemIDs {
		if quotes, ok := qc.Get(location, id); ok {
			out = append(out, quotes...)
			continue
		}
		missing = append(missing, id)
	}
	log.Printf("[AODP] QuoteCache %s: %d hit, %d miss", location, len(itemIDs)-len(missing), len(missing))
	if len(missing) == 0 {
		return out
	}

	sfKey := location + "|" + strings.Join(missing, ",")
	v, _, _ := qc.group.Do(sfKey, func() (interface{}, error) {
		fetched := fetch(missing)
		byItem := make(map[string][]Quote)
		for _, q := range fetched {
			byItem[q.ItemID] = append(byItem[q.ItemID], q)
		}
		for id, quotes := range byItem {
			qc.Put(location, id, quotes)
		}
		return fetched, nil
	})
	return append(out, v.([]Quote)...)
}
