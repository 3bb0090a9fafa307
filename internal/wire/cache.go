package wire

import (
	lru "github.com/hashicorp/golang-lru/v2"

	"mediashare/internal/catalog"
	"mediashare/internal/metrics"
)

const DefaultCacheSize = 4096

type cached struct {
	revision uint64
	item     Item
}

// Cache memoizes TranslateItem. Entries remember the catalog revision they
// were built from and are rebuilt when the item's revision differs, so a
// translation never outlives the item state it came from.
type Cache struct {
	entries *lru.Cache[int64, cached]
}

func NewCache(size int) (*Cache, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	entries, err := lru.New[int64, cached](size)
	if err != nil {
		return nil, err
	}
	return &Cache{entries: entries}, nil
}

func (c *Cache) Translate(item catalog.Item) Item {
	if hit, ok := c.entries.Get(item.ID); ok && hit.revision == item.Revision {
		metrics.TranslationCache.WithLabelValues("hit").Inc()
		return hit.item
	}

	metrics.TranslationCache.WithLabelValues("miss").Inc()
	translated := TranslateItem(item)
	c.entries.Add(item.ID, cached{revision: item.Revision, item: translated})
	return translated
}

// Forget drops cached translations for removed items.
func (c *Cache) Forget(ids ...int64) {
	for _, id := range ids {
		c.entries.Remove(id)
	}
}

func (c *Cache) Len() int {
	return c.entries.Len()
}
