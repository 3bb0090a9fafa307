// Package catalog holds the in-memory view of the shared media library.
//
// The catalog is written by the library feed and read concurrently by the
// share listener. All reads return copies.
package catalog

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

var (
	ErrDuplicateItem = errors.New("duplicate catalog item")
	ErrUnknownItem   = errors.New("unknown catalog item")
)

type Catalog struct {
	mu       sync.RWMutex
	items    map[int64]Item
	revision uint64
}

func New() *Catalog {
	return &Catalog{
		items: make(map[int64]Item),
	}
}

// ApplyAdded inserts one item per record. The whole batch is rejected with
// ErrDuplicateItem if any id is already present or repeats within the batch.
func (c *Catalog) ApplyAdded(records []Record) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	seen := make(map[int64]struct{}, len(records))
	for _, r := range records {
		if _, ok := c.items[r.ID]; ok {
			return fmt.Errorf("%w: %d", ErrDuplicateItem, r.ID)
		}
		if _, ok := seen[r.ID]; ok {
			return fmt.Errorf("%w: %d repeated in batch", ErrDuplicateItem, r.ID)
		}
		seen[r.ID] = struct{}{}
	}

	for _, r := range records {
		c.revision++
		c.items[r.ID] = newItem(r, c.revision)
	}
	return nil
}

// ApplyChanged replaces existing items in place. Nothing is modified if any
// id is unknown.
func (c *Catalog) ApplyChanged(records []Record) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, r := range records {
		if _, ok := c.items[r.ID]; !ok {
			return fmt.Errorf("%w: %d", ErrUnknownItem, r.ID)
		}
	}

	for _, r := range records {
		c.revision++
		c.items[r.ID] = newItem(r, c.revision)
	}
	return nil
}

// ApplyRemoved deletes the given ids. Unknown ids are ignored.
func (c *Catalog) ApplyRemoved(ids []int64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, id := range ids {
		if _, ok := c.items[id]; !ok {
			continue
		}
		delete(c.items, id)
		c.revision++
	}
}

func (c *Catalog) Get(id int64) (Item, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	item, ok := c.items[id]
	if !ok {
		return Item{}, fmt.Errorf("%w: %d", ErrUnknownItem, id)
	}
	return item, nil
}

// Items returns a snapshot of all items ordered by id.
func (c *Catalog) Items() []Item {
	c.mu.RLock()
	items := make([]Item, 0, len(c.items))
	for _, item := range c.items {
		items = append(items, item)
	}
	c.mu.RUnlock()

	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	return items
}

func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// Revision increases on every successful mutation.
func (c *Catalog) Revision() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.revision
}
