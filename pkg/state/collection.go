package state

import (
	"errors"
	"fmt"
	"sync"

	"tableflip.dev/todosync/pkg/todo"
)

// ErrDuplicateID is returned when an append would put a second item with an
// existing id into the collection.
var ErrDuplicateID = errors.New("state: duplicate item id")

// Collection is the authoritative ordered list of items. Order is the order of
// the initial load followed by append order.
type Collection struct {
	mu    sync.RWMutex
	items []todo.Item
	emit  func(ChangeKind)
}

// ReplaceAll replaces the whole collection. Later duplicates of an id are
// dropped so the no-duplicate invariant survives a bad server response.
func (c *Collection) ReplaceAll(items []todo.Item) {
	next := make([]todo.Item, 0, len(items))
	seen := make(map[int]struct{}, len(items))
	for _, it := range items {
		if _, dup := seen[it.ID]; dup {
			continue
		}
		seen[it.ID] = struct{}{}
		next = append(next, it)
	}

	c.mu.Lock()
	c.items = next
	c.mu.Unlock()
	c.changed()
}

// UpdateOne replaces the item whose id matches. It reports whether an item
// was replaced; an absent id is a no-op.
func (c *Collection) UpdateOne(id int, it todo.Item) bool {
	c.mu.Lock()
	found := false
	for i := range c.items {
		if c.items[i].ID == id {
			c.items[i] = it
			found = true
			break
		}
	}
	c.mu.Unlock()
	if found {
		c.changed()
	}
	return found
}

// MapInPlace rewrites every item with fn, keeping order.
func (c *Collection) MapInPlace(fn func(todo.Item) todo.Item) {
	c.mu.Lock()
	for i := range c.items {
		c.items[i] = fn(c.items[i])
	}
	c.mu.Unlock()
	c.changed()
}

// RemoveMany filters out every item whose id is in ids and returns how many
// were removed. Relative order of the rest is unchanged.
func (c *Collection) RemoveMany(ids ...int) int {
	set := idSet(ids)
	c.mu.Lock()
	before := len(c.items)
	c.items = Without(c.items, set)
	removed := before - len(c.items)
	c.mu.Unlock()
	if removed > 0 {
		c.changed()
	}
	return removed
}

// Append adds it to the end of the collection.
func (c *Collection) Append(it todo.Item) error {
	c.mu.Lock()
	for _, existing := range c.items {
		if existing.ID == it.ID {
			c.mu.Unlock()
			return fmt.Errorf("%w: %d", ErrDuplicateID, it.ID)
		}
	}
	c.items = append(c.items, it)
	c.mu.Unlock()
	c.changed()
	return nil
}

// Items returns a copy of the collection.
func (c *Collection) Items() []todo.Item {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]todo.Item, len(c.items))
	copy(out, c.items)
	return out
}

// Get looks an item up by id.
func (c *Collection) Get(id int) (todo.Item, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, it := range c.items {
		if it.ID == id {
			return it, true
		}
	}
	return todo.Item{}, false
}

func (c *Collection) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

func (c *Collection) changed() {
	if c.emit != nil {
		c.emit(ChangeItems)
	}
}

// Without returns the items whose id is not in ids, preserving order. The
// input slice is not modified.
func Without(items []todo.Item, ids map[int]struct{}) []todo.Item {
	out := make([]todo.Item, 0, len(items))
	for _, it := range items {
		if _, drop := ids[it.ID]; drop {
			continue
		}
		out = append(out, it)
	}
	return out
}

// Reconcile computes the collection after a batch delete: every item of
// snapshot survives unless its id is in succeeded.
func Reconcile(snapshot []todo.Item, succeeded map[int]struct{}) []todo.Item {
	return Without(snapshot, succeeded)
}

func idSet(ids []int) map[int]struct{} {
	set := make(map[int]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}
