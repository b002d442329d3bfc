// Package persistence holds the persistence port shared by every adapter:
// the Record a query produces and the ResultCollection that wraps a batch of them.
//
// Adapters build a ResultCollection from raw query output. Application code
// reads it, extracts single results and hydrates records into its own types.
// A ResultCollection is never mutated after construction, so it is safe for
// concurrent readers.
package persistence

import (
	"fmt"
	"iter"
)

type ResultCollection struct {
	items []any
}

// NewResultCollection wraps items without copying them.
func NewResultCollection(items ...any) *ResultCollection {
	return &ResultCollection{items: items}
}

func FromRecords(records []*Record) *ResultCollection {
	items := make([]any, len(records))
	for i, r := range records {
		items[i] = r
	}
	return NewResultCollection(items...)
}

func (c *ResultCollection) Count() int {
	return len(c.items)
}

// All returns a new cursor over the items, starting at the first one.
func (c *ResultCollection) All() iter.Seq2[int, any] {
	return func(yield func(int, any) bool) {
		for i, item := range c.items {
			if !yield(i, item) {
				return
			}
		}
	}
}

func (c *ResultCollection) Items() iter.Seq[any] {
	return func(yield func(any) bool) {
		for _, item := range c.items {
			if !yield(item) {
				return
			}
		}
	}
}

// ToSlice exposes the underlying items.
func (c *ResultCollection) ToSlice() []any {
	return c.items
}

// SingleResult returns the only item of the collection.
func (c *ResultCollection) SingleResult() (any, error) {
	count := c.Count()

	if count > 1 {
		return nil, fmt.Errorf("%w: got %d", ErrNotUniqueQueryResult, count)
	}

	if count == 0 {
		return nil, ErrEmptyQueryResult
	}

	return c.items[0], nil
}

// HydrateResultItemsAs returns a new collection holding every item constructed as t.
//
// Items are assumed to share one shape, so only the first item is checked to be
// a record before hydrating. A later item that is not a record fails when its
// turn comes. An empty collection has nothing to check and fails with
// ErrCanOnlyHydrateFromRecord.
func (c *ResultCollection) HydrateResultItemsAs(t Type) (*ResultCollection, error) {
	if !t.Constructable() {
		return nil, &NotConstructableError{Type: t.Name()}
	}

	first := c.first()
	if !isRecord(first) {
		return nil, &CanOnlyHydrateError{Item: first}
	}

	hydrated := make([]any, len(c.items))
	for i, item := range c.items {
		v, err := t.construct(item)
		if err != nil {
			return nil, fmt.Errorf("hydrating item %d as %s: %w", i, t.Name(), err)
		}
		hydrated[i] = v
	}

	return NewResultCollection(hydrated...), nil
}

// HydrateSingleResultAs constructs the only item of the collection as t.
func (c *ResultCollection) HydrateSingleResultAs(t Type) (any, error) {
	if !t.Constructable() {
		return nil, &NotConstructableError{Type: t.Name()}
	}

	item, err := c.SingleResult()
	if err != nil {
		return nil, err
	}

	if !isRecord(item) {
		return nil, &CanOnlyHydrateError{Item: item}
	}

	return t.construct(item)
}

func (c *ResultCollection) first() any {
	if len(c.items) == 0 {
		return nil
	}
	return c.items[0]
}

func isRecord(item any) bool {
	r, ok := item.(*Record)
	return ok && r != nil
}
