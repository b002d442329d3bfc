package persistence

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type user struct {
	ID   int64
	Name string
}

func (u *user) FromRecord(r *Record) error {
	id, ok := r.Get("id")
	if !ok {
		return fmt.Errorf("missing id")
	}
	u.ID = id.(int64)
	if name, ok := r.Get("name"); ok {
		u.Name, _ = name.(string)
	}
	return nil
}

func userRecord(id int64, name string) *Record {
	return NewRecord([]string{"id", "name"}, []any{id, name})
}

func TestResultCollection_Count(t *testing.T) {
	testCases := []struct {
		name  string
		items []any
	}{
		{"empty", nil},
		{"one", []any{userRecord(1, "a")}},
		{"three", []any{userRecord(1, "a"), userRecord(2, "b"), userRecord(3, "c")}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			c := NewResultCollection(tc.items...)
			assert.Equal(t, len(tc.items), c.Count())
		})
	}
}

func TestResultCollection_All(t *testing.T) {
	r1, r2, r3 := userRecord(1, "a"), userRecord(2, "b"), userRecord(3, "c")
	c := NewResultCollection(r1, r2, r3)

	collect := func() []any {
		var out []any
		for i, item := range c.All() {
			assert.Equal(t, len(out), i)
			out = append(out, item)
		}
		return out
	}

	t.Run("order preserved", func(t *testing.T) {
		assert.Equal(t, []any{r1, r2, r3}, collect())
	})

	t.Run("restartable", func(t *testing.T) {
		assert.Equal(t, collect(), collect())
	})

	t.Run("early break", func(t *testing.T) {
		var seen []any
		for item := range c.Items() {
			seen = append(seen, item)
			if len(seen) == 2 {
				break
			}
		}
		assert.Equal(t, []any{r1, r2}, seen)
	})
}

func TestResultCollection_ToSlice(t *testing.T) {
	items := []any{userRecord(1, "a"), userRecord(2, "b")}
	c := NewResultCollection(items...)
	assert.Equal(t, items, c.ToSlice())

	assert.Empty(t, NewResultCollection().ToSlice())
}

func TestResultCollection_SingleResult(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		_, err := NewResultCollection().SingleResult()
		assert.ErrorIs(t, err, ErrEmptyQueryResult)
	})

	t.Run("not unique", func(t *testing.T) {
		_, err := NewResultCollection(userRecord(1, "a"), userRecord(2, "b")).SingleResult()
		assert.ErrorIs(t, err, ErrNotUniqueQueryResult)
		assert.NotErrorIs(t, err, ErrEmptyQueryResult)
	})

	t.Run("single", func(t *testing.T) {
		r := userRecord(1, "a")
		item, err := NewResultCollection(r).SingleResult()
		require.NoError(t, err)
		assert.Same(t, r, item)
	})
}

func TestResultCollection_HydrateResultItemsAs(t *testing.T) {
	t.Run("hydrates in order", func(t *testing.T) {
		c := NewResultCollection(userRecord(1, "a"), userRecord(2, "b"))

		hydrated, err := c.HydrateResultItemsAs(TypeOf[user]())
		require.NoError(t, err)
		assert.Equal(t, []any{&user{ID: 1, Name: "a"}, &user{ID: 2, Name: "b"}}, hydrated.ToSlice())

		// the source collection is left untouched
		assert.IsType(t, &Record{}, c.ToSlice()[0])
	})

	t.Run("not constructable", func(t *testing.T) {
		for _, c := range []*ResultCollection{
			NewResultCollection(),
			NewResultCollection(userRecord(1, "a")),
			NewResultCollection(&user{ID: 1}),
		} {
			_, err := c.HydrateResultItemsAs(Type{})
			assert.ErrorIs(t, err, ErrNotConstructableFromRecord)

			var nce *NotConstructableError
			assert.True(t, errors.As(err, &nce))
		}
	})

	t.Run("already hydrated", func(t *testing.T) {
		c := NewResultCollection(&user{ID: 1})
		_, err := c.HydrateResultItemsAs(TypeOf[user]())
		require.ErrorIs(t, err, ErrCanOnlyHydrateFromRecord)

		var cohe *CanOnlyHydrateError
		require.True(t, errors.As(err, &cohe))
		assert.Equal(t, &user{ID: 1}, cohe.Item)
	})

	t.Run("empty collection fails", func(t *testing.T) {
		_, err := NewResultCollection().HydrateResultItemsAs(TypeOf[user]())
		assert.ErrorIs(t, err, ErrCanOnlyHydrateFromRecord)
	})

	t.Run("only the first item is checked up front", func(t *testing.T) {
		calls := 0
		counting := TypeFunc("counting", func(r *Record) (any, error) {
			calls++
			return r.Len(), nil
		})

		c := NewResultCollection(userRecord(1, "a"), userRecord(2, "b"), "not a record")
		_, err := c.HydrateResultItemsAs(counting)
		require.ErrorIs(t, err, ErrCanOnlyHydrateFromRecord)
		assert.Contains(t, err.Error(), "item 2")
		assert.Equal(t, 2, calls)
	})

	t.Run("construction error", func(t *testing.T) {
		c := NewResultCollection(userRecord(1, "a"), NewRecord([]string{"name"}, []any{"b"}))
		_, err := c.HydrateResultItemsAs(TypeOf[user]())
		assert.EqualError(t, err, "hydrating item 1 as persistence.user: missing id")
	})
}

func TestResultCollection_HydrateSingleResultAs(t *testing.T) {
	t.Run("single", func(t *testing.T) {
		v, err := NewResultCollection(userRecord(1, "a")).HydrateSingleResultAs(TypeOf[user]())
		require.NoError(t, err)
		assert.Equal(t, &user{ID: 1, Name: "a"}, v)
	})

	t.Run("empty", func(t *testing.T) {
		_, err := NewResultCollection().HydrateSingleResultAs(TypeOf[user]())
		assert.ErrorIs(t, err, ErrEmptyQueryResult)
	})

	t.Run("not unique", func(t *testing.T) {
		_, err := NewResultCollection(userRecord(1, "a"), userRecord(2, "b")).HydrateSingleResultAs(TypeOf[user]())
		assert.ErrorIs(t, err, ErrNotUniqueQueryResult)
	})

	t.Run("not constructable", func(t *testing.T) {
		_, err := NewResultCollection(userRecord(1, "a")).HydrateSingleResultAs(Type{})
		assert.ErrorIs(t, err, ErrNotConstructableFromRecord)
	})

	t.Run("not a record", func(t *testing.T) {
		_, err := NewResultCollection(map[string]any{"id": int64(1)}).HydrateSingleResultAs(TypeOf[user]())
		assert.ErrorIs(t, err, ErrCanOnlyHydrateFromRecord)
	})
}

func TestResultCollection_ConcurrentReads(t *testing.T) {
	c := NewResultCollection(userRecord(1, "a"), userRecord(2, "b"))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			users, err := Hydrate[user](c)
			assert.NoError(t, err)
			assert.Len(t, users, 2)
		}()
	}
	wg.Wait()
}
