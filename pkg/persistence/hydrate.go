package persistence

import (
	"reflect"
	"slices"
	"sync"

	"github.com/mitchellh/mapstructure"
)

// ConstructableFromRecord is implemented by types that can populate themselves from a record.
type ConstructableFromRecord interface {
	FromRecord(r *Record) error
}

// Type is a hydration target. The zero Type is not constructable.
type Type struct {
	name string
	fn   func(*Record) (any, error)
}

// TypeOf returns the hydration target for *T. Items are hydrated as *T.
func TypeOf[T any, P interface {
	*T
	ConstructableFromRecord
}]() Type {
	return Type{
		name: reflect.TypeFor[T]().String(),
		fn: func(r *Record) (any, error) {
			p := P(new(T))
			if err := p.FromRecord(r); err != nil {
				return nil, err
			}
			return p, nil
		},
	}
}

// StructType hydrates records into *T by matching `db` struct tags to field names.
func StructType[T any]() Type {
	return Type{
		name: reflect.TypeFor[T]().String(),
		fn: func(r *Record) (any, error) {
			out := new(T)
			dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
				TagName:          "db",
				WeaklyTypedInput: true,
				Result:           out,
			})
			if err != nil {
				return nil, err
			}
			if err := dec.Decode(r.Map()); err != nil {
				return nil, err
			}
			return out, nil
		},
	}
}

func TypeFunc(name string, fn func(*Record) (any, error)) Type {
	return Type{name: name, fn: fn}
}

func (t Type) Name() string {
	return t.name
}

func (t Type) Constructable() bool {
	return t.fn != nil
}

func (t Type) construct(item any) (any, error) {
	r, ok := item.(*Record)
	if !ok || r == nil {
		return nil, &CanOnlyHydrateError{Item: item}
	}
	return t.fn(r)
}

// Hydrate constructs every item of c as *T.
func Hydrate[T any, P interface {
	*T
	ConstructableFromRecord
}](c *ResultCollection) ([]*T, error) {
	hydrated, err := c.HydrateResultItemsAs(TypeOf[T, P]())
	if err != nil {
		return nil, err
	}

	out := make([]*T, 0, hydrated.Count())
	for item := range hydrated.Items() {
		out = append(out, item.(*T))
	}
	return out, nil
}

// HydrateSingle constructs the only item of c as *T.
func HydrateSingle[T any, P interface {
	*T
	ConstructableFromRecord
}](c *ResultCollection) (*T, error) {
	v, err := c.HydrateSingleResultAs(TypeOf[T, P]())
	if err != nil {
		return nil, err
	}
	return v.(*T), nil
}

// Types resolves hydration targets by name.
type Types struct {
	mu    sync.RWMutex
	types map[string]Type
}

func NewTypes() *Types {
	return &Types{
		types: make(map[string]Type),
	}
}

func (ts *Types) Register(name string, t Type) {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	ts.types[name] = t
}

func (ts *Types) Lookup(name string) (Type, error) {
	ts.mu.RLock()
	defer ts.mu.RUnlock()

	t, ok := ts.types[name]
	if !ok || !t.Constructable() {
		return Type{}, &NotConstructableError{Type: name}
	}
	return t, nil
}

func (ts *Types) Names() []string {
	ts.mu.RLock()
	defer ts.mu.RUnlock()

	names := make([]string, 0, len(ts.types))
	for name := range ts.types {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
