package persistence

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyQueryResult is returned when exactly one result was expected and none was found.
	ErrEmptyQueryResult = errors.New("query returned no results, expected exactly one")

	// ErrNotUniqueQueryResult is returned when exactly one result was expected and several were found.
	ErrNotUniqueQueryResult = errors.New("query returned more than one result, expected exactly one")

	ErrNotConstructableFromRecord = errors.New("type is not constructable from a record")
	ErrCanOnlyHydrateFromRecord   = errors.New("can only hydrate from a record")
)

// NotConstructableError names a hydration target that lacks a record constructor.
type NotConstructableError struct {
	Type string
}

func (e *NotConstructableError) Error() string {
	return fmt.Sprintf("%q: %s", e.Type, ErrNotConstructableFromRecord)
}

func (e *NotConstructableError) Is(target error) bool {
	return target == ErrNotConstructableFromRecord
}

// CanOnlyHydrateError carries the item that was not a record.
// Item is nil when the collection had no item to inspect.
type CanOnlyHydrateError struct {
	Item any
}

func (e *CanOnlyHydrateError) Error() string {
	if e.Item == nil {
		return fmt.Sprintf("%s, got nothing", ErrCanOnlyHydrateFromRecord)
	}
	return fmt.Sprintf("%s, got %T", ErrCanOnlyHydrateFromRecord, e.Item)
}

func (e *CanOnlyHydrateError) Is(target error) bool {
	return target == ErrCanOnlyHydrateFromRecord
}
