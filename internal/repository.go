package internal

import (
	"context"
	"io"

	"github.com/turbolytics/resultset/pkg/persistence"
)

// Repository stores exported artifacts under a key.
type Repository interface {
	Write(ctx context.Context, key string, reader io.Reader) error
	Flush(ctx context.Context) error
}

// Source runs a statement and returns its rows as a result collection.
type Source interface {
	Name() string
	Query(ctx context.Context, statement string, args ...any) (*persistence.ResultCollection, error)
	Close(ctx context.Context) error
}

// Counter is implemented by sources that can count a statement's rows without fetching them.
type Counter interface {
	Count(ctx context.Context, statement string, args ...any) (int, error)
}

// Count counts the rows of statement, fetching them only when source cannot count on its own.
func Count(ctx context.Context, source Source, statement string, args ...any) (int, error) {
	if counter, ok := source.(Counter); ok {
		return counter.Count(ctx, statement, args...)
	}

	c, err := source.Query(ctx, statement, args...)
	if err != nil {
		return 0, err
	}
	return c.Count(), nil
}
