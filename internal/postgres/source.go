package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/turbolytics/resultset/pkg/persistence"
)

// Source queries postgres over a native pgx connection pool. It is safe
// for concurrent use.
type Source struct {
	Pool *pgxpool.Pool

	name   string
	logger *zap.Logger
}

func (s *Source) Name() string {
	return s.name
}

func (s *Source) Close(ctx context.Context) error {
	s.Pool.Close()
	return nil
}

func (s *Source) Query(ctx context.Context, statement string, args ...any) (*persistence.ResultCollection, error) {
	rows, err := s.Pool.Query(ctx, statement, args...)
	if err != nil {
		return nil, fmt.Errorf("querying %s: %w", s.name, err)
	}
	defer rows.Close()

	descriptions := rows.FieldDescriptions()
	columns := make([]string, len(descriptions))
	for i, fd := range descriptions {
		columns[i] = fd.Name
	}

	var records []*persistence.Record
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", s.name, err)
		}
		records = append(records, persistence.NewRecord(columns, values))
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading %s: %w", s.name, err)
	}

	s.logger.Debug("query executed",
		zap.String("source", s.name),
		zap.String("query", statement),
		zap.Int("records", len(records)),
	)

	return persistence.FromRecords(records), nil
}

type SourceOption func(*Source)

func WithName(name string) SourceOption {
	return func(s *Source) {
		s.name = name
	}
}

func WithLogger(logger *zap.Logger) SourceOption {
	return func(s *Source) {
		s.logger = logger
	}
}

func NewSource(pool *pgxpool.Pool, opts ...SourceOption) *Source {
	s := Source{
		Pool:   pool,
		name:   "postgres",
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(&s)
	}
	return &s
}

// Connect opens a pgx pool for connString and verifies it can reach the server.
func Connect(ctx context.Context, connString string, opts ...SourceOption) (*Source, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return NewSource(pool, opts...), nil
}
