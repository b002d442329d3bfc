package sql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"

	"github.com/xwb1989/sqlparser"
	"go.uber.org/zap"

	"github.com/turbolytics/resultset/pkg/persistence"
)

var ErrNotReadOnly = errors.New("statement is not a read-only query")

type Source struct {
	DB       *sql.DB
	Driver   string
	ReadOnly bool

	name   string
	logger *zap.Logger
}

func (s *Source) Name() string {
	return s.name
}

// Count returns the number of rows the statement would return without fetching them.
func (s *Source) Count(ctx context.Context, statement string, args ...any) (int, error) {
	if err := s.guard(statement); err != nil {
		return 0, err
	}

	q, tx, err := s.begin(ctx)
	if err != nil {
		return 0, err
	}
	if tx != nil {
		defer tx.Rollback()
	}

	query := fmt.Sprintf(`SELECT COUNT(*) FROM (%s) AS q`, statement)
	var c int
	err = q.QueryRowContext(ctx, query, args...).Scan(&c)
	return c, err
}

func (s *Source) Close(ctx context.Context) error {
	return s.DB.Close()
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// begin returns what statements run against. Read-only sources whose dialect
// the parser does not understand run inside a READ ONLY transaction, which the
// server enforces; the caller ends it.
func (s *Source) begin(ctx context.Context) (queryer, *sql.Tx, error) {
	if !s.ReadOnly || s.parsesStatements() {
		return s.DB, nil, nil
	}

	tx, err := s.DB.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, nil, err
	}
	return tx, tx, nil
}

type Snapshot struct {
	rows    *sql.Rows
	tx      *sql.Tx
	columns []string
	query   string
}

func (s *Snapshot) Query() string {
	return s.query
}

func (s *Snapshot) Close() error {
	err := s.rows.Close()
	if s.tx != nil {
		// nothing was written, the transaction only scoped the reads
		s.tx.Rollback()
	}
	return err
}

func (s *Snapshot) Columns() []string {
	return s.columns
}

// Next returns the next row as a record, or io.EOF once the rows are exhausted.
func (s *Snapshot) Next() (*persistence.Record, error) {
	if !s.rows.Next() {
		if err := s.rows.Err(); err != nil {
			return nil, err
		}
		return nil, io.EOF
	}

	values := make([]any, len(s.columns))
	valuePtrs := make([]any, len(s.columns))
	for i := range values {
		valuePtrs[i] = &values[i]
	}

	if err := s.rows.Scan(valuePtrs...); err != nil {
		return nil, err
	}

	for i, v := range values {
		// text columns come back as raw bytes from some drivers
		if bs, ok := v.([]byte); ok {
			values[i] = string(bs)
		}
	}

	return persistence.NewRecord(s.columns, values), nil
}

func (s *Source) Snapshot(ctx context.Context, statement string, args ...any) (*Snapshot, error) {
	if err := s.guard(statement); err != nil {
		return nil, err
	}

	q, tx, err := s.begin(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := q.QueryContext(ctx, statement, args...)
	if err != nil {
		if tx != nil {
			tx.Rollback()
		}
		return nil, err
	}

	columns, err := rows.Columns()
	if err != nil {
		rows.Close()
		if tx != nil {
			tx.Rollback()
		}
		return nil, err
	}

	return &Snapshot{
		rows:    rows,
		tx:      tx,
		columns: columns,
		query:   statement,
	}, nil
}

// Query runs the statement and collects every row.
func (s *Source) Query(ctx context.Context, statement string, args ...any) (*persistence.ResultCollection, error) {
	snapshot, err := s.Snapshot(ctx, statement, args...)
	if err != nil {
		return nil, fmt.Errorf("querying %s: %w", s.name, err)
	}
	defer snapshot.Close()

	var records []*persistence.Record
	for {
		record, err := snapshot.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", s.name, err)
		}
		records = append(records, record)
	}

	s.logger.Debug("query executed",
		zap.String("source", s.name),
		zap.String("query", statement),
		zap.Int("records", len(records)),
	)

	return persistence.FromRecords(records), nil
}

// parsesStatements reports whether read-only is enforced by parsing. The
// parser speaks the MySQL dialect, which covers mysql and the plain SELECTs
// sqlite accepts, but not postgres placeholders, casts or CTEs.
func (s *Source) parsesStatements() bool {
	return s.Driver != "pgx"
}

func (s *Source) guard(statement string) error {
	if !s.ReadOnly || !s.parsesStatements() {
		return nil
	}

	stmt, err := sqlparser.Parse(statement)
	if err != nil {
		return fmt.Errorf("parsing statement: %w", err)
	}

	switch stmt.(type) {
	case *sqlparser.Select, *sqlparser.Union, *sqlparser.ParenSelect:
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrNotReadOnly, statement)
	}
}

type SourceOption func(*Source)

func WithName(name string) SourceOption {
	return func(s *Source) {
		s.name = name
	}
}

func WithDriver(driver string) SourceOption {
	return func(s *Source) {
		s.Driver = driver
	}
}

func WithReadOnly(readOnly bool) SourceOption {
	return func(s *Source) {
		s.ReadOnly = readOnly
	}
}

func WithLogger(logger *zap.Logger) SourceOption {
	return func(s *Source) {
		s.logger = logger
	}
}

func NewSource(db *sql.DB, opts ...SourceOption) *Source {
	s := Source{
		DB:     db,
		name:   "sql",
		logger: zap.NewNop(),
	}

	for _, opt := range opts {
		opt(&s)
	}

	return &s
}

// Open connects to the database behind dsn and verifies the connection.
func Open(ctx context.Context, driver, dsn string, opts ...SourceOption) (*Source, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, err
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}

	opts = append([]SourceOption{WithDriver(driver)}, opts...)
	return NewSource(db, opts...), nil
}
