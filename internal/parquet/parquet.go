package parquet

import (
	"bytes"
	"fmt"

	"github.com/xitongsys/parquet-go-source/writerfile"
	"github.com/xitongsys/parquet-go/writer"
	"go.uber.org/zap"

	"github.com/turbolytics/resultset/pkg/persistence"
)

// Encoder writes result collections of records as parquet files.
type Encoder struct {
	Schema      Schema
	Parallelism int64

	logger *zap.Logger
}

type Option func(*Encoder)

func WithSchema(schema Schema) Option {
	return func(e *Encoder) {
		e.Schema = schema
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(e *Encoder) {
		e.logger = logger
	}
}

func New(opts ...Option) (*Encoder, error) {
	e := &Encoder{
		Parallelism: 1,
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}

	if len(e.Schema) == 0 {
		return nil, fmt.Errorf("parquet schema is required")
	}
	return e, nil
}

func (e *Encoder) Extension() string {
	return "parquet"
}

// Encode returns the parquet file holding every record of c.
func (e *Encoder) Encode(c *persistence.ResultCollection) ([]byte, error) {
	var buf bytes.Buffer

	pw, err := writer.NewCSVWriter(
		e.Schema.ToGoParquetSchema(),
		writerfile.NewWriterFile(&buf),
		e.Parallelism,
	)
	if err != nil {
		return nil, fmt.Errorf("creating parquet writer: %w", err)
	}

	for i, item := range c.All() {
		record, ok := item.(*persistence.Record)
		if !ok {
			return nil, fmt.Errorf("item %d: %w", i, &persistence.CanOnlyHydrateError{Item: item})
		}

		row, err := e.Schema.RecordToParquetRow(record)
		if err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}

		if err := pw.Write(row); err != nil {
			return nil, fmt.Errorf("writing item %d: %w", i, err)
		}
	}

	if err := pw.WriteStop(); err != nil {
		return nil, err
	}

	e.logger.Debug("parquet encoded",
		zap.Int("records", c.Count()),
		zap.Int("bytes", buf.Len()),
	)

	return buf.Bytes(), nil
}
