package export

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/turbolytics/resultset/internal"
	"github.com/turbolytics/resultset/internal/catalog"
	"github.com/turbolytics/resultset/pkg/persistence"
)

const CatalogKey = "catalog.json"

// Encoder turns a result collection into the bytes of one artifact.
type Encoder interface {
	Extension() string
	Encode(c *persistence.ResultCollection) ([]byte, error)
}

// JSONLines encodes every item as one JSON document per line.
type JSONLines struct{}

func (JSONLines) Extension() string {
	return "jsonl"
}

func (JSONLines) Encode(c *persistence.ResultCollection) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for i, item := range c.All() {
		if err := enc.Encode(item); err != nil {
			return nil, fmt.Errorf("encoding item %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}

type Option func(*Exporter)

func WithLogger(logger *zap.Logger) Option {
	return func(e *Exporter) {
		e.logger = logger
	}
}

func WithRepository(repository internal.Repository) Option {
	return func(e *Exporter) {
		e.repository = repository
	}
}

func WithEncoder(encoder Encoder) Option {
	return func(e *Exporter) {
		e.encoder = encoder
	}
}

// Exporter writes query results and their catalog to a repository.
type Exporter struct {
	logger     *zap.Logger
	repository internal.Repository
	encoder    Encoder
}

func New(opts ...Option) *Exporter {
	e := &Exporter{
		logger:  zap.NewNop(),
		encoder: JSONLines{},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Export runs the named query against source and preserves the result.
// A catalog is written even when the export fails. It only reports success
// once the artifact was flushed to the repository.
func (e *Exporter) Export(ctx context.Context, id string, source internal.Source, name string, statement string, args ...any) (*catalog.Catalog, error) {
	cat := &catalog.Catalog{
		ID:        id,
		StartTime: time.Now().UTC(),
		Source:    source.Name(),
		Query:     name,
		Format:    e.encoder.Extension(),
		Key:       fmt.Sprintf("%s.%s", name, e.encoder.Extension()),
	}

	err := e.export(ctx, cat, source, statement, args...)
	cat.EndTime = time.Now().UTC()
	cat.Success = err == nil
	if err != nil {
		cat.Error = err.Error()
	}

	if werr := e.writeCatalog(ctx, cat); werr != nil {
		if err == nil {
			err = werr
		}
		e.logger.Error("writing catalog", zap.Error(werr))
	}

	e.logger.Info("export finished",
		zap.String("id", id),
		zap.String("query", name),
		zap.Int("records", cat.NumRecordsProcessed),
		zap.Bool("success", cat.Success),
		zap.Duration("duration", cat.EndTime.Sub(cat.StartTime)),
	)

	return cat, err
}

func (e *Exporter) export(ctx context.Context, cat *catalog.Catalog, source internal.Source, statement string, args ...any) error {
	c, err := source.Query(ctx, statement, args...)
	if err != nil {
		return err
	}
	cat.NumSourceRecords = c.Count()

	bs, err := e.encoder.Encode(c)
	if err != nil {
		return err
	}

	if err := e.repository.Write(ctx, cat.Key, bytes.NewReader(bs)); err != nil {
		return err
	}
	if err := e.repository.Flush(ctx); err != nil {
		return fmt.Errorf("flushing %s: %w", cat.Key, err)
	}
	cat.NumRecordsProcessed = c.Count()
	return nil
}

func (e *Exporter) writeCatalog(ctx context.Context, cat *catalog.Catalog) error {
	bs, err := json.MarshalIndent(cat, "", "  ")
	if err != nil {
		return err
	}
	if err := e.repository.Write(ctx, CatalogKey, bytes.NewReader(bs)); err != nil {
		return err
	}
	return e.repository.Flush(ctx)
}
