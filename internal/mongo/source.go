package mongo

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/turbolytics/resultset/pkg/persistence"
)

// Source reads documents from a MongoDB database.
// The statement of a query names the collection; an optional single
// argument is the filter.
type Source struct {
	client   *mongo.Client
	database string
	name     string
	logger   *zap.Logger
}

type SourceOption func(*Source)

func WithName(name string) SourceOption {
	return func(s *Source) {
		s.name = name
	}
}

func WithDatabase(database string) SourceOption {
	return func(s *Source) {
		s.database = database
	}
}

func WithLogger(logger *zap.Logger) SourceOption {
	return func(s *Source) {
		s.logger = logger
	}
}

// Connect dials uri. The database defaults to the path of the URI.
func Connect(ctx context.Context, uri string, opts ...SourceOption) (*Source, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return nil, fmt.Errorf("invalid mongodb uri: %w", err)
	}

	s := &Source{
		database: strings.TrimPrefix(u.Path, "/"),
		name:     "mongodb",
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.database == "" {
		return nil, fmt.Errorf("no database in %q", u.Redacted())
	}

	s.client, err = mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := s.client.Ping(pingCtx, nil); err != nil {
		s.client.Disconnect(ctx)
		return nil, err
	}

	s.logger.Info("MongoDB source connected",
		zap.String("source", s.name),
		zap.String("database", s.database))

	return s, nil
}

func (s *Source) Name() string {
	return s.name
}

func (s *Source) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func (s *Source) Query(ctx context.Context, collection string, args ...any) (*persistence.ResultCollection, error) {
	filter, err := filterFrom(args)
	if err != nil {
		return nil, err
	}

	cursor, err := s.client.Database(s.database).Collection(collection).Find(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("querying %s.%s: %w", s.database, collection, err)
	}
	defer cursor.Close(ctx)

	var records []*persistence.Record
	for cursor.Next(ctx) {
		var doc bson.D
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decoding document: %w", err)
		}
		records = append(records, documentToRecord(doc))
	}

	if err := cursor.Err(); err != nil {
		return nil, err
	}

	s.logger.Debug("query executed",
		zap.String("source", s.name),
		zap.String("collection", collection),
		zap.Int("records", len(records)),
	)

	return persistence.FromRecords(records), nil
}

func filterFrom(args []any) (any, error) {
	if len(args) == 0 {
		return bson.D{}, nil
	}
	if len(args) > 1 {
		return nil, fmt.Errorf("expected at most one filter, got %d arguments", len(args))
	}

	switch f := args[0].(type) {
	case nil:
		return bson.D{}, nil
	case bson.D, bson.M:
		return f, nil
	case string:
		if strings.TrimSpace(f) == "" {
			return bson.D{}, nil
		}
		var doc bson.D
		if err := bson.UnmarshalExtJSON([]byte(f), false, &doc); err != nil {
			return nil, fmt.Errorf("invalid filter %q: %w", f, err)
		}
		return doc, nil
	default:
		return nil, fmt.Errorf("unsupported filter type %T", f)
	}
}

// documentToRecord keeps top level field order. Nested documents become maps.
func documentToRecord(doc bson.D) *persistence.Record {
	fields := make([]string, len(doc))
	values := make([]any, len(doc))
	for i, e := range doc {
		fields[i] = e.Key
		values[i] = normalize(e.Value)
	}
	return persistence.NewRecord(fields, values)
}

func normalize(v any) any {
	switch t := v.(type) {
	case bson.D:
		m := make(map[string]any, len(t))
		for _, e := range t {
			m[e.Key] = normalize(e.Value)
		}
		return m
	case bson.A:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = normalize(e)
		}
		return out
	default:
		return v
	}
}
