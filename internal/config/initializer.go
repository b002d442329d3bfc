package config

import (
	"context"
	"fmt"
	"net/url"
	"path"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/turbolytics/resultset/internal"
	"github.com/turbolytics/resultset/internal/export"
	"github.com/turbolytics/resultset/internal/kafka"
	"github.com/turbolytics/resultset/internal/local"
	"github.com/turbolytics/resultset/internal/mongo"
	"github.com/turbolytics/resultset/internal/parquet"
	"github.com/turbolytics/resultset/internal/postgres"
	"github.com/turbolytics/resultset/internal/s3"
	lsql "github.com/turbolytics/resultset/internal/sql"
)

// NewLogger builds a development logger at the configured level.
func NewLogger(g Global) (*zap.Logger, error) {
	cfg := zap.NewDevelopmentConfig()
	if g.Logger.Level != "" {
		level, err := zapcore.ParseLevel(g.Logger.Level)
		if err != nil {
			return nil, err
		}
		cfg.Level = zap.NewAtomicLevelAt(level)
	}
	return cfg.Build()
}

func InitializeSource(ctx context.Context, s Source, l *zap.Logger) (internal.Source, error) {
	switch s.Type {
	case "sql", "":
		driver := s.Driver
		if driver == "" {
			driver = "pgx"
		}
		source, err := lsql.Open(ctx, driver, s.ConnectionString,
			lsql.WithName(s.Name),
			lsql.WithReadOnly(s.ReadOnly),
			lsql.WithLogger(l),
		)
		if err != nil {
			return nil, err
		}
		return source, nil
	case "postgres":
		source, err := postgres.Connect(ctx, s.ConnectionString,
			postgres.WithName(s.Name),
			postgres.WithLogger(l),
		)
		if err != nil {
			return nil, err
		}
		return source, nil
	case "mongodb":
		opts := []mongo.SourceOption{
			mongo.WithName(s.Name),
			mongo.WithLogger(l),
		}
		if s.Database != "" {
			opts = append(opts, mongo.WithDatabase(s.Database))
		}
		source, err := mongo.Connect(ctx, s.ConnectionString, opts...)
		if err != nil {
			return nil, err
		}
		return source, nil
	default:
		return nil, fmt.Errorf("unknown source type: %q", s.Type)
	}
}

// InitializeRepository builds the configured repository. Artifacts are
// written under prefix, typically the export run id.
func InitializeRepository(ctx context.Context, r Repository, prefix string, l *zap.Logger) (internal.Repository, error) {
	switch r.Type {
	case "local":
		return local.New(
			r.LocalConfig.Path,
			local.WithPrefix(prefix),
			local.WithLogger(l),
		), nil
	case "s3":
		repository, err := s3.New(
			s3.WithLogger(l),
			s3.WithRegion(r.S3Config.Region),
			s3.WithBucket(r.S3Config.Bucket),
			s3.WithEndpoint(r.S3Config.Endpoint),
			s3.WithPrefix(path.Join(r.S3Config.Prefix, prefix)),
			s3.WithForcePathStyle(r.S3Config.ForcePathStyle),
		)
		if err != nil {
			return nil, err
		}
		return repository, nil
	case "kafka":
		u, err := url.Parse(r.KafkaConfig.URL)
		if err != nil {
			return nil, fmt.Errorf("invalid kafka url: %w", err)
		}
		brokers, topic, extra, err := kafka.ParseURL(u)
		if err != nil {
			return nil, err
		}
		repository, err := kafka.New(brokers, topic, extra, kafka.WithLogger(l))
		if err != nil {
			return nil, err
		}
		return repository, nil
	default:
		return nil, fmt.Errorf("unknown repository type: %q", r.Type)
	}
}

func InitializeEncoder(e Export, l *zap.Logger) (export.Encoder, error) {
	switch e.Format {
	case "jsonl", "":
		return export.JSONLines{}, nil
	case "parquet":
		encoder, err := parquet.New(
			parquet.WithLogger(l),
			parquet.WithSchema(ParquetFields(e.Parquet.Schema)),
		)
		if err != nil {
			return nil, err
		}
		return encoder, nil
	default:
		return nil, fmt.Errorf("unknown export format: %q", e.Format)
	}
}
