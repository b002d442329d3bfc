package config

import (
	"fmt"
	"os"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/turbolytics/resultset/internal/parquet"
	lsql "github.com/turbolytics/resultset/internal/sql"
)

type Logger struct {
	Level string `yaml:"level"`
}

type Global struct {
	Logger Logger `yaml:"logger"`
}

type Source struct {
	Name             string `yaml:"name"`
	Type             string `yaml:"type"`
	Driver           string `yaml:"driver"`
	ConnectionString string `yaml:"connection_string"`
	ReadOnly         bool   `yaml:"read_only"`
	Database         string `yaml:"database"`
}

type Query struct {
	Name       string `yaml:"name"`
	Source     string `yaml:"source"`
	Statement  string `yaml:"statement"`
	Collection string `yaml:"collection"`
	Filter     string `yaml:"filter"`
}

// Target is what gets passed to the source: the statement for SQL sources,
// the collection for document sources.
func (q Query) Target() string {
	if q.Collection != "" {
		return q.Collection
	}
	return q.Statement
}

// Args are the query arguments for the source.
func (q Query) Args() []any {
	if q.Filter != "" {
		return []any{q.Filter}
	}
	return nil
}

type LocalConfig struct {
	Path string `yaml:"path"`
}

type S3Config struct {
	Bucket         string `yaml:"bucket"`
	Region         string `yaml:"region"`
	Prefix         string `yaml:"prefix"`
	Endpoint       string `yaml:"endpoint"`
	ForcePathStyle bool   `yaml:"force_path_style"`
}

type KafkaConfig struct {
	URL string `yaml:"url"`
}

type Repository struct {
	Type        string      `yaml:"type"`
	LocalConfig LocalConfig `yaml:"local"`
	S3Config    S3Config    `yaml:"s3"`
	KafkaConfig KafkaConfig `yaml:"kafka"`
}

type ParquetField struct {
	Name           string `yaml:"name"`
	Type           string `yaml:"type"`
	ConvertedType  string `yaml:"converted_type,omitempty"`
	RepetitionType string `yaml:"repetition_type,omitempty"`
	Precision      int    `yaml:"precision,omitempty"`
	Scale          int    `yaml:"scale,omitempty"`
}

type Parquet struct {
	Schema []ParquetField `yaml:"schema"`
}

type Export struct {
	Format  string  `yaml:"format"`
	Parquet Parquet `yaml:"parquet"`
}

type Server struct {
	Addr string `yaml:"addr"`
}

type Config struct {
	Global     Global     `yaml:"global"`
	Sources    []Source   `yaml:"sources"`
	Queries    []Query    `yaml:"queries"`
	Types      []Type     `yaml:"types"`
	Repository Repository `yaml:"repository"`
	Export     Export     `yaml:"export"`
	Server     Server     `yaml:"server"`
}

func (c *Config) Source(name string) (Source, error) {
	for _, s := range c.Sources {
		if s.Name == name {
			return s, nil
		}
	}
	return Source{}, fmt.Errorf("unknown source: %q", name)
}

func (c *Config) Query(name string) (Query, error) {
	for _, q := range c.Queries {
		if q.Name == name {
			return q, nil
		}
	}
	return Query{}, fmt.Errorf("unknown query: %q", name)
}

// Validate checks sources and types are well formed and that every query
// references a configured source.
func (c *Config) Validate() error {
	seen := make(map[string]struct{}, len(c.Sources))
	for _, s := range c.Sources {
		if s.Name == "" {
			return fmt.Errorf("source without a name")
		}
		if _, ok := seen[s.Name]; ok {
			return fmt.Errorf("duplicate source: %q", s.Name)
		}
		seen[s.Name] = struct{}{}

		switch s.Type {
		case "sql", "":
			if s.Driver != "" && !slices.Contains(lsql.Drivers, s.Driver) {
				return fmt.Errorf("source %q: unsupported driver %q, expected one of %v", s.Name, s.Driver, lsql.Drivers)
			}
		case "postgres", "mongodb":
		default:
			return fmt.Errorf("source %q: unknown type %q", s.Name, s.Type)
		}
	}

	types := make(map[string]struct{}, len(c.Types))
	for _, t := range c.Types {
		if t.Name == "" {
			return fmt.Errorf("type without a name")
		}
		if _, ok := types[t.Name]; ok {
			return fmt.Errorf("duplicate type: %q", t.Name)
		}
		if len(t.Fields) == 0 {
			return fmt.Errorf("type %q has no fields", t.Name)
		}
		types[t.Name] = struct{}{}
	}

	for _, q := range c.Queries {
		if _, ok := seen[q.Source]; !ok {
			return fmt.Errorf("query %q references unknown source %q", q.Name, q.Source)
		}
		if q.Target() == "" {
			return fmt.Errorf("query %q has neither a statement nor a collection", q.Name)
		}
	}
	return nil
}

func ParquetFields(fields []ParquetField) parquet.Schema {
	schema := make(parquet.Schema, len(fields))
	for i, f := range fields {
		schema[i] = parquet.Field{
			Name:           f.Name,
			Type:           f.Type,
			ConvertedType:  f.ConvertedType,
			RepetitionType: f.RepetitionType,
			Precision:      f.Precision,
			Scale:          f.Scale,
		}
	}
	return schema
}

func SchemaToConfigFields(s parquet.Schema) []ParquetField {
	fields := make([]ParquetField, len(s))
	for i, f := range s {
		fields[i] = ParquetField{
			Name:           f.Name,
			Type:           f.Type,
			ConvertedType:  f.ConvertedType,
			RepetitionType: f.RepetitionType,
			Precision:      f.Precision,
			Scale:          f.Scale,
		}
	}
	return fields
}

func NewFromFile(fpath string) (*Config, error) {
	bs, err := os.ReadFile(fpath)
	if err != nil {
		return nil, err
	}

	var c Config
	if err := yaml.Unmarshal(bs, &c); err != nil {
		return nil, err
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}

	return &c, nil
}
