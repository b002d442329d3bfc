package parquet

import (
	"fmt"
	"strings"
	"time"

	"github.com/turbolytics/resultset/pkg/persistence"
)

type Field struct {
	Name           string
	Type           string
	ConvertedType  string
	RepetitionType string
	Precision      int
	Scale          int
}

type Schema []Field

// ToGoParquetSchema renders the schema as parquet-go CSV writer metadata.
func (s Schema) ToGoParquetSchema() []string {
	schema := make([]string, len(s))
	for i, field := range s {
		parts := []string{
			fmt.Sprintf("name=%s", field.Name),
			fmt.Sprintf("type=%s", field.Type),
		}
		if field.ConvertedType != "" {
			parts = append(parts, fmt.Sprintf("convertedtype=%s", field.ConvertedType))
		}
		if field.ConvertedType == "DECIMAL" {
			parts = append(parts,
				fmt.Sprintf("precision=%d", field.Precision),
				fmt.Sprintf("scale=%d", field.Scale),
			)
		}
		if field.RepetitionType != "" {
			parts = append(parts, fmt.Sprintf("repetitiontype=%s", field.RepetitionType))
		}
		schema[i] = strings.Join(parts, ", ")
	}

	return schema
}

// RecordToParquetRow converts the record values, looked up by field name,
// into the physical types the schema declares.
func (s Schema) RecordToParquetRow(r *persistence.Record) ([]any, error) {
	if len(s) != r.Len() {
		return nil, fmt.Errorf(
			"schema and record fields mismatch: schema has %d fields, record has %d fields",
			len(s),
			r.Len(),
		)
	}

	row := make([]any, len(s))
	for i, field := range s {
		v, ok := r.Get(field.Name)
		if !ok {
			return nil, fmt.Errorf("record has no field %q", field.Name)
		}

		if v == nil {
			if field.RepetitionType != "OPTIONAL" {
				return nil, fmt.Errorf("field %q is required but null", field.Name)
			}
			continue
		}

		converted, err := field.convert(v)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", field.Name, err)
		}
		row[i] = converted
	}

	return row, nil
}

func (f Field) convert(v any) (any, error) {
	switch f.ConvertedType {
	case "TIMESTAMP_MILLIS", "TIMESTAMP_MICROS", "DATE":
		t, ok := v.(time.Time)
		if !ok {
			return nil, fmt.Errorf("expected time.Time for %s, got %T", f.ConvertedType, v)
		}
		switch f.ConvertedType {
		case "TIMESTAMP_MILLIS":
			return t.UnixMilli(), nil
		case "TIMESTAMP_MICROS":
			return t.UnixMicro(), nil
		default:
			return daysSinceEpoch(t.Unix()), nil
		}
	case "DECIMAL":
		str, err := decimalString(v)
		if err != nil {
			return nil, err
		}
		unscaled, err := DecimalStringToInt(str, f.Precision, f.Scale)
		if err != nil {
			return nil, err
		}
		return unscaledToPhysical(unscaled, f.Type)
	}

	switch f.Type {
	case "BOOLEAN":
		b, ok := v.(bool)
		if !ok {
			return nil, fmt.Errorf("expected bool, got %T", v)
		}
		return b, nil
	case "INT32":
		n, err := toInt64(v)
		return int32(n), err
	case "INT64":
		return toInt64(v)
	case "FLOAT":
		n, err := toFloat64(v)
		return float32(n), err
	case "DOUBLE":
		return toFloat64(v)
	case "BYTE_ARRAY":
		if bs, ok := v.([]byte); ok {
			return string(bs), nil
		}
		return fmt.Sprint(v), nil
	default:
		return nil, fmt.Errorf("unsupported parquet type %q", f.Type)
	}
}

func toInt64(v any) (int64, error) {
	switch n := v.(type) {
	case int:
		return int64(n), nil
	case int8:
		return int64(n), nil
	case int16:
		return int64(n), nil
	case int32:
		return int64(n), nil
	case int64:
		return n, nil
	case uint8:
		return int64(n), nil
	case uint16:
		return int64(n), nil
	case uint32:
		return int64(n), nil
	default:
		return 0, fmt.Errorf("expected integer, got %T", v)
	}
}

func toFloat64(v any) (float64, error) {
	switch n := v.(type) {
	case float32:
		return float64(n), nil
	case float64:
		return n, nil
	default:
		i, err := toInt64(v)
		return float64(i), err
	}
}
