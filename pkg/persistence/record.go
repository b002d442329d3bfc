package persistence

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Record is one row of query output: a set of fields and their corresponding values.
// Field order is critical for some serializers, so we keep them in a separate slice.
type Record struct {
	fields []string
	values []any
}

func NewRecord(fields []string, values []any) *Record {
	return &Record{
		fields: fields,
		values: values,
	}
}

// RecordFromMap builds a record with fields in the order given by keys.
// Keys missing from m are stored as nil.
func RecordFromMap(keys []string, m map[string]any) *Record {
	values := make([]any, len(keys))
	for i, k := range keys {
		values[i] = m[k]
	}
	return NewRecord(keys, values)
}

func (r *Record) Len() int {
	return len(r.fields)
}

func (r *Record) Fields() []string {
	return r.fields
}

func (r *Record) Values() []any {
	return r.values
}

// Get returns the value of the first field named field.
func (r *Record) Get(field string) (any, bool) {
	for i, f := range r.fields {
		if f == field {
			return r.values[i], true
		}
	}
	return nil, false
}

func (r *Record) Map() map[string]any {
	m := make(map[string]any, len(r.fields))
	for i, field := range r.fields {
		m[field] = r.values[i]
	}
	return m
}

func (r *Record) String() string {
	return fmt.Sprintf("%v", r.Map())
}

// MarshalJSON encodes the record as a JSON object, keeping field order.
func (r *Record) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, field := range r.fields {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(field)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(r.values[i])
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", field, err)
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
