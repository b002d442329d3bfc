package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/turbolytics/resultset/pkg/persistence"
)

type fakeSource struct {
	records []*persistence.Record
	err     error
}

func (f *fakeSource) Name() string { return "fake" }

func (f *fakeSource) Close(ctx context.Context) error { return nil }

func (f *fakeSource) Query(ctx context.Context, statement string, args ...any) (*persistence.ResultCollection, error) {
	if f.err != nil {
		return nil, f.err
	}
	return persistence.FromRecords(f.records), nil
}

// countingSource counts without running the query.
type countingSource struct {
	fakeSource
	count int
}

func (c *countingSource) Count(ctx context.Context, statement string, args ...any) (int, error) {
	return c.count, nil
}

type user struct {
	ID   int64  `db:"id" json:"id"`
	Name string `db:"name" json:"name"`
}

func userRecord(id int64, name string) *persistence.Record {
	return persistence.NewRecord([]string{"id", "name"}, []any{id, name})
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	types := persistence.NewTypes()
	types.Register("user", persistence.StructType[user]())

	s := NewServer(zap.NewNop(), types)
	s.RegisterQuery(Query{Name: "users", Source: &fakeSource{records: []*persistence.Record{userRecord(1, "alice"), userRecord(2, "bob")}}})
	s.RegisterQuery(Query{Name: "alice", Source: &fakeSource{records: []*persistence.Record{userRecord(1, "alice")}}})
	s.RegisterQuery(Query{Name: "nobody", Source: &fakeSource{}})
	s.RegisterQuery(Query{Name: "broken", Source: &fakeSource{err: errors.New("connection refused")}})
	s.RegisterQuery(Query{Name: "events", Source: &countingSource{count: 1234}})

	ts := httptest.NewServer(s.Routes())
	t.Cleanup(ts.Close)
	return ts
}

func get(t *testing.T, url string, v any) int {
	t.Helper()

	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()

	if v != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
	}
	return resp.StatusCode
}

func TestServer(t *testing.T) {
	ts := newTestServer(t)

	t.Run("health", func(t *testing.T) {
		assert.Equal(t, http.StatusOK, get(t, ts.URL+"/health", nil))
	})

	t.Run("list", func(t *testing.T) {
		var body map[string][]string
		assert.Equal(t, http.StatusOK, get(t, ts.URL+"/api/v1/queries", &body))
		assert.Equal(t, []string{"alice", "broken", "events", "nobody", "users"}, body["queries"])
		assert.Equal(t, []string{"user"}, body["types"])
	})

	t.Run("records", func(t *testing.T) {
		var body struct {
			Count int              `json:"count"`
			Items []map[string]any `json:"items"`
		}
		assert.Equal(t, http.StatusOK, get(t, ts.URL+"/api/v1/queries/users", &body))
		assert.Equal(t, 2, body.Count)
		assert.Equal(t, "bob", body.Items[1]["name"])
	})

	t.Run("hydrated", func(t *testing.T) {
		var body struct {
			Items []user `json:"items"`
		}
		assert.Equal(t, http.StatusOK, get(t, ts.URL+"/api/v1/queries/users?as=user", &body))
		assert.Equal(t, []user{{ID: 1, Name: "alice"}, {ID: 2, Name: "bob"}}, body.Items)
	})

	t.Run("single hydrated", func(t *testing.T) {
		var u user
		assert.Equal(t, http.StatusOK, get(t, ts.URL+"/api/v1/queries/alice?single=true&as=user", &u))
		assert.Equal(t, user{ID: 1, Name: "alice"}, u)
	})

	t.Run("count", func(t *testing.T) {
		var body map[string]int
		assert.Equal(t, http.StatusOK, get(t, ts.URL+"/api/v1/queries/users/count", &body))
		assert.Equal(t, 2, body["count"])

		assert.Equal(t, http.StatusOK, get(t, ts.URL+"/api/v1/queries/events/count", &body))
		assert.Equal(t, 1234, body["count"])
	})

	t.Run("empty collection", func(t *testing.T) {
		var body QueryResult
		assert.Equal(t, http.StatusOK, get(t, ts.URL+"/api/v1/queries/nobody", &body))
		assert.Equal(t, 0, body.Count)
		assert.Empty(t, body.Items)
	})

	testCases := []struct {
		name   string
		path   string
		status int
	}{
		{"unknown query", "/api/v1/queries/orders", http.StatusNotFound},
		{"single of none", "/api/v1/queries/nobody?single=true", http.StatusNotFound},
		{"single of many", "/api/v1/queries/users?single=1", http.StatusConflict},
		{"unknown type", "/api/v1/queries/users?as=order", http.StatusBadRequest},
		{"hydrate empty", "/api/v1/queries/nobody?as=user", http.StatusUnprocessableEntity},
		{"bad single flag", "/api/v1/queries/users?single=maybe", http.StatusBadRequest},
		{"source failure", "/api/v1/queries/broken", http.StatusInternalServerError},
		{"count failure", "/api/v1/queries/broken/count", http.StatusInternalServerError},
		{"count unknown query", "/api/v1/queries/orders/count", http.StatusNotFound},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var body map[string]string
			assert.Equal(t, tc.status, get(t, ts.URL+tc.path, &body))
			assert.NotEmpty(t, body["error"])
		})
	}
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, StatusFor(persistence.ErrEmptyQueryResult))
	assert.Equal(t, http.StatusBadRequest, StatusFor(&persistence.NotConstructableError{Type: "x"}))
	assert.Equal(t, http.StatusUnprocessableEntity, StatusFor(&persistence.CanOnlyHydrateError{}))
	assert.Equal(t, http.StatusInternalServerError, StatusFor(errors.New("boom")))
}
