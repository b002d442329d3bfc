package postgres

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/turbolytics/resultset/pkg/persistence"
)

type user struct {
	ID    int32  `db:"id"`
	Name  string `db:"name"`
	Email string `db:"email"`
}

func TestIntegrationPostgresSource(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	ctx := context.Background()

	pgContainer, err := tcpostgres.Run(ctx,
		"postgres:16",
		tcpostgres.WithInitScripts(filepath.Join("testdata", "init-db.sql")),
		tcpostgres.WithDatabase("test"),
		tcpostgres.WithUsername("test"),
		tcpostgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).WithStartupTimeout(30*time.Second)),
	)
	require.NoError(t, err)

	t.Cleanup(func() {
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Fatalf("failed to terminate pgContainer: %s", err)
		}
	})

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	source, err := Connect(ctx, connStr, WithName("pg"))
	require.NoError(t, err)
	defer source.Close(ctx)

	t.Run("collection", func(t *testing.T) {
		c, err := source.Query(ctx, "SELECT id, name, email FROM users ORDER BY id")
		require.NoError(t, err)
		assert.Equal(t, 3, c.Count())

		first := c.ToSlice()[0].(*persistence.Record)
		assert.Equal(t, []string{"id", "name", "email"}, first.Fields())
	})

	t.Run("hydrate single", func(t *testing.T) {
		c, err := source.Query(ctx, "SELECT id, name, email FROM users WHERE name = $1", "bob")
		require.NoError(t, err)

		v, err := c.HydrateSingleResultAs(persistence.StructType[user]())
		require.NoError(t, err)
		assert.Equal(t, &user{ID: 2, Name: "bob", Email: "bob@example.com"}, v)
	})

	t.Run("concurrent queries", func(t *testing.T) {
		var wg sync.WaitGroup
		errs := make(chan error, 20)
		counts := make(chan int, 20)

		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				c, err := source.Query(ctx, "SELECT u.id FROM users u, pg_sleep(0.05) WHERE u.id <= $1", 2)
				if err != nil {
					errs <- err
					return
				}
				counts <- c.Count()
			}()
		}
		wg.Wait()
		close(errs)
		close(counts)

		for err := range errs {
			assert.NoError(t, err)
		}
		for n := range counts {
			assert.Equal(t, 2, n)
		}
	})

	t.Run("not unique", func(t *testing.T) {
		c, err := source.Query(ctx, "SELECT id FROM users")
		require.NoError(t, err)

		_, err = c.SingleResult()
		assert.ErrorIs(t, err, persistence.ErrNotUniqueQueryResult)
	})
}
