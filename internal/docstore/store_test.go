package docstore_test

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rtdacademy/assessments/internal/db"
	"github.com/rtdacademy/assessments/internal/docstore"
)

type doc struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func backends(t *testing.T) map[string]docstore.Store {
	t.Helper()
	out := map[string]docstore.Store{
		"memory": docstore.NewInMemoryStore(),
	}

	dsn := "file:" + strings.ReplaceAll(t.Name(), "/", "_") + "?mode=memory&cache=shared"
	sqlDB, err := db.Open(context.Background(), db.DriverSQLite, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })
	out["sqlite"] = docstore.NewSQLStore(sqlDB, "sqlite")

	if addr := os.Getenv("TEST_REDIS_ADDR"); addr != "" {
		client := redis.NewClient(&redis.Options{Addr: addr})
		t.Cleanup(func() { client.Close() })
		out["redis"] = docstore.NewRedisStore(client, "test:"+t.Name()+":")
	}
	return out
}

func TestJoin(t *testing.T) {
	p, err := docstore.Join("students", "kyle,smith@example,com", "courses", "2")
	require.NoError(t, err)
	assert.Equal(t, "students/kyle,smith@example,com/courses/2", p)

	for _, bad := range [][]string{
		{},
		{"students", ""},
		{"students", ".."},
		{"students", "a/b"},
		{"students", "a#b"},
		{"students", "a[0]"},
	} {
		_, err := docstore.Join(bad...)
		assert.ErrorIs(t, err, docstore.ErrInvalidPath, "segments %q", bad)
	}
}

func TestStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			var got doc
			ok, err := s.Get(ctx, "a/b", &got)
			require.NoError(t, err)
			assert.False(t, ok)

			require.NoError(t, s.Set(ctx, "a/b", doc{Name: "x", Count: 1}))
			ok, err = s.Get(ctx, "a/b", &got)
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, doc{Name: "x", Count: 1}, got)

			require.NoError(t, s.Delete(ctx, "a/b"))
			ok, err = s.Get(ctx, "a/b", &got)
			require.NoError(t, err)
			assert.False(t, ok)

			assert.ErrorIs(t, s.Set(ctx, "a/../b", doc{}), docstore.ErrInvalidPath)
		})
	}
}

func TestStoreUpdate(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			inc := func(cur *doc, exists bool) (bool, error) {
				if !exists {
					cur.Name = "counter"
				}
				cur.Count++
				return true, nil
			}
			require.NoError(t, docstore.UpdateJSON(ctx, s, "c/1", inc))
			require.NoError(t, docstore.UpdateJSON(ctx, s, "c/1", inc))

			var got doc
			_, err := s.Get(ctx, "c/1", &got)
			require.NoError(t, err)
			assert.Equal(t, doc{Name: "counter", Count: 2}, got)

			boom := errors.New("boom")
			err = s.Update(ctx, "c/1", func(json.RawMessage) (json.RawMessage, error) { return nil, boom })
			assert.ErrorIs(t, err, boom)

			// nil replacement is a no-op
			require.NoError(t, s.Update(ctx, "c/1", func(json.RawMessage) (json.RawMessage, error) { return nil, nil }))
			_, err = s.Get(ctx, "c/1", &got)
			require.NoError(t, err)
			assert.Equal(t, 2, got.Count)
		})
	}
}

func TestMemoryUpdateIsAtomicPerPath(t *testing.T) {
	ctx := context.Background()
	s := docstore.NewInMemoryStore()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = docstore.UpdateJSON(ctx, s, "n", func(cur *doc, _ bool) (bool, error) {
				cur.Count++
				return true, nil
			})
		}()
	}
	wg.Wait()
	var got doc
	_, err := s.Get(ctx, "n", &got)
	require.NoError(t, err)
	assert.Equal(t, 50, got.Count)
}
