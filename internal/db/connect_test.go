package db

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenSQLiteAppliesSchema(t *testing.T) {
	ctx := context.Background()
	h, err := Open(ctx, DriverSQLite, "file:dbtest?mode=memory&cache=shared")
	require.NoError(t, err)
	defer h.Close()

	require.NoError(t, EnsureSchema(ctx, h, DriverSQLite), "schema is idempotent")
	_, err = h.ExecContext(ctx, `INSERT INTO documents (path, data, updated_at) VALUES ('a/b', '{}', 1)`)
	require.NoError(t, err)
	assert.NoError(t, Probe(h, time.Second)(ctx))
}

func TestUnsupportedDriver(t *testing.T) {
	_, err := Open(context.Background(), Driver("mysql"), "")
	assert.Error(t, err)
	_, err = DriverName(DriverPostgres)
	assert.NoError(t, err)
}
