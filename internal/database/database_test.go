package database

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRebindPostgresOnly(t *testing.T) {
	q := `UPDATE beds SET status = ? WHERE id = ? AND status IN (?,?)`
	assert.Equal(t, q, MySQL.Rebind(q))
	assert.Equal(t, q, SQLite.Rebind(q))
	assert.Equal(t, `UPDATE beds SET status = $1 WHERE id = $2 AND status IN ($3,$4)`, Postgres.Rebind(q))
}

func TestPlaceholders(t *testing.T) {
	assert.Equal(t, "", Placeholders(0))
	assert.Equal(t, "?", Placeholders(1))
	assert.Equal(t, "?,?,?", Placeholders(3))
}

func TestMigrateAndSeedSQLite(t *testing.T) {
	db, err := OpenSQLite(filepath.Join(t.TempDir(), "hostel.db"))
	if err != nil {
		t.Skipf("sqlite unavailable: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	ctx := context.Background()

	require.NoError(t, Migrate(ctx, db))
	require.NoError(t, Migrate(ctx, db), "migrate must be repeatable")

	created, err := Seed(ctx, db, 4, 3)
	require.NoError(t, err)
	assert.Equal(t, 4, created)

	again, err := Seed(ctx, db, 4, 3)
	require.NoError(t, err)
	assert.Zero(t, again, "seed runs only once")

	var beds int
	require.NoError(t, db.QueryRowContext(ctx, `SELECT COUNT(*) FROM beds WHERE status = 'free'`).Scan(&beds))
	assert.Equal(t, 12, beds)

	var id string
	require.NoError(t, db.QueryRowContext(ctx, `SELECT id FROM beds WHERE id = ?`, "3-C").Scan(&id))
	assert.Equal(t, "3-C", id)
}

func TestSeedRejectsBadLayout(t *testing.T) {
	_, err := Seed(context.Background(), &DB{Dialect: SQLite}, 0, 3)
	assert.Error(t, err)
	_, err = Seed(context.Background(), &DB{Dialect: SQLite}, 1, 27)
	assert.Error(t, err)
}
