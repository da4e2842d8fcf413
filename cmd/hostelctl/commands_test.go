package main

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/hostel-bed-allocation/internal/database"
	"github.com/iliyamo/hostel-bed-allocation/internal/model"
	"github.com/iliyamo/hostel-bed-allocation/internal/repository"
	"github.com/iliyamo/hostel-bed-allocation/internal/utils"
)

func useTempDB(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "hostel.db")
	prev := opener
	opener = func(ctx context.Context) (*database.DB, error) {
		db, err := database.OpenSQLite(path)
		if err != nil {
			return nil, err
		}
		return db, database.Migrate(ctx, db)
	}
	t.Cleanup(func() { opener = prev })
	t.Setenv("BLOB_DRIVER", "memory")
	return path
}

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestSeedAndRooms(t *testing.T) {
	useTempDB(t)

	out, err := run(t, "", "seed", "--rooms", "2", "--beds-per-room", "2")
	require.NoError(t, err)
	assert.Contains(t, out, "seeded 2 rooms")

	out, err = run(t, "", "seed", "--rooms", "2", "--beds-per-room", "2")
	require.NoError(t, err)
	assert.Contains(t, out, "nothing seeded")

	out, err = run(t, "", "rooms")
	require.NoError(t, err)
	assert.Contains(t, out, "ROOM")
	assert.Equal(t, 3, strings.Count(strings.TrimSpace(out), "\n")+1, out)

	out, err = run(t, "", "rooms", "--beds")
	require.NoError(t, err)
	assert.Contains(t, out, "2-B")
}

func TestCreateAdmin(t *testing.T) {
	path := useTempDB(t)

	_, err := run(t, "short\n", "create-admin", "--email", "boss@hostel.test", "--bcrypt-cost", "4")
	require.Error(t, err)

	out, err := run(t, "correct-horse\n", "create-admin", "--email", "Boss@Hostel.test", "--bcrypt-cost", "4")
	require.NoError(t, err)
	assert.Contains(t, out, "created ADMIN user boss@hostel.test")

	db, err := database.OpenSQLite(path)
	require.NoError(t, err)
	defer db.Close()
	u, err := repository.NewUserRepo(db).GetByEmail(context.Background(), "boss@hostel.test")
	require.NoError(t, err)
	assert.True(t, utils.VerifyPassword(u.PasswordHash, "correct-horse"))

	_, err = run(t, "correct-horse\n", "create-admin", "--email", "boss@hostel.test", "--bcrypt-cost", "4")
	assert.ErrorIs(t, err, repository.ErrEmailExists)

	_, err = run(t, "correct-horse\n", "create-admin", "--email", "x@hostel.test", "--role", "janitor")
	assert.Error(t, err)
}

func TestMigrateAndPurgeOnEmptyStore(t *testing.T) {
	useTempDB(t)

	out, err := run(t, "", "migrate")
	require.NoError(t, err)
	assert.Contains(t, out, "schema up to date (sqlite)")

	out, err = run(t, "", "purge", "--older-than", "1h")
	require.NoError(t, err)
	assert.Contains(t, out, "purged 0 booking(s)")
}

func TestReleaseBeds(t *testing.T) {
	path := useTempDB(t)
	_, err := run(t, "", "seed", "--rooms", "1", "--beds-per-room", "2")
	require.NoError(t, err)

	db, err := database.OpenSQLite(path)
	require.NoError(t, err)
	beds := repository.NewBedRepo(db)
	require.NoError(t, beds.SetBedStatus(context.Background(), "1-A", model.BedOccupied))
	require.NoError(t, db.Close())

	out, err := run(t, "", "release", "1-A", "9-Z")
	require.Error(t, err)
	assert.Contains(t, out, "released 1 of 2 bed(s)")

	db, err = database.OpenSQLite(path)
	require.NoError(t, err)
	defer db.Close()
	b, err := repository.NewBedRepo(db).GetBed(context.Background(), "1-A")
	require.NoError(t, err)
	assert.Equal(t, model.BedFree, b.Status)
}
