package database

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOpenRunsMigrationsOnce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "netconsole.db")

	db, err := Open(path)
	require.NoError(t, err)

	var version string
	require.NoError(t, db.QueryRow("SELECT version FROM schema_migrations").Scan(&version))
	require.Equal(t, "001_initial", version)

	_, err = db.Exec(`INSERT INTO devices (id, owner, hostname, username) VALUES ('d1', 'alice', 'r1', 'admin')`)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	db, err = Open(path)
	require.NoError(t, err)
	defer db.Close()

	var n int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&n))
	require.Equal(t, 1, n)
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM devices").Scan(&n))
	require.Equal(t, 1, n)
}
