package migration

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "modernc.org/sqlite" // register pure-Go SQLite driver
)

func TestParseDatabaseType(t *testing.T) {
	tests := []struct {
		input    string
		expected DatabaseType
		wantErr  bool
	}{
		{input: "postgres", expected: DatabaseTypePostgres},
		{input: "postgresql", expected: DatabaseTypePostgres},
		{input: "pg", expected: DatabaseTypePostgres},
		{input: "POSTGRES", expected: DatabaseTypePostgres},
		{input: "mysql", expected: DatabaseTypeMySQL},
		{input: "mariadb", expected: DatabaseTypeMySQL},
		{input: "sqlite", expected: DatabaseTypeSQLite},
		{input: "sqlite3", expected: DatabaseTypeSQLite},
		{input: "mongodb", wantErr: true},
		{input: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseDatabaseType(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestBuildDatabaseURL(t *testing.T) {
	assert.Equal(t,
		"postgres://bot:secret@db:5432/urmombot?sslmode=disable",
		BuildDatabaseURL(DatabaseTypePostgres, "db", 5432, "urmombot", "bot", "secret", "disable"))

	// Empty sslmode defaults to require.
	assert.Equal(t,
		"postgres://bot:secret@db:5432/urmombot?sslmode=require",
		BuildDatabaseURL(DatabaseTypePostgres, "db", 5432, "urmombot", "bot", "secret", ""))

	assert.Equal(t,
		"bot:secret@tcp(db:3306)/urmombot?parseTime=true&multiStatements=true",
		BuildDatabaseURL(DatabaseTypeMySQL, "db", 3306, "urmombot", "bot", "secret", ""))

	assert.Equal(t,
		"file:/data/bot.sqlite?mode=rwc&_foreign_keys=on",
		BuildDatabaseURL(DatabaseTypeSQLite, "", 0, "/data/bot.sqlite", "", "", ""))

	assert.Empty(t, BuildDatabaseURL(DatabaseType("oracle"), "", 0, "", "", "", ""))
}

func TestNewMigratorRejectsBadConfig(t *testing.T) {
	_, err := NewMigrator(nil)
	assert.ErrorContains(t, err, "config is required")

	_, err = NewMigrator(&Config{DatabaseType: DatabaseTypeSQLite})
	assert.ErrorContains(t, err, "database URL is required")

	_, err = NewMigrator(&Config{DatabaseType: "oracle", DatabaseURL: "x"})
	assert.ErrorContains(t, err, "unsupported database type")
}

func newSQLiteMigrator(t *testing.T) *Migrator {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	migrator, err := NewMigrator(&Config{
		DatabaseType: DatabaseTypeSQLite,
		DatabaseURL:  "file:" + dbPath + "?mode=rwc&_foreign_keys=on",
	})
	require.NoError(t, err)
	t.Cleanup(func() { migrator.Close() })
	return migrator
}

func TestMigratorSQLiteRoundTrip(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping sqlite integration test in short mode")
	}

	migrator := newSQLiteMigrator(t)

	version, dirty, err := migrator.Version()
	require.NoError(t, err)
	assert.Zero(t, version)
	assert.False(t, dirty)

	require.NoError(t, migrator.Up())

	version, dirty, err = migrator.Version()
	require.NoError(t, err)
	assert.Greater(t, version, uint(0))
	assert.False(t, dirty)

	statuses, err := migrator.Status()
	require.NoError(t, err)
	require.NotEmpty(t, statuses)
	for _, s := range statuses {
		assert.True(t, s.Applied, "migration %06d should be applied", s.Version)
	}

	require.NoError(t, migrator.Down())
	rolledBack, _, err := migrator.Version()
	require.NoError(t, err)
	assert.Less(t, rolledBack, version)
}

func TestMigratorAvailableIsSortedPerDialect(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping sqlite integration test in short mode")
	}

	migrator := newSQLiteMigrator(t)

	files, err := migrator.available()
	require.NoError(t, err)
	require.NotEmpty(t, files)
	for i := 1; i < len(files); i++ {
		assert.Greater(t, files[i].version, files[i-1].version)
	}
}

func TestCLIStatusOutput(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping sqlite integration test in short mode")
	}

	migrator := newSQLiteMigrator(t)
	cli := NewCLI(migrator)

	var buf bytes.Buffer
	cli.SetOutput(&buf)

	require.NoError(t, cli.RunUp())
	assert.Contains(t, buf.String(), "schema at version")

	buf.Reset()
	require.NoError(t, cli.RunStatus())
	out := buf.String()
	assert.Contains(t, out, "VERSION")
	assert.Contains(t, out, "applied")
}
