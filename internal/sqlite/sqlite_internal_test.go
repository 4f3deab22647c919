package sqlite

import (
	"context"
	"github.com/myrjola/sagaboard/internal/testhelpers"
	"github.com/stretchr/testify/require"
	"io"
	"path/filepath"
	"testing"
)

func TestNewDatabase_SessionsSchema(t *testing.T) {
	ctx := context.Background()
	db, err := NewDatabase(ctx, filepath.Join(t.TempDir(), "sessions.sqlite"), testhelpers.NewLogger(io.Discard))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.ReadWrite.ExecContext(ctx,
		"INSERT INTO sessions (token, data, expiry) VALUES ('tok', x'01', julianday('now'))")
	require.NoError(t, err)

	var count int
	require.NoError(t, db.ReadOnly.QueryRowContext(ctx, "SELECT count(*) FROM sessions").Scan(&count))
	require.Equal(t, 1, count)

	_, err = db.ReadOnly.ExecContext(ctx, "DELETE FROM sessions")
	require.Error(t, err, "read-only pool must reject writes")

	db.Optimize(ctx)
}

func TestNewDatabase_Reopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "sessions.sqlite")
	logger := testhelpers.NewLogger(io.Discard)

	db, err := NewDatabase(ctx, path, logger)
	require.NoError(t, err)
	_, err = db.ReadWrite.ExecContext(ctx,
		"INSERT INTO sessions (token, data, expiry) VALUES ('tok', x'01', julianday('now'))")
	require.NoError(t, err)
	require.NoError(t, db.Close())

	db, err = NewDatabase(ctx, path, logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	var token string
	require.NoError(t, db.ReadOnly.QueryRowContext(ctx, "SELECT token FROM sessions").Scan(&token))
	require.Equal(t, "tok", token)
}

func TestDatabase_migrate(t *testing.T) {
	tests := []struct {
		name              string
		schemaDefinitions []string
		testQueries       []string
		wantErr           bool
	}{
		{
			name:              "create table",
			schemaDefinitions: []string{"CREATE TABLE test (id INTEGER PRIMARY KEY)"},
			testQueries:       []string{"INSERT INTO test (id) VALUES (1)"},
			wantErr:           false,
		},
		{
			name: "drop table",
			schemaDefinitions: []string{
				"CREATE TABLE test (id INTEGER PRIMARY KEY)",
				"CREATE TABLE other (id INTEGER PRIMARY KEY)",
			},
			testQueries: []string{"SELECT * FROM test"},
			wantErr:     true,
		},
		{
			name: "add column",
			schemaDefinitions: []string{
				"CREATE TABLE test (id INTEGER PRIMARY KEY)",
				"CREATE TABLE test (id INTEGER PRIMARY KEY, name TEXT)",
			},
			testQueries: []string{"INSERT INTO test (id, name) VALUES (1, 'test')"},
			wantErr:     false,
		},
		{
			name: "remove column",
			schemaDefinitions: []string{
				"CREATE TABLE test (id INTEGER PRIMARY KEY, name TEXT)",
				"CREATE TABLE test (id INTEGER PRIMARY KEY)",
			},
			testQueries: []string{"INSERT INTO test (name) VALUES ('test')"},
			wantErr:     true,
		},
		{
			name: "create index",
			schemaDefinitions: []string{
				"CREATE TABLE test (id INTEGER PRIMARY KEY, name TEXT); CREATE INDEX test_name ON test (name)",
			},
			testQueries: []string{"DROP INDEX test_name"},
			wantErr:     false,
		},
		{
			name: "drop index",
			schemaDefinitions: []string{
				"CREATE TABLE test (id INTEGER PRIMARY KEY, name TEXT); CREATE INDEX test_name ON test (name)",
				"CREATE TABLE test (id INTEGER PRIMARY KEY, name TEXT)",
			},
			testQueries: []string{"DROP INDEX test_name"},
			wantErr:     true,
		},
		{
			name: "index survives table rebuild",
			schemaDefinitions: []string{
				"CREATE TABLE test (id INTEGER PRIMARY KEY, name TEXT); CREATE INDEX test_name ON test (name)",
				"CREATE TABLE test (id INTEGER PRIMARY KEY, name TEXT, age INTEGER); CREATE INDEX test_name ON test (name)",
			},
			testQueries: []string{"DROP INDEX test_name"},
			wantErr:     false,
		},
		{
			name: "delete trigger",
			schemaDefinitions: []string{
				`CREATE TABLE test (id INTEGER PRIMARY KEY, name TEXT);
                 CREATE TRIGGER test_trigger AFTER INSERT ON test BEGIN SELECT RAISE (FAIL, 'fail'); END;`,
				"CREATE TABLE test (id INTEGER PRIMARY KEY, name TEXT)",
			},
			testQueries: []string{"INSERT INTO test (name) VALUES ('test')"},
			wantErr:     false,
		},
		{
			name: "update trigger",
			schemaDefinitions: []string{
				`CREATE TABLE test (id INTEGER PRIMARY KEY, name TEXT);
                 CREATE TRIGGER test_trigger AFTER INSERT ON test BEGIN SELECT 1; END;`,
				`CREATE TABLE test (id INTEGER PRIMARY KEY, name TEXT);
                 CREATE TRIGGER test_trigger AFTER INSERT ON test BEGIN SELECT RAISE (FAIL, 'fail'); END;`,
			},
			testQueries: []string{"INSERT INTO test (name) VALUES ('test')"},
			wantErr:     true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			ctx := context.Background()
			db, err := NewDatabase(ctx, ":memory:", testhelpers.NewLogger(io.Discard))
			require.NoError(t, err)
			t.Cleanup(func() { _ = db.Close() })
			for _, schemaDefinition := range tt.schemaDefinitions {
				require.NoError(t, db.migrate(ctx, schemaDefinition))
			}
			for _, query := range tt.testQueries {
				_, err = db.ReadWrite.ExecContext(ctx, query)
				if tt.wantErr {
					require.Error(t, err)
				} else {
					require.NoError(t, err)
				}
			}
		})
	}
}

func TestDatabase_migrateKeepsRows(t *testing.T) {
	ctx := context.Background()
	db, err := NewDatabase(ctx, ":memory:", testhelpers.NewLogger(io.Discard))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, db.migrate(ctx, "CREATE TABLE test (id INTEGER PRIMARY KEY, legacy TEXT)"))
	_, err = db.ReadWrite.ExecContext(ctx, "INSERT INTO test (id, legacy) VALUES (7, 'old')")
	require.NoError(t, err)

	require.NoError(t, db.migrate(ctx, "CREATE TABLE test (id INTEGER PRIMARY KEY, name TEXT NOT NULL DEFAULT 'x')"))

	var name string
	require.NoError(t, db.ReadWrite.QueryRowContext(ctx, "SELECT name FROM test WHERE id = 7").Scan(&name))
	require.Equal(t, "x", name)
}
