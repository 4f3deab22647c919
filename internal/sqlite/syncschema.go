package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"github.com/myrjola/sagaboard/internal/errors"
	"log/slog"
	"strings"
)

type schemaObject struct {
	kind string
	name string
	sql  string
}

// migrate makes the database schema match schemaDefinition declaratively.
//
// The target schema is built in a scratch in-memory database and compared with the current one. Objects missing from
// the target are dropped, new tables are created, and changed tables are rebuilt keeping the columns they share with
// the new definition, following https://www.sqlite.org/lang_altertable.html#otheralter. Indexes, triggers, and views
// are recreated whenever their definition differs.
func (db *Database) migrate(ctx context.Context, schemaDefinition string) error {
	target, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		return errors.Wrap(err, "open schema target database")
	}
	defer target.Close()
	// A single connection keeps the scratch database alive.
	target.SetMaxOpenConns(1)
	if _, err = target.ExecContext(ctx, schemaDefinition); err != nil {
		return errors.Wrap(err, "apply schema to target database")
	}
	targetObjects, err := querySchema(ctx, target)
	if err != nil {
		return errors.Wrap(err, "query target schema")
	}

	if _, err = db.ReadWrite.ExecContext(ctx, "PRAGMA foreign_keys = OFF"); err != nil {
		return errors.Wrap(err, "disable foreign key validation")
	}
	defer func() {
		if _, fkErr := db.ReadWrite.ExecContext(ctx, "PRAGMA foreign_keys = ON"); fkErr != nil {
			fkErr = errors.Wrap(fkErr, "re-enable foreign key validation")
			db.logger.LogAttrs(ctx, slog.LevelError, "foreign keys left disabled", errors.SlogError(fkErr))
		}
	}()

	tx, err := db.ReadWrite.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "start transaction")
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err = db.migrateTables(ctx, tx, target, targetObjects); err != nil {
		return errors.Wrap(err, "migrate tables")
	}
	if err = db.migrateDependents(ctx, tx, targetObjects); err != nil {
		return errors.Wrap(err, "migrate indexes, triggers, and views")
	}

	var violations *sql.Rows
	if violations, err = tx.QueryContext(ctx, "PRAGMA foreign_key_check"); err != nil {
		return errors.Wrap(err, "foreign key check")
	}
	hasViolations := violations.Next()
	_ = violations.Close()
	if hasViolations {
		return errors.New("foreign key violations after migration")
	}

	if err = tx.Commit(); err != nil {
		return errors.Wrap(err, "commit transaction")
	}
	return nil
}

func (db *Database) migrateTables(ctx context.Context, tx *sql.Tx, target *sql.DB, targetObjects []schemaObject) error {
	current, err := querySchema(ctx, tx)
	if err != nil {
		return errors.Wrap(err, "query current schema")
	}
	currentTables := objectsOfKind(current, "table")
	targetTables := objectsOfKind(targetObjects, "table")

	for name := range currentTables {
		if _, ok := targetTables[name]; ok {
			continue
		}
		db.logger.LogAttrs(ctx, slog.LevelInfo, "dropping table", slog.String("table", name))
		if _, err = tx.ExecContext(ctx, "DROP TABLE "+quote(name)); err != nil {
			return errors.Wrap(err, "drop table", slog.String("table", name))
		}
	}

	for name, want := range targetTables {
		have, exists := currentTables[name]
		switch {
		case !exists:
			db.logger.LogAttrs(ctx, slog.LevelInfo, "creating table", slog.String("table", name))
			if _, err = tx.ExecContext(ctx, want.sql); err != nil {
				return errors.Wrap(err, "create table", slog.String("table", name))
			}
		case have.sql != want.sql:
			if err = db.rebuildTable(ctx, tx, target, want); err != nil {
				return errors.Wrap(err, "rebuild table", slog.String("table", name))
			}
		}
	}
	return nil
}

// rebuildTable creates the new definition under a temporary name, copies the shared columns, and swaps the tables.
func (db *Database) rebuildTable(ctx context.Context, tx *sql.Tx, target *sql.DB, want schemaObject) error {
	db.logger.LogAttrs(ctx, slog.LevelInfo, "migrating table",
		slog.String("table", want.name), slog.String("new_sql", want.sql))

	currentColumns, err := queryColumns(ctx, tx, want.name)
	if err != nil {
		return errors.Wrap(err, "query current columns")
	}
	targetColumns, err := queryColumns(ctx, target, want.name)
	if err != nil {
		return errors.Wrap(err, "query target columns")
	}
	var common []string
	for column := range targetColumns {
		if _, ok := currentColumns[column]; ok {
			common = append(common, quote(column))
		}
	}

	tempName := want.name + "_migration_temp"
	tempSQL := strings.Replace(want.sql, want.name, tempName, 1)
	if _, err = tx.ExecContext(ctx, tempSQL); err != nil {
		return errors.Wrap(err, "create table under temporary name", slog.String("query", tempSQL))
	}
	if len(common) > 0 {
		columns := strings.Join(common, ", ")
		copySQL := fmt.Sprintf("INSERT INTO %s (%s) SELECT %s FROM %s", //nolint:gosec // names come from the schema.
			quote(tempName), columns, columns, quote(want.name))
		if _, err = tx.ExecContext(ctx, copySQL); err != nil {
			return errors.Wrap(err, "copy data", slog.String("query", copySQL))
		}
	}
	if _, err = tx.ExecContext(ctx, "DROP TABLE "+quote(want.name)); err != nil {
		return errors.Wrap(err, "drop old table")
	}
	if _, err = tx.ExecContext(ctx, fmt.Sprintf("ALTER TABLE %s RENAME TO %s", quote(tempName), quote(want.name))); err != nil {
		return errors.Wrap(err, "rename new table")
	}
	return nil
}

// migrateDependents runs after the tables are in place. Rebuilt tables have lost their indexes and triggers, so
// everything is compared against a fresh snapshot.
func (db *Database) migrateDependents(ctx context.Context, tx *sql.Tx, targetObjects []schemaObject) error {
	current, err := querySchema(ctx, tx)
	if err != nil {
		return errors.Wrap(err, "query current schema")
	}
	for _, kind := range []string{"view", "trigger", "index"} {
		have := objectsOfKind(current, kind)
		want := objectsOfKind(targetObjects, kind)
		for name, obj := range have {
			if w, ok := want[name]; ok && w.sql == obj.sql {
				continue
			}
			db.logger.LogAttrs(ctx, slog.LevelInfo, "dropping "+kind, slog.String("name", name))
			if _, err = tx.ExecContext(ctx, fmt.Sprintf("DROP %s IF EXISTS %s", strings.ToUpper(kind), quote(name))); err != nil {
				return errors.Wrap(err, "drop "+kind, slog.String("name", name))
			}
		}
		for name, obj := range want {
			if h, ok := have[name]; ok && h.sql == obj.sql {
				continue
			}
			db.logger.LogAttrs(ctx, slog.LevelInfo, "creating "+kind, slog.String("name", name))
			if _, err = tx.ExecContext(ctx, obj.sql); err != nil {
				return errors.Wrap(err, "create "+kind, slog.String("name", name))
			}
		}
	}
	return nil
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// querySchema lists the user-defined schema objects. Automatic indexes have no SQL and are skipped.
func querySchema(ctx context.Context, q querier) ([]schemaObject, error) {
	rows, err := q.QueryContext(ctx, `SELECT type, name, sql
FROM sqlite_schema
WHERE name NOT LIKE 'sqlite_%' AND sql IS NOT NULL`)
	if err != nil {
		return nil, errors.Wrap(err, "query")
	}
	defer rows.Close()
	var objects []schemaObject
	for rows.Next() {
		var obj schemaObject
		if err = rows.Scan(&obj.kind, &obj.name, &obj.sql); err != nil {
			return nil, errors.Wrap(err, "scan schema object")
		}
		objects = append(objects, obj)
	}
	if err = rows.Err(); err != nil {
		return nil, errors.Wrap(err, "rows error")
	}
	return objects, nil
}

func queryColumns(ctx context.Context, q querier, table string) (map[string]struct{}, error) {
	rows, err := q.QueryContext(ctx, "SELECT name FROM PRAGMA_TABLE_INFO(?)", table)
	if err != nil {
		return nil, errors.Wrap(err, "query")
	}
	defer rows.Close()
	columns := map[string]struct{}{}
	for rows.Next() {
		var name string
		if err = rows.Scan(&name); err != nil {
			return nil, errors.Wrap(err, "scan column")
		}
		columns[name] = struct{}{}
	}
	if err = rows.Err(); err != nil {
		return nil, errors.Wrap(err, "rows error")
	}
	return columns, nil
}

func objectsOfKind(objects []schemaObject, kind string) map[string]schemaObject {
	out := map[string]schemaObject{}
	for _, obj := range objects {
		if obj.kind == kind {
			out[obj.name] = obj
		}
	}
	return out
}

func quote(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
