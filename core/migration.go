package core

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/graveldb/gravel/schema"
)

// MigrationReport records what an upgrade changed.
type MigrationReport struct {
	FromVersion int
	ToVersion   int
	// CreatedTables lists tables that did not exist and were created.
	CreatedTables []string
	// AddedColumns lists table.column additions.
	AddedColumns []string
	// SkippedColumns lists table.column additions that turned out to exist
	// already by the time the statement ran.
	SkippedColumns []string
}

// Changed reports whether the upgrade touched the database.
func (r *MigrationReport) Changed() bool {
	return len(r.CreatedTables) > 0 || len(r.AddedColumns) > 0
}

// ColumnInfo describes one live column as the engine reports it.
type ColumnInfo struct {
	Name       string
	Type       string
	NotNull    bool
	Default    sql.NullString
	PrimaryKey bool
}

// Migrator creates and upgrades tables from registered metadata. Changes
// are forward-only and additive: missing tables get created, missing
// columns get added, and nothing is ever dropped or rewritten.
type Migrator struct {
	db       *DB
	executor Executor
}

func (m *Migrator) exec(ctx context.Context, sqlStr string, args ...any) (sql.Result, error) {
	start := time.Now()
	res, err := m.executor.ExecContext(ctx, sqlStr, args...)
	m.db.logSQL(sqlStr, time.Since(start), args...)
	return res, err
}

// tablesFor resolves kinds to registered metadata; no kinds means every
// registered kind.
func (m *Migrator) tablesFor(kinds []string) ([]*schema.Table, error) {
	if len(kinds) == 0 {
		return m.db.registry.All(), nil
	}
	out := make([]*schema.Table, 0, len(kinds))
	for _, kind := range kinds {
		t, ok := m.db.registry.Lookup(kind)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrNotRegistered, kind)
		}
		out = append(out, t)
	}
	return out, nil
}

// CreateTables creates the tables for the given kinds, or for every
// registered kind when none are named. Existing tables are left alone.
func (m *Migrator) CreateTables(ctx context.Context, kinds ...string) error {
	tables, err := m.tablesFor(kinds)
	if err != nil {
		return err
	}
	for _, t := range tables {
		if len(t.Columns) == 0 {
			return fmt.Errorf("%w: %s", ErrNoColumns, t.Kind)
		}
		if _, err := m.exec(ctx, buildCreateTableSQL(t)); err != nil {
			return fmt.Errorf("create %s: %w", t.Name, err)
		}
	}
	return nil
}

// Upgrade moves the database from oldVersion to newVersion by creating
// missing tables and adding missing columns for the given kinds. It is a
// no-op unless newVersion is ahead of oldVersion. Additions follow the
// reduced alter grammar: primary key and autoincrement markers are dropped,
// and the validator reports the resulting drift on key columns.
func (m *Migrator) Upgrade(ctx context.Context, oldVersion, newVersion int, kinds ...string) (*MigrationReport, error) {
	report := &MigrationReport{FromVersion: oldVersion, ToVersion: newVersion}
	if oldVersion >= newVersion {
		return report, nil
	}
	tables, err := m.tablesFor(kinds)
	if err != nil {
		return report, err
	}

	for _, t := range tables {
		if len(t.Columns) == 0 {
			return report, fmt.Errorf("%w: %s", ErrNoColumns, t.Kind)
		}
		exists, err := m.HasTable(ctx, t.Name)
		if err != nil {
			return report, err
		}
		if !exists {
			if _, err := m.exec(ctx, buildCreateTableSQL(t)); err != nil {
				return report, fmt.Errorf("create %s: %w", t.Name, err)
			}
			report.CreatedTables = append(report.CreatedTables, t.Name)
			continue
		}

		live, err := m.Columns(ctx, t.Name)
		if err != nil {
			return report, err
		}
		have := make(map[string]bool, len(live))
		for _, c := range live {
			have[c.Name] = true
		}

		for _, col := range t.Columns {
			if have[col.Name] {
				continue
			}
			qualified := t.Name + "." + col.Name
			if _, err := m.exec(ctx, buildAddColumnSQL(t.Name, col)); err != nil {
				// Someone else won the race to add it.
				if isDuplicateColumnErr(err) {
					report.SkippedColumns = append(report.SkippedColumns, qualified)
					continue
				}
				return report, fmt.Errorf("add column %s: %w", qualified, err)
			}
			report.AddedColumns = append(report.AddedColumns, qualified)
		}
	}
	return report, nil
}

// HasTable reports whether the named table exists.
func (m *Migrator) HasTable(ctx context.Context, name string) (bool, error) {
	var count int
	if err := m.executor.QueryRowContext(ctx, sqlHasTable, name).Scan(&count); err != nil {
		return false, err
	}
	return count > 0, nil
}

// Columns returns the live column layout of the named table.
func (m *Migrator) Columns(ctx context.Context, table string) ([]ColumnInfo, error) {
	rows, err := m.executor.QueryContext(ctx, tableInfoSQL(table))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ColumnInfo
	for rows.Next() {
		var (
			cid     int
			info    ColumnInfo
			notnull int
			pk      int
		)
		if err := rows.Scan(&cid, &info.Name, &info.Type, &notnull, &info.Default, &pk); err != nil {
			return nil, err
		}
		info.NotNull = notnull != 0
		info.PrimaryKey = pk != 0
		out = append(out, info)
	}
	return out, rows.Err()
}

// Version reads the schema version stamped on the database.
func (m *Migrator) Version(ctx context.Context) (int, error) {
	var v int
	err := m.executor.QueryRowContext(ctx, "PRAGMA user_version").Scan(&v)
	return v, err
}

// SetVersion stamps the schema version on the database. The pragma grammar
// takes no placeholders, so the value is inlined.
func (m *Migrator) SetVersion(ctx context.Context, v int) error {
	_, err := m.exec(ctx, fmt.Sprintf("PRAGMA user_version = %d", v))
	return err
}

// isDuplicateColumnErr matches the engine's report of an already existing
// column.
func isDuplicateColumnErr(err error) bool {
	return err != nil && strings.Contains(err.Error(), "duplicate column name")
}
