package core

import (
	"context"
	"fmt"
	"strings"

	"github.com/graveldb/gravel/schema"
)

// ValidationError describes one mismatch between registered metadata and
// the live database schema.
type ValidationError struct {
	Table   string
	Column  string
	Message string
}

func (e ValidationError) Error() string {
	if e.Column == "" {
		return fmt.Sprintf("table %s: %s", e.Table, e.Message)
	}
	return fmt.Sprintf("table %s, column %s: %s", e.Table, e.Column, e.Message)
}

// ValidationResult separates mismatches that break the mapping from drift
// that is merely worth knowing about.
type ValidationResult struct {
	Errors   []ValidationError
	Warnings []ValidationError
}

// Valid reports whether the mapping is usable. Warnings alone do not make
// it invalid.
func (r *ValidationResult) Valid() bool {
	return len(r.Errors) == 0
}

func (r *ValidationResult) errorf(table, column, format string, args ...any) {
	r.Errors = append(r.Errors, ValidationError{Table: table, Column: column, Message: fmt.Sprintf(format, args...)})
}

func (r *ValidationResult) warnf(table, column, format string, args ...any) {
	r.Warnings = append(r.Warnings, ValidationError{Table: table, Column: column, Message: fmt.Sprintf(format, args...)})
}

// Validator checks registered metadata against the live database schema.
type Validator struct {
	db       *DB
	executor Executor
}

// ValidateSchema compares the metadata of the given kinds, or of every
// registered kind when none are named, with the live schema. Declared
// tables and columns missing from the database are errors; undeclared live
// columns and storage class drift are warnings. The returned error covers
// lookup and introspection failures only.
func (v *Validator) ValidateSchema(ctx context.Context, kinds ...string) (*ValidationResult, error) {
	m := &Migrator{db: v.db, executor: v.executor}
	tables, err := m.tablesFor(kinds)
	if err != nil {
		return nil, err
	}

	result := &ValidationResult{}
	for _, t := range tables {
		exists, err := m.HasTable(ctx, t.Name)
		if err != nil {
			return nil, err
		}
		if !exists {
			result.errorf(t.Name, "", "table missing from database")
			continue
		}

		live, err := m.Columns(ctx, t.Name)
		if err != nil {
			return nil, err
		}
		liveByName := make(map[string]ColumnInfo, len(live))
		for _, c := range live {
			liveByName[c.Name] = c
		}

		for _, col := range t.Columns {
			info, ok := liveByName[col.Name]
			if !ok {
				result.errorf(t.Name, col.Name, "declared column missing from database")
				continue
			}
			if !affinityCompatible(col.Type, info.Type) {
				result.warnf(t.Name, col.Name, "declared %s but stored as %s", col.Type, info.Type)
			}
			if col.IsPrimaryKey && !info.PrimaryKey {
				result.warnf(t.Name, col.Name, "declared as primary key but not one in the database")
			}
			if !col.IsNullable && !col.IsPrimaryKey && !info.NotNull {
				result.warnf(t.Name, col.Name, "declared NOT NULL but nullable in the database")
			}
		}

		declared := make(map[string]bool, len(t.Columns))
		for _, c := range t.Columns {
			declared[c.Name] = true
		}
		for _, c := range live {
			if !declared[c.Name] {
				result.warnf(t.Name, c.Name, "column exists in the database but is not declared")
			}
		}
	}
	return result, nil
}

// affinityCompatible applies the engine's type affinity rules, in their
// documented order, to decide whether a live column stores the declared
// class. Types that fall through to numeric affinity are accepted for both
// numeric classes.
func affinityCompatible(declared schema.ColumnType, liveType string) bool {
	u := strings.ToUpper(liveType)
	switch {
	case strings.Contains(u, "INT"):
		return declared == schema.TypeInteger
	case strings.Contains(u, "CHAR"), strings.Contains(u, "CLOB"), strings.Contains(u, "TEXT"):
		return declared == schema.TypeText
	case u == "" || strings.Contains(u, "BLOB"):
		return declared == schema.TypeBlob
	case strings.Contains(u, "REAL"), strings.Contains(u, "FLOA"), strings.Contains(u, "DOUB"):
		return declared == schema.TypeReal
	}
	return declared == schema.TypeInteger || declared == schema.TypeReal
}
