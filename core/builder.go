package core

import (
	"fmt"
	"strings"
	"time"

	"github.com/graveldb/gravel/schema"
)

// Statement assembly for the embedded engine's grammar. Identifiers come
// from registered metadata and are backtick-quoted; values always travel as
// placeholder arguments.

const sqlHasTable = "SELECT count(*) FROM sqlite_master WHERE type='table' AND name = ?"

func quoteIdent(name string) string {
	return fmt.Sprintf("`%s`", name)
}

func quoteQualified(table, column string) string {
	return quoteIdent(table) + "." + quoteIdent(column)
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	var b strings.Builder
	for i := 0; i < n; i++ {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteByte('?')
	}
	return b.String()
}

func quoteAll(columns []string) []string {
	out := make([]string, len(columns))
	for i, c := range columns {
		out[i] = quoteIdent(c)
	}
	return out
}

// buildSelectSQL renders a SELECT over one table. where and order arrive
// pre-rendered; limit and offset are emitted when positive. The grammar
// rejects OFFSET without LIMIT, so a lone offset rides on the sentinel
// LIMIT -1.
func buildSelectSQL(table string, columns []string, where, order string, limit, offset int) string {
	var b strings.Builder
	b.WriteString("SELECT ")
	if len(columns) == 0 {
		b.WriteString("*")
	} else {
		b.WriteString(strings.Join(quoteAll(columns), ", "))
	}
	b.WriteString(" FROM ")
	b.WriteString(quoteIdent(table))
	if where != "" {
		b.WriteString(" WHERE ")
		b.WriteString(where)
	}
	if order != "" {
		b.WriteString(" ORDER BY ")
		b.WriteString(order)
	}
	if limit > 0 {
		fmt.Fprintf(&b, " LIMIT %d", limit)
		if offset > 0 {
			fmt.Fprintf(&b, " OFFSET %d", offset)
		}
	} else if offset > 0 {
		fmt.Fprintf(&b, " LIMIT -1 OFFSET %d", offset)
	}
	return b.String()
}

func buildCountSQL(table, where string) string {
	var b strings.Builder
	b.WriteString("SELECT count(*) FROM ")
	b.WriteString(quoteIdent(table))
	if where != "" {
		b.WriteString(" WHERE ")
		b.WriteString(where)
	}
	return b.String()
}

func buildInsertSQL(table string, columns []string) string {
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		quoteIdent(table),
		strings.Join(quoteAll(columns), ", "),
		placeholders(len(columns)),
	)
}

func buildUpdateSQL(table string, columns []string, where string) string {
	sets := make([]string, len(columns))
	for i, c := range columns {
		sets[i] = quoteIdent(c) + " = ?"
	}
	var b strings.Builder
	b.WriteString("UPDATE ")
	b.WriteString(quoteIdent(table))
	b.WriteString(" SET ")
	b.WriteString(strings.Join(sets, ", "))
	if where != "" {
		b.WriteString(" WHERE ")
		b.WriteString(where)
	}
	return b.String()
}

func buildDeleteSQL(table, where string) string {
	var b strings.Builder
	b.WriteString("DELETE FROM ")
	b.WriteString(quoteIdent(table))
	if where != "" {
		b.WriteString(" WHERE ")
		b.WriteString(where)
	}
	return b.String()
}

// columnDDL renders one column definition for CREATE TABLE.
func columnDDL(c *schema.Column) string {
	var b strings.Builder
	b.WriteString(quoteIdent(c.Name))
	b.WriteByte(' ')
	b.WriteString(c.Type.SQL())
	if c.IsPrimaryKey {
		b.WriteString(" PRIMARY KEY")
		if c.IsAutoIncrement && c.Type == schema.TypeInteger {
			b.WriteString(" AUTOINCREMENT")
		}
	} else if !c.IsNullable {
		b.WriteString(" NOT NULL")
	}
	if c.DefaultValue != nil {
		b.WriteString(" DEFAULT ")
		b.WriteString(defaultLiteral(c.DefaultValue))
	}
	return b.String()
}

func buildCreateTableSQL(t *schema.Table) string {
	columns := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		columns[i] = columnDDL(c)
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)",
		quoteIdent(t.Name), strings.Join(columns, ", "))
}

// buildAddColumnSQL renders the reduced ALTER TABLE grammar: no primary key
// or autoincrement, and NOT NULL only together with a default the engine can
// backfill existing rows with.
func buildAddColumnSQL(table string, c *schema.Column) string {
	var b strings.Builder
	fmt.Fprintf(&b, "ALTER TABLE %s ADD COLUMN %s %s",
		quoteIdent(table), quoteIdent(c.Name), c.Type.SQL())
	if c.DefaultValue != nil {
		if !c.IsNullable {
			b.WriteString(" NOT NULL")
		}
		b.WriteString(" DEFAULT ")
		b.WriteString(defaultLiteral(c.DefaultValue))
	}
	return b.String()
}

func tableInfoSQL(table string) string {
	return fmt.Sprintf("PRAGMA table_info(%s)", quoteIdent(table))
}

func defaultLiteral(v any) string {
	switch x := v.(type) {
	case nil:
		return "NULL"
	case bool:
		if x {
			return "1"
		}
		return "0"
	case string:
		return "'" + strings.ReplaceAll(x, "'", "''") + "'"
	case time.Time:
		return "'" + x.UTC().Format(time.RFC3339Nano) + "'"
	default:
		return fmt.Sprintf("%v", x)
	}
}
