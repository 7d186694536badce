package core

import (
	"context"
	"database/sql"
	"time"

	"github.com/graveldb/gravel/schema"
)

// Executor defines the interface for executing SQL queries and commands.
// It is implemented by *sql.DB and by *Tx, so queries run identically inside
// and outside a transaction.
type Executor interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// scanRows materializes a result set into rows keyed by column name. Driver
// values are kept as scanned; key normalization happens where rows are
// matched, not here, so blob columns stay []byte.
func scanRows(rows *sql.Rows) ([]schema.Row, error) {
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var out []schema.Row
	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		row := make(schema.Row, len(columns))
		for i, name := range columns {
			row[name] = values[i]
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// normalizeKey collapses the integer and byte-string shapes drivers hand
// back so values compare equal across queries. Used wherever rows are
// matched to parents by key.
func normalizeKey(v any) any {
	switch x := v.(type) {
	case int:
		return int64(x)
	case int8:
		return int64(x)
	case int16:
		return int64(x)
	case int32:
		return int64(x)
	case uint:
		return int64(x)
	case uint8:
		return int64(x)
	case uint16:
		return int64(x)
	case uint32:
		return int64(x)
	case uint64:
		return int64(x)
	case float32:
		return float64(x)
	case []byte:
		return string(x)
	}
	return v
}

// toDriverValue coerces Go values into the canonical encodings the engine
// stores: times as UTC RFC 3339 text, bools as 0/1 integers. Everything
// else passes through for the driver to handle.
func toDriverValue(v any) any {
	switch x := v.(type) {
	case time.Time:
		return x.UTC().Format(time.RFC3339Nano)
	case *time.Time:
		if x == nil {
			return nil
		}
		return x.UTC().Format(time.RFC3339Nano)
	case bool:
		if x {
			return int64(1)
		}
		return int64(0)
	}
	return v
}
