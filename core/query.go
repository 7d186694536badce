package core

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/graveldb/gravel/schema"
)

// Query is the chainable query builder and executor for one entity kind.
// Configuration mistakes made while chaining are remembered and reported by
// whichever terminal operation runs, so chains never need mid-flight error
// checks.
type Query struct {
	db       *DB
	executor Executor
	table    *schema.Table

	clause     *Clause
	selectCols []string
	orderCol   string
	orderDesc  bool
	limit      int
	offset     int
	includes   []string
	strict     bool

	err error
}

func newQuery(db *DB, executor Executor, kind string) *Query {
	q := &Query{
		db:       db,
		executor: executor,
		clause:   NewClause(),
		strict:   db.strict,
	}
	t, ok := db.registry.Lookup(kind)
	if !ok {
		q.err = fmt.Errorf("%w: %s", ErrNotRegistered, kind)
		return q
	}
	q.table = t
	return q
}

func (q *Query) setErr(err error) {
	if q.err == nil {
		q.err = err
	}
}

// Where adds the conditions accumulated in c, ANDed with anything added
// before.
func (q *Query) Where(c *Clause) *Query {
	if !c.Empty() {
		q.clause.And(c)
	}
	return q
}

// WhereRaw adds a hand-written condition fragment.
func (q *Query) WhereRaw(cond string, args ...any) *Query {
	q.clause.Raw(cond, args...)
	return q
}

// Select narrows the projection to the given declared columns.
func (q *Query) Select(columns ...string) *Query {
	if q.table == nil {
		return q
	}
	for _, col := range columns {
		if _, ok := q.table.Column(col); !ok {
			q.setErr(fmt.Errorf("%w: %s.%s", ErrUnknownColumn, q.table.Kind, col))
			return q
		}
	}
	q.selectCols = append(q.selectCols, columns...)
	return q
}

// OrderBy sorts results ascending by the given declared column.
func (q *Query) OrderBy(column string) *Query {
	return q.orderBy(column, false)
}

// OrderByDesc sorts results descending by the given declared column.
func (q *Query) OrderByDesc(column string) *Query {
	return q.orderBy(column, true)
}

func (q *Query) orderBy(column string, desc bool) *Query {
	if q.table == nil {
		return q
	}
	if _, ok := q.table.Column(column); !ok {
		q.setErr(fmt.Errorf("%w: %s.%s", ErrUnknownColumn, q.table.Kind, column))
		return q
	}
	q.orderCol = column
	q.orderDesc = desc
	return q
}

// Limit caps the number of returned rows.
func (q *Query) Limit(n int) *Query {
	q.limit = n
	return q
}

// Offset skips the first n matching rows.
func (q *Query) Offset(n int) *Query {
	q.offset = n
	return q
}

// Include requests eager loading of the named relationships after the next
// read operation. Duplicate names are loaded once; names that match no
// declared relationship are skipped when the load runs.
func (q *Query) Include(relations ...string) *Query {
	for _, name := range relations {
		dup := false
		for _, existing := range q.includes {
			if existing == name {
				dup = true
				break
			}
		}
		if !dup {
			q.includes = append(q.includes, name)
		}
	}
	return q
}

// WithStrictRelations makes this query fail on undecodable rows and
// incomplete joins instead of skipping them, in the primary result set and
// in eager loading alike.
func (q *Query) WithStrictRelations() *Query {
	q.strict = true
	return q
}

func (q *Query) orderExpr() string {
	if q.orderCol == "" {
		return ""
	}
	expr := quoteIdent(q.orderCol)
	if q.orderDesc {
		expr += " DESC"
	}
	return expr
}

func (q *Query) execContext(ctx context.Context, sqlStr string, args []any) (sql.Result, error) {
	start := time.Now()
	res, err := q.executor.ExecContext(ctx, sqlStr, args...)
	q.db.logSQL(sqlStr, time.Since(start), args...)
	return res, err
}

func (q *Query) queryRows(ctx context.Context, sqlStr string, args []any) ([]schema.Row, error) {
	start := time.Now()
	rows, err := q.executor.QueryContext(ctx, sqlStr, args...)
	q.db.logSQL(sqlStr, time.Since(start), args...)
	if err != nil {
		return nil, err
	}
	return scanRows(rows)
}

// Find retrieves every record matching the query, decoded through the
// kind's codec, with requested relationships loaded. Rows the codec refuses
// to decode are dropped with a warning; under the strict policy they fail
// the call instead.
func (q *Query) Find(ctx context.Context) ([]any, error) {
	if q.err != nil {
		return nil, q.err
	}
	t := q.table

	columns := q.selectCols
	if len(columns) == 0 {
		columns = t.ColumnNames()
	}
	where, args := q.clause.Build()
	sqlStr := buildSelectSQL(t.Name, columns, where, q.orderExpr(), q.limit, q.offset)

	rows, err := q.queryRows(ctx, sqlStr, args)
	if err != nil {
		return nil, err
	}

	entities := make([]any, 0, len(rows))
	for i, row := range rows {
		e, err := t.Codec.DecodeRow(row)
		if err != nil {
			if q.strict {
				return nil, fmt.Errorf("decode %s row %d: %w", t.Kind, i, err)
			}
			q.db.warn("find %s: dropping undecodable row: %v", t.Kind, err)
			continue
		}
		entities = append(entities, e)
	}

	if len(q.includes) > 0 && len(entities) > 0 {
		l := &Loader{db: q.db, executor: q.executor, strict: q.strict}
		if _, err := l.Load(ctx, t, entities, q.includes); err != nil {
			return nil, err
		}
	}
	return entities, nil
}

// First retrieves the first record matching the query, or ErrNotFound.
func (q *Query) First(ctx context.Context) (any, error) {
	if q.err != nil {
		return nil, q.err
	}
	q.limit = 1
	entities, err := q.Find(ctx)
	if err != nil {
		return nil, err
	}
	if len(entities) == 0 {
		return nil, ErrNotFound
	}
	return entities[0], nil
}

// ByPK retrieves the record with the given primary key. Conditions added
// earlier in the chain are replaced; requested relationships still load.
func (q *Query) ByPK(ctx context.Context, key any) (any, error) {
	if q.err != nil {
		return nil, q.err
	}
	t := q.table
	if t.PrimaryKey == "" {
		return nil, fmt.Errorf("%w: %s", ErrNoPrimaryKey, t.Kind)
	}
	q.clause = NewClause().Eq(t.PrimaryKey, toDriverValue(key))
	q.offset = 0
	return q.First(ctx)
}

// Count returns the number of records matching the conditions. Ordering,
// limit and offset do not apply.
func (q *Query) Count(ctx context.Context) (int64, error) {
	if q.err != nil {
		return 0, q.err
	}
	where, args := q.clause.Build()
	sqlStr := buildCountSQL(q.table.Name, where)

	var count int64
	start := time.Now()
	err := q.executor.QueryRowContext(ctx, sqlStr, args...).Scan(&count)
	q.db.logSQL(sqlStr, time.Since(start), args...)
	return count, err
}

// Delete removes every record matching the conditions and returns how many
// rows went away.
func (q *Query) Delete(ctx context.Context) (int64, error) {
	if q.err != nil {
		return 0, q.err
	}
	where, args := q.clause.Build()
	res, err := q.execContext(ctx, buildDeleteSQL(q.table.Name, where), args)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// isZeroKey reports whether a supplied key value counts as absent, so the
// engine assigns one.
func isZeroKey(v any) bool {
	switch x := normalizeKey(v).(type) {
	case nil:
		return true
	case string:
		return x == ""
	case int64:
		return x == 0
	case float64:
		return x == 0
	}
	return false
}

// insertRow validates, coerces and inserts one row of values. It returns
// the engine-assigned row id and the coerced values that were written.
func (q *Query) insertRow(ctx context.Context, values schema.Row) (int64, schema.Row, error) {
	t := q.table
	if len(values) == 0 {
		return 0, nil, ErrEmptyValues
	}

	pk, hasPK := t.PKColumn()
	insert := make(schema.Row, len(values))
	for name, v := range values {
		col, ok := t.Column(name)
		if !ok {
			return 0, nil, fmt.Errorf("%w: %s.%s", ErrUnknownColumn, t.Kind, name)
		}
		// Omitted nullable columns let declared defaults apply.
		if v == nil && col.IsNullable {
			continue
		}
		// Auto keys are always engine-assigned, supplied or not.
		if hasPK && name == pk.Name && col.IsAutoIncrement {
			continue
		}
		insert[name] = toDriverValue(v)
	}
	if len(insert) == 0 {
		return 0, nil, ErrEmptyValues
	}

	columns := make([]string, 0, len(insert))
	args := make([]any, 0, len(insert))
	for _, c := range t.Columns {
		if v, ok := insert[c.Name]; ok {
			columns = append(columns, c.Name)
			args = append(args, v)
		}
	}

	res, err := q.execContext(ctx, buildInsertSQL(t.Name, columns), args)
	if err != nil {
		return 0, nil, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, nil, err
	}
	return id, insert, nil
}

// Create inserts the given column values and returns the stored record,
// refetched so engine-assigned keys and defaults are visible. When the key
// cannot be known after insert the record is rebuilt from the written
// values instead.
func (q *Query) Create(ctx context.Context, values schema.Row) (any, error) {
	if q.err != nil {
		return nil, q.err
	}
	id, inserted, err := q.insertRow(ctx, values)
	if err != nil {
		return nil, err
	}

	t := q.table
	if pk, ok := t.PKColumn(); ok {
		if key, supplied := inserted[pk.Name]; supplied {
			return q.refetch(ctx, key)
		}
		// The engine's returned row id aliases integer primary keys only.
		if pk.Type == schema.TypeInteger {
			return q.refetch(ctx, id)
		}
	}
	return t.Codec.DecodeRow(inserted)
}

func (q *Query) refetch(ctx context.Context, key any) (any, error) {
	return newQuery(q.db, q.executor, q.table.Kind).ByPK(ctx, key)
}

// Insert encodes the entity through the kind's codec and inserts it,
// returning the engine-assigned row id.
func (q *Query) Insert(ctx context.Context, entity any) (int64, error) {
	if q.err != nil {
		return 0, q.err
	}
	row, err := q.table.Codec.EncodeRow(entity)
	if err != nil {
		return 0, fmt.Errorf("encode %s: %w", q.table.Kind, err)
	}
	id, _, err := q.insertRow(ctx, row)
	return id, err
}

// Update writes the entity's current column values to the row identified by
// its primary key and returns the number of affected rows. The key itself
// is never part of the SET list.
func (q *Query) Update(ctx context.Context, entity any) (int64, error) {
	if q.err != nil {
		return 0, q.err
	}
	t := q.table
	row, err := t.Codec.EncodeRow(entity)
	if err != nil {
		return 0, fmt.Errorf("encode %s: %w", t.Kind, err)
	}

	pk, ok := t.PKColumn()
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrNoPrimaryKey, t.Kind)
	}
	key, ok := row[pk.Name]
	if !ok || isZeroKey(key) {
		return 0, fmt.Errorf("%w: %s primary key is null, use Insert for new records", ErrNoPrimaryKey, t.Kind)
	}

	for name := range row {
		if _, ok := t.Column(name); !ok {
			return 0, fmt.Errorf("%w: %s.%s", ErrUnknownColumn, t.Kind, name)
		}
	}

	columns := make([]string, 0, len(row))
	args := make([]any, 0, len(row)+1)
	for _, c := range t.Columns {
		if c.Name == pk.Name {
			continue
		}
		if v, ok := row[c.Name]; ok {
			columns = append(columns, c.Name)
			args = append(args, toDriverValue(v))
		}
	}
	if len(columns) == 0 {
		return 0, ErrEmptyValues
	}
	args = append(args, toDriverValue(key))

	where := quoteIdent(pk.Name) + " = ?"
	res, err := q.execContext(ctx, buildUpdateSQL(t.Name, columns, where), args)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// UpdateValues writes the given column values to every record matching the
// conditions. Without conditions it updates the whole table, which is
// logged as a warning before running.
func (q *Query) UpdateValues(ctx context.Context, values schema.Row) (int64, error) {
	if q.err != nil {
		return 0, q.err
	}
	if len(values) == 0 {
		return 0, ErrEmptyValues
	}
	t := q.table

	for name := range values {
		if _, ok := t.Column(name); !ok {
			return 0, fmt.Errorf("%w: %s.%s", ErrUnknownColumn, t.Kind, name)
		}
	}

	columns := make([]string, 0, len(values))
	args := make([]any, 0, len(values))
	for _, c := range t.Columns {
		if v, ok := values[c.Name]; ok {
			columns = append(columns, c.Name)
			args = append(args, toDriverValue(v))
		}
	}

	where, wargs := q.clause.Build()
	if where == "" {
		q.db.warn("update on %s without conditions affects every row", t.Name)
	}
	args = append(args, wargs...)

	res, err := q.execContext(ctx, buildUpdateSQL(t.Name, columns, where), args)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
