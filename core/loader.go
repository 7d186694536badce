package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/graveldb/gravel/schema"
)

// loaderParentTag is the alias under which join queries carry each row's
// owning parent key.
const loaderParentTag = "__gravel_parent"

// LoadFailure records one record or join row that could not be resolved.
// Row holds the offending database row when the failure is row-scoped.
type LoadFailure struct {
	Reason error
	Row    schema.Row
}

// LoadResult reports the outcome of loading one relationship across the
// whole parent batch.
type LoadResult struct {
	Relation string
	// Loaded counts records handed to parents.
	Loaded int
	// Failures lists what was skipped, or what aborted the load under
	// strict policy.
	Failures []LoadFailure
}

// Loader resolves declared relationships for batches of parents with one
// query per relationship, regardless of batch size.
type Loader struct {
	db       *DB
	executor Executor
	strict   bool
}

// WithStrict overrides the fail-versus-skip policy for this loader.
func (l *Loader) WithStrict(v bool) *Loader {
	l.strict = v
	return l
}

// Load resolves the named relationships for every parent. Parents must all
// belong to the kind described by t. Unknown relation names are skipped and
// reported in the results, never errors; query failures abort the run;
// row-level problems are skipped and reported unless the loader is strict.
func (l *Loader) Load(ctx context.Context, t *schema.Table, parents []any, names []string) ([]LoadResult, error) {
	if len(parents) == 0 || len(names) == 0 {
		return nil, nil
	}

	results := make([]LoadResult, 0, len(names))
	for _, name := range names {
		rel, ok := t.Relationships[name]
		if !ok {
			l.db.warn("relation load: skipping unknown relation %s.%s", t.Kind, name)
			results = append(results, LoadResult{
				Relation: name,
				Failures: []LoadFailure{{Reason: fmt.Errorf("%w: %s.%s", ErrUnknownRelation, t.Kind, name)}},
			})
			continue
		}
		target, ok := l.db.registry.Lookup(rel.Target)
		if !ok {
			return results, fmt.Errorf("%w: %s", ErrNotRegistered, rel.Target)
		}

		var (
			res LoadResult
			err error
		)
		switch rel.Kind {
		case schema.RelationManyToOne:
			res, err = l.loadManyToOne(ctx, t, rel, target, parents)
		case schema.RelationOneToMany:
			res, err = l.loadOneToMany(ctx, t, rel, target, parents)
		case schema.RelationManyToMany:
			res, err = l.loadManyToMany(ctx, t, rel, target, parents)
		default:
			err = fmt.Errorf("%s.%s: unsupported relationship kind %s", t.Kind, name, rel.Kind)
		}
		res.Relation = name
		if err != nil {
			return results, err
		}
		results = append(results, res)
	}
	return results, nil
}

func (l *Loader) queryRows(ctx context.Context, sqlStr string, args []any) ([]schema.Row, error) {
	start := time.Now()
	rows, err := l.executor.QueryContext(ctx, sqlStr, args...)
	l.db.logSQL(sqlStr, time.Since(start), args...)
	if err != nil {
		return nil, err
	}
	return scanRows(rows)
}

// parentKeys extracts the named column from every parent through the kind's
// codec. The returned slice is aligned with parents; a nil entry means the
// parent has no usable key. Encode failures are skipped and recorded, or
// abort under strict policy.
func (l *Loader) parentKeys(t *schema.Table, column string, parents []any, res *LoadResult) ([]any, error) {
	keys := make([]any, len(parents))
	for i, p := range parents {
		row, err := t.Codec.EncodeRow(p)
		if err != nil {
			reason := fmt.Errorf("encode %s parent: %w", t.Kind, err)
			res.Failures = append(res.Failures, LoadFailure{Reason: reason})
			if l.strict {
				return nil, reason
			}
			l.db.warn("relation load: skipping %s parent: %v", t.Kind, err)
			continue
		}
		keys[i] = normalizeKey(row[column])
	}
	return keys, nil
}

func distinctKeys(keys []any) []any {
	seen := make(map[any]bool, len(keys))
	out := make([]any, 0, len(keys))
	for _, k := range keys {
		if k == nil || seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, k)
	}
	return out
}

type loadedRecord struct {
	key    any
	entity any
}

// fetchTargets selects every target row whose column matches one of the
// keys, in a single query, and decodes them through the target's codec.
func (l *Loader) fetchTargets(ctx context.Context, target *schema.Table, column string, keys []any, res *LoadResult) ([]loadedRecord, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	where, args := NewClause().In(column, keys...).Build()
	sqlStr := buildSelectSQL(target.Name, target.ColumnNames(), where, "", 0, 0)

	rows, err := l.queryRows(ctx, sqlStr, args)
	if err != nil {
		return nil, err
	}

	out := make([]loadedRecord, 0, len(rows))
	for _, row := range rows {
		entity, err := target.Codec.DecodeRow(row)
		if err != nil {
			reason := fmt.Errorf("decode %s: %w", target.Kind, err)
			res.Failures = append(res.Failures, LoadFailure{Reason: reason, Row: row})
			if l.strict {
				return nil, reason
			}
			l.db.warn("relation load: dropping undecodable %s row: %v", target.Kind, err)
			continue
		}
		out = append(out, loadedRecord{key: normalizeKey(row[column]), entity: entity})
	}
	return out, nil
}

// loadManyToOne resolves the parents' foreign keys against the target's
// primary key. Parents whose key is null or dangling keep an absent slot.
func (l *Loader) loadManyToOne(ctx context.Context, t *schema.Table, rel *schema.Relationship, target *schema.Table, parents []any) (LoadResult, error) {
	var res LoadResult
	if target.PrimaryKey == "" {
		return res, fmt.Errorf("%w: %s", ErrNoPrimaryKey, target.Kind)
	}

	keys, err := l.parentKeys(t, rel.ForeignKey, parents, &res)
	if err != nil {
		return res, err
	}
	records, err := l.fetchTargets(ctx, target, target.PrimaryKey, distinctKeys(keys), &res)
	if err != nil {
		return res, err
	}

	byKey := make(map[any]any, len(records))
	for _, r := range records {
		byKey[r.key] = r.entity
	}
	for i, p := range parents {
		if keys[i] == nil {
			continue
		}
		child, ok := byKey[keys[i]]
		if !ok {
			continue
		}
		if rel.Assign != nil {
			rel.Assign(p, []any{child})
		}
		res.Loaded++
	}
	return res, nil
}

// loadOneToMany resolves target rows whose foreign key points back at the
// parents. Every parent with a key receives a slot, empty when nothing
// matched.
func (l *Loader) loadOneToMany(ctx context.Context, t *schema.Table, rel *schema.Relationship, target *schema.Table, parents []any) (LoadResult, error) {
	var res LoadResult
	if t.PrimaryKey == "" {
		return res, fmt.Errorf("%w: %s", ErrNoPrimaryKey, t.Kind)
	}

	keys, err := l.parentKeys(t, t.PrimaryKey, parents, &res)
	if err != nil {
		return res, err
	}
	records, err := l.fetchTargets(ctx, target, rel.ForeignKey, distinctKeys(keys), &res)
	if err != nil {
		return res, err
	}

	groups := make(map[any][]any, len(records))
	for _, r := range records {
		groups[r.key] = append(groups[r.key], r.entity)
	}
	for i, p := range parents {
		if keys[i] == nil {
			continue
		}
		children := groups[keys[i]]
		if rel.Assign != nil {
			rel.Assign(p, children)
		}
		res.Loaded += len(children)
	}
	return res, nil
}

// loadManyToMany walks the join table once, carrying each target row's
// owning parent key under a reserved alias. The target side rides on a LEFT
// JOIN so join rows pointing at nothing stay visible and fall under the
// fail-versus-skip policy. A relation missing any of its three join fields
// falls under the same policy before any SQL is assembled.
func (l *Loader) loadManyToMany(ctx context.Context, t *schema.Table, rel *schema.Relationship, target *schema.Table, parents []any) (LoadResult, error) {
	var res LoadResult
	if rel.JoinTable == "" || rel.SourceJoinKey == "" || rel.TargetJoinKey == "" {
		reason := fmt.Errorf("%w: %s relation to %s lacks join table or keys", ErrIncompleteJoin, t.Kind, rel.Target)
		res.Failures = append(res.Failures, LoadFailure{Reason: reason})
		if l.strict {
			return res, reason
		}
		l.db.warn("relation load: %v", reason)
		return res, nil
	}
	if t.PrimaryKey == "" {
		return res, fmt.Errorf("%w: %s", ErrNoPrimaryKey, t.Kind)
	}
	if target.PrimaryKey == "" {
		return res, fmt.Errorf("%w: %s", ErrNoPrimaryKey, target.Kind)
	}

	keys, err := l.parentKeys(t, t.PrimaryKey, parents, &res)
	if err != nil {
		return res, err
	}
	distinct := distinctKeys(keys)

	groups := make(map[any][]any)
	if len(distinct) > 0 {
		selectCols := make([]string, 0, len(target.Columns)+1)
		for _, c := range target.Columns {
			selectCols = append(selectCols, quoteQualified(target.Name, c.Name))
		}
		selectCols = append(selectCols,
			quoteQualified(rel.JoinTable, rel.SourceJoinKey)+" AS "+quoteIdent(loaderParentTag))

		var b strings.Builder
		b.WriteString("SELECT ")
		b.WriteString(strings.Join(selectCols, ", "))
		b.WriteString(" FROM ")
		b.WriteString(quoteIdent(rel.JoinTable))
		b.WriteString(" LEFT JOIN ")
		b.WriteString(quoteIdent(target.Name))
		b.WriteString(" ON ")
		b.WriteString(quoteQualified(target.Name, target.PrimaryKey))
		b.WriteString(" = ")
		b.WriteString(quoteQualified(rel.JoinTable, rel.TargetJoinKey))
		b.WriteString(" WHERE ")
		b.WriteString(quoteQualified(rel.JoinTable, rel.SourceJoinKey))
		b.WriteString(" IN (")
		b.WriteString(placeholders(len(distinct)))
		b.WriteString(")")

		rows, err := l.queryRows(ctx, b.String(), distinct)
		if err != nil {
			return res, err
		}

		for _, row := range rows {
			tag := normalizeKey(row[loaderParentTag])
			delete(row, loaderParentTag)
			if tag == nil || row[target.PrimaryKey] == nil {
				res.Failures = append(res.Failures, LoadFailure{Reason: ErrIncompleteJoin, Row: row})
				if l.strict {
					return res, fmt.Errorf("%w: %s", ErrIncompleteJoin, rel.JoinTable)
				}
				l.db.warn("relation load: skipping incomplete %s join row", rel.JoinTable)
				continue
			}
			entity, err := target.Codec.DecodeRow(row)
			if err != nil {
				reason := fmt.Errorf("decode %s: %w", target.Kind, err)
				res.Failures = append(res.Failures, LoadFailure{Reason: reason, Row: row})
				if l.strict {
					return res, reason
				}
				l.db.warn("relation load: dropping undecodable %s row: %v", target.Kind, err)
				continue
			}
			groups[tag] = append(groups[tag], entity)
		}
	}

	for i, p := range parents {
		if keys[i] == nil {
			continue
		}
		children := groups[keys[i]]
		if rel.Assign != nil {
			rel.Assign(p, children)
		}
		res.Loaded += len(children)
	}
	return res, nil
}
