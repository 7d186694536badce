// Package gravel is a small ORM core for one embedded sqlite database:
// explicit table metadata, a fluent query compiler, batch relation loading
// without per-parent queries, additive schema migration and live-schema
// validation.
//
// The root package re-exports the pieces applications touch. The heavy
// lifting lives in core and schema.
package gravel

import (
	"context"
	"fmt"

	"github.com/graveldb/gravel/core"
	"github.com/graveldb/gravel/schema"
)

// Re-export core types and functions
type (
	DB               = core.DB
	Tx               = core.Tx
	Query            = core.Query
	Options          = core.Options
	Clause           = core.Clause
	Executor         = core.Executor
	Loader           = core.Loader
	LoadResult       = core.LoadResult
	LoadFailure      = core.LoadFailure
	Migrator         = core.Migrator
	MigrationReport  = core.MigrationReport
	ColumnInfo       = core.ColumnInfo
	Validator        = core.Validator
	ValidationResult = core.ValidationResult
	ValidationError  = core.ValidationError
)

// Re-export schema metadata types
type (
	Registry     = schema.Registry
	Table        = schema.Table
	Column       = schema.Column
	ColumnType   = schema.ColumnType
	Row          = schema.Row
	Codec        = schema.Codec
	MapCodec     = schema.MapCodec
	Relationship = schema.Relationship
)

var (
	Open        = core.Open
	NewDB       = core.NewDB
	NewClause   = core.NewClause
	NewRegistry = schema.NewRegistry
	NewTable    = schema.NewTable

	// Column declaration
	Int   = schema.Int
	Float = schema.Float
	Text  = schema.Text
	Bytes = schema.Bytes
	Bool  = schema.Bool
	Time  = schema.Time

	// Relationship declaration
	BelongsTo  = schema.BelongsTo
	HasMany    = schema.HasMany
	ManyToMany = schema.ManyToMany
)

var (
	ErrNotFound          = core.ErrNotFound
	ErrNotRegistered     = core.ErrNotRegistered
	ErrNoPrimaryKey      = core.ErrNoPrimaryKey
	ErrEmptyValues       = core.ErrEmptyValues
	ErrUnknownColumn     = core.ErrUnknownColumn
	ErrNoColumns         = core.ErrNoColumns
	ErrUnknownRelation   = core.ErrUnknownRelation
	ErrIncompleteJoin    = core.ErrIncompleteJoin
	ErrUnsupportedDriver = core.ErrUnsupportedDriver
)

// All runs the query and returns every record asserted to T. A record of
// another type fails the whole call; mixed result sets mean the kind's
// codec and T disagree.
func All[T any](ctx context.Context, q *Query) ([]T, error) {
	records, err := q.Find(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]T, 0, len(records))
	for i, r := range records {
		v, ok := r.(T)
		if !ok {
			return nil, fmt.Errorf("gravel: record %d is %T, not %T", i, r, *new(T))
		}
		out = append(out, v)
	}
	return out, nil
}

// First runs the query and returns the first record asserted to T.
func First[T any](ctx context.Context, q *Query) (T, error) {
	var zero T
	r, err := q.First(ctx)
	if err != nil {
		return zero, err
	}
	v, ok := r.(T)
	if !ok {
		return zero, fmt.Errorf("gravel: record is %T, not %T", r, zero)
	}
	return v, nil
}

// Get fetches the record with the given primary key asserted to T.
func Get[T any](ctx context.Context, q *Query, key any) (T, error) {
	var zero T
	r, err := q.ByPK(ctx, key)
	if err != nil {
		return zero, err
	}
	v, ok := r.(T)
	if !ok {
		return zero, fmt.Errorf("gravel: record is %T, not %T", r, zero)
	}
	return v, nil
}
