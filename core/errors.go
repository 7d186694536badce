package core

import (
	"errors"
)

var (
	// ErrNotFound is returned when a query expects at least one record but none were found.
	ErrNotFound = errors.New("record not found")
	// ErrNotRegistered is returned when no table metadata is registered for the requested kind.
	ErrNotRegistered = errors.New("kind not registered")
	// ErrNoPrimaryKey is returned when an operation needs a primary key the table does not declare,
	// or the entity carries a null primary-key value.
	ErrNoPrimaryKey = errors.New("no primary key")
	// ErrEmptyValues is returned when a write operation receives no column values.
	ErrEmptyValues = errors.New("empty values")
	// ErrUnknownColumn is returned when a value map or select list names a column the table does not declare.
	ErrUnknownColumn = errors.New("unknown column")
	// ErrNoColumns is returned when table creation is requested for a kind with no declared columns.
	ErrNoColumns = errors.New("no columns declared")
	// ErrUnknownRelation marks a requested relation name the kind does not declare. Loads skip the name and record this in their results.
	ErrUnknownRelation = errors.New("unknown relation")
	// ErrIncompleteJoin reports a many-to-many relation whose join declaration or join row lacks required key fields.
	ErrIncompleteJoin = errors.New("incomplete join")
	// ErrUnsupportedDriver is returned when Open is asked for a driver this package does not speak.
	ErrUnsupportedDriver = errors.New("unsupported driver")
)
