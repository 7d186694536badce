// Package schema holds the declared metadata that maps entity kinds onto
// tables of the embedded database: column definitions, primary keys,
// relationships and the row codec registered for each kind.
//
// Metadata is handed in fully resolved by the application at startup; nothing
// in this package inspects struct tags or performs discovery.
package schema

import (
	"fmt"
)

// ColumnType is the storage class a column is declared with. The embedded
// engine only distinguishes these four classes.
type ColumnType int

const (
	TypeInteger ColumnType = iota
	TypeReal
	TypeText
	TypeBlob
)

// SQL returns the type name used in DDL.
func (t ColumnType) SQL() string {
	switch t {
	case TypeInteger:
		return "INTEGER"
	case TypeReal:
		return "REAL"
	case TypeText:
		return "TEXT"
	case TypeBlob:
		return "BLOB"
	}
	return "TEXT"
}

func (t ColumnType) String() string { return t.SQL() }

// Column describes one declared column.
type Column struct {
	Name            string
	Type            ColumnType
	IsPrimaryKey    bool
	IsAutoIncrement bool
	IsNullable      bool
	DefaultValue    any
}

// Int declares an INTEGER column.
func Int(name string) *Column { return &Column{Name: name, Type: TypeInteger} }

// Float declares a REAL column.
func Float(name string) *Column { return &Column{Name: name, Type: TypeReal} }

// Text declares a TEXT column.
func Text(name string) *Column { return &Column{Name: name, Type: TypeText} }

// Bytes declares a BLOB column.
func Bytes(name string) *Column { return &Column{Name: name, Type: TypeBlob} }

// Bool declares an INTEGER column holding 0/1. Query operations coerce Go
// bools into that encoding on write.
func Bool(name string) *Column { return &Column{Name: name, Type: TypeInteger} }

// Time declares a TEXT column holding the canonical UTC RFC 3339 encoding
// that query operations produce for time.Time values.
func Time(name string) *Column { return &Column{Name: name, Type: TypeText} }

// PrimaryKey marks the column as the table's primary key.
func (c *Column) PrimaryKey() *Column {
	c.IsPrimaryKey = true
	return c
}

// AutoIncrement marks the column as auto-incrementing. Only meaningful on an
// integer primary key.
func (c *Column) AutoIncrement() *Column {
	c.IsAutoIncrement = true
	return c
}

// Nullable allows NULL values in the column.
func (c *Column) Nullable() *Column {
	c.IsNullable = true
	return c
}

// Default declares the value the database fills in when the column is
// omitted on insert.
func (c *Column) Default(v any) *Column {
	c.DefaultValue = v
	return c
}

// Row is the shape rows cross the driver boundary in: column name to value.
type Row map[string]any

// Clone returns a shallow copy of the row.
func (r Row) Clone() Row {
	out := make(Row, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Codec converts between database rows and entity values. Implement it once
// per entity kind and register it alongside the kind's table metadata.
type Codec interface {
	// DecodeRow builds an entity value from a database row.
	DecodeRow(row Row) (any, error)
	// EncodeRow extracts the column values from an entity value.
	EncodeRow(entity any) (Row, error)
}

// MapCodec treats rows themselves as entity values. It serves consumers that
// work on dynamically declared entities, such as administrative browsers and
// the gravel CLI, where no Go struct exists per kind.
type MapCodec struct{}

func (MapCodec) DecodeRow(row Row) (any, error) { return row, nil }

func (MapCodec) EncodeRow(entity any) (Row, error) {
	switch v := entity.(type) {
	case Row:
		return v, nil
	case map[string]any:
		return Row(v), nil
	}
	return nil, fmt.Errorf("schema: MapCodec cannot encode %T", entity)
}

// Table is the declared metadata for one entity kind.
type Table struct {
	// Kind identifies the entity kind the metadata belongs to. The registry
	// is keyed by it.
	Kind string
	// Name is the table the kind maps onto.
	Name string
	// Columns in declared order. Order is preserved in generated DDL and in
	// default select lists.
	Columns []*Column
	// PrimaryKey is the primary-key column name, empty when none declared.
	PrimaryKey string
	// ForeignKeys maps a local column to the table it references. Kept for
	// drift reporting; relationship traversal uses Relationships.
	ForeignKeys map[string]string
	// Relationships keyed by relation name, as requested in eager loads.
	Relationships map[string]*Relationship
	// Codec converts rows to entity values and back for this kind.
	Codec Codec
}

// NewTable declares metadata for kind stored in table name. The primary key
// is derived from the first column marked as such. The codec defaults to
// MapCodec until WithCodec replaces it.
func NewTable(kind, name string, columns ...*Column) *Table {
	t := &Table{
		Kind:          kind,
		Name:          name,
		Columns:       columns,
		ForeignKeys:   make(map[string]string),
		Relationships: make(map[string]*Relationship),
		Codec:         MapCodec{},
	}
	for _, c := range columns {
		if c.IsPrimaryKey {
			t.PrimaryKey = c.Name
			break
		}
	}
	return t
}

// WithCodec registers the serialization contract for the kind.
func (t *Table) WithCodec(c Codec) *Table {
	t.Codec = c
	return t
}

// WithRelationship declares a named relationship.
func (t *Table) WithRelationship(name string, r *Relationship) *Table {
	if t.Relationships == nil {
		t.Relationships = make(map[string]*Relationship)
	}
	t.Relationships[name] = r
	return t
}

// WithForeignKey records that column references the given table.
func (t *Table) WithForeignKey(column, refTable string) *Table {
	if t.ForeignKeys == nil {
		t.ForeignKeys = make(map[string]string)
	}
	t.ForeignKeys[column] = refTable
	return t
}

// Column looks up a declared column by name.
func (t *Table) Column(name string) (*Column, bool) {
	for _, c := range t.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return nil, false
}

// PKColumn returns the declared primary-key column, if any.
func (t *Table) PKColumn() (*Column, bool) {
	if t.PrimaryKey == "" {
		return nil, false
	}
	return t.Column(t.PrimaryKey)
}

// ColumnNames returns the declared column names in order.
func (t *Table) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}
