package core

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/graveldb/gravel/schema"
)

func TestValidateSchemaCleanDatabase(t *testing.T) {
	db := setupTestDB(t, testRegistry())

	result, err := db.Validator().ValidateSchema(context.Background())
	require.NoError(t, err)
	assert.True(t, result.Valid())
	assert.Empty(t, result.Errors)
	assert.Empty(t, result.Warnings)
}

func TestValidateSchemaMissingTable(t *testing.T) {
	db := openBareDB(t, articleRegistry())

	result, err := db.Validator().ValidateSchema(context.Background())
	require.NoError(t, err)
	assert.False(t, result.Valid())
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "articles", result.Errors[0].Table)
	assert.Empty(t, result.Errors[0].Column)
	assert.Equal(t, "table articles: table missing from database", result.Errors[0].Error())
}

func TestValidateSchemaMissingColumn(t *testing.T) {
	reg := articleRegistry()
	db := openBareDB(t, reg)
	ctx := context.Background()
	require.NoError(t, db.Migrator().CreateTables(ctx))

	// The metadata now declares a column the database never got.
	reg.Register(schema.NewTable("article", "articles",
		schema.Int("id").PrimaryKey().AutoIncrement(),
		schema.Text("title"),
		schema.Text("summary").Nullable(),
	))

	result, err := db.Validator().ValidateSchema(ctx)
	require.NoError(t, err)
	assert.False(t, result.Valid())
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "summary", result.Errors[0].Column)
	assert.Contains(t, result.Errors[0].Message, "missing from database")
}

func TestValidateSchemaUndeclaredColumnWarns(t *testing.T) {
	reg := schema.NewRegistry()
	reg.Register(schema.NewTable("article", "articles",
		schema.Int("id").PrimaryKey().AutoIncrement(),
		schema.Text("title"),
		schema.Text("legacy_slug").Nullable(),
	))
	db := openBareDB(t, reg)
	ctx := context.Background()
	require.NoError(t, db.Migrator().CreateTables(ctx))

	// A later release stops declaring the column but the database keeps it.
	reg.Register(schema.NewTable("article", "articles",
		schema.Int("id").PrimaryKey().AutoIncrement(),
		schema.Text("title"),
	))

	result, err := db.Validator().ValidateSchema(ctx)
	require.NoError(t, err)
	assert.True(t, result.Valid(), "drift the mapping can live with stays a warning")
	require.Len(t, result.Warnings, 1)
	assert.Equal(t, "legacy_slug", result.Warnings[0].Column)
	assert.Contains(t, result.Warnings[0].Message, "not declared")
}

func TestValidateSchemaStorageClassDrift(t *testing.T) {
	reg := schema.NewRegistry()
	reg.Register(schema.NewTable("gauge", "gauges",
		schema.Int("id").PrimaryKey(),
		schema.Int("reading"),
	))
	db := openBareDB(t, reg)
	ctx := context.Background()

	// The live table predates the metadata and used a text-ish type.
	_, err := db.Exec(ctx, "CREATE TABLE `gauges` (`id` INTEGER PRIMARY KEY, `reading` VARCHAR(10) NOT NULL)")
	require.NoError(t, err)

	result, err := db.Validator().ValidateSchema(ctx)
	require.NoError(t, err)
	assert.True(t, result.Valid())
	require.Len(t, result.Warnings, 1)
	assert.Equal(t, "reading", result.Warnings[0].Column)
	assert.Equal(t, "declared INTEGER but stored as VARCHAR(10)", result.Warnings[0].Message)
}

func TestValidateSchemaPrimaryKeyDrift(t *testing.T) {
	reg := schema.NewRegistry()
	reg.Register(schema.NewTable("gauge", "gauges",
		schema.Int("id").PrimaryKey(),
	))
	db := openBareDB(t, reg)
	ctx := context.Background()

	_, err := db.Exec(ctx, "CREATE TABLE `gauges` (`id` INTEGER NOT NULL)")
	require.NoError(t, err)

	result, err := db.Validator().ValidateSchema(ctx)
	require.NoError(t, err)
	require.Len(t, result.Warnings, 1)
	assert.Contains(t, result.Warnings[0].Message, "declared as primary key")
}

func TestValidateSchemaNotNullDrift(t *testing.T) {
	reg := schema.NewRegistry()
	reg.Register(schema.NewTable("gauge", "gauges",
		schema.Int("id").PrimaryKey(),
		schema.Text("unit"),
	))
	db := openBareDB(t, reg)
	ctx := context.Background()

	_, err := db.Exec(ctx, "CREATE TABLE `gauges` (`id` INTEGER PRIMARY KEY, `unit` TEXT)")
	require.NoError(t, err)

	result, err := db.Validator().ValidateSchema(ctx)
	require.NoError(t, err)
	require.Len(t, result.Warnings, 1)
	assert.Contains(t, result.Warnings[0].Message, "declared NOT NULL but nullable")
}

func TestValidateSchemaSelectedKinds(t *testing.T) {
	db := openBareDB(t, testRegistry())
	ctx := context.Background()
	require.NoError(t, db.Migrator().CreateTables(ctx, "user"))

	// Only the named kind is checked, so the missing tables stay invisible.
	result, err := db.Validator().ValidateSchema(ctx, "user")
	require.NoError(t, err)
	assert.True(t, result.Valid())

	result, err = db.Validator().ValidateSchema(ctx)
	require.NoError(t, err)
	assert.False(t, result.Valid())
}

func TestValidateSchemaUnknownKind(t *testing.T) {
	db := openBareDB(t, articleRegistry())

	_, err := db.Validator().ValidateSchema(context.Background(), "ghost")
	assert.ErrorIs(t, err, ErrNotRegistered)
}

func TestAffinityCompatible(t *testing.T) {
	cases := []struct {
		declared schema.ColumnType
		live     string
		want     bool
	}{
		{schema.TypeInteger, "INTEGER", true},
		{schema.TypeInteger, "BIGINT", true},
		// The INT rule wins before any later rule gets a look.
		{schema.TypeInteger, "POINT", true},
		{schema.TypeInteger, "FLOATING POINT", true},
		{schema.TypeText, "TEXT", true},
		{schema.TypeText, "VARCHAR(255)", true},
		{schema.TypeText, "CLOB", true},
		{schema.TypeText, "INTEGER", false},
		{schema.TypeBlob, "BLOB", true},
		{schema.TypeBlob, "", true},
		{schema.TypeReal, "REAL", true},
		{schema.TypeReal, "DOUBLE PRECISION", true},
		{schema.TypeReal, "FLOAT", true},
		// Numeric affinity accepts either numeric class.
		{schema.TypeInteger, "DECIMAL(10,5)", true},
		{schema.TypeReal, "DECIMAL(10,5)", true},
		{schema.TypeText, "DECIMAL(10,5)", false},
		{schema.TypeInteger, "BOOLEAN", true},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, affinityCompatible(tc.declared, tc.live),
			"declared %s live %q", tc.declared, tc.live)
	}
}
