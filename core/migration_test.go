package core

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/graveldb/gravel/schema"
)

// openBareDB opens an in-memory database without creating any tables.
func openBareDB(t *testing.T, reg *schema.Registry) *DB {
	t.Helper()
	db, err := Open("sqlite", ":memory:", reg, &Options{
		MaxOpenConns: 1,
		Logger:       silentLogger(),
	})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func articleRegistry() *schema.Registry {
	reg := schema.NewRegistry()
	reg.Register(schema.NewTable("article", "articles",
		schema.Int("id").PrimaryKey().AutoIncrement(),
		schema.Text("title"),
	))
	return reg
}

func TestCreateTablesIsIdempotent(t *testing.T) {
	db := openBareDB(t, articleRegistry())
	ctx := context.Background()

	require.NoError(t, db.Migrator().CreateTables(ctx))
	_, err := db.Query("article").Create(ctx, schema.Row{"title": "kept"})
	require.NoError(t, err)

	// Running it again must neither fail nor touch existing rows.
	require.NoError(t, db.Migrator().CreateTables(ctx))

	count, err := db.Query("article").Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestCreateTablesSelectedKinds(t *testing.T) {
	db := openBareDB(t, testRegistry())
	ctx := context.Background()

	require.NoError(t, db.Migrator().CreateTables(ctx, "user"))

	exists, err := db.Migrator().HasTable(ctx, "users")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = db.Migrator().HasTable(ctx, "posts")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestCreateTablesUnknownKind(t *testing.T) {
	db := openBareDB(t, articleRegistry())

	err := db.Migrator().CreateTables(context.Background(), "ghost")
	assert.ErrorIs(t, err, ErrNotRegistered)
}

func TestCreateTablesRejectsEmptyColumnSet(t *testing.T) {
	reg := schema.NewRegistry()
	reg.Register(schema.NewTable("empty", "empties"))
	db := openBareDB(t, reg)

	err := db.Migrator().CreateTables(context.Background())
	assert.ErrorIs(t, err, ErrNoColumns)
}

func TestUpgradeCreatesMissingTables(t *testing.T) {
	db := openBareDB(t, articleRegistry())
	ctx := context.Background()

	report, err := db.Migrator().Upgrade(ctx, 0, 1)
	require.NoError(t, err)
	assert.True(t, report.Changed())
	assert.Equal(t, 0, report.FromVersion)
	assert.Equal(t, 1, report.ToVersion)
	assert.Equal(t, []string{"articles"}, report.CreatedTables)
	assert.Empty(t, report.AddedColumns)

	exists, err := db.Migrator().HasTable(ctx, "articles")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestUpgradeAddsMissingColumns(t *testing.T) {
	reg := articleRegistry()
	db := openBareDB(t, reg)
	ctx := context.Background()

	require.NoError(t, db.Migrator().CreateTables(ctx))
	_, err := db.Query("article").Create(ctx, schema.Row{"title": "existing"})
	require.NoError(t, err)

	// The next release grows the article by two columns.
	reg.Register(schema.NewTable("article", "articles",
		schema.Int("id").PrimaryKey().AutoIncrement(),
		schema.Text("title"),
		schema.Text("summary").Nullable(),
		schema.Int("score").Default(5),
	))

	report, err := db.Migrator().Upgrade(ctx, 1, 2)
	require.NoError(t, err)
	assert.True(t, report.Changed())
	assert.Empty(t, report.CreatedTables)
	assert.Equal(t, []string{"articles.summary", "articles.score"}, report.AddedColumns)

	// Existing rows survive and pick up the declared default.
	entity, err := db.Query("article").First(ctx)
	require.NoError(t, err)
	row := entity.(schema.Row)
	assert.Equal(t, "existing", row["title"])
	assert.Equal(t, int64(5), row["score"])
	assert.Nil(t, row["summary"])
}

func TestUpgradeIsIdempotent(t *testing.T) {
	reg := articleRegistry()
	db := openBareDB(t, reg)
	ctx := context.Background()

	reg.Register(schema.NewTable("article", "articles",
		schema.Int("id").PrimaryKey().AutoIncrement(),
		schema.Text("title"),
		schema.Text("summary").Nullable(),
	))

	report, err := db.Migrator().Upgrade(ctx, 0, 1)
	require.NoError(t, err)
	assert.True(t, report.Changed())

	// A second run finds everything in place and changes nothing.
	report, err = db.Migrator().Upgrade(ctx, 1, 2)
	require.NoError(t, err)
	assert.False(t, report.Changed())
	assert.Empty(t, report.CreatedTables)
	assert.Empty(t, report.AddedColumns)
	assert.Empty(t, report.SkippedColumns)
}

// TestUpgradeNoOpIssuesNoStatements proves a current database is never
// touched: the mock has no expectations, so any statement would fail the
// upgrade.
func TestUpgradeNoOpIssuesNoStatements(t *testing.T) {
	db, mock := newMockDB(t)
	ctx := context.Background()

	report, err := db.Migrator().Upgrade(ctx, 3, 3)
	require.NoError(t, err)
	assert.False(t, report.Changed())
	assert.Equal(t, 3, report.FromVersion)
	assert.Equal(t, 3, report.ToVersion)

	// Downgrades are refused the same silent way.
	report, err = db.Migrator().Upgrade(ctx, 5, 3)
	require.NoError(t, err)
	assert.False(t, report.Changed())

	require.NoError(t, mock.ExpectationsWereMet())
}

// TestUpgradeAddsKeyColumnWithoutMarkers covers a key column arriving in a
// later version: the alter grammar cannot carry PRIMARY KEY or
// AUTOINCREMENT, so the column lands bare and the drift is the validator's
// to report.
func TestUpgradeAddsKeyColumnWithoutMarkers(t *testing.T) {
	reg := schema.NewRegistry()
	reg.Register(schema.NewTable("note", "notes",
		schema.Text("body"),
	))
	db := openBareDB(t, reg)
	ctx := context.Background()

	require.NoError(t, db.Migrator().CreateTables(ctx))

	reg.Register(schema.NewTable("note", "notes",
		schema.Int("id").PrimaryKey().AutoIncrement(),
		schema.Text("body"),
	))

	report, err := db.Migrator().Upgrade(ctx, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"notes.id"}, report.AddedColumns)

	cols, err := db.Migrator().Columns(ctx, "notes")
	require.NoError(t, err)
	require.Len(t, cols, 2)
	byName := make(map[string]ColumnInfo, len(cols))
	for _, c := range cols {
		byName[c.Name] = c
	}
	assert.Equal(t, "INTEGER", byName["id"].Type)
	assert.False(t, byName["id"].PrimaryKey)
	assert.False(t, byName["id"].NotNull)

	res, err := db.Validator().ValidateSchema(ctx)
	require.NoError(t, err)
	assert.True(t, res.Valid())
	require.NotEmpty(t, res.Warnings)
	assert.Contains(t, res.Warnings[0].Error(), "declared as primary key but not one in the database")
}

func TestUpgradeUnknownKind(t *testing.T) {
	db := openBareDB(t, articleRegistry())

	_, err := db.Migrator().Upgrade(context.Background(), 0, 1, "ghost")
	assert.ErrorIs(t, err, ErrNotRegistered)
}

// TestUpgradeSkipsColumnLostToRace covers the window between the column
// diff and the alter statement: the duplicate error is downgraded to a
// skip entry instead of failing the upgrade.
func TestUpgradeSkipsColumnLostToRace(t *testing.T) {
	sqlDB, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)

	reg := schema.NewRegistry()
	reg.Register(schema.NewTable("article", "articles",
		schema.Int("id").PrimaryKey().AutoIncrement(),
		schema.Text("title"),
		schema.Text("summary").Nullable(),
	))
	db := NewDB(sqlDB, reg, &Options{Logger: silentLogger()})
	t.Cleanup(func() { db.Close() })

	mock.ExpectQuery(sqlHasTable).
		WithArgs("articles").
		WillReturnRows(sqlmock.NewRows([]string{"count(*)"}).AddRow(1))
	mock.ExpectQuery("PRAGMA table_info(`articles`)").
		WillReturnRows(sqlmock.NewRows([]string{"cid", "name", "type", "notnull", "dflt_value", "pk"}).
			AddRow(0, "id", "INTEGER", 0, nil, 1).
			AddRow(1, "title", "TEXT", 1, nil, 0))
	mock.ExpectExec("ALTER TABLE `articles` ADD COLUMN `summary` TEXT").
		WillReturnError(errors.New("SQL logic error: duplicate column name: summary"))

	report, err := db.Migrator().Upgrade(context.Background(), 1, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"articles.summary"}, report.SkippedColumns)
	assert.Empty(t, report.AddedColumns)
	assert.False(t, report.Changed())

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestHasTable(t *testing.T) {
	db := openBareDB(t, articleRegistry())
	ctx := context.Background()

	exists, err := db.Migrator().HasTable(ctx, "articles")
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, db.Migrator().CreateTables(ctx))

	exists, err = db.Migrator().HasTable(ctx, "articles")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestColumnsReportsLiveLayout(t *testing.T) {
	db := setupTestDB(t, testRegistry())
	ctx := context.Background()

	cols, err := db.Migrator().Columns(ctx, "users")
	require.NoError(t, err)
	require.Len(t, cols, 5)

	byName := make(map[string]ColumnInfo, len(cols))
	for _, c := range cols {
		byName[c.Name] = c
	}

	assert.True(t, byName["id"].PrimaryKey)
	assert.Equal(t, "INTEGER", byName["id"].Type)
	assert.True(t, byName["email"].NotNull)
	assert.False(t, byName["name"].NotNull)
	require.True(t, byName["active"].Default.Valid)
	assert.Equal(t, "1", byName["active"].Default.String)
	assert.Equal(t, "TEXT", byName["joined"].Type)
}

func TestVersionRoundTrip(t *testing.T) {
	db := openBareDB(t, articleRegistry())
	ctx := context.Background()

	v, err := db.Migrator().Version(ctx)
	require.NoError(t, err)
	assert.Zero(t, v, "a fresh database carries version zero")

	require.NoError(t, db.Migrator().SetVersion(ctx, 7))

	v, err = db.Migrator().Version(ctx)
	require.NoError(t, err)
	assert.Equal(t, 7, v)
}
