package core

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/graveldb/gravel/logger"
	"github.com/graveldb/gravel/schema"
)

// Options defines the configuration for the DB connection pool and the
// engine's runtime behavior.
type Options struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	// Logger replaces the default stdout logger.
	Logger logger.Logger
	// StrictRelations makes reads and eager loading fail on undecodable
	// rows and incomplete joins instead of skipping them with a warning.
	StrictRelations bool
}

// DB is the main entry point for the ORM. It owns the connection pool and
// the registry of entity kinds, and hands out queries, loaders, migrators
// and validators bound to both.
type DB struct {
	db       *sql.DB
	registry *schema.Registry
	logger   logger.Logger
	strict   bool
}

// Open connects to an embedded database and wires it to the given registry.
// Supported drivers are the two sqlite drivers this module is tested
// against, registered as "sqlite" and "sqlite3".
func Open(driver, dsn string, reg *schema.Registry, opts *Options) (*DB, error) {
	switch driver {
	case "sqlite", "sqlite3":
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedDriver, driver)
	}

	sqlDB, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, err
	}

	db := NewDB(sqlDB, reg, opts)
	if err := sqlDB.Ping(); err != nil {
		sqlDB.Close()
		return nil, err
	}
	return db, nil
}

// NewDB wraps an already opened handle. It lets callers bring their own
// pool, including test doubles registered through database/sql.
func NewDB(sqlDB *sql.DB, reg *schema.Registry, opts *Options) *DB {
	db := &DB{
		db:       sqlDB,
		registry: reg,
		logger:   logger.NewStdLogger(),
	}
	if reg == nil {
		db.registry = schema.NewRegistry()
	}
	if opts != nil {
		if opts.MaxOpenConns > 0 {
			sqlDB.SetMaxOpenConns(opts.MaxOpenConns)
		}
		if opts.MaxIdleConns > 0 {
			sqlDB.SetMaxIdleConns(opts.MaxIdleConns)
		}
		if opts.ConnMaxLifetime > 0 {
			sqlDB.SetConnMaxLifetime(opts.ConnMaxLifetime)
		}
		if opts.Logger != nil {
			db.logger = opts.Logger
		}
		db.strict = opts.StrictRelations
	}
	return db
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.db.Close()
}

// SetLogger sets a custom logger for the DB.
func (db *DB) SetLogger(l logger.Logger) {
	db.logger = l
}

// Registry returns the registry the DB was opened with.
func (db *DB) Registry() *schema.Registry {
	return db.registry
}

// Query starts a query for the given entity kind. An unregistered kind is
// reported when the query executes.
func (db *DB) Query(kind string) *Query {
	return newQuery(db, db.db, kind)
}

// Loader returns a relation loader running outside any transaction.
func (db *DB) Loader() *Loader {
	return &Loader{db: db, executor: db.db, strict: db.strict}
}

// Migrator returns a schema migrator running outside any transaction.
func (db *DB) Migrator() *Migrator {
	return &Migrator{db: db, executor: db.db}
}

// Validator returns a schema validator.
func (db *DB) Validator() *Validator {
	return &Validator{db: db, executor: db.db}
}

// logSQL logs the SQL execution if a logger is set.
func (db *DB) logSQL(sql string, duration time.Duration, args ...any) {
	if db.logger != nil {
		db.logger.SQL(sql, duration, args...)
	}
}

func (db *DB) warn(format string, args ...any) {
	if db.logger != nil {
		db.logger.Warn(format, args...)
	}
}

// Exec executes a raw SQL statement without returning any rows.
func (db *DB) Exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	start := time.Now()
	res, err := db.db.ExecContext(ctx, query, args...)
	db.logSQL(query, time.Since(start), args...)
	return res, err
}

// Transaction executes a function within a database transaction. The
// transaction is rolled back when fn returns an error or panics, and
// committed otherwise.
func (db *DB) Transaction(ctx context.Context, fn func(tx *Tx) error) (err error) {
	start := time.Now()
	sqlTx, err := db.db.BeginTx(ctx, nil)
	db.logSQL("BEGIN", time.Since(start))
	if err != nil {
		return err
	}

	tx := &Tx{
		db:    db,
		sqlTx: sqlTx,
	}

	defer func() {
		if p := recover(); p != nil {
			start := time.Now()
			_ = sqlTx.Rollback()
			db.logSQL("ROLLBACK", time.Since(start))
			panic(p)
		} else if err != nil {
			start := time.Now()
			_ = sqlTx.Rollback()
			db.logSQL("ROLLBACK", time.Since(start))
		} else {
			start := time.Now()
			err = sqlTx.Commit()
			db.logSQL("COMMIT", time.Since(start))
		}
	}()

	err = fn(tx)
	return err
}
