// Command gravel migrates and inspects a sqlite database from a declarative
// schema manifest, without any Go code per entity kind.
//
// Usage:
//
//	gravel migrate  -db app.db -schema schema.yaml
//	gravel validate -db app.db -schema schema.yaml
//	gravel status   -db app.db -schema schema.yaml
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	_ "github.com/mattn/go-sqlite3"

	"github.com/graveldb/gravel/core"
	"github.com/graveldb/gravel/logger"
)

func usage() {
	fmt.Fprintln(os.Stderr, "usage: gravel <migrate|validate|status> -db <file> [-schema <file>]")
}

func main() {
	log.SetFlags(0)

	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}
	cmd := os.Args[1]
	switch cmd {
	case "migrate", "validate", "status":
	default:
		usage()
		os.Exit(2)
	}

	fs := flag.NewFlagSet(cmd, flag.ExitOnError)
	dbPath := fs.String("db", "", "path to the database file")
	schemaPath := fs.String("schema", "schema.yaml", "path to the schema manifest")
	fs.Parse(os.Args[2:])

	if *dbPath == "" {
		usage()
		os.Exit(2)
	}

	m, err := loadManifest(*schemaPath)
	if err != nil {
		log.Fatalf("read manifest: %v", err)
	}
	reg, err := buildRegistry(m)
	if err != nil {
		log.Fatalf("manifest: %v", err)
	}

	quiet := logger.NewStdLogger()
	quiet.SetLevel(logger.LogLevelWarn)
	quiet.SetOutput(os.Stderr)

	db, err := core.Open("sqlite3", dsn(*dbPath), reg, &core.Options{Logger: quiet})
	if err != nil {
		log.Fatalf("open %s: %v", *dbPath, err)
	}
	defer db.Close()

	ctx := context.Background()
	switch cmd {
	case "migrate":
		err = runMigrate(ctx, db, m)
	case "validate":
		err = runValidate(ctx, db)
	case "status":
		err = runStatus(ctx, db, m)
	}
	if err != nil {
		log.Fatal(err)
	}
}

func dsn(path string) string {
	return fmt.Sprintf("file:%s?_busy_timeout=5000", path)
}

func runMigrate(ctx context.Context, db *core.DB, m *manifest) error {
	mig := db.Migrator()
	current, err := mig.Version(ctx)
	if err != nil {
		return err
	}
	if current >= m.Version {
		log.Printf("schema already at version %d", current)
		return nil
	}

	report, err := mig.Upgrade(ctx, current, m.Version)
	if err != nil {
		return err
	}
	if err := mig.SetVersion(ctx, m.Version); err != nil {
		return err
	}

	for _, t := range report.CreatedTables {
		log.Printf("created table %s", t)
	}
	for _, c := range report.AddedColumns {
		log.Printf("added column %s", c)
	}
	for _, c := range report.SkippedColumns {
		log.Printf("column %s already present", c)
	}
	if !report.Changed() {
		log.Print("nothing to change")
	}
	log.Printf("schema now at version %d", m.Version)
	return nil
}

func runValidate(ctx context.Context, db *core.DB) error {
	res, err := db.Validator().ValidateSchema(ctx)
	if err != nil {
		return err
	}
	for _, e := range res.Errors {
		log.Printf("error: %v", e)
	}
	for _, w := range res.Warnings {
		log.Printf("warning: %v", w)
	}
	if !res.Valid() {
		os.Exit(1)
	}
	log.Printf("schema valid, %d warnings", len(res.Warnings))
	return nil
}

func runStatus(ctx context.Context, db *core.DB, m *manifest) error {
	mig := db.Migrator()
	v, err := mig.Version(ctx)
	if err != nil {
		return err
	}
	log.Printf("database version %d, manifest version %d", v, m.Version)

	for _, t := range db.Registry().All() {
		exists, err := mig.HasTable(ctx, t.Name)
		if err != nil {
			return err
		}
		if !exists {
			log.Printf("%-24s missing", t.Name)
			continue
		}
		cols, err := mig.Columns(ctx, t.Name)
		if err != nil {
			return err
		}
		log.Printf("%-24s %d columns declared, %d live", t.Name, len(t.Columns), len(cols))
	}
	return nil
}
