package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/lib/pq"

	"studio/internal/infra"
	"studio/internal/sqlinline"
)

func main() {
	_ = godotenv.Load()

	var (
		dsnFlag    string
		schemaFlag string
		timeout    time.Duration
	)
	flag.StringVar(&dsnFlag, "dsn", "", "database URL (defaults to DATABASE_URL)")
	flag.StringVar(&schemaFlag, "schema", "", "search_path schema to create and migrate into")
	flag.DurationVar(&timeout, "timeout", 30*time.Second, "migration timeout")
	flag.Parse()

	dsn := strings.TrimSpace(dsnFlag)
	if dsn == "" {
		dsn = strings.TrimSpace(os.Getenv("DATABASE_URL"))
	}
	if dsn == "" {
		exitWithError(fmt.Errorf("DATABASE_URL or -dsn is required"))
	}

	logger := infra.NewLoggerTo(os.Stderr, "cli").With().Str("cmd", "migrate").Logger()

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		exitWithError(fmt.Errorf("open database: %w", err))
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := migrate(ctx, db, strings.TrimSpace(schemaFlag)); err != nil {
		exitWithError(err)
	}
	logger.Info().Str("schema", schemaFlag).Msg("schema applied")
}

func migrate(ctx context.Context, db *sql.DB, schema string) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if schema != "" {
		ident := pq.QuoteIdentifier(schema)
		if _, err := tx.ExecContext(ctx, "create schema if not exists "+ident); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
		if _, err := tx.ExecContext(ctx, "set local search_path to "+ident); err != nil {
			return fmt.Errorf("set search_path: %w", err)
		}
	}
	if _, err := tx.ExecContext(ctx, sqlinline.Schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func exitWithError(err error) {
	fmt.Fprintf(os.Stderr, "migrate: %v\n", err)
	os.Exit(1)
}
