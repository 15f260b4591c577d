// Команда migrate управляет схемой PostgreSQL: применяет и откатывает
// встроенные миграции, показывает текущую версию.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/cmoralesdiaz/almacen/internal/storage/postgres"
)

const defaultTimeout = 30 * time.Second

type options struct {
	direction string
	steps     int
	dsn       string
}

func parseFlags(args []string) (options, error) {
	var opts options

	fs := flag.NewFlagSet("migrate", flag.ContinueOnError)
	fs.StringVar(&opts.direction, "direction", "up", "migration direction: up|down|status")
	fs.IntVar(&opts.steps, "steps", 0, "number of migrations to apply/rollback (0=all for up, 1 for down)")
	fs.StringVar(&opts.dsn, "dsn", "", "PostgreSQL DSN (fallback: ALMACEN_POSTGRES_DSN)")
	if err := fs.Parse(args); err != nil {
		return options{}, err
	}

	if strings.TrimSpace(opts.dsn) == "" {
		opts.dsn = strings.TrimSpace(os.Getenv("ALMACEN_POSTGRES_DSN"))
	}
	opts.direction = strings.ToLower(strings.TrimSpace(opts.direction))
	return opts, nil
}

func run(ctx context.Context, opts options, out io.Writer) error {
	if opts.dsn == "" {
		return fmt.Errorf("ALMACEN_POSTGRES_DSN (or -dsn) is required")
	}

	store, err := postgres.Open(ctx, opts.dsn)
	if err != nil {
		return fmt.Errorf("open postgres store: %w", err)
	}
	defer store.Close()

	switch opts.direction {
	case "up":
		if err := store.MigrateUp(ctx, opts.steps); err != nil {
			return fmt.Errorf("migrate up failed: %w", err)
		}
		return printStatus(ctx, store, out, "migrate up ok")
	case "down":
		steps := opts.steps
		if steps <= 0 {
			steps = 1
		}
		if err := store.MigrateDown(ctx, steps); err != nil {
			return fmt.Errorf("migrate down failed: %w", err)
		}
		return printStatus(ctx, store, out, "migrate down ok")
	case "status":
		return printStatus(ctx, store, out, "migration status")
	default:
		return fmt.Errorf("unsupported direction: %s (use up|down|status)", opts.direction)
	}
}

func printStatus(ctx context.Context, store *postgres.Store, out io.Writer, prefix string) error {
	version, count, err := store.MigrationStatus(ctx)
	if err != nil {
		return fmt.Errorf("migration status failed: %w", err)
	}
	_, err = fmt.Fprintf(out, "%s: version=%d applied=%d\n", prefix, version, count)
	return err
}

func main() {
	opts, err := parseFlags(os.Args[1:])
	if err != nil {
		os.Exit(2)
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	if err := run(ctx, opts, os.Stdout); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
