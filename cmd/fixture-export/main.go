package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/danielpatrickdp/robo-predictor/internal/journal"
	"github.com/danielpatrickdp/robo-predictor/internal/replay"
)

// #region main

func main() {
	dbPath := flag.String("db", "", "path to robo journal")
	sessionID := flag.String("session", "", "session id to export")
	outPath := flag.String("out", "", "output fixture JSON path")
	description := flag.String("description", "", "fixture description (default: derived from session)")
	flag.Parse()

	if *dbPath == "" || *sessionID == "" || *outPath == "" {
		fmt.Fprintln(os.Stderr, "usage: fixture-export --db path/to/db --session <id> --out path/to/fixture.json [--description text]")
		os.Exit(2)
	}

	if err := run(*dbPath, *sessionID, *outPath, *description); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// #endregion main

// #region export

func run(dbPath, sessionID, outPath, description string) error {
	store, err := journal.NewStore(dbPath)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer store.Close()

	ctx := context.Background()
	sess, err := store.GetSession(ctx, sessionID)
	if err != nil {
		return err
	}
	records, err := store.Steps(ctx, sessionID)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return fmt.Errorf("session %s has no steps", sessionID)
	}

	if description == "" {
		description = fmt.Sprintf("session %s, %d steps, exported from %s", sessionID, len(records), dbPath)
	}
	f := replay.ExportFixture(description, sess.Capacity, records)
	if err := replay.WriteFixture(outPath, f); err != nil {
		return err
	}

	fmt.Fprintf(os.Stderr, "wrote %d steps (%d expectations) to %s\n", len(f.Steps), len(f.Expected), outPath)
	return nil
}

// #endregion export
