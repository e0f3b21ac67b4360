package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/TMG-AI/tara-dashboard/internal/cli"
)

func runFlushSeen(args []string) int {
	fs := flag.NewFlagSet("flush-seen", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	timeout := fs.Duration("timeout", 30*time.Second, "Command timeout")
	dryRun := fs.Bool("dry-run", false, "Show how many keys would be forgotten")
	force := fs.Bool("force", false, "Skip confirmation prompt")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	if !*dryRun && !*force {
		ok, err := confirmDangerousAction(os.Stdin, "Forget every seen key? Stored items may be re-ingested as new.")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to read confirmation: %v\n", err)
			return 1
		}
		if !ok {
			fmt.Fprintln(os.Stderr, "Cancelled")
			return 1
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	rt, err := openServices(ctx, envLoader)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer rt.Close()

	if *dryRun {
		counts, err := rt.ledger.Counts(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to count ledger: %v\n", err)
			return 1
		}
		fmt.Printf("dry_run=true seen_canonical=%d seen_ids=%d\n", counts.Canonical, counts.IDs)
		return 0
	}

	counts, err := rt.ledger.Flush(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Flush failed: %v\n", err)
		return 1
	}
	rt.logger.Warn().Int64("seen_canonical", counts.Canonical).Int64("seen_ids", counts.IDs).Msg("seen sets flushed")
	fmt.Printf("seen_canonical=%d seen_ids=%d\n", counts.Canonical, counts.IDs)
	return 0
}
