package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/TMG-AI/tara-dashboard/internal/cli"
	"github.com/TMG-AI/tara-dashboard/internal/store"
)

func runRemove(args []string) int {
	fs := flag.NewFlagSet("remove", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	timeout := fs.Duration("timeout", 30*time.Second, "Command timeout")
	force := fs.Bool("force", false, "Skip confirmation prompt")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "remove requires one mention id")
		fmt.Fprintln(os.Stderr, "Usage:")
		fmt.Fprintln(os.Stderr, "  tara remove <mention_id> [--force] [--env .env] [--timeout 30s]")
		return 2
	}
	id := strings.TrimSpace(fs.Arg(0))
	if id == "" {
		fmt.Fprintln(os.Stderr, "mention id must not be empty")
		return 2
	}

	if !*force {
		ok, err := confirmDangerousAction(os.Stdin, fmt.Sprintf("Remove mention %q and release its keys?", id))
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

	removal, err := rt.ingest.Remove(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			fmt.Fprintf(os.Stderr, "Mention %s not found\n", id)
			return 1
		}
		fmt.Fprintf(os.Stderr, "Remove failed: %v\n", err)
		return 1
	}
	fmt.Printf("id=%s removed=%d title=%q\n", removal.ID, removal.Removed, removal.Title)
	return 0
}
