package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/TMG-AI/tara-dashboard/internal/cli"
	"github.com/TMG-AI/tara-dashboard/internal/globaltime"
)

func runTrim(args []string) int {
	fs := flag.NewFlagSet("trim", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	timeout := fs.Duration("timeout", 30*time.Second, "Command timeout")
	window := fs.Duration("window", 0, "Override the retention window (default: RETENTION_HOURS policy)")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if *window < 0 {
		fmt.Fprintln(os.Stderr, "--window must be >= 0")
		return 2
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	rt, err := openServices(ctx, envLoader)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer rt.Close()

	var removed int64
	applied := *window
	if applied > 0 {
		removed, err = rt.trimmer.Trim(ctx, applied)
	} else {
		applied = rt.cfg.RetentionWindowAt(globaltime.Now())
		removed, err = rt.trimmer.TrimNow(ctx)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Trim failed: %v\n", err)
		return 1
	}

	fmt.Printf("window=%s removed=%d\n", applied, removed)
	return 0
}
