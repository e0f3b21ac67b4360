package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/TMG-AI/tara-dashboard/internal/cli"
	"github.com/TMG-AI/tara-dashboard/internal/ledger"
)

type healthReport struct {
	Store    string        `json:"store"`
	Timeline int64         `json:"timeline"`
	Ledger   ledger.Counts `json:"ledger"`
	Latency  string        `json:"ping_latency"`
}

func runHealth(args []string) int {
	fs := flag.NewFlagSet("health", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	timeout := fs.Duration("timeout", 5*time.Second, "Health check timeout")
	formatRaw := fs.String("format", outputFormatTable, "Output format: table or json")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	format, err := parseOutputFormat(*formatRaw, outputFormatTable)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
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

	start := time.Now()
	if err := rt.backend.Ping(ctx); err != nil {
		rt.logger.Error().Err(err).Str("store", rt.backend.Name()).Msg("health check failed")
		fmt.Fprintf(os.Stderr, "Store ping failed: %v\n", err)
		return 1
	}
	latency := time.Since(start)

	total, err := rt.timeline.Count(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to count timeline: %v\n", err)
		return 1
	}
	counts, err := rt.ledger.Counts(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to count ledger: %v\n", err)
		return 1
	}

	report := healthReport{
		Store:    rt.backend.Name(),
		Timeline: total,
		Ledger:   counts,
		Latency:  latency.Round(time.Microsecond).String(),
	}
	if format == outputFormatJSON {
		if err := printJSON(os.Stdout, report); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to write output: %v\n", err)
			return 1
		}
		return 0
	}

	if err := writeTable(os.Stdout,
		[]string{"STORE", "TIMELINE", "SEEN_CANONICAL", "SEEN_IDS", "PING"},
		[][]string{{
			report.Store,
			strconv.FormatInt(report.Timeline, 10),
			strconv.FormatInt(counts.Canonical, 10),
			strconv.FormatInt(counts.IDs, 10),
			report.Latency,
		}},
		[]columnAlignment{alignLeft, alignRight, alignRight, alignRight, alignRight},
	); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to write output: %v\n", err)
		return 1
	}
	return 0
}
