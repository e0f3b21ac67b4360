package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"sort"
	"strconv"
	"time"

	"github.com/TMG-AI/tara-dashboard/internal/cli"
	"github.com/TMG-AI/tara-dashboard/internal/dedupe"
)

func runDedupe(args []string) int {
	fs := flag.NewFlagSet("dedupe", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	timeout := fs.Duration("timeout", 2*time.Minute, "Command timeout")
	limit := fs.Int("limit", 0, "Scan at most the newest N mentions (default: DEDUPE_SCAN_LIMIT)")
	since := fs.Duration("since", 0, "Only scan mentions published within this duration")
	today := fs.Bool("today", false, "Only scan mentions published today in RETENTION_TIMEZONE")
	commit := fs.Bool("delete", false, "Remove duplicates instead of previewing")
	force := fs.Bool("force", false, "Skip confirmation prompt")
	sampleSize := fs.Int("sample", dedupe.DefaultSampleSize, "Number of sample removals to show")
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
	if *limit < 0 || *since < 0 || *sampleSize < 0 {
		fmt.Fprintln(os.Stderr, "--limit, --since and --sample must be >= 0")
		return 2
	}

	if *commit && !*force {
		ok, err := confirmDangerousAction(os.Stdin, "Remove duplicate mentions from the timeline?")
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

	scanLimit := *limit
	if scanLimit == 0 {
		scanLimit = rt.cfg.DedupeScanLimit
	}

	report, err := rt.resolver.Run(ctx, dedupe.Options{
		Limit:      scanLimit,
		Since:      *since,
		Today:      *today,
		Location:   rt.cfg.Location(),
		Commit:     *commit,
		SampleSize: *sampleSize,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Dedupe failed: %v\n", err)
		return 1
	}

	if format == outputFormatJSON {
		if err := printJSON(os.Stdout, report); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to write output: %v\n", err)
			return 1
		}
		return 0
	}
	if err := writeDedupeReport(report); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to write output: %v\n", err)
		return 1
	}
	return 0
}

func writeDedupeReport(report dedupe.Report) error {
	fmt.Printf("run_id=%s mode=%s scanned=%d parsed_ok=%d parse_failed=%d to_remove=%d removed=%d revoked=%d\n",
		report.RunID, report.Mode, report.Scanned, report.ParsedOK, report.ParseFailed,
		report.ToRemove, report.Removed, report.Revoked)

	passes := [][]string{
		{dedupe.PassID, strconv.Itoa(report.ByID)},
		{dedupe.PassCanon, strconv.Itoa(report.ByCanon)},
		{dedupe.PassTitleExact, strconv.Itoa(report.ByTitleExact)},
		{dedupe.PassTitleFuzzy, strconv.Itoa(report.ByTitleFuzzy)},
	}
	if err := writeTable(os.Stdout, []string{"PASS", "MARKED"}, passes, []columnAlignment{alignLeft, alignRight}); err != nil {
		return err
	}

	if len(report.Sample) == 0 {
		return nil
	}
	rows := make([][]string, 0, len(report.Sample))
	for _, s := range report.Sample {
		rows = append(rows, []string{s.Pass, s.ID, truncateForTable(s.Source, 24), truncateForTable(s.Title, 64)})
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i][0] < rows[j][0] })
	return writeTable(os.Stdout, []string{"PASS", "ID", "SOURCE", "TITLE"}, rows, nil)
}
