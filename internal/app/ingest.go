package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/TMG-AI/tara-dashboard/internal/cli"
	"github.com/TMG-AI/tara-dashboard/internal/ingest"
	"github.com/TMG-AI/tara-dashboard/internal/source"
	payloadschema "github.com/TMG-AI/tara-dashboard/schema"
)

func runIngest(args []string) int {
	fs := flag.NewFlagSet("ingest", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	kindRaw := fs.String("kind", "", "Payload kind: "+strings.Join(payloadschema.Kinds(), ", "))
	timeout := fs.Duration("timeout", 2*time.Minute, "Command timeout")
	skipValidate := fs.Bool("skip-validate", false, "Skip schema validation of payload files")
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
	kind := source.NormalizeKind(*kindRaw)
	if strings.TrimSpace(*kindRaw) == "" {
		fmt.Fprintln(os.Stderr, "--kind is required")
		return 2
	}
	if fs.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "ingest requires at least one payload file")
		printIngestUsage()
		return 2
	}

	collectors := make([]ingest.Collector, 0, fs.NArg())
	for _, path := range fs.Args() {
		if !*skipValidate {
			if err := validatePayloadFile(kind, path); err != nil {
				fmt.Fprintf(os.Stderr, "%s: %v\n", path, err)
				if errors.Is(err, payloadschema.ErrUnknownKind) {
					return 2
				}
				return 1
			}
		}
		collectors = append(collectors, ingest.FileCollector{Kind: kind, Path: path})
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	rt, err := openServices(ctx, envLoader)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer rt.Close()

	report := rt.ingest.RunCollectors(ctx, collectors)

	if format == outputFormatJSON {
		if err := printJSON(os.Stdout, report); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to write output: %v\n", err)
			return 1
		}
	} else if err := writeIngestReport(report); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to write output: %v\n", err)
		return 1
	}

	if len(report.SourceErrors) > 0 || len(report.Errors) > 0 {
		return 1
	}
	return 0
}

func writeIngestReport(report ingest.RunReport) error {
	rows := make([][]string, 0, len(report.Sources)+len(report.SourceErrors)+1)
	for _, src := range report.Sources {
		rows = append(rows, batchRow(src.Source, src.Result, ""))
	}
	for _, srcErr := range report.SourceErrors {
		rows = append(rows, batchRow(srcErr.Source, ingest.BatchResult{}, srcErr.Error))
	}
	rows = append(rows, batchRow("TOTAL", report.BatchResult, ""))

	return writeTable(os.Stdout,
		[]string{"SOURCE", "FOUND", "STORED", "DUPLICATE", "FILTERED", "INVALID", "FAILED", "ERROR"},
		rows,
		[]columnAlignment{alignLeft, alignRight, alignRight, alignRight, alignRight, alignRight, alignRight, alignLeft},
	)
}

func batchRow(name string, result ingest.BatchResult, errText string) []string {
	return []string{
		truncateForTable(name, 48),
		strconv.Itoa(result.Found),
		strconv.Itoa(result.Stored),
		strconv.Itoa(result.Duplicates),
		strconv.Itoa(result.Filtered),
		strconv.Itoa(result.Invalid),
		strconv.Itoa(result.Failed),
		truncateForTable(errText, 60),
	}
}

func printIngestUsage() {
	fmt.Fprintln(os.Stderr, "Usage:")
	fmt.Fprintln(os.Stderr, "  tara ingest --kind <kind> <payload.json> [more.json...] [--skip-validate] [--format table|json] [--env .env]")
}
