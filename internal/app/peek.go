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
	"github.com/TMG-AI/tara-dashboard/internal/mention"
)

const defaultPeekLimit = 20

func runPeek(args []string) int {
	fs := flag.NewFlagSet("peek", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	timeout := fs.Duration("timeout", 30*time.Second, "Command timeout")
	limit := fs.Int("limit", defaultPeekLimit, "Number of newest mentions to show")
	origin := fs.String("origin", "", "Only show mentions from this origin")
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
	if *limit <= 0 {
		fmt.Fprintln(os.Stderr, "--limit must be > 0")
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

	mentions, undecodable, err := peekMentions(ctx, rt, *limit, strings.TrimSpace(*origin))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to read timeline: %v\n", err)
		return 1
	}
	if undecodable > 0 {
		fmt.Fprintf(os.Stderr, "Warning: skipped %d undecodable members\n", undecodable)
	}

	if format == outputFormatJSON {
		if err := printJSON(os.Stdout, mentions); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to write output: %v\n", err)
			return 1
		}
		return 0
	}

	rows := make([][]string, 0, len(mentions))
	for _, m := range mentions {
		rows = append(rows, []string{
			m.Published,
			m.ID,
			truncateForTable(m.Origin, 24),
			truncateForTable(m.Source, 24),
			truncateForTable(m.Title, 72),
		})
	}
	if err := writeTable(os.Stdout, []string{"PUBLISHED", "ID", "ORIGIN", "SOURCE", "TITLE"}, rows, nil); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to write output: %v\n", err)
		return 1
	}
	return 0
}

// peekMentions returns up to limit decoded mentions, newest first. Without an
// origin filter only the newest limit members are read.
func peekMentions(ctx context.Context, rt *services, limit int, origin string) ([]mention.Mention, int, error) {
	stop := int64(limit - 1)
	if origin != "" {
		stop = -1
	}
	members, err := rt.timeline.RangeByRank(ctx, 0, stop, true)
	if err != nil {
		return nil, 0, err
	}

	out := make([]mention.Mention, 0, min(limit, len(members)))
	undecodable := 0
	for _, raw := range members {
		if len(out) >= limit {
			break
		}
		m, err := mention.Decode(raw)
		if err != nil {
			undecodable++
			continue
		}
		if origin != "" && !strings.EqualFold(m.Origin, origin) {
			continue
		}
		out = append(out, m)
	}
	return out, undecodable, nil
}
