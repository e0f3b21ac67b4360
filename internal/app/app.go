package app

import (
	"fmt"
	"os"
	"strings"
)

// Run executes the CLI command and returns a process exit code.
func Run(args []string) int {
	if len(args) == 0 {
		printUsage()
		return 2
	}

	switch strings.ToLower(strings.TrimSpace(args[0])) {
	case "help", "--help", "-h":
		printUsage()
		return 0
	case "health":
		return runHealth(args[1:])
	case "ingest":
		return runIngest(args[1:])
	case "trim":
		return runTrim(args[1:])
	case "dedupe", "dedup":
		return runDedupe(args[1:])
	case "peek":
		return runPeek(args[1:])
	case "remove":
		return runRemove(args[1:])
	case "flush-seen":
		return runFlushSeen(args[1:])
	case "validate":
		return runValidate(args[1:])
	case "hash-key":
		return runHashKey(args[1:])
	case "serve":
		return runServe(args[1:])
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", args[0])
		printUsage()
		return 2
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "tara CLI")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Usage:")
	fmt.Fprintln(os.Stderr, "  tara <command> [flags]")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Commands:")
	fmt.Fprintln(os.Stderr, "  health      Verify store connectivity and show counts")
	fmt.Fprintln(os.Stderr, "  ingest      Ingest payload files through the filter chain")
	fmt.Fprintln(os.Stderr, "  trim        Drop mentions older than the retention window")
	fmt.Fprintln(os.Stderr, "  dedupe      Preview or delete redundant coverage")
	fmt.Fprintln(os.Stderr, "  peek        List the newest stored mentions")
	fmt.Fprintln(os.Stderr, "  remove      Remove one mention by id and release its keys")
	fmt.Fprintln(os.Stderr, "  flush-seen  Forget every admitted key and id")
	fmt.Fprintln(os.Stderr, "  validate    Validate payload files against the webhook schemas")
	fmt.Fprintln(os.Stderr, "  hash-key    Print a bcrypt hash for ADMIN_KEY or WEBHOOK_SECRET")
	fmt.Fprintln(os.Stderr, "  serve       Start Echo API server")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Use \"tara <command> -h\" for command-specific flags.")
}
