package app

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/TMG-AI/tara-dashboard/internal/auth"
)

func runHashKey(args []string) int {
	fs := flag.NewFlagSet("hash-key", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	fromStdin := fs.Bool("stdin", false, "Read the key from stdin instead of the argument")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	var key string
	switch {
	case *fromStdin:
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			fmt.Fprintf(os.Stderr, "Failed to read key: %v\n", err)
			return 1
		}
		key = line
	case fs.NArg() == 1:
		key = fs.Arg(0)
	default:
		fmt.Fprintln(os.Stderr, "Usage:")
		fmt.Fprintln(os.Stderr, "  tara hash-key <key>")
		fmt.Fprintln(os.Stderr, "  tara hash-key --stdin")
		return 2
	}

	if strings.TrimSpace(key) == "" {
		fmt.Fprintln(os.Stderr, "key must not be empty")
		return 2
	}
	hash, err := auth.HashKey(key)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to hash key: %v\n", err)
		return 1
	}
	fmt.Println(hash)
	return 0
}
