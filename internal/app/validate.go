package app

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"

	payloadschema "github.com/TMG-AI/tara-dashboard/schema"
)

func runValidate(args []string) int {
	fs := flag.NewFlagSet("validate", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	kind := fs.String("kind", "", "Payload kind: "+strings.Join(payloadschema.Kinds(), ", "))

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if strings.TrimSpace(*kind) == "" {
		fmt.Fprintln(os.Stderr, "--kind is required")
		return 2
	}
	if fs.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "validate requires at least one payload file")
		return 2
	}

	failed := 0
	for _, path := range fs.Args() {
		if err := validatePayloadFile(*kind, path); err != nil {
			if errors.Is(err, payloadschema.ErrUnknownKind) {
				fmt.Fprintln(os.Stderr, err)
				return 2
			}
			failed++
			fmt.Fprintf(os.Stderr, "INVALID %s: %v\n", path, err)
			continue
		}
		fmt.Fprintf(os.Stdout, "OK %s\n", path)
	}

	if failed > 0 {
		return 1
	}
	return 0
}

func validatePayloadFile(kind, path string) error {
	body, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read payload: %w", err)
	}
	return payloadschema.Validate(kind, body)
}
