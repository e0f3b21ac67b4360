// Package payloadschema validates webhook bodies against the embedded JSON
// schemas before they are decoded.
package payloadschema

import (
	"bytes"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/TMG-AI/tara-dashboard/internal/source"
)

//go:embed *.schema.json
var schemaFiles embed.FS

var ErrUnknownKind = errors.New("unknown webhook kind")

var schemaByKind = map[string]string{
	source.KindMeltwater:    "meltwater.schema.json",
	source.KindNewsletter:   "newsletter.schema.json",
	source.KindGoogleAlerts: "google_alerts.schema.json",
	source.KindRSS:          "rss.schema.json",
	source.KindCongress:     "congress.schema.json",
}

var (
	compileOnce     sync.Once
	compiledSchemas map[string]*jsonschema.Schema
	compileErr      error
)

// Kinds lists the webhook kinds that have a schema.
func Kinds() []string {
	kinds := make([]string, 0, len(schemaByKind))
	for kind := range schemaByKind {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)
	return kinds
}

// Validate checks body against the schema for kind. Kind aliases accepted by
// source.Decode are accepted here too.
func Validate(kind string, body []byte) error {
	normalized := source.NormalizeKind(kind)
	if _, ok := schemaByKind[normalized]; !ok {
		return fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}

	value, err := decodeStrictJSON(body)
	if err != nil {
		return fmt.Errorf("decode payload JSON: %w", err)
	}

	schemas, err := loadSchemas()
	if err != nil {
		return fmt.Errorf("load schema: %w", err)
	}
	if err := schemas[normalized].Validate(value); err != nil {
		return fmt.Errorf("schema validation failed: %w", err)
	}
	return nil
}

func loadSchemas() (map[string]*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		compiler.Draft = jsonschema.Draft2020

		for _, name := range schemaByKind {
			raw, err := schemaFiles.ReadFile(name)
			if err != nil {
				compileErr = fmt.Errorf("read %s: %w", name, err)
				return
			}
			if err := compiler.AddResource(name, bytes.NewReader(raw)); err != nil {
				compileErr = fmt.Errorf("add schema resource %s: %w", name, err)
				return
			}
		}

		compiled := make(map[string]*jsonschema.Schema, len(schemaByKind))
		for kind, name := range schemaByKind {
			schema, err := compiler.Compile(name)
			if err != nil {
				compileErr = fmt.Errorf("compile %s: %w", name, err)
				return
			}
			compiled[kind] = schema
		}
		compiledSchemas = compiled
	})

	if compileErr != nil {
		return nil, compileErr
	}
	if compiledSchemas == nil {
		return nil, fmt.Errorf("schemas not initialized")
	}
	return compiledSchemas, nil
}

func decodeStrictJSON(raw []byte) (any, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("payload is empty")
	}

	decoder := json.NewDecoder(bytes.NewReader(trimmed))
	decoder.UseNumber()

	var value any
	if err := decoder.Decode(&value); err != nil {
		return nil, err
	}

	if err := decoder.Decode(&struct{}{}); err != io.EOF {
		return nil, fmt.Errorf("payload contains trailing content")
	}

	return value, nil
}
