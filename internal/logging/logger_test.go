package logging

import (
	"bytes"
	"encoding/json"
	"testing"
)

func TestNewWithWriter_TagsServiceAndComponent(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger, err := NewWithWriter(&buf, "debug")
	if err != nil {
		t.Fatalf("new logger: %v", err)
	}
	componentLogger := Component(logger, "dedupe")
	componentLogger.Info().Msg("hello")

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("decode log line: %v", err)
	}
	if line["service"] != "tara" {
		t.Fatalf("unexpected service field: %#v", line["service"])
	}
	if line["component"] != "dedupe" {
		t.Fatalf("unexpected component field: %#v", line["component"])
	}
}

func TestNewWithWriter_RejectsUnknownLevel(t *testing.T) {
	t.Parallel()

	if _, err := NewWithWriter(&bytes.Buffer{}, "loud"); err == nil {
		t.Fatalf("expected unknown level to fail")
	}
}
