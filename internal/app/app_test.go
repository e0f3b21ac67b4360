package app

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/TMG-AI/tara-dashboard/internal/mention"
	"github.com/TMG-AI/tara-dashboard/internal/store"
)

const meltwaterPayload = `{
	"request": {"hook_id": "h1"},
	"documents": [
		{"title": "Court weighs new transit plan", "url": "https://news.example/transit", "source": "Metro Daily", "published_date": "2026-10-14T10:00:00Z"}
	]
}`

func writePayload(t *testing.T, body string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "payload.json")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write payload: %v", err)
	}
	return path
}

func useMemoryStore(t *testing.T) string {
	t.Helper()

	t.Setenv("TARA_ENV_FILE", "")
	t.Setenv("STORE_DRIVER", "memory")
	t.Setenv("RETENTION_TIMEZONE", "UTC")
	t.Setenv("LOG_LEVEL", "error")
	return filepath.Join(t.TempDir(), "missing.env")
}

func TestRun_ExitCodes(t *testing.T) {
	if code := Run(nil); code != 2 {
		t.Fatalf("expected 2 without args, got %d", code)
	}
	if code := Run([]string{"help"}); code != 0 {
		t.Fatalf("expected 0 for help, got %d", code)
	}
	if code := Run([]string{"bogus"}); code != 2 {
		t.Fatalf("expected 2 for unknown command, got %d", code)
	}
	if code := Run([]string{"remove"}); code != 2 {
		t.Fatalf("expected 2 for remove without id, got %d", code)
	}
	if code := Run([]string{"hash-key"}); code != 2 {
		t.Fatalf("expected 2 for hash-key without key, got %d", code)
	}
}

func TestValidateCommand(t *testing.T) {
	valid := writePayload(t, meltwaterPayload)
	invalid := writePayload(t, `{"documents": "nope"}`)

	if code := Run([]string{"validate", "--kind", "meltwater", valid}); code != 0 {
		t.Fatalf("expected valid payload to pass, got %d", code)
	}
	if code := Run([]string{"validate", "--kind", "meltwater", valid, invalid}); code != 1 {
		t.Fatalf("expected invalid payload to fail, got %d", code)
	}
	if code := Run([]string{"validate", "--kind", "fax", valid}); code != 2 {
		t.Fatalf("expected unknown kind to be a usage error, got %d", code)
	}
	if code := Run([]string{"validate", valid}); code != 2 {
		t.Fatalf("expected missing --kind to be a usage error, got %d", code)
	}
}

func TestIngestCommand_MemoryStore(t *testing.T) {
	envPath := useMemoryStore(t)
	path := writePayload(t, meltwaterPayload)

	if code := Run([]string{"ingest", "--env", envPath, "--kind", "meltwater", "--format", "json", path}); code != 0 {
		t.Fatalf("expected ingest to succeed, got %d", code)
	}
	if code := Run([]string{"ingest", "--env", envPath, "--kind", "meltwater", filepath.Join(t.TempDir(), "absent.json")}); code != 1 {
		t.Fatalf("expected missing payload file to fail, got %d", code)
	}
	if code := Run([]string{"ingest", "--env", envPath, path}); code != 2 {
		t.Fatalf("expected missing --kind to be a usage error, got %d", code)
	}
}

func TestStoreCommands_MemoryStore(t *testing.T) {
	envPath := useMemoryStore(t)

	if code := Run([]string{"health", "--env", envPath}); code != 0 {
		t.Fatalf("expected health to succeed, got %d", code)
	}
	if code := Run([]string{"trim", "--env", envPath}); code != 0 {
		t.Fatalf("expected trim to succeed, got %d", code)
	}
	if code := Run([]string{"dedupe", "--env", envPath, "--format", "json"}); code != 0 {
		t.Fatalf("expected dedupe preview to succeed, got %d", code)
	}
	if code := Run([]string{"peek", "--env", envPath}); code != 0 {
		t.Fatalf("expected peek to succeed, got %d", code)
	}
	if code := Run([]string{"flush-seen", "--env", envPath, "--force"}); code != 0 {
		t.Fatalf("expected flush to succeed, got %d", code)
	}
	if code := Run([]string{"remove", "--env", envPath, "--force", "m_missing"}); code != 1 {
		t.Fatalf("expected removing an unknown id to fail, got %d", code)
	}
	if code := Run([]string{"peek", "--env", envPath, "--limit", "0"}); code != 2 {
		t.Fatalf("expected zero limit to be a usage error, got %d", code)
	}
}

func TestPeekMentions_NewestFirstAndOriginFilter(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	backend := store.NewMemory()
	timeline := backend.ScoredSet(mention.TimelineKey)
	for i, origin := range []string{"law_rss", "transit_rss", "law_rss"} {
		m := mention.Mention{
			ID:          "m_" + string(rune('a'+i)),
			Canon:       "https://a.example/" + string(rune('a'+i)),
			Title:       "Story " + string(rune('a'+i)),
			Origin:      origin,
			PublishedTS: int64(1000 + i),
		}
		raw, err := mention.Encode(m)
		if err != nil {
			t.Fatalf("encode: %v", err)
		}
		if _, err := timeline.Add(ctx, m.PublishedTS, raw); err != nil {
			t.Fatalf("add: %v", err)
		}
	}
	if _, err := timeline.Add(ctx, 2000, "not json"); err != nil {
		t.Fatalf("add: %v", err)
	}

	rt := &services{timeline: timeline}
	got, undecodable, err := peekMentions(ctx, rt, 2, "")
	if err != nil {
		t.Fatalf("peek: %v", err)
	}
	if undecodable != 1 || len(got) != 1 || got[0].ID != "m_c" {
		t.Fatalf("unexpected newest peek: %d %+v", undecodable, got)
	}

	got, _, err = peekMentions(ctx, rt, 5, "LAW_RSS")
	if err != nil {
		t.Fatalf("peek: %v", err)
	}
	if len(got) != 2 || got[0].ID != "m_c" || got[1].ID != "m_a" {
		t.Fatalf("unexpected origin peek: %+v", got)
	}
}

func TestOutputHelpers(t *testing.T) {
	t.Parallel()

	rendered := renderTable([]string{"NAME", "COUNT"}, [][]string{{"alpha", "3"}, {"beta"}}, []columnAlignment{alignLeft, alignRight})
	if !strings.Contains(rendered, "NAME") || !strings.Contains(rendered, "alpha") || !strings.Contains(rendered, "beta") {
		t.Fatalf("unexpected table:\n%s", rendered)
	}
	if renderTable(nil, nil, nil) != "" {
		t.Fatalf("expected empty render without headers")
	}
	if got := truncateForTable("abcdefghij", 6); got != "abc..." {
		t.Fatalf("unexpected truncation: %q", got)
	}
	if got := truncateForTable("  short ", 10); got != "short" {
		t.Fatalf("unexpected truncation: %q", got)
	}
	if _, err := parseOutputFormat("xml", outputFormatTable); err == nil {
		t.Fatalf("expected error for unknown format")
	}
	if got, err := parseOutputFormat("", outputFormatJSON); err != nil || got != outputFormatJSON {
		t.Fatalf("expected default format, got %q %v", got, err)
	}
}

func TestConfirmDangerousAction(t *testing.T) {
	t.Parallel()

	ok, err := confirmDangerousAction(strings.NewReader("yes\n"), "Proceed?")
	if err != nil || !ok {
		t.Fatalf("expected yes to confirm, got %v %v", ok, err)
	}
	ok, err = confirmDangerousAction(strings.NewReader(""), "Proceed?")
	if err != nil || ok {
		t.Fatalf("expected empty input to decline, got %v %v", ok, err)
	}
}

func TestSplitList(t *testing.T) {
	t.Parallel()

	got := splitList(" CryptoPanic.com, ,news.example ")
	if len(got) != 2 || got[0] != "cryptopanic.com" || got[1] != "news.example" {
		t.Fatalf("unexpected list: %#v", got)
	}
}
