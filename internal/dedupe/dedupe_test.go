package dedupe

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/TMG-AI/tara-dashboard/internal/canon"
	"github.com/TMG-AI/tara-dashboard/internal/ledger"
	"github.com/TMG-AI/tara-dashboard/internal/mention"
	"github.com/TMG-AI/tara-dashboard/internal/store"
)

type fixture struct {
	timeline store.ScoredSet
	ledger   *ledger.Ledger
	resolver *Resolver
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	backend := store.NewMemory()
	timeline := backend.ScoredSet(mention.TimelineKey)
	l := ledger.FromBackend(backend)
	resolver := NewResolver(timeline, l, DefaultPolicy(), zerolog.Nop()).
		WithClock(func() time.Time { return time.Unix(10_000, 0).UTC() })
	return &fixture{timeline: timeline, ledger: l, resolver: resolver}
}

// seed stores a mention and claims its keys, as ingestion would.
func (f *fixture) seed(t *testing.T, link, title string, ts int64) mention.Mention {
	t.Helper()

	key := canon.Canonicalize(link, title)
	m := mention.Mention{
		ID:          canon.ID("m", key),
		Canon:       key,
		Title:       title,
		Link:        mention.StringPtr(link),
		Source:      canon.DisplaySource(link, ""),
		Origin:      "rss",
		PublishedTS: ts,
	}
	f.add(t, m)
	if _, err := f.ledger.Admit(context.Background(), key, m.ID); err != nil {
		t.Fatalf("admit %s: %v", key, err)
	}
	return m
}

func (f *fixture) add(t *testing.T, m mention.Mention) string {
	t.Helper()

	raw, err := mention.Encode(m)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if _, err := f.timeline.Add(context.Background(), m.PublishedTS, raw); err != nil {
		t.Fatalf("add: %v", err)
	}
	return raw
}

func (f *fixture) titles(t *testing.T) []string {
	t.Helper()

	members, err := f.timeline.RangeByRank(context.Background(), 0, -1, true)
	if err != nil {
		t.Fatalf("range: %v", err)
	}
	titles := make([]string, 0, len(members))
	for _, raw := range members {
		m, err := mention.Decode(raw)
		if err != nil {
			titles = append(titles, "<unparseable>")
			continue
		}
		titles = append(titles, m.Source+": "+m.Title)
	}
	return titles
}

func TestRun_TitleExactPrefersOriginalOverAggregator(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newFixture(t)
	f.seed(t, "https://source.com/widget", "Widget Co Announces Results", 100)
	f.seed(t, "https://cryptopanic.com/news/1", "Widget Co Announces Results", 200)

	report, err := f.resolver.Run(ctx, Options{Commit: true})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if report.ByTitleExact != 1 || report.ToRemove != 1 || report.Removed != 1 {
		t.Fatalf("unexpected report: %+v", report)
	}
	if report.Mode != ModeDelete || report.RunID == "" {
		t.Fatalf("expected delete mode with a run id, got %+v", report)
	}
	if len(report.Sample) != 1 || report.Sample[0].Pass != PassTitleExact || report.Sample[0].Source != "cryptopanic.com" {
		t.Fatalf("unexpected sample: %+v", report.Sample)
	}

	titles := f.titles(t)
	if len(titles) != 1 || titles[0] != "source.com: Widget Co Announces Results" {
		t.Fatalf("expected only the original to survive, got %v", titles)
	}

	seen, err := f.ledger.Seen(ctx, "https://cryptopanic.com/news/1")
	if err != nil {
		t.Fatalf("seen: %v", err)
	}
	if seen {
		t.Fatalf("expected removed aggregator key to be revoked")
	}
	if report.Revoked != 2 {
		t.Fatalf("expected canonical key and id to be revoked, got %d", report.Revoked)
	}
}

func TestRun_AggregatorOnlyGroupKeepsNewest(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.seed(t, "https://cryptopanic.com/news/1", "Token Unlock Schedule Published", 100)
	f.seed(t, "https://cryptopanic.com/news/2", "Token Unlock Schedule Published", 300)

	report, err := f.resolver.Run(context.Background(), Options{Commit: true})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if report.ByTitleExact != 1 || report.Removed != 1 {
		t.Fatalf("unexpected report: %+v", report)
	}

	members, _ := f.timeline.RangeByRank(context.Background(), 0, -1, false)
	if len(members) != 1 {
		t.Fatalf("expected one survivor, got %d", len(members))
	}
	survivor, _ := mention.Decode(members[0])
	if survivor.PublishedTS != 300 {
		t.Fatalf("expected newest aggregator copy to survive, got ts %d", survivor.PublishedTS)
	}
}

func TestRun_FuzzyTitleDropsAggregatorCopy(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.seed(t, "https://news.example/fed", "Stocks Surge Following Federal Reserve Decision", 100)
	f.seed(t, "https://cryptopanic.com/news/9", "Stocks Surge After Federal Reserve Decision", 200)
	f.seed(t, "https://cryptopanic.com/news/10", "Completely Different Story About Mining", 150)

	report, err := f.resolver.Run(context.Background(), Options{})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if report.ByTitleFuzzy != 1 || report.ByTitleExact != 0 || report.ToRemove != 1 {
		t.Fatalf("unexpected report: %+v", report)
	}
	if report.Sample[0].Pass != PassTitleFuzzy {
		t.Fatalf("unexpected sample pass: %+v", report.Sample[0])
	}
}

func TestRun_FuzzyNeverDropsOriginals(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.seed(t, "https://a.example/fed", "Stocks Surge Following Federal Reserve Decision", 100)
	f.seed(t, "https://b.example/fed", "Stocks Surge After Federal Reserve Decision", 200)

	report, err := f.resolver.Run(context.Background(), Options{})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if report.ToRemove != 0 {
		t.Fatalf("expected two originals with similar titles to survive, got %+v", report)
	}
}

func TestRun_PreviewLeavesStoreUntouched(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newFixture(t)
	f.seed(t, "https://source.com/widget", "Widget Co Announces Results", 100)
	f.seed(t, "https://cryptopanic.com/news/1", "Widget Co Announces Results", 200)

	report, err := f.resolver.Run(ctx, Options{})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if report.Mode != ModePreview || report.ToRemove != 1 || report.Removed != 0 {
		t.Fatalf("unexpected preview report: %+v", report)
	}
	if count, _ := f.timeline.Count(ctx); count != 2 {
		t.Fatalf("expected preview to keep both members, got %d", count)
	}
	if seen, _ := f.ledger.Seen(ctx, "https://cryptopanic.com/news/1"); !seen {
		t.Fatalf("expected preview to leave the ledger alone")
	}
}

func TestRun_IDAndCanonPasses(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newFixture(t)
	newest := f.seed(t, "https://a.com/x", "First Title", 300)

	sameID := newest
	sameID.Summary = "older wording"
	sameID.PublishedTS = 200
	f.add(t, sameID)

	sameCanon := mention.Mention{
		ID:          "legacy_1",
		Canon:       newest.Canon,
		Title:       "Another Title Entirely",
		Link:        newest.Link,
		PublishedTS: 100,
	}
	f.add(t, sameCanon)

	report, err := f.resolver.Run(ctx, Options{Commit: true})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if report.ByID != 1 || report.ByCanon != 2 || report.ToRemove != 2 || report.Removed != 2 {
		t.Fatalf("unexpected report: %+v", report)
	}
	if report.RemovedByPass[PassID] != 1 || report.RemovedByPass[PassCanon] != 1 {
		t.Fatalf("expected removals attributed to their first pass, got %v", report.RemovedByPass)
	}

	titles := f.titles(t)
	if len(titles) != 1 || titles[0] != "a.com: First Title" {
		t.Fatalf("expected newest record to survive, got %v", titles)
	}

	// The survivor still holds the canonical key and id.
	if seen, _ := f.ledger.Seen(ctx, newest.Canon); !seen {
		t.Fatalf("expected canonical key held by the survivor to stay claimed")
	}
	if seen, _ := f.ledger.SeenID(ctx, newest.ID); !seen {
		t.Fatalf("expected id held by the survivor to stay claimed")
	}
	if seen, _ := f.ledger.SeenID(ctx, "legacy_1"); seen {
		t.Fatalf("expected orphaned id to be released")
	}
	if report.Revoked != 1 {
		t.Fatalf("expected only the orphaned id to be revoked, got %d", report.Revoked)
	}
}

func TestRun_CountsUnparseableMembers(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newFixture(t)
	f.seed(t, "https://a.com/x", "Kept", 100)
	if _, err := f.timeline.Add(ctx, 50, "{not json"); err != nil {
		t.Fatalf("add: %v", err)
	}
	if _, err := f.timeline.Add(ctx, 60, `{"title":"no id"}`); err != nil {
		t.Fatalf("add: %v", err)
	}

	report, err := f.resolver.Run(ctx, Options{Commit: true})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if report.Scanned != 3 || report.ParsedOK != 1 || report.ParseFailed != 2 || report.ToRemove != 0 {
		t.Fatalf("unexpected report: %+v", report)
	}
	if count, _ := f.timeline.Count(ctx); count != 3 {
		t.Fatalf("expected unparseable members to be left in place, got %d", count)
	}
}

func TestRun_SnapshotBounds(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newFixture(t)
	f.seed(t, "https://source.com/old", "Widget Co Announces Results", 1_000)
	f.seed(t, "https://cryptopanic.com/news/1", "Widget Co Announces Results", 9_500)
	f.seed(t, "https://cryptopanic.com/news/2", "Widget Co Announces Results", 9_900)

	// The original is outside the hour, so only the aggregator pair is compared.
	report, err := f.resolver.Run(ctx, Options{Since: time.Hour})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if report.Scanned != 2 || report.ToRemove != 1 {
		t.Fatalf("unexpected time-bounded report: %+v", report)
	}
	if report.Sample[0].Link == nil || *report.Sample[0].Link != "https://cryptopanic.com/news/1" {
		t.Fatalf("expected the older aggregator copy to be dropped, got %+v", report.Sample[0])
	}

	report, err = f.resolver.Run(ctx, Options{Limit: 1})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if report.Scanned != 1 || report.ToRemove != 0 {
		t.Fatalf("unexpected limited report: %+v", report)
	}
}

func TestRun_WithoutPreferOriginalKeepsNewest(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	policy := DefaultPolicy()
	policy.PreferOriginal = false
	resolver := NewResolver(f.timeline, f.ledger, policy, zerolog.Nop())

	f.seed(t, "https://source.com/widget", "Widget Co Announces Results", 100)
	f.seed(t, "https://cryptopanic.com/news/1", "Widget Co Announces Results", 200)

	report, err := resolver.Run(context.Background(), Options{})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if report.ToRemove != 1 || report.Sample[0].Source != "source.com" {
		t.Fatalf("expected the older original to be dropped, got %+v", report)
	}
}
