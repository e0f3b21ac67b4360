package source

import (
	"errors"
	"testing"
	"time"
)

func TestDecode_MeltwaterEnvelope(t *testing.T) {
	t.Parallel()

	body := []byte(`{
		"request": {"hook_id": "h1"},
		"documents": [
			{
				"content": {"title": "AI rules for lawyers", "url": "https://law.example/ai?utm_source=mw"},
				"matched": {"hit_sentence": "... courts weigh AI ..."},
				"source": {"name": "Law Daily"},
				"published_date": "2026-10-13T12:00:00Z",
				"metrics": {"reach": 1200},
				"sentiment": "Positive"
			},
			{"title": "Second", "url": "https://b.example/x", "source": "Wire"}
		]
	}`)

	raws := Decode("meltwater_webhook", body)
	if len(raws) != 2 {
		t.Fatalf("expected two documents, got %d", len(raws))
	}

	first, err := Adapt(raws[0])
	if err != nil {
		t.Fatalf("adapt: %v", err)
	}
	if first.Title != "AI rules for lawyers" || first.Source != "Law Daily" || first.Summary != "courts weigh AI" {
		t.Fatalf("unexpected candidate: %+v", first)
	}
	if first.Kind != TagMeltwater || first.Origin != OriginMeltwater || first.Section != SectionMeltwater {
		t.Fatalf("unexpected provenance: %+v", first)
	}
	if first.Reach == nil || *first.Reach != 1200 {
		t.Fatalf("unexpected reach: %v", first.Reach)
	}
	if first.Sentiment == nil || *first.Sentiment != 1 || first.SentimentLabel == nil || *first.SentimentLabel != "positive" {
		t.Fatalf("unexpected sentiment: %v %v", first.Sentiment, first.SentimentLabel)
	}
	if !first.PublishedAt.Equal(time.Date(2026, 10, 13, 12, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected published time: %s", first.PublishedAt)
	}

	second, err := Adapt(raws[1])
	if err != nil {
		t.Fatalf("adapt: %v", err)
	}
	if second.Source != "Wire" || second.Reach != nil || second.Sentiment != nil {
		t.Fatalf("unexpected second candidate: %+v", second)
	}
}

func TestDecode_EmptyMeltwaterEnvelope(t *testing.T) {
	t.Parallel()

	if raws := Decode(KindMeltwater, []byte(`{"request": {}, "documents": []}`)); len(raws) != 0 {
		t.Fatalf("expected no items, got %d", len(raws))
	}
}

func TestDecode_FailuresBecomeParseFailures(t *testing.T) {
	t.Parallel()

	cases := map[string][]byte{
		"carrier-pigeon": []byte(`{"title": "x"}`),
		KindNewsletter:   []byte(`{not json`),
		KindGoogleAlerts: []byte(`"just a string"`),
		KindRSS:          []byte(``),
	}
	for kind, body := range cases {
		raws := Decode(kind, body)
		if len(raws) != 1 {
			t.Fatalf("%s: expected one item, got %d", kind, len(raws))
		}
		if _, ok := raws[0].(ParseFailure); !ok {
			t.Fatalf("%s: expected parse failure, got %T", kind, raws[0])
		}

		_, err := Adapt(raws[0])
		var parseErr *ParseError
		if !errors.As(err, &parseErr) {
			t.Fatalf("%s: expected *ParseError, got %v", kind, err)
		}
	}
}

func TestDecode_ArrayOfNewsletterItems(t *testing.T) {
	t.Parallel()

	body := []byte(`[
		{"headline": "AI tools for lawyers", "url": "https://n.example/a", "newsletter": "Legal Brief", "keyword": "AI"},
		{"title": "Linkless item", "source": "Legal Brief"}
	]`)
	raws := Decode("newsletters", body)
	if len(raws) != 2 {
		t.Fatalf("expected two items, got %d", len(raws))
	}

	first, err := Adapt(raws[0])
	if err != nil {
		t.Fatalf("adapt: %v", err)
	}
	if first.Title != "AI tools for lawyers" || first.Link != "https://n.example/a" || first.Provider != "Legal Brief" {
		t.Fatalf("unexpected candidate: %+v", first)
	}
	if len(first.Matched) != 2 || first.Matched[0] != "newsletter" || first.Matched[1] != "ai" {
		t.Fatalf("unexpected matched list: %v", first.Matched)
	}

	linkless, err := Adapt(raws[1])
	if err != nil {
		t.Fatalf("adapt: %v", err)
	}
	if linkless.Link != "" || linkless.Title != "Linkless item" {
		t.Fatalf("expected linkless item to keep its title, got %+v", linkless)
	}
}

func TestAdapt_Congress(t *testing.T) {
	t.Parallel()

	raws := Decode("bills", []byte(`{"bills": [{
		"congress": 119, "number": "1234", "type": "HR",
		"title": "Countering Chinese Influence Act",
		"updateDate": "2026-10-01",
		"latestAction": {"text": "Referred to committee.", "actionDate": "2026-10-02"}
	}]}`))
	if len(raws) != 1 {
		t.Fatalf("expected one bill, got %d", len(raws))
	}

	candidate, err := Adapt(raws[0])
	if err != nil {
		t.Fatalf("adapt: %v", err)
	}
	if candidate.Link != "https://www.congress.gov/bill/119th-congress/house-bill/1234" {
		t.Fatalf("unexpected bill link: %q", candidate.Link)
	}
	if candidate.Title != "HR1234: Countering Chinese Influence Act" || candidate.Summary != "Referred to committee." {
		t.Fatalf("unexpected candidate: %+v", candidate)
	}
	if !candidate.PublishedAt.Equal(time.Date(2026, 10, 2, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("expected latest action date, got %s", candidate.PublishedAt)
	}

	_, err = Adapt(CongressBill{Title: "no number"})
	var parseErr *ParseError
	if !errors.As(err, &parseErr) || parseErr.Kind != KindCongress {
		t.Fatalf("expected congress parse error, got %v", err)
	}
}

func TestAdapt_RSSAndGoogleAlert(t *testing.T) {
	t.Parallel()

	rss, err := Adapt(RSSItem{
		Origin:    "delta_air_lines_rss",
		FeedTitle: "Google Alert - Delta",
		Title:     " Delta expands lounges ",
		Link:      "https://www.google.com/url?q=https://www.travel.example/delta&sa=U",
		Summary:   "<p>Delta <b>adds</b> lounges&nbsp;in Atlanta</p><script>x()</script>",
		Published: "Tue, 13 Oct 2026 09:30:00 +0000",
	})
	if err != nil {
		t.Fatalf("adapt rss: %v", err)
	}
	if rss.Title != "Delta expands lounges" || rss.Source != "travel.example" || rss.Section != "Delta Air Lines" {
		t.Fatalf("unexpected rss candidate: %+v", rss)
	}
	if rss.Link != "https://www.travel.example/delta" {
		t.Fatalf("expected unwrapped link, got %q", rss.Link)
	}
	if rss.Summary != "Delta adds lounges in Atlanta" {
		t.Fatalf("unexpected flattened summary: %q", rss.Summary)
	}
	if rss.PublishedAt.IsZero() {
		t.Fatalf("expected rss date to parse")
	}

	if _, err := Adapt(GoogleAlert{Title: "no link"}); err == nil {
		t.Fatalf("expected linkless alert to fail")
	}
	alert, err := Adapt(GoogleAlert{Title: "Alert", Link: "https://amp.news.example/a"})
	if err != nil {
		t.Fatalf("adapt alert: %v", err)
	}
	if alert.Source != "news.example" || alert.Kind != TagGoogleAlerts || !alert.PublishedAt.IsZero() {
		t.Fatalf("unexpected alert candidate: %+v", alert)
	}
}

func TestAdapt_CarriesDeclaredLanguage(t *testing.T) {
	t.Parallel()

	rssRaws := Decode(KindRSS, []byte(`{"title": "Acme abre oficina", "link": "https://news.example/a", "language": "es"}`))
	mwRaws := Decode(KindMeltwater, []byte(`{"documents": [{"title": "Acme opens office", "url": "https://news.example/b", "lang": "en-GB"}]}`))
	if len(rssRaws) != 1 || len(mwRaws) != 1 {
		t.Fatalf("expected one item per body, got %d and %d", len(rssRaws), len(mwRaws))
	}

	rss, err := Adapt(rssRaws[0])
	if err != nil {
		t.Fatalf("adapt rss: %v", err)
	}
	if rss.Language != "es" {
		t.Fatalf("expected rss language to carry through, got %q", rss.Language)
	}
	doc, err := Adapt(mwRaws[0])
	if err != nil {
		t.Fatalf("adapt meltwater: %v", err)
	}
	if doc.Language != "en-GB" {
		t.Fatalf("expected meltwater language to carry through, got %q", doc.Language)
	}
}

func TestFlattenHTML(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"":                              "",
		"  plain   text ":               "plain text",
		"<div>one</div><div>two</div>":  "one two",
		"Fish &amp; Chips":              "Fish & Chips",
		"<style>p{}</style><p>body</p>": "body",
	}
	for input, want := range cases {
		if got := FlattenHTML(input); got != want {
			t.Fatalf("FlattenHTML(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestParseTime(t *testing.T) {
	t.Parallel()

	want := time.Date(2026, 10, 13, 9, 30, 0, 0, time.UTC)
	for _, input := range []string{"2026-10-13T09:30:00Z", "2026-10-13T05:30:00-04:00", "Tue, 13 Oct 2026 09:30:00 +0000"} {
		if got := ParseTime(input); !got.Equal(want) {
			t.Fatalf("ParseTime(%q) = %s", input, got)
		}
	}
	if got := ParseTime("yesterday"); !got.IsZero() {
		t.Fatalf("expected unrecognized date to yield zero time, got %s", got)
	}
}
