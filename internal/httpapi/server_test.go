package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/TMG-AI/tara-dashboard/internal/auth"
	"github.com/TMG-AI/tara-dashboard/internal/canon"
	"github.com/TMG-AI/tara-dashboard/internal/dedupe"
	"github.com/TMG-AI/tara-dashboard/internal/filter"
	"github.com/TMG-AI/tara-dashboard/internal/ingest"
	"github.com/TMG-AI/tara-dashboard/internal/ledger"
	"github.com/TMG-AI/tara-dashboard/internal/mention"
	"github.com/TMG-AI/tara-dashboard/internal/metrics"
	"github.com/TMG-AI/tara-dashboard/internal/retention"
	"github.com/TMG-AI/tara-dashboard/internal/store"
)

var fixedNow = time.Date(2026, 10, 14, 12, 0, 0, 0, time.UTC)

type testEnv struct {
	timeline store.ScoredSet
	ledger   *ledger.Ledger
	handler  http.Handler
}

func newTestEnv(t *testing.T, opts Options) *testEnv {
	t.Helper()

	clock := func() time.Time { return fixedNow }
	backend := store.NewMemory()
	timeline := backend.ScoredSet(mention.TimelineKey)
	l := ledger.FromBackend(backend)
	chain, err := filter.Build(filter.DefaultRuleSet(), filter.DefaultOptions())
	if err != nil {
		t.Fatalf("build filter: %v", err)
	}
	collector := metrics.New()
	trimmer := retention.NewTrimmer(timeline, retention.Policy{Weekday: retention.DefaultWindow}, zerolog.Nop()).WithClock(clock)
	service := ingest.NewService(timeline, l, chain, trimmer, collector, ingest.Options{}, zerolog.Nop()).WithClock(clock)
	resolver := dedupe.NewResolver(timeline, l, dedupe.DefaultPolicy(), zerolog.Nop()).WithClock(clock)

	server := NewServer(Dependencies{
		Backend:  backend,
		Timeline: timeline,
		Ledger:   l,
		Ingest:   service,
		Resolver: resolver,
		Metrics:  collector,
	}, zerolog.Nop(), opts).WithClock(clock)

	return &testEnv{timeline: timeline, ledger: l, handler: server.Handler()}
}

func (e *testEnv) do(t *testing.T, method, target, body string, header map[string]string) (*httptest.ResponseRecorder, jsendResponse) {
	t.Helper()

	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)

	var resp jsendResponse
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decode response %q: %v", rec.Body.String(), err)
		}
	}
	return rec, resp
}

func (e *testEnv) seed(t *testing.T, link, title, origin string, published time.Time) mention.Mention {
	t.Helper()

	key := canon.Canonicalize(link, title)
	m := mention.Mention{
		ID:          canon.ID("m", key),
		Canon:       key,
		Title:       title,
		Link:        mention.StringPtr(link),
		Source:      canon.DisplaySource(link, ""),
		Origin:      origin,
		PublishedTS: published.Unix(),
	}
	raw, err := mention.Encode(m)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if _, err := e.timeline.Add(context.Background(), m.PublishedTS, raw); err != nil {
		t.Fatalf("add: %v", err)
	}
	if _, err := e.ledger.Admit(context.Background(), key, m.ID); err != nil {
		t.Fatalf("admit: %v", err)
	}
	return m
}

func dataMap(t *testing.T, resp jsendResponse) map[string]any {
	t.Helper()

	data, ok := resp.Data.(map[string]any)
	if !ok {
		t.Fatalf("expected object data, got %#v", resp.Data)
	}
	return data
}

const meltwaterBody = `{
	"request": {"hook_id": "h1"},
	"documents": [
		{"title": "Court weighs new transit plan", "url": "https://news.example/transit?utm_source=mw", "source": "Metro Daily", "published_date": "2026-10-14T10:00:00Z"},
		{"title": "Council approves library budget", "url": "https://news.example/library", "source": "Metro Daily", "published_date": "2026-10-14T09:00:00Z"}
	]
}`

func TestHealth(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, Options{})
	rec, resp := env.do(t, http.MethodGet, "/api/v1/health", "", nil)
	if rec.Code != http.StatusOK || resp.Status != "success" {
		t.Fatalf("unexpected health response: %d %s", rec.Code, rec.Body.String())
	}
	data := dataMap(t, resp)
	if data["store"] != "memory" || data["status"] != "ok" {
		t.Fatalf("unexpected health data: %#v", data)
	}
}

func TestWebhook_IngestsAndReportsDuplicates(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, Options{})
	rec, resp := env.do(t, http.MethodPost, "/api/v1/webhooks/meltwater", meltwaterBody, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d %s", rec.Code, rec.Body.String())
	}
	data := dataMap(t, resp)
	if data["found"] != float64(2) || data["stored"] != float64(2) {
		t.Fatalf("unexpected batch result: %#v", data)
	}

	_, resp = env.do(t, http.MethodPost, "/api/v1/webhooks/meltwater_webhook", meltwaterBody, nil)
	data = dataMap(t, resp)
	if data["stored"] != float64(0) || data["duplicates"] != float64(2) {
		t.Fatalf("expected replay to be duplicates, got %#v", data)
	}

	count, err := env.timeline.Count(context.Background())
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected two stored mentions, got %d", count)
	}
}

func TestWebhook_RejectsUnknownKindAndBadPayload(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, Options{})
	rec, _ := env.do(t, http.MethodPost, "/api/v1/webhooks/carrier-pigeon", `{}`, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown kind, got %d", rec.Code)
	}

	rec, resp := env.do(t, http.MethodPost, "/api/v1/webhooks/meltwater", `{"documents": "nope"}`, nil)
	if rec.Code != http.StatusBadRequest || resp.Status != "fail" {
		t.Fatalf("expected validation failure, got %d %s", rec.Code, rec.Body.String())
	}

	rec, _ = env.do(t, http.MethodPost, "/api/v1/webhooks/meltwater", `{not json`, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed JSON, got %d", rec.Code)
	}
}

func TestWebhook_RequiresSecretWhenConfigured(t *testing.T) {
	t.Parallel()

	hash, err := auth.HashKey("hook-secret")
	if err != nil {
		t.Fatalf("hash key: %v", err)
	}
	env := newTestEnv(t, Options{WebhookSecret: hash})

	rec, _ := env.do(t, http.MethodPost, "/api/v1/webhooks/meltwater", meltwaterBody, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without key, got %d", rec.Code)
	}
	rec, _ = env.do(t, http.MethodPost, "/api/v1/webhooks/meltwater?key=wrong", meltwaterBody, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 with wrong key, got %d", rec.Code)
	}
	rec, _ = env.do(t, http.MethodPost, "/api/v1/webhooks/meltwater?key=hook-secret", meltwaterBody, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 with query key, got %d %s", rec.Code, rec.Body.String())
	}
	rec, _ = env.do(t, http.MethodPost, "/api/v1/webhooks/meltwater", meltwaterBody, map[string]string{webhookKeyHeader: "hook-secret"})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 with header key, got %d", rec.Code)
	}
}

func TestMentions_WindowFiltersAndOrder(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, Options{})
	env.seed(t, "https://a.example/old", "Old story", "law_rss", fixedNow.Add(-48*time.Hour))
	env.seed(t, "https://a.example/older", "Earlier story", "law_rss", fixedNow.Add(-3*time.Hour))
	env.seed(t, "https://b.example/newer", "Newer transit story", "transit_rss", fixedNow.Add(-time.Hour))

	rec, resp := env.do(t, http.MethodGet, "/api/v1/mentions", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
	data := dataMap(t, resp)
	if data["count"] != float64(2) || data["window"] != "24h" {
		t.Fatalf("unexpected listing: %#v", data)
	}
	list := data["mentions"].([]any)
	if first := list[0].(map[string]any); first["title"] != "Newer transit story" {
		t.Fatalf("expected newest first, got %#v", first)
	}

	_, resp = env.do(t, http.MethodGet, "/api/v1/mentions?window=7d&origin=law_rss", "", nil)
	if data := dataMap(t, resp); data["count"] != float64(2) {
		t.Fatalf("expected two law mentions in 7d, got %#v", data["count"])
	}

	_, resp = env.do(t, http.MethodGet, "/api/v1/mentions?q=transit&limit=5", "", nil)
	if data := dataMap(t, resp); data["count"] != float64(1) {
		t.Fatalf("expected one transit match, got %#v", data["count"])
	}

	rec, _ = env.do(t, http.MethodGet, "/api/v1/mentions?window=year", "", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown window, got %d", rec.Code)
	}
	rec, _ = env.do(t, http.MethodGet, "/api/v1/mentions?limit=0", "", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for zero limit, got %d", rec.Code)
	}
}

func TestStats(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, Options{})
	env.seed(t, "https://a.example/one", "One", "law_rss", fixedNow.Add(-time.Hour))

	_, resp := env.do(t, http.MethodGet, "/api/v1/stats", "", nil)
	data := dataMap(t, resp)
	if data["timeline"] != float64(1) || data["newest_published"] != "2026-10-14T11:00:00Z" {
		t.Fatalf("unexpected stats: %#v", data)
	}
	counts := data["ledger"].(map[string]any)
	if counts["seen_canonical"] != float64(1) || counts["seen_ids"] != float64(1) {
		t.Fatalf("unexpected ledger counts: %#v", counts)
	}
}

func TestAdminRoutes_DisabledWithoutKey(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, Options{})
	rec, _ := env.do(t, http.MethodPost, "/api/v1/dedupe", "", nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 with admin key unset, got %d", rec.Code)
	}
	rec, _ = env.do(t, http.MethodDelete, "/api/v1/mentions/m_1", "", map[string]string{adminKeyHeader: "anything"})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 with admin key unset, got %d", rec.Code)
	}
}

func TestDedupe_PreviewThenDelete(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, Options{AdminKey: "admin-secret"})
	env.seed(t, "https://news.example/fed", "Stocks Surge After Federal Reserve Decision", "markets_rss", fixedNow.Add(-2*time.Hour))
	env.seed(t, "https://cryptopanic.com/news/1", "Stocks Surge After Federal Reserve Decision", "crypto_rss", fixedNow.Add(-time.Hour))
	header := map[string]string{adminKeyHeader: "admin-secret"}

	rec, _ := env.do(t, http.MethodPost, "/api/v1/dedupe", "", map[string]string{adminKeyHeader: "wrong"})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 with wrong key, got %d", rec.Code)
	}

	rec, resp := env.do(t, http.MethodPost, "/api/v1/dedupe", "", header)
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d %s", rec.Code, rec.Body.String())
	}
	data := dataMap(t, resp)
	if data["mode"] != dedupe.ModePreview || data["to_remove"] != float64(1) || data["removed"] != float64(0) {
		t.Fatalf("unexpected preview report: %#v", data)
	}

	_, resp = env.do(t, http.MethodPost, "/api/v1/dedupe?do=delete&hours=24", "", header)
	data = dataMap(t, resp)
	if data["mode"] != dedupe.ModeDelete || data["removed"] != float64(1) {
		t.Fatalf("unexpected delete report: %#v", data)
	}
	count, err := env.timeline.Count(context.Background())
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected one survivor, got %d", count)
	}

	rec, _ = env.do(t, http.MethodPost, "/api/v1/dedupe?do=purge", "", header)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown mode, got %d", rec.Code)
	}
}

func TestRemoveMention(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, Options{AdminKey: "admin-secret"})
	m := env.seed(t, "https://a.example/one", "One", "law_rss", fixedNow.Add(-time.Hour))
	header := map[string]string{adminKeyHeader: "admin-secret"}

	rec, resp := env.do(t, http.MethodDelete, "/api/v1/mentions/"+m.ID, "", header)
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d %s", rec.Code, rec.Body.String())
	}
	if data := dataMap(t, resp); data["removed"] != float64(1) {
		t.Fatalf("unexpected removal: %#v", data)
	}
	seen, err := env.ledger.SeenID(context.Background(), m.ID)
	if err != nil {
		t.Fatalf("seen id: %v", err)
	}
	if seen {
		t.Fatalf("expected removal to revoke the id")
	}

	rec, _ = env.do(t, http.MethodDelete, "/api/v1/mentions/"+m.ID+"?key=admin-secret", "", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 on second removal, got %d", rec.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, Options{})
	env.do(t, http.MethodGet, "/api/v1/health", "", nil)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected metrics status: %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `tara_http_requests_total{method="GET",route="/api/v1/health",status="200"} 1`) {
		t.Fatalf("expected recorded health request in metrics output")
	}
}

func TestRedactKey(t *testing.T) {
	t.Parallel()

	if got := redactKey("/api/v1/webhooks/meltwater?key=s3cret&x=1"); got != "/api/v1/webhooks/meltwater?key=REDACTED&x=1" {
		t.Fatalf("unexpected redaction: %q", got)
	}
	if got := redactKey("/api/v1/health"); got != "/api/v1/health" {
		t.Fatalf("unexpected redaction: %q", got)
	}
}
