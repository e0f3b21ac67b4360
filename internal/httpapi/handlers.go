package httpapi

import (
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/TMG-AI/tara-dashboard/internal/auth"
	"github.com/TMG-AI/tara-dashboard/internal/dedupe"
	"github.com/TMG-AI/tara-dashboard/internal/mention"
	"github.com/TMG-AI/tara-dashboard/internal/source"
	"github.com/TMG-AI/tara-dashboard/internal/store"
	payloadschema "github.com/TMG-AI/tara-dashboard/schema"
)

const (
	adminKeyHeader   = "X-Admin-Key"
	webhookKeyHeader = "X-Webhook-Key"
)

type mentionList struct {
	Window   string            `json:"window"`
	Since    time.Time         `json:"since"`
	Count    int               `json:"count"`
	Mentions []mention.Mention `json:"mentions"`
}

func (s *Server) handleHealth(c echo.Context) error {
	status := "ok"
	data := map[string]any{
		"service": "tara",
		"time":    s.now().UTC().Format(time.RFC3339),
	}
	if s.deps.Backend != nil {
		data["store"] = s.deps.Backend.Name()
		if err := s.deps.Backend.Ping(c.Request().Context()); err != nil {
			s.logger.Error().Err(err).Msg("store ping failed")
			status = "degraded"
		}
	}
	data["status"] = status
	if status != "ok" {
		return fail(c, http.StatusServiceUnavailable, "Store unavailable", data)
	}
	return success(c, data)
}

func (s *Server) handleStats(c echo.Context) error {
	ctx := c.Request().Context()
	total, err := s.deps.Timeline.Count(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("count timeline failed")
		return internalError(c, "Failed to load stats")
	}

	data := map[string]any{"timeline": total}
	if s.deps.Ledger != nil {
		counts, err := s.deps.Ledger.Counts(ctx)
		if err != nil {
			s.logger.Error().Err(err).Msg("count ledger failed")
			return internalError(c, "Failed to load stats")
		}
		data["ledger"] = counts
	}

	newest, err := s.deps.Timeline.RangeByRank(ctx, 0, 0, true)
	if err != nil {
		s.logger.Error().Err(err).Msg("load newest mention failed")
		return internalError(c, "Failed to load stats")
	}
	if len(newest) == 1 {
		if m, err := mention.Decode(newest[0]); err == nil {
			data["newest_published"] = m.Published
		}
	}
	return success(c, data)
}

func (s *Server) handleMentions(c echo.Context) error {
	window := strings.ToLower(strings.TrimSpace(c.QueryParam("window")))
	if window == "" {
		window = "24h"
	}
	since, ok := windowStart(window, s.now(), s.opts.Location)
	if !ok {
		return failValidation(c, map[string]string{"window": "must be 24h, today, 7d or 30d"})
	}
	limit, err := parsePositiveInt(c.QueryParam("limit"), defaultMentionLimit, 1, maxMentionLimit)
	if err != nil {
		return failValidation(c, map[string]string{"limit": err.Error()})
	}

	origin := strings.TrimSpace(c.QueryParam("origin"))
	section := strings.TrimSpace(c.QueryParam("section"))
	query := strings.ToLower(strings.TrimSpace(c.QueryParam("q")))

	members, err := s.deps.Timeline.RangeByScore(c.Request().Context(), since.Unix(), store.MaxScore)
	if err != nil {
		s.logger.Error().Err(err).Msg("list mentions failed")
		return internalError(c, "Failed to list mentions")
	}

	out := make([]mention.Mention, 0, min(limit, len(members)))
	for i := len(members) - 1; i >= 0 && len(out) < limit; i-- {
		m, err := mention.Decode(members[i])
		if err != nil {
			continue
		}
		if origin != "" && !strings.EqualFold(m.Origin, origin) {
			continue
		}
		if section != "" && !strings.EqualFold(m.Section, section) {
			continue
		}
		if query != "" && !strings.Contains(strings.ToLower(m.Title+" "+m.Summary), query) {
			continue
		}
		out = append(out, m)
	}

	return success(c, mentionList{
		Window:   window,
		Since:    since.UTC(),
		Count:    len(out),
		Mentions: out,
	})
}

func (s *Server) handleWebhook(c echo.Context) error {
	kind := strings.TrimSpace(c.Param("kind"))
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return fail(c, http.StatusBadRequest, "Failed to read request body", nil)
	}

	if err := payloadschema.Validate(kind, body); err != nil {
		if errors.Is(err, payloadschema.ErrUnknownKind) {
			return failNotFound(c, "Unknown webhook kind")
		}
		return failValidation(c, map[string]string{"body": err.Error()})
	}

	raws := source.Decode(kind, body)
	result, err := s.deps.Ingest.IngestBatch(c.Request().Context(), "", raws)
	if err != nil {
		s.logger.Error().Err(err).Str("kind", kind).Msg("webhook ingest interrupted")
		return internalError(c, "Failed to ingest payload")
	}

	s.logger.Info().
		Str("kind", source.NormalizeKind(kind)).
		Int("found", result.Found).
		Int("stored", result.Stored).
		Int("duplicates", result.Duplicates).
		Int("filtered", result.Filtered).
		Int("invalid", result.Invalid).
		Int("failed", result.Failed).
		Msg("webhook ingested")
	return success(c, result)
}

func (s *Server) handleDedupe(c echo.Context) error {
	if s.deps.Resolver == nil {
		return internalError(c, "Dedupe is not configured")
	}

	mode := strings.ToLower(strings.TrimSpace(c.QueryParam("do")))
	if mode != "" && mode != dedupe.ModeDelete && mode != dedupe.ModePreview {
		return failValidation(c, map[string]string{"do": "must be preview or delete"})
	}
	limit, err := parsePositiveInt(c.QueryParam("limit"), s.opts.DedupeLimit, 1, 100000)
	if err != nil {
		return failValidation(c, map[string]string{"limit": err.Error()})
	}
	hours, err := parsePositiveInt(c.QueryParam("hours"), 0, 0, 24*365)
	if err != nil {
		return failValidation(c, map[string]string{"hours": err.Error()})
	}
	today := false
	switch strings.ToLower(strings.TrimSpace(c.QueryParam("today"))) {
	case "", "0", "false", "no":
	case "1", "true", "yes":
		today = true
	default:
		return failValidation(c, map[string]string{"today": "must be a boolean"})
	}

	report, err := s.deps.Resolver.Run(c.Request().Context(), dedupe.Options{
		Limit:    limit,
		Since:    time.Duration(hours) * time.Hour,
		Today:    today,
		Location: s.opts.Location,
		Commit:   mode == dedupe.ModeDelete,
	})
	if err != nil {
		s.logger.Error().Err(err).Str("run_id", report.RunID).Msg("dedupe failed")
		return internalError(c, "Dedupe failed")
	}
	for pass, n := range report.RemovedByPass {
		s.deps.Metrics.RecordDedupe(pass, n)
	}
	return success(c, report)
}

func (s *Server) handleRemoveMention(c echo.Context) error {
	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		return failValidation(c, map[string]string{"id": "is required"})
	}

	removal, err := s.deps.Ingest.Remove(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return failNotFound(c, "Mention not found")
		}
		s.logger.Error().Err(err).Str("id", id).Msg("remove mention failed")
		return internalError(c, "Failed to remove mention")
	}
	return success(c, removal)
}

// requireAdminKey rejects requests when ADMIN_KEY is unset or not presented.
func (s *Server) requireAdminKey(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if s.opts.AdminKey == "" {
			return fail(c, http.StatusForbidden, "Admin routes are disabled", nil)
		}
		if !auth.VerifyKey(presentedKey(c, adminKeyHeader), s.opts.AdminKey) {
			return failUnauthorized(c, "Invalid admin key")
		}
		return next(c)
	}
}

// requireWebhookSecret is a no-op when WEBHOOK_SECRET is unset.
func (s *Server) requireWebhookSecret(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if s.opts.WebhookSecret == "" {
			return next(c)
		}
		if !auth.VerifyKey(presentedKey(c, webhookKeyHeader), s.opts.WebhookSecret) {
			return failUnauthorized(c, "Invalid webhook key")
		}
		return next(c)
	}
}

func presentedKey(c echo.Context, header string) string {
	if value := strings.TrimSpace(c.Request().Header.Get(header)); value != "" {
		return value
	}
	return strings.TrimSpace(c.QueryParam("key"))
}

func windowStart(window string, now time.Time, loc *time.Location) (time.Time, bool) {
	if loc == nil {
		loc = time.UTC
	}
	switch window {
	case "24h":
		return now.Add(-24 * time.Hour), true
	case "today":
		local := now.In(loc)
		return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc), true
	case "7d":
		return now.Add(-7 * 24 * time.Hour), true
	case "30d":
		return now.Add(-30 * 24 * time.Hour), true
	default:
		return time.Time{}, false
	}
}
