// Package ingest runs candidate mentions through canonicalization, the
// identity ledger, the relevance filter and the timeline.
package ingest

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/TMG-AI/tara-dashboard/internal/canon"
	"github.com/TMG-AI/tara-dashboard/internal/filter"
	"github.com/TMG-AI/tara-dashboard/internal/globaltime"
	"github.com/TMG-AI/tara-dashboard/internal/ledger"
	"github.com/TMG-AI/tara-dashboard/internal/mention"
	"github.com/TMG-AI/tara-dashboard/internal/metrics"
	"github.com/TMG-AI/tara-dashboard/internal/retention"
	"github.com/TMG-AI/tara-dashboard/internal/store"
)

type Status string

const (
	StatusStored    Status = "stored"
	StatusDuplicate Status = "duplicate"
	StatusFiltered  Status = "filtered"
	StatusInvalid   Status = "invalid"
	// StatusFailed marks an item the store could not record. It is retryable,
	// unlike an invalid item.
	StatusFailed Status = "failed"
)

type Outcome struct {
	Status  Status           `json:"status"`
	Rule    string           `json:"rule,omitempty"`
	Reason  string           `json:"reason,omitempty"`
	ID      string           `json:"id,omitempty"`
	Canon   string           `json:"canon,omitempty"`
	Mention *mention.Mention `json:"mention,omitempty"`
}

type Options struct {
	// Sentiment scores candidates that arrive without a sentiment value.
	Sentiment bool
	// Topics are recorded in a mention's matched list when they occur in its
	// title or summary.
	Topics []string
}

type Service struct {
	timeline store.ScoredSet
	ledger   *ledger.Ledger
	chain    *filter.Chain
	trimmer  *retention.Trimmer
	metrics  *metrics.Collector
	opts     Options
	now      func() time.Time
	logger   zerolog.Logger
}

func NewService(
	timeline store.ScoredSet,
	l *ledger.Ledger,
	chain *filter.Chain,
	trimmer *retention.Trimmer,
	collector *metrics.Collector,
	opts Options,
	logger zerolog.Logger,
) *Service {
	return &Service{
		timeline: timeline,
		ledger:   l,
		chain:    chain,
		trimmer:  trimmer,
		metrics:  collector,
		opts:     opts,
		now:      globaltime.Now,
		logger:   logger,
	}
}

func (s *Service) WithClock(now func() time.Time) *Service {
	if now != nil {
		s.now = now
	}
	return s
}

// Ingest admits one candidate. The canonical key is claimed before the filter
// runs, so a rejected item stays claimed and is not re-evaluated on the next
// poll. A store error is returned with the outcome reached so far.
func (s *Service) Ingest(ctx context.Context, candidate mention.Candidate) (Outcome, error) {
	if s == nil || s.timeline == nil || s.ledger == nil {
		return Outcome{}, fmt.Errorf("ingest service is not initialized")
	}

	outcome, err := s.ingest(ctx, candidate)
	s.metrics.RecordIngest(normalizeOrigin(candidate.Origin), string(outcome.Status))
	return outcome, err
}

func (s *Service) ingest(ctx context.Context, candidate mention.Candidate) (Outcome, error) {
	title := strings.TrimSpace(candidate.Title)
	link := strings.TrimSpace(candidate.Link)
	if link == "#" {
		link = ""
	}
	if title == "" && link == "" {
		return Outcome{Status: StatusInvalid, Reason: "candidate has neither title nor link"}, nil
	}

	key := canon.Canonicalize(link, title)
	if key == "" {
		return Outcome{Status: StatusInvalid, Reason: "canonical key is empty"}, nil
	}
	id := canon.ID(candidate.Kind, key)
	outcome := Outcome{ID: id, Canon: key}

	admitted, err := s.ledger.Admit(ctx, key, id)
	if err != nil {
		outcome.Status = StatusFailed
		return outcome, fmt.Errorf("admit %s: %w", id, err)
	}
	if !admitted {
		outcome.Status = StatusDuplicate
		return outcome, nil
	}

	if s.chain != nil {
		decision := s.chain.Evaluate(filter.Candidate{
			Origin:   candidate.Origin,
			Title:    title,
			Summary:  candidate.Summary,
			Source:   candidate.Source,
			Link:     link,
			Language: candidate.Language,
		})
		if decision.Reject {
			s.logger.Debug().
				Str("id", id).
				Str("origin", candidate.Origin).
				Str("rule", decision.Rule).
				Str("reason", decision.Reason).
				Str("title", title).
				Msg("candidate filtered")
			s.metrics.RecordRejection(decision.Rule)
			outcome.Status = StatusFiltered
			outcome.Rule = decision.Rule
			outcome.Reason = decision.Reason
			return outcome, nil
		}
	}

	m := s.buildMention(candidate, id, key, title, link)
	raw, err := mention.Encode(m)
	if err != nil {
		outcome.Status = StatusInvalid
		return outcome, fmt.Errorf("encode mention %s: %w", id, err)
	}
	if _, err := s.timeline.Add(ctx, m.PublishedTS, raw); err != nil {
		// Release the claim so a later poll can store the item.
		if revokeErr := s.ledger.Revoke(ctx, key, id); revokeErr != nil {
			s.logger.Warn().Err(revokeErr).Str("id", id).Msg("failed to release claim after store error")
		}
		outcome.Status = StatusFailed
		return outcome, fmt.Errorf("store mention %s: %w", id, err)
	}

	outcome.Status = StatusStored
	outcome.Mention = &m
	s.logger.Debug().Str("id", id).Str("origin", m.Origin).Str("source", m.Source).Msg("mention stored")

	if s.trimmer != nil {
		removed, err := s.trimmer.TrimNow(ctx)
		if err != nil {
			return outcome, err
		}
		s.metrics.RecordTrim(removed)
	}
	return outcome, nil
}

func (s *Service) buildMention(candidate mention.Candidate, id, key, title, link string) mention.Mention {
	now := s.now().UTC()
	published := candidate.PublishedAt
	if published.IsZero() || published.After(now) {
		published = now
	}

	source := strings.TrimSpace(candidate.Source)
	if source == "" {
		source = canon.DisplaySource(link, candidate.Origin)
	}

	m := mention.Mention{
		ID:             id,
		Canon:          key,
		Title:          title,
		Link:           mention.StringPtr(link),
		Source:         source,
		Origin:         strings.TrimSpace(candidate.Origin),
		Section:        strings.TrimSpace(candidate.Section),
		Summary:        strings.TrimSpace(candidate.Summary),
		PublishedTS:    published.Unix(),
		Published:      mention.FormatPublished(published.Unix()),
		Reach:          candidate.Reach,
		Sentiment:      candidate.Sentiment,
		SentimentLabel: candidate.SentimentLabel,
		Matched:        mergeMatched(candidate.Matched, filter.MatchKeywords(title+" "+candidate.Summary, s.opts.Topics)),
		Provider:       strings.TrimSpace(candidate.Provider),
	}
	if m.Title == "" {
		m.Title = mention.UntitledTitle
	}
	if s.opts.Sentiment && m.Sentiment == nil {
		score := SentimentScore(title + " " + candidate.Summary)
		label := SentimentLabel(score)
		m.Sentiment = &score
		m.SentimentLabel = &label
	}
	return m
}

func mergeMatched(lists ...[]string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, list := range lists {
		for _, value := range list {
			v := strings.ToLower(strings.TrimSpace(value))
			if v == "" {
				continue
			}
			if _, ok := seen[v]; ok {
				continue
			}
			seen[v] = struct{}{}
			out = append(out, v)
		}
	}
	return out
}

func normalizeOrigin(origin string) string {
	o := strings.ToLower(strings.TrimSpace(origin))
	if o == "" {
		return "unknown"
	}
	return o
}
