// Package retention bounds the mention timeline to a rolling time window.
package retention

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/TMG-AI/tara-dashboard/internal/globaltime"
	"github.com/TMG-AI/tara-dashboard/internal/store"
)

const DefaultWindow = 14 * 24 * time.Hour

// Policy picks the window for a moment in time. Weekend applies on Saturday
// and Sunday in Location; zero means the weekday window.
type Policy struct {
	Weekday  time.Duration
	Weekend  time.Duration
	Location *time.Location
}

func (p Policy) Window(now time.Time) time.Duration {
	weekday := p.Weekday
	if weekday <= 0 {
		weekday = DefaultWindow
	}
	if p.Weekend <= 0 {
		return weekday
	}
	loc := p.Location
	if loc == nil {
		loc = time.UTC
	}
	switch now.In(loc).Weekday() {
	case time.Saturday, time.Sunday:
		return p.Weekend
	default:
		return weekday
	}
}

type Trimmer struct {
	timeline store.ScoredSet
	policy   Policy
	now      func() time.Time
	logger   zerolog.Logger
}

func NewTrimmer(timeline store.ScoredSet, policy Policy, logger zerolog.Logger) *Trimmer {
	return &Trimmer{
		timeline: timeline,
		policy:   policy,
		now:      globaltime.Now,
		logger:   logger,
	}
}

// WithClock replaces the time source.
func (t *Trimmer) WithClock(now func() time.Time) *Trimmer {
	if now != nil {
		t.now = now
	}
	return t
}

// Trim removes every member scored strictly before now minus window and
// returns how many went.
func (t *Trimmer) Trim(ctx context.Context, window time.Duration) (int64, error) {
	if window <= 0 {
		return 0, fmt.Errorf("retention window must be positive, got %s", window)
	}
	cutoff := t.now().Add(-window).Unix()
	removed, err := t.timeline.RemoveRangeByScore(ctx, store.MinScore, cutoff-1)
	if err != nil {
		return 0, fmt.Errorf("trim timeline before %d: %w", cutoff, err)
	}
	if removed > 0 {
		t.logger.Debug().Int64("removed", removed).Int64("cutoff", cutoff).Msg("timeline trimmed")
	}
	return removed, nil
}

// TrimNow trims with the policy window for the current time.
func (t *Trimmer) TrimNow(ctx context.Context) (int64, error) {
	return t.Trim(ctx, t.policy.Window(t.now()))
}
