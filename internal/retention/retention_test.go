package retention

import (
	"context"
	"reflect"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/TMG-AI/tara-dashboard/internal/store"
)

func TestPolicyWindow_WeekendVariant(t *testing.T) {
	t.Parallel()

	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}
	policy := Policy{Weekday: 24 * time.Hour, Weekend: 72 * time.Hour, Location: loc}

	friday := time.Date(2026, 10, 9, 12, 0, 0, 0, loc)
	if got := policy.Window(friday); got != 24*time.Hour {
		t.Fatalf("unexpected weekday window: %s", got)
	}
	saturday := time.Date(2026, 10, 10, 12, 0, 0, 0, loc)
	if got := policy.Window(saturday); got != 72*time.Hour {
		t.Fatalf("unexpected weekend window: %s", got)
	}
	// 02:00 UTC Monday is still Sunday evening in New York.
	lateSunday := time.Date(2026, 10, 12, 2, 0, 0, 0, time.UTC)
	if got := policy.Window(lateSunday); got != 72*time.Hour {
		t.Fatalf("expected calendar day in policy zone, got %s", got)
	}
}

func TestPolicyWindow_Defaults(t *testing.T) {
	t.Parallel()

	if got := (Policy{}).Window(time.Now()); got != DefaultWindow {
		t.Fatalf("unexpected default window: %s", got)
	}
	if got := (Policy{Weekday: 48 * time.Hour}).Window(time.Date(2026, 10, 10, 0, 0, 0, 0, time.UTC)); got != 48*time.Hour {
		t.Fatalf("expected weekday window when weekend unset, got %s", got)
	}
}

func TestTrim_RemovesStrictlyOlderMembers(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	now := time.Unix(1_800_000_000, 0)
	timeline := store.NewMemory().ScoredSet("mentions:z")
	window := 336 * time.Hour
	cutoff := now.Add(-window).Unix()

	for member, score := range map[string]int64{
		"old":      cutoff - 1,
		"boundary": cutoff,
		"fresh":    now.Unix(),
	} {
		if _, err := timeline.Add(ctx, score, member); err != nil {
			t.Fatalf("seed %s: %v", member, err)
		}
	}

	trimmer := NewTrimmer(timeline, Policy{Weekday: window}, zerolog.Nop()).WithClock(func() time.Time { return now })
	removed, err := trimmer.TrimNow(ctx)
	if err != nil {
		t.Fatalf("trim: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected one removal, got %d", removed)
	}
	remaining, err := timeline.RangeByRank(ctx, 0, -1, false)
	if err != nil {
		t.Fatalf("range: %v", err)
	}
	if want := []string{"boundary", "fresh"}; !reflect.DeepEqual(remaining, want) {
		t.Fatalf("unexpected remaining members: %v", remaining)
	}

	again, err := trimmer.TrimNow(ctx)
	if err != nil || again != 0 {
		t.Fatalf("expected idempotent trim, removed=%d err=%v", again, err)
	}
}

func TestTrim_RejectsNonPositiveWindow(t *testing.T) {
	t.Parallel()

	trimmer := NewTrimmer(store.NewMemory().ScoredSet("z"), Policy{}, zerolog.Nop())
	if _, err := trimmer.Trim(context.Background(), 0); err == nil {
		t.Fatalf("expected zero window to fail")
	}
}
