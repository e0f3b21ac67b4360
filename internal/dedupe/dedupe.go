// Package dedupe removes redundant coverage of the same story from a recent
// slice of the mention timeline.
package dedupe

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/TMG-AI/tara-dashboard/internal/canon"
	"github.com/TMG-AI/tara-dashboard/internal/globaltime"
	"github.com/TMG-AI/tara-dashboard/internal/ledger"
	"github.com/TMG-AI/tara-dashboard/internal/mention"
	"github.com/TMG-AI/tara-dashboard/internal/store"
)

const (
	DefaultLimit          = 2000
	DefaultSampleSize     = 10
	DefaultFuzzyThreshold = 0.55

	ModePreview = "preview"
	ModeDelete  = "delete"
)

// Pass names, in the order they run.
const (
	PassID         = "id"
	PassCanon      = "canon"
	PassTitleExact = "title_exact"
	PassTitleFuzzy = "title_fuzzy"
)

// Policy holds the editorial choices of the resolver.
type Policy struct {
	AggregatorDomains []string
	FuzzyThreshold    float64
	// PreferOriginal drops aggregator copies whenever original coverage of the
	// same title exists, regardless of recency. Off, the title pass keeps the
	// newest copy of any kind and the fuzzy pass is skipped.
	PreferOriginal bool
}

func DefaultPolicy() Policy {
	return Policy{
		AggregatorDomains: []string{"cryptopanic.com"},
		FuzzyThreshold:    DefaultFuzzyThreshold,
		PreferOriginal:    true,
	}
}

// Options selects the snapshot and the mode of a run.
type Options struct {
	// Limit caps the snapshot to the newest N members.
	Limit int
	// Since, when positive, restricts the snapshot to members published within
	// that duration of now.
	Since time.Duration
	// Today restricts the snapshot to the current calendar day in Location.
	Today    bool
	Location *time.Location
	Commit   bool
	// SampleSize caps Report.Sample.
	SampleSize int
}

type Sample struct {
	ID     string  `json:"id,omitempty"`
	Title  string  `json:"title,omitempty"`
	Source string  `json:"source,omitempty"`
	Link   *string `json:"link"`
	Canon  string  `json:"canon,omitempty"`
	Pass   string  `json:"pass"`
}

type Report struct {
	RunID        string   `json:"run_id"`
	Mode         string   `json:"mode"`
	Scanned      int      `json:"scanned"`
	ParsedOK     int      `json:"parsed_ok"`
	ParseFailed  int      `json:"parse_failed"`
	ByID         int      `json:"by_id"`
	ByCanon      int      `json:"by_canon"`
	ByTitleExact int      `json:"by_title_exact"`
	ByTitleFuzzy int      `json:"by_title_fuzzy"`
	ToRemove     int      `json:"to_remove"`
	Removed      int      `json:"removed"`
	Revoked      int      `json:"revoked"`
	Sample       []Sample `json:"sample"`
	// RemovedByPass attributes each removal to the first pass that marked it.
	RemovedByPass map[string]int `json:"removed_by_pass,omitempty"`
}

type Resolver struct {
	timeline store.ScoredSet
	ledger   *ledger.Ledger
	policy   Policy
	now      func() time.Time
	logger   zerolog.Logger
}

func NewResolver(timeline store.ScoredSet, l *ledger.Ledger, policy Policy, logger zerolog.Logger) *Resolver {
	if policy.FuzzyThreshold <= 0 {
		policy.FuzzyThreshold = DefaultFuzzyThreshold
	}
	return &Resolver{
		timeline: timeline,
		ledger:   l,
		policy:   policy,
		now:      globaltime.Now,
		logger:   logger,
	}
}

func (r *Resolver) WithClock(now func() time.Time) *Resolver {
	if now != nil {
		r.now = now
	}
	return r
}

// item is one parsed snapshot member. Its position in the arena is its
// snapshot rank, newest first.
type item struct {
	raw       string
	mention   mention.Mention
	canonKey  string
	titleKey  string
	tokens    map[string]struct{}
	published int64
	aggregate bool
}

type dropSet map[int]struct{}

// Run resolves duplicates in one snapshot. In commit mode a store failure
// stops the run; the report then carries the counts reached so far.
func (r *Resolver) Run(ctx context.Context, opts Options) (Report, error) {
	report := Report{RunID: uuid.NewString(), Mode: ModePreview, Sample: []Sample{}}
	if opts.Commit {
		report.Mode = ModeDelete
	}

	members, err := r.snapshot(ctx, opts)
	if err != nil {
		return report, err
	}
	report.Scanned = len(members)

	arena := make([]item, 0, len(members))
	for _, raw := range members {
		m, err := mention.Decode(raw)
		if err != nil {
			report.ParseFailed++
			continue
		}
		arena = append(arena, r.newItem(raw, m))
	}
	report.ParsedOK = len(arena)

	byID := passByID(arena)
	byCanon := passByCanon(arena)
	byTitle := r.passByTitle(arena)
	byFuzzy := r.passByFuzzyTitle(arena, union(byID, byCanon, byTitle))
	drops := union(byID, byCanon, byTitle, byFuzzy)

	report.ByID = len(byID)
	report.ByCanon = len(byCanon)
	report.ByTitleExact = len(byTitle)
	report.ByTitleFuzzy = len(byFuzzy)
	report.ToRemove = len(drops)

	ordered := sortedIndexes(drops)
	primary := primaryPass(ordered, []namedDrops{
		{PassID, byID}, {PassCanon, byCanon}, {PassTitleExact, byTitle}, {PassTitleFuzzy, byFuzzy},
	})

	sampleSize := opts.SampleSize
	if sampleSize <= 0 {
		sampleSize = DefaultSampleSize
	}
	for _, idx := range ordered {
		if len(report.Sample) >= sampleSize {
			break
		}
		it := arena[idx]
		report.Sample = append(report.Sample, Sample{
			ID:     it.mention.ID,
			Title:  it.mention.Title,
			Source: it.mention.Source,
			Link:   it.mention.Link,
			Canon:  it.mention.Canon,
			Pass:   primary[idx],
		})
	}

	if opts.Commit && len(ordered) > 0 {
		if err := r.commit(ctx, arena, drops, ordered, primary, &report); err != nil {
			return report, err
		}
	}

	r.logger.Info().
		Str("run_id", report.RunID).
		Str("mode", report.Mode).
		Int("scanned", report.Scanned).
		Int("parse_failed", report.ParseFailed).
		Int("by_id", report.ByID).
		Int("by_canon", report.ByCanon).
		Int("by_title_exact", report.ByTitleExact).
		Int("by_title_fuzzy", report.ByTitleFuzzy).
		Int("to_remove", report.ToRemove).
		Int("removed", report.Removed).
		Msg("dedupe run finished")

	return report, nil
}

func (r *Resolver) snapshot(ctx context.Context, opts Options) ([]string, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}

	var minScore int64
	switch {
	case opts.Today:
		loc := opts.Location
		if loc == nil {
			loc = time.UTC
		}
		now := r.now().In(loc)
		minScore = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc).Unix()
	case opts.Since > 0:
		minScore = r.now().Add(-opts.Since).Unix()
	default:
		members, err := r.timeline.RangeByRank(ctx, 0, int64(limit-1), true)
		if err != nil {
			return nil, fmt.Errorf("read timeline snapshot: %w", err)
		}
		return members, nil
	}

	ascending, err := r.timeline.RangeByScore(ctx, minScore, store.MaxScore)
	if err != nil {
		return nil, fmt.Errorf("read timeline snapshot: %w", err)
	}
	members := make([]string, 0, min(len(ascending), limit))
	for i := len(ascending) - 1; i >= 0 && len(members) < limit; i-- {
		members = append(members, ascending[i])
	}
	return members, nil
}

func (r *Resolver) newItem(raw string, m mention.Mention) item {
	key := strings.TrimSpace(m.Canon)
	if key == "" {
		key = canon.Canonicalize(m.LinkValue(), "")
	}
	host := canon.Host(key)
	if host == "" {
		host = canon.Host(canon.Unwrap(m.LinkValue()))
	}
	titleKey := TitleKey(m.Title)
	return item{
		raw:       raw,
		mention:   m,
		canonKey:  canon.LedgerKey(key),
		titleKey:  titleKey,
		tokens:    Tokens(titleKey),
		published: m.PublishedTS,
		aggregate: r.isAggregator(host),
	}
}

func (r *Resolver) isAggregator(host string) bool {
	if host == "" {
		return false
	}
	for _, domain := range r.policy.AggregatorDomains {
		d := canon.NormalizeHost(domain)
		if d != "" && (host == d || strings.HasSuffix(host, "."+d)) {
			return true
		}
	}
	return false
}

// groupBy buckets arena indexes by key, preserving first-seen order.
func groupBy(arena []item, key func(item) string) [][]int {
	positions := make(map[string]int)
	groups := make([][]int, 0)
	for idx, it := range arena {
		k := key(it)
		if k == "" {
			continue
		}
		pos, ok := positions[k]
		if !ok {
			pos = len(groups)
			positions[k] = pos
			groups = append(groups, nil)
		}
		groups[pos] = append(groups[pos], idx)
	}
	return groups
}

// newestFirst orders indexes by publish time, newest first; equal times keep
// snapshot order.
func newestFirst(arena []item, indexes []int) []int {
	out := append([]int(nil), indexes...)
	sort.SliceStable(out, func(i, j int) bool {
		return arena[out[i]].published > arena[out[j]].published
	})
	return out
}

func keepNewest(arena []item, indexes []int, drops dropSet) {
	if len(indexes) < 2 {
		return
	}
	for _, idx := range newestFirst(arena, indexes)[1:] {
		drops[idx] = struct{}{}
	}
}

func passByID(arena []item) dropSet {
	drops := dropSet{}
	for _, group := range groupBy(arena, func(it item) string { return it.mention.ID }) {
		keepNewest(arena, group, drops)
	}
	return drops
}

func passByCanon(arena []item) dropSet {
	drops := dropSet{}
	for _, group := range groupBy(arena, func(it item) string { return it.canonKey }) {
		keepNewest(arena, group, drops)
	}
	return drops
}

func (r *Resolver) passByTitle(arena []item) dropSet {
	drops := dropSet{}
	for _, group := range groupBy(arena, func(it item) string { return it.titleKey }) {
		if !r.policy.PreferOriginal {
			keepNewest(arena, group, drops)
			continue
		}
		var originals, aggregates []int
		for _, idx := range group {
			if arena[idx].aggregate {
				aggregates = append(aggregates, idx)
			} else {
				originals = append(originals, idx)
			}
		}
		if len(originals) == 0 {
			keepNewest(arena, aggregates, drops)
			continue
		}
		keepNewest(arena, originals, drops)
		for _, idx := range aggregates {
			drops[idx] = struct{}{}
		}
	}
	return drops
}

// passByFuzzyTitle drops surviving aggregator members whose title is close
// enough to any surviving original.
func (r *Resolver) passByFuzzyTitle(arena []item, prior dropSet) dropSet {
	drops := dropSet{}
	if !r.policy.PreferOriginal {
		return drops
	}

	originals := make([]int, 0, len(arena))
	for idx, it := range arena {
		if _, dropped := prior[idx]; dropped || it.aggregate || len(it.tokens) == 0 {
			continue
		}
		originals = append(originals, idx)
	}

	for idx, it := range arena {
		if _, dropped := prior[idx]; dropped || !it.aggregate || len(it.tokens) == 0 {
			continue
		}
		for _, other := range originals {
			if Jaccard(it.tokens, arena[other].tokens) >= r.policy.FuzzyThreshold {
				drops[idx] = struct{}{}
				break
			}
		}
	}
	return drops
}

func union(sets ...dropSet) dropSet {
	out := dropSet{}
	for _, set := range sets {
		for idx := range set {
			out[idx] = struct{}{}
		}
	}
	return out
}

type namedDrops struct {
	name string
	set  dropSet
}

// primaryPass names, for each dropped index, the earliest pass that dropped it.
func primaryPass(ordered []int, passes []namedDrops) map[int]string {
	out := make(map[int]string, len(ordered))
	for _, idx := range ordered {
		for _, pass := range passes {
			if _, ok := pass.set[idx]; ok {
				out[idx] = pass.name
				break
			}
		}
	}
	return out
}

func sortedIndexes(set dropSet) []int {
	out := make([]int, 0, len(set))
	for idx := range set {
		out = append(out, idx)
	}
	sort.Ints(out)
	return out
}

// commit removes dropped members and releases their ledger entries. A key or
// id still carried by a surviving member stays claimed.
func (r *Resolver) commit(ctx context.Context, arena []item, drops dropSet, ordered []int, primary map[int]string, report *Report) error {
	report.RemovedByPass = make(map[string]int)
	heldKeys := make(map[string]struct{})
	heldIDs := make(map[string]struct{})
	for idx, it := range arena {
		if _, dropped := drops[idx]; dropped {
			continue
		}
		heldKeys[it.canonKey] = struct{}{}
		heldIDs[it.mention.ID] = struct{}{}
	}

	for _, idx := range ordered {
		it := arena[idx]
		removed, err := r.timeline.Remove(ctx, it.raw)
		if err != nil {
			return fmt.Errorf("remove duplicate %s: %w", it.mention.ID, err)
		}
		if !removed {
			continue
		}
		report.Removed++
		report.RemovedByPass[primary[idx]]++

		if r.ledger == nil {
			continue
		}
		key, id := it.canonKey, it.mention.ID
		if _, held := heldKeys[key]; held {
			key = ""
		}
		if _, held := heldIDs[id]; held {
			id = ""
		}
		if key == "" && id == "" {
			continue
		}
		if err := r.ledger.Revoke(ctx, key, id); err != nil {
			return fmt.Errorf("revoke duplicate %s: %w", it.mention.ID, err)
		}
		if key != "" {
			report.Revoked++
			heldKeys[key] = struct{}{}
		}
		if id != "" {
			report.Revoked++
			heldIDs[id] = struct{}{}
		}
	}
	return nil
}
