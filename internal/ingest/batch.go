package ingest

import (
	"context"
	"fmt"
	"os"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/TMG-AI/tara-dashboard/internal/source"
)

type ItemError struct {
	Source string `json:"source,omitempty"`
	Index  int    `json:"index"`
	Kind   string `json:"kind,omitempty"`
	Error  string `json:"error"`
}

type BatchResult struct {
	Found      int         `json:"found"`
	Stored     int         `json:"stored"`
	Duplicates int         `json:"duplicates"`
	Filtered   int         `json:"filtered"`
	Invalid    int         `json:"invalid"`
	Failed     int         `json:"failed"`
	Errors     []ItemError `json:"errors"`
	Outcomes   []Outcome   `json:"-"`
}

func (r *BatchResult) add(outcome Outcome) {
	r.Outcomes = append(r.Outcomes, outcome)
	switch outcome.Status {
	case StatusStored:
		r.Stored++
	case StatusDuplicate:
		r.Duplicates++
	case StatusFiltered:
		r.Filtered++
	case StatusFailed:
		r.Failed++
	default:
		r.Invalid++
	}
}

func (r *BatchResult) merge(other BatchResult) {
	r.Found += other.Found
	r.Stored += other.Stored
	r.Duplicates += other.Duplicates
	r.Filtered += other.Filtered
	r.Invalid += other.Invalid
	r.Failed += other.Failed
}

// IngestBatch adapts and ingests raws in order. An item that fails is
// recorded in Errors and the rest still run; only cancellation stops the
// batch early. origin, when set, overrides the origin of adapted candidates.
func (s *Service) IngestBatch(ctx context.Context, origin string, raws []source.Raw) (BatchResult, error) {
	result := BatchResult{Found: len(raws), Errors: []ItemError{}}
	for i, raw := range raws {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		candidate, err := source.Adapt(raw)
		if err != nil {
			result.add(Outcome{Status: StatusInvalid, Reason: err.Error()})
			result.Errors = append(result.Errors, ItemError{Index: i, Kind: source.Kind(raw), Error: err.Error()})
			s.metrics.RecordIngest(normalizeOrigin(origin), string(StatusInvalid))
			continue
		}
		if origin != "" {
			candidate.Origin = origin
		}

		outcome, err := s.Ingest(ctx, candidate)
		result.add(outcome)
		if err != nil {
			s.logger.Error().Err(err).Int("index", i).Str("origin", candidate.Origin).Msg("ingest item failed")
			result.Errors = append(result.Errors, ItemError{Index: i, Kind: source.Kind(raw), Error: err.Error()})
		}
	}
	return result, nil
}

// Collector yields raw items from one upstream source.
type Collector interface {
	Name() string
	Collect(ctx context.Context) ([]source.Raw, error)
}

// PayloadCollector replays a webhook body as a collector.
type PayloadCollector struct {
	Label string
	Kind  string
	Body  []byte
}

func (c PayloadCollector) Name() string {
	if c.Label != "" {
		return c.Label
	}
	return c.Kind
}

func (c PayloadCollector) Collect(context.Context) ([]source.Raw, error) {
	return source.Decode(c.Kind, c.Body), nil
}

// FileCollector reads a saved webhook body from disk.
type FileCollector struct {
	Kind string
	Path string
}

func (c FileCollector) Name() string { return c.Path }

func (c FileCollector) Collect(context.Context) ([]source.Raw, error) {
	body, err := os.ReadFile(c.Path)
	if err != nil {
		return nil, fmt.Errorf("read payload %s: %w", c.Path, err)
	}
	return source.Decode(c.Kind, body), nil
}

type SourceError struct {
	Source string `json:"source"`
	Error  string `json:"error"`
}

type SourceReport struct {
	Source string      `json:"source"`
	Result BatchResult `json:"result"`
}

type RunReport struct {
	BatchResult
	Sources      []SourceReport `json:"sources"`
	SourceErrors []SourceError  `json:"source_errors"`
}

// DefaultCollectorConcurrency bounds how many collectors run at once.
const DefaultCollectorConcurrency = 4

// RunCollectors runs every collector concurrently and ingests what each
// returns. A failing collector is reported and does not affect the others.
func (s *Service) RunCollectors(ctx context.Context, collectors []Collector) RunReport {
	report := RunReport{
		BatchResult:  BatchResult{Errors: []ItemError{}},
		Sources:      []SourceReport{},
		SourceErrors: []SourceError{},
	}

	var mu sync.Mutex
	var g errgroup.Group
	g.SetLimit(DefaultCollectorConcurrency)

	for _, collector := range collectors {
		collector := collector
		g.Go(func() error {
			name := collector.Name()
			result, err := s.collectOne(ctx, collector)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				s.logger.Warn().Err(err).Str("source", name).Msg("collector failed")
				report.SourceErrors = append(report.SourceErrors, SourceError{Source: name, Error: err.Error()})
				return nil
			}
			report.Sources = append(report.Sources, SourceReport{Source: name, Result: result})
			report.merge(result)
			for _, itemErr := range result.Errors {
				itemErr.Source = name
				report.Errors = append(report.Errors, itemErr)
			}
			return nil
		})
	}
	_ = g.Wait()

	sort.Slice(report.Sources, func(i, j int) bool { return report.Sources[i].Source < report.Sources[j].Source })
	sort.Slice(report.SourceErrors, func(i, j int) bool { return report.SourceErrors[i].Source < report.SourceErrors[j].Source })

	s.logger.Info().
		Int("sources", len(collectors)).
		Int("failed_sources", len(report.SourceErrors)).
		Int("found", report.Found).
		Int("stored", report.Stored).
		Int("duplicates", report.Duplicates).
		Int("filtered", report.Filtered).
		Int("invalid", report.Invalid).
		Int("failed", report.Failed).
		Msg("collection run finished")
	return report
}

func (s *Service) collectOne(ctx context.Context, collector Collector) (result BatchResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("collector panicked: %v", r)
		}
	}()

	raws, err := collector.Collect(ctx)
	if err != nil {
		return BatchResult{}, err
	}
	return s.IngestBatch(ctx, "", raws)
}
