package app

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"

	"github.com/TMG-AI/tara-dashboard/internal/cli"
	"github.com/TMG-AI/tara-dashboard/internal/config"
	"github.com/TMG-AI/tara-dashboard/internal/dedupe"
	"github.com/TMG-AI/tara-dashboard/internal/filter"
	"github.com/TMG-AI/tara-dashboard/internal/ingest"
	"github.com/TMG-AI/tara-dashboard/internal/langdetect"
	"github.com/TMG-AI/tara-dashboard/internal/ledger"
	"github.com/TMG-AI/tara-dashboard/internal/logging"
	"github.com/TMG-AI/tara-dashboard/internal/mention"
	"github.com/TMG-AI/tara-dashboard/internal/metrics"
	"github.com/TMG-AI/tara-dashboard/internal/retention"
	"github.com/TMG-AI/tara-dashboard/internal/store"
)

// services is the wired component graph shared by every command.
type services struct {
	cfg      *config.Config
	logger   zerolog.Logger
	backend  store.Backend
	timeline store.ScoredSet
	ledger   *ledger.Ledger
	metrics  *metrics.Collector
	trimmer  *retention.Trimmer
	ingest   *ingest.Service
	resolver *dedupe.Resolver
}

func loadConfig(envLoader *cli.EnvLoader) (*config.Config, error) {
	if envLoader != nil {
		if _, err := envLoader.Load(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
		}
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

func openServices(ctx context.Context, envLoader *cli.EnvLoader) (*services, error) {
	cfg, err := loadConfig(envLoader)
	if err != nil {
		return nil, err
	}

	logger, err := logging.New(cfg.Environment, cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	rs, err := filter.LoadRuleSet(cfg.FilterRulesFile)
	if err != nil {
		return nil, err
	}
	filterOpts := filter.Options{
		Shopping:          cfg.FilterShopping,
		LocalCrime:        cfg.FilterLocalCrime,
		Reposters:         cfg.FilterReposters,
		EnglishOnly:       cfg.FilterEnglishOnly,
		NormalizeLanguage: langdetect.NormalizeCode,
	}
	if cfg.FilterEnglishOnly {
		filterOpts.Detector = langdetect.New()
	}
	chain, err := filter.Build(rs, filterOpts)
	if err != nil {
		return nil, fmt.Errorf("build filter chain: %w", err)
	}

	backend, err := store.Open(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}

	timeline := backend.ScoredSet(mention.TimelineKey)
	l := ledger.FromBackend(backend)
	collector := metrics.New()

	trimmer := retention.NewTrimmer(timeline, retention.Policy{
		Weekday:  cfg.RetentionWindow(),
		Weekend:  cfg.RetentionWeekendWindow(),
		Location: cfg.Location(),
	}, logging.Component(logger, "retention"))

	service := ingest.NewService(timeline, l, chain, trimmer, collector, ingest.Options{
		Sentiment: cfg.EnableSentiment,
		Topics:    filter.AIKeywords,
	}, logging.Component(logger, "ingest"))

	policy := dedupe.DefaultPolicy()
	policy.AggregatorDomains = splitList(cfg.AggregatorDomains)
	policy.FuzzyThreshold = cfg.FuzzyThreshold
	resolver := dedupe.NewResolver(timeline, l, policy, logging.Component(logger, "dedupe"))

	return &services{
		cfg:      cfg,
		logger:   logger,
		backend:  backend,
		timeline: timeline,
		ledger:   l,
		metrics:  collector,
		trimmer:  trimmer,
		ingest:   service,
		resolver: resolver,
	}, nil
}

func (r *services) Close() {
	if r == nil || r.backend == nil {
		return
	}
	if err := r.backend.Close(); err != nil {
		r.logger.Warn().Err(err).Msg("close store failed")
	}
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.ToLower(strings.TrimSpace(part)); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
