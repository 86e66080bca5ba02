package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"worldsentinel/internal/analytics"
	"worldsentinel/internal/classify"
	"worldsentinel/internal/config"
	"worldsentinel/internal/domain"
	"worldsentinel/internal/infrastructure/feed"
	"worldsentinel/internal/ports"
)

// ErrRunInProgress is returned when a run is requested while another one is
// still executing. Overlapping runs would double-count window statistics.
var ErrRunInProgress = errors.New("pipeline run already in progress")

const (
	lastRunKey       = "last_run"
	maxSummaryRunes  = 1000
	fetchConcurrency = 4
)

// PipelineDeps wires all collaborators into the orchestration pipeline.
type PipelineDeps struct {
	Fetcher    ports.Fetcher
	Store      ports.Store
	Aggregator *analytics.Aggregator
	Detector   *analytics.Detector
	Sources    []config.SourceConfig
	Logger     *slog.Logger
}

// Pipeline runs one full ingest-and-score cycle per invocation: fetch, parse,
// classify and dedup-insert for every source, then index aggregation, then
// signal detection, then the completion timestamp.
type Pipeline struct {
	fetcher    ports.Fetcher
	store      ports.Store
	aggregator *analytics.Aggregator
	detector   *analytics.Detector
	sources    []config.SourceConfig
	logger     *slog.Logger
	running    atomic.Bool
}

// NewPipeline constructs the orchestration component.
func NewPipeline(deps PipelineDeps) *Pipeline {
	return &Pipeline{
		fetcher:    deps.Fetcher,
		store:      deps.Store,
		aggregator: deps.Aggregator,
		detector:   deps.Detector,
		sources:    deps.Sources,
		logger:     deps.Logger,
	}
}

// Run executes one cycle and returns the total count of newly inserted items.
// A failing source contributes zero items and never aborts the run; a store
// failure during aggregation or detection aborts the remainder.
func (p *Pipeline) Run(ctx context.Context) (int, error) {
	if !p.running.CompareAndSwap(false, true) {
		return 0, ErrRunInProgress
	}
	defer p.running.Store(false)

	now := time.Now().UTC()

	var (
		mu    sync.Mutex
		total int
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(fetchConcurrency)
	for _, src := range p.sources {
		g.Go(func() error {
			inserted, err := p.ingestSource(gctx, src, now)
			if err != nil {
				p.warn("source failed", "source", src.Name, "error", err)
				return nil
			}
			mu.Lock()
			total += inserted
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	if err := p.aggregator.Recompute(ctx, now); err != nil {
		return total, fmt.Errorf("recompute indices: %w", err)
	}
	if err := p.detector.Run(ctx, now); err != nil {
		return total, fmt.Errorf("detect signals: %w", err)
	}
	if err := p.store.SetMeta(ctx, lastRunKey, now.Format(time.RFC3339)); err != nil {
		return total, fmt.Errorf("record last run: %w", err)
	}

	if p.logger != nil {
		p.logger.Info("pipeline run complete", "inserted", total, "sources", len(p.sources))
	}
	return total, nil
}

// ingestSource fetches one feed and inserts its classified items. Duplicate
// fingerprints are silently absorbed by the store and not counted.
func (p *Pipeline) ingestSource(ctx context.Context, src config.SourceConfig, now time.Time) (int, error) {
	doc, err := p.fetcher.Fetch(ctx, src.URL)
	if err != nil {
		return 0, fmt.Errorf("fetch %s: %w", src.URL, err)
	}

	inserted := 0
	for _, raw := range feed.Parse(doc) {
		item := buildItem(raw, src.Name, now)
		ok, err := p.store.InsertNewsIfAbsent(ctx, item)
		if err != nil {
			return inserted, fmt.Errorf("insert item: %w", err)
		}
		if ok {
			inserted++
		}
	}
	return inserted, nil
}

// buildItem classifies one raw item and shapes the persisted row.
func buildItem(raw feed.RawItem, source string, now time.Time) domain.NewsItem {
	classText := raw.Title + " " + raw.Description + " " + source
	toneText := raw.Title + " " + raw.Description
	tone := classify.Tone(toneText)

	publishedAt, ok := feed.ParseTime(raw.Published)
	if !ok {
		publishedAt = now
	}

	return domain.NewsItem{
		Fingerprint: domain.Fingerprint(source, raw.Title, raw.Link, raw.Published),
		Title:       raw.Title,
		URL:         raw.Link,
		Source:      source,
		Sector:      classify.Sector(classText),
		Region:      classify.Region(classText),
		PublishedAt: publishedAt,
		Summary:     feed.Truncate(raw.Description, maxSummaryRunes),
		Sentiment:   tone,
		Impact:      classify.Impact(tone),
		CreatedAt:   now,
	}
}

func (p *Pipeline) warn(msg string, args ...any) {
	if p.logger != nil {
		p.logger.Warn(msg, args...)
	}
}
