package analytics

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"
	"time"

	"worldsentinel/internal/classify"
	"worldsentinel/internal/config"
	"worldsentinel/internal/domain"
	"worldsentinel/internal/ports"
)

// FallbackFamily buckets items matching no configured family keywords. Such
// items still take part in sentiment and official-source escalation.
const FallbackFamily = "autre"

// Detector buckets the current window into keyword families, compares each
// family's volume against its 30-day baseline, folds in aggregate sentiment
// and authoritative-source presence, and appends graded signals.
type Detector struct {
	store  ports.Store
	cfg    config.DetectionConfig
	logger *slog.Logger
}

// NewDetector builds a detector from configuration.
func NewDetector(store ports.Store, cfg config.DetectionConfig, logger *slog.Logger) *Detector {
	return &Detector{store: store, cfg: cfg, logger: logger}
}

// familyOf assigns exactly one family by ordered first-match over the item's
// title, summary and source text.
func (d *Detector) familyOf(blob string) string {
	for _, fam := range d.cfg.Families {
		if classify.ContainsAny(blob, fam.Keywords) {
			return fam.Name
		}
	}
	return FallbackFamily
}

func itemBlob(item domain.NewsItem) string {
	return item.Title + " " + item.Summary + " " + item.Source
}

// Run executes one detection cycle at the given instant.
//
// Per family the checks run in fixed order: volume anomaly, sentiment overlay,
// official-source boost. A level is only ever escalated across the three
// checks, and the reason string lists the triggering factors in that same
// order — this ordering is part of the contract.
func (d *Detector) Run(ctx context.Context, now time.Time) error {
	items, err := d.store.QueryItems(ctx, now.Add(-d.cfg.Window()))
	if err != nil {
		return fmt.Errorf("query window: %w", err)
	}

	buckets := map[string][]domain.NewsItem{}
	for _, item := range items {
		fam := d.familyOf(itemBlob(item))
		buckets[fam] = append(buckets[fam], item)
	}

	families := make([]string, 0, len(buckets))
	for fam := range buckets {
		families = append(families, fam)
	}
	sort.Strings(families)

	baselineDays := d.cfg.BaselineDays
	if baselineDays <= 0 {
		baselineDays = 30
	}

	for _, fam := range families {
		bucket := buckets[fam]
		count := len(bucket)

		var sentSum int
		hasOfficial := false
		for _, item := range bucket {
			sentSum += item.Sentiment
			if !hasOfficial && classify.ContainsAny(itemBlob(item), d.cfg.OfficialSources) {
				hasOfficial = true
			}
		}
		avgSentiment := float64(sentSum) / float64(count)

		// Historical baseline matches the family name as a literal substring
		// against title/summary/source. That is a weaker signal than the
		// keyword bucketing above; the asymmetry is intentional, thresholds
		// were calibrated against it.
		hist, err := d.store.QueryHistoricalCount(ctx, fam, baselineDays)
		if err != nil {
			return fmt.Errorf("baseline for %s: %w", fam, err)
		}
		mean := float64(hist) / float64(baselineDays)
		// Poisson-like approximation, floored at 1 so the z-score never
		// divides by zero.
		sigma := math.Max(1, math.Sqrt(mean))

		level := domain.LevelNone
		var reasons []string

		z := (float64(count) - mean) / sigma
		if z >= d.cfg.VolumeSigmaRouge {
			level = domain.LevelRouge
			reasons = append(reasons, fmt.Sprintf("volume +%.1fσ", z))
		} else if z >= d.cfg.VolumeSigmaOrange {
			level = domain.LevelOrange
			reasons = append(reasons, fmt.Sprintf("volume +%.1fσ", z))
		}

		if avgSentiment <= d.cfg.SentimentRougeMax {
			level = domain.MaxLevel(level, domain.LevelRouge)
			reasons = append(reasons, fmt.Sprintf("sentiment %.2f", avgSentiment))
		} else if avgSentiment <= d.cfg.SentimentOrangeMax {
			level = domain.MaxLevel(level, domain.LevelOrange)
			reasons = append(reasons, fmt.Sprintf("sentiment %.2f", avgSentiment))
		}

		if hasOfficial {
			level = level.Escalated()
			reasons = append(reasons, "source officielle")
		}

		if level == domain.LevelNone {
			continue
		}

		sig := domain.Signal{
			Topic:     fam,
			Level:     level,
			Reason:    strings.Join(reasons, " | "),
			CreatedAt: now,
		}
		if err := d.store.AppendSignal(ctx, sig); err != nil {
			return fmt.Errorf("append signal %s: %w", fam, err)
		}
		if d.logger != nil {
			d.logger.Info("signal raised", "topic", fam, "level", string(level), "reason", sig.Reason)
		}
	}

	return nil
}
