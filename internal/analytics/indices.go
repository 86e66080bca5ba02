// Package analytics holds the statistical core: the rolling sentiment indices
// and the graded anomaly signal detector.
package analytics

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"time"

	"worldsentinel/internal/domain"
	"worldsentinel/internal/ports"
)

// Aggregator recomputes the rolling sentiment index per (region, sector).
type Aggregator struct {
	store  ports.Store
	window time.Duration
	logger *slog.Logger
}

// NewAggregator builds an aggregator over the given trailing window.
func NewAggregator(store ports.Store, window time.Duration, logger *slog.Logger) *Aggregator {
	return &Aggregator{store: store, window: window, logger: logger}
}

type groupStat struct {
	sum   int
	count int
}

// Recompute derives score = round(clamp(50 + 20*meanSentiment, 0, 100)) for
// every (region, sector) pair observed in the window and appends a snapshot
// row per pair. The recomputation is unconditional and full; prior snapshots
// are never updated. Pairs with no items produce no row.
func (a *Aggregator) Recompute(ctx context.Context, now time.Time) error {
	items, err := a.store.QueryItems(ctx, now.Add(-a.window))
	if err != nil {
		return fmt.Errorf("query window: %w", err)
	}

	groups := map[[2]string]*groupStat{}
	for _, item := range items {
		key := [2]string{regionOrDefault(item.Region), sectorOrDefault(item.Sector)}
		stat, ok := groups[key]
		if !ok {
			stat = &groupStat{}
			groups[key] = stat
		}
		stat.sum += item.Sentiment
		stat.count++
	}

	keys := make([][2]string, 0, len(groups))
	for key := range groups {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i][0] != keys[j][0] {
			return keys[i][0] < keys[j][0]
		}
		return keys[i][1] < keys[j][1]
	})

	for _, key := range keys {
		stat := groups[key]
		mean := float64(stat.sum) / float64(stat.count)
		score := sentimentScore(mean)
		err := a.store.AppendIndexScore(ctx, domain.IndexScore{
			Region:    key[0],
			Sector:    key[1],
			Score:     score,
			UpdatedAt: now,
		})
		if err != nil {
			return fmt.Errorf("append score %s/%s: %w", key[0], key[1], err)
		}
	}

	if a.logger != nil {
		a.logger.Info("indices recomputed", "groups", len(keys), "items", len(items))
	}
	return nil
}

func sentimentScore(mean float64) int {
	score := math.Round(50 + 20*mean)
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return int(score)
}

func regionOrDefault(region string) string {
	if region == "" {
		return "monde"
	}
	return region
}

func sectorOrDefault(sector string) string {
	if sector == "" {
		return "autre"
	}
	return sector
}
