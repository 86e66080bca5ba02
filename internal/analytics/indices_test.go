package analytics

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"worldsentinel/internal/domain"
	"worldsentinel/internal/infrastructure/storage"
)

func newTestStore(t *testing.T) *storage.SQLiteStore {
	t.Helper()
	store, err := storage.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func seedItem(t *testing.T, store *storage.SQLiteStore, title, sector, region string, sentiment int, published time.Time) {
	t.Helper()
	item := domain.NewsItem{
		Fingerprint: domain.Fingerprint("FeedX", title, "https://example.org/"+title, published.Format(time.RFC3339)),
		Title:       title,
		URL:         "https://example.org/" + title,
		Source:      "FeedX",
		Sector:      sector,
		Region:      region,
		PublishedAt: published,
		Sentiment:   sentiment,
		Impact:      50 + 20*sentiment,
		CreatedAt:   published,
	}
	if _, err := store.InsertNewsIfAbsent(context.Background(), item); err != nil {
		t.Fatalf("seed %q: %v", title, err)
	}
}

func TestAggregatorRecompute(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	seedItem(t, store, "eu-energie-neg", "energie", "eu", -1, now.Add(-time.Hour))
	seedItem(t, store, "eu-energie-flat", "energie", "eu", 0, now.Add(-2*time.Hour))
	seedItem(t, store, "us-tech-pos", "technologie", "us", 1, now.Add(-time.Hour))
	seedItem(t, store, "unclassified", "", "", 0, now.Add(-time.Hour))
	seedItem(t, store, "stale", "energie", "eu", 1, now.Add(-25*time.Hour))

	agg := NewAggregator(store, 24*time.Hour, nil)
	if err := agg.Recompute(ctx, now); err != nil {
		t.Fatalf("recompute: %v", err)
	}

	scores, err := store.ListIndexScores(ctx, 0)
	if err != nil {
		t.Fatalf("list scores: %v", err)
	}
	if len(scores) != 3 {
		t.Fatalf("expected 3 groups, got %d", len(scores))
	}

	byGroup := map[string]int{}
	for _, sc := range scores {
		byGroup[sc.Region+"/"+sc.Sector] = sc.Score
		if !sc.UpdatedAt.Equal(now) {
			t.Fatalf("snapshot timestamp should be the cycle instant, got %v", sc.UpdatedAt)
		}
	}
	// mean -0.5 -> round(50 - 10) = 40
	if got := byGroup["eu/energie"]; got != 40 {
		t.Fatalf("eu/energie score = %d, want 40", got)
	}
	if got := byGroup["us/technologie"]; got != 70 {
		t.Fatalf("us/technologie score = %d, want 70", got)
	}
	if got := byGroup["monde/autre"]; got != 50 {
		t.Fatalf("empty labels should fold into monde/autre, got %d", got)
	}

	// Snapshots accumulate across cycles.
	if err := agg.Recompute(ctx, now.Add(time.Minute)); err != nil {
		t.Fatalf("second recompute: %v", err)
	}
	scores, err = store.ListIndexScores(ctx, 0)
	if err != nil {
		t.Fatalf("list scores again: %v", err)
	}
	if len(scores) != 6 {
		t.Fatalf("expected 6 snapshot rows after two cycles, got %d", len(scores))
	}
}

func TestAggregatorEmptyWindow(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	agg := NewAggregator(store, 24*time.Hour, nil)
	if err := agg.Recompute(ctx, time.Now().UTC()); err != nil {
		t.Fatalf("recompute on empty store: %v", err)
	}

	scores, err := store.ListIndexScores(ctx, 0)
	if err != nil {
		t.Fatalf("list scores: %v", err)
	}
	if len(scores) != 0 {
		t.Fatalf("empty window must produce no rows, got %d", len(scores))
	}
}

func TestSentimentScoreClamp(t *testing.T) {
	t.Parallel()

	cases := []struct {
		mean float64
		want int
	}{
		{-1, 30},
		{-0.5, 40},
		{0, 50},
		{1, 70},
		{-4, 0},
		{4, 100},
	}
	for _, tc := range cases {
		if got := sentimentScore(tc.mean); got != tc.want {
			t.Fatalf("sentimentScore(%v) = %d, want %d", tc.mean, got, tc.want)
		}
	}
}
