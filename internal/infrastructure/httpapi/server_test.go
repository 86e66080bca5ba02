package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"worldsentinel/internal/analytics"
	"worldsentinel/internal/config"
	"worldsentinel/internal/domain"
	"worldsentinel/internal/infrastructure/storage"
	"worldsentinel/internal/usecase"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type noFeeds struct{}

func (noFeeds) Fetch(context.Context, string) ([]byte, error) {
	return nil, errors.New("no feeds in tests")
}

func newTestServer(t *testing.T, adminKey string) (*gin.Engine, *storage.SQLiteStore) {
	t.Helper()
	store, err := storage.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	cfg := config.Config{
		Server: config.ServerConfig{AdminKey: adminKey},
		Detection: config.DetectionConfig{
			WindowHours:       24,
			BaselineDays:      30,
			VolumeSigmaOrange: 2.0,
			VolumeSigmaRouge:  3.0,
		},
		Sources: []config.SourceConfig{
			{Name: "Feed A", URL: "https://a.example/rss"},
			{Name: "Feed B", URL: "https://b.example/rss"},
		},
	}

	pipeline := usecase.NewPipeline(usecase.PipelineDeps{
		Fetcher:    noFeeds{},
		Store:      store,
		Aggregator: analytics.NewAggregator(store, 24*time.Hour, nil),
		Detector:   analytics.NewDetector(store, cfg.Detection, nil),
	})

	return New(store, pipeline, cfg, nil).Router(), store
}

func do(t *testing.T, router *gin.Engine, path string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func seedNews(t *testing.T, store *storage.SQLiteStore, title, sector string, published time.Time) {
	t.Helper()
	item := domain.NewsItem{
		Fingerprint: domain.Fingerprint("FeedX", title, "https://example.org/"+title, published.Format(time.RFC3339)),
		Title:       title,
		URL:         "https://example.org/" + title,
		Source:      "FeedX",
		Sector:      sector,
		Region:      "monde",
		PublishedAt: published,
		CreatedAt:   published,
	}
	if _, err := store.InsertNewsIfAbsent(context.Background(), item); err != nil {
		t.Fatalf("seed %q: %v", title, err)
	}
}

func TestHome(t *testing.T) {
	t.Parallel()

	router, _ := newTestServer(t, "")
	w := do(t, router, "/")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "World Sentinel") {
		t.Fatal("home page missing title")
	}
}

func TestHealth(t *testing.T) {
	t.Parallel()

	router, _ := newTestServer(t, "")
	w := do(t, router, "/api/health")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}

	var body struct {
		OK   bool   `json:"ok"`
		Time string `json:"time"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !body.OK || body.Time == "" {
		t.Fatalf("unexpected health body: %s", w.Body.String())
	}
}

func TestLastRun(t *testing.T) {
	t.Parallel()

	router, store := newTestServer(t, "")

	w := do(t, router, "/api/last-run")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"last_run":null`) {
		t.Fatalf("fresh database should report null, got %s", w.Body.String())
	}

	if err := store.SetMeta(context.Background(), "last_run", "2026-08-28T10:00:00Z"); err != nil {
		t.Fatalf("set meta: %v", err)
	}
	w = do(t, router, "/api/last-run")
	if !strings.Contains(w.Body.String(), "2026-08-28T10:00:00Z") {
		t.Fatalf("expected recorded timestamp, got %s", w.Body.String())
	}
}

func TestListNewsEndpoint(t *testing.T) {
	t.Parallel()

	router, store := newTestServer(t, "")
	now := time.Now().UTC()
	seedNews(t, store, "one", "energie", now)
	seedNews(t, store, "two", "energie", now.Add(-time.Minute))
	seedNews(t, store, "three", "technologie", now.Add(-2*time.Minute))

	w := do(t, router, "/api/news")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var items []domain.NewsItem
	if err := json.Unmarshal(w.Body.Bytes(), &items); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("expected 3 items, got %d", len(items))
	}
	if items[0].Title != "one" {
		t.Fatalf("expected newest first, got %q", items[0].Title)
	}
	if strings.Contains(w.Body.String(), domain.Fingerprint("FeedX", "one", "https://example.org/one", now.Format(time.RFC3339))) {
		t.Fatal("fingerprint must not leak into the API payload")
	}

	w = do(t, router, "/api/news?sector=energie")
	items = nil
	if err := json.Unmarshal(w.Body.Bytes(), &items); err != nil {
		t.Fatalf("decode filtered: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("sector filter: expected 2 items, got %d", len(items))
	}
}

func TestListSourcesEndpoint(t *testing.T) {
	t.Parallel()

	router, _ := newTestServer(t, "")
	w := do(t, router, "/api/sources")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}

	var sources []struct {
		Name string `json:"name"`
		URL  string `json:"url"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &sources); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(sources) != 2 || sources[0].Name != "Feed A" {
		t.Fatalf("unexpected sources payload: %s", w.Body.String())
	}
}

func TestEmptyCollections(t *testing.T) {
	t.Parallel()

	router, _ := newTestServer(t, "")
	for _, path := range []string{"/api/indices", "/api/signals"} {
		w := do(t, router, path)
		if w.Code != http.StatusOK {
			t.Fatalf("%s status = %d", path, w.Code)
		}
		if strings.TrimSpace(w.Body.String()) != "[]" {
			t.Fatalf("%s should serve an empty array, got %s", path, w.Body.String())
		}
	}
}

func TestAdminRunKeyNotConfigured(t *testing.T) {
	t.Parallel()

	router, _ := newTestServer(t, "")
	w := do(t, router, "/admin/run?key=whatever")
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("missing server key must be a server error, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "admin key not configured") {
		t.Fatalf("unexpected body: %s", w.Body.String())
	}
}

func TestAdminRun(t *testing.T) {
	t.Parallel()

	router, store := newTestServer(t, "s3cret")

	w := do(t, router, "/admin/run?key=wrong")
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("wrong key should be unauthorized, got %d", w.Code)
	}

	w = do(t, router, "/admin/run?key=s3cret")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	var body struct {
		OK       bool `json:"ok"`
		Inserted int  `json:"inserted"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !body.OK || body.Inserted != 0 {
		t.Fatalf("unexpected run result: %s", w.Body.String())
	}

	lastRun, err := store.GetMeta(context.Background(), "last_run")
	if err != nil {
		t.Fatalf("get last_run: %v", err)
	}
	if lastRun == "" {
		t.Fatal("manual run must record last_run")
	}
}
