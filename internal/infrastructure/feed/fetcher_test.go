package feed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"worldsentinel/internal/config"
)

func testFetchConfig() config.FetchConfig {
	return config.FetchConfig{
		TimeoutSeconds: 2,
		RatePerSecond:  100,
		Burst:          10,
		UserAgent:      "WorldSentinel/test",
	}
}

func TestFetchOK(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ua := r.Header.Get("User-Agent"); ua != "WorldSentinel/test" {
			t.Errorf("unexpected user agent: %q", ua)
		}
		_, _ = w.Write([]byte("<rss/>"))
	}))
	defer server.Close()

	f := NewHTTPFetcher(testFetchConfig(), nil)
	body, err := f.Fetch(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("Fetch error: %v", err)
	}
	if string(body) != "<rss/>" {
		t.Fatalf("unexpected body: %q", body)
	}
}

func TestFetchNon200(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusBadGateway)
	}))
	defer server.Close()

	f := NewHTTPFetcher(testFetchConfig(), nil)
	if _, err := f.Fetch(context.Background(), server.URL); err == nil {
		t.Fatal("expected error for non-200 response")
	}
}
