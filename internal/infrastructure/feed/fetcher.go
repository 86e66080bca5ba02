package feed

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"worldsentinel/internal/config"
	"worldsentinel/internal/ports"
)

// Feed endpoints are untrusted; cap how much of a response we read.
const maxBodyBytes = 2 << 20

// HTTPFetcher retrieves raw feed documents with a bounded timeout and a shared
// outbound rate limit across sources.
type HTTPFetcher struct {
	client    *http.Client
	limiter   *rate.Limiter
	userAgent string
	logger    *slog.Logger
}

var _ ports.Fetcher = (*HTTPFetcher)(nil)

// NewHTTPFetcher builds a fetcher from configuration.
func NewHTTPFetcher(cfg config.FetchConfig, logger *slog.Logger) *HTTPFetcher {
	rps := cfg.RatePerSecond
	if rps <= 0 {
		rps = 2
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	return &HTTPFetcher{
		client:    &http.Client{Timeout: cfg.Timeout()},
		limiter:   rate.NewLimiter(rate.Limit(rps), burst),
		userAgent: cfg.UserAgent,
		logger:    logger,
	}
}

// Fetch downloads one feed document. A timeout counts as an ordinary fetch
// error; the caller isolates it per source.
func (f *HTTPFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}

	started := time.Now()
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("feed returned %s", resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read feed body: %w", err)
	}

	if f.logger != nil {
		f.logger.Debug("feed fetched", "url", url, "bytes", len(body), "elapsed", time.Since(started))
	}
	return body, nil
}
