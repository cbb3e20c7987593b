package web

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/custodia-labs/kbase/internal/core/domain"
	"github.com/custodia-labs/kbase/internal/core/ports/driven"
	"github.com/custodia-labs/kbase/internal/logger"
)

// Fetcher retrieves pages over HTTP(S).
type Fetcher struct {
	client  *http.Client
	config  Config
	limiter *HostLimiter
}

var _ driven.Fetcher = (*Fetcher)(nil)

// NewFetcher creates a fetcher. Zero config fields take their defaults.
func NewFetcher(cfg Config) *Fetcher {
	cfg = cfg.withDefaults()
	return &Fetcher{
		client:  &http.Client{},
		config:  cfg,
		limiter: NewHostLimiter(cfg.RequestsPerSecond, cfg.Burst),
	}
}

// NewFetcherWithClient creates a fetcher using a custom HTTP client.
// Useful for testing.
func NewFetcherWithClient(cfg Config, client *http.Client) *Fetcher {
	f := NewFetcher(cfg)
	f.client = client
	return f
}

// Fetch downloads rawURL. The configured timeout covers the request and
// reading the body; throttling waits happen before the timeout starts.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*domain.RawDocument, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid url %q: %v", domain.ErrFetch, rawURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("%w: unsupported scheme %q", domain.ErrFetch, u.Scheme)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("%w: url %q has no host", domain.ErrFetch, rawURL)
	}

	if err := f.limiter.Wait(ctx, u.Host); err != nil {
		return nil, classify(ctx, err)
	}

	reqCtx, cancel := context.WithTimeout(ctx, f.config.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", domain.ErrFetch, err)
	}
	req.Header.Set("User-Agent", f.config.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/pdf,text/plain;q=0.9,*/*;q=0.8")

	start := time.Now()
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, classify(reqCtx, err)
	}
	defer resp.Body.Close()

	f.limiter.UpdateFromResponse(u.Host, resp)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &domain.HTTPStatusError{URL: rawURL, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.config.MaxBodyBytes+1))
	if err != nil {
		return nil, classify(reqCtx, err)
	}
	if int64(len(body)) > f.config.MaxBodyBytes {
		return nil, fmt.Errorf("%w: body exceeds %d bytes", domain.ErrFetch, f.config.MaxBodyBytes)
	}

	mimeType := contentType(resp.Header.Get("Content-Type"), resp.Request.URL, body)
	logger.Debug("fetched %s: %d bytes of %s in %s", rawURL, len(body), mimeType, time.Since(start).Round(time.Millisecond))

	return &domain.RawDocument{
		Locator:  rawURL,
		MIMEType: mimeType,
		Content:  body,
		Metadata: map[string]any{
			"status_code": resp.StatusCode,
			"final_url":   resp.Request.URL.String(),
		},
	}, nil
}

// classify maps transport errors onto the fetch error taxonomy.
func classify(ctx context.Context, err error) error {
	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.As(err, &netErr) && netErr.Timeout():
		return fmt.Errorf("%w: %v", domain.ErrFetchTimeout, err)
	case errors.Is(err, context.Canceled) || ctx.Err() == context.Canceled:
		return fmt.Errorf("%w: %w", domain.ErrFetch, context.Canceled)
	default:
		return fmt.Errorf("%w: %v", domain.ErrFetch, err)
	}
}

// contentType resolves the response media type, sniffing the body when the
// server sends none or a generic binary type.
func contentType(header string, u *url.URL, body []byte) string {
	ct := strings.TrimSpace(header)
	generic := ct == "" || strings.HasPrefix(ct, "application/octet-stream") || strings.HasPrefix(ct, "binary/octet-stream")
	if !generic {
		return ct
	}
	if strings.HasPrefix(string(body), "%PDF-") || strings.EqualFold(path.Ext(u.Path), ".pdf") {
		return "application/pdf"
	}
	return http.DetectContentType(body)
}
