package web

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// HeaderRetryAfter is the retry-after header (seconds or HTTP date).
const HeaderRetryAfter = "Retry-After"

// maxBackoff caps how long a Retry-After header can hold a host.
const maxBackoff = 2 * time.Minute

// HostLimiter throttles requests per host.
// It combines a token bucket per host with reactive backoff from Retry-After.
type HostLimiter struct {
	mu      sync.Mutex
	rps     float64
	burst   int
	buckets map[string]*rate.Limiter
	blocked map[string]time.Time
}

// NewHostLimiter creates a limiter allowing rps requests per second to each host.
// A non-positive rps disables proactive throttling.
func NewHostLimiter(rps float64, burst int) *HostLimiter {
	if burst <= 0 {
		burst = 1
	}
	return &HostLimiter{
		rps:     rps,
		burst:   burst,
		buckets: make(map[string]*rate.Limiter),
		blocked: make(map[string]time.Time),
	}
}

// Wait blocks until a request to host is allowed or ctx is done.
func (h *HostLimiter) Wait(ctx context.Context, host string) error {
	h.mu.Lock()
	bucket := h.bucket(host)
	until := h.blocked[host]
	h.mu.Unlock()

	if bucket != nil {
		if err := bucket.Wait(ctx); err != nil {
			return err
		}
	}

	if wait := time.Until(until); wait > 0 {
		timer := time.NewTimer(wait)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}
	return nil
}

// bucket returns the host's token bucket. Caller holds mu.
func (h *HostLimiter) bucket(host string) *rate.Limiter {
	if h.rps <= 0 {
		return nil
	}
	b, ok := h.buckets[host]
	if !ok {
		b = rate.NewLimiter(rate.Limit(h.rps), h.burst)
		h.buckets[host] = b
	}
	return b
}

// UpdateFromResponse records a Retry-After backoff from 429 and 503 responses.
func (h *HostLimiter) UpdateFromResponse(host string, resp *http.Response) {
	if resp == nil {
		return
	}
	if resp.StatusCode != http.StatusTooManyRequests && resp.StatusCode != http.StatusServiceUnavailable {
		return
	}
	delay, ok := parseRetryAfter(resp.Header.Get(HeaderRetryAfter), time.Now())
	if !ok {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.blocked[host] = time.Now().Add(min(delay, maxBackoff))
}

// BlockedUntil returns when the host may be contacted again.
func (h *HostLimiter) BlockedUntil(host string) time.Time {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.blocked[host]
}

func parseRetryAfter(value string, now time.Time) (time.Duration, bool) {
	if value == "" {
		return 0, false
	}
	if seconds, err := strconv.Atoi(value); err == nil {
		if seconds < 0 {
			return 0, false
		}
		return time.Duration(seconds) * time.Second, true
	}
	if at, err := http.ParseTime(value); err == nil {
		if d := at.Sub(now); d > 0 {
			return d, true
		}
	}
	return 0, false
}
