// Package httpcache provides HTTP response caching with thundering herd prevention.
package httpcache

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/codeGROOVE-dev/retry"
	"github.com/codeGROOVE-dev/sfcache"
	"github.com/codeGROOVE-dev/sfcache/pkg/store/localfs"
	"github.com/codeGROOVE-dev/sfcache/pkg/store/null"
	"golang.org/x/time/rate"
)

// UserAgent identifies the client to the analytics backend.
const UserAgent = "creatorscope/1.0 (+https://github.com/codeGROOVE-dev/creatorscope)"

// Stats counts cache hits and misses for this process. Uncached requests
// count as misses.
type Stats struct {
	Hits   int64
	Misses int64
}

var hits, misses atomic.Int64

// CacheStats returns the current cache statistics.
func CacheStats() Stats {
	return Stats{Hits: hits.Load(), Misses: misses.Load()}
}

// ResetStats resets the cache statistics.
func ResetStats() {
	hits.Store(0)
	misses.Store(0)
}

func recordHit()  { hits.Add(1) }
func recordMiss() { misses.Add(1) }

// Cacher allows external cache implementations for sharing across packages.
type Cacher interface {
	GetSet(ctx context.Context, key string, fetch func(context.Context) ([]byte, error), ttl ...time.Duration) ([]byte, error)
	TTL() time.Duration
}

// Cache wraps sfcache for HTTP response caching.
type Cache struct {
	*sfcache.TieredCache[string, []byte]

	ttl time.Duration
}

// New creates a new Cache with disk persistence at ~/.cache/creatorscope.
func New(ttl time.Duration) (*Cache, error) {
	cacheDir, err := os.UserCacheDir()
	if err != nil {
		cacheDir = os.TempDir()
	}
	return NewWithPath(ttl, filepath.Join(cacheDir, "creatorscope"))
}

// NewNull creates a Cache with no persistence (all gets miss, all sets discard).
func NewNull() *Cache {
	tc, err := sfcache.NewTiered[string, []byte](null.New[string, []byte]())
	if err != nil {
		panic("sfcache.NewTiered with null store: " + err.Error())
	}
	return &Cache{TieredCache: tc, ttl: 0}
}

// NewWithPath creates a new Cache with disk persistence at the specified path.
func NewWithPath(ttl time.Duration, cachePath string) (*Cache, error) {
	if err := os.MkdirAll(cachePath, 0o750); err != nil {
		return nil, fmt.Errorf("create cache directory: %w", err)
	}

	persist, err := localfs.New[string, []byte]("creatorscope", cachePath)
	if err != nil {
		return nil, fmt.Errorf("create persistence layer: %w", err)
	}

	tc, err := sfcache.NewTiered[string, []byte](persist, sfcache.TTL(ttl))
	if err != nil {
		return nil, fmt.Errorf("create cache: %w", err)
	}

	return &Cache{TieredCache: tc, ttl: ttl}, nil
}

// TTL returns the default TTL for cache entries.
func (c *Cache) TTL() time.Duration {
	return c.ttl
}

// RequestKey derives a cache key from the method, URL and body of req.
// A non-empty scope (typically a hash of the bearer token) keeps responses
// for different accounts apart.
func RequestKey(req *http.Request, scope string) (string, error) {
	h := sha256.New()
	fmt.Fprintf(h, "%s %s\n%s\n", req.Method, req.URL.String(), scope)
	if req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return "", fmt.Errorf("read request body: %w", err)
		}
		defer body.Close() //nolint:errcheck // in-memory body
		if _, err := io.Copy(h, body); err != nil {
			return "", fmt.Errorf("read request body: %w", err)
		}
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// HTTPError represents an HTTP error response.
type HTTPError struct {
	URL        string
	StatusCode int
	Body       []byte // First bytes of the response body, if any
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d fetching %s", e.StatusCode, e.URL)
}

var errRewind = errors.New("rewind request body")

// maxErrorBody bounds how much of a failed response is kept on HTTPError.
const maxErrorBody = 4 << 10

// Fetcher performs rate-limited, retried requests and caches idempotent ones.
type Fetcher struct {
	client  *http.Client
	cache   Cacher
	limiter *rate.Limiter
	logger  *slog.Logger

	attempts uint
	delay    time.Duration
}

// FetcherOption configures a Fetcher.
type FetcherOption func(*Fetcher)

// WithCache enables response caching for requests fetched with Cached.
func WithCache(c Cacher) FetcherOption {
	return func(f *Fetcher) { f.cache = c }
}

// WithRateLimit bounds the outbound request rate.
func WithRateLimit(perSecond float64, burst int) FetcherOption {
	return func(f *Fetcher) {
		if perSecond <= 0 {
			f.limiter = nil
			return
		}
		f.limiter = rate.NewLimiter(rate.Limit(perSecond), max(1, burst))
	}
}

// WithRetry sets the number of attempts and the base delay between them.
func WithRetry(attempts uint, delay time.Duration) FetcherOption {
	return func(f *Fetcher) {
		f.attempts = max(1, attempts)
		f.delay = delay
	}
}

// WithFetchLogger sets the logger.
func WithFetchLogger(logger *slog.Logger) FetcherOption {
	return func(f *Fetcher) { f.logger = logger }
}

// NewFetcher returns a Fetcher sending requests through client.
func NewFetcher(client *http.Client, opts ...FetcherOption) *Fetcher {
	if client == nil {
		client = http.DefaultClient
	}
	f := &Fetcher{
		client:   client,
		logger:   slog.Default(),
		attempts: 3,
		delay:    200 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Do sends req without caching and returns the body of a 2xx response.
func (f *Fetcher) Do(ctx context.Context, req *http.Request) ([]byte, error) {
	recordMiss()
	return f.doFetch(ctx, req)
}

// Cached sends req through the cache, keyed by RequestKey(req, scope).
// Concurrent callers with the same key share a single request. Failed
// responses are never cached.
func (f *Fetcher) Cached(ctx context.Context, req *http.Request, scope string) ([]byte, error) {
	if f.cache == nil || f.cache.TTL() <= 0 {
		return f.Do(ctx, req)
	}

	key, err := RequestKey(req, scope)
	if err != nil {
		return nil, err
	}

	var wasFetched bool
	data, err := f.cache.GetSet(ctx, key, func(ctx context.Context) ([]byte, error) {
		wasFetched = true
		recordMiss()
		f.logger.DebugContext(ctx, "cache miss", "url", req.URL.String())
		return f.doFetch(ctx, req)
	}, f.cache.TTL())
	if err != nil {
		return nil, err
	}

	if !wasFetched {
		recordHit()
		f.logger.DebugContext(ctx, "cache hit", "url", req.URL.String())
	}
	return data, nil
}

func (f *Fetcher) doFetch(ctx context.Context, req *http.Request) ([]byte, error) {
	return retry.DoWithData(
		func() ([]byte, error) {
			if f.limiter != nil {
				if err := f.limiter.Wait(ctx); err != nil {
					return nil, err
				}
			}

			attempt, err := rewind(ctx, req)
			if err != nil {
				return nil, err
			}

			resp, err := f.client.Do(attempt)
			if err != nil {
				return nil, err
			}
			defer resp.Body.Close() //nolint:errcheck // intentional

			if resp.StatusCode < 200 || resp.StatusCode > 299 {
				body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody)) //nolint:errcheck // best effort
				return nil, &HTTPError{StatusCode: resp.StatusCode, URL: req.URL.String(), Body: body}
			}

			return io.ReadAll(resp.Body)
		},
		retry.Context(ctx),
		retry.Attempts(f.attempts),
		retry.Delay(f.delay),
		retry.MaxJitter(100*time.Millisecond),
		retry.RetryIf(isRetryableError),
		retry.OnRetry(func(n uint, err error) {
			f.logger.DebugContext(ctx, "retrying HTTP request", "attempt", n+1, "url", req.URL.String(), "error", err)
		}),
	)
}

// rewind returns a copy of req bound to ctx with a fresh body, so every
// attempt sends the full payload.
func rewind(ctx context.Context, req *http.Request) (*http.Request, error) {
	out := req.Clone(ctx)
	if req.GetBody == nil {
		return out, nil
	}
	body, err := req.GetBody()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errRewind, err)
	}
	out.Body = body
	return out, nil
}

// NewJSONRequest builds a POST request carrying body, with GetBody set so it
// can be replayed and hashed.
func NewJSONRequest(ctx context.Context, rawURL string, body []byte) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rawURL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", UserAgent)
	return req, nil
}

// isRetryableError returns true for transient errors that should be retried.
func isRetryableError(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, errRewind) {
		return false
	}
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		switch httpErr.StatusCode {
		case http.StatusTooManyRequests,
			http.StatusInternalServerError,
			http.StatusBadGateway,
			http.StatusServiceUnavailable,
			http.StatusGatewayTimeout:
			return true
		default:
			return false // 4xx errors (except 429) are permanent
		}
	}
	// Network errors, timeouts, etc. are retryable
	return true
}
