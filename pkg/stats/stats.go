// Package stats provides the global account counters shown on the dashboard.
//
// Counters are best effort: a failed fetch is logged and the placeholder
// stays up.
package stats

import (
	"context"
	"log/slog"
	"sync"

	"github.com/codeGROOVE-dev/creatorscope/pkg/creator"
)

// Source fetches the counters.
type Source interface {
	Stats(ctx context.Context) (creator.AggregateStats, error)
}

// Provider holds the most recent counters.
type Provider struct {
	src    Source
	logger *slog.Logger
	cancel context.CancelFunc
	done   chan struct{}
	stats  creator.AggregateStats
	gen    uint64
	mu     sync.Mutex
	ok     bool
	closed bool
}

// Option configures a Provider.
type Option func(*Provider)

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Provider) { p.logger = logger }
}

// New returns a Provider with no counters yet.
func New(src Source, opts ...Option) *Provider {
	p := &Provider{src: src, logger: slog.Default()}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Start fetches in the background. The returned channel, also available
// from Done, is closed once the fetch settles.
func (p *Provider) Start(ctx context.Context) <-chan struct{} {
	done := make(chan struct{})
	p.mu.Lock()
	p.done = done
	p.mu.Unlock()

	go func() {
		defer close(done)
		p.Fetch(ctx)
	}()
	return done
}

// Done returns the channel of the most recent Start. It is already closed
// if Start was never called.
func (p *Provider) Done() <-chan struct{} {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.done == nil {
		c := make(chan struct{})
		close(c)
		return c
	}
	return p.done
}

// Fetch retrieves the counters and returns what Snapshot would report
// afterwards.
func (p *Provider) Fetch(ctx context.Context) (creator.AggregateStats, bool) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return creator.AggregateStats{}, false
	}
	p.gen++
	gen := p.gen
	if p.cancel != nil {
		p.cancel()
	}
	reqCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	p.cancel = cancel
	p.mu.Unlock()

	s, err := p.src.Stats(reqCtx)

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return creator.AggregateStats{}, false
	}
	if gen != p.gen {
		return p.stats, p.ok
	}
	p.cancel = nil
	if err != nil {
		p.logger.WarnContext(ctx, "failed to fetch stats", "error", err)
		return p.stats, p.ok
	}
	p.stats = s
	p.ok = true
	p.logger.DebugContext(ctx, "stats updated", "creators", s.Creators, "brands", s.Brands, "users", s.Users)
	return s, true
}

// Snapshot returns the counters. ok is false until a fetch succeeds; the
// caller should render a placeholder.
func (p *Provider) Snapshot() (creator.AggregateStats, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stats, p.ok
}

// Close cancels a fetch in flight and drops its result.
func (p *Provider) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
}
