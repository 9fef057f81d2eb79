// Package directory lists creators for the dashboard: the top creators of a
// platform, or the results of a free-text search.
package directory

import (
	"context"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/codeGROOVE-dev/creatorscope/pkg/creator"
)

// Source fetches directory listings.
type Source interface {
	TopCreators(ctx context.Context, platform creator.Platform) ([]creator.DirectoryEntry, error)
	SearchCreators(ctx context.Context, query string) ([]creator.DirectoryEntry, error)
}

// State is a snapshot of the directory view.
type State struct {
	Err      error
	Platform creator.Platform
	Query    string
	Entries  []creator.DirectoryEntry
	Loading  bool
}

// Searching reports whether the listing is a search result.
func (s State) Searching() bool {
	return strings.TrimSpace(s.Query) != ""
}

// Directory is the dashboard listing. Only the most recent request may
// update it; older responses are dropped.
type Directory struct {
	src    Source
	logger *slog.Logger
	cancel context.CancelFunc
	state  State
	gen    uint64
	mu     sync.Mutex
	closed bool
}

// Option configures a Directory.
type Option func(*Directory)

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Directory) { d.logger = logger }
}

// WithPlatform sets the initially selected platform.
func WithPlatform(p creator.Platform) Option {
	return func(d *Directory) { d.state.Platform = p }
}

// New returns a Directory listing from src. YouTube is selected by default.
func New(src Source, opts ...Option) *Directory {
	d := &Directory{
		src:    src,
		logger: slog.Default(),
		state:  State{Platform: creator.YouTube},
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Load lists creators. A non-blank query searches across every platform and
// ignores platform; otherwise the top creators of platform are listed.
//
// It returns creator.ErrSuperseded if a newer call was made before this
// one finished, and creator.ErrClosed after Close.
func (d *Directory) Load(ctx context.Context, platform creator.Platform, query string) ([]creator.DirectoryEntry, error) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil, creator.ErrClosed
	}
	d.gen++
	gen := d.gen
	if d.cancel != nil {
		d.cancel()
	}
	reqCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	d.cancel = cancel
	d.state.Platform = platform
	d.state.Query = query
	d.state.Loading = true
	d.state.Err = nil
	d.mu.Unlock()

	var entries []creator.DirectoryEntry
	var err error
	if q := strings.TrimSpace(query); q != "" {
		d.logger.DebugContext(ctx, "directory search", "query", q, "gen", gen)
		entries, err = d.src.SearchCreators(reqCtx, q)
	} else {
		d.logger.DebugContext(ctx, "directory top creators", "platform", platform, "gen", gen)
		entries, err = d.src.TopCreators(reqCtx, platform)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil, creator.ErrClosed
	}
	if gen != d.gen {
		d.logger.DebugContext(ctx, "dropping superseded directory response", "gen", gen, "current", d.gen)
		return nil, creator.ErrSuperseded
	}
	d.cancel = nil
	d.state.Loading = false

	if err != nil {
		d.logger.WarnContext(ctx, "directory load failed", "platform", platform, "query", query, "error", err)
		d.state.Entries = nil
		d.state.Err = err
		return nil, err
	}
	if entries == nil {
		entries = []creator.DirectoryEntry{}
	}
	d.state.Entries = entries
	return entries, nil
}

// SelectPlatform switches the platform and lists its top creators.
// Any search query is cleared.
func (d *Directory) SelectPlatform(ctx context.Context, p creator.Platform) ([]creator.DirectoryEntry, error) {
	return d.Load(ctx, p, "")
}

// Search runs a free-text search. The selected platform is kept for when
// the search is cleared.
func (d *Directory) Search(ctx context.Context, query string) ([]creator.DirectoryEntry, error) {
	return d.Load(ctx, d.State().Platform, query)
}

// ClearSearch drops the query and relists the selected platform.
func (d *Directory) ClearSearch(ctx context.Context) ([]creator.DirectoryEntry, error) {
	return d.Load(ctx, d.State().Platform, "")
}

// State returns a copy of the current view state.
func (d *Directory) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	s := d.state
	s.Entries = slices.Clone(d.state.Entries)
	return s
}

// Close cancels any request in flight. Responses arriving afterwards are
// dropped and later calls return creator.ErrClosed.
func (d *Directory) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
}
