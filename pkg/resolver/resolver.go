// Package resolver loads one creator profile and switches between the
// platform profiles of the same linked creator.
package resolver

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/codeGROOVE-dev/creatorscope/pkg/creator"
	"github.com/codeGROOVE-dev/creatorscope/pkg/links"
	"github.com/codeGROOVE-dev/creatorscope/pkg/sentiment"
)

// Source fetches profiles.
type Source interface {
	Profile(ctx context.Context, id string) (*creator.Profile, error)
	ProfileByIdentity(ctx context.Context, identity string, platform creator.Platform) (*creator.Profile, error)
}

// Status is the lifecycle of the profile view.
type Status int

// Profile view statuses.
const (
	Idle Status = iota
	Loading
	Loaded
	NotFound
	Failed
)

func (s Status) String() string {
	switch s {
	case Idle:
		return "idle"
	case Loading:
		return "loading"
	case Loaded:
		return "loaded"
	case NotFound:
		return "not found"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// View is derived from the displayed profile on every successful load.
type View struct {
	Connections []links.Connection
	Sentiment   sentiment.Summary
}

// State is a snapshot of the profile view. Profile is shared and must not
// be modified.
type State struct {
	Err         error // Why the last record load failed
	PlatformErr error // Why the last platform switch failed; the profile is unchanged
	Profile     *creator.Profile
	Selected    creator.Platform
	View        View
	Status      Status
	Switching   bool
}

// Resolver owns the profile view. Only the most recent load or switch may
// update it.
type Resolver struct {
	src     Source
	logger  *slog.Logger
	cancel  context.CancelFunc
	pending string // identity of the switch in flight
	state   State
	gen     uint64
	mu      sync.Mutex
	closed  bool
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Resolver) { r.logger = logger }
}

// New returns an idle Resolver.
func New(src Source, opts ...Option) *Resolver {
	r := &Resolver{src: src, logger: slog.Default()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// begin starts a new request generation, cancelling the previous one.
// The caller must hold r.mu.
func (r *Resolver) begin(ctx context.Context) (context.Context, context.CancelFunc, uint64) {
	r.gen++
	if r.cancel != nil {
		r.cancel()
	}
	reqCtx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	return reqCtx, cancel, r.gen
}

// settle reports whether the request of generation gen may still commit.
// The caller must hold r.mu.
func (r *Resolver) settle(ctx context.Context, gen uint64) error {
	if r.closed {
		return creator.ErrClosed
	}
	if gen != r.gen {
		r.logger.DebugContext(ctx, "dropping superseded profile response", "gen", gen, "current", r.gen)
		return creator.ErrSuperseded
	}
	r.cancel = nil
	return nil
}

// LoadByRecordID loads the profile with the given record id and selects its
// platform. An empty result ends in NotFound with creator.ErrProfileNotFound;
// any other failure ends in Failed.
func (r *Resolver) LoadByRecordID(ctx context.Context, id string) (*creator.Profile, error) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil, creator.ErrClosed
	}
	reqCtx, cancel, gen := r.begin(ctx)
	defer cancel()
	r.state.Status = Loading
	r.state.Err = nil
	r.state.PlatformErr = nil
	r.state.Switching = false
	r.pending = ""
	r.mu.Unlock()

	r.logger.InfoContext(ctx, "loading profile", "id", id)
	p, err := r.src.Profile(reqCtx, id)
	if err == nil && p == nil {
		err = creator.ErrProfileNotFound
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if serr := r.settle(ctx, gen); serr != nil {
		return nil, serr
	}

	if err != nil {
		r.state.Profile = nil
		r.state.View = View{}
		r.state.Err = err
		if errors.Is(err, creator.ErrProfileNotFound) {
			r.state.Status = NotFound
		} else {
			r.logger.WarnContext(ctx, "profile load failed", "id", id, "error", err)
			r.state.Status = Failed
		}
		return nil, err
	}

	r.commit(ctx, p)
	return p, nil
}

// SwitchPlatform shows the target platform's profile of the creator with the
// given identity. Switching to the selected platform returns the current
// profile without a request. Asking again for the target of a switch still
// in flight returns creator.ErrSwitchPending without a request, and nothing
// can be switched while a record load is in flight (creator.ErrLoading).
//
// On failure the displayed profile is kept, PlatformErr is set, and the
// selector returns to the displayed profile's platform. A creator with no
// profile on target yields *creator.NotOnPlatformError.
func (r *Resolver) SwitchPlatform(ctx context.Context, identity string, target creator.Platform) (*creator.Profile, error) {
	r.mu.Lock()
	return r.switchLocked(ctx, identity, target)
}

// Switch is SwitchPlatform using the displayed profile's identity.
func (r *Resolver) Switch(ctx context.Context, target creator.Platform) (*creator.Profile, error) {
	r.mu.Lock()
	identity := ""
	if r.state.Profile != nil {
		identity = r.state.Profile.Identity
	}
	return r.switchLocked(ctx, identity, target)
}

// switchLocked is called with r.mu held and releases it.
func (r *Resolver) switchLocked(ctx context.Context, identity string, target creator.Platform) (*creator.Profile, error) {
	if r.closed {
		r.mu.Unlock()
		return nil, creator.ErrClosed
	}
	if r.state.Status == Loading {
		r.mu.Unlock()
		return nil, creator.ErrLoading
	}
	if r.state.Switching && target == r.state.Selected && identity == r.pending {
		r.mu.Unlock()
		return nil, creator.ErrSwitchPending
	}
	if r.state.Profile != nil && target == r.state.Selected && !r.state.Switching {
		p := r.state.Profile
		r.mu.Unlock()
		return p, nil
	}
	if identity == "" {
		r.mu.Unlock()
		return nil, creator.ErrNoIdentity
	}
	reqCtx, cancel, gen := r.begin(ctx)
	defer cancel()
	r.state.Selected = target
	r.state.Switching = true
	r.state.PlatformErr = nil
	r.pending = identity
	r.mu.Unlock()

	r.logger.InfoContext(ctx, "switching platform", "identity", identity, "platform", target)
	p, err := r.src.ProfileByIdentity(reqCtx, identity, target)
	if err == nil && p == nil {
		err = &creator.NotOnPlatformError{Identity: identity, Platform: target}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if serr := r.settle(ctx, gen); serr != nil {
		return nil, serr
	}
	r.state.Switching = false
	r.pending = ""

	if err != nil {
		r.logger.InfoContext(ctx, "platform switch failed", "identity", identity, "platform", target, "error", err)
		r.state.PlatformErr = err
		if r.state.Profile != nil {
			r.state.Selected = r.state.Profile.Platform
		}
		return nil, err
	}

	r.commit(ctx, p)
	r.state.Selected = target
	return p, nil
}

// CanSwitch reports whether a platform selector should be offered: a linked
// profile is loaded and no record load is in flight.
func (r *Resolver) CanSwitch() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state.Status == Loaded && r.state.Profile.Linked()
}

// commit makes p the displayed profile and recomputes the view.
// The caller must hold r.mu.
func (r *Resolver) commit(ctx context.Context, p *creator.Profile) {
	for i := range p.Posts {
		if p.Posts[i].Normalize() {
			r.logger.DebugContext(ctx, "normalized half-present comment breakdown", "profile", p.ID, "post", p.Posts[i].ID)
		}
	}

	r.state.Profile = p
	r.state.Selected = p.Platform
	r.state.Status = Loaded
	r.state.Err = nil
	r.state.View = View{
		Connections: links.Connections(p.Bio, p.Platform, p.PlatformID),
		Sentiment:   sentiment.Aggregate(p.Posts, p.Metrics.SentimentScore),
	}
}

// State returns a snapshot of the view.
func (r *Resolver) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Reset returns the view to Idle. A load or switch in flight is cancelled
// and its response dropped with creator.ErrSuperseded.
func (r *Resolver) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.gen++
	if r.cancel != nil {
		r.cancel()
		r.cancel = nil
	}
	r.pending = ""
	r.state = State{}
}

// Close cancels any request in flight. Responses arriving afterwards are
// dropped and later calls return creator.ErrClosed.
func (r *Resolver) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	if r.cancel != nil {
		r.cancel()
		r.cancel = nil
	}
}
