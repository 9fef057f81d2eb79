// Package connect links the logged-in account to the Instagram Graph API and
// keeps the session's connection flag in step with the outcome.
package connect

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/facebook"
)

// Failure reasons raised by HandleRedirect itself. Provider-supplied reasons
// pass through unchanged.
const (
	ReasonMissingCode    = "missing_code"
	ReasonStateMismatch  = "state_mismatch"
	ReasonExchangeFailed = "exchange_failed"
)

// DefaultScopes are requested when none are configured.
var DefaultScopes = []string{"instagram_basic", "pages_show_list", "instagram_manage_insights"}

// Kind classifies an Outcome.
type Kind int

// Outcome kinds. None means nothing happened.
const (
	None Kind = iota
	Succeeded
	Failed
)

// Outcome is the result of an authorization attempt.
type Outcome struct {
	Reason string
	Kind   Kind
}

// Success is a completed connection.
func Success() Outcome { return Outcome{Kind: Succeeded} }

// Failure is a failed connection with a machine-readable reason.
func Failure(reason string) Outcome { return Outcome{Kind: Failed, Reason: reason} }

// Notice is a transient message shown after a failed connection.
type Notice struct {
	Expires time.Time
	Reason  string
	Message string
}

var messages = map[string]string{
	ReasonMissingCode:    "No authorization code returned.",
	ReasonStateMismatch:  "The authorization response did not match this request. Try connecting again.",
	ReasonExchangeFailed: "Failed to connect account. The code may be invalid or expired.",
	"access_denied":      "Authorization was denied.",
	"user_denied":        "Authorization was denied.",
}

// Message returns the user-facing text for a failure reason.
func Message(reason string) string {
	if m, ok := messages[reason]; ok {
		return m
	}
	return "Authorization was denied or failed."
}

// Flag is the session's connection flag. The Reconciler is its only writer.
type Flag interface {
	Connected() bool
	SetConnected(ctx context.Context, connected bool) error
}

// Exchanger trades an authorization code for a backend connection.
type Exchanger interface {
	ExchangeCode(ctx context.Context, code string) (string, error)
}

// Redirect holds the query parameters of an authorization redirect.
// HandleRedirect consumes them.
type Redirect struct {
	Code        string
	Error       string
	ErrorReason string
	State       string
}

// take returns the parameters and clears them.
func (r *Redirect) take() Redirect {
	out := *r
	*r = Redirect{}
	return out
}

func (r Redirect) empty() bool {
	return r == Redirect{}
}

// Reconciler applies authorization outcomes to the session.
type Reconciler struct {
	flag   Flag
	ex     Exchanger
	logger *slog.Logger
	now    func() time.Time
	notice *Notice
	state  string
	ttl    time.Duration
	mu     sync.Mutex
}

// Option configures a Reconciler.
type Option func(*Reconciler)

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Reconciler) { r.logger = logger }
}

// WithNoticeTTL sets how long a failure notice stays visible.
func WithNoticeTTL(d time.Duration) Option {
	return func(r *Reconciler) { r.ttl = d }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(r *Reconciler) { r.now = now }
}

// NewReconciler returns a Reconciler writing to flag and exchanging codes
// through ex.
func NewReconciler(flag Flag, ex Exchanger, opts ...Option) *Reconciler {
	r := &Reconciler{
		flag:   flag,
		ex:     ex,
		logger: slog.Default(),
		now:    time.Now,
		ttl:    5 * time.Second,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ExpectState sets the state value the next redirect must carry.
// An empty state disables the check.
func (r *Reconciler) ExpectState(state string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state = state
}

// Reconcile applies an outcome. Success sets and persists the connection
// flag unless it is already set; Failure leaves the flag alone and raises a
// notice.
func (r *Reconciler) Reconcile(ctx context.Context, o Outcome) error {
	switch o.Kind {
	case Succeeded:
		r.mu.Lock()
		r.notice = nil
		r.mu.Unlock()
		if r.flag.Connected() {
			r.logger.DebugContext(ctx, "already connected")
			return nil
		}
		if err := r.flag.SetConnected(ctx, true); err != nil {
			r.logger.WarnContext(ctx, "failed to persist connection flag", "error", err)
			return err
		}
		r.logger.InfoContext(ctx, "account connected")
	case Failed:
		r.logger.InfoContext(ctx, "connection failed", "reason", o.Reason)
		r.mu.Lock()
		r.notice = &Notice{Reason: o.Reason, Message: Message(o.Reason), Expires: r.now().Add(r.ttl)}
		r.mu.Unlock()
	case None:
	}
	return nil
}

// Notice returns the current failure notice, if one has not expired.
func (r *Reconciler) Notice() (Notice, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.notice == nil {
		return Notice{}, false
	}
	if !r.now().Before(r.notice.Expires) {
		r.notice = nil
		return Notice{}, false
	}
	return *r.notice, true
}

// HandleRedirect consumes the redirect parameters and reconciles the
// outcome. Calling it again with the consumed Redirect does nothing and
// returns an Outcome of kind None.
func (r *Reconciler) HandleRedirect(ctx context.Context, rd *Redirect) (Outcome, error) {
	if rd == nil {
		return Outcome{}, nil
	}
	p := rd.take()
	if p.empty() {
		return Outcome{}, nil
	}

	r.mu.Lock()
	want := r.state
	r.state = ""
	r.mu.Unlock()

	var o Outcome
	switch {
	case p.Error != "":
		reason := p.ErrorReason
		if reason == "" {
			reason = p.Error
		}
		o = Failure(reason)
	case p.Code == "":
		o = Failure(ReasonMissingCode)
	case want != "" && p.State != want:
		o = Failure(ReasonStateMismatch)
	default:
		if _, err := r.ex.ExchangeCode(ctx, p.Code); err != nil {
			r.logger.WarnContext(ctx, "code exchange failed", "error", err)
			o = Failure(ReasonExchangeFailed)
		} else {
			o = Success()
		}
	}
	return o, r.Reconcile(ctx, o)
}

// Config describes the OAuth client used to start a connection.
type Config struct {
	ClientID    string
	RedirectURL string
	Scopes      []string
}

// AuthorizeURL returns the Facebook Login URL that grants Instagram Graph
// access, carrying state.
func AuthorizeURL(cfg Config, state string) string {
	scopes := cfg.Scopes
	if len(scopes) == 0 {
		scopes = DefaultScopes
	}
	oc := &oauth2.Config{
		ClientID:    cfg.ClientID,
		RedirectURL: cfg.RedirectURL,
		Scopes:      scopes,
		Endpoint:    facebook.Endpoint,
	}
	return oc.AuthCodeURL(state, oauth2.AccessTypeOnline)
}

// NewState returns a random state value for an authorization request.
func NewState() string {
	return uuid.NewString()
}
