// Package api is the client for the creator analytics backend.
//
// Every operation is a JSON POST returning the envelope {"message", "data"}.
// Results come back in one of three forms: a value, a business not-found
// (creator.ErrProfileNotFound or *creator.NotOnPlatformError), or a transport
// failure (*Error).
package api

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/codeGROOVE-dev/creatorscope/pkg/creator"
	"github.com/codeGROOVE-dev/creatorscope/pkg/httpcache"
)

// DefaultBaseURL is the backend used when none is configured.
const DefaultBaseURL = "http://127.0.0.1:8000/api/v1"

// Endpoint paths, relative to the base URL.
const (
	pathLogin             = "/login"
	pathRegister          = "/add-user"
	pathStats             = "/get_user_stats"
	pathTopCreators       = "/get-top-engagemnet-rate"
	pathSearch            = "/search-influencers"
	pathProfile           = "/get-one-user-profile-data"
	pathProfileByIdentity = "/get-one-user-profile-data-creatorId"
	pathExchangeCode      = "/exchange_code"
)

// Error is a transport failure: the request did not complete, the server
// answered with a non-2xx status, or the response could not be decoded.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string {
	if msg := e.Message(); msg != "" {
		return fmt.Sprintf("%s: %v: %s", e.Op, e.Err, msg)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// StatusCode returns the HTTP status of a non-2xx response, or 0.
func (e *Error) StatusCode() int {
	var httpErr *httpcache.HTTPError
	if errors.As(e.Err, &httpErr) {
		return httpErr.StatusCode
	}
	return 0
}

// Message returns the server's explanation from an error envelope, if any.
func (e *Error) Message() string {
	var httpErr *httpcache.HTTPError
	if !errors.As(e.Err, &httpErr) || len(httpErr.Body) == 0 {
		return ""
	}
	var env struct {
		Message string `json:"message"`
		Detail  string `json:"detail"`
	}
	if json.Unmarshal(httpErr.Body, &env) != nil {
		return ""
	}
	if env.Message != "" {
		return env.Message
	}
	return env.Detail
}

// TokenSource supplies the bearer token for authenticated calls.
// An empty token sends no Authorization header.
type TokenSource interface {
	Token() string
}

// StaticToken is a fixed TokenSource.
type StaticToken string

// Token returns the token.
func (s StaticToken) Token() string { return string(s) }

// Client talks to the analytics backend.
type Client struct {
	fetcher *httpcache.Fetcher
	tokens  TokenSource
	logger  *slog.Logger
	baseURL string
}

// Option configures a Client.
type Option func(*config)

type config struct {
	cache      httpcache.Cacher
	httpClient *http.Client
	tokens     TokenSource
	logger     *slog.Logger
	baseURL    string
	timeout    time.Duration
	rate       float64
	burst      int
}

// WithBaseURL sets the backend base URL.
func WithBaseURL(u string) Option {
	return func(c *config) { c.baseURL = u }
}

// WithHTTPCache sets the HTTP cache used for read operations.
func WithHTTPCache(httpCache httpcache.Cacher) Option {
	return func(c *config) { c.cache = httpCache }
}

// WithHTTPClient sets the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *config) { c.httpClient = hc }
}

// WithTokenSource sets where the bearer token comes from.
func WithTokenSource(ts TokenSource) Option {
	return func(c *config) { c.tokens = ts }
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *config) { c.timeout = d }
}

// WithRateLimit bounds outbound requests per second.
func WithRateLimit(perSecond float64, burst int) Option {
	return func(c *config) {
		c.rate = perSecond
		c.burst = burst
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) { c.logger = logger }
}

// New creates a backend client.
func New(ctx context.Context, opts ...Option) (*Client, error) {
	cfg := &config{
		logger:  slog.Default(),
		baseURL: DefaultBaseURL,
		timeout: 30 * time.Second,
		rate:    5,
		burst:   5,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	base := strings.TrimRight(cfg.baseURL, "/")
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		return nil, fmt.Errorf("invalid base URL %q", cfg.baseURL)
	}

	hc := cfg.httpClient
	if hc == nil {
		hc = &http.Client{Timeout: cfg.timeout}
	}
	if cfg.tokens == nil {
		cfg.tokens = StaticToken("")
	}

	fopts := []httpcache.FetcherOption{
		httpcache.WithFetchLogger(cfg.logger),
		httpcache.WithRateLimit(cfg.rate, cfg.burst),
	}
	if cfg.cache != nil {
		fopts = append(fopts, httpcache.WithCache(cfg.cache))
	}

	cfg.logger.DebugContext(ctx, "api client configured", "base_url", base, "timeout", hc.Timeout)

	return &Client{
		fetcher: httpcache.NewFetcher(hc, fopts...),
		tokens:  cfg.tokens,
		logger:  cfg.logger,
		baseURL: base,
	}, nil
}

// envelope is the shape of every backend response.
type envelope struct {
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// call sends body to path and returns the decoded envelope.
// Reads go through the cache; writes never do.
func (c *Client) call(ctx context.Context, op, path string, body any, authed, cached bool) (*envelope, error) {
	payload := []byte("{}")
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, &Error{Op: op, Err: fmt.Errorf("encode request: %w", err)}
		}
		payload = b
	}

	req, err := httpcache.NewJSONRequest(ctx, c.baseURL+path, payload)
	if err != nil {
		return nil, &Error{Op: op, Err: err}
	}
	reqID := uuid.NewString()
	req.Header.Set("X-Request-ID", reqID)

	scope := ""
	if authed {
		if tok := c.tokens.Token(); tok != "" {
			req.Header.Set("Authorization", "Bearer "+tok)
			scope = tokenScope(tok)
		}
	}

	c.logger.DebugContext(ctx, "api request", "op", op, "path", path, "request_id", reqID)

	var data []byte
	if cached {
		data, err = c.fetcher.Cached(ctx, req, scope)
	} else {
		data, err = c.fetcher.Do(ctx, req)
	}
	if err != nil {
		return nil, &Error{Op: op, Err: err}
	}

	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, &Error{Op: op, Err: fmt.Errorf("decode response: %w", err)}
	}
	return &env, nil
}

// tokenScope separates cache entries per account without storing the token.
func tokenScope(tok string) string {
	sum := sha256.Sum256([]byte(tok))
	return hex.EncodeToString(sum[:8])
}

func decodeData(op string, env *envelope, v any) error {
	if isEmpty(env.Data) {
		return &Error{Op: op, Err: errors.New("response has no data")}
	}
	if err := json.Unmarshal(env.Data, v); err != nil {
		return &Error{Op: op, Err: fmt.Errorf("decode data: %w", err)}
	}
	return nil
}

func isEmpty(raw json.RawMessage) bool {
	s := string(bytes.TrimSpace(raw))
	return s == "" || s == "null" || s == "[]" || s == "{}"
}

// LoginResult is the outcome of a successful login.
type LoginResult struct {
	Token string
	User  creator.SessionUser
}

// Login authenticates and returns the session token and user.
func (c *Client) Login(ctx context.Context, email, password string, role creator.Role) (*LoginResult, error) {
	c.logger.InfoContext(ctx, "logging in", "email", email, "role", role)

	env, err := c.call(ctx, "login", pathLogin, map[string]string{
		"email":     email,
		"password":  password,
		"user_type": string(role),
	}, false, false)
	if err != nil {
		return nil, err
	}

	var data struct {
		Token string              `json:"token"`
		User  creator.SessionUser `json:"user"`
	}
	if err := decodeData("login", env, &data); err != nil {
		return nil, err
	}
	if data.Token == "" {
		return nil, &Error{Op: "login", Err: errors.New("response has no token")}
	}
	if data.User.Role == "" {
		data.User.Role = role
	}
	return &LoginResult{Token: data.Token, User: data.User}, nil
}

// Registration is the sign-up payload. Creator and brand accounts fill
// different fields.
type Registration struct {
	Email    string       `json:"email"`
	Password string       `json:"password"`
	Role     creator.Role `json:"user_type"`

	// Creator accounts.
	Name        string       `json:"name,omitempty"`
	Niche       []string     `json:"niche,omitempty"`
	Bio         string       `json:"bio,omitempty"`
	SocialLinks *SocialLinks `json:"social_links,omitempty"`

	// Brand accounts.
	CompanyName string `json:"company_name,omitempty"`
	Industry    string `json:"industry,omitempty"`
	Website     string `json:"website,omitempty"`
}

// SocialLinks are the profile links a creator registers with.
type SocialLinks struct {
	Instagram string `json:"instagram"`
	YouTube   string `json:"youtube"`
}

// ParseNiche splits a comma separated niche list, dropping empty items.
func ParseNiche(s string) []string {
	var out []string
	for part := range strings.SplitSeq(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// ErrInvalidRegistration is returned for a registration missing required fields.
var ErrInvalidRegistration = errors.New("invalid registration")

// Validate checks the fields required for the registration's role.
func (r *Registration) Validate() error {
	if r.Email == "" || r.Password == "" {
		return fmt.Errorf("%w: email and password are required", ErrInvalidRegistration)
	}
	switch r.Role {
	case creator.RoleCreator:
		if r.Name == "" {
			return fmt.Errorf("%w: name is required", ErrInvalidRegistration)
		}
	case creator.RoleBrand:
		if r.CompanyName == "" || r.Industry == "" {
			return fmt.Errorf("%w: company name and industry are required", ErrInvalidRegistration)
		}
	default:
		return fmt.Errorf("%w: unknown role %q", ErrInvalidRegistration, r.Role)
	}
	return nil
}

// Register creates an account. It returns the server's message.
func (c *Client) Register(ctx context.Context, r *Registration) (string, error) {
	if err := r.Validate(); err != nil {
		return "", err
	}
	c.logger.InfoContext(ctx, "registering account", "email", r.Email, "role", r.Role)

	env, err := c.call(ctx, "register", pathRegister, r, false, false)
	if err != nil {
		return "", err
	}
	return env.Message, nil
}

// Stats returns the global account counters.
func (c *Client) Stats(ctx context.Context) (creator.AggregateStats, error) {
	env, err := c.call(ctx, "stats", pathStats, nil, true, true)
	if err != nil {
		return creator.AggregateStats{}, err
	}
	var s creator.AggregateStats
	if err := decodeData("stats", env, &s); err != nil {
		return creator.AggregateStats{}, err
	}
	return s, nil
}

// TopCreators lists the highest-engagement creators on a platform.
func (c *Client) TopCreators(ctx context.Context, platform creator.Platform) ([]creator.DirectoryEntry, error) {
	c.logger.InfoContext(ctx, "fetching top creators", "platform", platform)
	env, err := c.call(ctx, "top creators", pathTopCreators, map[string]string{"platform": string(platform)}, true, true)
	if err != nil {
		return nil, err
	}
	return decodeList("top creators", env)
}

// SearchCreators runs a free-text search across all platforms.
func (c *Client) SearchCreators(ctx context.Context, query string) ([]creator.DirectoryEntry, error) {
	c.logger.InfoContext(ctx, "searching creators", "query", query)
	env, err := c.call(ctx, "search creators", pathSearch, map[string]string{"query": query}, true, true)
	if err != nil {
		return nil, err
	}
	return decodeList("search creators", env)
}

func decodeList(op string, env *envelope) ([]creator.DirectoryEntry, error) {
	if isEmpty(env.Data) {
		return []creator.DirectoryEntry{}, nil
	}
	var out []creator.DirectoryEntry
	if err := json.Unmarshal(env.Data, &out); err != nil {
		return nil, &Error{Op: op, Err: fmt.Errorf("decode data: %w", err)}
	}
	return out, nil
}

// Profile fetches one profile by its platform-scoped record id.
// An empty result or a 404 yields creator.ErrProfileNotFound.
func (c *Client) Profile(ctx context.Context, id string) (*creator.Profile, error) {
	c.logger.InfoContext(ctx, "fetching profile", "id", id)
	env, err := c.call(ctx, "profile", pathProfile, map[string]string{"id": id}, true, true)
	if isNotFound(err) {
		return nil, creator.ErrProfileNotFound
	}
	if err != nil {
		return nil, err
	}
	p, err := decodeProfile("profile", env)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, creator.ErrProfileNotFound
	}
	return p, nil
}

// ProfileByIdentity fetches the profile of a linked creator on a platform.
// An empty result or a 404 yields *creator.NotOnPlatformError.
func (c *Client) ProfileByIdentity(ctx context.Context, identity string, platform creator.Platform) (*creator.Profile, error) {
	c.logger.InfoContext(ctx, "fetching profile by identity", "identity", identity, "platform", platform)
	notFound := &creator.NotOnPlatformError{Identity: identity, Platform: platform}

	env, err := c.call(ctx, "profile by identity", pathProfileByIdentity, map[string]string{
		"creatorId": identity,
		"platform":  string(platform),
	}, true, true)
	if isNotFound(err) {
		return nil, notFound
	}
	if err != nil {
		return nil, err
	}
	p, err := decodeProfile("profile by identity", env)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, notFound
	}
	return p, nil
}

// decodeProfile accepts a one-element array or a bare object.
// It returns nil, nil when the data is empty.
func decodeProfile(op string, env *envelope) (*creator.Profile, error) {
	if isEmpty(env.Data) {
		return nil, nil //nolint:nilnil // empty data is a not-found, mapped by the caller
	}
	raw := bytes.TrimSpace(env.Data)
	if raw[0] == '[' {
		var list []creator.Profile
		if err := json.Unmarshal(raw, &list); err != nil {
			return nil, &Error{Op: op, Err: fmt.Errorf("decode data: %w", err)}
		}
		if len(list) == 0 {
			return nil, nil //nolint:nilnil // as above
		}
		return &list[0], nil
	}
	var p creator.Profile
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, &Error{Op: op, Err: fmt.Errorf("decode data: %w", err)}
	}
	return &p, nil
}

func isNotFound(err error) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.StatusCode() == http.StatusNotFound
}

// ExchangeCode trades an Instagram Graph authorization code for a backend
// connection. It returns the server's message.
func (c *Client) ExchangeCode(ctx context.Context, code string) (string, error) {
	c.logger.InfoContext(ctx, "exchanging authorization code")
	env, err := c.call(ctx, "exchange code", pathExchangeCode, map[string]string{"code": code}, true, false)
	if err != nil {
		return "", err
	}
	return env.Message, nil
}
