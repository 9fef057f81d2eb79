// Package session holds the authenticated actor and its persisted token.
//
// The token and user are written only by Login and Logout. The external
// connection flag is written only by SetConnected.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/codeGROOVE-dev/creatorscope/pkg/creator"
)

// Persisted keys.
const (
	KeyToken = "nexus_token"
	KeyUser  = "nexus_user"
)

// ErrNotLoggedIn is returned by operations that need a session user.
var ErrNotLoggedIn = errors.New("not logged in")

// Session is the current login state backed by a Store.
type Session struct {
	store  Store
	logger *slog.Logger
	user   *creator.SessionUser
	token  string
	mu     sync.RWMutex
}

// Option configures a Session.
type Option func(*Session)

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Session) { s.logger = logger }
}

// Open loads the persisted session from store. A corrupt user record is
// discarded along with its token.
func Open(ctx context.Context, store Store, opts ...Option) (*Session, error) {
	s := &Session{store: store, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}

	tok, ok, err := store.Get(ctx, KeyToken)
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	if !ok || tok == "" {
		return s, nil
	}

	raw, ok, err := store.Get(ctx, KeyUser)
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	var u creator.SessionUser
	if ok {
		if err := json.Unmarshal([]byte(raw), &u); err != nil {
			s.logger.WarnContext(ctx, "discarding unreadable session user", "error", err)
			return s, s.clear(ctx)
		}
	}

	s.token = tok
	if ok {
		s.user = &u
	}
	s.logger.DebugContext(ctx, "session restored", "user", u.Email)
	return s, nil
}

// Token returns the bearer token, or "" when logged out.
func (s *Session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// User returns the session user and whether one is logged in.
func (s *Session) User() (creator.SessionUser, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return creator.SessionUser{}, false
	}
	return *s.user, true
}

// Connected reports the user's external connection flag.
func (s *Session) Connected() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user != nil && s.user.Connected
}

// Login replaces the session with token and user and persists both.
func (s *Session) Login(ctx context.Context, token string, user creator.SessionUser) error {
	if token == "" {
		return errors.New("empty token")
	}
	raw, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("encode user: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.store.Set(ctx, KeyToken, token); err != nil {
		return err
	}
	if err := s.store.Set(ctx, KeyUser, string(raw)); err != nil {
		return err
	}
	s.token = token
	s.user = &user
	s.logger.InfoContext(ctx, "logged in", "user", user.Email, "role", user.Role)
	return nil
}

// Logout clears the in-memory and persisted session.
func (s *Session) Logout(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.clear(ctx); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "logged out")
	return nil
}

func (s *Session) clear(ctx context.Context) error {
	s.token = ""
	s.user = nil
	if err := s.store.Delete(ctx, KeyToken); err != nil {
		return err
	}
	return s.store.Delete(ctx, KeyUser)
}

// SetConnected updates and persists the external connection flag.
func (s *Session) SetConnected(ctx context.Context, connected bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.user == nil {
		return ErrNotLoggedIn
	}
	u := *s.user
	u.Connected = connected
	raw, err := json.Marshal(u)
	if err != nil {
		return fmt.Errorf("encode user: %w", err)
	}
	if err := s.store.Set(ctx, KeyUser, string(raw)); err != nil {
		return err
	}
	s.user = &u
	s.logger.InfoContext(ctx, "connection flag updated", "connected", connected)
	return nil
}
