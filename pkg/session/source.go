package session

import (
	"context"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/browserutils/kooky"
	_ "github.com/browserutils/kooky/browser/all" // Import all browser cookie stores
	"github.com/browserutils/kooky/browser/firefox"
)

// TokenSource supplies an existing bearer token for the backend at host.
type TokenSource interface {
	// Token returns the token, or "" if this source has none.
	Token(ctx context.Context, host string) (string, error)
}

// ChainSources returns the token from the first source that provides one.
func ChainSources(ctx context.Context, host string, sources ...TokenSource) (string, error) {
	for _, src := range sources {
		tok, err := src.Token(ctx, host)
		if err != nil {
			return "", err
		}
		if tok != "" {
			return tok, nil
		}
	}
	return "", nil
}

// EnvVar holds a bearer token supplied through the environment.
const EnvVar = "CREATORSCOPE_TOKEN"

// EnvSource reads the token from the environment.
type EnvSource struct{}

// Token implements TokenSource.
func (EnvSource) Token(context.Context, string) (string, error) {
	return strings.TrimSpace(os.Getenv(EnvVar)), nil
}

// StaticSource returns a fixed token for any host.
type StaticSource string

// Token implements TokenSource.
func (s StaticSource) Token(context.Context, string) (string, error) { return string(s), nil }

// BrowserSource reads the token cookie that the web dashboard leaves in
// local browser cookie stores.
type BrowserSource struct {
	logger *slog.Logger
}

// NewBrowserSource creates a new browser cookie source.
func NewBrowserSource(logger *slog.Logger) *BrowserSource {
	if logger == nil {
		logger = slog.Default()
	}
	return &BrowserSource{logger: logger}
}

// Token implements TokenSource. host may be a bare host or a URL.
func (s *BrowserSource) Token(ctx context.Context, host string) (string, error) {
	domain := cookieDomain(host)
	if domain == "" {
		return "", nil
	}

	s.logger.DebugContext(ctx, "reading browser cookies", "domain", domain)

	// Firefox-family profiles kooky does not find on its own.
	if tok := s.tryFirefoxProfiles(ctx, domain); tok != "" {
		return tok, nil
	}

	kookies, err := kooky.ReadCookies(ctx, kooky.Valid, kooky.DomainHasSuffix(domain), kooky.Name(KeyToken))
	if err != nil {
		s.logger.DebugContext(ctx, "failed to read browser cookies", "domain", domain, "error", err)
		return "", nil
	}
	return s.pick(ctx, kookies, "auto"), nil
}

func (s *BrowserSource) tryFirefoxProfiles(ctx context.Context, domain string) string {
	home := os.Getenv("HOME")
	if home == "" {
		return ""
	}

	patterns := []string{
		filepath.Join(home, "Library", "Application Support", "zen", "Profiles", "*", "cookies.sqlite"),
		filepath.Join(home, "Library", "Application Support", "Firefox", "Profiles", "*", "cookies.sqlite"),
		filepath.Join(home, ".mozilla", "firefox", "*", "cookies.sqlite"),
	}
	for _, pattern := range patterns {
		matches, err := filepath.Glob(pattern)
		if err != nil {
			continue
		}
		for _, f := range matches {
			kookies, err := firefox.ReadCookies(ctx, f, kooky.Valid, kooky.DomainHasSuffix(domain), kooky.Name(KeyToken))
			if err != nil {
				s.logger.DebugContext(ctx, "failed to read Firefox cookies", "profile", filepath.Base(filepath.Dir(f)), "error", err)
				continue
			}
			if tok := s.pick(ctx, kookies, filepath.Base(filepath.Dir(f))); tok != "" {
				return tok
			}
		}
	}
	return ""
}

func (s *BrowserSource) pick(ctx context.Context, kookies []*kooky.Cookie, from string) string {
	for _, c := range kookies {
		if c.Name == KeyToken && c.Value != "" {
			s.logger.InfoContext(ctx, "browser token found", "source", from, "domain", c.Domain)
			return c.Value
		}
	}
	return ""
}

// cookieDomain extracts the hostname to match cookies against.
func cookieDomain(host string) string {
	if strings.Contains(host, "://") {
		u, err := url.Parse(host)
		if err != nil {
			return ""
		}
		return u.Hostname()
	}
	if h, _, ok := strings.Cut(host, ":"); ok {
		return h
	}
	return host
}
