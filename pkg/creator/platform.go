// Platform registration and lookup.

package creator

import (
	"net/url"
	"strings"
	"sync"
)

// Platform names a social network a profile lives on.
type Platform string

// Known platforms.
const (
	YouTube   Platform = "youtube"
	Instagram Platform = "instagram"
	Twitter   Platform = "twitter"
	Other     Platform = "other"
)

// ParsePlatform maps a free-form name onto a Platform. Unknown names map to Other.
func ParsePlatform(s string) Platform {
	switch p := Platform(strings.ToLower(strings.TrimSpace(s))); p {
	case YouTube, Instagram, Twitter:
		return p
	case "x":
		return Twitter
	default:
		return Other
	}
}

// UnmarshalText normalizes platform names coming off the wire.
func (p *Platform) UnmarshalText(text []byte) error {
	*p = ParsePlatform(string(text))
	return nil
}

func (p Platform) String() string { return string(p) }

// Label returns the display name of the platform.
func (p Platform) Label() string {
	if info := Lookup(p); info != nil {
		return info.Label()
	}
	return "Other"
}

// PlatformInfo describes a registered platform.
type PlatformInfo interface {
	// Name returns the platform identifier (e.g., "youtube").
	Name() Platform

	// Label returns the human-readable name (e.g., "YouTube").
	Label() string

	// Match returns true if the URL belongs to this platform.
	Match(url string) bool

	// CanonicalURL returns the profile URL for a platform-native account id,
	// or "" when the platform has no canonical link.
	CanonicalURL(accountID string) string
}

var (
	registryMu sync.RWMutex
	registry   []PlatformInfo
	byName     = make(map[Platform]PlatformInfo)
)

func init() {
	Register(youtubeInfo{})
	Register(instagramInfo{})
	Register(twitterInfo{})
}

// Register adds a platform to the registry. Registration order is display order.
func Register(p PlatformInfo) {
	registryMu.Lock()
	defer registryMu.Unlock()

	name := p.Name()
	if _, exists := byName[name]; exists {
		panic("platform already registered: " + string(name))
	}
	registry = append(registry, p)
	byName[name] = p
}

// Platforms returns all registered platforms in registration order.
func Platforms() []PlatformInfo {
	registryMu.RLock()
	defer registryMu.RUnlock()

	out := make([]PlatformInfo, len(registry))
	copy(out, registry)
	return out
}

// Selectable returns the platforms offered by the platform selector.
func Selectable() []Platform {
	infos := Platforms()
	out := make([]Platform, 0, len(infos))
	for _, p := range infos {
		out = append(out, p.Name())
	}
	return out
}

// Lookup returns the registered platform with the given name, or nil.
func Lookup(name Platform) PlatformInfo {
	registryMu.RLock()
	defer registryMu.RUnlock()
	return byName[name]
}

// MatchURL returns the first platform that matches the URL, or nil.
// Platforms are checked in registration order.
func MatchURL(rawURL string) PlatformInfo {
	registryMu.RLock()
	defer registryMu.RUnlock()

	for _, p := range registry {
		if p.Match(rawURL) {
			return p
		}
	}
	return nil
}

// CanonicalURL returns the canonical profile link for an account, or "".
func CanonicalURL(p Platform, accountID string) string {
	if accountID == "" {
		return ""
	}
	if info := Lookup(p); info != nil {
		return info.CanonicalURL(accountID)
	}
	return ""
}

type youtubeInfo struct{}

func (youtubeInfo) Name() Platform { return YouTube }
func (youtubeInfo) Label() string  { return "YouTube" }

func (youtubeInfo) Match(rawURL string) bool {
	lower := strings.ToLower(rawURL)
	return strings.Contains(lower, "youtube.com/") &&
		(strings.Contains(lower, "/@") ||
			strings.Contains(lower, "/channel/") ||
			strings.Contains(lower, "/c/") ||
			strings.Contains(lower, "/user/"))
}

func (youtubeInfo) CanonicalURL(accountID string) string {
	return "https://www.youtube.com/channel/" + accountID
}

type instagramInfo struct{}

func (instagramInfo) Name() Platform { return Instagram }
func (instagramInfo) Label() string  { return "Instagram" }

func (instagramInfo) Match(rawURL string) bool {
	lower := strings.ToLower(rawURL)
	return (strings.Contains(lower, "instagram.com/") || strings.Contains(lower, "instagr.am/")) &&
		!strings.Contains(lower, "/p/")
}

// CanonicalURL is empty: instagram profiles are only linked from the bio.
func (instagramInfo) CanonicalURL(string) string { return "" }

type twitterInfo struct{}

func (twitterInfo) Name() Platform { return Twitter }
func (twitterInfo) Label() string  { return "Twitter" }

func (twitterInfo) Match(rawURL string) bool {
	u, err := url.Parse(strings.ToLower(rawURL))
	if err != nil {
		return false
	}
	host := strings.TrimPrefix(u.Host, "www.")
	return (host == "twitter.com" || host == "x.com") && len(strings.Trim(u.Path, "/")) > 0
}

func (twitterInfo) CanonicalURL(string) string { return "" }
