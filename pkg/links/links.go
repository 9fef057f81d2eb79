// Package links extracts and classifies the external links shown on a profile.
package links

import (
	"regexp"
	"strings"

	"github.com/codeGROOVE-dev/creatorscope/pkg/creator"
)

// urlPattern is deliberately loose: protocol plus a run of non-whitespace.
// Trailing punctuation ends up in the match.
var urlPattern = regexp.MustCompile(`https?://\S+`)

// Extract returns every http(s) URL token in text, in order of appearance.
func Extract(text string) []string {
	return urlPattern.FindAllString(text, -1)
}

// Link describes how a URL is presented.
type Link struct {
	Icon  string `json:"icon"`
	Label string `json:"label"`
	Style string `json:"style"`
}

// Rule is one classification step: a URL containing any of Contains gets Link.
type Rule struct {
	Contains []string
	Link     Link
}

// rules are checked in order; the first match wins. A YouTube merch link
// therefore classifies as YouTube, not as a store.
var rules = []Rule{
	{Contains: []string{"instagram.com"}, Link: Link{Icon: "instagram", Label: "Instagram", Style: "pink-500"}},
	{Contains: []string{"twitter.com", "x.com"}, Link: Link{Icon: "twitter", Label: "X (Twitter)", Style: "blue-400"}},
	{Contains: []string{"facebook.com"}, Link: Link{Icon: "facebook", Label: "Facebook", Style: "blue-600"}},
	{Contains: []string{"youtube.com", "youtu.be"}, Link: Link{Icon: "youtube", Label: "YouTube", Style: "red-500"}},
	{Contains: []string{"spotify", "music", "sound"}, Link: Link{Icon: "music", Label: "Music", Style: "emerald-400"}},
	{Contains: []string{"shop", "store", "merch", "youthiapa"}, Link: Link{Icon: "shopping-bag", Label: "Merch / Store", Style: "purple-400"}},
}

// External is the classification of a URL no rule matches.
var External = Link{Icon: "link", Label: "External Link", Style: "slate-400"}

// Classify returns the presentation of a URL using case-insensitive substring rules.
func Classify(rawURL string) Link {
	lower := strings.ToLower(rawURL)
	for _, r := range rules {
		for _, s := range r.Contains {
			if strings.Contains(lower, s) {
				return r.Link
			}
		}
	}
	return External
}

// BuildLinkSet merges the links found in bio with the platform's canonical
// profile link. The canonical link is prepended unless a bio link already
// contains platformID. The result has no duplicates and keeps first-seen order.
func BuildLinkSet(bio string, platform creator.Platform, platformID string) []string {
	all := Extract(bio)

	if canonical := creator.CanonicalURL(platform, platformID); canonical != "" {
		mentioned := false
		for _, l := range all {
			if strings.Contains(l, platformID) {
				mentioned = true
				break
			}
		}
		if !mentioned {
			all = append([]string{canonical}, all...)
		}
	}

	var urls []string
	seen := make(map[string]bool)
	for _, u := range all {
		if !seen[u] {
			seen[u] = true
			urls = append(urls, u)
		}
	}
	return urls
}

// Connection is a link of the set paired with its classification.
// Profile is set when the URL is an account page on a registered platform
// rather than a post or an arbitrary page on that site.
type Connection struct {
	URL     string           `json:"url"`
	Profile creator.Platform `json:"profile,omitempty"`
	Link
}

// Connections classifies every link of BuildLinkSet.
func Connections(bio string, platform creator.Platform, platformID string) []Connection {
	set := BuildLinkSet(bio, platform, platformID)
	out := make([]Connection, 0, len(set))
	for _, u := range set {
		c := Connection{URL: u, Link: Classify(u)}
		if info := creator.MatchURL(u); info != nil {
			c.Profile = info.Name()
		}
		out = append(out, c)
	}
	return out
}
