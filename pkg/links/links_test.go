package links

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/codeGROOVE-dev/creatorscope/pkg/creator"
)

func TestExtract(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{"empty", "", nil},
		{"no links", "just words here", nil},
		{"two links in order", "a https://b.com then http://c.org/x", []string{"https://b.com", "http://c.org/x"}},
		{"trailing punctuation kept", "see https://a.com/x, and more", []string{"https://a.com/x,"}},
		{"newline separated", "https://a.com\nhttps://b.com", []string{"https://a.com", "https://b.com"}},
		{"bare domain ignored", "www.example.com", nil},
		{"duplicates kept", "https://a.com https://a.com", []string{"https://a.com", "https://a.com"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, Extract(tt.text)); diff != "" {
				t.Errorf("Extract(%q) mismatch (-want +got):\n%s", tt.text, diff)
			}
		})
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		url   string
		label string
	}{
		{"https://instagram.com/me", "Instagram"},
		{"https://INSTAGRAM.COM/me", "Instagram"},
		{"https://twitter.com/me", "X (Twitter)"},
		{"https://x.com/me", "X (Twitter)"},
		{"https://facebook.com/me", "Facebook"},
		{"https://youtube.com/@me", "YouTube"},
		{"https://youtu.be/abc", "YouTube"},
		{"https://open.spotify.com/artist/1", "Music"},
		{"https://soundcloud.com/me", "Music"},
		{"https://myshop.store", "Merch / Store"},
		{"https://youthiapa.com", "Merch / Store"},
		{"https://example.com", "External Link"},
		{"https://youtube.com/merch/shop", "YouTube"},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			if got := Classify(tt.url).Label; got != tt.label {
				t.Errorf("Classify(%q).Label = %q, want %q", tt.url, got, tt.label)
			}
		})
	}
}

// Every pair of rules: a URL matching both must classify by the earlier rule.
func TestClassifyOrderPairwise(t *testing.T) {
	rs := rules
	for i := range rs {
		for j := i + 1; j < len(rs); j++ {
			for _, a := range rs[i].Contains {
				for _, b := range rs[j].Contains {
					for _, u := range []string{"https://" + a + "/" + b, "https://" + b + "/" + a} {
						if got := Classify(u); got != rs[i].Link {
							t.Errorf("Classify(%q) = %+v, want %+v (rule %d before rule %d)", u, got, rs[i].Link, i, j)
						}
					}
				}
			}
		}
	}
}

func TestBuildLinkSet(t *testing.T) {
	tests := []struct {
		name       string
		bio        string
		platform   creator.Platform
		platformID string
		want       []string
	}{
		{
			name:       "canonical youtube link first",
			bio:        "Check my shop: https://myshop.store and insta https://instagram.com/me",
			platform:   creator.YouTube,
			platformID: "abc123",
			want: []string{
				"https://www.youtube.com/channel/abc123",
				"https://myshop.store",
				"https://instagram.com/me",
			},
		},
		{
			name:       "existing link with id suppresses canonical",
			bio:        "https://youtube.com/channel/abc123 https://x.com/me",
			platform:   creator.YouTube,
			platformID: "abc123",
			want:       []string{"https://youtube.com/channel/abc123", "https://x.com/me"},
		},
		{
			name:       "id anywhere in a link suppresses canonical",
			bio:        "https://linktr.ee/abc123",
			platform:   creator.YouTube,
			platformID: "abc123",
			want:       []string{"https://linktr.ee/abc123"},
		},
		{
			name:       "empty bio youtube",
			bio:        "",
			platform:   creator.YouTube,
			platformID: "abc123",
			want:       []string{"https://www.youtube.com/channel/abc123"},
		},
		{
			name:       "empty id never synthesizes",
			bio:        "https://a.com",
			platform:   creator.YouTube,
			platformID: "",
			want:       []string{"https://a.com"},
		},
		{
			name:       "instagram has no canonical link",
			bio:        "https://a.com",
			platform:   creator.Instagram,
			platformID: "abc123",
			want:       []string{"https://a.com"},
		},
		{
			name:       "duplicates removed keeping first",
			bio:        "https://b.com https://a.com https://b.com https://a.com",
			platform:   creator.Twitter,
			platformID: "x",
			want:       []string{"https://b.com", "https://a.com"},
		},
		{
			name:       "nothing at all",
			bio:        "no links",
			platform:   creator.Twitter,
			platformID: "x",
			want:       nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := BuildLinkSet(tt.bio, tt.platform, tt.platformID)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("BuildLinkSet() mismatch (-want +got):\n%s", diff)
			}
			seen := make(map[string]bool)
			for _, u := range got {
				if seen[u] {
					t.Errorf("BuildLinkSet() contains duplicate %q", u)
				}
				seen[u] = true
			}
		})
	}
}

func TestConnections(t *testing.T) {
	got := Connections("https://myshop.store https://instagram.com/me https://instagram.com/p/xyz", creator.YouTube, "abc123")
	want := []Connection{
		{URL: "https://www.youtube.com/channel/abc123", Profile: creator.YouTube, Link: Link{Icon: "youtube", Label: "YouTube", Style: "red-500"}},
		{URL: "https://myshop.store", Link: Link{Icon: "shopping-bag", Label: "Merch / Store", Style: "purple-400"}},
		{URL: "https://instagram.com/me", Profile: creator.Instagram, Link: Link{Icon: "instagram", Label: "Instagram", Style: "pink-500"}},
		{URL: "https://instagram.com/p/xyz", Link: Link{Icon: "instagram", Label: "Instagram", Style: "pink-500"}},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Connections() mismatch (-want +got):\n%s", diff)
	}
}
