package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"github.com/codeGROOVE-dev/creatorscope/pkg/creator"
	"github.com/codeGROOVE-dev/creatorscope/pkg/format"
	"github.com/codeGROOVE-dev/creatorscope/pkg/links"
	"github.com/codeGROOVE-dev/creatorscope/pkg/resolver"
)

func outputJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// statsView is the JSON form of the dashboard counters. Nil fields have
// not been fetched.
type statsView struct {
	Creators *int64 `json:"total_creators"`
	Brands   *int64 `json:"total_brands"`
	Users    *int64 `json:"total_users"`
}

func newStatsView(s creator.AggregateStats, ok bool) statsView {
	if !ok {
		return statsView{}
	}
	return statsView{Creators: &s.Creators, Brands: &s.Brands, Users: &s.Users}
}

func printStats(w io.Writer, s creator.AggregateStats, ok bool) {
	count := func(n int64) string {
		if !ok {
			return format.Invalid
		}
		return format.CompactNumber(float64(n))
	}
	fmt.Fprintf(w, "Creators: %s   Brands: %s   Users: %s\n", count(s.Creators), count(s.Brands), count(s.Users))
}

func printEntries(w io.Writer, entries []creator.DirectoryEntry) {
	if len(entries) == 0 {
		fmt.Fprintln(w, "No creators found.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tNAME\tPLATFORM\tFOLLOWERS\tENGAGEMENT\tSCORE\tID")
	for i, e := range entries {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s (%s)\t%s\n",
			i+1,
			displayName(&e),
			e.Platform.Label(),
			format.CompactNumber(float64(e.Followers)),
			format.Percentage(e.Metrics.EngagementRatePerPost, 2),
			format.Fixed(e.Metrics.OverallScore, 1),
			format.ScoreTier(e.Metrics.OverallScore),
			e.ID,
		)
	}
	tw.Flush() //nolint:errcheck,gosec // writes to an in-memory or terminal writer
}

func displayName(p *creator.Profile) string {
	switch {
	case p.Name != "" && p.Username != "":
		return p.Name + " (@" + p.Username + ")"
	case p.Name != "":
		return p.Name
	case p.Username != "":
		return "@" + p.Username
	default:
		return p.ID
	}
}

// profileView is the JSON form of a loaded profile.
type profileView struct {
	Profile     *creator.Profile   `json:"profile"`
	Connections []links.Connection `json:"connections"`
	Sentiment   sentimentView      `json:"sentiment"`
	Platforms   []creator.Platform `json:"platforms,omitempty"`
	Selected    creator.Platform   `json:"selected_platform"`
	PlatformErr string             `json:"platform_error,omitempty"`
	Posts       []postView         `json:"posts,omitempty"`
}

type sentimentView struct {
	Positive      int  `json:"positive"`
	Negative      int  `json:"negative"`
	Percent       int  `json:"percent"`
	UsingFallback bool `json:"using_fallback"`
}

type postView struct {
	ID        string `json:"post_id"`
	Title     string `json:"title"`
	Published string `json:"published"`
	WatchURL  string `json:"watch_url,omitempty"`
	Thumbnail string `json:"thumbnail_url,omitempty"`
}

func newProfileView(st resolver.State) profileView {
	v := profileView{
		Profile:     st.Profile,
		Connections: st.View.Connections,
		Selected:    st.Selected,
		Sentiment: sentimentView{
			Positive:      st.View.Sentiment.Positive,
			Negative:      st.View.Sentiment.Negative,
			Percent:       st.View.Sentiment.Percent(),
			UsingFallback: st.View.Sentiment.UsingFallback,
		},
	}
	if st.PlatformErr != nil {
		v.PlatformErr = st.PlatformErr.Error()
	}
	if st.Profile == nil {
		return v
	}
	if st.Profile.Linked() {
		v.Platforms = creator.Selectable()
	}
	for _, p := range st.Profile.Posts {
		v.Posts = append(v.Posts, postView{
			ID:        p.ID,
			Title:     p.Title,
			Published: format.Date(p.PublishedAt),
			WatchURL:  p.WatchURL(st.Profile.Platform),
			Thumbnail: p.ThumbnailURL(st.Profile.Platform),
		})
	}
	return v
}

func printProfile(w io.Writer, st resolver.State) {
	if st.Profile == nil {
		fmt.Fprintln(w, "No profile loaded.")
		return
	}
	if st.Profile.Linked() {
		fmt.Fprintf(w, "Platforms: %s\n", platformTabs(st.Selected))
	}
	if st.PlatformErr != nil {
		fmt.Fprintf(w, "! %v\n", st.PlatformErr)
	}
	if st.Profile.Linked() || st.PlatformErr != nil {
		fmt.Fprintln(w)
	}
	printProfileBody(w, st)
}

// printProfileBody renders the profile without the platform selector.
func printProfileBody(w io.Writer, st resolver.State) {
	p := st.Profile
	if p == nil {
		return
	}
	m := p.Metrics

	fmt.Fprintf(w, "%s\n", displayName(p))
	fmt.Fprintf(w, "%s · %s followers · avatar %s\n", p.Platform.Label(), format.CompactNumber(float64(p.Followers)), p.Avatar())
	if p.Bio != "" {
		fmt.Fprintf(w, "\n%s\n", p.Bio)
	}

	fmt.Fprintln(w)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Engagement / post\t%s\n", format.Percentage(m.EngagementRatePerPost, 2))
	fmt.Fprintf(tw, "Like / comment ratio\t%s\n", format.Fixed(m.LikeCommentRatio, 2))
	fmt.Fprintf(tw, "Posts / week\t%s\n", format.Fixed(m.PostFrequencyPerWeek, 1))
	fmt.Fprintf(tw, "Overall score\t%s (%s)\n", format.Fixed(m.OverallScore, 1), format.ScoreTier(m.OverallScore))
	fmt.Fprintf(tw, "Sentiment\t%s\n", sentimentLine(st))
	tw.Flush() //nolint:errcheck,gosec // see printEntries

	if len(st.View.Connections) > 0 {
		fmt.Fprintln(w, "\nConnections:")
		for _, c := range st.View.Connections {
			if c.Profile != "" {
				fmt.Fprintf(w, "  %-14s %s (%s profile)\n", c.Label, c.URL, c.Profile.Label())
				continue
			}
			fmt.Fprintf(w, "  %-14s %s\n", c.Label, c.URL)
		}
	}

	if len(p.Posts) > 0 {
		fmt.Fprintln(w, "\nRecent posts:")
		tw = tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "DATE\tTITLE\tVIEWS\tLIKES\tCOMMENTS\tLINK")
		for _, post := range p.Posts {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
				format.Date(post.PublishedAt),
				truncate(post.Title, 48),
				format.CompactNumber(float64(post.Views)),
				format.CompactNumber(float64(post.Likes)),
				format.CompactNumber(float64(post.CommentsTotal)),
				post.WatchURL(p.Platform),
			)
		}
		tw.Flush() //nolint:errcheck,gosec // see printEntries
	}
}

func sentimentLine(st resolver.State) string {
	s := st.View.Sentiment
	line := strconv.Itoa(s.Percent()) + "% positive"
	if s.UsingFallback {
		return line + " (estimated from sentiment score)"
	}
	return fmt.Sprintf("%s (%d positive / %d negative comments)", line, s.Positive, s.Negative)
}

func platformTabs(selected creator.Platform) string {
	var out string
	for i, p := range creator.Selectable() {
		if i > 0 {
			out += "  "
		}
		if p == selected {
			out += "[" + p.Label() + "]"
		} else {
			out += p.Label()
		}
	}
	return out
}

func printUser(w io.Writer, u creator.SessionUser) {
	email := u.Email
	if email == "" {
		email = "(imported token)"
	}
	fmt.Fprintf(w, "%s\n", email)
	if u.ID != "" {
		fmt.Fprintf(w, "ID:        %s\n", u.ID)
	}
	fmt.Fprintf(w, "Role:      %s\n", u.Role)
	fmt.Fprintf(w, "Instagram: %s\n", connectedLabel(u.Connected))
}

func connectedLabel(ok bool) string {
	if ok {
		return "connected"
	}
	return "not connected"
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
