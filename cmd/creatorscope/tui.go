package main

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/codeGROOVE-dev/creatorscope/pkg/creator"
	"github.com/codeGROOVE-dev/creatorscope/pkg/directory"
	"github.com/codeGROOVE-dev/creatorscope/pkg/format"
	"github.com/codeGROOVE-dev/creatorscope/pkg/resolver"
	"github.com/codeGROOVE-dev/creatorscope/pkg/stats"
)

// backend is everything the dashboard reads.
type backend interface {
	directory.Source
	resolver.Source
	stats.Source
}

type screen int

const (
	listScreen screen = iota
	profileScreen
)

// Messages delivered when a component call returns. The components hold
// the results; the model only renders their state.
type (
	statsMsg   struct{}
	listMsg    struct{ err error }
	profileMsg struct{ err error }
)

type styles struct {
	title     lipgloss.Style
	tab       lipgloss.Style
	activeTab lipgloss.Style
	selected  lipgloss.Style
	muted     lipgloss.Style
	err       lipgloss.Style
	tier      map[format.Tier]lipgloss.Style
}

func newStyles() styles {
	return styles{
		title:     lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205")),
		tab:       lipgloss.NewStyle().Padding(0, 1).Foreground(lipgloss.Color("245")),
		activeTab: lipgloss.NewStyle().Padding(0, 1).Bold(true).Foreground(lipgloss.Color("0")).Background(lipgloss.Color("205")),
		selected:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212")),
		muted:     lipgloss.NewStyle().Foreground(lipgloss.Color("241")),
		err:       lipgloss.NewStyle().Foreground(lipgloss.Color("203")),
		tier: map[format.Tier]lipgloss.Style{
			format.TierHigh: lipgloss.NewStyle().Foreground(lipgloss.Color("42")),
			format.TierMid:  lipgloss.NewStyle().Foreground(lipgloss.Color("220")),
			format.TierLow:  lipgloss.NewStyle().Foreground(lipgloss.Color("203")),
		},
	}
}

type model struct {
	ctx    context.Context //nolint:containedctx // tea.Cmd closures need the program context
	dir    *directory.Directory
	res    *resolver.Resolver
	stats  *stats.Provider
	search textinput.Model
	spin   spinner.Model
	styles styles
	screen screen
	cursor int
}

func newModel(ctx context.Context, dir *directory.Directory, res *resolver.Resolver, sp *stats.Provider) model {
	ti := textinput.New()
	ti.Placeholder = "search creators"
	ti.Prompt = "/ "
	ti.CharLimit = 100

	return model{
		ctx:    ctx,
		dir:    dir,
		res:    res,
		stats:  sp,
		search: ti,
		spin:   spinner.New(spinner.WithSpinner(spinner.Dot)),
		styles: newStyles(),
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(m.spin.Tick, m.fetchStats(), m.selectPlatform(m.dir.State().Platform))
}

func (m model) fetchStats() tea.Cmd {
	return func() tea.Msg {
		m.stats.Fetch(m.ctx)
		return statsMsg{}
	}
}

func (m model) selectPlatform(p creator.Platform) tea.Cmd {
	return func() tea.Msg {
		_, err := m.dir.SelectPlatform(m.ctx, p)
		return listMsg{err: err}
	}
}

func (m model) runSearch(q string) tea.Cmd {
	return func() tea.Msg {
		_, err := m.dir.Search(m.ctx, q)
		return listMsg{err: err}
	}
}

func (m model) clearSearch() tea.Cmd {
	return func() tea.Msg {
		_, err := m.dir.ClearSearch(m.ctx)
		return listMsg{err: err}
	}
}

func (m model) openProfile(id string) tea.Cmd {
	return func() tea.Msg {
		_, err := m.res.LoadByRecordID(m.ctx, id)
		return profileMsg{err: err}
	}
}

func (m model) switchPlatform(p creator.Platform) tea.Cmd {
	return func() tea.Msg {
		_, err := m.res.Switch(m.ctx, p)
		return profileMsg{err: err}
	}
}

// stale reports results that lost to a newer request or arrived after close.
func stale(err error) bool {
	return errors.Is(err, creator.ErrSuperseded) || errors.Is(err, creator.ErrClosed)
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd
	case statsMsg, profileMsg:
		return m, nil
	case listMsg:
		if stale(msg.err) {
			return m, nil
		}
		n := len(m.dir.State().Entries)
		m.cursor = max(0, min(m.cursor, n-1))
		return m, nil
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		if m.screen == profileScreen {
			return m.updateProfile(msg)
		}
		return m.updateList(msg)
	}
	return m, nil
}

func (m model) updateList(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.search.Focused() {
		switch msg.String() {
		case "enter":
			m.search.Blur()
			m.cursor = 0
			if q := strings.TrimSpace(m.search.Value()); q != "" {
				return m, m.runSearch(q)
			}
			return m, m.clearSearch()
		case "esc":
			m.search.Blur()
			return m, nil
		}
		var cmd tea.Cmd
		m.search, cmd = m.search.Update(msg)
		return m, cmd
	}

	st := m.dir.State()
	switch msg.String() {
	case "q":
		return m, tea.Quit
	case "/":
		cmd := m.search.Focus()
		return m, cmd
	case "esc":
		if st.Searching() {
			m.search.SetValue("")
			m.cursor = 0
			return m, m.clearSearch()
		}
	case "tab", "right", "l":
		return m.cyclePlatform(st.Platform, 1)
	case "shift+tab", "left", "h":
		return m.cyclePlatform(st.Platform, -1)
	case "up", "k":
		m.cursor = max(0, m.cursor-1)
	case "down", "j":
		m.cursor = min(max(0, len(st.Entries)-1), m.cursor+1)
	case "r":
		return m, tea.Batch(m.fetchStats(), m.selectPlatformOrSearch(st))
	case "enter":
		if m.cursor < len(st.Entries) {
			m.screen = profileScreen
			return m, m.openProfile(st.Entries[m.cursor].ID)
		}
	}
	return m, nil
}

func (m model) selectPlatformOrSearch(st directory.State) tea.Cmd {
	if st.Searching() {
		return m.runSearch(st.Query)
	}
	return m.selectPlatform(st.Platform)
}

// cyclePlatform moves the directory to the next selectable platform.
// Changing platform drops the search query.
func (m model) cyclePlatform(current creator.Platform, step int) (tea.Model, tea.Cmd) {
	next := nextPlatform(current, step)
	m.search.SetValue("")
	m.cursor = 0
	return m, m.selectPlatform(next)
}

func nextPlatform(current creator.Platform, step int) creator.Platform {
	ps := creator.Selectable()
	if len(ps) == 0 {
		return current
	}
	i := slices.Index(ps, current)
	if i < 0 {
		return ps[0]
	}
	return ps[((i+step)%len(ps)+len(ps))%len(ps)]
}

func (m model) updateProfile(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	st := m.res.State()
	switch key := msg.String(); key {
	case "q":
		return m, tea.Quit
	case "esc", "backspace":
		m.res.Reset()
		m.screen = listScreen
	case "tab", "right", "l":
		if m.res.CanSwitch() {
			return m, m.switchPlatform(nextPlatform(st.Selected, 1))
		}
	case "shift+tab", "left", "h":
		if m.res.CanSwitch() {
			return m, m.switchPlatform(nextPlatform(st.Selected, -1))
		}
	case "1", "2", "3", "4", "5", "6", "7", "8", "9":
		ps := creator.Selectable()
		if i := int(key[0] - '1'); i < len(ps) && m.res.CanSwitch() {
			return m, m.switchPlatform(ps[i])
		}
	}
	return m, nil
}

func (m model) View() string {
	var b strings.Builder
	b.WriteString(m.styles.title.Render("creatorscope"))
	b.WriteString("  ")
	b.WriteString(m.statsLine())
	b.WriteString("\n\n")

	if m.screen == profileScreen {
		m.viewProfile(&b)
	} else {
		m.viewList(&b)
	}
	return b.String()
}

func (m model) statsLine() string {
	s, ok := m.stats.Snapshot()
	count := func(n int64) string {
		if !ok {
			return format.Invalid
		}
		return format.CompactNumber(float64(n))
	}
	return m.styles.muted.Render(fmt.Sprintf("Creators %s · Brands %s · Users %s", count(s.Creators), count(s.Brands), count(s.Users)))
}

func (m model) tabs(selected creator.Platform) string {
	var parts []string
	for i, p := range creator.Selectable() {
		label := fmt.Sprintf("%d %s", i+1, p.Label())
		if p == selected {
			parts = append(parts, m.styles.activeTab.Render(label))
		} else {
			parts = append(parts, m.styles.tab.Render(label))
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, parts...)
}

func (m model) viewList(b *strings.Builder) {
	st := m.dir.State()
	b.WriteString(m.tabs(st.Platform))
	b.WriteString("\n")
	switch {
	case m.search.Focused():
		b.WriteString(m.search.View() + "\n")
	case st.Searching():
		b.WriteString(m.styles.muted.Render("search: "+st.Query+" (esc to clear)") + "\n")
	}
	b.WriteString("\n")

	switch {
	case st.Loading:
		b.WriteString(m.spin.View() + " Loading creators...\n")
	case st.Err != nil:
		b.WriteString(m.styles.err.Render("Could not load creators: "+st.Err.Error()) + "\n")
	case len(st.Entries) == 0:
		b.WriteString(m.styles.muted.Render("No creators found.") + "\n")
	default:
		for i, e := range st.Entries {
			tier := format.ScoreTier(e.Metrics.OverallScore)
			line := fmt.Sprintf("%-32s %-10s %8s  %8s  %s",
				truncate(displayName(&e), 32),
				e.Platform.Label(),
				format.CompactNumber(float64(e.Followers)),
				format.Percentage(e.Metrics.EngagementRatePerPost, 2),
				m.styles.tier[tier].Render(format.Fixed(e.Metrics.OverallScore, 1)),
			)
			if i == m.cursor {
				b.WriteString(m.styles.selected.Render("> " + line))
			} else {
				b.WriteString("  " + line)
			}
			b.WriteString("\n")
		}
	}

	b.WriteString("\n")
	b.WriteString(m.styles.muted.Render("tab platform · / search · esc clear · enter open · r refresh · q quit"))
}

func (m model) viewProfile(b *strings.Builder) {
	st := m.res.State()
	switch st.Status {
	case resolver.Idle, resolver.Loading:
		b.WriteString(m.spin.View() + " Loading profile...\n")
	case resolver.NotFound:
		b.WriteString(m.styles.err.Render("Profile not found.") + "\n")
	case resolver.Failed:
		b.WriteString(m.styles.err.Render("Could not load profile: "+errString(st.Err)) + "\n")
	case resolver.Loaded:
		if st.Profile.Linked() {
			b.WriteString(m.tabs(st.Selected))
			if st.Switching {
				b.WriteString(" " + m.spin.View())
			}
			b.WriteString("\n")
		}
		if st.PlatformErr != nil {
			b.WriteString(m.styles.err.Render(st.PlatformErr.Error()) + "\n")
		}
		b.WriteString("\n")
		printProfileBody(b, st)
	}

	b.WriteString("\n")
	hint := "esc back · q quit"
	if m.res.CanSwitch() {
		hint = "tab/1-3 platform · " + hint
	}
	b.WriteString(m.styles.muted.Render(hint))
}

func errString(err error) string {
	if err == nil {
		return "unknown error"
	}
	return err.Error()
}
