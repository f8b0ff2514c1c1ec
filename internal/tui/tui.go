package tui

import (
	"context"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"newsfacts/internal/core"
)

// Loader fetches the cached bundle for a period. A nil bundle means nothing is cached.
type Loader func(ctx context.Context, period core.Period) (*core.Bundle, error)

type pane int

const (
	paneFacts pane = iota
	paneTimeline
	paneFigures
)

var paneNames = []string{"Facts", "Timeline", "Key figures"}

type loadedMsg struct {
	period core.Period
	bundle *core.Bundle
	err    error
}

// model holds the browser state: one period's bundle and a cursor into the active pane.
type model struct {
	ctx         context.Context
	load        Loader
	period      core.Period
	bundle      *core.Bundle
	err         error
	loading     bool
	pane        pane
	selectedIdx int
	width       int
	height      int
	quitting    bool
}

// NewModel returns the initial browser state for period.
func NewModel(ctx context.Context, load Loader, period core.Period) tea.Model {
	return model{ctx: ctx, load: load, period: period, loading: true, width: 100}
}

func (m model) Init() tea.Cmd {
	return m.fetch(m.period)
}

func (m model) fetch(period core.Period) tea.Cmd {
	return func() tea.Msg {
		b, err := m.load(m.ctx, period)
		return loadedMsg{period: period, bundle: b, err: err}
	}
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case loadedMsg:
		m.loading = false
		m.period = msg.period
		m.bundle = msg.bundle
		m.err = msg.err
		m.selectedIdx = 0

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			m.quitting = true
			return m, tea.Quit
		case "up", "k":
			if m.selectedIdx > 0 {
				m.selectedIdx--
			}
		case "down", "j":
			if m.selectedIdx < m.itemCount()-1 {
				m.selectedIdx++
			}
		case "tab":
			m.pane = (m.pane + 1) % pane(len(paneNames))
			m.selectedIdx = 0
		case "left", "h":
			return m.shift(-1)
		case "right", "l":
			return m.shift(1)
		}
	}

	return m, nil
}

// shift moves to the adjacent period of the same length.
func (m model) shift(dir int) (tea.Model, tea.Cmd) {
	if m.loading {
		return m, nil
	}
	days := m.period.Days() * dir
	next := core.Period{From: m.period.From.AddDate(0, 0, days), To: m.period.To.AddDate(0, 0, days)}
	m.loading = true
	return m, m.fetch(next)
}

func (m model) itemCount() int {
	if m.bundle == nil {
		return 0
	}
	switch m.pane {
	case paneTimeline:
		return len(m.bundle.TimelineEvents)
	case paneFigures:
		return len(m.bundle.KeyFigures)
	default:
		return len(m.bundle.Facts)
	}
}

func (m model) View() string {
	if m.quitting {
		return "Quitting...\n"
	}

	docStyle := lipgloss.NewStyle().Margin(1, 2)
	half := m.width/2 - 5
	if half < 20 {
		half = 20
	}
	listStyle := lipgloss.NewStyle().Border(lipgloss.NormalBorder(), true).Padding(1).Width(half)
	detailStyle := lipgloss.NewStyle().Border(lipgloss.NormalBorder(), true).Padding(1).Width(half)

	header := titleStyle.Render(fmt.Sprintf("%s → %s", m.period.FromString(), m.period.ToString()))
	var tabs []string
	for i, name := range paneNames {
		if pane(i) == m.pane {
			tabs = append(tabs, activeTabStyle.Render(name))
		} else {
			tabs = append(tabs, tabStyle.Render(name))
		}
	}
	header += "  " + strings.Join(tabs, " ")

	var body string
	switch {
	case m.loading:
		body = mutedStyle.Render("Loading...")
	case m.err != nil:
		body = errorStyle.Render("Error: " + m.err.Error())
	case m.bundle == nil:
		body = mutedStyle.Render("No cached facts for this period yet. Run `newsfacts facts refresh` to compute them.")
	default:
		body = lipgloss.JoinHorizontal(lipgloss.Top,
			listStyle.Render(m.listView()),
			detailStyle.Render(m.detailView()),
		)
		body = BundleStatus(m.bundle) + "\n" + body
	}

	help := "\n\n[↑/k] Up | [↓/j] Down | [tab] Pane | [←/h] Previous | [→/l] Next | [q] Quit"
	return docStyle.Render(header + "\n\n" + body + help)
}

func (m model) listView() string {
	var b strings.Builder
	cursor := func(i int) string {
		if i == m.selectedIdx {
			return ">"
		}
		return " "
	}

	switch m.pane {
	case paneTimeline:
		if len(m.bundle.TimelineEvents) == 0 {
			return mutedStyle.Render("No timeline events.")
		}
		for i, e := range m.bundle.TimelineEvents {
			fmt.Fprintf(&b, "%s %s %s\n", cursor(i), e.Date, e.Event)
		}
	case paneFigures:
		if len(m.bundle.KeyFigures) == 0 {
			return mutedStyle.Render("No key figures.")
		}
		for i, k := range m.bundle.KeyFigures {
			fmt.Fprintf(&b, "%s %s (%d)\n", cursor(i), k.Name, k.Mentions)
		}
	default:
		if len(m.bundle.Facts) == 0 {
			return mutedStyle.Render("No facts.")
		}
		for i, f := range m.bundle.Facts {
			fmt.Fprintf(&b, "%s %s %s\n", cursor(i), ImportanceBadge(f.Importance), f.Fact)
		}
	}
	return b.String()
}

func (m model) detailView() string {
	if m.itemCount() == 0 || m.selectedIdx >= m.itemCount() {
		return mutedStyle.Render("Nothing selected.")
	}

	switch m.pane {
	case paneTimeline:
		e := m.bundle.TimelineEvents[m.selectedIdx]
		return fmt.Sprintf("%s\n\n%s\n\nFacts: %s", titleStyle.Render(e.Date), e.Event, strings.Join(e.FactIDs, ", "))
	case paneFigures:
		k := m.bundle.KeyFigures[m.selectedIdx]
		return fmt.Sprintf("%s\n\nRole: %s\nStance: %s\nMentions: %d", titleStyle.Render(k.Name), k.Role, k.Stance, k.Mentions)
	default:
		return FactDetail(m.bundle.Facts[m.selectedIdx])
	}
}

// Run starts the browser and blocks until the user quits.
func Run(ctx context.Context, load Loader, period core.Period) error {
	p := tea.NewProgram(NewModel(ctx, load, period), tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}
	return nil
}
