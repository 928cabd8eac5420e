// Package app is the Bubble Tea front end for the now-playing feed.
package app

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/gensokyo-radio/nowplaying/internal/client"
	"github.com/gensokyo-radio/nowplaying/internal/protocol"
	"github.com/gensokyo-radio/nowplaying/internal/theme"
)

// freshFor is how long a new track stays highlighted.
const freshFor = 5 * time.Second

// Controller is the part of client.Manager the UI drives.
type Controller interface {
	Start()
	Stop()
}

type freshExpiredMsg struct {
	seq int
}

// Model is the root Bubble Tea model.
type Model struct {
	ctrl Controller
	keys KeyMap

	width  int
	height int

	spinner spinner.Model

	// Connection state.
	state   client.State
	attempt int
	lastErr string
	opened  bool

	// Track state.
	record    *protocol.NowPlayingRecord
	fresh     bool
	freshSeq  int
	updatedAt time.Time
	showCover bool

	now func() time.Time
}

// New creates the root model. ctrl may be nil in tests.
func New(ctrl Controller) Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(theme.ColorConnecting)

	return Model{
		ctrl:    ctrl,
		keys:    DefaultKeyMap(),
		spinner: sp,
		now:     time.Now,
	}
}

// Init starts the feed connection.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.start(), m.spinner.Tick)
}

func (m Model) start() tea.Cmd {
	if m.ctrl == nil {
		return nil
	}
	ctrl := m.ctrl
	return func() tea.Msg {
		ctrl.Start()
		return nil
	}
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case StateMsg:
		m.state = msg.State
		if msg.State == client.StateOpen {
			m.opened = true
			m.attempt = 0
			m.lastErr = ""
		}
		return m, nil

	case ReconnectMsg:
		m.attempt = msg.Attempt
		return m, nil

	case ProtocolErrorMsg:
		m.lastErr = msg.Message
		return m, nil

	case TrackMsg:
		rec := msg.Record
		m.record = &rec
		m.updatedAt = m.now()
		return m, nil

	case FreshnessMsg:
		m.fresh = msg.Fresh
		if !msg.Fresh {
			return m, nil
		}
		m.freshSeq++
		seq := m.freshSeq
		return m, tea.Tick(freshFor, func(time.Time) tea.Msg {
			return freshExpiredMsg{seq: seq}
		})

	case freshExpiredMsg:
		// Only the latest update's timer clears the highlight.
		if msg.seq == m.freshSeq {
			m.fresh = false
		}
		return m, nil
	}

	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		if m.ctrl != nil {
			m.ctrl.Stop()
		}
		return m, tea.Quit

	case key.Matches(msg, m.keys.Reconnect):
		return m, m.start()

	case key.Matches(msg, m.keys.Cover):
		m.showCover = !m.showCover
		return m, nil
	}

	return m, nil
}

// View renders the full TUI.
func (m Model) View() string {
	if m.width == 0 || m.height == 0 {
		return "Initializing..."
	}

	sections := []string{
		m.renderStatus(),
		m.renderTrack(),
	}
	if notice := m.renderNotice(); notice != "" {
		sections = append(sections, notice)
	}
	sections = append(sections, theme.StyleDimmed.Render("  r:reconnect  c:cover url  q:quit"))

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m Model) renderStatus() string {
	width := m.width
	if width < 40 {
		width = 40
	}

	name := m.state.String()
	style := lipgloss.NewStyle().Foreground(theme.StateColor(name))
	var connStr string
	if m.state == client.StateConnecting {
		connStr = m.spinner.View() + style.Render(" Connecting...")
	} else {
		connStr = style.Render(theme.StateGlyph(name) + " " + stateLabel(m.state))
	}

	sep := lipgloss.NewStyle().Foreground(theme.ColorBorder).Render(" | ")
	content := connStr
	if m.attempt > 0 {
		content += sep + theme.StyleWarning.Render(fmt.Sprintf("reconnect attempt %d", m.attempt))
	}
	if m.lastErr != "" {
		content += sep + theme.StyleError.Render(truncate(m.lastErr, width/2))
	}

	return lipgloss.NewStyle().
		Width(width).
		Padding(0, 1).
		BorderStyle(lipgloss.DoubleBorder()).
		BorderForeground(theme.ColorBorder).
		Render(content)
}

func (m Model) renderTrack() string {
	if m.record == nil {
		return theme.StyleBorder.Padding(0, 1).Render(theme.StyleDimmed.Render("Waiting for the first track..."))
	}

	rec := m.record
	header := theme.StyleHeader.Render("NOW PLAYING")
	if m.fresh {
		header += " " + theme.StyleFresh.Render("★ NEW")
	}

	lines := []string{
		header,
		theme.StyleTitle.Render(orUnknown(rec.Title)),
		theme.StyleArtist.Render(orUnknown(rec.Artist)),
	}
	if rec.Album != "" {
		lines = append(lines, theme.StyleAlbum.Render(rec.Album))
	}
	if m.showCover {
		lines = append(lines, theme.StyleDimmed.Render("cover: "+orUnknown(rec.CoverArtURL)))
	}
	if !m.updatedAt.IsZero() {
		lines = append(lines, theme.StyleDimmed.Render("updated "+m.updatedAt.Format("15:04:05")))
	}

	return theme.StyleBorder.Padding(0, 1).Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
}

func (m Model) renderNotice() string {
	if m.state != client.StateDisconnected {
		return ""
	}
	switch {
	case m.attempt > 0:
		return theme.StyleError.Bold(true).Render("  DISCONNECTED") +
			theme.StyleDimmed.Render(fmt.Sprintf("  Reconnecting (attempt %d)...", m.attempt))
	case m.opened:
		return theme.StyleDimmed.Render("  Feed closed the connection. Press r to reconnect.")
	}
	return ""
}

func stateLabel(s client.State) string {
	switch s {
	case client.StateOpen:
		return "Connected"
	case client.StateClosing:
		return "Closing"
	default:
		return "Disconnected"
	}
}

func orUnknown(s string) string {
	if s == "" {
		return "Unknown"
	}
	return s
}

func truncate(s string, n int) string {
	r := []rune(s)
	if n < 4 || len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
