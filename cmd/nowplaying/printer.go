package main

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/gensokyo-radio/nowplaying/internal/client"
	"github.com/gensokyo-radio/nowplaying/internal/protocol"
	"github.com/gensokyo-radio/nowplaying/internal/theme"
)

// printer writes one line per event for -plain mode.
type printer struct {
	mu  sync.Mutex
	out io.Writer
	now func() time.Time
}

func newPrinter(out io.Writer) *printer {
	return &printer{out: out, now: time.Now}
}

func (p *printer) line(s string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.out, "%s %s\n", theme.StyleDimmed.Render(p.now().Format(time.TimeOnly)), s)
}

func (p *printer) OnUpdate(rec protocol.NowPlayingRecord) {
	s := theme.StyleTitle.Render(orDash(rec.Title)) + " by " + theme.StyleArtist.Render(orDash(rec.Artist))
	if rec.Album != "" {
		s += " from " + theme.StyleAlbum.Render(rec.Album)
	}
	p.line(s)
}

// OnFreshnessChanged is not shown; every update line is already new.
func (p *printer) OnFreshnessChanged(bool) {}

func (p *printer) OnReconnectAttempt(attempt int) {
	p.line(theme.StyleWarning.Render(fmt.Sprintf("connection lost, reconnect attempt %d", attempt)))
}

func (p *printer) OnProtocolError(message string) {
	p.line(theme.StyleError.Render(message))
}

func (p *printer) OnStateChanged(s client.State) {
	name := s.String()
	p.line(lipgloss.NewStyle().Foreground(theme.StateColor(name)).Render(theme.StateGlyph(name) + " " + name))
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
