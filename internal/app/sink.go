package app

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/gensokyo-radio/nowplaying/internal/client"
	"github.com/gensokyo-radio/nowplaying/internal/protocol"
)

// Messages the Sink delivers to the program.
type (
	TrackMsg struct {
		Record protocol.NowPlayingRecord
	}
	FreshnessMsg struct {
		Fresh bool
	}
	ReconnectMsg struct {
		Attempt int
	}
	ProtocolErrorMsg struct {
		Message string
	}
	StateMsg struct {
		State client.State
	}
)

// Sink turns manager callbacks into Bubble Tea messages. It implements
// client.NowPlayingSink, client.StatusSink and client.StateObserver. send is
// usually (*tea.Program).Send, which is safe to call from the manager's
// worker goroutine.
type Sink struct {
	send func(tea.Msg)
}

func NewSink(send func(tea.Msg)) *Sink {
	return &Sink{send: send}
}

func (s *Sink) OnUpdate(rec protocol.NowPlayingRecord) { s.send(TrackMsg{Record: rec}) }
func (s *Sink) OnFreshnessChanged(fresh bool)           { s.send(FreshnessMsg{Fresh: fresh}) }
func (s *Sink) OnReconnectAttempt(attempt int)          { s.send(ReconnectMsg{Attempt: attempt}) }
func (s *Sink) OnProtocolError(message string)          { s.send(ProtocolErrorMsg{Message: message}) }
func (s *Sink) OnStateChanged(state client.State)       { s.send(StateMsg{State: state}) }

var (
	_ client.NowPlayingSink = (*Sink)(nil)
	_ client.StatusSink     = (*Sink)(nil)
	_ client.StateObserver  = (*Sink)(nil)
)
