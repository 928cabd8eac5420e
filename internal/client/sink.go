// Package client maintains the WebSocket connection to the now-playing feed:
// it dials, performs the session handshake, dispatches every inbound frame
// and reconnects with a randomized escalating backoff.
//
// Collaborators are called on the client's worker goroutine and must return
// promptly; a slow sink delays the processing of the next frame.
package client

import "github.com/gensokyo-radio/nowplaying/internal/protocol"

// NowPlayingSink receives decoded metadata.
type NowPlayingSink interface {
	OnUpdate(rec protocol.NowPlayingRecord)
	// OnFreshnessChanged(true) follows every OnUpdate so consumers can tell
	// fresh metadata from their steady state.
	OnFreshnessChanged(fresh bool)
}

// StatusSink receives user-visible reconnect notices and protocol errors.
type StatusSink interface {
	OnReconnectAttempt(attempt int)
	OnProtocolError(message string)
}

// StateObserver is an optional extension of StatusSink. When the status sink
// implements it, every connection state change is reported.
type StateObserver interface {
	OnStateChanged(state State)
}

// SessionPersistence stores the client id from the welcome frame. The client
// only writes to it.
type SessionPersistence interface {
	SaveClientID(id int) error
}

type nopSink struct{}

func (nopSink) OnUpdate(protocol.NowPlayingRecord) {}
func (nopSink) OnFreshnessChanged(bool)            {}
func (nopSink) OnReconnectAttempt(int)             {}
func (nopSink) OnProtocolError(string)             {}
