// Package protocol classifies and decodes the text frames of the radio
// now-playing feed. It is a leaf package: no I/O, no internal imports.
package protocol

import "errors"

// Kind identifies the category of an inbound frame.
type Kind int

const (
	KindMalformed Kind = iota
	KindWelcome
	KindPing
	KindNowPlaying
	KindServerError
)

func (k Kind) String() string {
	switch k {
	case KindWelcome:
		return "welcome"
	case KindPing:
		return "ping"
	case KindNowPlaying:
		return "now_playing"
	case KindServerError:
		return "server_error"
	default:
		return "malformed"
	}
}

// Reasons a frame is classified as KindMalformed.
var (
	ErrNotJSON    = errors.New("frame is not valid JSON")
	ErrNotObject  = errors.New("frame is not a JSON object")
	ErrBadWelcome = errors.New("welcome frame without an integer id")
)

// Frame is one classified inbound frame. It is produced fresh per frame and
// never stored.
type Frame struct {
	Kind Kind

	// ClientID is set for KindWelcome.
	ClientID int

	// Text is the raw frame. Payload for KindNowPlaying, message for
	// KindServerError, offending input for KindMalformed.
	Text string

	// Err is the reason for KindMalformed.
	Err error
}

// NowPlayingRecord is the decoded metadata handed to the now-playing sink.
// Absent or null fields are empty strings, never a missing marker.
type NowPlayingRecord struct {
	Title       string
	Artist      string
	Album       string
	CoverArtURL string
}

// Pong is the heartbeat reply sent for every ping.
type Pong struct {
	Message string `json:"message"`
	ID      int    `json:"id"`
}

// NewPong returns the pong reply for the given client id.
func NewPong(clientID int) Pong {
	return Pong{Message: "pong", ID: clientID}
}
