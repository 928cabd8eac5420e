package client

import (
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/gensokyo-radio/nowplaying/internal/protocol"
	"github.com/gensokyo-radio/nowplaying/internal/session"
)

// Notices sent to the status sink.
const (
	MsgInvalidJSON       = "invalid JSON data received"
	MsgPingBeforeWelcome = "ping received before welcome, pong skipped"
)

// Sender writes one text frame to the socket.
type Sender interface {
	SendText(text string) error
}

// Handler applies classified frames to the session and the sinks. It is not
// safe for concurrent use; the manager feeds it from a single goroutine.
type Handler struct {
	session    *session.Session
	send       Sender
	nowPlaying NowPlayingSink
	status     StatusSink
	persist    SessionPersistence
	metrics    *Metrics
	log        zerolog.Logger
}

// NewHandler wires a handler to a session and an outbound sender. Nil sinks
// are replaced with no-ops.
func NewHandler(sess *session.Session, send Sender, np NowPlayingSink, status StatusSink, persist SessionPersistence, metrics *Metrics, log zerolog.Logger) *Handler {
	if np == nil {
		np = nopSink{}
	}
	if status == nil {
		status = nopSink{}
	}
	return &Handler{
		session:    sess,
		send:       send,
		nowPlaying: np,
		status:     status,
		persist:    persist,
		metrics:    metrics,
		log:        log,
	}
}

// HandleText classifies and handles one raw frame. Empty frames are logged
// and dropped.
func (h *Handler) HandleText(text string) error {
	frame, ok := protocol.Classify(text)
	if !ok {
		h.log.Debug().Msg("empty frame discarded")
		return nil
	}
	return h.Handle(frame)
}

// Handle applies one frame. The only error returned is a failed pong write,
// which is a transport fault; protocol anomalies go to the status sink.
func (h *Handler) Handle(f protocol.Frame) error {
	h.metrics.frame(f.Kind.String())

	switch f.Kind {
	case protocol.KindWelcome:
		h.welcome(f.ClientID)
		return nil
	case protocol.KindPing:
		return h.ping()
	case protocol.KindNowPlaying:
		h.nowPlayingUpdate(f.Text)
		return nil
	case protocol.KindServerError:
		h.log.Warn().Str("text", f.Text).Msg("server reported an error")
		h.metrics.protocolError("server_error")
		h.status.OnProtocolError(f.Text)
		return nil
	default:
		h.log.Warn().Err(f.Err).Str("text", f.Text).Msg("invalid json data")
		h.metrics.protocolError("malformed")
		h.status.OnProtocolError(MsgInvalidJSON)
		return nil
	}
}

func (h *Handler) welcome(id int) {
	changed := h.session.SetClientID(id)
	h.log.Info().Int("client_id", id).Msg("welcome received")
	if !changed || h.persist == nil {
		return
	}
	if err := h.persist.SaveClientID(id); err != nil {
		h.log.Error().Err(err).Int("client_id", id).Msg("saving client id")
	}
}

func (h *Handler) ping() error {
	id, ok := h.session.ClientID()
	if !ok {
		h.log.Warn().Msg(MsgPingBeforeWelcome)
		h.metrics.protocolError("ping_before_welcome")
		h.status.OnProtocolError(MsgPingBeforeWelcome)
		return nil
	}

	data, err := json.Marshal(protocol.NewPong(id))
	if err != nil {
		return fmt.Errorf("encoding pong: %w", err)
	}
	if err := h.send.SendText(string(data)); err != nil {
		return fmt.Errorf("sending pong: %w", err)
	}
	h.metrics.pong()
	h.log.Debug().Int("client_id", id).Msg("ping answered")
	return nil
}

func (h *Handler) nowPlayingUpdate(text string) {
	rec, err := protocol.DecodeNowPlaying(text)
	if err != nil {
		h.log.Warn().Err(err).Str("text", text).Msg("invalid now-playing data")
		h.metrics.protocolError("decode")
		h.status.OnProtocolError(MsgInvalidJSON)
		return
	}
	h.log.Debug().Str("title", rec.Title).Str("artist", rec.Artist).Msg("now playing")
	h.nowPlaying.OnUpdate(rec)
	h.nowPlaying.OnFreshnessChanged(true)
}
