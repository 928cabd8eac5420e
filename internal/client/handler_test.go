package client

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"

	"github.com/gensokyo-radio/nowplaying/internal/protocol"
	"github.com/gensokyo-radio/nowplaying/internal/session"
)

func newTestHandler(rec *recorder, send *sendRecorder, metrics *Metrics) (*Handler, *session.Session) {
	sess := session.New()
	return NewHandler(sess, send, rec, rec, rec, metrics, zerolog.Nop()), sess
}

func TestHandler_WelcomeThenPing(t *testing.T) {
	rec := &recorder{}
	send := &sendRecorder{}
	h, sess := newTestHandler(rec, send, nil)

	if err := h.HandleText(`{"message":"welcome","id":7}`); err != nil {
		t.Fatalf("welcome: %v", err)
	}
	if err := h.HandleText(`{"message":"ping"}`); err != nil {
		t.Fatalf("ping: %v", err)
	}

	if len(send.frames) != 1 || send.frames[0] != `{"message":"pong","id":7}` {
		t.Errorf("outbound frames = %q, want exactly the pong for 7", send.frames)
	}
	if id, ok := sess.ClientID(); !ok || id != 7 {
		t.Errorf("session client id = %d, %v", id, ok)
	}

	got := rec.snapshot()
	if len(got.records) != 0 || len(got.errors) != 0 {
		t.Errorf("welcome/ping should not reach sinks: %+v", got)
	}
	if len(got.saved) != 1 || got.saved[0] != 7 {
		t.Errorf("saved ids = %v, want [7]", got.saved)
	}
}

func TestHandler_PingBeforeWelcome(t *testing.T) {
	rec := &recorder{}
	send := &sendRecorder{}
	h, _ := newTestHandler(rec, send, nil)

	if err := h.HandleText(`{"message":"ping"}`); err != nil {
		t.Fatalf("ping: %v", err)
	}

	if len(send.frames) != 0 {
		t.Errorf("expected no outbound frames, got %q", send.frames)
	}
	got := rec.snapshot()
	if len(got.errors) != 1 || got.errors[0] != MsgPingBeforeWelcome {
		t.Errorf("status errors = %q, want exactly one ping-before-welcome notice", got.errors)
	}
}

func TestHandler_NowPlaying(t *testing.T) {
	rec := &recorder{}
	h, _ := newTestHandler(rec, &sendRecorder{}, nil)

	if err := h.HandleText(`{"title":"Foo","artist":"Bar","albumart":null}`); err != nil {
		t.Fatal(err)
	}

	got := rec.snapshot()
	want := protocol.NowPlayingRecord{Title: "Foo", Artist: "Bar"}
	if len(got.records) != 1 || got.records[0] != want {
		t.Errorf("records = %+v, want [%+v]", got.records, want)
	}
	if len(got.fresh) != 1 || !got.fresh[0] {
		t.Errorf("freshness = %v, want [true]", got.fresh)
	}
}

func TestHandler_ServerErrorAndMalformed(t *testing.T) {
	rec := &recorder{}
	send := &sendRecorder{}
	h, _ := newTestHandler(rec, send, nil)

	for _, text := range []string{"Error: bad token", "not json", `[1]`, `{"welcome":true}`, `{"title":{"nested":1}}`} {
		if err := h.HandleText(text); err != nil {
			t.Fatalf("HandleText(%q): %v", text, err)
		}
	}

	got := rec.snapshot()
	want := []string{"Error: bad token", MsgInvalidJSON, MsgInvalidJSON, MsgInvalidJSON, MsgInvalidJSON}
	if len(got.errors) != len(want) {
		t.Fatalf("errors = %q, want %q", got.errors, want)
	}
	for i := range want {
		if got.errors[i] != want[i] {
			t.Errorf("errors[%d] = %q, want %q", i, got.errors[i], want[i])
		}
	}
	if len(got.records) != 0 || len(send.frames) != 0 {
		t.Error("anomalies must not produce records or outbound frames")
	}
}

func TestHandler_EmptyFrameIgnored(t *testing.T) {
	rec := &recorder{}
	send := &sendRecorder{}
	h, _ := newTestHandler(rec, send, nil)

	if err := h.HandleText(""); err != nil {
		t.Fatal(err)
	}
	got := rec.snapshot()
	if len(got.errors)+len(got.records)+len(send.frames) != 0 {
		t.Errorf("empty frame should be a no-op: %+v %q", got, send.frames)
	}
}

func TestHandler_PongSendFailure(t *testing.T) {
	rec := &recorder{}
	send := &sendRecorder{err: errSendFailed}
	h, _ := newTestHandler(rec, send, nil)

	h.HandleText(`{"welcome":true,"id":3}`)
	err := h.HandleText(`{"message":"ping"}`)
	if !errors.Is(err, errSendFailed) {
		t.Errorf("ping with failing sender = %v, want wrapped errSendFailed", err)
	}
}

func TestHandler_PersistOnlyOnChange(t *testing.T) {
	rec := &recorder{}
	h, _ := newTestHandler(rec, &sendRecorder{}, nil)

	h.HandleText(`{"welcome":true,"id":5}`)
	h.HandleText(`{"welcome":true,"id":5}`)
	h.HandleText(`{"welcome":true,"id":6}`)

	got := rec.snapshot()
	if len(got.saved) != 2 || got.saved[0] != 5 || got.saved[1] != 6 {
		t.Errorf("saved = %v, want [5 6]", got.saved)
	}
}

func TestHandler_PersistFailureIgnored(t *testing.T) {
	rec := &recorder{saveErr: errors.New("disk full")}
	send := &sendRecorder{}
	h, _ := newTestHandler(rec, send, nil)

	if err := h.HandleText(`{"welcome":true,"id":9}`); err != nil {
		t.Fatalf("welcome with failing store: %v", err)
	}
	if err := h.HandleText(`{"message":"ping"}`); err != nil {
		t.Fatal(err)
	}
	if len(send.frames) != 1 {
		t.Errorf("pong should still be sent, got %q", send.frames)
	}
	if got := rec.snapshot(); len(got.errors) != 0 {
		t.Errorf("persistence failure should not reach the status sink: %q", got.errors)
	}
}

func TestHandler_NilCollaborators(t *testing.T) {
	send := &sendRecorder{}
	h := NewHandler(session.New(), send, nil, nil, nil, nil, zerolog.Nop())

	for _, text := range []string{`{"title":"x"}`, "Error: y", "junk", `{"message":"ping"}`, `{"welcome":1,"id":2}`} {
		if err := h.HandleText(text); err != nil {
			t.Fatalf("HandleText(%q): %v", text, err)
		}
	}
}

func TestHandler_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg, "test")
	rec := &recorder{}
	h, _ := newTestHandler(rec, &sendRecorder{}, metrics)

	h.HandleText(`{"message":"ping"}`)
	h.HandleText(`{"welcome":true,"id":1}`)
	h.HandleText(`{"message":"ping"}`)
	h.HandleText(`{"title":"x"}`)
	h.HandleText("garbage")

	if got := testutil.ToFloat64(metrics.framesTotal.WithLabelValues("ping")); got != 2 {
		t.Errorf("ping frames = %v, want 2", got)
	}
	if got := testutil.ToFloat64(metrics.framesTotal.WithLabelValues("now_playing")); got != 1 {
		t.Errorf("now_playing frames = %v, want 1", got)
	}
	if got := testutil.ToFloat64(metrics.pongsSent); got != 1 {
		t.Errorf("pongs = %v, want 1", got)
	}
	if got := testutil.ToFloat64(metrics.protocolErrors.WithLabelValues("ping_before_welcome")); got != 1 {
		t.Errorf("ping_before_welcome errors = %v, want 1", got)
	}
	if got := testutil.ToFloat64(metrics.protocolErrors.WithLabelValues("malformed")); got != 1 {
		t.Errorf("malformed errors = %v, want 1", got)
	}
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	m.frame("ping")
	m.protocolError("x")
	m.pong()
	m.connected()
	m.reconnectAttempt()
	m.setState(StateOpen)
}
