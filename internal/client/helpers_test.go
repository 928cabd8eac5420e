package client

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/gensokyo-radio/nowplaying/internal/protocol"
)

const testSessionMessage = `{"message":"grInitialConnection"}`

// seen is what a recorder has observed so far.
type seen struct {
	records  []protocol.NowPlayingRecord
	fresh    []bool
	attempts []int
	errors   []string
	states   []State
	saved    []int
}

// recorder implements every collaborator interface and keeps what it saw.
type recorder struct {
	mu      sync.Mutex
	seen    seen
	saveErr error
}

func (r *recorder) OnUpdate(rec protocol.NowPlayingRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seen.records = append(r.seen.records, rec)
}

func (r *recorder) OnFreshnessChanged(fresh bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seen.fresh = append(r.seen.fresh, fresh)
}

func (r *recorder) OnReconnectAttempt(attempt int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seen.attempts = append(r.seen.attempts, attempt)
}

func (r *recorder) OnProtocolError(message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seen.errors = append(r.seen.errors, message)
}

func (r *recorder) OnStateChanged(s State) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seen.states = append(r.seen.states, s)
}

func (r *recorder) SaveClientID(id int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seen.saved = append(r.seen.saved, id)
	return r.saveErr
}

func (r *recorder) snapshot() seen {
	r.mu.Lock()
	defer r.mu.Unlock()
	return seen{
		records:  append([]protocol.NowPlayingRecord(nil), r.seen.records...),
		fresh:    append([]bool(nil), r.seen.fresh...),
		attempts: append([]int(nil), r.seen.attempts...),
		errors:   append([]string(nil), r.seen.errors...),
		states:   append([]State(nil), r.seen.states...),
		saved:    append([]int(nil), r.seen.saved...),
	}
}

// sendRecorder captures outbound frames written by a Handler.
type sendRecorder struct {
	frames []string
	err    error
}

func (s *sendRecorder) SendText(text string) error {
	if s.err != nil {
		return s.err
	}
	s.frames = append(s.frames, text)
	return nil
}

var errSendFailed = errors.New("send failed")

// feedServer is a websocket peer for manager tests. handle runs once per
// accepted connection with a 1-based connection number.
type feedServer struct {
	*httptest.Server
	conns atomic.Int32
}

func newFeedServer(t *testing.T, handle func(n int, conn *websocket.Conn)) *feedServer {
	t.Helper()

	fs := &feedServer{}
	fs.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()
		n := int(fs.conns.Add(1))
		handle(n, conn)
	}))
	t.Cleanup(fs.Close)
	return fs
}

func (fs *feedServer) wsURL() string {
	return "ws" + strings.TrimPrefix(fs.Server.URL, "http")
}

// drain reads until the peer goes away, forwarding text frames to out.
func drain(conn *websocket.Conn, out chan<- string) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if out != nil {
			out <- string(data)
		}
	}
}

func testConfig(url string) Config {
	return Config{
		URL:            url,
		SessionMessage: testSessionMessage,
		ConnectTimeout: 2 * time.Second,
		WriteTimeout:   2 * time.Second,
	}
}

func fastBackoff(int) time.Duration { return 10 * time.Millisecond }

// waitFor polls cond until it holds or the timeout elapses.
func waitFor(t *testing.T, timeout time.Duration, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func stopAndWait(t *testing.T, m *Manager) {
	t.Helper()
	m.Stop()
	select {
	case <-m.Done():
	case <-time.After(3 * time.Second):
		t.Fatal("manager did not stop")
	}
}

func recv(t *testing.T, ch <-chan string) string {
	t.Helper()
	select {
	case s := <-ch:
		return s
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a client frame")
		return ""
	}
}
