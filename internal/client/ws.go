package client

import (
	"context"
	"crypto/x509"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/gensokyo-radio/nowplaying/internal/session"
)

const (
	closeWriteTimeout = time.Second
	// DefaultConnectTimeout bounds a dial when Config.ConnectTimeout is unset.
	DefaultConnectTimeout = 10 * time.Second
)

// State is the connection state of a Manager.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateOpen
	StateClosing
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosing:
		return "closing"
	default:
		return "disconnected"
	}
}

// Config describes the feed endpoint and socket timeouts.
type Config struct {
	URL string
	// SessionMessage is written once right after every open. Empty skips it.
	SessionMessage string
	ConnectTimeout time.Duration
	WriteTimeout   time.Duration
	// IdleTimeout turns a socket that stays silent this long into an
	// abnormal close. Zero disables it.
	IdleTimeout time.Duration
	Proxy       string
	UserAgent   string
	// RootCAs verifies the feed and an https proxy. Nil means the system
	// trust store.
	RootCAs *x509.CertPool
}

func (c Config) connectTimeout() time.Duration {
	if c.ConnectTimeout <= 0 {
		return DefaultConnectTimeout
	}
	return c.ConnectTimeout
}

// Option configures a Manager.
type Option func(*Manager)

func WithNowPlayingSink(s NowPlayingSink) Option {
	return func(m *Manager) {
		if s != nil {
			m.nowPlaying = s
		}
	}
}

// WithStatusSink sets the status sink. If it also implements StateObserver it
// receives state changes.
func WithStatusSink(s StatusSink) Option {
	return func(m *Manager) {
		if s != nil {
			m.status = s
		}
	}
}

// WithPersistence stores the client id from every welcome. Repeated welcomes
// carrying the id already stored are not written again.
func WithPersistence(p SessionPersistence) Option {
	return func(m *Manager) {
		if p != nil {
			m.persist = &lastSaved{next: p}
		}
	}
}

func WithLogger(log zerolog.Logger) Option {
	return func(m *Manager) {
		m.log = log
	}
}

func WithMetrics(metrics *Metrics) Option {
	return func(m *Manager) {
		m.metrics = metrics
	}
}

// WithBackoff replaces the reconnect delay for an attempt. The default samples
// session.Tiers.
func WithBackoff(fn func(attempt int) time.Duration) Option {
	return func(m *Manager) {
		m.delay = fn
	}
}

// Manager owns the socket to the feed. A single worker goroutine performs all
// socket I/O and frame handling; Start and Stop only signal it.
type Manager struct {
	cfg        Config
	sess       *session.Session
	nowPlaying NowPlayingSink
	status     StatusSink
	persist    SessionPersistence
	metrics    *Metrics
	log        zerolog.Logger
	delay      func(attempt int) time.Duration
	backoff    backoff.BackOff

	stateMu sync.Mutex
	state   State
	active  bool // a connect/serve/backoff cycle is running
	stopped bool

	writeMu sync.Mutex // serialises data frame writes (session init, pong)
	armed   atomic.Int32

	ctx       context.Context
	cancel    context.CancelFunc
	startCh   chan struct{}
	startOnce sync.Once
	stopOnce  sync.Once
	done      chan struct{}
}

// New creates a manager for cfg. Nothing happens until Start.
func New(cfg Config, opts ...Option) *Manager {
	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		cfg:        cfg,
		sess:       session.New(),
		nowPlaying: nopSink{},
		status:     nopSink{},
		log:        zerolog.Nop(),
		ctx:        ctx,
		cancel:     cancel,
		startCh:    make(chan struct{}, 1),
		done:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.backoff = session.NewBackoff(m.sess, m.delay)
	return m
}

// Start asks the worker to connect. It never blocks. It is a no-op while a
// connection cycle is already running and after Stop.
func (m *Manager) Start() {
	m.stateMu.Lock()
	if m.stopped || m.active {
		m.stateMu.Unlock()
		return
	}
	m.active = true
	m.stateMu.Unlock()

	m.startOnce.Do(func() { go m.run() })
	select {
	case m.startCh <- struct{}{}:
	default:
	}
}

// Stop aborts any in-flight connect, cancels a pending reconnect timer and
// closes the socket. It never blocks, is idempotent and is terminal; wait on
// Done for the release of the socket. Observers see StateClosing then
// StateDisconnected from the worker, unless it was already disconnected.
func (m *Manager) Stop() {
	m.stopOnce.Do(func() {
		m.stateMu.Lock()
		m.stopped = true
		if m.state != StateDisconnected {
			m.state = StateClosing
			m.metrics.setState(StateClosing)
		}
		m.stateMu.Unlock()

		m.cancel()
		// Stop before the first Start: no worker will ever close done.
		m.startOnce.Do(func() { close(m.done) })
	})
}

// Done is closed once the worker has exited after Stop.
func (m *Manager) Done() <-chan struct{} {
	return m.done
}

func (m *Manager) State() State {
	m.stateMu.Lock()
	defer m.stateMu.Unlock()
	return m.state
}

// Session exposes the live session for inspection.
func (m *Manager) Session() *session.Session {
	return m.sess
}

// ArmedTimers reports how many reconnect timers are pending (0 or 1).
func (m *Manager) ArmedTimers() int {
	return int(m.armed.Load())
}

// transition moves to a new state and reports it. After Stop only the final
// move to StateDisconnected is accepted.
func (m *Manager) transition(to State) bool {
	m.stateMu.Lock()
	if m.stopped && to != StateDisconnected {
		m.stateMu.Unlock()
		return false
	}
	from := m.state
	m.state = to
	m.stateMu.Unlock()

	m.metrics.setState(to)
	if from != to {
		m.notifyState(to)
	}
	return true
}

func (m *Manager) notifyState(s State) {
	if obs, ok := m.status.(StateObserver); ok {
		obs.OnStateChanged(s)
	}
}

func (m *Manager) run() {
	defer close(m.done)
	defer m.finish()

	for {
		select {
		case <-m.ctx.Done():
			return
		case <-m.startCh:
		}

		m.cycle(m.ctx)
		if m.ctx.Err() != nil {
			return
		}

		m.stateMu.Lock()
		m.active = false
		m.stateMu.Unlock()
		m.transition(StateDisconnected)
	}
}

// finish reports the Closing state Stop set, then the final disconnect.
func (m *Manager) finish() {
	m.stateMu.Lock()
	closing := m.state == StateClosing
	m.stateMu.Unlock()

	if closing {
		m.notifyState(StateClosing)
	}
	m.transition(StateDisconnected)
}

// cycle connects and serves until a clean close or Stop, reconnecting after
// every abnormal close.
func (m *Manager) cycle(ctx context.Context) {
	for {
		if !m.transition(StateConnecting) {
			return
		}
		clean := m.connectAndServe(ctx)
		if ctx.Err() != nil || clean {
			return
		}
		m.transition(StateDisconnected)
		if !m.waitBackoff(ctx) {
			return
		}
	}
}

// connectAndServe runs one socket from dial to close. It reports true only
// for a close frame with status 1000 sent by the server.
func (m *Manager) connectAndServe(ctx context.Context) bool {
	log := m.log.With().Str("conn", uuid.NewString()).Logger()

	conn, err := m.dial(ctx)
	if err != nil {
		if ctx.Err() == nil {
			log.Warn().Err(err).Msg("feed connect failed")
		}
		return false
	}

	closed := make(chan struct{})
	stopWatch := context.AfterFunc(ctx, func() {
		defer close(closed)
		closeConn(conn, "client stopping")
	})
	defer func() {
		if stopWatch() {
			conn.Close()
		} else {
			<-closed
		}
	}()

	m.backoff.Reset()
	m.sess.ClearClientID()
	if !m.transition(StateOpen) {
		return false
	}
	m.metrics.connected()
	log.Info().Str("url", m.cfg.URL).Msg("feed connected")

	w := &connWriter{conn: conn, mu: &m.writeMu, timeout: m.cfg.WriteTimeout}
	if m.cfg.SessionMessage != "" {
		if err := w.SendText(m.cfg.SessionMessage); err != nil {
			if ctx.Err() == nil {
				log.Warn().Err(err).Msg("sending session message")
			}
			return false
		}
	}

	h := NewHandler(m.sess, w, m.nowPlaying, m.status, m.persist, m.metrics, log)
	return m.readLoop(ctx, conn, h, log)
}

func (m *Manager) readLoop(ctx context.Context, conn *websocket.Conn, h *Handler, log zerolog.Logger) bool {
	for {
		if m.cfg.IdleTimeout > 0 {
			conn.SetReadDeadline(time.Now().Add(m.cfg.IdleTimeout))
		}

		msgType, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return false
			}
			var ce *websocket.CloseError
			if errors.As(err, &ce) && ce.Code == websocket.CloseNormalClosure {
				log.Info().Int("code", ce.Code).Str("reason", ce.Text).Msg("socket connection closed cleanly")
				return true
			}
			log.Warn().Err(err).Msg("socket connection closed unexpectedly, the connection will be retried")
			return false
		}

		if msgType != websocket.TextMessage {
			log.Debug().Int("type", msgType).Msg("non-text frame ignored")
			continue
		}
		if err := h.HandleText(string(data)); err != nil {
			log.Warn().Err(err).Msg("reply failed")
			return false
		}
	}
}

func (m *Manager) dial(ctx context.Context) (*websocket.Conn, error) {
	d, err := newDialer(m.cfg)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, m.cfg.connectTimeout())
	defer cancel()

	// Close the raw connection if ctx ends mid-handshake so a stalled
	// upgrade cannot outlive Stop.
	netDial := d.NetDialContext
	if netDial == nil {
		netDial = (&net.Dialer{}).DialContext
	}
	var unwatch func() bool
	d.NetDialContext = func(dctx context.Context, network, addr string) (net.Conn, error) {
		c, err := netDial(dctx, network, addr)
		if err != nil {
			return nil, err
		}
		unwatch = context.AfterFunc(ctx, func() { c.Close() })
		return c, nil
	}

	header := http.Header{}
	if m.cfg.UserAgent != "" {
		header.Set("User-Agent", m.cfg.UserAgent)
	}

	conn, resp, err := d.DialContext(ctx, m.cfg.URL, header)
	if unwatch != nil {
		unwatch()
	}
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial %s: %w (status %d)", m.cfg.URL, err, resp.StatusCode)
		}
		return nil, fmt.Errorf("dial %s: %w", m.cfg.URL, err)
	}
	return conn, nil
}

// waitBackoff counts the abnormal close, notifies the status sink and sleeps
// for the backoff delay. It reports false if Stop interrupted the wait.
func (m *Manager) waitBackoff(ctx context.Context) bool {
	delay := backoff.WithContext(m.backoff, ctx).NextBackOff()
	if delay == backoff.Stop {
		return false
	}
	attempt := m.sess.Attempt()
	m.metrics.reconnectAttempt()
	m.status.OnReconnectAttempt(attempt)

	m.log.Warn().Int("attempt", attempt).Dur("delay", delay).Msg("will reconnect")

	t := time.NewTimer(delay)
	m.armed.Add(1)
	defer m.armed.Add(-1)

	select {
	case <-ctx.Done():
		t.Stop()
		return false
	case <-t.C:
		return true
	}
}

// lastSaved skips writes of the id it last stored successfully. The
// session id is cleared on every open, so each reconnect's welcome looks like
// a change to the handler.
type lastSaved struct {
	next SessionPersistence
	id   int
	ok   bool
}

func (l *lastSaved) SaveClientID(id int) error {
	if l.ok && l.id == id {
		return nil
	}
	if err := l.next.SaveClientID(id); err != nil {
		return err
	}
	l.id, l.ok = id, true
	return nil
}

// connWriter sends text frames under the manager's write mutex.
type connWriter struct {
	conn    *websocket.Conn
	mu      *sync.Mutex
	timeout time.Duration
}

func (w *connWriter) SendText(text string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timeout > 0 {
		w.conn.SetWriteDeadline(time.Now().Add(w.timeout))
	}
	return w.conn.WriteMessage(websocket.TextMessage, []byte(text))
}

// closeConn sends a normal closure and releases the socket. WriteControl and
// Close are safe to call concurrently with the reader.
func closeConn(conn *websocket.Conn, reason string) {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, reason)
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(closeWriteTimeout))
	conn.Close()
}
