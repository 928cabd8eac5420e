// Package mock serves a local stand-in for the now-playing feed. It speaks the
// same wire protocol: it waits for the session message, greets the client
// with a welcome carrying a numeric id, then sends pings and rotates through a
// playlist until the client goes away.
package mock

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/gensokyo-radio/nowplaying/internal/protocol"
)

const (
	Path = "/wss"

	initTimeout  = 10 * time.Second
	writeTimeout = 5 * time.Second
)

// Config controls the cadence of the mock feed.
type Config struct {
	PingInterval   time.Duration
	UpdateInterval time.Duration
	Playlist       []Track
}

type welcomeFrame struct {
	Message string `json:"message"`
	ID      int64  `json:"id"`
}

var pingFrame = []byte(`{"message":"ping"}`)

// Server is an http.Handler that upgrades every request to a feed socket.
type Server struct {
	cfg      Config
	log      zerolog.Logger
	upgrader websocket.Upgrader

	ctx    context.Context
	cancel context.CancelFunc

	nextID atomic.Int64
	pongs  atomic.Int64

	mu      sync.Mutex
	clients map[*websocket.Conn]int64
	httpSrv *http.Server
}

func NewServer(cfg Config, log zerolog.Logger) *Server {
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = 15 * time.Second
	}
	if cfg.UpdateInterval <= 0 {
		cfg.UpdateInterval = 20 * time.Second
	}
	if len(cfg.Playlist) == 0 {
		cfg.Playlist = DefaultPlaylist
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		cfg: cfg,
		log: log,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
		ctx:     ctx,
		cancel:  cancel,
		clients: make(map[*websocket.Conn]int64),
	}
}

// Listen serves the feed on addr in the background and returns the
// websocket URL clients should dial.
func (s *Server) Listen(addr string) (string, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return "", fmt.Errorf("mock feed listen: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle(Path, s)

	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	s.mu.Lock()
	s.httpSrv = srv
	s.mu.Unlock()

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error().Err(err).Msg("mock feed stopped")
		}
	}()

	url := "ws://" + ln.Addr().String() + Path
	s.log.Info().Str("url", url).Msg("mock feed listening")
	return url, nil
}

// Close sends a normal closure to every connected client and stops
// accepting new ones.
func (s *Server) Close() error {
	s.cancel()

	s.mu.Lock()
	srv := s.httpSrv
	s.mu.Unlock()
	if srv != nil {
		return srv.Close()
	}
	return nil
}

// Pongs reports how many pongs carried the id the server handed out.
func (s *Server) Pongs() int64 {
	return s.pongs.Load()
}

// Clients reports the number of sockets currently being served.
func (s *Server) Clients() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

// Disconnect closes every open socket with the given close code. 1000 is a
// clean close; anything else makes a client back off and reconnect.
func (s *Server) Disconnect(code int, reason string) {
	s.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(s.clients))
	for c := range s.clients {
		conns = append(conns, c)
	}
	s.mu.Unlock()

	msg := websocket.FormatCloseMessage(code, reason)
	for _, c := range conns {
		_ = c.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeTimeout))
		c.Close()
	}
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if s.ctx.Err() != nil {
		http.Error(w, "shutting down", http.StatusServiceUnavailable)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn().Err(err).Msg("mock feed upgrade failed")
		return
	}
	defer conn.Close()

	id := s.nextID.Add(1)
	log := s.log.With().Int64("client_id", id).Str("remote", r.RemoteAddr).Logger()

	s.mu.Lock()
	s.clients[conn] = id
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.clients, conn)
		s.mu.Unlock()
		log.Info().Msg("mock client disconnected")
	}()

	log.Info().Msg("mock client connected")
	s.serve(conn, id, log)
}

func (s *Server) serve(conn *websocket.Conn, id int64, log zerolog.Logger) {
	conn.SetReadDeadline(time.Now().Add(initTimeout))
	_, init, err := conn.ReadMessage()
	if err != nil {
		log.Warn().Err(err).Msg("no session message")
		return
	}
	conn.SetReadDeadline(time.Time{})
	log.Debug().Str("payload", string(init)).Msg("session message")

	welcome, _ := json.Marshal(welcomeFrame{Message: "welcome", ID: id})
	if err := s.write(conn, welcome); err != nil {
		return
	}

	pos := 0
	if err := s.writeTrack(conn, pos); err != nil {
		return
	}

	gone := make(chan struct{})
	go func() {
		defer close(gone)
		s.readPongs(conn, id, log)
	}()

	pings := time.NewTicker(s.cfg.PingInterval)
	defer pings.Stop()
	updates := time.NewTicker(s.cfg.UpdateInterval)
	defer updates.Stop()

	for {
		select {
		case <-s.ctx.Done():
			msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "mock feed closing")
			_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeTimeout))
			return
		case <-gone:
			return
		case <-pings.C:
			if err := s.write(conn, pingFrame); err != nil {
				return
			}
		case <-updates.C:
			pos = (pos + 1) % len(s.cfg.Playlist)
			if err := s.writeTrack(conn, pos); err != nil {
				return
			}
		}
	}
}

func (s *Server) readPongs(conn *websocket.Conn, id int64, log zerolog.Logger) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}

		var pong protocol.Pong
		if err := json.Unmarshal(data, &pong); err != nil || pong.Message != "pong" {
			log.Debug().Str("payload", string(data)).Msg("unexpected client frame")
			continue
		}
		if int64(pong.ID) != id {
			log.Warn().Int("got", pong.ID).Msg("pong with foreign id")
			continue
		}
		s.pongs.Add(1)
	}
}

func (s *Server) writeTrack(conn *websocket.Conn, pos int) error {
	data, err := json.Marshal(s.cfg.Playlist[pos])
	if err != nil {
		return err
	}
	return s.write(conn, data)
}

// write is only called from the serve goroutine, the single data writer per
// connection.
func (s *Server) write(conn *websocket.Conn, data []byte) error {
	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return conn.WriteMessage(websocket.TextMessage, data)
}
