package main

import (
	"context"
	"crypto/x509"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/gensokyo-radio/nowplaying/internal/app"
	"github.com/gensokyo-radio/nowplaying/internal/client"
	"github.com/gensokyo-radio/nowplaying/internal/config"
	"github.com/gensokyo-radio/nowplaying/internal/mock"
	"github.com/gensokyo-radio/nowplaying/internal/session"
)

const (
	logFileName = "nowplaying.log"
	stopTimeout = 5 * time.Second
)

func main() {
	configPath := flag.String("config", "config.yaml", "Path to config file")
	feedURL := flag.String("url", "", "Override the feed WebSocket URL")
	mockMode := flag.Bool("mock", false, "Serve a local mock feed and connect to it")
	plain := flag.Bool("plain", false, "Print updates as lines instead of running the TUI")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if *feedURL != "" {
		cfg.Feed.URL = *feedURL
	}

	stateDir := cfg.State.Dir
	if stateDir == "" {
		stateDir = session.DefaultStateDir()
	}

	logOut, closeLog, err := logOutput(*plain, stateDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open log: %v\n", err)
		os.Exit(1)
	}
	defer closeLog()
	logger := newLogger(cfg.Log, logOut)
	log.Logger = logger

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *mockMode {
		srv := mock.NewServer(mock.Config{
			PingInterval:   cfg.Mock.PingInterval,
			UpdateInterval: cfg.Mock.UpdateInterval,
		}, logger.With().Str("component", "mock").Logger())
		url, err := srv.Listen(cfg.Mock.Addr)
		if err != nil {
			logger.Fatal().Err(err).Msg("mock feed")
		}
		defer srv.Close()
		cfg.Feed.URL = url
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := client.NewMetrics(reg, "nowplaying")
	if cfg.Metrics.Addr != "" {
		go serveMetrics(cfg.Metrics.Addr, reg)
	}

	opts := []client.Option{
		client.WithLogger(logger.With().Str("component", "feed").Logger()),
		client.WithMetrics(metrics),
	}
	if cfg.State.Persist {
		store := session.NewFileStore(stateDir)
		if rec, ok, err := store.Load(); err != nil {
			logger.Warn().Err(err).Str("path", store.Path()).Msg("reading saved session")
		} else if ok {
			logger.Info().Int("client_id", rec.ClientID).Time("updated_at", rec.UpdatedAt).Msg("previous session")
		}
		opts = append(opts, client.WithPersistence(store))
	}

	rootCAs, err := loadRootCAs(cfg.Feed.CAFile)
	if err != nil {
		logger.Fatal().Err(err).Str("ca_file", cfg.Feed.CAFile).Msg("loading CA bundle")
	}

	feedCfg := client.Config{
		URL:            cfg.Feed.URL,
		SessionMessage: cfg.Feed.SessionMessage,
		ConnectTimeout: cfg.Feed.ConnectTimeout,
		WriteTimeout:   cfg.Feed.WriteTimeout,
		IdleTimeout:    cfg.Feed.IdleTimeout,
		Proxy:          cfg.Feed.Proxy,
		UserAgent:      cfg.Feed.UserAgent,
		RootCAs:        rootCAs,
	}
	logger.Info().Str("url", feedCfg.URL).Bool("plain", *plain).Msg("starting")

	if *plain {
		runPlain(ctx, feedCfg, opts)
		return
	}
	if err := runTUI(ctx, feedCfg, opts); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runPlain(ctx context.Context, cfg client.Config, opts []client.Option) {
	p := newPrinter(os.Stdout)
	m := client.New(cfg, append(opts, client.WithNowPlayingSink(p), client.WithStatusSink(p))...)
	m.Start()

	<-ctx.Done()
	shutdown(m)
}

func runTUI(ctx context.Context, cfg client.Config, opts []client.Option) error {
	// The manager only sends after Init starts it, by which time p is set.
	var p *tea.Program
	sink := app.NewSink(func(msg tea.Msg) { p.Send(msg) })

	m := client.New(cfg, append(opts, client.WithNowPlayingSink(sink), client.WithStatusSink(sink))...)
	p = tea.NewProgram(app.New(m), tea.WithAltScreen(), tea.WithContext(ctx))

	_, err := p.Run()
	shutdown(m)
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}

func shutdown(m *client.Manager) {
	m.Stop()
	select {
	case <-m.Done():
	case <-time.After(stopTimeout):
		log.Warn().Msg("feed did not stop in time")
	}
}

func serveMetrics(addr string, reg *prometheus.Registry) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	log.Info().Str("addr", addr).Msg("serving metrics")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error().Err(err).Msg("metrics server")
	}
}

// loadRootCAs returns nil (the system roots) for an empty path, otherwise the
// system roots plus the PEM certificates in path.
func loadRootCAs(path string) (*x509.CertPool, error) {
	if path == "" {
		return nil, nil
	}
	pem, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	pool, err := x509.SystemCertPool()
	if err != nil {
		pool = x509.NewCertPool()
	}
	if !pool.AppendCertsFromPEM(pem) {
		return nil, fmt.Errorf("%s: no PEM certificates", path)
	}
	return pool, nil
}

// logOutput picks stderr for plain mode. The TUI owns the terminal, so its
// logs go to a file in the state dir.
func logOutput(plain bool, stateDir string) (io.Writer, func(), error) {
	if plain {
		return os.Stderr, func() {}, nil
	}
	if err := os.MkdirAll(stateDir, 0o755); err != nil {
		return nil, nil, err
	}
	f, err := os.OpenFile(filepath.Join(stateDir, logFileName), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, err
	}
	return f, func() { f.Close() }, nil
}

func newLogger(cfg config.LogConfig, out io.Writer) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}

	w := out
	if cfg.Format != "json" {
		w = zerolog.ConsoleWriter{Out: out, TimeFormat: time.TimeOnly, NoColor: out != os.Stderr}
	}
	return zerolog.New(w).Level(level).With().Timestamp().Logger()
}
