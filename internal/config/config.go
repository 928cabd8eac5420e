package config

import (
	"errors"
	"io/fs"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DefaultURL            = "wss://gensokyoradio.net/wss"
	DefaultSessionMessage = `{"message":"grInitialConnection"}`
)

type Config struct {
	Feed    FeedConfig    `yaml:"feed"`
	State   StateConfig   `yaml:"state"`
	Log     LogConfig     `yaml:"log"`
	Metrics MetricsConfig `yaml:"metrics"`
	Mock    MockConfig    `yaml:"mock"`
}

type FeedConfig struct {
	URL            string        `yaml:"url"`
	SessionMessage string        `yaml:"session_message"`
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
	// IdleTimeout closes a socket that has been silent this long. Zero
	// disables it.
	IdleTimeout time.Duration `yaml:"idle_timeout"`
	Proxy       string        `yaml:"proxy"`
	UserAgent   string        `yaml:"user_agent"`
	// CAFile is a PEM bundle trusted in addition to the system roots, for the
	// feed and an https proxy.
	CAFile string `yaml:"ca_file"`
}

type StateConfig struct {
	// Dir holds the persisted client id and the TUI log file. Empty means
	// the XDG state dir.
	Dir     string `yaml:"dir"`
	Persist bool   `yaml:"persist"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // console or json
}

type MetricsConfig struct {
	// Addr serves /metrics when non-empty, e.g. "127.0.0.1:9464".
	Addr string `yaml:"addr"`
}

type MockConfig struct {
	Addr           string        `yaml:"addr"`
	PingInterval   time.Duration `yaml:"ping_interval"`
	UpdateInterval time.Duration `yaml:"update_interval"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Feed: FeedConfig{
			URL:            DefaultURL,
			SessionMessage: DefaultSessionMessage,
			ConnectTimeout: 10 * time.Second,
			WriteTimeout:   10 * time.Second,
			IdleTimeout:    2 * time.Minute,
			UserAgent:      "nowplaying/1.0",
		},
		State: StateConfig{
			Persist: true,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
		Mock: MockConfig{
			Addr:           "127.0.0.1:0",
			PingInterval:   15 * time.Second,
			UpdateInterval: 20 * time.Second,
		},
	}
}

// Load reads path over the defaults. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return cfg, nil
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}
