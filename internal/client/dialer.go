package client

import (
	"bufio"
	"context"
	"crypto/tls"
	"encoding/base64"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/net/proxy"
)

// newDialer builds the websocket dialer for cfg. TLS verifies against
// cfg.RootCAs, or the system trust store when it is nil. An http proxy goes
// through the dialer's Proxy hook, an https proxy is reached over TLS and
// tunnelled with CONNECT, anything else (socks5) goes through x/net/proxy.
// Without a configured proxy the environment (HTTPS_PROXY etc.) is honoured.
func newDialer(cfg Config) (*websocket.Dialer, error) {
	d := &websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: cfg.connectTimeout(),
		TLSClientConfig:  tlsConfig(cfg),
	}
	if cfg.Proxy == "" {
		return d, nil
	}

	u, err := url.Parse(cfg.Proxy)
	if err != nil {
		return nil, fmt.Errorf("parsing proxy url: %w", err)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("proxy %q: missing host", cfg.Proxy)
	}

	switch u.Scheme {
	case "http":
		d.Proxy = http.ProxyURL(u)
		return d, nil
	case "https":
		d.Proxy = nil
		d.NetDialContext = connectThroughTLS(u, cfg)
		return d, nil
	}

	forward := &net.Dialer{Timeout: cfg.connectTimeout()}
	pd, err := proxy.FromURL(u, forward)
	if err != nil {
		return nil, fmt.Errorf("proxy %s: %w", u.Redacted(), err)
	}
	d.Proxy = nil
	if cd, ok := pd.(proxy.ContextDialer); ok {
		d.NetDialContext = cd.DialContext
	} else {
		d.NetDialContext = func(_ context.Context, network, addr string) (net.Conn, error) {
			return pd.Dial(network, addr)
		}
	}
	return d, nil
}

func tlsConfig(cfg Config) *tls.Config {
	return &tls.Config{MinVersion: tls.VersionTLS12, RootCAs: cfg.RootCAs}
}

// connectThroughTLS dials an https proxy and asks it to tunnel to addr.
func connectThroughTLS(proxyURL *url.URL, cfg Config) func(ctx context.Context, network, addr string) (net.Conn, error) {
	proxyAddr := proxyURL.Host
	if proxyURL.Port() == "" {
		proxyAddr = net.JoinHostPort(proxyURL.Hostname(), "443")
	}

	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		tc := tlsConfig(cfg)
		tc.ServerName = proxyURL.Hostname()
		td := &tls.Dialer{NetDialer: &net.Dialer{Timeout: cfg.connectTimeout()}, Config: tc}

		conn, err := td.DialContext(ctx, network, proxyAddr)
		if err != nil {
			return nil, fmt.Errorf("proxy %s: %w", proxyURL.Redacted(), err)
		}
		if deadline, ok := ctx.Deadline(); ok {
			conn.SetDeadline(deadline)
		}

		req := &http.Request{
			Method: http.MethodConnect,
			URL:    &url.URL{Opaque: addr},
			Host:   addr,
			Header: make(http.Header),
		}
		if u := proxyURL.User; u != nil {
			pass, _ := u.Password()
			creds := base64.StdEncoding.EncodeToString([]byte(u.Username() + ":" + pass))
			req.Header.Set("Proxy-Authorization", "Basic "+creds)
		}
		if err := req.Write(conn); err != nil {
			conn.Close()
			return nil, fmt.Errorf("proxy CONNECT: %w", err)
		}

		br := bufio.NewReader(conn)
		resp, err := http.ReadResponse(br, req)
		if err != nil {
			conn.Close()
			return nil, fmt.Errorf("proxy CONNECT: %w", err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			conn.Close()
			return nil, fmt.Errorf("proxy CONNECT %s: %s", addr, resp.Status)
		}
		if br.Buffered() > 0 {
			conn.Close()
			return nil, fmt.Errorf("proxy CONNECT %s: unexpected data after response", addr)
		}

		conn.SetDeadline(time.Time{})
		return conn, nil
	}
}
