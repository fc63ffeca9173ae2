// SPDX-License-Identifier: Apache-2.0

// Package wshost reaches remote pages over websockets. Every frame or window
// is one connection to the remote origin, messages are JSON text frames.
package wshost

import (
	"context"
	"net/url"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"perun.network/go-perun/log"
	pkgsync "polycry.pt/poly-go/sync"

	"perun.network/icp-wallet-connector/host"
	"perun.network/icp-wallet-connector/wire"
)

// WindowNameHeader carries the name of a window on the websocket handshake.
const WindowNameHeader = "X-Window-Name"

type (
	// Launcher shows an interactive URL to the user, e.g. in a browser.
	Launcher func(rawURL, name string) error

	Host struct {
		log.Embedding
		bus      *host.Bus
		dialer   *websocket.Dialer
		launcher Launcher
	}

	conn struct {
		log.Embedding
		ws     *websocket.Conn
		origin string
		bus    *host.Bus
		wmutex sync.Mutex
		closer pkgsync.Closer
	}

	Option func(*Host)
)

var _ host.Host = (*Host)(nil)

// WithLauncher sets the hook called before a window is dialed.
func WithLauncher(l Launcher) Option {
	return func(h *Host) { h.launcher = l }
}

// WithDialer replaces websocket.DefaultDialer.
func WithDialer(d *websocket.Dialer) Option {
	return func(h *Host) { h.dialer = d }
}

func New(opts ...Option) *Host {
	h := &Host{
		Embedding: log.MakeEmbedding(log.Default()),
		bus:       host.NewBus(),
		dialer:    websocket.DefaultDialer,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *Host) Subscribe() (<-chan host.Message, func()) {
	return h.bus.Subscribe()
}

func (h *Host) OpenFrame(ctx context.Context, rawURL string) (host.Frame, error) {
	return h.dial(ctx, rawURL, "")
}

func (h *Host) OpenWindow(ctx context.Context, rawURL, name string) (host.Window, error) {
	if h.launcher != nil {
		if err := h.launcher(rawURL, name); err != nil {
			return nil, errors.WithMessage(err, "launching window")
		}
	}
	return h.dial(ctx, rawURL, name)
}

func (h *Host) dial(ctx context.Context, rawURL, name string) (*conn, error) {
	origin, err := host.Origin(rawURL)
	if err != nil {
		return nil, err
	}
	wsURL, err := WebsocketURL(rawURL)
	if err != nil {
		return nil, err
	}

	var header map[string][]string
	if name != "" {
		header = map[string][]string{WindowNameHeader: {name}}
	}
	ws, _, err := h.dialer.DialContext(ctx, wsURL, header) //nolint:bodyclose
	if err != nil {
		return nil, errors.WithMessagef(err, "dialing %s", wsURL)
	}

	c := &conn{
		Embedding: h.Embedding,
		ws:        ws,
		origin:    origin,
		bus:       h.bus,
	}
	c.closer.OnCloseAlways(func() {
		if err := ws.Close(); err != nil {
			c.Log().Debugf("Closing websocket: %v", err)
		}
	})
	go c.readLoop()
	return c, nil
}

// WebsocketURL maps http to ws and https to wss.
func WebsocketURL(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", errors.Wrap(host.ErrInvalidURL, err.Error())
	}
	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", errors.WithMessagef(host.ErrInvalidURL, "unsupported scheme %q", u.Scheme)
	}
	return u.String(), nil
}

func (c *conn) readLoop() {
	for {
		var msg wire.Message
		if err := c.ws.ReadJSON(&msg); err != nil {
			if !c.closer.IsClosed() {
				c.Log().Debugf("Read from %s ended: %v", c.origin, err)
				c.Close() //nolint:errcheck
			}
			return
		}
		c.bus.Publish(host.Message{Origin: c.origin, Data: msg})
	}
}

func (c *conn) Post(msg wire.Message) error {
	if c.closer.IsClosed() {
		return host.ErrClosed
	}
	c.wmutex.Lock()
	defer c.wmutex.Unlock()
	return errors.WithMessage(c.ws.WriteJSON(msg), "writing message")
}

func (c *conn) Close() error {
	if err := c.closer.Close(); err != nil && !pkgsync.IsAlreadyClosedError(err) {
		return err
	}
	return nil
}
