// SPDX-License-Identifier: Apache-2.0

// Package memhost is an in-process host. Remote pages are Go handlers
// registered per origin; every opened surface runs its page on a dedicated
// goroutine.
package memhost

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"perun.network/go-perun/log"
	pkgsync "polycry.pt/poly-go/sync"

	"perun.network/icp-wallet-connector/host"
	"perun.network/icp-wallet-connector/wire"
)

const mailboxSize = 8

// ErrNoPage is returned when opening a URL whose origin has no page.
var ErrNoPage = errors.New("no page registered for origin")

type (
	// Page is the remote side of a surface.
	Page interface {
		// Load is called once when the surface opens.
		Load(s *Surface)
		// Receive is called for every message posted into the surface.
		Receive(s *Surface, msg wire.Message)
	}

	// Host implements host.Host in memory.
	Host struct {
		log.Embedding
		bus *host.Bus

		mutex   sync.Mutex
		pages   map[string]Page
		frames  int
		windows int
		live    int
	}

	// Surface is an opened frame or window as seen by its page.
	Surface struct {
		URL    string
		Name   string
		Window bool

		h       *Host
		origin  string
		mailbox chan wire.Message
		closer  pkgsync.Closer
	}
)

var _ host.Host = (*Host)(nil)

func New() *Host {
	return &Host{
		Embedding: log.MakeEmbedding(log.Default()),
		bus:       host.NewBus(),
		pages:     make(map[string]Page),
	}
}

// Route serves page for every URL under origin.
func (h *Host) Route(origin string, page Page) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	h.pages[origin] = page
}

// Post injects a message as if it was sent by a context at origin.
func (h *Host) Post(origin string, msg wire.Message) {
	h.bus.Publish(host.Message{Origin: origin, Data: msg})
}

func (h *Host) Subscribe() (<-chan host.Message, func()) {
	return h.bus.Subscribe()
}

func (h *Host) OpenFrame(ctx context.Context, rawURL string) (host.Frame, error) {
	return h.open(ctx, rawURL, "", false)
}

func (h *Host) OpenWindow(ctx context.Context, rawURL, name string) (host.Window, error) {
	return h.open(ctx, rawURL, name, true)
}

func (h *Host) open(ctx context.Context, rawURL, name string, window bool) (*Surface, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	origin, err := host.Origin(rawURL)
	if err != nil {
		return nil, err
	}

	h.mutex.Lock()
	page, ok := h.pages[origin]
	if !ok {
		h.mutex.Unlock()
		return nil, errors.WithMessage(ErrNoPage, origin)
	}
	if window {
		h.windows++
	} else {
		h.frames++
	}
	h.live++
	h.mutex.Unlock()

	s := &Surface{
		URL:     rawURL,
		Name:    name,
		Window:  window,
		h:       h,
		origin:  origin,
		mailbox: make(chan wire.Message, mailboxSize),
	}
	s.closer.OnCloseAlways(func() {
		h.mutex.Lock()
		h.live--
		h.mutex.Unlock()
	})
	h.Log().Debugf("Opened %s", rawURL)
	go s.run(page)
	return s, nil
}

// FramesOpened is the number of frames opened so far.
func (h *Host) FramesOpened() int {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	return h.frames
}

// WindowsOpened is the number of windows opened so far.
func (h *Host) WindowsOpened() int {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	return h.windows
}

// Live is the number of surfaces not yet closed.
func (h *Host) Live() int {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	return h.live
}

func (s *Surface) run(page Page) {
	page.Load(s)
	for {
		select {
		case msg := <-s.mailbox:
			page.Receive(s, msg)
		case <-s.closer.Closed():
			return
		}
	}
}

func (s *Surface) Post(msg wire.Message) error {
	if s.closer.IsClosed() {
		return host.ErrClosed
	}
	select {
	case s.mailbox <- msg:
		return nil
	case <-s.closer.Closed():
		return host.ErrClosed
	}
}

// Reply sends msg to the embedding side. Replies of closed surfaces are
// dropped.
func (s *Surface) Reply(msg wire.Message) {
	if s.closer.IsClosed() {
		return
	}
	s.h.bus.Publish(host.Message{Origin: s.origin, Data: msg})
}

// Closed reports whether the embedding side closed the surface.
func (s *Surface) Closed() bool {
	return s.closer.IsClosed()
}

func (s *Surface) Close() error {
	if err := s.closer.Close(); err != nil && !pkgsync.IsAlreadyClosedError(err) {
		return err
	}
	return nil
}
