// Copyright 2023 - See NOTICE file for copyright holders.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package channel

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"perun.network/go-perun/log"

	"perun.network/icp-wallet-connector/host"
	"perun.network/icp-wallet-connector/wire"
)

// TunnelPath is appended to the remote origin to reach the tunnel page.
const TunnelPath = "/?stoicTunnel"

type (
	// Transport sends requests to the remote signer. Every request gets its
	// own frame which lives until the reply arrived.
	Transport struct {
		log.Embedding

		origin   string
		host     host.Host
		registry *Registry
		timeout  time.Duration
	}

	// Option configures a Transport.
	Option func(*Transport)

	// frameRef lets a slot teardown close a frame that may still be opening.
	frameRef struct {
		mutex  sync.Mutex
		frame  host.Frame
		closed bool
	}
)

// WithTimeout bounds every Send. Zero means no bound.
func WithTimeout(d time.Duration) Option {
	return func(t *Transport) { t.timeout = d }
}

// NewTransport returns a transport to the remote signer at origin. origin
// must be of the form scheme://host[:port].
func NewTransport(origin string, h host.Host, opts ...Option) *Transport {
	t := &Transport{
		Embedding: log.MakeEmbedding(log.Default()),
		origin:    origin,
		host:      h,
		registry:  NewRegistry(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *Transport) Origin() string {
	return t.origin
}

// Pending is the number of requests waiting for a reply.
func (t *Transport) Pending() int {
	return t.registry.Pending()
}

// Send posts msg through a fresh frame and waits for the correlated reply.
// Without a configured timeout it waits until ctx is done.
func (t *Transport) Send(ctx context.Context, msg wire.Message) (json.RawMessage, error) {
	if t.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}

	ref := new(frameRef)
	id, result := t.registry.Register(ref.close)
	t.Log().Debugf("Sending %s as request %d", msg.Action, id)

	frame, err := t.host.OpenFrame(ctx, t.origin+TunnelPath)
	if err != nil {
		t.registry.Settle(id, Result{Err: transportError(err.Error())})
	} else if ref.set(frame) {
		if err := frame.Post(msg.WithListener(id)); err != nil {
			t.registry.Settle(id, Result{Err: transportError(err.Error())})
		}
	}

	select {
	case res := <-result:
		return res.Data, res.Err
	case <-ctx.Done():
		t.registry.Settle(id, Result{Err: ctx.Err()})
		// Either our settlement or a concurrent reply wins.
		res := <-result
		return res.Data, res.Err
	}
}

// Deliver settles the request a reply is addressed to. It returns false for
// messages from other origins, non-replies, and unknown or settled ids.
func (t *Transport) Deliver(m host.Message) bool {
	if m.Origin != t.origin {
		t.Log().Debugf("Dropping reply from foreign origin %s", m.Origin)
		return false
	}
	if !m.Data.IsReply() {
		return false
	}
	id, ok := m.Data.ListenerID()
	if !ok {
		return false
	}

	res := Result{Data: m.Data.Data}
	if !m.Data.Success {
		res = Result{Err: transportError(m.Data.Text())}
	}
	if !t.registry.Settle(id, res) {
		t.Log().Debugf("Reply for unknown request %d", id)
		return false
	}
	return true
}

// set stores f unless the slot was torn down already, in which case f is
// closed right away.
func (r *frameRef) set(f host.Frame) bool {
	r.mutex.Lock()
	if r.closed {
		r.mutex.Unlock()
		closeFrame(f)
		return false
	}
	r.frame = f
	r.mutex.Unlock()
	return true
}

func (r *frameRef) close() {
	r.mutex.Lock()
	f := r.frame
	r.closed = true
	r.frame = nil
	r.mutex.Unlock()
	if f != nil {
		closeFrame(f)
	}
}

func closeFrame(f host.Frame) {
	if err := f.Close(); err != nil {
		log.Debugf("Closing frame: %v", err)
	}
}
