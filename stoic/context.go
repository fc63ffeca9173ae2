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

// Package stoic ties transport, authorization and session persistence of the
// remote signer together. A Context is created once per process and routes
// all inbound messages of its host.
package stoic

import (
	"context"
	"crypto/rand"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"perun.network/go-perun/log"

	"perun.network/icp-wallet-connector/auth"
	"perun.network/icp-wallet-connector/channel"
	"perun.network/icp-wallet-connector/host"
	"perun.network/icp-wallet-connector/identity"
	"perun.network/icp-wallet-connector/session"
)

// DefaultOrigin is the origin of the Stoic wallet.
const DefaultOrigin = "https://www.stoicwallet.com"

type (
	Context struct {
		log.Embedding

		origin    string
		host      host.Host
		store     *session.Store
		transport *channel.Transport
		flow      *auth.Flow

		mutex   sync.Mutex
		current *identity.Remote
	}

	options struct {
		rng     io.Reader
		timeout time.Duration
	}

	// Option configures a Context.
	Option func(*options)
)

// WithRand sets the randomness used for client keys.
func WithRand(rng io.Reader) Option {
	return func(o *options) { o.rng = rng }
}

// WithSignTimeout bounds every request to the signer. Zero means no bound.
func WithSignTimeout(d time.Duration) Option {
	return func(o *options) { o.timeout = d }
}

// NewContext creates the context for the signer at origin. An empty origin
// selects DefaultOrigin.
func NewContext(origin string, h host.Host, store *session.Store, opts ...Option) (*Context, error) {
	if origin == "" {
		origin = DefaultOrigin
	}
	normalized, err := host.Origin(origin)
	if err != nil {
		return nil, err
	}
	if normalized != strings.TrimSuffix(origin, "/") {
		return nil, errors.WithMessagef(host.ErrInvalidURL, "%q is not an origin", origin)
	}

	o := options{rng: rand.Reader}
	for _, opt := range opts {
		opt(&o)
	}
	return &Context{
		Embedding: log.MakeEmbedding(log.Default()),
		origin:    normalized,
		host:      h,
		store:     store,
		transport: channel.NewTransport(normalized, h, channel.WithTimeout(o.timeout)),
		flow:      auth.NewFlow(normalized, h, store, o.rng),
	}, nil
}

func (c *Context) Origin() string {
	return c.origin
}

func (c *Context) Transport() *channel.Transport {
	return c.transport
}

func (c *Context) Flow() *auth.Flow {
	return c.flow
}

// Identity returns the connected identity or nil.
func (c *Context) Identity() *identity.Remote {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.current
}

// Run routes inbound messages until ctx is done. Messages published before
// Run subscribed are lost, use Start to route in the background.
func (c *Context) Run(ctx context.Context) error {
	msgs, unsub := c.host.Subscribe()
	defer unsub()
	return c.loop(ctx, msgs)
}

// Start subscribes to the host and routes inbound messages in the background
// until ctx is done. Every message published after Start returned is routed.
// The returned channel yields the result of the loop once it ended.
func (c *Context) Start(ctx context.Context) <-chan error {
	msgs, unsub := c.host.Subscribe()
	done := make(chan error, 1)
	go func() {
		defer unsub()
		done <- c.loop(ctx, msgs)
	}()
	return done
}

func (c *Context) loop(ctx context.Context, msgs <-chan host.Message) error {
	c.Log().Debugf("Dispatching messages of %s", c.origin)
	for {
		select {
		case m := <-msgs:
			c.dispatch(ctx, m)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (c *Context) dispatch(ctx context.Context, m host.Message) {
	if m.Origin != c.origin {
		c.Log().Tracef("Dropping message from %s", m.Origin)
		return
	}
	if m.Data.IsReply() {
		c.transport.Deliver(m)
		return
	}
	c.flow.Handle(ctx, m)
}

// Connect returns the identity of the stored session if the signer still
// accepts it, otherwise it runs the interactive authorization.
func (c *Context) Connect(ctx context.Context) (*identity.Remote, error) {
	r, err := c.Load(ctx)
	if err == nil {
		return r, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}
	c.Log().Debugf("No usable session: %v", err)

	cred, err := c.flow.Begin(ctx)
	if err != nil {
		return nil, err
	}
	return c.use(cred)
}

// Load restores the stored session and validates it with the signer.
func (c *Context) Load(ctx context.Context) (*identity.Remote, error) {
	cred, err := c.store.Load(ctx)
	if err != nil {
		return nil, err
	}
	r, err := identity.NewRemote(cred, c.transport)
	if err != nil {
		c.Log().Warnf("Stored session unusable: %v", err)
		return nil, session.ErrNoSession
	}
	if _, err := r.Accounts(ctx); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		c.Log().Warnf("Stored session rejected by signer: %v", err)
		return nil, errors.WithMessage(session.ErrNoSession, err.Error())
	}

	c.mutex.Lock()
	c.current = r
	c.mutex.Unlock()
	return r, nil
}

func (c *Context) use(cred *session.Credential) (*identity.Remote, error) {
	r, err := identity.NewRemote(cred, c.transport)
	if err != nil {
		return nil, err
	}
	c.mutex.Lock()
	c.current = r
	c.mutex.Unlock()
	return r, nil
}

// Disconnect forgets the session. It does not fail for missing sessions.
func (c *Context) Disconnect(ctx context.Context) error {
	c.mutex.Lock()
	c.current = nil
	c.mutex.Unlock()
	return c.store.Clear(ctx)
}
