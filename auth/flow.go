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

// Package auth runs the interactive authorization with the remote signer.
// At most one authorization is in flight per Flow, concurrent callers share
// its outcome.
package auth

import (
	"context"
	"io"
	"sync"

	"github.com/aviate-labs/agent-go/principal"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"perun.network/go-perun/log"

	"perun.network/icp-wallet-connector/host"
	"perun.network/icp-wallet-connector/session"
	"perun.network/icp-wallet-connector/wallet"
	"perun.network/icp-wallet-connector/wire"
)

const (
	// AuthorizePath is appended to the remote origin to reach the login page.
	AuthorizePath = "?authorizeApp"
	// WindowName is the name of the login window.
	WindowName = "stoic"
)

// ErrAuthorizationRejected is returned when the user declined the request.
var ErrAuthorizationRejected = errors.New("Authorization Rejected") //nolint:stylecheck

// State of a Flow.
type State int

const (
	Idle State = iota
	AwaitingInitiate
	AwaitingConfirmation
	Complete
	Rejected
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case AwaitingInitiate:
		return "awaiting-initiate"
	case AwaitingConfirmation:
		return "awaiting-confirmation"
	case Complete:
		return "complete"
	case Rejected:
		return "rejected"
	}
	return "unknown"
}

type (
	// Flow drives the login window of the remote signer.
	Flow struct {
		log.Embedding

		origin string
		host   host.Host
		store  *session.Store
		rng    io.Reader

		mutex   sync.Mutex
		state   State
		current *attempt
	}

	attempt struct {
		id      uuid.UUID
		window  host.Window
		account *wallet.Account
		cred    *session.Credential
		done    chan struct{}
		err     error
	}
)

func NewFlow(origin string, h host.Host, store *session.Store, rng io.Reader) *Flow {
	return &Flow{
		Embedding: log.MakeEmbedding(log.Default()),
		origin:    origin,
		host:      h,
		store:     store,
		rng:       rng,
	}
}

// State returns the current state.
func (f *Flow) State() State {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	return f.state
}

// Begin authorizes a fresh client key. If an authorization is already in
// flight, Begin waits for it instead of opening another window. A done ctx
// only stops waiting, the authorization itself stays pending.
func (f *Flow) Begin(ctx context.Context) (*session.Credential, error) {
	a, err := f.attempt(ctx)
	if err != nil {
		return nil, err
	}

	select {
	case <-a.done:
		if a.err != nil {
			return nil, a.err
		}
		cred := *a.cred
		return &cred, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (f *Flow) attempt(ctx context.Context) (*attempt, error) {
	f.mutex.Lock()
	defer f.mutex.Unlock()

	if f.current != nil {
		f.Log().Debugf("Joining authorization %s", f.current.id)
		return f.current, nil
	}

	acc, err := wallet.Generate(f.rng)
	if err != nil {
		return nil, err
	}
	w, err := f.host.OpenWindow(ctx, f.origin+AuthorizePath, WindowName)
	if err != nil {
		acc.Clear()
		return nil, errors.WithMessage(err, "opening authorization window")
	}

	a := &attempt{
		id:      uuid.New(),
		window:  w,
		account: acc,
		cred:    session.NewCredential(acc),
		done:    make(chan struct{}),
	}
	f.current = a
	f.state = AwaitingInitiate
	f.Log().Infof("Started authorization %s", a.id)
	return a, nil
}

// Handle processes a message of the login window. It returns false if the
// message is not addressed to a pending authorization. Confirmations and
// rejections only count after the window announced itself and received the
// api key.
func (f *Flow) Handle(ctx context.Context, m host.Message) bool {
	if m.Origin != f.origin {
		return false
	}

	f.mutex.Lock()
	defer f.mutex.Unlock()
	a := f.current
	if a == nil {
		return false
	}

	switch m.Data.Action {
	case wire.ActionInitiateConnect:
		req := wire.Message{Action: wire.ActionRequestAuthorization, APIKey: a.cred.APIKey}
		if err := a.window.Post(req); err != nil {
			f.finish(a, errors.WithMessage(err, "requesting authorization"))
			return true
		}
		f.state = AwaitingConfirmation
	case wire.ActionRejectAuthorization:
		if f.state != AwaitingConfirmation {
			f.Log().Debugf("Ignoring rejection in state %v", f.state)
			return false
		}
		a.account.Clear()
		f.finish(a, ErrAuthorizationRejected)
	case wire.ActionConfirmAuthorization:
		if f.state != AwaitingConfirmation {
			f.Log().Debugf("Ignoring confirmation in state %v", f.state)
			return false
		}
		if _, err := principal.Decode(m.Data.Principal); err != nil {
			f.finish(a, errors.WithMessagef(err, "confirmed principal %q", m.Data.Principal))
			return true
		}
		a.cred.Confirm(m.Data.Principal, m.Data.Key, m.Data.Type)
		f.finish(a, f.store.Save(ctx, a.cred))
	default:
		return false
	}
	return true
}

// finish resolves a and makes room for the next authorization. Must be called
// with the mutex held.
func (f *Flow) finish(a *attempt, err error) {
	a.err = err
	if err != nil {
		f.state = Rejected
		f.Log().Warnf("Authorization %s failed: %v", a.id, err)
	} else {
		f.state = Complete
		f.Log().Infof("Authorization %s confirmed for %s", a.id, a.cred.Principal)
	}
	close(a.done)
	if cerr := a.window.Close(); cerr != nil {
		f.Log().Debugf("Closing authorization window: %v", cerr)
	}
	f.current = nil
}
