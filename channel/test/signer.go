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

// Package test provides a scripted remote signer to be served by memhost.
package test

import (
	"encoding/hex"
	"encoding/json"
	"io"
	"sync"
	"time"

	"github.com/aviate-labs/agent-go/principal"
	ed "github.com/oasisprotocol/curve25519-voi/primitives/ed25519"

	"perun.network/icp-wallet-connector/envelope"
	"perun.network/icp-wallet-connector/host/memhost"
	"perun.network/icp-wallet-connector/identity"
	"perun.network/icp-wallet-connector/wallet"
	"perun.network/icp-wallet-connector/wire"
)

// DefaultOrigin is the origin a RemoteSigner is served at by default.
const DefaultOrigin = "https://signer.test"

// Decision is how the user answers an authorization request.
type Decision int

const (
	Confirm Decision = iota
	Reject
	Ignore
)

type (
	// RemoteSigner plays the remote side: it answers the login window and
	// signs tunnel requests of authorized client keys.
	RemoteSigner struct {
		Origin string

		mutex      sync.Mutex
		decision   Decision
		keyType    wire.KeyType
		root       ed.PrivateKey
		rootDER    []byte
		session    ed.PrivateKey
		chain      *identity.DelegationChain
		authorized map[string]bool
		requests   []wire.Message
		hold       bool
		held       []heldReply
		inline     bool
	}

	heldReply struct {
		s   *memhost.Surface
		msg wire.Message
	}
)

// NewRemoteSigner creates a signer for a fresh principal. For
// KeyTypeDelegation the principal delegates to a session key for an hour.
func NewRemoteSigner(rng io.Reader, keyType wire.KeyType) *RemoteSigner {
	rootPub, root, err := ed.GenerateKey(rng)
	if err != nil {
		panic(err)
	}
	s := &RemoteSigner{
		Origin:     DefaultOrigin,
		keyType:    keyType,
		root:       root,
		rootDER:    identity.Ed25519DER(rootPub),
		authorized: make(map[string]bool),
		inline:     true,
	}
	if keyType == wire.KeyTypeDelegation {
		sessPub, sess, err := ed.GenerateKey(rng)
		if err != nil {
			panic(err)
		}
		d := identity.Delegation{
			PubKey:     identity.Ed25519DER(sessPub),
			Expiration: uint64(time.Now().Add(time.Hour).UnixNano()),
		}
		msg, err := envelope.DelegationSignedBytes(d)
		if err != nil {
			panic(err)
		}
		s.session = sess
		s.chain = &identity.DelegationChain{
			PublicKey:   s.rootDER,
			Delegations: []identity.SignedDelegation{{Delegation: d, Signature: ed.Sign(root, msg)}},
		}
	}
	return s
}

// Install serves the signer at its origin.
func (s *RemoteSigner) Install(h *memhost.Host) {
	h.Route(s.Origin, s)
}

func (s *RemoteSigner) Principal() principal.Principal {
	return principal.NewSelfAuthenticating(s.rootDER)
}

// PublicKeyDER is the DER key reported on authorization.
func (s *RemoteSigner) PublicKeyDER() []byte {
	return s.rootDER
}

func (s *RemoteSigner) Chain() *identity.DelegationChain {
	return s.chain
}

// SetDecision sets the answer to future authorization requests.
func (s *RemoteSigner) SetDecision(d Decision) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.decision = d
}

// OmitChain makes sign replies leave out the delegation chain.
func (s *RemoteSigner) OmitChain() {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.inline = false
}

// Authorize trusts a client key without the login window.
func (s *RemoteSigner) Authorize(apikey string) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.authorized[apikey] = true
}

// Revoke forgets all client keys.
func (s *RemoteSigner) Revoke() {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.authorized = make(map[string]bool)
}

// Hold queues tunnel replies until Release.
func (s *RemoteSigner) Hold() {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.hold = true
}

// Release sends the queued replies in reverse order and stops holding.
func (s *RemoteSigner) Release() {
	s.mutex.Lock()
	held := s.held
	s.held, s.hold = nil, false
	s.mutex.Unlock()

	for i := len(held) - 1; i >= 0; i-- {
		held[i].s.Reply(held[i].msg)
	}
}

// Held is the number of queued replies.
func (s *RemoteSigner) Held() int {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return len(s.held)
}

// Requests returns all tunnel requests received so far.
func (s *RemoteSigner) Requests() []wire.Message {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return append([]wire.Message(nil), s.requests...)
}

func (s *RemoteSigner) Load(surface *memhost.Surface) {
	if surface.Window {
		surface.Reply(wire.Message{Action: wire.ActionInitiateConnect})
	}
}

func (s *RemoteSigner) Receive(surface *memhost.Surface, msg wire.Message) {
	if surface.Window {
		s.authorize(surface, msg)
		return
	}

	s.mutex.Lock()
	s.requests = append(s.requests, msg)
	s.mutex.Unlock()

	reply := s.handle(msg)
	reply.Target = wire.TargetExtension
	reply.Listener = msg.Listener

	s.mutex.Lock()
	if s.hold {
		s.held = append(s.held, heldReply{surface, reply})
		s.mutex.Unlock()
		return
	}
	s.mutex.Unlock()
	surface.Reply(reply)
}

func (s *RemoteSigner) authorize(surface *memhost.Surface, msg wire.Message) {
	if msg.Action != wire.ActionRequestAuthorization {
		return
	}
	s.mutex.Lock()
	decision := s.decision
	if decision == Confirm {
		s.authorized[msg.APIKey] = true
	}
	s.mutex.Unlock()

	switch decision {
	case Confirm:
		surface.Reply(wire.Message{
			Action:    wire.ActionConfirmAuthorization,
			Principal: s.Principal().Encode(),
			Key:       s.rootDER,
			Type:      s.keyType,
		})
	case Reject:
		surface.Reply(wire.Message{Action: wire.ActionRejectAuthorization})
	case Ignore:
	}
}

func (s *RemoteSigner) handle(msg wire.Message) wire.Message {
	s.mutex.Lock()
	known := s.authorized[msg.APIKey]
	inline := s.inline
	s.mutex.Unlock()
	if !known {
		return failure("Unauthorized app")
	}
	if msg.Principal != s.Principal().Encode() {
		return failure("Unknown principal")
	}
	addr, err := wallet.ParseAddress(msg.APIKey)
	if err != nil {
		return failure("Invalid apikey")
	}
	sig, err := hex.DecodeString(msg.Sig)
	if err != nil {
		return failure("Invalid signature")
	}
	if ok, err := (wallet.Backend{}).VerifySignature([]byte(msg.Payload), sig, &addr); err != nil || !ok {
		return failure("Invalid signature")
	}

	switch msg.Action {
	case wire.ActionAccounts:
		p := s.Principal()
		return success(json.Marshal([]map[string]string{{
			"name":    "Main",
			"address": p.AccountIdentifier(principal.DefaultSubAccount).String(),
		}}))
	case wire.ActionSign:
		data, err := hex.DecodeString(msg.Payload)
		if err != nil {
			return failure("Invalid payload")
		}
		key := s.root
		var chain *identity.DelegationChain
		if s.keyType == wire.KeyTypeDelegation {
			key = s.session
			if inline {
				chain = s.chain
			}
		}
		res := map[string]any{"signed": hex.EncodeToString(ed.Sign(key, data))}
		if chain != nil {
			res["chain"] = chain
		}
		inner, err := json.Marshal(res)
		if err != nil {
			return failure(err.Error())
		}
		// Results are sent as JSON text.
		return success(json.Marshal(string(inner)))
	}
	return failure("Unknown action")
}

func success(data []byte, err error) wire.Message {
	if err != nil {
		return failure(err.Error())
	}
	return wire.Message{Success: true, Data: data}
}

func failure(text string) wire.Message {
	data, _ := json.Marshal(text)
	return wire.Message{Success: false, Data: data}
}
