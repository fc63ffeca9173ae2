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

// Package identity provides the principal whose key lives with the remote
// signer. Signing requests are authenticated with the local client key.
package identity

import (
	"context"
	"encoding/hex"
	"encoding/json"

	"github.com/aviate-labs/agent-go/principal"
	"github.com/pkg/errors"

	"perun.network/icp-wallet-connector/session"
	"perun.network/icp-wallet-connector/wallet"
	"perun.network/icp-wallet-connector/wire"
)

// ErrMalformedReply is returned if the remote signer answered with data that
// does not decode.
var ErrMalformedReply = errors.New("malformed reply")

type (
	// Transport delivers a request to the remote signer and returns the data
	// of its reply.
	Transport interface {
		Send(ctx context.Context, msg wire.Message) (json.RawMessage, error)
	}

	// Remote is a principal that signs through the remote signer.
	Remote struct {
		principal principal.Principal
		publicKey PublicKey
		transport Transport
		account   *wallet.Account
		apikey    string
		chain     json.RawMessage
	}

	// SignResult is a signature by the remote principal. Chain is set for
	// delegation identities.
	SignResult struct {
		Signed []byte
		Chain  *DelegationChain
	}

	signReply struct {
		Signed string          `json:"signed"`
		Chain  json.RawMessage `json:"chain,omitempty"`
	}
)

// NewRemote builds the identity of a confirmed credential.
func NewRemote(cred *session.Credential, t Transport) (*Remote, error) {
	p, err := principal.Decode(cred.Principal)
	if err != nil {
		return nil, errors.WithMessagef(err, "decoding principal %q", cred.Principal)
	}
	acc, err := cred.Account()
	if err != nil {
		return nil, err
	}
	return &Remote{
		principal: p,
		publicKey: NewPublicKey(cred.Key, cred.Type),
		transport: t,
		account:   acc,
		apikey:    cred.APIKey,
		chain:     cred.Chain,
	}, nil
}

func (r *Remote) Principal() principal.Principal {
	return r.principal
}

func (r *Remote) PublicKey() PublicKey {
	return r.publicKey
}

// Sign asks the remote signer to sign data.
func (r *Remote) Sign(ctx context.Context, data []byte) (*SignResult, error) {
	raw, err := r.request(ctx, wire.ActionSign, hex.EncodeToString(data))
	if err != nil {
		return nil, err
	}

	// The reply is a JSON string holding the JSON result.
	var inner string
	if err := json.Unmarshal(raw, &inner); err == nil {
		raw = json.RawMessage(inner)
	}
	var reply signReply
	if err := json.Unmarshal(raw, &reply); err != nil {
		return nil, errors.Wrap(ErrMalformedReply, err.Error())
	}
	signed, err := hex.DecodeString(reply.Signed)
	if err != nil || len(signed) == 0 {
		return nil, errors.WithMessage(ErrMalformedReply, "signature")
	}

	res := &SignResult{Signed: signed}
	if r.publicKey.Type() != wire.KeyTypeDelegation {
		return res, nil
	}
	chain := reply.Chain
	if len(chain) == 0 {
		chain = r.chain
	}
	if len(chain) == 0 {
		return nil, errors.WithMessage(ErrMalformedReply, "delegation identity without chain")
	}
	if res.Chain, err = ParseDelegationChain(chain); err != nil {
		return nil, err
	}
	return res, nil
}

// Accounts lists the accounts of the principal. A successful call proves the
// session is still authorized.
func (r *Remote) Accounts(ctx context.Context) (json.RawMessage, error) {
	return r.request(ctx, wire.ActionAccounts, string(wire.ActionAccounts))
}

func (r *Remote) request(ctx context.Context, action wire.Action, payload string) (json.RawMessage, error) {
	sig, err := r.account.SignData([]byte(payload))
	if err != nil {
		return nil, err
	}
	return r.transport.Send(ctx, wire.Message{
		Target:    wire.TargetTunnel,
		Action:    action,
		Payload:   payload,
		Principal: r.principal.Encode(),
		APIKey:    r.apikey,
		Sig:       hex.EncodeToString(sig),
	})
}
