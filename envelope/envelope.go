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

// Package envelope turns request bodies into authenticated envelopes signed
// by a remote identity.
package envelope

import (
	"github.com/fxamacker/cbor/v2"
	"github.com/pkg/errors"

	"perun.network/icp-wallet-connector/identity"
)

// SelfDescribeTag marks a CBOR value as CBOR.
const SelfDescribeTag = 55799

var (
	requestDomain    = []byte("\x0Aic-request")
	delegationDomain = []byte("\x1Aic-request-auth-delegation")

	encMode cbor.EncMode
)

func init() {
	var err error
	if encMode, err = cbor.CoreDetEncOptions().EncMode(); err != nil {
		panic("logic error: invalid cbor options: " + err.Error())
	}
}

type (
	// Envelope is an authenticated request.
	Envelope struct {
		Content          Content
		SenderPubKey     []byte
		SenderSig        []byte
		SenderDelegation []identity.SignedDelegation
	}

	envelopeCBOR struct {
		Content          Content                `cbor:"content"`
		SenderPubKey     []byte                 `cbor:"sender_pubkey,omitempty"`
		SenderSig        []byte                 `cbor:"sender_sig,omitempty"`
		SenderDelegation []signedDelegationCBOR `cbor:"sender_delegation,omitempty"`
	}

	delegationCBOR struct {
		PubKey     []byte   `cbor:"pubkey"`
		Expiration uint64   `cbor:"expiration"`
		Targets    [][]byte `cbor:"targets,omitempty"`
	}

	signedDelegationCBOR struct {
		Delegation delegationCBOR `cbor:"delegation"`
		Signature  []byte         `cbor:"signature"`
	}
)

// SignedBytes is the message a sender signs for a request id.
func SignedBytes(id RequestID) []byte {
	return append(append([]byte(nil), requestDomain...), id[:]...)
}

// DelegationSignedBytes is the message the delegating key signs.
func DelegationSignedBytes(d identity.Delegation) ([]byte, error) {
	fields := map[string]any{
		"pubkey":     d.PubKey,
		"expiration": d.Expiration,
	}
	if d.Targets != nil {
		targets := make([][]byte, len(d.Targets))
		for i, t := range d.Targets {
			targets[i] = t.Raw
		}
		fields["targets"] = targets
	}
	sum, err := hashOfMap(fields)
	if err != nil {
		return nil, err
	}
	return append(append([]byte(nil), delegationDomain...), sum[:]...), nil
}

// Marshal encodes e as self-described CBOR.
func (e *Envelope) Marshal() ([]byte, error) {
	ec := envelopeCBOR{
		Content:      e.Content,
		SenderPubKey: e.SenderPubKey,
		SenderSig:    e.SenderSig,
	}
	for _, sd := range e.SenderDelegation {
		dc := delegationCBOR{PubKey: sd.Delegation.PubKey, Expiration: sd.Delegation.Expiration}
		for _, t := range sd.Delegation.Targets {
			dc.Targets = append(dc.Targets, t.Raw)
		}
		ec.SenderDelegation = append(ec.SenderDelegation, signedDelegationCBOR{Delegation: dc, Signature: sd.Signature})
	}
	return encMode.Marshal(cbor.Tag{Number: SelfDescribeTag, Content: ec})
}

// Unmarshal decodes an envelope, with or without self-describe tag.
func Unmarshal(data []byte) (*Envelope, error) {
	var tag cbor.RawTag
	if err := cbor.Unmarshal(data, &tag); err == nil {
		if tag.Number != SelfDescribeTag {
			return nil, errors.Errorf("unexpected cbor tag %d", tag.Number)
		}
		data = tag.Content
	}

	var ec envelopeCBOR
	if err := cbor.Unmarshal(data, &ec); err != nil {
		return nil, errors.WithMessage(err, "decoding envelope")
	}
	e := &Envelope{
		Content:      ec.Content,
		SenderPubKey: ec.SenderPubKey,
		SenderSig:    ec.SenderSig,
	}
	for _, sdc := range ec.SenderDelegation {
		sd := identity.SignedDelegation{
			Delegation: identity.Delegation{PubKey: sdc.Delegation.PubKey, Expiration: sdc.Delegation.Expiration},
			Signature:  sdc.Signature,
		}
		for _, t := range sdc.Delegation.Targets {
			sd.Delegation.Targets = append(sd.Delegation.Targets, principalOf(t))
		}
		e.SenderDelegation = append(e.SenderDelegation, sd)
	}
	return e, nil
}
