// SPDX-License-Identifier: Apache-2.0

package identity

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"strconv"
	"time"

	"github.com/aviate-labs/agent-go/principal"
	"github.com/pkg/errors"
)

// ErrInvalidChain is returned for delegation chains that do not decode.
var ErrInvalidChain = errors.New("invalid delegation chain")

type (
	// Delegation allows pubkey to sign on behalf of the delegating key until
	// the expiration, optionally restricted to some canisters.
	Delegation struct {
		PubKey     []byte
		Expiration uint64 // nanoseconds since the epoch
		Targets    []principal.Principal
	}

	SignedDelegation struct {
		Delegation Delegation
		Signature  []byte
	}

	// DelegationChain links the root PublicKey to the session key of the
	// last delegation.
	DelegationChain struct {
		PublicKey   []byte
		Delegations []SignedDelegation
	}

	jsonDelegation struct {
		PubKey     string   `json:"pubkey"`
		Expiration string   `json:"expiration"`
		Targets    []string `json:"targets,omitempty"`
	}

	jsonSignedDelegation struct {
		Delegation jsonDelegation `json:"delegation"`
		Signature  string         `json:"signature"`
	}

	jsonChain struct {
		PublicKey   string                 `json:"publicKey"`
		Delegations []jsonSignedDelegation `json:"delegations"`
	}
)

// ExpiresAt returns the expiration as time.
func (d Delegation) ExpiresAt() time.Time {
	return time.Unix(0, int64(d.Expiration))
}

// ParseDelegationChain decodes a chain. It accepts the chain object itself
// or a JSON string containing it.
func ParseDelegationChain(data []byte) (*DelegationChain, error) {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var inner string
		if err := json.Unmarshal(data, &inner); err != nil {
			return nil, errors.Wrap(ErrInvalidChain, err.Error())
		}
		data = []byte(inner)
	}
	var c DelegationChain
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c DelegationChain) MarshalJSON() ([]byte, error) {
	jc := jsonChain{
		PublicKey:   hex.EncodeToString(c.PublicKey),
		Delegations: make([]jsonSignedDelegation, len(c.Delegations)),
	}
	for i, sd := range c.Delegations {
		jd := jsonDelegation{
			PubKey:     hex.EncodeToString(sd.Delegation.PubKey),
			Expiration: strconv.FormatUint(sd.Delegation.Expiration, 16),
		}
		for _, t := range sd.Delegation.Targets {
			jd.Targets = append(jd.Targets, hex.EncodeToString(t.Raw))
		}
		jc.Delegations[i] = jsonSignedDelegation{Delegation: jd, Signature: hex.EncodeToString(sd.Signature)}
	}
	return json.Marshal(jc)
}

func (c *DelegationChain) UnmarshalJSON(data []byte) error {
	var jc jsonChain
	if err := json.Unmarshal(data, &jc); err != nil {
		return errors.Wrap(ErrInvalidChain, err.Error())
	}
	pub, err := hex.DecodeString(jc.PublicKey)
	if err != nil || len(pub) == 0 {
		return errors.WithMessage(ErrInvalidChain, "public key")
	}

	dels := make([]SignedDelegation, len(jc.Delegations))
	for i, jsd := range jc.Delegations {
		var sd SignedDelegation
		if sd.Delegation.PubKey, err = hex.DecodeString(jsd.Delegation.PubKey); err != nil {
			return errors.WithMessagef(ErrInvalidChain, "delegation %d pubkey", i)
		}
		if sd.Delegation.Expiration, err = strconv.ParseUint(jsd.Delegation.Expiration, 16, 64); err != nil {
			return errors.WithMessagef(ErrInvalidChain, "delegation %d expiration", i)
		}
		for _, t := range jsd.Delegation.Targets {
			raw, err := hex.DecodeString(t)
			if err != nil {
				return errors.WithMessagef(ErrInvalidChain, "delegation %d target", i)
			}
			sd.Delegation.Targets = append(sd.Delegation.Targets, principal.Principal{Raw: raw})
		}
		if sd.Signature, err = hex.DecodeString(jsd.Signature); err != nil {
			return errors.WithMessagef(ErrInvalidChain, "delegation %d signature", i)
		}
		dels[i] = sd
	}
	c.PublicKey, c.Delegations = pub, dels
	return nil
}
