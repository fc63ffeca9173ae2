// SPDX-License-Identifier: Apache-2.0

package envelope

import (
	"bytes"
	"time"

	"github.com/aviate-labs/agent-go/principal"
	"github.com/pkg/errors"

	"perun.network/icp-wallet-connector/identity"
)

var (
	ErrInvalidSignature  = errors.New("invalid sender signature")
	ErrInvalidDelegation = errors.New("invalid delegation")
	ErrSenderMismatch    = errors.New("sender does not match public key")
)

// Verify checks that the envelope was signed by its sender at time now. Only
// Ed25519 keys are supported.
func Verify(e *Envelope, now time.Time) error {
	sender := principal.NewSelfAuthenticating(e.SenderPubKey)
	if !bytes.Equal(sender.Raw, e.Content.Sender.Raw) {
		return errors.WithMessagef(ErrSenderMismatch, "%s", e.Content.Sender)
	}

	key := e.SenderPubKey
	for i, sd := range e.SenderDelegation {
		msg, err := DelegationSignedBytes(sd.Delegation)
		if err != nil {
			return err
		}
		if !identity.VerifySignature(key, msg, sd.Signature) {
			return errors.WithMessagef(ErrInvalidDelegation, "delegation %d: bad signature", i)
		}
		if !now.Before(sd.Delegation.ExpiresAt()) {
			return errors.WithMessagef(ErrInvalidDelegation, "delegation %d: expired", i)
		}
		if sd.Delegation.Targets != nil && !targets(sd.Delegation.Targets, e.Content.CanisterID) {
			return errors.WithMessagef(ErrInvalidDelegation, "delegation %d: canister not targeted", i)
		}
		key = sd.Delegation.PubKey
	}

	id, err := e.Content.ID()
	if err != nil {
		return err
	}
	if !identity.VerifySignature(key, SignedBytes(id), e.SenderSig) {
		return ErrInvalidSignature
	}
	return nil
}

func targets(ts []principal.Principal, canister principal.Principal) bool {
	for _, t := range ts {
		if bytes.Equal(t.Raw, canister.Raw) {
			return true
		}
	}
	return false
}

func principalOf(raw []byte) principal.Principal {
	return principal.Principal{Raw: raw}
}
