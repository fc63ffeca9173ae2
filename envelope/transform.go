// SPDX-License-Identifier: Apache-2.0

package envelope

import (
	"context"

	"github.com/pkg/errors"
	"perun.network/go-perun/log"

	"perun.network/icp-wallet-connector/identity"
	"perun.network/icp-wallet-connector/wire"
)

type (
	// Signer signs request ids on behalf of a principal.
	Signer interface {
		Sign(ctx context.Context, data []byte) (*identity.SignResult, error)
		PublicKey() identity.PublicKey
	}

	// Request is an unsigned request to an endpoint.
	Request struct {
		Endpoint string
		Body     Content
	}

	// SignedRequest is a request whose body was wrapped into an envelope.
	SignedRequest struct {
		Endpoint string
		Envelope *Envelope
	}

	// Transformer signs outgoing requests.
	Transformer struct {
		log.Embedding
		signer Signer
	}
)

func NewTransformer(s Signer) *Transformer {
	return &Transformer{
		Embedding: log.MakeEmbedding(log.Default()),
		signer:    s,
	}
}

// Transform signs req. Delegation identities attach the chain returned by the
// signer, all others their own DER key.
func (t *Transformer) Transform(ctx context.Context, req Request) (*SignedRequest, error) {
	id, err := req.Body.ID()
	if err != nil {
		return nil, errors.WithMessage(err, "computing request id")
	}
	t.Log().Debugf("Signing request %x to %s", id, req.Endpoint)

	res, err := t.signer.Sign(ctx, SignedBytes(id))
	if err != nil {
		return nil, errors.WithMessage(err, "signing request")
	}

	env := &Envelope{Content: req.Body, SenderSig: res.Signed}
	pub := t.signer.PublicKey()
	if pub.Type() == wire.KeyTypeDelegation {
		if res.Chain == nil {
			return nil, errors.WithMessage(identity.ErrInvalidChain, "no chain for delegation identity")
		}
		env.SenderPubKey = res.Chain.PublicKey
		env.SenderDelegation = res.Chain.Delegations
	} else {
		env.SenderPubKey = pub.DER()
	}
	return &SignedRequest{Endpoint: req.Endpoint, Envelope: env}, nil
}
