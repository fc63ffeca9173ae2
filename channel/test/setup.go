// SPDX-License-Identifier: Apache-2.0

package test

import (
	"context"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
	pkgtest "polycry.pt/poly-go/test"

	"perun.network/icp-wallet-connector/auth"
	"perun.network/icp-wallet-connector/channel"
	"perun.network/icp-wallet-connector/host/memhost"
	"perun.network/icp-wallet-connector/session"
	wtest "perun.network/icp-wallet-connector/wallet/test"
	"perun.network/icp-wallet-connector/wire"
)

// Setup wires a transport and an authorization flow to a RemoteSigner served
// in memory.
type Setup struct {
	Rng       *rand.Rand
	Host      *memhost.Host
	Signer    *RemoteSigner
	Store     *session.Store
	Transport *channel.Transport
	Flow      *auth.Flow
}

// NewSetup returns a running setup. Its dispatcher stops when the test ends.
func NewSetup(t *testing.T, keyType wire.KeyType, opts ...channel.Option) *Setup {
	t.Helper()
	rng := pkgtest.Prng(t)
	h := memhost.New()
	signer := NewRemoteSigner(rng, keyType)
	signer.Install(h)
	store := session.NewStore(session.NewMemoryBackend())

	s := &Setup{
		Rng:       rng,
		Host:      h,
		Signer:    signer,
		Store:     store,
		Transport: channel.NewTransport(signer.Origin, h, opts...),
		Flow:      auth.NewFlow(signer.Origin, h, store, rng),
	}

	ctx, cancel := context.WithCancel(context.Background())
	msgs, unsub := h.Subscribe()
	done := make(chan struct{})
	go func() {
		defer close(done)
		defer unsub()
		for {
			select {
			case m := <-msgs:
				if m.Data.IsReply() {
					s.Transport.Deliver(m)
				} else {
					s.Flow.Handle(ctx, m)
				}
			case <-ctx.Done():
				return
			}
		}
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return s
}

// Credential returns a credential whose client key the signer already trusts.
func (s *Setup) Credential(t *testing.T) *session.Credential {
	t.Helper()
	acc := wtest.NewRandomAccount(s.Rng)
	s.Signer.Authorize(acc.APIKey())

	c := session.NewCredential(acc)
	c.Confirm(s.Signer.Principal().Encode(), s.Signer.PublicKeyDER(), s.Signer.keyType)
	require.NotEmpty(t, c.Principal)
	return c
}
