// SPDX-License-Identifier: Apache-2.0

package auth_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"perun.network/icp-wallet-connector/auth"
	ctest "perun.network/icp-wallet-connector/channel/test"
	"perun.network/icp-wallet-connector/host"
	"perun.network/icp-wallet-connector/host/memhost"
	"perun.network/icp-wallet-connector/session"
	"perun.network/icp-wallet-connector/wallet"
	"perun.network/icp-wallet-connector/wire"
)

func timeout(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestConfirm(t *testing.T) {
	s := ctest.NewSetup(t, wire.KeyTypeStandard)
	ctx := timeout(t)
	require.Equal(t, auth.Idle, s.Flow.State())

	cred, err := s.Flow.Begin(ctx)
	require.NoError(t, err)
	require.Equal(t, auth.Complete, s.Flow.State())
	require.Equal(t, s.Signer.Principal().Encode(), cred.Principal)
	require.Equal(t, wire.KeyMaterial(s.Signer.PublicKeyDER()), cred.Key)
	require.Equal(t, wire.KeyTypeStandard, cred.Type)

	acc, err := cred.Account()
	require.NoError(t, err)
	require.Equal(t, cred.APIKey, acc.APIKey())
	addr, err := wallet.ParseAddress(cred.APIKey)
	require.NoError(t, err)
	require.True(t, addr.Equal(acc.Address()))

	stored, err := s.Store.Load(ctx)
	require.NoError(t, err)
	require.Equal(t, cred, stored)

	require.Equal(t, 1, s.Host.WindowsOpened())
	require.Equal(t, 0, s.Host.Live())
}

func TestReject(t *testing.T) {
	s := ctest.NewSetup(t, wire.KeyTypeStandard)
	s.Signer.SetDecision(ctest.Reject)
	ctx := timeout(t)

	_, err := s.Flow.Begin(ctx)
	require.ErrorIs(t, err, auth.ErrAuthorizationRejected)
	require.Equal(t, "Authorization Rejected", err.Error())
	require.Equal(t, auth.Rejected, s.Flow.State())

	_, err = s.Store.Load(ctx)
	require.ErrorIs(t, err, session.ErrNoSession)
	require.Equal(t, 0, s.Host.Live())

	// A later attempt opens a new window.
	s.Signer.SetDecision(ctest.Confirm)
	_, err = s.Flow.Begin(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, s.Host.WindowsOpened())
}

func TestConcurrentBeginSharesWindow(t *testing.T) {
	s := ctest.NewSetup(t, wire.KeyTypeStandard)
	s.Signer.SetDecision(ctest.Ignore)
	ctx := timeout(t)

	const n = 4
	creds := make([]*session.Credential, n)
	errs := make([]error, n)
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()
			creds[i], errs[i] = s.Flow.Begin(ctx)
		}(i)
	}

	require.Eventually(t, func() bool {
		return s.Flow.State() == auth.AwaitingConfirmation
	}, time.Second, 10*time.Millisecond)
	require.Equal(t, 1, s.Host.WindowsOpened())

	// The user confirms in the already open window.
	s.Host.Post(s.Signer.Origin, wire.Message{
		Action:    wire.ActionConfirmAuthorization,
		Principal: s.Signer.Principal().Encode(),
		Key:       s.Signer.PublicKeyDER(),
		Type:      wire.KeyTypeStandard,
	})
	wg.Wait()

	require.Equal(t, 1, s.Host.WindowsOpened())
	for i := range creds {
		require.NoError(t, errs[i])
		require.Equal(t, creds[0], creds[i])
	}
}

func TestForeignOriginCannotConfirm(t *testing.T) {
	s := ctest.NewSetup(t, wire.KeyTypeStandard)
	s.Signer.SetDecision(ctest.Ignore)
	ctx := timeout(t)

	confirm := wire.Message{
		Action:    wire.ActionConfirmAuthorization,
		Principal: s.Signer.Principal().Encode(),
		Type:      wire.KeyTypeStandard,
	}
	errc := make(chan error, 1)
	go func() {
		_, err := s.Flow.Begin(ctx)
		errc <- err
	}()
	require.Eventually(t, func() bool {
		return s.Flow.State() == auth.AwaitingConfirmation
	}, time.Second, 10*time.Millisecond)

	require.False(t, s.Flow.Handle(ctx, host.Message{Origin: "https://evil.example", Data: confirm}))
	require.Equal(t, auth.AwaitingConfirmation, s.Flow.State())

	require.True(t, s.Flow.Handle(ctx, host.Message{Origin: s.Signer.Origin, Data: confirm}))
	require.NoError(t, <-errc)
}

func TestInvalidPrincipal(t *testing.T) {
	s := ctest.NewSetup(t, wire.KeyTypeStandard)
	s.Signer.SetDecision(ctest.Ignore)
	ctx := timeout(t)

	errc := make(chan error, 1)
	go func() {
		_, err := s.Flow.Begin(ctx)
		errc <- err
	}()
	require.Eventually(t, func() bool {
		return s.Flow.State() == auth.AwaitingConfirmation
	}, time.Second, 10*time.Millisecond)

	s.Host.Post(s.Signer.Origin, wire.Message{Action: wire.ActionConfirmAuthorization, Principal: "not a principal"})
	require.Error(t, <-errc)
	require.Equal(t, auth.Rejected, s.Flow.State())
}

func TestUnreachableSigner(t *testing.T) {
	s := ctest.NewSetup(t, wire.KeyTypeStandard)
	flow := auth.NewFlow("https://nowhere.example", s.Host, s.Store, s.Rng)

	_, err := flow.Begin(timeout(t))
	require.Error(t, err)
	require.Equal(t, auth.Idle, flow.State())
}

// silentPage never announces itself.
type silentPage struct{}

func (silentPage) Load(*memhost.Surface)                  {}
func (silentPage) Receive(*memhost.Surface, wire.Message) {}

func TestConfirmationNeedsInitiate(t *testing.T) {
	s := ctest.NewSetup(t, wire.KeyTypeStandard)
	const origin = "https://silent.example"
	s.Host.Route(origin, silentPage{})
	flow := auth.NewFlow(origin, s.Host, s.Store, s.Rng)
	ctx := timeout(t)

	errc := make(chan error, 1)
	go func() {
		_, err := flow.Begin(ctx)
		errc <- err
	}()
	require.Eventually(t, func() bool {
		return flow.State() == auth.AwaitingInitiate
	}, time.Second, 10*time.Millisecond)

	confirm := host.Message{Origin: origin, Data: wire.Message{
		Action:    wire.ActionConfirmAuthorization,
		Principal: s.Signer.Principal().Encode(),
		Key:       s.Signer.PublicKeyDER(),
		Type:      wire.KeyTypeStandard,
	}}
	reject := host.Message{Origin: origin, Data: wire.Message{Action: wire.ActionRejectAuthorization}}
	require.False(t, flow.Handle(ctx, confirm))
	require.False(t, flow.Handle(ctx, reject))
	require.Equal(t, auth.AwaitingInitiate, flow.State())

	initiate := host.Message{Origin: origin, Data: wire.Message{Action: wire.ActionInitiateConnect}}
	require.True(t, flow.Handle(ctx, initiate))
	require.Equal(t, auth.AwaitingConfirmation, flow.State())
	require.True(t, flow.Handle(ctx, confirm))
	require.NoError(t, <-errc)
	require.Equal(t, auth.Complete, flow.State())
}
