// SPDX-License-Identifier: Apache-2.0

package stoic_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	ptest "polycry.pt/poly-go/test"

	ctest "perun.network/icp-wallet-connector/channel/test"
	"perun.network/icp-wallet-connector/host"
	"perun.network/icp-wallet-connector/host/memhost"
	"perun.network/icp-wallet-connector/identity"
	"perun.network/icp-wallet-connector/session"
	"perun.network/icp-wallet-connector/stoic"
	"perun.network/icp-wallet-connector/wire"
)

type env struct {
	host   *memhost.Host
	signer *ctest.RemoteSigner
	store  *session.Store
	ctx    context.Context
}

func newEnv(t *testing.T) *env {
	t.Helper()
	rng := ptest.Prng(t)
	h := memhost.New()
	signer := ctest.NewRemoteSigner(rng, wire.KeyTypeStandard)
	signer.Install(h)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return &env{host: h, signer: signer, store: session.NewStore(session.NewMemoryBackend()), ctx: ctx}
}

func (e *env) start(t *testing.T) *stoic.Context {
	t.Helper()
	c, err := stoic.NewContext(e.signer.Origin, e.host, e.store, stoic.WithRand(ptest.Prng(t)))
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(e.ctx)
	done := c.Start(ctx)
	t.Cleanup(func() {
		cancel()
		require.ErrorIs(t, <-done, context.Canceled)
	})
	return c
}

func TestConnectAndReload(t *testing.T) {
	e := newEnv(t)
	c := e.start(t)

	_, err := c.Load(e.ctx)
	require.ErrorIs(t, err, session.ErrNoSession)

	r, err := c.Connect(e.ctx)
	require.NoError(t, err)
	require.Equal(t, e.signer.Principal(), r.Principal())
	require.Equal(t, r, c.Identity())
	require.Equal(t, 1, e.host.WindowsOpened())

	// A second process finds the stored session and does not log in again.
	c2 := e.start(t)
	r2, err := c2.Connect(e.ctx)
	require.NoError(t, err)
	require.Equal(t, r.Principal(), r2.Principal())
	require.Equal(t, 1, e.host.WindowsOpened())

	res, err := r2.Sign(e.ctx, []byte("hello"))
	require.NoError(t, err)
	require.True(t, identity.VerifySignature(r2.PublicKey().DER(), []byte("hello"), res.Signed))
}

func TestConnectRightAfterStart(t *testing.T) {
	// The signer announces itself as soon as the window opens, the context
	// must already listen then.
	for i := 0; i < 20; i++ {
		e := newEnv(t)
		c := e.start(t)
		r, err := c.Connect(e.ctx)
		require.NoError(t, err)
		require.Equal(t, e.signer.Principal(), r.Principal())
	}
}

func TestStartStops(t *testing.T) {
	e := newEnv(t)
	c, err := stoic.NewContext(e.signer.Origin, e.host, e.store)
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(e.ctx)
	done := c.Start(ctx)
	cancel()
	require.ErrorIs(t, <-done, context.Canceled)
}

func TestRevokedSessionLogsInAgain(t *testing.T) {
	e := newEnv(t)
	c := e.start(t)

	_, err := c.Connect(e.ctx)
	require.NoError(t, err)
	before, err := e.store.Load(e.ctx)
	require.NoError(t, err)

	e.signer.Revoke()
	_, err = c.Load(e.ctx)
	require.ErrorIs(t, err, session.ErrNoSession)

	_, err = c.Connect(e.ctx)
	require.NoError(t, err)
	require.Equal(t, 2, e.host.WindowsOpened())
	after, err := e.store.Load(e.ctx)
	require.NoError(t, err)
	require.NotEqual(t, before.APIKey, after.APIKey)
}

func TestDisconnect(t *testing.T) {
	e := newEnv(t)
	c := e.start(t)

	require.NoError(t, c.Disconnect(e.ctx))
	_, err := c.Connect(e.ctx)
	require.NoError(t, err)

	require.NoError(t, c.Disconnect(e.ctx))
	require.Nil(t, c.Identity())
	_, err = e.store.Load(e.ctx)
	require.ErrorIs(t, err, session.ErrNoSession)
}

func TestForeignRepliesAreDropped(t *testing.T) {
	e := newEnv(t)
	c := e.start(t)
	r, err := c.Connect(e.ctx)
	require.NoError(t, err)

	e.signer.Hold()
	errc := make(chan error, 1)
	go func() {
		_, err := r.Sign(e.ctx, []byte("x"))
		errc <- err
	}()
	require.Eventually(t, func() bool { return e.signer.Held() == 1 }, time.Second, 10*time.Millisecond)

	id := uint64(0)
	e.host.Post("https://evil.example", wire.Message{
		Target:   wire.TargetExtension,
		Listener: &id,
		Success:  true,
		Data:     json.RawMessage(`"{\"signed\":\"00\"}"`),
	})
	require.Equal(t, 1, c.Transport().Pending())

	e.signer.Release()
	require.NoError(t, <-errc)
}

func TestNewContextOrigin(t *testing.T) {
	h := memhost.New()
	store := session.NewStore(session.NewMemoryBackend())

	c, err := stoic.NewContext("", h, store)
	require.NoError(t, err)
	require.Equal(t, stoic.DefaultOrigin, c.Origin())

	c, err = stoic.NewContext("https://www.stoicwallet.com/", h, store)
	require.NoError(t, err)
	require.Equal(t, stoic.DefaultOrigin, c.Origin())

	_, err = stoic.NewContext("https://www.stoicwallet.com/path", h, store)
	require.ErrorIs(t, err, host.ErrInvalidURL)
}
