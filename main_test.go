// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bytes"
	"encoding/hex"
	"io"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/stretchr/testify/require"
	ptest "polycry.pt/poly-go/test"

	ctest "perun.network/icp-wallet-connector/channel/test"
	"perun.network/icp-wallet-connector/client"
	"perun.network/icp-wallet-connector/host"
	"perun.network/icp-wallet-connector/host/memhost"
	"perun.network/icp-wallet-connector/identity"
	"perun.network/icp-wallet-connector/setup"
	"perun.network/icp-wallet-connector/wire"
)

var signatureLine = regexp.MustCompile(`signature: ([0-9a-f]+)\n`)

type cliEnv struct {
	t         *testing.T
	host      *memhost.Host
	signer    *ctest.RemoteSigner
	storePath string
}

func newCLIEnv(t *testing.T, keyType wire.KeyType) *cliEnv {
	t.Helper()
	h := memhost.New()
	signer := ctest.NewRemoteSigner(ptest.Prng(t), keyType)
	signer.Install(h)
	return &cliEnv{
		t:         t,
		host:      h,
		signer:    signer,
		storePath: filepath.Join(t.TempDir(), "session"),
	}
}

func (e *cliEnv) execute(args ...string) (string, error) {
	cmd := newRootCmd(func(*setup.Config, io.Writer) host.Host { return e.host })
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(append(args, "--origin", e.signer.Origin, "--store-path", e.storePath, "--log-level", "error"))
	err := cmd.Execute()
	return out.String(), err
}

func (e *cliEnv) mustExecute(args ...string) string {
	e.t.Helper()
	out, err := e.execute(args...)
	require.NoError(e.t, err)
	return out
}

func TestCLI_SessionLifecycle(t *testing.T) {
	e := newCLIEnv(t, wire.KeyTypeStandard)
	principal := e.signer.Principal().Encode()

	require.Contains(t, e.mustExecute("whoami"), "not connected")
	require.Zero(t, e.host.WindowsOpened(), "whoami must not authorize")

	out := e.mustExecute("connect")
	require.Contains(t, out, "principal: "+principal)
	require.Contains(t, out, "wallet:    StoicWallet")
	require.Equal(t, 1, e.host.WindowsOpened())

	// The session survives the process and is validated, not re-authorized.
	require.Contains(t, e.mustExecute("whoami"), principal)

	msg := []byte("hello")
	out = e.mustExecute("sign", "--hex", hex.EncodeToString(msg))
	m := signatureLine.FindStringSubmatch(out)
	require.Len(t, m, 2, out)
	sig, err := hex.DecodeString(m[1])
	require.NoError(t, err)
	require.True(t, identity.VerifySignature(e.signer.PublicKeyDER(), msg, sig))
	require.Equal(t, 1, e.host.WindowsOpened())

	require.Contains(t, e.mustExecute("disconnect"), "disconnected")
	require.Contains(t, e.mustExecute("whoami"), "not connected")
}

func TestCLI_SignDelegation(t *testing.T) {
	e := newCLIEnv(t, wire.KeyTypeDelegation)

	out := e.mustExecute("sign", "accounts")
	require.Regexp(t, signatureLine, out)
	require.Contains(t, out, "chain:")
	require.Equal(t, 1, e.host.WindowsOpened())
}

func TestCLI_RevokedSessionReauthorizes(t *testing.T) {
	e := newCLIEnv(t, wire.KeyTypeStandard)
	e.mustExecute("connect")
	e.signer.Revoke()

	require.Contains(t, e.mustExecute("whoami"), "not connected")
	e.mustExecute("connect")
	require.Equal(t, 2, e.host.WindowsOpened())
}

func TestCLI_Errors(t *testing.T) {
	t.Run("rejected", func(t *testing.T) {
		e := newCLIEnv(t, wire.KeyTypeStandard)
		e.signer.SetDecision(ctest.Reject)
		_, err := e.execute("connect")
		require.True(t, client.IsKind(err, client.KindAuthorizationRejected), err)
	})

	t.Run("unknown wallet", func(t *testing.T) {
		e := newCLIEnv(t, wire.KeyTypeStandard)
		_, err := e.execute("connect", "--wallet", "Paper")
		require.Error(t, err)
		require.Zero(t, e.host.WindowsOpened())
	})

	t.Run("extension not installed", func(t *testing.T) {
		e := newCLIEnv(t, wire.KeyTypeStandard)
		_, err := e.execute("connect", "--wallet", "plugwallet")
		require.True(t, client.IsKind(err, client.KindProviderNotInstalled), err)
	})

	t.Run("invalid config", func(t *testing.T) {
		e := newCLIEnv(t, wire.KeyTypeStandard)
		_, err := e.execute("whoami", "--ic-host", "ic0.app")
		require.ErrorIs(t, err, setup.ErrInvalidConfig)
	})

	t.Run("bad hex", func(t *testing.T) {
		e := newCLIEnv(t, wire.KeyTypeStandard)
		_, err := e.execute("sign", "--hex", "zz")
		require.Error(t, err)
		require.Zero(t, e.host.WindowsOpened())
	})
}
