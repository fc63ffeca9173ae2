// SPDX-License-Identifier: Apache-2.0

package wallet_test

import (
	"bytes"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/require"
	ptest "polycry.pt/poly-go/test"

	"perun.network/icp-wallet-connector/wallet"
)

func TestSignVerifyRoundTrip(t *testing.T) {
	rng := ptest.Prng(t)
	acc, err := wallet.Generate(rng)
	require.NoError(t, err)

	for i := 0; i < 16; i++ {
		msg := make([]byte, rng.Intn(256))
		rng.Read(msg)

		sig, err := acc.SignData(msg)
		require.NoError(t, err)
		require.Len(t, sig, wallet.SigLen)

		ok, err := wallet.Backend{}.VerifySignature(msg, sig, acc.Address())
		require.NoError(t, err)
		require.True(t, ok, "signature must verify")
	}
}

func TestSignAccountsPayload(t *testing.T) {
	acc, err := wallet.Generate(ptest.Prng(t))
	require.NoError(t, err)

	sig, err := acc.SignData([]byte("accounts"))
	require.NoError(t, err)
	require.Len(t, sig, 96)

	addr, err := wallet.ParseAddress(acc.APIKey())
	require.NoError(t, err)
	pub, err := addr.PublicKey()
	require.NoError(t, err)
	require.True(t, wallet.Verify(pub, []byte("accounts"), sig))
	require.False(t, wallet.Verify(pub, []byte("account"), sig))
}

func TestJWKRoundTrip(t *testing.T) {
	acc, err := wallet.Generate(ptest.Prng(t))
	require.NoError(t, err)

	jwk := acc.JWK()
	require.Equal(t, "EC", jwk.Kty)
	require.Equal(t, "P-384", jwk.Crv)

	loaded, err := wallet.AccountFromJWK(jwk)
	require.NoError(t, err)
	require.Equal(t, acc.APIKey(), loaded.APIKey())

	sig, err := loaded.SignData([]byte("payload"))
	require.NoError(t, err)
	ok, err := wallet.Backend{}.VerifySignature([]byte("payload"), sig, acc.Address())
	require.NoError(t, err)
	require.True(t, ok)
}

func TestMalformedJWK(t *testing.T) {
	acc, err := wallet.Generate(ptest.Prng(t))
	require.NoError(t, err)

	wrongCurve := acc.JWK()
	wrongCurve.Crv = "P-256"
	_, err = wallet.AccountFromJWK(wrongCurve)
	require.ErrorIs(t, err, wallet.ErrCryptoFailure)

	badScalar := acc.JWK()
	badScalar.D = "!!"
	_, err = wallet.AccountFromJWK(badScalar)
	require.ErrorIs(t, err, wallet.ErrCryptoFailure)

	other, err := wallet.Generate(ptest.Prng(t, "other"))
	require.NoError(t, err)
	mismatched := acc.JWK()
	mismatched.D = other.JWK().D
	_, err = wallet.AccountFromJWK(mismatched)
	require.ErrorIs(t, err, wallet.ErrCryptoFailure)
}

func TestClearedAccountCannotSign(t *testing.T) {
	acc, err := wallet.Generate(ptest.Prng(t))
	require.NoError(t, err)
	acc.Clear()

	_, err = acc.SignData([]byte("x"))
	require.ErrorIs(t, err, wallet.ErrCryptoFailure)
}

func TestAddress(t *testing.T) {
	rng := ptest.Prng(t)
	a, err := wallet.Generate(rng)
	require.NoError(t, err)
	b, err := wallet.Generate(rng)
	require.NoError(t, err)

	data, err := a.Address().MarshalBinary()
	require.NoError(t, err)
	decoded := wallet.Backend{}.NewAddress()
	require.NoError(t, decoded.UnmarshalBinary(data))
	require.True(t, decoded.Equal(a.Address()))
	require.False(t, decoded.Equal(b.Address()))
	addr, ok := decoded.(*wallet.Address)
	require.True(t, ok)
	require.Zero(t, addr.Cmp(a.Address()))
	require.NotZero(t, addr.Cmp(b.Address()))
	require.Equal(t, a.APIKey(), decoded.String())

	_, err = wallet.ParseAddress(hex.EncodeToString([]byte("not a key")))
	require.ErrorIs(t, err, wallet.ErrCryptoFailure)
}

func TestDecodeSig(t *testing.T) {
	acc, err := wallet.Generate(ptest.Prng(t))
	require.NoError(t, err)
	sig, err := acc.SignData([]byte("x"))
	require.NoError(t, err)

	decoded, err := wallet.Backend{}.DecodeSig(bytes.NewReader(append(sig, 0xff)))
	require.NoError(t, err)
	require.Equal(t, sig, []byte(decoded))

	_, err = wallet.Backend{}.DecodeSig(bytes.NewReader(sig[:10]))
	require.Error(t, err)
}
