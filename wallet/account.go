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

package wallet

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha512"
	"crypto/x509"
	"encoding/hex"
	"io"

	"github.com/pkg/errors"
	"perun.network/go-perun/wallet"
)

const (
	// CoordLen is the byte length of a P-384 scalar or coordinate.
	CoordLen = 48
	// SigLen is the length of a raw r||s signature.
	SigLen = 2 * CoordLen
)

// ErrCryptoFailure is returned for malformed key material or failed signing.
var ErrCryptoFailure = errors.New("crypto failure")

// Account is a P-384 ECDSA signing key. It is generated once per
// authorization and identifies this client towards the remote signer.
type Account struct {
	key *ecdsa.PrivateKey
}

var _ wallet.Account = (*Account)(nil)

// Generate creates a fresh account from the given randomness source.
func Generate(rng io.Reader) (*Account, error) {
	key, err := ecdsa.GenerateKey(elliptic.P384(), rng)
	if err != nil {
		return nil, errors.Wrap(ErrCryptoFailure, err.Error())
	}
	return &Account{key: key}, nil
}

func (a *Account) Address() wallet.Address {
	addr := a.PublicAddress()
	return &addr
}

// PublicAddress returns the SPKI encoded public key of the account.
func (a *Account) PublicAddress() Address {
	der, err := x509.MarshalPKIXPublicKey(&a.key.PublicKey)
	if err != nil {
		panic("logic error: marshalling a P-384 public key should not fail")
	}
	return Address(der)
}

// APIKey is the hex encoded SPKI public key. The remote signer uses it to
// recognise this client, it is not a secret.
func (a *Account) APIKey() string {
	return hex.EncodeToString(a.PublicAddress())
}

// SignData signs SHA-384(data). The signature is r||s, 96 bytes.
func (a *Account) SignData(data []byte) ([]byte, error) {
	if a.key == nil {
		return nil, errors.WithMessage(ErrCryptoFailure, "account is locked")
	}
	digest := sha512.Sum384(data)
	r, s, err := ecdsa.Sign(rand.Reader, a.key, digest[:])
	if err != nil {
		return nil, errors.Wrap(ErrCryptoFailure, err.Error())
	}

	sig := make([]byte, SigLen)
	r.FillBytes(sig[:CoordLen])
	s.FillBytes(sig[CoordLen:])
	return sig, nil
}

// JWK exports the private key in the JSON web key format.
func (a *Account) JWK() JWK {
	return privateJWK(a.key)
}

// AccountFromJWK imports an account exported by JWK.
func AccountFromJWK(k JWK) (*Account, error) {
	key, err := k.privateKey()
	if err != nil {
		return nil, err
	}
	return &Account{key: key}, nil
}

// Clear wipes the private key. The account cannot sign afterwards.
func (a *Account) Clear() {
	if a.key != nil {
		a.key.D.SetInt64(0)
	}
	a.key = nil
}
