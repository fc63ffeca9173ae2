// SPDX-License-Identifier: Apache-2.0

package wallet

import (
	"bytes"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/x509"
	"encoding/hex"

	"github.com/pkg/errors"
	"perun.network/go-perun/wallet"
)

// Address is the SPKI (DER) encoding of a P-384 public key.
type Address []byte

var _ wallet.Address = (*Address)(nil)

// ParseAddress decodes a hex encoded SPKI public key, e.g. an apikey.
func ParseAddress(s string) (Address, error) {
	data, err := hex.DecodeString(s)
	if err != nil {
		return nil, errors.Wrap(ErrCryptoFailure, err.Error())
	}
	var a Address
	if err := a.UnmarshalBinary(data); err != nil {
		return nil, err
	}
	return a, nil
}

func (a Address) MarshalBinary() ([]byte, error) {
	return a[:], nil
}

func (a *Address) UnmarshalBinary(data []byte) error {
	if _, err := parseP384(data); err != nil {
		return err
	}
	*a = make(Address, len(data))
	copy(*a, data)
	return nil
}

// PublicKey parses the address into an ECDSA public key.
func (a Address) PublicKey() (*ecdsa.PublicKey, error) {
	return parseP384(a)
}

func (a Address) String() string {
	return hex.EncodeToString(a)
}

func (a Address) Equal(b wallet.Address) bool {
	return bytes.Equal(a, *b.(*Address))
}

func (a Address) Cmp(b wallet.Address) int {
	return bytes.Compare(a, *b.(*Address))
}

func parseP384(der []byte) (*ecdsa.PublicKey, error) {
	pub, err := x509.ParsePKIXPublicKey(der)
	if err != nil {
		return nil, errors.Wrap(ErrCryptoFailure, err.Error())
	}
	key, ok := pub.(*ecdsa.PublicKey)
	if !ok || key.Curve != elliptic.P384() {
		return nil, errors.WithMessage(ErrCryptoFailure, "not a P-384 public key")
	}
	return key, nil
}
