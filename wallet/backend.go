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
	"crypto/sha512"
	"io"
	"math/big"

	"perun.network/go-perun/wallet"
)

type Backend struct{}

var _ wallet.Backend = Backend{}

func (Backend) NewAddress() wallet.Address {
	a := make(Address, 0)
	return &a
}

func (Backend) DecodeSig(r io.Reader) (wallet.Sig, error) {
	sig := make([]byte, SigLen)
	if _, err := io.ReadFull(r, sig); err != nil {
		return nil, err
	}
	return wallet.Sig(sig), nil
}

// VerifySignature checks a raw r||s signature over SHA-384(msg).
func (Backend) VerifySignature(
	msg []byte,
	sign wallet.Sig,
	a wallet.Address,
) (bool, error) {
	addr, ok := a.(*Address)
	if !ok {
		return false, ErrCryptoFailure
	}
	pub, err := addr.PublicKey()
	if err != nil {
		return false, err
	}
	return Verify(pub, msg, sign), nil
}

// Verify checks a raw r||s signature over SHA-384(msg).
func Verify(pub *ecdsa.PublicKey, msg, sig []byte) bool {
	if len(sig) != SigLen {
		return false
	}
	digest := sha512.Sum384(msg)
	r := new(big.Int).SetBytes(sig[:CoordLen])
	s := new(big.Int).SetBytes(sig[CoordLen:])
	return ecdsa.Verify(pub, digest[:], r, s)
}
