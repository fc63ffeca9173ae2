// SPDX-License-Identifier: Apache-2.0

package identity

import (
	"bytes"

	ed "github.com/oasisprotocol/curve25519-voi/primitives/ed25519"
	"github.com/pkg/errors"

	"perun.network/icp-wallet-connector/wire"
)

// ed25519DERPrefix is the SPKI header of an Ed25519 public key.
var ed25519DERPrefix = []byte{
	0x30, 0x2a, 0x30, 0x05, 0x06, 0x03, 0x2b, 0x65, 0x70, 0x03, 0x21, 0x00,
}

// ErrUnsupportedKey is returned for DER keys that are not Ed25519.
var ErrUnsupportedKey = errors.New("unsupported public key")

// PublicKey is the DER key of a remote principal together with the way it
// signs.
type PublicKey struct {
	der []byte
	typ wire.KeyType
}

func NewPublicKey(der []byte, typ wire.KeyType) PublicKey {
	return PublicKey{der: append([]byte(nil), der...), typ: typ}
}

func (k PublicKey) DER() []byte {
	return append([]byte(nil), k.der...)
}

func (k PublicKey) Type() wire.KeyType {
	return k.typ
}

// Ed25519DER encodes pub as SPKI DER.
func Ed25519DER(pub ed.PublicKey) []byte {
	return append(append([]byte(nil), ed25519DERPrefix...), pub...)
}

// Ed25519FromDER decodes an SPKI DER Ed25519 key.
func Ed25519FromDER(der []byte) (ed.PublicKey, error) {
	if len(der) != len(ed25519DERPrefix)+ed.PublicKeySize || !bytes.HasPrefix(der, ed25519DERPrefix) {
		return nil, errors.WithMessagef(ErrUnsupportedKey, "%d byte key", len(der))
	}
	return ed.PublicKey(der[len(ed25519DERPrefix):]), nil
}

// VerifySignature checks an Ed25519 signature made by the DER key.
func VerifySignature(der, msg, sig []byte) bool {
	pub, err := Ed25519FromDER(der)
	if err != nil || len(sig) != ed.SignatureSize {
		return false
	}
	return ed.Verify(pub, msg, sig)
}
