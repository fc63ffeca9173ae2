// SPDX-License-Identifier: Apache-2.0

package wallet

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"encoding/json"

	"github.com/lestrrat-go/jwx/jwk"
	"github.com/pkg/errors"
)

// JWK is an EC private key in the JSON web key format, as exported by
// WebCrypto.
type JWK struct {
	Kty    string   `json:"kty"`
	Crv    string   `json:"crv"`
	X      string   `json:"x"`
	Y      string   `json:"y"`
	D      string   `json:"d"`
	Ext    bool     `json:"ext,omitempty"`
	KeyOps []string `json:"key_ops,omitempty"`
}

const (
	jwkKeyType = "EC"
	jwkCurve   = "P-384"
)

func privateJWK(key *ecdsa.PrivateKey) JWK {
	k, err := jwk.New(key)
	if err != nil {
		panic("logic error: P-384 key not representable as JWK: " + err.Error())
	}
	data, err := json.Marshal(k)
	if err != nil {
		panic("logic error: marshalling JWK: " + err.Error())
	}
	var out JWK
	if err := json.Unmarshal(data, &out); err != nil {
		panic("logic error: unmarshalling JWK: " + err.Error())
	}
	out.Ext = true
	out.KeyOps = []string{"sign"}
	return out
}

// IsZero reports whether the key is empty.
func (k JWK) IsZero() bool {
	return k.Kty == "" && k.D == ""
}

func (k JWK) privateKey() (*ecdsa.PrivateKey, error) {
	if k.Kty != jwkKeyType || k.Crv != jwkCurve {
		return nil, errors.WithMessagef(ErrCryptoFailure, "unsupported key %s/%s", k.Kty, k.Crv)
	}
	data, err := json.Marshal(k)
	if err != nil {
		return nil, errors.Wrap(ErrCryptoFailure, err.Error())
	}
	parsed, err := jwk.ParseKey(data)
	if err != nil {
		return nil, errors.Wrap(ErrCryptoFailure, err.Error())
	}
	var raw interface{}
	if err := parsed.Raw(&raw); err != nil {
		return nil, errors.Wrap(ErrCryptoFailure, err.Error())
	}
	key, ok := raw.(*ecdsa.PrivateKey)
	if !ok {
		return nil, errors.WithMessagef(ErrCryptoFailure, "not an EC private key: %T", raw)
	}

	// The JWK carries the public point next to the scalar, they must agree.
	curve := elliptic.P384()
	if key.D.Sign() == 0 || key.D.Cmp(curve.Params().N) >= 0 {
		return nil, errors.WithMessage(ErrCryptoFailure, "private scalar out of range")
	}
	px, py := curve.ScalarBaseMult(key.D.FillBytes(make([]byte, CoordLen)))
	if px.Cmp(key.X) != 0 || py.Cmp(key.Y) != 0 {
		return nil, errors.WithMessage(ErrCryptoFailure, "public point does not match private key")
	}
	return key, nil
}
