// SPDX-License-Identifier: Apache-2.0

package wire

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"sort"
	"strconv"

	"github.com/pkg/errors"
)

// ErrMalformedKey is returned for key material in none of the known shapes.
var ErrMalformedKey = errors.New("malformed key material")

// KeyMaterial is a DER encoded public key. It is written as hex but accepts
// the other shapes a page may serialise a byte buffer into: a hex string, an
// array of byte values or an object mapping indices to byte values.
type KeyMaterial []byte

func (k KeyMaterial) MarshalJSON() ([]byte, error) {
	return json.Marshal(hex.EncodeToString(k))
}

func (k *KeyMaterial) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*k = nil
		return nil
	}

	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		raw, err := hex.DecodeString(s)
		if err != nil {
			return errors.Wrap(ErrMalformedKey, err.Error())
		}
		*k = raw
	case '[':
		var vals []int
		if err := json.Unmarshal(data, &vals); err != nil {
			return errors.Wrap(ErrMalformedKey, err.Error())
		}
		raw := make([]byte, len(vals))
		for i, v := range vals {
			if v < 0 || v > 0xff {
				return errors.WithMessagef(ErrMalformedKey, "byte %d out of range", v)
			}
			raw[i] = byte(v)
		}
		*k = raw
	case '{':
		var vals map[string]uint8
		if err := json.Unmarshal(data, &vals); err != nil {
			return errors.Wrap(ErrMalformedKey, err.Error())
		}
		raw, err := indexedBytes(vals)
		if err != nil {
			return err
		}
		*k = raw
	default:
		return errors.WithMessagef(ErrMalformedKey, "unexpected %q", data[0])
	}
	return nil
}

func indexedBytes(vals map[string]uint8) ([]byte, error) {
	idxs := make([]int, 0, len(vals))
	for key := range vals {
		i, err := strconv.Atoi(key)
		if err != nil {
			return nil, errors.WithMessagef(ErrMalformedKey, "index %q: %v", key, err)
		}
		idxs = append(idxs, i)
	}
	sort.Ints(idxs)

	raw := make([]byte, len(idxs))
	for n, i := range idxs {
		if i != n {
			return nil, errors.WithMessagef(ErrMalformedKey, "missing index %d", n)
		}
		raw[n] = vals[strconv.Itoa(i)]
	}
	return raw, nil
}
