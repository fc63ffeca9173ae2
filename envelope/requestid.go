// SPDX-License-Identifier: Apache-2.0

package envelope

import (
	"crypto/sha256"
	"encoding/binary"
	"sort"

	"github.com/pkg/errors"
)

// RequestID is the representation independent hash of a request.
type RequestID [sha256.Size]byte

// hashOfMap hashes a map of fields. Every field contributes H(key)||H(value),
// the contributions are sorted before hashing them together.
func hashOfMap(fields map[string]any) ([sha256.Size]byte, error) {
	pairs := make([][]byte, 0, len(fields))
	for k, v := range fields {
		hv, err := hashValue(v)
		if err != nil {
			return [sha256.Size]byte{}, errors.WithMessagef(err, "field %s", k)
		}
		hk := sha256.Sum256([]byte(k))
		pairs = append(pairs, append(hk[:], hv[:]...))
	}
	sort.Slice(pairs, func(i, j int) bool {
		return string(pairs[i]) < string(pairs[j])
	})

	h := sha256.New()
	for _, p := range pairs {
		h.Write(p)
	}
	var sum [sha256.Size]byte
	copy(sum[:], h.Sum(nil))
	return sum, nil
}

func hashValue(v any) ([sha256.Size]byte, error) {
	switch v := v.(type) {
	case string:
		return sha256.Sum256([]byte(v)), nil
	case []byte:
		return sha256.Sum256(v), nil
	case uint64:
		return sha256.Sum256(binary.AppendUvarint(nil, v)), nil
	case [][]byte:
		return hashArray(len(v), func(i int) any { return v[i] })
	case [][][]byte:
		return hashArray(len(v), func(i int) any { return v[i] })
	case map[string]any:
		return hashOfMap(v)
	}
	return [sha256.Size]byte{}, errors.Errorf("unsupported type %T", v)
}

// hashArray hashes the concatenation of the element hashes.
func hashArray(n int, elem func(int) any) ([sha256.Size]byte, error) {
	h := sha256.New()
	for i := 0; i < n; i++ {
		he, err := hashValue(elem(i))
		if err != nil {
			return [sha256.Size]byte{}, err
		}
		h.Write(he[:])
	}
	var sum [sha256.Size]byte
	copy(sum[:], h.Sum(nil))
	return sum, nil
}
