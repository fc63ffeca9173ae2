// SPDX-License-Identifier: Apache-2.0
package test_test

import (
	"testing"

	"github.com/stretchr/testify/require"
	pkgtest "polycry.pt/poly-go/test"

	test "perun.network/icp-wallet-connector/wallet/test"
)

func TestRandomizer_RandomAddress(t *testing.T) {
	rng := pkgtest.Prng(t)
	addr := test.NewRandomAddress(rng)

	for i := 0; i < 32; i++ {
		addr2 := test.NewRandomAddress(rng)
		require.False(t, addr.Equal(&addr2))
	}
}
