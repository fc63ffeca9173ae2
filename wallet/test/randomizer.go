// SPDX-License-Identifier: Apache-2.0
package test

import (
	"math/rand"

	"perun.network/icp-wallet-connector/wallet"
)

// NewRandomAccount creates a new account from the given rng.
func NewRandomAccount(rng *rand.Rand) *wallet.Account {
	acc, err := wallet.Generate(rng)
	if err != nil {
		panic("NewRandomAccount: failed to generate account: " + err.Error())
	}
	return acc
}

// NewRandomAddress returns the public address of a new random account.
func NewRandomAddress(rng *rand.Rand) wallet.Address {
	return NewRandomAccount(rng).PublicAddress()
}
