// SPDX-License-Identifier: Apache-2.0

// Package wallet holds the client key of the remote signer protocol. Every
// authorization generates a fresh P-384 ECDSA account whose public key (the
// apikey) identifies this client and whose signatures authenticate each
// request sent to the remote signer. Signatures are raw r||s, 96 bytes, the
// encoding WebCrypto produces. The types implement go-perun's wallet
// interfaces.
package wallet // import "perun.network/icp-wallet-connector/wallet"
