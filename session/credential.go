// SPDX-License-Identifier: Apache-2.0

package session

import (
	"encoding/json"

	"perun.network/icp-wallet-connector/wallet"
	"perun.network/icp-wallet-connector/wire"
)

// Credential is everything needed to sign through the remote signer after a
// restart. Its JSON form is the persisted record.
type Credential struct {
	Principal string           `json:"principal"`
	Key       wire.KeyMaterial `json:"key"`
	APIKey    string           `json:"apikey"`
	SecretKey wallet.JWK       `json:"secretkey"`
	Type      wire.KeyType     `json:"type"`
	Signed    string           `json:"signed,omitempty"`
	Chain     json.RawMessage  `json:"chain,omitempty"`
}

// NewCredential returns an unconfirmed credential for a freshly generated
// client account.
func NewCredential(acc *wallet.Account) *Credential {
	return &Credential{
		APIKey:    acc.APIKey(),
		SecretKey: acc.JWK(),
	}
}

// Account imports the client key of c.
func (c *Credential) Account() (*wallet.Account, error) {
	return wallet.AccountFromJWK(c.SecretKey)
}

// Confirm merges the fields the remote signer reports on authorization.
func (c *Credential) Confirm(principal string, key wire.KeyMaterial, typ wire.KeyType) {
	c.Principal = principal
	c.Key = key
	c.Type = typ
}
