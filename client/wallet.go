// SPDX-License-Identifier: Apache-2.0

// Package client connects to Internet Computer wallets of different
// providers through one interface.
package client

import (
	"context"
	"net/url"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"perun.network/icp-wallet-connector/actor"
)

// WalletType names a wallet provider.
type WalletType int

const (
	AstroX WalletType = iota
	InfinityWallet
	NFID
	PlugWallet
	StoicWallet
)

var walletNames = map[WalletType]string{
	AstroX:         "AstroX",
	InfinityWallet: "InfinityWallet",
	NFID:           "NFID",
	PlugWallet:     "PlugWallet",
	StoicWallet:    "StoicWallet",
}

func (t WalletType) String() string {
	if name, ok := walletNames[t]; ok {
		return name
	}
	return strconv.Itoa(int(t))
}

// ParseWalletType parses a wallet name, case insensitive.
func ParseWalletType(s string) (WalletType, error) {
	for t, name := range walletNames {
		if strings.EqualFold(name, s) {
			return t, nil
		}
	}
	return 0, errors.Errorf("unknown wallet type %q", s)
}

type (
	// WalletAuth describes a connected wallet.
	WalletAuth struct {
		Type      WalletType
		Principal string
		AccountID string
	}

	// WalletConnector is implemented by every provider.
	WalletConnector interface {
		Type() WalletType
		Connected() bool
		Connect(ctx context.Context) (*WalletAuth, error)
		CreateActor(ctx context.Context, canisterID string, factory actor.Factory) (any, error)
		Disconnect(ctx context.Context) error
	}

	// Config is shared by all connectors.
	Config struct {
		// ICHost is the boundary node or replica canister calls go to.
		ICHost *url.URL
		// Whitelist lists the canisters a provider may be asked to trust.
		Whitelist []string
		// Dev fetches the root key, needed for local replicas.
		Dev bool
	}
)
