// SPDX-License-Identifier: Apache-2.0

package client

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"

	"perun.network/icp-wallet-connector/actor"
	"perun.network/icp-wallet-connector/identity"
	"perun.network/icp-wallet-connector/stoic"
	"perun.network/icp-wallet-connector/utils"
)

// StoicConnector connects to the Stoic wallet through its remote signer.
type StoicConnector struct {
	cfg         Config
	stoic       *stoic.Context
	signTimeout time.Duration

	mutex    sync.Mutex
	identity *identity.Remote
}

var _ WalletConnector = (*StoicConnector)(nil)

// NewStoicConnector uses sc for all remote signer traffic. The dispatch loop
// of sc must be running. signTimeout bounds every signature an actor requests,
// zero waits forever.
func NewStoicConnector(cfg Config, sc *stoic.Context, signTimeout time.Duration) *StoicConnector {
	return &StoicConnector{cfg: cfg, stoic: sc, signTimeout: signTimeout}
}

func (c *StoicConnector) Type() WalletType {
	return StoicWallet
}

func (c *StoicConnector) Connected() bool {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.identity != nil
}

// Identity returns the connected identity or nil.
func (c *StoicConnector) Identity() *identity.Remote {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.identity
}

func (c *StoicConnector) Connect(ctx context.Context) (*WalletAuth, error) {
	r, err := c.stoic.Connect(ctx)
	if err != nil {
		return nil, connectFailed(StoicWalletConnectFailed, "StoicWalletConnector.connect", err)
	}
	c.mutex.Lock()
	c.identity = r
	c.mutex.Unlock()

	return &WalletAuth{
		Type:      StoicWallet,
		Principal: r.Principal().Encode(),
		AccountID: utils.PrincipalToAccountID(r.Principal()),
	}, nil
}

func (c *StoicConnector) CreateActor(ctx context.Context, canisterID string, factory actor.Factory) (any, error) {
	r := c.Identity()
	if r == nil {
		return nil, newError(StoicWalletConnectFailed, KindNotConnected, "StoicWalletConnector.createActor: not connected")
	}
	const where = "StoicWalletConnector.createActor"
	p, err := utils.DecodePrincipal(canisterID)
	if err != nil {
		return nil, actorFailed(StoicWalletConnectFailed, where, err)
	}
	a, err := factory(p, actor.NewSignerConfig(r, c.signTimeout, c.cfg.ICHost, c.cfg.Dev))
	if err != nil {
		return nil, actorFailed(StoicWalletConnectFailed, where, errors.WithMessagef(err, "creating actor for %s", canisterID))
	}
	return a, nil
}

func (c *StoicConnector) Disconnect(ctx context.Context) error {
	c.mutex.Lock()
	c.identity = nil
	c.mutex.Unlock()
	return c.stoic.Disconnect(ctx)
}
