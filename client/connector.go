// SPDX-License-Identifier: Apache-2.0

package client

import (
	"context"
	"fmt"
	"sync"
	"time"

	"perun.network/go-perun/log"

	"perun.network/icp-wallet-connector/actor"
	"perun.network/icp-wallet-connector/stoic"
	"perun.network/icp-wallet-connector/utils"
)

// Connector dispatches to the connector of a wallet type.
type Connector struct {
	log.Embedding

	mutex      sync.Mutex
	connectors map[WalletType]WalletConnector
	auth       *WalletAuth
}

// NewConnector registers the given connectors under their type.
func NewConnector(connectors ...WalletConnector) *Connector {
	c := &Connector{
		Embedding:  log.MakeEmbedding(log.Default()),
		connectors: make(map[WalletType]WalletConnector),
	}
	for _, wc := range connectors {
		c.Register(wc)
	}
	return c
}

// Register adds or replaces the connector of wc.Type().
func (c *Connector) Register(wc WalletConnector) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.connectors[wc.Type()] = wc
}

func (c *Connector) get(t WalletType) (WalletConnector, error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	wc, ok := c.connectors[t]
	if !ok {
		return nil, newError(NoExistProvider, KindNoExistProvider, fmt.Sprintf("No exist provider: %v", t))
	}
	return wc, nil
}

// WalletAuth returns the result of the last successful Connect.
func (c *Connector) WalletAuth() *WalletAuth {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.auth
}

// Connect connects the wallet of type t.
func (c *Connector) Connect(ctx context.Context, t WalletType) (*WalletAuth, error) {
	wc, err := c.get(t)
	if err != nil {
		return nil, err
	}

	c.Log().Debugf("check: isConnected %v %t", t, wc.Connected())
	wa, err := wc.Connect(ctx)
	if err != nil {
		return nil, err
	}
	c.Log().Debugf("connect %v success, principal: %s", t, wa.Principal)

	accountID, err := utils.AccountIDOf(wa.Principal)
	if err != nil {
		return nil, connectFailed(ConnectFailed, "Connector.Connect", err)
	}
	res := &WalletAuth{Type: t, Principal: wa.Principal, AccountID: accountID}
	c.mutex.Lock()
	c.auth = res
	c.mutex.Unlock()
	return res, nil
}

// CreateActor creates a client for canisterID signing with wallet t. A
// disconnected wallet is connected first.
func (c *Connector) CreateActor(ctx context.Context, canisterID string, factory actor.Factory, t WalletType) (any, error) {
	wc, err := c.get(t)
	if err != nil {
		return nil, err
	}
	if !wc.Connected() {
		if _, err := wc.Connect(ctx); err != nil {
			c.Log().Warnf("Connecting %v for actor failed: %v", t, err)
			return nil, newError(NotConnected, KindNotConnected, fmt.Sprintf("%v not connected", t))
		}
	}
	a, err := wc.CreateActor(ctx, canisterID, factory)
	if err != nil {
		return nil, actorFailed(ConnectFailed, "WalletConnector.createActor", err)
	}
	return a, nil
}

// Disconnect disconnects wallet t. Unknown types and failures are only
// logged.
func (c *Connector) Disconnect(ctx context.Context, t WalletType) {
	wc, err := c.get(t)
	if err != nil {
		return
	}
	if err := wc.Disconnect(ctx); err != nil {
		c.Log().Warnf("Disconnecting %v: %v", t, err)
	}
	c.mutex.Lock()
	if c.auth != nil && c.auth.Type == t {
		c.auth = nil
	}
	c.mutex.Unlock()
}

// CreateActorOf is CreateActor for factories of a known client type.
func CreateActorOf[T any](ctx context.Context, c *Connector, canisterID string, factory actor.Factory, t WalletType) (T, error) {
	return actor.As[T](c.CreateActor(ctx, canisterID, factory, t))
}

// NewDefaultConnector registers the providers available by default: Plug,
// Stoic, Infinity and NFID. Missing providers are reported as not installed.
func NewDefaultConnector(cfg Config, sc *stoic.Context, signTimeout time.Duration, providers map[WalletType]Provider) *Connector {
	return NewConnector(DefaultConnectors(cfg, NewStoicConnector(cfg, sc, signTimeout), providers)...)
}

// DefaultConnectors returns the connectors NewDefaultConnector registers,
// with sw serving the Stoic wallet.
func DefaultConnectors(cfg Config, sw WalletConnector, providers map[WalletType]Provider) []WalletConnector {
	return []WalletConnector{
		NewPlugConnector(providers[PlugWallet], cfg),
		sw,
		NewInfinityWalletConnector(providers[InfinityWallet], cfg),
		NewNFIDConnector(providers[NFID], cfg),
	}
}
