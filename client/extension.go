// SPDX-License-Identifier: Apache-2.0

package client

import (
	"context"
	"fmt"
	"sync"

	"github.com/aviate-labs/agent-go/principal"
	"github.com/pkg/errors"
	"perun.network/go-perun/log"

	"perun.network/icp-wallet-connector/actor"
	"perun.network/icp-wallet-connector/utils"
)

type (
	// Provider is the capability set of a wallet that manages keys itself,
	// such as a browser extension.
	Provider interface {
		IsConnected(ctx context.Context) (bool, error)
		RequestConnect(ctx context.Context, whitelist []string, host string) (bool, error)
		GetPrincipal(ctx context.Context) (principal.Principal, error)
		CreateActor(ctx context.Context, canisterID string, factory actor.Factory) (any, error)
		Disconnect(ctx context.Context) error
		FetchRootKey(ctx context.Context) error
	}

	// ExtensionConnector adapts a Provider. A nil provider means the wallet
	// is not installed.
	ExtensionConnector struct {
		log.Embedding

		typ           WalletType
		name          string
		provider      Provider
		cfg           Config
		notInstalled  ErrorCode
		connectFailed ErrorCode

		mutex     sync.Mutex
		connected bool
	}
)

var _ WalletConnector = (*ExtensionConnector)(nil)

// NewPlugConnector returns the connector of the Plug wallet.
func NewPlugConnector(p Provider, cfg Config) *ExtensionConnector {
	return newExtension(PlugWallet, "PlugWalletConnector", p, cfg, PlugNotInstall, PlugConnectFailed)
}

// NewInfinityWalletConnector returns the connector of the Infinity wallet.
func NewInfinityWalletConnector(p Provider, cfg Config) *ExtensionConnector {
	return newExtension(InfinityWallet, "InfinityWalletConnector", p, cfg, InfinityWalletNotInstall, InfinityWalletConnectFailed)
}

// NewNFIDConnector returns the connector of NFID.
func NewNFIDConnector(p Provider, cfg Config) *ExtensionConnector {
	return newExtension(NFID, "NFIDConnector", p, cfg, NFIDConnectFailed, NFIDConnectFailed)
}

// NewAstroXConnector returns the connector of AstroX ME.
func NewAstroXConnector(p Provider, cfg Config) *ExtensionConnector {
	return newExtension(AstroX, "AstroXConnector", p, cfg, AstroxConnectFailed, AstroxConnectFailed)
}

func newExtension(t WalletType, name string, p Provider, cfg Config, notInstalled, failed ErrorCode) *ExtensionConnector {
	return &ExtensionConnector{
		Embedding:     log.MakeEmbedding(log.Default()),
		typ:           t,
		name:          name,
		provider:      p,
		cfg:           cfg,
		notInstalled:  notInstalled,
		connectFailed: failed,
	}
}

func (c *ExtensionConnector) Type() WalletType {
	return c.typ
}

func (c *ExtensionConnector) Connected() bool {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.connected
}

func (c *ExtensionConnector) setConnected(v bool) {
	c.mutex.Lock()
	c.connected = v
	c.mutex.Unlock()
}

func (c *ExtensionConnector) Connect(ctx context.Context) (*WalletAuth, error) {
	if c.provider == nil {
		return nil, newError(c.notInstalled, KindProviderNotInstalled, fmt.Sprintf("%v not installed", c.typ))
	}
	where := c.name + ".connect"

	connected, err := c.provider.IsConnected(ctx)
	if err != nil {
		return nil, connectFailed(c.connectFailed, where, err)
	}
	if !connected {
		host := ""
		if c.cfg.ICHost != nil {
			host = c.cfg.ICHost.String()
		}
		if connected, err = c.provider.RequestConnect(ctx, c.cfg.Whitelist, host); err != nil {
			return nil, connectFailed(c.connectFailed, where, err)
		}
	}
	if !connected {
		return nil, connectFailed(c.connectFailed, where, errors.New("request declined"))
	}

	p, err := c.provider.GetPrincipal(ctx)
	if err != nil {
		return nil, connectFailed(c.connectFailed, where, err)
	}
	c.setConnected(true)
	c.Log().Debugf("%s: connected", where)
	return &WalletAuth{
		Type:      c.typ,
		Principal: p.Encode(),
		AccountID: utils.PrincipalToAccountID(p),
	}, nil
}

func (c *ExtensionConnector) CreateActor(ctx context.Context, canisterID string, factory actor.Factory) (any, error) {
	if !c.Connected() {
		return nil, newError(c.connectFailed, KindNotConnected, c.name+".createActor: check connect failed")
	}
	if c.cfg.Dev {
		if err := c.provider.FetchRootKey(ctx); err != nil {
			c.Log().Errorf("Unable to fetch root key. Check to ensure that your local replica is running: %v", err)
		}
	}
	a, err := c.provider.CreateActor(ctx, canisterID, factory)
	if err != nil {
		return nil, actorFailed(c.connectFailed, c.name+".createActor", err)
	}
	return a, nil
}

func (c *ExtensionConnector) Disconnect(ctx context.Context) error {
	c.setConnected(false)
	if c.provider == nil {
		return nil
	}
	return c.provider.Disconnect(ctx)
}
