// SPDX-License-Identifier: Apache-2.0

// Package actor builds canister clients that sign through a wallet identity.
package actor

import (
	"context"
	"net/url"
	"time"

	"github.com/aviate-labs/agent-go"
	"github.com/aviate-labs/agent-go/candid/idl"
	"github.com/aviate-labs/agent-go/identity"
	"github.com/aviate-labs/agent-go/principal"
	"github.com/pkg/errors"

	"perun.network/icp-wallet-connector/envelope"
)

type (
	// Factory creates the client of one canister. It plays the role of a
	// canister interface description: typed factories return typed clients.
	Factory func(canisterID principal.Principal, cfg Config) (any, error)

	// Signer signs requests as the principal it reports.
	Signer interface {
		envelope.Signer
		Principal() principal.Principal
	}

	// Config describes how actors reach the network and authenticate.
	Config struct {
		Host         *url.URL
		FetchRootKey bool

		// Identity signs through agent-go. Nil means anonymous.
		Identity identity.Identity
		// Signer, if set, signs every request envelope and takes precedence
		// over Identity. Delegation signers attach their chain.
		Signer Signer
		// SignTimeout bounds every signature of Signer. Zero waits forever.
		SignTimeout time.Duration

		IngressExpiry time.Duration
		PollInterval  time.Duration
	}

	// Actor is an untyped client for any canister.
	Actor struct {
		c          caller
		canisterID principal.Principal
	}

	caller interface {
		call(ctx context.Context, canisterID principal.Principal, method string, arg []byte) ([]byte, error)
		query(ctx context.Context, canisterID principal.Principal, method string, arg []byte) ([]byte, error)
	}

	agentCaller struct {
		a *agent.Agent
	}
)

const (
	DefaultIngressExpiry = 5 * time.Minute
	DefaultPollInterval  = time.Second
)

// NewConfig returns the configuration of actors signing as id through
// agent-go. Local replicas need fetchRootKey.
func NewConfig(id identity.Identity, host *url.URL, fetchRootKey bool) Config {
	return Config{
		Identity:     id,
		Host:         host,
		FetchRootKey: fetchRootKey,
	}
}

// NewSignerConfig returns the configuration of actors whose envelopes s signs.
func NewSignerConfig(s Signer, signTimeout time.Duration, host *url.URL, fetchRootKey bool) Config {
	return Config{
		Signer:       s,
		SignTimeout:  signTimeout,
		Host:         host,
		FetchRootKey: fetchRootKey,
	}
}

// Agent returns the agent-go view of cfg. It carries no Signer. Without a
// host agent-go talks to the main network.
func (cfg Config) Agent() agent.Config {
	ac := agent.Config{
		Identity:      cfg.Identity,
		IngressExpiry: cfg.IngressExpiry,
		FetchRootKey:  cfg.FetchRootKey,
	}
	if cfg.Host != nil {
		ac.ClientConfig = &agent.ClientConfig{Host: cfg.Host}
	}
	return ac
}

// NewAgent creates an agent signing as id.
func NewAgent(id identity.Identity, host *url.URL, fetchRootKey bool) (*agent.Agent, error) {
	a, err := agent.New(NewConfig(id, host, fetchRootKey).Agent())
	return a, errors.WithMessage(err, "creating agent")
}

// New creates an actor for canisterID.
func New(canisterID principal.Principal, cfg Config) (*Actor, error) {
	if cfg.Signer != nil {
		c, err := newSignedCaller(cfg)
		if err != nil {
			return nil, err
		}
		return &Actor{c: c, canisterID: canisterID}, nil
	}
	a, err := agent.New(cfg.Agent())
	if err != nil {
		return nil, errors.WithMessage(err, "creating agent")
	}
	return &Actor{c: agentCaller{a}, canisterID: canisterID}, nil
}

// Generic is the Factory of untyped actors.
func Generic(canisterID principal.Principal, cfg Config) (any, error) {
	return New(canisterID, cfg)
}

func (a *Actor) CanisterID() principal.Principal {
	return a.canisterID
}

// Call invokes an update method. rets receives pointers to the results.
func (a *Actor) Call(ctx context.Context, method string, args []any, rets []any) error {
	raw, err := idl.Marshal(args)
	if err != nil {
		return errors.WithMessagef(err, "encoding arguments of %s", method)
	}
	res, err := a.c.call(ctx, a.canisterID, method, raw)
	if err != nil {
		return errors.WithMessagef(err, "calling %s", method)
	}
	return errors.WithMessagef(idl.Unmarshal(res, rets), "decoding result of %s", method)
}

// Query invokes a query method. rets receives pointers to the results.
func (a *Actor) Query(ctx context.Context, method string, args []any, rets []any) error {
	raw, err := idl.Marshal(args)
	if err != nil {
		return errors.WithMessagef(err, "encoding arguments of %s", method)
	}
	res, err := a.c.query(ctx, a.canisterID, method, raw)
	if err != nil {
		return errors.WithMessagef(err, "querying %s", method)
	}
	return errors.WithMessagef(idl.Unmarshal(res, rets), "decoding result of %s", method)
}

// As narrows the result of a Factory.
func As[T any](v any, err error) (T, error) {
	var zero T
	if err != nil {
		return zero, err
	}
	t, ok := v.(T)
	if !ok {
		return zero, errors.Errorf("actor is %T", v)
	}
	return t, nil
}

// agent-go takes no context, its calls end by their own timeouts.
func (c agentCaller) call(_ context.Context, canisterID principal.Principal, method string, arg []byte) ([]byte, error) {
	return c.a.CallRaw(canisterID, method, arg)
}

func (c agentCaller) query(_ context.Context, canisterID principal.Principal, method string, arg []byte) ([]byte, error) {
	return c.a.QueryRaw(canisterID, method, arg)
}
