// SPDX-License-Identifier: Apache-2.0

package actor_test

import (
	"context"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/aviate-labs/agent-go/mock"
	"github.com/aviate-labs/agent-go/principal"
	"github.com/stretchr/testify/require"

	"perun.network/icp-wallet-connector/actor"
)

// newActor runs a mock replica with the given methods in the background.
func newActor(t *testing.T, methods []mock.Method) *actor.Actor {
	t.Helper()
	replica := mock.NewReplica()
	canisterID := principal.Principal{Raw: []byte("greeter")}
	replica.AddCanister(canisterID, methods)
	s := httptest.NewServer(replica)
	t.Cleanup(s.Close)
	u, err := url.Parse(s.URL)
	require.NoError(t, err)

	a, err := actor.As[*actor.Actor](actor.Generic(canisterID, actor.NewConfig(nil, u, true)))
	require.NoError(t, err)
	require.Equal(t, canisterID, a.CanisterID())
	return a
}

func TestCallAndQuery(t *testing.T) {
	greet := mock.Method{
		Name:      "greet",
		Arguments: []any{new(string)},
		Handler: func(request mock.Request) ([]any, error) {
			return []any{"hello " + *request.Arguments[0].(*string)}, nil
		},
	}
	a := newActor(t, []mock.Method{greet})

	ctx := context.Background()
	var r0 string
	require.NoError(t, a.Query(ctx, "greet", []any{"query"}, []any{&r0}))
	require.Equal(t, "hello query", r0)

	require.NoError(t, a.Call(ctx, "greet", []any{"call"}, []any{&r0}))
	require.Equal(t, "hello call", r0)
}

func TestNewAgent(t *testing.T) {
	u, err := url.Parse("https://ic0.app")
	require.NoError(t, err)
	a, err := actor.NewAgent(nil, u, false)
	require.NoError(t, err)
	require.NotNil(t, a)

	cfg := actor.NewConfig(nil, u, true).Agent()
	require.True(t, cfg.FetchRootKey)
	require.Equal(t, u, cfg.ClientConfig.Host)
}

func TestAs(t *testing.T) {
	_, err := actor.As[string](42, nil)
	require.Error(t, err)

	v, err := actor.As[int](42, nil)
	require.NoError(t, err)
	require.Equal(t, 42, v)
}
