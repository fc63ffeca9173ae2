// SPDX-License-Identifier: Apache-2.0

package channel_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"perun.network/icp-wallet-connector/channel"
)

func TestRegistryIDsAreMonotonic(t *testing.T) {
	r := channel.NewRegistry()
	for want := uint64(0); want < 5; want++ {
		id, _ := r.Register(nil)
		require.Equal(t, want, id)
		require.True(t, r.Settle(id, channel.Result{}))
	}
	// Settled ids are never handed out again.
	id, _ := r.Register(nil)
	require.Equal(t, uint64(5), id)
}

func TestRegistrySettleOnce(t *testing.T) {
	r := channel.NewRegistry()
	torn := 0
	id, res := r.Register(func() { torn++ })
	require.Equal(t, 1, r.Pending())

	require.True(t, r.Settle(id, channel.Result{Data: json.RawMessage(`1`)}))
	require.False(t, r.Settle(id, channel.Result{Data: json.RawMessage(`2`)}))
	require.False(t, r.Settle(42, channel.Result{}))

	require.Equal(t, 1, torn)
	require.Equal(t, 0, r.Pending())
	require.JSONEq(t, `1`, string((<-res).Data))
}

func TestRegistryOutOfOrder(t *testing.T) {
	r := channel.NewRegistry()
	ids := make([]uint64, 3)
	results := make([]<-chan channel.Result, 3)
	for i := range ids {
		ids[i], results[i] = r.Register(nil)
	}
	for i := len(ids) - 1; i >= 0; i-- {
		data, err := json.Marshal(i)
		require.NoError(t, err)
		require.True(t, r.Settle(ids[i], channel.Result{Data: data}))
	}
	for i, res := range results {
		var got int
		require.NoError(t, json.Unmarshal((<-res).Data, &got))
		require.Equal(t, i, got)
	}
}
