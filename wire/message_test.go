// SPDX-License-Identifier: Apache-2.0

package wire_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"perun.network/icp-wallet-connector/wire"
)

func TestKeyMaterialShapes(t *testing.T) {
	want := wire.KeyMaterial{0x30, 0x2a, 0x00, 0xff}

	for name, in := range map[string]string{
		"hex":    `"302a00ff"`,
		"array":  `[48, 42, 0, 255]`,
		"object": `{"1": 42, "0": 48, "3": 255, "2": 0}`,
	} {
		t.Run(name, func(t *testing.T) {
			var k wire.KeyMaterial
			require.NoError(t, json.Unmarshal([]byte(in), &k))
			require.Equal(t, want, k)
		})
	}

	out, err := json.Marshal(want)
	require.NoError(t, err)
	require.JSONEq(t, `"302a00ff"`, string(out))
}

func TestKeyMaterialRejectsGarbage(t *testing.T) {
	var k wire.KeyMaterial
	for _, in := range []string{`"zz"`, `[256]`, `[-1]`, `{"0": 1, "2": 3}`, `{"a": 1}`, `true`} {
		err := json.Unmarshal([]byte(in), &k)
		require.ErrorIs(t, err, wire.ErrMalformedKey, in)
	}
}

func TestListener(t *testing.T) {
	m := wire.Message{Action: wire.ActionSign}
	_, ok := m.ListenerID()
	require.False(t, ok)

	data, err := wire.Encode(m)
	require.NoError(t, err)
	require.NotContains(t, string(data), "listener")

	// Correlation id 0 is a valid id and must survive encoding.
	bound := m.WithListener(0)
	data, err = wire.Encode(bound)
	require.NoError(t, err)
	decoded, err := wire.Decode(data)
	require.NoError(t, err)
	id, ok := decoded.ListenerID()
	require.True(t, ok)
	require.Zero(t, id)
}

func TestText(t *testing.T) {
	require.Equal(t, "denied", wire.Message{Data: json.RawMessage(`"denied"`)}.Text())
	require.Equal(t, `{"a":1}`, wire.Message{Data: json.RawMessage(`{"a":1}`)}.Text())
}
