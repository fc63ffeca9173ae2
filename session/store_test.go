// SPDX-License-Identifier: Apache-2.0

package session_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	ptest "polycry.pt/poly-go/test"

	"perun.network/icp-wallet-connector/session"
	wtest "perun.network/icp-wallet-connector/wallet/test"
	"perun.network/icp-wallet-connector/wire"
)

func backends(t *testing.T) map[string]session.Backend {
	t.Helper()
	level, err := session.NewLevelDBBackend(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { level.Close() })

	mr := miniredis.RunT(t)
	rdb := session.NewRedisBackend(redis.NewClient(&redis.Options{Addr: mr.Addr()}), "")
	t.Cleanup(func() { rdb.Close() })

	return map[string]session.Backend{
		"memory":  session.NewMemoryBackend(),
		"leveldb": level,
		"redis":   rdb,
	}
}

func confirmedCredential(t *testing.T) *session.Credential {
	t.Helper()
	rng := ptest.Prng(t)
	c := session.NewCredential(wtest.NewRandomAccount(rng))
	c.Confirm("rwlgt-iiaaa-aaaaa-aaaaa-cai", wire.KeyMaterial{0x30, 0x2a, 0x30, 0x05}, wire.KeyTypeStandard)
	return c
}

func TestStore(t *testing.T) {
	for name, b := range backends(t) {
		b := b
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := session.NewStore(b)

			_, err := s.Load(ctx)
			require.ErrorIs(t, err, session.ErrNoSession)

			c := confirmedCredential(t)
			require.NoError(t, s.Save(ctx, c))
			require.NoError(t, s.Save(ctx, c))

			loaded, err := s.Load(ctx)
			require.NoError(t, err)
			require.Equal(t, c, loaded)
			again, err := s.Load(ctx)
			require.NoError(t, err)
			require.Equal(t, loaded, again)

			acc, err := loaded.Account()
			require.NoError(t, err)
			require.Equal(t, c.APIKey, acc.APIKey())

			require.NoError(t, s.Clear(ctx))
			require.NoError(t, s.Clear(ctx))
			_, err = s.Load(ctx)
			require.ErrorIs(t, err, session.ErrNoSession)
		})
	}
}

func TestUndecodableRecord(t *testing.T) {
	ctx := context.Background()
	b := session.NewMemoryBackend()
	s := session.NewStore(b)

	require.NoError(t, b.Put(ctx, session.RecordKey, []byte("{not json")))
	_, err := s.Load(ctx)
	require.ErrorIs(t, err, session.ErrNoSession)

	require.NoError(t, b.Put(ctx, session.RecordKey, []byte(`{"principal":""}`)))
	_, err = s.Load(ctx)
	require.ErrorIs(t, err, session.ErrNoSession)
}

func TestRecordFormat(t *testing.T) {
	c := confirmedCredential(t)
	c.Signed = "abcd"
	c.Chain = json.RawMessage(`{"publicKey":"00","delegations":[]}`)

	data, err := json.Marshal(c)
	require.NoError(t, err)
	var record map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &record))
	for _, field := range []string{"principal", "key", "apikey", "secretkey", "type", "signed", "chain"} {
		require.Contains(t, record, field)
	}
	require.JSONEq(t, `"302a3005"`, string(record["key"]))

	// The remote signer may report the key as an index object.
	var decoded session.Credential
	raw := `{"principal":"p","key":{"0":48,"1":42},"apikey":"","secretkey":{},"type":"Standard"}`
	require.NoError(t, json.Unmarshal([]byte(raw), &decoded))
	require.Equal(t, wire.KeyMaterial{48, 42}, decoded.Key)
}
