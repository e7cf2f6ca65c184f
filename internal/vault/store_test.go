package vault

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vaultScope/internal/model"
)

const vaultB = "0x00000000000000000000000000000000000000b2"

func TestStoreAddRemove(t *testing.T) {
	store := NewStore()

	assert.True(t, store.Add(vaultB))
	assert.True(t, store.Add(vaultA))
	assert.False(t, store.Add("0x00000000000000000000000000000000000000B2"))

	list := store.List()
	require.Len(t, list, 2)
	assert.Equal(t, "0x00000000000000000000000000000000000000a1", list[0].Address)
	assert.Equal(t, vaultB, list[1].Address)

	assert.True(t, store.Remove(vaultA))
	assert.False(t, store.Remove(vaultA))
	_, ok := store.Get(vaultA)
	assert.False(t, ok)
}

func TestStoreUpsertRequiresTracking(t *testing.T) {
	store := NewStore()
	err := store.Upsert(model.VaultView{Address: vaultA})
	assert.ErrorIs(t, err, ErrNotTracked)
	assert.ErrorIs(t, store.MarkError(vaultA, errors.New("x")), ErrNotTracked)
}

func TestStoreWithdrawnIsMonotonic(t *testing.T) {
	store := NewStore()
	store.Add(vaultA)

	now := time.Unix(1_700_000_000, 0)
	raw := rawHexVault(vaultA, "100000000000000000", 1_600_000_000, 1_500_000_000)
	raw.Terms.Withdrawn = true
	require.NoError(t, store.Upsert(BuildView(raw, now)))

	// A lagging RPC node reports the vault as not yet withdrawn.
	raw.Terms.Withdrawn = false
	stale := BuildView(raw, now)
	require.True(t, stale.CanWithdraw())
	require.NoError(t, store.Upsert(stale))

	view, ok := store.Get(vaultA)
	require.True(t, ok)
	assert.True(t, view.Withdrawn)
	assert.False(t, view.CanWithdraw())

	store.Recompute(now.Add(time.Hour))
	view, _ = store.Get(vaultA)
	assert.False(t, view.CanWithdraw())
}

func TestStoreMarkErrorKeepsLastGoodView(t *testing.T) {
	store := NewStore()
	store.Add(vaultA)

	raw := rawHexVault(vaultA, "500000000000000000", 1_800_000_000, 1_700_000_000)
	require.NoError(t, store.Upsert(BuildView(raw, time.Unix(1_700_000_000, 0))))
	require.NoError(t, store.MarkError(vaultA, errors.New("rpc timeout")))

	view, _ := store.Get(vaultA)
	assert.Equal(t, "rpc timeout", view.Error)
	assert.Equal(t, model.FeedPrimary, view.Selection.Source)
	assert.InDelta(t, 0.25, view.Selection.PriceFloat, 1e-12)
}

func TestStoreRecomputeSkipsUnrefreshed(t *testing.T) {
	store := NewStore()
	store.Add(vaultA)
	store.Add(vaultB)

	raw := rawHexVault(vaultA, "500000000000000000", 1_700_000_100, 1_700_000_000)
	require.NoError(t, store.Upsert(BuildView(raw, time.Unix(1_700_000_000, 0))))
	assert.Equal(t, 0, store.CountUnlockable())

	store.Recompute(time.Unix(1_700_000_200, 0))

	assert.Equal(t, 1, store.CountUnlockable())
	pending, _ := store.Get(vaultB)
	assert.True(t, pending.RefreshedAt.IsZero())
	assert.False(t, pending.Eligibility.TimeConditionMet)
}
