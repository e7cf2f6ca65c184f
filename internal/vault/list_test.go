package vault

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const ownerA = "0x5555555555555555555555555555555555555555"

func TestListStoreAddDeduplicates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "vaults.json")
	list := NewListStore(path)

	added, err := list.Add(ownerA, vaultA, vaultB)
	require.NoError(t, err)
	assert.Len(t, added, 2)

	added, err = list.Add(ownerA, "0x00000000000000000000000000000000000000a1")
	require.NoError(t, err)
	assert.Empty(t, added)

	got, err := list.Load(ownerA)
	require.NoError(t, err)
	assert.Equal(t, []string{"0x00000000000000000000000000000000000000a1", vaultB}, got)

	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err))
}

func TestListStoreRemove(t *testing.T) {
	list := NewListStore(filepath.Join(t.TempDir(), "vaults.json"))
	_, err := list.Add(ownerA, vaultA)
	require.NoError(t, err)

	removed, err := list.Remove(ownerA, vaultB)
	require.NoError(t, err)
	assert.False(t, removed)

	removed, err = list.Remove(ownerA, vaultA)
	require.NoError(t, err)
	assert.True(t, removed)

	owners, err := list.Owners()
	require.NoError(t, err)
	assert.Empty(t, owners)
}

func TestListStoreOwnersAreSeparate(t *testing.T) {
	list := NewListStore(filepath.Join(t.TempDir(), "vaults.json"))
	other := "0x6666666666666666666666666666666666666666"

	_, err := list.Add(ownerA, vaultA)
	require.NoError(t, err)
	_, err = list.Add(other, vaultB)
	require.NoError(t, err)

	got, err := list.Load(other)
	require.NoError(t, err)
	assert.Equal(t, []string{vaultB}, got)

	owners, err := list.Owners()
	require.NoError(t, err)
	assert.Len(t, owners, 2)
}

func TestListStoreRejectsBadAddress(t *testing.T) {
	list := NewListStore(filepath.Join(t.TempDir(), "vaults.json"))
	_, err := list.Add(ownerA, "not-an-address")
	assert.Error(t, err)
}

func TestListStoreMissingFile(t *testing.T) {
	list := NewListStore(filepath.Join(t.TempDir(), "absent.json"))
	got, err := list.Load(ownerA)
	require.NoError(t, err)
	assert.Empty(t, got)
}
