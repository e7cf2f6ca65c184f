package main

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vaultScope/internal/vault"
)

func TestCheckCommand(t *testing.T) {
	cmd := newCheckCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{
		"--price", "0.5",
		"--threshold", "1",
		"--unlock-time", "2023-11-15T00:00:00Z",
		"--now", "2023-11-14T00:00:00Z",
	})
	require.NoError(t, cmd.Execute())

	var got checkResult
	require.NoError(t, json.Unmarshal(out.Bytes(), &got))
	assert.Equal(t, "500000000000000000", got.PriceFixed)
	assert.Equal(t, "1000000000000000000", got.ThresholdFixed)
	assert.InDelta(t, 50.0, got.Eligibility.GoalPercent, 1e-9)
	assert.False(t, got.Eligibility.CanWithdraw)
	assert.Equal(t, "1d", got.Countdown)
}

func TestCheckCommandRequiresThreshold(t *testing.T) {
	cmd := newCheckCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"--unlock-time", "100"})
	assert.Error(t, cmd.Execute())
}

func TestLoadTracked(t *testing.T) {
	list := vault.NewListStore(filepath.Join(t.TempDir(), "vaults.json"))
	_, err := list.Add("0x5555555555555555555555555555555555555555", "0x1111111111111111111111111111111111111111")
	require.NoError(t, err)
	_, err = list.Add("0x6666666666666666666666666666666666666666", "0x2222222222222222222222222222222222222222")
	require.NoError(t, err)

	all, err := loadTracked(list, "")
	require.NoError(t, err)
	assert.Len(t, all.Addresses(), 2)

	one, err := loadTracked(list, "0x6666666666666666666666666666666666666666")
	require.NoError(t, err)
	assert.Equal(t, []string{"0x2222222222222222222222222222222222222222"}, one.Addresses())

	// Later edits to the list show up on the next read.
	_, err = list.Add("0x6666666666666666666666666666666666666666", "0x3333333333333333333333333333333333333333")
	require.NoError(t, err)
	addrs, err := trackedAddresses(list, "0x6666666666666666666666666666666666666666")
	require.NoError(t, err)
	assert.Equal(t, []string{"0x2222222222222222222222222222222222222222", "0x3333333333333333333333333333333333333333"}, addrs)
}

func TestNewLoggerRejectsBadLevel(t *testing.T) {
	_, err := newLogger("loud")
	assert.Error(t, err)

	logger, err := newLogger("debug")
	require.NoError(t, err)
	assert.NotNil(t, logger)
}
