package vault

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vaultScope/internal/model"
)

type captureSink struct {
	mu      sync.Mutex
	batches [][]model.VaultView
	err     error
}

func (s *captureSink) Name() string { return "capture" }

func (s *captureSink) PutSnapshots(_ context.Context, views []model.VaultView) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.batches = append(s.batches, views)
	return s.err
}

type countingRecorder struct {
	mu           sync.Mutex
	vaults       int
	failures     int
	feeds        map[string]int
	sinkFailures int
	unlockable   int
}

func (r *countingRecorder) RecordRefresh(_ context.Context, vaults, failures int, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.vaults += vaults
	r.failures += failures
}

func (r *countingRecorder) RecordFeed(_ context.Context, _ string, source string, _ bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.feeds == nil {
		r.feeds = make(map[string]int)
	}
	r.feeds[source]++
}

func (r *countingRecorder) RecordUnlockable(_ context.Context, count int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.unlockable = count
}

func (r *countingRecorder) RecordSinkFailure(context.Context, string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sinkFailures++
}

func TestRefreshOneFailureDoesNotBlockOthers(t *testing.T) {
	source := newFakeSource()
	good := rawHexVault(vaultA, "100000000000000000", 1_800_000_000, 1_700_000_000)
	source.vaults[common.HexToAddress(vaultA)] = good
	source.errs[common.HexToAddress(vaultB)] = errors.New("execution reverted")

	store := NewStore()
	store.Add(vaultA)
	store.Add(vaultB)

	sink := &captureSink{err: errors.New("disk full")}
	recorder := &countingRecorder{}
	refresher := NewRefresher(RefresherConfig{Concurrency: 4, MaxRetries: 1, RetryBackoff: time.Millisecond},
		source, store, nil, recorder, nil)
	refresher.sinks = append(refresher.sinks, sink)

	require.NoError(t, refresher.RefreshOnce(context.Background()))

	a, _ := store.Get(vaultA)
	assert.Empty(t, a.Error)
	assert.True(t, a.CanWithdraw())

	b, _ := store.Get(vaultB)
	assert.Equal(t, "execution reverted", b.Error)
	assert.Equal(t, 2, source.calls[common.HexToAddress(vaultB)])

	require.Len(t, sink.batches, 1)
	assert.Len(t, sink.batches[0], 2)
	assert.Equal(t, 2, recorder.vaults)
	assert.Equal(t, 1, recorder.failures)
	assert.Equal(t, 1, recorder.feeds["primary"])
	assert.Equal(t, 1, recorder.sinkFailures)
	assert.Equal(t, 1, recorder.unlockable)
}

func TestRefreshUnknownAssetIsNotRetried(t *testing.T) {
	source := newFakeSource()
	source.errs[common.HexToAddress(vaultA)] = fmt.Errorf("%w: lock token 0x01", ErrUnknownAsset)

	store := NewStore()
	store.Add(vaultA)

	refresher := NewRefresher(RefresherConfig{MaxRetries: 3, RetryBackoff: time.Millisecond}, source, store, nil, nil, nil)
	require.NoError(t, refresher.RefreshOnce(context.Background()))

	assert.Equal(t, 1, source.calls[common.HexToAddress(vaultA)])
	view, _ := store.Get(vaultA)
	assert.Contains(t, view.Error, "unknown asset")
}

func TestRefreshFollowsTrackedListChanges(t *testing.T) {
	const vaultC = "0x3333333333333333333333333333333333333333"

	source := newFakeSource()
	for _, addr := range []string{vaultA, vaultB, vaultC} {
		source.vaults[common.HexToAddress(addr)] = rawHexVault(addr, "500000000000000000", 1_800_000_000, 1_700_000_000)
	}

	list := NewListStore(filepath.Join(t.TempDir(), "vaults.json"))
	_, err := list.Add(ownerA, vaultA, vaultB)
	require.NoError(t, err)

	store := NewStore()
	refresher := NewRefresher(RefresherConfig{Concurrency: 2}, source, store, nil, nil, nil).
		WithTracked(func() ([]string, error) { return list.Load(ownerA) })

	require.NoError(t, refresher.RefreshOnce(context.Background()))
	assert.Equal(t, []string{NormalizeAddress(vaultA), vaultB}, store.Addresses())

	_, err = list.Add(ownerA, vaultC)
	require.NoError(t, err)
	removed, err := list.Remove(ownerA, vaultB)
	require.NoError(t, err)
	require.True(t, removed)

	require.NoError(t, refresher.RefreshOnce(context.Background()))
	assert.Equal(t, []string{NormalizeAddress(vaultA), vaultC}, store.Addresses())
	assert.Equal(t, 1, source.calls[common.HexToAddress(vaultB)])
	assert.Equal(t, 1, source.calls[common.HexToAddress(vaultC)])

	c, ok := store.Get(vaultC)
	require.True(t, ok)
	assert.False(t, c.RefreshedAt.IsZero())
}

func TestRefreshKeepsStoreWhenTrackedListFails(t *testing.T) {
	source := newFakeSource()
	source.vaults[common.HexToAddress(vaultA)] = rawHexVault(vaultA, "500000000000000000", 1_800_000_000, 1_700_000_000)

	store := NewStore()
	store.Add(vaultA)
	refresher := NewRefresher(RefresherConfig{}, source, store, nil, nil, nil).
		WithTracked(func() ([]string, error) { return nil, errors.New("parse vaults file: unexpected EOF") })

	require.NoError(t, refresher.RefreshOnce(context.Background()))
	assert.Equal(t, []string{NormalizeAddress(vaultA)}, store.Addresses())
	assert.Equal(t, 1, source.calls[common.HexToAddress(vaultA)])
}

func TestRefresherRunStopsOnCancel(t *testing.T) {
	source := newFakeSource()
	source.vaults[common.HexToAddress(vaultA)] = rawHexVault(vaultA, "500000000000000000", 1_800_000_000, 1_700_000_000)

	store := NewStore()
	store.Add(vaultA)

	sink := &captureSink{}
	refresher := NewRefresher(RefresherConfig{RefreshInterval: 5 * time.Millisecond, RecomputeInterval: time.Millisecond},
		source, store, nil, nil, nil)
	refresher.sinks = append(refresher.sinks, sink)

	ctx, cancel := context.WithTimeout(context.Background(), 40*time.Millisecond)
	defer cancel()

	err := refresher.Run(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	sink.mu.Lock()
	defer sink.mu.Unlock()
	assert.GreaterOrEqual(t, len(sink.batches), 2)
}

func TestRefresherRunValidates(t *testing.T) {
	refresher := NewRefresher(RefresherConfig{}, newFakeSource(), NewStore(), nil, nil, nil)
	assert.Error(t, refresher.Run(context.Background()))
}
