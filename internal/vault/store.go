package vault

import (
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"vaultScope/internal/model"
)

// ErrNotTracked is returned when a vault address is not in the store.
var ErrNotTracked = errors.New("vault not tracked")

// NormalizeAddress lower-cases a hex address for use as a store key.
func NormalizeAddress(address string) string {
	return strings.ToLower(common.HexToAddress(strings.TrimSpace(address)).Hex())
}

// Store holds the latest view of every tracked vault, keyed by address.
type Store struct {
	mu    sync.RWMutex
	views map[string]model.VaultView
}

func NewStore() *Store {
	return &Store{views: make(map[string]model.VaultView)}
}

// Add starts tracking an address. It reports false if it was already tracked.
func (s *Store) Add(address string) bool {
	key := NormalizeAddress(address)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.views[key]; ok {
		return false
	}
	s.views[key] = model.VaultView{Address: key}
	return true
}

// Remove stops tracking an address.
func (s *Store) Remove(address string) bool {
	key := NormalizeAddress(address)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.views[key]; !ok {
		return false
	}
	delete(s.views, key)
	return true
}

func (s *Store) Get(address string) (model.VaultView, bool) {
	s.mu.RLock()
	view, ok := s.views[NormalizeAddress(address)]
	s.mu.RUnlock()
	return view, ok
}

// Addresses returns the tracked addresses in sorted order.
func (s *Store) Addresses() []string {
	s.mu.RLock()
	out := make([]string, 0, len(s.views))
	for key := range s.views {
		out = append(out, key)
	}
	s.mu.RUnlock()
	sort.Strings(out)
	return out
}

// List returns every tracked view sorted by address.
func (s *Store) List() []model.VaultView {
	s.mu.RLock()
	out := make([]model.VaultView, 0, len(s.views))
	for _, view := range s.views {
		out = append(out, view)
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Address < out[j].Address })
	return out
}

// Upsert replaces the view of a tracked vault. Withdrawn never reverts to false.
func (s *Store) Upsert(view model.VaultView) error {
	key := NormalizeAddress(view.Address)
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, ok := s.views[key]
	if !ok {
		return ErrNotTracked
	}
	view.Address = key
	if prev.Withdrawn && !view.Withdrawn {
		view.Withdrawn = true
		view.Eligibility.CanWithdraw = false
	}
	s.views[key] = view
	return nil
}

// MarkError records a failed refresh while keeping the last good view.
func (s *Store) MarkError(address string, cause error) error {
	key := NormalizeAddress(address)
	s.mu.Lock()
	defer s.mu.Unlock()

	view, ok := s.views[key]
	if !ok {
		return ErrNotTracked
	}
	view.Error = ""
	if cause != nil {
		view.Error = cause.Error()
	}
	s.views[key] = view
	return nil
}

// Recompute re-derives eligibility for every view from cached prices at now.
func (s *Store) Recompute(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, view := range s.views {
		if view.RefreshedAt.IsZero() {
			continue
		}
		s.views[key] = Recompute(view, now)
	}
}

// CountUnlockable returns how many tracked vaults can be withdrawn right now.
func (s *Store) CountUnlockable() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, view := range s.views {
		if view.Eligibility.CanWithdraw {
			n++
		}
	}
	return n
}
