package vault

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

type trackedFile struct {
	Owners    map[string][]string `json:"owners"`
	UpdatedAt string              `json:"updated_at"`
}

// ListStore persists the tracked vault addresses of each owner to a JSON file.
type ListStore struct {
	mu   sync.Mutex
	path string
}

func NewListStore(path string) *ListStore {
	return &ListStore{path: path}
}

// Load returns the tracked addresses of an owner.
func (l *ListStore) Load(owner string) ([]string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	file, err := l.read()
	if err != nil {
		return nil, err
	}
	return append([]string(nil), file.Owners[ownerKey(owner)]...), nil
}

// Add appends addresses to an owner's list, skipping ones already present.
// It returns the addresses that were newly added.
func (l *ListStore) Add(owner string, addresses ...string) ([]string, error) {
	for _, addr := range addresses {
		if !common.IsHexAddress(addr) {
			return nil, fmt.Errorf("invalid vault address: %s", addr)
		}
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	file, err := l.read()
	if err != nil {
		return nil, err
	}

	key := ownerKey(owner)
	existing := make(map[string]struct{}, len(file.Owners[key]))
	for _, addr := range file.Owners[key] {
		existing[addr] = struct{}{}
	}

	var added []string
	for _, addr := range addresses {
		norm := NormalizeAddress(addr)
		if _, ok := existing[norm]; ok {
			continue
		}
		existing[norm] = struct{}{}
		file.Owners[key] = append(file.Owners[key], norm)
		added = append(added, norm)
	}
	if len(added) == 0 {
		return nil, nil
	}
	return added, l.write(file)
}

// Remove drops an address from an owner's list. It reports whether it was present.
func (l *ListStore) Remove(owner, address string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	file, err := l.read()
	if err != nil {
		return false, err
	}

	key := ownerKey(owner)
	norm := NormalizeAddress(address)
	list := file.Owners[key]
	kept := list[:0]
	for _, addr := range list {
		if addr != norm {
			kept = append(kept, addr)
		}
	}
	if len(kept) == len(list) {
		return false, nil
	}
	if len(kept) == 0 {
		delete(file.Owners, key)
	} else {
		file.Owners[key] = kept
	}
	return true, l.write(file)
}

// Owners lists every owner with at least one tracked vault.
func (l *ListStore) Owners() ([]string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	file, err := l.read()
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(file.Owners))
	for owner := range file.Owners {
		out = append(out, owner)
	}
	sort.Strings(out)
	return out, nil
}

func (l *ListStore) read() (trackedFile, error) {
	file := trackedFile{Owners: make(map[string][]string)}

	stat, err := os.Stat(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return file, nil
		}
		return file, fmt.Errorf("stat vaults file: %w", err)
	}
	if stat.IsDir() {
		return file, fmt.Errorf("vaults file path is a directory")
	}

	data, err := os.ReadFile(l.path)
	if err != nil {
		return file, fmt.Errorf("read vaults file: %w", err)
	}
	if err := json.Unmarshal(data, &file); err != nil {
		return file, fmt.Errorf("parse vaults file: %w", err)
	}
	if file.Owners == nil {
		file.Owners = make(map[string][]string)
	}
	return file, nil
}

func (l *ListStore) write(file trackedFile) error {
	dir := filepath.Dir(l.path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create vaults dir: %w", err)
		}
	}

	file.UpdatedAt = time.Now().UTC().Format(time.RFC3339Nano)
	data, err := json.MarshalIndent(file, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal vaults file: %w", err)
	}

	tmpPath := l.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("write vaults tmp: %w", err)
	}
	if err := os.Rename(tmpPath, l.path); err != nil {
		return fmt.Errorf("rename vaults file: %w", err)
	}
	return nil
}

func ownerKey(owner string) string {
	return NormalizeAddress(owner)
}
