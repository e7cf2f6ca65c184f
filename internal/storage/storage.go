package storage

import (
	"context"
	"errors"

	"vaultScope/internal/model"
)

// ErrCacheMiss is returned when a cached view is absent or expired.
var ErrCacheMiss = errors.New("cache miss")

// SnapshotSink receives the vault views produced by each authoritative refresh.
type SnapshotSink interface {
	Name() string
	PutSnapshots(ctx context.Context, views []model.VaultView) error
}

// EventSink receives factory events found by the registry scan.
type EventSink interface {
	PutVaultCreated(ctx context.Context, events []model.VaultCreated) error
}
