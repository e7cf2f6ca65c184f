package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"vaultScope/internal/model"
)

// Store provides Postgres persistence for vault snapshots and scan state.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

func (s *Store) Name() string {
	return "postgres"
}

// PutSnapshots upserts the latest state of each vault and appends a history row.
// Views without a completed refresh are skipped.
func (s *Store) PutSnapshots(ctx context.Context, views []model.VaultView) error {
	batch := &pgx.Batch{}
	for _, v := range views {
		if v.RefreshedAt.IsZero() {
			continue
		}
		batch.Queue(`
			INSERT INTO vaults (
				address, owner, asset_code, lock_token, is_native, threshold_fixed, unlock_time, start_time,
				withdrawn, locked_balance, price_fixed, price_source, goal_percent, can_withdraw, last_error,
				refreshed_at, created_at, updated_at
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,now(),now())
			ON CONFLICT (address)
			DO UPDATE SET
				owner = EXCLUDED.owner,
				asset_code = EXCLUDED.asset_code,
				lock_token = EXCLUDED.lock_token,
				is_native = EXCLUDED.is_native,
				threshold_fixed = EXCLUDED.threshold_fixed,
				unlock_time = EXCLUDED.unlock_time,
				start_time = EXCLUDED.start_time,
				withdrawn = vaults.withdrawn OR EXCLUDED.withdrawn,
				locked_balance = EXCLUDED.locked_balance,
				price_fixed = EXCLUDED.price_fixed,
				price_source = EXCLUDED.price_source,
				goal_percent = EXCLUDED.goal_percent,
				can_withdraw = EXCLUDED.can_withdraw AND NOT vaults.withdrawn,
				last_error = EXCLUDED.last_error,
				refreshed_at = EXCLUDED.refreshed_at,
				updated_at = now()
		`,
			v.Address,
			v.Owner,
			v.AssetCode,
			v.LockToken,
			v.IsNative,
			bigText(v.ThresholdFixed),
			v.UnlockTime,
			v.StartTime,
			v.Withdrawn,
			bigText(v.LockedBalance),
			bigText(v.Selection.PriceFixed),
			string(v.Selection.Source),
			v.Eligibility.GoalPercent,
			v.Eligibility.CanWithdraw,
			v.Error,
			v.RefreshedAt,
		)
		batch.Queue(`
			INSERT INTO vault_snapshots (
				address, price_fixed, price_float, price_source, primary_ok, backup_ok, feed_mismatch,
				goal_percent, can_withdraw, withdrawn, refreshed_at
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
		`,
			v.Address,
			bigText(v.Selection.PriceFixed),
			v.Selection.PriceFloat,
			string(v.Selection.Source),
			v.Primary.OK,
			v.Backup.OK,
			v.FeedMismatch,
			v.Eligibility.GoalPercent,
			v.Eligibility.CanWithdraw,
			v.Withdrawn,
			v.RefreshedAt,
		)
	}
	return s.sendBatch(ctx, batch)
}

// PutVaultCreated inserts factory events, ignoring ones already stored.
func (s *Store) PutVaultCreated(ctx context.Context, events []model.VaultCreated) error {
	batch := &pgx.Batch{}
	for _, e := range events {
		batch.Queue(`
			INSERT INTO vault_created_events (
				chain_id, tx_hash, log_index, block_number, factory, owner, vault, asset_key,
				asset_code, threshold_fixed, unlock_time, block_time
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
			ON CONFLICT (chain_id, tx_hash, log_index) DO NOTHING
		`,
			int64(e.ChainID),
			e.TxHash,
			int64(e.LogIndex),
			int64(e.BlockNumber),
			e.Factory,
			e.Owner,
			e.Vault,
			e.AssetKey,
			e.AssetCode,
			e.ThresholdFixed,
			int64(e.UnlockTime),
			int64(e.Timestamp),
		)
	}
	return s.sendBatch(ctx, batch)
}

func (s *Store) sendBatch(ctx context.Context, batch *pgx.Batch) error {
	if batch.Len() == 0 {
		return nil
	}
	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for i := 0; i < batch.Len(); i++ {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// LoadState returns last_processed_block for a scanner name.
func (s *Store) LoadState(ctx context.Context, name string) (uint64, bool, error) {
	if name == "" {
		return 0, false, fmt.Errorf("state name required")
	}
	var block int64
	row := s.pool.QueryRow(ctx, `SELECT last_processed_block FROM scanner_state WHERE name=$1`, name)
	if err := row.Scan(&block); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, err
	}
	return uint64(block), true, nil
}

// SaveState upserts last_processed_block for a scanner name.
func (s *Store) SaveState(ctx context.Context, name string, block uint64) error {
	if name == "" {
		return fmt.Errorf("state name required")
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO scanner_state (name, last_processed_block, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (name) DO UPDATE
		SET last_processed_block = EXCLUDED.last_processed_block, updated_at = now()
	`, name, int64(block))
	return err
}
