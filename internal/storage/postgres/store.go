package postgres

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"liquidityEngine/internal/model"
	"liquidityEngine/internal/storage"
)

//go:embed schema.sql
var schemaSQL string

const poolColumns = `id, token0_symbol, token1_symbol, token0_address, token1_address, dex_name, pool_address,
	reserve0, reserve1, current_price, tvl_usd, volume_24h_usd, fee_percentage, apy,
	is_active, is_featured, created_at, updated_at`

const snapshotColumns = `id, pool_id, reserve0, reserve1, price, tvl_usd, volume_24h_usd, apy, is_latest, created_at`

// Store provides Postgres persistence for pools, snapshots, and positions.
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

// Migrate applies the embedded schema. Statements are idempotent.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPool(row rowScanner) (model.Pool, error) {
	var p model.Pool
	err := row.Scan(
		&p.ID, &p.Token0Symbol, &p.Token1Symbol, &p.Token0Address, &p.Token1Address, &p.DexName, &p.PoolAddress,
		&p.Reserve0, &p.Reserve1, &p.CurrentPrice, &p.TVLUSD, &p.Volume24hUSD, &p.FeePercentage, &p.APY,
		&p.IsActive, &p.IsFeatured, &p.CreatedAt, &p.UpdatedAt,
	)
	return p, err
}

func scanSnapshot(row rowScanner) (model.PoolSnapshot, error) {
	var snap model.PoolSnapshot
	err := row.Scan(
		&snap.ID, &snap.PoolID, &snap.Reserve0, &snap.Reserve1, &snap.Price,
		&snap.TVLUSD, &snap.Volume24hUSD, &snap.APY, &snap.IsLatest, &snap.CreatedAt,
	)
	return snap, err
}

func notFound(err error, format string, args ...any) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf(format+": %w", append(args, storage.ErrNotFound)...)
	}
	return err
}

func (s *Store) GetPool(ctx context.Context, id int64) (model.Pool, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+poolColumns+` FROM pools WHERE id=$1`, id)
	pool, err := scanPool(row)
	if err != nil {
		return model.Pool{}, notFound(err, "pool %d", id)
	}
	return pool, nil
}

func (s *Store) ListPools(ctx context.Context, activeOnly bool) ([]model.Pool, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+poolColumns+` FROM pools WHERE ($1::boolean = false OR is_active) ORDER BY id`, activeOnly)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	pools := make([]model.Pool, 0)
	for rows.Next() {
		pool, err := scanPool(rows)
		if err != nil {
			return nil, err
		}
		pools = append(pools, pool)
	}
	return pools, rows.Err()
}

// UpsertPool registers pool metadata keyed by pool address. Synchronized
// fields are left untouched on conflict.
func (s *Store) UpsertPool(ctx context.Context, pool model.Pool) (model.Pool, error) {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO pools (
			token0_symbol, token1_symbol, token0_address, token1_address, dex_name, pool_address,
			fee_percentage, is_active, is_featured, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, now(), now())
		ON CONFLICT (pool_address)
		DO UPDATE SET
			token0_symbol = EXCLUDED.token0_symbol,
			token1_symbol = EXCLUDED.token1_symbol,
			token0_address = EXCLUDED.token0_address,
			token1_address = EXCLUDED.token1_address,
			dex_name = EXCLUDED.dex_name,
			fee_percentage = EXCLUDED.fee_percentage,
			is_active = EXCLUDED.is_active,
			is_featured = EXCLUDED.is_featured,
			updated_at = now()
		RETURNING `+poolColumns,
		pool.Token0Symbol,
		pool.Token1Symbol,
		pool.Token0Address,
		pool.Token1Address,
		pool.DexName,
		pool.PoolAddress,
		pool.FeePercentage,
		pool.IsActive,
		pool.IsFeatured,
	)
	return scanPool(row)
}

// SavePoolState writes the pool row and swaps the latest snapshot inside one
// transaction. The pool row is locked first so concurrent writers for the
// same pool serialize.
func (s *Store) SavePoolState(ctx context.Context, pool model.Pool, snapshot model.PoolSnapshot) (model.PoolSnapshot, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return model.PoolSnapshot{}, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	var locked int64
	if err := tx.QueryRow(ctx, `SELECT id FROM pools WHERE id=$1 FOR UPDATE`, pool.ID).Scan(&locked); err != nil {
		return model.PoolSnapshot{}, notFound(err, "pool %d", pool.ID)
	}

	if _, err := tx.Exec(ctx, `
		UPDATE pools SET
			reserve0 = $2,
			reserve1 = $3,
			current_price = $4,
			tvl_usd = $5,
			volume_24h_usd = $6,
			apy = $7,
			updated_at = $8
		WHERE id = $1
	`,
		pool.ID,
		pool.Reserve0,
		pool.Reserve1,
		pool.CurrentPrice,
		pool.TVLUSD,
		pool.Volume24hUSD,
		pool.APY,
		pool.UpdatedAt,
	); err != nil {
		return model.PoolSnapshot{}, fmt.Errorf("update pool: %w", err)
	}

	tag, err := tx.Exec(ctx, `UPDATE pool_snapshots SET is_latest = false WHERE pool_id = $1 AND is_latest`, pool.ID)
	if err != nil {
		return model.PoolSnapshot{}, fmt.Errorf("demote latest snapshot: %w", err)
	}
	if tag.RowsAffected() > 1 {
		return model.PoolSnapshot{}, fmt.Errorf("pool %d demoted %d latest snapshots: %w", pool.ID, tag.RowsAffected(), storage.ErrInconsistentState)
	}

	row := tx.QueryRow(ctx, `
		INSERT INTO pool_snapshots (pool_id, reserve0, reserve1, price, tvl_usd, volume_24h_usd, apy, is_latest, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, true, $8)
		RETURNING `+snapshotColumns,
		pool.ID,
		snapshot.Reserve0,
		snapshot.Reserve1,
		snapshot.Price,
		snapshot.TVLUSD,
		snapshot.Volume24hUSD,
		snapshot.APY,
		snapshot.CreatedAt,
	)
	inserted, err := scanSnapshot(row)
	if err != nil {
		return model.PoolSnapshot{}, fmt.Errorf("insert snapshot: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return model.PoolSnapshot{}, fmt.Errorf("commit: %w", err)
	}
	return inserted, nil
}

func (s *Store) LatestSnapshot(ctx context.Context, poolID int64) (model.PoolSnapshot, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+snapshotColumns+` FROM pool_snapshots WHERE pool_id=$1 AND is_latest`, poolID)
	snap, err := scanSnapshot(row)
	if err != nil {
		return model.PoolSnapshot{}, notFound(err, "latest snapshot for pool %d", poolID)
	}
	return snap, nil
}

func (s *Store) ListSnapshots(ctx context.Context, poolID int64, since time.Time) ([]model.PoolSnapshot, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+snapshotColumns+`
		FROM pool_snapshots
		WHERE ($1::bigint = 0 OR pool_id = $1) AND created_at >= $2
		ORDER BY created_at, id
	`, poolID, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	snapshots := make([]model.PoolSnapshot, 0)
	for rows.Next() {
		snap, err := scanSnapshot(rows)
		if err != nil {
			return nil, err
		}
		snapshots = append(snapshots, snap)
	}
	return snapshots, rows.Err()
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
