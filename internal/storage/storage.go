package storage

import (
	"context"
	"errors"
	"time"

	"liquidityEngine/internal/model"
)

var (
	// ErrNotFound is returned when a pool, snapshot, or position does not exist.
	ErrNotFound = errors.New("not found")
	// ErrInconsistentState is returned when the single-latest snapshot
	// invariant does not hold for a pool.
	ErrInconsistentState = errors.New("inconsistent snapshot state")
)

// PoolRepository persists pools and their snapshots.
type PoolRepository interface {
	GetPool(ctx context.Context, id int64) (model.Pool, error)
	ListPools(ctx context.Context, activeOnly bool) ([]model.Pool, error)
	UpsertPool(ctx context.Context, pool model.Pool) (model.Pool, error)
	// SavePoolState persists pool and inserts snapshot as the pool's latest,
	// demoting the previous latest snapshot in the same unit of work.
	SavePoolState(ctx context.Context, pool model.Pool, snapshot model.PoolSnapshot) (model.PoolSnapshot, error)
	LatestSnapshot(ctx context.Context, poolID int64) (model.PoolSnapshot, error)
	// ListSnapshots returns snapshots created at or after since, oldest first.
	// A zero poolID lists snapshots of every pool.
	ListSnapshots(ctx context.Context, poolID int64, since time.Time) ([]model.PoolSnapshot, error)
}

// PositionFilter narrows ListPositions.
type PositionFilter struct {
	PoolID     int64
	Wallet     string
	ActiveOnly bool
}

// PositionRepository persists liquidity positions and their ledger.
type PositionRepository interface {
	GetPosition(ctx context.Context, id int64) (model.Position, error)
	// ListPositions returns matching positions in insertion order.
	ListPositions(ctx context.Context, filter PositionFilter) ([]model.Position, error)
	CreatePosition(ctx context.Context, pos model.Position) (model.Position, error)
	UpdatePosition(ctx context.Context, pos model.Position) error
	AppendTransaction(ctx context.Context, tx model.LiquidityTransaction) (model.LiquidityTransaction, error)
	ListTransactions(ctx context.Context, positionID int64) ([]model.LiquidityTransaction, error)
}

// SnapshotSink receives every snapshot the synchronizer inserts.
type SnapshotSink interface {
	PutSnapshot(snapshot model.PoolSnapshot) error
}
