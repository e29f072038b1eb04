package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"liquidityEngine/internal/model"
	"liquidityEngine/internal/storage"
)

// Store is an in-process implementation of the pool and position
// repositories. Snapshot demotion and insertion happen under one lock.
type Store struct {
	mu           sync.RWMutex
	pools        map[int64]model.Pool
	snapshots    []model.PoolSnapshot
	positions    []model.Position
	transactions []model.LiquidityTransaction

	nextPoolID     int64
	nextSnapshotID int64
	nextPositionID int64
	nextTxID       int64
}

func NewStore() *Store {
	return &Store{pools: make(map[int64]model.Pool)}
}

func (s *Store) GetPool(ctx context.Context, id int64) (model.Pool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	pool, ok := s.pools[id]
	if !ok {
		return model.Pool{}, fmt.Errorf("pool %d: %w", id, storage.ErrNotFound)
	}
	return pool, nil
}

func (s *Store) ListPools(ctx context.Context, activeOnly bool) ([]model.Pool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.Pool, 0, len(s.pools))
	for _, pool := range s.pools {
		if activeOnly && !pool.IsActive {
			continue
		}
		out = append(out, pool)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) UpsertPool(ctx context.Context, pool model.Pool) (model.Pool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if pool.ID == 0 && pool.PoolAddress != "" {
		if existing, ok := s.byAddress(pool.PoolAddress); ok {
			existing.Token0Symbol, existing.Token1Symbol = pool.Token0Symbol, pool.Token1Symbol
			existing.Token0Address, existing.Token1Address = pool.Token0Address, pool.Token1Address
			existing.DexName = pool.DexName
			existing.FeePercentage = pool.FeePercentage
			existing.IsActive, existing.IsFeatured = pool.IsActive, pool.IsFeatured
			existing.UpdatedAt = time.Now().UTC()
			s.pools[existing.ID] = existing
			return existing, nil
		}
	}

	if pool.ID == 0 {
		s.nextPoolID++
		pool.ID = s.nextPoolID
	} else if pool.ID > s.nextPoolID {
		s.nextPoolID = pool.ID
	}
	if pool.CreatedAt.IsZero() {
		pool.CreatedAt = time.Now().UTC()
	}
	if existing, ok := s.pools[pool.ID]; ok {
		pool.CreatedAt = existing.CreatedAt
	}
	s.pools[pool.ID] = pool
	return pool, nil
}

// byAddress must be called with mu held.
func (s *Store) byAddress(address string) (model.Pool, bool) {
	for _, pool := range s.pools {
		if strings.EqualFold(pool.PoolAddress, address) {
			return pool, true
		}
	}
	return model.Pool{}, false
}

func (s *Store) SavePoolState(ctx context.Context, pool model.Pool, snapshot model.PoolSnapshot) (model.PoolSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.pools[pool.ID]; !ok {
		return model.PoolSnapshot{}, fmt.Errorf("pool %d: %w", pool.ID, storage.ErrNotFound)
	}

	latest := -1
	for i := range s.snapshots {
		if s.snapshots[i].PoolID != pool.ID || !s.snapshots[i].IsLatest {
			continue
		}
		if latest >= 0 {
			return model.PoolSnapshot{}, fmt.Errorf("pool %d has multiple latest snapshots: %w", pool.ID, storage.ErrInconsistentState)
		}
		latest = i
	}
	if latest >= 0 {
		s.snapshots[latest].IsLatest = false
	}

	s.nextSnapshotID++
	snapshot.ID = s.nextSnapshotID
	snapshot.PoolID = pool.ID
	snapshot.IsLatest = true
	s.snapshots = append(s.snapshots, snapshot)

	// Registration metadata is left as stored.
	stored := s.pools[pool.ID]
	stored.Reserve0, stored.Reserve1 = pool.Reserve0, pool.Reserve1
	stored.CurrentPrice = pool.CurrentPrice
	stored.TVLUSD = pool.TVLUSD
	stored.Volume24hUSD = pool.Volume24hUSD
	stored.APY = pool.APY
	stored.UpdatedAt = pool.UpdatedAt
	s.pools[pool.ID] = stored

	return snapshot, nil
}

func (s *Store) LatestSnapshot(ctx context.Context, poolID int64) (model.PoolSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for i := len(s.snapshots) - 1; i >= 0; i-- {
		if s.snapshots[i].PoolID == poolID && s.snapshots[i].IsLatest {
			return s.snapshots[i], nil
		}
	}
	return model.PoolSnapshot{}, fmt.Errorf("latest snapshot for pool %d: %w", poolID, storage.ErrNotFound)
}

func (s *Store) ListSnapshots(ctx context.Context, poolID int64, since time.Time) ([]model.PoolSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.PoolSnapshot, 0)
	for _, snapshot := range s.snapshots {
		if poolID != 0 && snapshot.PoolID != poolID {
			continue
		}
		if snapshot.CreatedAt.Before(since) {
			continue
		}
		out = append(out, snapshot)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) GetPosition(ctx context.Context, id int64) (model.Position, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, pos := range s.positions {
		if pos.ID == id {
			return pos, nil
		}
	}
	return model.Position{}, fmt.Errorf("position %d: %w", id, storage.ErrNotFound)
}

func (s *Store) ListPositions(ctx context.Context, filter storage.PositionFilter) ([]model.Position, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	wallet := model.NormalizeWallet(filter.Wallet)
	out := make([]model.Position, 0)
	for _, pos := range s.positions {
		if filter.PoolID != 0 && pos.PoolID != filter.PoolID {
			continue
		}
		if wallet != "" && pos.Wallet != wallet {
			continue
		}
		if filter.ActiveOnly && !pos.IsActive {
			continue
		}
		out = append(out, pos)
	}
	return out, nil
}

func (s *Store) CreatePosition(ctx context.Context, pos model.Position) (model.Position, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextPositionID++
	pos.ID = s.nextPositionID
	pos.Wallet = model.NormalizeWallet(pos.Wallet)
	if pos.AddedAt.IsZero() {
		pos.AddedAt = time.Now().UTC()
	}
	s.positions = append(s.positions, pos)
	return pos, nil
}

func (s *Store) UpdatePosition(ctx context.Context, pos model.Position) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.positions {
		if s.positions[i].ID == pos.ID {
			pos.Wallet = model.NormalizeWallet(pos.Wallet)
			s.positions[i] = pos
			return nil
		}
	}
	return fmt.Errorf("position %d: %w", pos.ID, storage.ErrNotFound)
}

func (s *Store) AppendTransaction(ctx context.Context, tx model.LiquidityTransaction) (model.LiquidityTransaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextTxID++
	tx.ID = s.nextTxID
	tx.Wallet = model.NormalizeWallet(tx.Wallet)
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = time.Now().UTC()
	}
	s.transactions = append(s.transactions, tx)
	return tx, nil
}

func (s *Store) ListTransactions(ctx context.Context, positionID int64) ([]model.LiquidityTransaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.LiquidityTransaction, 0)
	for _, tx := range s.transactions {
		if tx.PositionID == positionID {
			out = append(out, tx)
		}
	}
	return out, nil
}
