package postgres

import (
	"context"
	"fmt"

	"liquidityEngine/internal/model"
	"liquidityEngine/internal/storage"
)

const positionColumns = `id, wallet, pool_id, lp_token_amount, token0_amount, token1_amount,
	initial_value_usd, current_value_usd, fees_earned_usd, impermanent_loss, is_active, added_at, removed_at`

const transactionColumns = `id, position_id, wallet, type, lp_tokens, token0_amount, token1_amount, value_usd, tx_hash, created_at`

func scanPosition(row rowScanner) (model.Position, error) {
	var p model.Position
	err := row.Scan(
		&p.ID, &p.Wallet, &p.PoolID, &p.LPTokenAmount, &p.Token0Amount, &p.Token1Amount,
		&p.InitialValueUSD, &p.CurrentValueUSD, &p.FeesEarnedUSD, &p.ImpermanentLoss, &p.IsActive, &p.AddedAt, &p.RemovedAt,
	)
	return p, err
}

func scanTransaction(row rowScanner) (model.LiquidityTransaction, error) {
	var tx model.LiquidityTransaction
	var txType string
	err := row.Scan(
		&tx.ID, &tx.PositionID, &tx.Wallet, &txType, &tx.LPTokens, &tx.Token0Amount, &tx.Token1Amount,
		&tx.ValueUSD, &tx.TxHash, &tx.CreatedAt,
	)
	tx.Type = model.TransactionType(txType)
	return tx, err
}

func (s *Store) GetPosition(ctx context.Context, id int64) (model.Position, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+positionColumns+` FROM liquidity_positions WHERE id=$1`, id)
	pos, err := scanPosition(row)
	if err != nil {
		return model.Position{}, notFound(err, "position %d", id)
	}
	return pos, nil
}

func (s *Store) ListPositions(ctx context.Context, filter storage.PositionFilter) ([]model.Position, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+positionColumns+`
		FROM liquidity_positions
		WHERE ($1::bigint = 0 OR pool_id = $1)
			AND ($2::text = '' OR wallet = $2)
			AND ($3::boolean = false OR is_active)
		ORDER BY id
	`, filter.PoolID, model.NormalizeWallet(filter.Wallet), filter.ActiveOnly)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	positions := make([]model.Position, 0)
	for rows.Next() {
		pos, err := scanPosition(rows)
		if err != nil {
			return nil, err
		}
		positions = append(positions, pos)
	}
	return positions, rows.Err()
}

func (s *Store) CreatePosition(ctx context.Context, pos model.Position) (model.Position, error) {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO liquidity_positions (
			wallet, pool_id, lp_token_amount, token0_amount, token1_amount,
			initial_value_usd, current_value_usd, fees_earned_usd, impermanent_loss, is_active, added_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, COALESCE($11, now()))
		RETURNING `+positionColumns,
		model.NormalizeWallet(pos.Wallet),
		pos.PoolID,
		pos.LPTokenAmount,
		pos.Token0Amount,
		pos.Token1Amount,
		pos.InitialValueUSD,
		pos.CurrentValueUSD,
		pos.FeesEarnedUSD,
		pos.ImpermanentLoss,
		pos.IsActive,
		nullableTime(pos.AddedAt),
	)
	created, err := scanPosition(row)
	if err != nil {
		return model.Position{}, fmt.Errorf("insert position: %w", err)
	}
	return created, nil
}

func (s *Store) UpdatePosition(ctx context.Context, pos model.Position) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE liquidity_positions SET
			lp_token_amount = $2,
			token0_amount = $3,
			token1_amount = $4,
			current_value_usd = $5,
			fees_earned_usd = $6,
			impermanent_loss = $7,
			is_active = $8,
			removed_at = $9
		WHERE id = $1
	`,
		pos.ID,
		pos.LPTokenAmount,
		pos.Token0Amount,
		pos.Token1Amount,
		pos.CurrentValueUSD,
		pos.FeesEarnedUSD,
		pos.ImpermanentLoss,
		pos.IsActive,
		pos.RemovedAt,
	)
	if err != nil {
		return fmt.Errorf("update position: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("position %d: %w", pos.ID, storage.ErrNotFound)
	}
	return nil
}

func (s *Store) AppendTransaction(ctx context.Context, tx model.LiquidityTransaction) (model.LiquidityTransaction, error) {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO liquidity_transactions (
			position_id, wallet, type, lp_tokens, token0_amount, token1_amount, value_usd, tx_hash, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, COALESCE($9, now()))
		RETURNING `+transactionColumns,
		tx.PositionID,
		model.NormalizeWallet(tx.Wallet),
		string(tx.Type),
		tx.LPTokens,
		tx.Token0Amount,
		tx.Token1Amount,
		tx.ValueUSD,
		tx.TxHash,
		nullableTime(tx.CreatedAt),
	)
	created, err := scanTransaction(row)
	if err != nil {
		return model.LiquidityTransaction{}, fmt.Errorf("insert transaction: %w", err)
	}
	return created, nil
}

func (s *Store) ListTransactions(ctx context.Context, positionID int64) ([]model.LiquidityTransaction, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+transactionColumns+` FROM liquidity_transactions WHERE position_id=$1 ORDER BY id`, positionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	txs := make([]model.LiquidityTransaction, 0)
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		txs = append(txs, tx)
	}
	return txs, rows.Err()
}
