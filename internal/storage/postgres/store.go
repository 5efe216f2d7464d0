package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"positionRegistry/internal/model"
)

// Store provides Postgres persistence for position snapshots and runner
// progress.
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

// UpsertPositions inserts or updates position snapshots.
func (s *Store) UpsertPositions(ctx context.Context, snapshots []model.PositionSnapshot) error {
	if len(snapshots) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, snap := range snapshots {
		batch.Queue(`
			INSERT INTO positions (
				token_id, owner, token0, token1, fee, tick_lower, tick_upper,
				liquidity, fee_growth_inside0_last_x128, fee_growth_inside1_last_x128,
				tokens_owed0, tokens_owed1, nonce, operator, created_at, updated_at
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,now(),now())
			ON CONFLICT (token_id)
			DO UPDATE SET
				owner = EXCLUDED.owner,
				liquidity = EXCLUDED.liquidity,
				fee_growth_inside0_last_x128 = EXCLUDED.fee_growth_inside0_last_x128,
				fee_growth_inside1_last_x128 = EXCLUDED.fee_growth_inside1_last_x128,
				tokens_owed0 = EXCLUDED.tokens_owed0,
				tokens_owed1 = EXCLUDED.tokens_owed1,
				nonce = EXCLUDED.nonce,
				operator = EXCLUDED.operator,
				updated_at = now()
		`,
			int64(snap.TokenID),
			snap.Owner,
			snap.Token0,
			snap.Token1,
			snap.Fee,
			snap.TickLower,
			snap.TickUpper,
			snap.Liquidity,
			snap.FeeGrowth0,
			snap.FeeGrowth1,
			snap.TokensOwed0,
			snap.TokensOwed1,
			int64(snap.Nonce),
			snap.Operator,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range snapshots {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// DeletePositions removes burned positions by token id.
func (s *Store) DeletePositions(ctx context.Context, tokenIDs []uint64) error {
	if len(tokenIDs) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, id := range tokenIDs {
		batch.Queue(`DELETE FROM positions WHERE token_id=$1`, int64(id))
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range tokenIDs {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// LoadPosition returns one persisted snapshot.
func (s *Store) LoadPosition(ctx context.Context, tokenID uint64) (model.PositionSnapshot, bool, error) {
	var snap model.PositionSnapshot
	var id int64
	var nonce int64
	row := s.pool.QueryRow(ctx, `
		SELECT token_id, owner, token0, token1, fee, tick_lower, tick_upper,
			liquidity, fee_growth_inside0_last_x128, fee_growth_inside1_last_x128,
			tokens_owed0, tokens_owed1, nonce, operator
		FROM positions WHERE token_id=$1
	`, int64(tokenID))
	err := row.Scan(&id, &snap.Owner, &snap.Token0, &snap.Token1, &snap.Fee,
		&snap.TickLower, &snap.TickUpper, &snap.Liquidity, &snap.FeeGrowth0,
		&snap.FeeGrowth1, &snap.TokensOwed0, &snap.TokensOwed1, &nonce, &snap.Operator)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.PositionSnapshot{}, false, nil
		}
		return model.PositionSnapshot{}, false, err
	}
	snap.TokenID = uint64(id)
	snap.Nonce = uint64(nonce)
	return snap, true, nil
}

// LoadState returns the last executed batch for a name.
func (s *Store) LoadState(ctx context.Context, name string) (uint64, bool, error) {
	if name == "" {
		return 0, false, fmt.Errorf("state name required")
	}
	var batchNo uint64
	row := s.pool.QueryRow(ctx, `SELECT last_batch FROM runner_state WHERE name=$1`, name)
	if err := row.Scan(&batchNo); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, err
	}
	return batchNo, true, nil
}

// SaveState upserts the last executed batch for a name.
func (s *Store) SaveState(ctx context.Context, name string, batchNo uint64) error {
	if name == "" {
		return fmt.Errorf("state name required")
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO runner_state (name, last_batch, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (name) DO UPDATE
		SET last_batch = EXCLUDED.last_batch, updated_at = now()
	`, name, batchNo)
	return err
}
