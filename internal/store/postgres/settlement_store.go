package postgres

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ledgerworks/auctiond/internal/domain"
)

// SettlementStore implements domain.SettlementStore using PostgreSQL.
type SettlementStore struct {
	pool *pgxpool.Pool
}

// NewSettlementStore creates a new SettlementStore backed by the given pool.
func NewSettlementStore(pool *pgxpool.Pool) *SettlementStore {
	return &SettlementStore{pool: pool}
}

// Record persists one settlement attempt.
func (s *SettlementStore) Record(ctx context.Context, stl domain.Settlement) error {
	const query = `
		INSERT INTO settlements (id, auction_id, kind, account, amount, succeeded, settled_at)
		VALUES ($1, $2, $3, $4, $5::numeric, $6, $7)`

	_, err := s.pool.Exec(ctx, query,
		stl.ID, stl.AuctionID, string(stl.Kind), stl.Account.Hex(),
		stl.Amount.String(), stl.Succeeded, stl.SettledAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("postgres: record settlement: %w", err)
	}
	return nil
}

// ListByAuction returns the auction's settlement attempts in time order.
func (s *SettlementStore) ListByAuction(ctx context.Context, auctionID uuid.UUID) ([]domain.Settlement, error) {
	const query = `
		SELECT id, auction_id, kind, account, amount::text, succeeded, settled_at
		FROM settlements WHERE auction_id = $1 ORDER BY settled_at ASC`

	rows, err := s.pool.Query(ctx, query, auctionID)
	if err != nil {
		return nil, fmt.Errorf("postgres: list settlements: %w", err)
	}
	defer rows.Close()

	var out []domain.Settlement
	for rows.Next() {
		var (
			stl     domain.Settlement
			kind    string
			account string
			amount  string
		)
		if err := rows.Scan(&stl.ID, &stl.AuctionID, &kind, &account, &amount, &stl.Succeeded, &stl.SettledAt); err != nil {
			return nil, fmt.Errorf("postgres: scan settlement: %w", err)
		}
		stl.Kind = domain.SettlementKind(kind)
		stl.Account = common.HexToAddress(account)
		v, ok := new(big.Int).SetString(amount, 10)
		if !ok {
			return nil, fmt.Errorf("postgres: invalid amount %q for settlement %s", amount, stl.ID)
		}
		stl.Amount = v
		out = append(out, stl)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterate settlements: %w", err)
	}
	return out, nil
}
