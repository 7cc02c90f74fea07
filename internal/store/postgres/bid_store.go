package postgres

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ledgerworks/auctiond/internal/domain"
)

// BidStore implements domain.BidStore using PostgreSQL.
type BidStore struct {
	pool *pgxpool.Pool
}

// NewBidStore creates a new BidStore backed by the given connection pool.
func NewBidStore(pool *pgxpool.Pool) *BidStore {
	return &BidStore{pool: pool}
}

const bidSelectCols = `id, auction_id, bidder, amount::text, placed_at`

func scanBidRows(rows pgx.Rows) ([]domain.Bid, error) {
	var bids []domain.Bid
	for rows.Next() {
		var (
			b      domain.Bid
			bidder string
			amount string
		)
		if err := rows.Scan(&b.ID, &b.AuctionID, &bidder, &amount, &b.PlacedAt); err != nil {
			return nil, err
		}
		b.Bidder = common.HexToAddress(bidder)
		v, ok := new(big.Int).SetString(amount, 10)
		if !ok {
			return nil, fmt.Errorf("invalid amount %q for bid %s", amount, b.ID)
		}
		b.Amount = v
		bids = append(bids, b)
	}
	return bids, rows.Err()
}

// Insert appends one accepted bid to the history.
func (s *BidStore) Insert(ctx context.Context, bid domain.Bid) error {
	const query = `
		INSERT INTO bids (id, auction_id, bidder, amount, placed_at)
		VALUES ($1, $2, $3, $4::numeric, $5)`

	_, err := s.pool.Exec(ctx, query,
		bid.ID, bid.AuctionID, bid.Bidder.Hex(), bid.Amount.String(), bid.PlacedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("postgres: insert bid: %w", err)
	}
	return nil
}

// ListByAuction returns the auction's bids in placement order with pagination.
func (s *BidStore) ListByAuction(ctx context.Context, auctionID uuid.UUID, opts domain.ListOpts) ([]domain.Bid, error) {
	query := `SELECT ` + bidSelectCols + ` FROM bids WHERE auction_id = $1 ORDER BY placed_at ASC`
	args := []any{auctionID}
	argIdx := 2

	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, opts.Limit)
		argIdx++
	}
	if opts.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIdx)
		args = append(args, opts.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list bids by auction: %w", err)
	}
	defer rows.Close()

	bids, err := scanBidRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan bids by auction: %w", err)
	}
	return bids, nil
}

// ListByBidder returns one bidder's bids across auctions, newest first.
func (s *BidStore) ListByBidder(ctx context.Context, bidder common.Address, opts domain.ListOpts) ([]domain.Bid, error) {
	query := `SELECT ` + bidSelectCols + ` FROM bids WHERE bidder = $1 ORDER BY placed_at DESC`
	args := []any{bidder.Hex()}
	argIdx := 2

	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, opts.Limit)
		argIdx++
	}
	if opts.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIdx)
		args = append(args, opts.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list bids by bidder: %w", err)
	}
	defer rows.Close()

	bids, err := scanBidRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan bids by bidder: %w", err)
	}
	return bids, nil
}

// LastPlacedAt returns the most recent bid timestamp for the auction, or the
// zero time if none exist.
func (s *BidStore) LastPlacedAt(ctx context.Context, auctionID uuid.UUID) (time.Time, error) {
	var ts *time.Time
	err := s.pool.QueryRow(ctx,
		"SELECT MAX(placed_at) FROM bids WHERE auction_id = $1", auctionID).Scan(&ts)
	if err != nil {
		return time.Time{}, fmt.Errorf("postgres: last bid timestamp: %w", err)
	}
	if ts == nil {
		return time.Time{}, nil
	}
	return *ts, nil
}
