// Package domain defines the core types shared across the auction service:
// bids, settlement records, ledger events, and the store/cache interfaces
// implemented by the infrastructure packages.
package domain

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
)

// Bid is a single accepted bid in the auction's public history.
type Bid struct {
	ID        uuid.UUID      `json:"id"`
	AuctionID uuid.UUID      `json:"auction_id"`
	Bidder    common.Address `json:"bidder"`
	Amount    *big.Int       `json:"-"`
	PlacedAt  time.Time      `json:"placed_at"`
}

// UserBid is one entry of a bidder's personal bid history.
type UserBid struct {
	Amount   *big.Int  `json:"-"`
	PlacedAt time.Time `json:"placed_at"`
}

// SettlementKind classifies a settlement ledger row.
type SettlementKind string

const (
	SettlementRefund        SettlementKind = "refund"
	SettlementPartialRefund SettlementKind = "partial_refund"
	SettlementOwnerProceeds SettlementKind = "owner_proceeds"
)

// Settlement records one refund or proceeds transfer attempt, successful or
// not. Failed attempts are kept so operators can see which recipients need the
// self-service withdrawal path.
type Settlement struct {
	ID         uuid.UUID      `json:"id"`
	AuctionID  uuid.UUID      `json:"auction_id"`
	Kind       SettlementKind `json:"kind"`
	Account    common.Address `json:"account"`
	Amount     *big.Int       `json:"-"`
	Succeeded  bool           `json:"succeeded"`
	SettledAt  time.Time      `json:"settled_at"`
}

// AuctionStatus is a read-only snapshot of the ledger state.
type AuctionStatus struct {
	AuctionID     uuid.UUID      `json:"auction_id"`
	Owner         common.Address `json:"owner"`
	EndTime       time.Time      `json:"end_time"`
	Ended         bool           `json:"ended"`
	HighestBid    *big.Int       `json:"-"`
	HighestBidder common.Address `json:"highest_bidder"`
	BidCount      int            `json:"bid_count"`
	Participants  int            `json:"participants"`
}

// ListOpts carries standard pagination parameters for list queries.
type ListOpts struct {
	Limit  int
	Offset int
}
