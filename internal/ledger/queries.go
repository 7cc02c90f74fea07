package ledger

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"github.com/ledgerworks/auctiond/internal/domain"
)

// AuctionID returns the ledger's auction identifier.
func (l *Ledger) AuctionID() uuid.UUID {
	return l.auctionID
}

// Owner returns the auction creator.
func (l *Ledger) Owner() common.Address {
	return l.owner
}

// Winner returns the current leader and their bid. ok is false while no bid
// has ever been placed.
func (l *Ledger) Winner() (winner common.Address, amount *big.Int, ok bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.highestBidder == (common.Address{}) {
		return common.Address{}, nil, false
	}
	return l.highestBidder, new(big.Int).Set(l.highestBid), true
}

// Bids returns a copy of the full public bid history in acceptance order.
func (l *Ledger) Bids() []domain.Bid {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]domain.Bid, len(l.bids))
	copy(out, l.bids)
	return out
}

// UserBids returns a copy of one bidder's personal bid history.
func (l *Ledger) UserBids(addr common.Address) []domain.UserBid {
	l.mu.Lock()
	defer l.mu.Unlock()
	src := l.bidsByUser[addr]
	out := make([]domain.UserBid, len(src))
	copy(out, src)
	return out
}

// UserTotal returns the bidder's current deposit (cumulative bids minus
// successful refunds).
func (l *Ledger) UserTotal(addr common.Address) *big.Int {
	l.mu.Lock()
	defer l.mu.Unlock()
	if dep, ok := l.deposits[addr]; ok {
		return new(big.Int).Set(dep)
	}
	return new(big.Int)
}

// Participants returns the deduplicated bidder set in first-bid order.
func (l *Ledger) Participants() []common.Address {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]common.Address, len(l.participants))
	copy(out, l.participants)
	return out
}

// Snapshot returns a point-in-time view of the auction state.
func (l *Ledger) Snapshot() domain.AuctionStatus {
	l.mu.Lock()
	defer l.mu.Unlock()
	return domain.AuctionStatus{
		AuctionID:     l.auctionID,
		Owner:         l.owner,
		EndTime:       l.endTime,
		Ended:         l.ended,
		HighestBid:    new(big.Int).Set(l.highestBid),
		HighestBidder: l.highestBidder,
		BidCount:      len(l.bids),
		Participants:  len(l.participants),
	}
}

// Balance returns the value currently held in escrow.
func (l *Ledger) Balance() *big.Int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return new(big.Int).Set(l.balance)
}
