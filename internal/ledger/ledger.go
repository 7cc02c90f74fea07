// Package ledger implements the auction state machine: bid acceptance with a
// minimum-increment rule, anti-snipe deadline extension, and post-auction
// settlement of every participant's deposit into either a winner payout for
// the owner or a commissioned refund.
//
// All operations are strictly serialized by a single mutex; each either fully
// commits or fully aborts. The one designed exception is SweepRefunds, where
// a failed payment for one participant is recorded and skipped without
// aborting the rest of the sweep. Refund bookkeeping is mutated only after
// the corresponding payment succeeds, so a failed payment leaves the deposit
// intact and the self-service withdrawal can retry it.
package ledger

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"github.com/ledgerworks/auctiond/internal/domain"
	"github.com/ledgerworks/auctiond/internal/transfer"
)

const (
	// CommissionPct is the fee retained from every refund payout.
	CommissionPct = 2

	// MinIncrementPct is the minimum step over the current highest bid.
	MinIncrementPct = 5

	// ExtensionWindow is the anti-snipe window. A bid landing with less than
	// this much time remaining resets the deadline to exactly now plus the
	// window; the reset is a floor, not a cumulative addition.
	ExtensionWindow = 10 * time.Minute

	// MaxDuration bounds the caller-supplied auction duration.
	MaxDuration = 10080 * time.Minute // one week
)

// Clock supplies the current time so tests can drive the deadline directly.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

// SystemClock returns a Clock backed by time.Now.
func SystemClock() Clock { return systemClock{} }

// Config carries the parameters fixed at auction creation.
type Config struct {
	AuctionID uuid.UUID
	Owner     common.Address
	Duration  time.Duration
	Clock     Clock // optional; defaults to SystemClock
}

// Ledger holds all state for a single auction instance.
type Ledger struct {
	mu sync.Mutex

	auctionID uuid.UUID
	owner     common.Address
	endTime   time.Time
	ended     bool

	highestBid    *big.Int
	highestBidder common.Address

	bids         []domain.Bid
	participants []common.Address
	seen         map[common.Address]bool
	bidsByUser   map[common.Address][]domain.UserBid
	lastValidBid map[common.Address]*big.Int
	deposits     map[common.Address]*big.Int

	// balance is the value currently held in escrow: collected bids minus
	// refunds already paid out.
	balance *big.Int

	bank  transfer.Bank
	clock Clock
}

// New creates the ledger for a fresh auction. The duration must be positive
// and no longer than MaxDuration.
func New(cfg Config, bank transfer.Bank) (*Ledger, error) {
	if cfg.Duration <= 0 || cfg.Duration > MaxDuration {
		return nil, fmt.Errorf("ledger: duration %s out of range (0, %s]: %w",
			cfg.Duration, MaxDuration, domain.ErrInvalidDuration)
	}
	if bank == nil {
		return nil, fmt.Errorf("ledger: bank is required")
	}
	clock := cfg.Clock
	if clock == nil {
		clock = SystemClock()
	}
	id := cfg.AuctionID
	if id == uuid.Nil {
		id = uuid.New()
	}
	return &Ledger{
		auctionID:    id,
		owner:        cfg.Owner,
		endTime:      clock.Now().Add(cfg.Duration),
		highestBid:   new(big.Int),
		seen:         make(map[common.Address]bool),
		bidsByUser:   make(map[common.Address][]domain.UserBid),
		lastValidBid: make(map[common.Address]*big.Int),
		deposits:     make(map[common.Address]*big.Int),
		balance:      new(big.Int),
		bank:         bank,
		clock:        clock,
	}, nil
}

// MinNextBid returns the smallest value the next bid must reach:
// highestBid + floor(highestBid * MinIncrementPct / 100). For the first bid
// this is zero, so any positive value qualifies.
func (l *Ledger) MinNextBid() *big.Int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return minNextBid(l.highestBid)
}

func minNextBid(highest *big.Int) *big.Int {
	inc := new(big.Int).Mul(highest, big.NewInt(MinIncrementPct))
	inc.Div(inc, big.NewInt(100))
	return inc.Add(inc, highest)
}

// commission returns floor(amount * CommissionPct / 100).
func commission(amount *big.Int) *big.Int {
	c := new(big.Int).Mul(amount, big.NewInt(CommissionPct))
	return c.Div(c, big.NewInt(100))
}

// PlaceBid accepts a qualifying bid from bidder. The value is collected into
// escrow as part of the same operation; a collection failure aborts the bid
// with no state change. On success the bidder becomes the leader and, when
// less than ExtensionWindow remains, the deadline is reset to now plus the
// window.
func (l *Ledger) PlaceBid(ctx context.Context, bidder common.Address, value *big.Int) (domain.Event, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now()
	if l.ended || !now.Before(l.endTime) {
		return domain.Event{}, fmt.Errorf("ledger: bid: %w", domain.ErrAuctionInactive)
	}
	if value == nil || value.Sign() <= 0 {
		return domain.Event{}, fmt.Errorf("ledger: bid: %w", domain.ErrZeroBid)
	}
	if min := minNextBid(l.highestBid); value.Cmp(min) < 0 {
		return domain.Event{}, fmt.Errorf("ledger: bid %s below minimum %s: %w",
			value, min, domain.ErrBidTooLow)
	}

	// The value transfer is intrinsic to the bid: if it cannot be collected
	// the whole operation aborts.
	if err := l.bank.Collect(ctx, bidder, value); err != nil {
		return domain.Event{}, fmt.Errorf("ledger: bid collect: %w", err)
	}

	amount := new(big.Int).Set(value)
	bidID := uuid.New()
	l.bids = append(l.bids, domain.Bid{
		ID:        bidID,
		AuctionID: l.auctionID,
		Bidder:    bidder,
		Amount:    amount,
		PlacedAt:  now,
	})
	l.bidsByUser[bidder] = append(l.bidsByUser[bidder], domain.UserBid{Amount: amount, PlacedAt: now})
	l.lastValidBid[bidder] = amount

	dep, ok := l.deposits[bidder]
	if !ok {
		dep = new(big.Int)
		l.deposits[bidder] = dep
	}
	dep.Add(dep, value)
	l.balance.Add(l.balance, value)

	if !l.seen[bidder] {
		l.seen[bidder] = true
		l.participants = append(l.participants, bidder)
	}

	l.highestBid = amount
	l.highestBidder = bidder

	if l.endTime.Sub(now) < ExtensionWindow {
		l.endTime = now.Add(ExtensionWindow)
	}

	return domain.Event{Type: domain.EventNewBid, Ref: bidID, Account: bidder, Amount: amount, At: now}, nil
}

// Receive rejects any bare value transfer into the ledger. Funds only enter
// through PlaceBid.
func (l *Ledger) Receive(from common.Address, value *big.Int) error {
	return fmt.Errorf("ledger: receive from %s: %w", from.Hex(), domain.ErrDirectTransfer)
}

// EndAuction closes the auction and immediately runs the refund sweep for all
// non-winner participants. The sweep's per-participant payment failures are
// reported as RefundFailed events and do not unwind the close: ended stays
// true regardless.
func (l *Ledger) EndAuction(ctx context.Context, caller common.Address) ([]domain.Event, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if caller != l.owner {
		return nil, fmt.Errorf("ledger: end auction: %w", domain.ErrNotOwner)
	}
	if l.ended {
		return nil, fmt.Errorf("ledger: end auction: %w", domain.ErrAlreadyEnded)
	}
	now := l.clock.Now()
	if now.Before(l.endTime) {
		return nil, fmt.Errorf("ledger: end auction %s before deadline %s: %w",
			now.Format(time.RFC3339), l.endTime.Format(time.RFC3339), domain.ErrAuctionStillActive)
	}

	l.ended = true

	events := []domain.Event{{
		Type:    domain.EventAuctionEnded,
		Account: l.highestBidder,
		Amount:  new(big.Int).Set(l.highestBid),
		At:      now,
	}}
	if l.highestBidder != (common.Address{}) {
		events = append(events, l.sweepLocked(ctx, now)...)
	}
	return events, nil
}

// SweepRefunds is the owner-triggered batch settlement: every non-winner
// participant gets a refund attempt. Attempts are independent; one recipient
// failing does not block the others.
func (l *Ledger) SweepRefunds(ctx context.Context, caller common.Address) ([]domain.Event, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if caller != l.owner {
		return nil, fmt.Errorf("ledger: refund sweep: %w", domain.ErrNotOwner)
	}
	if !l.ended {
		return nil, fmt.Errorf("ledger: refund sweep: %w", domain.ErrAuctionStillActive)
	}
	if l.highestBidder == (common.Address{}) {
		return nil, fmt.Errorf("ledger: refund sweep: %w", domain.ErrNoWinner)
	}
	return l.sweepLocked(ctx, l.clock.Now()), nil
}

// sweepLocked walks participants in insertion order and attempts a refund for
// everyone but the winner. l.mu must be held.
func (l *Ledger) sweepLocked(ctx context.Context, now time.Time) []domain.Event {
	var events []domain.Event
	for _, p := range l.participants {
		if p == l.highestBidder {
			continue
		}
		if dep := l.deposits[p]; dep == nil || dep.Sign() == 0 {
			continue
		}
		evt, _ := l.refundLocked(ctx, p, now)
		events = append(events, evt)
	}
	return events
}

// WithdrawRefund is the self-service pull path: the caller reclaims their own
// deposit after the auction finished. Unlike the sweep, a payment failure is
// surfaced as an operation failure so the caller can retry.
func (l *Ledger) WithdrawRefund(ctx context.Context, caller common.Address) (domain.Event, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.ended {
		return domain.Event{}, fmt.Errorf("ledger: withdraw refund: %w", domain.ErrAuctionStillActive)
	}
	return l.refundLocked(ctx, caller, l.clock.Now())
}

// refundLocked settles one user's full deposit: a CommissionPct fee is
// retained and the remainder paid out. The deposit is zeroed only after the
// payment succeeds, so a failed payment can be retried. l.mu must be held.
func (l *Ledger) refundLocked(ctx context.Context, user common.Address, now time.Time) (domain.Event, error) {
	if user == l.highestBidder {
		// The winner's deposit is settled through owner fund withdrawal.
		return domain.Event{}, fmt.Errorf("ledger: refund winner %s: %w", user.Hex(), domain.ErrNoRefundAvailable)
	}
	dep := l.deposits[user]
	if dep == nil || dep.Sign() == 0 {
		return domain.Event{}, fmt.Errorf("ledger: refund %s: %w", user.Hex(), domain.ErrNoRefundAvailable)
	}

	payout := new(big.Int).Sub(dep, commission(dep))

	if err := l.bank.Pay(ctx, user, payout); err != nil {
		return domain.Event{Type: domain.EventRefundFailed, Account: user, Amount: payout, At: now},
			fmt.Errorf("ledger: refund %s: %w", user.Hex(), domain.ErrTransferFailed)
	}

	dep.SetInt64(0)
	l.balance.Sub(l.balance, payout)
	return domain.Event{Type: domain.EventRefundIssued, Account: user, Amount: payout, At: now}, nil
}

// PartialRefund lets a bidder with more than one accepted bid reclaim the
// deposits beyond what backs their most recent bid, minus commission. The
// deposit never drops below the caller's last valid bid.
func (l *Ledger) PartialRefund(ctx context.Context, caller common.Address) (domain.Event, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now()
	if l.ended || !now.Before(l.endTime) {
		return domain.Event{}, fmt.Errorf("ledger: partial refund: %w", domain.ErrAuctionInactive)
	}
	if len(l.bidsByUser[caller]) <= 1 {
		return domain.Event{}, fmt.Errorf("ledger: partial refund %s: %w", caller.Hex(), domain.ErrNoRefundAvailable)
	}
	last := l.lastValidBid[caller]
	if last == nil || last.Sign() <= 0 {
		return domain.Event{}, fmt.Errorf("ledger: partial refund %s: %w", caller.Hex(), domain.ErrNoRefundAvailable)
	}

	dep := l.deposits[caller]
	excess := new(big.Int).Sub(dep, last)
	if excess.Sign() <= 0 {
		return domain.Event{}, fmt.Errorf("ledger: partial refund %s: %w", caller.Hex(), domain.ErrNoRefundAvailable)
	}

	payout := new(big.Int).Sub(excess, commission(excess))

	if err := l.bank.Pay(ctx, caller, payout); err != nil {
		return domain.Event{Type: domain.EventRefundFailed, Account: caller, Amount: payout, At: now},
			fmt.Errorf("ledger: partial refund %s: %w", caller.Hex(), domain.ErrTransferFailed)
	}

	// Collapse the deposit down to exactly the amount backing the current bid.
	dep.Set(last)
	l.balance.Sub(l.balance, payout)
	return domain.Event{Type: domain.EventRefundIssued, Account: caller, Amount: payout, At: now}, nil
}

// WithdrawOwnerFunds transfers the entire remaining escrow balance (winning
// deposit plus retained commissions) to the owner. It is gated on every
// non-winner deposit having been settled to zero.
func (l *Ledger) WithdrawOwnerFunds(ctx context.Context, caller common.Address) (*big.Int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if caller != l.owner {
		return nil, fmt.Errorf("ledger: withdraw owner funds: %w", domain.ErrNotOwner)
	}
	if !l.ended {
		return nil, fmt.Errorf("ledger: withdraw owner funds: %w", domain.ErrAuctionStillActive)
	}
	for _, p := range l.participants {
		if p == l.highestBidder {
			continue
		}
		if dep := l.deposits[p]; dep != nil && dep.Sign() != 0 {
			return nil, fmt.Errorf("ledger: withdraw owner funds: %s still has %s on deposit: %w",
				p.Hex(), dep, domain.ErrRefundsPending)
		}
	}

	amount := new(big.Int).Set(l.balance)
	if amount.Sign() > 0 {
		if err := l.bank.Pay(ctx, l.owner, amount); err != nil {
			return nil, fmt.Errorf("ledger: withdraw owner funds: %w", domain.ErrTransferFailed)
		}
		l.balance.SetInt64(0)
	}
	return amount, nil
}
