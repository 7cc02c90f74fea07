// Package service orchestrates the auction ledger with the surrounding
// infrastructure: rate limiting for bid submission, distributed locks around
// settlement, durable bid and settlement records, event publication, and
// operator notifications. The ledger stays authoritative; everything the
// service adds is bookkeeping around it.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"github.com/ledgerworks/auctiond/internal/domain"
	"github.com/ledgerworks/auctiond/internal/ledger"
)

// Notifier is the slice of the notify package the service depends on.
type Notifier interface {
	Notify(ctx context.Context, event, title, message string) error
}

// Config carries the service-level tunables.
type Config struct {
	// BidRateLimit is the number of bids one bidder may place per
	// BidRateWindow. Zero disables rate limiting.
	BidRateLimit  int
	BidRateWindow time.Duration

	// LockTTL bounds how long a settlement lock may be held before it
	// expires on its own.
	LockTTL time.Duration
}

// Deps carries the service's collaborators. Every field except Ledger and
// Logger is optional; a nil store, bus, limiter, lock manager, or notifier
// simply disables that concern.
type Deps struct {
	Ledger      *ledger.Ledger
	Bids        domain.BidStore
	Settlements domain.SettlementStore
	Limiter     domain.RateLimiter
	Locks       domain.LockManager
	Bus         domain.SignalBus
	Notifier    Notifier
	Logger      *slog.Logger
}

// AuctionService exposes the auction operations to the transport layer.
type AuctionService struct {
	ledger      *ledger.Ledger
	bids        domain.BidStore
	settlements domain.SettlementStore
	limiter     domain.RateLimiter
	locks       domain.LockManager
	bus         domain.SignalBus
	notifier    Notifier
	logger      *slog.Logger
	cfg         Config
}

// New creates the AuctionService.
func New(deps Deps, cfg Config) (*AuctionService, error) {
	if deps.Ledger == nil {
		return nil, errors.New("service: ledger is required")
	}
	if deps.Logger == nil {
		return nil, errors.New("service: logger is required")
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 30 * time.Second
	}
	return &AuctionService{
		ledger:      deps.Ledger,
		bids:        deps.Bids,
		settlements: deps.Settlements,
		limiter:     deps.Limiter,
		locks:       deps.Locks,
		bus:         deps.Bus,
		notifier:    deps.Notifier,
		logger:      deps.Logger.With(slog.String("component", "auction_service")),
		cfg:         cfg,
	}, nil
}

// PlaceBid submits a bid on behalf of bidder. The bidder is rate limited
// before the ledger is touched; an accepted bid is persisted to the bid store
// and published on the bids channel.
func (s *AuctionService) PlaceBid(ctx context.Context, bidder common.Address, amount *big.Int) (domain.Event, error) {
	if s.limiter != nil && s.cfg.BidRateLimit > 0 {
		allowed, err := s.limiter.Allow(ctx, "bid:"+bidder.Hex(), s.cfg.BidRateLimit, s.cfg.BidRateWindow)
		if err != nil {
			// A broken limiter must not block the auction; log and continue.
			s.logger.WarnContext(ctx, "rate limiter unavailable",
				slog.String("bidder", bidder.Hex()),
				slog.String("error", err.Error()),
			)
		} else if !allowed {
			return domain.Event{}, fmt.Errorf("service: bid from %s: %w", bidder.Hex(), domain.ErrRateLimited)
		}
	}

	evt, err := s.ledger.PlaceBid(ctx, bidder, amount)
	if err != nil {
		return domain.Event{}, err
	}

	if s.bids != nil {
		bid := domain.Bid{
			ID:        evt.Ref,
			AuctionID: s.ledger.AuctionID(),
			Bidder:    bidder,
			Amount:    new(big.Int).Set(evt.Amount),
			PlacedAt:  evt.At,
		}
		if err := s.bids.Insert(ctx, bid); err != nil {
			// The bid is already committed in the ledger; persistence is
			// best effort and must not unwind it.
			s.logger.ErrorContext(ctx, "bid persistence failed",
				slog.String("bid_id", bid.ID.String()),
				slog.String("error", err.Error()),
			)
		}
	}

	s.publish(ctx, evt)

	s.logger.InfoContext(ctx, "bid accepted",
		slog.String("bidder", bidder.Hex()),
		slog.String("amount", evt.Amount.String()),
	)
	return evt, nil
}

// EndAuction closes the auction on behalf of caller and runs the refund
// sweep. The whole operation runs under the settlement lock so concurrent
// replicas cannot interleave settlements.
func (s *AuctionService) EndAuction(ctx context.Context, caller common.Address) ([]domain.Event, error) {
	unlock, err := s.acquireSettleLock(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()

	events, err := s.ledger.EndAuction(ctx, caller)
	if err != nil {
		return nil, err
	}

	s.recordRefundEvents(ctx, events, domain.SettlementRefund)
	for _, evt := range events {
		s.publish(ctx, evt)
	}
	s.notifyEnded(ctx, events)

	s.logger.InfoContext(ctx, "auction ended",
		slog.String("caller", caller.Hex()),
		slog.Int("settlement_events", len(events)-1),
	)
	return events, nil
}

// SweepRefunds retries the batch refund of all outstanding non-winner
// deposits.
func (s *AuctionService) SweepRefunds(ctx context.Context, caller common.Address) ([]domain.Event, error) {
	unlock, err := s.acquireSettleLock(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()

	events, err := s.ledger.SweepRefunds(ctx, caller)
	if err != nil {
		return nil, err
	}

	s.recordRefundEvents(ctx, events, domain.SettlementRefund)
	for _, evt := range events {
		s.publish(ctx, evt)
	}

	s.logger.InfoContext(ctx, "refund sweep finished",
		slog.String("caller", caller.Hex()),
		slog.Int("attempts", len(events)),
	)
	return events, nil
}

// WithdrawRefund settles the caller's own deposit. Transfer failures are
// recorded and surfaced so the caller can retry.
func (s *AuctionService) WithdrawRefund(ctx context.Context, caller common.Address) (domain.Event, error) {
	evt, err := s.ledger.WithdrawRefund(ctx, caller)
	if err != nil {
		if errors.Is(err, domain.ErrTransferFailed) {
			s.recordSettlement(ctx, evt, domain.SettlementRefund)
			s.publish(ctx, evt)
		}
		return domain.Event{}, err
	}

	s.recordSettlement(ctx, evt, domain.SettlementRefund)
	s.publish(ctx, evt)
	return evt, nil
}

// PartialRefund reclaims the caller's superseded deposits while the auction
// is still running.
func (s *AuctionService) PartialRefund(ctx context.Context, caller common.Address) (domain.Event, error) {
	evt, err := s.ledger.PartialRefund(ctx, caller)
	if err != nil {
		if errors.Is(err, domain.ErrTransferFailed) {
			s.recordSettlement(ctx, evt, domain.SettlementPartialRefund)
			s.publish(ctx, evt)
		}
		return domain.Event{}, err
	}

	s.recordSettlement(ctx, evt, domain.SettlementPartialRefund)
	s.publish(ctx, evt)
	return evt, nil
}

// WithdrawProceeds transfers the remaining escrow (winning deposit plus
// retained commissions) to the owner.
func (s *AuctionService) WithdrawProceeds(ctx context.Context, caller common.Address) (*big.Int, error) {
	unlock, err := s.acquireSettleLock(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()

	amount, err := s.ledger.WithdrawOwnerFunds(ctx, caller)
	if err != nil {
		return nil, err
	}

	if s.settlements != nil {
		stl := domain.Settlement{
			ID:        uuid.New(),
			AuctionID: s.ledger.AuctionID(),
			Kind:      domain.SettlementOwnerProceeds,
			Account:   s.ledger.Owner(),
			Amount:    new(big.Int).Set(amount),
			Succeeded: true,
			SettledAt: time.Now().UTC(),
		}
		if err := s.settlements.Record(ctx, stl); err != nil {
			s.logger.ErrorContext(ctx, "settlement persistence failed",
				slog.String("kind", string(stl.Kind)),
				slog.String("error", err.Error()),
			)
		}
	}

	s.logger.InfoContext(ctx, "owner proceeds withdrawn",
		slog.String("amount", amount.String()),
	)
	return amount, nil
}

// Receive rejects a bare value transfer. Funds only enter through PlaceBid.
func (s *AuctionService) Receive(from common.Address, value *big.Int) error {
	return s.ledger.Receive(from, value)
}

// Status returns a snapshot of the ledger state.
func (s *AuctionService) Status() domain.AuctionStatus {
	return s.ledger.Snapshot()
}

// MinNextBid returns the lowest value the next bid must reach.
func (s *AuctionService) MinNextBid() *big.Int {
	return s.ledger.MinNextBid()
}

// Winner returns the current leader, their bid, and whether any bid exists.
func (s *AuctionService) Winner() (common.Address, *big.Int, bool) {
	return s.ledger.Winner()
}

// Bids returns the full in-memory bid history.
func (s *AuctionService) Bids() []domain.Bid {
	return s.ledger.Bids()
}

// UserBids returns one bidder's personal bid history.
func (s *AuctionService) UserBids(addr common.Address) []domain.UserBid {
	return s.ledger.UserBids(addr)
}

// UserTotal returns the sum of one bidder's accepted bids.
func (s *AuctionService) UserTotal(addr common.Address) *big.Int {
	return s.ledger.UserTotal(addr)
}

// Settlements returns the durable settlement history, when a store is wired.
func (s *AuctionService) Settlements(ctx context.Context) ([]domain.Settlement, error) {
	if s.settlements == nil {
		return nil, nil
	}
	return s.settlements.ListByAuction(ctx, s.ledger.AuctionID())
}

func (s *AuctionService) acquireSettleLock(ctx context.Context) (func(), error) {
	if s.locks == nil {
		return func() {}, nil
	}
	unlock, err := s.locks.Acquire(ctx, "settle:"+s.ledger.AuctionID().String(), s.cfg.LockTTL)
	if err != nil {
		return nil, fmt.Errorf("service: settlement lock: %w", err)
	}
	return unlock, nil
}

// recordRefundEvents persists every refund outcome in a batch of ledger
// events, skipping the lifecycle events.
func (s *AuctionService) recordRefundEvents(ctx context.Context, events []domain.Event, kind domain.SettlementKind) {
	for _, evt := range events {
		if evt.Type != domain.EventRefundIssued && evt.Type != domain.EventRefundFailed {
			continue
		}
		s.recordSettlement(ctx, evt, kind)
	}
}

func (s *AuctionService) recordSettlement(ctx context.Context, evt domain.Event, kind domain.SettlementKind) {
	if s.settlements == nil {
		return
	}
	stl := domain.Settlement{
		ID:        uuid.New(),
		AuctionID: s.ledger.AuctionID(),
		Kind:      kind,
		Account:   evt.Account,
		Amount:    new(big.Int).Set(evt.Amount),
		Succeeded: evt.Type == domain.EventRefundIssued,
		SettledAt: evt.At,
	}
	if err := s.settlements.Record(ctx, stl); err != nil {
		s.logger.ErrorContext(ctx, "settlement persistence failed",
			slog.String("account", stl.Account.Hex()),
			slog.String("kind", string(kind)),
			slog.String("error", err.Error()),
		)
	}
}

func (s *AuctionService) publish(ctx context.Context, evt domain.Event) {
	if s.bus == nil {
		return
	}
	payload, err := json.Marshal(evt)
	if err != nil {
		s.logger.ErrorContext(ctx, "event marshal failed",
			slog.String("type", string(evt.Type)),
			slog.String("error", err.Error()),
		)
		return
	}
	if err := s.bus.Publish(ctx, evt.Channel(), payload); err != nil {
		s.logger.WarnContext(ctx, "event publish failed",
			slog.String("channel", evt.Channel()),
			slog.String("error", err.Error()),
		)
	}
}

func (s *AuctionService) notifyEnded(ctx context.Context, events []domain.Event) {
	if s.notifier == nil {
		return
	}
	for _, evt := range events {
		switch evt.Type {
		case domain.EventAuctionEnded:
			msg := fmt.Sprintf("Winner %s with bid %s wei", evt.Account.Hex(), evt.Amount)
			if evt.Account == (common.Address{}) {
				msg = "No bids were placed"
			}
			if err := s.notifier.Notify(ctx, string(domain.EventAuctionEnded), "Auction ended", msg); err != nil {
				s.logger.WarnContext(ctx, "notification failed", slog.String("error", err.Error()))
			}
		case domain.EventRefundFailed:
			msg := fmt.Sprintf("Refund of %s wei to %s failed; recipient must withdraw manually", evt.Amount, evt.Account.Hex())
			if err := s.notifier.Notify(ctx, string(domain.EventRefundFailed), "Refund failed", msg); err != nil {
				s.logger.WarnContext(ctx, "notification failed", slog.String("error", err.Error()))
			}
		}
	}
}
