package ledger

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgerworks/auctiond/internal/domain"
	"github.com/ledgerworks/auctiond/internal/transfer"
)

var (
	owner   = common.HexToAddress("0x00000000000000000000000000000000000000aa")
	bidderA = common.HexToAddress("0x0000000000000000000000000000000000000001")
	bidderB = common.HexToAddress("0x0000000000000000000000000000000000000002")
	bidderC = common.HexToAddress("0x0000000000000000000000000000000000000003")
)

// manualClock lets tests move auction time explicitly.
type manualClock struct {
	now time.Time
}

func (c *manualClock) Now() time.Time              { return c.now }
func (c *manualClock) Advance(d time.Duration)     { c.now = c.now.Add(d) }
func (c *manualClock) Set(t time.Time)             { c.now = t }

func wei(n int64) *big.Int { return big.NewInt(n) }

// newTestLedger builds a ledger with a funded vault and a manual clock
// starting at a fixed instant.
func newTestLedger(t *testing.T, duration time.Duration) (*Ledger, *transfer.Vault, *manualClock) {
	t.Helper()
	clock := &manualClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	vault := transfer.NewVault()
	for _, b := range []common.Address{bidderA, bidderB, bidderC} {
		vault.Fund(b, wei(1_000_000))
	}
	l, err := New(Config{Owner: owner, Duration: duration, Clock: clock}, vault)
	require.NoError(t, err)
	return l, vault, clock
}

func TestNew_DurationBounds(t *testing.T) {
	vault := transfer.NewVault()

	_, err := New(Config{Owner: owner, Duration: 0}, vault)
	require.ErrorIs(t, err, domain.ErrInvalidDuration)

	_, err = New(Config{Owner: owner, Duration: -time.Minute}, vault)
	require.ErrorIs(t, err, domain.ErrInvalidDuration)

	_, err = New(Config{Owner: owner, Duration: MaxDuration + time.Minute}, vault)
	require.ErrorIs(t, err, domain.ErrInvalidDuration)

	_, err = New(Config{Owner: owner, Duration: MaxDuration}, vault)
	require.NoError(t, err)
}

func TestPlaceBid_FirstBidAnyPositiveValue(t *testing.T) {
	l, _, _ := newTestLedger(t, time.Hour)
	ctx := context.Background()

	_, err := l.PlaceBid(ctx, bidderA, wei(0))
	require.ErrorIs(t, err, domain.ErrZeroBid)

	evt, err := l.PlaceBid(ctx, bidderA, wei(1))
	require.NoError(t, err)
	assert.Equal(t, domain.EventNewBid, evt.Type)
	assert.Equal(t, bidderA, evt.Account)

	winner, amount, ok := l.Winner()
	require.True(t, ok)
	assert.Equal(t, bidderA, winner)
	assert.Equal(t, wei(1), amount)
}

func TestPlaceBid_MinimumIncrementFloor(t *testing.T) {
	l, _, _ := newTestLedger(t, time.Hour)
	ctx := context.Background()

	_, err := l.PlaceBid(ctx, bidderA, wei(100))
	require.NoError(t, err)

	// Threshold is 100 + floor(100*5/100) = 105.
	_, err = l.PlaceBid(ctx, bidderB, wei(104))
	require.ErrorIs(t, err, domain.ErrBidTooLow)

	_, err = l.PlaceBid(ctx, bidderB, wei(105))
	require.NoError(t, err)

	winner, amount, ok := l.Winner()
	require.True(t, ok)
	assert.Equal(t, bidderB, winner)
	assert.Equal(t, wei(105), amount)

	// Floor semantics: highest 105 -> floor(105*5/100)=5 -> threshold 110.
	assert.Equal(t, wei(110), l.MinNextBid())
	_, err = l.PlaceBid(ctx, bidderA, wei(109))
	require.ErrorIs(t, err, domain.ErrBidTooLow)
	_, err = l.PlaceBid(ctx, bidderA, wei(110))
	require.NoError(t, err)
}

func TestPlaceBid_HighestBidTracksMaximum(t *testing.T) {
	l, _, _ := newTestLedger(t, time.Hour)
	ctx := context.Background()

	values := []int64{10, 11, 20, 100, 105}
	bidders := []common.Address{bidderA, bidderB, bidderA, bidderC, bidderB}
	max := int64(0)
	for i, v := range values {
		_, err := l.PlaceBid(ctx, bidders[i], wei(v))
		require.NoError(t, err)
		if v > max {
			max = v
		}
		_, amount, ok := l.Winner()
		require.True(t, ok)
		assert.Equal(t, wei(max), amount)
	}

	snap := l.Snapshot()
	assert.Equal(t, 5, snap.BidCount)
	assert.Equal(t, 3, snap.Participants)
}

func TestPlaceBid_CollectFailureLeavesNoState(t *testing.T) {
	l, vault, _ := newTestLedger(t, time.Hour)
	ctx := context.Background()

	broke := common.HexToAddress("0x0000000000000000000000000000000000000009")
	_, err := l.PlaceBid(ctx, broke, wei(50))
	require.ErrorIs(t, err, domain.ErrInsufficientFunds)

	assert.Empty(t, l.Bids())
	assert.Empty(t, l.Participants())
	assert.Equal(t, wei(0), l.UserTotal(broke))
	assert.Equal(t, wei(0), vault.EscrowBalance())
}

func TestPlaceBid_AntiSnipeResetIsFloorNotAdditive(t *testing.T) {
	l, _, clock := newTestLedger(t, time.Hour)
	ctx := context.Background()

	start := clock.Now()

	// Bid with plenty of time left: deadline untouched.
	_, err := l.PlaceBid(ctx, bidderA, wei(100))
	require.NoError(t, err)
	assert.Equal(t, start.Add(time.Hour), l.Snapshot().EndTime)

	// Bid 5 seconds before the end: deadline resets to exactly now+10m.
	clock.Set(start.Add(time.Hour - 5*time.Second))
	_, err = l.PlaceBid(ctx, bidderB, wei(200))
	require.NoError(t, err)
	assert.Equal(t, clock.Now().Add(ExtensionWindow), l.Snapshot().EndTime)

	// Another late bid 1 minute later: reset again to now+10m, not +20m.
	clock.Advance(time.Minute)
	_, err = l.PlaceBid(ctx, bidderA, wei(210))
	require.NoError(t, err)
	assert.Equal(t, clock.Now().Add(ExtensionWindow), l.Snapshot().EndTime)
}

func TestPlaceBid_RejectedAtAndAfterDeadline(t *testing.T) {
	l, _, clock := newTestLedger(t, time.Hour)
	ctx := context.Background()

	_, err := l.PlaceBid(ctx, bidderA, wei(100))
	require.NoError(t, err)

	clock.Advance(time.Hour)
	_, err = l.PlaceBid(ctx, bidderB, wei(200))
	require.ErrorIs(t, err, domain.ErrAuctionInactive)
}

func TestEndAuction_Preconditions(t *testing.T) {
	l, _, clock := newTestLedger(t, time.Hour)
	ctx := context.Background()

	_, err := l.PlaceBid(ctx, bidderA, wei(100))
	require.NoError(t, err)

	_, err = l.EndAuction(ctx, bidderA)
	require.ErrorIs(t, err, domain.ErrNotOwner)

	_, err = l.EndAuction(ctx, owner)
	require.ErrorIs(t, err, domain.ErrAuctionStillActive)

	clock.Advance(time.Hour)
	events, err := l.EndAuction(ctx, owner)
	require.NoError(t, err)
	require.NotEmpty(t, events)
	assert.Equal(t, domain.EventAuctionEnded, events[0].Type)
	assert.Equal(t, bidderA, events[0].Account)

	_, err = l.EndAuction(ctx, owner)
	require.ErrorIs(t, err, domain.ErrAlreadyEnded)
}

func TestEndAuction_ExtendedDeadlineBlocksClose(t *testing.T) {
	l, _, clock := newTestLedger(t, time.Hour)
	ctx := context.Background()

	start := clock.Now()
	_, err := l.PlaceBid(ctx, bidderA, wei(100))
	require.NoError(t, err)

	// Late bid resets the deadline; closing at the original end time fails.
	clock.Set(start.Add(time.Hour - 5*time.Second))
	_, err = l.PlaceBid(ctx, bidderB, wei(200))
	require.NoError(t, err)

	clock.Set(start.Add(time.Hour))
	_, err = l.EndAuction(ctx, owner)
	require.ErrorIs(t, err, domain.ErrAuctionStillActive)

	clock.Set(start.Add(time.Hour - 5*time.Second).Add(ExtensionWindow))
	_, err = l.EndAuction(ctx, owner)
	require.NoError(t, err)
}

func TestEndAuction_SweepsNonWinnerRefunds(t *testing.T) {
	l, vault, clock := newTestLedger(t, time.Hour)
	ctx := context.Background()

	_, err := l.PlaceBid(ctx, bidderA, wei(100))
	require.NoError(t, err)
	_, err = l.PlaceBid(ctx, bidderB, wei(200))
	require.NoError(t, err)

	balBefore := vault.BalanceOf(bidderA)

	clock.Advance(time.Hour)
	events, err := l.EndAuction(ctx, owner)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, domain.EventAuctionEnded, events[0].Type)
	assert.Equal(t, domain.EventRefundIssued, events[1].Type)
	assert.Equal(t, bidderA, events[1].Account)

	// Payout is floor(100*98/100) = 98; commission 2 stays in escrow.
	assert.Equal(t, wei(98), events[1].Amount)
	assert.Equal(t, wei(0), l.UserTotal(bidderA))
	assert.Equal(t, new(big.Int).Add(balBefore, wei(98)), vault.BalanceOf(bidderA))

	// Winner's deposit is untouched until owner settlement.
	assert.Equal(t, wei(200), l.UserTotal(bidderB))
	assert.Equal(t, wei(202), l.Balance())
}

func TestSweepRefunds_FailureIsolation(t *testing.T) {
	l, vault, clock := newTestLedger(t, time.Hour)
	ctx := context.Background()

	_, err := l.PlaceBid(ctx, bidderA, wei(100))
	require.NoError(t, err)
	_, err = l.PlaceBid(ctx, bidderB, wei(105))
	require.NoError(t, err)
	_, err = l.PlaceBid(ctx, bidderC, wei(200))
	require.NoError(t, err)

	// bidderA cannot accept a payment; the sweep must still settle bidderB.
	vault.SetRejecting(bidderA, true)

	clock.Advance(time.Hour)
	events, err := l.EndAuction(ctx, owner)
	require.NoError(t, err)
	require.Len(t, events, 3)

	assert.Equal(t, domain.EventRefundFailed, events[1].Type)
	assert.Equal(t, bidderA, events[1].Account)
	assert.Equal(t, domain.EventRefundIssued, events[2].Type)
	assert.Equal(t, bidderB, events[2].Account)

	// Failed refund leaves the deposit intact for a later retry.
	assert.Equal(t, wei(100), l.UserTotal(bidderA))
	assert.Equal(t, wei(0), l.UserTotal(bidderB))

	// Recovery: self-service withdrawal after the recipient unblocks.
	vault.SetRejecting(bidderA, false)
	evt, err := l.WithdrawRefund(ctx, bidderA)
	require.NoError(t, err)
	assert.Equal(t, domain.EventRefundIssued, evt.Type)
	assert.Equal(t, wei(98), evt.Amount)
	assert.Equal(t, wei(0), l.UserTotal(bidderA))
}

func TestSweepRefunds_Preconditions(t *testing.T) {
	l, _, clock := newTestLedger(t, time.Hour)
	ctx := context.Background()

	_, err := l.SweepRefunds(ctx, bidderA)
	require.ErrorIs(t, err, domain.ErrNotOwner)

	_, err = l.SweepRefunds(ctx, owner)
	require.ErrorIs(t, err, domain.ErrAuctionStillActive)

	// End with zero bids: no winner, sweep refused.
	clock.Advance(time.Hour)
	_, err = l.EndAuction(ctx, owner)
	require.NoError(t, err)
	_, err = l.SweepRefunds(ctx, owner)
	require.ErrorIs(t, err, domain.ErrNoWinner)
}

func TestWithdrawRefund_Idempotence(t *testing.T) {
	l, vault, clock := newTestLedger(t, time.Hour)
	ctx := context.Background()

	_, err := l.PlaceBid(ctx, bidderA, wei(100))
	require.NoError(t, err)
	_, err = l.PlaceBid(ctx, bidderB, wei(200))
	require.NoError(t, err)

	vault.SetRejecting(bidderA, true)
	clock.Advance(time.Hour)
	_, err = l.EndAuction(ctx, owner)
	require.NoError(t, err)

	vault.SetRejecting(bidderA, false)
	_, err = l.WithdrawRefund(ctx, bidderA)
	require.NoError(t, err)

	// Second withdrawal: deposit already zero.
	_, err = l.WithdrawRefund(ctx, bidderA)
	require.ErrorIs(t, err, domain.ErrNoRefundAvailable)
}

func TestWithdrawRefund_WinnerExcluded(t *testing.T) {
	l, _, clock := newTestLedger(t, time.Hour)
	ctx := context.Background()

	_, err := l.PlaceBid(ctx, bidderA, wei(100))
	require.NoError(t, err)

	clock.Advance(time.Hour)
	_, err = l.EndAuction(ctx, owner)
	require.NoError(t, err)

	_, err = l.WithdrawRefund(ctx, bidderA)
	require.ErrorIs(t, err, domain.ErrNoRefundAvailable)
	assert.Equal(t, wei(100), l.UserTotal(bidderA))
}

func TestWithdrawRefund_RequiresFinishedAuction(t *testing.T) {
	l, _, _ := newTestLedger(t, time.Hour)
	ctx := context.Background()

	_, err := l.PlaceBid(ctx, bidderA, wei(100))
	require.NoError(t, err)

	_, err = l.WithdrawRefund(ctx, bidderA)
	require.ErrorIs(t, err, domain.ErrAuctionStillActive)
}

func TestPartialRefund_SingleBidHasNoExcess(t *testing.T) {
	l, _, _ := newTestLedger(t, time.Hour)
	ctx := context.Background()

	// A leads with 100, B outbids with 200. A's deposit equals A's last valid
	// bid, so there is nothing to reclaim.
	_, err := l.PlaceBid(ctx, bidderA, wei(100))
	require.NoError(t, err)
	_, err = l.PlaceBid(ctx, bidderB, wei(200))
	require.NoError(t, err)

	_, err = l.PartialRefund(ctx, bidderA)
	require.ErrorIs(t, err, domain.ErrNoRefundAvailable)
	assert.Equal(t, wei(100), l.UserTotal(bidderA))
}

func TestPartialRefund_ReclaimsSupersededDeposits(t *testing.T) {
	l, vault, _ := newTestLedger(t, time.Hour)
	ctx := context.Background()

	// A leads twice: deposits accumulate to 100+200=300, last valid bid 200.
	_, err := l.PlaceBid(ctx, bidderA, wei(100))
	require.NoError(t, err)
	_, err = l.PlaceBid(ctx, bidderB, wei(150))
	require.NoError(t, err)
	_, err = l.PlaceBid(ctx, bidderA, wei(200))
	require.NoError(t, err)

	balBefore := vault.BalanceOf(bidderA)

	// Excess 100, commission floor(100*2/100)=2, payout 98.
	evt, err := l.PartialRefund(ctx, bidderA)
	require.NoError(t, err)
	assert.Equal(t, domain.EventRefundIssued, evt.Type)
	assert.Equal(t, wei(98), evt.Amount)

	// Deposit collapses to exactly the last valid bid, never below.
	assert.Equal(t, wei(200), l.UserTotal(bidderA))
	assert.Equal(t, new(big.Int).Add(balBefore, wei(98)), vault.BalanceOf(bidderA))

	// Nothing further to reclaim.
	_, err = l.PartialRefund(ctx, bidderA)
	require.ErrorIs(t, err, domain.ErrNoRefundAvailable)
}

func TestPartialRefund_TransferFailureKeepsDeposit(t *testing.T) {
	l, vault, _ := newTestLedger(t, time.Hour)
	ctx := context.Background()

	_, err := l.PlaceBid(ctx, bidderA, wei(100))
	require.NoError(t, err)
	_, err = l.PlaceBid(ctx, bidderB, wei(150))
	require.NoError(t, err)
	_, err = l.PlaceBid(ctx, bidderA, wei(200))
	require.NoError(t, err)

	vault.SetRejecting(bidderA, true)
	_, err = l.PartialRefund(ctx, bidderA)
	require.ErrorIs(t, err, domain.ErrTransferFailed)
	assert.Equal(t, wei(300), l.UserTotal(bidderA))

	vault.SetRejecting(bidderA, false)
	_, err = l.PartialRefund(ctx, bidderA)
	require.NoError(t, err)
	assert.Equal(t, wei(200), l.UserTotal(bidderA))
}

func TestPartialRefund_InactiveAuction(t *testing.T) {
	l, _, clock := newTestLedger(t, time.Hour)
	ctx := context.Background()

	_, err := l.PlaceBid(ctx, bidderA, wei(100))
	require.NoError(t, err)
	_, err = l.PlaceBid(ctx, bidderB, wei(150))
	require.NoError(t, err)
	_, err = l.PlaceBid(ctx, bidderA, wei(200))
	require.NoError(t, err)

	clock.Advance(time.Hour)
	_, err = l.PartialRefund(ctx, bidderA)
	require.ErrorIs(t, err, domain.ErrAuctionInactive)
}

func TestWithdrawOwnerFunds_GateAndDrain(t *testing.T) {
	l, vault, clock := newTestLedger(t, time.Hour)
	ctx := context.Background()

	_, err := l.PlaceBid(ctx, bidderA, wei(100))
	require.NoError(t, err)
	_, err = l.PlaceBid(ctx, bidderB, wei(200))
	require.NoError(t, err)

	_, err = l.WithdrawOwnerFunds(ctx, owner)
	require.ErrorIs(t, err, domain.ErrAuctionStillActive)

	// End with bidderA's refund failing: gate must hold.
	vault.SetRejecting(bidderA, true)
	clock.Advance(time.Hour)
	_, err = l.EndAuction(ctx, owner)
	require.NoError(t, err)

	_, err = l.WithdrawOwnerFunds(ctx, bidderB)
	require.ErrorIs(t, err, domain.ErrNotOwner)

	_, err = l.WithdrawOwnerFunds(ctx, owner)
	require.ErrorIs(t, err, domain.ErrRefundsPending)

	// Settle the pending refund, then drain.
	vault.SetRejecting(bidderA, false)
	_, err = l.WithdrawRefund(ctx, bidderA)
	require.NoError(t, err)

	// Escrow holds winner deposit 200 + commission 2 from A's refund.
	amount, err := l.WithdrawOwnerFunds(ctx, owner)
	require.NoError(t, err)
	assert.Equal(t, wei(202), amount)
	assert.Equal(t, wei(0), l.Balance())
	assert.Equal(t, wei(202), vault.BalanceOf(owner))
	assert.Equal(t, wei(0), vault.EscrowBalance())
}

func TestWithdrawOwnerFunds_TransferFailureKeepsBalance(t *testing.T) {
	l, vault, clock := newTestLedger(t, time.Hour)
	ctx := context.Background()

	_, err := l.PlaceBid(ctx, bidderA, wei(100))
	require.NoError(t, err)

	clock.Advance(time.Hour)
	_, err = l.EndAuction(ctx, owner)
	require.NoError(t, err)

	vault.SetRejecting(owner, true)
	_, err = l.WithdrawOwnerFunds(ctx, owner)
	require.ErrorIs(t, err, domain.ErrTransferFailed)
	assert.Equal(t, wei(100), l.Balance())

	vault.SetRejecting(owner, false)
	amount, err := l.WithdrawOwnerFunds(ctx, owner)
	require.NoError(t, err)
	assert.Equal(t, wei(100), amount)
}

func TestReceive_AlwaysRejected(t *testing.T) {
	l, _, _ := newTestLedger(t, time.Hour)

	err := l.Receive(bidderA, wei(100))
	require.ErrorIs(t, err, domain.ErrDirectTransfer)
}

func TestScenario_SixtyMinuteAuction(t *testing.T) {
	l, _, clock := newTestLedger(t, 60*time.Minute)
	ctx := context.Background()
	start := clock.Now()

	// t=0: A bids 100.
	_, err := l.PlaceBid(ctx, bidderA, wei(100))
	require.NoError(t, err)

	// t=1m: B bids 104, rejected (threshold 105).
	clock.Set(start.Add(time.Minute))
	_, err = l.PlaceBid(ctx, bidderB, wei(104))
	require.ErrorIs(t, err, domain.ErrBidTooLow)

	// t=2m: B bids 105, accepted.
	clock.Set(start.Add(2 * time.Minute))
	_, err = l.PlaceBid(ctx, bidderB, wei(105))
	require.NoError(t, err)
	winner, _, _ := l.Winner()
	assert.Equal(t, bidderB, winner)

	// t=59:55: A bids 200; deadline resets to t=69:55.
	late := start.Add(60*time.Minute - 5*time.Second)
	clock.Set(late)
	_, err = l.PlaceBid(ctx, bidderA, wei(200))
	require.NoError(t, err)
	assert.Equal(t, late.Add(ExtensionWindow), l.Snapshot().EndTime)

	// Owner cannot close before the extended deadline.
	clock.Set(start.Add(61 * time.Minute))
	_, err = l.EndAuction(ctx, owner)
	require.ErrorIs(t, err, domain.ErrAuctionStillActive)

	clock.Set(late.Add(ExtensionWindow))
	events, err := l.EndAuction(ctx, owner)
	require.NoError(t, err)
	assert.Equal(t, bidderA, events[0].Account)
	assert.Equal(t, wei(200), events[0].Amount)
}

func TestUserBidsAndHistoryQueries(t *testing.T) {
	l, _, _ := newTestLedger(t, time.Hour)
	ctx := context.Background()

	_, err := l.PlaceBid(ctx, bidderA, wei(100))
	require.NoError(t, err)
	_, err = l.PlaceBid(ctx, bidderB, wei(150))
	require.NoError(t, err)
	_, err = l.PlaceBid(ctx, bidderA, wei(200))
	require.NoError(t, err)

	bids := l.Bids()
	require.Len(t, bids, 3)
	assert.Equal(t, bidderA, bids[0].Bidder)
	assert.Equal(t, bidderB, bids[1].Bidder)
	assert.Equal(t, bidderA, bids[2].Bidder)

	userBids := l.UserBids(bidderA)
	require.Len(t, userBids, 2)
	assert.Equal(t, wei(100), userBids[0].Amount)
	assert.Equal(t, wei(200), userBids[1].Amount)

	assert.Equal(t, wei(300), l.UserTotal(bidderA))
	assert.Equal(t, wei(150), l.UserTotal(bidderB))
	assert.Equal(t, wei(0), l.UserTotal(bidderC))

	assert.Equal(t, []common.Address{bidderA, bidderB}, l.Participants())
}

func TestCommissionFloorMath(t *testing.T) {
	// floor semantics on odd amounts: deposit 99 -> commission 1, payout 98.
	l, vault, clock := newTestLedger(t, time.Hour)
	ctx := context.Background()

	_, err := l.PlaceBid(ctx, bidderA, wei(99))
	require.NoError(t, err)
	_, err = l.PlaceBid(ctx, bidderB, wei(200))
	require.NoError(t, err)

	balBefore := vault.BalanceOf(bidderA)
	clock.Advance(time.Hour)
	events, err := l.EndAuction(ctx, owner)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, wei(98), events[1].Amount)
	assert.Equal(t, new(big.Int).Add(balBefore, wei(98)), vault.BalanceOf(bidderA))
}
