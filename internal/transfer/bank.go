// Package transfer models the native value-transfer primitive the auction
// ledger settles through. The ledger only sees the Bank interface: value is
// collected into escrow as an intrinsic part of placing a bid and paid back
// out during refunds and owner settlement. A payment can fail without being
// fatal to the caller; the ledger decides what a failed payment means.
package transfer

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Bank moves value between bidder accounts and the auction escrow.
type Bank interface {
	// Collect debits amount from the payer and credits the escrow. It fails
	// with domain.ErrInsufficientFunds when the payer cannot cover the amount.
	Collect(ctx context.Context, from common.Address, amount *big.Int) error

	// Pay debits amount from the escrow and credits the recipient. It fails
	// with domain.ErrTransferFailed when the recipient rejects the payment.
	Pay(ctx context.Context, to common.Address, amount *big.Int) error
}
