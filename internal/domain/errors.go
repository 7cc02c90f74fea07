package domain

import "errors"

// Authorization failures.
var (
	ErrNotOwner     = errors.New("caller is not the auction owner")
	ErrUnauthorized = errors.New("unauthorized")
)

// Lifecycle (state) failures.
var (
	ErrAuctionInactive    = errors.New("auction is not active")
	ErrAuctionStillActive = errors.New("auction is still active")
	ErrAlreadyEnded       = errors.New("auction already ended")
	ErrNoWinner           = errors.New("no winner: no bids were placed")
)

// Validation failures.
var (
	ErrZeroBid           = errors.New("bid value must be greater than zero")
	ErrBidTooLow         = errors.New("bid below minimum increment")
	ErrNoRefundAvailable = errors.New("no refund available")
	ErrRefundsPending    = errors.New("refunds pending: non-winner deposits not settled")
	ErrInvalidDuration   = errors.New("invalid auction duration")
	ErrInvalidAddress    = errors.New("invalid address")
	ErrInvalidAmount     = errors.New("invalid amount")
	ErrDirectTransfer    = errors.New("direct transfers are not accepted")
)

// Transfer and infrastructure failures.
var (
	ErrTransferFailed    = errors.New("transfer failed")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrRateLimited       = errors.New("rate limited")
	ErrLockHeld          = errors.New("lock already held")
	ErrNotFound          = errors.New("not found")
)
