package domain

import (
	"encoding/json"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
)

// EventType identifies a ledger notification.
type EventType string

const (
	EventNewBid       EventType = "new_bid"
	EventAuctionEnded EventType = "auction_ended"
	EventRefundIssued EventType = "refund_issued"
	EventRefundFailed EventType = "refund_failed"
)

// Event is a notification emitted by a ledger operation. Account is the
// affected identity (leading bidder, winner, or refund recipient) and Amount
// is the associated value in wei. Ref carries the originating bid ID for
// new_bid events and is nil otherwise.
type Event struct {
	Type    EventType
	Ref     uuid.UUID
	Account common.Address
	Amount  *big.Int
	At      time.Time
}

// Channel returns the pub/sub channel the event belongs on.
func (e Event) Channel() string {
	switch e.Type {
	case EventNewBid:
		return "bids"
	case EventAuctionEnded:
		return "auction"
	default:
		return "refunds"
	}
}

// MarshalJSON renders the amount as a decimal string so values above 2^53
// survive JSON round trips.
func (e Event) MarshalJSON() ([]byte, error) {
	amount := "0"
	if e.Amount != nil {
		amount = e.Amount.String()
	}
	ref := ""
	if e.Ref != uuid.Nil {
		ref = e.Ref.String()
	}
	return json.Marshal(struct {
		Type    EventType `json:"type"`
		Ref     string    `json:"ref,omitempty"`
		Account string    `json:"account"`
		Amount  string    `json:"amount"`
		At      time.Time `json:"at"`
	}{
		Type:    e.Type,
		Ref:     ref,
		Account: e.Account.Hex(),
		Amount:  amount,
		At:      e.At,
	})
}
