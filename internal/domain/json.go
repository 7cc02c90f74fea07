package domain

import (
	"encoding/json"
	"math/big"
	"time"

	"github.com/google/uuid"
)

func bigString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

// MarshalJSON renders Amount as a decimal string.
func (b Bid) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		ID        uuid.UUID `json:"id"`
		AuctionID uuid.UUID `json:"auction_id"`
		Bidder    string    `json:"bidder"`
		Amount    string    `json:"amount"`
		PlacedAt  time.Time `json:"placed_at"`
	}{b.ID, b.AuctionID, b.Bidder.Hex(), bigString(b.Amount), b.PlacedAt})
}

// MarshalJSON renders Amount as a decimal string.
func (u UserBid) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Amount   string    `json:"amount"`
		PlacedAt time.Time `json:"placed_at"`
	}{bigString(u.Amount), u.PlacedAt})
}

// MarshalJSON renders Amount as a decimal string.
func (s Settlement) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		ID        uuid.UUID      `json:"id"`
		AuctionID uuid.UUID      `json:"auction_id"`
		Kind      SettlementKind `json:"kind"`
		Account   string         `json:"account"`
		Amount    string         `json:"amount"`
		Succeeded bool           `json:"succeeded"`
		SettledAt time.Time      `json:"settled_at"`
	}{s.ID, s.AuctionID, s.Kind, s.Account.Hex(), bigString(s.Amount), s.Succeeded, s.SettledAt})
}

// MarshalJSON renders HighestBid as a decimal string.
func (a AuctionStatus) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		AuctionID     uuid.UUID `json:"auction_id"`
		Owner         string    `json:"owner"`
		EndTime       time.Time `json:"end_time"`
		Ended         bool      `json:"ended"`
		HighestBid    string    `json:"highest_bid"`
		HighestBidder string    `json:"highest_bidder"`
		BidCount      int       `json:"bid_count"`
		Participants  int       `json:"participants"`
	}{a.AuctionID, a.Owner.Hex(), a.EndTime, a.Ended, bigString(a.HighestBid), a.HighestBidder.Hex(), a.BidCount, a.Participants})
}
