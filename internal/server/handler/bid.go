package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"math/big"
	"net/http"

	"github.com/ethereum/go-ethereum/common"

	"github.com/ledgerworks/auctiond/internal/domain"
)

// BidService is the slice of the auction service the bid handlers need.
type BidService interface {
	PlaceBid(ctx context.Context, bidder common.Address, amount *big.Int) (domain.Event, error)
	Bids() []domain.Bid
	UserBids(addr common.Address) []domain.UserBid
	UserTotal(addr common.Address) *big.Int
	MinNextBid() *big.Int
}

// BidHandler serves bid submission and bid history endpoints.
type BidHandler struct {
	svc    BidService
	auth   CallerAuth
	logger *slog.Logger
}

// NewBidHandler creates a BidHandler.
func NewBidHandler(svc BidService, auth CallerAuth, logger *slog.Logger) *BidHandler {
	return &BidHandler{
		svc:    svc,
		auth:   auth,
		logger: logHandler(logger, "bid"),
	}
}

type placeBidRequest struct {
	Bidder    string `json:"bidder"`
	Amount    string `json:"amount"`
	Signature string `json:"signature,omitempty"`
}

// PlaceBid submits a new bid.
// POST /api/bids
func (h *BidHandler) PlaceBid(w http.ResponseWriter, r *http.Request) {
	var req placeBidRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	bidder, amount, err := h.auth.ResolveBidder(req.Bidder, req.Amount, req.Signature)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	evt, err := h.svc.PlaceBid(r.Context(), bidder, amount)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"event":        evt,
		"min_next_bid": h.svc.MinNextBid().String(),
	})
}

// ListBids returns the public bid history, oldest first.
// GET /api/bids
func (h *BidHandler) ListBids(w http.ResponseWriter, r *http.Request) {
	opts := parseListOpts(r)
	bids := h.svc.Bids()

	total := len(bids)
	start := opts.Offset
	if start > total {
		start = total
	}
	end := start + opts.Limit
	if end > total {
		end = total
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"bids":  bids[start:end],
		"total": total,
	})
}

// UserBids returns one bidder's personal history and cumulative total.
// GET /api/bids/user/{address}
func (h *BidHandler) UserBids(w http.ResponseWriter, r *http.Request) {
	addr, err := parseAddress(r.PathValue("address"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"bidder": addr.Hex(),
		"bids":   h.svc.UserBids(addr),
		"total":  h.svc.UserTotal(addr).String(),
	})
}

// Deposits returns the total value one bidder currently has deposited.
// GET /api/deposits/{address}
func (h *BidHandler) Deposits(w http.ResponseWriter, r *http.Request) {
	addr, err := parseAddress(r.PathValue("address"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"address":   addr.Hex(),
		"deposited": h.svc.UserTotal(addr).String(),
	})
}

// MinBid returns the lowest amount the next bid must reach.
// GET /api/auction/min-bid
func (h *BidHandler) MinBid(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"min_next_bid": h.svc.MinNextBid().String(),
	})
}
