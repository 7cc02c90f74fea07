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

// AuctionService is the slice of the auction service the lifecycle handlers
// need.
type AuctionService interface {
	Status() domain.AuctionStatus
	Winner() (common.Address, *big.Int, bool)
	EndAuction(ctx context.Context, caller common.Address) ([]domain.Event, error)
	WithdrawProceeds(ctx context.Context, caller common.Address) (*big.Int, error)
}

// AuctionHandler serves auction status and lifecycle endpoints.
type AuctionHandler struct {
	svc    AuctionService
	auth   CallerAuth
	logger *slog.Logger
}

// NewAuctionHandler creates an AuctionHandler.
func NewAuctionHandler(svc AuctionService, auth CallerAuth, logger *slog.Logger) *AuctionHandler {
	return &AuctionHandler{
		svc:    svc,
		auth:   auth,
		logger: logHandler(logger, "auction"),
	}
}

type privilegedRequest struct {
	Caller    string `json:"caller"`
	Signature string `json:"signature,omitempty"`
}

// Status returns a snapshot of the auction state.
// GET /api/auction
func (h *AuctionHandler) Status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.Status())
}

// Winner returns the current leader and their bid.
// GET /api/auction/winner
func (h *AuctionHandler) Winner(w http.ResponseWriter, r *http.Request) {
	winner, amount, ok := h.svc.Winner()
	resp := map[string]any{"exists": ok}
	if ok {
		resp["winner"] = winner.Hex()
		resp["amount"] = amount.String()
	}
	writeJSON(w, http.StatusOK, resp)
}

// End closes the auction and triggers the refund sweep.
// POST /api/auction/end
func (h *AuctionHandler) End(w http.ResponseWriter, r *http.Request) {
	var req privilegedRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	caller, err := h.auth.ResolveCaller(req.Caller, "end_auction", req.Signature)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	events, err := h.svc.EndAuction(r.Context(), caller)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"events": events})
}

// Proceeds transfers the remaining escrow balance to the owner.
// POST /api/auction/proceeds
func (h *AuctionHandler) Proceeds(w http.ResponseWriter, r *http.Request) {
	var req privilegedRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	caller, err := h.auth.ResolveCaller(req.Caller, "withdraw_proceeds", req.Signature)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	amount, err := h.svc.WithdrawProceeds(r.Context(), caller)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"amount": amount.String()})
}
