package handler

import (
	"encoding/json"
	"log/slog"
	"math/big"
	"net/http"

	"github.com/ethereum/go-ethereum/common"
)

// TransferService rejects bare value transfers.
type TransferService interface {
	Receive(from common.Address, value *big.Int) error
}

// TransferHandler serves the direct-transfer endpoint, which exists only to
// refuse. Funds enter the auction exclusively through bids.
type TransferHandler struct {
	svc    TransferService
	logger *slog.Logger
}

// NewTransferHandler creates a TransferHandler.
func NewTransferHandler(svc TransferService, logger *slog.Logger) *TransferHandler {
	return &TransferHandler{
		svc:    svc,
		logger: logHandler(logger, "transfer"),
	}
}

type transferRequest struct {
	From   string `json:"from"`
	Amount string `json:"amount"`
}

// Receive rejects any attempt to push funds directly into the auction.
// POST /api/transfers
func (h *TransferHandler) Receive(w http.ResponseWriter, r *http.Request) {
	var req transferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	from, err := parseAddress(req.From)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	err = h.svc.Receive(from, amount)
	// Receive never succeeds; surface the rejection to the sender.
	writeDomainError(w, err)
}
