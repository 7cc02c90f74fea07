package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/ethereum/go-ethereum/common"

	"github.com/ledgerworks/auctiond/internal/domain"
)

// RefundService is the slice of the auction service the refund handlers need.
type RefundService interface {
	SweepRefunds(ctx context.Context, caller common.Address) ([]domain.Event, error)
	WithdrawRefund(ctx context.Context, caller common.Address) (domain.Event, error)
	PartialRefund(ctx context.Context, caller common.Address) (domain.Event, error)
	Settlements(ctx context.Context) ([]domain.Settlement, error)
}

// RefundHandler serves the settlement endpoints.
type RefundHandler struct {
	svc    RefundService
	auth   CallerAuth
	logger *slog.Logger
}

// NewRefundHandler creates a RefundHandler.
func NewRefundHandler(svc RefundService, auth CallerAuth, logger *slog.Logger) *RefundHandler {
	return &RefundHandler{
		svc:    svc,
		auth:   auth,
		logger: logHandler(logger, "refund"),
	}
}

// Sweep runs the owner-triggered batch refund of all outstanding non-winner
// deposits.
// POST /api/refunds/sweep
func (h *RefundHandler) Sweep(w http.ResponseWriter, r *http.Request) {
	var req privilegedRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	caller, err := h.auth.ResolveCaller(req.Caller, "sweep_refunds", req.Signature)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	events, err := h.svc.SweepRefunds(r.Context(), caller)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"events": events})
}

// Withdraw settles the caller's own deposit after the auction finished.
// POST /api/refunds/withdraw
func (h *RefundHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	var req privilegedRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	caller, err := h.auth.ResolveCaller(req.Caller, "withdraw_refund", req.Signature)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	evt, err := h.svc.WithdrawRefund(r.Context(), caller)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"event": evt})
}

// Partial reclaims the caller's superseded deposits while the auction runs.
// POST /api/refunds/partial
func (h *RefundHandler) Partial(w http.ResponseWriter, r *http.Request) {
	var req privilegedRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	caller, err := h.auth.ResolveCaller(req.Caller, "partial_refund", req.Signature)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	evt, err := h.svc.PartialRefund(r.Context(), caller)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"event": evt})
}

// Settlements returns the durable settlement history.
// GET /api/settlements
func (h *RefundHandler) Settlements(w http.ResponseWriter, r *http.Request) {
	records, err := h.svc.Settlements(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if records == nil {
		records = []domain.Settlement{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"settlements": records})
}
