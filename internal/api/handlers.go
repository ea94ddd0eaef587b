/**
 * @description
 * This file contains the HTTP handlers for the settlement service's API
 * endpoints. Handlers parse incoming requests, call the settlement service, and
 * map the settlement error taxonomy onto HTTP status codes. They are the bridge
 * between the web layer and the settlement engine.
 *
 * @dependencies
 * - encoding/json, log, net/http: Standard Go libraries.
 * - internal/app, internal/domain, internal/store: For service logic, models, and custom errors.
 * - pkg/ledgerclient: For recognizing propagated ledger failures.
 */

package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rebelronin/silkyway/internal/app"
	"github.com/rebelronin/silkyway/internal/domain"
	"github.com/rebelronin/silkyway/internal/store"
	"github.com/rebelronin/silkyway/pkg/ledgerclient"
)

// SettlementHandlers holds the settlement service and the expire-path rate
// limiter that handlers will use.
type SettlementHandlers struct {
	service          *app.Service
	limiter          *app.RedisSettlementRateLimiter
	expireRatePerMin int
}

// NewSettlementHandlers creates a new instance of SettlementHandlers. The
// limiter may be nil, which disables expire-path throttling.
func NewSettlementHandlers(service *app.Service, limiter *app.RedisSettlementRateLimiter, expireRatePerMin int) *SettlementHandlers {
	return &SettlementHandlers{
		service:          service,
		limiter:          limiter,
		expireRatePerMin: expireRatePerMin,
	}
}

// poolResponse augments the pool record with the derived escrowed balance so
// callers do not have to recompute the accounting identity.
type poolResponse struct {
	*domain.Pool
	EscrowedBalance uint64 `json:"escrowed_balance"`
}

type rejectTransferRequest struct {
	ReasonCode    uint8  `json:"reason_code"`
	ReasonMessage string `json:"reason_message"`
}

// CreatePoolHandler handles privileged pool provisioning.
func (h *SettlementHandlers) CreatePoolHandler(w http.ResponseWriter, r *http.Request) {
	var params app.CreatePoolParams
	if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	pool, err := h.service.CreatePool(r.Context(), params)
	if err != nil {
		h.writeSettlementError(w, err, "pool_create")
		return
	}

	h.writeJSON(w, http.StatusCreated, poolResponse{Pool: pool, EscrowedBalance: pool.EscrowedBalance()})
}

// UpdateFeePolicyHandler handles the privileged fee policy replacement.
func (h *SettlementHandlers) UpdateFeePolicyHandler(w http.ResponseWriter, r *http.Request) {
	poolID, ok := h.parseID(w, r, "poolID")
	if !ok {
		return
	}

	var policy domain.FeePolicy
	if err := json.NewDecoder(r.Body).Decode(&policy); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := h.service.UpdateFeePolicy(r.Context(), poolID, policy); err != nil {
		h.writeSettlementError(w, err, "fee_policy_update")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

// GetPoolHandler returns a pool with its accounting counters.
func (h *SettlementHandlers) GetPoolHandler(w http.ResponseWriter, r *http.Request) {
	poolID, ok := h.parseID(w, r, "poolID")
	if !ok {
		return
	}

	pool, err := h.service.GetPool(r.Context(), poolID)
	if err != nil {
		h.writeSettlementError(w, err, "pool_get")
		return
	}

	h.writeJSON(w, http.StatusOK, poolResponse{Pool: pool, EscrowedBalance: pool.EscrowedBalance()})
}

// ListPoolTransfersHandler returns a page of a pool's transfers.
func (h *SettlementHandlers) ListPoolTransfersHandler(w http.ResponseWriter, r *http.Request) {
	poolID, ok := h.parseID(w, r, "poolID")
	if !ok {
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	transfers, err := h.service.ListPoolTransfers(r.Context(), poolID, limit, offset)
	if err != nil {
		h.writeSettlementError(w, err, "transfer_list")
		return
	}
	if transfers == nil {
		transfers = []domain.SecureTransfer{}
	}

	h.writeJSON(w, http.StatusOK, transfers)
}

// CreateTransferHandler escrows a deposit from the authenticated caller.
func (h *SettlementHandlers) CreateTransferHandler(w http.ResponseWriter, r *http.Request) {
	caller, ok := GetCallerID(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "Caller identity missing")
		return
	}

	var params app.CreateTransferParams
	if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	transfer, err := h.service.CreateTransfer(r.Context(), caller, params)
	if err != nil {
		h.writeSettlementError(w, err, "transfer_create")
		return
	}

	h.writeJSON(w, http.StatusCreated, transfer)
}

// GetTransferHandler returns one transfer record.
func (h *SettlementHandlers) GetTransferHandler(w http.ResponseWriter, r *http.Request) {
	transferID, ok := h.parseID(w, r, "transferID")
	if !ok {
		return
	}

	transfer, err := h.service.GetTransfer(r.Context(), transferID)
	if err != nil {
		h.writeSettlementError(w, err, "transfer_get")
		return
	}

	h.writeJSON(w, http.StatusOK, transfer)
}

// AcceptTransferHandler settles a pending transfer to the recipient. The
// authenticated caller must be the pool operator.
func (h *SettlementHandlers) AcceptTransferHandler(w http.ResponseWriter, r *http.Request) {
	caller, ok := GetCallerID(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "Caller identity missing")
		return
	}
	transferID, ok := h.parseID(w, r, "transferID")
	if !ok {
		return
	}

	transfer, err := h.service.AcceptTransfer(r.Context(), transferID, caller)
	if err != nil {
		h.writeSettlementError(w, err, "transfer_accept")
		return
	}

	h.writeJSON(w, http.StatusOK, transfer)
}

// RejectTransferHandler settles a pending transfer back to the sender with the
// operator's reason. The authenticated caller must be the pool operator.
func (h *SettlementHandlers) RejectTransferHandler(w http.ResponseWriter, r *http.Request) {
	caller, ok := GetCallerID(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "Caller identity missing")
		return
	}
	transferID, ok := h.parseID(w, r, "transferID")
	if !ok {
		return
	}

	var req rejectTransferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	transfer, err := h.service.RejectTransfer(r.Context(), transferID, caller, req.ReasonCode, req.ReasonMessage)
	if err != nil {
		h.writeSettlementError(w, err, "transfer_reject")
		return
	}

	h.writeJSON(w, http.StatusOK, transfer)
}

// ExpireTransferHandler settles an overdue transfer through the refund path.
// Any authenticated caller may trigger it, so the endpoint is rate limited per
// caller identity.
func (h *SettlementHandlers) ExpireTransferHandler(w http.ResponseWriter, r *http.Request) {
	caller, ok := GetCallerID(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "Caller identity missing")
		return
	}
	transferID, ok := h.parseID(w, r, "transferID")
	if !ok {
		return
	}

	if h.limiter != nil && h.expireRatePerMin > 0 {
		count, retryAfter, err := h.limiter.ConsumeRateLimit(r.Context(), "transfer_expire", caller, h.expireRatePerMin, time.Minute)
		if err != nil {
			// Throttling is best-effort: a limiter outage must not block expiry.
			log.Printf("level=warn component=api msg=\"expire rate limiter unavailable\" caller=%s err=%v", caller, err)
		} else if count > h.expireRatePerMin {
			w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
			h.writeError(w, http.StatusTooManyRequests, "Too many expiry attempts. Please wait and try again.")
			return
		}
	}

	transfer, err := h.service.ExpireTransfer(r.Context(), transferID, caller)
	if err != nil {
		h.writeSettlementError(w, err, "transfer_expire")
		return
	}

	h.writeJSON(w, http.StatusOK, transfer)
}

func (h *SettlementHandlers) parseID(w http.ResponseWriter, r *http.Request, param string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, param))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid identifier")
		return uuid.Nil, false
	}
	return id, true
}

// writeSettlementError maps the settlement error taxonomy onto HTTP statuses.
func (h *SettlementHandlers) writeSettlementError(w http.ResponseWriter, err error, flow string) {
	var ledgerErr *ledgerclient.LedgerError

	switch {
	case errors.Is(err, domain.ErrUnauthorized):
		h.writeError(w, http.StatusForbidden, "Caller is not the pool operator.")
	case errors.Is(err, domain.ErrInactiveTransfer):
		h.writeError(w, http.StatusConflict, "Transfer has already been settled.")
	case errors.Is(err, domain.ErrInvalidMemoLength):
		h.writeError(w, http.StatusBadRequest, "Reason message exceeds the 200 character limit.")
	case errors.Is(err, domain.ErrNotExpired):
		h.writeError(w, http.StatusConflict, "Transfer has not reached its expiry deadline.")
	case errors.Is(err, domain.ErrArithmeticOverflow):
		h.writeError(w, http.StatusUnprocessableEntity, "Settlement would overflow pool accounting.")
	case errors.Is(err, domain.ErrInvalidFeePolicy):
		h.writeError(w, http.StatusBadRequest, "Invalid fee policy.")
	case errors.Is(err, app.ErrInvalidPoolParams), errors.Is(err, app.ErrInvalidTransferParams):
		h.writeError(w, http.StatusBadRequest, "Invalid request parameters.")
	case errors.Is(err, store.ErrPoolNotFound):
		h.writeError(w, http.StatusNotFound, "Pool not found.")
	case errors.Is(err, store.ErrTransferNotFound):
		h.writeError(w, http.StatusNotFound, "Transfer not found.")
	case errors.Is(err, store.ErrPoolExists):
		h.writeError(w, http.StatusConflict, "Pool already exists.")
	case errors.As(err, &ledgerErr):
		log.Printf("level=warn component=api flow=%s msg=\"ledger rejected fund movement\" err=%v", flow, err)
		h.writeError(w, http.StatusBadGateway, "Asset ledger rejected the fund movement.")
	default:
		log.Printf("level=error component=api flow=%s msg=\"unexpected failure\" err=%v", flow, err)
		h.writeError(w, http.StatusInternalServerError, "An unexpected error occurred.")
	}
}

// writeJSON is a helper for writing JSON responses.
func (h *SettlementHandlers) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// writeError is a helper for writing JSON error responses.
func (h *SettlementHandlers) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
