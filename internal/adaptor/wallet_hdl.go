package adaptor

import (
	"net/http"

	"clinic-booking/internal/dto/request"
	"clinic-booking/internal/usecase"
	"clinic-booking/pkg/utils"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type WalletHandler struct {
	service usecase.WalletService
	log     *zap.Logger
}

func NewWalletHandler(service usecase.WalletService, log *zap.Logger) *WalletHandler {
	return &WalletHandler{
		service: service,
		log:     log.With(zap.String("handler", "wallet")),
	}
}

// GetBalance handles GET /api/wallet/balance
func (h *WalletHandler) GetBalance(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	balance, err := h.service.GetBalance(r.Context(), actor)
	if err != nil {
		writeServiceError(w, h.log, err, "get wallet balance")
		return
	}

	utils.ResponseSuccess(w, "success", balance)
}

// GetTransactions handles GET /api/wallet/transactions
func (h *WalletHandler) GetTransactions(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	req := paginationFromQuery(r)
	history, err := h.service.GetTransactions(r.Context(), actor, &req)
	if err != nil {
		writeServiceError(w, h.log, err, "get wallet transactions")
		return
	}

	utils.ResponseSuccess(w, "success", history)
}

// Credit handles POST /api/admin/wallet/{userId}/credit (admin only)
func (h *WalletHandler) Credit(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	var req request.WalletCreditRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	tx, err := h.service.Credit(r.Context(), actor, chi.URLParam(r, "userId"), &req)
	if err != nil {
		writeServiceError(w, h.log, err, "credit wallet")
		return
	}

	utils.ResponseCreated(w, "Wallet credited", tx)
}
