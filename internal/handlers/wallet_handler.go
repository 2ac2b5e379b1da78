package handlers

import (
	"net/http"

	"github.com/ecovend/backend/internal/catalog"
	"github.com/ecovend/backend/internal/models"
	"github.com/ecovend/backend/internal/services"
	"github.com/rs/zerolog"
)

type WalletHandler struct {
	accounts    *services.AccountService
	catalog     *catalog.Catalog
	validator   *services.ValidationHelper
	recentCount int
	log         zerolog.Logger
}

func NewWalletHandler(accounts *services.AccountService, c *catalog.Catalog, recentCount int, log zerolog.Logger) *WalletHandler {
	return &WalletHandler{
		accounts:    accounts,
		catalog:     c,
		validator:   services.NewValidationHelper(),
		recentCount: recentCount,
		log:         log,
	}
}

// CashOutRequest converts coins to money on a transfer method
type CashOutRequest struct {
	Coins    int64  `json:"coins" validate:"required,gt=0" example:"50"`
	MethodID string `json:"methodId" validate:"required,max=64" example:"upi"`
}

// CashOut withdraws coins as real currency
// @Summary Cash out coins
// @Tags wallet
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param request body CashOutRequest true "Cash-out request"
// @Success 200 {object} LedgerResponse
// @Failure 402 {object} services.ErrorResponse "Insufficient balance"
// @Failure 404 {object} services.ErrorResponse "Transfer method not found"
// @Router /wallet/cash-out [post]
func (h *WalletHandler) CashOut(w http.ResponseWriter, r *http.Request) {
	identity, ok := identityOrUnauthorized(w, r)
	if !ok {
		return
	}

	var req CashOutRequest
	if err := h.validator.DecodeJSON(w, r, &req); err != nil {
		sendDomainError(w, h.log, err)
		return
	}
	if err := h.validator.ValidateStruct(&req); err != nil {
		services.SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	method, found := h.catalog.TransferMethod(req.MethodID)
	if !found {
		services.SendErrorResponse(w, "Transfer method not found", http.StatusNotFound, nil)
		return
	}

	ledger := h.accounts.Ledger()
	acct, err := h.accounts.Apply(r.Context(), identity, func(a models.Account) (models.Account, error) {
		return ledger.CashOut(a, req.Coins, method.Name)
	})
	if err != nil {
		sendDomainError(w, h.log, err)
		return
	}

	services.SendJSON(w, http.StatusOK, LedgerResponse{Activity: acct.ActivityLog[0], Account: acct.Summarize(h.recentCount)})
}
