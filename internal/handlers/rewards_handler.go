package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/ecovend/backend/internal/catalog"
	"github.com/ecovend/backend/internal/models"
	"github.com/ecovend/backend/internal/services"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

type RewardsHandler struct {
	accounts    *services.AccountService
	catalog     *catalog.Catalog
	validator   *services.ValidationHelper
	recentCount int
	now         func() time.Time
	log         zerolog.Logger
}

func NewRewardsHandler(accounts *services.AccountService, c *catalog.Catalog, recentCount int, log zerolog.Logger) *RewardsHandler {
	return &RewardsHandler{
		accounts:    accounts,
		catalog:     c,
		validator:   services.NewValidationHelper(),
		recentCount: recentCount,
		now:         time.Now,
		log:         log,
	}
}

// RedeemRequest selects a voucher from the catalog
type RedeemRequest struct {
	VoucherID string `json:"voucherId" validate:"required,max=64" example:"v1"`
}

// VaultEntry is a redeemed voucher with its catalog template
type VaultEntry struct {
	Activity    models.Activity `json:"activity"`
	Expired     bool            `json:"expired"`
	Description string          `json:"description,omitempty"`
	Image       string          `json:"image,omitempty"`
	Terms       []string        `json:"terms,omitempty"`
}

// VaultResponse lists redeemed vouchers, newest first
type VaultResponse struct {
	Vouchers []VaultEntry `json:"vouchers"`
}

// Redeem trades coins for a voucher code
// @Summary Redeem a voucher
// @Tags rewards
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param request body RedeemRequest true "Redeem request"
// @Success 200 {object} LedgerResponse
// @Failure 402 {object} services.ErrorResponse "Insufficient balance"
// @Failure 404 {object} services.ErrorResponse "Voucher not found"
// @Router /rewards/redeem [post]
func (h *RewardsHandler) Redeem(w http.ResponseWriter, r *http.Request) {
	identity, ok := identityOrUnauthorized(w, r)
	if !ok {
		return
	}

	var req RedeemRequest
	if err := h.validator.DecodeJSON(w, r, &req); err != nil {
		sendDomainError(w, h.log, err)
		return
	}
	if err := h.validator.ValidateStruct(&req); err != nil {
		services.SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	voucher, found := h.catalog.Voucher(req.VoucherID)
	if !found {
		services.SendErrorResponse(w, "Voucher not found", http.StatusNotFound, nil)
		return
	}

	ledger := h.accounts.Ledger()
	faceValue := voucher.FaceValue
	acct, err := h.accounts.Apply(r.Context(), identity, func(a models.Account) (models.Account, error) {
		return ledger.RedeemVoucher(a, voucher.Provider, voucher.CoinCost, &faceValue)
	})
	if err != nil {
		sendDomainError(w, h.log, err)
		return
	}

	services.SendJSON(w, http.StatusOK, LedgerResponse{Activity: acct.ActivityLog[0], Account: acct.Summarize(h.recentCount)})
}

// Vault lists the vouchers the account has redeemed
// @Summary Voucher vault
// @Tags rewards
// @Security BearerAuth
// @Produce json
// @Success 200 {object} VaultResponse
// @Router /rewards/vault [get]
func (h *RewardsHandler) Vault(w http.ResponseWriter, r *http.Request) {
	identity, ok := identityOrUnauthorized(w, r)
	if !ok {
		return
	}

	acct, err := h.accounts.GetAccount(r.Context(), identity)
	if err != nil {
		sendDomainError(w, h.log, err)
		return
	}

	now := h.now().UnixMilli()
	entries := make([]VaultEntry, 0)
	for _, act := range acct.ActivityLog.Filter(models.KindVoucherRedemption) {
		detail := act.Detail.(models.VoucherRedemption)
		entry := VaultEntry{Activity: act, Expired: detail.ExpiresAt <= now}
		if tmpl, found := h.catalog.VoucherByProvider(detail.Provider); found {
			entry.Description = tmpl.Description
			entry.Image = tmpl.Image
			entry.Terms = tmpl.Terms
		}
		entries = append(entries, entry)
	}

	services.SendJSON(w, http.StatusOK, VaultResponse{Vouchers: entries})
}

// QR renders a redeemed voucher's code as a PNG
// @Summary Voucher QR code
// @Tags rewards
// @Security BearerAuth
// @Produce png
// @Param activityId path string true "Voucher activity id"
// @Param size query int false "Image size in pixels"
// @Success 200 {file} binary
// @Failure 404 {object} services.ErrorResponse "Voucher not found"
// @Router /rewards/vault/{activityId}/qr [get]
func (h *RewardsHandler) QR(w http.ResponseWriter, r *http.Request) {
	identity, ok := identityOrUnauthorized(w, r)
	if !ok {
		return
	}

	size := services.DefaultQRSize
	if raw := r.URL.Query().Get("size"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			services.SendErrorResponse(w, "size must be an integer", http.StatusBadRequest, nil)
			return
		}
		size = n
	}

	acct, err := h.accounts.GetAccount(r.Context(), identity)
	if err != nil {
		sendDomainError(w, h.log, err)
		return
	}

	act, found := acct.FindActivity(chi.URLParam(r, "activityId"))
	detail, isVoucher := act.Detail.(models.VoucherRedemption)
	if !found || !isVoucher {
		services.SendErrorResponse(w, "Voucher not found", http.StatusNotFound, nil)
		return
	}

	png, err := services.RenderQR(services.QRPayload(detail.Provider, detail.Code), size)
	if err != nil {
		services.SendErrorResponse(w, err.Error(), http.StatusBadRequest, nil)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "private, no-store")
	w.WriteHeader(http.StatusOK)
	w.Write(png)
}
