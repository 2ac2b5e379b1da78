package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/ecovend/backend/internal/models"
	"github.com/ecovend/backend/internal/services"
	"github.com/rs/zerolog"
)

type AccountHandler struct {
	accounts    *services.AccountService
	recentCount int
	log         zerolog.Logger
}

func NewAccountHandler(accounts *services.AccountService, recentCount int, log zerolog.Logger) *AccountHandler {
	return &AccountHandler{accounts: accounts, recentCount: recentCount, log: log}
}

// Account returns the dashboard view of the signed-in account
// @Summary Account dashboard
// @Tags account
// @Security BearerAuth
// @Produce json
// @Success 200 {object} models.Summary
// @Router /account [get]
func (h *AccountHandler) Account(w http.ResponseWriter, r *http.Request) {
	identity, ok := identityOrUnauthorized(w, r)
	if !ok {
		return
	}

	acct, err := h.accounts.GetAccount(r.Context(), identity)
	if err != nil {
		sendDomainError(w, h.log, err)
		return
	}
	services.SendJSON(w, http.StatusOK, acct.Summarize(h.recentCount))
}

// HistoryResponse is the activity log view
type HistoryResponse struct {
	Total      int                `json:"total"`
	Activities models.ActivityLog `json:"activities"`
}

// Activities returns the activity log, newest first
// @Summary Activity history
// @Tags account
// @Security BearerAuth
// @Produce json
// @Param kind query string false "RECYCLE_CREDIT, VOUCHER_REDEMPTION, CASH_WITHDRAWAL or STORE_PURCHASE"
// @Param limit query int false "Maximum number of activities"
// @Success 200 {object} HistoryResponse
// @Router /activities [get]
func (h *AccountHandler) Activities(w http.ResponseWriter, r *http.Request) {
	identity, ok := identityOrUnauthorized(w, r)
	if !ok {
		return
	}

	query := r.URL.Query()
	kind := models.ActivityKind(strings.ToUpper(query.Get("kind")))
	if kind != "" && !kind.Valid() {
		services.SendErrorResponse(w, "Unknown activity kind", http.StatusBadRequest, nil)
		return
	}

	limit := 0
	if raw := query.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			services.SendErrorResponse(w, "limit must be a positive integer", http.StatusBadRequest, nil)
			return
		}
		limit = n
	}

	acct, err := h.accounts.GetAccount(r.Context(), identity)
	if err != nil {
		sendDomainError(w, h.log, err)
		return
	}

	activities := acct.ActivityLog
	if kind != "" {
		activities = activities.Filter(kind)
	}
	total := len(activities)
	if limit > 0 && limit < total {
		activities = activities[:limit]
	}
	if activities == nil {
		activities = models.ActivityLog{}
	}

	services.SendJSON(w, http.StatusOK, HistoryResponse{Total: total, Activities: activities})
}
