package handlers

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ecovend/backend/internal/config"
	"github.com/ecovend/backend/internal/database"
	"github.com/ecovend/backend/internal/models"
	"github.com/ecovend/backend/internal/services"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const maxImageBytes = 8 << 20

// a base64 image of maxImageBytes plus room for the JSON envelope
const maxScanBodyBytes = maxImageBytes/3*4 + 4<<10

// Classifier identifies a recyclable item in a JPEG photo.
type Classifier interface {
	Classify(ctx context.Context, imageJPEG []byte) (services.Classification, error)
}

type RecycleHandler struct {
	accounts    *services.AccountService
	classifier  Classifier
	sessions    database.SessionStore
	rewards     *config.RewardsConfig
	validator   *services.ValidationHelper
	recentCount int
	log         zerolog.Logger
}

func NewRecycleHandler(
	accounts *services.AccountService,
	classifier Classifier,
	sessions database.SessionStore,
	rewards *config.RewardsConfig,
	recentCount int,
	log zerolog.Logger,
) *RecycleHandler {
	return &RecycleHandler{
		accounts:    accounts,
		classifier:  classifier,
		sessions:    sessions,
		rewards:     rewards,
		validator:   services.NewValidationHelper(),
		recentCount: recentCount,
		log:         log,
	}
}

// ScanRequest carries a base64 encoded JPEG
type ScanRequest struct {
	Image string `json:"image" validate:"required,base64"`
}

// ScanResponse is a classification waiting for confirmation
type ScanResponse struct {
	ScanID         string                  `json:"scanId"`
	Classification services.Classification `json:"classification"`
	ExpiresAt      int64                   `json:"expiresAt"`
}

// ConfirmRequest accepts a pending scan
type ConfirmRequest struct {
	ScanID string `json:"scanId" validate:"required,uuid"`
}

// LedgerResponse is returned by every coin-changing endpoint
type LedgerResponse struct {
	Activity models.Activity `json:"activity"`
	Account  models.Summary  `json:"account"`
}

// pendingScanID binds a scan to the identity that made it, so another
// account confirming the same scanId finds nothing.
func pendingScanID(identity, scanID string) string {
	return identity + ":" + scanID
}

func (h *RecycleHandler) readImage(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	if strings.HasPrefix(r.Header.Get("Content-Type"), "image/jpeg") {
		return io.ReadAll(http.MaxBytesReader(w, r.Body, maxImageBytes))
	}

	var req ScanRequest
	if err := h.validator.DecodeJSONLimit(w, r, &req, maxScanBodyBytes); err != nil {
		return nil, err
	}
	if err := h.validator.ValidateStruct(&req); err != nil {
		return nil, err
	}
	return base64.StdEncoding.DecodeString(req.Image)
}

// Scan classifies a photographed item and holds the result for confirmation
// @Summary Scan an item
// @Description Accepts image/jpeg or a JSON body with a base64 image
// @Tags recycle
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param request body ScanRequest false "Scan request"
// @Success 200 {object} ScanResponse
// @Failure 422 {object} services.ErrorResponse "Item could not be identified"
// @Failure 429 {object} services.ErrorResponse "Too many scans"
// @Failure 502 {object} services.ErrorResponse "Classifier unavailable"
// @Failure 503 {object} services.ErrorResponse "Classifier not configured"
// @Router /recycle/scan [post]
func (h *RecycleHandler) Scan(w http.ResponseWriter, r *http.Request) {
	identity, ok := identityOrUnauthorized(w, r)
	if !ok {
		return
	}

	image, err := h.readImage(w, r)
	if err != nil {
		h.log.Debug().Err(err).Msg("Scan rejected - invalid image")
		services.SendErrorResponse(w, "Invalid image", http.StatusBadRequest, err)
		return
	}

	allowed, err := h.sessions.AllowScan(r.Context(), identity, h.rewards.ScanMaxPerWindow, h.rewards.ScanRateLimitWindow)
	if err != nil {
		sendDomainError(w, h.log, err)
		return
	}
	if !allowed {
		services.SendErrorResponse(w, "Scan limit reached, try again later", http.StatusTooManyRequests, nil)
		return
	}

	result, err := h.classifier.Classify(r.Context(), image)
	if err != nil {
		if releaseErr := h.sessions.ReleaseScan(r.Context(), identity); releaseErr != nil {
			h.log.Warn().Err(releaseErr).Str("identity", identity).Msg("Failed to release scan slot")
		}
		sendDomainError(w, h.log, err)
		return
	}

	payload, err := json.Marshal(result)
	if err != nil {
		sendDomainError(w, h.log, err)
		return
	}

	scanID := uuid.NewString()
	if err := h.sessions.SavePendingScan(r.Context(), pendingScanID(identity, scanID), payload, h.rewards.PendingScanTTL); err != nil {
		sendDomainError(w, h.log, err)
		return
	}

	services.SendJSON(w, http.StatusOK, ScanResponse{
		ScanID:         scanID,
		Classification: result,
		ExpiresAt:      time.Now().Add(h.rewards.PendingScanTTL).UnixMilli(),
	})
}

// Confirm credits the coins of a pending scan
// @Summary Confirm a scan
// @Tags recycle
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param request body ConfirmRequest true "Confirm request"
// @Success 200 {object} LedgerResponse
// @Failure 404 {object} services.ErrorResponse "Scan not found or expired"
// @Router /recycle/confirm [post]
func (h *RecycleHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	identity, ok := identityOrUnauthorized(w, r)
	if !ok {
		return
	}

	var req ConfirmRequest
	if err := h.validator.DecodeJSON(w, r, &req); err != nil {
		sendDomainError(w, h.log, err)
		return
	}
	if err := h.validator.ValidateStruct(&req); err != nil {
		services.SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	key := pendingScanID(identity, req.ScanID)
	payload, found, err := h.sessions.TakePendingScan(r.Context(), key)
	if err != nil {
		sendDomainError(w, h.log, err)
		return
	}
	if !found {
		services.SendErrorResponse(w, "Scan not found or expired", http.StatusNotFound, nil)
		return
	}

	var scan services.Classification
	if err := json.Unmarshal(payload, &scan); err != nil {
		sendDomainError(w, h.log, err)
		return
	}

	ledger := h.accounts.Ledger()
	acct, err := h.accounts.Apply(r.Context(), identity, func(a models.Account) (models.Account, error) {
		return ledger.CreditFromRecycling(a, scan.ItemName, scan.Category, scan.EstimatedValue)
	})
	if err != nil {
		// nothing was credited, so the scan stays confirmable
		if restoreErr := h.sessions.SavePendingScan(r.Context(), key, payload, h.rewards.PendingScanTTL); restoreErr != nil {
			h.log.Warn().Err(restoreErr).Str("identity", identity).Msg("Failed to restore pending scan")
		}
		sendDomainError(w, h.log, err)
		return
	}

	services.SendJSON(w, http.StatusOK, LedgerResponse{Activity: acct.ActivityLog[0], Account: acct.Summarize(h.recentCount)})
}
