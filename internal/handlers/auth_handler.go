package handlers

import (
	"errors"
	"net/http"

	"github.com/ecovend/backend/internal/database"
	"github.com/ecovend/backend/internal/middleware"
	"github.com/ecovend/backend/internal/models"
	"github.com/ecovend/backend/internal/services"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

type AuthHandler struct {
	accounts         *services.AccountService
	tokens           *services.TokenService
	sessions         database.SessionStore
	validator        *services.ValidationHelper
	recentCount      int
	defaultMachineID string
	log              zerolog.Logger
}

func NewAuthHandler(
	accounts *services.AccountService,
	tokens *services.TokenService,
	sessions database.SessionStore,
	recentCount int,
	defaultMachineID string,
	log zerolog.Logger,
) *AuthHandler {
	return &AuthHandler{
		accounts:         accounts,
		tokens:           tokens,
		sessions:         sessions,
		validator:        services.NewValidationHelper(),
		recentCount:      recentCount,
		defaultMachineID: defaultMachineID,
		log:              log,
	}
}

// CredentialsRequest is the register and login payload
type CredentialsRequest struct {
	Email     string `json:"email" validate:"required,email" example:"eco@warrior.com"`
	Password  string `json:"password" validate:"required,min=6" example:"password123"`
	MachineID string `json:"machineId,omitempty" validate:"omitempty,max=64" example:"kiosk-01"`
}

// QuickLoginRequest is the password-less kiosk login payload
type QuickLoginRequest struct {
	Method    string `json:"method" validate:"required,oneof=QR FINGERPRINT" example:"QR"`
	MachineID string `json:"machineId,omitempty" validate:"omitempty,max=64" example:"kiosk-01"`
}

// AuthResponse carries the session token and a dashboard view of the account
type AuthResponse struct {
	Token     string         `json:"token"`
	MachineID string         `json:"machineId"`
	Account   models.Summary `json:"account"`
}

func (h *AuthHandler) machineID(requested string) string {
	if requested != "" {
		return requested
	}
	return h.defaultMachineID
}

// startSession points the machine at the account and issues a token.
func (h *AuthHandler) startSession(w http.ResponseWriter, r *http.Request, acct models.Account, machineID string, status int) {
	if err := h.accounts.StartSession(r.Context(), machineID, acct.Identity); err != nil {
		sendDomainError(w, h.log, err)
		return
	}
	h.issue(w, acct, machineID, status)
}

func (h *AuthHandler) issue(w http.ResponseWriter, acct models.Account, machineID string, status int) {
	token, err := h.tokens.Issue(acct.Identity, machineID)
	if err != nil {
		h.log.Error().Err(err).Str("identity", acct.Identity).Msg("Token generation failed")
		services.SendErrorResponse(w, "An Internal Error Occurred", http.StatusInternalServerError, nil)
		return
	}

	services.SendJSON(w, status, AuthResponse{
		Token:     token,
		MachineID: machineID,
		Account:   acct.Summarize(h.recentCount),
	})
}

// Register handles account registration
// @Summary Register a new account
// @Description Create an account with the signup bonus and sign it in at the machine
// @Tags auth
// @Accept json
// @Produce json
// @Param request body CredentialsRequest true "Registration request"
// @Success 201 {object} AuthResponse
// @Failure 400 {object} services.ErrorResponse
// @Failure 409 {object} services.ErrorResponse "Account already exists"
// @Router /auth/register [post]
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req CredentialsRequest
	if err := h.validator.DecodeJSON(w, r, &req); err != nil {
		h.log.Debug().Err(err).Msg("Registration failed - invalid request")
		sendDomainError(w, h.log, err)
		return
	}
	if err := h.validator.ValidateStruct(&req); err != nil {
		services.SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	acct, err := h.accounts.CreateAccount(r.Context(), req.Email, req.Password)
	if err != nil {
		sendDomainError(w, h.log, err)
		return
	}

	h.startSession(w, r, acct, h.machineID(req.MachineID), http.StatusCreated)
}

// Login handles credential login
// @Summary Login
// @Tags auth
// @Accept json
// @Produce json
// @Param request body CredentialsRequest true "Login request"
// @Success 200 {object} AuthResponse
// @Failure 401 {object} services.ErrorResponse "Invalid credentials"
// @Router /auth/login [post]
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req CredentialsRequest
	if err := h.validator.DecodeJSON(w, r, &req); err != nil {
		sendDomainError(w, h.log, err)
		return
	}
	if err := h.validator.ValidateStruct(&req); err != nil {
		services.SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	acct, err := h.accounts.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		sendDomainError(w, h.log, err)
		return
	}

	h.startSession(w, r, acct, h.machineID(req.MachineID), http.StatusOK)
}

// QuickLogin signs in a demo profile by QR or fingerprint
// @Summary Quick login
// @Tags auth
// @Accept json
// @Produce json
// @Param request body QuickLoginRequest true "Quick login request"
// @Success 200 {object} AuthResponse
// @Router /auth/quick-login [post]
func (h *AuthHandler) QuickLogin(w http.ResponseWriter, r *http.Request) {
	var req QuickLoginRequest
	if err := h.validator.DecodeJSON(w, r, &req); err != nil {
		sendDomainError(w, h.log, err)
		return
	}
	if err := h.validator.ValidateStruct(&req); err != nil {
		services.SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	machineID := h.machineID(req.MachineID)
	acct, err := h.accounts.QuickLogin(r.Context(), services.QuickLoginMethod(req.Method), machineID)
	if err != nil {
		sendDomainError(w, h.log, err)
		return
	}

	h.issue(w, acct, machineID, http.StatusOK)
}

// Logout revokes the token and clears the machine's session
// @Summary Logout
// @Tags auth
// @Security BearerAuth
// @Produce json
// @Success 200 {object} map[string]string "Logout successful"
// @Router /auth/logout [post]
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	token, hasToken := middleware.TokenFromContext(r.Context())
	if !ok || !hasToken {
		services.SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	if err := h.sessions.BlacklistToken(r.Context(), token, h.tokens.Expiry()); err != nil {
		h.log.Error().Err(err).Msg("Failed to blacklist token")
	}

	if active, found, err := h.sessions.ActiveSession(r.Context(), claims.MachineID); err == nil && found && active == claims.Identity {
		if err := h.accounts.EndSession(r.Context(), claims.MachineID); err != nil {
			h.log.Error().Err(err).Str("machine_id", claims.MachineID).Msg("Failed to end session")
		}
	}

	services.SendJSON(w, http.StatusOK, map[string]string{"message": "Logout successful"})
}

// ActiveSessionResponse reports who is signed in at a machine. Balances and
// activities are only served to the account's own token.
type ActiveSessionResponse struct {
	MachineID string `json:"machineId"`
	Active    bool   `json:"active"`
	Identity  string `json:"identity,omitempty"`
}

// ActiveSession reports which identity is signed in at a machine
// @Summary Machine session
// @Tags sessions
// @Produce json
// @Param machineId path string true "Machine ID"
// @Success 200 {object} ActiveSessionResponse
// @Router /sessions/{machineId} [get]
func (h *AuthHandler) ActiveSession(w http.ResponseWriter, r *http.Request) {
	machineID := chi.URLParam(r, "machineId")

	acct, found, err := h.accounts.LoadSession(r.Context(), machineID)
	if err != nil && !errors.Is(err, models.ErrAccountNotFound) {
		sendDomainError(w, h.log, err)
		return
	}

	resp := ActiveSessionResponse{MachineID: machineID, Active: found}
	if found {
		resp.Identity = acct.Identity
	}
	services.SendJSON(w, http.StatusOK, resp)
}
