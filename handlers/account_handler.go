package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/keyruu/ruscalimat/middleware"
	"github.com/keyruu/ruscalimat/models"
	"github.com/keyruu/ruscalimat/token"
	"github.com/keyruu/ruscalimat/utils"
	"go.uber.org/zap"
)

// AccountService is the business logic behind the account endpoints
type AccountService interface {
	Signup(ctx context.Context, claims *token.UserClaims, pin string) (*models.Account, error)
	MyAccount(ctx context.Context, subject string) (*models.Account, error)
	SetPin(ctx context.Context, subject, pin string) error
	List(ctx context.Context) ([]*models.Account, error)
	ListDeleted(ctx context.Context) ([]*models.Account, error)
	Delete(ctx context.Context, id string) error
}

// PinRequest is the body of POST /accounts/signup and PUT /accounts/me/pin
type PinRequest struct {
	Pin string `json:"pin" validate:"required,pin"`
}

// AccountHandler handles account HTTP requests
type AccountHandler struct {
	service AccountService
	logger  *zap.Logger
}

// NewAccountHandler creates a new AccountHandler
func NewAccountHandler(service AccountService, logger *zap.Logger) *AccountHandler {
	return &AccountHandler{
		service: service,
		logger:  logger,
	}
}

// HandleSignup handles POST /api/v1/accounts/signup
func (h *AccountHandler) HandleSignup(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetUserClaimsFromContext(r.Context())
	if claims == nil {
		_ = utils.WriteUnauthorized(w, "Authentication required")
		return
	}

	var req PinRequest
	if !DecodeAndValidate(w, r, &req, h.logger) {
		return
	}

	account, err := h.service.Signup(r.Context(), claims, req.Pin)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	_ = utils.WriteCreated(w, account)
}

// HandleMe handles GET /api/v1/accounts/me
func (h *AccountHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	id, ok := middleware.GetIdentityFromContext(r.Context())
	if !ok {
		_ = utils.WriteUnauthorized(w, "Authentication required")
		return
	}

	account, err := h.service.MyAccount(r.Context(), id.Subject())
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	_ = utils.WriteOK(w, account)
}

// HandleSetPin handles PUT /api/v1/accounts/me/pin
func (h *AccountHandler) HandleSetPin(w http.ResponseWriter, r *http.Request) {
	id, ok := middleware.GetIdentityFromContext(r.Context())
	if !ok {
		_ = utils.WriteUnauthorized(w, "Authentication required")
		return
	}

	var req PinRequest
	if !DecodeAndValidate(w, r, &req, h.logger) {
		return
	}

	if err := h.service.SetPin(r.Context(), id.Subject(), req.Pin); err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	utils.WriteNoContent(w)
}

// HandleList handles GET /api/v1/accounts
func (h *AccountHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.service.List(r.Context())
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	_ = utils.WriteOK(w, accounts)
}

// HandleListDeleted handles GET /api/v1/accounts/deleted
func (h *AccountHandler) HandleListDeleted(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.service.ListDeleted(r.Context())
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	_ = utils.WriteOK(w, accounts)
}

// HandleDelete handles DELETE /api/v1/accounts/{id}
func (h *AccountHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		_ = utils.WriteBadRequest(w, "Missing account id", nil)
		return
	}

	if err := h.service.Delete(r.Context(), id); err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	admin, _ := middleware.GetIdentityFromContext(r.Context())
	h.logger.Info("account deleted by admin",
		zap.String("id", id),
		zap.String("admin", admin.Subject()),
		zap.String("request_id", middleware.GetRequestIDFromContext(r.Context())))
	utils.WriteNoContent(w)
}
