// Package auth serves the PIN login endpoint that exchanges an account id and
// PIN for a locally signed "Pin " token.
package auth

import (
	"context"
	"net/http"

	"github.com/keyruu/ruscalimat/handlers"
	"github.com/keyruu/ruscalimat/utils"
	"go.uber.org/zap"
)

// PinLoginService checks a PIN and issues a token for the account
type PinLoginService interface {
	PinLogin(ctx context.Context, accountID, pin string) (string, error)
}

// PinLoginRequest is the body of POST /api/v1/auth/pin
type PinLoginRequest struct {
	AccountID string `json:"account_id" validate:"required,max=255"`
	Pin       string `json:"pin" validate:"required,pin"`
}

// PinLoginResponse carries the issued token, scheme prefix included, ready to
// be sent back as the Authorization header.
type PinLoginResponse struct {
	Token string `json:"token"`
}

// Handler handles PIN authentication
type Handler struct {
	service PinLoginService
	logger  *zap.Logger
}

// NewHandler creates a new auth handler
func NewHandler(service PinLoginService, logger *zap.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
	}
}

// HandlePinLogin handles POST /api/v1/auth/pin
func (h *Handler) HandlePinLogin(w http.ResponseWriter, r *http.Request) {
	var req PinLoginRequest
	if !handlers.DecodeAndValidate(w, r, &req, h.logger) {
		return
	}

	issued, err := h.service.PinLogin(r.Context(), req.AccountID, req.Pin)
	if err != nil {
		handlers.HandleServiceError(w, err, h.logger)
		return
	}

	if err := utils.WriteJSON(w, http.StatusOK, PinLoginResponse{Token: issued}); err != nil {
		h.logger.Error("failed to write pin login response", zap.Error(err))
	}
}
