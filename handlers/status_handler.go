package handlers

import (
	"net/http"

	"github.com/keyruu/ruscalimat/middleware"
	"github.com/keyruu/ruscalimat/utils"
)

// Identity kinds reported by the status endpoint
const (
	IdentityKindAnonymous = "anonymous"
	IdentityKindUser      = "user"
	IdentityKindPin       = "pin"
)

// StatusResponse is the response body for GET /api/v1/status
type StatusResponse struct {
	Version       string `json:"version"`
	Environment   string `json:"environment"`
	Authenticated bool   `json:"authenticated"`
	Kind          string `json:"kind"`
	Subject       string `json:"subject,omitempty"`
	Admin         bool   `json:"admin"`
}

// StatusHandler reports service information and the caller's identity
type StatusHandler struct {
	version     string
	environment string
}

// NewStatusHandler creates a new StatusHandler
func NewStatusHandler(version, environment string) *StatusHandler {
	return &StatusHandler{version: version, environment: environment}
}

// HandleStatus handles GET /api/v1/status. It runs behind the optional
// authentication middleware, so anonymous callers are answered too.
func (h *StatusHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	response := StatusResponse{
		Version:     h.version,
		Environment: h.environment,
		Kind:        IdentityKindAnonymous,
	}

	if id, ok := middleware.GetIdentityFromContext(r.Context()); ok {
		response.Authenticated = true
		response.Subject = id.Subject()
		response.Admin = id.IsAdmin()
		response.Kind = IdentityKindUser
		if id.Pin != nil {
			response.Kind = IdentityKindPin
		}
	}

	_ = utils.WriteOK(w, response)
}
