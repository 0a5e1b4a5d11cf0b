package handlers

import (
	"errors"
	"net/http"

	"github.com/stendavidson/jira-ticket-editor/internal/apperrors"
	"github.com/stendavidson/jira-ticket-editor/internal/handlers/authctx"
	"github.com/stendavidson/jira-ticket-editor/internal/handlers/render"
	"github.com/stendavidson/jira-ticket-editor/internal/logger"
)

type elevationService interface {
	CheckElevated() (bool, error)
	Deauthorize(requestingAccountID string) error
}

// ElevationHandler exposes the elevated-credential probe and teardown.
type ElevationHandler struct {
	auth   elevationService
	logger logger.Logger
}

func NewElevation(auth elevationService, log logger.Logger) *ElevationHandler {
	return &ElevationHandler{auth: auth, logger: log}
}

// checkElevated is a pure local probe: it reads the store and never contacts
// Atlassian, so the UI can poll it cheaply. Deliberately unauthenticated,
// and answers with a bare status, no body.
func (h *ElevationHandler) checkElevated(w http.ResponseWriter, r *http.Request) {
	exists, err := h.auth.CheckElevated()
	if err != nil {
		h.logger.Error("failed to check elevated credential", "error", err)
		render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	if !exists {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	render.NoContent(w)
}

// deauthorize tears the elevated credential down. Only its owner may do so;
// runs behind AuthGateway so the requesting account is always resolved.
func (h *ElevationHandler) deauthorize(w http.ResponseWriter, r *http.Request) {
	tokens, ok := authctx.FromContext(r.Context())
	if !ok {
		render.ServiceError(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	err := h.auth.Deauthorize(tokens.RequestingAccountID)
	switch {
	case err == nil:
		render.NoContent(w)
	case errors.Is(err, apperrors.ErrNotElevated), errors.Is(err, apperrors.ErrOwnerMismatch):
		render.ServiceError(w, "Unauthorized", http.StatusUnauthorized)
	default:
		h.logger.Error("failed to deauthorize elevated credential", "error", err)
		render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
	}
}
