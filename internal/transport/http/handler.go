// Package httptransport carries the connector's inbound surface: the
// authorization-completion callback, health, and metrics. The full consent
// API is not exposed over HTTP; callers embed the consent service directly.
package httptransport

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"obconnect/internal/consent"
	id "obconnect/pkg/domain"
	dErrors "obconnect/pkg/domain-errors"
)

// ConsentService is the slice of the consent lifecycle the callback needs.
type ConsentService interface {
	CompleteAuthorization(ctx context.Context, consentID id.ConsentID, outcome consent.AuthorizationOutcome) (*consent.Consent, error)
}

// Handler handles the post-authorization redirect callback.
type Handler struct {
	consents ConsentService
	logger   *slog.Logger
}

func NewHandler(consents ConsentService, logger *slog.Logger) *Handler {
	return &Handler{consents: consents, logger: logger}
}

type authorizationResultRequest struct {
	Outcome string `json:"outcome"`
}

type authorizationResultResponse struct {
	ConsentID string `json:"consent_id"`
	State     string `json:"state"`
}

// handleAuthorizationResult converts the external authorization-completion
// signal into the pending_authorization → authorized|rejected transition.
func (h *Handler) handleAuthorizationResult(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	consentID, err := id.ParseConsentID(chi.URLParam(r, "consentID"))
	if err != nil {
		writeError(w, err)
		return
	}

	var req authorizationResultRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, dErrors.New(dErrors.CodeInvalidInput, "malformed request body"))
		return
	}

	updated, err := h.consents.CompleteAuthorization(ctx, consentID, consent.AuthorizationOutcome(req.Outcome))
	if err != nil {
		h.logger.WarnContext(ctx, "authorization completion failed",
			"consent_id", consentID,
			"outcome", req.Outcome,
			"error", err,
		)
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(authorizationResultResponse{
		ConsentID: updated.ID.String(),
		State:     string(updated.State),
	})
}

// writeError translates domain error codes into HTTP statuses with a JSON
// envelope.
func writeError(w http.ResponseWriter, err error) {
	code := dErrors.CodeOf(err)
	status := http.StatusInternalServerError
	switch code {
	case dErrors.CodeNotFound:
		status = http.StatusNotFound
	case dErrors.CodeInvalidInput:
		status = http.StatusBadRequest
	case dErrors.CodeInvalidState, dErrors.CodeConflict:
		status = http.StatusConflict
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": string(code)})
}
