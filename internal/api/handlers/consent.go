package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/dvloznov/ledger-sync/internal/api/middleware"
	"github.com/dvloznov/ledger-sync/internal/consent"
)

// ConsentHandler manages grants on the in-process consent gate. Deployments
// with an external consent service do not mount these routes.
type ConsentHandler struct {
	gate *consent.StaticGate
	log  zerolog.Logger
}

// NewConsentHandler creates a new consent handler.
func NewConsentHandler(gate *consent.StaticGate, log zerolog.Logger) *ConsentHandler {
	return &ConsentHandler{gate: gate, log: log}
}

// GrantConsent handles POST /api/consents
func (h *ConsentHandler) GrantConsent(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID string   `json:"user_id"`
		Scopes []string `json:"scopes"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.UserID == "" {
		middleware.WriteError(w, http.StatusBadRequest, "user_id is required")
		return
	}

	scopes := make([]consent.Scope, 0, len(req.Scopes))
	for _, s := range req.Scopes {
		scopes = append(scopes, consent.Scope(s))
	}
	if len(scopes) == 0 {
		scopes = []consent.Scope{consent.ScopeReadAccounts, consent.ScopeReadTransactions}
	}

	h.gate.Grant(req.UserID, scopes...)
	h.log.Info().Str("user_id", req.UserID).Int("scopes", len(scopes)).Msg("Consent granted")

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"user_id": req.UserID,
		"scopes":  scopes,
	})
}

// RevokeConsent handles DELETE /api/consents/{user_id}
func (h *ConsentHandler) RevokeConsent(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("user_id")

	h.gate.Revoke(userID)
	h.log.Info().Str("user_id", userID).Msg("Consent revoked")

	middleware.WriteJSON(w, http.StatusOK, map[string]string{
		"user_id": userID,
		"status":  "revoked",
	})
}
