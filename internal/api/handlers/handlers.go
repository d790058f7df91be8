// Package handlers exposes the sync service over HTTP.
package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/dvloznov/ledger-sync/internal/api/middleware"
	"github.com/dvloznov/ledger-sync/internal/jobs"
	"github.com/dvloznov/ledger-sync/internal/transform"
)

// SyncsHandler handles sync job endpoints.
type SyncsHandler struct {
	queue *jobs.Queue
	log   zerolog.Logger
}

// NewSyncsHandler creates a new syncs handler.
func NewSyncsHandler(queue *jobs.Queue, log zerolog.Logger) *SyncsHandler {
	return &SyncsHandler{queue: queue, log: log}
}

// SubmitSync handles POST /api/syncs
func (h *SyncsHandler) SubmitSync(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID         string   `json:"user_id"`
		Provider       string   `json:"provider"`
		Type           string   `json:"type"`
		Priority       string   `json:"priority"`
		AccountIDs     []string `json:"account_ids"`
		CredentialsRef string   `json:"credentials_ref"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.UserID == "" {
		middleware.WriteError(w, http.StatusBadRequest, "user_id is required")
		return
	}
	if req.CredentialsRef == "" {
		middleware.WriteError(w, http.StatusBadRequest, "credentials_ref is required")
		return
	}

	priority, ok := parsePriority(req.Priority)
	if !ok {
		middleware.WriteError(w, http.StatusBadRequest, "Unknown priority: "+req.Priority)
		return
	}

	job := jobs.SyncJob{
		UserID:         req.UserID,
		Provider:       req.Provider,
		Type:           jobs.SyncType(req.Type),
		Priority:       priority,
		AccountIDs:     req.AccountIDs,
		CredentialsRef: req.CredentialsRef,
	}

	id, err := h.queue.Submit(job)
	if err != nil {
		h.log.Error().Err(err).Str("user_id", req.UserID).Msg("Failed to submit sync job")
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	submitted, err := h.queue.Status(id)
	if err != nil {
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to read submitted job")
		return
	}

	middleware.WriteJSON(w, http.StatusAccepted, submitted)
}

// GetSync handles GET /api/syncs/{id}
func (h *SyncsHandler) GetSync(w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("id")

	job, err := h.queue.Status(jobID)
	if err != nil {
		middleware.WriteError(w, http.StatusNotFound, "Sync job not found")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, job)
}

// GetSyncProgress handles GET /api/syncs/{id}/progress
func (h *SyncsHandler) GetSyncProgress(w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("id")

	progress, err := h.queue.Progress(jobID)
	if err != nil {
		middleware.WriteError(w, http.StatusNotFound, "Sync job not found")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, progress)
}

// CancelSync handles DELETE /api/syncs/{id}
func (h *SyncsHandler) CancelSync(w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("id")

	if !h.queue.Cancel(jobID) {
		// Either unknown, already running, or already finished.
		job, err := h.queue.Status(jobID)
		if err != nil {
			middleware.WriteError(w, http.StatusNotFound, "Sync job not found")
			return
		}
		middleware.WriteError(w, http.StatusConflict,
			"Cannot cancel job in status "+string(job.Status))
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]string{
		"id":     jobID,
		"status": string(jobs.StatusCancelled),
	})
}

// GetQueue handles GET /api/queue
func (h *SyncsHandler) GetQueue(w http.ResponseWriter, r *http.Request) {
	pending := h.queue.Snapshot()
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"active":  h.queue.Active(),
		"pending": pending,
		"count":   len(pending),
	})
}

func parsePriority(s string) (jobs.Priority, bool) {
	switch strings.ToLower(s) {
	case "", "normal":
		return jobs.PriorityNormal, true
	case "low":
		return jobs.PriorityLow, true
	case "high":
		return jobs.PriorityHigh, true
	case "urgent":
		return jobs.PriorityUrgent, true
	}
	return 0, false
}

// RulesHandler handles categorization rule endpoints.
type RulesHandler struct {
	rules     *transform.RuleSet
	suggester *transform.RuleSuggester
	log       zerolog.Logger
}

// NewRulesHandler creates a new rules handler. suggester may be nil, which
// disables the suggest endpoint.
func NewRulesHandler(rules *transform.RuleSet, suggester *transform.RuleSuggester, log zerolog.Logger) *RulesHandler {
	return &RulesHandler{rules: rules, suggester: suggester, log: log}
}

// ListRules handles GET /api/rules
func (h *RulesHandler) ListRules(w http.ResponseWriter, r *http.Request) {
	list := h.rules.List()
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"rules": list,
		"count": len(list),
	})
}

// CreateRule handles POST /api/rules
func (h *RulesHandler) CreateRule(w http.ResponseWriter, r *http.Request) {
	var rule transform.CategorizationRule
	if err := json.NewDecoder(r.Body).Decode(&rule); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if rule.Category == "" {
		middleware.WriteError(w, http.StatusBadRequest, "category is required")
		return
	}
	if len(rule.Conditions) == 0 {
		middleware.WriteError(w, http.StatusBadRequest, "at least one condition is required")
		return
	}

	created := h.rules.Add(rule)
	h.log.Info().Str("rule_id", created.ID).Str("category", created.Category).Msg("Categorization rule created")
	middleware.WriteJSON(w, http.StatusCreated, created)
}

// SetRuleEnabled handles PUT /api/rules/{id}/enabled
func (h *RulesHandler) SetRuleEnabled(w http.ResponseWriter, r *http.Request) {
	ruleID := r.PathValue("id")

	var req struct {
		Enabled bool `json:"enabled"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if !h.rules.SetEnabled(ruleID, req.Enabled) {
		middleware.WriteError(w, http.StatusNotFound, "Rule not found")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"id":      ruleID,
		"enabled": req.Enabled,
	})
}

// SuggestRules handles POST /api/rules/suggest
func (h *RulesHandler) SuggestRules(w http.ResponseWriter, r *http.Request) {
	if h.suggester == nil {
		middleware.WriteError(w, http.StatusServiceUnavailable, "Rule suggestion is not configured")
		return
	}

	var req struct {
		Descriptions []string `json:"descriptions"`
		Categories   []string `json:"categories"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if len(req.Descriptions) == 0 {
		middleware.WriteError(w, http.StatusBadRequest, "descriptions are required")
		return
	}

	suggestions, err := h.suggester.Suggest(r.Context(), req.Descriptions, req.Categories)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to suggest rules")
		middleware.WriteError(w, http.StatusBadGateway, "Failed to suggest rules")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"suggestions": suggestions,
		"count":       len(suggestions),
	})
}
