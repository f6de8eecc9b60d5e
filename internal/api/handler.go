package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/dancrook1/w2f-config/internal/configurator"
	"github.com/dancrook1/w2f-config/internal/domain"
	"github.com/dancrook1/w2f-config/internal/repository"
	"github.com/dancrook1/w2f-config/internal/rules"
)

// Handler holds dependencies for API handlers.
type Handler struct {
	repo    domain.Repository
	cache   domain.Cache
	svc     *configurator.Service
	engine  *rules.Engine
	version string
}

// NewHandler creates a new API handler.
func NewHandler(repo domain.Repository, cache domain.Cache, svc *configurator.Service, engine *rules.Engine, version string) *Handler {
	return &Handler{
		repo:    repo,
		cache:   cache,
		svc:     svc,
		engine:  engine,
		version: version,
	}
}

// ConfigurationRequest is the common request body carrying a candidate
// configuration: slot id to product id, plus per-slot quantities for
// slots that allow them.
type ConfigurationRequest struct {
	Configuration map[string]int64 `json:"configuration"`
	Quantities    map[string]int   `json:"quantities,omitempty"`
}

// PriceRequest is the request body for POST /configurators/{id}/price.
type PriceRequest struct {
	ConfigurationRequest
	IncludeTax bool `json:"includeTax"`
}

// OptionsRequest is the request body for the batched option filter.
type OptionsRequest struct {
	Configuration map[string]int64 `json:"configuration"`
	SlotIDs       []string         `json:"slotIds,omitempty"`
}

// SubmitResponse is the response for POST /configurators/{id}/submit.
type SubmitResponse struct {
	Accepted bool                      `json:"accepted"`
	Check    *configurator.CheckResult `json:"check"`
	Order    *domain.Order             `json:"order,omitempty"`
	Metadata struct {
		TraceID string `json:"traceId"`
		TotalMs int64  `json:"totalMs"`
		Version string `json:"version"`
	} `json:"metadata"`
}

// GetConfigurator handles GET /configurators/{id}.
func (h *Handler) GetConfigurator(w http.ResponseWriter, r *http.Request) {
	id, ok := h.configuratorID(w, r)
	if !ok {
		return
	}

	conf, err := h.svc.Definition(r.Context(), id)
	if err != nil {
		h.writeError(w, "failed to load configurator", err)
		return
	}

	writeJSON(w, http.StatusOK, conf)
}

// CheckCompatibility handles POST /configurators/{id}/compatibility.
func (h *Handler) CheckCompatibility(w http.ResponseWriter, r *http.Request) {
	id, ok := h.configuratorID(w, r)
	if !ok {
		return
	}

	var req ConfigurationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	result, err := h.svc.CheckCompatibility(r.Context(), id, req.Configuration, req.Quantities)
	if err != nil {
		h.writeError(w, "compatibility check failed", err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// CalculatePrice handles POST /configurators/{id}/price.
func (h *Handler) CalculatePrice(w http.ResponseWriter, r *http.Request) {
	id, ok := h.configuratorID(w, r)
	if !ok {
		return
	}

	var req PriceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	result, err := h.svc.CalculatePrice(r.Context(), id, req.Configuration, req.Quantities, req.IncludeTax)
	if err != nil {
		h.writeError(w, "price calculation failed", err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// FilterSlotOptions handles POST /configurators/{id}/slots/{slotID}/options.
func (h *Handler) FilterSlotOptions(w http.ResponseWriter, r *http.Request) {
	id, ok := h.configuratorID(w, r)
	if !ok {
		return
	}
	slotID := chi.URLParam(r, "slotID")
	if slotID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "slot id is required",
		})
		return
	}

	var req ConfigurationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	result, err := h.svc.FilterOptions(r.Context(), id, slotID, req.Configuration)
	if err != nil {
		h.writeError(w, "option filtering failed", err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// FilterOptions handles POST /configurators/{id}/options. With no
// slotIds in the body every slot is filtered.
func (h *Handler) FilterOptions(w http.ResponseWriter, r *http.Request) {
	id, ok := h.configuratorID(w, r)
	if !ok {
		return
	}

	var req OptionsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	result, err := h.svc.FilterAllOptions(r.Context(), id, req.Configuration, req.SlotIDs)
	if err != nil {
		h.writeError(w, "option filtering failed", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"slots": result,
		"count": len(result),
	})
}

// Submit handles POST /configurators/{id}/submit.
func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()

	id, ok := h.configuratorID(w, r)
	if !ok {
		return
	}

	var req ConfigurationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}
	if len(req.Configuration) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "configuration is required",
		})
		return
	}

	result, err := h.svc.Submit(ctx, id, req.Configuration, req.Quantities)
	if err != nil {
		h.writeError(w, "submit failed", err)
		return
	}

	resp := SubmitResponse{
		Accepted: result.Accepted,
		Check:    result.Check,
		Order:    result.Order,
	}
	resp.Metadata.TraceID = GetTraceID(ctx)
	resp.Metadata.TotalMs = time.Since(start).Milliseconds()
	resp.Metadata.Version = h.version

	status := http.StatusOK
	if result.Accepted {
		status = http.StatusAccepted
	}
	writeJSON(w, status, resp)
}

// ShareConfiguration handles POST /configurators/{id}/share and returns
// an opaque token encoding the submitted configuration.
func (h *Handler) ShareConfiguration(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.configuratorID(w, r); !ok {
		return
	}

	var req ConfigurationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}
	if len(req.Configuration) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "configuration is required",
		})
		return
	}

	token, err := configurator.EncodeShared(req.Configuration)
	if err != nil {
		h.writeError(w, "failed to encode configuration", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"token": token,
	})
}

// ResolveShared handles POST /configurators/{id}/share/decode. Entries
// that no longer resolve against the live catalog are dropped rather
// than failing the whole token.
func (h *Handler) ResolveShared(w http.ResponseWriter, r *http.Request) {
	id, ok := h.configuratorID(w, r)
	if !ok {
		return
	}

	var req struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}
	if req.Token == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "token is required",
		})
		return
	}

	cfg, err := h.svc.DecodeShared(r.Context(), id, req.Token)
	if err != nil {
		h.writeError(w, "failed to decode share token", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"configuration": cfg,
	})
}

// GetOrder handles GET /orders/{id}.
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")
	if orderID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "order id is required",
		})
		return
	}

	order, err := h.repo.GetOrder(r.Context(), orderID)
	if err != nil {
		h.writeError(w, "failed to get order", err)
		return
	}

	writeJSON(w, http.StatusOK, order)
}

// Health returns server health status.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := "healthy"

	if h.repo != nil {
		if err := h.repo.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}
	if h.cache != nil {
		if err := h.cache.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":  status,
		"version": h.version,
	})
}

// Ready returns whether the server is ready to accept traffic.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"ready": "true",
	})
}

// ListRules returns all rules currently loaded in the engine.
// Rules are loaded from the database at startup and can be reloaded via
// POST /rules/reload.
func (h *Handler) ListRules(w http.ResponseWriter, r *http.Request) {
	loadedRules := h.engine.LoadedRules()

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"rules":  loadedRules,
		"count":  len(loadedRules),
		"source": "database",
	})
}

// GetRule retrieves a rule by ID from the store.
func (h *Handler) GetRule(w http.ResponseWriter, r *http.Request) {
	ruleID := chi.URLParam(r, "id")
	if ruleID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "rule id is required",
		})
		return
	}

	rule, err := h.repo.GetRule(r.Context(), ruleID)
	if err != nil {
		h.writeError(w, "failed to get rule", err)
		return
	}

	writeJSON(w, http.StatusOK, rule)
}

// RuleRequest is the wire shape of a rule: conditions arrive as the
// flat string map the admin tooling produces and are decoded into the
// typed variant before validation.
type RuleRequest struct {
	ID         string            `json:"id"`
	Name       string            `json:"name"`
	Type       string            `json:"type"`
	Action     string            `json:"action"`
	Message    string            `json:"message,omitempty"`
	Position   int               `json:"position"`
	Active     bool              `json:"isActive"`
	Conditions map[string]string `json:"conditions"`
}

func (req *RuleRequest) toRule() (*domain.Rule, error) {
	conditions, err := domain.DecodeConditions(domain.RuleType(req.Type), req.Conditions)
	if err != nil {
		return nil, err
	}
	return &domain.Rule{
		ID:         req.ID,
		Name:       req.Name,
		Type:       domain.RuleType(req.Type),
		Action:     domain.RuleAction(req.Action),
		Active:     req.Active,
		Message:    req.Message,
		Position:   req.Position,
		Conditions: conditions,
	}, nil
}

// CreateRule creates a new rule and saves it to the database.
// After saving, call POST /rules/reload to hot-reload into the engine.
func (h *Handler) CreateRule(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req RuleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	if req.ID == "" || req.Type == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "id and type are required",
		})
		return
	}

	rule, err := req.toRule()
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid conditions: " + err.Error(),
		})
		return
	}
	if err := h.engine.ValidateRule(rule); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid rule: " + err.Error(),
		})
		return
	}

	if err := h.repo.SaveRule(ctx, rule); err != nil {
		h.writeError(w, "failed to save rule", err)
		return
	}

	slog.Info("rule created", "id", rule.ID, "type", rule.Type)
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"rule":    rule,
		"message": "Rule created. Call POST /rules/reload to apply changes.",
	})
}

// DeleteRule deletes a rule and hot-reloads the engine.
func (h *Handler) DeleteRule(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ruleID := chi.URLParam(r, "id")

	if ruleID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "rule id is required",
		})
		return
	}

	if err := h.repo.DeleteRule(ctx, ruleID); err != nil {
		h.writeError(w, "failed to delete rule", err)
		return
	}

	loaded, err := h.svc.ReloadRules(ctx)
	if err != nil {
		slog.Error("failed to reload rules after delete", "error", err)
	}

	slog.Info("rule deleted", "id", ruleID, "loaded", loaded)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Rule deleted and engine reloaded.",
		"loaded":  loaded,
	})
}

// ReloadRules reloads all active rules from the database into the
// engine. This enables hot-reloading without server restart.
func (h *Handler) ReloadRules(w http.ResponseWriter, r *http.Request) {
	loaded, err := h.svc.ReloadRules(r.Context())
	if err != nil {
		h.writeError(w, "failed to reload rules", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "rules reloaded successfully",
		"count":   loaded,
	})
}

// PreviewRuleRequest is the request body for POST /rules/preview.
type PreviewRuleRequest struct {
	ConfiguratorID int64            `json:"configuratorId"`
	Configuration  map[string]int64 `json:"configuration"`
	Rule           RuleRequest      `json:"rule"`
}

// PreviewRule evaluates an unsaved rule against a candidate
// configuration without touching the loaded rule set.
func (h *Handler) PreviewRule(w http.ResponseWriter, r *http.Request) {
	var req PreviewRuleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}
	if req.Rule.Type == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "rule.type is required",
		})
		return
	}

	rule, err := req.Rule.toRule()
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid conditions: " + err.Error(),
		})
		return
	}

	result, err := h.svc.PreviewRule(r.Context(), req.ConfiguratorID, req.Configuration, rule)
	if err != nil {
		h.writeError(w, "rule preview failed", err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// WarrantyRequest is the request body for PUT /warranty.
type WarrantyRequest struct {
	Brackets []domain.PriceBracket `json:"brackets"`
	Plans    *domain.WarrantyPlans `json:"plans,omitempty"`
}

// GetWarranty returns the stored warranty price brackets and plans.
func (h *Handler) GetWarranty(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	brackets, err := h.repo.ListBrackets(ctx)
	if err != nil {
		h.writeError(w, "failed to list warranty brackets", err)
		return
	}
	plans, err := h.repo.GetWarrantyPlans(ctx)
	if err != nil {
		h.writeError(w, "failed to get warranty plans", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"brackets": brackets,
		"plans":    plans,
	})
}

// UpdateWarranty replaces the warranty price brackets and plans, then
// reloads the pricing tables.
func (h *Handler) UpdateWarranty(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req WarrantyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	if err := h.repo.SaveBrackets(ctx, req.Brackets); err != nil {
		h.writeError(w, "failed to save warranty brackets", err)
		return
	}
	if req.Plans != nil {
		if err := h.repo.SaveWarrantyPlans(ctx, req.Plans); err != nil {
			h.writeError(w, "failed to save warranty plans", err)
			return
		}
	}

	if err := h.svc.ReloadWarranty(ctx); err != nil {
		h.writeError(w, "failed to reload warranty tables", err)
		return
	}

	slog.Info("warranty tables updated", "brackets", len(req.Brackets))
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message":  "warranty tables updated",
		"brackets": len(req.Brackets),
	})
}

// ReloadWarranty reloads warranty brackets and plans from the database.
func (h *Handler) ReloadWarranty(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.ReloadWarranty(r.Context()); err != nil {
		h.writeError(w, "failed to reload warranty tables", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"message": "warranty tables reloaded successfully",
	})
}

// configuratorID parses the {id} route parameter, writing a 400 on a
// missing or non-numeric value.
func (h *Handler) configuratorID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "configurator id must be a positive integer",
		})
		return 0, false
	}
	return id, true
}

// writeError maps service errors onto HTTP statuses. Validation
// failures and bad input map to 400, missing records to 404, anything
// else is logged and returned as 500.
func (h *Handler) writeError(w http.ResponseWriter, msg string, err error) {
	switch {
	case errors.Is(err, configurator.ErrValidation) || errors.Is(err, repository.ErrInvalidInput):
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": err.Error(),
		})
	case errors.Is(err, repository.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": err.Error(),
		})
	default:
		slog.Error(msg, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": msg,
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
