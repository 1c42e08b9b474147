package handler

import (
	"errors"
	"log/slog"

	"github.com/gin-gonic/gin"

	"github.com/invoice-reconciliation/internal/api_gateway/service"
	"github.com/invoice-reconciliation/internal/domain/rule"
	"github.com/invoice-reconciliation/internal/domain/shared"
)

// RuleHandler handles HTTP requests for rule administration and HMS mappings
type RuleHandler struct {
	ruleService    service.RuleService
	mappingService service.MappingService
	logger         *slog.Logger
}

// NewRuleHandler creates a new rule handler
func NewRuleHandler(logger *slog.Logger, ruleService service.RuleService, mappingService service.MappingService) *RuleHandler {
	return &RuleHandler{
		ruleService:    ruleService,
		mappingService: mappingService,
		logger:         logger,
	}
}

// List returns the rules applied now to a vendor's entities
func (h *RuleHandler) List(c *gin.Context) {
	var query RuleQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		RespondBadRequest(c, "Invalid query parameters: "+err.Error())
		return
	}

	rules, err := h.ruleService.ListApplicable(c.Request.Context(), query.VendorCode, shared.EntityType(query.EntityType))
	if err != nil {
		h.logger.Error("Failed to list rules", "vendor_code", query.VendorCode, "error", err)
		RespondInternalError(c)
		return
	}

	response := make([]RuleResponse, 0, len(rules))
	for _, r := range rules {
		response = append(response, mapRuleToResponse(r))
	}
	RespondOK(c, response)
}

// Create stores a new rule definition
func (h *RuleHandler) Create(c *gin.Context) {
	var r rule.Rule
	if err := c.ShouldBindJSON(&r); err != nil {
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	if err := h.ruleService.CreateRule(c.Request.Context(), &r); err != nil {
		var invalid rule.ErrInvalidRule
		var duplicate rule.ErrDuplicateRule
		switch {
		case errors.As(err, &invalid):
			RespondBadRequest(c, "Invalid rule", invalid.Problems...)
		case errors.As(err, &duplicate):
			RespondConflict(c, err.Error())
		default:
			h.logger.Error("Failed to create rule", "rule_id", r.RuleID, "error", err)
			RespondInternalError(c)
		}
		return
	}

	RespondCreated(c, mapRuleToResponse(&r))
}

// Supersede replaces the rule in the path with a new version
func (h *RuleHandler) Supersede(c *gin.Context) {
	ruleID := c.Param("id")

	var r rule.Rule
	if err := c.ShouldBindJSON(&r); err != nil {
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	if err := h.ruleService.SupersedeRule(c.Request.Context(), ruleID, &r); err != nil {
		var (
			invalid   rule.ErrInvalidRule
			duplicate rule.ErrDuplicateRule
			notFound  rule.ErrRuleNotFound
			conflict  rule.ErrSupersedeConflict
		)
		switch {
		case errors.As(err, &invalid):
			RespondBadRequest(c, "Invalid rule", invalid.Problems...)
		case errors.As(err, &notFound):
			RespondNotFound(c, err.Error())
		case errors.As(err, &duplicate), errors.As(err, &conflict):
			RespondConflict(c, err.Error())
		default:
			h.logger.Error("Failed to supersede rule", "rule_id", ruleID, "error", err)
			RespondInternalError(c)
		}
		return
	}

	RespondCreated(c, mapRuleToResponse(&r))
}

// Validate parses a rule definition without storing it
func (h *RuleHandler) Validate(c *gin.Context) {
	var r rule.Rule
	if err := c.ShouldBindJSON(&r); err != nil {
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	problems := h.ruleService.ValidateRule(&r)
	RespondOK(c, RuleValidationResponse{Valid: len(problems) == 0, Problems: problems})
}

// UpsertMapping stores an HMS booking mapping
func (h *RuleHandler) UpsertMapping(c *gin.Context) {
	var req HMSMappingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	mapping, err := h.mappingService.UpsertMapping(c.Request.Context(), req.VendorCode, req.VendorBookingID, req.OMSBookingID)
	if err != nil {
		h.logger.Error("Failed to store HMS mapping", "vendor_code", req.VendorCode, "error", err)
		RespondInternalError(c)
		return
	}

	RespondOK(c, mapping)
}
