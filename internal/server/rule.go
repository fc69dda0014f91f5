package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	auditdomain "github.com/smallbiznis/territorial/internal/audit/domain"
	ruledomain "github.com/smallbiznis/territorial/internal/rule/domain"
)

type createRuleRequest struct {
	RuleType  string `json:"rule_type"`
	FieldName string `json:"field_name"`
	Operator  string `json:"operator"`
	Value     []any  `json:"value"`
	Priority  int    `json:"priority"`
	IsActive  *bool  `json:"is_active"`
}

type updateRuleRequest struct {
	RuleType  *string `json:"rule_type"`
	FieldName *string `json:"field_name"`
	Operator  *string `json:"operator"`
	Value     *[]any  `json:"value"`
	Priority  *int    `json:"priority"`
}

func (s *Server) CreateRule(c *gin.Context) {
	territoryID, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req createRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.ruleSvc.Create(c.Request.Context(), ruledomain.CreateRuleRequest{
		TerritoryID: territoryID,
		RuleType:    strings.TrimSpace(req.RuleType),
		FieldName:   strings.TrimSpace(req.FieldName),
		Operator:    strings.TrimSpace(req.Operator),
		Value:       req.Value,
		Priority:    req.Priority,
		IsActive:    req.IsActive,
	})
	if err != nil {
		AbortWithError(c, territoryScopedError(err))
		return
	}

	s.recordAudit(c, auditdomain.ActionRuleCreate, auditdomain.TargetRule, resp.ID.String(), ruleAuditMetadata(resp))

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListRules(c *gin.Context) {
	territoryID, ok := pathID(c, "id")
	if !ok {
		return
	}

	activeOnly, err := parseOptionalBool(c.Query("active"))
	if err != nil {
		AbortWithError(c, newValidationError("active", "invalid_active", "invalid active"))
		return
	}

	if _, err := s.territorySvc.Get(c.Request.Context(), territoryID); err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.ruleSvc.ListByTerritory(c.Request.Context(), territoryID, activeOnly != nil && *activeOnly)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if resp == nil {
		resp = []ruledomain.Rule{}
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetRuleByID(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	resp, err := s.ruleSvc.Get(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) UpdateRule(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req updateRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.ruleSvc.Update(c.Request.Context(), ruledomain.UpdateRuleRequest{
		ID:        id,
		RuleType:  trimmedPtr(req.RuleType),
		FieldName: trimmedPtr(req.FieldName),
		Operator:  trimmedPtr(req.Operator),
		Value:     req.Value,
		Priority:  req.Priority,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	s.recordAudit(c, auditdomain.ActionRuleUpdate, auditdomain.TargetRule, resp.ID.String(), ruleAuditMetadata(resp))

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ActivateRule(c *gin.Context) {
	s.setRuleActive(c, true)
}

func (s *Server) DeactivateRule(c *gin.Context) {
	s.setRuleActive(c, false)
}

func (s *Server) setRuleActive(c *gin.Context, active bool) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	resp, err := s.ruleSvc.SetActive(c.Request.Context(), id, active)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	action := auditdomain.ActionRuleDeactivate
	if active {
		action = auditdomain.ActionRuleActivate
	}
	s.recordAudit(c, action, auditdomain.TargetRule, resp.ID.String(), ruleAuditMetadata(resp))

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func ruleAuditMetadata(r ruledomain.Rule) map[string]any {
	return map[string]any{
		"territory_id": r.TerritoryID.String(),
		"field_name":   r.FieldName,
		"operator":     string(r.Operator),
		"priority":     r.Priority,
		"is_active":    r.IsActive,
	}
}

// territoryScopedError reports a missing path territory as 404 rather than
// a body validation failure.
func territoryScopedError(err error) error {
	if errors.Is(err, ruledomain.ErrTerritoryNotFound) {
		return ErrNotFound
	}
	return err
}
