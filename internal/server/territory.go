package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	auditdomain "github.com/smallbiznis/territorial/internal/audit/domain"
	territorydomain "github.com/smallbiznis/territorial/internal/territory/domain"
)

type createTerritoryRequest struct {
	Name        string          `json:"name"`
	Code        string          `json:"code"`
	Type        string          `json:"type"`
	Status      string          `json:"status"`
	ParentID    string          `json:"parent_id"`
	Boundaries  json.RawMessage `json:"boundaries"`
	OwnerID     string          `json:"owner_id"`
	Description string          `json:"description"`
}

type updateTerritoryRequest struct {
	Name        *string         `json:"name"`
	Code        *string         `json:"code"`
	Type        *string         `json:"type"`
	Status      *string         `json:"status"`
	ParentID    *string         `json:"parent_id"`
	ClearParent bool            `json:"clear_parent"`
	Boundaries  json.RawMessage `json:"boundaries"`
	OwnerID     *string         `json:"owner_id"`
	Description *string         `json:"description"`
}

func (s *Server) CreateTerritory(c *gin.Context) {
	var req createTerritoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	parentID, err := parseOptionalSnowflakeID(req.ParentID)
	if err != nil {
		AbortWithError(c, territorydomain.ErrInvalidParent)
		return
	}

	resp, err := s.territorySvc.Create(c.Request.Context(), territorydomain.CreateTerritoryRequest{
		Name:        strings.TrimSpace(req.Name),
		Code:        strings.TrimSpace(req.Code),
		Type:        strings.TrimSpace(req.Type),
		Status:      strings.TrimSpace(req.Status),
		ParentID:    parentID,
		Boundaries:  req.Boundaries,
		OwnerID:     strings.TrimSpace(req.OwnerID),
		Description: req.Description,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	s.recordAudit(c, auditdomain.ActionTerritoryCreate, auditdomain.TargetTerritory, resp.ID.String(), territoryAuditMetadata(resp))

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListTerritories(c *gin.Context) {
	var query struct {
		Status   string `form:"status"`
		Type     string `form:"type"`
		ParentID string `form:"parent_id"`
		Roots    string `form:"roots"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	parentID, err := parseOptionalSnowflakeID(query.ParentID)
	if err != nil {
		AbortWithError(c, newValidationError("parent_id", "invalid_parent_id", "invalid parent_id"))
		return
	}
	roots, err := parseOptionalBool(query.Roots)
	if err != nil {
		AbortWithError(c, newValidationError("roots", "invalid_roots", "invalid roots"))
		return
	}

	resp, err := s.territorySvc.List(c.Request.Context(), territorydomain.ListTerritoryRequest{
		Status:    strings.TrimSpace(query.Status),
		Type:      strings.TrimSpace(query.Type),
		ParentID:  parentID,
		RootsOnly: roots != nil && *roots,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetTerritoryByID(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	resp, err := s.territorySvc.Get(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) UpdateTerritory(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req updateTerritoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	parsedParent, err := parseOptionalSnowflakeID(derefString(req.ParentID))
	if err != nil {
		AbortWithError(c, territorydomain.ErrInvalidParent)
		return
	}

	resp, err := s.territorySvc.Update(c.Request.Context(), territorydomain.UpdateTerritoryRequest{
		ID:          id,
		Name:        trimmedPtr(req.Name),
		Code:        trimmedPtr(req.Code),
		Type:        trimmedPtr(req.Type),
		Status:      trimmedPtr(req.Status),
		ParentID:    parsedParent,
		ClearParent: req.ClearParent,
		Boundaries:  req.Boundaries,
		OwnerID:     trimmedPtr(req.OwnerID),
		Description: req.Description,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	s.recordAudit(c, auditdomain.ActionTerritoryUpdate, auditdomain.TargetTerritory, resp.ID.String(), territoryAuditMetadata(resp))

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) DeleteTerritory(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	if err := s.territorySvc.Delete(c.Request.Context(), id); err != nil {
		AbortWithError(c, err)
		return
	}

	s.recordAudit(c, auditdomain.ActionTerritoryDelete, auditdomain.TargetTerritory, id.String(), nil)

	c.Status(http.StatusNoContent)
}

func (s *Server) RestoreTerritory(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	resp, err := s.territorySvc.Restore(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	s.recordAudit(c, auditdomain.ActionTerritoryRestore, auditdomain.TargetTerritory, resp.ID.String(), territoryAuditMetadata(resp))

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListTerritoryChildren(c *gin.Context) {
	s.listRelatives(c, s.territorySvc.Children)
}

func (s *Server) ListTerritoryDescendants(c *gin.Context) {
	s.listRelatives(c, s.territorySvc.Descendants)
}

func (s *Server) ListTerritoryAncestors(c *gin.Context) {
	s.listRelatives(c, s.territorySvc.Ancestors)
}

func (s *Server) listRelatives(c *gin.Context, fetch func(ctx context.Context, id snowflake.ID) ([]territorydomain.Territory, error)) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	resp, err := fetch(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if resp == nil {
		resp = []territorydomain.Territory{}
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func territoryAuditMetadata(t territorydomain.Territory) map[string]any {
	metadata := map[string]any{
		"code":   t.Code,
		"status": string(t.Status),
	}
	if t.ParentID != nil {
		metadata["parent_id"] = t.ParentID.String()
	}
	return metadata
}

func trimmedPtr(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	return &trimmed
}

func derefString(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}
