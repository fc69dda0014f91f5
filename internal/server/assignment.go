package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	assignmentdomain "github.com/smallbiznis/territorial/internal/assignment/domain"
	auditdomain "github.com/smallbiznis/territorial/internal/audit/domain"
	"github.com/smallbiznis/territorial/internal/record"
	"github.com/smallbiznis/territorial/pkg/db/pagination"
)

type createAssignmentRequest struct {
	TerritoryID    string `json:"territory_id"`
	AssignableType string `json:"assignable_type"`
	AssignableID   string `json:"assignable_id"`
	AssignedBy     string `json:"assigned_by"`
}

// CreateAssignment records a manual assignment. The actor header wins over
// assigned_by in the body.
func (s *Server) CreateAssignment(c *gin.Context) {
	var req createAssignmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	territoryID, err := parseOptionalSnowflakeID(req.TerritoryID)
	if err != nil || territoryID == nil {
		AbortWithError(c, assignmentdomain.ErrInvalidTerritory)
		return
	}

	assignedBy := actorFromRequest(c)
	if assignedBy == "" {
		assignedBy = strings.TrimSpace(req.AssignedBy)
	}

	resp, err := s.assignmentSvc.Create(c.Request.Context(), assignmentdomain.CreateAssignmentRequest{
		TerritoryID:    *territoryID,
		AssignableType: strings.TrimSpace(req.AssignableType),
		AssignableID:   strings.TrimSpace(req.AssignableID),
		AssignedBy:     assignedBy,
		AssignmentType: string(assignmentdomain.AssignmentTypeManual),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	s.recordAudit(c, auditdomain.ActionAssignmentCreate, auditdomain.TargetAssignment, resp.ID.String(), map[string]any{
		"territory_id":    resp.TerritoryID.String(),
		"assignable_type": string(resp.AssignableType),
	})

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListAssignments(c *gin.Context) {
	var query struct {
		pagination.Pagination
		TerritoryID    string `form:"territory_id"`
		AssignableType string `form:"assignable_type"`
		AssignableID   string `form:"assignable_id"`
		AssignmentType string `form:"assignment_type"`
		AssignedFrom   string `form:"assigned_from"`
		AssignedTo     string `form:"assigned_to"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	scopes := make([]assignmentdomain.Scope, 0, 4)

	territoryID, err := parseOptionalSnowflakeID(query.TerritoryID)
	if err != nil {
		AbortWithError(c, newValidationError("territory_id", "invalid_territory_id", "invalid territory_id"))
		return
	}
	if territoryID != nil {
		scopes = append(scopes, assignmentdomain.ByTerritory(*territoryID))
	}

	if value := strings.TrimSpace(query.AssignableType); value != "" {
		kind, err := record.ParseKind(value)
		if err != nil {
			AbortWithError(c, assignmentdomain.ErrInvalidAssignableType)
			return
		}
		if id := strings.TrimSpace(query.AssignableID); id != "" {
			scopes = append(scopes, assignmentdomain.ByAssignable(record.Reference{Kind: kind, ID: id}))
		} else {
			scopes = append(scopes, assignmentdomain.ByAssignableType(kind))
		}
	} else if strings.TrimSpace(query.AssignableID) != "" {
		AbortWithError(c, newValidationError("assignable_type", "required", "assignable_type is required with assignable_id"))
		return
	}

	if value := strings.ToLower(strings.TrimSpace(query.AssignmentType)); value != "" {
		assignmentType := assignmentdomain.AssignmentType(value)
		if !assignmentType.Valid() {
			AbortWithError(c, assignmentdomain.ErrInvalidAssignmentType)
			return
		}
		scopes = append(scopes, assignmentdomain.ByType(assignmentType))
	}

	assignedFrom, err := parseOptionalTime(query.AssignedFrom, false)
	if err != nil {
		AbortWithError(c, newValidationError("assigned_from", "invalid_assigned_from", "invalid assigned_from"))
		return
	}
	assignedTo, err := parseOptionalTime(query.AssignedTo, true)
	if err != nil {
		AbortWithError(c, newValidationError("assigned_to", "invalid_assigned_to", "invalid assigned_to"))
		return
	}
	if assignedFrom != nil || assignedTo != nil {
		scopes = append(scopes, assignmentdomain.AssignedBetween(assignedFrom, assignedTo))
	}

	resp, err := s.assignmentSvc.List(c.Request.Context(), assignmentdomain.ListRequest{
		Scopes:    scopes,
		PageToken: query.PageToken,
		PageSize:  query.PageSize,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetAssignmentByID(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	resp, err := s.assignmentSvc.Get(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
