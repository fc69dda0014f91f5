package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	assignmentdomain "github.com/smallbiznis/territorial/internal/assignment/domain"
	auditdomain "github.com/smallbiznis/territorial/internal/audit/domain"
	resolverdomain "github.com/smallbiznis/territorial/internal/resolver/domain"
	ruledomain "github.com/smallbiznis/territorial/internal/rule/domain"
	territorydomain "github.com/smallbiznis/territorial/internal/territory/domain"
	"github.com/smallbiznis/territorial/internal/trigger"
	"github.com/smallbiznis/territorial/pkg/db/pagination"
)

type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func (v ValidationErrors) Error() string {
	return "validation error"
}

type errorPayload struct {
	Type    string            `json:"type"`
	Message string            `json:"message"`
	Errors  []ValidationError `json:"errors,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrConflict       = errors.New("conflict")
	ErrInternal       = errors.New("internal_error")
	ErrNotFound       = errors.New("not_found")
	ErrInvalidRequest = errors.New("invalid_request")
)

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func invalidRequestError() error {
	return newValidationError("request", "invalid_request", "invalid request")
}

func newValidationError(field, code, message string) error {
	return &ValidationErrors{
		Errors: []ValidationError{
			{
				Field:   field,
				Code:    code,
				Message: message,
			},
		},
	}
}

func mapError(err error) (int, errorPayload) {
	if err == nil {
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}

	if vErr := asValidationErrors(err); vErr != nil {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors:  vErr.Errors,
		}
	}

	if code, ok := validationErrorCode(err); ok {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors: []ValidationError{
				{
					Field:   validationErrorField(code),
					Code:    code,
					Message: validationErrorMessage(code),
				},
			},
		}
	}

	switch {
	case isConflictError(err):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Message: conflictMessage(err),
		}
	case isNotFoundError(err):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "not found",
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}

// classifyErrorForLog feeds the request logger without exposing messages.
func classifyErrorForLog(err error) (string, string) {
	status, payload := mapError(err)
	if status >= http.StatusInternalServerError {
		return "internal", payload.Type
	}
	if code, ok := validationErrorCode(err); ok {
		return "client", code
	}
	return "client", payload.Type
}

func asValidationErrors(err error) *ValidationErrors {
	var vErr *ValidationErrors
	if errors.As(err, &vErr) && vErr != nil {
		return vErr
	}
	return nil
}

var validationErrors = []error{
	ErrInvalidRequest,
	territorydomain.ErrInvalidID,
	territorydomain.ErrInvalidName,
	territorydomain.ErrInvalidCode,
	territorydomain.ErrInvalidType,
	territorydomain.ErrInvalidStatus,
	territorydomain.ErrInvalidBoundary,
	territorydomain.ErrInvalidParent,
	territorydomain.ErrParentNotFound,
	ruledomain.ErrInvalidID,
	ruledomain.ErrInvalidTerritory,
	ruledomain.ErrTerritoryNotFound,
	ruledomain.ErrInvalidRuleType,
	ruledomain.ErrInvalidFieldName,
	ruledomain.ErrInvalidOperator,
	ruledomain.ErrInvalidOperands,
	assignmentdomain.ErrInvalidID,
	assignmentdomain.ErrInvalidTerritory,
	assignmentdomain.ErrTerritoryNotFound,
	assignmentdomain.ErrInvalidAssignableType,
	assignmentdomain.ErrInvalidAssignableID,
	assignmentdomain.ErrInvalidAssignedBy,
	assignmentdomain.ErrInvalidAssignmentType,
	resolverdomain.ErrNilRecord,
	resolverdomain.ErrUnsupportedKind,
	trigger.ErrInvalidPayload,
	trigger.ErrInvalidKind,
	trigger.ErrInvalidID,
	auditdomain.ErrInvalidTimeRange,
	pagination.ErrInvalidPageToken,
}

func validationErrorCode(err error) (string, bool) {
	for _, target := range validationErrors {
		if errors.Is(err, target) {
			return target.Error(), true
		}
	}
	return "", false
}

func validationErrorField(code string) string {
	switch code {
	case "invalid_id":
		return "id"
	case "invalid_name":
		return "name"
	case "invalid_code":
		return "code"
	case "invalid_type":
		return "type"
	case "invalid_status":
		return "status"
	case "invalid_boundaries":
		return "boundaries"
	case "invalid_parent", "parent_not_found":
		return "parent_id"
	case "invalid_territory", "territory_not_found":
		return "territory_id"
	case "invalid_rule_type":
		return "rule_type"
	case "invalid_field_name":
		return "field_name"
	case "invalid_operator":
		return "operator"
	case "invalid_operands":
		return "value"
	case "invalid_assignable_type", "unsupported_assignable_type":
		return "assignable_type"
	case "invalid_assignable_id":
		return "assignable_id"
	case "invalid_assigned_by":
		return "assigned_by"
	case "invalid_assignment_type":
		return "assignment_type"
	case "invalid_record", "invalid_payload":
		return "body"
	case "invalid_time_range":
		return "start_at"
	case "invalid_page_token":
		return "page_token"
	default:
		return "request"
	}
}

func validationErrorMessage(code string) string {
	switch code {
	case "invalid_id":
		return "id is invalid"
	case "invalid_name":
		return "name is required"
	case "invalid_code":
		return "code is invalid"
	case "invalid_type":
		return "type must be geographic or account_based"
	case "invalid_status":
		return "status must be active or inactive"
	case "invalid_boundaries":
		return "boundaries must be valid JSON"
	case "invalid_parent":
		return "parent_id is invalid"
	case "parent_not_found":
		return "parent territory not found"
	case "invalid_territory":
		return "territory_id is required"
	case "territory_not_found":
		return "territory not found"
	case "invalid_rule_type":
		return "rule_type is invalid"
	case "invalid_field_name":
		return "field_name is required"
	case "invalid_operator":
		return "operator is not supported"
	case "invalid_operands":
		return "value does not fit the operator"
	case "invalid_assignable_type":
		return "assignable_type is invalid"
	case "unsupported_assignable_type":
		return "assignable_type is not resolvable"
	case "invalid_assignable_id":
		return "assignable_id is required"
	case "invalid_assigned_by":
		return "assigned_by is required"
	case "invalid_assignment_type":
		return "assignment_type must be manual or automatic"
	case "invalid_record":
		return "record is required"
	case "invalid_payload":
		return "payload is not valid JSON"
	case "invalid_time_range":
		return "start_at must not be after end_at"
	case "invalid_page_token":
		return "page_token is invalid"
	default:
		return "invalid request"
	}
}

func isConflictError(err error) bool {
	switch {
	case errors.Is(err, ErrConflict),
		errors.Is(err, territorydomain.ErrCodeTaken),
		errors.Is(err, territorydomain.ErrCycle),
		errors.Is(err, territorydomain.ErrNotDeleted):
		return true
	default:
		return false
	}
}

func conflictMessage(err error) string {
	switch {
	case errors.Is(err, territorydomain.ErrCodeTaken):
		return "code already in use"
	case errors.Is(err, territorydomain.ErrCycle):
		return "parent would create a cycle"
	case errors.Is(err, territorydomain.ErrNotDeleted):
		return "territory is not deleted"
	default:
		return "conflict"
	}
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, territorydomain.ErrNotFound),
		errors.Is(err, ruledomain.ErrNotFound),
		errors.Is(err, assignmentdomain.ErrNotFound):
		return true
	default:
		return false
	}
}
