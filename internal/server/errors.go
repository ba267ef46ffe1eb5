package server

import (
	"errors"
	"net/http"
	"strings"

	customerdomain "github.com/flowpulse/flowpulse/internal/customer/domain"
	dailymetricsdomain "github.com/flowpulse/flowpulse/internal/dailymetrics/domain"
	deliverydomain "github.com/flowpulse/flowpulse/internal/delivery/domain"
	"github.com/flowpulse/flowpulse/internal/orgcontext"
	responsedomain "github.com/flowpulse/flowpulse/internal/response/domain"
	surveydomain "github.com/flowpulse/flowpulse/internal/survey/domain"
	webhookdomain "github.com/flowpulse/flowpulse/internal/webhook/domain"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
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
	ErrUnauthorized       = errors.New("unauthorized")
	ErrConflict           = errors.New("conflict")
	ErrInternal           = errors.New("internal_error")
	ErrNotFound           = errors.New("not_found")
	ErrInvalidRequest     = errors.New("invalid_request")
	ErrOrgRequired        = errors.New("org_required")
	ErrServiceUnavailable = errors.New("service_unavailable")
)

// validationErrors are reported as 400 with the sentinel text as the code.
var validationErrors = []error{
	ErrInvalidRequest,
	ErrOrgRequired,
	orgcontext.ErrInvalidOrgID,
	surveydomain.ErrInvalidOrganization,
	surveydomain.ErrInvalidName,
	surveydomain.ErrInvalidType,
	surveydomain.ErrInvalidQuestion,
	surveydomain.ErrInvalidID,
	deliverydomain.ErrInvalidOrganization,
	deliverydomain.ErrInvalidID,
	deliverydomain.ErrInvalidPhoneNumber,
	deliverydomain.ErrInvalidStatus,
	responsedomain.ErrInvalidOrganization,
	responsedomain.ErrInvalidPhoneNumber,
	responsedomain.ErrInvalidScore,
	responsedomain.ErrInvalidCategory,
	responsedomain.ErrInvalidID,
	customerdomain.ErrInvalidOrganization,
	customerdomain.ErrInvalidID,
	dailymetricsdomain.ErrInvalidOrganization,
	dailymetricsdomain.ErrInvalidDate,
	dailymetricsdomain.ErrInvalidRange,
	webhookdomain.ErrInvalidPayload,
}

// unprocessableErrors are well-formed requests the current state rejects.
var unprocessableErrors = []error{
	deliverydomain.ErrSurveyInactive,
	deliverydomain.ErrInvalidTransition,
	deliverydomain.ErrNoMatchingDelivery,
	responsedomain.ErrAmbiguousDelivery,
	dailymetricsdomain.ErrDayNotClosed,
}

var conflictErrors = []error{
	ErrConflict,
	surveydomain.ErrSlugTaken,
	deliverydomain.ErrStatusConflict,
	deliverydomain.ErrAlreadyResponded,
	customerdomain.ErrResolutionConflict,
	webhookdomain.ErrInFlight,
}

var notFoundErrors = []error{
	ErrNotFound,
	surveydomain.ErrNotFound,
	deliverydomain.ErrNotFound,
	customerdomain.ErrNotFound,
	gorm.ErrRecordNotFound,
}

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

	if code, ok := matchAny(err, validationErrors); ok {
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

	if code, ok := matchAny(err, unprocessableErrors); ok {
		return http.StatusUnprocessableEntity, errorPayload{
			Type:    code,
			Message: strings.ReplaceAll(code, "_", " "),
		}
	}

	switch {
	case errors.Is(err, ErrUnauthorized),
		errors.Is(err, webhookdomain.ErrInvalidSignature):
		return http.StatusUnauthorized, errorPayload{
			Type:    "unauthorized",
			Message: "unauthorized",
		}
	case isAny(err, conflictErrors):
		code, _ := matchAny(err, conflictErrors)
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Message: strings.ReplaceAll(code, "_", " "),
		}
	case isAny(err, notFoundErrors):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "not found",
		}
	case errors.Is(err, webhookdomain.ErrRateLimited):
		return http.StatusTooManyRequests, errorPayload{
			Type:    "rate_limited",
			Message: "too many requests",
		}
	case errors.Is(err, deliverydomain.ErrSendFailed):
		return http.StatusBadGateway, errorPayload{
			Type:    "send_failed",
			Message: "survey could not be sent",
		}
	case errors.Is(err, ErrServiceUnavailable):
		return http.StatusServiceUnavailable, errorPayload{
			Type:    "service_unavailable",
			Message: "service unavailable",
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}

// classifyErrorForLog feeds the request logger a stable type and code.
func classifyErrorForLog(err error) (string, string) {
	_, payload := mapError(err)
	code := payload.Type
	if len(payload.Errors) > 0 {
		code = payload.Errors[0].Code
	}
	return payload.Type, code
}

func asValidationErrors(err error) *ValidationErrors {
	var vErr *ValidationErrors
	if errors.As(err, &vErr) && vErr != nil {
		return vErr
	}
	return nil
}

func matchAny(err error, targets []error) (string, bool) {
	for _, target := range targets {
		if errors.Is(err, target) {
			return target.Error(), true
		}
	}
	return "", false
}

func isAny(err error, targets []error) bool {
	_, ok := matchAny(err, targets)
	return ok
}

func validationErrorField(code string) string {
	switch code {
	case "invalid_request":
		return "request"
	case "org_required", "invalid_org_id":
		return "org_id"
	}
	if strings.HasPrefix(code, "invalid_") {
		return strings.TrimPrefix(code, "invalid_")
	}
	return ""
}

func validationErrorMessage(code string) string {
	switch code {
	case "invalid_request":
		return "invalid request"
	case "org_required":
		return "X-Org-ID header is required"
	default:
		return "invalid value"
	}
}
