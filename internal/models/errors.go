package models

import (
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"
)

// ErrorResponse represents a standardized API error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

// AppError represents a custom application error
type AppError struct {
	Code    string
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Is matches two AppErrors by code so sentinel comparisons survive
// re-wrapping with a different message.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return t.Code == e.Code && (t.Message == "" || t.Message == e.Message)
}

// Error codes of the moderation workflow.
const (
	CodeNotFound                 = "NOT_FOUND"
	CodeValidation               = "VALIDATION_ERROR"
	CodeUnauthorized             = "UNAUTHORIZED"
	CodeForbidden                = "FORBIDDEN"
	CodeInternal                 = "INTERNAL_ERROR"
	CodeDuplicateReport          = "DUPLICATE_REPORT"
	CodeReportLimitExceeded      = "REPORT_LIMIT_EXCEEDED"
	CodeAppealNotAllowed         = "APPEAL_NOT_ALLOWED"
	CodeAppealAlreadyOpen        = "APPEAL_ALREADY_OPEN"
	CodeAppealNotFound           = "APPEAL_NOT_FOUND"
	CodeMembershipContextMissing = "MEMBERSHIP_CONTEXT_MISSING"
	CodeInvalidTransition        = "INVALID_TRANSITION"
)

// Sentinel errors. Match with errors.Is; callers wrap them with context.
var (
	ErrDuplicateReport = &AppError{
		Code:    CodeDuplicateReport,
		Message: "reporter already reported this case",
	}
	ErrReportLimitExceeded = &AppError{
		Code:    CodeReportLimitExceeded,
		Message: "too many open reports",
	}
	ErrCaseNotFound = &AppError{
		Code:    CodeNotFound,
		Message: "moderation case not found",
	}
	ErrAppealNotAllowed = &AppError{
		Code:    CodeAppealNotAllowed,
		Message: "appeal not allowed for this case",
	}
	ErrAppealAlreadyOpen = &AppError{
		Code:    CodeAppealAlreadyOpen,
		Message: "an appeal is already open for this case",
	}
	ErrAppealNotFound = &AppError{
		Code:    CodeAppealNotFound,
		Message: "pending appeal not found",
	}
	ErrMembershipContextMissing = &AppError{
		Code:    CodeMembershipContextMissing,
		Message: "membership action requires group_id and user_id",
	}
	ErrInvalidTransition = &AppError{
		Code:    CodeInvalidTransition,
		Message: "case status transition not allowed",
	}
)

// Predefined error constructors
func NewNotFoundError(resource string, id interface{}) *AppError {
	return &AppError{
		Code:    CodeNotFound,
		Message: fmt.Sprintf("%s with ID %v not found", resource, id),
	}
}

func NewValidationError(message string) *AppError {
	return &AppError{
		Code:    CodeValidation,
		Message: message,
	}
}

func NewUnauthorizedError(message string) *AppError {
	return &AppError{
		Code:    CodeUnauthorized,
		Message: message,
	}
}

func NewForbiddenError(message string) *AppError {
	return &AppError{
		Code:    CodeForbidden,
		Message: message,
	}
}

func NewInternalError(err error) *AppError {
	return &AppError{
		Code:    CodeInternal,
		Message: "Internal server error",
		Err:     err,
	}
}

// WithDetail returns a copy of a sentinel carrying the underlying cause.
// errors.Is against the sentinel still matches.
func WithDetail(sentinel *AppError, err error) *AppError {
	return &AppError{Code: sentinel.Code, Message: sentinel.Message, Err: err}
}

// StatusFor maps an error to the HTTP status the API returns for it.
func StatusFor(err error) int {
	var appErr *AppError
	if !errors.As(err, &appErr) {
		return fiber.StatusInternalServerError
	}
	switch appErr.Code {
	case CodeNotFound, CodeAppealNotFound:
		return fiber.StatusNotFound
	case CodeValidation:
		return fiber.StatusBadRequest
	case CodeUnauthorized:
		return fiber.StatusUnauthorized
	case CodeForbidden, CodeAppealNotAllowed:
		return fiber.StatusForbidden
	case CodeDuplicateReport, CodeAppealAlreadyOpen, CodeInvalidTransition:
		return fiber.StatusConflict
	case CodeReportLimitExceeded:
		return fiber.StatusTooManyRequests
	case CodeMembershipContextMissing:
		return fiber.StatusUnprocessableEntity
	default:
		return fiber.StatusInternalServerError
	}
}

// RespondWithError creates a standardized error response
func RespondWithError(c *fiber.Ctx, status int, err error) error {
	var response ErrorResponse

	var appErr *AppError
	if errors.As(err, &appErr) {
		response = ErrorResponse{
			Error: appErr.Message,
			Code:  appErr.Code,
		}
		if appErr.Err != nil {
			response.Details = appErr.Err.Error()
		}
	} else {
		response = ErrorResponse{
			Error: err.Error(),
		}
	}

	return c.Status(status).JSON(response)
}
