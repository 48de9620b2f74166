package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/smallbiznis/invoicer/internal/auth/token"
	clientdomain "github.com/smallbiznis/invoicer/internal/client/domain"
	invoicedomain "github.com/smallbiznis/invoicer/internal/invoice/domain"
	templatedomain "github.com/smallbiznis/invoicer/internal/invoicetemplate/domain"
	paymentdomain "github.com/smallbiznis/invoicer/internal/payment/domain"
	"github.com/smallbiznis/invoicer/internal/providers/email"
	reminderdomain "github.com/smallbiznis/invoicer/internal/reminder/domain"
	"github.com/smallbiznis/invoicer/internal/reminder/sweep"
	userdomain "github.com/smallbiznis/invoicer/internal/user/domain"
	"github.com/smallbiznis/invoicer/pkg/db"
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
	ErrServiceUnavailable = errors.New("service_unavailable")
	ErrTooManyRequests    = errors.New("too_many_requests")
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

// bindError turns a gin binding failure into a validation error listing every field.
func bindError(err error) error {
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) {
		out := &ValidationErrors{}
		for _, fe := range fieldErrs {
			out.Errors = append(out.Errors, ValidationError{
				Field:   fe.Field(),
				Code:    "invalid_" + fe.Tag(),
				Message: fieldMessage(fe),
			})
		}
		return out
	}
	return invalidRequestError()
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email"
	case "min":
		return "must be at least " + fe.Param()
	case "gte":
		return "must be greater than or equal to " + fe.Param()
	case "gt":
		return "must be greater than " + fe.Param()
	case "oneof":
		return "must be one of " + fe.Param()
	default:
		return "invalid value"
	}
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

// classifyErrorForLog feeds the request logger the same type the client sees.
func classifyErrorForLog(err error) (string, string) {
	_, payload := mapError(err)
	code := payload.Type
	if err != nil && payload.Type == "validation_error" {
		code = err.Error()
	}
	return payload.Type, code
}

func mapError(err error) (int, errorPayload) {
	if err == nil {
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}

	if errs := validationErrors(err); len(errs) > 0 {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors:  errs,
		}
	}

	switch {
	case isUnauthorizedError(err):
		return http.StatusUnauthorized, errorPayload{
			Type:    "unauthorized",
			Message: "unauthorized",
		}
	case isNotFoundError(err):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "not found",
		}
	case errors.Is(err, ErrConflict),
		errors.Is(err, userdomain.ErrEmailTaken),
		errors.Is(err, sweep.ErrSweepInProgress),
		db.IsDuplicateKeyErr(err):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Message: "conflict",
		}
	case errors.Is(err, ErrTooManyRequests):
		return http.StatusTooManyRequests, errorPayload{
			Type:    "too_many_requests",
			Message: "too many requests",
		}
	case errors.Is(err, ErrServiceUnavailable),
		errors.Is(err, email.ErrNotConfigured),
		errors.Is(err, email.ErrDeliveryFailed):
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

// validationErrors collects field issues from every error shape the services return.
func validationErrors(err error) []ValidationError {
	var vErr *ValidationErrors
	if errors.As(err, &vErr) && vErr != nil {
		return vErr.Errors
	}

	var invoiceErr *invoicedomain.ValidationError
	if errors.As(err, &invoiceErr) && invoiceErr != nil {
		out := make([]ValidationError, 0, len(invoiceErr.Fields))
		for _, f := range invoiceErr.Fields {
			out = append(out, ValidationError{Field: f.Field, Code: "invalid", Message: f.Message})
		}
		return out
	}

	var weak *userdomain.WeakPasswordError
	if errors.As(err, &weak) && weak != nil {
		out := make([]ValidationError, 0, len(weak.Violations))
		for _, v := range weak.Violations {
			out = append(out, ValidationError{Field: "password", Code: v.Error(), Message: passwordMessage(v.Error())})
		}
		return out
	}

	for _, sentinel := range validationSentinels {
		if errors.Is(err, sentinel.err) {
			return []ValidationError{{Field: sentinel.field, Code: sentinel.err.Error(), Message: sentinel.message}}
		}
	}
	return nil
}

var validationSentinels = []struct {
	err     error
	field   string
	message string
}{
	{ErrInvalidRequest, "request", "invalid request"},
	{userdomain.ErrInvalidEmail, "email", "must be a valid email"},
	{userdomain.ErrInvalidName, "name", "is required"},
	{userdomain.ErrNothingToUpdate, "request", "nothing to update"},
	{clientdomain.ErrInvalidName, "name", "is required"},
	{clientdomain.ErrInvalidEmail, "email", "must be a valid email"},
	{templatedomain.ErrInvalidName, "name", "is required"},
	{invoicedomain.ErrInvalidStatus, "status", "must be one of draft, sent, paid, overdue"},
	{invoicedomain.ErrMissingRecipient, "to", "no recipient and the client has no email"},
	{invoicedomain.ErrInvalidRecipient, "to", "must be a valid email"},
	{paymentdomain.ErrInvalidAmount, "amount", "must be greater than 0"},
	{paymentdomain.ErrInvalidStatus, "status", "must be one of completed, pending, failed"},
	{reminderdomain.ErrInvalidDaysBeforeDue, "daysBeforeDue", "must be greater than or equal to 0"},
	{reminderdomain.ErrInvalidDaysAfterDue, "daysAfterDue", "must be greater than or equal to 0"},
}

func passwordMessage(code string) string {
	switch code {
	case "password_too_short":
		return "must be at least 8 characters"
	case "password_missing_uppercase":
		return "must contain an uppercase letter"
	case "password_missing_digit":
		return "must contain a digit"
	case "password_missing_symbol":
		return "must contain a symbol"
	default:
		return strings.ReplaceAll(code, "_", " ")
	}
}

func isUnauthorizedError(err error) bool {
	switch {
	case errors.Is(err, ErrUnauthorized),
		errors.Is(err, userdomain.ErrInvalidCredentials),
		errors.Is(err, userdomain.ErrInvalidUser),
		errors.Is(err, clientdomain.ErrInvalidUser),
		errors.Is(err, templatedomain.ErrInvalidUser),
		errors.Is(err, invoicedomain.ErrInvalidUser),
		errors.Is(err, paymentdomain.ErrInvalidUser),
		errors.Is(err, reminderdomain.ErrInvalidUser),
		errors.Is(err, token.ErrInvalidToken),
		errors.Is(err, token.ErrExpiredToken),
		errors.Is(err, token.ErrInvalidSubject):
		return true
	default:
		return false
	}
}

// Malformed ids are reported as missing records so responses never reveal id shapes.
func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, userdomain.ErrNotFound),
		errors.Is(err, clientdomain.ErrNotFound),
		errors.Is(err, clientdomain.ErrInvalidID),
		errors.Is(err, templatedomain.ErrNotFound),
		errors.Is(err, templatedomain.ErrInvalidID),
		errors.Is(err, invoicedomain.ErrNotFound),
		errors.Is(err, invoicedomain.ErrInvalidID),
		errors.Is(err, invoicedomain.ErrClientNotFound),
		errors.Is(err, invoicedomain.ErrTemplateNotFound),
		errors.Is(err, paymentdomain.ErrNotFound),
		errors.Is(err, paymentdomain.ErrInvalidID),
		errors.Is(err, reminderdomain.ErrNotFound),
		errors.Is(err, reminderdomain.ErrInvalidID),
		errors.Is(err, reminderdomain.ErrInvoiceNotFound),
		errors.Is(err, reminderdomain.ErrClientNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return true
	default:
		return false
	}
}
