package httputil

import (
	stderrors "errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"

	"github.com/medidesk/practice-api/pkg/errors"
)

// ContextRequestID is the gin context key holding the request id.
const ContextRequestID = "request_id"

// Response wraps all API responses
type Response struct {
	Status     string      `json:"status"`
	Message    string      `json:"message,omitempty"`
	Data       interface{} `json:"data,omitempty"`
	Errors     interface{} `json:"errors,omitempty"`
	Pagination *Pagination `json:"pagination,omitempty"`
	TraceID    string      `json:"trace_id,omitempty"`
}

// Pagination represents pagination metadata
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}

// FieldError describes one rejected request field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func RespondWithSuccess(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{Status: "success", Data: data})
}

func RespondWithCreated(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, Response{Status: "success", Data: data})
}

func RespondWithMessage(c *gin.Context, status int, message string) {
	c.JSON(status, Response{Status: "success", Message: message})
}

// RespondWithPagination sends a paginated response
func RespondWithPagination(c *gin.Context, data interface{}, page, pageSize, total int) {
	totalPages := 0
	if pageSize > 0 {
		totalPages = (total + pageSize - 1) / pageSize
	}
	c.JSON(http.StatusOK, Response{
		Status: "success",
		Data:   data,
		Pagination: &Pagination{
			Page:       page,
			PageSize:   pageSize,
			Total:      total,
			TotalPages: totalPages,
		},
	})
}

// RespondWithError sends an error response. Errors that are not an
// *errors.AppError are reported as 500 without leaking their text.
func RespondWithError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	message := "internal server error"
	var details interface{}

	if appErr, ok := errors.As(err); ok {
		status = appErr.StatusCode()
		message = appErr.Message
		details = appErr.Details
	}

	if status >= http.StatusInternalServerError {
		log.Error().
			Err(err).
			Str("request_id", c.GetString(ContextRequestID)).
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Msg("Request failed")
	}

	c.AbortWithStatusJSON(status, Response{
		Status:  "error",
		Message: message,
		Errors:  details,
		TraceID: c.GetString(ContextRequestID),
	})
}

// RespondWithBindingError reports a failed ShouldBind call as a 400 with
// per-field messages when the validator produced them.
func RespondWithBindingError(c *gin.Context, err error) {
	RespondWithError(c, BindingError(err))
}

func BindingError(err error) *errors.AppError {
	var verrs validator.ValidationErrors
	if stderrors.As(err, &verrs) {
		fields := make([]FieldError, 0, len(verrs))
		for _, fe := range verrs {
			fields = append(fields, FieldError{Field: fe.Field(), Message: fieldMessage(fe)})
		}
		return errors.Validation("validation failed").WithDetails(fields)
	}
	return errors.BadRequest("invalid request body", err)
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "min":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of [%s]", fe.Param())
	case "gtfield":
		return fmt.Sprintf("must be after %s", fe.Param())
	case "datetime":
		return fmt.Sprintf("must match the format %s", fe.Param())
	case "appointment_status":
		return "must be a valid appointment status"
	case "registrable_role":
		return "must be DOCTOR or PATIENT"
	case "gender":
		return "must be male, female or other"
	case "blood_group":
		return "must be a valid blood group"
	case "clock":
		return "must be a time of day formatted HH:MM"
	case "weekday":
		return "must be a weekday code such as MON"
	default:
		return fmt.Sprintf("failed on the '%s' rule", fe.Tag())
	}
}
