package server

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/edgard/codegenius/internal/gateway"
)

// APIError is the body of every error response, wrapped in {"error": ...}.
type APIError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	RetryAfter int64  `json:"retry_after_ms,omitempty"`
}

// Error codes returned to HTTP clients.
const (
	ErrCodeBadRequest           = "BAD_REQUEST"
	ErrCodeNotFound             = "NOT_FOUND"
	ErrCodePayloadTooLarge      = "PAYLOAD_TOO_LARGE"
	ErrCodeRateLimited          = "RATE_LIMITED"
	ErrCodeRequestTimeout       = "REQUEST_TIMEOUT"
	ErrCodeAIRequestFailed      = "AI_REQUEST_FAILED"
	ErrCodeAIServiceUnavailable = "AI_SERVICE_UNAVAILABLE"
	ErrCodeInternalError        = "INTERNAL_ERROR"
)

var failureMessages = map[gateway.Operation]string{
	gateway.OpDebug:     "Failed to debug code",
	gateway.OpTranslate: "Failed to translate code",
	gateway.OpExplain:   "Failed to explain code",
	gateway.OpChat:      "Failed to process chat",
}

// RespondError sends a structured error response and aborts the chain.
func RespondError(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, gin.H{
		"error": APIError{Code: code, Message: message},
	})
}

// RespondErrorWithRetry sends a structured error response with a retry hint.
func RespondErrorWithRetry(c *gin.Context, status int, code, message string, retryAfterMs int64) {
	c.AbortWithStatusJSON(status, gin.H{
		"error": APIError{Code: code, Message: message, RetryAfter: retryAfterMs},
	})
}

// BadRequest sends a 400 error.
func BadRequest(c *gin.Context, message string) {
	RespondError(c, http.StatusBadRequest, ErrCodeBadRequest, message)
}

// InternalError sends a 500 error.
func InternalError(c *gin.Context, message string) {
	RespondError(c, http.StatusInternalServerError, ErrCodeInternalError, message)
}

// respondGatewayError maps a gateway error onto an HTTP status and code.
// The original error is attached to the context for the request logger.
func (s *Server) respondGatewayError(c *gin.Context, op gateway.Operation, err error) {
	_ = c.Error(err)

	switch gateway.Code(err) {
	case gateway.CodeInvalidInput:
		BadRequest(c, err.Error())
	case gateway.CodeCircuitOpen:
		RespondErrorWithRetry(c, http.StatusServiceUnavailable, ErrCodeAIServiceUnavailable,
			"AI service is temporarily unavailable", s.retryAfter.Milliseconds())
	case gateway.CodeExhaustedRetries, gateway.CodeUpstream:
		RespondError(c, http.StatusInternalServerError, ErrCodeAIRequestFailed, failureMessages[op])
	case gateway.CodeCanceled:
		RespondError(c, http.StatusGatewayTimeout, ErrCodeRequestTimeout, "Request timed out")
	default:
		InternalError(c, failureMessages[op])
	}
}

// respondBindError reports a request body that could not be decoded or
// failed its binding rules.
func respondBindError(c *gin.Context, err error) {
	_ = c.Error(err).SetType(gin.ErrorTypeBind)

	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		RespondError(c, http.StatusRequestEntityTooLarge, ErrCodePayloadTooLarge,
			fmt.Sprintf("Request body exceeds %d bytes", tooLarge.Limit))
		return
	}
	BadRequest(c, bindingMessage(err))
}

func bindingMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return "Invalid JSON body"
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fieldMessage(fe))
	}
	return strings.Join(msgs, "; ")
}

func fieldMessage(fe validator.FieldError) string {
	field := fieldPath(fe)
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "min":
		return fmt.Sprintf("%s must contain at least %s item(s)", field, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", field, fe.Param())
	case supportedLanguageTag:
		return fmt.Sprintf("%s: unsupported language %q", field, fe.Value())
	default:
		return fmt.Sprintf("%s failed %q validation", field, fe.Tag())
	}
}

// fieldPath drops the request struct name from the namespace, so
// "chatRequest.messages[1].role" becomes "messages[1].role".
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return fe.Field()
}
