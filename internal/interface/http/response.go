package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/featherlingo/featherlingo-api/internal/domain/shared"
	"github.com/featherlingo/featherlingo-api/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// RESPONSE ENVELOPE
// ══════════════════════════════════════════════════════════════════════════════

// APIVersion is reported in every response meta block.
const APIVersion = "v1"

// Envelope is the body of every API response.
type Envelope struct {
	Success   bool      `json:"success"`
	Data      any       `json:"data,omitempty"`
	Error     *APIError `json:"error,omitempty"`
	Meta      *Meta     `json:"meta,omitempty"`
	RequestID string    `json:"request_id,omitempty"`
}

// APIError describes a failed request.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// Meta contains response metadata.
type Meta struct {
	Timestamp time.Time `json:"timestamp"`
	Version   string    `json:"version"`
	Count     *int      `json:"count,omitempty"`
}

// Error codes.
const (
	CodeValidation      = "validation_error"
	CodeNotFound        = "not_found"
	CodeConflict        = "conflict"
	CodeForbidden       = "forbidden"
	CodeUnauthenticated = "unauthenticated"
	CodeInternal        = "internal_error"
	CodeBodyTooLarge    = "body_too_large"
)

func newMeta() *Meta {
	return &Meta{Timestamp: time.Now().UTC(), Version: APIVersion}
}

// respond writes a successful envelope.
func respond(c *gin.Context, status int, data any) {
	c.JSON(status, Envelope{
		Success:   true,
		Data:      data,
		Meta:      newMeta(),
		RequestID: requestID(c),
	})
}

// respondList writes a successful envelope with meta.count.
func respondList[T any](c *gin.Context, items []T) {
	if items == nil {
		items = []T{}
	}
	meta := newMeta()
	n := len(items)
	meta.Count = &n
	c.JSON(http.StatusOK, Envelope{
		Success:   true,
		Data:      items,
		Meta:      meta,
		RequestID: requestID(c),
	})
}

// fail writes an error envelope and aborts the chain.
func fail(c *gin.Context, status int, code, message, details string) {
	c.AbortWithStatusJSON(status, Envelope{
		Success:   false,
		Error:     &APIError{Code: code, Message: message, Details: details},
		Meta:      newMeta(),
		RequestID: requestID(c),
	})
}

// respondError maps err to a status code and writes the envelope.
// Unclassified errors are logged and hidden behind a generic message.
func respondError(c *gin.Context, err error) {
	status, code := classify(err)
	if status == http.StatusInternalServerError {
		logger.FromContext(c.Request.Context()).Error("request failed",
			logger.String("path", c.FullPath()),
			logger.Err(err),
		)
		fail(c, status, code, "an unexpected error occurred", "")
		return
	}

	message := err.Error()
	details := ""
	var de *shared.DomainError
	if errors.As(err, &de) {
		message = de.Message
		details = de.Domain + "." + de.Op
	}
	fail(c, status, code, message, details)
}

// classify maps the domain error taxonomy to HTTP.
func classify(err error) (int, string) {
	switch {
	case shared.IsUnauthenticated(err):
		return http.StatusUnauthorized, CodeUnauthenticated
	case shared.IsForbidden(err):
		return http.StatusForbidden, CodeForbidden
	case shared.IsNotFound(err):
		return http.StatusNotFound, CodeNotFound
	case shared.IsValidation(err):
		return http.StatusBadRequest, CodeValidation
	case shared.IsConflict(err), errors.Is(err, shared.ErrConcurrentModification):
		return http.StatusConflict, CodeConflict
	default:
		return http.StatusInternalServerError, CodeInternal
	}
}

// badRequest reports a malformed body or parameter.
func badRequest(c *gin.Context, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		fail(c, http.StatusRequestEntityTooLarge, CodeBodyTooLarge, "request body too large", "")
		return
	}
	fail(c, http.StatusBadRequest, CodeValidation, "invalid request", err.Error())
}
