package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sony/gobreaker"

	"github.com/clone-sequence-server/internal/domain"
	"github.com/clone-sequence-server/internal/middleware"
)

// StatusClientClosedRequest is the non-standard status for a caller that gave up
const StatusClientClosedRequest = 499

// classify maps a service error onto an HTTP status and a short machine-readable kind.
func classify(err error) (int, string) {
	var (
		validationErr *domain.ValidationError
		submissionErr *domain.SubmissionError
		protocolErr   *domain.ProtocolError
		toolErr       *domain.ToolExecutionError
	)

	switch {
	case errors.As(err, &validationErr):
		return http.StatusBadRequest, "validation"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "deadline_exceeded"
	case errors.Is(err, domain.ErrCancelled), errors.Is(err, context.Canceled):
		return StatusClientClosedRequest, "cancelled"
	case errors.Is(err, domain.ErrPollTimeout):
		return http.StatusGatewayTimeout, "poll_timeout"
	case errors.Is(err, domain.ErrRemoteJobFailed):
		return http.StatusUnprocessableEntity, "remote_failed"
	case errors.Is(err, domain.ErrJobExpired):
		return http.StatusUnprocessableEntity, "expired"
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return http.StatusServiceUnavailable, "circuit_open"
	case errors.As(err, &submissionErr):
		return http.StatusBadGateway, "submission"
	case errors.As(err, &protocolErr):
		return http.StatusBadGateway, "protocol"
	case errors.As(err, &toolErr):
		return http.StatusUnprocessableEntity, "tool"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

// errorBody renders err for a JSON response, including the job or field it concerns.
func errorBody(c *gin.Context, err error) gin.H {
	_, kind := classify(err)
	body := gin.H{
		"error":          err.Error(),
		"kind":           kind,
		"correlation_id": c.GetString(middleware.CorrelationIDKey),
	}

	var validationErr *domain.ValidationError
	if errors.As(err, &validationErr) {
		body["field"] = validationErr.Field
	}
	var jobErr *domain.JobError
	if errors.As(err, &jobErr) {
		body["job_id"] = jobErr.JobID
		body["attempts"] = jobErr.Attempts
	}
	return body
}

func abortWithError(c *gin.Context, err error) {
	status, _ := classify(err)
	_ = c.Error(err)
	c.AbortWithStatusJSON(status, errorBody(c, err))
}

func abortWithBindError(c *gin.Context, err error) {
	_ = c.Error(err).SetType(gin.ErrorTypeBind)
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
		"error":          err.Error(),
		"kind":           "validation",
		"correlation_id": c.GetString(middleware.CorrelationIDKey),
	})
}
