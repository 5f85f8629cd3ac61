package domain

import (
	"errors"
	"fmt"
	"unicode/utf8"
)

// maxDiagnosticLen bounds raw remote/tool text carried inside errors
const maxDiagnosticLen = 2048

// Sentinel errors for terminal remote job outcomes. JobError wraps exactly one of these.
var (
	ErrRemoteJobFailed = errors.New("remote job failed")
	ErrJobExpired      = errors.New("remote job expired")
	ErrPollTimeout     = errors.New("poll attempts exhausted")
	ErrCancelled       = errors.New("operation cancelled")
)

// ValidationError represents input validation errors. These are the caller's
// fault and are never retried.
type ValidationError struct {
	Field   string      `json:"field"`
	Message string      `json:"message"`
	Value   interface{} `json:"value"`
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

// NewValidationError creates a new ValidationError
func NewValidationError(field, message string, value interface{}) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
		Value:   value,
	}
}

// SubmissionError is a transport-level failure talking to the remote
// alignment service: the request could not be sent or came back non-2xx.
type SubmissionError struct {
	Operation  string `json:"operation"`
	StatusCode int    `json:"status_code,omitempty"`
	Body       string `json:"body,omitempty"`
	Err        error  `json:"-"`
}

func (e *SubmissionError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: remote service returned status %d", e.Operation, e.StatusCode)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Operation, e.Err)
	}
	return e.Operation + ": request failed"
}

func (e *SubmissionError) Unwrap() error { return e.Err }

// NewSubmissionError creates a SubmissionError with a bounded copy of the body.
func NewSubmissionError(operation string, statusCode int, body string, err error) *SubmissionError {
	return &SubmissionError{
		Operation:  operation,
		StatusCode: statusCode,
		Body:       Truncate(body),
		Err:        err,
	}
}

// ProtocolError means the remote service answered successfully but with a
// body we could not interpret.
type ProtocolError struct {
	Reason string `json:"reason"`
	Body   string `json:"body,omitempty"`
}

func (e *ProtocolError) Error() string {
	return "unexpected response from remote service: " + e.Reason
}

// NewProtocolError creates a ProtocolError with a bounded copy of the body.
func NewProtocolError(reason, body string) *ProtocolError {
	return &ProtocolError{Reason: reason, Body: Truncate(body)}
}

// JobError reports a remote job that ended in a non-Ready terminal state.
// Kind is one of the sentinel errors above.
type JobError struct {
	JobID      string    `json:"job_id"`
	Attempts   int       `json:"attempts"`
	Status     JobStatus `json:"status"`
	Diagnostic string    `json:"diagnostic,omitempty"`
	Kind       error     `json:"-"`
	Cause      error     `json:"-"`
}

func (e *JobError) Error() string {
	msg := fmt.Sprintf("job %s: %v after %d attempts", e.JobID, e.Kind, e.Attempts)
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap exposes both the sentinel kind and the underlying cause to errors.Is.
func (e *JobError) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Cause}
}

// NewJobError snapshots the job into a JobError.
func NewJobError(job *RemoteJob, kind error, diagnostic string, cause error) *JobError {
	return &JobError{
		JobID:      job.ID,
		Attempts:   job.Attempts,
		Status:     job.Status,
		Diagnostic: Truncate(diagnostic),
		Kind:       kind,
		Cause:      cause,
	}
}

// ToolExecutionError reports that the annotation tool failed or flagged an
// error. The captured diagnostics are kept so an operator does not need to re-run.
type ToolExecutionError struct {
	Reason   string `json:"reason"`
	ExitCode int    `json:"exit_code"`
	Stderr   string `json:"stderr,omitempty"`
	Err      error  `json:"-"`
}

func (e *ToolExecutionError) Error() string {
	return fmt.Sprintf("annotation tool failed (%s, exit code %d)", e.Reason, e.ExitCode)
}

func (e *ToolExecutionError) Unwrap() error { return e.Err }

// Truncate bounds diagnostic text carried in errors. The cut never splits a
// multi-byte character.
func Truncate(s string) string {
	if len(s) <= maxDiagnosticLen {
		return s
	}
	cut := maxDiagnosticLen
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "...(truncated)"
}
