package domain

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"
)

func TestValidationError(t *testing.T) {
	tests := []struct {
		name    string
		field   string
		message string
		value   interface{}
	}{
		{
			name:    "String validation error",
			field:   "sequence",
			message: "too short",
			value:   "ACGT",
		},
		{
			name:    "Integer validation error",
			field:   "records",
			message: "Must be positive",
			value:   -1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewValidationError(tt.field, tt.message, tt.value)

			if err.Field != tt.field {
				t.Errorf("Expected field %s, got %s", tt.field, err.Field)
			}

			if err.Value != tt.value {
				t.Errorf("Expected value %v, got %v", tt.value, err.Value)
			}

			expectedError := "validation error for field '" + tt.field + "': " + tt.message
			if err.Error() != expectedError {
				t.Errorf("Expected error string %s, got %s", expectedError, err.Error())
			}
		})
	}
}

func TestJobError(t *testing.T) {
	job := &RemoteJob{ID: "RID123", Attempts: 7, Status: JobStatusTimedOut}

	t.Run("wraps kind", func(t *testing.T) {
		err := NewJobError(job, ErrPollTimeout, "Status=WAITING", nil)

		if !errors.Is(err, ErrPollTimeout) {
			t.Errorf("Expected errors.Is(err, ErrPollTimeout)")
		}
		if errors.Is(err, ErrJobExpired) {
			t.Errorf("Did not expect errors.Is(err, ErrJobExpired)")
		}
		if !strings.Contains(err.Error(), "RID123") || !strings.Contains(err.Error(), "7 attempts") {
			t.Errorf("Error message lacks job context: %s", err.Error())
		}
	})

	t.Run("wraps kind and cause", func(t *testing.T) {
		err := NewJobError(job, ErrCancelled, "", context.Canceled)

		if !errors.Is(err, ErrCancelled) || !errors.Is(err, context.Canceled) {
			t.Errorf("Expected both kind and cause to match, got %v", err)
		}

		var jobErr *JobError
		if !errors.As(err, &jobErr) || jobErr.JobID != "RID123" {
			t.Errorf("Expected errors.As to recover the JobError")
		}
	})
}

func TestSubmissionError(t *testing.T) {
	err := NewSubmissionError("submit", 503, "Service Unavailable", nil)
	if err.Error() != "submit: remote service returned status 503" {
		t.Errorf("Unexpected message: %s", err.Error())
	}

	cause := errors.New("connection refused")
	err = NewSubmissionError("submit", 0, "", cause)
	if !errors.Is(err, cause) {
		t.Errorf("Expected cause to be unwrapped")
	}
}

func TestTruncate(t *testing.T) {
	short := "Status=FAILED"
	if Truncate(short) != short {
		t.Errorf("Short text should be unchanged")
	}

	long := strings.Repeat("x", maxDiagnosticLen+100)
	got := Truncate(long)
	if !strings.HasSuffix(got, "...(truncated)") || len(got) != maxDiagnosticLen+len("...(truncated)") {
		t.Errorf("Unexpected truncation, length %d", len(got))
	}

	// "µ" is two bytes, so an odd prefix puts the limit inside one
	multiByte := "x" + strings.Repeat("µ", maxDiagnosticLen)
	got = Truncate(multiByte)
	if !utf8.ValidString(got) {
		t.Errorf("Truncation split a multi-byte character")
	}
	if len(got) != maxDiagnosticLen-1+len("...(truncated)") {
		t.Errorf("Expected cut at the previous rune boundary, length %d", len(got))
	}
}
