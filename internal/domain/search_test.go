package domain

import (
	"errors"
	"testing"
)

func TestParseProgram(t *testing.T) {
	tests := []struct {
		input    string
		expected Program
		wantErr  bool
	}{
		{"", ProgramBlastn, false},
		{"BLASTN", ProgramBlastn, false},
		{"nucleotide", ProgramBlastn, false},
		{" blastx ", ProgramBlastx, false},
		{"tblastx", ProgramTblastx, false},
		{"blastp", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseProgram(tt.input)
			if tt.wantErr {
				var ve *ValidationError
				if !errors.As(err, &ve) {
					t.Fatalf("Expected ValidationError, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if got != tt.expected {
				t.Errorf("Expected %s, got %s", tt.expected, got)
			}
		})
	}
}

func TestJobStatusTransitions(t *testing.T) {
	tests := []struct {
		from  JobStatus
		to    JobStatus
		valid bool
	}{
		{JobStatusSubmitted, JobStatusWaiting, true},
		{JobStatusSubmitted, JobStatusReady, true},
		{JobStatusWaiting, JobStatusWaiting, true},
		{JobStatusWaiting, JobStatusExpired, true},
		{JobStatusWaiting, JobStatusSubmitted, false},
		{JobStatusReady, JobStatusWaiting, false},
		{JobStatusFailed, JobStatusReady, false},
		{JobStatusTimedOut, JobStatusCancelled, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			if got := tt.from.CanTransitionTo(tt.to); got != tt.valid {
				t.Errorf("Expected %v, got %v", tt.valid, got)
			}
		})
	}
}

func TestRemoteJobTransition(t *testing.T) {
	job := &RemoteJob{ID: "RID1", Status: JobStatusSubmitted}

	if err := job.Transition(JobStatusWaiting); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if err := job.Transition(JobStatusReady); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if err := job.Transition(JobStatusWaiting); err == nil {
		t.Errorf("Expected terminal job to refuse further transitions")
	}
	if job.Status != JobStatusReady {
		t.Errorf("Expected status to remain ready, got %s", job.Status)
	}
}

func TestProgramIsTranslated(t *testing.T) {
	if ProgramBlastn.IsTranslated() {
		t.Errorf("blastn is not translated")
	}
	if !ProgramBlastx.IsTranslated() || !ProgramTblastx.IsTranslated() {
		t.Errorf("blastx and tblastx are translated")
	}
}
