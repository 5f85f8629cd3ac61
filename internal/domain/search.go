package domain

import (
	"fmt"
	"strings"
	"time"
)

// Program is the alignment program requested from the remote service
type Program string

const (
	ProgramBlastn  Program = "blastn"  // nucleotide vs nucleotide
	ProgramBlastx  Program = "blastx"  // translated query vs protein
	ProgramTblastx Program = "tblastx" // translated query vs translated database
)

// ParseProgram normalizes a program name. Empty input selects blastn.
func ParseProgram(s string) (Program, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "blastn", "nucleotide":
		return ProgramBlastn, nil
	case "blastx":
		return ProgramBlastx, nil
	case "tblastx":
		return ProgramTblastx, nil
	}
	return "", NewValidationError("program", fmt.Sprintf("unsupported program %q", s), s)
}

// IsTranslated reports whether the program translates the query
func (p Program) IsTranslated() bool {
	return p == ProgramBlastx || p == ProgramTblastx
}

// SearchRequest is one sequence search against the remote alignment service
type SearchRequest struct {
	Sequence string  `json:"sequence" yaml:"sequence"`
	Program  Program `json:"program" yaml:"program"`
	Database string  `json:"database,omitempty" yaml:"database,omitempty"` // empty or "auto" selects the program default
}

// JobStatus is the lifecycle state of a remote job
type JobStatus string

const (
	JobStatusSubmitted JobStatus = "submitted"
	JobStatusWaiting   JobStatus = "waiting"
	JobStatusReady     JobStatus = "ready"
	JobStatusFailed    JobStatus = "failed"
	JobStatusExpired   JobStatus = "expired"
	JobStatusTimedOut  JobStatus = "timed_out"
	JobStatusCancelled JobStatus = "cancelled"
)

// IsTerminal reports whether no further polling may happen in this state
func (s JobStatus) IsTerminal() bool {
	switch s {
	case JobStatusReady, JobStatusFailed, JobStatusExpired, JobStatusTimedOut, JobStatusCancelled:
		return true
	}
	return false
}

// CanTransitionTo checks if state transition is valid
// Valid transitions:
//
//	submitted -> waiting | any terminal
//	waiting   -> waiting | any terminal
//	terminal  -> (none)
func (s JobStatus) CanTransitionTo(next JobStatus) bool {
	switch s {
	case JobStatusSubmitted, JobStatusWaiting:
		return next == JobStatusWaiting || next.IsTerminal()
	}
	return false
}

// RemoteJob tracks one asynchronous search on the remote service.
// Created by the submitter; only the polling engine mutates it afterwards.
type RemoteJob struct {
	ID          string        `json:"id"`
	Program     Program       `json:"program"`
	Database    string        `json:"database"`
	SubmittedAt time.Time     `json:"submitted_at"`
	EstimatedIn time.Duration `json:"estimated_in,omitempty"` // remote estimate of time to completion, zero if absent
	Attempts    int           `json:"attempts"`
	Status      JobStatus     `json:"status"`
}

// Transition moves the job to next, refusing moves out of a terminal state.
func (j *RemoteJob) Transition(next JobStatus) error {
	if !j.Status.CanTransitionTo(next) {
		return fmt.Errorf("job %s: invalid transition %s -> %s", j.ID, j.Status, next)
	}
	j.Status = next
	return nil
}

// HitRecord is one ranked hit returned by the alignment service.
// Fields the plain-text format does not expose are left empty.
type HitRecord struct {
	Rank            int    `json:"rank"`
	Accession       string `json:"accession"`
	Description     string `json:"description"`
	Organism        string `json:"organism,omitempty"`
	Length          int    `json:"length,omitempty"`
	Start           string `json:"start,omitempty"`
	End             string `json:"end,omitempty"`
	EValue          string `json:"evalue"`
	Score           string `json:"score"`
	PercentIdentity string `json:"percent_identity,omitempty"`
}
