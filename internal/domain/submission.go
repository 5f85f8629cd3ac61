package domain

// SequenceRecord is one reviewer-approved clone sequence headed for submission
type SequenceRecord struct {
	ID              string `json:"id" yaml:"id"`
	Organism        string `json:"organism" yaml:"organism"`
	CloneName       string `json:"clone_name" yaml:"clone_name"`
	Sequence        string `json:"sequence" yaml:"sequence"`
	IsolationSource string `json:"isolation_source,omitempty" yaml:"isolation_source,omitempty"`
	CollectionDate  string `json:"collection_date,omitempty" yaml:"collection_date,omitempty"`
	Country         string `json:"country,omitempty" yaml:"country,omitempty"`
	CloneLibrary    string `json:"clone_library,omitempty" yaml:"clone_library,omitempty"`
}

// SubmitterInfo describes the contact rendered into the submission template
// when no fixed template file is configured.
type SubmitterInfo struct {
	FirstName   string `json:"first_name" yaml:"first_name"`
	LastName    string `json:"last_name" yaml:"last_name"`
	Email       string `json:"email" yaml:"email"`
	Affiliation string `json:"affiliation" yaml:"affiliation"`
	Department  string `json:"department,omitempty" yaml:"department,omitempty"`
	Street      string `json:"street,omitempty" yaml:"street,omitempty"`
	City        string `json:"city,omitempty" yaml:"city,omitempty"`
	State       string `json:"state,omitempty" yaml:"state,omitempty"`
	PostalCode  string `json:"postal_code,omitempty" yaml:"postal_code,omitempty"`
	Country     string `json:"country,omitempty" yaml:"country,omitempty"`
	Title       string `json:"title,omitempty" yaml:"title,omitempty"` // citation title
}

// CheckOutcome is the result of one success check on a tool run
type CheckOutcome string

const (
	CheckPass    CheckOutcome = "pass"
	CheckFail    CheckOutcome = "fail"
	CheckSkipped CheckOutcome = "skipped"
)

// CheckResult records one of the checks used to decide whether a tool run succeeded
type CheckResult struct {
	Name    string       `json:"name"`
	Outcome CheckOutcome `json:"outcome"`
	Detail  string       `json:"detail,omitempty"`
}

// SubmissionResult is the outcome of one submission attempt. Artifact is
// only set on success; the workspace that produced it no longer exists.
type SubmissionResult struct {
	Success     bool          `json:"success"`
	Artifact    []byte        `json:"artifact,omitempty"`
	Errors      []string      `json:"errors"`
	Warnings    []string      `json:"warnings"`
	Stdout      string        `json:"stdout,omitempty"`
	Stderr      string        `json:"stderr,omitempty"`
	Checks      []CheckResult `json:"checks,omitempty"`
	WorkspaceID string        `json:"workspace_id"`
}
