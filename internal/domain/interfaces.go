package domain

import (
	"context"
)

// SequenceSearcher runs one search against the remote alignment service
type SequenceSearcher interface {
	RunSearch(ctx context.Context, req SearchRequest) ([]HitRecord, error)
}

// SubmissionBuilder turns approved sequences into a validated submission package
type SubmissionBuilder interface {
	BuildSubmission(ctx context.Context, records []SequenceRecord, submitter SubmitterInfo) (*SubmissionResult, error)
}

// ConfigManager defines the interface for configuration management
type ConfigManager interface {
	GetConfig() *Config
	GetServerConfig() *ServerConfig
	GetBlastConfig() *BlastConfig
	GetTbl2asnConfig() *Tbl2asnConfig
	Reload() error
	Validate() error
	IsProduction() bool
	IsDevelopment() bool
}
