package health

import (
	"context"
	"os/exec"
)

// Pinger is anything that can verify its backend connection
type Pinger interface {
	Ping(ctx context.Context) error
}

// MetadataReporter is implemented by components that can describe their
// current usage, such as connection pool or cache statistics
type MetadataReporter interface {
	HealthMetadata() map[string]interface{}
}

func metadataOf(component interface{}) map[string]interface{} {
	if reporter, ok := component.(MetadataReporter); ok {
		return reporter.HealthMetadata()
	}
	return nil
}

// BreakerReporter exposes a circuit breaker state
type BreakerReporter interface {
	BreakerState() string
}

// JournalHealthCheck fails the service when the journal database is unreachable
type JournalHealthCheck struct {
	Store Pinger
}

func (j *JournalHealthCheck) Name() string { return "journal" }

func (j *JournalHealthCheck) Check(ctx context.Context) ComponentHealth {
	meta := metadataOf(j.Store)
	if err := j.Store.Ping(ctx); err != nil {
		return ComponentHealth{Status: HealthStateUnhealthy, Message: "journal database unreachable", Error: err.Error(), Metadata: meta}
	}
	return ComponentHealth{Status: HealthStateHealthy, Metadata: meta}
}

// CacheHealthCheck only warns: a lost Redis tier falls back to memory.
type CacheHealthCheck struct {
	Cache Pinger
}

func (c *CacheHealthCheck) Name() string { return "cache" }

func (c *CacheHealthCheck) Check(ctx context.Context) ComponentHealth {
	meta := metadataOf(c.Cache)
	if err := c.Cache.Ping(ctx); err != nil {
		return ComponentHealth{Status: HealthStateWarning, Message: "redis tier unavailable", Error: err.Error(), Metadata: meta}
	}
	return ComponentHealth{Status: HealthStateHealthy, Metadata: meta}
}

// RemoteServiceHealthCheck reports the remote alignment service's breaker
type RemoteServiceHealthCheck struct {
	Breaker BreakerReporter
}

func (r *RemoteServiceHealthCheck) Name() string { return "remote_search" }

func (r *RemoteServiceHealthCheck) Check(context.Context) ComponentHealth {
	state := r.Breaker.BreakerState()
	result := ComponentHealth{
		Status:   HealthStateHealthy,
		Metadata: map[string]interface{}{"circuit": state},
	}
	if state != "closed" {
		result.Status = HealthStateWarning
		result.Message = "remote service circuit is " + state
	}
	return result
}

// ToolHealthCheck verifies the annotation tool binary can be found
type ToolHealthCheck struct {
	Binary string
}

func (t *ToolHealthCheck) Name() string { return "tbl2asn" }

func (t *ToolHealthCheck) Check(context.Context) ComponentHealth {
	path, err := exec.LookPath(t.Binary)
	if err != nil {
		return ComponentHealth{Status: HealthStateWarning, Message: "annotation tool not found", Error: err.Error()}
	}
	return ComponentHealth{Status: HealthStateHealthy, Metadata: map[string]interface{}{"path": path}}
}
