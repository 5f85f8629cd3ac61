package health

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

type HealthState string

const (
	HealthStateHealthy   HealthState = "healthy"
	HealthStateWarning   HealthState = "warning"
	HealthStateUnhealthy HealthState = "unhealthy"
)

// ComponentHealth is the result of one check
type ComponentHealth struct {
	Name     string                 `json:"name"`
	Status   HealthState            `json:"status"`
	Message  string                 `json:"message,omitempty"`
	Duration time.Duration          `json:"duration"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
	Error    string                 `json:"error,omitempty"`
}

// HealthStatus aggregates every registered check
type HealthStatus struct {
	Overall    HealthState                `json:"status"`
	Timestamp  time.Time                  `json:"timestamp"`
	Version    string                     `json:"version"`
	Uptime     string                     `json:"uptime"`
	Components map[string]ComponentHealth `json:"components"`
}

type HealthCheck interface {
	Name() string
	Check(ctx context.Context) ComponentHealth
}

// Checker runs the registered checks on demand
type Checker struct {
	timeout time.Duration
	version string
	started time.Time
	logger  *logrus.Logger

	mutex  sync.RWMutex
	checks map[string]HealthCheck
}

// NewChecker creates a checker whose runs are bounded by timeout
func NewChecker(version string, timeout time.Duration, logger *logrus.Logger) *Checker {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Checker{
		timeout: timeout,
		version: version,
		started: time.Now(),
		logger:  logger,
		checks:  make(map[string]HealthCheck),
	}
}

func (h *Checker) RegisterCheck(check HealthCheck) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	h.checks[check.Name()] = check
}

// Run executes all checks in parallel. Any unhealthy component makes the
// whole status unhealthy; warnings only degrade it.
func (h *Checker) Run(ctx context.Context) *HealthStatus {
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	h.mutex.RLock()
	checks := make([]HealthCheck, 0, len(h.checks))
	for _, check := range h.checks {
		checks = append(checks, check)
	}
	h.mutex.RUnlock()

	results := make(chan ComponentHealth, len(checks))
	var wg sync.WaitGroup
	for _, check := range checks {
		wg.Add(1)
		go func(c HealthCheck) {
			defer wg.Done()
			start := time.Now()
			result := c.Check(ctx)
			result.Name = c.Name()
			result.Duration = time.Since(start)
			results <- result
		}(check)
	}
	wg.Wait()
	close(results)

	overall := HealthStateHealthy
	components := make(map[string]ComponentHealth, len(checks))
	var unhealthy []string
	for result := range results {
		components[result.Name] = result
		switch result.Status {
		case HealthStateUnhealthy:
			overall = HealthStateUnhealthy
			unhealthy = append(unhealthy, result.Name)
		case HealthStateWarning:
			if overall == HealthStateHealthy {
				overall = HealthStateWarning
			}
		}
	}

	if overall != HealthStateHealthy {
		h.logger.WithFields(logrus.Fields{
			"overall_status":       overall,
			"unhealthy_components": unhealthy,
		}).Warn("Health check completed with issues")
	}

	return &HealthStatus{
		Overall:    overall,
		Timestamp:  time.Now().UTC(),
		Version:    h.version,
		Uptime:     time.Since(h.started).Round(time.Second).String(),
		Components: components,
	}
}
