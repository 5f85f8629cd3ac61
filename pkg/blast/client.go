package blast

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"

	"github.com/clone-sequence-server/internal/domain"
)

// DefaultBaseURL is the public endpoint of the remote alignment service
const DefaultBaseURL = "https://blast.ncbi.nlm.nih.gov/Blast.cgi"

// Client runs searches against the remote alignment service: validate,
// submit, poll and parse, with all outbound traffic spaced by one limiter.
type Client struct {
	config    domain.BlastConfig
	submitter *JobSubmitter
	poller    *Poller
	breaker   *gobreaker.CircuitBreaker
	limiter   *RateLimiter
	logger    *logrus.Logger
}

// Option customizes a Client
type Option func(*clientOptions)

type clientOptions struct {
	httpClient *http.Client
	clock      Clock
	limiter    *RateLimiter
}

// WithHTTPClient replaces the HTTP client used for every request
func WithHTTPClient(c *http.Client) Option {
	return func(o *clientOptions) { o.httpClient = c }
}

// WithClock replaces the clock used for spacing and backoff
func WithClock(c Clock) Option {
	return func(o *clientOptions) { o.clock = c }
}

// WithRateLimiter shares a limiter between clients. Clients built from the
// same limiter never exceed its rate together.
func WithRateLimiter(l *RateLimiter) Option {
	return func(o *clientOptions) { o.limiter = l }
}

// ApplyDefaults fills zero values with the service defaults
func ApplyDefaults(config domain.BlastConfig) domain.BlastConfig {
	if config.BaseURL == "" {
		config.BaseURL = DefaultBaseURL
	}
	if config.Timeout == 0 {
		config.Timeout = 60 * time.Second
	}
	if config.MinInterval == 0 {
		config.MinInterval = DefaultMinInterval
	}
	if config.WaitingDelay == 0 {
		config.WaitingDelay = 20 * time.Second
	}
	if config.AmbiguousDelay == 0 {
		config.AmbiguousDelay = 5 * time.Second
	}
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = 60
	}
	if config.MaxHits <= 0 {
		config.MaxHits = DefaultMaxHits
	}
	if config.ExpectThreshold <= 0 {
		config.ExpectThreshold = 10
	}
	if config.MaxConcurrency <= 0 {
		config.MaxConcurrency = 4
	}
	if config.CircuitBreaker.MaxRequests == 0 {
		config.CircuitBreaker.MaxRequests = 1
	}
	if config.CircuitBreaker.Interval == 0 {
		config.CircuitBreaker.Interval = 60 * time.Second
	}
	if config.CircuitBreaker.Timeout == 0 {
		config.CircuitBreaker.Timeout = 60 * time.Second
	}
	if config.CircuitBreaker.FailureThreshold == 0 {
		config.CircuitBreaker.FailureThreshold = 5
	}
	return config
}

// NewClient creates a search client
func NewClient(config domain.BlastConfig, logger *logrus.Logger, opts ...Option) *Client {
	config = ApplyDefaults(config)
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	o := clientOptions{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.clock == nil {
		o.clock = SystemClock()
	}
	if o.httpClient == nil {
		o.httpClient = &http.Client{Timeout: config.Timeout}
	}
	if o.limiter == nil {
		o.limiter = NewRateLimiter(config.MinInterval, o.clock)
	}

	parser := NewResultParser(config.MaxHits, logger)
	threshold := config.CircuitBreaker.FailureThreshold

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "blast",
		MaxRequests: config.CircuitBreaker.MaxRequests,
		Interval:    config.CircuitBreaker.Interval,
		Timeout:     config.CircuitBreaker.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		// only transport failures say anything about the remote service's health
		IsSuccessful: func(err error) bool {
			var subErr *domain.SubmissionError
			var protoErr *domain.ProtocolError
			return !errors.As(err, &subErr) && !errors.As(err, &protoErr)
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.WithFields(logrus.Fields{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			}).Warn("Circuit breaker state changed")
		},
	})

	return &Client{
		config:    config,
		submitter: NewJobSubmitter(config, o.httpClient, o.limiter, o.clock, logger),
		poller:    NewPoller(config, o.httpClient, o.limiter, o.clock, parser, logger),
		breaker:   breaker,
		limiter:   o.limiter,
		logger:    logger,
	}
}

// Config returns the effective configuration after defaults
func (c *Client) Config() domain.BlastConfig {
	return c.config
}

// ResolveDatabase exposes the database that a request would be run against
func (c *Client) ResolveDatabase(program domain.Program, requested string) string {
	return c.submitter.ResolveDatabase(program, requested)
}

// BreakerState reports the circuit breaker state for health checks
func (c *Client) BreakerState() string {
	return c.breaker.State().String()
}

// RunSearch validates the request, submits it and polls until the remote
// job reaches a terminal state, returning at most MaxHits ranked hits.
func (c *Client) RunSearch(ctx context.Context, req domain.SearchRequest) ([]domain.HitRecord, error) {
	_, hits, err := c.Search(ctx, req)
	return hits, err
}

// Search is RunSearch that also hands back the remote job. The job is nil
// when the request never reached the remote service.
func (c *Client) Search(ctx context.Context, req domain.SearchRequest) (*domain.RemoteJob, []domain.HitRecord, error) {
	normalized, err := NormalizeRequest(req)
	if err != nil {
		return nil, nil, err
	}

	var job *domain.RemoteJob
	result, err := c.breaker.Execute(func() (interface{}, error) {
		submitted, err := c.submitter.Submit(ctx, normalized)
		if err != nil {
			return nil, err
		}
		job = submitted
		return c.poller.Wait(ctx, job)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, nil, domain.NewSubmissionError("submit", 0, "", err)
		}
		return job, nil, err
	}

	return job, result.([]domain.HitRecord), nil
}

var _ domain.SequenceSearcher = (*Client)(nil)
