package blast

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/clone-sequence-server/internal/domain"
)

// Poller drives a submitted job to a terminal state
type Poller struct {
	baseURL        string
	httpClient     *http.Client
	limiter        *RateLimiter
	clock          Clock
	parser         *ResultParser
	waitingDelay   time.Duration
	ambiguousDelay time.Duration
	maxAttempts    int
	logger         *logrus.Logger
}

// NewPoller creates a poller sharing the given limiter
func NewPoller(config domain.BlastConfig, httpClient *http.Client, limiter *RateLimiter, clock Clock, parser *ResultParser, logger *logrus.Logger) *Poller {
	return &Poller{
		baseURL:        config.BaseURL,
		httpClient:     httpClient,
		limiter:        limiter,
		clock:          clock,
		parser:         parser,
		waitingDelay:   config.WaitingDelay,
		ambiguousDelay: config.AmbiguousDelay,
		maxAttempts:    config.MaxAttempts,
		logger:         logger,
	}
}

// Wait polls the job until it is ready, fails, expires, runs out of attempts
// or ctx is done. Every request counts as an attempt, including ones whose
// response could not be classified.
func (p *Poller) Wait(ctx context.Context, job *domain.RemoteJob) ([]domain.HitRecord, error) {
	if job.Status.IsTerminal() {
		return nil, fmt.Errorf("job %s is already %s", job.ID, job.Status)
	}

	log := p.logger.WithField("job_id", job.ID)

	if job.EstimatedIn > 0 && job.EstimatedIn < p.waitingDelay {
		if err := p.clock.Sleep(ctx, job.EstimatedIn); err != nil {
			return nil, p.cancel(job, err)
		}
	}

	var lastBody string
	for job.Attempts < p.maxAttempts {
		if err := p.limiter.Acquire(ctx); err != nil {
			return nil, p.cancel(job, err)
		}
		job.Attempts++

		state := StateAmbiguous
		body, err := p.fetch(ctx, job.ID)
		if err != nil {
			if ctx.Err() != nil {
				return nil, p.cancel(job, ctx.Err())
			}
			log.WithError(err).WithField("attempt", job.Attempts).Warn("Poll request failed")
			lastBody = err.Error()
		} else {
			lastBody = body
			state = Classify(body)
		}

		log.WithFields(logrus.Fields{
			"attempt": job.Attempts,
			"state":   state.String(),
		}).Debug("Polled remote job")

		var delay time.Duration
		switch state {
		case StateReady:
			_ = job.Transition(domain.JobStatusReady)
			hits := p.parser.Parse(body)
			log.WithFields(logrus.Fields{
				"attempts": job.Attempts,
				"hits":     len(hits),
			}).Info("Remote job ready")
			return hits, nil
		case StateFailed:
			_ = job.Transition(domain.JobStatusFailed)
			return nil, domain.NewJobError(job, domain.ErrRemoteJobFailed, body, nil)
		case StateExpired:
			_ = job.Transition(domain.JobStatusExpired)
			return nil, domain.NewJobError(job, domain.ErrJobExpired, body, nil)
		case StateWaiting:
			_ = job.Transition(domain.JobStatusWaiting)
			delay = p.waitingDelay
		default:
			delay = p.ambiguousDelay
		}

		if job.Attempts >= p.maxAttempts {
			break
		}
		if err := p.clock.Sleep(ctx, delay); err != nil {
			return nil, p.cancel(job, err)
		}
	}

	_ = job.Transition(domain.JobStatusTimedOut)
	log.WithField("attempts", job.Attempts).Warn("Remote job did not finish within the attempt limit")
	return nil, domain.NewJobError(job, domain.ErrPollTimeout, lastBody, nil)
}

func (p *Poller) cancel(job *domain.RemoteJob, cause error) error {
	_ = job.Transition(domain.JobStatusCancelled)
	return domain.NewJobError(job, domain.ErrCancelled, "", cause)
}

func (p *Poller) fetch(ctx context.Context, jobID string) (string, error) {
	params := url.Values{}
	params.Set("CMD", "Get")
	params.Set("FORMAT_TYPE", "XML")
	params.Set("RID", jobID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return "", err
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return "", err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("poll returned status %d", resp.StatusCode)
	}
	return string(raw), nil
}
