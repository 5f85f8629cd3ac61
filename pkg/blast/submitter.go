package blast

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/clone-sequence-server/internal/domain"
)

// maxBodyBytes bounds how much of any remote response is read
const maxBodyBytes = 32 << 20

var (
	ridPattern  = regexp.MustCompile(`RID = (\S+)`)
	rtoePattern = regexp.MustCompile(`RTOE = (\d+)`)
)

var defaultDatabases = map[string]string{
	string(domain.ProgramBlastn):  "nt",
	string(domain.ProgramBlastx):  "nr",
	string(domain.ProgramTblastx): "nt",
}

// Default word sizes when none is configured for a program
const (
	nucleotideWordSize = 11
	translatedWordSize = 3
)

// JobSubmitter starts remote search jobs
type JobSubmitter struct {
	baseURL    string
	httpClient *http.Client
	limiter    *RateLimiter
	clock      Clock
	config     domain.BlastConfig
	logger     *logrus.Logger
}

// NewJobSubmitter creates a submitter sharing the given limiter
func NewJobSubmitter(config domain.BlastConfig, httpClient *http.Client, limiter *RateLimiter, clock Clock, logger *logrus.Logger) *JobSubmitter {
	return &JobSubmitter{
		baseURL:    config.BaseURL,
		httpClient: httpClient,
		limiter:    limiter,
		clock:      clock,
		config:     config,
		logger:     logger,
	}
}

// ResolveDatabase picks the target database. An explicit value other than
// "auto" wins; otherwise the per-program default applies.
func (s *JobSubmitter) ResolveDatabase(program domain.Program, requested string) string {
	requested = strings.TrimSpace(requested)
	if requested != "" && !strings.EqualFold(requested, "auto") {
		return requested
	}
	if db, ok := s.config.DefaultDatabases[string(program)]; ok && db != "" {
		return db
	}
	return defaultDatabases[string(program)]
}

func (s *JobSubmitter) wordSize(program domain.Program) int {
	if ws, ok := s.config.WordSizes[string(program)]; ok && ws > 0 {
		return ws
	}
	if program.IsTranslated() {
		return translatedWordSize
	}
	return nucleotideWordSize
}

// Submit sends the put request and returns the remote job in the submitted
// state. The request must already be normalized.
func (s *JobSubmitter) Submit(ctx context.Context, req domain.SearchRequest) (*domain.RemoteJob, error) {
	database := s.ResolveDatabase(req.Program, req.Database)

	form := url.Values{}
	form.Set("CMD", "Put")
	form.Set("PROGRAM", string(req.Program))
	form.Set("DATABASE", database)
	form.Set("QUERY", req.Sequence)
	form.Set("FORMAT_TYPE", "XML")
	form.Set("HITLIST_SIZE", strconv.Itoa(s.config.MaxHits))
	form.Set("EXPECT", strconv.FormatFloat(s.config.ExpectThreshold, 'g', -1, 64))
	form.Set("WORD_SIZE", strconv.Itoa(s.wordSize(req.Program)))
	if s.config.Tool != "" {
		form.Set("TOOL", s.config.Tool)
	}
	if s.config.Email != "" {
		form.Set("EMAIL", s.config.Email)
	}

	if err := s.limiter.Acquire(ctx); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrCancelled, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, domain.NewSubmissionError("submit", 0, "", err)
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.httpClient.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %w", domain.ErrCancelled, ctx.Err())
		}
		return nil, domain.NewSubmissionError("submit", 0, "", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, domain.NewSubmissionError("submit", resp.StatusCode, "", err)
	}
	body := string(raw)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, domain.NewSubmissionError("submit", resp.StatusCode, body, nil)
	}

	m := ridPattern.FindStringSubmatch(body)
	if m == nil {
		return nil, domain.NewProtocolError("no job identifier in submit response", body)
	}

	job := &domain.RemoteJob{
		ID:          m[1],
		Program:     req.Program,
		Database:    database,
		SubmittedAt: s.clock.Now(),
		Status:      domain.JobStatusSubmitted,
	}
	if e := rtoePattern.FindStringSubmatch(body); e != nil {
		if secs, err := strconv.Atoi(e[1]); err == nil {
			job.EstimatedIn = time.Duration(secs) * time.Second
		}
	}

	s.logger.WithFields(logrus.Fields{
		"job_id":   job.ID,
		"program":  job.Program,
		"database": job.Database,
		"rtoe":     job.EstimatedIn,
	}).Info("Submitted remote search job")

	return job, nil
}
