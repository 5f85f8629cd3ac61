package blast

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clone-sequence-server/internal/domain"
)

const submitBody = `<html><body>
<!--QBlastInfoBegin
    RID = RID42XYZ
    RTOE = 12
QBlastInfoEnd
--></body></html>`

const waitingBody = `<!--QBlastInfoBegin
	Status=WAITING
QBlastInfoEnd
-->`

// mockService plays back poll responses in order, repeating the last one
type mockService struct {
	t          *testing.T
	mu         sync.Mutex
	submitCode int
	submitBody string
	polls      []string
	pollCodes  []int
	putCount   int32
	getCount   int32
	lastForm   map[string]string
	onPoll     func(n int)
}

func (m *mockService) handler(w http.ResponseWriter, r *http.Request) {
	assert.NoError(m.t, r.ParseForm())

	switch r.Form.Get("CMD") {
	case "Put":
		atomic.AddInt32(&m.putCount, 1)
		m.mu.Lock()
		m.lastForm = map[string]string{}
		for k := range r.PostForm {
			m.lastForm[k] = r.PostForm.Get(k)
		}
		m.mu.Unlock()
		code := m.submitCode
		if code == 0 {
			code = http.StatusOK
		}
		w.WriteHeader(code)
		_, _ = w.Write([]byte(m.submitBody))
	case "Get":
		n := int(atomic.AddInt32(&m.getCount, 1))
		assert.Equal(m.t, "RID42XYZ", r.Form.Get("RID"))
		assert.Equal(m.t, "XML", r.Form.Get("FORMAT_TYPE"))
		if m.onPoll != nil {
			m.onPoll(n)
		}
		idx := n - 1
		if idx >= len(m.polls) {
			idx = len(m.polls) - 1
		}
		if idx < len(m.pollCodes) && m.pollCodes[idx] != 0 {
			w.WriteHeader(m.pollCodes[idx])
		}
		_, _ = w.Write([]byte(m.polls[idx]))
	default:
		w.WriteHeader(http.StatusBadRequest)
	}
}

func newTestClient(t *testing.T, svc *mockService, cfg domain.BlastConfig) (*Client, *fakeClock) {
	t.Helper()
	svc.t = t
	if svc.submitBody == "" {
		svc.submitBody = submitBody
	}
	server := httptest.NewServer(http.HandlerFunc(svc.handler))
	t.Cleanup(server.Close)

	cfg.BaseURL = server.URL
	clock := newFakeClock()
	client := NewClient(cfg, quietLogger(), WithClock(clock), WithHTTPClient(server.Client()))
	return client, clock
}

const testSequence = "ATGCATGCATGCATGCATGC"

func TestClient_RunSearchEndToEnd(t *testing.T) {
	svc := &mockService{polls: []string{
		waitingBody,
		xmlReport(fixtureHit{"XY123456.1", "Synthetic construct clone 7", 20, "40.1", "3e-08", 20, 20, 1, 20}),
	}}
	client, _ := newTestClient(t, svc, domain.BlastConfig{})

	job, hits, err := client.Search(context.Background(), domain.SearchRequest{
		Sequence: testSequence,
		Program:  domain.ProgramBlastn,
	})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, 1, hits[0].Rank)
	assert.Equal(t, "XY123456.1", hits[0].Accession)
	assert.Equal(t, "3e-08", hits[0].EValue)

	require.NotNil(t, job)
	assert.Equal(t, "RID42XYZ", job.ID)
	assert.Equal(t, domain.JobStatusReady, job.Status)
	assert.Equal(t, 2, job.Attempts)
	assert.Equal(t, 12*time.Second, job.EstimatedIn)

	svc.mu.Lock()
	form := svc.lastForm
	svc.mu.Unlock()
	assert.Equal(t, "blastn", form["PROGRAM"])
	assert.Equal(t, "nt", form["DATABASE"])
	assert.Equal(t, testSequence, form["QUERY"])
	assert.Equal(t, "XML", form["FORMAT_TYPE"])
	assert.Equal(t, "3", form["HITLIST_SIZE"])
	assert.Equal(t, "11", form["WORD_SIZE"])
	assert.Equal(t, "10", form["EXPECT"])
	_, hasTool := form["TOOL"]
	assert.False(t, hasTool)
}

func TestClient_WaitingWaitingReady(t *testing.T) {
	svc := &mockService{polls: []string{waitingBody, waitingBody, xmlReport(threeHits...)}}
	client, clock := newTestClient(t, svc, domain.BlastConfig{})

	hits, err := client.RunSearch(context.Background(), domain.SearchRequest{Sequence: testSequence})
	require.NoError(t, err)
	require.Len(t, hits, 3)
	assert.Equal(t, threeHits[2].accession, hits[2].Accession)

	assert.Equal(t, int32(3), atomic.LoadInt32(&svc.getCount))
	assert.Equal(t, 2, clock.countSleeps(20*time.Second))
	assert.Equal(t, 1, clock.countSleeps(12*time.Second), "initial delay from RTOE")
}

func TestClient_PollTimeout(t *testing.T) {
	svc := &mockService{polls: []string{waitingBody}}
	client, _ := newTestClient(t, svc, domain.BlastConfig{MaxAttempts: 5})

	job, hits, err := client.Search(context.Background(), domain.SearchRequest{Sequence: testSequence})
	assert.Nil(t, hits)
	require.ErrorIs(t, err, domain.ErrPollTimeout)
	assert.Equal(t, int32(5), atomic.LoadInt32(&svc.getCount))
	assert.Equal(t, domain.JobStatusTimedOut, job.Status)

	var jobErr *domain.JobError
	require.True(t, errors.As(err, &jobErr))
	assert.Equal(t, "RID42XYZ", jobErr.JobID)
	assert.Equal(t, 5, jobErr.Attempts)
	assert.Contains(t, jobErr.Diagnostic, "Status=WAITING")
}

func TestClient_TerminalStates(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		kind   error
		status domain.JobStatus
	}{
		{"failed", "Status=FAILED", domain.ErrRemoteJobFailed, domain.JobStatusFailed},
		{"expired", "Status=UNKNOWN", domain.ErrJobExpired, domain.JobStatusExpired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockService{polls: []string{waitingBody, tt.body}}
			client, _ := newTestClient(t, svc, domain.BlastConfig{})

			job, _, err := client.Search(context.Background(), domain.SearchRequest{Sequence: testSequence})
			require.ErrorIs(t, err, tt.kind)
			assert.Equal(t, tt.status, job.Status)
			assert.Equal(t, 2, job.Attempts)
		})
	}
}

func TestClient_AmbiguousAndTransientErrors(t *testing.T) {
	svc := &mockService{
		polls:     []string{"<html>busy</html>", "gateway", xmlReport(threeHits[:1]...)},
		pollCodes: []int{0, http.StatusBadGateway, 0},
	}
	client, clock := newTestClient(t, svc, domain.BlastConfig{})

	hits, err := client.RunSearch(context.Background(), domain.SearchRequest{Sequence: testSequence})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, int32(3), atomic.LoadInt32(&svc.getCount))
	assert.Equal(t, 2, clock.countSleeps(5*time.Second))
}

func TestClient_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	svc := &mockService{
		polls:  []string{waitingBody},
		onPoll: func(n int) { cancel() },
	}
	client, _ := newTestClient(t, svc, domain.BlastConfig{})

	job, _, err := client.Search(ctx, domain.SearchRequest{Sequence: testSequence})
	require.ErrorIs(t, err, domain.ErrCancelled)
	assert.Equal(t, domain.JobStatusCancelled, job.Status)
	assert.Equal(t, int32(1), atomic.LoadInt32(&svc.getCount))
}

func TestClient_ValidationBeforeNetwork(t *testing.T) {
	svc := &mockService{polls: []string{waitingBody}}
	client, _ := newTestClient(t, svc, domain.BlastConfig{})

	_, err := client.RunSearch(context.Background(), domain.SearchRequest{Sequence: "ATGC"})
	var ve *domain.ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, int32(0), atomic.LoadInt32(&svc.putCount))
}

func TestClient_SubmitErrors(t *testing.T) {
	t.Run("non-2xx", func(t *testing.T) {
		svc := &mockService{submitCode: http.StatusServiceUnavailable, submitBody: "try later"}
		client, _ := newTestClient(t, svc, domain.BlastConfig{})

		_, err := client.RunSearch(context.Background(), domain.SearchRequest{Sequence: testSequence})
		var subErr *domain.SubmissionError
		require.True(t, errors.As(err, &subErr))
		assert.Equal(t, http.StatusServiceUnavailable, subErr.StatusCode)
		assert.Equal(t, "try later", subErr.Body)
		assert.Equal(t, int32(0), atomic.LoadInt32(&svc.getCount))
	})

	t.Run("missing job id", func(t *testing.T) {
		svc := &mockService{submitBody: "<html>no id here</html>"}
		client, _ := newTestClient(t, svc, domain.BlastConfig{})

		_, err := client.RunSearch(context.Background(), domain.SearchRequest{Sequence: testSequence})
		var protoErr *domain.ProtocolError
		require.True(t, errors.As(err, &protoErr))
	})
}

func TestClient_CircuitBreakerOpens(t *testing.T) {
	svc := &mockService{submitCode: http.StatusInternalServerError, submitBody: "boom"}
	client, _ := newTestClient(t, svc, domain.BlastConfig{
		CircuitBreaker: domain.CircuitBreakerConf{FailureThreshold: 2, Timeout: time.Hour},
	})

	for i := 0; i < 2; i++ {
		_, err := client.RunSearch(context.Background(), domain.SearchRequest{Sequence: testSequence})
		require.Error(t, err)
	}
	assert.Equal(t, "open", client.BreakerState())

	_, err := client.RunSearch(context.Background(), domain.SearchRequest{Sequence: testSequence})
	var subErr *domain.SubmissionError
	require.True(t, errors.As(err, &subErr))
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, int32(2), atomic.LoadInt32(&svc.putCount))
}

func TestClient_JobFailuresDoNotTripBreaker(t *testing.T) {
	svc := &mockService{polls: []string{"Status=FAILED"}}
	client, _ := newTestClient(t, svc, domain.BlastConfig{
		CircuitBreaker: domain.CircuitBreakerConf{FailureThreshold: 1},
	})

	for i := 0; i < 3; i++ {
		_, err := client.RunSearch(context.Background(), domain.SearchRequest{Sequence: testSequence})
		require.ErrorIs(t, err, domain.ErrRemoteJobFailed)
	}
	assert.Equal(t, "closed", client.BreakerState())
}

func TestClient_DatabaseAndToolSettings(t *testing.T) {
	svc := &mockService{polls: []string{xmlReport()}}
	client, _ := newTestClient(t, svc, domain.BlastConfig{
		Tool:             "cloneseq",
		Email:            "lab@example.org",
		DefaultDatabases: map[string]string{"blastx": "swissprot"},
	})

	hits, err := client.RunSearch(context.Background(), domain.SearchRequest{Sequence: testSequence, Program: "blastx"})
	require.NoError(t, err)
	assert.Empty(t, hits)

	svc.mu.Lock()
	form := svc.lastForm
	svc.mu.Unlock()
	assert.Equal(t, "swissprot", form["DATABASE"])
	assert.Equal(t, "3", form["WORD_SIZE"])
	assert.Equal(t, "cloneseq", form["TOOL"])
	assert.Equal(t, "lab@example.org", form["EMAIL"])

	assert.Equal(t, "nr", NewClient(domain.BlastConfig{}, quietLogger()).ResolveDatabase(domain.ProgramBlastx, "auto"))
	assert.Equal(t, "nt", client.ResolveDatabase(domain.ProgramTblastx, ""))
	assert.Equal(t, "refseq_rna", client.ResolveDatabase(domain.ProgramBlastn, "refseq_rna"))
}

func TestJobSubmitter_WordSize(t *testing.T) {
	clock := newFakeClock()
	submitter := NewJobSubmitter(domain.BlastConfig{
		WordSizes: map[string]int{"blastn": 28},
	}, http.DefaultClient, NewRateLimiter(0, clock), clock, quietLogger())

	assert.Equal(t, 28, submitter.wordSize(domain.ProgramBlastn))
	assert.Equal(t, translatedWordSize, submitter.wordSize(domain.ProgramBlastx))
	assert.Equal(t, translatedWordSize, submitter.wordSize(domain.ProgramTblastx))

	defaults := NewJobSubmitter(domain.BlastConfig{}, http.DefaultClient, NewRateLimiter(0, clock), clock, quietLogger())
	assert.Equal(t, nucleotideWordSize, defaults.wordSize(domain.ProgramBlastn))
}
