package tbl2asn

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/clone-sequence-server/internal/domain"
)

const (
	DefaultBinary    = "tbl2asn"
	DefaultTimeout   = 5 * time.Minute
	DefaultMaxOutput = 64 << 10

	// waitDelay bounds how long Wait blocks on output pipes after the process
	// group is killed. It only matters when a descendant escaped the group.
	waitDelay = 5 * time.Second

	stderrMarker = "error:"
	// longest stderr line kept as the failing check's detail
	maxMarkerLine = 512
)

// Check names, also used as the failure reason
const (
	CheckExitCode   = "exit_code"
	CheckStderrScan = "stderr_scan"
	CheckArtifact   = "artifact"
	ReasonTimeout   = "timeout"
)

// boundedBuffer keeps the first limit bytes written and discards the rest
type boundedBuffer struct {
	mu        sync.Mutex
	buf       strings.Builder
	limit     int
	truncated bool
}

func (b *boundedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	remaining := b.limit - b.buf.Len()
	if remaining < len(p) {
		b.truncated = true
		if remaining > 0 {
			b.buf.Write(p[:remaining])
		}
		return len(p), nil
	}
	b.buf.Write(p)
	return len(p), nil
}

func (b *boundedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func (b *boundedBuffer) Truncated() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.truncated
}

// markerScanner sees every stderr byte, including those the bounded buffer
// drops, and remembers the first line containing the error marker in any case.
// The marker's first byte does not recur in it, so a mismatch restarts the
// match from that byte alone.
type markerScanner struct {
	mu      sync.Mutex
	matched int
	line    []byte
	pending bool
	found   bool
	detail  string
}

func (m *markerScanner) Write(p []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, c := range p {
		if c == '\n' {
			m.endLine()
			continue
		}
		if len(m.line) < maxMarkerLine {
			m.line = append(m.line, c)
		}
		if m.found || m.pending {
			continue
		}

		lc := c
		if 'A' <= lc && lc <= 'Z' {
			lc += 'a' - 'A'
		}
		switch {
		case lc == stderrMarker[m.matched]:
			m.matched++
		case lc == stderrMarker[0]:
			m.matched = 1
		default:
			m.matched = 0
		}
		if m.matched == len(stderrMarker) {
			m.pending = true
		}
	}
	return len(p), nil
}

func (m *markerScanner) endLine() {
	if m.pending {
		m.found = true
		m.pending = false
		m.detail = strings.TrimSpace(string(m.line))
	}
	m.line = m.line[:0]
	m.matched = 0
}

// Marked reports whether the marker was seen and the line it appeared on
func (m *markerScanner) Marked() (bool, string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.pending {
		// output ended without a trailing newline
		m.endLine()
	}
	return m.found, m.detail
}

// Invocation is the outcome of one tool run
type Invocation struct {
	Success         bool
	Reason          string // first failing check in precedence order, empty on success
	ExitCode        int
	TimedOut        bool
	Stdout          string
	Stderr          string
	StdoutTruncated bool
	StderrTruncated bool
	ArtifactPath    string
	Checks          []domain.CheckResult
	Duration        time.Duration
}

// Invoker runs the annotation tool against a workspace
type Invoker struct {
	binary    string
	timeout   time.Duration
	maxOutput int
	extraArgs []string
	logger    *logrus.Logger
}

// NewInvoker creates an invoker from config, filling unset values with defaults
func NewInvoker(config domain.Tbl2asnConfig, logger *logrus.Logger) *Invoker {
	inv := &Invoker{
		binary:    config.BinaryPath,
		timeout:   config.Timeout,
		maxOutput: config.MaxOutputBytes,
		extraArgs: config.ExtraArgs,
		logger:    logger,
	}
	if inv.binary == "" {
		inv.binary = DefaultBinary
	}
	if inv.timeout <= 0 {
		inv.timeout = DefaultTimeout
	}
	if inv.maxOutput <= 0 {
		inv.maxOutput = DefaultMaxOutput
	}
	return inv
}

// Args builds the command line for a workspace
func (i *Invoker) Args(dir, templatePath string) []string {
	args := []string{
		"-p", dir,
		"-t", templatePath,
		"-V", "v",
		"-r", dir,
		"-Z", filepath.Join(dir, "discrepancy.txt"),
	}
	return append(args, i.extraArgs...)
}

// Run executes the tool. A tool failure is reported through the Invocation;
// the error is only set when the process could not be started.
func (i *Invoker) Run(ctx context.Context, dir, templatePath string) (*Invocation, error) {
	runCtx, cancel := context.WithTimeout(ctx, i.timeout)
	defer cancel()

	stdout := &boundedBuffer{limit: i.maxOutput}
	stderr := &boundedBuffer{limit: i.maxOutput}
	scanner := &markerScanner{}

	cmd := exec.CommandContext(runCtx, i.binary, i.Args(dir, templatePath)...)
	cmd.Dir = dir
	cmd.Stdout = stdout
	cmd.Stderr = io.MultiWriter(stderr, scanner)
	cmd.WaitDelay = waitDelay
	killProcessGroup(cmd)

	log := i.logger.WithFields(logrus.Fields{
		"binary": i.binary,
		"dir":    dir,
	})

	start := time.Now()
	err := cmd.Run()
	elapsed := time.Since(start)

	if err != nil && cmd.ProcessState == nil {
		return nil, fmt.Errorf("failed to start %s: %w", i.binary, err)
	}

	inv := &Invocation{
		ExitCode:        cmd.ProcessState.ExitCode(),
		TimedOut:        errors.Is(runCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil,
		Stdout:          stdout.String(),
		Stderr:          stderr.String(),
		StdoutTruncated: stdout.Truncated(),
		StderrTruncated: stderr.Truncated(),
		Duration:        elapsed,
	}

	if inv.TimedOut {
		inv.Checks = []domain.CheckResult{
			checkExitCode(inv, i.timeout),
			{Name: CheckStderrScan, Outcome: domain.CheckSkipped, Detail: "process timed out"},
			{Name: CheckArtifact, Outcome: domain.CheckSkipped, Detail: "process timed out"},
		}
	} else {
		var artifactCheck domain.CheckResult
		inv.ArtifactPath, artifactCheck = checkArtifact(dir)
		inv.Checks = []domain.CheckResult{
			checkExitCode(inv, i.timeout),
			checkStderr(scanner),
			artifactCheck,
		}
	}
	inv.Reason = failureReason(inv)
	inv.Success = inv.Reason == ""

	log.WithFields(logrus.Fields{
		"exit_code": inv.ExitCode,
		"timed_out": inv.TimedOut,
		"duration":  elapsed,
		"reason":    inv.Reason,
	}).Info("Annotation tool finished")

	return inv, nil
}

func checkExitCode(inv *Invocation, timeout time.Duration) domain.CheckResult {
	result := domain.CheckResult{Name: CheckExitCode, Outcome: domain.CheckPass}
	switch {
	case inv.TimedOut:
		result.Outcome = domain.CheckFail
		result.Detail = fmt.Sprintf("killed after %s", timeout)
	case inv.ExitCode != 0:
		result.Outcome = domain.CheckFail
		result.Detail = fmt.Sprintf("exit code %d", inv.ExitCode)
	}
	return result
}

// checkStderr fails when any stderr line contained "error:" regardless of
// case. Some tool versions report fatal problems there while still exiting 0.
func checkStderr(scanner *markerScanner) domain.CheckResult {
	if found, line := scanner.Marked(); found {
		return domain.CheckResult{
			Name:    CheckStderrScan,
			Outcome: domain.CheckFail,
			Detail:  line,
		}
	}
	return domain.CheckResult{Name: CheckStderrScan, Outcome: domain.CheckPass}
}

func checkArtifact(dir string) (string, domain.CheckResult) {
	matches, err := filepath.Glob(filepath.Join(dir, "*.sqn"))
	if err != nil || len(matches) == 0 {
		return "", domain.CheckResult{
			Name:    CheckArtifact,
			Outcome: domain.CheckFail,
			Detail:  "no .sqn file produced",
		}
	}
	return matches[0], domain.CheckResult{
		Name:    CheckArtifact,
		Outcome: domain.CheckPass,
		Detail:  filepath.Base(matches[0]),
	}
}

// failureReason applies the precedence timeout, exit code, stderr, artifact
func failureReason(inv *Invocation) string {
	if inv.TimedOut {
		return ReasonTimeout
	}
	for _, check := range inv.Checks {
		if check.Outcome == domain.CheckFail {
			return check.Name
		}
	}
	return ""
}
