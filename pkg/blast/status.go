package blast

import "strings"

// JobState is the classification of a single poll response
type JobState int

const (
	StateAmbiguous JobState = iota
	StateWaiting
	StateFailed
	StateExpired
	StateReady
)

func (s JobState) String() string {
	switch s {
	case StateWaiting:
		return "waiting"
	case StateFailed:
		return "failed"
	case StateExpired:
		return "expired"
	case StateReady:
		return "ready"
	}
	return "ambiguous"
}

// Classify maps a poll response body onto a job state. The first matching
// marker wins; a body matching none of them is ambiguous.
func Classify(body string) JobState {
	switch {
	case strings.Contains(body, "Status=WAITING"):
		return StateWaiting
	case strings.Contains(body, "Status=FAILED"):
		return StateFailed
	case strings.Contains(body, "Status=UNKNOWN"):
		return StateExpired
	case strings.Contains(body, "Status=READY"), strings.Contains(body, "<BlastOutput"):
		return StateReady
	}
	return StateAmbiguous
}
