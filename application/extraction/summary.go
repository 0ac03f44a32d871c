package extraction

import (
	"time"

	"brain2-extractor/domain/events"
)

// CompletionReason tells what finalized a session
type CompletionReason string

const (
	ReasonEndOfStream CompletionReason = "end_of_stream"
	ReasonIdleTimeout CompletionReason = "idle_timeout"

	// ReasonUpstreamFailure marks a session ended by Fail; it never completes
	ReasonUpstreamFailure CompletionReason = "upstream_failure"
)

// Summary is the accounting of one session
type Summary struct {
	SessionID             string           `json:"session_id"`
	State                 string           `json:"state"`
	NodesEmitted          int              `json:"nodes_emitted"`
	EdgesEmitted          int              `json:"edges_emitted"`
	FieldsApplied         int              `json:"fields_applied"`
	FieldsDropped         int              `json:"fields_dropped"`
	DuplicatesSuppressed  int              `json:"duplicates_suppressed"`
	FallbackTrims         int              `json:"fallback_trims"`
	PendingEdges          int              `json:"pending_edges"`
	PendingEdgesDiscarded int              `json:"pending_edges_discarded"`
	BytesConsumed         int64            `json:"bytes_consumed"`
	BufferedBytes         int              `json:"buffered_bytes"`
	Reason                CompletionReason `json:"reason,omitempty"`
	StartedAt             time.Time        `json:"started_at"`
	CompletedAt           time.Time        `json:"completed_at,omitempty"`
}

// Duration returns how long the session ran, or zero while it is still open
func (s Summary) Duration() time.Duration {
	if s.CompletedAt.IsZero() {
		return 0
	}
	return s.CompletedAt.Sub(s.StartedAt)
}

// Stats converts the summary into the session completion event payload
func (s Summary) Stats() events.SessionStats {
	return events.SessionStats{
		NodesEmitted:          s.NodesEmitted,
		EdgesEmitted:          s.EdgesEmitted,
		FieldsApplied:         s.FieldsApplied,
		FieldsDropped:         s.FieldsDropped,
		FallbackTrims:         s.FallbackTrims,
		PendingEdgesDiscarded: s.PendingEdgesDiscarded,
		Reason:                string(s.Reason),
	}
}
