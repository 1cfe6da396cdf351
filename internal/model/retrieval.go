package model

import "time"

// RetrievalMode distinguishes the two ways a request can consume a mailbox.
type RetrievalMode string

const (
	ModePoll RetrievalMode = "poll"
	ModeList RetrievalMode = "list"
)

// Outcome constants recorded for each retrieval.
const (
	OutcomeFound    = "found"
	OutcomeNotFound = "not_found"
	OutcomeListed   = "listed"
	OutcomeError    = "error"
)

// Retrieval is the audit record of one request against a mailbox. It never
// carries codes or credentials.
type Retrieval struct {
	// ID is a UUID assigned when the record is written.
	ID string `db:"id" json:"id"`

	// RequestID correlates the record with the HTTP request log line.
	RequestID string `db:"request_id" json:"request_id"`

	Mode  RetrievalMode `db:"mode" json:"mode"`
	Email string        `db:"email" json:"email"`

	// Outcome is one of the Outcome* constants.
	Outcome string `db:"outcome" json:"outcome"`

	// MatchCount is the number of codes returned to the caller.
	MatchCount int `db:"match_count" json:"match_count"`

	// Rounds is the number of scan rounds executed.
	Rounds int `db:"rounds" json:"rounds"`

	// Error holds the error message when Outcome is OutcomeError.
	Error string `db:"error" json:"error,omitempty"`

	StartedAt  time.Time `db:"started_at" json:"started_at"`
	DurationMS int64     `db:"duration_ms" json:"duration_ms"`
}
