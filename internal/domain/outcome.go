package domain

// OutcomeKind is the terminal state of a processed submission. Every kind
// acknowledges the message; infrastructure failures are not outcomes and
// leave the message unacknowledged for redelivery.
type OutcomeKind int

const (
	// OutcomeScored means the answer passed every check and marks were added.
	OutcomeScored OutcomeKind = iota
	// OutcomeRejected means a business rule failed; no score change.
	OutcomeRejected
	// OutcomeRetryExhausted means the ledger update failed every attempt;
	// the message is dead-lettered rather than redelivered forever.
	OutcomeRetryExhausted
)

// Outcome pairs a terminal state with a human-readable reason for logs
// and dead-letter records.
type Outcome struct {
	Kind    OutcomeKind
	Reason  string
	Awarded int
}

func Scored(awarded int) Outcome {
	return Outcome{Kind: OutcomeScored, Awarded: awarded}
}

func Rejected(reason string) Outcome {
	return Outcome{Kind: OutcomeRejected, Reason: reason}
}

func RetryExhausted(reason string) Outcome {
	return Outcome{Kind: OutcomeRetryExhausted, Reason: reason}
}
