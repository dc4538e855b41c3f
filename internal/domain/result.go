package domain

// Outcome records how a document's score was obtained.
type Outcome string

// Scoring outcomes. Everything except OutcomeScored carries FallbackScore.
const (
	OutcomeScored           Outcome = "scored"
	OutcomeInvocationFailed Outcome = "invocation_failed"
	OutcomeParseFailed      Outcome = "parse_failed"
	OutcomeDeadlineSkipped  Outcome = "deadline_skipped"
)

// ScoredResult is the unit of pipeline output: one per input document.
type ScoredResult struct {
	// Position is the 0-based index of the document in the input stream.
	Position int
	Document string
	Score    Score
	Outcome  Outcome
}

// NewScored creates a result for a successfully scored document.
func NewScored(pos int, doc string, s Score) ScoredResult {
	return ScoredResult{Position: pos, Document: doc, Score: s, Outcome: OutcomeScored}
}

// NewFallback creates a result carrying FallbackScore with the given outcome.
func NewFallback(pos int, doc string, outcome Outcome) ScoredResult {
	return ScoredResult{Position: pos, Document: doc, Score: FallbackScore, Outcome: outcome}
}

// Failed reports whether the score is a fallback rather than a backend judgment.
func (r ScoredResult) Failed() bool { return r.Outcome != OutcomeScored }
