package scoring

import (
	"iter"
	"sync/atomic"

	"github.com/kailas-cloud/llmrank/internal/domain"
)

// Stream is the lazy output of one scoring run. Work happens while the
// caller ranges over All; breaking out of the loop stops pulling documents.
type Stream struct {
	run  func(yield func(domain.ScoredResult) bool) error
	used atomic.Bool
	err  error
}

// All returns the result sequence. It can be ranged over once; later
// calls yield nothing.
func (s *Stream) All() iter.Seq[domain.ScoredResult] {
	return func(yield func(domain.ScoredResult) bool) {
		if !s.used.CompareAndSwap(false, true) {
			return
		}
		s.err = s.run(yield)
	}
}

// Err reports the run-level failure once the range over All has ended:
// domain.ErrRunDeadline when the run timeout cut the run short, or the
// caller's context error. Per-document failures never show up here.
func (s *Stream) Err() error { return s.err }
