package scoring

import "github.com/kailas-cloud/llmrank/internal/domain"

// emitter hands results to the consumer, optionally re-sorting them into
// input order. A dropped position unblocks the positions behind it.
// Once the consumer stops, nothing is yielded again.
type emitter struct {
	yield   func(domain.ScoredResult) bool
	ordered bool
	stopped bool
	next    int
	pending map[int]*domain.ScoredResult
}

func newEmitter(yield func(domain.ScoredResult) bool, ordered bool) *emitter {
	e := &emitter{yield: yield, ordered: ordered}
	if ordered {
		e.pending = make(map[int]*domain.ScoredResult)
	}
	return e
}

// push delivers res, or buffers it until every earlier position is settled.
// It returns false once the consumer has stopped.
func (e *emitter) push(res domain.ScoredResult) bool {
	if e.stopped {
		return false
	}
	if !e.ordered {
		e.stopped = !e.yield(res)
		return !e.stopped
	}
	e.pending[res.Position] = &res
	return e.flush()
}

// drop settles pos without emitting anything for it.
func (e *emitter) drop(pos int) {
	if !e.ordered || e.stopped {
		return
	}
	e.pending[pos] = nil
	e.flush()
}

func (e *emitter) flush() bool {
	for !e.stopped {
		res, ok := e.pending[e.next]
		if !ok {
			break
		}
		delete(e.pending, e.next)
		e.next++
		if res != nil {
			e.stopped = !e.yield(*res)
		}
	}
	return !e.stopped
}
