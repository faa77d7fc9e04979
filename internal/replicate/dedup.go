package replicate

import "sync"

type fillKey struct {
	source  string
	orderID int64
}

// Ledger records which source fills have already been replicated. It grows
// monotonically for the process lifetime; entries are never removed, even
// when the downstream submission ultimately fails, so an ambiguous
// partial-failure can never turn into duplicate live exposure.
//
// This is the only shared-mutable state touched by every consumer
// goroutine; the check-and-mark is a single step under the mutex.
type Ledger struct {
	mu   sync.Mutex
	done map[fillKey]struct{}
}

func NewLedger() *Ledger {
	return &Ledger{done: make(map[fillKey]struct{})}
}

// ShouldReplicate returns true at most once per distinct (source, orderID)
// pair and marks it as taken in the same critical section.
func (l *Ledger) ShouldReplicate(source string, orderID int64) bool {
	key := fillKey{source: source, orderID: orderID}
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, seen := l.done[key]; seen {
		return false
	}
	l.done[key] = struct{}{}
	return true
}

// Size reports how many fills have been marked.
func (l *Ledger) Size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.done)
}
