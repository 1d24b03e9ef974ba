package store

import "sync"

// DefaultPendingLimit bounds the number of unconfirmed sends kept for echo
// matching. Entries past the limit are evicted oldest-first so that lost
// confirmations cannot grow the ledger forever.
const DefaultPendingLimit = 50

type pendingSend struct {
	text   string
	target string
}

// PendingLedger tracks locally originated messages awaiting their server
// echo. Matching is by (payload, target) equality, FIFO, first match wins;
// at most one entry is consumed per inbound echo. Two identical concurrent
// sends to the same target can be cross-matched — a known, accepted
// limitation of content-based matching.
type PendingLedger struct {
	mu      sync.Mutex
	entries []pendingSend
	limit   int
}

func NewPendingLedger(limit int) *PendingLedger {
	if limit <= 0 {
		limit = DefaultPendingLimit
	}
	return &PendingLedger{limit: limit}
}

// Register appends an unconfirmed send, evicting the oldest entry when the
// ledger is full.
func (l *PendingLedger) Register(text, target string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.entries = append(l.entries, pendingSend{text: text, target: target})
	if len(l.entries) > l.limit {
		l.entries = l.entries[1:]
	}
}

// TryConsume removes the oldest entry matching (text, target) and reports
// whether one was found.
func (l *PendingLedger) TryConsume(text, target string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	for i, e := range l.entries {
		if e.text == text && e.target == target {
			l.entries = append(l.entries[:i], l.entries[i+1:]...)
			return true
		}
	}
	return false
}

// Len reports the number of outstanding unconfirmed sends.
func (l *PendingLedger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
