package conversation

import "sync"

// Transcript is an append-only sequence of turns. Appends come from a single
// writer; snapshots may be taken concurrently.
type Transcript struct {
	mu    sync.RWMutex
	turns []Turn
}

// NewTranscript creates a transcript holding the seed turns.
func NewTranscript(seed ...Turn) *Transcript {
	return &Transcript{turns: append([]Turn(nil), seed...)}
}

// Append adds a turn at the end.
func (t *Transcript) Append(turn Turn) {
	t.mu.Lock()
	t.turns = append(t.turns, turn)
	t.mu.Unlock()
}

// Len returns the number of turns.
func (t *Transcript) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.turns)
}

// Snapshot returns a copy of every turn in append order.
func (t *Transcript) Snapshot() []Turn {
	return t.Since(0)
}

// Since returns a copy of the turns appended at or after index i.
func (t *Transcript) Since(i int) []Turn {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if i < 0 {
		i = 0
	}
	if i >= len(t.turns) {
		return []Turn{}
	}
	out := make([]Turn, len(t.turns)-i)
	copy(out, t.turns[i:])
	return out
}
