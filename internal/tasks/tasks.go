// Package tasks collects follow-up task suggestions derived from a
// conversation.
package tasks

import (
	"errors"
	"sync"
	"time"
)

// ErrNotFound is returned by SetStatus for an unknown suggestion ID.
var ErrNotFound = errors.New("task not found")

// Status is the lifecycle state of a suggestion.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusCompleted:
		return true
	}
	return false
}

// Suggestion is one derived follow-up task.
type Suggestion struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Status    Status    `json:"status"`
	Note      string    `json:"note"`
	CreatedAt time.Time `json:"created_at"`
}

// Collector is a stack of suggestion batches: each batch keeps its internal
// order and goes ahead of every earlier batch. Duplicates are kept.
type Collector struct {
	mu    sync.RWMutex
	items []Suggestion
}

// NewCollector creates an empty Collector.
func NewCollector() *Collector {
	return &Collector{}
}

// PrependBatch inserts batch ahead of all previously collected suggestions.
func (c *Collector) PrependBatch(batch []Suggestion) {
	if len(batch) == 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	items := make([]Suggestion, 0, len(batch)+len(c.items))
	items = append(items, batch...)
	c.items = append(items, c.items...)
}

// Snapshot returns a copy of every suggestion, newest batch first.
func (c *Collector) Snapshot() []Suggestion {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Suggestion, len(c.items))
	copy(out, c.items)
	return out
}

// Len returns the number of suggestions.
func (c *Collector) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// SetStatus changes one suggestion's status. It exists for the task center;
// the turn protocol only ever creates pending suggestions.
func (c *Collector) SetStatus(id string, s Status) (Suggestion, error) {
	if !s.Valid() {
		return Suggestion{}, errors.New("invalid task status " + string(s))
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.items {
		if c.items[i].ID == id {
			c.items[i].Status = s
			return c.items[i], nil
		}
	}
	return Suggestion{}, ErrNotFound
}
