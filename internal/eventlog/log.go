// Package eventlog keeps the most recent activity messages (order requests,
// fills, cancels, polling errors) in a fixed-size ring buffer for status
// reporting. It is observational only: nothing reads it to make decisions.
package eventlog

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/eventdesk/desk-engine/internal/model"
)

// DefaultCapacity is the number of entries kept.
const DefaultCapacity = 100

// Listener is called (outside the log's lock) for every appended entry.
type Listener func(model.Event)

// Log is a bounded, newest-first event log. Safe for concurrent use.
type Log struct {
	mu       sync.RWMutex
	buf      []model.Event
	next     int // slot the next entry is written to
	size     int
	now      func() time.Time
	listener Listener
}

// New creates a log holding at most capacity entries.
func New(capacity int) *Log {
	if capacity < 1 {
		capacity = DefaultCapacity
	}
	return &Log{
		buf: make([]model.Event, capacity),
		now: func() time.Time { return time.Now().UTC() },
	}
}

// OnAppend registers a listener for new entries. Set it before the log is
// shared between goroutines.
func (l *Log) OnAppend(fn Listener) {
	l.listener = fn
}

// Add appends an entry and returns it. Once full, the oldest entry is
// evicted.
func (l *Log) Add(category, text string, details map[string]any) model.Event {
	if details == nil {
		details = map[string]any{}
	}
	ev := model.Event{
		ID:        uuid.New().String(),
		Timestamp: l.now(),
		Category:  category,
		Text:      text,
		Details:   details,
	}

	l.mu.Lock()
	l.buf[l.next] = ev
	l.next = (l.next + 1) % len(l.buf)
	if l.size < len(l.buf) {
		l.size++
	}
	l.mu.Unlock()

	if l.listener != nil {
		l.listener(ev)
	}
	return ev
}

// Info appends an INFO entry.
func (l *Log) Info(text string, details map[string]any) model.Event {
	return l.Add(model.CategoryInfo, text, details)
}

// Error appends an ERROR entry.
func (l *Log) Error(text string, details map[string]any) model.Event {
	return l.Add(model.CategoryError, text, details)
}

// Recent returns up to n entries, newest first. n <= 0 returns all.
func (l *Log) Recent(n int) []model.Event {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if n <= 0 || n > l.size {
		n = l.size
	}
	out := make([]model.Event, 0, n)
	for i := 1; i <= n; i++ {
		idx := (l.next - i + len(l.buf)) % len(l.buf)
		out = append(out, l.buf[idx])
	}
	return out
}

// Len returns the number of entries held.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.size
}
