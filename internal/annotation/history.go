// Package annotation implements the annotation editing engine: the drawing
// state machine and its snapshot-based undo/redo history.
package annotation

import (
	"sync"
	"time"

	"pdf-annotator/internal/domain"
)

// History is a linear undo/redo stack of full annotation snapshots. Entry 0
// is always the empty list.
type History struct {
	mu       sync.Mutex
	entries  [][]domain.Annotation
	index    int
	coalesce time.Duration
	lastPush time.Time
	now      func() time.Time
	logger   domain.Logger
}

// NewHistory creates a history holding only the empty initial entry.
// Pushes closer together than coalesce replace the tail entry instead of
// appending; zero disables coalescing.
func NewHistory(coalesce time.Duration, logger domain.Logger) *History {
	return &History{
		entries:  [][]domain.Annotation{{}},
		coalesce: coalesce,
		now:      time.Now,
		logger:   logger,
	}
}

// Push records a committed state. Entries after the current index are
// discarded before the deep copy is appended.
func (h *History) Push(snapshot []domain.Annotation) {
	h.mu.Lock()
	defer h.mu.Unlock()

	now := h.now()
	copied := domain.CloneAnnotations(snapshot)

	atTail := h.index == len(h.entries)-1
	if h.coalesce > 0 && atTail && h.index > 0 && now.Sub(h.lastPush) < h.coalesce {
		h.entries[h.index] = copied
		h.lastPush = now
		h.debug("History: coalesced into tail", "index", h.index, "count", len(h.entries))
		return
	}

	h.entries = append(h.entries[:h.index+1], copied)
	h.index = len(h.entries) - 1
	h.lastPush = now
	h.debug("History: recorded snapshot", "index", h.index, "count", len(h.entries))
}

// Undo steps back one entry and returns its snapshot. At index 0 it
// returns false and leaves the stack untouched.
func (h *History) Undo() ([]domain.Annotation, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.index <= 0 {
		h.debug("History: nothing to undo")
		return nil, false
	}
	h.index--
	// A later push must not merge into an entry reached by undo.
	h.lastPush = time.Time{}
	return domain.CloneAnnotations(h.entries[h.index]), true
}

// Redo steps forward one entry and returns its snapshot. At the tail it
// returns false and leaves the stack untouched.
func (h *History) Redo() ([]domain.Annotation, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.index >= len(h.entries)-1 {
		h.debug("History: nothing to redo", "index", h.index, "count", len(h.entries))
		return nil, false
	}
	h.index++
	h.lastPush = time.Time{}
	return domain.CloneAnnotations(h.entries[h.index]), true
}

// Current returns a copy of the snapshot at the current index.
func (h *History) Current() []domain.Annotation {
	h.mu.Lock()
	defer h.mu.Unlock()
	return domain.CloneAnnotations(h.entries[h.index])
}

// Entry returns a copy of the snapshot at i.
func (h *History) Entry(i int) ([]domain.Annotation, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if i < 0 || i >= len(h.entries) {
		return nil, false
	}
	return domain.CloneAnnotations(h.entries[i]), true
}

// Index returns the current position.
func (h *History) Index() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.index
}

// Len returns the number of entries, including the initial one.
func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.entries)
}

// CanUndo returns true if there are changes that can be undone.
func (h *History) CanUndo() bool {
	return h.Index() > 0
}

// CanRedo returns true if there are changes that can be redone.
func (h *History) CanRedo() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.index < len(h.entries)-1
}

// Clear resets the stack to the empty initial entry. Call this on document load.
func (h *History) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries = [][]domain.Annotation{{}}
	h.index = 0
	h.lastPush = time.Time{}
	h.debug("History: cleared")
}

func (h *History) debug(msg string, fields ...interface{}) {
	if h.logger != nil {
		h.logger.Debug(msg, fields...)
	}
}
