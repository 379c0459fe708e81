// Package board models the drag-and-drop itinerary view. A Board keeps the
// last order the server confirmed and the order the user is editing, and
// submits at most one reorder at a time.
package board

import (
	"context"
	"errors"
	"sync"
)

type State int

const (
	Idle State = iota
	Dragging
	Submitting
	// Reverted is Idle after a failed submission rolled the view back.
	Reverted
)

func (s State) String() string {
	switch s {
	case Dragging:
		return "dragging"
	case Submitting:
		return "submitting"
	case Reverted:
		return "reverted"
	default:
		return "idle"
	}
}

var (
	ErrSubmitting  = errors.New("a reorder is already being saved")
	ErrNotDragging = errors.New("no drag in progress")
	ErrOutOfRange  = errors.New("position out of range")
)

// Item is one card on the board.
type Item struct {
	ID    string `json:"id"`
	Label string `json:"location"`
}

// Submitter persists a full ordering and returns the order the server
// stored.
type Submitter interface {
	Reorder(ctx context.Context, tripID string, orderedIDs []string) ([]Item, error)
}

type Board struct {
	mu        sync.Mutex
	tripID    string
	submitter Submitter
	state     State
	confirmed []Item
	pending   []Item
	lastErr   error
	onRevert  func(error)
}

// New returns an idle board showing items in their confirmed order.
// onRevert, when set, is called after a failed submission.
func New(tripID string, items []Item, submitter Submitter, onRevert func(error)) *Board {
	return &Board{
		tripID:    tripID,
		submitter: submitter,
		confirmed: clone(items),
		onRevert:  onRevert,
	}
}

func (b *Board) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Items is what the view renders: the pending order during a drag or a
// submission, the confirmed order otherwise.
func (b *Board) Items() []Item {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == Dragging || b.state == Submitting {
		return clone(b.pending)
	}
	return clone(b.confirmed)
}

// Err returns the failure that caused the last revert.
func (b *Board) Err() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lastErr
}

func (b *Board) BeginDrag() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch b.state {
	case Submitting:
		return ErrSubmitting
	case Dragging:
		return nil
	}
	b.pending = clone(b.confirmed)
	b.state = Dragging
	return nil
}

// Move shifts the item at from to position to in the pending order.
func (b *Board) Move(from, to int) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state != Dragging {
		return ErrNotDragging
	}
	if from < 0 || from >= len(b.pending) || to < 0 || to >= len(b.pending) {
		return ErrOutOfRange
	}
	item := b.pending[from]
	b.pending = append(b.pending[:from], b.pending[from+1:]...)
	b.pending = append(b.pending[:to], append([]Item{item}, b.pending[to:]...)...)
	return nil
}

// Cancel drops the pending order without contacting the server.
func (b *Board) Cancel() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == Dragging {
		b.pending = nil
		b.state = Idle
	}
}

// Drop ends the drag. An unchanged order returns to idle without a request.
// Otherwise the full order is submitted; success adopts the server's order
// and failure restores the confirmed one.
func (b *Board) Drop(ctx context.Context) error {
	b.mu.Lock()
	if b.state != Dragging {
		b.mu.Unlock()
		return ErrNotDragging
	}
	if sameOrder(b.pending, b.confirmed) {
		b.pending = nil
		b.state = Idle
		b.mu.Unlock()
		return nil
	}
	b.state = Submitting
	ids := make([]string, len(b.pending))
	for i, it := range b.pending {
		ids[i] = it.ID
	}
	b.mu.Unlock()

	stored, err := b.submitter.Reorder(ctx, b.tripID, ids)

	b.mu.Lock()
	b.pending = nil
	if err != nil {
		b.state = Reverted
		b.lastErr = err
		notify := b.onRevert
		b.mu.Unlock()
		if notify != nil {
			notify(err)
		}
		return err
	}
	b.confirmed = clone(stored)
	b.state = Idle
	b.lastErr = nil
	b.mu.Unlock()
	return nil
}

// Reset replaces the confirmed order, e.g. from a stream event. It is
// ignored while a submission is in flight.
func (b *Board) Reset(items []Item) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == Submitting {
		return
	}
	b.confirmed = clone(items)
	if b.state == Dragging {
		b.pending = clone(items)
	}
}

func sameOrder(a, b []Item) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].ID != b[i].ID {
			return false
		}
	}
	return true
}

func clone(items []Item) []Item {
	return append([]Item(nil), items...)
}
