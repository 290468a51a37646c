// Package transaction implements the transaction table: allocation of
// per-service-class transaction ids, and the entries that correlate an
// outstanding call to its waiter, originating request, and deadline timer.
// The reactor is the sole caller; nothing here is safe for concurrent use
// on its own; the reactor is the sole mutator.
package transaction

import (
	"time"

	"github.com/behrlich/go-qmux/internal/constants"
)

// Class distinguishes the two disjoint id ranges.
type Class int

const (
	Control Class = iota
	Service
)

// ClassOf returns Control iff serviceID is the reserved control service id.
func ClassOf(serviceID uint8) Class {
	if serviceID == constants.ControlServiceID {
		return Control
	}
	return Service
}

// Entry is a single outstanding transaction: its waiter, the request that
// created it (so its Decode can run on reply), and its deadline timer.
type Entry struct {
	ID        uint16
	Class     Class
	ServiceID uint8
	Waiter    Waiter
	Request   Request
	Timer     *time.Timer

	// SubmittedAt is the time the outbound write was issued, for latency
	// observations computed against the time of completion/failure/timeout.
	SubmittedAt time.Time
}

// Waiter is the one-shot completion target for a call. Deliver is invoked
// at most once per entry.
type Waiter interface {
	Deliver(result Result)
}

// Result carries either a decoded value or an error to a waiting caller.
type Result struct {
	Value any
	Err   error
}

// Request is the minimal shape the transaction table needs from a request
// descriptor: enough to invoke its decoder on reply. The full descriptor
// type lives in the root package; this local shape avoids an import cycle.
type Request struct {
	Decode func(message []byte) (any, error)
}

// Table maps transaction ids to entries and owns the two independent
// monotonic-with-wrap counters.
type Table struct {
	entries map[uint16]*Entry

	lastControl uint16
	lastService uint16
}

// NewTable returns an empty transaction table.
func NewTable() *Table {
	return &Table{
		entries: make(map[uint16]*Entry),
	}
}

// Allocate returns a fresh id for the given class. Monotonic within range,
// wraps past the range maximum back to its minimum. No collision check is
// performed; correctness relies on the range vastly exceeding the number
// of in-flight transactions.
func (t *Table) Allocate(class Class) uint16 {
	switch class {
	case Control:
		if t.lastControl == 0 || t.lastControl >= constants.MaxControlTransactionID {
			t.lastControl = constants.MinControlTransactionID
		} else {
			t.lastControl++
		}
		return t.lastControl
	default:
		if t.lastService == 0 || t.lastService >= constants.MaxServiceTransactionID {
			t.lastService = constants.MinServiceTransactionID
		} else {
			t.lastService++
		}
		return t.lastService
	}
}

// Install places an entry in the table. Must be called immediately after
// Allocate and before the outbound write is submitted, so a fast reply
// can never arrive before the entry exists.
func (t *Table) Install(entry *Entry) {
	t.entries = ensureMap(t.entries)
	t.entries[entry.ID] = entry
}

func ensureMap(m map[uint16]*Entry) map[uint16]*Entry {
	if m == nil {
		return make(map[uint16]*Entry)
	}
	return m
}

// Lookup returns the entry for id without removing it, or nil if absent.
func (t *Table) Lookup(id uint16) *Entry {
	return t.entries[id]
}

// Pop removes and returns the entry for id, or nil if absent. Callers are
// expected to cancel the entry's timer themselves when popping outside of
// a timer fire.
func (t *Table) Pop(id uint16) *Entry {
	entry, ok := t.entries[id]
	if !ok {
		return nil
	}
	delete(t.entries, id)
	return entry
}

// Complete pops id, cancels its timer, and delivers value to its waiter.
// Returns false if no such entry exists (the response arrived for an id
// that already timed out or never existed).
func (t *Table) Complete(id uint16, value any) bool {
	entry := t.Pop(id)
	if entry == nil {
		return false
	}
	if entry.Timer != nil {
		entry.Timer.Stop()
	}
	entry.Waiter.Deliver(Result{Value: value})
	return true
}

// Fail pops id, cancels its timer, and delivers err to its waiter.
func (t *Table) Fail(id uint16, err error) bool {
	entry := t.Pop(id)
	if entry == nil {
		return false
	}
	if entry.Timer != nil {
		entry.Timer.Stop()
	}
	entry.Waiter.Deliver(Result{Err: err})
	return true
}

// Expire pops id and fails it with err, intended for invocation from the
// timer fire path (the timer itself is already past firing, so it is not
// stopped here).
func (t *Table) Expire(id uint16, err error) bool {
	entry := t.Pop(id)
	if entry == nil {
		return false
	}
	entry.Waiter.Deliver(Result{Err: err})
	return true
}

// Len reports the number of outstanding entries, for metrics.
func (t *Table) Len() int {
	return len(t.entries)
}

// Drain removes every entry and delivers err to each waiter, for shutdown.
func (t *Table) Drain(err error) {
	for id, entry := range t.entries {
		if entry.Timer != nil {
			entry.Timer.Stop()
		}
		entry.Waiter.Deliver(Result{Err: err})
		delete(t.entries, id)
	}
}
