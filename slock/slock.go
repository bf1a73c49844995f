package slock

import "sync/atomic"

// Legal values of the lock word. Anything above Idle is a reader count
// plus one: a word of n > 1 means n-1 concurrent readers.
const (
	Write int32 = -1
	Empty int32 = 0
	Idle  int32 = 1
)

// T is a non-blocking reader/writer lock for a single slot. The word
// doubles as the slot's lifecycle marker: Empty means the slot was never
// committed (or was removed), Idle means it holds data and nobody is
// touching it. Every operation is a single compare-and-swap attempt; a
// lost race is an immediate failure and retry policy belongs to the
// caller. The word is the whole record so it can sit directly in shared
// or mapped memory.
type T struct {
	v atomic.Int32
}

// State is a snapshot of the raw lock word for tests and diagnostics. It
// can be stale by the time it returns.
func (t *T) State() int32 { return t.v.Load() }

func claim[V any](t *T, from int32, f func() (V, bool)) (v V, ok bool) {
	if !t.v.CompareAndSwap(from, Write) {
		return v, false
	}
	v, ok = f()
	if ok {
		t.v.Store(Idle)
	} else {
		var zero V
		v = zero
		t.v.Store(Empty)
	}
	return v, ok
}

// Create claims an Empty slot for writing, runs f while the word is held
// at Write, and settles to Idle if f commits or back to Empty if it
// declines. The zero value and false mean the claim lost: the slot was
// occupied, write-held, or being read.
func Create[V any](t *T, f func() (V, bool)) (V, bool) { return claim(t, Empty, f) }

// Update claims an Idle slot for writing with the same settle protocol as
// Create. A declining f empties the slot, which is how removal is spelled.
func Update[V any](t *T, f func() (V, bool)) (V, bool) { return claim(t, Idle, f) }

// Reclaim claims the slot for writing whether it is Empty or Idle. This is
// the recycling entry used when a slot's previous tenant no longer counts:
// one observation of the word, one compare-and-swap, no retry. Unlike
// Update, a declining f restores the state the claim took, so an aborted
// reclaim never disturbs whatever tenancy it found.
func Reclaim[V any](t *T, f func() (V, bool)) (v V, ok bool) {
	s := t.v.Load()
	if s != Empty && s != Idle {
		return v, false
	}
	if !t.v.CompareAndSwap(s, Write) {
		return v, false
	}
	v, ok = f()
	if ok {
		t.v.Store(Idle)
	} else {
		var zero V
		v = zero
		t.v.Store(s)
	}
	return v, ok
}

// Read runs f while holding the lock shared and returns its result. The
// increment refuses any non-positive word, so a reader can never overtake
// a writer or observe a slot that was never committed. Losing the
// compare-and-swap to another reader retries; observing a writer fails.
func Read[V any](t *T, f func() V) (v V, ok bool) {
	for {
		s := t.v.Load()
		if s <= Empty {
			return v, false
		}
		if t.v.CompareAndSwap(s, s+1) {
			break
		}
	}
	v = f()
	t.v.Add(-1)
	return v, true
}
