package slock

import "sync/atomic"

// RW is the reduced two-state variant of T for slots that do not need the
// Empty/Idle distinction: -1 means a writer holds it, 0 means free, n > 0
// means n readers hold it. Results travel through the caller's closure.
type RW struct {
	v atomic.Int32
}

func (t *RW) State() int32 { return t.v.Load() }

// Write runs f with the lock held exclusively. False means the claim lost
// to a writer or to outstanding readers.
func (t *RW) Write(f func()) bool {
	if !t.v.CompareAndSwap(0, -1) {
		return false
	}
	f()
	t.v.Store(0)
	return true
}

// Read runs f with the lock held shared. False means a writer held it.
func (t *RW) Read(f func()) bool {
	for {
		s := t.v.Load()
		if s < 0 {
			return false
		}
		if t.v.CompareAndSwap(s, s+1) {
			break
		}
	}
	f()
	t.v.Add(-1)
	return true
}
