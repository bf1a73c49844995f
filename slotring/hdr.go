package slotring

import (
	"sync/atomic"

	"github.com/histdb/slotpool/slock"
)

// Hdr is the shared ring header: the fixed slot count and the monotonic
// allocation counter every caller draws ids from. It is a plain record
// with natural alignment so it can sit in mapped memory shared with other
// processes.
type Hdr struct {
	Size   uint64
	NextID atomic.Uint64
}

// Item is the per-slot header: the lock word, the external reference
// count, and the generation id last stamped into the slot. Same placement
// contract as Hdr. The id changes only while the lock is write-held; the
// reference count is advisory bookkeeping owned by token holders, not a
// second lock.
type Item struct {
	Lock slock.T
	Refs atomic.Int32
	ID   atomic.Uint64
}
