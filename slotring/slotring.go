package slotring

import (
	"github.com/RoaringBitmap/roaring/v2"
	"github.com/zeebo/errs/v2"

	"github.com/histdb/slotpool"
	"github.com/histdb/slotpool/slock"
)

// T is a borrowed view over a fixed-capacity ring of slots: one Hdr plus
// two parallel arrays in lock-step, one of per-slot headers and one of
// data records. It never owns or allocates the backing; any number of
// views over the same backing may be used concurrently.
type T[V any] struct {
	_ [0]func() // no equality

	hdr   *Hdr
	items []Item
	data  []V
}

// New wraps externally allocated backing. The backing must be
// zero-initialized before its first use anywhere.
func New[V any](hdr *Hdr, items []Item, data []V) (*T[V], error) {
	switch {
	case hdr == nil:
		return nil, errs.Errorf("slotring: nil header")
	case hdr.Size == 0:
		return nil, errs.Errorf("slotring: zero size")
	case uint64(len(items)) != hdr.Size || uint64(len(data)) != hdr.Size:
		return nil, errs.Errorf("slotring: mismatched backing: size=%d items=%d data=%d",
			hdr.Size, len(items), len(data))
	}
	return &T[V]{hdr: hdr, items: items, data: data}, nil
}

func (t *T[V]) Size() uint64 { return t.hdr.Size }

// Put inserts an item into some free slot and returns its token. f gets
// mutable access to the slot's data and reports whether to keep the
// insertion; declining aborts the put and leaves the slot as it was found,
// free for another caller. The scan
// draws one counter value and walks exactly one lap of the ring from it;
// slots still referenced or lost to racing writers are passed over. False
// with no token means no eligible slot was claimed this lap: the ring is
// effectively full and backpressure is the caller's problem.
func (t *T[V]) Put(f func(*V) bool) (tok slotpool.Token, ok bool) {
	size := t.hdr.Size
	start := t.hdr.NextID.Add(1) - 1

	for n := uint64(0); n < size; n++ {
		id := start + n
		it := &t.items[id%size]

		// somebody still holds a token for this slot
		if it.Refs.Load() > 0 {
			continue
		}

		declined := false
		_, committed := slock.Reclaim(&it.Lock, func() (struct{}, bool) {
			// the eligibility check above races the claim: another put can
			// commit a fresh tenancy in between, and holders of retired
			// tokens can still resurrect the count through Incref right up
			// until this claim won. Re-reading under the write-hold is
			// authoritative because Incref needs shared access.
			if it.Refs.Load() > 0 {
				return struct{}{}, false
			}
			if !f(&t.data[id%size]) {
				declined = true
				return struct{}{}, false
			}
			// data and identity publish together: both stores happen
			// while the lock word is still held at Write.
			it.Refs.Store(1)
			it.ID.Store(id)
			return struct{}{}, true
		})
		if committed {
			t.consume(id)
			return slotpool.Raw(id), true
		}
		if declined {
			return tok, false
		}
	}
	return tok, false
}

// consume advances the allocation counter past id so that no later draw
// hands out an id this lap already stamped.
func (t *T[V]) consume(id uint64) {
	for {
		cur := t.hdr.NextID.Load()
		if cur > id {
			return
		}
		if t.hdr.NextID.CompareAndSwap(cur, id+1) {
			return
		}
	}
}

// read is the shared read-path claim: locate the slot, check the token's
// id, take the lock shared, and check the id again under it. The second
// check is load-bearing: a recycle can land between the first check and
// the reader increment, and the lock word alone cannot tell the old
// tenancy from the new one.
func read[V, R any](t *T[V], tok slotpool.Token, f func(*Item, *V) R) (R, bool) {
	pos := tok.Pos(t.hdr.Size)
	it := &t.items[pos]

	var zero R
	if it.ID.Load() != tok.Raw() {
		return zero, false
	}

	type res struct {
		r  R
		ok bool
	}
	v, ok := slock.Read(&it.Lock, func() (out res) {
		if it.ID.Load() != tok.Raw() {
			return out
		}
		return res{r: f(it, &t.data[pos]), ok: true}
	})
	if !ok || !v.ok {
		return zero, false
	}
	return v.r, true
}

// Get applies f to an immutable view of the data tok refers to and
// returns its result. False means the token is stale (the slot has been
// recycled since it was issued) or a writer currently holds the slot.
func Get[V, R any](t *T[V], tok slotpool.Token, f func(*V) R) (R, bool) {
	return read(t, tok, func(_ *Item, d *V) R { return f(d) })
}

// Incref records one more logical holder of tok's slot and returns the
// new count. Shared access is enough: the count never touches the data.
func (t *T[V]) Incref(tok slotpool.Token) (int32, bool) {
	return read(t, tok, func(it *Item, _ *V) int32 { return it.Refs.Add(1) })
}

// Decref drops one logical holder of tok's slot and returns the new
// count. Once the count reaches zero the slot is fair game for a future
// Put, which retires tok.
func (t *T[V]) Decref(tok slotpool.Token) (int32, bool) {
	return read(t, tok, func(it *Item, _ *V) int32 { return it.Refs.Add(-1) })
}

// Occupied is a snapshot bitmap of positions whose reference count was
// positive as each position was sampled. Advisory, like the count itself:
// it can be stale as soon as it returns.
func (t *T[V]) Occupied() *roaring.Bitmap {
	b := roaring.New()
	for i := range t.items {
		if t.items[i].Refs.Load() > 0 {
			b.Add(uint32(i))
		}
	}
	return b
}
