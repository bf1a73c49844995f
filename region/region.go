package region

import "github.com/histdb/slotpool/slotring"

// Alloc builds zeroed in-process backing for a ring of the given size.
// This is the common case when the pool is shared between goroutines
// rather than processes.
func Alloc[V any](size uint64) (*slotring.Hdr, []slotring.Item, []V) {
	return &slotring.Hdr{Size: size}, make([]slotring.Item, size), make([]V, size)
}

// New is Alloc plus the ring view over it.
func New[V any](size uint64) (*slotring.T[V], error) {
	hdr, items, data := Alloc[V](size)
	return slotring.New(hdr, items, data)
}
