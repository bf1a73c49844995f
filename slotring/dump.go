package slotring

import (
	"fmt"
	"io"
)

//
// dumping code
//

func (t *T[V]) Dump(w io.Writer) {
	fmt.Fprintf(w, "ring[size:%d next:%d]:\n", t.hdr.Size, t.hdr.NextID.Load())
	for i := range t.items {
		it := &t.items[i]
		fmt.Fprintf(w, "|    slot[%d](lock:%d, refs:%d, id:%d)\n",
			i, it.Lock.State(), it.Refs.Load(), it.ID.Load())
	}
}
