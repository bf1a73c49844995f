package slotpool

import "fmt"

// Token is an opaque handle to one tenancy of a slot. It wraps the
// generation id that was current when the slot was stamped; the slot
// position is always the id modulo the ring size. A token stays valid
// exactly as long as the slot still holds that id.
type Token struct {
	id uint64
}

func Raw(id uint64) Token { return Token{id: id} }

func (t Token) Raw() uint64 { return t.id }

func (t Token) Pos(size uint64) uint64 { return t.id % size }

func (t Token) String() string { return fmt.Sprintf("(token %d)", t.id) }
