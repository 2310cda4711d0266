package ecm

import "fmt"

// Entity encodes both the slot index (upper 32 bits) and the slot generation
// (lower 32 bits). Generations start at 1, so the zero Entity never refers to
// anything alive.
type Entity uint64

// NewEntity creates an Entity from a slot index and generation
func NewEntity(index uint32, generation uint32) Entity {
	return Entity(uint64(index)<<32 | uint64(generation))
}

// Index extracts the slot index from the entity
func (e Entity) Index() uint32 {
	return uint32(e >> 32)
}

// Generation extracts the slot generation from the entity
func (e Entity) Generation() uint32 {
	return uint32(e & 0xFFFFFFFF)
}

func (e Entity) String() string {
	return fmt.Sprintf("Entity(%d:%d)", e.Index(), e.Generation())
}

// Liveness reports what an Entity handle currently refers to.
type Liveness int

const (
	// Dead means the slot was reused or never allocated; the handle refers to nothing.
	Dead Liveness = iota
	// Reserved means the slot is allocated but its component data has not been
	// populated yet (a lazy spawn before Finalize).
	Reserved
	// Alive means the handle refers to a fully populated entity.
	Alive
)

func (l Liveness) String() string {
	switch l {
	case Dead:
		return "Dead"
	case Reserved:
		return "Reserved"
	case Alive:
		return "Alive"
	default:
		return fmt.Sprintf("Liveness(%d)", int(l))
	}
}
