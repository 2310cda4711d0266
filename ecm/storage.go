package ecm

import (
	"fmt"
	"iter"

	"github.com/kamstrup/intmap"
)

const noFreeSlot = -1

// slot is one cell of the entity table. A free slot stores the index of the
// next free slot, forming a free list threaded through the table itself.
// The generation is bumped when the slot is freed, never when it is handed
// out, so a reused slot can never produce a handle equal to a stale one.
type slot struct {
	generation uint32
	occupied   bool
	nextFree   int32
}

// entityStorage allocates entity handles and owns the component data of
// populated entities.
//
// The slot table and the assoc table are separate on purpose: an entity that
// exists in the slot table but not the assoc table has been reserved by a
// lazy spawn and is waiting for Finalize to populate it.
type entityStorage struct {
	slots    []slot
	freeHead int32
	assocs   *intmap.Map[Entity, *entityAssoc]
}

func newEntityStorage() *entityStorage {
	return &entityStorage{
		freeHead: noFreeSlot,
		assocs:   intmap.New[Entity, *entityAssoc](64),
	}
}

// allocateReserved reserves a slot and returns a handle for it. The slot
// holds no component data until populate is called.
func (s *entityStorage) allocateReserved() Entity {
	if s.freeHead == noFreeSlot {
		idx := uint32(len(s.slots))
		s.slots = append(s.slots, slot{generation: 1, occupied: true, nextFree: noFreeSlot})
		return NewEntity(idx, 1)
	}

	idx := s.freeHead
	sl := &s.slots[idx]
	if sl.occupied {
		panic("ecm: corrupt free list")
	}
	s.freeHead = sl.nextFree
	sl.occupied = true
	sl.nextFree = noFreeSlot
	return NewEntity(uint32(idx), sl.generation)
}

// populate attaches component data to a reserved slot, making the entity
// fully alive. Panics if the handle is dead or the slot already holds data.
func (s *entityStorage) populate(e Entity, assoc *entityAssoc) {
	if !s.slotMatches(e) {
		panic(fmt.Sprintf("ecm: tried to populate dead %v", e))
	}
	if _, ok := s.assocs.Get(e); ok {
		panic(fmt.Sprintf("ecm: tried to populate %v twice", e))
	}
	s.assocs.Put(e, assoc)
}

// despawn frees the entity's slot for reuse and returns its component data
// so removal callbacks can run against it. Panics if the entity is dead or
// was never populated.
func (s *entityStorage) despawn(e Entity) *entityAssoc {
	if !s.slotMatches(e) {
		panic(fmt.Sprintf("ecm: tried to despawn dead %v", e))
	}
	assoc, ok := s.assocs.Get(e)
	if !ok {
		panic(fmt.Sprintf("ecm: tried to despawn %v before it was populated", e))
	}
	s.assocs.Del(e)

	sl := &s.slots[e.Index()]
	sl.occupied = false
	sl.generation++
	sl.nextFree = s.freeHead
	s.freeHead = int32(e.Index())
	return assoc
}

// get returns the component data of an alive entity. Panics otherwise.
func (s *entityStorage) get(e Entity) *entityAssoc {
	assoc, ok := s.assocs.Get(e)
	if !ok {
		panic(fmt.Sprintf("ecm: tried to access %v which is %v", e, s.liveness(e)))
	}
	return assoc
}

func (s *entityStorage) liveness(e Entity) Liveness {
	if !s.slotMatches(e) {
		return Dead
	}
	if _, ok := s.assocs.Get(e); ok {
		return Alive
	}
	return Reserved
}

// slotMatches reports whether the handle's slot is allocated under the
// handle's generation.
func (s *entityStorage) slotMatches(e Entity) bool {
	idx := e.Index()
	if idx >= uint32(len(s.slots)) {
		return false
	}
	sl := s.slots[idx]
	return sl.occupied && sl.generation == e.Generation()
}

// len reports the number of fully alive entities. Reserved slots don't count.
func (s *entityStorage) len() int {
	return s.assocs.Len()
}

// iter walks all alive entities. Iteration order is unspecified.
func (s *entityStorage) iter() iter.Seq[Entity] {
	return func(yield func(Entity) bool) {
		for idx, sl := range s.slots {
			if !sl.occupied {
				continue
			}
			e := NewEntity(uint32(idx), sl.generation)
			if _, ok := s.assocs.Get(e); !ok {
				continue
			}
			if !yield(e) {
				return
			}
		}
	}
}
