package ecm

import (
	"fmt"
	"iter"
	"reflect"
	"sync"
)

// componentEntry owns one component instance and the lock guarding it.
//
// The lock is only ever used with TryLock/TryRLock: the runtime is
// single-threaded, so a lock that is already held incompatibly means the
// caller is re-entering itself, and blocking on it would deadlock. We fail
// loudly instead.
type componentEntry struct {
	mu   sync.RWMutex
	comp Component
}

func (ce *componentEntry) tryRead(owner Entity, typ reflect.Type) {
	if !ce.mu.TryRLock() {
		loopPanic(owner, typ)
	}
}

func (ce *componentEntry) tryWrite(owner Entity, typ reflect.Type) {
	if !ce.mu.TryLock() {
		loopPanic(owner, typ)
	}
}

func loopPanic(owner Entity, typ reflect.Type) {
	panic(fmt.Sprintf(
		"ecm: component %s on %v is already borrowed, probably by a dispatch re-entering itself; queue the follow-up message with WorldAccess.QueueDispatch instead of dispatching it synchronously",
		typ, owner))
}

// entityAssoc is the per-entity component collection: associative by
// component type, iterated in insertion order. Insertion order is the
// dispatch order and is a semantic contract, not an implementation detail.
type entityAssoc struct {
	types   []reflect.Type
	entries []*componentEntry
	byType  map[reflect.Type]int
}

// newEntityAssoc re-keys an insertion-ordered component list by type.
// A duplicate type clobbers the earlier instance in place, keeping its
// position, so no duplicate types are ever stored.
func newEntityAssoc(comps []Component) *entityAssoc {
	a := &entityAssoc{
		byType: make(map[reflect.Type]int, len(comps)),
	}
	for _, c := range comps {
		typ := componentType(c)
		if at, ok := a.byType[typ]; ok {
			a.entries[at].comp = c
			continue
		}
		a.byType[typ] = len(a.entries)
		a.types = append(a.types, typ)
		a.entries = append(a.entries, &componentEntry{comp: c})
	}
	return a
}

func (a *entityAssoc) lookup(typ reflect.Type) (*componentEntry, bool) {
	i, ok := a.byType[typ]
	if !ok {
		return nil, false
	}
	return a.entries[i], true
}

func (a *entityAssoc) len() int {
	return len(a.entries)
}

// all iterates (type, entry) pairs in insertion order.
func (a *entityAssoc) all() iter.Seq2[reflect.Type, *componentEntry] {
	return func(yield func(reflect.Type, *componentEntry) bool) {
		for i, typ := range a.types {
			if !yield(typ, a.entries[i]) {
				return
			}
		}
	}
}

// componentType returns the canonical type identity of a component instance:
// the value type, regardless of whether the instance arrived as a value or a
// pointer.
func componentType(c Component) reflect.Type {
	t := reflect.TypeOf(c)
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t
}
