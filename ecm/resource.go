package ecm

import (
	"fmt"
	"reflect"
)

// A resource is singleton data attached to a world, keyed by its own type:
// settings, caches, counters, anything it makes no sense to have more than
// one of. Resources are independent of entities and of each other, each
// guarded by its own fail-fast read/write lock.

// LookupErrorKind classifies resource lookup failures.
type LookupErrorKind int

const (
	// NotFound means no resource of that type was ever inserted.
	NotFound LookupErrorKind = iota
	// Locked means the resource exists but is borrowed in an incompatible mode.
	Locked
	// Poisoned means a previous holder panicked while holding the lock;
	// the value may be half-mutated and is never silently handed out again.
	Poisoned
)

func (k LookupErrorKind) String() string {
	switch k {
	case NotFound:
		return "not found"
	case Locked:
		return "locked"
	case Poisoned:
		return "poisoned"
	default:
		return fmt.Sprintf("LookupErrorKind(%d)", int(k))
	}
}

// ResourceLookupError is returned when a resource cannot be borrowed. It is
// a typed, recoverable result: callers may retry, skip, or fall back.
type ResourceLookupError struct {
	Type reflect.Type
	Kind LookupErrorKind
}

func (e ResourceLookupError) Error() string {
	return fmt.Sprintf("resource %s: %s", e.Type, e.Kind)
}

// resourceEntry guards one resource value. The lock state is plain fields:
// the world is single-threaded, and a conflict means the caller is holding
// its own borrow, which no amount of waiting would release.
type resourceEntry struct {
	value    any // always a pointer to the resource
	readers  int
	writer   bool
	poisoned bool
}

func (re *resourceEntry) tryRead() (LookupErrorKind, bool) {
	if re.poisoned {
		return Poisoned, false
	}
	if re.writer {
		return Locked, false
	}
	re.readers++
	return 0, true
}

func (re *resourceEntry) tryWrite() (LookupErrorKind, bool) {
	if re.poisoned {
		return Poisoned, false
	}
	if re.writer || re.readers > 0 {
		return Locked, false
	}
	re.writer = true
	return 0, true
}

type resourceMap struct {
	entries map[reflect.Type]*resourceEntry
}

func newResourceMap() *resourceMap {
	return &resourceMap{entries: make(map[reflect.Type]*resourceEntry)}
}

// ResRead is a shared borrow of a resource. Release it with Unlock.
type ResRead[R any] struct {
	entry *resourceEntry
}

// Value returns the borrowed resource. Mutating through it while holding
// only a read borrow is a caller bug.
func (g ResRead[R]) Value() *R {
	return g.entry.value.(*R)
}

// Unlock releases the borrow.
func (g ResRead[R]) Unlock() {
	g.entry.readers--
}

// ResWrite is an exclusive borrow of a resource. Release it with Unlock.
type ResWrite[R any] struct {
	entry *resourceEntry
}

// Value returns the borrowed resource.
func (g ResWrite[R]) Value() *R {
	return g.entry.value.(*R)
}

// Unlock releases the borrow.
func (g ResWrite[R]) Unlock() {
	g.entry.writer = false
}

// InsertResource inserts a resource into the world, returning the previous
// value of that type if there was one. Panics if the previous value is
// currently borrowed.
func InsertResource[R any](w *World, value R) (old R, existed bool) {
	typ := reflect.TypeFor[R]()
	prev, ok := w.resources.entries[typ]
	if ok {
		if prev.readers > 0 || prev.writer {
			panic(fmt.Sprintf("ecm: tried to replace resource %s while it is borrowed", typ))
		}
		old = *prev.value.(*R)
	}
	w.resources.entries[typ] = &resourceEntry{value: &value}
	return old, ok
}

// RemoveResource removes and returns the resource of type R. Returns false
// if it was never inserted or is poisoned. Panics if it is borrowed.
func RemoveResource[R any](w *World) (R, bool) {
	var zero R
	typ := reflect.TypeFor[R]()
	entry, ok := w.resources.entries[typ]
	if !ok {
		return zero, false
	}
	if entry.readers > 0 || entry.writer {
		panic(fmt.Sprintf("ecm: tried to remove resource %s while it is borrowed", typ))
	}
	delete(w.resources.entries, typ)
	if entry.poisoned {
		return zero, false
	}
	return *entry.value.(*R), true
}

// ContainsResource reports whether a resource of type R exists. It requires
// no locking and so cannot fail.
func ContainsResource[R any](a Access) bool {
	_, ok := a.world().resources.entries[reflect.TypeFor[R]()]
	return ok
}

// ReadResource acquires a shared borrow of the resource of type R.
func ReadResource[R any](a Access) (ResRead[R], error) {
	typ := reflect.TypeFor[R]()
	entry, ok := a.world().resources.entries[typ]
	if !ok {
		return ResRead[R]{}, ResourceLookupError{Type: typ, Kind: NotFound}
	}
	if kind, ok := entry.tryRead(); !ok {
		return ResRead[R]{}, ResourceLookupError{Type: typ, Kind: kind}
	}
	return ResRead[R]{entry: entry}, nil
}

// WriteResource acquires an exclusive borrow of the resource of type R.
func WriteResource[R any](a Access) (ResWrite[R], error) {
	typ := reflect.TypeFor[R]()
	entry, ok := a.world().resources.entries[typ]
	if !ok {
		return ResWrite[R]{}, ResourceLookupError{Type: typ, Kind: NotFound}
	}
	if kind, ok := entry.tryWrite(); !ok {
		return ResWrite[R]{}, ResourceLookupError{Type: typ, Kind: kind}
	}
	return ResWrite[R]{entry: entry}, nil
}

// ViewResource runs fn under a shared borrow of the resource of type R.
func ViewResource[R any](a Access, fn func(*R)) error {
	g, err := ReadResource[R](a)
	if err != nil {
		return err
	}
	defer g.Unlock()
	fn(g.Value())
	return nil
}

// MutateResource runs fn under an exclusive borrow of the resource of type
// R. If fn panics, the resource is poisoned: the value may be half-mutated,
// so later borrows fail with Poisoned instead of silently succeeding.
func MutateResource[R any](a Access, fn func(*R)) error {
	g, err := WriteResource[R](a)
	if err != nil {
		return err
	}
	defer func() {
		g.Unlock()
		if p := recover(); p != nil {
			g.entry.poisoned = true
			panic(p)
		}
	}()
	fn(g.Value())
	return nil
}
