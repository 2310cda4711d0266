package ecm

import (
	"reflect"
)

// Dispatcher is implemented by everything that can dispatch messages: the
// World itself, WorldAccess inside message handlers, and CallbackAccess
// inside lifecycle callbacks.
type Dispatcher interface {
	// Dispatch threads msg through the target entity's components in
	// insertion order, passing it to each component with a handler
	// registered for its type, and returns the final value.
	Dispatch(target Entity, msg any) any
}

// DispatchTo is a typed convenience wrapper around Dispatcher.Dispatch.
func DispatchTo[M any](d Dispatcher, target Entity, msg M) M {
	return d.Dispatch(target, msg).(M)
}

// Cloneable lets a message type control how DispatchToAll copies it. Message
// types without it are reused as-is, which is fine for value types.
type Cloneable interface {
	CloneMessage() any
}

// Dispatch threads msg through the target entity's components. A message
// type no component handles comes back unchanged. Panics if the target is
// not alive.
func (w *World) Dispatch(target Entity, msg any) any {
	access := newWorldAccess(w)
	return w.dispatchInner(access, target, msg)
}

// DispatchToAll dispatches a copy of msg to every alive entity. The alive
// set is snapshotted first, so lazily queued structural changes cannot skew
// the walk.
func (w *World) DispatchToAll(msg any) {
	var targets []Entity
	for e := range w.entities.iter() {
		targets = append(targets, e)
	}
	for _, e := range targets {
		w.Dispatch(e, cloneMessage(msg))
	}
}

func cloneMessage(msg any) any {
	if c, ok := msg.(Cloneable); ok {
		return c.CloneMessage()
	}
	return msg
}

// dispatchInner is the per-dispatch state machine. The access object is
// shared with nested synchronous dispatches and with the queued follow-up
// drain, so the cancellation flag is saved and restored around each walk:
// cancellation only ever stops the walk it was raised in.
func (w *World) dispatchInner(access *WorldAccess, target Entity, msg any) any {
	msgType := reflect.TypeOf(msg)
	assoc := w.entities.get(target)

	saved := access.cancelled
	access.cancelled = false
	access.depth++
	for typ, entry := range assoc.all() {
		vt := w.vtableOf(typ)
		handler, ok := vt.handlers[msgType]
		if !ok {
			continue
		}
		if handler.write {
			entry.tryWrite(target, typ)
			msg = handler.fn(entry.comp, msg, target, access)
			entry.mu.Unlock()
		} else {
			entry.tryRead(target, typ)
			msg = handler.fn(entry.comp, msg, target, access)
			entry.mu.RUnlock()
		}
		if access.cancelled {
			break
		}
	}
	access.cancelled = saved
	access.depth--

	// Messages queued during the walk go out now, in FIFO order, once the
	// outermost walk has released every lock it held. Each of these may
	// queue more. Nested synchronous dispatches must not drain: the outer
	// walk's locks are still held at that point.
	for access.depth == 0 && len(access.queued) > 0 {
		q := access.queued[0]
		access.queued = access.queued[1:]
		w.dispatchInner(access, q.target, q.msg)
	}

	return msg
}

type lazyKind int

const (
	lazySpawn lazyKind = iota
	lazyDespawn
	lazyDispatch
)

// lazyUpdate is a buffered structural mutation: finish spawning a reserved
// entity, despawn an entity, or deliver a message. Queued during a dispatch,
// consumed exactly once when Finalize drains the queue.
type lazyUpdate struct {
	kind   lazyKind
	entity Entity
	comps  []Component
	msg    any
}

// Finalize applies all queued lazy updates in FIFO order. Applying one
// update may queue more (an attach callback may dispatch a message that
// lazily spawns another entity); Finalize keeps draining until the queue is
// empty.
func (w *World) Finalize() {
	for len(w.lazy) > 0 {
		u := w.lazy[0]
		w.lazy = w.lazy[1:]
		w.applyUpdate(u)
	}
}

func (w *World) applyUpdate(u lazyUpdate) {
	switch u.kind {
	case lazySpawn:
		w.finishSpawn(u.entity, u.comps)
	case lazyDespawn:
		// Tolerate double despawns: two handlers may have independently
		// condemned the same entity.
		if w.entities.liveness(u.entity) == Alive {
			assoc := w.entities.despawn(u.entity)
			w.runRemoveCallbacks(u.entity, assoc)
		}
	case lazyDispatch:
		w.Dispatch(u.entity, u.msg)
	}
}
