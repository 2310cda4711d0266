package ecm

import (
	"iter"
)

// Access is implemented by World, WorldAccess and CallbackAccess, so queries
// and resource lookups can be written once and used from anywhere.
type Access interface {
	world() *World
}

type queuedDispatch struct {
	target Entity
	msg    any
}

// WorldAccess is the view of the world a message handler gets. Structural
// changes made through it are queued, not applied: the component walk in
// progress must never see the collection it is iterating change under it.
type WorldAccess struct {
	w         *World
	queued    []queuedDispatch
	cancelled bool
	// depth tracks nested synchronous dispatches sharing this access; the
	// queue only drains when the outermost walk finishes.
	depth int
}

func newWorldAccess(w *World) *WorldAccess {
	return &WorldAccess{w: w}
}

func (a *WorldAccess) world() *World { return a.w }

// Dispatch synchronously dispatches another message. If that message ends up
// re-entering a component the current dispatch already has borrowed, the
// world panics; use QueueDispatch for follow-ups aimed at yourself.
func (a *WorldAccess) Dispatch(target Entity, msg any) any {
	return a.w.dispatchInner(a, target, msg)
}

// QueueDispatch queues msg to be dispatched to target once the current
// entity is through threading the current message through its components.
// Because delivery is delayed, the updated message value is not observable.
//
// This is the way to send a message that would otherwise touch a component
// locked by the dispatch in progress.
func (a *WorldAccess) QueueDispatch(target Entity, msg any) {
	a.queued = append(a.queued, queuedDispatch{target: target, msg: msg})
}

// LazySpawn sets up an entity to be spawned at the next Finalize. The
// returned builder's handle is valid to reference immediately.
func (a *WorldAccess) LazySpawn() *EntityBuilder {
	return newLazyBuilder(a.w, a.w.entities.allocateReserved())
}

// LazyDespawn queues target to be despawned at the next Finalize.
func (a *WorldAccess) LazyDespawn(target Entity) {
	a.w.queueUpdate(lazyUpdate{kind: lazyDespawn, entity: target})
}

// LazyDispatch queues msg to be dispatched to target at the next Finalize.
func (a *WorldAccess) LazyDispatch(target Entity, msg any) {
	a.w.queueUpdate(lazyUpdate{kind: lazyDispatch, entity: target, msg: msg})
}

// Cancel stops the current message from being passed to any further
// components on the entity. It does not affect queued follow-up dispatches.
func (a *WorldAccess) Cancel() {
	a.cancelled = true
}

// IsCancelled reports whether the current message has been cancelled.
func (a *WorldAccess) IsCancelled() bool {
	return a.cancelled
}

// Liveness reports the liveness of an entity.
func (a *WorldAccess) Liveness(e Entity) Liveness { return a.w.Liveness(e) }

// Len reports the number of alive entities.
func (a *WorldAccess) Len() int { return a.w.Len() }

// LenOf reports the number of components on an entity.
func (a *WorldAccess) LenOf(e Entity) int { return a.w.LenOf(e) }

// Entities iterates all alive entities in unspecified order.
func (a *WorldAccess) Entities() iter.Seq[Entity] { return a.w.Entities() }

// CallbackAccess is the view of the world a lifecycle callback gets. It runs
// while the world is mid-mutation, so everything structural goes through the
// lazy queue.
type CallbackAccess struct {
	w *World
}

func (a *CallbackAccess) world() *World { return a.w }

// Dispatch dispatches a message immediately. The component the callback is
// running for is read-borrowed, so a message that needs write access to it
// must go through LazyDispatch instead.
func (a *CallbackAccess) Dispatch(target Entity, msg any) any {
	return a.w.Dispatch(target, msg)
}

// LazySpawn sets up an entity to be spawned at the next Finalize.
func (a *CallbackAccess) LazySpawn() *EntityBuilder {
	return newLazyBuilder(a.w, a.w.entities.allocateReserved())
}

// LazyDespawn queues target to be despawned at the next Finalize.
func (a *CallbackAccess) LazyDespawn(target Entity) {
	a.w.queueUpdate(lazyUpdate{kind: lazyDespawn, entity: target})
}

// LazyDispatch queues msg to be dispatched to target at the next Finalize.
func (a *CallbackAccess) LazyDispatch(target Entity, msg any) {
	a.w.queueUpdate(lazyUpdate{kind: lazyDispatch, entity: target, msg: msg})
}

// Liveness reports the liveness of an entity.
func (a *CallbackAccess) Liveness(e Entity) Liveness { return a.w.Liveness(e) }

// Len reports the number of alive entities.
func (a *CallbackAccess) Len() int { return a.w.Len() }
