package ecm_test

import (
	"testing"

	"github.com/plus3/herald/ecm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Components are visited in the order they were inserted on the builder.
func TestDispatchOrder(t *testing.T) {
	w := newTestWorld()

	e := w.Spawn().With(VisitorA{}).With(VisitorB{}).With(VisitorC{}).Build()

	out := ecm.DispatchTo(w, e, MsgVisit{})
	assert.Equal(t, []string{"A", "B", "C"}, out.Visited)
}

func TestDispatchOrderFollowsBuilder(t *testing.T) {
	w := newTestWorld()

	e := w.Spawn().With(VisitorC{}).With(VisitorA{}).With(VisitorB{}).Build()

	out := ecm.DispatchTo(w, e, MsgVisit{})
	assert.Equal(t, []string{"C", "A", "B"}, out.Visited)
}

func TestDispatchWriteHandlerMutates(t *testing.T) {
	w := newTestWorld()

	e := w.Spawn().With(Position{X: 1, Y: 1}).Build()
	w.Dispatch(e, MsgMove{DX: 2, DY: 3})

	pos := ecm.Get[Position](w, e)
	require.NotNil(t, pos)
	assert.Equal(t, float32(3), pos.X)
	assert.Equal(t, float32(4), pos.Y)
}

// A message type nothing handles comes back unchanged.
func TestDispatchUnhandledMessage(t *testing.T) {
	w := newTestWorld()

	e := w.Spawn().With(Position{}).Build()

	type MsgNobodyKnows struct{ Value int }
	out := ecm.DispatchTo(w, e, MsgNobodyKnows{Value: 42})
	assert.Equal(t, 42, out.Value)
}

func TestDispatchDeadEntityPanics(t *testing.T) {
	w := newTestWorld()

	e := w.Spawn().With(VisitorA{}).Build()
	w.Despawn(e)

	assert.Panics(t, func() { w.Dispatch(e, MsgVisit{}) })
}

// If B cancels, C never runs; A already ran.
func TestCancellation(t *testing.T) {
	w := newTestWorld()

	e := w.Spawn().With(VisitorA{}).With(Canceller{}).With(VisitorC{}).Build()

	out := ecm.DispatchTo(w, e, MsgVisit{})
	assert.Equal(t, []string{"A", "cancel"}, out.Visited)
}

// Cancellation is per-dispatch: a cancelled walk must not bleed into queued
// follow-up dispatches.
func TestCancellationDoesNotPropagateToQueued(t *testing.T) {
	w := newTestWorld()
	target := w.Spawn().With(Position{}).Build()

	probe := w.Spawn().With(Canceller{}).Build()
	ecm.ExtendComponent[Canceller](w, func(b *ecm.HandlerBuilder) {
		ecm.HandleRead(b, func(this *Canceller, msg MsgProbe, owner ecm.Entity, access *ecm.WorldAccess) MsgProbe {
			access.QueueDispatch(target, MsgMove{DX: 7})
			access.Cancel()
			return msg
		})
	})

	w.Dispatch(probe, MsgProbe{})

	// The queued MsgMove went out after the cancelled walk finished, and its
	// own walk was not cancelled.
	assert.Equal(t, float32(7), ecm.Get[Position](w, target).X)
}

type MsgProbe struct{}

// MsgInner exists so InnerCanceller can cancel a nested walk without
// touching the outer message type.
type MsgInner struct{}

type InnerCanceller struct{}

func (InnerCanceller) RegisterHandlers(b *ecm.HandlerBuilder) {
	ecm.HandleRead(b, func(this *InnerCanceller, msg MsgInner, owner ecm.Entity, access *ecm.WorldAccess) MsgInner {
		access.Cancel()
		return msg
	})
}

// NestedVisitor synchronously dispatches MsgInner at Target mid-walk.
type NestedVisitor struct {
	Target ecm.Entity
}

func (NestedVisitor) RegisterHandlers(b *ecm.HandlerBuilder) {
	ecm.HandleRead(b, func(this *NestedVisitor, msg MsgVisit, owner ecm.Entity, access *ecm.WorldAccess) MsgVisit {
		msg.Visited = append(msg.Visited, "nest")
		access.Dispatch(this.Target, MsgInner{})
		return msg
	})
}

// A synchronous nested dispatch whose walk cancels must not clobber the
// outer walk's flag: the outer message still reaches the remaining
// components.
func TestNestedDispatchCancellationDoesNotClobberOuter(t *testing.T) {
	w := newTestWorld()
	ecm.RegisterComponent[InnerCanceller](w)
	ecm.RegisterComponent[NestedVisitor](w)

	inner := w.Spawn().With(InnerCanceller{}).Build()
	e := w.Spawn().
		With(VisitorA{}).
		With(NestedVisitor{Target: inner}).
		With(VisitorC{}).
		Build()

	out := ecm.DispatchTo(w, e, MsgVisit{})
	assert.Equal(t, []string{"A", "nest", "C"}, out.Visited)
}

// A handler that queues a dispatch back to its own entity does not fail, and
// the queued message is delivered only after the outer walk completes.
func TestQueuedSelfDispatch(t *testing.T) {
	w := newTestWorld()

	e := w.Spawn().With(YakShaver{Defer: true}).Build()
	w.Dispatch(e, MsgShave{Left: 16})

	shaver := ecm.Get[YakShaver](w, e)
	require.NotNil(t, shaver)
	assert.Equal(t, 16, shaver.Shaved)
}

// A handler that synchronously re-dispatches into its own write-borrowed
// component must fail loudly, not corrupt state.
func TestSynchronousSelfReentrancyPanics(t *testing.T) {
	w := newTestWorld()

	e := w.Spawn().With(YakShaver{Defer: false}).Build()

	var got any
	func() {
		defer func() { got = recover() }()
		w.Dispatch(e, MsgShave{Left: 2})
	}()
	require.NotNil(t, got, "expected a borrow panic")
	// The diagnostic names both the entity and the component type.
	assert.Contains(t, got.(string), e.String())
	assert.Contains(t, got.(string), "YakShaver")
}

func TestDispatchToAll(t *testing.T) {
	w := newTestWorld()

	for i := 0; i < 5; i++ {
		w.Spawn().With(VisitorA{}).Build()
	}
	// Entities without a handler are skipped without error.
	w.Spawn().With(Health{}).Build()

	count := 0
	ecm.ExtendComponent[VisitorA](w, func(b *ecm.HandlerBuilder) {
		ecm.HandleRead(b, func(this *VisitorA, msg MsgCount, owner ecm.Entity, access *ecm.WorldAccess) MsgCount {
			count++
			return msg
		})
	})

	w.DispatchToAll(MsgCount{})
	assert.Equal(t, 5, count)
}

type MsgCount struct{}

// LazyDispatch delivers at Finalize, not before.
func TestLazyDispatch(t *testing.T) {
	w := newTestWorld()

	e := w.Spawn().With(Position{}).Build()

	probe := w.Spawn().With(VisitorA{}).Build()
	ecm.ExtendComponent[VisitorA](w, func(b *ecm.HandlerBuilder) {
		ecm.HandleRead(b, func(this *VisitorA, msg MsgProbe, owner ecm.Entity, access *ecm.WorldAccess) MsgProbe {
			access.LazyDispatch(e, MsgMove{DX: 5})
			return msg
		})
	})
	w.Dispatch(probe, MsgProbe{})

	assert.Equal(t, float32(0), ecm.Get[Position](w, e).X)
	w.Finalize()
	assert.Equal(t, float32(5), ecm.Get[Position](w, e).X)
}
