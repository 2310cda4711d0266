package ecm_test

import (
	"fmt"

	"github.com/plus3/herald/ecm"
)

// ExampleWorld_Dispatch shows the basic message loop: a component registers
// a write handler for a message type, and dispatching that message to the
// entity mutates the component in place.
func ExampleWorld_Dispatch() {
	w := ecm.NewWorld()
	ecm.RegisterComponent[Position](w)
	ecm.RegisterComponent[Velocity](w)

	e := w.Spawn().
		With(Position{X: 1, Y: 1}).
		With(Velocity{DX: 3, DY: 4}).
		Build()

	w.Dispatch(e, MsgMove{DX: 3, DY: 4})

	pos := ecm.Get[Position](w, e)
	fmt.Printf("moved to (%.0f, %.0f)\n", pos.X, pos.Y)

	// Output:
	// moved to (4, 5)
}

// ExampleWorldAccess_QueueDispatch shows the right way for a handler to send
// a follow-up message to its own entity: through the queue, which delivers
// after the current walk releases its locks.
func ExampleWorldAccess_QueueDispatch() {
	w := ecm.NewWorld()
	ecm.RegisterComponent[YakShaver](w)

	e := w.Spawn().With(YakShaver{Defer: true}).Build()
	w.Dispatch(e, MsgShave{Left: 3})

	fmt.Println("yaks shaved:", ecm.Get[YakShaver](w, e).Shaved)

	// Output:
	// yaks shaved: 3
}

// ExampleWorld_Finalize shows lazy structural changes: spawns queued from
// inside a handler only take effect once the world is finalized.
func ExampleWorld_Finalize() {
	w := ecm.NewWorld()
	ecm.RegisterComponent[Duplicator](w)

	w.Spawn().With(Duplicator{}).Build()

	w.DispatchToAll(MsgReproduce{})
	fmt.Println("before finalize:", w.Len())

	w.Finalize()
	fmt.Println("after finalize:", w.Len())

	// Output:
	// before finalize: 1
	// after finalize: 2
}
