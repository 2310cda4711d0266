package ecm_test

import (
	"github.com/plus3/herald/ecm"
)

// Common test component types

type Position struct {
	X, Y float32
}

func (Position) RegisterHandlers(b *ecm.HandlerBuilder) {
	ecm.HandleWrite(b, func(this *Position, msg MsgMove, owner ecm.Entity, access *ecm.WorldAccess) MsgMove {
		this.X += msg.DX
		this.Y += msg.DY
		return msg
	})
}

type Velocity struct {
	DX, DY float32
}

func (Velocity) RegisterHandlers(b *ecm.HandlerBuilder) {}

type Name struct {
	Value string
}

func (Name) RegisterHandlers(b *ecm.HandlerBuilder) {}

type Health struct {
	Current int
	Max     int
}

func (Health) RegisterHandlers(b *ecm.HandlerBuilder) {}

type MsgMove struct {
	DX, DY float32
}

// MsgVisit records which components a dispatch reached, in order.

type MsgVisit struct {
	Visited []string
}

type VisitorA struct{}

func (VisitorA) RegisterHandlers(b *ecm.HandlerBuilder) {
	ecm.HandleRead(b, func(this *VisitorA, msg MsgVisit, owner ecm.Entity, access *ecm.WorldAccess) MsgVisit {
		msg.Visited = append(msg.Visited, "A")
		return msg
	})
}

type VisitorB struct{}

func (VisitorB) RegisterHandlers(b *ecm.HandlerBuilder) {
	ecm.HandleRead(b, func(this *VisitorB, msg MsgVisit, owner ecm.Entity, access *ecm.WorldAccess) MsgVisit {
		msg.Visited = append(msg.Visited, "B")
		return msg
	})
}

type VisitorC struct{}

func (VisitorC) RegisterHandlers(b *ecm.HandlerBuilder) {
	ecm.HandleRead(b, func(this *VisitorC, msg MsgVisit, owner ecm.Entity, access *ecm.WorldAccess) MsgVisit {
		msg.Visited = append(msg.Visited, "C")
		return msg
	})
}

// Canceller stops MsgVisit from reaching later components.

type Canceller struct{}

func (Canceller) RegisterHandlers(b *ecm.HandlerBuilder) {
	ecm.HandleRead(b, func(this *Canceller, msg MsgVisit, owner ecm.Entity, access *ecm.WorldAccess) MsgVisit {
		msg.Visited = append(msg.Visited, "cancel")
		access.Cancel()
		return msg
	})
}

// YakShaver shaves one yak per MsgShave and re-sends the message to itself
// until none are left. With Defer set it uses the queue, as one should;
// without it, it synchronously re-enters its own write-borrowed self.

type MsgShave struct {
	Left int
}

type YakShaver struct {
	Shaved int
	Defer  bool
}

func (YakShaver) RegisterHandlers(b *ecm.HandlerBuilder) {
	ecm.HandleWrite(b, func(this *YakShaver, msg MsgShave, owner ecm.Entity, access *ecm.WorldAccess) MsgShave {
		msg.Left--
		this.Shaved++
		if msg.Left > 0 {
			if this.Defer {
				access.QueueDispatch(owner, MsgShave{Left: msg.Left})
			} else {
				access.Dispatch(owner, MsgShave{Left: msg.Left})
			}
		}
		return msg
	})
}

// Duplicator lazily spawns a copy of its own entity on every MsgReproduce.

type MsgReproduce struct{}

type Duplicator struct{}

func (Duplicator) RegisterHandlers(b *ecm.HandlerBuilder) {
	ecm.HandleRead(b, func(this *Duplicator, msg MsgReproduce, owner ecm.Entity, access *ecm.WorldAccess) MsgReproduce {
		access.LazySpawn().With(Duplicator{}).Build()
		return msg
	})
}

// Census counts Tracked components as they come and go, via a resource.

type CensusCount struct {
	Created int
	Removed int
}

type Tracked struct{}

func (Tracked) RegisterHandlers(b *ecm.HandlerBuilder) {
	ecm.OnCreate(b, func(this *Tracked, owner ecm.Entity, access *ecm.CallbackAccess) {
		if err := ecm.MutateResource(access, func(c *CensusCount) { c.Created++ }); err != nil {
			panic(err)
		}
	})
	ecm.OnRemove(b, func(this *Tracked, owner ecm.Entity, access *ecm.CallbackAccess) {
		if err := ecm.MutateResource(access, func(c *CensusCount) { c.Removed++ }); err != nil {
			panic(err)
		}
	})
}

func newTestWorld() *ecm.World {
	w := ecm.NewWorld()
	ecm.RegisterComponent[Position](w)
	ecm.RegisterComponent[Velocity](w)
	ecm.RegisterComponent[Name](w)
	ecm.RegisterComponent[Health](w)
	ecm.RegisterComponent[VisitorA](w)
	ecm.RegisterComponent[VisitorB](w)
	ecm.RegisterComponent[VisitorC](w)
	ecm.RegisterComponent[Canceller](w)
	ecm.RegisterComponent[YakShaver](w)
	ecm.RegisterComponent[Duplicator](w)
	ecm.RegisterComponent[Tracked](w)
	return w
}
