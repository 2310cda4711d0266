package ecm

import (
	"fmt"
	"reflect"
)

// EntityBuilder accumulates components for an entity about to spawn. The
// order components are inserted is the order message handlers will see them,
// so it is part of the entity's behavior, not a detail.
//
// An immediate builder (World.Spawn) populates the entity when Build is
// called; a lazy builder (World.LazySpawn, WorldAccess.LazySpawn) queues the
// population for the next Finalize. Either way the Entity handle exists from
// the moment the builder does.
type EntityBuilder struct {
	world  *World
	entity Entity
	lazy   bool

	comps  []Component
	byType map[reflect.Type]int
	built  bool
}

func newImmediateBuilder(w *World, e Entity) *EntityBuilder {
	return &EntityBuilder{world: w, entity: e, byType: make(map[reflect.Type]int)}
}

func newLazyBuilder(w *World, e Entity) *EntityBuilder {
	return &EntityBuilder{world: w, entity: e, lazy: true, byType: make(map[reflect.Type]int)}
}

// Entity returns the handle of the entity being built. For a lazy builder it
// reports Reserved until the next Finalize.
func (b *EntityBuilder) Entity() Entity {
	return b.entity
}

// Insert adds a component, replacing and returning any component of the same
// type already on the builder; the replacement keeps the original's position
// in dispatch order. Panics if the component's type is not registered.
func (b *EntityBuilder) Insert(comp any) (old Component, replaced bool) {
	c := normalizeComponent(comp)
	typ := componentType(c)
	if _, ok := b.world.components[typ]; !ok {
		panic(fmt.Sprintf("ecm: tried to add a component of unregistered type %s to an entity", typ))
	}

	if at, ok := b.byType[typ]; ok {
		old = b.comps[at]
		b.comps[at] = c
		return old, true
	}
	b.byType[typ] = len(b.comps)
	b.comps = append(b.comps, c)
	return nil, false
}

// With is Insert returning the builder, for chaining.
func (b *EntityBuilder) With(comp any) *EntityBuilder {
	b.Insert(comp)
	return b
}

// Len reports the number of components that will be attached.
func (b *EntityBuilder) Len() int {
	return len(b.comps)
}

// Build finishes the entity. Immediate builders populate it on the spot and
// run create callbacks; lazy builders queue the population for the next
// Finalize. Panics if called twice.
func (b *EntityBuilder) Build() Entity {
	if b.built {
		panic(fmt.Sprintf("ecm: builder for %v built twice", b.entity))
	}
	b.built = true

	if b.lazy {
		b.world.queueUpdate(lazyUpdate{kind: lazySpawn, entity: b.entity, comps: b.comps})
		return b.entity
	}
	b.world.finishSpawn(b.entity, b.comps)
	return b.entity
}
