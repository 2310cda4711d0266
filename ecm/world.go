package ecm

import (
	"fmt"
	"iter"
	"reflect"
)

// World is the place all the entities, resources, and components live.
//
// A World is single-threaded: every operation runs to completion on the
// caller's goroutine, and the locks inside only exist to catch aliasing bugs
// (a handler re-borrowing something already borrowed), not to serialize
// concurrent access.
type World struct {
	entities   *entityStorage
	components map[reflect.Type]*vtable
	byName     map[string]*vtable
	resources  *resourceMap

	// Structural mutations queued from inside dispatches; drained by Finalize.
	lazy []lazyUpdate
}

// NewWorld creates an empty world with no registered component types.
func NewWorld() *World {
	return &World{
		entities:   newEntityStorage(),
		components: make(map[reflect.Type]*vtable),
		byName:     make(map[string]*vtable),
		resources:  newResourceMap(),
	}
}

// RegisterComponent registers a component type with the world, building its
// vtable from the type's self-description. Every component type must be
// registered before any entity may hold an instance of it.
//
// Panics if the type was already registered.
func RegisterComponent[C Component](w *World) {
	typ := reflect.TypeFor[C]()
	if _, ok := w.components[typ]; ok {
		panic(fmt.Sprintf("ecm: component type %s already registered", typ))
	}

	b := newHandlerBuilder(typ, false)
	var zero C
	zero.RegisterHandlers(b)

	vt := b.intoVtable()
	if prev, ok := w.byName[vt.friendlyName]; ok {
		panic(fmt.Sprintf("ecm: friendly name %q of %s already taken by %s", vt.friendlyName, typ, prev.typ))
	}
	w.components[typ] = vt
	w.byName[vt.friendlyName] = vt
}

// ExtendComponent adds message handlers to an already-registered component
// type, for message types it has not yet claimed. Lifecycle callbacks,
// friendly names and codecs may only be declared at initial registration.
//
// Panics if the type is unregistered or a message type is already claimed.
func ExtendComponent[C Component](w *World, extension func(b *HandlerBuilder)) {
	typ := reflect.TypeFor[C]()
	vt, ok := w.components[typ]
	if !ok {
		panic(fmt.Sprintf("ecm: tried to extend unregistered component type %s", typ))
	}

	b := newHandlerBuilder(typ, true)
	extension(b)

	for msgType, h := range b.handlers {
		if _, ok := vt.handlers[msgType]; ok {
			panic(fmt.Sprintf("ecm: message type %s already registered to component type %s", msgType, typ))
		}
		vt.handlers[msgType] = h
	}
}

// KnowsComponent reports whether a component type has been registered.
func KnowsComponent[C Component](w *World) bool {
	_, ok := w.components[reflect.TypeFor[C]()]
	return ok
}

func (w *World) vtableOf(typ reflect.Type) *vtable {
	vt, ok := w.components[typ]
	if !ok {
		panic(fmt.Sprintf("ecm: component type %s is not registered", typ))
	}
	return vt
}

// Spawn sets up a builder that inserts the entity as soon as Build is called.
func (w *World) Spawn() *EntityBuilder {
	return newImmediateBuilder(w, w.entities.allocateReserved())
}

// SpawnEmpty spawns an entity with no components.
func (w *World) SpawnEmpty() Entity {
	return w.Spawn().Build()
}

// LazySpawn sets up a builder whose entity is only populated at the next
// Finalize. The returned handle is valid to reference immediately; its
// liveness reports Reserved until the update applies.
func (w *World) LazySpawn() *EntityBuilder {
	return newLazyBuilder(w, w.entities.allocateReserved())
}

// Despawn removes an entity immediately, running remove callbacks against
// each of its components. Panics if the entity is dead or only reserved.
func (w *World) Despawn(e Entity) {
	assoc := w.entities.despawn(e)
	w.runRemoveCallbacks(e, assoc)
}

// LazyDespawn queues an entity to be despawned at the next Finalize.
func (w *World) LazyDespawn(e Entity) {
	w.queueUpdate(lazyUpdate{kind: lazyDespawn, entity: e})
}

// Liveness reports whether the handle refers to populated data, a
// reserved-but-unpopulated slot, or nothing.
func (w *World) Liveness(e Entity) Liveness {
	return w.entities.liveness(e)
}

// Len reports the number of alive entities.
func (w *World) Len() int {
	return w.entities.len()
}

// LenOf reports the number of components on an entity. Panics if it is not alive.
func (w *World) LenOf(e Entity) int {
	return w.entities.get(e).len()
}

// Entities iterates all alive entities. Iteration order is unspecified;
// callers must not depend on it.
func (w *World) Entities() iter.Seq[Entity] {
	return w.entities.iter()
}

// ComponentsOf iterates an entity's components in insertion order as
// (type identity, component) pairs, holding each component's read lock for
// the duration of its yield. This is the boundary serialization and
// templating layers build on. Panics if the entity is not alive.
func (w *World) ComponentsOf(e Entity) iter.Seq2[reflect.Type, Component] {
	assoc := w.entities.get(e)
	return func(yield func(reflect.Type, Component) bool) {
		for typ, entry := range assoc.all() {
			entry.tryRead(e, typ)
			ok := yield(typ, entry.comp)
			entry.mu.RUnlock()
			if !ok {
				return
			}
		}
	}
}

// BuildComponent constructs a component from semi-structured data given its
// friendly name, using the codec registered with RawCodec. Returns an error
// for unknown names or missing codecs; the data itself failing to decode is
// the codec's error.
func (w *World) BuildComponent(friendlyName string, raw map[string]any) (Component, error) {
	vt, ok := w.byName[friendlyName]
	if !ok {
		return nil, fmt.Errorf("ecm: no component type registered under the name %q", friendlyName)
	}
	if vt.decodeRaw == nil {
		return nil, fmt.Errorf("ecm: component type %s (%q) has no raw codec", vt.typ, friendlyName)
	}
	return vt.decodeRaw(raw)
}

// EncodeComponent returns a component's friendly name and raw data form.
func (w *World) EncodeComponent(c Component) (string, map[string]any, error) {
	vt, ok := w.components[componentType(c)]
	if !ok {
		return "", nil, fmt.Errorf("ecm: component type %s is not registered", componentType(c))
	}
	if vt.encodeRaw == nil {
		return "", nil, fmt.Errorf("ecm: component type %s (%q) has no raw codec", vt.typ, vt.friendlyName)
	}
	raw, err := vt.encodeRaw(c)
	if err != nil {
		return "", nil, err
	}
	return vt.friendlyName, raw, nil
}

// FriendlyName returns the registered friendly name of component type C.
func FriendlyName[C Component](w *World) string {
	return w.vtableOf(reflect.TypeFor[C]()).friendlyName
}

func (w *World) queueUpdate(u lazyUpdate) {
	w.lazy = append(w.lazy, u)
}

// checkTypesRegistered gates population: an entity may never hold an
// unregistered component type.
func (w *World) checkTypesRegistered(comps []Component) {
	for _, c := range comps {
		w.vtableOf(componentType(c))
	}
}

// finishSpawn populates a reserved entity and runs create callbacks.
func (w *World) finishSpawn(target Entity, comps []Component) {
	w.checkTypesRegistered(comps)
	w.entities.populate(target, newEntityAssoc(comps))
	w.runCreateCallbacks(target)
}

func (w *World) runCreateCallbacks(e Entity) {
	access := &CallbackAccess{w: w}
	assoc := w.entities.get(e)
	for typ, entry := range assoc.all() {
		vt := w.vtableOf(typ)
		if vt.onCreate == nil {
			continue
		}
		entry.tryRead(e, typ)
		vt.onCreate(entry.comp, e, access)
		entry.mu.RUnlock()
	}
}

func (w *World) runRemoveCallbacks(e Entity, assoc *entityAssoc) {
	access := &CallbackAccess{w: w}
	for typ, entry := range assoc.all() {
		vt := w.vtableOf(typ)
		if vt.onRemove == nil {
			continue
		}
		// The assoc is owned by us now; no lock needed.
		vt.onRemove(entry.comp, e, access)
	}
}

func (w *World) world() *World { return w }
