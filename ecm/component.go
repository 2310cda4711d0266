package ecm

import (
	"fmt"
	"reflect"
)

// Component is something attached to an Entity that gives it its behavior.
//
// Implement RegisterHandlers with a value receiver; it describes, once per
// world, which message types the component reacts to and with what access.
// Instances are stored behind pointers, so write handlers receive *C and can
// mutate in place.
type Component interface {
	RegisterHandlers(b *HandlerBuilder)
}

// msgHandler is the type-erased form of a registered handler. The generic
// HandleRead/HandleWrite wrappers perform the only casts in the system,
// guarded by the message/component type identities the tables are keyed by.
type msgHandler struct {
	write bool
	fn    func(comp Component, msg any, owner Entity, access *WorldAccess) any
}

type createCallback func(comp Component, owner Entity, access *CallbackAccess)
type removeCallback func(comp Component, owner Entity, access *CallbackAccess)

// vtable is the immutable runtime description of a component type: its
// message handlers, lifecycle callbacks, and the friendly name + raw codec
// used by templating and serialization collaborators. Built once at
// registration; only ever extended with handlers for unclaimed message types.
type vtable struct {
	typ          reflect.Type
	friendlyName string
	handlers     map[reflect.Type]msgHandler
	onCreate     createCallback
	onRemove     removeCallback
	decodeRaw    func(raw map[string]any) (Component, error)
	encodeRaw    func(comp Component) (map[string]any, error)
}

// HandlerBuilder collects a component type's self-description during
// registration. Use the generic free functions HandleRead, HandleWrite,
// OnCreate, OnRemove and RawCodec to fill it in.
type HandlerBuilder struct {
	compType  reflect.Type
	handlers  map[reflect.Type]msgHandler
	onCreate  createCallback
	onRemove  removeCallback
	name      string
	decodeRaw func(raw map[string]any) (Component, error)
	encodeRaw func(comp Component) (map[string]any, error)

	// extending forbids everything except message handlers
	extending bool
}

func newHandlerBuilder(compType reflect.Type, extending bool) *HandlerBuilder {
	return &HandlerBuilder{
		compType:  compType,
		handlers:  make(map[reflect.Type]msgHandler),
		extending: extending,
	}
}

// SetFriendlyName overrides the name templating and serialization layers use
// for this component type. Defaults to the Go type name.
func (b *HandlerBuilder) SetFriendlyName(name string) {
	if b.extending {
		panic(fmt.Sprintf("ecm: cannot set the friendly name of %s in an extension", b.compType))
	}
	if b.name != "" {
		panic(fmt.Sprintf("ecm: friendly name of %s set twice (%q, then %q)", b.compType, b.name, name))
	}
	b.name = name
}

func (b *HandlerBuilder) addHandler(msgType reflect.Type, h msgHandler) {
	if _, ok := b.handlers[msgType]; ok {
		panic(fmt.Sprintf("ecm: message type %s already registered to component type %s", msgType, b.compType))
	}
	b.handlers[msgType] = h
}

func (b *HandlerBuilder) intoVtable() *vtable {
	name := b.name
	if name == "" {
		name = b.compType.Name()
	}
	return &vtable{
		typ:          b.compType,
		friendlyName: name,
		handlers:     b.handlers,
		onCreate:     b.onCreate,
		onRemove:     b.onRemove,
		decodeRaw:    b.decodeRaw,
		encodeRaw:    b.encodeRaw,
	}
}

// HandleRead tells the world to send messages of type M to components of
// type C under a shared borrow. The handler must not mutate the component.
func HandleRead[C Component, M any](b *HandlerBuilder, handler func(this *C, msg M, owner Entity, access *WorldAccess) M) {
	checkBuilderComponent[C](b)
	b.addHandler(reflect.TypeFor[M](), msgHandler{
		write: false,
		fn: func(comp Component, msg any, owner Entity, access *WorldAccess) any {
			return handler(any(comp).(*C), msg.(M), owner, access)
		},
	})
}

// HandleWrite tells the world to send messages of type M to components of
// type C under an exclusive borrow.
func HandleWrite[C Component, M any](b *HandlerBuilder, handler func(this *C, msg M, owner Entity, access *WorldAccess) M) {
	checkBuilderComponent[C](b)
	b.addHandler(reflect.TypeFor[M](), msgHandler{
		write: true,
		fn: func(comp Component, msg any, owner Entity, access *WorldAccess) any {
			return handler(any(comp).(*C), msg.(M), owner, access)
		},
	})
}

// OnCreate registers a callback run for each new instance of C, immediately
// after an immediate spawn and during Finalize for lazy spawns. May only be
// declared at initial registration, and only once.
func OnCreate[C Component](b *HandlerBuilder, cb func(this *C, owner Entity, access *CallbackAccess)) {
	checkBuilderComponent[C](b)
	if b.extending {
		panic(fmt.Sprintf("ecm: cannot add a create callback to %s in an extension", b.compType))
	}
	if b.onCreate != nil {
		panic(fmt.Sprintf("ecm: a create callback for %s already exists", b.compType))
	}
	b.onCreate = func(comp Component, owner Entity, access *CallbackAccess) {
		cb(any(comp).(*C), owner, access)
	}
}

// OnRemove registers a callback run for each instance of C removed from the
// world; the owner entity is already dead when it runs.
func OnRemove[C Component](b *HandlerBuilder, cb func(this *C, owner Entity, access *CallbackAccess)) {
	checkBuilderComponent[C](b)
	if b.extending {
		panic(fmt.Sprintf("ecm: cannot add a remove callback to %s in an extension", b.compType))
	}
	if b.onRemove != nil {
		panic(fmt.Sprintf("ecm: a remove callback for %s already exists", b.compType))
	}
	b.onRemove = func(comp Component, owner Entity, access *CallbackAccess) {
		cb(any(comp).(*C), owner, access)
	}
}

// RawCodec registers the decode/encode pair that lets templating and
// serialization collaborators round-trip C through semi-structured data.
func RawCodec[C Component](b *HandlerBuilder, decode func(raw map[string]any) (C, error), encode func(this *C) (map[string]any, error)) {
	checkBuilderComponent[C](b)
	if b.extending {
		panic(fmt.Sprintf("ecm: cannot add a raw codec to %s in an extension", b.compType))
	}
	if b.decodeRaw != nil || b.encodeRaw != nil {
		panic(fmt.Sprintf("ecm: a raw codec for %s already exists", b.compType))
	}
	b.decodeRaw = func(raw map[string]any) (Component, error) {
		c, err := decode(raw)
		if err != nil {
			return nil, err
		}
		return normalizeComponent(c), nil
	}
	b.encodeRaw = func(comp Component) (map[string]any, error) {
		return encode(any(comp).(*C))
	}
}

func checkBuilderComponent[C Component](b *HandlerBuilder) {
	if t := reflect.TypeFor[C](); t != b.compType {
		panic(fmt.Sprintf("ecm: builder for %s used with component type %s", b.compType, t))
	}
}

// normalizeComponent stores every component behind a pointer, whether the
// caller handed over a value or a pointer.
func normalizeComponent(comp any) Component {
	if comp == nil {
		panic("ecm: nil component")
	}
	rv := reflect.ValueOf(comp)
	if rv.Kind() == reflect.Ptr {
		if rv.IsNil() {
			panic("ecm: nil component pointer")
		}
		c, ok := comp.(Component)
		if !ok {
			panic(fmt.Sprintf("ecm: %s does not implement Component", rv.Type().Elem()))
		}
		return c
	}
	p := reflect.New(rv.Type())
	p.Elem().Set(rv)
	c, ok := p.Interface().(Component)
	if !ok {
		panic(fmt.Sprintf("ecm: %s does not implement Component", rv.Type()))
	}
	return c
}
