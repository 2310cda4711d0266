package ecm

import (
	"fmt"
	"reflect"
	"sync"
)

// Query fetches components off an entity directly, in a more lightweight way
// than message passing.
//
// The shape T is a struct whose fields are pointers to component types; the
// query succeeds only if every field can be filled. Named fields can be
// marked optional with the `ecm:"optional"` struct tag, in which case a
// missing component leaves the field nil instead of failing the query.
// Embedded fields are always required.
//
//	hit, ok := ecm.Query[struct {
//		Pos  *Position
//		Vel  *Velocity `ecm:"optional"`
//	}](w, e)
//
// A query that finds nothing returns ok == false, never panics. A query
// against a component that is currently write-borrowed is a caller bug and
// panics naming the entity and component type. Panics if the entity is not
// alive.
func Query[T any](a Access, target Entity) (T, bool) {
	var zero T
	plan := planFor(reflect.TypeFor[T]())
	assoc := a.world().entities.get(target)

	out := reflect.New(reflect.TypeFor[T]()).Elem()
	for _, f := range plan.fields {
		entry, ok := assoc.lookup(f.comp)
		if !ok {
			if f.optional {
				continue
			}
			return zero, false
		}
		if !entry.mu.TryRLock() {
			panic(fmt.Sprintf("ecm: component %s on %v was queried while mutably borrowed", f.comp, target))
		}
		entry.mu.RUnlock()
		out.Field(f.index).Set(reflect.ValueOf(entry.comp))
	}
	return out.Interface().(T), true
}

type queryField struct {
	index    int
	comp     reflect.Type
	optional bool
}

type queryPlan struct {
	fields []queryField
}

// Plans are compiled once per shape and shared by every world.
var queryPlans sync.Map // reflect.Type -> *queryPlan

func planFor(structType reflect.Type) *queryPlan {
	if cached, ok := queryPlans.Load(structType); ok {
		return cached.(*queryPlan)
	}

	if structType.Kind() != reflect.Struct {
		panic("ecm: Query type parameter must be a struct")
	}

	plan := &queryPlan{}
	for i := 0; i < structType.NumField(); i++ {
		field := structType.Field(i)
		if field.Type.Kind() != reflect.Ptr {
			panic("ecm: Query struct fields must be pointers to component types")
		}

		optional := false
		if !field.Anonymous {
			switch tag := field.Tag.Get("ecm"); tag {
			case "":
			case "optional":
				optional = true
			default:
				panic("ecm: invalid ecm tag value: \"" + tag + "\" (only \"optional\" is supported)")
			}
		}

		plan.fields = append(plan.fields, queryField{
			index:    i,
			comp:     field.Type.Elem(),
			optional: optional,
		})
	}

	actual, _ := queryPlans.LoadOrStore(structType, plan)
	return actual.(*queryPlan)
}

// Get is a single-component query: the component of type C on the target, or
// nil if the entity doesn't have one. Same borrow rules as Query.
func Get[C Component](a Access, target Entity) *C {
	assoc := a.world().entities.get(target)
	typ := reflect.TypeFor[C]()
	entry, ok := assoc.lookup(typ)
	if !ok {
		return nil
	}
	if !entry.mu.TryRLock() {
		panic(fmt.Sprintf("ecm: component %s on %v was queried while mutably borrowed", typ, target))
	}
	entry.mu.RUnlock()
	return any(entry.comp).(*C)
}
