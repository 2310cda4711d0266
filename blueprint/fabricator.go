package blueprint

import (
	"fmt"

	"github.com/plus3/herald/ecm"
	"gopkg.in/yaml.v3"
)

// Fabricator instantiates entities from a blueprint library. Component lines
// become components through the friendly-name codecs registered with the
// world, so any component type meant to appear in blueprint files needs a
// RawCodec (see Codec for the common case).
type Fabricator struct {
	world *ecm.World
	lib   *Library
}

func NewFabricator(w *ecm.World) *Fabricator {
	return &Fabricator{world: w, lib: NewLibrary()}
}

// Library exposes the underlying blueprint library.
func (f *Fabricator) Library() *Library {
	return f.lib
}

// LoadString merges a YAML blueprint document into the fabricator.
func (f *Fabricator) LoadString(src, filename string) error {
	return f.lib.LoadString(src, filename)
}

// components resolves a blueprint into built component instances, in
// blueprint order, touching no entity state.
func (f *Fabricator) components(name string) ([]ecm.Component, error) {
	rendered, err := f.lib.Lookup(name)
	if err != nil {
		return nil, err
	}
	comps := make([]ecm.Component, 0, len(rendered.Components))
	for _, line := range rendered.Components {
		comp, err := f.world.BuildComponent(line.Name, line.Raw)
		if err != nil {
			return nil, fmt.Errorf("blueprint %q: %w", name, err)
		}
		comps = append(comps, comp)
	}
	return comps, nil
}

// InstantiateOnto adds the named blueprint's components to an existing
// builder, in blueprint order. The builder doesn't have to be empty: callers
// often pre-insert a position before filling in the rest, and a component
// inserted again by the blueprint clobbers the earlier value in place.
func (f *Fabricator) InstantiateOnto(name string, b *ecm.EntityBuilder) error {
	comps, err := f.components(name)
	if err != nil {
		return err
	}
	for _, c := range comps {
		b.Insert(c)
	}
	return nil
}

// Instantiate spawns a new entity from the named blueprint. The blueprint is
// fully resolved before any entity slot is reserved, so a failed
// instantiation leaves the world untouched.
func (f *Fabricator) Instantiate(name string) (ecm.Entity, error) {
	comps, err := f.components(name)
	if err != nil {
		return 0, err
	}
	b := f.world.Spawn()
	for _, c := range comps {
		b.Insert(c)
	}
	return b.Build(), nil
}

// Codec registers a raw codec for C that round-trips it through YAML,
// mapping blueprint data keys onto C's yaml struct tags (or lowercased field
// names, yaml's default). Call it from C's RegisterHandlers; it covers every
// component that is a plain bag of data.
func Codec[C ecm.Component](b *ecm.HandlerBuilder) {
	ecm.RawCodec(b,
		func(raw map[string]any) (C, error) {
			var c C
			buf, err := yaml.Marshal(raw)
			if err != nil {
				return c, err
			}
			if err := yaml.Unmarshal(buf, &c); err != nil {
				return c, err
			}
			return c, nil
		},
		func(this *C) (map[string]any, error) {
			buf, err := yaml.Marshal(this)
			if err != nil {
				return nil, err
			}
			raw := make(map[string]any)
			if err := yaml.Unmarshal(buf, &raw); err != nil {
				return nil, err
			}
			return raw, nil
		})
}
