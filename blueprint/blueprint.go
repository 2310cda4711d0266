// Package blueprint instantiates entities from named, inheritable component
// templates loaded from YAML, in the spirit of data-driven roguelikes. It
// sits entirely on the ecm package's public boundary: blueprints turn into
// components through the friendly-name codecs the world's registry carries.
//
// A blueprint document is a mapping of blueprint names to component lists:
//
//	goblin:
//	  components:
//	    - inherits: creature
//	    - tagline: {text: "a nasty goblin"}
//
// Each components entry is a single-key mapping: either a component's
// friendly name with its raw data, or "inherits" naming another blueprint
// whose components are spliced in at that position.
package blueprint

import (
	"fmt"
	"strings"

	"github.com/cespare/xxhash/v2"
	"gopkg.in/yaml.v3"
)

// MergeMode says what to do when a blueprint is loaded under a name the
// library already has.
type MergeMode int

const (
	// Merge folds the new blueprint into the old: components both have are
	// clobbered in place, components only the new one has are appended, and
	// components only the old one has are kept. The default.
	Merge MergeMode = iota
	// Clobber replaces the old blueprint completely.
	Clobber
)

func (m MergeMode) String() string {
	switch m {
	case Merge:
		return "merge"
	case Clobber:
		return "clobber"
	default:
		return fmt.Sprintf("MergeMode(%d)", int(m))
	}
}

// element is one line of a blueprint: a component definition, or a splice
// pulling in another blueprint's components at this position.
type element struct {
	splice string // blueprint name; empty for a component line
	name   string
	raw    map[string]any
}

type rawBlueprint struct {
	name     string
	merge    MergeMode
	elements []element
}

// Rendered is a blueprint with all inheritance folded in: just a flat,
// ordered list of component lines. The order is the order components will be
// inserted on the builder, which is dispatch order.
type Rendered struct {
	Name       string
	Components []Line
}

// Line is one codec-ready component definition.
type Line struct {
	Name string
	Raw  map[string]any
}

// Library holds named blueprints and resolves inheritance between them.
type Library struct {
	prints map[string]*rawBlueprint
	// xxhash fingerprints of sources already loaded, so the same file pulled
	// in through two include paths doesn't re-merge into itself.
	seen map[uint64]bool
}

func NewLibrary() *Library {
	return &Library{
		prints: make(map[string]*rawBlueprint),
		seen:   make(map[uint64]bool),
	}
}

// Len reports the number of distinct blueprint names in the library.
func (l *Library) Len() int {
	return len(l.prints)
}

// Contains reports whether a blueprint of that name has been loaded.
func (l *Library) Contains(name string) bool {
	_, ok := l.prints[name]
	return ok
}

// LoadString parses src as a YAML blueprint document and merges its
// blueprints into the library. The filename is only for error messages;
// nothing is read from disc. A source string already loaded before (by
// content, not by name) is skipped.
func (l *Library) LoadString(src, filename string) error {
	sum := xxhash.Sum64String(src)
	if l.seen[sum] {
		return nil
	}

	var doc yaml.Node
	if err := yaml.Unmarshal([]byte(src), &doc); err != nil {
		return fmt.Errorf("blueprint: parsing %s: %w", filename, err)
	}
	if len(doc.Content) == 0 {
		l.seen[sum] = true
		return nil
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return fmt.Errorf("blueprint: %s:%d: top level must be a mapping of blueprint names", filename, root.Line)
	}

	// Walk the raw node tree rather than unmarshalling into maps: duplicate
	// names within one document are legal (they merge in order), and the
	// component lists are order-sensitive.
	for i := 0; i < len(root.Content); i += 2 {
		key, val := root.Content[i], root.Content[i+1]
		raw, err := parseBlueprint(key.Value, val, filename)
		if err != nil {
			return err
		}
		l.insertRaw(raw)
	}
	l.seen[sum] = true
	return nil
}

func parseBlueprint(name string, node *yaml.Node, filename string) (*rawBlueprint, error) {
	if node.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("blueprint: %s:%d: blueprint %q must be a mapping", filename, node.Line, name)
	}

	bp := &rawBlueprint{name: name}
	sawComponents := false
	for i := 0; i < len(node.Content); i += 2 {
		key, val := node.Content[i], node.Content[i+1]
		switch key.Value {
		case "merge":
			switch strings.ToLower(val.Value) {
			case "merge":
				bp.merge = Merge
			case "clobber":
				bp.merge = Clobber
			default:
				return nil, fmt.Errorf("blueprint: %s:%d: merge must be \"merge\" or \"clobber\", not %q", filename, val.Line, val.Value)
			}
		case "components":
			if val.Kind != yaml.SequenceNode {
				return nil, fmt.Errorf("blueprint: %s:%d: components of %q must be a sequence", filename, val.Line, name)
			}
			for _, item := range val.Content {
				el, err := parseElement(item, filename)
				if err != nil {
					return nil, err
				}
				bp.elements = append(bp.elements, el)
			}
			sawComponents = true
		default:
			return nil, fmt.Errorf("blueprint: %s:%d: unknown key %q in blueprint %q (only \"merge\" and \"components\" are allowed)", filename, key.Line, key.Value, name)
		}
	}
	if !sawComponents {
		return nil, fmt.Errorf("blueprint: %s:%d: blueprint %q has no components list", filename, node.Line, name)
	}
	return bp, nil
}

func parseElement(item *yaml.Node, filename string) (element, error) {
	if item.Kind != yaml.MappingNode || len(item.Content) != 2 {
		return element{}, fmt.Errorf("blueprint: %s:%d: each components entry must be a single-key mapping", filename, item.Line)
	}
	key, val := item.Content[0], item.Content[1]

	if key.Value == "inherits" {
		if val.Kind != yaml.ScalarNode || val.Value == "" {
			return element{}, fmt.Errorf("blueprint: %s:%d: inherits must name a blueprint", filename, val.Line)
		}
		return element{splice: val.Value}, nil
	}

	raw := make(map[string]any)
	if val.Kind != yaml.ScalarNode || val.Value != "" {
		if err := val.Decode(&raw); err != nil {
			return element{}, fmt.Errorf("blueprint: %s:%d: data of component %q: %w", filename, val.Line, key.Value, err)
		}
	}
	return element{name: key.Value, raw: raw}, nil
}

// insertRaw adds a blueprint, applying its merge mode against any blueprint
// already under that name.
func (l *Library) insertRaw(bp *rawBlueprint) {
	old, ok := l.prints[bp.name]
	if !ok || bp.merge == Clobber {
		l.prints[bp.name] = bp
		return
	}

	for _, el := range bp.elements {
		if el.splice == "" {
			if at, found := findComponent(old.elements, el.name); found {
				old.elements[at] = el
				continue
			}
		}
		old.elements = append(old.elements, el)
	}
}

func findComponent(els []element, name string) (int, bool) {
	for i, el := range els {
		if el.splice == "" && el.name == name {
			return i, true
		}
	}
	return -1, false
}

// Lookup resolves a blueprint by name, folding all inherits lines in. Each
// splice is expanded in place, so a blueprint's position among its parent's
// components is preserved.
func (l *Library) Lookup(name string) (Rendered, error) {
	lines, err := l.render(name, nil)
	if err != nil {
		return Rendered{}, err
	}
	return Rendered{Name: name, Components: lines}, nil
}

func (l *Library) render(name string, path []string) ([]Line, error) {
	bp, ok := l.prints[name]
	if !ok {
		if len(path) == 0 {
			return nil, LookupError{Name: name, Kind: BlueprintNotFound}
		}
		return nil, LookupError{Name: name, Kind: InheriteeNotFound, From: path[len(path)-1]}
	}

	var out []Line
	for _, el := range bp.elements {
		if el.splice == "" {
			out = append(out, Line{Name: el.name, Raw: el.raw})
			continue
		}
		for at, step := range path {
			if step == el.splice {
				loop := append(append([]string{}, path[at:]...), name, el.splice)
				return nil, LookupError{Name: el.splice, Kind: InheritanceLoop, Loop: loop}
			}
		}
		spliced, err := l.render(el.splice, append(path, name))
		if err != nil {
			return nil, err
		}
		out = append(out, spliced...)
	}
	return out, nil
}

// LookupErrorKind classifies blueprint lookup failures.
type LookupErrorKind int

const (
	// BlueprintNotFound means the entrypoint name is not in the library.
	BlueprintNotFound LookupErrorKind = iota
	// InheriteeNotFound means a blueprint inherits from a name that is not
	// in the library.
	InheriteeNotFound
	// InheritanceLoop means following inherits lines came back around.
	InheritanceLoop
)

// LookupError is returned when a blueprint cannot be resolved.
type LookupError struct {
	Name string
	Kind LookupErrorKind
	// From is the inheriting blueprint, for InheriteeNotFound.
	From string
	// Loop is the cycle, first element repeated at the end, for InheritanceLoop.
	Loop []string
}

func (e LookupError) Error() string {
	switch e.Kind {
	case BlueprintNotFound:
		return fmt.Sprintf("blueprint: %q not found", e.Name)
	case InheriteeNotFound:
		return fmt.Sprintf("blueprint: %q inherits from %q, which was not found", e.From, e.Name)
	case InheritanceLoop:
		return fmt.Sprintf("blueprint: inheritance loop: %s", strings.Join(e.Loop, " -> "))
	default:
		return fmt.Sprintf("blueprint: lookup of %q failed (%d)", e.Name, int(e.Kind))
	}
}
