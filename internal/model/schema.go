package model

import (
	"maps"
	"slices"
)

// Schema is the merged T-box of every document in the store.
type Schema struct {
	Namespaces []string
	Components map[string]*Component
	Classes    map[string]*Class
	Relations  map[string]*Relation
}

// NewSchema returns an empty schema with the implicit LINKS_TO relation registered.
func NewSchema() *Schema {
	return &Schema{
		Components: make(map[string]*Component),
		Classes:    make(map[string]*Class),
		Relations: map[string]*Relation{
			LinksTo: {
				Name:        LinksTo,
				Domain:      Wildcard,
				Range:       Wildcard,
				Cardinality: ManyToMany,
				Implicit:    true,
			},
		},
	}
}

// ClassNames returns class names in sorted order.
func (s *Schema) ClassNames() []string { return sortedKeys(s.Classes) }

// RelationNames returns relation names in sorted order, implicit ones included.
func (s *Schema) RelationNames() []string { return sortedKeys(s.Relations) }

// HasNamespace reports whether ns is one of the declared namespaces.
func (s *Schema) HasNamespace(ns string) bool {
	return slices.Contains(s.Namespaces, ns)
}

// PropertyDef resolves the definition of a property reached through an
// instance's local component name.
func (s *Schema) PropertyDef(class, local, prop string) (*PropertyDef, bool) {
	c, ok := s.Classes[class]
	if !ok {
		return nil, false
	}
	compName, ok := c.Components[local]
	if !ok {
		return nil, false
	}
	comp, ok := s.Components[compName]
	if !ok {
		return nil, false
	}
	return comp.Property(prop)
}

// PropertyDef declares one typed property of a component.
type PropertyDef struct {
	Name         string
	Type         PropertyType
	Required     bool
	AllowedTypes []string
	UIHints      []string
}

// Component is a named, reusable bag of typed properties.
type Component struct {
	Name       string
	Properties []*PropertyDef
}

// Property returns the named property definition.
func (c *Component) Property(name string) (*PropertyDef, bool) {
	for _, p := range c.Properties {
		if p.Name == name {
			return p, true
		}
	}
	return nil, false
}

// HasRequired reports whether at least one property is required.
func (c *Component) HasRequired() bool {
	for _, p := range c.Properties {
		if p.Required {
			return true
		}
	}
	return false
}

// Class is an entity type composed of components under local names.
// A class without components is a valid type marker.
type Class struct {
	Name       string
	Components map[string]string
	SourceFile string
}

// LocalNames returns the class's local component names in sorted order.
func (c *Class) LocalNames() []string { return sortedKeys(c.Components) }

// QualifierDef declares the type of an edge qualifier.
type QualifierDef struct {
	Name string
	Type PropertyType
}

// Relation is a typed edge kind.
type Relation struct {
	Name        string
	Domain      string
	Range       string
	Cardinality Cardinality
	Qualifiers  map[string]*QualifierDef
	SourceFile  string

	// Implicit marks relations that are never declared in a document.
	Implicit bool
}

// Cardinality is one of the short relation cardinality codes.
type Cardinality string

// Cardinality codes.
const (
	OneToOne   Cardinality = "oto"
	OneToMany  Cardinality = "otm"
	ManyToOne  Cardinality = "mto"
	ManyToMany Cardinality = "mtm"
)

// Many is the unbounded maximum of a cardinality range.
const Many = -1

// Bounds returns the numeric {min, max} a cardinality code maps to; max is
// Many when unbounded. ok is false for unknown codes.
func (c Cardinality) Bounds() (lo, hi int, ok bool) {
	switch c {
	case OneToOne:
		return 1, 1, true
	case OneToMany:
		return 1, Many, true
	case ManyToOne:
		return 0, 1, true
	case ManyToMany:
		return 0, Many, true
	}
	return 0, 0, false
}

// CardinalityFromBounds maps a long-form {min, max} pair back to a code.
func CardinalityFromBounds(lo, hi int) (Cardinality, bool) {
	switch {
	case lo == 1 && hi == 1:
		return OneToOne, true
	case lo == 1 && hi == Many:
		return OneToMany, true
	case lo == 0 && hi == 1:
		return ManyToOne, true
	case lo == 0 && hi == Many:
		return ManyToMany, true
	}
	return "", false
}

func sortedKeys[V any](m map[string]V) []string {
	return slices.Sorted(maps.Keys(m))
}
