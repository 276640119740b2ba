// Package model defines the in-memory typed graph: the schema (T-box) and the
// instances and edges (A-box) loaded from the store.
package model

// Document header values every storage document must declare.
const (
	APIVersion = "agent/v1"
	Kind       = "Ontology"
)

// LinksTo is the reserved relation derived from wiki-style links in Markdown bodies.
const LinksTo = "LINKS_TO"

// Wildcard matches any class in a relation's domain or range.
const Wildcard = "*"

// Reserved keys allowed at the root of an instance entry.
const (
	KeyClass      = "_class"
	KeyID         = "_id"
	KeyNamespace  = "_namespace"
	KeySource     = "_source"
	KeyRelations  = "relations"
	KeyComponents = "components"
	KeyTo         = "_to"
)

// ReservedInstanceKeys is the set of keys permitted at an instance root.
var ReservedInstanceKeys = map[string]struct{}{
	KeyClass:      {},
	KeyID:         {},
	KeyNamespace:  {},
	KeySource:     {},
	KeyRelations:  {},
	KeyComponents: {},
}

// Document is one decoded YAML document together with the file it came from.
// Raw keeps the decoded mapping so structural checks can see exactly what was written.
type Document struct {
	File     string
	Index    int
	Raw      map[string]any
	ParseErr error
}

// Instance is one populated class. Exactly one instance lives in a storage file.
type Instance struct {
	Class      string
	ID         string
	Namespace  string
	SourceFile string

	// Components maps a local component name to its resolved property values.
	Components map[string]map[string]Value

	// Raw is the instance entry as written, used for root-key and shape checks.
	Raw map[string]any
}

// Label returns the human-readable "id (Class)" form used in reports.
func (i *Instance) Label() string {
	if i == nil {
		return ""
	}
	if i.Class == "" {
		return i.ID
	}
	return i.ID + " (" + i.Class + ")"
}

// Property looks a property up by name across all components of the instance.
// The first component (by local name order) holding the property wins.
func (i *Instance) Property(name string) (Value, string, bool) {
	for _, local := range sortedKeys(i.Components) {
		if v, ok := i.Components[local][name]; ok {
			return v, local, true
		}
	}
	return Value{}, "", false
}

// Edge is a directed, typed link between two instances.
type Edge struct {
	From       string
	Relation   string
	To         string
	Qualifiers map[string]Value
	SourceFile string

	// Implicit is set for LINKS_TO edges derived from Markdown prose.
	Implicit bool
	// TargetClass is the class named by a wiki link, if any.
	TargetClass string
}

// Graph is the fully materialised store handed to the validator, the query
// engine and the traversal. It is built once per load and never mutated.
type Graph struct {
	Files     []string
	Documents []Document
	Schema    *Schema
	Instances []*Instance
	Edges     []*Edge

	index map[string]*Instance
}

// NewGraph builds the id index. When an id is defined more than once the
// first definition wins; the validator reports the rest.
func NewGraph(files []string, docs []Document, schema *Schema, instances []*Instance, edges []*Edge) *Graph {
	if schema == nil {
		schema = NewSchema()
	}
	g := &Graph{
		Files:     files,
		Documents: docs,
		Schema:    schema,
		Instances: instances,
		Edges:     edges,
		index:     make(map[string]*Instance, len(instances)),
	}
	for _, inst := range instances {
		if _, dup := g.index[inst.ID]; !dup {
			g.index[inst.ID] = inst
		}
	}
	return g
}

// Instance returns the instance registered under id.
func (g *Graph) Instance(id string) (*Instance, bool) {
	inst, ok := g.index[id]
	return inst, ok
}

// Outgoing returns the edges whose From equals id, in load order.
func (g *Graph) Outgoing(id string) []*Edge {
	var out []*Edge
	for _, e := range g.Edges {
		if e.From == id {
			out = append(out, e)
		}
	}
	return out
}

// Incoming returns the edges whose To equals id, in load order.
func (g *Graph) Incoming(id string) []*Edge {
	var out []*Edge
	for _, e := range g.Edges {
		if e.To == id {
			out = append(out, e)
		}
	}
	return out
}
