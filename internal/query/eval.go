package query

import (
	"maps"
	"slices"
	"strings"

	"github.com/starford/onto/internal/model"
)

// PropertyMatch is one property whose content satisfied a class match.
// Component is empty for the _id and _class pseudo-properties.
type PropertyMatch struct {
	Component string `json:"component,omitempty"`
	Property  string `json:"property"`
	Value     string `json:"value"`
}

// Result is one search hit: a *ClassResult or a *RelationResult.
type Result interface {
	Subject() *model.Instance
	result()
}

// ClassResult reports an instance matched by a class match, with the
// properties that matched. Matches is empty for existence-only matches and
// for instances included solely through NOT.
type ClassResult struct {
	Instance *model.Instance
	Matches  []PropertyMatch
}

// RelationResult reports one outgoing edge matched by a relation match. To
// is nil when the edge target is not a loaded instance.
type RelationResult struct {
	Edge      *model.Edge
	From      *model.Instance
	To        *model.Instance
	Qualifier string
	Value     string
}

func (r *ClassResult) Subject() *model.Instance    { return r.Instance }
func (r *RelationResult) Subject() *model.Instance { return r.From }
func (*ClassResult) result()                       {}
func (*RelationResult) result()                    {}

// Search parses q and evaluates it against g.
func Search(q string, g *model.Graph) ([]Result, error) {
	ast, err := ParseString(q)
	if err != nil {
		return nil, err
	}
	return FindMatches(ast, g), nil
}

// FindMatches evaluates ast against every instance of g in load order. For
// each instance that satisfies the expression it emits one result per leaf
// match outside a NOT that holds for that instance.
func FindMatches(ast Node, g *model.Graph) []Result {
	e := &evaluator{g: g, out: make(map[string][]*model.Edge)}
	for _, edge := range g.Edges {
		e.out[edge.From] = append(e.out[edge.From], edge)
	}

	var results []Result
	for _, inst := range g.Instances {
		if !e.eval(ast, inst) {
			continue
		}
		found := e.collect(ast, inst, nil)
		if len(found) == 0 {
			found = append(found, &ClassResult{Instance: inst})
		}
		results = append(results, found...)
	}
	return results
}

type evaluator struct {
	g   *model.Graph
	out map[string][]*model.Edge
}

func (e *evaluator) eval(n Node, inst *model.Instance) bool {
	switch n := n.(type) {
	case *And:
		return e.eval(n.Left, inst) && e.eval(n.Right, inst)
	case *Or:
		return e.eval(n.Left, inst) || e.eval(n.Right, inst)
	case *Not:
		return !e.eval(n.Operand, inst)
	case *ClassMatch:
		_, ok := matchClass(n, inst)
		return ok
	case *RelationMatch:
		return len(e.matchRelation(n, inst)) > 0
	}
	return false
}

// collect walks the AST again, skipping NOT subtrees, and gathers a result
// for every leaf that matches inst on its own.
func (e *evaluator) collect(n Node, inst *model.Instance, acc []Result) []Result {
	switch n := n.(type) {
	case *And:
		return e.collect(n.Right, inst, e.collect(n.Left, inst, acc))
	case *Or:
		return e.collect(n.Right, inst, e.collect(n.Left, inst, acc))
	case *ClassMatch:
		if matches, ok := matchClass(n, inst); ok {
			acc = append(acc, &ClassResult{Instance: inst, Matches: matches})
		}
	case *RelationMatch:
		acc = append(acc, e.matchRelation(n, inst)...)
	}
	return acc
}

func matchClass(m *ClassMatch, inst *model.Instance) ([]PropertyMatch, bool) {
	if m.ID != "" && inst.ID != m.ID {
		return nil, false
	}
	if m.Class != "" && inst.Class != m.Class {
		return nil, false
	}

	var matches []PropertyMatch
	for _, f := range fields(inst) {
		if m.Property != "" && f.Property != m.Property {
			continue
		}
		if m.Value == nil {
			if m.Property != "" {
				matches = append(matches, f.PropertyMatch)
			}
			continue
		}
		if containsAny(f.values, *m.Value) {
			matches = append(matches, f.PropertyMatch)
		}
	}
	if m.Value == nil {
		return matches, true
	}
	return matches, len(matches) > 0
}

type field struct {
	PropertyMatch
	values []string
}

// fields lists the searchable properties of inst: _id, _class, then every
// component property in local-name and property-name order.
func fields(inst *model.Instance) []field {
	out := []field{
		{PropertyMatch{Property: model.KeyID, Value: inst.ID}, []string{inst.ID}},
		{PropertyMatch{Property: model.KeyClass, Value: inst.Class}, []string{inst.Class}},
	}
	for _, local := range sortedKeys(inst.Components) {
		props := inst.Components[local]
		for _, name := range sortedKeys(props) {
			v := props[name]
			out = append(out, field{
				PropertyMatch: PropertyMatch{Component: local, Property: name, Value: v.String()},
				values:        v.Strings(),
			})
		}
	}
	return out
}

func (e *evaluator) matchRelation(m *RelationMatch, inst *model.Instance) []Result {
	if m.FromID != "" && inst.ID != m.FromID {
		return nil
	}
	if m.FromClass != "" && inst.Class != m.FromClass {
		return nil
	}

	var out []Result
	for _, edge := range e.out[inst.ID] {
		if m.Relation != "" && edge.Relation != m.Relation {
			continue
		}
		r := &RelationResult{Edge: edge, From: inst}
		if m.Qualifier != "" {
			q, ok := edge.Qualifiers[m.Qualifier]
			if !ok {
				continue
			}
			r.Qualifier = m.Qualifier
			if m.Value != nil {
				if !containsAny(q.Strings(), *m.Value) {
					continue
				}
				r.Value = q.String()
			}
		} else if m.Value != nil {
			if !contains(edge.To, *m.Value) {
				continue
			}
			r.Value = edge.To
		}
		if to, ok := e.g.Instance(edge.To); ok {
			r.To = to
		}
		out = append(out, r)
	}
	return out
}

func contains(s, sub string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(sub))
}

func containsAny(values []string, sub string) bool {
	for _, v := range values {
		if contains(v, sub) {
			return true
		}
	}
	return false
}

func sortedKeys[V any](m map[string]V) []string {
	return slices.Sorted(maps.Keys(m))
}
