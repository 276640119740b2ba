package loader

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/starford/onto/internal/model"
	"github.com/starford/onto/internal/parser"
)

// mergeSchema folds one document's schema section into s. The first
// definition of a name wins; LINKS_TO is never redefined.
func mergeSchema(s *model.Schema, file string, doc *parser.Doc) {
	sec, ok := asMap(doc.Raw["schema"])
	if !ok {
		return
	}

	for _, ns := range asList(sec["namespaces"]) {
		if name, ok := ns.(string); ok && !slices.Contains(s.Namespaces, name) {
			s.Namespaces = append(s.Namespaces, name)
		}
	}

	comps, _ := asMap(sec["components"])
	for _, name := range sortedKeys(comps) {
		if _, dup := s.Components[name]; dup {
			continue
		}
		s.Components[name] = buildComponent(name, comps[name], parser.MappingKeys(doc.Node, "schema", "components", name))
	}

	classes, _ := asMap(sec["classes"])
	for _, name := range sortedKeys(classes) {
		if _, dup := s.Classes[name]; dup {
			continue
		}
		c := &model.Class{Name: name, Components: make(map[string]string), SourceFile: file}
		locals, _ := asMap(classes[name])
		for local, comp := range locals {
			c.Components[local] = asString(comp)
		}
		s.Classes[name] = c
	}

	rels, _ := asMap(sec["relations"])
	for _, name := range sortedKeys(rels) {
		if name == model.LinksTo {
			continue
		}
		if _, dup := s.Relations[name]; dup {
			continue
		}
		r := buildRelation(name, rels[name])
		r.SourceFile = file
		s.Relations[name] = r
	}
}

func buildComponent(name string, v any, order []string) *model.Component {
	c := &model.Component{Name: name}
	props, _ := asMap(v)
	if len(order) != len(props) {
		order = sortedKeys(props)
	}
	for _, prop := range order {
		c.Properties = append(c.Properties, buildProperty(prop, props[prop]))
	}
	return c
}

func buildProperty(name string, v any) *model.PropertyDef {
	def := &model.PropertyDef{Name: name}
	switch d := v.(type) {
	case string:
		def.Type = model.ParseType(d)
	case map[string]any:
		def.Type = model.ParseType(asString(d["type"]))
		def.Required, _ = d["required"].(bool)
		def.AllowedTypes = stringList(d["allowedTypes"])
		def.UIHints = stringList(d["uiHints"])
	default:
		def.Type = model.ParseType("")
	}
	return def
}

func buildRelation(name string, v any) *model.Relation {
	r := &model.Relation{
		Name:        name,
		Domain:      model.Wildcard,
		Range:       model.Wildcard,
		Cardinality: model.ManyToMany,
		Qualifiers:  make(map[string]*model.QualifierDef),
	}
	m, ok := asMap(v)
	if !ok {
		return r
	}
	if d := asString(m["domain"]); d != "" {
		r.Domain = d
	}
	if rg := asString(m["range"]); rg != "" {
		r.Range = rg
	}
	switch c := m["cardinality"].(type) {
	case string:
		r.Cardinality = model.Cardinality(c)
	case map[string]any:
		if code, ok := model.CardinalityFromBounds(bound(c["min"]), bound(c["max"])); ok {
			r.Cardinality = code
		} else {
			r.Cardinality = model.Cardinality(fmt.Sprintf("%v..%v", c["min"], c["max"]))
		}
	}
	quals, _ := asMap(m["qualifiers"])
	for q, def := range quals {
		typ := asString(def)
		if dm, ok := asMap(def); ok {
			typ = asString(dm["type"])
		}
		r.Qualifiers[q] = &model.QualifierDef{Name: q, Type: model.ParseType(typ)}
	}
	return r
}

// bound reads one end of a long-form cardinality; "many", "*" and "n" are unbounded.
func bound(v any) int {
	switch b := v.(type) {
	case int:
		return b
	case string:
		switch strings.ToLower(b) {
		case "many", "*", "n":
			return model.Many
		}
	}
	return -2
}

func asMap(v any) (map[string]any, bool) {
	m, ok := v.(map[string]any)
	return m, ok
}

func asList(v any) []any {
	l, _ := v.([]any)
	return l
}

func asString(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	}
	return fmt.Sprint(v)
}

func stringList(v any) []string {
	var out []string
	for _, item := range asList(v) {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func sortedKeys[V any](m map[string]V) []string {
	return slices.Sorted(maps.Keys(m))
}
