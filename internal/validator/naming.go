package validator

import (
	"regexp"

	"github.com/starford/onto/internal/model"
)

var (
	properCase = regexp.MustCompile(`^[A-Z][A-Za-z0-9]*$`)
	upperSnake = regexp.MustCompile(`^[A-Z][A-Z0-9]*(_[A-Z0-9]+)*$`)
	camelCase  = regexp.MustCompile(`^[a-z][A-Za-z0-9]*$`)
)

// checkNaming emits style warnings straight from the raw schema sections so
// every declaration is seen, including ones shadowed by an earlier file.
func (v *run) checkNaming() {
	for _, doc := range v.g.Documents {
		sec := section(doc, "schema")
		if sec == nil {
			continue
		}

		comps, _ := asMap(sec["components"])
		for _, name := range sortedKeys(comps) {
			if !properCase.MatchString(name) {
				v.warnf(doc.File, "", "component %q should be ProperCase", name)
			}
			props, _ := asMap(comps[name])
			for _, prop := range sortedKeys(props) {
				if !camelCase.MatchString(prop) {
					v.warnf(doc.File, "", "property %s.%s should be camelCase", name, prop)
				}
			}
		}

		classes, _ := asMap(sec["classes"])
		for _, name := range sortedKeys(classes) {
			if !properCase.MatchString(name) {
				v.warnf(doc.File, "", "class %q should be ProperCase", name)
			}
			locals, _ := asMap(classes[name])
			for _, local := range sortedKeys(locals) {
				if !camelCase.MatchString(local) {
					v.warnf(doc.File, "", "component local name %s.%s should be camelCase", name, local)
				}
			}
		}

		rels, _ := asMap(sec["relations"])
		for _, name := range sortedKeys(rels) {
			if name == model.LinksTo {
				continue
			}
			if !upperSnake.MatchString(name) {
				v.warnf(doc.File, "", "relation %q should be UPPER_SNAKE", name)
			}
			def, _ := asMap(rels[name])
			if _, long := def["cardinality"].(map[string]any); long {
				v.warnf(doc.File, "", "relation %s should use a cardinality code (oto, otm, mto, mtm) instead of {min, max}", name)
			}
			quals, _ := asMap(def["qualifiers"])
			for _, q := range sortedKeys(quals) {
				if !camelCase.MatchString(q) {
					v.warnf(doc.File, "", "qualifier %s.%s should be camelCase", name, q)
				}
			}
		}
	}
}

// checkSchemaMetadata validates property metadata and relation cardinality
// codes.
func (v *run) checkSchemaMetadata() {
	for _, doc := range v.g.Documents {
		sec := section(doc, "schema")
		if sec == nil {
			continue
		}

		comps, _ := asMap(sec["components"])
		for _, name := range sortedKeys(comps) {
			props, _ := asMap(comps[name])
			for _, prop := range sortedKeys(props) {
				def, ok := asMap(props[prop])
				if !ok {
					continue
				}
				v.checkPropertyMetadata(doc.File, name, prop, def)
			}
		}

		rels, _ := asMap(sec["relations"])
		for _, name := range sortedKeys(rels) {
			def, _ := asMap(rels[name])
			raw, present := def["cardinality"]
			if !present || name == model.LinksTo {
				continue
			}
			r := v.g.Schema.Relations[name]
			if r == nil {
				continue
			}
			if _, _, ok := r.Cardinality.Bounds(); !ok {
				v.errorf(CategoryStructural, doc.File, "", "relation %s has invalid cardinality %v (expected oto, otm, mto or mtm)", name, raw)
			}
		}
	}
}

func (v *run) checkPropertyMetadata(file, comp, prop string, def map[string]any) {
	typeTag, _ := def["type"].(string)
	typ := model.ParseType(typeTag)

	if allowed, ok := def["allowedTypes"]; ok {
		if !typ.IsRef() {
			v.errorf(CategoryStructural, file, "", "property %s.%s: allowedTypes is only valid on ref or ref[] properties", comp, prop)
		}
		if !nonEmptyStrings(allowed) {
			v.errorf(CategoryStructural, file, "", "property %s.%s: allowedTypes must be a non-empty array of class names", comp, prop)
		}
	}
	if hints, ok := def["uiHints"]; ok {
		if _, isList := hints.([]any); !isList || !allStrings(hints) {
			v.errorf(CategoryStructural, file, "", "property %s.%s: uiHints must be an array of strings", comp, prop)
		}
	}
}

func nonEmptyStrings(v any) bool {
	list, ok := v.([]any)
	return ok && len(list) > 0 && allStrings(v)
}

func allStrings(v any) bool {
	for _, item := range asList(v) {
		if _, ok := item.(string); !ok {
			return false
		}
	}
	return true
}
