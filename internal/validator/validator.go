// Package validator checks a loaded graph against its schema: document
// structure, naming conventions, instance shape and types, referential
// integrity, edge placement and relation cardinality.
//
// Validate never fails. Every defect becomes an Issue and all checks run in a
// single pass, so one invocation surfaces everything.
package validator

import (
	"fmt"
	"maps"
	"slices"

	"github.com/starford/onto/internal/model"
)

// Validate runs every check against g and returns the full report.
func Validate(g *model.Graph) *Report {
	v := &run{g: g, report: &Report{Errors: []Issue{}, Warnings: []Issue{}}}

	v.checkDocuments()
	v.checkReservedRelations()
	v.checkFlatRelations()
	v.checkRelationTargets()
	v.checkNaming()
	v.checkSchemaMetadata()
	v.checkSchemaReferences()
	v.checkOneInstancePerFile()
	v.checkUniqueIDs()
	v.checkInstances()
	v.checkRefs()
	v.checkEdges()
	v.checkPlacement()
	v.checkCardinality()

	v.report.Valid = len(v.report.Errors) == 0
	v.report.Counts = count(g)
	return v.report
}

type run struct {
	g      *model.Graph
	report *Report
}

func (v *run) errorf(cat Category, source, instance, format string, args ...any) {
	v.report.Errors = append(v.report.Errors, Issue{
		Severity: SeverityError,
		Category: cat,
		Message:  fmt.Sprintf(format, args...),
		Source:   source,
		Instance: instance,
	})
}

func (v *run) warnf(source, instance, format string, args ...any) {
	v.report.Warnings = append(v.report.Warnings, Issue{
		Severity: SeverityWarning,
		Category: CategoryStyle,
		Message:  fmt.Sprintf(format, args...),
		Source:   source,
		Instance: instance,
	})
}

func (v *run) checkDocuments() {
	hasSection := make(map[string]bool)
	var files []string
	for _, doc := range v.g.Documents {
		if _, seen := hasSection[doc.File]; !seen {
			files = append(files, doc.File)
			hasSection[doc.File] = false
		}
		if doc.ParseErr != nil {
			v.errorf(CategoryStructural, doc.File, "", "document %d could not be parsed: %v", doc.Index, doc.ParseErr)
			continue
		}
		v.checkHeader(doc, "apiVersion", model.APIVersion)
		v.checkHeader(doc, "kind", model.Kind)
		_, hasSchema := doc.Raw["schema"]
		_, hasSpec := doc.Raw["spec"]
		if hasSchema || hasSpec {
			hasSection[doc.File] = true
		}
	}
	for _, f := range files {
		if !hasSection[f] {
			v.errorf(CategoryStructural, f, "", "file must contain a schema or spec section")
		}
	}
}

func (v *run) checkHeader(doc model.Document, key, want string) {
	got, ok := doc.Raw[key]
	if !ok {
		v.errorf(CategoryStructural, doc.File, "", "document %d is missing %s (expected %q)", doc.Index, key, want)
		return
	}
	if s, _ := got.(string); s != want {
		v.errorf(CategoryStructural, doc.File, "", "document %d has %s %v, expected %q", doc.Index, key, got, want)
	}
}

func (v *run) checkReservedRelations() {
	for _, doc := range v.g.Documents {
		rels, _ := asMap(section(doc, "schema")["relations"])
		if _, ok := rels[model.LinksTo]; ok {
			v.errorf(CategoryStructural, doc.File, "", "%s is reserved and implicit; it cannot be declared under schema.relations", model.LinksTo)
		}
	}
}

func (v *run) checkFlatRelations() {
	for _, doc := range v.g.Documents {
		if _, ok := section(doc, "spec")["relations"]; ok {
			v.errorf(CategoryStructural, doc.File, "", "top-level spec.relations is not supported; declare relations under each instance's relations map")
		}
	}
}

func (v *run) checkRelationTargets() {
	for _, doc := range v.g.Documents {
		for _, entry := range instanceEntries(doc) {
			label := rawLabel(entry)
			raw, present := entry[model.KeyRelations]
			if !present || raw == nil {
				continue
			}
			rels, ok := asMap(raw)
			if !ok {
				v.errorf(CategoryStructural, doc.File, label, "relations must be a mapping of relation name to targets")
				continue
			}
			for _, rel := range sortedKeys(rels) {
				targets := rels[rel]
				list, isList := targets.([]any)
				if !isList {
					list = []any{targets}
				}
				for _, t := range list {
					v.checkTargetShape(doc.File, label, rel, t)
				}
			}
		}
	}
}

func (v *run) checkTargetShape(file, label, rel string, target any) {
	switch t := target.(type) {
	case string:
		return
	case map[string]any:
		if _, ok := t[model.KeyTo].(string); ok {
			return
		}
		_, hasID := t[model.KeyID]
		_, hasClass := t[model.KeyClass]
		if hasID || hasClass {
			v.errorf(CategoryStructural, file, label, "relation %s target defines an inline instance (_id/_class); reference an existing instance with an id or {_to: <id>}", rel)
			return
		}
	}
	v.errorf(CategoryStructural, file, label, "relation %s target must be an id string or an object with _to, got %s", rel, model.TypeName(target))
}

func (v *run) checkOneInstancePerFile() {
	counts := make(map[string]int)
	var files []string
	for _, doc := range v.g.Documents {
		n := len(asList(section(doc, "spec")["classes"]))
		if n == 0 {
			continue
		}
		if _, seen := counts[doc.File]; !seen {
			files = append(files, doc.File)
		}
		counts[doc.File] += n
	}
	for _, f := range files {
		if counts[f] > 1 {
			v.errorf(CategoryStructural, f, "", "file defines %d instances under spec.classes; a file must hold exactly one instance", counts[f])
		}
	}
}

func (v *run) checkUniqueIDs() {
	first := make(map[string]string, len(v.g.Instances))
	for _, inst := range v.g.Instances {
		if inst.ID == "" {
			continue
		}
		if orig, dup := first[inst.ID]; dup {
			v.errorf(CategoryReferential, inst.SourceFile, inst.Label(), "duplicate _id %q: already defined in %s", inst.ID, orig)
			continue
		}
		first[inst.ID] = inst.SourceFile
	}
}

func count(g *model.Graph) Counts {
	c := Counts{
		Files:      len(g.Files),
		Documents:  len(g.Documents),
		Components: len(g.Schema.Components),
		Classes:    len(g.Schema.Classes),
		Instances:  len(g.Instances),
		Edges:      len(g.Edges),
	}
	for _, r := range g.Schema.Relations {
		if !r.Implicit {
			c.Relations++
		}
	}
	return c
}

func section(doc model.Document, name string) map[string]any {
	m, _ := asMap(doc.Raw[name])
	return m
}

func instanceEntries(doc model.Document) []map[string]any {
	var out []map[string]any
	for _, e := range asList(section(doc, "spec")["classes"]) {
		if m, ok := asMap(e); ok {
			out = append(out, m)
		}
	}
	return out
}

func rawLabel(entry map[string]any) string {
	id, _ := entry[model.KeyID].(string)
	class, _ := entry[model.KeyClass].(string)
	if class == "" {
		return id
	}
	return id + " (" + class + ")"
}

func asMap(v any) (map[string]any, bool) {
	m, ok := v.(map[string]any)
	return m, ok
}

func asList(v any) []any {
	l, _ := v.([]any)
	return l
}

func sortedKeys[V any](m map[string]V) []string {
	return slices.Sorted(maps.Keys(m))
}
