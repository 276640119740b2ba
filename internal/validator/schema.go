package validator

import (
	"github.com/starford/onto/internal/model"
)

// checkSchemaReferences verifies that the merged schema only points at names
// it declares: class locals at components, relation endpoints at classes.
func (v *run) checkSchemaReferences() {
	s := v.g.Schema
	for _, name := range s.ClassNames() {
		class := s.Classes[name]
		for _, local := range class.LocalNames() {
			comp := class.Components[local]
			if _, ok := s.Components[comp]; !ok {
				v.errorf(CategoryReferential, class.SourceFile, "", "class %s: local %s references undeclared component %q", name, local, comp)
			}
		}
	}

	for _, name := range s.RelationNames() {
		rel := s.Relations[name]
		if rel.Implicit {
			continue
		}
		v.checkEndpoint(rel, "domain", rel.Domain)
		v.checkEndpoint(rel, "range", rel.Range)
	}
}

func (v *run) checkEndpoint(rel *model.Relation, side, class string) {
	if class == model.Wildcard {
		return
	}
	if _, ok := v.g.Schema.Classes[class]; !ok {
		v.errorf(CategoryReferential, rel.SourceFile, "", "relation %s: %s %q is not a declared class", rel.Name, side, class)
	}
}
