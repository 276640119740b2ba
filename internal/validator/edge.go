package validator

import (
	"github.com/starford/onto/internal/model"
)

func (v *run) edgeLabel(e *model.Edge) string {
	if from, ok := v.g.Instance(e.From); ok {
		return from.Label()
	}
	return e.From
}

func (v *run) checkEdges() {
	for _, e := range v.g.Edges {
		file, label := e.SourceFile, v.edgeLabel(e)
		rel, ok := v.g.Schema.Relations[e.Relation]
		if !ok {
			v.errorf(CategoryReferential, file, label, "edge %s -[%s]-> %s: unknown relation %q", e.From, e.Relation, e.To, e.Relation)
			continue
		}

		from, fromOK := v.g.Instance(e.From)
		if !fromOK {
			v.errorf(CategoryReferential, file, label, "edge %s -[%s]-> %s: source instance %q not found", e.From, e.Relation, e.To, e.From)
		}
		to, toOK := v.g.Instance(e.To)
		if !toOK {
			v.errorf(CategoryReferential, file, label, "edge %s -[%s]-> %s: target instance %q not found", e.From, e.Relation, e.To, e.To)
		}
		if fromOK && rel.Domain != model.Wildcard && from.Class != rel.Domain {
			v.errorf(CategoryReferential, file, label, "edge %s -[%s]-> %s: domain of %s is %s but %q is a %s", e.From, e.Relation, e.To, rel.Name, rel.Domain, from.ID, from.Class)
		}
		if toOK && e.TargetClass != "" && to.Class != e.TargetClass {
			v.errorf(CategoryReferential, file, label, "link [[%s/%s]]: %q is a %s, not a %s", e.TargetClass, e.To, to.ID, to.Class, e.TargetClass)
		}
		if toOK && rel.Range != model.Wildcard && to.Class != rel.Range {
			v.errorf(CategoryReferential, file, label, "edge %s -[%s]-> %s: range of %s is %s but %q is a %s", e.From, e.Relation, e.To, rel.Name, rel.Range, to.ID, to.Class)
		}

		for _, q := range sortedKeys(e.Qualifiers) {
			if _, declared := rel.Qualifiers[q]; !declared {
				continue
			}
			v.checkValue(file, label, "edge "+e.From+" -["+e.Relation+"]-> "+e.To+" qualifier "+q, e.Qualifiers[q])
		}
	}
}

func (v *run) checkPlacement() {
	for _, e := range v.g.Edges {
		from, ok := v.g.Instance(e.From)
		if !ok || e.SourceFile == from.SourceFile {
			continue
		}
		v.errorf(CategoryReferential, e.SourceFile, from.Label(),
			"edge %s -[%s]-> %s is declared in %s but must live in %s, the file of its source instance",
			e.From, e.Relation, e.To, e.SourceFile, from.SourceFile)
	}
}

type edgeGroup struct {
	from, relation string
}

// checkCardinality counts edges per (from, relation) and flags groups above
// the relation's numeric maximum. Minimums are not enforced.
func (v *run) checkCardinality() {
	counts := make(map[edgeGroup]int)
	var order []edgeGroup
	for _, e := range v.g.Edges {
		k := edgeGroup{from: e.From, relation: e.Relation}
		if _, seen := counts[k]; !seen {
			order = append(order, k)
		}
		counts[k]++
	}

	for _, k := range order {
		rel, ok := v.g.Schema.Relations[k.relation]
		if !ok {
			continue
		}
		_, hi, ok := rel.Cardinality.Bounds()
		if !ok || hi == model.Many || counts[k] <= hi {
			continue
		}
		file, label := "", k.from
		if from, ok := v.g.Instance(k.from); ok {
			file, label = from.SourceFile, from.Label()
		}
		v.errorf(CategoryCardinality, file, label, "relation %s (%s) allows at most %d edge(s) from %q, found %d", rel.Name, rel.Cardinality, hi, k.from, counts[k])
	}
}
