package validator

import (
	"slices"
	"strings"

	"github.com/starford/onto/internal/model"
)

func (v *run) checkInstances() {
	for _, inst := range v.g.Instances {
		v.checkInstance(inst)
	}
}

func (v *run) checkInstance(inst *model.Instance) {
	file, label := inst.SourceFile, inst.Label()

	if inst.ID == "" {
		v.errorf(CategoryStructural, file, label, "instance is missing _id")
	}
	if inst.Namespace != "" && !v.g.Schema.HasNamespace(inst.Namespace) {
		v.errorf(CategoryReferential, file, label, "namespace %q is not declared under schema.namespaces", inst.Namespace)
	}
	if inst.Class == "" {
		v.errorf(CategoryStructural, file, label, "instance is missing _class")
		return
	}
	class, ok := v.g.Schema.Classes[inst.Class]
	if !ok {
		v.errorf(CategoryReferential, file, label, "unknown class %q", inst.Class)
		return
	}

	for _, key := range sortedKeys(inst.Raw) {
		if _, reserved := model.ReservedInstanceKeys[key]; !reserved {
			v.errorf(CategoryStructural, file, label, "unexpected key %q at instance root; properties must be declared inside a component", key)
		}
	}

	rawComps, present := inst.Raw[model.KeyComponents]
	comps, isMap := asMap(rawComps)
	if present && rawComps != nil && !isMap {
		v.errorf(CategoryStructural, file, label, "components must be a mapping of local name to properties")
	}

	for _, local := range sortedKeys(comps) {
		compName, declared := class.Components[local]
		if !declared {
			v.errorf(CategoryReferential, file, label, "component %q is not declared on class %s", local, class.Name)
			continue
		}
		comp, exists := v.g.Schema.Components[compName]
		if !exists {
			// reported once against the class declaration
			continue
		}
		block, ok := asMap(comps[local])
		if !ok {
			if comps[local] != nil {
				v.errorf(CategoryType, file, label, "component %q must be a mapping of properties, got %s", local, model.TypeName(comps[local]))
			}
			block = nil
		}
		values := inst.Components[local]
		for _, prop := range sortedKeys(block) {
			if _, ok := comp.Property(prop); !ok {
				v.errorf(CategoryReferential, file, label, "property %s.%s is not declared on component %s", local, prop, comp.Name)
				continue
			}
			v.checkValue(file, label, "property "+local+"."+prop, values[prop])
		}
		for _, def := range comp.Properties {
			if _, ok := block[def.Name]; def.Required && !ok {
				v.errorf(CategoryType, file, label, "missing required property %s.%s", local, def.Name)
			}
		}
	}

	for _, local := range class.LocalNames() {
		if _, ok := comps[local]; ok {
			continue
		}
		if comp, exists := v.g.Schema.Components[class.Components[local]]; exists && comp.HasRequired() {
			v.errorf(CategoryType, file, label, "missing required component %q (%s)", local, comp.Name)
		}
	}
}

// checkValue reports a resolved value's type error, descending into array
// elements.
func (v *run) checkValue(file, label, what string, val model.Value) {
	if val.Err != nil {
		v.errorf(CategoryType, file, label, "%s: %v", what, val.Err)
		return
	}
	for i, item := range val.Items {
		if item.Err != nil {
			v.errorf(CategoryType, file, label, "%s[%d]: %v", what, i, item.Err)
		}
	}
}

func (v *run) checkRefs() {
	for _, inst := range v.g.Instances {
		class, ok := v.g.Schema.Classes[inst.Class]
		if !ok {
			continue
		}
		for _, local := range sortedKeys(inst.Components) {
			values := inst.Components[local]
			for _, prop := range sortedKeys(values) {
				def, ok := v.g.Schema.PropertyDef(class.Name, local, prop)
				if !ok || !def.Type.IsRef() {
					continue
				}
				for _, ref := range values[prop].Refs() {
					v.checkRef(inst, local+"."+prop, def, ref)
				}
			}
		}
	}
}

func (v *run) checkRef(inst *model.Instance, what string, def *model.PropertyDef, ref model.Ref) {
	file, label := inst.SourceFile, inst.Label()
	target, ok := v.g.Instance(ref.ID)
	if !ok {
		v.errorf(CategoryReferential, file, label, "reference %s -> %s: instance %q not found", what, ref, ref.ID)
		return
	}
	if target.Class != ref.Class {
		v.errorf(CategoryReferential, file, label, "reference %s -> %s: %q is a %s, not a %s", what, ref, ref.ID, target.Class, ref.Class)
	}
	if len(def.AllowedTypes) > 0 && !slices.Contains(def.AllowedTypes, ref.Class) {
		v.errorf(CategoryReferential, file, label, "reference %s -> %s: class %s is not allowed (allowed: %s)", what, ref, ref.Class, strings.Join(def.AllowedTypes, ", "))
	}
}
