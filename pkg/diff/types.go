// SPDX-License-Identifier: Apache-2.0

package diff

import (
	"github.com/pgmt-dev/pgmt/pkg/catalog"
	"github.com/pgmt-dev/pgmt/pkg/render"
)

// diffTypes implements spec §4.4's Type step and §9's enum append-only
// rule: adding enum values at the end is an in-place alter; any other
// change to an enum's labels (or any change to a composite/range type)
// forces a drop+create, which cascades widely and requires explicit
// opt-in (spec §9, "Enum value removal").
func diffTypes(old, new *catalog.Catalog, opts Options) ([]Step, error) {
	oldM := indexByKey(old.Types, func(t catalog.Type) catalog.ID { return t.ID })
	newM := indexByKey(new.Types, func(t catalog.Type) catalog.ID { return t.ID })

	var steps []Step
	for _, k := range sortedKeys(oldM, newM) {
		o, inOld := oldM[k]
		n, inNew := newM[k]
		switch {
		case !inOld:
			steps = append(steps, Step{Object: n.ID, Action: ActionCreate, SQL: render.CreateType(n), Requires: n.DependsOn, Description: "create type " + n.ID.Name})
		case !inNew:
			steps = append(steps, Step{Object: o.ID, Action: ActionDrop, SQL: render.DropType(o.ID), Narrows: true, Description: "drop type " + o.ID.Name})
		case o.Kind != n.Kind || typeAttrsChanged(o, n):
			destructiveSteps, err := recreateType(o, n, opts)
			if err != nil {
				return nil, err
			}
			steps = append(steps, destructiveSteps...)
		case o.Kind == catalog.TypeEnum:
			enumSteps, err := diffEnumValues(o, n, opts)
			if err != nil {
				return nil, err
			}
			steps = append(steps, enumSteps...)
		}
	}
	return steps, nil
}

func typeAttrsChanged(o, n catalog.Type) bool {
	if o.Kind != catalog.TypeEnum {
		if o.Subtype != n.Subtype || len(o.Attributes) != len(n.Attributes) {
			return true
		}
		for i := range o.Attributes {
			if o.Attributes[i] != n.Attributes[i] {
				return true
			}
		}
	}
	return false
}

func recreateType(o, n catalog.Type, opts Options) ([]Step, error) {
	if !opts.AllowDestructiveEnumChanges {
		return nil, &DestructiveChangeError{Object: n.ID.String(), Reason: "type definition changed incompatibly; requires dropping and recreating the type"}
	}
	return []Step{
		{Object: o.ID, Action: ActionDrop, SQL: render.DropType(o.ID), Narrows: true, Description: "drop type " + o.ID.Name + " (incompatible change)"},
		{Object: n.ID, Action: ActionCreate, SQL: render.CreateType(n), Requires: n.DependsOn, Description: "recreate type " + n.ID.Name},
	}, nil
}

func diffEnumValues(o, n catalog.Type, opts Options) ([]Step, error) {
	oldSet := make(map[string]int, len(o.EnumLabels))
	for i, l := range o.EnumLabels {
		oldSet[l] = i
	}

	// the new list must be a superset of the old, in the same relative
	// order, for this to be append-only.
	var appended []string
	oi := 0
	for _, l := range n.EnumLabels {
		if oi < len(o.EnumLabels) && l == o.EnumLabels[oi] {
			oi++
			continue
		}
		if _, existed := oldSet[l]; existed {
			// reordering: not append-only.
			return recreateType(o, n, opts)
		}
		appended = append(appended, l)
	}
	if oi != len(o.EnumLabels) {
		// a label was removed.
		return recreateType(o, n, opts)
	}

	var steps []Step
	after := ""
	if len(o.EnumLabels) > 0 {
		after = o.EnumLabels[len(o.EnumLabels)-1]
	}
	for _, label := range appended {
		steps = append(steps, Step{
			Object: n.ID, Action: ActionAlter, Op: OpAlterEnumAddValue,
			SQL:         render.AddEnumValue(n.ID, label, after),
			Description: "add enum value " + label + " to " + n.ID.Name,
		})
		after = label
	}
	return steps, nil
}
