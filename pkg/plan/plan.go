// SPDX-License-Identifier: Apache-2.0

// Package plan implements the scheduler (spec §4.5): it takes the
// unordered set of steps the differ produced and imposes the single total
// order in which they must be applied, respecting the dependency graph of
// both the old and new catalog.
package plan

import (
	"fmt"
	"sort"

	"github.com/pgmt-dev/pgmt/pkg/catalog"
	"github.com/pgmt-dev/pgmt/pkg/diff"
)

// Section groups a contiguous run of steps under a name, the unit of
// idempotence the tracking store resumes at (spec §9, "Partial-apply
// resume"). The planner assigns every step to exactly one section.
type Section struct {
	Name  string
	Steps []diff.Step
}

// Plan is the ordered, sectioned output of Schedule.
type Plan struct {
	Sections []Section
}

// Steps flattens the plan back into a single ordered slice, the order the
// shadow executor and the live applier both execute in.
func (p Plan) Steps() []diff.Step {
	var all []diff.Step
	for _, s := range p.Sections {
		all = append(all, s.Steps...)
	}
	return all
}

// Schedule orders steps into a drop phase, a middle alter phase, and a
// create phase (spec §4.5), then groups the result into sections.
//
// Drop phase: every Drop/Revoke step, and every Alter/Replace step marked
// Narrows, ordered dependents-before-dependencies over old_cat (the
// reverse of old_cat's own topological order).
//
// Create phase: every Create/Grant/Comment step, ordered
// dependencies-before-dependents over new_cat.
//
// Middle: the remaining (non-narrowing) Alter/Replace steps, ordered by
// their object's position in new_cat's topological order, same as the
// create phase — spec §4.5 describes this as "between the two phases",
// which this satisfies since it uses new_cat's order and runs after every
// drop but is still sorted before object creates that depend on it is not
// required, as in-place alters target objects that already exist in both
// catalogs.
//
// Before phasing, Schedule inserts the mandatory intermediate steps spec
// §4.5 names: it rewrites an AddColumn(not_null, no_default) step per
// opts (see insertNotNullBackfill), it rewrites a SetNotNull step against
// an existing column with no default into a backfill-then-constrain pair
// (see backfillExistingNotNull), and it forces any view or index that
// still depends on a dropped column to be dropped ahead of it (see
// forceDropDependents).
func Schedule(steps []diff.Step, oldCat, newCat *catalog.Catalog, opts Options) (Plan, error) {
	oldOrder, err := topoOrder(oldCat)
	if err != nil {
		return Plan{}, fmt.Errorf("ordering old catalog: %w", err)
	}
	newOrder, err := topoOrder(newCat)
	if err != nil {
		return Plan{}, fmt.Errorf("ordering new catalog: %w", err)
	}

	steps, err = insertNotNullBackfill(steps, opts)
	if err != nil {
		return Plan{}, err
	}
	steps, err = backfillExistingNotNull(steps, opts)
	if err != nil {
		return Plan{}, err
	}
	steps = forceDropDependents(steps, oldCat)

	dropPos := reversePositions(oldOrder)
	createPos := positions(newOrder)

	var dropPhase, middle, createPhase []diff.Step
	for _, s := range steps {
		switch {
		case s.Action == diff.ActionDrop || s.Action == diff.ActionRevoke || s.Narrows:
			dropPhase = append(dropPhase, s)
		case s.Action == diff.ActionAlter || s.Action == diff.ActionReplace:
			middle = append(middle, s)
		default:
			createPhase = append(createPhase, s)
		}
	}

	sortByPosition(dropPhase, dropPos)
	sortByPosition(middle, createPos)
	sortByPosition(createPhase, createPos)

	var ordered []diff.Step
	ordered = append(ordered, dropPhase...)
	ordered = append(ordered, middle...)
	ordered = append(ordered, createPhase...)

	return Plan{Sections: sectionize(ordered)}, nil
}

func positions(order []catalog.ID) map[string]int {
	m := make(map[string]int, len(order))
	for i, id := range order {
		m[id.Key()] = i
	}
	return m
}

func reversePositions(order []catalog.ID) map[string]int {
	m := make(map[string]int, len(order))
	n := len(order)
	for i, id := range order {
		m[id.Key()] = n - 1 - i
	}
	return m
}

func sortByPosition(steps []diff.Step, pos map[string]int) {
	sort.SliceStable(steps, func(i, j int) bool {
		pi, iok := pos[steps[i].Object.Key()]
		pj, jok := pos[steps[j].Object.Key()]
		if !iok {
			pi = len(pos)
		}
		if !jok {
			pj = len(pos)
		}
		if pi != pj {
			return pi < pj
		}
		ki, kj := catalog.KindPriority[steps[i].Object.Kind], catalog.KindPriority[steps[j].Object.Kind]
		if ki != kj {
			return ki < kj
		}
		return steps[i].Object.Key() < steps[j].Object.Key()
	})
}

// topoOrder returns every object in cat in dependency order (a node always
// appears after everything it depends on), ties broken by the fixed kind
// priority table and then lexicographically by key, so the order is
// deterministic for a given catalog (spec §4.5's "fixed tie-break").
func topoOrder(cat *catalog.Catalog) ([]catalog.ID, error) {
	ids := cat.AllIDs()
	indegree := make(map[string]int, len(ids))
	dependents := make(map[string][]catalog.ID, len(ids))
	byKey := make(map[string]catalog.ID, len(ids))

	for _, id := range ids {
		byKey[id.Key()] = id
		indegree[id.Key()] = 0
	}
	// only count edges between objects that actually exist in this
	// catalog — a dependency on an extension that wasn't loaded, for
	// instance, is never itself scheduled.
	for _, id := range ids {
		for _, d := range cat.ForwardDeps(id) {
			if _, ok := byKey[d.Key()]; !ok {
				continue
			}
			indegree[id.Key()]++
			dependents[d.Key()] = append(dependents[d.Key()], id)
		}
	}

	var ready []catalog.ID
	for _, id := range ids {
		if indegree[id.Key()] == 0 {
			ready = append(ready, id)
		}
	}
	sortIDs(ready)

	var order []catalog.ID
	for len(ready) > 0 {
		sortIDs(ready)
		next := ready[0]
		ready = ready[1:]
		order = append(order, next)

		deps := append([]catalog.ID(nil), dependents[next.Key()]...)
		sortIDs(deps)
		for _, d := range deps {
			indegree[d.Key()]--
			if indegree[d.Key()] == 0 {
				ready = append(ready, d)
			}
		}
	}

	if len(order) != len(ids) {
		return nil, fmt.Errorf("dependency graph has a cycle outside the function-body exception")
	}
	return order, nil
}

// sectionize groups an ordered step slice into named sections: one section
// per distinct schema object's containing table/schema, so that a partial
// apply failure reports and resumes at a meaningful granularity rather than
// a single opaque step index (spec §9, "Partial-apply resume"). Consecutive
// steps that share a section name are merged into one section.
func sectionize(steps []diff.Step) []Section {
	var sections []Section
	for _, s := range steps {
		name := sectionName(s)
		if len(sections) > 0 && sections[len(sections)-1].Name == name {
			last := &sections[len(sections)-1]
			last.Steps = append(last.Steps, s)
			continue
		}
		sections = append(sections, Section{Name: name, Steps: []diff.Step{s}})
	}
	return sections
}

func sectionName(s diff.Step) string {
	id := s.Object
	switch id.Kind {
	case catalog.KindColumn, catalog.KindConstraint, catalog.KindTrigger:
		return id.Schema + "." + id.Table
	case catalog.KindExtension:
		return "extension." + id.Name
	case catalog.KindGrant, catalog.KindComment:
		return "grant." + id.Target
	default:
		return id.Schema + "." + id.Name
	}
}

func sortIDs(ids []catalog.ID) {
	sort.Slice(ids, func(i, j int) bool {
		pi, pj := catalog.KindPriority[ids[i].Kind], catalog.KindPriority[ids[j].Kind]
		if pi != pj {
			return pi < pj
		}
		return ids[i].Key() < ids[j].Key()
	})
}
