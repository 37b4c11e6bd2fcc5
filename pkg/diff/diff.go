// SPDX-License-Identifier: Apache-2.0

package diff

import (
	"fmt"
	"sort"

	"github.com/pgmt-dev/pgmt/pkg/catalog"
	"github.com/pgmt-dev/pgmt/pkg/render"
)

// Result is everything Diff produces: the steps needed to reconcile old
// into new, plus any non-fatal violations the caller should surface.
type Result struct {
	Steps      []Step
	Violations []Violation
}

// Diff computes the migration steps that transform old into new (spec
// §4.4). It never talks to a database; both catalogs are assumed already
// loaded and built.
func Diff(old, new *catalog.Catalog, opts Options) (Result, error) {
	var res Result

	res.Steps = append(res.Steps, diffSchemas(old, new)...)
	res.Steps = append(res.Steps, diffExtensions(old, new)...)

	typeSteps, err := diffTypes(old, new, opts)
	if err != nil {
		return Result{}, err
	}
	res.Steps = append(res.Steps, typeSteps...)

	res.Steps = append(res.Steps, diffDomains(old, new)...)
	res.Steps = append(res.Steps, diffSequences(old, new)...)

	tableSteps, violations, err := diffTables(old, new, opts)
	if err != nil {
		return Result{}, err
	}
	res.Steps = append(res.Steps, tableSteps...)
	res.Violations = append(res.Violations, violations...)

	res.Steps = append(res.Steps, diffConstraints(old, new)...)
	res.Steps = append(res.Steps, diffIndexes(old, new)...)
	res.Steps = append(res.Steps, diffViews(old, new)...)
	res.Steps = append(res.Steps, diffFunctions(old, new)...)
	res.Steps = append(res.Steps, diffTriggers(old, new)...)
	res.Steps = append(res.Steps, diffGrants(old, new)...)
	res.Steps = append(res.Steps, diffComments(old, new)...)

	if opts.ColumnOrder == ColumnOrderStrict && len(res.Violations) > 0 {
		return Result{}, &ColumnOrderViolationError{Violations: res.Violations}
	}

	return res, nil
}

// indexByKey builds a lookup map keyed by each item's canonical ID.Key().
func indexByKey[T any](items []T, idOf func(T) catalog.ID) map[string]T {
	m := make(map[string]T, len(items))
	for _, item := range items {
		m[idOf(item).Key()] = item
	}
	return m
}

// sortedKeys returns the union of keys present in either map, sorted, so
// step emission order is deterministic regardless of map iteration.
func sortedKeys[T any](a, b map[string]T) []string {
	seen := make(map[string]bool, len(a)+len(b))
	var keys []string
	for k := range a {
		if !seen[k] {
			seen[k] = true
			keys = append(keys, k)
		}
	}
	for k := range b {
		if !seen[k] {
			seen[k] = true
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

func diffSchemas(old, new *catalog.Catalog) []Step {
	oldM := indexByKey(old.Schemas, func(s catalog.SchemaObject) catalog.ID { return s.ID })
	newM := indexByKey(new.Schemas, func(s catalog.SchemaObject) catalog.ID { return s.ID })

	var steps []Step
	for _, k := range sortedKeys(oldM, newM) {
		o, inOld := oldM[k]
		n, inNew := newM[k]
		switch {
		case !inOld:
			steps = append(steps, Step{Object: n.ID, Action: ActionCreate, SQL: render.CreateSchema(n), Description: "create schema " + n.ID.Schema})
		case !inNew:
			steps = append(steps, Step{Object: o.ID, Action: ActionDrop, SQL: render.DropSchema(o.ID), Description: "drop schema " + o.ID.Schema})
		case o.Comment != n.Comment:
			steps = append(steps, commentStep(n.ID, o.Comment, n.Comment))
		}
	}
	return steps
}

func diffExtensions(old, new *catalog.Catalog) []Step {
	oldM := indexByKey(old.Extensions, func(e catalog.Extension) catalog.ID { return e.ID })
	newM := indexByKey(new.Extensions, func(e catalog.Extension) catalog.ID { return e.ID })

	var steps []Step
	for _, k := range sortedKeys(oldM, newM) {
		o, inOld := oldM[k]
		n, inNew := newM[k]
		switch {
		case !inOld:
			steps = append(steps, Step{Object: n.ID, Action: ActionCreate, SQL: render.CreateExtension(n), Description: "install extension " + n.ID.Name})
		case !inNew:
			steps = append(steps, Step{Object: o.ID, Action: ActionDrop, SQL: render.DropExtension(o.ID), Description: "drop extension " + o.ID.Name})
		case o.Version != n.Version:
			steps = append(steps, Step{Object: n.ID, Action: ActionAlter, SQL: fmt.Sprintf(`ALTER EXTENSION %s UPDATE TO %s;`, render.Ident(n.ID.Name), render.Literal(n.Version)), Description: "update extension " + n.ID.Name})
		}
	}
	return steps
}

func diffDomains(old, new *catalog.Catalog) []Step {
	oldM := indexByKey(old.Domains, func(d catalog.Domain) catalog.ID { return d.ID })
	newM := indexByKey(new.Domains, func(d catalog.Domain) catalog.ID { return d.ID })

	var steps []Step
	for _, k := range sortedKeys(oldM, newM) {
		o, inOld := oldM[k]
		n, inNew := newM[k]
		switch {
		case !inOld:
			steps = append(steps, Step{Object: n.ID, Action: ActionCreate, SQL: render.CreateDomain(n), Requires: n.DependsOn, Description: "create domain " + n.ID.Name})
		case !inNew:
			steps = append(steps, Step{Object: o.ID, Action: ActionDrop, SQL: render.DropDomain(o.ID), Description: "drop domain " + o.ID.Name})
		default:
			steps = append(steps, diffDomainAttrs(o, n)...)
		}
	}
	return steps
}

func diffDomainAttrs(o, n catalog.Domain) []Step {
	var steps []Step
	table := render.Qualified(n.ID.Schema, n.ID.Name)
	if strPtr(o.Default) != strPtr(n.Default) {
		if n.Default != nil {
			steps = append(steps, Step{Object: n.ID, Action: ActionAlter, Op: OpSetDefault, SQL: fmt.Sprintf("ALTER DOMAIN %s SET DEFAULT %s;", table, *n.Default), Description: "set default on domain " + n.ID.Name})
		} else {
			steps = append(steps, Step{Object: n.ID, Action: ActionAlter, Op: OpDropDefault, SQL: fmt.Sprintf("ALTER DOMAIN %s DROP DEFAULT;", table), Narrows: true, Description: "drop default on domain " + n.ID.Name})
		}
	}
	if o.NotNull != n.NotNull {
		if n.NotNull {
			steps = append(steps, Step{Object: n.ID, Action: ActionAlter, Op: OpSetNotNull, SQL: fmt.Sprintf("ALTER DOMAIN %s SET NOT NULL;", table), Narrows: true, Description: "set domain not null " + n.ID.Name})
		} else {
			steps = append(steps, Step{Object: n.ID, Action: ActionAlter, Op: OpDropNotNull, SQL: fmt.Sprintf("ALTER DOMAIN %s DROP NOT NULL;", table), Description: "drop domain not null " + n.ID.Name})
		}
	}
	return steps
}

func strPtr(s *string) string {
	if s == nil {
		return "\x00nil"
	}
	return *s
}

func diffSequences(old, new *catalog.Catalog) []Step {
	oldM := indexByKey(old.Sequences, func(s catalog.Sequence) catalog.ID { return s.ID })
	newM := indexByKey(new.Sequences, func(s catalog.Sequence) catalog.ID { return s.ID })

	var steps []Step
	for _, k := range sortedKeys(oldM, newM) {
		o, inOld := oldM[k]
		n, inNew := newM[k]
		switch {
		case !inOld:
			steps = append(steps, Step{Object: n.ID, Action: ActionCreate, SQL: render.CreateSequence(n), Requires: n.DependsOn, Description: "create sequence " + n.ID.Name})
		case !inNew:
			steps = append(steps, Step{Object: o.ID, Action: ActionDrop, SQL: render.DropSequence(o.ID), Description: "drop sequence " + o.ID.Name})
		case !sequencesEqual(o, n):
			steps = append(steps, Step{
				Object: n.ID, Action: ActionAlter,
				SQL: fmt.Sprintf("ALTER SEQUENCE %s INCREMENT BY %d MINVALUE %d MAXVALUE %d;",
					render.Qualified(n.ID.Schema, n.ID.Name), n.Increment, n.Min, n.Max),
				Description: "alter sequence " + n.ID.Name,
			})
		}
	}
	return steps
}

func sequencesEqual(o, n catalog.Sequence) bool {
	return o.DataType == n.DataType && o.Start == n.Start && o.Increment == n.Increment &&
		o.Min == n.Min && o.Max == n.Max && o.Cycle == n.Cycle
}

func diffConstraints(old, new *catalog.Catalog) []Step {
	oldM := indexByKey(old.Constraints, func(c catalog.Constraint) catalog.ID { return c.ID })
	newM := indexByKey(new.Constraints, func(c catalog.Constraint) catalog.ID { return c.ID })

	var steps []Step
	for _, k := range sortedKeys(oldM, newM) {
		o, inOld := oldM[k]
		n, inNew := newM[k]
		switch {
		case !inOld:
			steps = append(steps, Step{Object: n.ID, Action: ActionCreate, SQL: render.CreateConstraint(n), Requires: n.DependsOn, Description: "add constraint " + n.ID.Name})
		case !inNew:
			steps = append(steps, Step{Object: o.ID, Action: ActionDrop, SQL: render.DropConstraint(o.ID), Narrows: true, Description: "drop constraint " + o.ID.Name})
		case !constraintsEqual(o, n):
			// constraints are never altered in place (spec §4.4): emit a drop+create pair.
			steps = append(steps, Step{Object: o.ID, Action: ActionDrop, SQL: render.DropConstraint(o.ID), Narrows: true, Description: "replace constraint " + o.ID.Name + " (drop)"})
			steps = append(steps, Step{Object: n.ID, Action: ActionCreate, SQL: render.CreateConstraint(n), Requires: n.DependsOn, Description: "replace constraint " + n.ID.Name + " (create)"})
		}
	}
	return steps
}

func constraintsEqual(o, n catalog.Constraint) bool {
	if o.Kind != n.Kind || o.Check != n.Check || len(o.Columns) != len(n.Columns) {
		return false
	}
	for i := range o.Columns {
		if o.Columns[i] != n.Columns[i] {
			return false
		}
	}
	if (o.ForeignKey == nil) != (n.ForeignKey == nil) {
		return false
	}
	if o.ForeignKey != nil && !foreignKeysEqual(*o.ForeignKey, *n.ForeignKey) {
		return false
	}
	return true
}

func foreignKeysEqual(o, n catalog.ForeignKeyDetail) bool {
	if o.RefSchema != n.RefSchema || o.RefTable != n.RefTable || o.OnDelete != n.OnDelete ||
		o.OnUpdate != n.OnUpdate || o.Deferrable != n.Deferrable || o.InitiallyDeferred != n.InitiallyDeferred {
		return false
	}
	if len(o.Columns) != len(n.Columns) || len(o.RefColumns) != len(n.RefColumns) {
		return false
	}
	for i := range o.Columns {
		if o.Columns[i] != n.Columns[i] {
			return false
		}
	}
	for i := range o.RefColumns {
		if o.RefColumns[i] != n.RefColumns[i] {
			return false
		}
	}
	return true
}

func diffIndexes(old, new *catalog.Catalog) []Step {
	oldM := indexByKey(old.Indexes, func(i catalog.Index) catalog.ID { return i.ID })
	newM := indexByKey(new.Indexes, func(i catalog.Index) catalog.ID { return i.ID })

	var steps []Step
	for _, k := range sortedKeys(oldM, newM) {
		o, inOld := oldM[k]
		n, inNew := newM[k]
		switch {
		case !inOld:
			steps = append(steps, Step{Object: n.ID, Action: ActionCreate, SQL: render.CreateIndex(n), Requires: n.DependsOn, Description: "create index " + n.ID.Name})
		case !inNew:
			steps = append(steps, Step{Object: o.ID, Action: ActionDrop, SQL: render.DropIndex(o.ID), Narrows: true, Description: "drop index " + o.ID.Name})
		case !indexesEqual(o, n):
			steps = append(steps, Step{Object: o.ID, Action: ActionDrop, SQL: render.DropIndex(o.ID), Narrows: true, Description: "replace index " + o.ID.Name + " (drop)"})
			steps = append(steps, Step{Object: n.ID, Action: ActionCreate, SQL: render.CreateIndex(n), Requires: n.DependsOn, Description: "replace index " + n.ID.Name + " (create)"})
		}
	}
	return steps
}

func indexesEqual(o, n catalog.Index) bool {
	if o.Unique != n.Unique || o.Method != n.Method || o.Predicate != n.Predicate || len(o.Keys) != len(n.Keys) {
		return false
	}
	for i := range o.Keys {
		if o.Keys[i] != n.Keys[i] {
			return false
		}
	}
	return true
}

func diffViews(old, new *catalog.Catalog) []Step {
	oldM := indexByKey(old.Views, func(v catalog.View) catalog.ID { return v.ID })
	newM := indexByKey(new.Views, func(v catalog.View) catalog.ID { return v.ID })

	var steps []Step
	for _, k := range sortedKeys(oldM, newM) {
		o, inOld := oldM[k]
		n, inNew := newM[k]
		switch {
		case !inOld:
			steps = append(steps, Step{Object: n.ID, Action: ActionCreate, SQL: render.CreateView(n), Requires: n.DependsOn, Description: "create view " + n.ID.Name})
		case !inNew:
			steps = append(steps, Step{Object: o.ID, Action: ActionDrop, SQL: render.DropView(o.ID), Narrows: true, Description: "drop view " + o.ID.Name})
		case o.Definition != n.Definition:
			steps = append(steps, Step{
				Object: n.ID, Action: ActionReplace,
				SQL:         fmt.Sprintf("CREATE OR REPLACE VIEW %s AS\n%s;", render.Qualified(n.ID.Schema, n.ID.Name), n.Definition),
				Requires:    n.DependsOn,
				Narrows:     true,
				Description: "replace view " + n.ID.Name,
			})
		}
	}
	return steps
}

func diffTriggers(old, new *catalog.Catalog) []Step {
	oldM := indexByKey(old.Triggers, func(t catalog.Trigger) catalog.ID { return t.ID })
	newM := indexByKey(new.Triggers, func(t catalog.Trigger) catalog.ID { return t.ID })

	var steps []Step
	for _, k := range sortedKeys(oldM, newM) {
		o, inOld := oldM[k]
		n, inNew := newM[k]
		switch {
		case !inOld:
			steps = append(steps, Step{Object: n.ID, Action: ActionCreate, SQL: render.CreateTrigger(n), Requires: n.DependsOn, Description: "create trigger " + n.ID.Name})
		case !inNew:
			steps = append(steps, Step{Object: o.ID, Action: ActionDrop, SQL: render.DropTrigger(o.ID), Narrows: true, Description: "drop trigger " + o.ID.Name})
		case !triggersEqual(o, n):
			steps = append(steps, Step{Object: o.ID, Action: ActionDrop, SQL: render.DropTrigger(o.ID), Narrows: true, Description: "replace trigger " + o.ID.Name + " (drop)"})
			steps = append(steps, Step{Object: n.ID, Action: ActionCreate, SQL: render.CreateTrigger(n), Requires: n.DependsOn, Description: "replace trigger " + n.ID.Name + " (create)"})
		}
	}
	return steps
}

func triggersEqual(o, n catalog.Trigger) bool {
	if o.Timing != n.Timing || o.ForEachRow != n.ForEachRow || o.When != n.When || o.Function != n.Function {
		return false
	}
	if len(o.Events) != len(n.Events) {
		return false
	}
	for i := range o.Events {
		if o.Events[i] != n.Events[i] {
			return false
		}
	}
	return true
}

func diffGrants(old, new *catalog.Catalog) []Step {
	oldM := indexByKey(old.Grants, func(g catalog.Grant) catalog.ID { return g.ID })
	newM := indexByKey(new.Grants, func(g catalog.Grant) catalog.ID { return g.ID })

	var steps []Step
	for _, k := range sortedKeys(oldM, newM) {
		o, inOld := oldM[k]
		n, inNew := newM[k]
		switch {
		case !inOld:
			steps = append(steps, Step{Object: n.ID, Action: ActionGrant, SQL: render.CreateGrant(n), Requires: n.DependsOn, Description: "grant on " + n.Target.String()})
		case !inNew:
			steps = append(steps, Step{Object: o.ID, Action: ActionRevoke, SQL: render.DropGrant(o), Description: "revoke on " + o.Target.String()})
		case !privilegesEqual(o.Privileges, n.Privileges) || o.WithGrantOption != n.WithGrantOption:
			steps = append(steps, Step{Object: o.ID, Action: ActionRevoke, SQL: render.DropGrant(o), Description: "revoke (changing) on " + o.Target.String()})
			steps = append(steps, Step{Object: n.ID, Action: ActionGrant, SQL: render.CreateGrant(n), Requires: n.DependsOn, Description: "grant (changed) on " + n.Target.String()})
		}
	}
	return steps
}

func privilegesEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func diffComments(old, new *catalog.Catalog) []Step {
	oldM := indexByKey(old.Comments, func(c catalog.Comment) catalog.ID { return c.ID })
	newM := indexByKey(new.Comments, func(c catalog.Comment) catalog.ID { return c.ID })

	var steps []Step
	for _, k := range sortedKeys(oldM, newM) {
		o, inOld := oldM[k]
		n, inNew := newM[k]
		switch {
		case !inOld:
			steps = append(steps, Step{Object: n.ID, Action: ActionComment, Op: OpCommentSet, SQL: render.CreateComment(n), Requires: []catalog.ID{n.Target}, Description: "set comment on " + n.Target.String()})
		case !inNew:
			steps = append(steps, Step{Object: o.ID, Action: ActionComment, Op: OpCommentClear, SQL: render.DropComment(o.Target), Description: "clear comment on " + o.Target.String()})
		case o.Text != n.Text:
			steps = append(steps, Step{Object: n.ID, Action: ActionComment, Op: OpCommentSet, SQL: render.CreateComment(n), Requires: []catalog.ID{n.Target}, Description: "update comment on " + n.Target.String()})
		}
	}
	return steps
}

func commentStep(target catalog.ID, oldComment, newComment string) Step {
	if newComment == "" {
		return Step{Object: target, Action: ActionComment, Op: OpCommentClear, SQL: fmt.Sprintf("COMMENT ON SCHEMA %s IS NULL;", render.Ident(target.Schema)), Description: "clear comment on schema " + target.Schema}
	}
	return Step{
		Object: target, Action: ActionComment, Op: OpCommentSet,
		SQL:         fmt.Sprintf("COMMENT ON SCHEMA %s IS %s;", render.Ident(target.Schema), render.Literal(newComment)),
		Description: "set comment on schema " + target.Schema,
	}
}
