// SPDX-License-Identifier: Apache-2.0

package catalog

import "sort"

// Catalog is an immutable snapshot of a database's managed objects plus the
// dependency graph linking them (spec §3). Catalogs are never mutated after
// Build; every transformation produces a new Catalog.
type Catalog struct {
	Schemas     []SchemaObject
	Tables      []Table
	Views       []View
	Sequences   []Sequence
	Types       []Type
	Domains     []Domain
	Functions   []Function
	Triggers    []Trigger
	Indexes     []Index
	Constraints []Constraint
	Extensions  []Extension
	Grants      []Grant
	Comments    []Comment

	// InstalledExtensions records every extension present in the live
	// database, independent of whether any non-extension-owned object
	// depends on it (spec §4.1).
	InstalledExtensions []string

	forwardDeps map[string][]ID
	reverseDeps map[string][]ID
	byKey       map[string]ID
}

// New returns an empty, unbuilt catalog. Callers append to the exported
// slices and then call Build to compute the dependency graph and
// canonicalize ordering.
func New() *Catalog {
	return &Catalog{}
}

// Build recomputes the dependency graph from scratch and sorts every object
// list into canonical (schema, name, ...) order, so that two catalogs
// describing the same database state are byte-for-byte comparable (spec
// §3, "Invariants").
func (c *Catalog) Build() *Catalog {
	out := &Catalog{
		Schemas:             append([]SchemaObject(nil), c.Schemas...),
		Tables:              append([]Table(nil), c.Tables...),
		Views:               append([]View(nil), c.Views...),
		Sequences:           append([]Sequence(nil), c.Sequences...),
		Types:               append([]Type(nil), c.Types...),
		Domains:             append([]Domain(nil), c.Domains...),
		Functions:           append([]Function(nil), c.Functions...),
		Triggers:            append([]Trigger(nil), c.Triggers...),
		Indexes:             append([]Index(nil), c.Indexes...),
		Constraints:         append([]Constraint(nil), c.Constraints...),
		Extensions:          append([]Extension(nil), c.Extensions...),
		Grants:              append([]Grant(nil), c.Grants...),
		Comments:            append([]Comment(nil), c.Comments...),
		InstalledExtensions: append([]string(nil), c.InstalledExtensions...),
	}

	sort.Slice(out.Schemas, func(i, j int) bool { return out.Schemas[i].ID.Schema < out.Schemas[j].ID.Schema })
	sort.Slice(out.Tables, func(i, j int) bool { return lessID(out.Tables[i].ID, out.Tables[j].ID) })
	sort.Slice(out.Views, func(i, j int) bool { return lessID(out.Views[i].ID, out.Views[j].ID) })
	sort.Slice(out.Sequences, func(i, j int) bool { return lessID(out.Sequences[i].ID, out.Sequences[j].ID) })
	sort.Slice(out.Types, func(i, j int) bool { return lessID(out.Types[i].ID, out.Types[j].ID) })
	sort.Slice(out.Domains, func(i, j int) bool { return lessID(out.Domains[i].ID, out.Domains[j].ID) })
	sort.Slice(out.Functions, func(i, j int) bool { return lessID(out.Functions[i].ID, out.Functions[j].ID) })
	sort.Slice(out.Triggers, func(i, j int) bool { return lessID(out.Triggers[i].ID, out.Triggers[j].ID) })
	sort.Slice(out.Indexes, func(i, j int) bool { return lessID(out.Indexes[i].ID, out.Indexes[j].ID) })
	sort.Slice(out.Constraints, func(i, j int) bool { return lessID(out.Constraints[i].ID, out.Constraints[j].ID) })
	sort.Slice(out.Extensions, func(i, j int) bool { return out.Extensions[i].ID.Name < out.Extensions[j].ID.Name })
	sort.Slice(out.Grants, func(i, j int) bool { return lessID(out.Grants[i].ID, out.Grants[j].ID) })
	sort.Slice(out.Comments, func(i, j int) bool { return lessID(out.Comments[i].ID, out.Comments[j].ID) })
	sort.Strings(out.InstalledExtensions)

	out.buildGraph()
	return out
}

func lessID(a, b ID) bool {
	if a.Schema != b.Schema {
		return a.Schema < b.Schema
	}
	if a.Name != b.Name {
		return a.Name < b.Name
	}
	if a.Table != b.Table {
		return a.Table < b.Table
	}
	if a.Column != b.Column {
		return a.Column < b.Column
	}
	if a.Signature != b.Signature {
		return a.Signature < b.Signature
	}
	if a.Target != b.Target {
		return a.Target < b.Target
	}
	if a.Grantee != b.Grantee {
		return a.Grantee < b.Grantee
	}
	return a.Privilege < b.Privilege
}

func (c *Catalog) buildGraph() {
	c.forwardDeps = make(map[string][]ID)
	c.reverseDeps = make(map[string][]ID)
	c.byKey = make(map[string]ID)

	add := func(id ID, deps []ID) {
		c.byKey[id.Key()] = id
		sorted := append([]ID(nil), deps...)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i].Key() < sorted[j].Key() })
		c.forwardDeps[id.Key()] = sorted
		for _, d := range sorted {
			c.reverseDeps[d.Key()] = append(c.reverseDeps[d.Key()], id)
		}
	}

	for _, o := range c.Schemas {
		add(o.ID, o.DependsOn)
	}
	for _, o := range c.Tables {
		add(o.ID, o.DependsOn)
		for _, col := range o.Columns {
			// A column always depends on its own table, even though spec
			// §4.1's intrinsic-dependency list only names type/sequence/
			// collation: the planner needs this edge to place ADD COLUMN
			// after its table's CREATE TABLE in the topological order.
			deps := append(append([]ID(nil), col.DependsOn...), o.ID)
			add(ColumnID(o.ID.Schema, o.ID.Name, col.Name), deps)
		}
	}
	for _, o := range c.Views {
		add(o.ID, o.DependsOn)
	}
	for _, o := range c.Sequences {
		add(o.ID, o.DependsOn)
	}
	for _, o := range c.Types {
		add(o.ID, o.DependsOn)
	}
	for _, o := range c.Domains {
		add(o.ID, o.DependsOn)
	}
	for _, o := range c.Functions {
		add(o.ID, o.DependsOn)
	}
	for _, o := range c.Triggers {
		add(o.ID, o.DependsOn)
	}
	for _, o := range c.Indexes {
		add(o.ID, o.DependsOn)
	}
	for _, o := range c.Constraints {
		add(o.ID, o.DependsOn)
	}
	for _, o := range c.Extensions {
		add(o.ID, o.DependsOn)
	}
	for _, o := range c.Grants {
		add(o.ID, o.DependsOn)
	}
	for _, o := range c.Comments {
		add(o.ID, o.DependsOn)
	}

	for k, v := range c.reverseDeps {
		sort.Slice(v, func(i, j int) bool { return v[i].Key() < v[j].Key() })
		c.reverseDeps[k] = v
	}
}

// MergeExtraDeps returns a new Catalog with additional forward-dependency
// edges folded into the graph buildGraph already derived from each
// object's own DependsOn list. extra is keyed by dependent ID.Key();
// keys for objects not present in the catalog are ignored. This is how
// pkg/depsfile's file-dependency augmenter (spec §4.2) feeds edges the
// database's own metadata cannot express, such as a view depending on a
// view it only reaches through a function body, back into the graph the
// differ and planner actually walk.
func (c *Catalog) MergeExtraDeps(extra map[string][]ID) *Catalog {
	out := &Catalog{
		Schemas: c.Schemas, Tables: c.Tables, Views: c.Views, Sequences: c.Sequences,
		Types: c.Types, Domains: c.Domains, Functions: c.Functions, Triggers: c.Triggers,
		Indexes: c.Indexes, Constraints: c.Constraints, Extensions: c.Extensions,
		Grants: c.Grants, Comments: c.Comments, InstalledExtensions: c.InstalledExtensions,
		byKey: c.byKey,
	}

	out.forwardDeps = make(map[string][]ID, len(c.forwardDeps))
	for k, v := range c.forwardDeps {
		out.forwardDeps[k] = append([]ID(nil), v...)
	}
	for key, deps := range extra {
		if _, ok := out.byKey[key]; !ok {
			continue
		}
		merged := append(out.forwardDeps[key], deps...)
		sort.Slice(merged, func(i, j int) bool { return merged[i].Key() < merged[j].Key() })
		out.forwardDeps[key] = dedupeIDs(merged)
	}

	out.reverseDeps = make(map[string][]ID, len(c.reverseDeps))
	for key, deps := range out.forwardDeps {
		id, ok := out.byKey[key]
		if !ok {
			continue
		}
		for _, d := range deps {
			out.reverseDeps[d.Key()] = append(out.reverseDeps[d.Key()], id)
		}
	}
	for k, v := range out.reverseDeps {
		sort.Slice(v, func(i, j int) bool { return v[i].Key() < v[j].Key() })
		out.reverseDeps[k] = v
	}

	return out
}

func dedupeIDs(ids []ID) []ID {
	out := make([]ID, 0, len(ids))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if seen[id.Key()] {
			continue
		}
		seen[id.Key()] = true
		out = append(out, id)
	}
	return out
}

// ForwardDeps returns the (sorted) set of objects that id directly depends
// on.
func (c *Catalog) ForwardDeps(id ID) []ID { return c.forwardDeps[id.Key()] }

// ReverseDeps returns the (sorted) set of objects that directly depend on
// id.
func (c *Catalog) ReverseDeps(id ID) []ID { return c.reverseDeps[id.Key()] }

// Exists reports whether id is present in the catalog.
func (c *Catalog) Exists(id ID) bool {
	_, ok := c.byKey[id.Key()]
	return ok
}

// AllIDs returns every object ID known to the catalog, in no particular
// order.
func (c *Catalog) AllIDs() []ID {
	ids := make([]ID, 0, len(c.byKey))
	for _, id := range c.byKey {
		ids = append(ids, id)
	}
	return ids
}

// Table looks up a table by schema and name.
func (c *Catalog) Table(schema, name string) (Table, bool) {
	for _, t := range c.Tables {
		if t.ID.Schema == schema && t.ID.Name == name {
			return t, true
		}
	}
	return Table{}, false
}
