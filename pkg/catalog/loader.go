// SPDX-License-Identifier: Apache-2.0

package catalog

import (
	"context"
	"database/sql"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/pgmt-dev/pgmt/internal/dbx"
)

// Querier is the subset of dbx.DB the loader needs. Narrowed so that
// callers can pass either a *dbx.RDB or a bare *sql.DB wrapped by a single
// transaction (for the REPEATABLE READ path below).
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
}

// Load queries the live database's metadata tables and assembles a Catalog
// (spec §4.1). Object-kind queries run concurrently over the same querier
// via golang.org/x/sync/errgroup (spec §5: "many I/O-bound catalog queries
// in parallel"). Callers that need snapshot consistency under read-committed
// isolation should pass a Querier backed by a single REPEATABLE READ
// transaction; Load itself does not open one, since whether that is
// necessary depends on the caller's isolation level (spec §5).
func Load(ctx context.Context, db Querier, filter Filter) (*Catalog, error) {
	cat := New()

	var (
		schemas     []SchemaObject
		tables      []Table
		views       []View
		sequences   []Sequence
		types       []Type
		domains     []Domain
		functions   []Function
		triggers    []Trigger
		indexes     []Index
		constraints []Constraint
		extensions  []Extension
		installed   []string
		grants      []Grant
		comments    []Comment
		extOwned    map[string]string // object key -> owning extension name
	)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() (err error) { extOwned, installed, extensions, err = loadExtensions(gctx, db, filter); return })
	g.Go(func() (err error) { schemas, err = loadSchemas(gctx, db, filter); return })
	g.Go(func() (err error) { tables, err = loadTables(gctx, db, filter); return })
	g.Go(func() (err error) { views, err = loadViews(gctx, db, filter); return })
	g.Go(func() (err error) { sequences, err = loadSequences(gctx, db, filter); return })
	g.Go(func() (err error) { types, err = loadTypes(gctx, db, filter); return })
	g.Go(func() (err error) { domains, err = loadDomains(gctx, db, filter); return })
	g.Go(func() (err error) { functions, err = loadFunctions(gctx, db, filter); return })
	g.Go(func() (err error) { constraints, err = loadConstraints(gctx, db, filter); return })
	g.Go(func() (err error) { indexes, err = loadIndexes(gctx, db, filter); return })
	if filter.Triggers {
		g.Go(func() (err error) { triggers, err = loadTriggers(gctx, db, filter); return })
	}
	if filter.Grants {
		g.Go(func() (err error) { grants, err = loadGrants(gctx, db, filter); return })
	}
	if filter.Comments {
		g.Go(func() (err error) { comments, err = loadComments(gctx, db, filter); return })
	}

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("loading catalog: %w", err)
	}

	cat.Schemas = schemas
	cat.Tables = tables
	cat.Views = views
	cat.Sequences = sequences
	cat.Types = types
	cat.Domains = domains
	cat.Functions = functions
	cat.Triggers = triggers
	cat.Indexes = indexes
	cat.Constraints = constraints
	cat.Extensions = extensions
	cat.InstalledExtensions = installed
	cat.Grants = grants
	cat.Comments = comments

	cat = excludeExtensionOwned(cat, extOwned)

	return cat.Build(), nil
}

// excludeExtensionOwned drops every object recorded as extension-owned from
// the catalog and rewrites dependencies on those objects into dependencies
// on the owning extension instead (spec §4.1).
func excludeExtensionOwned(cat *Catalog, owner map[string]string) *Catalog {
	if len(owner) == 0 {
		return cat
	}

	redirect := func(deps []ID) []ID {
		out := make([]ID, 0, len(deps))
		seen := map[string]bool{}
		for _, d := range deps {
			if ext, ok := owner[d.Key()]; ok {
				eid := ExtensionID(ext)
				if !seen[eid.Key()] {
					out = append(out, eid)
					seen[eid.Key()] = true
				}
				continue
			}
			if !seen[d.Key()] {
				out = append(out, d)
				seen[d.Key()] = true
			}
		}
		return out
	}

	out := New()
	out.InstalledExtensions = cat.InstalledExtensions
	out.Extensions = cat.Extensions

	for _, o := range cat.Schemas {
		if _, ok := owner[o.ID.Key()]; ok {
			continue
		}
		o.DependsOn = redirect(o.DependsOn)
		out.Schemas = append(out.Schemas, o)
	}
	for _, o := range cat.Tables {
		if _, ok := owner[o.ID.Key()]; ok {
			continue
		}
		o.DependsOn = redirect(o.DependsOn)
		for i := range o.Columns {
			o.Columns[i].DependsOn = redirect(o.Columns[i].DependsOn)
		}
		out.Tables = append(out.Tables, o)
	}
	for _, o := range cat.Views {
		if _, ok := owner[o.ID.Key()]; ok {
			continue
		}
		o.DependsOn = redirect(o.DependsOn)
		out.Views = append(out.Views, o)
	}
	for _, o := range cat.Sequences {
		if _, ok := owner[o.ID.Key()]; ok {
			continue
		}
		o.DependsOn = redirect(o.DependsOn)
		out.Sequences = append(out.Sequences, o)
	}
	for _, o := range cat.Types {
		if _, ok := owner[o.ID.Key()]; ok {
			continue
		}
		o.DependsOn = redirect(o.DependsOn)
		out.Types = append(out.Types, o)
	}
	for _, o := range cat.Domains {
		if _, ok := owner[o.ID.Key()]; ok {
			continue
		}
		o.DependsOn = redirect(o.DependsOn)
		out.Domains = append(out.Domains, o)
	}
	for _, o := range cat.Functions {
		if _, ok := owner[o.ID.Key()]; ok {
			continue
		}
		o.DependsOn = redirect(o.DependsOn)
		out.Functions = append(out.Functions, o)
	}
	for _, o := range cat.Triggers {
		if _, ok := owner[o.ID.Key()]; ok {
			continue
		}
		o.DependsOn = redirect(o.DependsOn)
		out.Triggers = append(out.Triggers, o)
	}
	for _, o := range cat.Indexes {
		if _, ok := owner[o.ID.Key()]; ok {
			continue
		}
		o.DependsOn = redirect(o.DependsOn)
		out.Indexes = append(out.Indexes, o)
	}
	for _, o := range cat.Constraints {
		if _, ok := owner[o.ID.Key()]; ok {
			continue
		}
		o.DependsOn = redirect(o.DependsOn)
		out.Constraints = append(out.Constraints, o)
	}
	for _, o := range cat.Grants {
		if _, ok := owner[o.Target.Key()]; ok {
			continue
		}
		o.DependsOn = redirect(o.DependsOn)
		out.Grants = append(out.Grants, o)
	}
	for _, o := range cat.Comments {
		if _, ok := owner[o.Target.Key()]; ok {
			continue
		}
		o.DependsOn = redirect(o.DependsOn)
		out.Comments = append(out.Comments, o)
	}

	return out
}

// Compile-time check that *dbx.RDB satisfies Querier, so callers in
// pkg/sandbox and cmd/ can pass one straight to Load.
var _ Querier = (*dbx.RDB)(nil)
