// SPDX-License-Identifier: Apache-2.0

// Package depsfile implements the file-dependency augmenter (spec §4.2):
// it reads `-- require:` header directives out of schema files and turns
// them into extra edges in the object dependency graph that the database's
// own metadata cannot express on its own (for example a view-over-view
// dependency Postgres only reports as view-over-table).
//
// Rather than parse the SQL in each file to learn what it creates, the
// augmenter observes: it applies each file to a blank shadow database one
// at a time and diffs the shadow catalog before and after (spec §9,
// "File-dependency augmenter via shadow observation"). This keeps the
// augmenter syntax-agnostic and means pgmt never needs a SQL parser.
package depsfile

import (
	"context"
	"fmt"
	"sort"

	"github.com/pgmt-dev/pgmt/pkg/catalog"
)

// ShadowEnv is the narrow interface the augmenter needs from a shadow
// database. pkg/sandbox provides the real implementation; tests can supply
// a fake.
type ShadowEnv interface {
	// ApplyFile executes the statements in path against the shadow
	// database. path is expected to already be ordered correctly by the
	// caller.
	ApplyFile(ctx context.Context, path string) error
	// Catalog loads the current state of the shadow database.
	Catalog(ctx context.Context) (*catalog.Catalog, error)
}

// Augmentation maps an object to the extra objects it depends on, as
// derived from `require:` directives. It is merged into the loader's own
// dependency graph (spec §4.1).
type Augmentation map[string][]catalog.ID

// Augment applies each file of an already-built graph to env in the
// graph's apply order, observing which objects each file creates, and
// derives an Augmentation from the `require:` edges and each file's
// observed object set.
//
// graph comes from BuildFileGraph, which has already validated every
// file's `require:` header and computed a valid apply order.
func Augment(ctx context.Context, env ShadowEnv, graph *FileGraph) (Augmentation, error) {
	owned, err := ObserveOwnership(ctx, env, graph)
	if err != nil {
		return nil, err
	}
	return DeriveAugmentation(owned, graph)
}

// ObserveOwnership applies every file in graph's order to env in turn,
// snapshotting env's catalog before and after each one, and returns the
// set of objects each file's apply newly brought into existence. Callers
// that already drive the apply loop themselves (pkg/sandbox's
// ApplyDirectory) can snapshot alongside their own loop instead of
// re-applying through this function; DeriveAugmentation is what turns
// either source of ownership data into an Augmentation.
func ObserveOwnership(ctx context.Context, env ShadowEnv, graph *FileGraph) (map[string][]catalog.ID, error) {
	owned := make(map[string][]catalog.ID, len(graph.order))

	before, err := env.Catalog(ctx)
	if err != nil {
		return nil, fmt.Errorf("snapshotting shadow before augmentation: %w", err)
	}
	beforeIDs := idSet(before)

	for _, file := range graph.order {
		if err := env.ApplyFile(ctx, file); err != nil {
			return nil, fmt.Errorf("applying %s for dependency observation: %w", file, err)
		}

		after, err := env.Catalog(ctx)
		if err != nil {
			return nil, fmt.Errorf("snapshotting shadow after %s: %w", file, err)
		}
		owned[file] = newIDs(beforeIDs, after)
		beforeIDs = idSet(after)
	}

	return owned, nil
}

// newIDs returns the IDs in after not present in before, sorted.
func newIDs(before map[string]catalog.ID, after *catalog.Catalog) []catalog.ID {
	afterIDs := idSet(after)
	var created []catalog.ID
	for key, id := range afterIDs {
		if _, existed := before[key]; !existed {
			created = append(created, id)
		}
	}
	sort.Slice(created, func(i, j int) bool { return created[i].Key() < created[j].Key() })
	return created
}

// DeriveAugmentation turns a file's observed object ownership plus
// graph's `require:` edges into the Augmentation merged into a catalog's
// dependency graph (catalog.Catalog.MergeExtraDeps): every object a file
// owns gains an edge to every object its file's requirements own.
func DeriveAugmentation(owned map[string][]catalog.ID, graph *FileGraph) (Augmentation, error) {
	aug := Augmentation{}
	for file, requires := range graph.requires {
		producedByFile := owned[file]
		for _, dep := range requires {
			producedByDep, ok := owned[dep]
			if !ok {
				return nil, fmt.Errorf("%s requires %s, which was not applied before it", file, dep)
			}
			for _, o := range producedByFile {
				aug[o.Key()] = append(aug[o.Key()], producedByDep...)
			}
		}
	}

	for key, deps := range aug {
		sort.Slice(deps, func(i, j int) bool { return deps[i].Key() < deps[j].Key() })
		aug[key] = dedupeIDs(deps)
	}

	return aug, nil
}

func idSet(c *catalog.Catalog) map[string]catalog.ID {
	ids := c.AllIDs()
	m := make(map[string]catalog.ID, len(ids))
	for _, id := range ids {
		m[id.Key()] = id
	}
	return m
}

func dedupeIDs(ids []catalog.ID) []catalog.ID {
	out := make([]catalog.ID, 0, len(ids))
	seen := map[string]bool{}
	for _, id := range ids {
		if seen[id.Key()] {
			continue
		}
		seen[id.Key()] = true
		out = append(out, id)
	}
	return out
}
