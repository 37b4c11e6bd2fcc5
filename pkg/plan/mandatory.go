// SPDX-License-Identifier: Apache-2.0

package plan

import (
	"fmt"

	"github.com/pgmt-dev/pgmt/pkg/catalog"
	"github.com/pgmt-dev/pgmt/pkg/diff"
	"github.com/pgmt-dev/pgmt/pkg/render"
)

// opBackfillUpdate tags the synthetic UPDATE step inserted by
// insertNotNullBackfill. It is not one of diff's own Op constants since
// the differ never emits it; the planner does.
const opBackfillUpdate diff.Op = "backfill_update"

// insertNotNullBackfill rewrites every AddColumn step for a NOT NULL
// column with no default into the safe sequence spec §4.5 names: add the
// column nullable, set a temporary default, backfill existing rows, apply
// SET NOT NULL, then drop the temporary default so the table matches
// new_cat exactly. Without opts.AllowNotNullBackfill such a step is
// refused outright with a ManualChangeRequiredError, since the table
// cannot safely receive a NOT NULL column without a way to seed it.
//
// All five steps of the rewritten sequence share the original step's
// Object (the new column) and are tagged ActionCreate so the phase
// router in Schedule keeps them together as one create-phase unit in
// their original relative order, rather than splitting the SetNotNull/
// SetDefault/DropDefault steps off into the middle-alter phase meant for
// columns that already existed in old_cat.
func insertNotNullBackfill(steps []diff.Step, opts Options) ([]diff.Step, error) {
	var out []diff.Step
	for _, s := range steps {
		if s.Op != diff.OpAddColumn || s.Column == nil || !s.Column.NotNull || s.Column.Default != nil {
			out = append(out, s)
			continue
		}

		schema, table, column := s.Object.Schema, s.Object.Table, s.Object.Column
		if !opts.AllowNotNullBackfill {
			return nil, &diff.ManualChangeRequiredError{
				Object: s.Object.String(),
				Reason: "adding a NOT NULL column with no default to a possibly non-empty table requires a backfill value",
				Suggestion: fmt.Sprintf(
					"add %s.%s.%s as nullable, backfill existing rows, then set NOT NULL; or re-run with a backfill value configured",
					schema, table, column,
				),
			}
		}

		nullable := *s.Column
		nullable.NotNull = false

		qualified := render.Qualified(schema, table)
		ident := render.Ident(column)
		value := opts.NotNullBackfillValue

		out = append(out,
			diff.Step{Object: s.Object, Action: diff.ActionCreate, Op: diff.OpAddColumn, Column: &nullable,
				SQL:         render.AddColumn(schema, table, nullable),
				Description: s.Description},
			diff.Step{Object: s.Object, Action: diff.ActionCreate, Op: diff.OpSetDefault,
				SQL:         render.SetColumnDefault(schema, table, column, value),
				Description: "set temporary backfill default " + table + "." + column},
			diff.Step{Object: s.Object, Action: diff.ActionCreate, Op: opBackfillUpdate,
				SQL:         fmt.Sprintf("UPDATE %s SET %s = %s WHERE %s IS NULL;", qualified, ident, value, ident),
				Description: "backfill existing rows in " + table + "." + column},
			diff.Step{Object: s.Object, Action: diff.ActionCreate, Op: diff.OpSetNotNull,
				SQL:         render.SetColumnNotNull(schema, table, column),
				Description: "set not null " + table + "." + column},
			diff.Step{Object: s.Object, Action: diff.ActionCreate, Op: diff.OpDropDefault,
				SQL:         render.DropColumnDefault(schema, table, column),
				Description: "drop temporary backfill default " + table + "." + column},
		)
	}
	return out, nil
}

// backfillExistingNotNull rewrites a SetNotNull step for a column that
// already existed (RequiresEmptyTable, set by the differ when the column
// had no default to seed new rows with) into a backfill UPDATE followed
// by the SET NOT NULL, the same safe-rewrite strategy
// insertNotNullBackfill uses for brand new columns. Without
// opts.AllowNotNullBackfill the step is refused outright, since applying
// it blind risks failing against rows that are still NULL.
func backfillExistingNotNull(steps []diff.Step, opts Options) ([]diff.Step, error) {
	var out []diff.Step
	for _, s := range steps {
		if s.Op != diff.OpSetNotNull || !s.RequiresEmptyTable {
			out = append(out, s)
			continue
		}

		schema, table, column := s.Object.Schema, s.Object.Table, s.Object.Column
		if !opts.AllowNotNullBackfill {
			return nil, &diff.ManualChangeRequiredError{
				Object: s.Object.String(),
				Reason: "setting an existing column NOT NULL with no default requires backfilling any existing NULLs first",
				Suggestion: fmt.Sprintf(
					"backfill %s.%s.%s to a non-NULL value before setting it NOT NULL, or re-run with a backfill value configured",
					schema, table, column,
				),
			}
		}

		qualified := render.Qualified(schema, table)
		ident := render.Ident(column)
		value := opts.NotNullBackfillValue

		out = append(out,
			diff.Step{Object: s.Object, Action: diff.ActionAlter, Op: opBackfillUpdate, Narrows: true,
				SQL:         fmt.Sprintf("UPDATE %s SET %s = %s WHERE %s IS NULL;", qualified, ident, value, ident),
				Description: "backfill existing nulls in " + table + "." + column},
			diff.Step{Object: s.Object, Action: diff.ActionAlter, Op: diff.OpSetNotNull, Narrows: true,
				SQL:         s.SQL,
				Description: s.Description},
		)
	}
	return out, nil
}

// forceDropDependents implements spec §4.5's second mandatory step: a
// view or index that still depends (in old_cat) on a column being
// dropped must itself be dropped first, even when the differ never
// proposed changing it (a desired state that keeps such a view or index
// unchanged while dropping the column it reads is, by construction,
// inconsistent — this rewrite makes the plan executable rather than
// rejecting it outright, since the column drop is what the user asked
// for explicitly).
func forceDropDependents(steps []diff.Step, oldCat *catalog.Catalog) []diff.Step {
	alreadyDropped := make(map[string]bool, len(steps))
	for _, s := range steps {
		if s.Action == diff.ActionDrop {
			alreadyDropped[s.Object.Key()] = true
		}
	}

	var forced []diff.Step
	for _, s := range steps {
		if s.Action != diff.ActionDrop || s.Object.Kind != catalog.KindColumn {
			continue
		}
		for _, dep := range oldCat.ReverseDeps(s.Object) {
			if alreadyDropped[dep.Key()] {
				continue
			}
			switch dep.Kind {
			case catalog.KindView:
				forced = append(forced, diff.Step{Object: dep, Action: diff.ActionDrop, Narrows: true,
					SQL:         render.DropView(dep),
					Description: "forced drop of view " + dep.Name + " depending on dropped column " + s.Object.Column})
			case catalog.KindIndex:
				forced = append(forced, diff.Step{Object: dep, Action: diff.ActionDrop, Narrows: true,
					SQL:         render.DropIndex(dep),
					Description: "forced drop of index " + dep.Name + " depending on dropped column " + s.Object.Column})
			default:
				continue
			}
			alreadyDropped[dep.Key()] = true
		}
	}

	if len(forced) == 0 {
		return steps
	}
	return append(forced, steps...)
}
