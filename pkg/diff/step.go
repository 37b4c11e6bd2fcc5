// SPDX-License-Identifier: Apache-2.0

// Package diff implements the pairwise catalog differ (spec §4.4): given
// an old and a new Catalog, it produces the set of typed migration steps
// that would transform one into the other. Steps are plain data; nothing
// in this package executes SQL or talks to a database. The planner (pkg/
// plan) is the only consumer that imposes an order on them.
package diff

import "github.com/pgmt-dev/pgmt/pkg/catalog"

// Action tags what a Step does to its Object.
type Action string

const (
	ActionCreate  Action = "create"
	ActionDrop    Action = "drop"
	ActionAlter   Action = "alter"  // in-place attribute change
	ActionReplace Action = "replace"
	ActionGrant   Action = "grant"
	ActionRevoke  Action = "revoke"
	ActionComment Action = "comment"
)

// Op further distinguishes Alter steps; empty for Create/Drop/Replace.
type Op string

const (
	OpAddColumn         Op = "add_column"
	OpDropColumn        Op = "drop_column"
	OpAlterColumnType   Op = "alter_column_type"
	OpSetDefault        Op = "set_default"
	OpDropDefault       Op = "drop_default"
	OpSetNotNull        Op = "set_not_null"
	OpDropNotNull       Op = "drop_not_null"
	OpAlterEnumAddValue Op = "alter_enum_add_value"
	OpCommentSet        Op = "comment_set"
	OpCommentClear      Op = "comment_clear"
	OpFunctionStub      Op = "function_stub"
)

// Step is one unit of schema change: render it with pkg/render at the
// point the planner decides to emit it, or carry pre-rendered SQL — pgmt
// renders eagerly at diff time so the planner only ever reorders strings.
type Step struct {
	// Object is the primary object this step concerns.
	Object catalog.ID
	Action Action
	Op     Op

	// SQL is the statement(s) to execute for this step, already rendered.
	SQL string

	// Requires lists objects that must exist before this step runs — used
	// by the planner to build the create-phase topological order. For drop
	// steps this is unused; the planner orders drops from old_cat's graph
	// directly.
	Requires []catalog.ID

	// Narrows marks an in-place alter that removes capability (SET NOT
	// NULL, DROP COLUMN's implicit narrowing) and therefore belongs in the
	// drop phase rather than the create phase (spec §4.5).
	Narrows bool

	// Column carries the full new-column record for an OpAddColumn step,
	// so the planner can rewrite AddColumn(not_null, no_default) into the
	// safe nullable+backfill+SetNotNull sequence (spec §4.5, "Mandatory
	// intermediate steps") without re-deriving column attributes from SQL
	// text. Nil for every other step.
	Column *catalog.Column

	// RequiresEmptyTable marks a SetNotNull step emitted for a column with
	// no default. Diff cannot tell from the catalog alone whether the
	// table already holds rows that would violate the new constraint, so
	// rather than guessing it leaves the decision to pkg/plan, which
	// rewrites such a step into a backfill-then-constrain pair (see
	// backfillExistingNotNull) the same way it already does for brand new
	// NOT NULL columns.
	RequiresEmptyTable bool

	// Description is a short human-readable summary used in plan previews
	// and error messages.
	Description string
}

// Violation is a non-fatal or fatal finding surfaced alongside steps
// rather than failing the diff outright, so that relaxed mode can proceed
// with a warning (spec §4.4, "Column order policy").
type Violation struct {
	Kind       string // "column_order"
	Schema     string
	Table      string
	Column     string
	MustFollow string
}
