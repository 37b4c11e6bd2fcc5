// SPDX-License-Identifier: Apache-2.0

package plan

// Options controls the scheduler's mandatory-intermediate-step behavior
// (spec §4.5, "Mandatory intermediate steps").
type Options struct {
	// AllowNotNullBackfill opts into the nullable+backfill+SetNotNull
	// rewrite for an AddColumn(not_null, no_default) step, and into the
	// backfill+SetNotNull rewrite for a SetNotNull step against an
	// existing column with no default. Without it, Schedule refuses
	// either step with a ManualChangeRequiredError.
	AllowNotNullBackfill bool

	// NotNullBackfillValue is the SQL literal expression used to
	// populate existing rows before SET NOT NULL is applied. Required
	// when AllowNotNullBackfill is true.
	NotNullBackfillValue string
}

// DefaultOptions returns the scheduler's conservative default: no
// automatic NOT NULL backfill.
func DefaultOptions() Options {
	return Options{}
}
