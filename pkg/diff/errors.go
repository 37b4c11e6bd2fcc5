// SPDX-License-Identifier: Apache-2.0

package diff

import "fmt"

// ColumnOrderViolationError is returned in strict mode when a new column
// was not appended after every preserved column (spec §7,
// "DiffError.ColumnOrderViolation").
type ColumnOrderViolationError struct {
	Violations []Violation
}

func (e *ColumnOrderViolationError) Error() string {
	if len(e.Violations) == 1 {
		v := e.Violations[0]
		return fmt.Sprintf("column order violation: %s.%s.%s must follow %s", v.Schema, v.Table, v.Column, v.MustFollow)
	}
	return fmt.Sprintf("column order violation: %d columns out of order", len(e.Violations))
}

// ManualChangeRequiredError is returned when a requested change cannot be
// safely automated — for example adding a NOT NULL column with no default
// to a non-empty table (spec §7, "DiffError.ManualChangeRequired").
type ManualChangeRequiredError struct {
	Object      string
	Reason      string
	Suggestion  string
}

func (e *ManualChangeRequiredError) Error() string {
	msg := fmt.Sprintf("manual change required for %s: %s", e.Object, e.Reason)
	if e.Suggestion != "" {
		msg += "; suggested rewrite: " + e.Suggestion
	}
	return msg
}

// DestructiveChangeError is returned when a plan would drop and recreate a
// type without the caller having opted in via
// Options.AllowDestructiveEnumChanges: an enum whose values were removed or
// reordered, or any change to a composite or range type (spec §9, "Enum
// value removal").
type DestructiveChangeError struct {
	Object string
	Reason string
}

func (e *DestructiveChangeError) Error() string {
	return fmt.Sprintf("destructive change to %s requires AllowDestructiveEnumChanges: %s", e.Object, e.Reason)
}
