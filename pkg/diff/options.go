// SPDX-License-Identifier: Apache-2.0

package diff

// ColumnOrderMode controls how the differ reacts to a new column that was
// not appended after every preserved column (spec §6, "schema.column_order").
type ColumnOrderMode string

const (
	ColumnOrderStrict   ColumnOrderMode = "strict"
	ColumnOrderRelaxed  ColumnOrderMode = "relaxed"
)

// Options configures Diff's behavior at the points spec.md leaves
// implementation-defined.
type Options struct {
	ColumnOrder ColumnOrderMode

	// AllowDestructiveEnumChanges opts into emitting a drop+create plan for
	// an enum type whose values were removed, renamed, or reordered, and
	// for any changed composite or range type (spec §9, "Enum value
	// removal").
	AllowDestructiveEnumChanges bool
}

// DefaultOptions returns the conservative default: strict column order,
// destructive enum changes refused.
func DefaultOptions() Options {
	return Options{ColumnOrder: ColumnOrderStrict}
}
