// SPDX-License-Identifier: Apache-2.0

package catalog

// Filter controls which schemas/tables the loader considers and which
// optional object classes it loads (spec §4.1).
type Filter struct {
	IncludeSchemas []string // empty means "all schemas except system schemas"
	ExcludeSchemas []string
	IncludeTables  []string // schema-qualified, e.g. "public.users"; empty means "all"
	ExcludeTables  []string

	Comments   bool
	Grants     bool
	Triggers   bool
	Extensions bool

	// IncludePublicFunctionGrants controls whether the implicit PUBLIC
	// EXECUTE grant Postgres creates on new functions is treated as
	// managed state. Resolves spec §9's open question; default true.
	IncludePublicFunctionGrants bool

	// TrackingSchema/TrackingTable are unconditionally excluded from the
	// catalog regardless of any other filter setting (spec §4.1, "Internal
	// tables").
	TrackingSchema string
	TrackingTable  string
}

// DefaultFilter returns the filter used when the user has not overridden any
// object-class toggle.
func DefaultFilter() Filter {
	return Filter{
		Comments:                    true,
		Grants:                      true,
		Triggers:                    true,
		Extensions:                  true,
		IncludePublicFunctionGrants: true,
		TrackingSchema:              "public",
		TrackingTable:               "pgmt_migrations",
	}
}

var systemSchemas = map[string]bool{
	"pg_catalog":         true,
	"information_schema": true,
	"pg_toast":           true,
}

func (f Filter) schemaIncluded(schema string) bool {
	if systemSchemas[schema] {
		return false
	}
	for _, ex := range f.ExcludeSchemas {
		if ex == schema {
			return false
		}
	}
	if len(f.IncludeSchemas) == 0 {
		return true
	}
	for _, in := range f.IncludeSchemas {
		if in == schema {
			return true
		}
	}
	return false
}

func (f Filter) tableIncluded(schema, table string) bool {
	if !f.schemaIncluded(schema) {
		return false
	}
	if f.TrackingSchema == schema && (f.TrackingTable == table || f.TrackingTable+"_sections" == table) {
		return false
	}
	qualified := schema + "." + table
	for _, ex := range f.ExcludeTables {
		if ex == qualified || ex == table {
			return false
		}
	}
	if len(f.IncludeTables) == 0 {
		return true
	}
	for _, in := range f.IncludeTables {
		if in == qualified || in == table {
			return true
		}
	}
	return false
}
