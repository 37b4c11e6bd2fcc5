// SPDX-License-Identifier: Apache-2.0

// Package identutil validates identifiers that are interpolated directly
// into DDL rather than passed as prepared-statement parameters.
//
// This is the single helper spec §4.7 requires: the tracking store's schema
// and table names can never go through a placeholder (Postgres does not
// allow parameterizing identifiers), so they are validated here before any
// fmt.Sprintf builds SQL text. Every other call site that needs this check
// must call through this package rather than rolling its own regexp.
package identutil

import (
	"fmt"
	"regexp"
)

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_$]*$`)

// InvalidIdentifierError is returned when a caller-supplied identifier would
// be unsafe to interpolate into DDL.
type InvalidIdentifierError struct {
	Kind  string // "schema", "table", etc, for the error message
	Value string
}

func (e InvalidIdentifierError) Error() string {
	return fmt.Sprintf("invalid %s identifier %q: must match %s and must not be quoted", e.Kind, e.Value, identifierPattern.String())
}

// Validate returns an error if name is not safe to interpolate unquoted into
// DDL as the given kind of identifier (used only for the error message).
func Validate(kind, name string) error {
	if name == "" || !identifierPattern.MatchString(name) {
		return InvalidIdentifierError{Kind: kind, Value: name}
	}
	return nil
}

// Pair is a (kind, name) identifier to validate, kind used only in error text.
type Pair struct {
	Kind string
	Name string
}

// ValidateAll validates an ordered list of identifiers, returning the first
// failure encountered.
func ValidateAll(pairs ...Pair) error {
	for _, p := range pairs {
		if err := Validate(p.Kind, p.Name); err != nil {
			return err
		}
	}
	return nil
}
