// SPDX-License-Identifier: Apache-2.0

package state

import (
	"context"
	"fmt"

	"github.com/lib/pq"
	"golang.org/x/mod/semver"
)

// VersionCompatibility is the result of comparing the pgmt binary's
// version against the version recorded in the tracking schema.
type VersionCompatibility int

const (
	VersionCompatCheckSkipped VersionCompatibility = iota
	VersionCompatNotInitialized
	VersionCompatSchemaOlder
	VersionCompatSchemaEqual
	VersionCompatSchemaNewer
)

const metaTable = "pgmt_meta"

// RecordBinaryVersion stores the pgmt binary version that initialized the
// tracking schema, for later compatibility checks.
func (s *Store) RecordBinaryVersion(ctx context.Context, version string) error {
	if _, err := s.db.ExecContext(ctx, fmt.Sprintf(
		`CREATE TABLE IF NOT EXISTS %s.%s (version TEXT NOT NULL, initialized_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP)`,
		s.quotedSchema(), metaTable)); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, fmt.Sprintf(
		`INSERT INTO %s.%s (version) VALUES ($1)`, s.quotedSchema(), metaTable), version)
	return err
}

// CheckCompatibility compares binaryVersion against the most recently
// recorded schema version, following the same "development versions are
// never checked" and "invalid semver is never checked" escape hatches as
// the teacher's compatibility check.
func (s *Store) CheckCompatibility(ctx context.Context, binaryVersion string) (VersionCompatibility, error) {
	if binaryVersion == "development" {
		return VersionCompatCheckSkipped, nil
	}

	var schemaVersion string
	err := s.db.QueryRowContext(ctx, fmt.Sprintf(
		`SELECT version FROM %s.%s ORDER BY initialized_at DESC LIMIT 1`, s.quotedSchema(), metaTable)).Scan(&schemaVersion)
	if err != nil {
		return VersionCompatNotInitialized, nil
	}
	if schemaVersion == "development" {
		return VersionCompatCheckSkipped, nil
	}

	schemaVersion = ensureVPrefix(schemaVersion)
	binaryVersion = ensureVPrefix(binaryVersion)
	if !semver.IsValid(schemaVersion) || !semver.IsValid(binaryVersion) {
		return VersionCompatCheckSkipped, nil
	}

	switch semver.Compare(semver.Canonical(schemaVersion), semver.Canonical(binaryVersion)) {
	case -1:
		return VersionCompatSchemaOlder, nil
	case 1:
		return VersionCompatSchemaNewer, nil
	default:
		return VersionCompatSchemaEqual, nil
	}
}

func (s *Store) quotedSchema() string { return pq.QuoteIdentifier(s.schema) }

func ensureVPrefix(v string) string {
	if len(v) > 0 && v[0] != 'v' {
		return "v" + v
	}
	return v
}
