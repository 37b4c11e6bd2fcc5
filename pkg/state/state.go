// SPDX-License-Identifier: Apache-2.0

// Package state implements the tracking store (spec §4.7): a table of
// applied migration versions plus a companion per-section table used to
// resume a partially-applied migration.
package state

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/pgmt-dev/pgmt/internal/dbx"
	"github.com/pgmt-dev/pgmt/internal/identutil"
)

const sqlInit = `
CREATE SCHEMA IF NOT EXISTS %[1]s;

CREATE TABLE IF NOT EXISTS %[1]s.%[2]s (
	version     BIGINT PRIMARY KEY,
	description TEXT NOT NULL,
	applied_at  TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	checksum    TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS %[1]s.%[2]s_sections (
	version      BIGINT NOT NULL REFERENCES %[1]s.%[2]s (version),
	section_name TEXT NOT NULL,
	applied_at   TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,

	PRIMARY KEY (version, section_name)
);
`

// advisoryLockKey is an arbitrary constant distinguishing Init's lock from
// any other advisory lock a concurrent pgmt process might take.
const advisoryLockKey int64 = 0x70676d742d696e // "pgmt-in"

// Record is one applied migration (spec §6, "Tracking table schema").
type Record struct {
	Version     uint64
	Description string
	AppliedAt   string
	Checksum    string
}

// Store manages the tracking table in a schema/name pair validated via
// internal/identutil (spec §4.7, "Identifier safety" — the one helper
// everything else in this package goes through).
type Store struct {
	db     dbx.DB
	schema string
	table  string
}

// New validates schema and table before returning a Store wired to db. No
// query is issued here; Init performs the actual table creation.
func New(db dbx.DB, schema, table string) (*Store, error) {
	if err := identutil.ValidateAll(
		identutil.Pair{Kind: "schema", Name: schema},
		identutil.Pair{Kind: "table", Name: table},
	); err != nil {
		return nil, err
	}
	return &Store{db: db, schema: schema, table: table}, nil
}

// Init creates the tracking schema and tables if they do not already
// exist, guarded by a transaction-scoped advisory lock so concurrent
// `pgmt init` runs cannot race each other.
func (s *Store) Init(ctx context.Context) error {
	return s.db.WithRetryableTransaction(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "SELECT pg_advisory_xact_lock($1)", advisoryLockKey); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, fmt.Sprintf(sqlInit, pq.QuoteIdentifier(s.schema), pq.QuoteIdentifier(s.table)))
		return err
	})
}

func (s *Store) qualified() string {
	return pq.QuoteIdentifier(s.schema) + "." + pq.QuoteIdentifier(s.table)
}

func (s *Store) qualifiedSections() string {
	return pq.QuoteIdentifier(s.schema) + "." + pq.QuoteIdentifier(s.table+"_sections")
}

// AppliedVersions returns every recorded version, ascending.
func (s *Store) AppliedVersions(ctx context.Context) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(
		"SELECT version, description, applied_at, checksum FROM %s ORDER BY version ASC", s.qualified()))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var r Record
		var version int64
		if err := rows.Scan(&version, &r.Description, &r.AppliedAt, &r.Checksum); err != nil {
			return nil, err
		}
		r.Version = i64ToU64(version)
		out = append(out, r)
	}
	return out, rows.Err()
}

// LatestVersion returns the highest recorded version, or (0, false) if the
// tracking table is empty.
func (s *Store) LatestVersion(ctx context.Context) (uint64, bool, error) {
	var version sql.NullInt64
	err := s.db.QueryRowContext(ctx, fmt.Sprintf(
		"SELECT max(version) FROM %s", s.qualified())).Scan(&version)
	if err != nil {
		return 0, false, err
	}
	if !version.Valid {
		return 0, false, nil
	}
	return i64ToU64(version.Int64), true, nil
}

// RecordApplied inserts a tracking row for a fully-applied migration
// version (spec §4.7, "Version domain" — the u64 → i64 write boundary).
func (s *Store) RecordApplied(ctx context.Context, version uint64, description, checksum string) error {
	v, err := u64ToI64(version)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, fmt.Sprintf(
		"INSERT INTO %s (version, description, checksum) VALUES ($1, $2, $3)", s.qualified()),
		v, description, checksum)
	return err
}

// RecordBaseline inserts a tracking row for version as if it had been
// applied, without requiring the migration's SQL to be replayed (spec
// §4.7, "Baseline recording"). It is otherwise identical to RecordApplied.
func (s *Store) RecordBaseline(ctx context.Context, version uint64, description, checksum string) error {
	return s.RecordApplied(ctx, version, description, checksum)
}

// RecordSection marks a named section of version as applied, the unit
// spec §9's partial-apply resume checks (spec §4.7's companion
// `<name>_sections` table).
func (s *Store) RecordSection(ctx context.Context, version uint64, section string) error {
	v, err := u64ToI64(version)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, fmt.Sprintf(
		"INSERT INTO %s (version, section_name) VALUES ($1, $2) ON CONFLICT DO NOTHING", s.qualifiedSections()),
		v, section)
	return err
}

// AppliedSections returns the set of section names already recorded for
// version, used to skip them on resume (spec §9, "Partial-apply resume").
func (s *Store) AppliedSections(ctx context.Context, version uint64) (map[string]bool, error) {
	v, err := u64ToI64(version)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(
		"SELECT section_name FROM %s WHERE version = $1", s.qualifiedSections()), v)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	done := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		done[name] = true
	}
	return done, rows.Err()
}

// Checksum returns the stored checksum for version, for drift detection
// against the on-disk migration file (spec §4.7, "Checksums").
func (s *Store) Checksum(ctx context.Context, version uint64) (string, error) {
	v, err := u64ToI64(version)
	if err != nil {
		return "", err
	}
	var checksum string
	err = s.db.QueryRowContext(ctx, fmt.Sprintf(
		"SELECT checksum FROM %s WHERE version = $1", s.qualified()), v).Scan(&checksum)
	return checksum, err
}
