// SPDX-License-Identifier: Apache-2.0

package state

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// filenamePattern matches spec §6's migration file format:
// `V<version>__<description>.sql`, version a monotonic integer.
var filenamePattern = regexp.MustCompile(`^V(\d+)__(.+)\.sql$`)

const maxDescriptionLength = 100

// InvalidMigrationFilenameError is returned when a migration file's name
// does not match `V<version>__<description>.sql`.
type InvalidMigrationFilenameError struct {
	Filename string
}

func (e InvalidMigrationFilenameError) Error() string {
	return fmt.Sprintf("invalid migration filename %q: want V<version>__<description>.sql", e.Filename)
}

// Migration is a parsed, on-disk migration file (spec §6, "Migration file
// format").
type Migration struct {
	Version     uint64
	Description string
	Filename    string
	Sections    []MigrationSection
	Checksum    string
}

// MigrationSection is one `-- @section: NAME` delimited part of a
// migration file's SQL (spec §6).
type MigrationSection struct {
	Name string
	SQL  string
}

var sectionMarker = regexp.MustCompile(`(?m)^--\s*@section:\s*(\S+)\s*$`)

// ParseMigrationFilename validates name against spec §6's filename format
// and extracts its version and description.
func ParseMigrationFilename(name string) (version uint64, description string, err error) {
	m := filenamePattern.FindStringSubmatch(name)
	if m == nil {
		return 0, "", InvalidMigrationFilenameError{Filename: name}
	}
	v, err := strconv.ParseUint(m[1], 10, 64)
	if err != nil {
		return 0, "", InvalidMigrationFilenameError{Filename: name}
	}
	description = m[2]
	if description == "" || len(description) > maxDescriptionLength {
		return 0, "", fmt.Errorf("migration %q: description length must be 1-%d characters", name, maxDescriptionLength)
	}
	return v, description, nil
}

// ParseMigration parses a migration file's name and contents into its
// version, description, checksum, and `-- @section:`-delimited sections.
func ParseMigration(filename string, contents []byte) (*Migration, error) {
	version, description, err := ParseMigrationFilename(filename)
	if err != nil {
		return nil, err
	}

	return &Migration{
		Version:     version,
		Description: description,
		Filename:    filename,
		Sections:    splitSections(string(contents)),
		Checksum:    Checksum(contents),
	}, nil
}

// splitSections partitions src on `-- @section: NAME` markers. Content
// before the first marker, if any, becomes an unnamed leading section.
func splitSections(src string) []MigrationSection {
	matches := sectionMarker.FindAllStringSubmatchIndex(src, -1)
	if len(matches) == 0 {
		return []MigrationSection{{SQL: src}}
	}

	var sections []MigrationSection
	if lead := strings.TrimSpace(src[:matches[0][0]]); lead != "" {
		sections = append(sections, MigrationSection{SQL: src[:matches[0][0]]})
	}
	for i, m := range matches {
		name := src[m[2]:m[3]]
		end := len(src)
		if i+1 < len(matches) {
			end = matches[i+1][0]
		}
		sections = append(sections, MigrationSection{Name: name, SQL: src[m[1]:end]})
	}
	return sections
}

// Checksum computes spec §4.7's content-addressed hash over the canonical
// migration SQL, used to detect drift between an applied migration's
// recorded checksum and the on-disk file.
func Checksum(contents []byte) string {
	sum := sha256.Sum256(contents)
	return hex.EncodeToString(sum[:])
}

// ChecksumMismatchError is returned when a migration's stored checksum
// differs from the hash of the on-disk file (spec §7, "ChecksumMismatch").
// It is always surfaced, never auto-repaired.
type ChecksumMismatchError struct {
	Version  uint64
	Stored   string
	Computed string
}

func (e ChecksumMismatchError) Error() string {
	return fmt.Sprintf("checksum mismatch for version %d: stored %s, computed %s", e.Version, e.Stored, e.Computed)
}

// ErrNoActiveMigration is returned when a caller queries an in-progress
// migration but none is recorded.
var ErrNoActiveMigration = errors.New("no active migration")
