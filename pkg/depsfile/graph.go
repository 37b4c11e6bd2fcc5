// SPDX-License-Identifier: Apache-2.0

package depsfile

import (
	"bufio"
	"bytes"
	"fmt"
	"io/fs"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

// requireHeaderPattern matches a `-- require: a.sql, b.sql` directive line
// (spec §4.2, §6 "File dependency directive").
var requireHeaderPattern = regexp.MustCompile(`(?i)^--\s*require:\s*(.+?)\s*$`)

// FileGraph is the file→file dependency graph extracted from `require:`
// headers, plus a valid apply order (topological, ties broken
// lexicographically, per spec §4.6 step 3).
type FileGraph struct {
	requires map[string][]string // file -> files it requires
	order    []string
}

// Files returns the files in apply order.
func (g *FileGraph) Files() []string { return append([]string(nil), g.order...) }

// Requires returns the files that file directly requires.
func (g *FileGraph) Requires(file string) []string { return append([]string(nil), g.requires[file]...) }

// Discover walks fsys and returns every schema file it manages, in no
// particular order: files matching *.sql, *.psql, *.pgsql directly under
// its root, plus files matching NNN_name/migration.sql or NNN_name/up.sql
// one level down — the same conventions the shadow executor applies (spec
// §4.6 step 1, "interoperability with other migration-tool conventions").
// Paths are returned relative to the root of fsys.
func Discover(fsys fs.FS) ([]string, error) {
	var files []string
	err := fs.WalkDir(fsys, ".", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		base := filepath.Base(path)
		switch {
		case hasSchemaExt(base) && depth(path) == 1:
			files = append(files, path)
		case base == "migration.sql" || base == "up.sql":
			if depth(path) == 2 {
				files = append(files, path)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("discovering schema files: %w", err)
	}
	return files, nil
}

func hasSchemaExt(name string) bool {
	ext := filepath.Ext(name)
	return ext == ".sql" || ext == ".psql" || ext == ".pgsql"
}

func depth(path string) int {
	return len(strings.Split(filepath.ToSlash(path), "/"))
}

// ParseRequireHeader scans src for `-- require:` directive lines appearing
// before the first non-blank, non-comment line (i.e. before the first SQL
// statement), and returns the comma-separated file paths it names.
func ParseRequireHeader(src []byte) ([]string, error) {
	var requires []string
	scanner := bufio.NewScanner(bytes.NewReader(src))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if m := requireHeaderPattern.FindStringSubmatch(line); m != nil {
			for _, part := range strings.Split(m[1], ",") {
				part = strings.TrimSpace(part)
				if part != "" {
					requires = append(requires, part)
				}
			}
			continue
		}
		if strings.HasPrefix(line, "--") {
			continue
		}
		// first non-comment, non-blank line: the header section is over.
		break
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scanning require header: %w", err)
	}
	return requires, nil
}

// BuildFileGraph reads every file's require header and computes a valid
// apply order. readFile is injected so callers can source file contents
// from an fs.FS, a sandbox-local copy, or an in-memory test fixture.
func BuildFileGraph(files []string, readFile func(path string) ([]byte, error)) (*FileGraph, error) {
	requires := make(map[string][]string, len(files))
	known := make(map[string]bool, len(files))
	for _, f := range files {
		known[f] = true
	}

	for _, f := range files {
		src, err := readFile(f)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", f, err)
		}
		reqs, err := ParseRequireHeader(src)
		if err != nil {
			return nil, fmt.Errorf("parsing require header of %s: %w", f, err)
		}
		for _, r := range reqs {
			if !known[r] {
				return nil, fmt.Errorf("%s requires %s, which is not a known schema file", f, r)
			}
		}
		requires[f] = reqs
	}

	order, err := topoSort(files, requires)
	if err != nil {
		return nil, err
	}

	return &FileGraph{requires: requires, order: order}, nil
}

// topoSort performs Kahn's algorithm over the requires edges, breaking
// ties lexicographically by path so that apply order is deterministic
// (spec §4.6 step 3).
func topoSort(files []string, requires map[string][]string) ([]string, error) {
	indegree := make(map[string]int, len(files))
	dependents := make(map[string][]string, len(files))
	for _, f := range files {
		indegree[f] = 0
	}
	for f, reqs := range requires {
		indegree[f] += len(reqs)
		for _, r := range reqs {
			dependents[r] = append(dependents[r], f)
		}
	}

	var ready []string
	for _, f := range files {
		if indegree[f] == 0 {
			ready = append(ready, f)
		}
	}
	sort.Strings(ready)

	var order []string
	for len(ready) > 0 {
		sort.Strings(ready)
		next := ready[0]
		ready = ready[1:]
		order = append(order, next)

		deps := append([]string(nil), dependents[next]...)
		sort.Strings(deps)
		for _, d := range deps {
			indegree[d]--
			if indegree[d] == 0 {
				ready = append(ready, d)
			}
		}
	}

	if len(order) != len(files) {
		return nil, fmt.Errorf("require directives form a cycle among schema files")
	}
	return order, nil
}
