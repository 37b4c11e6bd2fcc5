// SPDX-License-Identifier: Apache-2.0

package sandbox

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/pterm/pterm"

	"github.com/pgmt-dev/pgmt/pkg/catalog"
	"github.com/pgmt-dev/pgmt/pkg/depsfile"
)

// UseFS attaches the filesystem ApplyFile and ApplyDirectory read schema
// files from. Provision/Connect don't set one on their own since they
// only establish the database connection; callers wire a filesystem in
// before applying anything.
func (sb *Sandbox) UseFS(fsys fs.FS) { sb.fsys = fsys }

// ApplyFile implements depsfile.ShadowEnv: it reads path from the
// sandbox's filesystem and executes its contents as a single statement
// batch, wrapping any database failure in a SchemaError (spec §4.6 step
// 5).
func (sb *Sandbox) ApplyFile(ctx context.Context, path string) error {
	src, err := fs.ReadFile(sb.fsys, path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}
	if _, err := sb.DB.ExecContext(ctx, string(src)); err != nil {
		return newSchemaError(path, src, err)
	}
	return nil
}

// Catalog implements depsfile.ShadowEnv by loading the sandbox's current
// state with the same loader the live database uses.
func (sb *Sandbox) Catalog(ctx context.Context) (*catalog.Catalog, error) {
	return catalog.Load(ctx, sb.DB, catalog.DefaultFilter())
}

// ApplyOptions configures a directory apply (spec §6).
type ApplyOptions struct {
	// RolesFile, if set, is applied first, outside the dependency
	// ordering graph, so roles referenced by grants elsewhere already
	// exist (spec §4.6 step 4, §6 "directories.roles_file"). Relative to
	// the same filesystem as the rest of the directory.
	RolesFile string
}

// ApplyDirectory applies every schema file under fsys to sb, in
// dependency order, implementing the full shadow executor algorithm
// (spec §4.6): discover files, parse `-- require:` headers, topologically
// order them, apply a configured roles file first, then execute each
// file in turn, surfacing a rich SchemaError on the first failure.
//
// Alongside applying, it snapshots sb's catalog before and after each
// file to observe which objects the file brought into existence, and
// derives a depsfile.Augmentation from those observations plus the
// `-- require:` edges (spec §4.2, "File-dependency augmenter"). Callers
// fold the result into the catalog they load from sb afterward via
// catalog.Catalog.MergeExtraDeps.
func ApplyDirectory(ctx context.Context, sb *Sandbox, fsys fs.FS, opts ApplyOptions) (depsfile.Augmentation, error) {
	sb.UseFS(fsys)

	if opts.RolesFile != "" {
		sp, _ := pterm.DefaultSpinner.WithText("applying roles").Start()
		if err := sb.ApplyFile(ctx, opts.RolesFile); err != nil {
			sp.Fail(err.Error())
			return nil, err
		}
		sp.Success("roles applied")
	}

	files, err := depsfile.Discover(fsys)
	if err != nil {
		return nil, err
	}
	files = excludeFile(files, opts.RolesFile)

	graph, err := depsfile.BuildFileGraph(files, func(path string) ([]byte, error) {
		return fs.ReadFile(fsys, path)
	})
	if err != nil {
		return nil, err
	}

	before, err := sb.Catalog(ctx)
	if err != nil {
		return nil, fmt.Errorf("snapshotting shadow before applying schema files: %w", err)
	}
	beforeIDs := idSet(before)
	owned := make(map[string][]catalog.ID, len(graph.Files()))

	ordered := graph.Files()
	sp, _ := pterm.DefaultSpinner.WithText(fmt.Sprintf("applying schema files [%s]", sb.SessionID)).Start()
	for i, file := range ordered {
		sp.UpdateText(fmt.Sprintf("applying %s (%d/%d)", file, i+1, len(ordered)))
		if err := sb.ApplyFile(ctx, file); err != nil {
			wrapped := attachRequireHint(err, file, ordered)
			sp.Fail(wrapped.Error())
			return nil, wrapped
		}

		after, err := sb.Catalog(ctx)
		if err != nil {
			sp.Fail(err.Error())
			return nil, fmt.Errorf("snapshotting shadow after %s: %w", file, err)
		}
		afterIDs := idSet(after)
		owned[file] = newIDs(beforeIDs, afterIDs)
		beforeIDs = afterIDs
	}
	sp.Success(fmt.Sprintf("applied %d schema files", len(ordered)))

	return depsfile.DeriveAugmentation(owned, graph)
}

func idSet(c *catalog.Catalog) map[string]catalog.ID {
	ids := c.AllIDs()
	m := make(map[string]catalog.ID, len(ids))
	for _, id := range ids {
		m[id.Key()] = id
	}
	return m
}

func newIDs(before, after map[string]catalog.ID) []catalog.ID {
	var created []catalog.ID
	for key, id := range after {
		if _, existed := before[key]; !existed {
			created = append(created, id)
		}
	}
	return created
}

func excludeFile(files []string, exclude string) []string {
	if exclude == "" {
		return files
	}
	out := make([]string, 0, len(files))
	for _, f := range files {
		if f != exclude {
			out = append(out, f)
		}
	}
	return out
}

// attachRequireHint adds a RequireHint to a SchemaError for an
// undefined_table failure when an earlier-ordered file's base name
// appears in the error message — a best-effort nudge toward a missing
// `-- require:` directive, not a guarantee (spec §4.6, "Dependency
// errors").
func attachRequireHint(err error, file string, ordered []string) error {
	se, ok := err.(*SchemaError)
	if !ok || se.Code != "42P01" {
		return err
	}
	for _, other := range ordered {
		if other == file {
			break
		}
		stem := strings.TrimSuffix(filepath.Base(other), filepath.Ext(other))
		if strings.Contains(se.Message, stem) {
			se.RequireHint = other
			break
		}
	}
	return se
}
