// SPDX-License-Identifier: Apache-2.0

package diff_test

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/tools/txtar"

	"github.com/pgmt-dev/pgmt/pkg/catalog"
	"github.com/pgmt-dev/pgmt/pkg/diff"
)

const goldenTestDataDir = "testdata"

// catalogPair is the shape of a golden fixture's catalogs.json: two
// partial catalogs (only the exported fields a fixture cares about need
// to be set; Build fills in the dependency graph).
type catalogPair struct {
	Old json.RawMessage `json:"old"`
	New json.RawMessage `json:"new"`
}

// TestDiffGoldenFixtures runs every testdata/*.txtar archive through
// Diff, comparing the sorted set of produced step descriptions against
// the archive's want.txt, the same two-files-per-archive convention
// internal/jsonschema's fixture test uses.
func TestDiffGoldenFixtures(t *testing.T) {
	entries, err := os.ReadDir(goldenTestDataDir)
	require.NoError(t, err)

	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".txtar" {
			continue
		}

		t.Run(entry.Name(), func(t *testing.T) {
			ar, err := txtar.ParseFile(filepath.Join(goldenTestDataDir, entry.Name()))
			require.NoError(t, err)
			require.Len(t, ar.Files, 2)

			var pair catalogPair
			require.NoError(t, json.Unmarshal(ar.Files[0].Data, &pair))

			old := unmarshalCatalog(t, pair.Old)
			newCat := unmarshalCatalog(t, pair.New)

			res, err := diff.Diff(old, newCat, diff.DefaultOptions())
			require.NoError(t, err)

			var got []string
			for _, s := range res.Steps {
				got = append(got, s.Description)
			}
			sort.Strings(got)

			var want []string
			for _, line := range strings.Split(string(ar.Files[1].Data), "\n") {
				if line = strings.TrimSpace(line); line != "" {
					want = append(want, line)
				}
			}
			sort.Strings(want)

			assert.Equal(t, want, got)
		})
	}
}

func unmarshalCatalog(t *testing.T, raw json.RawMessage) *catalog.Catalog {
	t.Helper()
	cat := catalog.New()
	require.NoError(t, json.Unmarshal(raw, cat))
	return cat.Build()
}
