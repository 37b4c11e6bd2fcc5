// SPDX-License-Identifier: Apache-2.0

package identutil_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/pgmt-dev/pgmt/internal/identutil"
)

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{name: "simple", input: "public", wantErr: false},
		{name: "underscore prefix", input: "_pgmt", wantErr: false},
		{name: "digits and dollar", input: "tbl_1$shadow", wantErr: false},
		{name: "empty", input: "", wantErr: true},
		{name: "leading digit", input: "1schema", wantErr: true},
		{name: "embedded quote", input: `public"; DROP TABLE users;--`, wantErr: true},
		{name: "double quoted identifier", input: `"public"`, wantErr: true},
		{name: "dot qualified", input: "public.migrations", wantErr: true},
		{name: "whitespace", input: "public ", wantErr: true},
		{name: "unicode homoglyph", input: "pᴜblic", wantErr: true},
		{name: "semicolon injection", input: "public;select 1", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := identutil.Validate("schema", tt.input)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateAllStopsAtFirstFailure(t *testing.T) {
	t.Parallel()

	err := identutil.ValidateAll(
		identutil.Pair{Kind: "schema", Name: "public"},
		identutil.Pair{Kind: "table", Name: "bad;name"},
		identutil.Pair{Kind: "table", Name: "unreached"},
	)
	assert.ErrorContains(t, err, `"bad;name"`)
}
