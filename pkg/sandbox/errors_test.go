// SPDX-License-Identifier: Apache-2.0

package sandbox

import (
	"strconv"
	"strings"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSchemaErrorComputesLineAndContext(t *testing.T) {
	src := []byte("CREATE TABLE users (\n    id bigint,\n    name txt\n);\n")
	// "txt" starts at byte offset of line 3; compute position manually.
	pos := len("CREATE TABLE users (\n    id bigint,\n    name ") + 1

	pqErr := &pq.Error{
		Code:     "42704", // undefined_object
		Message:  `type "txt" does not exist`,
		Hint:     "",
		Position: strconv.Itoa(pos),
	}

	se := newSchemaError("schema.sql", src, pqErr)
	require.Equal(t, "schema.sql", se.File)
	assert.Equal(t, 3, se.Line)
	assert.Equal(t, "42704", se.Code)
	assert.Contains(t, se.Context, "> ")
	assert.Contains(t, se.Context, "name txt")
}

func TestNewSchemaErrorWithoutPositionHasNoContext(t *testing.T) {
	pqErr := &pq.Error{Code: "42P01", Message: `relation "orders" does not exist`}
	se := newSchemaError("schema.sql", []byte("SELECT 1;"), pqErr)
	assert.Equal(t, 0, se.Line)
	assert.Empty(t, se.Context)
}

func TestNewSchemaErrorWrapsNonPQErrors(t *testing.T) {
	se := newSchemaError("schema.sql", []byte("x"), assertErr{"boom"})
	assert.Equal(t, "boom", se.Message)
	assert.Empty(t, se.Code)
}

func TestContextWindowMarksOnlyTheFailingLine(t *testing.T) {
	src := []byte("a\nb\nc\nd\ne\n")
	window := contextWindow(src, 3, 1)
	assert.Contains(t, window, "> ")
	lines := strings.Split(window, "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[1], "> ")
	assert.NotContains(t, lines[0], "> ")
	assert.NotContains(t, lines[2], "> ")
}

type assertErr struct{ msg string }

func (e assertErr) Error() string { return e.msg }
