// SPDX-License-Identifier: Apache-2.0

package sandbox

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/lib/pq"
)

// SchemaError is returned when a schema file fails to apply to the
// sandbox (spec §7, "SchemaError"). It is fatal to the current command;
// no partial state is recorded for a file-application failure.
type SchemaError struct {
	File    string
	Line    int // 1-based, 0 if not computable
	Code    string
	Message string
	Hint    string
	Detail  string
	Context string // ±3-line window around Line, empty if Line is 0

	// RequireHint, when non-empty, suggests another file this one should
	// have declared as a `-- require:` dependency (spec §4.6, "Dependency
	// errors").
	RequireHint string
}

func (e *SchemaError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "applying %s failed", e.File)
	if e.Line > 0 {
		fmt.Fprintf(&b, " at line %d", e.Line)
	}
	if e.Code != "" {
		fmt.Fprintf(&b, " [%s]", e.Code)
	}
	fmt.Fprintf(&b, ": %s", e.Message)
	if e.Hint != "" {
		fmt.Fprintf(&b, " (hint: %s)", e.Hint)
	}
	if e.RequireHint != "" {
		fmt.Fprintf(&b, "; consider adding `-- require: %s` to %s", e.RequireHint, e.File)
	}
	if e.Context != "" {
		b.WriteString("\n")
		b.WriteString(e.Context)
	}
	return b.String()
}

// newSchemaError builds a SchemaError from a file's source and the pq
// error returned while applying it, computing the 1-based line number
// from the database's 1-indexed byte Position (spec §4.6 step 5) and a
// ±3-line context window marked with '>'.
func newSchemaError(file string, src []byte, err error) *SchemaError {
	se := &SchemaError{File: file, Message: err.Error()}

	pqErr, ok := err.(*pq.Error)
	if !ok {
		return se
	}
	se.Code = string(pqErr.Code)
	se.Message = pqErr.Message
	se.Hint = pqErr.Hint
	se.Detail = pqErr.Detail

	if pqErr.Position != "" {
		if pos, convErr := strconv.Atoi(pqErr.Position); convErr == nil && pos > 0 {
			se.Line = lineForPosition(src, pos)
			se.Context = contextWindow(src, se.Line, 3)
		}
	}
	return se
}

// lineForPosition converts a 1-indexed byte position into a 1-based line
// number by counting newlines up to position-1.
func lineForPosition(src []byte, position int) int {
	if position > len(src) {
		position = len(src)
	}
	return bytes.Count(src[:position-1], []byte("\n")) + 1
}

// contextWindow renders up to radius lines before and after line (1-based),
// marking line itself with '>'.
func contextWindow(src []byte, line, radius int) string {
	lines := strings.Split(string(src), "\n")
	start := line - radius - 1
	if start < 0 {
		start = 0
	}
	end := line + radius
	if end > len(lines) {
		end = len(lines)
	}

	var b strings.Builder
	for i := start; i < end; i++ {
		marker := "  "
		if i+1 == line {
			marker = "> "
		}
		fmt.Fprintf(&b, "%s%4d| %s\n", marker, i+1, lines[i])
	}
	return strings.TrimRight(b.String(), "\n")
}
