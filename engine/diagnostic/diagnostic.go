// Package diagnostic renders a script.Diagnostic or *script.RuntimeError
// against its source text as a caret-pointer snippet, the way a compiler's
// command-line frontend reports a single finding to a terminal.
//
// Nothing in the pack renders diagnostics this way; this package extends
// the teacher's plain "file:line:column: message" formatting
// (lockbox/errors/errors.go's Error() string) with a source-line snippet,
// staying in the same single-line, no-color-codes style.
package diagnostic

import (
	"fmt"
	"strings"

	"github.com/dueldanov/embedscript/internal/script"
)

// Render formats d against source, producing a message line followed by
// the offending source line and a caret under the reported column.
// If the line number falls outside source, only the message line is
// returned.
func Render(d script.Diagnostic, source string) string {
	var b strings.Builder
	b.WriteString(d.Error())

	line := sourceLine(source, d.Line)
	if line == "" {
		return b.String()
	}
	b.WriteByte('\n')
	b.WriteString(line)
	b.WriteByte('\n')
	b.WriteString(caretAt(d.Column))
	return b.String()
}

// RenderRuntimeError formats a *script.RuntimeError the same way. The
// error's Line counts from the start of the script file the procedure was
// loaded from, so source is that whole file's text.
func RenderRuntimeError(e *script.RuntimeError, source string) string {
	var b strings.Builder
	b.WriteString(e.Error())

	line := sourceLine(source, e.Line)
	if line == "" {
		return b.String()
	}
	b.WriteByte('\n')
	b.WriteString(line)
	b.WriteByte('\n')
	b.WriteString(caretAt(e.Column))
	return b.String()
}

// RenderAll renders a batch of diagnostics (as returned by Manager.Load
// or Manager.Check), one block per diagnostic, separated by a blank line.
func RenderAll(diags []script.Diagnostic, source string) string {
	blocks := make([]string, len(diags))
	for i, d := range diags {
		blocks[i] = Render(d, source)
	}
	return strings.Join(blocks, "\n\n")
}

func sourceLine(source string, lineNo int) string {
	if lineNo < 1 {
		return ""
	}
	lines := strings.Split(source, "\n")
	if lineNo > len(lines) {
		return ""
	}
	return lines[lineNo-1]
}

func caretAt(column int) string {
	if column < 1 {
		column = 1
	}
	return fmt.Sprintf("%s^", strings.Repeat(" ", column-1))
}
