package lexer

import (
	"strings"

	"github.com/fortiel-lang/fortiel/internal/fterr"
)

// LineSource reads physical lines from a Fortran/Fortiel source file and
// resolves trailing `&` continuations into logical lines. Two views of the
// current logical line are exposed: Peek, which returns a single-space-joined
// condensed form used for directive/call-segment regex matching, and Raw, the
// continuation lines joined with embedded newlines so ordinary code lines
// are reproduced exactly (minus the continuation markers themselves) when
// no directive is involved.
type LineSource struct {
	file  string
	lines []string

	idx  int // index into lines of the current logical line's first physical line
	line int // 1-based line number of the current logical line's first physical line

	text  string
	raw   string
	atEnd bool
}

// New constructs a LineSource over the given file's lines and resolves the
// first logical line.
func New(file string, lines []string) (*LineSource, error) {
	ls := &LineSource{file: file, lines: lines, idx: 0, line: 1}
	if len(lines) == 0 {
		ls.atEnd = true
		return ls, nil
	}
	if err := ls.resolve(); err != nil {
		return nil, err
	}
	return ls, nil
}

// resolve joins continuations starting at ls.idx into ls.text/ls.raw.
func (ls *LineSource) resolve() error {
	first := strings.TrimRight(ls.lines[ls.idx], " \t\r")
	text := first
	raw := first
	i := ls.idx
	for strings.HasSuffix(text, "&") {
		i++
		if i >= len(ls.lines) {
			return fterr.NewSyntax(ls.file, ls.line+(i-ls.idx), "unexpected end of file in continuation lines")
		}
		next := strings.TrimRight(ls.lines[i], " \t\r")
		raw += "\n" + next
		nextTrimmed := strings.TrimLeft(next, " \t")
		nextTrimmed = strings.TrimPrefix(nextTrimmed, "&")
		nextTrimmed = strings.TrimLeft(nextTrimmed, " \t")
		text = strings.TrimRight(strings.TrimSuffix(text, "&"), " \t") + " " + nextTrimmed
	}
	ls.text = text
	ls.raw = raw
	return nil
}

// Peek returns the condensed text of the current logical line and whether
// input remains.
func (ls *LineSource) Peek() (string, bool) {
	if ls.atEnd {
		return "", false
	}
	return ls.text, true
}

// Raw returns the verbatim (continuation newlines preserved) text of the
// current logical line.
func (ls *LineSource) Raw() string {
	return ls.raw
}

// Line returns the 1-based physical line number of the first line of the
// current logical line.
func (ls *LineSource) Line() int {
	return ls.line
}

// AtEnd reports whether there are no more logical lines.
func (ls *LineSource) AtEnd() bool {
	return ls.atEnd
}

// Advance consumes the current logical line and resolves the next one.
func (ls *LineSource) Advance() error {
	if ls.atEnd {
		return nil
	}
	// Count how many physical lines the current logical line consumed.
	consumed := 1
	text := strings.TrimRight(ls.lines[ls.idx], " \t\r")
	j := ls.idx
	for strings.HasSuffix(text, "&") {
		j++
		text = strings.TrimRight(ls.lines[j], " \t\r")
		consumed++
	}
	ls.idx += consumed
	ls.line += consumed
	if ls.idx >= len(ls.lines) {
		ls.atEnd = true
		ls.text, ls.raw = "", ""
		return nil
	}
	return ls.resolve()
}
