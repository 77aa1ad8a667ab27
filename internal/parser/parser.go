// Package parser turns a source file's lines into a Fortiel directive tree
// (internal/ast.Tree). It is a recursive-descent parser driven by
// internal/lexer.LineSource: each logical line is classified as an ordinary
// code line, a directive line (`#@ ...` / `#$ ...`), or a macro call segment
// (`@Name(...)`), and directive keywords recurse into nested node lists the
// way nested conditional branches recurse into their own nested node lists.
package parser

import (
	"path/filepath"
	"regexp"
	"strings"

	"github.com/fortiel-lang/fortiel/internal/ast"
	"github.com/fortiel-lang/fortiel/internal/fterr"
	"github.com/fortiel-lang/fortiel/internal/lexer"
)

var (
	reDirective = regexp.MustCompile(`(?i)^\s*#[@$]\s*(\S+)(?:\s+(.*?))?\s*$`)
	// reCall matches any `@Name argument` use-site: a macro invocation, a
	// section label, or an `@end<name>` terminator alike, since which one it
	// is depends on which macro is open when the sibling list is resolved
	// (internal/exec's resolveCallSegment). No parentheses are required: the
	// argument is simply everything up to an optional trailing `!comment`.
	// The name may carry an `end`/`else` prefix (with optional internal
	// whitespace), folded into the captured name text as-is; callers
	// normalize it with makeName before comparing.
	reCall = regexp.MustCompile(`(?i)^(\s*)@((?:end\s*|else\s*)?[A-Za-z]\w*)\b([^!]*?)\s*(?:!.*)?$`)
)

// makeName normalizes a macro, section, or call name for case- and
// whitespace-insensitive comparison: strip all whitespace, lowercase.
func makeName(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), ""))
}

// builtinHeaders maps a preprocessed file's extension to a header that is
// implicitly `use`d before any of the file's own directives run, seeding
// OpenMP/Fortiel runtime helpers for free-form Fortran sources.
var builtinHeaders = map[string]string{
	".f90": "fortiel/syntax.fd",
	".f03": "fortiel/syntax.fd",
	".f08": "fortiel/syntax.fd",
}

type parser struct {
	file string
	src  *lexer.LineSource
}

// Parse parses the given file's lines into a directive tree.
func Parse(filePath string, lines []string) (*ast.Tree, error) {
	src, err := lexer.New(filePath, lines)
	if err != nil {
		return nil, err
	}
	p := &parser{file: filePath, src: src}
	nodes, stop, err := p.parseNodes(nil)
	if err != nil {
		return nil, err
	}
	if stop != "" {
		return nil, fterr.NewSyntax(p.file, p.src.Line(), "unexpected `%s` with no matching opening directive", stop)
	}
	if header, ok := builtinHeaders[strings.ToLower(filepath.Ext(filePath))]; ok {
		use := ast.NewUse(ast.Origin{File: filePath, Line: 0}, header)
		nodes = append([]ast.Node{use}, nodes...)
	}
	return &ast.Tree{Path: filePath, Nodes: nodes}, nil
}

// stopSet names the terminator keywords that end the current nesting level;
// parseNodes returns as soon as it sees one of them (without consuming it
// past recognizing it, since callers like parseIf need to see which
// terminator fired to decide whether to keep chaining).
type stopSet map[string]bool

func (p *parser) origin() ast.Origin {
	return ast.Origin{File: p.file, Line: p.src.Line()}
}

// parseNodes consumes logical lines until EOF or a keyword in stop is seen,
// returning the parsed nodes and the keyword that stopped parsing ("" at
// EOF). Every `@Name argument` line becomes a single CallSegment node,
// uniformly: nothing at parse time distinguishes a macro invocation from a
// section label or an `@end<name>` terminator. That split happens lazily,
// when internal/exec resolves a sibling list into Call/CallSection nodes.
func (p *parser) parseNodes(stop stopSet) ([]ast.Node, string, error) {
	var nodes []ast.Node
	var plainRun []string
	plainOrigin := p.origin()

	flushPlain := func() {
		if len(plainRun) > 0 {
			nodes = append(nodes, ast.NewLineList(plainOrigin, plainRun))
			plainRun = nil
		}
	}

	for {
		text, ok := p.src.Peek()
		if !ok {
			flushPlain()
			return nodes, "", nil
		}

		if m := reDirective.FindStringSubmatch(text); m != nil {
			keyword, rest := classifyDirective(m[1], m[2])
			if stop != nil && stop[keyword] {
				flushPlain()
				return nodes, keyword, nil
			}
			flushPlain()
			node, err := p.parseDirective(keyword, rest)
			if err != nil {
				return nil, "", err
			}
			if node != nil {
				nodes = append(nodes, node)
			}
			plainOrigin = p.origin()
			continue
		}

		if m := reCall.FindStringSubmatch(text); m != nil {
			flushPlain()
			origin := p.origin()
			if err := p.advanceDirective(); err != nil {
				return nil, "", err
			}
			nodes = append(nodes, ast.NewCallSegment(origin, m[2], strings.TrimSpace(m[3]), m[1]))
			plainOrigin = p.origin()
			continue
		}

		if len(plainRun) == 0 {
			plainOrigin = p.origin()
		}
		plainRun = append(plainRun, p.src.Raw())
		if err := p.src.Advance(); err != nil {
			return nil, "", err
		}
	}
}

// advanceDirective consumes the current directive line (already classified
// by the caller) and moves to the next logical line.
func (p *parser) advanceDirective() error {
	return p.src.Advance()
}

// classifyDirective folds a two-word terminator ("end if", "end do", "end
// for", "end macro") into a single lowercase keyword ("endif", "enddo",
// "endfor", "endmacro") so the rest of the parser can treat terminators as
// ordinary one-word keywords, while still accepting the one-word spelling
// ("endif") directly. "else if" and "elseif" fold into "elif".
func classifyDirective(first, rest string) (string, string) {
	word := strings.ToLower(first)
	if word == "elseif" {
		return "elif", rest
	}
	if word == "else" {
		if second, tail, _ := strings.Cut(strings.TrimSpace(rest), " "); strings.EqualFold(second, "if") {
			return "elif", strings.TrimSpace(tail)
		}
	}
	if word == "end" {
		rest = strings.TrimSpace(rest)
		second, tail, _ := strings.Cut(rest, " ")
		return "end" + strings.ToLower(second), strings.TrimSpace(tail)
	}
	return word, rest
}

func splitArgs(s string) []string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	parts := strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ' ' || r == '\t' })
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
