package parser

import (
	"regexp"
	"strings"

	"github.com/fortiel-lang/fortiel/internal/ast"
	"github.com/fortiel-lang/fortiel/internal/fterr"
)

// reSectionHead parses a `section [once] NAME [pattern]` head line, the way
// a macro's own head line + pattern directives are parsed, but folded into
// one line since a section name is mandatory and short.
var reSectionHead = regexp.MustCompile(`(?i)^\s*(once\s+)?([A-Za-z_]\w*)(?:\s+(.*))?$`)

// parseDirective dispatches on a directive keyword already stripped of its
// `#@`/`#$` marker. The current logical line still needs to be consumed by
// whichever branch runs; none of the sub-parsers should call p.src.Advance()
// before reading what they need from it.
func (p *parser) parseDirective(keyword, rest string) (ast.Node, error) {
	origin := p.origin()
	switch keyword {
	case "use":
		return p.parseUse(origin, rest)
	case "let":
		return p.parseLet(origin, rest)
	case "del":
		return p.parseDel(origin, rest)
	case "if":
		return p.parseIf(origin, rest)
	case "do":
		return p.parseDo(origin, rest)
	case "for":
		return p.parseFor(origin, rest)
	case "macro":
		return p.parseMacro(origin, rest)
	case "elif", "else", "endif", "enddo", "endfor", "endmacro", "finally", "pattern", "section":
		return nil, fterr.NewSyntax(p.file, origin.Line, "misplaced `%s` directive", keyword)
	default:
		return nil, fterr.NewSyntax(p.file, origin.Line, "unknown directive `%s`", keyword)
	}
}

func (p *parser) parseUse(origin ast.Origin, rest string) (ast.Node, error) {
	if err := p.advanceDirective(); err != nil {
		return nil, err
	}
	path := strings.Trim(strings.TrimSpace(rest), `"'`)
	if path == "" {
		return nil, fterr.NewSyntax(p.file, origin.Line, "`use` requires a file path")
	}
	return ast.NewUse(origin, path), nil
}

func (p *parser) parseLet(origin ast.Origin, rest string) (ast.Node, error) {
	if err := p.advanceDirective(); err != nil {
		return nil, err
	}
	eq := strings.Index(rest, "=")
	if eq < 0 {
		return nil, fterr.NewSyntax(p.file, origin.Line, "`let` requires `name = expression`")
	}
	head := strings.TrimSpace(rest[:eq])
	exprText := strings.TrimSpace(rest[eq+1:])
	name := head
	var params []string
	if lp := strings.Index(head, "("); lp >= 0 {
		if !strings.HasSuffix(head, ")") {
			return nil, fterr.NewSyntax(p.file, origin.Line, "unbalanced parameter list in `let`")
		}
		name = strings.TrimSpace(head[:lp])
		params = splitArgs(head[lp+1 : len(head)-1])
		seen := map[string]bool{}
		for _, param := range params {
			bare := strings.TrimLeft(param, "*")
			if seen[bare] {
				return nil, fterr.NewSyntax(p.file, origin.Line, "duplicate argument `%s` in `let`", bare)
			}
			seen[bare] = true
		}
	}
	if name == "" {
		return nil, fterr.NewSyntax(p.file, origin.Line, "`let` requires a name")
	}
	return ast.NewLet(origin, name, params, exprText), nil
}

func (p *parser) parseDel(origin ast.Origin, rest string) (ast.Node, error) {
	if err := p.advanceDirective(); err != nil {
		return nil, err
	}
	names := splitArgs(rest)
	if len(names) == 0 {
		return nil, fterr.NewSyntax(p.file, origin.Line, "`del` requires at least one name")
	}
	return ast.NewDel(origin, names), nil
}

func (p *parser) parseIf(origin ast.Origin, rest string) (ast.Node, error) {
	if err := p.advanceDirective(); err != nil {
		return nil, err
	}
	stop := stopSet{"elif": true, "else": true, "endif": true}
	var branches []ast.ElifBranch
	cond := rest
	for {
		branchOrigin := p.origin()
		body, kw, err := p.parseNodes(stop)
		if err != nil {
			return nil, err
		}
		branches = append(branches, ast.ElifBranch{Origin: branchOrigin, Condition: cond, Body: body})
		switch kw {
		case "elif":
			_, elifRest := p.currentDirectiveParts()
			cond = elifRest
			if err := p.advanceDirective(); err != nil {
				return nil, err
			}
			continue
		case "else":
			if err := p.advanceDirective(); err != nil {
				return nil, err
			}
			elseOrigin := p.origin()
			body, kw2, err := p.parseNodes(stopSet{"endif": true})
			if err != nil {
				return nil, err
			}
			branches = append(branches, ast.ElifBranch{Origin: elseOrigin, Condition: "", Body: body})
			if kw2 != "endif" {
				return nil, fterr.NewSyntax(p.file, p.src.Line(), "`if` is missing its `end if`")
			}
			if err := p.advanceDirective(); err != nil {
				return nil, err
			}
			return ast.NewIf(origin, branches), nil
		case "endif":
			if err := p.advanceDirective(); err != nil {
				return nil, err
			}
			return ast.NewIf(origin, branches), nil
		default:
			return nil, fterr.NewSyntax(p.file, p.src.Line(), "`if` is missing its `end if`")
		}
	}
}

// currentDirectiveParts re-splits the directive line the source is currently
// sitting on, used after parseNodes stops at a keyword whose argument text
// (e.g. an `elif` condition) the caller still needs.
func (p *parser) currentDirectiveParts() (string, string) {
	text, _ := p.src.Peek()
	m := reDirective.FindStringSubmatch(text)
	if m == nil {
		return "", ""
	}
	return classifyDirective(m[1], m[2])
}

func (p *parser) parseDo(origin ast.Origin, rest string) (ast.Node, error) {
	if err := p.advanceDirective(); err != nil {
		return nil, err
	}
	eq := strings.Index(rest, "=")
	if eq < 0 {
		return nil, fterr.NewSyntax(p.file, origin.Line, "`do` requires `name = ranges`")
	}
	name := strings.TrimSpace(rest[:eq])
	ranges := strings.TrimSpace(rest[eq+1:])
	if name == "" || ranges == "" {
		return nil, fterr.NewSyntax(p.file, origin.Line, "`do` requires `name = ranges`")
	}
	body, kw, err := p.parseNodes(stopSet{"enddo": true})
	if err != nil {
		return nil, err
	}
	if kw != "enddo" {
		return nil, fterr.NewSyntax(p.file, p.src.Line(), "`do` is missing its `end do`")
	}
	if err := p.advanceDirective(); err != nil {
		return nil, err
	}
	return ast.NewDo(origin, name, ranges, body), nil
}

func (p *parser) parseFor(origin ast.Origin, rest string) (ast.Node, error) {
	if err := p.advanceDirective(); err != nil {
		return nil, err
	}
	m := reForHead.FindStringSubmatch(rest)
	if m == nil {
		return nil, fterr.NewSyntax(p.file, origin.Line, "`for` requires `name[, name...] in expression`")
	}
	vars := splitOnComma(m[1])
	iterExpr := strings.TrimSpace(m[2])
	body, kw, err := p.parseNodes(stopSet{"endfor": true})
	if err != nil {
		return nil, err
	}
	if kw != "endfor" {
		return nil, fterr.NewSyntax(p.file, p.src.Line(), "`for` is missing its `end for`")
	}
	if err := p.advanceDirective(); err != nil {
		return nil, err
	}
	return ast.NewFor(origin, vars, iterExpr, body), nil
}

var reForHead = regexp.MustCompile(`(?i)^\s*([A-Za-z_]\w*(?:\s*,\s*[A-Za-z_]\w*)*)\s+in\s+(.*)$`)

// macroStopWords always end a pattern's or section's body: the next
// `pattern`, the next `section`, the macro's `finally`, or its `end macro`.
var macroStopWords = stopSet{"pattern": true, "section": true, "finally": true, "endmacro": true}

func (p *parser) parseMacro(origin ast.Origin, rest string) (ast.Node, error) {
	if err := p.advanceDirective(); err != nil {
		return nil, err
	}
	name := strings.TrimSpace(rest)
	if name == "" {
		return nil, fterr.NewSyntax(p.file, origin.Line, "`macro` requires a name")
	}
	inline := ""
	if i := strings.IndexAny(name, " \t"); i >= 0 {
		name, inline = name[:i], strings.TrimSpace(name[i+1:])
	}

	patterns, err := p.parsePatternListWithInline(name, inline)
	if err != nil {
		return nil, err
	}

	var sections []*ast.Section
	seen := map[string]bool{}
	for {
		keyword, secRest := p.currentDirectiveParts()
		if keyword != "section" {
			break
		}
		secOrigin := p.origin()
		if err := p.advanceDirective(); err != nil {
			return nil, err
		}
		m := reSectionHead.FindStringSubmatch(secRest)
		if m == nil {
			return nil, fterr.NewSyntax(p.file, secOrigin.Line, "`section` requires a name")
		}
		once := m[1] != ""
		secName := m[2]
		inline := strings.TrimSpace(m[3])
		normalized := makeName(secName)
		if normalized == makeName(name) {
			return nil, fterr.NewSyntax(p.file, secOrigin.Line, "section `%s` must not repeat the macro's own name", secName)
		}
		if seen[normalized] {
			return nil, fterr.NewSyntax(p.file, secOrigin.Line, "section `%s` is defined more than once", secName)
		}
		seen[normalized] = true

		secPatterns, err := p.parsePatternListWithInline(secName, inline)
		if err != nil {
			return nil, err
		}
		sections = append(sections, ast.NewSection(secOrigin, secName, once, secPatterns))
	}

	var finally []ast.Node
	if keyword, _ := p.currentDirectiveParts(); keyword == "finally" {
		if err := p.advanceDirective(); err != nil {
			return nil, err
		}
		body, kw, err := p.parseNodes(stopSet{"endmacro": true})
		if err != nil {
			return nil, err
		}
		if kw != "endmacro" {
			return nil, fterr.NewSyntax(p.file, p.src.Line(), "`macro` is missing its `end macro`")
		}
		finally = body
	} else if keyword, _ := p.currentDirectiveParts(); keyword != "endmacro" {
		return nil, fterr.NewSyntax(p.file, p.src.Line(), "`macro` is missing its `end macro`")
	}
	if err := p.advanceDirective(); err != nil {
		return nil, err
	}
	return ast.NewMacro(origin, name, patterns, sections, finally), nil
}

// parsePatternList parses the `pattern <regex> ... body ...` cases that
// follow a `macro NAME` head line, requiring at least one.
func (p *parser) parsePatternList(owner string) ([]*ast.Pattern, error) {
	return p.parsePatternListWithInline(owner, "")
}

// parsePatternListWithInline parses a run of `pattern` cases, the same way
// for a macro's own top-level patterns and for a section's patterns. If
// inline is non-empty, it is itself the regex for a first implicit pattern
// case (the `section NAME PATTERN` or `macro NAME PATTERN` inline form)
// whose body is read directly instead of via an explicit `pattern`
// directive; any `pattern` cases that follow are added after it.
func (p *parser) parsePatternListWithInline(owner, inline string) ([]*ast.Pattern, error) {
	var patterns []*ast.Pattern
	if inline != "" {
		origin := p.origin()
		body, _, err := p.parseNodes(macroStopWords)
		if err != nil {
			return nil, err
		}
		patterns = append(patterns, ast.NewPattern(origin, inline, body))
	}
	for {
		keyword, patRest := p.currentDirectiveParts()
		if keyword != "pattern" {
			break
		}
		patOrigin := p.origin()
		if err := p.advanceDirective(); err != nil {
			return nil, err
		}
		regex := strings.TrimSpace(patRest)
		if regex == "" {
			return nil, fterr.NewSyntax(p.file, patOrigin.Line, "`pattern` requires a regular expression")
		}
		body, _, err := p.parseNodes(macroStopWords)
		if err != nil {
			return nil, err
		}
		patterns = append(patterns, ast.NewPattern(patOrigin, regex, body))
	}
	if len(patterns) == 0 {
		return nil, fterr.NewSyntax(p.file, p.origin().Line, "`%s` has no `pattern` cases", owner)
	}
	return patterns, nil
}

func splitOnComma(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
