package exec

import (
	"regexp"
	"strings"

	"github.com/fortiel-lang/fortiel/internal/ast"
	"github.com/fortiel-lang/fortiel/internal/fterr"
	"github.com/fortiel-lang/fortiel/internal/value"
)

// makeName normalizes a macro, section, or call name for case- and
// whitespace-insensitive comparison: strip all whitespace, lowercase.
func makeName(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), ""))
}

// resolveCalls turns a flat sibling list's CallSegment nodes into resolved
// Call nodes, recursively: a CallSegment whose macro is a construct absorbs
// the siblings that follow it (nested calls resolved first, section labels
// turned into CallSection nodes matched against the macro's own section
// names, everything else captured) up to its own `@end<name>` terminator.
// It returns a new slice rather than mutating nodes in place.
func resolveCalls(file string, nodes []ast.Node, macros map[string]*ast.Macro) ([]ast.Node, error) {
	out := make([]ast.Node, 0, len(nodes))
	i := 0
	for i < len(nodes) {
		seg, ok := nodes[i].(*ast.CallSegment)
		if !ok {
			out = append(out, nodes[i])
			i++
			continue
		}
		call, consumed, err := resolveCallSegment(file, seg, nodes[i+1:], macros)
		if err != nil {
			return nil, err
		}
		out = append(out, call)
		i += 1 + consumed
	}
	return out, nil
}

// resolveCallSegment resolves one CallSegment against the macro it names,
// consuming as many of the following siblings (rest) as its construct needs.
// It returns the resolved Call and how many elements of rest were consumed.
func resolveCallSegment(file string, seg *ast.CallSegment, rest []ast.Node, macros map[string]*ast.Macro) (*ast.Call, int, error) {
	macro, ok := macros[makeName(seg.Name)]
	if !ok {
		return nil, 0, fterr.NewRuntime(file, seg.Origin().Line, "unknown macro `%s`", seg.Name)
	}
	call := ast.NewCall(seg.Origin(), seg.Name, seg.Args, seg.Indent)
	if !macro.IsConstruct() {
		return call, 0, nil
	}

	endName := "end" + makeName(seg.Name)
	appendCaptured := func(n ast.Node) {
		if len(call.CallSections) == 0 {
			call.Captured = append(call.Captured, n)
			return
		}
		last := call.CallSections[len(call.CallSections)-1]
		last.Captured = append(last.Captured, n)
	}

	consumed := 0
	for consumed < len(rest) {
		next := rest[consumed]
		if nseg, ok := next.(*ast.CallSegment); ok {
			name := makeName(nseg.Name)
			if name == endName {
				return call, consumed + 1, nil
			}
			if sec := sectionNamed(macro, name); sec != nil {
				call.CallSections = append(call.CallSections, ast.NewCallSection(nseg.Origin(), nseg.Name, nseg.Args, nil))
				consumed++
				continue
			}
			nestedCall, nestedConsumed, err := resolveCallSegment(file, nseg, rest[consumed+1:], macros)
			if err != nil {
				return nil, 0, err
			}
			appendCaptured(nestedCall)
			consumed += 1 + nestedConsumed
			continue
		}
		appendCaptured(next)
		consumed++
	}
	return nil, 0, fterr.NewRuntime(file, seg.Origin().Line, "expected `@end%s` call segment", seg.Name)
}

func sectionNamed(macro *ast.Macro, name string) *ast.Section {
	for _, sec := range macro.Sections {
		if makeName(sec.Name) == name {
			return sec
		}
	}
	return nil
}

// execCall dispatches a resolved Call: match its argument against the
// macro's own patterns, execute the matching body indented to the call
// site; for a construct macro, run the captured nodes un-indented, then walk
// the call's CallSections against a forward-only cursor over the macro's own
// Sections, and finally run the finally body indented.
func (e *Evaluator) execCall(file string, call *ast.Call, sink Sink) error {
	macro, ok := e.Macros[makeName(call.Name)]
	if !ok {
		return fterr.NewRuntime(file, call.Origin().Line, "unknown macro `%s`", call.Name)
	}

	bodySink := sink
	if call.Indent != "" {
		bodySink = IndentSink{Inner: sink, Prefix: call.Indent}
	}

	if err := e.matchAndRun(file, call.Name, macro.Patterns, call.Args, call.Origin().Line, bodySink); err != nil {
		return err
	}

	if !macro.IsConstruct() {
		return nil
	}

	if err := e.execNodes(file, call.Captured, sink); err != nil {
		return err
	}

	cursor := 0
	for _, cs := range call.CallSections {
		name := makeName(cs.Name)
		for cursor < len(macro.Sections) && makeName(macro.Sections[cursor].Name) != name {
			cursor++
		}
		if cursor >= len(macro.Sections) {
			return fterr.NewRuntime(file, cs.Origin().Line, "unexpected call section `%s`", cs.Name)
		}
		section := macro.Sections[cursor]
		if err := e.matchAndRun(file, section.Name, section.Patterns, cs.Args, cs.Origin().Line, bodySink); err != nil {
			return err
		}
		if err := e.execNodes(file, cs.Captured, sink); err != nil {
			return err
		}
		if section.Once {
			cursor++
		}
	}

	return e.execNodes(file, macro.Finally, bodySink)
}

// matchAndRun tries patterns in order against argText, executing the first
// match's body (with its named capture groups merged into the evaluator's
// scope) through sink. It is used both for a call's own argument against its
// macro's patterns and for a call section's argument against its matching
// section's patterns.
func (e *Evaluator) matchAndRun(file, owner string, patterns []*ast.Pattern, argText string, line int, sink Sink) error {
	for _, pat := range patterns {
		re, err := compilePattern(pat.Regex)
		if err != nil {
			return fterr.NewRuntime(file, pat.Origin().Line, "invalid pattern `%s`: %s", pat.Regex, err)
		}
		m := re.FindStringSubmatch(argText)
		if m == nil {
			continue
		}

		// Captures are not popped: they stay in scope after the body returns.
		for idx, name := range re.SubexpNames() {
			if name != "" && idx < len(m) {
				e.Scope.Set(name, value.OfStr(m[idx]))
			}
		}
		return e.execNodes(file, pat.Body, sink)
	}
	return fterr.NewRuntime(file, line, "no pattern of `%s` matches `%s`", owner, argText)
}

// compilePattern compiles a macro pattern regex case-insensitively and
// multi-line, the way the original directive matching does, stripping
// unescaped whitespace and `#`-to-end-of-line comments outside character
// classes the way Python's verbose mode would, since Go's RE2 engine has no
// equivalent flag. The result is anchored to match only from the start of
// the argument text (never from an arbitrary offset), mirroring Python's
// re.match against an unanchored end, the way a macro author's own `$` can
// still anchor the end explicitly.
func compilePattern(src string) (*regexp.Regexp, error) {
	var sb strings.Builder
	inClass, escaped, inComment := false, false, false
	for _, r := range src {
		switch {
		case inComment:
			inComment = r != '\n'
		case escaped:
			escaped = false
			sb.WriteRune(r)
		case r == '\\':
			escaped = true
			sb.WriteRune(r)
		case !inClass && r == '#':
			inComment = true
		case r == '[':
			inClass = true
			sb.WriteRune(r)
		case r == ']':
			inClass = false
			sb.WriteRune(r)
		case !inClass && (r == ' ' || r == '\t' || r == '\n'):
			// skip: verbose-mode whitespace is insignificant outside a class
		default:
			sb.WriteRune(r)
		}
	}
	return regexp.Compile(`(?i)(?m)\A(?:` + sb.String() + `)`)
}
