// Package exec is the Fortiel tree executor: it walks an internal/ast.Tree,
// maintains the scope and macro tables that `let`, `do`, `for`, and macro
// calls mutate, resolves `use` imports, and writes preprocessed text to a
// Sink by running internal/subst over every ordinary source line.
package exec

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/fortiel-lang/fortiel/internal/ast"
	"github.com/fortiel-lang/fortiel/internal/expr"
	"github.com/fortiel-lang/fortiel/internal/fterr"
	"github.com/fortiel-lang/fortiel/internal/parser"
	"github.com/fortiel-lang/fortiel/internal/subst"
	"github.com/fortiel-lang/fortiel/internal/value"
)

// Evaluator runs one preprocessing job: a single scope and macro table,
// shared by the root file and every file it transitively `use`s.
type Evaluator struct {
	Scope       Scope
	Macros      map[string]*ast.Macro
	Imported    map[string]struct{}
	IncludeDirs []string
	Marker      MarkerStyle

	// ReadFile abstracts file access so tests can supply an in-memory
	// filesystem; defaults to os.ReadFile-backed behavior in New.
	ReadFile func(path string) ([]byte, error)

	lastOrigin string // absolute path last emitted as a line marker
}

// New returns an Evaluator with an empty scope and macro table, ready to
// execute a root tree.
func New(includeDirs []string, marker MarkerStyle) *Evaluator {
	return &Evaluator{
		Scope:       NewScope(),
		Macros:      map[string]*ast.Macro{},
		Imported:    map[string]struct{}{},
		IncludeDirs: includeDirs,
		Marker:      marker,
		ReadFile:    os.ReadFile,
	}
}

// Execute runs tree's nodes, writing preprocessed output to sink.
func (e *Evaluator) Execute(tree *ast.Tree, sink Sink) error {
	abs, err := filepath.Abs(tree.Path)
	if err == nil {
		e.Imported[abs] = struct{}{}
	}
	if marker, ok := formatMarker(e.Marker, 1, tree.Path); ok {
		if err := sink.WriteLine(marker); err != nil {
			return err
		}
	}
	return e.execNodes(tree.Path, tree.Nodes, sink)
}

// execNodes walks a sibling list in order. A CallSegment is resolved against
// the macro table only when the walk reaches it, so a macro defined earlier
// in the same list is visible; siblings a construct call absorbs are skipped.
func (e *Evaluator) execNodes(file string, nodes []ast.Node, sink Sink) error {
	for i := 0; i < len(nodes); i++ {
		n := nodes[i]
		if seg, ok := n.(*ast.CallSegment); ok {
			call, consumed, err := resolveCallSegment(file, seg, nodes[i+1:], e.Macros)
			if err != nil {
				return err
			}
			n = call
			i += consumed
		}
		if err := e.execNode(file, n, sink); err != nil {
			return err
		}
	}
	return nil
}

func (e *Evaluator) execNode(file string, n ast.Node, sink Sink) error {
	switch n := n.(type) {
	case *ast.LineList:
		return e.execLineList(file, n, sink)
	case *ast.Use:
		return e.execUse(file, n, sink)
	case *ast.Let:
		return e.execLet(file, n)
	case *ast.Del:
		for _, name := range n.Names {
			if builtinNames[name] {
				return fterr.NewRuntime(file, n.Origin().Line, "builtin name `%s` cannot be deleted", name)
			}
			e.Scope.Delete(name)
		}
		return nil
	case *ast.If:
		return e.execIf(file, n, sink)
	case *ast.Do:
		return e.execDo(file, n, sink)
	case *ast.For:
		return e.execFor(file, n, sink)
	case *ast.Macro:
		name := makeName(n.Name)
		if _, exists := e.Macros[name]; exists {
			return fterr.NewRuntime(file, n.Origin().Line, "macro `%s` is already defined", n.Name)
		}
		e.Macros[name] = n
		return nil
	case *ast.Call:
		return e.execCall(file, n, sink)
	default:
		fterr.Panicf("executor has no handler for node type %T", n)
		return nil
	}
}

func (e *Evaluator) execLineList(file string, n *ast.LineList, sink Sink) error {
	if style, ok := formatMarker(e.Marker, n.Origin().Line, file); ok && e.lastOrigin != file {
		e.lastOrigin = file
		if err := sink.WriteLine(style); err != nil {
			return err
		}
	}
	for _, raw := range n.Lines {
		for _, physical := range strings.Split(raw, "\n") {
			out, err := subst.Line(physical, e.Scope)
			if err != nil {
				return fterr.NewRuntime(file, n.Origin().Line, "%s", err)
			}
			if err := sink.WriteLine(out); err != nil {
				return err
			}
		}
	}
	return nil
}

// builtinNames are reserved scope names that `let` and `del` may not touch.
var builtinNames = map[string]bool{
	"__INDEX__": true, "__FILE__": true, "__LINE__": true, "__DATE__": true, "__TIME__": true,
}

func (e *Evaluator) execLet(file string, n *ast.Let) error {
	if builtinNames[n.Name] {
		return fterr.NewRuntime(file, n.Origin().Line, "builtin name `%s` cannot be redefined", n.Name)
	}
	if n.Params != nil {
		e.Scope.Set(n.Name, value.OfFunc(&value.Func{Params: n.Params, Body: n.Expr, Scope: e.Scope}))
		return nil
	}
	v, err := e.eval(file, n.Origin().Line, n.Expr)
	if err != nil {
		return err
	}
	e.Scope.Set(n.Name, v)
	return nil
}

func (e *Evaluator) execIf(file string, n *ast.If, sink Sink) error {
	for _, branch := range n.Branches {
		if branch.Condition == "" {
			return e.execNodes(file, branch.Body, sink)
		}
		v, err := e.eval(file, branch.Origin.Line, branch.Condition)
		if err != nil {
			return err
		}
		if v.Truthy() {
			return e.execNodes(file, branch.Body, sink)
		}
	}
	return nil
}

// execDo evaluates the ranges expression once, as a whole: it must produce a
// 2- or 3-element all-integer tuple (start, stop[, step]), and the loop
// includes stop itself. While it runs, __INDEX__ tracks the current value of
// the loop index (restored to whatever it was before the loop, or deleted if
// it was unset); the index name itself is always deleted after the loop. A
// loop that runs zero times touches neither binding, matching the original's
// guard around its whole index-lifecycle block.
func (e *Evaluator) execDo(file string, n *ast.Do, sink Sink) error {
	start, stop, step, err := e.evalRanges(file, n.Origin().Line, n.Ranges)
	if err != nil {
		return err
	}
	if (step > 0 && start > stop) || (step < 0 && start < stop) {
		return nil
	}

	prevIndex, hadIndex := e.Scope.Lookup("__INDEX__")
	for i := start; (step > 0 && i <= stop) || (step < 0 && i >= stop); i += step {
		e.Scope.Set(n.Var, value.OfInt(i))
		e.Scope.Set("__INDEX__", value.OfInt(i))
		if err := e.execNodes(file, n.Body, sink); err != nil {
			return err
		}
	}
	if hadIndex {
		e.Scope.Set("__INDEX__", prevIndex)
	} else {
		e.Scope.Delete("__INDEX__")
	}
	e.Scope.Delete(n.Var)
	return nil
}

// evalRanges evaluates exprText as a single expression and type-checks the
// result as a 2- or 3-element tuple of integers, returning (start, stop,
// step), step defaulting to 1 when only two elements are given.
func (e *Evaluator) evalRanges(file string, line int, exprText string) (int64, int64, int64, error) {
	v, err := e.eval(file, line, exprText)
	if err != nil {
		return 0, 0, 0, err
	}
	if v.Kind != value.Tuple || len(v.Tuple) < 2 || len(v.Tuple) > 3 {
		return 0, 0, 0, fterr.NewRuntime(file, line, "a tuple of two or three integers inside the `do` directive ranges is expected, got `%s`", v.String())
	}
	for _, elem := range v.Tuple {
		if elem.Kind != value.Int {
			return 0, 0, 0, fterr.NewRuntime(file, line, "a tuple of two or three integers inside the `do` directive ranges is expected, got `%s`", v.String())
		}
	}
	start, stop := v.Tuple[0].Int, v.Tuple[1].Int
	step := int64(1)
	if len(v.Tuple) == 3 {
		step = v.Tuple[2].Int
	}
	if step == 0 {
		return 0, 0, 0, fterr.NewRuntime(file, line, "`do` step must not be zero")
	}
	return start, stop, step, nil
}

// execFor destructures each element of the iterable against n.Vars: a single
// name binds the whole element, multiple names zip against a tuple element's
// members (or, for a dict with exactly two names, the key and value). All of
// n.Vars are deleted after the loop, regardless of how many iterations ran.
// Unlike `do`, `for` never touches __INDEX__.
func (e *Evaluator) execFor(file string, n *ast.For, sink Sink) error {
	v, err := e.eval(file, n.Origin().Line, n.Expr)
	if err != nil {
		return err
	}

	run := func(elem value.Value) error {
		if len(n.Vars) == 1 {
			e.Scope.Set(n.Vars[0], elem)
		} else {
			if elem.Kind != value.Tuple {
				return fterr.NewRuntime(file, n.Origin().Line, "`for` with %d names requires tuple elements, got %s", len(n.Vars), elem.Kind)
			}
			for i, name := range n.Vars {
				if i >= len(elem.Tuple) {
					break
				}
				e.Scope.Set(name, elem.Tuple[i])
			}
		}
		return e.execNodes(file, n.Body, sink)
	}

	switch v.Kind {
	case value.Tuple:
		for _, elem := range v.Tuple {
			if err := run(elem); err != nil {
				return err
			}
		}
	case value.Dict:
		keys := make([]string, 0, len(v.Dict))
		for k := range v.Dict {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			var elem value.Value
			switch len(n.Vars) {
			case 1:
				elem = value.OfStr(k)
			case 2:
				elem = value.OfTuple([]value.Value{value.OfStr(k), v.Dict[k]})
			default:
				return fterr.NewRuntime(file, n.Origin().Line, "`for` over a dict requires 1 or 2 names, got %d", len(n.Vars))
			}
			if err := run(elem); err != nil {
				return err
			}
		}
	case value.Str:
		if len(n.Vars) != 1 {
			return fterr.NewRuntime(file, n.Origin().Line, "`for` over a string requires exactly one name, got %d", len(n.Vars))
		}
		for _, r := range v.Str {
			if err := run(value.OfStr(string(r))); err != nil {
				return err
			}
		}
	default:
		return fterr.NewRuntime(file, n.Origin().Line, "`for` requires an iterable value, got %s", v.Kind)
	}

	for _, name := range n.Vars {
		e.Scope.Delete(name)
	}
	return nil
}

func (e *Evaluator) execUse(file string, n *ast.Use, sink Sink) error {
	resolved, err := e.resolvePath(file, n.Path)
	if err != nil {
		return fterr.NewRuntime(file, n.Origin().Line, "cannot resolve `use %s`: %s", n.Path, err)
	}
	if _, done := e.Imported[resolved]; done {
		return nil
	}
	e.Imported[resolved] = struct{}{}

	data, err := e.ReadFile(resolved)
	if err != nil {
		return fterr.NewRuntime(file, n.Origin().Line, "cannot read %q: %s", resolved, err)
	}
	lines := strings.Split(string(data), "\n")
	tree, err := parser.Parse(resolved, lines)
	if err != nil {
		return err
	}

	if err := e.execNodes(resolved, tree.Nodes, NullSink{}); err != nil {
		return err
	}
	return nil
}

// resolvePath applies the search order: the path as given (absolute or
// relative to the working directory), each -I include directory, the
// directory the importing file lives in, and finally the directory of the
// running executable.
func (e *Evaluator) resolvePath(fromFile, path string) (string, error) {
	candidates := []string{path}
	for _, dir := range e.IncludeDirs {
		candidates = append(candidates, filepath.Join(dir, path))
	}
	candidates = append(candidates, filepath.Join(filepath.Dir(fromFile), path))
	if exe, err := os.Executable(); err == nil {
		candidates = append(candidates, filepath.Join(filepath.Dir(exe), path))
	}
	for _, c := range candidates {
		if _, err := os.Stat(c); err == nil {
			abs, err := filepath.Abs(c)
			if err != nil {
				return "", err
			}
			return abs, nil
		}
	}
	return "", fmt.Errorf("not found in any of %d candidate locations", len(candidates))
}

func (e *Evaluator) eval(file string, line int, exprText string) (value.Value, error) {
	n, err := expr.Parse(exprText)
	if err != nil {
		return value.Value{}, fterr.NewRuntime(file, line, "invalid expression %q: %s", exprText, err)
	}
	v, err := expr.Eval(n, e.Scope)
	if err != nil {
		return value.Value{}, fterr.NewRuntime(file, line, "in expression %q: %s", exprText, err)
	}
	return v, nil
}
