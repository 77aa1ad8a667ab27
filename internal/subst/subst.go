// Package subst implements Fortiel's substitution engine: the passes that
// turn one already-evaluated line of ordinary source text into its
// preprocessed form by splicing in scope-relative expression results. It is
// applied to every internal/ast.LineList line the executor emits.
package subst

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/fortiel-lang/fortiel/internal/expr"
	"github.com/fortiel-lang/fortiel/internal/value"
)

var (
	// reInlineLoop matches the full range-loop form `@{EXPR}@` (rangeless,
	// repeating over the ambient `__INDEX__`) or `@{EXPR@|@RANGES}@` (an
	// explicit 2/3-int tuple ranges expression). `^` is accepted alongside
	// `@` as a historical alternate marker.
	reInlineLoop = regexp.MustCompile(`(,\s*)?[@^]\{(.*?)(?:[@^]\|[@^](.*?))?\}[@^](\s*,)?`)
	// reInlineShortLoop matches the short loop forms `@:` and `@NAME`, via
	// the same repeat-and-join machinery as reInlineLoop.
	reInlineShortLoop = regexp.MustCompile(`(,\s*)?[@^](:|\w+)(\s*,)?`)
	// reExprSpan matches the full expression-substitution token `${EXPR}$`.
	reExprSpan = regexp.MustCompile(`\$\{(.+?)\}\$`)
	// reName matches the short name-substitution forms `$NAME`/`@NAME`.
	reName = regexp.MustCompile(`[$@]\s*(\w+)\b`)
	// reAugmentedAssign matches a plain Fortran `LHS += RHS` / `LHS -= RHS`
	// line, rewritten textually (not evaluated) into `LHS = LHS + RHS` /
	// `LHS = LHS - RHS`. No sigil is required on LHS.
	reAugmentedAssign = regexp.MustCompile(`^(\s*)(\S.*?)\s*([+-])=\s*(.+?)\s*$`)
)

// Line applies the substitution engine to one line of source text against
// scope, returning the preprocessed text. Comment-only lines pass through
// verbatim, except for an OpenMP/OpenACC pragma sentinel (`!$...`), which
// still carries Fortiel variables in generated code (thread counts, array
// extents) and gets its name substitutions resolved.
func Line(text string, scope expr.Scope) (string, error) {
	trimmed := strings.TrimSpace(text)
	if strings.HasPrefix(trimmed, "!") && !strings.HasPrefix(trimmed, "!$") {
		return text, nil
	}

	out := text

	out, err := substInlineLoop(out, reInlineLoop, scope)
	if err != nil {
		return "", err
	}
	out, err = substInlineLoop(out, reInlineShortLoop, scope)
	if err != nil {
		return "", err
	}

	out, err = substExprSpan(out, scope)
	if err != nil {
		return "", err
	}

	lowerTrimmed := strings.ToLower(strings.TrimSpace(out))
	if strings.HasPrefix(lowerTrimmed, "!$") {
		cut := strings.Index(out, "!$")
		prefix, rest := out[:cut+2], out[cut+2:]
		rest, err = substName(rest, scope)
		if err != nil {
			return "", err
		}
		out = prefix + rest
	} else {
		out, err = substName(out, scope)
		if err != nil {
			return "", err
		}
	}

	out = applyAugmentedAssign(out)
	return out, nil
}

// substInlineLoop runs the range-loop substitution (full or short form,
// selected by re) once over text, recursively re-running the whole Line
// pipeline over each substituted fragment the way the original does.
func substInlineLoop(text string, re *regexp.Regexp, scope expr.Scope) (string, error) {
	var outerErr error
	out := re.ReplaceAllStringFunc(text, func(m string) string {
		if outerErr != nil {
			return m
		}
		groups := re.FindStringSubmatch(m)
		commaBefore, exprText, rangesText, commaAfter := groups[1], groups[2], "", groups[len(groups)-1]
		hasRanges := false
		if len(groups) == 5 {
			rangesText = groups[3]
			hasRanges = rangesText != "" || strings.Contains(m, "|")
		}
		sub, err := evalInlineLoop(exprText, rangesText, hasRanges, commaBefore, commaAfter, scope)
		if err != nil {
			outerErr = err
			return m
		}
		recursed, err := Line(sub, scope)
		if err != nil {
			outerErr = err
			return m
		}
		return recursed
	})
	if outerErr != nil {
		return "", outerErr
	}
	return out, nil
}

// evalInlineLoop implements the inline range-loop substitution: the
// repetition count comes from an explicit ranges expression if one was
// given, else from the ambient
// `__INDEX__` (1 up to its current value, clamped non-negative) — a runtime
// error if `__INDEX__` is unset. `$$` inside the expression text is replaced
// with each iteration's number; the results are comma-joined. An empty join
// collapses to a single comma only when both flanking commas were present
// (avoiding a dangling double comma), else to nothing.
func evalInlineLoop(exprText, rangesText string, hasRanges bool, commaBefore, commaAfter string, scope expr.Scope) (string, error) {
	var start, stop, step int64
	if hasRanges {
		var err error
		start, stop, step, err = evalRanges(rangesText, scope)
		if err != nil {
			return "", err
		}
	} else {
		idx, ok := scope.Lookup("__INDEX__")
		if !ok {
			return "", fmt.Errorf("`@{..}@` rangeless substitution outside of the `do` loop body")
		}
		if !idx.IsNumeric() {
			return "", fmt.Errorf("`__INDEX__` is not numeric")
		}
		start, step = 1, 1
		stop = int64(idx.AsFloat())
		if stop < 0 {
			stop = 0
		}
	}

	var parts []string
	for i := start; (step > 0 && i <= stop) || (step < 0 && i >= stop); i += step {
		parts = append(parts, strings.ReplaceAll(exprText, "$$", strconv.FormatInt(i, 10)))
	}
	joined := strings.Join(parts, ",")
	if joined != "" {
		if commaBefore != "" {
			joined = commaBefore + joined
		}
		if commaAfter != "" {
			joined += commaAfter
		}
		return joined, nil
	}
	if commaBefore != "" && commaAfter != "" {
		return ",", nil
	}
	return "", nil
}

// evalRanges evaluates exprText as a single expression and type-checks it as
// a 2- or 3-element tuple of integers, the same rule `do` applies to its own
// ranges expression (internal/exec.evalRanges), returning (start, stop,
// step) with step defaulting to 1.
func evalRanges(exprText string, scope expr.Scope) (int64, int64, int64, error) {
	v, err := evalExpr(exprText, scope)
	if err != nil {
		return 0, 0, 0, err
	}
	if v.Kind != value.Tuple || len(v.Tuple) < 2 || len(v.Tuple) > 3 {
		return 0, 0, 0, fmt.Errorf("a tuple of two or three integers is expected, got `%s`", exprText)
	}
	for _, elem := range v.Tuple {
		if elem.Kind != value.Int {
			return 0, 0, 0, fmt.Errorf("a tuple of two or three integers is expected, got `%s`", exprText)
		}
	}
	start, stop := v.Tuple[0].Int, v.Tuple[1].Int
	step := int64(1)
	if len(v.Tuple) == 3 {
		step = v.Tuple[2].Int
	}
	if step == 0 {
		return 0, 0, 0, fmt.Errorf("ranges step must not be zero")
	}
	return start, stop, step, nil
}

// substExprSpan implements full expression substitution: `${EXPR}$`
// substitutes the stringified result of evaluating EXPR, recursively re-run
// through Line.
func substExprSpan(text string, scope expr.Scope) (string, error) {
	var outerErr error
	out := reExprSpan.ReplaceAllStringFunc(text, func(m string) string {
		if outerErr != nil {
			return m
		}
		groups := reExprSpan.FindStringSubmatch(m)
		v, err := evalExpr(groups[1], scope)
		if err != nil {
			outerErr = err
			return m
		}
		recursed, err := Line(stringifyForSubst(v), scope)
		if err != nil {
			outerErr = err
			return m
		}
		return recursed
	})
	if outerErr != nil {
		return "", outerErr
	}
	return out, nil
}

// substName implements short name substitution: `$NAME` or `@NAME`
// substitutes the stringified value of NAME looked up in scope; an
// unresolved name is a runtime error.
func substName(text string, scope expr.Scope) (string, error) {
	var outerErr error
	out := reName.ReplaceAllStringFunc(text, func(m string) string {
		if outerErr != nil {
			return m
		}
		groups := reName.FindStringSubmatch(m)
		v, ok := scope.Lookup(groups[1])
		if !ok {
			outerErr = fmt.Errorf("name %q is not defined", groups[1])
			return m
		}
		recursed, err := Line(stringifyForSubst(v), scope)
		if err != nil {
			outerErr = err
			return m
		}
		return recursed
	})
	if outerErr != nil {
		return "", outerErr
	}
	return out, nil
}

// stringifyForSubst renders v the way passes 2 and 3 splice it into source
// text, wrapping a negative int/float result in parentheses so it can't be
// misread as a binary operator by the surrounding Fortran expression.
func stringifyForSubst(v value.Value) string {
	if (v.Kind == value.Int && v.Int < 0) || (v.Kind == value.Float && v.Float < 0) {
		return "(" + v.String() + ")"
	}
	return v.String()
}

func evalExpr(text string, scope expr.Scope) (value.Value, error) {
	n, err := expr.Parse(text)
	if err != nil {
		return value.Value{}, fmt.Errorf("invalid expression %q: %w", text, err)
	}
	return expr.Eval(n, scope)
}

// applyAugmentedAssign is a pure textual rewrite of a `LHS += RHS` /
// `LHS -= RHS` Fortran statement into `LHS = LHS + RHS` / `LHS = LHS - RHS`,
// applied after every other substitution has already run. It does not
// evaluate LHS or RHS against the scope at all.
func applyAugmentedAssign(text string) string {
	m := reAugmentedAssign.FindStringSubmatch(text)
	if m == nil {
		return text
	}
	indent, lhs, op, rhs := m[1], m[2], m[3], m[4]
	return fmt.Sprintf("%s%s = %s %s %s", indent, lhs, lhs, op, rhs)
}
