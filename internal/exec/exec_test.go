package exec_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fortiel-lang/fortiel/internal/exec"
	"github.com/fortiel-lang/fortiel/internal/parser"
)

func run(t *testing.T, path string, lines []string) string {
	t.Helper()
	tree, err := parser.Parse(path, lines)
	require.NoError(t, err)
	var sb strings.Builder
	ev := exec.New(nil, exec.MarkerNone)
	err = ev.Execute(tree, exec.WriterSink{W: &sb})
	require.NoError(t, err)
	return sb.String()
}

func runErr(t *testing.T, path string, lines []string) error {
	t.Helper()
	tree, err := parser.Parse(path, lines)
	require.NoError(t, err)
	var sb strings.Builder
	ev := exec.New(nil, exec.MarkerNone)
	return ev.Execute(tree, exec.WriterSink{W: &sb})
}

func TestLetAndExpressionSubstitution(t *testing.T) {
	out := run(t, "t.fpp", []string{
		"#@ let N = 3",
		"integer :: a(${N}$)",
	})
	assert.Equal(t, "integer :: a(3)\n", out)
}

func TestDoLoopIsInclusive(t *testing.T) {
	out := run(t, "t.fpp", []string{
		"#@ do i = (1, 3)",
		"x(${i}$) = 0",
		"#@ end do",
	})
	assert.Equal(t, "x(1) = 0\nx(2) = 0\nx(3) = 0\n", out)
}

func TestDoLoopAcceptsThreeElementStep(t *testing.T) {
	out := run(t, "t.fpp", []string{
		"#@ do i = (10, 0, -5)",
		"x(${i}$) = 0",
		"#@ end do",
	})
	assert.Equal(t, "x(10) = 0\nx(5) = 0\nx(0) = 0\n", out)
}

func TestDoLoopRestoresOuterIndexAndDeletesVar(t *testing.T) {
	out := run(t, "t.fpp", []string{
		"#@ do outer = (1, 1)",
		"#@ do inner = (1, 1)",
		"#@ end do",
		"x = ${outer}$",
		"#@ end do",
	})
	assert.Equal(t, "x = 1\n", out)
}

func TestDoLoopZeroIterationsTouchesNothing(t *testing.T) {
	out := run(t, "t.fpp", []string{
		"#@ do i = (5, 1)",
		"unreached",
		"#@ end do",
		"done",
	})
	assert.Equal(t, "done\n", out)
}

func TestDoLoopRejectsPlainTwoValueList(t *testing.T) {
	err := runErr(t, "t.fpp", []string{
		"#@ do i = 1, 3",
		"x(${i}$) = 0",
		"#@ end do",
	})
	require.Error(t, err)
}

func TestIfElifElse(t *testing.T) {
	out := run(t, "t.fpp", []string{
		"#@ let X = 2",
		"#@ if X == 1",
		"one",
		"#@ elif X == 2",
		"two",
		"#@ else",
		"other",
		"#@ end if",
	})
	assert.Equal(t, "two\n", out)
}

func TestForDestructuresTuple(t *testing.T) {
	out := run(t, "t.fpp", []string{
		"#@ for name, kind in ((\"a\", \"int\"), (\"b\", \"real\"))",
		"${kind}$ :: ${name}$",
		"#@ end for",
	})
	assert.Equal(t, "int :: a\nreal :: b\n", out)
}

func TestUseIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "defs.fpp"), []byte("#@ let N = 42"), 0o644))

	out := run(t, filepath.Join(dir, "main.fpp"), []string{
		`#@ use "defs.fpp"`,
		`#@ use "defs.fpp"`,
		"integer :: a(${N}$)",
	})
	assert.Equal(t, "integer :: a(42)\n", out)
}

func TestPatternMacroCaptureAndIndent(t *testing.T) {
	out := run(t, "t.fpp", []string{
		"#@ macro PRINT",
		`#@ pattern (?P<name>\w+)`,
		"print *, ${name}$",
		"#@ end macro",
		"   @PRINT x",
	})
	assert.Equal(t, "   print *, x\n", out)
}

func TestCallWithNoParensAndTrailingComment(t *testing.T) {
	out := run(t, "t.fpp", []string{
		"#@ macro SQUARE",
		`#@ pattern (?P<n>.+)`,
		"${n}$ * ${n}$",
		"#@ end macro",
		"@SQUARE a+1 ! doubled below",
	})
	assert.Equal(t, "a+1 * a+1\n", out)
}

func TestConstructMacroSectionRunsOnlyWhenCalled(t *testing.T) {
	out := run(t, "t.fpp", []string{
		"#@ macro BLOCK",
		"#@ pattern .*",
		"captured",
		"#@ section once header",
		"#@ pattern .*",
		"header body",
		"#@ finally",
		"! tail",
		"#@ end macro",
		"@BLOCK",
		"@endBLOCK",
	})
	assert.Equal(t, "captured\n! tail\n", out)
}

func TestConstructMacroCallSuppliedSectionRuns(t *testing.T) {
	out := run(t, "t.fpp", []string{
		"#@ macro BLOCK",
		"#@ pattern .*",
		"captured",
		"#@ section once header",
		"#@ pattern .*",
		"#@ finally",
		"! tail",
		"#@ end macro",
		"@BLOCK",
		"@header",
		"header body",
		"@endBLOCK",
	})
	assert.Equal(t, "captured\nheader body\n! tail\n", out)
}

func TestConstructMacroOnceSectionRefusesSecondCall(t *testing.T) {
	err := runErr(t, "t.fpp", []string{
		"#@ macro BLOCK",
		"#@ pattern .*",
		"#@ section once header",
		"#@ pattern .*",
		"#@ finally",
		"! tail",
		"#@ end macro",
		"@BLOCK",
		"@header",
		"one",
		"@header",
		"two",
		"@endBLOCK",
	})
	require.Error(t, err)
}

func TestMacroRedefinitionIsRuntimeError(t *testing.T) {
	err := runErr(t, "t.fpp", []string{
		"#@ macro PRINT",
		"#@ pattern .*",
		"a",
		"#@ end macro",
		"#@ macro PRINT",
		"#@ pattern .*",
		"b",
		"#@ end macro",
	})
	require.Error(t, err)
}

func TestUnknownMacroCallIsRuntimeError(t *testing.T) {
	err := runErr(t, "t.fpp", []string{"@NOPE x"})
	require.Error(t, err)
}

func TestUnresolvedShortNameSubstitutionIsRuntimeError(t *testing.T) {
	err := runErr(t, "t.fpp", []string{"x = $undefined"})
	require.Error(t, err)
}

func TestAugmentedAssignmentIsTextualRewrite(t *testing.T) {
	out := run(t, "t.fpp", []string{
		"#@ let STEP = 2",
		"total += ${STEP}$",
	})
	assert.Equal(t, "total = total + 2\n", out)
}

func TestInlineRangeLoopSubstitution(t *testing.T) {
	out := run(t, "t.fpp", []string{
		"call foo(@{a$$@|@(1, 3)}@)",
	})
	assert.Equal(t, "call foo(a1,a2,a3)\n", out)
}

func TestInlineRangeLoopRangelessUsesAmbientIndex(t *testing.T) {
	out := run(t, "t.fpp", []string{
		"#@ do i = (1, 3)",
		"call foo(@{x$$}@)",
		"#@ end do",
	})
	assert.Equal(t, "call foo(x1)\ncall foo(x1,x2)\ncall foo(x1,x2,x3)\n", out)
}
