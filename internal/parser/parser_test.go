package parser_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fortiel-lang/fortiel/internal/ast"
	"github.com/fortiel-lang/fortiel/internal/parser"
)

func TestParseLetExpression(t *testing.T) {
	tree, err := parser.Parse("t.fpp", []string{"#@ let N = 3"})
	require.NoError(t, err)
	require.Len(t, tree.Nodes, 1)
	let, ok := tree.Nodes[0].(*ast.Let)
	require.True(t, ok)
	assert.Equal(t, "N", let.Name)
	assert.Equal(t, "3", let.Expr)
	assert.Nil(t, let.Params)
}

func TestParseLetFunction(t *testing.T) {
	tree, err := parser.Parse("t.fpp", []string{"#@ let square(x) = x * x"})
	require.NoError(t, err)
	let := tree.Nodes[0].(*ast.Let)
	assert.Equal(t, "square", let.Name)
	assert.Equal(t, []string{"x"}, let.Params)
	assert.Equal(t, "x * x", let.Expr)
}

func TestParseUse(t *testing.T) {
	tree, err := parser.Parse("t.fpp", []string{`#@ use "defs.fpp"`})
	require.NoError(t, err)
	use := tree.Nodes[0].(*ast.Use)
	assert.Equal(t, "defs.fpp", use.Path)
}

func TestParseDel(t *testing.T) {
	tree, err := parser.Parse("t.fpp", []string{"#@ del a, b"})
	require.NoError(t, err)
	del := tree.Nodes[0].(*ast.Del)
	assert.Equal(t, []string{"a", "b"}, del.Names)
}

func TestParseIfElifElse(t *testing.T) {
	tree, err := parser.Parse("t.fpp", []string{
		"#@ if X == 1",
		"one",
		"#@ elif X == 2",
		"two",
		"#@ else",
		"other",
		"#@ end if",
	})
	require.NoError(t, err)
	ifNode := tree.Nodes[0].(*ast.If)
	require.Len(t, ifNode.Branches, 3)
	assert.Equal(t, "X == 1", ifNode.Branches[0].Condition)
	assert.Equal(t, "X == 2", ifNode.Branches[1].Condition)
	assert.Equal(t, "", ifNode.Branches[2].Condition)
}

func TestParseDoRanges(t *testing.T) {
	tree, err := parser.Parse("t.fpp", []string{
		"#@ do i = (1, 10, 2)",
		"x(${i}$) = 0",
		"#@ end do",
	})
	require.NoError(t, err)
	do := tree.Nodes[0].(*ast.Do)
	assert.Equal(t, "i", do.Var)
	assert.Equal(t, "(1, 10, 2)", do.Ranges)
}

func TestParseDoMissingEndIsSyntaxError(t *testing.T) {
	_, err := parser.Parse("t.fpp", []string{
		"#@ do i = (1, 10)",
		"x(${i}$) = 0",
	})
	require.Error(t, err)
}

func TestParseForOverExpression(t *testing.T) {
	tree, err := parser.Parse("t.fpp", []string{
		"#@ for k in keys(d)",
		"use ${k}$",
		"#@ end for",
	})
	require.NoError(t, err)
	forNode := tree.Nodes[0].(*ast.For)
	assert.Equal(t, []string{"k"}, forNode.Vars)
	assert.Equal(t, "keys(d)", forNode.Expr)
}

func TestParseForMultipleNames(t *testing.T) {
	tree, err := parser.Parse("t.fpp", []string{
		"#@ for k, v in items(d)",
		"use ${k}$, ${v}$",
		"#@ end for",
	})
	require.NoError(t, err)
	forNode := tree.Nodes[0].(*ast.For)
	assert.Equal(t, []string{"k", "v"}, forNode.Vars)
	assert.Equal(t, "items(d)", forNode.Expr)
}

func TestParseMacroWithPatternAndFinally(t *testing.T) {
	tree, err := parser.Parse("t.fpp", []string{
		"#@ macro PRINT",
		`#@ pattern (?P<name>\w+)`,
		"print *, ${name}$",
		"#@ finally",
		"! end PRINT",
		"#@ end macro",
	})
	require.NoError(t, err)
	macro := tree.Nodes[0].(*ast.Macro)
	assert.Equal(t, "PRINT", macro.Name)
	require.Len(t, macro.Patterns, 1)
	assert.Equal(t, `(?P<name>\w+)`, macro.Patterns[0].Regex)
	require.Len(t, macro.Finally, 1)
	assert.True(t, macro.IsConstruct())
}

func TestParseMacroWithSections(t *testing.T) {
	tree, err := parser.Parse("t.fpp", []string{
		"#@ macro REPEAT3",
		"#@ pattern .*",
		"#@ section once header",
		"#@ pattern .*",
		"! header",
		"#@ end macro",
	})
	require.NoError(t, err)
	macro := tree.Nodes[0].(*ast.Macro)
	require.Len(t, macro.Sections, 1)
	assert.Equal(t, "header", macro.Sections[0].Name)
	assert.True(t, macro.Sections[0].Once)
	require.Len(t, macro.Sections[0].Patterns, 1)
	assert.True(t, macro.IsConstruct())
}

func TestParseMacroSectionNameCollidesWithMacroNameIsSyntaxError(t *testing.T) {
	_, err := parser.Parse("t.fpp", []string{
		"#@ macro REPEAT3",
		"#@ pattern .*",
		"#@ section once repeat3",
		"! oops",
		"#@ end macro",
	})
	require.Error(t, err)
}

func TestParseMacroDuplicateSectionIsSyntaxError(t *testing.T) {
	_, err := parser.Parse("t.fpp", []string{
		"#@ macro REPEAT3",
		"#@ pattern .*",
		"#@ section header",
		"#@ pattern .*",
		"! a",
		"#@ section Header",
		"#@ pattern .*",
		"! b",
		"#@ end macro",
	})
	require.Error(t, err)
}

func TestParseMacroWithoutPatternIsSyntaxError(t *testing.T) {
	_, err := parser.Parse("t.fpp", []string{
		"#@ macro EMPTY",
		"#@ end macro",
	})
	require.Error(t, err)
}

func TestParseCallSegmentCapturesIndent(t *testing.T) {
	tree, err := parser.Parse("t.fpp", []string{
		"   @PRINT a+1",
	})
	require.NoError(t, err)
	seg := tree.Nodes[0].(*ast.CallSegment)
	assert.Equal(t, "PRINT", seg.Name)
	assert.Equal(t, "a+1", seg.Args)
	assert.Equal(t, "   ", seg.Indent)
}

func TestParseCallSegmentWithTrailingComment(t *testing.T) {
	tree, err := parser.Parse("t.fpp", []string{
		"@SQUARE a+1 ! doubled below",
	})
	require.NoError(t, err)
	seg := tree.Nodes[0].(*ast.CallSegment)
	assert.Equal(t, "SQUARE", seg.Name)
	assert.Equal(t, "a+1", seg.Args)
}

func TestParseCallSegmentEndAndElsePrefix(t *testing.T) {
	tree, err := parser.Parse("t.fpp", []string{
		"@endRepeat3",
		"@elseBranch",
	})
	require.NoError(t, err)
	seg := tree.Nodes[0].(*ast.CallSegment)
	assert.Equal(t, "endRepeat3", seg.Name)
	seg = tree.Nodes[1].(*ast.CallSegment)
	assert.Equal(t, "elseBranch", seg.Name)
}

func TestBuiltinHeaderPrependedForFreeFormExtension(t *testing.T) {
	tree, err := parser.Parse("t.f90", []string{"integer :: x"})
	require.NoError(t, err)
	require.Len(t, tree.Nodes, 2)
	use, ok := tree.Nodes[0].(*ast.Use)
	require.True(t, ok)
	assert.Equal(t, "fortiel/syntax.fd", use.Path)
}

func TestBuiltinHeaderNotPrependedForFixedForm(t *testing.T) {
	tree, err := parser.Parse("t.f", []string{"      integer x"})
	require.NoError(t, err)
	require.Len(t, tree.Nodes, 1)
	_, ok := tree.Nodes[0].(*ast.Use)
	assert.False(t, ok)
}
