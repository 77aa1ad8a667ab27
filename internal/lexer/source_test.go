package lexer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLineSource_NoContinuation(t *testing.T) {
	ls, err := New("t.f90", []string{"print *, 1", "print *, 2"})
	require.NoError(t, err)

	text, ok := ls.Peek()
	require.True(t, ok)
	assert.Equal(t, "print *, 1", text)
	assert.Equal(t, 1, ls.Line())

	require.NoError(t, ls.Advance())
	text, ok = ls.Peek()
	require.True(t, ok)
	assert.Equal(t, "print *, 2", text)
	assert.Equal(t, 2, ls.Line())

	require.NoError(t, ls.Advance())
	assert.True(t, ls.AtEnd())
}

func TestLineSource_ContinuationJoinsFromFirstLine(t *testing.T) {
	ls, err := New("t.f90", []string{"call foo(a, &", "     & b, c)", "print *, 1"})
	require.NoError(t, err)

	text, ok := ls.Peek()
	require.True(t, ok)
	assert.Equal(t, "call foo(a, b, c)", text)
	assert.Equal(t, "call foo(a, &\n     & b, c)", ls.Raw())
	assert.Equal(t, 1, ls.Line())

	require.NoError(t, ls.Advance())
	text, ok = ls.Peek()
	require.True(t, ok)
	assert.Equal(t, "print *, 1", text)
	assert.Equal(t, 3, ls.Line())
}

func TestLineSource_UnterminatedContinuationIsSyntaxError(t *testing.T) {
	_, err := New("t.f90", []string{"call foo(a, &"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Fatal Error")
}

func TestLineSource_Empty(t *testing.T) {
	ls, err := New("t.f90", nil)
	require.NoError(t, err)
	assert.True(t, ls.AtEnd())
	_, ok := ls.Peek()
	assert.False(t, ok)
}
