package expr

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fortiel-lang/fortiel/internal/value"
)

func eval(t *testing.T, src string, scope Scope) value.Value {
	t.Helper()
	n, err := Parse(src)
	require.NoError(t, err, "parse %q", src)
	v, err := Eval(n, scope)
	require.NoError(t, err, "eval %q", src)
	return v
}

func TestArithmeticPrecedence(t *testing.T) {
	v := eval(t, "1 + 2 * 3", MapScope{})
	assert.Equal(t, int64(7), v.Int)

	v = eval(t, "(1 + 2) * 3", MapScope{})
	assert.Equal(t, int64(9), v.Int)

	v = eval(t, "2 ** 3 ** 2", MapScope{})
	assert.Equal(t, int64(512), v.Int) // right-associative: 2**(3**2)
}

func TestBooleanConnectives(t *testing.T) {
	assert.True(t, eval(t, "true and not false", MapScope{}).Bool)
	assert.True(t, eval(t, "1 < 2 && 2 < 3", MapScope{}).Bool)
	assert.True(t, eval(t, "false || 1 == 1", MapScope{}).Bool)
}

func TestDefined(t *testing.T) {
	scope := MapScope{"N": value.OfInt(4)}
	assert.True(t, eval(t, "defined(N)", scope).Bool)
	assert.False(t, eval(t, "defined(M)", scope).Bool)
}

func TestTupleIndexAndDict(t *testing.T) {
	v := eval(t, "(10, 20, 30)[1]", MapScope{})
	assert.Equal(t, int64(20), v.Int)

	v = eval(t, `{"a": 1, "b": 2}["b"]`, MapScope{})
	assert.Equal(t, int64(2), v.Int)
}

func TestLambdaCall(t *testing.T) {
	scope := MapScope{}
	fn := eval(t, "lambda x, y: x * y + 1", scope)
	scope["f"] = fn
	v := eval(t, "f(3, 4)", scope)
	assert.Equal(t, int64(13), v.Int)
}

func TestStringConcatAndLen(t *testing.T) {
	v := eval(t, `"foo" + "bar"`, MapScope{})
	assert.Equal(t, "foobar", v.Str)

	v = eval(t, `len("hello")`, MapScope{})
	assert.Equal(t, int64(5), v.Int)
}

func TestRange(t *testing.T) {
	v := eval(t, "range(1, 4)", MapScope{})
	require.Len(t, v.Tuple, 3)
	assert.Equal(t, int64(1), v.Tuple[0].Int)
	assert.Equal(t, int64(3), v.Tuple[2].Int)
}

func TestUndefinedNameErrors(t *testing.T) {
	_, err := Eval(Ident{Name: "nope"}, MapScope{})
	require.Error(t, err)
}
