package exec

import "github.com/fortiel-lang/fortiel/internal/value"

// Scope is the flat name table threaded through tree execution. It is never
// popped frame-by-frame the way a lexically scoped interpreter would: `let`
// bindings, loop variables, and regex capture groups all land in the same
// map. `let` bindings and captures stay there until a `del` removes them,
// including after the macro call that set them returns; `do` and `for`
// delete their own loop variables when the loop ends. Names are compared
// case-sensitively.
type Scope map[string]value.Value

// NewScope returns an empty scope.
func NewScope() Scope {
	return Scope{}
}

// Lookup implements expr.Scope.
func (s Scope) Lookup(name string) (value.Value, bool) {
	v, ok := s[name]
	return v, ok
}

// Set is used directly by the executor for `let`, loop variables, and
// capture-group merges.
func (s Scope) Set(name string, v value.Value) {
	s[name] = v
}

// Delete removes a name, for the `del` directive.
func (s Scope) Delete(name string) {
	delete(s, name)
}

// Clone returns a shallow copy of the scope.
func (s Scope) Clone() Scope {
	out := make(Scope, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}
