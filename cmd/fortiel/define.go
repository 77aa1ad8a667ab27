package main

import (
	"github.com/fortiel-lang/fortiel/internal/exec"
	"github.com/fortiel-lang/fortiel/internal/expr"
	"github.com/fortiel-lang/fortiel/internal/value"
)

func boolTrue() value.Value {
	return value.OfBool(true)
}

// setDefineValue parses a `-D NAME=VALUE` value the same way a `let`
// expression would, so `-D N=10` and `-D GREETING='hi'` both bind the type
// an author would expect rather than always producing a string.
func setDefineValue(ev *exec.Evaluator, name, raw string) error {
	n, err := expr.Parse(raw)
	if err != nil {
		ev.Scope.Set(name, value.OfStr(raw))
		return nil
	}
	v, err := expr.Eval(n, ev.Scope)
	if err != nil {
		ev.Scope.Set(name, value.OfStr(raw))
		return nil
	}
	ev.Scope.Set(name, v)
	return nil
}
