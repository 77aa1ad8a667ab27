// Package value defines the dynamically typed value representation used by
// the Fortiel expression sandbox (internal/expr) and the substitution engine:
// a small tagged union covering the types a `let`/`${...}` expression can
// produce, plus the coercions and formatting rules the preprocessor needs.
package value

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Kind identifies which field of a Value is meaningful.
type Kind int

const (
	Int Kind = iota
	Float
	Str
	Bool
	Tuple
	Dict
	Callable
)

func (k Kind) String() string {
	switch k {
	case Int:
		return "int"
	case Float:
		return "float"
	case Str:
		return "str"
	case Bool:
		return "bool"
	case Tuple:
		return "tuple"
	case Dict:
		return "dict"
	case Callable:
		return "callable"
	default:
		return "unknown"
	}
}

// Func is the representation of a `lambda` or a parameterized `let` binding:
// a closure over the scope it was defined in.
type Func struct {
	Params []string
	// Body is either a raw expression string (for a `let f(x) = ...`
	// binding, parsed lazily on each call) or an already-parsed expr.Node
	// value (for a `lambda` literal). internal/expr type switches on this to
	// avoid an import cycle with this package.
	Body any
	// Scope is the defining scope itself, held as an opaque reference (not a
	// copy) to avoid an import cycle here.
	Scope any
}

// Value is a single value in the expression sandbox. Only the field named by
// Kind is meaningful; the others are zero.
type Value struct {
	Kind  Kind
	Int   int64
	Float float64
	Str   string
	Bool  bool
	Tuple []Value
	Dict  map[string]Value
	Func  *Func
}

func OfInt(i int64) Value     { return Value{Kind: Int, Int: i} }
func OfFloat(f float64) Value { return Value{Kind: Float, Float: f} }
func OfStr(s string) Value    { return Value{Kind: Str, Str: s} }
func OfBool(b bool) Value     { return Value{Kind: Bool, Bool: b} }
func OfTuple(vs []Value) Value {
	return Value{Kind: Tuple, Tuple: vs}
}
func OfDict(d map[string]Value) Value {
	return Value{Kind: Dict, Dict: d}
}
func OfFunc(f *Func) Value { return Value{Kind: Callable, Func: f} }

// Truthy applies Fortiel's truthiness rule: zero numbers, empty strings,
// empty tuples/dicts, and false are falsy; everything else is truthy.
func (v Value) Truthy() bool {
	switch v.Kind {
	case Int:
		return v.Int != 0
	case Float:
		return v.Float != 0
	case Str:
		return v.Str != ""
	case Bool:
		return v.Bool
	case Tuple:
		return len(v.Tuple) > 0
	case Dict:
		return len(v.Dict) > 0
	case Callable:
		return true
	default:
		return false
	}
}

// IsNumeric reports whether v is an Int or a Float.
func (v Value) IsNumeric() bool {
	return v.Kind == Int || v.Kind == Float
}

// AsFloat widens an Int or Float value to float64.
func (v Value) AsFloat() float64 {
	if v.Kind == Int {
		return float64(v.Int)
	}
	return v.Float
}

// String renders v the way it would be substituted into preprocessed source
// text: ints and floats in their natural decimal form, strings verbatim
// (without quotes), bools as `.true.`/`.false.` Fortran literals, tuples
// comma-joined in parentheses, and dicts as `{k: v, ...}` in sorted key
// order for determinism.
func (v Value) String() string {
	switch v.Kind {
	case Int:
		return strconv.FormatInt(v.Int, 10)
	case Float:
		return strconv.FormatFloat(v.Float, 'g', -1, 64)
	case Str:
		return v.Str
	case Bool:
		if v.Bool {
			return ".true."
		}
		return ".false."
	case Tuple:
		parts := make([]string, len(v.Tuple))
		for i, e := range v.Tuple {
			parts[i] = e.String()
		}
		return "(" + strings.Join(parts, ", ") + ")"
	case Dict:
		keys := make([]string, 0, len(v.Dict))
		for k := range v.Dict {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, len(keys))
		for i, k := range keys {
			parts[i] = fmt.Sprintf("%s: %s", k, v.Dict[k].String())
		}
		return "{" + strings.Join(parts, ", ") + "}"
	case Callable:
		return "<function>"
	default:
		return ""
	}
}
