package expr

import (
	"fmt"
	"sort"

	"github.com/fortiel-lang/fortiel/internal/value"
)

// Scope resolves a name to a value during evaluation. internal/exec's
// execution scope implements this directly (it is a map[string]value.Value
// with a method of this shape), keeping this package independent of the
// executor's scope bookkeeping.
type Scope interface {
	Lookup(name string) (value.Value, bool)
}

// MapScope is the simplest Scope: a flat name table, usable standalone or in
// tests without pulling in internal/exec.
type MapScope map[string]value.Value

func (s MapScope) Lookup(name string) (value.Value, bool) {
	v, ok := s[name]
	return v, ok
}

// Set lets MapScope support mutation so tests and simple callers don't need a
// full internal/exec.Scope just to exercise the expression language.
func (s MapScope) Set(name string, v value.Value) {
	s[name] = v
}

// Eval walks an expression tree and produces its value against scope.
func Eval(n Node, scope Scope) (value.Value, error) {
	switch n := n.(type) {
	case IntLit:
		return value.OfInt(n.Value), nil
	case FloatLit:
		return value.OfFloat(n.Value), nil
	case StringLit:
		return value.OfStr(n.Value), nil
	case BoolLit:
		return value.OfBool(n.Value), nil
	case Ident:
		v, ok := scope.Lookup(n.Name)
		if !ok {
			return value.Value{}, fmt.Errorf("name %q is not defined", n.Name)
		}
		return v, nil
	case Unary:
		return evalUnary(n, scope)
	case Binary:
		return evalBinary(n, scope)
	case TupleLit:
		vs := make([]value.Value, len(n.Elems))
		for i, e := range n.Elems {
			v, err := Eval(e, scope)
			if err != nil {
				return value.Value{}, err
			}
			vs[i] = v
		}
		return value.OfTuple(vs), nil
	case DictLit:
		d := make(map[string]value.Value, len(n.Entries))
		for _, ent := range n.Entries {
			k, err := Eval(ent.Key, scope)
			if err != nil {
				return value.Value{}, err
			}
			v, err := Eval(ent.Value, scope)
			if err != nil {
				return value.Value{}, err
			}
			d[k.String()] = v
		}
		return value.OfDict(d), nil
	case Index:
		return evalIndex(n, scope)
	case Call:
		return evalCall(n, scope)
	case Lambda:
		return value.OfFunc(&value.Func{Params: n.Params, Body: n.Body, Scope: scope}), nil
	default:
		return value.Value{}, fmt.Errorf("unhandled expression node %T", n)
	}
}

func evalUnary(n Unary, scope Scope) (value.Value, error) {
	x, err := Eval(n.X, scope)
	if err != nil {
		return value.Value{}, err
	}
	switch n.Op {
	case "not":
		return value.OfBool(!x.Truthy()), nil
	case "-":
		if x.Kind == value.Int {
			return value.OfInt(-x.Int), nil
		}
		if x.Kind == value.Float {
			return value.OfFloat(-x.Float), nil
		}
		return value.Value{}, fmt.Errorf("cannot negate a %s value", x.Kind)
	default:
		return value.Value{}, fmt.Errorf("unknown unary operator %q", n.Op)
	}
}

func evalBinary(n Binary, scope Scope) (value.Value, error) {
	if n.Op == "and" || n.Op == "&&" {
		l, err := Eval(n.Left, scope)
		if err != nil {
			return value.Value{}, err
		}
		if !l.Truthy() {
			return l, nil
		}
		return Eval(n.Right, scope)
	}
	if n.Op == "or" || n.Op == "||" {
		l, err := Eval(n.Left, scope)
		if err != nil {
			return value.Value{}, err
		}
		if l.Truthy() {
			return l, nil
		}
		return Eval(n.Right, scope)
	}
	l, err := Eval(n.Left, scope)
	if err != nil {
		return value.Value{}, err
	}
	r, err := Eval(n.Right, scope)
	if err != nil {
		return value.Value{}, err
	}
	switch n.Op {
	case "==":
		return value.OfBool(equalValues(l, r)), nil
	case "!=":
		return value.OfBool(!equalValues(l, r)), nil
	case "<", "<=", ">", ">=":
		return compareValues(n.Op, l, r)
	case "+":
		return arith(n.Op, l, r)
	case "-", "*", "/", "%", "**":
		return arith(n.Op, l, r)
	default:
		return value.Value{}, fmt.Errorf("unknown binary operator %q", n.Op)
	}
}

func equalValues(l, r value.Value) bool {
	if l.IsNumeric() && r.IsNumeric() {
		return l.AsFloat() == r.AsFloat()
	}
	if l.Kind != r.Kind {
		return false
	}
	switch l.Kind {
	case value.Str:
		return l.Str == r.Str
	case value.Bool:
		return l.Bool == r.Bool
	case value.Tuple:
		if len(l.Tuple) != len(r.Tuple) {
			return false
		}
		for i := range l.Tuple {
			if !equalValues(l.Tuple[i], r.Tuple[i]) {
				return false
			}
		}
		return true
	default:
		return l.String() == r.String()
	}
}

func compareValues(op string, l, r value.Value) (value.Value, error) {
	var cmp int
	switch {
	case l.IsNumeric() && r.IsNumeric():
		lf, rf := l.AsFloat(), r.AsFloat()
		switch {
		case lf < rf:
			cmp = -1
		case lf > rf:
			cmp = 1
		}
	case l.Kind == value.Str && r.Kind == value.Str:
		switch {
		case l.Str < r.Str:
			cmp = -1
		case l.Str > r.Str:
			cmp = 1
		}
	default:
		return value.Value{}, fmt.Errorf("cannot compare %s and %s", l.Kind, r.Kind)
	}
	switch op {
	case "<":
		return value.OfBool(cmp < 0), nil
	case "<=":
		return value.OfBool(cmp <= 0), nil
	case ">":
		return value.OfBool(cmp > 0), nil
	case ">=":
		return value.OfBool(cmp >= 0), nil
	default:
		return value.Value{}, fmt.Errorf("unknown comparison operator %q", op)
	}
}

func arith(op string, l, r value.Value) (value.Value, error) {
	if op == "+" && (l.Kind == value.Str || r.Kind == value.Str) {
		return value.OfStr(l.String() + r.String()), nil
	}
	if op == "+" && l.Kind == value.Tuple && r.Kind == value.Tuple {
		return value.OfTuple(append(append([]value.Value{}, l.Tuple...), r.Tuple...)), nil
	}
	if !l.IsNumeric() || !r.IsNumeric() {
		return value.Value{}, fmt.Errorf("operator %q requires numeric operands, got %s and %s", op, l.Kind, r.Kind)
	}
	if l.Kind == value.Int && r.Kind == value.Int && op != "/" {
		li, ri := l.Int, r.Int
		switch op {
		case "+":
			return value.OfInt(li + ri), nil
		case "-":
			return value.OfInt(li - ri), nil
		case "*":
			return value.OfInt(li * ri), nil
		case "%":
			if ri == 0 {
				return value.Value{}, fmt.Errorf("modulo by zero")
			}
			return value.OfInt(li % ri), nil
		case "**":
			return value.OfInt(intPow(li, ri)), nil
		}
	}
	lf, rf := l.AsFloat(), r.AsFloat()
	switch op {
	case "+":
		return value.OfFloat(lf + rf), nil
	case "-":
		return value.OfFloat(lf - rf), nil
	case "*":
		return value.OfFloat(lf * rf), nil
	case "/":
		if rf == 0 {
			return value.Value{}, fmt.Errorf("division by zero")
		}
		return value.OfFloat(lf / rf), nil
	case "%":
		return value.Value{}, fmt.Errorf("modulo requires integer operands")
	case "**":
		return value.OfFloat(pow(lf, rf)), nil
	default:
		return value.Value{}, fmt.Errorf("unknown arithmetic operator %q", op)
	}
}

func intPow(base, exp int64) int64 {
	if exp < 0 {
		return 0
	}
	var result int64 = 1
	for i := int64(0); i < exp; i++ {
		result *= base
	}
	return result
}

func pow(base, exp float64) float64 {
	result := 1.0
	neg := exp < 0
	if neg {
		exp = -exp
	}
	for i := 0.0; i < exp; i++ {
		result *= base
	}
	if neg {
		return 1 / result
	}
	return result
}

func evalIndex(n Index, scope Scope) (value.Value, error) {
	x, err := Eval(n.X, scope)
	if err != nil {
		return value.Value{}, err
	}
	idx, err := Eval(n.Index, scope)
	if err != nil {
		return value.Value{}, err
	}
	switch x.Kind {
	case value.Tuple:
		if idx.Kind != value.Int {
			return value.Value{}, fmt.Errorf("tuple index must be an integer")
		}
		i := idx.Int
		if i < 0 {
			i += int64(len(x.Tuple))
		}
		if i < 0 || i >= int64(len(x.Tuple)) {
			return value.Value{}, fmt.Errorf("tuple index %d out of range", idx.Int)
		}
		return x.Tuple[i], nil
	case value.Dict:
		v, ok := x.Dict[idx.String()]
		if !ok {
			return value.Value{}, fmt.Errorf("key %q not found", idx.String())
		}
		return v, nil
	case value.Str:
		if idx.Kind != value.Int {
			return value.Value{}, fmt.Errorf("string index must be an integer")
		}
		r := []rune(x.Str)
		i := idx.Int
		if i < 0 {
			i += int64(len(r))
		}
		if i < 0 || i >= int64(len(r)) {
			return value.Value{}, fmt.Errorf("string index %d out of range", idx.Int)
		}
		return value.OfStr(string(r[i])), nil
	default:
		return value.Value{}, fmt.Errorf("cannot index a %s value", x.Kind)
	}
}

// builtins are the free functions available to every expression, grounded
// on the directive language's own needs: defined() for scope membership,
// len()/range() for iteration bounds, and the handful of scalar conversions
// Fortran code generation needs when splicing values into source text.
func evalCall(n Call, scope Scope) (value.Value, error) {
	if n.Callee == "defined" {
		if len(n.Args) != 1 {
			return value.Value{}, fmt.Errorf("defined() takes exactly one argument")
		}
		name, ok := n.Args[0].(Ident)
		if !ok {
			if s, ok := n.Args[0].(StringLit); ok {
				_, found := scope.Lookup(s.Value)
				return value.OfBool(found), nil
			}
			return value.Value{}, fmt.Errorf("defined() takes a bare name")
		}
		_, found := scope.Lookup(name.Name)
		return value.OfBool(found), nil
	}

	args := make([]value.Value, len(n.Args))
	for i, a := range n.Args {
		v, err := Eval(a, scope)
		if err != nil {
			return value.Value{}, err
		}
		args[i] = v
	}

	switch n.Callee {
	case "len":
		if len(args) != 1 {
			return value.Value{}, fmt.Errorf("len() takes exactly one argument")
		}
		switch args[0].Kind {
		case value.Str:
			return value.OfInt(int64(len([]rune(args[0].Str)))), nil
		case value.Tuple:
			return value.OfInt(int64(len(args[0].Tuple))), nil
		case value.Dict:
			return value.OfInt(int64(len(args[0].Dict))), nil
		default:
			return value.Value{}, fmt.Errorf("len() does not accept a %s value", args[0].Kind)
		}
	case "range":
		return evalRange(args)
	case "int":
		if len(args) != 1 {
			return value.Value{}, fmt.Errorf("int() takes exactly one argument")
		}
		return value.OfInt(int64(args[0].AsFloat())), nil
	case "float":
		if len(args) != 1 {
			return value.Value{}, fmt.Errorf("float() takes exactly one argument")
		}
		return value.OfFloat(args[0].AsFloat()), nil
	case "str":
		if len(args) != 1 {
			return value.Value{}, fmt.Errorf("str() takes exactly one argument")
		}
		return value.OfStr(args[0].String()), nil
	case "keys":
		if len(args) != 1 || args[0].Kind != value.Dict {
			return value.Value{}, fmt.Errorf("keys() takes exactly one dict argument")
		}
		ks := make([]string, 0, len(args[0].Dict))
		for k := range args[0].Dict {
			ks = append(ks, k)
		}
		sort.Strings(ks)
		vs := make([]value.Value, len(ks))
		for i, k := range ks {
			vs[i] = value.OfStr(k)
		}
		return value.OfTuple(vs), nil
	default:
		fn, ok := scope.Lookup(n.Callee)
		if !ok || fn.Kind != value.Callable {
			return value.Value{}, fmt.Errorf("%q is not a function", n.Callee)
		}
		return applyFunc(fn.Func, args)
	}
}

func evalRange(args []value.Value) (value.Value, error) {
	var start, stop, step int64 = 0, 0, 1
	switch len(args) {
	case 1:
		stop = args[0].Int
	case 2:
		start, stop = args[0].Int, args[1].Int
	case 3:
		start, stop, step = args[0].Int, args[1].Int, args[2].Int
	default:
		return value.Value{}, fmt.Errorf("range() takes one to three arguments")
	}
	if step == 0 {
		return value.Value{}, fmt.Errorf("range() step must not be zero")
	}
	var vs []value.Value
	if step > 0 {
		for i := start; i < stop; i += step {
			vs = append(vs, value.OfInt(i))
		}
	} else {
		for i := start; i > stop; i += step {
			vs = append(vs, value.OfInt(i))
		}
	}
	return value.OfTuple(vs), nil
}

func applyFunc(fn *value.Func, args []value.Value) (value.Value, error) {
	if len(fn.Params) != len(args) {
		return value.Value{}, fmt.Errorf("function expects %d arguments, got %d", len(fn.Params), len(args))
	}
	parent, _ := fn.Scope.(Scope)
	child := &childScope{parent: parent, vars: map[string]value.Value{}}
	for i, p := range fn.Params {
		child.vars[p] = args[i]
	}
	switch body := fn.Body.(type) {
	case Node:
		return Eval(body, child)
	case string:
		n, err := Parse(body)
		if err != nil {
			return value.Value{}, err
		}
		return Eval(n, child)
	default:
		return value.Value{}, fmt.Errorf("function has no body")
	}
}

type childScope struct {
	parent Scope
	vars   map[string]value.Value
}

func (s *childScope) Lookup(name string) (value.Value, bool) {
	if v, ok := s.vars[name]; ok {
		return v, true
	}
	if s.parent != nil {
		return s.parent.Lookup(name)
	}
	return value.Value{}, false
}
