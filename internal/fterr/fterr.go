// Package fterr defines the error kinds raised by the Fortiel core: syntax
// errors from the parser, runtime errors from the evaluator, and internal
// invariant failures that indicate a programming error rather than a bad
// input file.
package fterr

import "fmt"

// SyntaxError is raised by the parser: an empty, unknown, or misplaced
// directive, invalid directive syntax, unexpected end of file, or a
// duplicate/reserved name detectable at parse time. Macro pattern regular
// expressions are not compiled by the parser; an invalid one is reported as
// a RuntimeError when a call first tries it.
type SyntaxError struct {
	File    string
	Line    int
	Message string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("%s:%d:1:\n\nFatal Error: Fortiel syntax error: %s", e.File, e.Line, e.Message)
}

// NewSyntax builds a SyntaxError with a formatted message.
func NewSyntax(file string, line int, format string, args ...any) *SyntaxError {
	return &SyntaxError{File: file, Line: line, Message: fmt.Sprintf(format, args...)}
}

// RuntimeError is raised by the evaluator: an unresolved include, an unknown
// macro, an unbalanced call construct, a failed name lookup, a wrapped
// expression evaluation failure, an ill-typed do range, or any other
// condition detected while walking the tree.
type RuntimeError struct {
	File    string
	Line    int
	Message string
}

func (e *RuntimeError) Error() string {
	return fmt.Sprintf("%s:%d:1:\n\nFatal Error: Fortiel runtime error: %s", e.File, e.Line, e.Message)
}

// NewRuntime builds a RuntimeError with a formatted message.
func NewRuntime(file string, line int, format string, args ...any) *RuntimeError {
	return &RuntimeError{File: file, Line: line, Message: fmt.Sprintf(format, args...)}
}

// InternalError marks a programming error inside the core, e.g. a missing
// executor for an ast.Node variant. Callers should treat recovery of a panic
// carrying this type as fatal: the tree or the executor is out of sync with
// the node variants the parser can produce.
type InternalError struct {
	Message string
}

func (e *InternalError) Error() string {
	return fmt.Sprintf("internal error: %s", e.Message)
}

// Panicf raises an InternalError via panic, for conditions that must never
// occur for any input the parser could have produced.
func Panicf(format string, args ...any) {
	panic(&InternalError{Message: fmt.Sprintf(format, args...)})
}
