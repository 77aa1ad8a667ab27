package exec

import (
	"io"
	"strings"
)

// Sink receives the preprocessed output, one already-substituted line at a
// time. cmd/fortiel writes a WriterSink over the chosen output file or
// stdout; Use imports run against a NullSink so an imported file's own text
// output never appears twice; macro call bodies run against an IndentSink so
// a construct macro's generated code lines up with its call site.
type Sink interface {
	WriteLine(text string) error
}

// WriterSink adapts an io.Writer, appending a newline to every line.
type WriterSink struct {
	W io.Writer
}

func (s WriterSink) WriteLine(text string) error {
	_, err := io.WriteString(s.W, text+"\n")
	return err
}

// NullSink discards everything written to it.
type NullSink struct{}

func (NullSink) WriteLine(string) error { return nil }

// IndentSink decorates another sink, indenting every non-empty line it
// receives by Prefix. Line markers (which start with '#') pass through
// unindented so downstream compilers still see them at column one.
type IndentSink struct {
	Inner  Sink
	Prefix string
}

func (s IndentSink) WriteLine(text string) error {
	if text == "" || strings.HasPrefix(text, "#") {
		return s.Inner.WriteLine(text)
	}
	return s.Inner.WriteLine(s.Prefix + text)
}
