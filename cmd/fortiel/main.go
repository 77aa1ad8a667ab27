// Command fortiel preprocesses a single Fortran/Fortiel source file and
// writes the result to stdout or a chosen output file.
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/fortiel-lang/fortiel/internal/exec"
	"github.com/fortiel-lang/fortiel/internal/parser"
)

// stringList collects a repeatable flag (`-D`/`-I`) into a slice as a
// hand-rolled flag.Value, rather than reaching for a flags framework.
type stringList []string

func (l *stringList) String() string {
	if l == nil {
		return ""
	}
	return strings.Join(*l, ",")
}

func (l *stringList) Set(v string) error {
	*l = append(*l, v)
	return nil
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr *os.File) int {
	fs := flag.NewFlagSet("fortiel", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var defines stringList
	var includeDirs stringList
	var markerFlag string
	var outputPath string
	fs.Var(&defines, "D", "define NAME=VALUE before preprocessing (repeatable)")
	fs.Var(&includeDirs, "I", "add a directory to the `use` search path (repeatable)")
	fs.StringVar(&markerFlag, "M", "fpp", "line marker style: fpp, cpp, or none")
	fs.StringVar(&outputPath, "o", "", "output file (default: stdout)")

	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(stderr, "usage: fortiel [flags] <input-file>")
		return 2
	}
	inputPath := fs.Arg(0)

	marker, err := exec.ParseMarkerStyle(markerFlag)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 2
	}

	ev := exec.New(includeDirs, marker)
	for _, d := range defines {
		if err := applyDefine(ev, d); err != nil {
			fmt.Fprintln(stderr, err)
			return 2
		}
	}

	if err := preprocess(ev, inputPath, outputPath); err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	return 0
}

func applyDefine(ev *exec.Evaluator, spec string) error {
	name, val, _ := strings.Cut(spec, "=")
	if name == "" {
		return fmt.Errorf("invalid -D %q: expected NAME or NAME=VALUE", spec)
	}
	if val == "" {
		ev.Scope.Set(name, boolTrue())
		return nil
	}
	return setDefineValue(ev, name, val)
}

func preprocess(ev *exec.Evaluator, inputPath, outputPath string) error {
	data, err := ev.ReadFile(inputPath)
	if err != nil {
		return fmt.Errorf("cannot read %q: %w", inputPath, err)
	}
	lines := strings.Split(string(data), "\n")
	tree, err := parser.Parse(inputPath, lines)
	if err != nil {
		return err
	}

	out := os.Stdout
	if outputPath != "" {
		f, createErr := os.Create(outputPath)
		if createErr != nil {
			return fmt.Errorf("cannot create %q: %w", outputPath, createErr)
		}
		defer f.Close()
		out = f
	}
	return ev.Execute(tree, exec.WriterSink{W: out})
}
