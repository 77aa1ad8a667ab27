// Command gfortiel is a drop-in wrapper around gfortran: it preprocesses
// each Fortran source argument with Fortiel first, then hands the result
// (plus every argument gfortiel doesn't itself understand) to the real
// compiler. Unlike the single-threaded core, independent input files are
// preprocessed concurrently across a bounded worker pool.
package main

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	fexec "github.com/fortiel-lang/fortiel/internal/exec"
	"github.com/fortiel-lang/fortiel/internal/fterr"
	"github.com/fortiel-lang/fortiel/internal/parser"
)

var fortranExts = map[string]bool{
	".f": true, ".for": true, ".f90": true, ".f03": true, ".f08": true,
}

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	var sourceArgs, passthrough []string
	for i, a := range args {
		if fortranExts[strings.ToLower(filepath.Ext(a))] && (i == 0 || args[i-1] != "-o") {
			matches, err := doublestar.FilepathGlob(a)
			if err != nil || len(matches) == 0 {
				sourceArgs = append(sourceArgs, a)
				continue
			}
			sourceArgs = append(sourceArgs, matches...)
			continue
		}
		passthrough = append(passthrough, a)
	}

	if len(sourceArgs) == 0 {
		fmt.Fprintln(os.Stderr, "gfortiel: no Fortran source files given")
		return 1
	}

	preprocessed, tmpFiles, err := preprocessAll(sourceArgs)
	defer cleanup(tmpFiles)
	if err != nil {
		reportError(err)
		return 1
	}

	cmdArgs := append(append([]string{}, passthrough...), preprocessed...)
	cmd := exec.Command("gfortran", cmdArgs...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.Stdin = os.Stdin
	if err := cmd.Run(); err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return exitErr.ExitCode()
		}
		fmt.Fprintln(os.Stderr, "gfortiel:", err)
		return 1
	}
	return 0
}

// poolSize bounds how many files preprocess concurrently: enough to
// overlap I/O-bound file reads without oversubscribing on large builds.
func poolSize(n int) int {
	if cpus := runtime.NumCPU(); n > cpus {
		return cpus
	}
	return n
}

type job struct {
	index int
	path  string
}

type result struct {
	index  int
	output string
	tmp    string
	err    error
}

// preprocessAll runs Fortiel over every source file concurrently, returning
// the paths to hand to gfortran in the original argument order.
func preprocessAll(sources []string) ([]string, []string, error) {
	jobs := make(chan job, len(sources))
	results := make(chan result, len(sources))

	workers := poolSize(len(sources))
	for w := 0; w < workers; w++ {
		go func() {
			for j := range jobs {
				out, tmp, err := preprocessOne(j.path)
				results <- result{index: j.index, output: out, tmp: tmp, err: err}
			}
		}()
	}
	for i, src := range sources {
		jobs <- job{index: i, path: src}
	}
	close(jobs)

	outputs := make([]string, len(sources))
	var tmpFiles []string
	var firstErr error
	for range sources {
		r := <-results
		if r.err != nil && firstErr == nil {
			firstErr = r.err
		}
		outputs[r.index] = r.output
		if r.tmp != "" {
			tmpFiles = append(tmpFiles, r.tmp)
		}
	}
	if firstErr != nil {
		return nil, tmpFiles, firstErr
	}
	return outputs, tmpFiles, nil
}

func preprocessOne(path string) (string, string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", "", fmt.Errorf("cannot read %q: %w", path, err)
	}
	lines := strings.Split(string(data), "\n")
	tree, err := parser.Parse(path, lines)
	if err != nil {
		return "", "", err
	}

	tmp, err := os.CreateTemp("", "gfortiel-*"+filepath.Ext(path))
	if err != nil {
		return "", "", fmt.Errorf("cannot create temp file for %q: %w", path, err)
	}
	defer tmp.Close()

	ev := fexec.New(nil, fexec.MarkerFpp)
	if err := ev.Execute(tree, fexec.WriterSink{W: tmp}); err != nil {
		os.Remove(tmp.Name())
		return "", "", err
	}
	return tmp.Name(), tmp.Name(), nil
}

func cleanup(tmpFiles []string) {
	for _, f := range tmpFiles {
		os.Remove(f)
	}
}

// reportError formats a Fortiel error in gfortran's own diagnostic style so
// editors and build logs parse it the same way as a compiler error.
func reportError(err error) {
	switch e := err.(type) {
	case *fterr.SyntaxError, *fterr.RuntimeError:
		fmt.Fprintln(os.Stderr, e)
	default:
		fmt.Fprintln(os.Stderr, "gfortiel:", err)
	}
}
