// Command jt-canon canonicalizes and verifies JSON using the json-tree
// codec.
//
//	jt-canon canonicalize [--quiet] [file|-]
//	jt-canon verify [--quiet] [file|-]
//	jt-canon --help
//	jt-canon --version
//
// Exit codes: 0 (success), 2 (usage or invalid input), 10 (internal/IO).
package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/lattice-substrate/json-tree/jterr"
	"github.com/lattice-substrate/json-tree/jtser"
	"github.com/lattice-substrate/json-tree/jttoken"
)

var version = "v0.0.0-dev"

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	if len(args) == 1 {
		switch args[0] {
		case "--help", "-h":
			usage(stdout)
			return 0
		case "--version":
			fmt.Fprintln(stdout, "jt-canon "+version)
			return 0
		}
	}
	if len(args) == 0 {
		usage(stderr)
		return jterr.CLIUsage.ExitCode()
	}

	verify := false
	switch args[0] {
	case "canonicalize":
	case "verify":
		verify = true
	default:
		fmt.Fprintf(stderr, "unknown command: %s\n", args[0])
		usage(stderr)
		return jterr.CLIUsage.ExitCode()
	}

	quiet, path, err := parseFlags(args[1:])
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return jterr.CLIUsage.ExitCode()
	}

	input, err := readInput(path, stdin)
	if err != nil {
		return report(stderr, err)
	}

	parsed, err := jttoken.Parse(input)
	if err != nil {
		return report(stderr, err)
	}
	canonical, err := jtser.Serialize(parsed)
	if err != nil {
		return report(stderr, err)
	}

	if verify {
		if !bytes.Equal(input, canonical) {
			fmt.Fprintln(stderr, "error: input is not canonical")
			return jterr.NotCanonical.ExitCode()
		}
		if !quiet {
			fmt.Fprintln(stderr, "ok")
		}
		return 0
	}

	if _, err := stdout.Write(canonical); err != nil {
		fmt.Fprintf(stderr, "error: writing output: %v\n", err)
		return jterr.InternalIO.ExitCode()
	}
	return 0
}

func parseFlags(args []string) (quiet bool, path string, err error) {
	positional := []string{}
	literal := false
	for _, arg := range args {
		switch {
		case literal || arg == "-" || !strings.HasPrefix(arg, "-"):
			positional = append(positional, arg)
		case arg == "--quiet" || arg == "-q":
			quiet = true
		case arg == "--":
			literal = true
		default:
			return false, "", fmt.Errorf("unknown option: %s", arg)
		}
	}
	switch len(positional) {
	case 0:
		return quiet, "-", nil
	case 1:
		return quiet, positional[0], nil
	default:
		return false, "", errors.New("multiple input files specified")
	}
}

func readInput(path string, stdin io.Reader) ([]byte, error) {
	r := stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, jterr.Wrap(jterr.CLIUsage, -1, fmt.Sprintf("read file %q", path), err)
		}
		defer func() { _ = f.Close() }()
		r = f
	}

	lr := io.LimitReader(r, int64(jttoken.DefaultMaxInputSize)+1)
	data, err := io.ReadAll(lr)
	if err != nil {
		return nil, jterr.Wrap(jterr.InternalIO, -1, "read input stream", err)
	}
	if len(data) > jttoken.DefaultMaxInputSize {
		return nil, jterr.Newf(jterr.BoundExceeded, 0, "input exceeds maximum size %d bytes", jttoken.DefaultMaxInputSize)
	}
	return data, nil
}

// report prints err to stderr and maps it to a process exit code via its
// jterr classification.
func report(stderr io.Writer, err error) int {
	fmt.Fprintf(stderr, "error: %v\n", err)
	var je *jterr.Error
	if errors.As(err, &je) {
		return je.Code.ExitCode()
	}
	return jterr.InternalError.ExitCode()
}

func usage(w io.Writer) {
	fmt.Fprintln(w, "usage: jt-canon <canonicalize|verify> [--quiet] [file|-]")
	fmt.Fprintln(w, "       jt-canon --help | --version")
	fmt.Fprintln(w, "  canonicalize  read JSON, emit canonical bytes to stdout")
	fmt.Fprintln(w, "  verify        check that input already is canonical bytes")
}
