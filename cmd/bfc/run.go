package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/chazu/bfc/compiler"
	"github.com/chazu/bfc/vm"
)

func handleRunCommand(args []string) {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	wrap := fs.Bool("wrap", false, "Wrap the data pointer at the tape edges instead of failing")
	inPath := fs.String("in", "", "Program input file (default: stdin)")
	debugOps := fs.Bool("debug-ops", false, "Print the resolved operation listing to stderr before running")
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: bfc run [options] file.bf\n\nOptions:\n")
		fs.PrintDefaults()
	}
	fs.Parse(args)

	if fs.NArg() != 1 {
		fs.Usage()
		os.Exit(1)
	}
	path := fs.Arg(0)

	source, err := os.ReadFile(path)
	if err != nil {
		fail(err)
	}

	m := projectManifest(path)
	settings := resolveSettings(m, fs, *wrap)

	prog, err := compiler.Parse(string(source))
	if err != nil {
		reportSourceError(string(source), err)
		os.Exit(1)
	}

	if *debugOps {
		fmt.Fprint(os.Stderr, prog.Disassemble())
	}

	var input io.Reader = os.Stdin
	inFile := *inPath
	if inFile == "" && m != nil {
		inFile = m.InputPath()
	}
	if inFile != "" {
		f, err := os.Open(inFile)
		if err != nil {
			fail(err)
		}
		defer f.Close()
		input = f
	}

	interp := vm.New(prog, settings, input, os.Stdout)
	if err := interp.Run(); err != nil {
		reportSourceError(string(source), err)
		os.Exit(1)
	}
}
