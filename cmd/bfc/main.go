// bfc CLI - build native assembly from tape-language programs, run them
// directly, or serve editors over LSP.
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/fatih/color"

	"github.com/chazu/bfc/compiler"
	"github.com/chazu/bfc/manifest"
	"github.com/chazu/bfc/server"
	"github.com/chazu/bfc/vm"
)

const version = "0.1.0"

const helpMessage = `bfc compiles and runs programs in the eight-symbol tape language.

Usage:
  bfc build [options] file.bf   Generate FASM x86-64 assembly
  bfc run [options] file.bf     Execute a program directly
  bfc repl [options]            Interactive session
  bfc lsp                       Start the language server on stdio

Run 'bfc <command> -h' for the options of each command.
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, helpMessage)
		os.Exit(1)
	}

	switch os.Args[1] {
	case "build":
		handleBuildCommand(os.Args[2:])
	case "run":
		handleRunCommand(os.Args[2:])
	case "repl":
		handleReplCommand(os.Args[2:])
	case "lsp":
		handleLspCommand(os.Args[2:])
	case "version", "--version":
		fmt.Printf("bfc %s\n", version)
	case "help", "-h", "--help":
		fmt.Print(helpMessage)
	default:
		fmt.Fprintf(os.Stderr, "bfc: unknown command %q\n\n%s", os.Args[1], helpMessage)
		os.Exit(1)
	}
}

func handleLspCommand(args []string) {
	if err := server.NewLSP().Run(); err != nil {
		fmt.Fprintf(os.Stderr, "bfc: lsp: %v\n", err)
		os.Exit(1)
	}
}

// fail prints an error and exits.
func fail(err error) {
	fmt.Fprintf(os.Stderr, "bfc: %v\n", err)
	os.Exit(1)
}

// projectManifest finds the bfc.toml governing the source file, if any.
func projectManifest(sourcePath string) *manifest.Manifest {
	m, err := manifest.FindAndLoad(filepath.Dir(sourcePath))
	if err != nil {
		fail(err)
	}
	return m
}

// resolveSettings layers an explicit -wrap flag over the manifest policy.
func resolveSettings(m *manifest.Manifest, fs *flag.FlagSet, wrap bool) compiler.Settings {
	var settings compiler.Settings
	if m != nil {
		settings = m.Settings()
	}
	fs.Visit(func(f *flag.Flag) {
		if f.Name == "wrap" {
			settings.Wrap = wrap
		}
	})
	return settings
}

// reportSourceError prints err to stderr, with the offending source line
// and a caret when the error carries a position.
func reportSourceError(src string, err error) {
	fmt.Fprintf(os.Stderr, "%s %v\n", color.RedString("error:"), err)

	offset, ok := errorOffset(err)
	if !ok || offset > len(src) {
		return
	}

	lineNum := strings.Count(src[:offset], "\n")
	lineStart := strings.LastIndexByte(src[:offset], '\n') + 1
	lineLen := strings.IndexByte(src[lineStart:], '\n')
	if lineLen < 0 {
		lineLen = len(src) - lineStart
	}

	num := strconv.Itoa(lineNum + 1)
	fmt.Fprintf(os.Stderr, " %s | %s\n", num, src[lineStart:lineStart+lineLen])
	fmt.Fprintf(os.Stderr, " %s | %s%s\n",
		strings.Repeat(" ", len(num)),
		strings.Repeat(" ", offset-lineStart),
		color.RedString("^"))
}

// errorOffset extracts the source byte offset from the error types that
// carry one.
func errorOffset(err error) (int, bool) {
	var (
		unmatchedClose *compiler.UnmatchedCloseError
		unmatchedOpen  *compiler.UnmatchedOpenError
		overflow       *vm.TapeOverflowError
		underflow      *vm.TapeUnderflowError
	)
	switch {
	case errors.As(err, &unmatchedClose):
		return unmatchedClose.Pos, true
	case errors.As(err, &unmatchedOpen):
		return unmatchedOpen.OpenPos, true
	case errors.As(err, &overflow):
		return overflow.Pos, true
	case errors.As(err, &underflow):
		return underflow.Pos, true
	}
	return 0, false
}
