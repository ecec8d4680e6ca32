package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/chazu/bfc/compiler"
	"github.com/chazu/bfc/manifest"
	"github.com/chazu/bfc/object"
	"github.com/chazu/bfc/store"
)

func handleBuildCommand(args []string) {
	fs := flag.NewFlagSet("build", flag.ExitOnError)
	output := fs.String("o", "", "Assembly output path")
	wrap := fs.Bool("wrap", false, "Wrap the data pointer at the tape edges instead of failing")
	cachePath := fs.String("cache", "", "Build cache database path")
	noCache := fs.Bool("no-cache", false, "Disable the build cache")
	writeObj := fs.Bool("object", false, "Also write a .bfo program object next to the assembly")
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: bfc build [options] file.bf\n\nOptions:\n")
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
	outPath := resolveOutputPath(*output, m, path)

	cache := openCache(*cachePath, *noCache, m)
	if cache != nil {
		defer cache.Close()
	}
	key := store.Key(source, settings)

	if cache != nil && writeFromCache(cache, key, outPath, *writeObj) {
		return
	}

	prog, err := compiler.Parse(string(source))
	if err != nil {
		reportSourceError(string(source), err)
		os.Exit(1)
	}

	asm, err := compiler.GenerateAsm(prog, settings)
	if err != nil {
		fail(err)
	}

	objData, err := object.Marshal(object.FromProgram(prog, filepath.Base(path), source))
	if err != nil {
		fail(err)
	}

	if err := writeArtifacts(outPath, []byte(asm), objData, *writeObj); err != nil {
		fail(err)
	}

	if cache != nil {
		if err := cache.Put(key, store.KindAsm, []byte(asm)); err != nil {
			fmt.Fprintf(os.Stderr, "bfc: warning: %v\n", err)
		}
		if err := cache.Put(key, store.KindObject, objData); err != nil {
			fmt.Fprintf(os.Stderr, "bfc: warning: %v\n", err)
		}
	}
}

// openCache resolves the build cache location: the -cache flag, then
// .bfc/cache.db next to the manifest, then the user-level default.
// Returns nil when caching is disabled or the cache cannot be opened.
func openCache(flagPath string, disabled bool, m *manifest.Manifest) *store.Store {
	if disabled {
		return nil
	}

	var (
		s   *store.Store
		err error
	)
	switch {
	case flagPath != "":
		s, err = store.Open(flagPath)
	case m != nil:
		dir := filepath.Join(m.Dir, ".bfc")
		if err = os.MkdirAll(dir, 0o755); err == nil {
			s, err = store.Open(filepath.Join(dir, "cache.db"))
		}
	default:
		s, err = store.OpenDefault()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "bfc: warning: cache disabled: %v\n", err)
		return nil
	}
	return s
}

// writeFromCache satisfies the build from cached artifacts. Returns
// false when any required artifact is missing, falling back to a full
// build.
func writeFromCache(cache *store.Store, key [32]byte, outPath string, withObject bool) bool {
	asm, err := cache.Get(key, store.KindAsm)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			fmt.Fprintf(os.Stderr, "bfc: warning: %v\n", err)
		}
		return false
	}

	var objData []byte
	if withObject {
		if objData, err = cache.Get(key, store.KindObject); err != nil {
			return false
		}
	}

	if err := writeArtifacts(outPath, asm, objData, withObject); err != nil {
		fail(err)
	}
	return true
}

// writeArtifacts writes the assembly and, when requested, the program
// object next to it.
func writeArtifacts(outPath string, asm, objData []byte, withObject bool) error {
	if err := os.WriteFile(outPath, asm, 0o644); err != nil {
		return err
	}
	if withObject {
		return os.WriteFile(objectPath(outPath), objData, 0o644)
	}
	return nil
}

// objectPath swaps the assembly extension for .bfo.
func objectPath(outPath string) string {
	return strings.TrimSuffix(outPath, filepath.Ext(outPath)) + ".bfo"
}

// resolveOutputPath layers the -o flag over the manifest output, over
// the source name with its extension swapped for .asm.
func resolveOutputPath(flagValue string, m *manifest.Manifest, sourcePath string) string {
	if flagValue != "" {
		return flagValue
	}
	if m != nil {
		if p := m.OutputPath(); p != "" {
			return p
		}
	}
	return strings.TrimSuffix(sourcePath, filepath.Ext(sourcePath)) + ".asm"
}
