package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/chazu/bfc/compiler"
	"github.com/chazu/bfc/manifest"
	"github.com/chazu/bfc/vm"
)

// ---------------------------------------------------------------------------
// Test helpers
// ---------------------------------------------------------------------------

// writeManifest writes a bfc.toml with the given body into a fresh
// directory and loads it.
func writeManifest(t *testing.T, body string) *manifest.Manifest {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "bfc.toml"), []byte(body), 0o644); err != nil {
		t.Fatalf("writing bfc.toml: %v", err)
	}
	m, err := manifest.Load(dir)
	if err != nil {
		t.Fatalf("loading manifest: %v", err)
	}
	return m
}

// parseBuildFlags parses args against a build-style flag set and returns
// the set along with the -wrap value.
func parseBuildFlags(t *testing.T, args ...string) (*flag.FlagSet, bool) {
	t.Helper()
	fs := flag.NewFlagSet("build", flag.ContinueOnError)
	wrap := fs.Bool("wrap", false, "")
	if err := fs.Parse(args); err != nil {
		t.Fatalf("parsing flags %v: %v", args, err)
	}
	return fs, *wrap
}

// ---------------------------------------------------------------------------
// Settings resolution
// ---------------------------------------------------------------------------

func TestResolveSettings_Defaults(t *testing.T) {
	fs, wrap := parseBuildFlags(t)
	if settings := resolveSettings(nil, fs, wrap); settings.Wrap {
		t.Error("no manifest and no flag should leave wraparound off")
	}
}

func TestResolveSettings_ManifestPolicy(t *testing.T) {
	m := writeManifest(t, "[tape]\nwrap = true\n")
	fs, wrap := parseBuildFlags(t)
	if settings := resolveSettings(m, fs, wrap); !settings.Wrap {
		t.Error("manifest wrap = true should enable wraparound")
	}
}

func TestResolveSettings_FlagBeatsManifest(t *testing.T) {
	m := writeManifest(t, "[tape]\nwrap = true\n")
	fs, wrap := parseBuildFlags(t, "-wrap=false")
	if settings := resolveSettings(m, fs, wrap); settings.Wrap {
		t.Error("an explicit -wrap=false should override the manifest policy")
	}
}

func TestResolveSettings_FlagEnables(t *testing.T) {
	fs, wrap := parseBuildFlags(t, "-wrap")
	if settings := resolveSettings(nil, fs, wrap); !settings.Wrap {
		t.Error("-wrap should enable wraparound without a manifest")
	}
}

func TestResolveSettings_UnsetFlagKeepsManifest(t *testing.T) {
	// Parsing other flags must not count -wrap as explicitly set.
	m := writeManifest(t, "[tape]\nwrap = true\n")
	fs := flag.NewFlagSet("build", flag.ContinueOnError)
	wrap := fs.Bool("wrap", false, "")
	fs.String("o", "", "")
	if err := fs.Parse([]string{"-o", "out.asm"}); err != nil {
		t.Fatalf("parsing flags: %v", err)
	}
	if settings := resolveSettings(m, fs, *wrap); !settings.Wrap {
		t.Error("the flag default should not override the manifest policy")
	}
}

// ---------------------------------------------------------------------------
// Error offsets
// ---------------------------------------------------------------------------

func TestErrorOffset_PositionedErrors(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{&compiler.UnmatchedCloseError{Pos: 12}, 12},
		{&compiler.UnmatchedOpenError{EOFPos: 20, OpenPos: 3}, 3},
		{&vm.TapeOverflowError{Pos: 7}, 7},
		{&vm.TapeUnderflowError{Pos: 9}, 9},
	}
	for _, tt := range tests {
		offset, ok := errorOffset(tt.err)
		if !ok {
			t.Errorf("errorOffset(%v) found no offset", tt.err)
			continue
		}
		if offset != tt.want {
			t.Errorf("errorOffset(%v) = %d, want %d", tt.err, offset, tt.want)
		}
	}
}

func TestErrorOffset_WrappedError(t *testing.T) {
	err := fmt.Errorf("build: %w", &compiler.UnmatchedCloseError{Pos: 5})
	offset, ok := errorOffset(err)
	if !ok || offset != 5 {
		t.Errorf("errorOffset(wrapped) = %d, %v, want 5, true", offset, ok)
	}
}

func TestErrorOffset_UnpositionedError(t *testing.T) {
	if _, ok := errorOffset(errors.New("boom")); ok {
		t.Error("errorOffset on an unpositioned error should report false")
	}
	if _, ok := errorOffset(vm.ErrInputExhausted); ok {
		t.Error("input exhaustion carries no source offset")
	}
}
