package integration_test

import (
	"bytes"
	"crypto/sha256"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/chazu/bfc/compiler"
	"github.com/chazu/bfc/manifest"
	"github.com/chazu/bfc/object"
	"github.com/chazu/bfc/store"
	"github.com/chazu/bfc/vm"
)

// ---------------------------------------------------------------------------
// Integration test helpers
// ---------------------------------------------------------------------------

// runProgram parses and executes source, returning whatever it wrote.
func runProgram(t *testing.T, source string, settings compiler.Settings, input string) (string, error) {
	t.Helper()
	prog, err := compiler.Parse(source)
	if err != nil {
		t.Fatalf("Parse(%q) error: %v", source, err)
	}

	var out bytes.Buffer
	interp := vm.New(prog, settings, strings.NewReader(input), &out)
	runErr := interp.Run()
	return out.String(), runErr
}

// ---------------------------------------------------------------------------
// 1. Full programs through the evaluator
// ---------------------------------------------------------------------------

func TestIntegrationE2E_HelloWorld(t *testing.T) {
	source := "++++++++[>++++[>++>+++>+++>+<<<<-]>+>+>->>+[<]<-]>>.>---.+++++++..+++.>>.<-.<.+++.------.--------.>>+.>++."

	out, err := runProgram(t, source, compiler.Settings{}, "")
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if out != "Hello World!\n" {
		t.Errorf("output = %q, want %q", out, "Hello World!\n")
	}
}

func TestIntegrationE2E_Echo(t *testing.T) {
	out, err := runProgram(t, ",.,.", compiler.Settings{}, "hi")
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if out != "hi" {
		t.Errorf("output = %q, want %q", out, "hi")
	}
}

func TestIntegrationE2E_EchoUntilExhausted(t *testing.T) {
	// ,[.,] echoes until the input runs out; exhaustion is an error but
	// everything written so far stands.
	out, err := runProgram(t, ",[.,]", compiler.Settings{}, "hi")
	if !errors.Is(err, vm.ErrInputExhausted) {
		t.Errorf("Run error = %v, want ErrInputExhausted", err)
	}
	if out != "hi" {
		t.Errorf("output = %q, want %q", out, "hi")
	}
}

func TestIntegrationE2E_CellTransfer(t *testing.T) {
	// Move 2*3 into the next cell and print it.
	out, err := runProgram(t, "++[->+++<]>.", compiler.Settings{}, "")
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if out != "\x06" {
		t.Errorf("output = %q, want %q", out, "\x06")
	}
}

// ---------------------------------------------------------------------------
// 2. Boundary policy end to end
// ---------------------------------------------------------------------------

func TestIntegrationE2E_BoundaryPolicies(t *testing.T) {
	prog, err := compiler.Parse("<")
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}

	// Fail policy: stepping left of cell zero is an error.
	interp := vm.New(prog, compiler.Settings{}, strings.NewReader(""), &bytes.Buffer{})
	var underflow *vm.TapeUnderflowError
	if err := interp.Run(); !errors.As(err, &underflow) {
		t.Errorf("Run error = %v, want TapeUnderflowError", err)
	}

	// Wrap policy: the same step lands on the last cell.
	interp = vm.New(prog, compiler.Settings{Wrap: true}, strings.NewReader(""), &bytes.Buffer{})
	if err := interp.Run(); err != nil {
		t.Fatalf("Run error under wrap: %v", err)
	}
	if interp.DP() != compiler.TapeSize-1 {
		t.Errorf("dp = %d, want %d", interp.DP(), compiler.TapeSize-1)
	}
}

// ---------------------------------------------------------------------------
// 3. Assembly generation from the same resolved program
// ---------------------------------------------------------------------------

func TestIntegrationE2E_AsmGeneration(t *testing.T) {
	prog, err := compiler.Parse("+[>-.]")
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}

	checked, err := compiler.GenerateAsm(prog, compiler.Settings{})
	if err != nil {
		t.Fatalf("GenerateAsm error: %v", err)
	}
	if !strings.Contains(checked, "format ELF64 executable 3") {
		t.Error("generated assembly should carry the ELF64 header")
	}
	if !strings.Contains(checked, "OUT_OF_BOUNDS:") {
		t.Error("fail policy assembly should carry the out-of-bounds handler")
	}

	wrapped, err := compiler.GenerateAsm(prog, compiler.Settings{Wrap: true})
	if err != nil {
		t.Fatalf("GenerateAsm error: %v", err)
	}
	if strings.Contains(wrapped, "OUT_OF_BOUNDS:") {
		t.Error("wrap policy assembly should not carry the out-of-bounds handler")
	}
	if !strings.Contains(wrapped, "TAPE rb TAPE_SIZE") {
		t.Error("generated assembly should reserve the tape")
	}
}

// ---------------------------------------------------------------------------
// 4. Object files round-trip to the same behavior
// ---------------------------------------------------------------------------

func TestIntegrationE2E_ObjectRoundTripExecutes(t *testing.T) {
	source := "++[->+++<]>."

	prog, err := compiler.Parse(source)
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}

	data, err := object.Marshal(object.FromProgram(prog, "triple.bf", []byte(source)))
	if err != nil {
		t.Fatalf("Marshal error: %v", err)
	}

	f, err := object.Unmarshal(data)
	if err != nil {
		t.Fatalf("Unmarshal error: %v", err)
	}
	if f.SourceSHA256 != sha256.Sum256([]byte(source)) {
		t.Error("object source hash does not match the source")
	}

	loaded, err := f.Program()
	if err != nil {
		t.Fatalf("Program error: %v", err)
	}

	var fromSource, fromObject bytes.Buffer
	if err := vm.New(prog, compiler.Settings{}, strings.NewReader(""), &fromSource).Run(); err != nil {
		t.Fatalf("Run (source) error: %v", err)
	}
	if err := vm.New(loaded, compiler.Settings{}, strings.NewReader(""), &fromObject).Run(); err != nil {
		t.Fatalf("Run (object) error: %v", err)
	}

	if fromSource.String() != fromObject.String() {
		t.Errorf("object output = %q, source output = %q", fromObject.String(), fromSource.String())
	}
}

// ---------------------------------------------------------------------------
// 5. Build cache holds both artifact kinds
// ---------------------------------------------------------------------------

func TestIntegrationE2E_CacheStoresBuildArtifacts(t *testing.T) {
	s, err := store.Open(filepath.Join(t.TempDir(), "cache.db"))
	if err != nil {
		t.Fatalf("Open error: %v", err)
	}
	defer s.Close()

	source := []byte("+[->+<]")
	settings := compiler.Settings{}

	prog, err := compiler.Parse(string(source))
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	asm, err := compiler.GenerateAsm(prog, settings)
	if err != nil {
		t.Fatalf("GenerateAsm error: %v", err)
	}
	objData, err := object.Marshal(object.FromProgram(prog, "main.bf", source))
	if err != nil {
		t.Fatalf("Marshal error: %v", err)
	}

	key := store.Key(source, settings)
	if err := s.Put(key, store.KindAsm, []byte(asm)); err != nil {
		t.Fatalf("Put asm error: %v", err)
	}
	if err := s.Put(key, store.KindObject, objData); err != nil {
		t.Fatalf("Put object error: %v", err)
	}

	gotAsm, err := s.Get(key, store.KindAsm)
	if err != nil {
		t.Fatalf("Get asm error: %v", err)
	}
	if string(gotAsm) != asm {
		t.Error("cached assembly does not match what was stored")
	}

	gotObj, err := s.Get(key, store.KindObject)
	if err != nil {
		t.Fatalf("Get object error: %v", err)
	}
	f, err := object.Unmarshal(gotObj)
	if err != nil {
		t.Fatalf("Unmarshal cached object error: %v", err)
	}
	loaded, err := f.Program()
	if err != nil {
		t.Fatalf("Program error: %v", err)
	}
	if len(loaded.Ops) != len(prog.Ops) {
		t.Errorf("cached program has %d ops, want %d", len(loaded.Ops), len(prog.Ops))
	}

	// The boundary policy is part of the key.
	wrapKey := store.Key(source, compiler.Settings{Wrap: true})
	if _, err := s.Get(wrapKey, store.KindAsm); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Get with wrap key error = %v, want ErrNotFound", err)
	}
}

// ---------------------------------------------------------------------------
// 6. Manifest policy drives execution
// ---------------------------------------------------------------------------

func TestIntegrationE2E_ManifestDrivesPolicy(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "src")
	if err := os.MkdirAll(sub, 0o755); err != nil {
		t.Fatalf("MkdirAll error: %v", err)
	}

	toml := "[project]\nname = \"wrapped\"\n\n[tape]\nwrap = true\n"
	if err := os.WriteFile(filepath.Join(dir, "bfc.toml"), []byte(toml), 0o644); err != nil {
		t.Fatalf("WriteFile error: %v", err)
	}

	m, err := manifest.FindAndLoad(sub)
	if err != nil {
		t.Fatalf("FindAndLoad error: %v", err)
	}
	if m == nil {
		t.Fatal("FindAndLoad should discover the manifest from a subdirectory")
	}

	prog, err := compiler.Parse("<")
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	interp := vm.New(prog, m.Settings(), strings.NewReader(""), &bytes.Buffer{})
	if err := interp.Run(); err != nil {
		t.Fatalf("Run under manifest policy error: %v", err)
	}
	if interp.DP() != compiler.TapeSize-1 {
		t.Errorf("dp = %d, want %d", interp.DP(), compiler.TapeSize-1)
	}
}
