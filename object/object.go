// Package object defines the compiled-artifact container for resolved
// programs: a versioned CBOR envelope carrying the operation sequence
// plus enough source metadata to verify what it was built from.
package object

import (
	"crypto/sha256"
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/chazu/bfc/compiler"
)

// FormatVersion is the current object file format version.
const FormatVersion = 1

// cborEncMode uses canonical encoding so the same program always
// produces identical bytes.
var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("object: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// Op is the wire form of one operation.
type Op struct {
	Kind int `cbor:"1,keyasint"`
	Run  int `cbor:"2,keyasint,omitempty"`
	Jump int `cbor:"3,keyasint,omitempty"`
	Pos  int `cbor:"4,keyasint,omitempty"`
}

// File is a compiled program artifact. The operation sequence is stored
// fully resolved; loading one skips tokenizing and resolution entirely.
type File struct {
	Version      int      `cbor:"1,keyasint"`
	SourceName   string   `cbor:"2,keyasint,omitempty"`
	SourceSHA256 [32]byte `cbor:"3,keyasint"`
	Ops          []Op     `cbor:"4,keyasint"`
}

// FromProgram packages a resolved program with the source it was built
// from.
func FromProgram(prog *compiler.Program, sourceName string, source []byte) *File {
	f := &File{
		Version:      FormatVersion,
		SourceName:   sourceName,
		SourceSHA256: sha256.Sum256(source),
		Ops:          make([]Op, len(prog.Ops)),
	}
	for i, op := range prog.Ops {
		f.Ops[i] = Op{Kind: int(op.Kind), Run: op.Run, Jump: op.Jump, Pos: op.Pos}
	}
	return f
}

// Program reconstructs the resolved program carried by the file.
func (f *File) Program() (*compiler.Program, error) {
	if f.Version != FormatVersion {
		return nil, fmt.Errorf("object: unsupported format version %d (want %d)", f.Version, FormatVersion)
	}

	ops := make([]compiler.Op, len(f.Ops))
	for i, op := range f.Ops {
		if op.Kind < int(compiler.OpEnd) || op.Kind > int(compiler.OpLoopEnd) {
			return nil, fmt.Errorf("object: op %d has unknown kind %d", i, op.Kind)
		}
		ops[i] = compiler.Op{Kind: compiler.OpKind(op.Kind), Run: op.Run, Jump: op.Jump, Pos: op.Pos}
	}
	if len(ops) == 0 || ops[len(ops)-1].Kind != compiler.OpEnd {
		return nil, fmt.Errorf("object: missing end terminator")
	}
	return &compiler.Program{Ops: ops}, nil
}

// Marshal serializes a File to CBOR bytes.
func Marshal(f *File) ([]byte, error) {
	return cborEncMode.Marshal(f)
}

// Unmarshal deserializes a File from CBOR bytes.
func Unmarshal(data []byte) (*File, error) {
	var f File
	if err := cbor.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("object: unmarshal file: %w", err)
	}
	return &f, nil
}
