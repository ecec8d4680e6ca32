package store

import (
	"bytes"
	"errors"
	"path/filepath"
	"testing"

	"github.com/chazu/bfc/compiler"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "cache.db"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStorePutGet(t *testing.T) {
	s := openTestStore(t)
	key := Key([]byte("+++"), compiler.Settings{})

	if err := s.Put(key, KindAsm, []byte("format ELF64")); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	data, err := s.Get(key, KindAsm)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !bytes.Equal(data, []byte("format ELF64")) {
		t.Errorf("Get() = %q, want %q", data, "format ELF64")
	}

	ok, err := s.Has(key, KindAsm)
	if err != nil || !ok {
		t.Errorf("Has() = %v, %v, want true, nil", ok, err)
	}
}

func TestStoreGetMissing(t *testing.T) {
	s := openTestStore(t)
	key := Key([]byte("missing"), compiler.Settings{})

	if _, err := s.Get(key, KindAsm); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get() error = %v, want ErrNotFound", err)
	}

	ok, err := s.Has(key, KindObject)
	if err != nil || ok {
		t.Errorf("Has() = %v, %v, want false, nil", ok, err)
	}
}

func TestStoreKindsAreIndependent(t *testing.T) {
	s := openTestStore(t)
	key := Key([]byte("+"), compiler.Settings{})

	if err := s.Put(key, KindAsm, []byte("asm")); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if _, err := s.Get(key, KindObject); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get(KindObject) error = %v, want ErrNotFound", err)
	}
}

func TestStoreReplace(t *testing.T) {
	s := openTestStore(t)
	key := Key([]byte("+"), compiler.Settings{})

	if err := s.Put(key, KindAsm, []byte("old")); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if err := s.Put(key, KindAsm, []byte("new")); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	data, err := s.Get(key, KindAsm)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if string(data) != "new" {
		t.Errorf("Get() = %q, want %q", data, "new")
	}
}

func TestStorePersistsAcrossOpens(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.db")
	key := Key([]byte(",."), compiler.Settings{Wrap: true})

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if err := s.Put(key, KindObject, []byte{0xA1, 0x01, 0x01}); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	s, err = Open(path)
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	defer s.Close()

	data, err := s.Get(key, KindObject)
	if err != nil {
		t.Fatalf("Get() after reopen error = %v", err)
	}
	if !bytes.Equal(data, []byte{0xA1, 0x01, 0x01}) {
		t.Errorf("Get() after reopen = %v", data)
	}
}

func TestKey(t *testing.T) {
	src := []byte("++[->+<]")

	if Key(src, compiler.Settings{}) != Key(src, compiler.Settings{}) {
		t.Error("same source and settings should produce the same key")
	}
	if Key(src, compiler.Settings{}) == Key(src, compiler.Settings{Wrap: true}) {
		t.Error("boundary policy should change the key")
	}
	if Key(src, compiler.Settings{}) == Key([]byte("+++"), compiler.Settings{}) {
		t.Error("different sources should produce different keys")
	}
}
