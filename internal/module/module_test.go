package module

import (
	"os"
	"path/filepath"
	"testing"

	"hxsl/internal/fixtures"
	"hxsl/internal/hxir"
	"hxsl/internal/irbuilder"
	"hxsl/internal/layout"
	"hxsl/internal/modio"
)

func writeFixtureModule(t *testing.T, dir, name string) {
	t.Helper()
	prog := fixtures.Named(name)
	if prog == nil {
		t.Fatalf("unknown fixture %q", name)
	}
	blobs := make(map[*layout.Function]*hxir.CodeBlob, len(prog.Bodies))
	for decl, fn := range prog.Bodies {
		blobs[decl] = irbuilder.New(nil).Build(fn)
	}
	data := modio.WriteModule(prog.Module, blobs)
	if err := os.WriteFile(filepath.Join(dir, name+".hxslmod"), data, 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestLoadResolvesViaSearchPath(t *testing.T) {
	dir := t.TempDir()
	writeFixtureModule(t, dir, "s1")

	l := &Loader{cache: make(map[string]*layout.Module), searchPath: []string{dir}}
	mod, err := l.Load("s1")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(mod.Functions) != 1 || mod.Functions[0].Name_ != "f" {
		t.Fatalf("unexpected module contents: %+v", mod.Functions)
	}
}

func TestLoadCachesResult(t *testing.T) {
	dir := t.TempDir()
	writeFixtureModule(t, dir, "s2")

	l := &Loader{cache: make(map[string]*layout.Module), searchPath: []string{dir}}
	first, err := l.Load("s2")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := os.Remove(filepath.Join(dir, "s2.hxslmod")); err != nil {
		t.Fatal(err)
	}
	second, err := l.Load("s2")
	if err != nil {
		t.Fatalf("Load after file removal should hit cache, got error: %v", err)
	}
	if first != second {
		t.Fatal("expected the cached *layout.Module pointer to be reused")
	}
}

func TestLoadDirectPath(t *testing.T) {
	dir := t.TempDir()
	writeFixtureModule(t, dir, "s3")

	l := NewLoader()
	path := filepath.Join(dir, "s3.hxslmod")
	mod, err := l.Load(path)
	if err != nil {
		t.Fatalf("Load(%q): %v", path, err)
	}
	if len(mod.Functions) != 1 || mod.Functions[0].Name_ != "h" {
		t.Fatalf("unexpected module contents: %+v", mod.Functions)
	}
}

func TestLoadMissingModule(t *testing.T) {
	l := &Loader{cache: make(map[string]*layout.Module), searchPath: []string{t.TempDir()}}
	if _, err := l.Load("does-not-exist"); err == nil {
		t.Fatal("expected an error for a missing module")
	}
}

func TestAddSearchPathAndClearCache(t *testing.T) {
	dir := t.TempDir()
	writeFixtureModule(t, dir, "s1")

	l := NewLoader()
	l.AddSearchPath(dir)
	if got := l.SearchPath(); got[len(got)-1] != dir {
		t.Fatalf("AddSearchPath did not append %q, got %v", dir, got)
	}
	if _, err := l.Load("s1"); err != nil {
		t.Fatalf("Load: %v", err)
	}
	l.ClearCache()
	if _, ok := l.cache["s1"]; ok {
		t.Fatal("ClearCache left a stale entry")
	}
}
