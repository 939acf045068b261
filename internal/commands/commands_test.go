package commands

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// chdirTemp switches the process into a fresh temporary directory for the
// duration of the test, since Demo/Digest operate on relative paths.
func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	prev, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Chdir(prev) })
	return dir
}

func TestDemoListsFixtures(t *testing.T) {
	chdirTemp(t)
	var buf bytes.Buffer
	if err := Demo(&buf, []string{"list"}); err != nil {
		t.Fatalf("Demo: %v", err)
	}
	for _, want := range []string{"s1", "s2", "s3", "s5"} {
		if !strings.Contains(buf.String(), want) {
			t.Errorf("Demo list output missing %q:\n%s", want, buf.String())
		}
	}
}

func TestDemoWritesModuleFile(t *testing.T) {
	dir := chdirTemp(t)
	var buf bytes.Buffer
	if err := Demo(&buf, []string{"s1"}); err != nil {
		t.Fatalf("Demo: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "s1.hxslmod")); err != nil {
		t.Fatalf("expected s1.hxslmod to exist: %v", err)
	}
}

func TestDemoUnknownFixture(t *testing.T) {
	chdirTemp(t)
	var buf bytes.Buffer
	if err := Demo(&buf, []string{"nope"}); err == nil {
		t.Fatal("expected an error for an unknown fixture")
	}
}

func TestDumpDemoTarget(t *testing.T) {
	var buf bytes.Buffer
	if err := Dump(&buf, []string{"demo:s3"}, false); err != nil {
		t.Fatalf("Dump: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"function h", "cfg {", "dominators {", "loops {"} {
		if !strings.Contains(out, want) {
			t.Errorf("Dump output missing %q:\n%s", want, out)
		}
	}
}

func TestRunDemoTarget(t *testing.T) {
	var buf bytes.Buffer
	if err := Run(&buf, []string{"demo:s1", "f", "41"}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := strings.TrimSpace(buf.String()); got != "42" {
		t.Fatalf("Run output = %q, want %q", got, "42")
	}
}

func TestRunUnknownFunction(t *testing.T) {
	var buf bytes.Buffer
	if err := Run(&buf, []string{"demo:s1", "nope"}); err == nil {
		t.Fatal("expected an error for an unknown function name")
	}
}

func TestDigestRoundTrip(t *testing.T) {
	chdirTemp(t)
	var demoOut bytes.Buffer
	if err := Demo(&demoOut, []string{"s2"}); err != nil {
		t.Fatalf("Demo: %v", err)
	}
	var buf bytes.Buffer
	if err := Digest(&buf, []string{"s2.hxslmod"}); err != nil {
		t.Fatalf("Digest: %v", err)
	}
	if !strings.Contains(buf.String(), "s2.hxslmod") {
		t.Fatalf("Digest output missing file name:\n%s", buf.String())
	}
}

func TestLLVMDemoTarget(t *testing.T) {
	var buf bytes.Buffer
	if err := LLVM(&buf, []string{"demo:s2"}); err != nil {
		t.Fatalf("LLVM: %v", err)
	}
	if !strings.Contains(buf.String(), "structural invariants hold: true") {
		t.Fatalf("LLVM output missing invariant line:\n%s", buf.String())
	}
}
