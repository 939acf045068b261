package main

import (
	"os"
	"testing"

	"github.com/rogpeppe/go-internal/testscript"
)

// TestMain lets the test binary double as the hxslc command: testscript
// re-execs this binary with TESTSCRIPT_COMMAND=hxslc set, routing straight
// into Main instead of going through a real os/exec of a built binary.
func TestMain(m *testing.M) {
	os.Exit(testscript.RunMain(m, map[string]func() int{
		"hxslc": Main,
	}))
}

// TestScripts drives every testdata/script/*.txt scenario end to end
// through the real CLI: building a fixture, dumping its IR/CFG, running
// it, and round-tripping through a serialized module file.
func TestScripts(t *testing.T) {
	testscript.Run(t, testscript.Params{
		Dir: "testdata/script",
	})
}
