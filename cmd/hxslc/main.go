// cmd/hxslc is a thin demonstration driver over the middle-end core:
// build one of the canonical fixture programs or a ".hxslmod" file on
// disk, dump its IR/CFG/dominator-tree/loop-tree, interpret a function,
// or fingerprint a module file. The real frontend (lexing, parsing,
// semantic analysis) that would turn HXSL source into a typed AST is out
// of scope for this repository; dispatch style (flat command table,
// alias map, per-command usage) is grounded on sentra's cmd/sentra/main.go.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-isatty"
	"github.com/ncruces/go-strftime"

	"hxsl/internal/commands"
)

const version = "0.1.0"

var buildDate = time.Now()

var commandAliases = map[string]string{
	"d": "dump",
	"r": "run",
	"v": "version",
	"x": "digest",
}

func main() {
	os.Exit(Main())
}

// Main runs the CLI over os.Args[1:] and returns a process exit code. It is
// split out of main so the testscript harness (cmd/hxslc/main_test.go) can
// register it as a subprocess command without an os.Exit inside main itself.
func Main() int {
	args := os.Args[1:]
	if len(args) == 0 {
		showUsage()
		return 1
	}

	name := args[0]
	if alias, ok := commandAliases[name]; ok {
		name = alias
	}
	rest := args[1:]

	colorEnabled := isatty.IsTerminal(os.Stdout.Fd())

	var err error
	switch name {
	case "help", "-h", "--help":
		showUsage()
		return 0
	case "version", "-v", "--version":
		showVersion()
		return 0
	case "demo":
		err = commands.Demo(os.Stdout, rest)
	case "dump":
		err = commands.Dump(os.Stdout, rest, colorEnabled)
	case "run":
		err = commands.Run(os.Stdout, rest)
	case "digest":
		err = commands.Digest(os.Stdout, rest)
	case "llvm":
		err = commands.LLVM(os.Stdout, rest)
	default:
		fmt.Fprintf(os.Stderr, "hxslc: unknown command %q\n", name)
		showUsage()
		return 1
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "hxslc: %v\n", err)
		return 1
	}
	return 0
}

func showUsage() {
	fmt.Println(`hxslc - HXSL middle-end compiler core driver

Usage:
  hxslc demo list                    list built-in fixture programs
  hxslc demo <name>                  build a fixture and write it to <name>.hxslmod
  hxslc dump <target>                print IR, CFG, dominators, and loop tree
  hxslc run <target> <func> [args]   interpret a function with integer args
  hxslc digest <file>                print a content fingerprint for a module file
  hxslc llvm <target>                render the CFG's block shape as textual LLVM IR
  hxslc version                      print build information

<target> is either a path to a ".hxslmod" file or "demo:<name>" for a
built-in fixture (see "hxslc demo list").`)
}

func showVersion() {
	buildID := uuid.New()
	stamp, _ := strftime.Format("%Y-%m-%d %H:%M", buildDate)
	fmt.Printf("hxslc %s (built %s, session %s)\n", version, stamp, buildID)
}
