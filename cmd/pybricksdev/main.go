// Command pybricksdev compiles MicroPython programs, uploads them to a
// Pybricks hub over Bluetooth Low Energy and runs them.
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
)

const usage = `Usage: pybricksdev <command> [flags] [args]

Commands:
  run      <file.py | project dir>   compile, upload and run a program
  compile  <file.py | project dir>   compile a program to a multi-module image
  inspect  <image.mpy>               list the modules of a compiled image
  stop                               stop the program running on the hub
  monitor                            interactive status and output monitor

Run 'pybricksdev <command> -h' for the flags of a command.
`

type command func(args []string) error

var commands = map[string]command{
	"run":     runCmd,
	"compile": compileCmd,
	"inspect": inspectCmd,
	"stop":    stopCmd,
	"monitor": monitorCmd,
}

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}

	name := os.Args[1]
	if name == "-h" || name == "--help" || name == "help" {
		fmt.Print(usage)
		return
	}

	cmd, ok := commands[name]
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", name, usage)
		os.Exit(1)
	}

	if err := cmd(os.Args[2:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
