// Command bowtie evaluates bow-tie diagram files from the command line.
//
//	bowtie evaluate [-risk] [-json] diagram.json
//	bowtie validate diagram.json
//	bowtie export [-collapse ids] [-collapse-consequences ids] [-expand ids] [-highlight id] [-layout] diagram.json
//	bowtie generate [-threats n] [-consequences n] [-barriers n] [-fail p] [-cross n] [-seed s]
//	bowtie token -sub name [-role viewer|editor|admin] [-ttl 12h]
//
// A file of "-" reads standard input. Archived snapshots (*.json.sz) are
// decompressed transparently.
package main

import (
	"fmt"
	"io"
	"os"
)

type command struct {
	name  string
	usage string
	run   func(env *env, args []string) error
}

// env carries the process streams so commands can be tested
type env struct {
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
	getenv func(string) string
}

var commands = []command{
	{"evaluate", "print the breach report of a diagram", cmdEvaluate},
	{"validate", "check a diagram document", cmdValidate},
	{"export", "print the rendered view graph as JSON", cmdExport},
	{"generate", "print a random well-formed diagram", cmdGenerate},
	{"token", "issue an API bearer token (needs BOWTIE_JWT_SECRET)", cmdToken},
}

func main() {
	os.Exit(run(os.Args[1:], &env{
		stdin:  os.Stdin,
		stdout: os.Stdout,
		stderr: os.Stderr,
		getenv: os.Getenv,
	}))
}

func run(args []string, e *env) int {
	if len(args) == 0 || args[0] == "help" || args[0] == "-h" || args[0] == "--help" {
		usage(e.stderr)
		if len(args) == 0 {
			return 2
		}
		return 0
	}

	for _, c := range commands {
		if c.name != args[0] {
			continue
		}
		if err := c.run(e, args[1:]); err != nil {
			fmt.Fprintf(e.stderr, "bowtie %s: %v\n", c.name, err)
			return 1
		}
		return 0
	}

	fmt.Fprintf(e.stderr, "bowtie: unknown command %q\n\n", args[0])
	usage(e.stderr)
	return 2
}

func usage(w io.Writer) {
	fmt.Fprintln(w, "Usage: bowtie <command> [flags] [file]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	for _, c := range commands {
		fmt.Fprintf(w, "  %-10s %s\n", c.name, c.usage)
	}
}
