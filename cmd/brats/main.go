// Package main provides the brats CLI: synthetic sample generation, sample
// inspection and U-Net forward passes on the CPU backend.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
)

const version = "v0.1.0"

type command struct {
	name  string
	usage string
	run   func(args []string, stdout io.Writer) error
}

var commands = []command{
	{"version", "Show version", runVersion},
	{"devices", "Show the compute backend and CPU features", runDevices},
	{"summary", "Print the network architecture and parameter count", runSummary},
	{"synth", "Write synthetic sample files", runSynth},
	{"inspect", "Load samples and print normalized channel statistics", runInspect},
	{"forward", "Run the network on a batch of samples", runForward},
}

func main() {
	log.SetFlags(0)
	log.SetPrefix("brats: ")

	if len(os.Args) < 2 {
		printUsage(os.Stdout)
		return
	}

	name := os.Args[1]
	for _, cmd := range commands {
		if cmd.name != name {
			continue
		}
		if err := cmd.run(os.Args[2:], os.Stdout); err != nil {
			if errors.Is(err, flag.ErrHelp) {
				return
			}
			log.Fatalf("%s: %v", name, err)
		}
		return
	}

	printUsage(os.Stderr)
	log.Fatalf("unknown command %q", name)
}

func printUsage(w io.Writer) {
	fmt.Fprintf(w, "brats %s - BraTS slice loader and U-Net\n\n", version)
	fmt.Fprintln(w, "Usage: brats <command> [flags]")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Commands:")
	for _, cmd := range commands {
		fmt.Fprintf(w, "  %-10s %s\n", cmd.name, cmd.usage)
	}
}

func newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	return fs
}

func runVersion(_ []string, stdout io.Writer) error {
	fmt.Fprintf(stdout, "brats %s\n", version)
	return nil
}
