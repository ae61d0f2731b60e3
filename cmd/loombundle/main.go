// Command loombundle writes the script artifact embedded into loom. It is run
// by go generate in internal/embedded.
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/maxmcd/shaderloom/internal/bundle"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(args []string) error {
	fs := flag.NewFlagSet("loombundle", flag.ContinueOnError)
	out := fs.String("o", "bundle.star", "artifact to write")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		return errors.New("loombundle is run like: loombundle -o bundle.star ./scripts [./more-scripts]")
	}
	digest, err := bundle.Bundle(*out, fs.Args()...)
	if err != nil {
		return err
	}
	fmt.Printf("%s %s\n", digest, *out)
	return nil
}
