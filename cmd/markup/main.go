/*
Markup is a command-line front-end for github.com/gomarkup/markup.

Usage:

	markup fmt [flags] FILE
	markup lint [flags] FILE

The flags are:

	-x, --xml
	    Treat the input as XML instead of the default HTML5.

	-o, --output FILE
	    Write fmt output to FILE instead of stdout.

"fmt" parses FILE and re-serializes it, recovering from and correcting
any well-formedness or encoding errors along the way. "lint" parses
FILE and prints one "[line:col] kind: operand" line per reported error
to stderr, exiting with a non-zero status if any were found.
*/
package main

import (
	"fmt"
	"os"

	"github.com/gomarkup/markup"
	"github.com/gomarkup/markup/stream"
	"github.com/spf13/pflag"
)

const (
	exitSuccess = iota
	exitLintErrors
	exitUsageError
	exitIOError
)

var (
	flagXML    *bool   = pflag.BoolP("xml", "x", false, "Treat the input as XML instead of HTML5")
	flagOutput *string = pflag.StringP("output", "o", "", "Write fmt output to this file instead of stdout")
)

func main() {
	pflag.Parse()
	if pflag.NArg() < 2 {
		fmt.Fprintln(os.Stderr, "usage: markup <fmt|lint> FILE")
		os.Exit(exitUsageError)
	}

	cmd, file := pflag.Arg(0), pflag.Arg(1)

	f, err := os.Open(file)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitIOError)
	}
	defer f.Close()

	switch cmd {
	case "fmt":
		os.Exit(runFmt(f))
	case "lint":
		os.Exit(runLint(f))
	default:
		fmt.Fprintf(os.Stderr, "markup: unknown subcommand %q\n", cmd)
		os.Exit(exitUsageError)
	}
}

func runFmt(f *os.File) int {
	out := os.Stdout
	if *flagOutput != "" {
		w, err := os.Create(*flagOutput)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return exitIOError
		}
		defer w.Close()
		return writeFmt(f, w)
	}
	return writeFmt(f, out)
}

func writeFmt(f *os.File, out *os.File) int {
	opts := markup.Options{}
	if *flagXML {
		sig := markup.ParseXML(f, opts)
		if err := markup.WriteXML(out, sig, opts); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return exitIOError
		}
		return exitSuccess
	}
	sig := markup.ParseHTML(f, opts)
	if err := markup.WriteHTML(out, sig, opts); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitIOError
	}
	return exitSuccess
}

func runLint(f *os.File) int {
	var reported int
	opts := markup.Options{Report: func(loc markup.Location, err error) error {
		reported++
		fmt.Fprintln(os.Stderr, markup.RenderError(loc, err))
		return nil
	}}

	var drainErr error
	if *flagXML {
		drainErr = stream.Drain(markup.ParseXML(f, opts))
	} else {
		drainErr = stream.Drain(markup.ParseHTML(f, opts))
	}
	if drainErr != nil {
		fmt.Fprintln(os.Stderr, drainErr)
		return exitIOError
	}
	if reported > 0 {
		return exitLintErrors
	}
	return exitSuccess
}
