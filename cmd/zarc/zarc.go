// Command zarc packs and unpacks Zarc archives: a Zstandard-framed,
// content-addressed archive format (see the root zarc package).
package main

import (
	"flag"
	"fmt"
	"os"
)

var debug = flag.Bool("debug", false, "format error messages with additional detail")

type verb struct {
	fn   func(args []string) error
	help string
}

var verbs = map[string]verb{
	"pack":       {cmdpack, "pack files into a new archive"},
	"unpack":     {cmdunpack, "extract files from an archive"},
	"list-files": {cmdlistfiles, "list the files an archive contains"},
	"debug":      {cmddebug, "dump frame and directory structure for inspection"},
}

func funcmain() error {
	flag.Parse()
	args := flag.Args()
	if len(args) == 0 {
		fmt.Fprintf(os.Stderr, "zarc [-flags] <command> [-flags] <args>\n\n")
		fmt.Fprintf(os.Stderr, "Commands:\n")
		for name, v := range verbs {
			fmt.Fprintf(os.Stderr, "\t%-12s %s\n", name, v.help)
		}
		os.Exit(2)
	}

	name, rest := args[0], args[1:]
	v, ok := verbs[name]
	if !ok {
		return fmt.Errorf("unknown command %q; see zarc -help", name)
	}
	if err := v.fn(rest); err != nil {
		if *debug {
			return fmt.Errorf("%s: %+v", name, err)
		}
		return fmt.Errorf("%s: %v", name, err)
	}
	return nil
}

func main() {
	if err := funcmain(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
