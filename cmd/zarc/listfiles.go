package main

import (
	"flag"
	"fmt"
	"os"
)

const listFilesHelp = `zarc list-files [-edition=N] <archive>

List the files contained in an archive. By default every edition is shown;
-edition restricts the listing to files added by one specific edition (0 is
the current edition).
`

func cmdlistfiles(args []string) error {
	fset := flag.NewFlagSet("list-files", flag.ExitOnError)
	edition := fset.Int("edition", -1, "restrict the listing to one edition (-1 means all editions)")
	fset.Usage = usage(fset, listFilesHelp)
	fset.Parse(args)

	rest := fset.Args()
	if len(rest) != 1 {
		return fmt.Errorf("syntax: zarc list-files [-edition=N] <archive>")
	}

	arc, err := openArchive(rest[0])
	if err != nil {
		return err
	}

	for _, f := range arc.Files(*edition) {
		size := "-"
		if length, ok := arc.ContentLength(f.ContentDigest); ok {
			size = fmt.Sprintf("%d", length)
		}
		fmt.Fprintf(os.Stdout, "%6d  %10s  %s\n", f.EditionAdded, size, f.Name.Path())
	}
	return nil
}
