package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/distr1/zarc"
	"github.com/distr1/zarc/internal/directory"
)

const unpackHelp = `zarc unpack -out=<directory> <archive>

Extract every file in an archive into an existing or newly created
directory, preserving its directory structure.
`

func cmdunpack(args []string) error {
	fset := flag.NewFlagSet("unpack", flag.ExitOnError)
	out := fset.String("out", "", "directory to extract into")
	insecure := fset.Bool("insecure", false, "continue past integrity/signature failures instead of aborting")
	fset.Usage = usage(fset, unpackHelp)
	fset.Parse(args)

	rest := fset.Args()
	if *out == "" || len(rest) != 1 {
		return fmt.Errorf("syntax: zarc unpack -out=<directory> <archive>")
	}

	f, err := os.Open(rest[0])
	if err != nil {
		return err
	}
	defer f.Close()
	fi, err := f.Stat()
	if err != nil {
		return err
	}

	var opts []zarc.OpenOption
	if *insecure {
		opts = append(opts, zarc.WithInsecureMode())
	}
	arc, err := zarc.Open(f, fi.Size(), opts...)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(*out, 0755); err != nil {
		return err
	}

	for _, file := range arc.Files(-1) {
		if err := unpackFile(arc, *out, file); err != nil {
			return fmt.Errorf("%s: %w", file.Name.Path(), err)
		}
	}
	return nil
}

func unpackFile(arc *zarc.Archive, outDir string, file directory.FileEntry) error {
	dest := filepath.Join(outDir, filepath.FromSlash(file.Name.Path()))

	if file.Special != nil && file.Special.Code == directory.SpecialDirEntry {
		return os.MkdirAll(dest, os.FileMode(file.Mode)|0700)
	}
	if file.Special != nil && (file.Special.Code == directory.SpecialSymlinkInternal ||
		file.Special.Code == directory.SpecialSymlinkExtAbs ||
		file.Special.Code == directory.SpecialSymlinkExtRel) {
		if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
			return err
		}
		return os.Symlink(file.Special.Target, dest)
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return err
	}
	w, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, os.FileMode(file.Mode)|0600)
	if err != nil {
		return err
	}
	defer w.Close()
	return arc.Extract(file.Name, w)
}
