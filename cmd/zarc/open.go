package main

import (
	"os"

	"github.com/distr1/zarc"
)

// openArchive opens path read-only in strict verification mode. The
// *os.File it opens is intentionally leaked to the process's file table
// until exit: Archive reads from it lazily via io.ReaderAt for as long as
// the command runs.
func openArchive(path string) (*zarc.Archive, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	fi, err := f.Stat()
	if err != nil {
		return nil, err
	}
	return zarc.Open(f, fi.Size())
}
