package main

import (
	"flag"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/google/renameio"

	"github.com/distr1/zarc"
	"github.com/distr1/zarc/internal/directory"
	"github.com/distr1/zarc/internal/oninterrupt"
)

const packHelp = `zarc pack -out=<archive> <path> [<path>...]

Pack one or more files or directory trees into a new Zarc archive.
`

func cmdpack(args []string) error {
	fset := flag.NewFlagSet("pack", flag.ExitOnError)
	out := fset.String("out", "", "path to write the archive to")
	fset.Usage = usage(fset, packHelp)
	fset.Parse(args)

	roots := fset.Args()
	if *out == "" || len(roots) == 0 {
		return fmt.Errorf("syntax: zarc pack -out=<archive> <path> [<path>...]")
	}

	f, err := renameio.TempFile("", *out)
	if err != nil {
		return err
	}
	defer f.Cleanup()
	oninterrupt.Register(func() { f.Cleanup() })

	p, err := zarc.NewPacker(f, time.Now())
	if err != nil {
		return err
	}

	for _, root := range roots {
		if err := packTree(p, root); err != nil {
			return err
		}
	}

	if err := p.Finalize(); err != nil {
		return err
	}
	return f.CloseAtomicallyReplace()
}

func packTree(p *zarc.Packer, root string) error {
	root = filepath.Clean(root)
	base := filepath.Dir(root)
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(base, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		return packEntry(p, path, rel, d)
	})
}

func packEntry(p *zarc.Packer, path, rel string, d fs.DirEntry) error {
	fi, err := d.Info()
	if err != nil {
		return fmt.Errorf("stat %s: %w", path, err)
	}
	st, ok := fi.Sys().(*syscall.Stat_t)
	if !ok {
		return fmt.Errorf("stat %s: no syscall.Stat_t", path)
	}

	in := zarc.FileInput{
		Name:     strings.Split(filepath.ToSlash(rel), "/"),
		Inserted: time.Now(),
		Mtime:    fi.ModTime(),
		Atime:    time.Unix(st.Atim.Sec, st.Atim.Nsec),
		Mode:     uint32(fi.Mode().Perm()),
		Owner:    zarc.Owner{ID: st.Uid, HasID: true},
		Group: zarc.Owner{ID: st.Gid, HasID: true},
	}

	switch {
	case d.Type()&os.ModeSymlink != 0:
		target, err := os.Readlink(path)
		if err != nil {
			return fmt.Errorf("readlink %s: %w", path, err)
		}
		code := uint16(directory.SpecialSymlinkInternal)
		if filepath.IsAbs(target) {
			code = directory.SpecialSymlinkExtAbs
		} else if strings.HasPrefix(target, "..") {
			code = directory.SpecialSymlinkExtRel
		}
		in.Special = &zarc.SpecialFile{Code: code, Target: target}

	case d.IsDir():
		in.Special = &zarc.SpecialFile{Code: directory.SpecialDirEntry}

	case fi.Mode().IsRegular():
		content, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("open %s: %w", path, err)
		}
		defer content.Close()
		in.Content = content

	default:
		log.Printf("skipping %s: not a regular file, directory or symlink", path)
		return nil
	}

	return p.AddFile(in)
}
