// Copyright 2023 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Xv6disk builds and extracts the txtar disk images used by the
// xv6unix package and the xv6run command.
//
// Usage:
//
//	xv6disk [-o out.txtar] [-nodev] dir
//	xv6disk -x [-o outdir] disk.txtar
//
// The first form packs the host directory dir into a txtar disk
// image (default standard output), adding the standard /dev entries
// unless -nodev is given. The second form extracts a txtar disk
// into a host directory (default _fs); device entries and extra
// hard links have no host form and are skipped.
package main

import (
	"bytes"
	"encoding/base64"
	"flag"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"unicode/utf8"

	"golang.org/x/tools/txtar"

	"rsc.io/xv6/xv6unix"
)

var (
	outfile = flag.String("o", "", "write output to `file` (default standard output, or _fs with -x)")
	nodev   = flag.Bool("nodev", false, "do not add the standard /dev entries")
	xflag   = flag.Bool("x", false, "extract txtar disk")
)

func usage() {
	fmt.Fprintf(os.Stderr, "usage: xv6disk [-o out.txtar] [-nodev] dir\n")
	fmt.Fprintf(os.Stderr, "       xv6disk -x [-o outdir] disk.txtar\n")
	os.Exit(2)
}

func main() {
	log.SetPrefix("xv6disk: ")
	log.SetFlags(0)
	flag.Usage = usage
	flag.Parse()
	args := flag.Args()
	if len(args) != 1 {
		usage()
	}

	if *xflag {
		extract(args[0])
	} else {
		build(args[0])
	}
}

type entry struct {
	name  string // slash-separated path within the image
	mode  uint32
	mtime int64
	major int
	minor int
	data  []byte
}

func build(dir string) {
	var list []*entry
	root := os.DirFS(dir)
	err := fs.WalkDir(root, ".", func(name string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if name == "." {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		e := &entry{name: name, mtime: info.ModTime().Unix()}
		switch {
		case d.IsDir():
			e.mode = 0o040000 | uint32(info.Mode().Perm())
		case info.Mode().IsRegular():
			e.mode = 0o100000 | uint32(info.Mode().Perm())
			data, err := fs.ReadFile(root, name)
			if err != nil {
				return err
			}
			e.data = data
		default:
			// Symlinks, sockets, host devices: nothing the
			// simulator can use.
			return nil
		}
		list = append(list, e)
		return nil
	})
	if err != nil {
		log.Fatal(err)
	}

	if !*nodev {
		list = append(list,
			&entry{name: "dev", mode: 0o040755},
			&entry{name: "dev/console", mode: 0o020666, major: xv6unix.CONSOLE},
			&entry{name: "dev/null", mode: 0o020666, major: xv6unix.NULLDEV},
		)
	}

	slices.SortFunc(list, func(x, y *entry) int { return pathCompare(x.name, y.name) })

	w := os.Stdout
	if *outfile != "" {
		f, err := os.Create(*outfile)
		if err != nil {
			log.Fatal(err)
		}
		defer f.Close()
		w = f
	}

	fmt.Fprintf(w, "xv6 disk image built from %s.\n\n", dir)
	for _, e := range list {
		dev := ""
		if e.mode&0o170000 == 0o020000 {
			dev = fmt.Sprintf(" major=%d minor=%d", e.major, e.minor)
		}
		b64 := ""
		c := e.data
		if len(c) > 0 && (!utf8.Valid(c) || bytes.HasPrefix(c, []byte("-- ")) || bytes.Contains(c, []byte("\n-- ")) || !bytes.HasSuffix(c, []byte("\n"))) {
			b64 = " base64=1"
			c = []byte(wrap(base64.StdEncoding.EncodeToString(c)))
		}
		fmt.Fprintf(w, "-- %s mode=%07o uid=0 gid=0 atime=%d mtime=%d%s%s --\n%s",
			e.name, e.mode, e.mtime, e.mtime, dev, b64, c)
	}
}

func extract(file string) {
	if *outfile == "" {
		*outfile = "_fs"
	}
	data, err := os.ReadFile(file)
	if err != nil {
		log.Fatal(err)
	}
	ar := txtar.Parse(data)
	for _, f := range ar.Files {
		name, _, _ := strings.Cut(f.Name, " ")
		targ := filepath.Join(*outfile, filepath.FromSlash(name))
		switch {
		case strings.Contains(f.Name, "mode=0040"):
			if err := os.MkdirAll(targ, 0777); err != nil {
				log.Fatal(err)
			}
		case strings.Contains(f.Name, "mode=0100"):
			data := f.Data
			if strings.Contains(f.Name, "base64=1") {
				dec, err := base64.StdEncoding.DecodeString(string(data))
				if err != nil {
					log.Fatalf("decoding %s: %v", name, err)
				}
				data = dec
			}
			if err := os.MkdirAll(filepath.Dir(targ), 0777); err != nil {
				log.Fatal(err)
			}
			if err := os.WriteFile(targ, data, 0666); err != nil {
				log.Fatal(err)
			}
		}
	}
}

func wrap(text string) string {
	if len(text) < 70 {
		return text + "\n"
	}
	return text[:70] + "\n" + wrap(text[70:])
}

func pathCompare(x, y string) int {
	return strings.Compare(strings.ReplaceAll(x, "/", "\x01"), strings.ReplaceAll(y, "/", "\x01"))
}
