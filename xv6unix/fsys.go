// Copyright 2023 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package xv6unix

import (
	_ "embed"
	"encoding/base64"
	"strconv"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/pkg/errors"
	"golang.org/x/tools/txtar"

	"rsc.io/xv6/debug"
)

// FS is the default disk image, compiled into the package.
//
//go:embed disk.txtar
var FS []byte

// mkfs builds the in-memory file tree from a txtar disk image.
// Each archive entry's name line holds a path and k=v metadata as
// written by xv6disk: a mode whose type bits select the inode type,
// device numbers for character devices, link= for an extra hard
// link, and base64=1 when the content is encoded. Missing parent
// directories are created on the way down. mkfs runs at boot,
// before any process exists, so it builds the tree without locks.
func (sys *System) mkfs(archive []byte) error {
	root := &inode{inum: ROOTINO, typ: T_DIR, nlink: 1, ref: 1, dir: make(map[string]*inode)}
	root.parent = root
	dcache, err := lru.New[dcKey, *inode](DCACHESIZE)
	if err != nil {
		return errors.Wrap(err, "mkfs")
	}
	sys.fs = &fsys{root: root, ninum: ROOTINO, dcache: dcache}
	sys.fs.lock.init("fs")

	ar := txtar.Parse(archive)
	for _, file := range ar.Files {
		f := strings.Fields(file.Name)
		if len(f) == 0 {
			return errors.New("mkfs: empty txtar file name")
		}
		name := f[0]
		var mode, major, minor int64
		link := ""
		b64 := false
		for _, arg := range f[1:] {
			k, v, ok := strings.Cut(arg, "=")
			if !ok {
				return errors.Errorf("mkfs: invalid txtar k=v: %s", arg)
			}
			if k == "link" {
				link = v
				continue
			}
			i, err := strconv.ParseInt(v, 0, 64)
			if err != nil {
				return errors.Errorf("mkfs: invalid txtar k=v: %s", arg)
			}
			switch k {
			default:
				return errors.Errorf("mkfs: invalid txtar k=v: %s", arg)
			case "mode":
				mode = i
			case "major":
				major = i
			case "minor":
				minor = i
			case "base64":
				b64 = i != 0
			case "uid", "gid", "atime", "mtime":
				// Written by richer tools; nothing here uses them.
			}
		}

		dp, base, err := sys.mkdirs(name)
		if err != nil {
			return err
		}

		if link != "" {
			target := sys.mkfsLookup(link)
			if target == nil {
				return errors.Errorf("mkfs: %s: link target %s not found", name, link)
			}
			if target.typ == T_DIR {
				return errors.Errorf("mkfs: %s: cannot link directory %s", name, link)
			}
			if dp.dir[base] != nil {
				return errors.Errorf("mkfs: %s: already exists", name)
			}
			dp.dir[base] = target
			target.nlink++
			continue
		}

		typ := int16(T_FILE)
		switch mode & 0o170000 {
		case 0o040000:
			typ = T_DIR
		case 0o020000:
			typ = T_DEVICE
		}

		ip := dp.dir[base]
		if ip == nil {
			sys.fs.ninum++
			ip = &inode{inum: sys.fs.ninum, typ: typ, nlink: 1, parent: dp}
			if typ == T_DIR {
				ip.dir = make(map[string]*inode)
			}
			dp.dir[base] = ip
		} else if ip.typ != typ {
			return errors.Errorf("mkfs: %s: type mismatch", name)
		}

		switch typ {
		case T_DEVICE:
			ip.major = int16(major)
			ip.minor = int16(minor)
		case T_FILE:
			data := file.Data
			if b64 {
				dec, err := base64.StdEncoding.DecodeString(string(file.Data))
				if err != nil {
					return errors.Wrapf(err, "mkfs: %s: decoding", name)
				}
				data = dec
			}
			ip.data = data
			ip.size = uint32(len(data))
		}
	}
	return nil
}

// mkdirs walks to the directory that will hold the entry at path,
// creating missing intermediate directories, and returns it along
// with the final path element.
func (sys *System) mkdirs(path string) (*inode, string, error) {
	dp := sys.fs.root
	name, rest := skipelem(path)
	if name == "" {
		return nil, "", errors.Errorf("mkfs: empty path %q", path)
	}
	for rest != "" {
		next := dp.dir[name]
		if next == nil {
			sys.fs.ninum++
			next = &inode{inum: sys.fs.ninum, typ: T_DIR, nlink: 1, dir: make(map[string]*inode), parent: dp}
			dp.dir[name] = next
		}
		if next.typ != T_DIR {
			return nil, "", errors.Errorf("mkfs: %s: not a directory", name)
		}
		dp = next
		name, rest = skipelem(rest)
	}
	return dp, name, nil
}

// mkfsLookup resolves a path in the tree being built, without
// creating anything and without touching the name cache.
func (sys *System) mkfsLookup(name string) *inode {
	ip := sys.fs.root
	elem, rest := skipelem(name)
	for elem != "" {
		if ip.typ != T_DIR {
			return nil
		}
		ip = ip.dir[elem]
		if ip == nil {
			return nil
		}
		elem, rest = skipelem(rest)
	}
	return ip
}

// fsinit runs once, in the context of the first process to return
// from fork. The tree is built by mkfs before boot finishes; this
// checks it for structural damage before any process body can
// reach it. Ordering comes from the Once in forkret, so no lock is
// needed.
func (sys *System) fsinit() {
	n := sys.fsck(sys.fs.root, sys.fs.root)
	debug.DPrintf(debug.FS, "fs ready: %d entries", n)
}

// fsck walks the directory tree rooted at dp, verifying parent
// links, and returns the number of entries visited.
func (sys *System) fsck(dp, parent *inode) int {
	if dp.parent != parent {
		panic("fsck: bad ..")
	}
	n := 1
	for _, ip := range dp.dir {
		if ip.typ == T_DIR {
			n += sys.fsck(ip, dp)
		} else {
			n++
		}
	}
	return n
}
