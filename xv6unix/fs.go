// Copyright 2023 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Ported from xv6-riscv kernel/fs.c and kernel/sysfile.c.
//
// Copyright 2006-2019 Frans Kaashoek, Robert Morris, and Russ Cox.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package xv6unix

import (
	"bytes"
	"encoding/binary"
	"slices"
	"strings"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/lunixbochs/struc"
	"github.com/pkg/errors"

	"rsc.io/xv6/debug"
)

// File types, as reported by fstat.
const (
	T_DIR    = 1 // Directory
	T_FILE   = 2 // File
	T_DEVICE = 3 // Device
)

const ROOTINO = 1 // root i-number

// An inode is one node of the in-memory file tree. The fs lock
// guards the tree structure, ref, nlink, size, and data. ref counts
// in-core references (open files, working directories); nlink counts
// directory entries. Content is freed when both reach zero.
type inode struct {
	inum   uint32
	typ    int16
	major  int16
	minor  int16
	nlink  int16
	size   uint32
	ref    int
	data   []byte
	dir    map[string]*inode // T_DIR only
	parent *inode            // ".."; the root's parent is itself
}

type dcKey struct {
	dir  uint32
	name string
}

// fsys is the file system proper: the tree, the name lookup cache,
// and the counters the monitor reports.
type fsys struct {
	lock   spinlock
	root   *inode
	ninum  uint32 // last allocated i-number
	dcache *lru.Cache[dcKey, *inode]
	dhit   atomic.Uint64
	dmiss  atomic.Uint64
}

// A Stat is the wire form of inode metadata, packed little-endian
// for copyout to user memory. For directories, Size is the number
// of entries.
type Stat struct {
	Dev   int32
	Ino   uint32
	Type  int16
	Nlink int16
	Size  uint64
}

// StatSize is the packed size of a Stat.
const StatSize = 20

var statOptions = &struc.Options{Order: binary.LittleEndian}

func (st *Stat) bytes() ([]byte, error) {
	var buf bytes.Buffer
	if err := struc.PackWithOptions(&buf, st, statOptions); err != nil {
		return nil, errors.Wrap(err, "stat encode")
	}
	return buf.Bytes(), nil
}

func (st *Stat) decode(b []byte) error {
	return errors.Wrap(struc.UnpackWithOptions(bytes.NewReader(b), st, statOptions), "stat decode")
}

// Increment reference count for ip.
// Returns ip to enable ip = idup(c, ip1) idiom.
func (sys *System) idup(c *CPU, ip *inode) *inode {
	sys.fs.lock.acquire(c)
	ip.ref++
	sys.fs.lock.release(c)
	return ip
}

// Drop a reference to an in-memory inode. If that was the last
// reference to an unlinked inode, the content is freed.
func (sys *System) iput(p *Proc, ip *inode) {
	if ip == nil {
		return
	}
	sys.fs.lock.acquire(p.cpu)
	sys.iputLocked(ip)
	sys.fs.lock.release(p.cpu)
}

func (sys *System) iputLocked(ip *inode) {
	if ip.ref < 1 {
		panic("iput")
	}
	ip.ref--
	if ip.ref == 0 && ip.nlink == 0 {
		ip.data = nil
		ip.dir = nil
		ip.size = 0
	}
}

// Truncate file (discard contents).
func (sys *System) itrunc(p *Proc, ip *inode) {
	sys.fs.lock.acquire(p.cpu)
	ip.data = nil
	ip.size = 0
	sys.fs.lock.release(p.cpu)
}

// stati copies stat information from ip.
func (sys *System) stati(p *Proc, ip *inode) Stat {
	sys.fs.lock.acquire(p.cpu)
	st := Stat{Dev: 1, Ino: ip.inum, Type: ip.typ, Nlink: ip.nlink}
	switch ip.typ {
	case T_FILE:
		st.Size = uint64(ip.size)
	case T_DIR:
		st.Size = uint64(len(ip.dir))
	}
	sys.fs.lock.release(p.cpu)
	return st
}

// Read data from inode. For directories the content read is the
// sorted entry listing, one name per line.
func (sys *System) readiLocked(p *Proc, ip *inode, user bool, dst uint64, off uint32, n int) int64 {
	data := ip.data
	if ip.typ == T_DIR {
		data = sys.dirbytesLocked(ip)
	}
	if int64(off) >= int64(len(data)) || n < 0 {
		return 0
	}
	if int(off)+n > len(data) {
		n = len(data) - int(off)
	}
	if n == 0 {
		return 0
	}
	if !p.eitherCopyout(user, dst, nil, data[off:int(off)+n]) {
		return errv(EFAULT)
	}
	return int64(n)
}

// Write data to inode, growing the content as needed. Writes beyond
// the current end zero-fill the gap.
func (sys *System) writeiLocked(p *Proc, ip *inode, user bool, src uint64, off uint32, n int) int64 {
	if n < 0 {
		return errv(EINVAL)
	}
	if int64(off)+int64(n) > MAXFILE {
		return errv(EFBIG)
	}
	buf := make([]byte, n)
	if !p.eitherCopyin(buf, user, src, nil) {
		return errv(EFAULT)
	}
	end := int(off) + n
	if end > len(ip.data) {
		nd := make([]byte, end)
		copy(nd, ip.data)
		ip.data = nd
	}
	copy(ip.data[off:end], buf)
	if uint32(end) > ip.size {
		ip.size = uint32(end)
	}
	return int64(n)
}

func (sys *System) dirbytesLocked(dp *inode) []byte {
	names := make([]string, 0, len(dp.dir))
	for name := range dp.dir {
		names = append(names, name)
	}
	slices.Sort(names)
	var b []byte
	for _, name := range names {
		b = append(b, name...)
		b = append(b, '\n')
	}
	return b
}

// Look for a directory entry in a directory, consulting the name
// cache first. Does not take a reference.
func (sys *System) dirlookupLocked(dp *inode, name string) *inode {
	switch name {
	case ".":
		return dp
	case "..":
		return dp.parent
	}
	key := dcKey{dp.inum, name}
	if ip, ok := sys.fs.dcache.Get(key); ok {
		sys.fs.dhit.Add(1)
		return ip
	}
	sys.fs.dmiss.Add(1)
	ip := dp.dir[name]
	if ip != nil {
		sys.fs.dcache.Add(key, ip)
	}
	return ip
}

// skipelem peels the first element off a path:
//
//	skipelem("a/bb/c") = "a", "bb/c"
//	skipelem("///a//bb") = "a", "bb"
//	skipelem("a") = "a", ""
//	skipelem("") = "", ""
func skipelem(path string) (elem, rest string) {
	path = strings.TrimLeft(path, "/")
	if path == "" {
		return "", ""
	}
	i := strings.IndexByte(path, '/')
	if i < 0 {
		return path, ""
	}
	return path[:i], strings.TrimLeft(path[i:], "/")
}

// Look up and return the inode for a path name, with a reference.
// If parent is true, return the inode for the parent and the final
// path element instead.
func (sys *System) namex(p *Proc, path string, parent bool) (*inode, string, Errno) {
	c := p.cpu
	sys.fs.lock.acquire(c)
	var ip *inode
	if strings.HasPrefix(path, "/") {
		ip = sys.fs.root
	} else {
		ip = p.cwd
	}
	name, rest := skipelem(path)
	for name != "" {
		if ip.typ != T_DIR {
			sys.fs.lock.release(c)
			return nil, "", ENOTDIR
		}
		if parent && rest == "" {
			// Stop one level early.
			ip.ref++
			sys.fs.lock.release(c)
			return ip, name, 0
		}
		next := sys.dirlookupLocked(ip, name)
		if next == nil {
			sys.fs.lock.release(c)
			return nil, "", ENOENT
		}
		ip = next
		name, rest = skipelem(rest)
	}
	if parent {
		sys.fs.lock.release(c)
		return nil, "", EINVAL
	}
	ip.ref++
	sys.fs.lock.release(c)
	return ip, "", 0
}

func (sys *System) namei(p *Proc, path string) (*inode, Errno) {
	ip, _, e := sys.namex(p, path, false)
	return ip, e
}

// create makes a new inode at path, or for T_FILE returns the
// existing one the way open(O_CREATE) expects.
func (sys *System) create(p *Proc, path string, typ int16, major, minor int16) (*inode, Errno) {
	dp, name, e := sys.namex(p, path, true)
	if e != 0 {
		return nil, e
	}
	c := p.cpu
	sys.fs.lock.acquire(c)
	if dp.typ != T_DIR || dp.dir == nil {
		// The parent was unlinked while we were not looking.
		sys.iputLocked(dp)
		sys.fs.lock.release(c)
		return nil, ENOENT
	}
	if ip := sys.dirlookupLocked(dp, name); ip != nil {
		sys.iputLocked(dp)
		if typ == T_FILE && (ip.typ == T_FILE || ip.typ == T_DEVICE) {
			ip.ref++
			sys.fs.lock.release(c)
			return ip, 0
		}
		sys.fs.lock.release(c)
		return nil, EEXIST
	}
	sys.fs.ninum++
	np := &inode{
		inum:   sys.fs.ninum,
		typ:    typ,
		major:  major,
		minor:  minor,
		nlink:  1,
		ref:    1,
		parent: dp,
	}
	if typ == T_DIR {
		np.dir = make(map[string]*inode)
	}
	dp.dir[name] = np
	sys.iputLocked(dp)
	sys.fs.lock.release(c)
	debug.DPrintf(debug.FS, "create %s type %d ino %d", path, typ, np.inum)
	return np, 0
}

// unlink removes the directory entry at path. A directory must be
// empty. The inode's content is freed once the last open reference
// is dropped.
func (sys *System) unlink(p *Proc, path string) Errno {
	dp, name, e := sys.namex(p, path, true)
	if e != 0 {
		return e
	}
	c := p.cpu
	sys.fs.lock.acquire(c)
	if name == "." || name == ".." {
		sys.iputLocked(dp)
		sys.fs.lock.release(c)
		return EINVAL
	}
	ip := sys.dirlookupLocked(dp, name)
	if ip == nil {
		sys.iputLocked(dp)
		sys.fs.lock.release(c)
		return ENOENT
	}
	if ip.nlink < 1 {
		panic("unlink: nlink < 1")
	}
	if ip.typ == T_DIR && len(ip.dir) > 0 {
		sys.iputLocked(dp)
		sys.fs.lock.release(c)
		return EINVAL
	}
	delete(dp.dir, name)
	sys.fs.dcache.Remove(dcKey{dp.inum, name})
	ip.nlink--
	if ip.nlink == 0 && ip.ref == 0 {
		ip.data = nil
		ip.dir = nil
		ip.size = 0
	}
	sys.iputLocked(dp)
	sys.fs.lock.release(c)
	debug.DPrintf(debug.FS, "unlink %s", path)
	return 0
}

// link makes newpath a new name for the inode at oldpath.
// Directories cannot be linked.
func (sys *System) link(p *Proc, oldpath, newpath string) Errno {
	ip, e := sys.namei(p, oldpath)
	if e != 0 {
		return e
	}
	dp, name, e := sys.namex(p, newpath, true)
	if e != 0 {
		sys.iput(p, ip)
		return e
	}
	c := p.cpu
	sys.fs.lock.acquire(c)
	if ip.typ == T_DIR {
		sys.iputLocked(ip)
		sys.iputLocked(dp)
		sys.fs.lock.release(c)
		return EPERM
	}
	if dp.dir == nil {
		sys.iputLocked(ip)
		sys.iputLocked(dp)
		sys.fs.lock.release(c)
		return ENOENT
	}
	if sys.dirlookupLocked(dp, name) != nil {
		sys.iputLocked(ip)
		sys.iputLocked(dp)
		sys.fs.lock.release(c)
		return EEXIST
	}
	dp.dir[name] = ip
	ip.nlink++
	sys.iputLocked(ip)
	sys.iputLocked(dp)
	sys.fs.lock.release(c)
	return 0
}

// DcacheStats returns the name cache hit and miss counts.
func (sys *System) DcacheStats() (hits, misses uint64) {
	return sys.fs.dhit.Load(), sys.fs.dmiss.Load()
}
