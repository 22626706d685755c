// Copyright 2023 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Ported from xv6-riscv kernel/file.c.
//
// Copyright 2006-2019 Frans Kaashoek, Robert Morris, and Russ Cox.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package xv6unix

const (
	FD_NONE = iota
	FD_PIPE
	FD_INODE
	FD_DEVICE
)

// Open mode flags.
const (
	O_RDONLY = 0x000
	O_WRONLY = 0x001
	O_RDWR   = 0x002
	O_CREATE = 0x200
	O_TRUNC  = 0x400
)

// A File is an open file, shared by the descriptors that dup and
// fork copy around. ref counts them; the ftable lock guards ref.
type File struct {
	typ      int
	ref      int
	readable bool
	writable bool
	pipe     *pipe  // FD_PIPE
	ip       *inode // FD_INODE and FD_DEVICE
	off      uint32 // FD_INODE
	major    int    // FD_DEVICE
}

type ftable struct {
	lock spinlock
	file [NFILE]File
}

// A devsw maps a major device number to the device's read and write
// routines.
type devsw struct {
	read  func(p *Proc, user bool, addr uint64, n int) int64
	write func(p *Proc, user bool, addr uint64, n int) int64
}

// Major device numbers.
const (
	CONSOLE = 1
	NULLDEV = 2
)

// Allocate a file structure.
func (sys *System) filealloc(c *CPU) *File {
	sys.ftab.lock.acquire(c)
	for i := range sys.ftab.file {
		f := &sys.ftab.file[i]
		if f.ref == 0 {
			f.ref = 1
			sys.ftab.lock.release(c)
			return f
		}
	}
	sys.ftab.lock.release(c)
	return nil
}

// Increment ref count for file f.
func (sys *System) filedup(c *CPU, f *File) *File {
	sys.ftab.lock.acquire(c)
	if f.ref < 1 {
		panic("filedup")
	}
	f.ref++
	sys.ftab.lock.release(c)
	return f
}

// Close file f. (Decrement ref count, close when reaches 0.)
func (sys *System) fileclose(p *Proc, f *File) {
	c := p.cpu
	sys.ftab.lock.acquire(c)
	if f.ref < 1 {
		panic("fileclose")
	}
	f.ref--
	if f.ref > 0 {
		sys.ftab.lock.release(c)
		return
	}
	ff := *f
	f.ref = 0
	f.typ = FD_NONE
	f.ip = nil
	f.pipe = nil
	sys.ftab.lock.release(c)

	switch ff.typ {
	case FD_PIPE:
		sys.pipeclose(p, ff.pipe, ff.writable)
	case FD_INODE, FD_DEVICE:
		sys.log.begin(p)
		sys.iput(p, ff.ip)
		sys.log.end(p)
	}
}

// Get metadata about file f and copy it to the user address addr.
func (sys *System) filestat(p *Proc, f *File, addr uint64) int64 {
	if f.typ != FD_INODE && f.typ != FD_DEVICE {
		return errv(EINVAL)
	}
	st := sys.stati(p, f.ip)
	b, err := st.bytes()
	if err != nil {
		return errv(EIO)
	}
	if !p.eitherCopyout(true, addr, nil, b) {
		return errv(EFAULT)
	}
	return 0
}

// Read from file f into addr in the calling process's memory.
func (sys *System) fileread(p *Proc, f *File, addr uint64, n int) int64 {
	if !f.readable {
		return errv(EBADF)
	}
	switch f.typ {
	case FD_PIPE:
		return sys.piperead(p, f.pipe, addr, n)
	case FD_DEVICE:
		if f.major < 0 || f.major >= NDEV || sys.devs[f.major].read == nil {
			return errv(ENODEV)
		}
		return sys.devs[f.major].read(p, true, addr, n)
	case FD_INODE:
		sys.fs.lock.acquire(p.cpu)
		r := sys.readiLocked(p, f.ip, true, addr, f.off, n)
		if r > 0 {
			f.off += uint32(r)
		}
		sys.fs.lock.release(p.cpu)
		return r
	}
	panic("fileread")
}

// Write to file f from addr in the calling process's memory.
func (sys *System) filewrite(p *Proc, f *File, addr uint64, n int) int64 {
	if !f.writable {
		return errv(EBADF)
	}
	switch f.typ {
	case FD_PIPE:
		return sys.pipewrite(p, f.pipe, addr, n)
	case FD_DEVICE:
		if f.major < 0 || f.major >= NDEV || sys.devs[f.major].write == nil {
			return errv(ENODEV)
		}
		return sys.devs[f.major].write(p, true, addr, n)
	case FD_INODE:
		sys.log.begin(p)
		sys.fs.lock.acquire(p.cpu)
		r := sys.writeiLocked(p, f.ip, true, addr, f.off, n)
		if r > 0 {
			f.off += uint32(r)
		}
		sys.fs.lock.release(p.cpu)
		sys.log.end(p)
		return r
	}
	panic("filewrite")
}
