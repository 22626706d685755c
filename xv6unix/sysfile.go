// Copyright 2023 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Ported from xv6-riscv kernel/sysfile.c.
//
// Copyright 2006-2019 Frans Kaashoek, Robert Morris, and Russ Cox.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package xv6unix

import "encoding/binary"

// Fetch the nth word-sized system call argument as a file descriptor
// and return both the descriptor and the corresponding File.
func argfd(p *Proc, n int) (int, *File, Errno) {
	fd := argint(p, n)
	if fd < 0 || fd >= NOFILE || p.files[fd] == nil {
		return -1, nil, EBADF
	}
	return fd, p.files[fd], 0
}

// Allocate a file descriptor for the given file.
// Takes over the file reference from the caller on success.
func (p *Proc) fdalloc(f *File) int {
	for fd := range p.files {
		if p.files[fd] == nil {
			p.files[fd] = f
			return fd
		}
	}
	return -1
}

func sysdup(p *Proc) int64 {
	_, f, e := argfd(p, 0)
	if e != 0 {
		return errv(e)
	}
	fd := p.fdalloc(f)
	if fd < 0 {
		return errv(EMFILE)
	}
	p.sys.filedup(p.cpu, f)
	return int64(fd)
}

func sysread(p *Proc) int64 {
	_, f, e := argfd(p, 0)
	if e != 0 {
		return errv(e)
	}
	return p.sys.fileread(p, f, argaddr(p, 1), argint(p, 2))
}

func syswrite(p *Proc) int64 {
	_, f, e := argfd(p, 0)
	if e != 0 {
		return errv(e)
	}
	return p.sys.filewrite(p, f, argaddr(p, 1), argint(p, 2))
}

func sysclose(p *Proc) int64 {
	fd, f, e := argfd(p, 0)
	if e != 0 {
		return errv(e)
	}
	p.files[fd] = nil
	p.sys.fileclose(p, f)
	return 0
}

func sysfstat(p *Proc) int64 {
	_, f, e := argfd(p, 0)
	if e != 0 {
		return errv(e)
	}
	return p.sys.filestat(p, f, argaddr(p, 1))
}

func syspipe(p *Proc) int64 {
	sys := p.sys
	fdarray := argaddr(p, 0)
	rf, wf, e := sys.pipealloc(p)
	if e != 0 {
		return errv(e)
	}
	fd0 := p.fdalloc(rf)
	if fd0 < 0 {
		sys.fileclose(p, rf)
		sys.fileclose(p, wf)
		return errv(EMFILE)
	}
	fd1 := p.fdalloc(wf)
	if fd1 < 0 {
		p.files[fd0] = nil
		sys.fileclose(p, rf)
		sys.fileclose(p, wf)
		return errv(EMFILE)
	}
	var b [8]byte
	binary.LittleEndian.PutUint32(b[0:], uint32(fd0))
	binary.LittleEndian.PutUint32(b[4:], uint32(fd1))
	if !p.eitherCopyout(true, fdarray, nil, b[:]) {
		p.files[fd0] = nil
		p.files[fd1] = nil
		sys.fileclose(p, rf)
		sys.fileclose(p, wf)
		return errv(EFAULT)
	}
	return 0
}

func sysopen(p *Proc) int64 {
	path, e := argstr(p, 0)
	if e != 0 {
		return errv(e)
	}
	omode := argint(p, 1)
	sys := p.sys

	sys.log.begin(p)
	var ip *inode
	if omode&O_CREATE != 0 {
		ip, e = sys.create(p, path, T_FILE, 0, 0)
	} else {
		ip, e = sys.namei(p, path)
	}
	if e != 0 {
		sys.log.end(p)
		return errv(e)
	}
	if ip.typ == T_DIR && omode != O_RDONLY {
		sys.iput(p, ip)
		sys.log.end(p)
		return errv(EISDIR)
	}
	if ip.typ == T_DEVICE && (ip.major < 0 || int(ip.major) >= NDEV) {
		sys.iput(p, ip)
		sys.log.end(p)
		return errv(ENODEV)
	}

	f := sys.filealloc(p.cpu)
	if f == nil {
		sys.iput(p, ip)
		sys.log.end(p)
		return errv(ENFILE)
	}
	fd := p.fdalloc(f)
	if fd < 0 {
		sys.fileclose(p, f)
		sys.iput(p, ip)
		sys.log.end(p)
		return errv(EMFILE)
	}

	if ip.typ == T_DEVICE {
		f.typ = FD_DEVICE
		f.major = int(ip.major)
	} else {
		f.typ = FD_INODE
		f.off = 0
	}
	f.ip = ip
	f.readable = omode&O_WRONLY == 0
	f.writable = omode&O_WRONLY != 0 || omode&O_RDWR != 0

	if omode&O_TRUNC != 0 && ip.typ == T_FILE {
		sys.itrunc(p, ip)
	}

	sys.log.end(p)
	return int64(fd)
}

func sysmkdir(p *Proc) int64 {
	path, e := argstr(p, 0)
	if e != 0 {
		return errv(e)
	}
	sys := p.sys
	sys.log.begin(p)
	ip, e := sys.create(p, path, T_DIR, 0, 0)
	if e != 0 {
		sys.log.end(p)
		return errv(e)
	}
	sys.iput(p, ip)
	sys.log.end(p)
	return 0
}

func sysmknod(p *Proc) int64 {
	path, e := argstr(p, 0)
	if e != 0 {
		return errv(e)
	}
	major := argint(p, 1)
	minor := argint(p, 2)
	sys := p.sys
	sys.log.begin(p)
	ip, e := sys.create(p, path, T_DEVICE, int16(major), int16(minor))
	if e != 0 {
		sys.log.end(p)
		return errv(e)
	}
	sys.iput(p, ip)
	sys.log.end(p)
	return 0
}

func sysunlink(p *Proc) int64 {
	path, e := argstr(p, 0)
	if e != 0 {
		return errv(e)
	}
	sys := p.sys
	sys.log.begin(p)
	e = sys.unlink(p, path)
	sys.log.end(p)
	if e != 0 {
		return errv(e)
	}
	return 0
}

func syslink(p *Proc) int64 {
	oldpath, e := argstr(p, 0)
	if e != 0 {
		return errv(e)
	}
	newpath, e := argstr(p, 1)
	if e != 0 {
		return errv(e)
	}
	sys := p.sys
	sys.log.begin(p)
	e = sys.link(p, oldpath, newpath)
	sys.log.end(p)
	if e != 0 {
		return errv(e)
	}
	return 0
}

func syschdir(p *Proc) int64 {
	path, e := argstr(p, 0)
	if e != 0 {
		return errv(e)
	}
	sys := p.sys
	sys.log.begin(p)
	ip, e := sys.namei(p, path)
	if e != 0 {
		sys.log.end(p)
		return errv(e)
	}
	if ip.typ != T_DIR {
		sys.iput(p, ip)
		sys.log.end(p)
		return errv(ENOTDIR)
	}
	sys.iput(p, p.cwd)
	p.cwd = ip
	sys.log.end(p)
	return 0
}
