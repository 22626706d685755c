// Copyright 2023 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Ported from xv6-riscv kernel/pipe.c.
//
// Copyright 2006-2019 Frans Kaashoek, Robert Morris, and Russ Cox.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package xv6unix

type pipe struct {
	lock      spinlock
	data      [PIPESIZE]byte
	nread     uint32 // number of bytes read
	nwrite    uint32 // number of bytes written
	readopen  bool   // read fd is still open
	writeopen bool   // write fd is still open
}

func (sys *System) pipealloc(p *Proc) (*File, *File, Errno) {
	f0 := sys.filealloc(p.cpu)
	if f0 == nil {
		return nil, nil, ENFILE
	}
	f1 := sys.filealloc(p.cpu)
	if f1 == nil {
		sys.fileclose(p, f0)
		return nil, nil, ENFILE
	}
	pi := &pipe{readopen: true, writeopen: true}
	pi.lock.init("pipe")
	f0.typ = FD_PIPE
	f0.readable = true
	f0.writable = false
	f0.pipe = pi
	f1.typ = FD_PIPE
	f1.readable = false
	f1.writable = true
	f1.pipe = pi
	return f0, f1, 0
}

func (sys *System) pipeclose(p *Proc, pi *pipe, writable bool) {
	pi.lock.acquire(p.cpu)
	if writable {
		pi.writeopen = false
		sys.wakeup(p.cpu, &pi.nread)
	} else {
		pi.readopen = false
		sys.wakeup(p.cpu, &pi.nwrite)
	}
	pi.lock.release(p.cpu)
}

func (sys *System) pipewrite(p *Proc, pi *pipe, addr uint64, n int) int64 {
	i := 0
	pi.lock.acquire(p.cpu)
	for i < n {
		if !pi.readopen || p.isKilled() {
			pi.lock.release(p.cpu)
			return errv(EPIPE)
		}
		if pi.nwrite == pi.nread+PIPESIZE {
			// Pipe is full; wait for a reader.
			sys.wakeup(p.cpu, &pi.nread)
			p.sleep(&pi.nwrite, &pi.lock)
		} else {
			var b [1]byte
			if !p.eitherCopyin(b[:], true, addr+uint64(i), nil) {
				break
			}
			pi.data[pi.nwrite%PIPESIZE] = b[0]
			pi.nwrite++
			i++
		}
	}
	sys.wakeup(p.cpu, &pi.nread)
	pi.lock.release(p.cpu)
	return int64(i)
}

func (sys *System) piperead(p *Proc, pi *pipe, addr uint64, n int) int64 {
	pi.lock.acquire(p.cpu)
	for pi.nread == pi.nwrite && pi.writeopen {
		// Pipe is empty; wait for a writer.
		if p.isKilled() {
			pi.lock.release(p.cpu)
			return errv(EINTR)
		}
		p.sleep(&pi.nread, &pi.lock)
	}
	i := 0
	for ; i < n; i++ {
		if pi.nread == pi.nwrite {
			break
		}
		b := [1]byte{pi.data[pi.nread%PIPESIZE]}
		if !p.eitherCopyout(true, addr+uint64(i), nil, b[:]) {
			break
		}
		pi.nread++
	}
	sys.wakeup(p.cpu, &pi.nwrite)
	pi.lock.release(p.cpu)
	return int64(i)
}
