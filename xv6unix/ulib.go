// Copyright 2023 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Ported from xv6-riscv user/usys.pl and user/user.h.
//
// Copyright 2006-2019 Frans Kaashoek, Robert Morris, and Russ Cox.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package xv6unix

import "encoding/binary"

// This file is the user side of the system call interface, the
// equivalent of the usys.S stubs: each wrapper marshals its arguments
// into the trapframe and traps with ecall. Arguments that live in
// memory on a real machine (paths, returned structs) are staged in a
// frame pushed on the user stack, so the kernel sees ordinary user
// addresses and faults on them like any others.

// reterr converts a negative system call return into an error.
func reterr(r int64) error {
	if r < 0 {
		return Errno(-r)
	}
	return nil
}

// pushstr copies s, NUL-terminated, onto the user stack and returns
// its address. The caller must restore tf.Sp when done with it.
func (p *Proc) pushstr(s string) (uint64, bool) {
	n := uint64(len(s)) + 1
	p.tf.Sp -= (n + 15) &^ 15
	if p.Poke(p.tf.Sp, append([]byte(s), 0)) != nil {
		return 0, false
	}
	return p.tf.Sp, true
}

// Fork creates a new process running child, with a copy of the
// calling process's memory, descriptors, and signal dispositions.
// It returns the child's pid.
func (p *Proc) Fork(child Program) (int, error) {
	p.forkprog = child
	r := p.ecall(SYS_fork)
	if r < 0 {
		return 0, Errno(-r)
	}
	return int(r), nil
}

// Exit terminates the calling process with the given status.
// It does not return.
func (p *Proc) Exit(status int) {
	p.ecall(SYS_exit, uint64(status))
	panic("exit returned")
}

// Wait waits for a child to exit and returns its pid and exit status.
func (p *Proc) Wait() (pid, status int, err error) {
	sp0 := p.tf.Sp
	p.tf.Sp -= 16
	addr := p.tf.Sp
	r := p.ecall(SYS_wait, addr)
	if r >= 0 {
		var b [4]byte
		if p.Peek(addr, b[:]) == nil {
			status = int(int32(binary.LittleEndian.Uint32(b[:])))
		}
		pid = int(r)
	}
	p.tf.Sp = sp0
	if r < 0 {
		return 0, 0, Errno(-r)
	}
	return pid, status, nil
}

func (p *Proc) Getpid() int {
	return int(p.ecall(SYS_getpid))
}

// Kill sends signum to the process with the given pid.
func (p *Proc) Kill(pid, signum int) error {
	return reterr(p.ecall(SYS_kill, uint64(pid), uint64(signum)))
}

// Sbrk grows (or, with negative n, shrinks) the process's memory by
// n bytes and returns the old size.
func (p *Proc) Sbrk(n int) (uint64, error) {
	r := p.ecall(SYS_sbrk, uint64(n))
	if r < 0 {
		return 0, Errno(-r)
	}
	return uint64(r), nil
}

// Sleep pauses the process for at least n clock ticks.
func (p *Proc) Sleep(n int) error {
	return reterr(p.ecall(SYS_sleep, uint64(n)))
}

// Uptime returns the number of clock ticks since boot.
func (p *Proc) Uptime() uint64 {
	return uint64(p.ecall(SYS_uptime))
}

// Sigprocmask replaces the signal mask and returns the old one.
// SIGKILL and SIGSTOP cannot be masked.
func (p *Proc) Sigprocmask(mask uint32) uint32 {
	return uint32(p.ecall(SYS_sigprocmask, uint64(mask)))
}

// Sigaction installs a new disposition for signum if act is non-nil
// and reports the old one through old if old is non-nil.
func (p *Proc) Sigaction(signum int, act, old *Sigaction) error {
	p.sigactNew = act
	p.sigactOld = old
	return reterr(p.ecall(SYS_sigaction, uint64(signum)))
}

// Pipe creates a pipe and returns its read and write descriptors.
func (p *Proc) Pipe() (rfd, wfd int, err error) {
	sp0 := p.tf.Sp
	p.tf.Sp -= 16
	addr := p.tf.Sp
	r := p.ecall(SYS_pipe, addr)
	if r >= 0 {
		var b [8]byte
		if p.Peek(addr, b[:]) == nil {
			rfd = int(int32(binary.LittleEndian.Uint32(b[0:])))
			wfd = int(int32(binary.LittleEndian.Uint32(b[4:])))
		}
	}
	p.tf.Sp = sp0
	if r < 0 {
		return 0, 0, Errno(-r)
	}
	return rfd, wfd, nil
}

// Open opens path with the given mode bits and returns a descriptor.
func (p *Proc) Open(path string, omode int) (int, error) {
	sp0 := p.tf.Sp
	addr, ok := p.pushstr(path)
	if !ok {
		p.tf.Sp = sp0
		return 0, EFAULT
	}
	r := p.ecall(SYS_open, addr, uint64(omode))
	p.tf.Sp = sp0
	if r < 0 {
		return 0, Errno(-r)
	}
	return int(r), nil
}

func (p *Proc) Close(fd int) error {
	return reterr(p.ecall(SYS_close, uint64(fd)))
}

// Dup duplicates fd into the lowest free descriptor slot.
func (p *Proc) Dup(fd int) (int, error) {
	r := p.ecall(SYS_dup, uint64(fd))
	if r < 0 {
		return 0, Errno(-r)
	}
	return int(r), nil
}

// Read reads up to n bytes from fd into memory at va.
func (p *Proc) Read(fd int, va uint64, n int) (int, error) {
	r := p.ecall(SYS_read, uint64(fd), va, uint64(n))
	if r < 0 {
		return 0, Errno(-r)
	}
	return int(r), nil
}

// Write writes n bytes from memory at va to fd.
func (p *Proc) Write(fd int, va uint64, n int) (int, error) {
	r := p.ecall(SYS_write, uint64(fd), va, uint64(n))
	if r < 0 {
		return 0, Errno(-r)
	}
	return int(r), nil
}

// ReadString reads up to n bytes from fd and returns them as a
// string. It stages the buffer on the user stack.
func (p *Proc) ReadString(fd, n int) (string, error) {
	sp0 := p.tf.Sp
	p.tf.Sp -= (uint64(n) + 15) &^ 15
	addr := p.tf.Sp
	r := p.ecall(SYS_read, uint64(fd), addr, uint64(n))
	var s string
	if r > 0 {
		b := make([]byte, r)
		if p.Peek(addr, b) == nil {
			s = string(b)
		}
	}
	p.tf.Sp = sp0
	if r < 0 {
		return "", Errno(-r)
	}
	return s, nil
}

// WriteString writes s to fd and returns the number of bytes written.
func (p *Proc) WriteString(fd int, s string) (int, error) {
	sp0 := p.tf.Sp
	addr, ok := p.pushstr(s)
	if !ok {
		p.tf.Sp = sp0
		return 0, EFAULT
	}
	r := p.ecall(SYS_write, uint64(fd), addr, uint64(len(s)))
	p.tf.Sp = sp0
	if r < 0 {
		return 0, Errno(-r)
	}
	return int(r), nil
}

// Fstat returns metadata for the open file fd.
func (p *Proc) Fstat(fd int) (Stat, error) {
	sp0 := p.tf.Sp
	p.tf.Sp -= (StatSize + 15) &^ 15
	addr := p.tf.Sp
	r := p.ecall(SYS_fstat, uint64(fd), addr)
	var st Stat
	var b [StatSize]byte
	perr := p.Peek(addr, b[:])
	p.tf.Sp = sp0
	if r < 0 {
		return Stat{}, Errno(-r)
	}
	if perr != nil || st.decode(b[:]) != nil {
		return Stat{}, EFAULT
	}
	return st, nil
}

func (p *Proc) Chdir(path string) error {
	sp0 := p.tf.Sp
	addr, ok := p.pushstr(path)
	if !ok {
		p.tf.Sp = sp0
		return EFAULT
	}
	r := p.ecall(SYS_chdir, addr)
	p.tf.Sp = sp0
	return reterr(r)
}

func (p *Proc) Mkdir(path string) error {
	sp0 := p.tf.Sp
	addr, ok := p.pushstr(path)
	if !ok {
		p.tf.Sp = sp0
		return EFAULT
	}
	r := p.ecall(SYS_mkdir, addr)
	p.tf.Sp = sp0
	return reterr(r)
}

// Mknod creates a device file served by the driver registered for
// major.
func (p *Proc) Mknod(path string, major, minor int) error {
	sp0 := p.tf.Sp
	addr, ok := p.pushstr(path)
	if !ok {
		p.tf.Sp = sp0
		return EFAULT
	}
	r := p.ecall(SYS_mknod, addr, uint64(major), uint64(minor))
	p.tf.Sp = sp0
	return reterr(r)
}

func (p *Proc) Unlink(path string) error {
	sp0 := p.tf.Sp
	addr, ok := p.pushstr(path)
	if !ok {
		p.tf.Sp = sp0
		return EFAULT
	}
	r := p.ecall(SYS_unlink, addr)
	p.tf.Sp = sp0
	return reterr(r)
}

// Link creates newpath as another name for the file at oldpath.
func (p *Proc) Link(oldpath, newpath string) error {
	sp0 := p.tf.Sp
	oldva, ok := p.pushstr(oldpath)
	if !ok {
		p.tf.Sp = sp0
		return EFAULT
	}
	newva, ok := p.pushstr(newpath)
	if !ok {
		p.tf.Sp = sp0
		return EFAULT
	}
	r := p.ecall(SYS_link, oldva, newva)
	p.tf.Sp = sp0
	return reterr(r)
}
