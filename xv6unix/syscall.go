// Copyright 2023 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Ported from xv6-riscv kernel/syscall.c.
//
// Copyright 2006-2019 Frans Kaashoek, Robert Morris, and Russ Cox.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package xv6unix

import "rsc.io/xv6/debug"

// System call numbers.
const (
	SYS_fork        = 1
	SYS_exit        = 2
	SYS_wait        = 3
	SYS_pipe        = 4
	SYS_read        = 5
	SYS_kill        = 6
	SYS_exec        = 7
	SYS_fstat       = 8
	SYS_chdir       = 9
	SYS_dup         = 10
	SYS_getpid      = 11
	SYS_sbrk        = 12
	SYS_sleep       = 13
	SYS_uptime      = 14
	SYS_open        = 15
	SYS_write       = 16
	SYS_mknod       = 17
	SYS_unlink      = 18
	SYS_link        = 19
	SYS_mkdir       = 20
	SYS_close       = 21
	SYS_sigprocmask = 22
	SYS_sigaction   = 23
	SYS_sigret      = 24
)

func (p *Proc) argraw(n int) uint64 {
	tf := p.tf
	switch n {
	case 0:
		return tf.A0
	case 1:
		return tf.A1
	case 2:
		return tf.A2
	case 3:
		return tf.A3
	case 4:
		return tf.A4
	case 5:
		return tf.A5
	}
	panic("argraw")
}

// Fetch the nth 32-bit system call argument.
func argint(p *Proc, n int) int {
	return int(int64(p.argraw(n)))
}

// Retrieve an argument as an address in user space.
func argaddr(p *Proc, n int) uint64 {
	return p.argraw(n)
}

// Fetch the nth word-sized system call argument as a NUL-terminated
// string from user memory.
func argstr(p *Proc, n int) (string, Errno) {
	return p.fetchstr(p.argraw(n))
}

func (p *Proc) fetchstr(va uint64) (string, Errno) {
	var b [1]byte
	buf := make([]byte, 0, 32)
	for len(buf) < MAXPATH {
		if p.as.Read(va+uint64(len(buf)), b[:]) != nil {
			return "", EFAULT
		}
		if b[0] == 0 {
			return string(buf), 0
		}
		buf = append(buf, b[0])
	}
	return "", EINVAL
}

type sysent struct {
	name string
	call func(*Proc) int64
}

// An empty slot means the number is reserved but not implemented;
// exec has no meaning here because process bodies are installed
// directly rather than loaded from a binary.
//
// Populated in init to break the reference cycle through sysfork
// (fork starts goroutines that eventually dispatch through sysents).
var sysents [SYS_sigret + 1]sysent

func init() {
	sysents = [SYS_sigret + 1]sysent{
		SYS_fork:        {"fork", sysfork},
		SYS_exit:        {"exit", sysexit},
		SYS_wait:        {"wait", syswait},
		SYS_pipe:        {"pipe", syspipe},
		SYS_read:        {"read", sysread},
		SYS_kill:        {"kill", syskill},
		SYS_fstat:       {"fstat", sysfstat},
		SYS_chdir:       {"chdir", syschdir},
		SYS_dup:         {"dup", sysdup},
		SYS_getpid:      {"getpid", sysgetpid},
		SYS_sbrk:        {"sbrk", syssbrk},
		SYS_sleep:       {"sleep", syssleep},
		SYS_uptime:      {"uptime", sysuptime},
		SYS_open:        {"open", sysopen},
		SYS_write:       {"write", syswrite},
		SYS_mknod:       {"mknod", sysmknod},
		SYS_unlink:      {"unlink", sysunlink},
		SYS_link:        {"link", syslink},
		SYS_mkdir:       {"mkdir", sysmkdir},
		SYS_close:       {"close", sysclose},
		SYS_sigprocmask: {"sigprocmask", syssigprocmask},
		SYS_sigaction:   {"sigaction", syssigaction},
		SYS_sigret:      {"sigret", syssigret},
	}
}

func (p *Proc) syscall() {
	num := int(p.tf.A7)
	if 0 < num && num < len(sysents) && sysents[num].call != nil {
		// Use num to look up the system call function, call it,
		// and store its return value in p->tf->a0.
		r := sysents[num].call(p)
		p.tf.A0 = uint64(r)
		debug.DPrintf(debug.SYSCALL, "%d: %s = %d", p.Pid(), sysents[num].name, r)
	} else {
		debug.DPrintf(debug.ALWAYS, "%d %s: unknown sys call %d", p.Pid(), p.Name(), num)
		p.tf.A0 = ^uint64(0)
	}
}
