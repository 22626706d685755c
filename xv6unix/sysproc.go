// Copyright 2023 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Ported from xv6-riscv kernel/sysproc.c.
//
// Copyright 2006-2019 Frans Kaashoek, Robert Morris, and Russ Cox.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package xv6unix

func sysfork(p *Proc) int64 {
	child := p.forkprog
	p.forkprog = nil
	if child == nil {
		return errv(EINVAL)
	}
	return p.fork(child)
}

func sysexit(p *Proc) int64 {
	p.exitp(argint(p, 0))
	panic("exit returned")
}

func syswait(p *Proc) int64 {
	return p.waitp(argaddr(p, 0))
}

func sysgetpid(p *Proc) int64 {
	return int64(p.pid.Load())
}

func syssbrk(p *Proc) int64 {
	n := argint(p, 0)
	addr := p.sz.Load()
	if p.growproc(int64(n)) < 0 {
		return errv(ENOMEM)
	}
	return int64(addr)
}

func syssleep(p *Proc) int64 {
	n := argint(p, 0)
	if n < 0 {
		n = 0
	}
	sys := p.sys
	sys.tickslock.acquire(p.cpu)
	t0 := sys.ticks.Load()
	for sys.ticks.Load()-t0 < uint64(n) {
		if p.isKilled() {
			sys.tickslock.release(p.cpu)
			return errv(EINTR)
		}
		p.sleep(&sys.ticks, &sys.tickslock)
	}
	sys.tickslock.release(p.cpu)
	return 0
}

func syskill(p *Proc) int64 {
	return p.sys.kill(p.cpu, argint(p, 0), argint(p, 1))
}

// return how many clock tick interrupts have occurred since start.
func sysuptime(p *Proc) int64 {
	sys := p.sys
	sys.tickslock.acquire(p.cpu)
	n := sys.ticks.Load()
	sys.tickslock.release(p.cpu)
	return int64(n)
}

func syssigprocmask(p *Proc) int64 {
	mask := uint32(argaddr(p, 0))
	c := p.cpu
	p.lock.acquire(c)
	old := p.sigmaskLocked(mask)
	p.lock.release(c)
	return int64(old)
}

func syssigaction(p *Proc) int64 {
	signum := argint(p, 0)
	act, old := p.sigactNew, p.sigactOld
	p.sigactNew, p.sigactOld = nil, nil
	return p.sigaction(signum, act, old)
}

func syssigret(p *Proc) int64 {
	return p.sigret()
}
