// Copyright 2023 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Ported from xv6-riscv kernel/proc.c.
//
// Copyright 2006-2019 Frans Kaashoek, Robert Morris, and Russ Cox.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package xv6unix

import (
	"encoding/binary"
	"maps"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"

	"rsc.io/xv6/debug"
	"rsc.io/xv6/rv64"
)

// A CPU is one of the simulated processors. Each CPU is driven by a
// scheduler goroutine; the process it dispatches borrows the CPU
// until it switches back. CPUs with negative ids are transient
// interrupt contexts (the clock, console input, operator commands)
// that only ever acquire and release locks on their own goroutine.
type CPU struct {
	id     int
	proc   *Proc        // the process running on this cpu, or nil
	ctx    rv64.Context // scheduler context; swtch() returns here
	noff   int          // depth of pushOff nesting
	intena bool         // were interrupts enabled before pushOff?
	intr   bool         // simulated interrupt-enable bit
	tick0  uint64       // clock reading when the current process was dispatched
}

// A handle names a process table slot at a particular generation.
// freeproc retires the generation, so a stale handle held by a parent
// or a diagnostic tool can never reach a recycled slot's new tenant.
type handle struct {
	slot int
	gen  uint64
}

var nohandle = handle{slot: -1}

// A Proc is one process table entry.
//
// The lock must be held while using these fields:
// killed, xstate, wchan, readyAt, and all signal state
// (pending, mask, handlers, handling, stopped, tfBackup,
// maskBackup, redirected).
//
// wait_lock must be held when using parent.
//
// state, pid, sz, and pname are atomics so that procdump can read a
// consistent value without taking any lock; they are only written
// under the lock (or, for pid and sz, by the owning process).
//
// The remaining fields are private to the owning process goroutine.
type Proc struct {
	sys  *System
	slot int

	lock spinlock

	state atomic.Int32  // Procstate
	pid   atomic.Int32
	sz    atomic.Uint64 // size of user memory in bytes
	pname atomic.Pointer[string]

	gen     atomic.Uint64 // slot generation; bumped by freeproc
	parent  handle        // wait_lock must be held when using this
	killed  bool          // if true, have been killed
	xstate  int32         // exit status to be returned to parent's wait
	wchan   any           // if non-nil, sleeping on wchan
	readyAt time.Time     // when the process last became RUNNABLE

	// Signal state, guarded by lock.
	pending    uint32           // signals raised but not yet acted on
	mask       uint32           // signals currently blocked
	handlers   [NSIG]Sigaction  // per-signal disposition
	handling   bool             // a custom handler activation is in progress
	stopped    bool             // stopped by SIGSTOP; waiting for SIGCONT
	tfBackup   uint64           // user address of saved trapframe during handling
	maskBackup uint32           // mask to restore at sigret
	redirected bool             // epc was pointed at a handler; run it on return

	// Owned by the process goroutine.
	cpu       *CPU            // the cpu currently running this process
	ctx       rv64.Context    // process context; sched() parks here
	tf        *rv64.Trapframe // registers as of the last trap
	as        *rv64.AddrSpace
	text      map[uint64]Sighandler // installed user text, by address
	textva    uint64                // next free text address
	prog      Program               // body of this process
	forkprog  Program               // staged body for the child of the next fork
	sigactNew *Sigaction            // staged argument for the next sigaction
	sigactOld *Sigaction            // staged result pointer for the next sigaction
	depth     int                   // trap nesting; signals run at depth zero
	inuserret bool                  // already running handlers in userret
	files     [NOFILE]*File
	cwd       *inode
}

func (p *Proc) State() Procstate     { return Procstate(p.state.Load()) }
func (p *Proc) setState(s Procstate) { p.state.Store(int32(s)) }

func (p *Proc) Pid() int { return int(p.pid.Load()) }

func (p *Proc) Name() string {
	if s := p.pname.Load(); s != nil {
		return *s
	}
	return ""
}

func (p *Proc) setName(name string) { p.pname.Store(&name) }

// Size returns the current size of the process's user memory.
func (p *Proc) Size() uint64 { return p.sz.Load() }

func (p *Proc) handle() handle { return handle{p.slot, p.gen.Load()} }

// lookup resolves a handle to its process, or nil if the handle's
// generation has been retired. Caller must hold wait_lock.
func (sys *System) lookup(h handle) *Proc {
	if h.slot < 0 || h.slot >= NPROC {
		return nil
	}
	p := &sys.procs[h.slot]
	if p.gen.Load() != h.gen {
		return nil
	}
	return p
}

func (p *Proc) setKilled() {
	c := p.cpu
	p.lock.acquire(c)
	p.killed = true
	p.lock.release(c)
}

func (p *Proc) isKilled() bool {
	c := p.cpu
	p.lock.acquire(c)
	k := p.killed
	p.lock.release(c)
	return k
}

// setRunnable marks p ready to run and pokes an idle scheduler.
// Caller must hold p's lock.
func (p *Proc) setRunnable() {
	p.setState(RUNNABLE)
	p.readyAt = time.Now()
	p.sys.kick()
}

// Initialize the proc table. Called once from NewSystem.
func (sys *System) procinit() {
	sys.pidLock.init("nextpid")
	sys.waitLock.init("wait_lock")
	sys.nextPid = 1
	for i := range sys.procs {
		p := &sys.procs[i]
		p.sys = sys
		p.slot = i
		p.lock.init("proc")
		p.parent = nohandle
	}
}

func (sys *System) allocpid(c *CPU) int32 {
	sys.pidLock.acquire(c)
	pid := sys.nextPid
	sys.nextPid++
	sys.pidLock.release(c)
	return pid
}

// Look in the process table for an UNUSED slot. If found, initialize
// the state required to run in the kernel and return with the slot's
// lock held. If there are no free slots, return nil.
func (sys *System) allocproc(c *CPU) *Proc {
	for i := range sys.procs {
		p := &sys.procs[i]
		p.lock.acquire(c)
		if p.State() != UNUSED {
			p.lock.release(c)
			continue
		}
		p.pid.Store(sys.allocpid(c))
		p.setState(USED)
		p.tf = new(rv64.Trapframe)
		p.as = rv64.NewAddrSpace()
		p.ctx = rv64.NewContext()
		p.text = make(map[uint64]Sighandler)
		p.textva = rv64.TextBase
		return p
	}
	return nil
}

// Free a proc structure and the data hanging from it. The slot's
// generation is retired so stale handles cannot name the next tenant.
// p's lock must be held; wait_lock too if p ever had a parent.
func (sys *System) freeproc(p *Proc) {
	p.tf = nil
	if p.as != nil {
		p.as.Destroy()
		p.as = nil
	}
	p.text = nil
	p.textva = 0
	p.prog = nil
	p.forkprog = nil
	p.sigactNew = nil
	p.sigactOld = nil
	p.pid.Store(0)
	p.setName("")
	p.sz.Store(0)
	p.parent = nohandle
	p.killed = false
	p.xstate = 0
	p.wchan = nil
	p.readyAt = time.Time{}
	p.pending = 0
	p.mask = 0
	p.handlers = [NSIG]Sigaction{}
	p.handling = false
	p.stopped = false
	p.tfBackup = 0
	p.maskBackup = 0
	p.redirected = false
	// A process that died inside a system call or a handler dispatch
	// leaves depth and inuserret set; the next tenant starts clean.
	p.depth = 0
	p.inuserret = false
	p.cpu = nil
	p.gen.Add(1)
	p.setState(UNUSED)
}

// Spawn starts a new top-level process named name running prog.
// The first process spawned becomes init; later top-level processes
// and orphans are adopted by it. Spawn is for callers outside the
// simulation (boot, tests, the monitor); processes themselves
// multiply with Fork.
func (sys *System) Spawn(name string, prog Program) (*Proc, error) {
	c := &CPU{id: -1}
	p := sys.allocproc(c)
	if p == nil {
		return nil, EAGAIN
	}

	// Allocate the initial user image and point the first
	// trapframe at its stack.
	if err := p.as.Grow(USERSIZE * rv64.PageSize); err != nil {
		sys.freeproc(p)
		p.lock.release(c)
		return nil, errors.Wrap(err, "spawn "+name)
	}
	p.sz.Store(USERSIZE * rv64.PageSize)
	p.tf.Sp = USERSIZE * rv64.PageSize
	p.tf.Epc = rv64.TextBase
	p.prog = prog
	p.setName(name)
	p.cwd = sys.idup(c, sys.fs.root)
	p.lock.release(c)

	sys.waitLock.acquire(c)
	if sys.initp == nil {
		sys.initp = p
		p.parent = nohandle
	} else {
		p.parent = sys.initp.handle()
	}
	sys.waitLock.release(c)

	p.lock.acquire(c)
	go p.run()
	p.setRunnable()
	p.lock.release(c)
	debug.DPrintf(debug.PROC, "spawn %s pid %d", name, p.Pid())
	return p, nil
}

// Create a new process, copying the parent. The child runs child as
// its body, with a trapframe that reads as if fork returned zero.
func (p *Proc) fork(child Program) int64 {
	sys := p.sys
	c := p.cpu

	np := sys.allocproc(c)
	if np == nil {
		return errv(EAGAIN)
	}

	// Copy user memory from parent to child.
	nas, err := p.as.Dup()
	if err != nil {
		sys.freeproc(np)
		np.lock.release(c)
		return errv(ENOMEM)
	}
	np.as.Destroy()
	np.as = nas
	np.sz.Store(p.sz.Load())

	// Copy saved user registers; cause fork to return 0 in the child.
	*np.tf = *p.tf
	np.tf.A0 = 0

	// The child starts with the parent's installed text, signal mask,
	// and handler table, but no pending signals.
	np.text = maps.Clone(p.text)
	np.textva = p.textva
	np.mask = p.mask
	np.handlers = p.handlers
	np.prog = child

	// Increment reference counts on open file descriptors.
	for i, f := range p.files {
		if f != nil {
			np.files[i] = sys.filedup(c, f)
		}
	}
	np.cwd = sys.idup(c, p.cwd)

	np.setName(p.Name())
	pid := int64(np.pid.Load())
	np.lock.release(c)

	sys.waitLock.acquire(c)
	np.parent = p.handle()
	sys.waitLock.release(c)

	np.lock.acquire(c)
	go np.run()
	np.setRunnable()
	np.lock.release(c)

	debug.DPrintf(debug.PROC, "fork %d -> %d", p.Pid(), pid)
	return pid
}

// Grow or shrink user memory by n bytes. Return 0 on success, -1 on failure.
func (p *Proc) growproc(n int64) int {
	sz := p.sz.Load()
	if n > 0 {
		if err := p.as.Grow(sz + uint64(n)); err != nil {
			return -1
		}
		sz += uint64(n)
	} else if n < 0 {
		if uint64(-n) > sz {
			return -1
		}
		if err := p.as.Shrink(sz - uint64(-n)); err != nil {
			return -1
		}
		sz -= uint64(-n)
	}
	p.sz.Store(sz)
	return 0
}

// Pass p's abandoned children to init. Caller must hold wait_lock.
func (sys *System) reparent(p *Proc) {
	for i := range sys.procs {
		pp := &sys.procs[i]
		if sys.lookup(pp.parent) == p {
			pp.parent = sys.initp.handle()
			sys.wakeup(p.cpu, sys.initp)
		}
	}
}

// Exit the current process. Does not return. An exited process
// remains in the zombie state until its parent calls wait.
func (p *Proc) exitp(status int) {
	sys := p.sys
	if p == sys.initp {
		panic("init exiting")
	}

	// Close all open files.
	for fd, f := range p.files {
		if f != nil {
			sys.fileclose(p, f)
			p.files[fd] = nil
		}
	}

	sys.log.begin(p)
	sys.iput(p, p.cwd)
	sys.log.end(p)
	p.cwd = nil

	sys.waitLock.acquire(p.cpu)

	// Give any children to init.
	sys.reparent(p)

	// Parent might be sleeping in wait().
	if pp := sys.lookup(p.parent); pp != nil {
		sys.wakeup(p.cpu, pp)
	}

	p.lock.acquire(p.cpu)
	p.xstate = int32(status)
	p.setState(ZOMBIE)

	sys.waitLock.release(p.cpu)

	debug.DPrintf(debug.PROC, "exit %d status %d", p.Pid(), status)

	// Jump into the scheduler, never to return.
	p.sched()
	panic("zombie exit")
}

// Wait for a child process to exit and return its pid.
// If addr is nonzero, the child's exit status is stored there.
func (p *Proc) waitp(addr uint64) int64 {
	sys := p.sys
	sys.waitLock.acquire(p.cpu)

	for {
		// Scan through the table looking for exited children.
		havekids := false
		for i := range sys.procs {
			pp := &sys.procs[i]
			if sys.lookup(pp.parent) != p {
				continue
			}
			// Make sure the child isn't still in exit() or swtch().
			pp.lock.acquire(p.cpu)
			havekids = true
			if pp.State() == ZOMBIE {
				// Found one.
				pid := int64(pp.pid.Load())
				if addr != 0 {
					var b [4]byte
					binary.LittleEndian.PutUint32(b[:], uint32(pp.xstate))
					if !p.eitherCopyout(true, addr, nil, b[:]) {
						pp.lock.release(p.cpu)
						sys.waitLock.release(p.cpu)
						return errv(EFAULT)
					}
				}
				sys.freeproc(pp)
				pp.lock.release(p.cpu)
				sys.waitLock.release(p.cpu)
				debug.DPrintf(debug.PROC, "wait %d reaped %d", p.Pid(), pid)
				return pid
			}
			pp.lock.release(p.cpu)
		}

		// No point waiting if we don't have any children.
		if !havekids {
			sys.waitLock.release(p.cpu)
			return errv(ECHILD)
		}
		if p.isKilled() {
			sys.waitLock.release(p.cpu)
			return errv(EINTR)
		}

		// Wait for a child to exit.
		p.sleep(p, &sys.waitLock)
	}
}

// eitherCopyout copies src to a user virtual address when userDst is
// set, or into the kernel buffer kdst when it is not. Returns false
// if the user address is bad.
func (p *Proc) eitherCopyout(userDst bool, dst uint64, kdst []byte, src []byte) bool {
	if userDst {
		return p.as.Write(dst, src) == nil
	}
	copy(kdst, src)
	return true
}

// eitherCopyin fills dst from a user virtual address when userSrc is
// set, or from the kernel buffer ksrc when it is not. Returns false
// if the user address is bad.
func (p *Proc) eitherCopyin(dst []byte, userSrc bool, src uint64, ksrc []byte) bool {
	if userSrc {
		return p.as.Read(src, dst) == nil
	}
	copy(dst, ksrc)
	return true
}
