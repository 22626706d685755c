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
	"runtime"
	"time"

	"rsc.io/xv6/debug"
	"rsc.io/xv6/rv64"
)

// Per-CPU process scheduler. Each CPU's goroutine loops here forever,
// doing:
//   - choose a RUNNABLE process to run.
//   - swtch to start running that process.
//   - eventually that process transfers control back via swtch.
func (sys *System) scheduler(c *CPU) {
	for {
		// The most recent process to run may have had interrupts
		// turned off; turn them on to avoid a deadlock if all
		// processes are waiting.
		c.intrOn()

		found := false
		for i := range sys.procs {
			p := &sys.procs[i]
			p.lock.acquire(c)
			if p.State() == RUNNABLE {
				// Switch to chosen process. It is the process's job
				// to release its lock and then reacquire it before
				// jumping back to us.
				p.setState(RUNNING)
				if !p.readyAt.IsZero() {
					sys.stats.dispatch(time.Since(p.readyAt))
					p.readyAt = time.Time{}
				}
				c.proc = p
				p.cpu = c
				c.tick0 = sys.ticks.Load()
				debug.DPrintf(debug.SCHED, "cpu%d run pid %d %s", c.id, p.Pid(), p.Name())
				rv64.Swtch(&c.ctx, &p.ctx)

				// Process is done running for now. It should have
				// changed its p->state before coming back.
				c.proc = nil
				found = true
			}
			p.lock.release(c)
		}
		if sys.halted.Load() {
			return
		}
		if !found {
			// Nothing runnable; park until some process is made
			// RUNNABLE. The kick channel is buffered, so a wakeup
			// that races with the scan is not lost.
			<-sys.kickc
		}
	}
}

// Switch back to the scheduler. Must hold only p->lock and have
// changed proc->state.
//
// The baton passes over the shared context channels, so the lock
// acquired by one flow is released by the other; noff stays balanced
// per CPU because the two flows strictly alternate. Saves and
// restores intena because intena is a property of this kernel
// thread's passage, not this CPU.
func (p *Proc) sched() {
	c := p.cpu
	if !p.lock.holding(c) {
		panic("sched p->lock")
	}
	if c.noff != 1 {
		panic("sched locks")
	}
	if p.State() == RUNNING {
		panic("sched running")
	}
	if c.intr {
		panic("sched interruptible")
	}

	intena := c.intena
	// Decide on life or death before handing the CPU back: once the
	// scheduler resumes, a zombie's slot may be reaped at any moment.
	dead := p.State() == ZOMBIE
	c.ctx.Resume()
	if dead {
		runtime.Goexit()
	}
	p.ctx.Wait()
	p.cpu.intena = intena
}

// Give up the CPU for one scheduling round.
func (p *Proc) yield() {
	p.lock.acquire(p.cpu)
	p.setRunnable()
	p.sched()
	p.lock.release(p.cpu)
}

// A process's very first scheduling will run here.
func (p *Proc) forkret() {
	// Still holding p->lock from scheduler.
	p.lock.release(p.cpu)

	// File system initialization must run in the context of a
	// regular process (for example, it sleeps), and thus cannot be
	// run from NewSystem.
	p.sys.fsOnce.Do(p.sys.fsinit)

	p.trapret()
	p.userret()
}

// run is the whole life of a process goroutine: wait to be scheduled
// for the first time, run the body, exit.
func (p *Proc) run() {
	p.ctx.Wait()
	p.forkret()
	status := p.prog(p)
	p.Exit(status)
}

// Atomically release lk and sleep on chan. Reacquires lk when awakened.
func (p *Proc) sleep(chanv any, lk *spinlock) {
	// Must acquire p->lock in order to change p->state and then call
	// sched. Once we hold p->lock, we can be guaranteed that we
	// won't miss any wakeup (wakeup locks p->lock), so it's okay to
	// release lk.
	if lk != &p.lock {
		p.lock.acquire(p.cpu)
		lk.release(p.cpu)
	}

	// Go to sleep.
	p.wchan = chanv
	p.setState(SLEEPING)

	p.sched()

	// Tidy up.
	p.wchan = nil

	// Reacquire original lock.
	if lk != &p.lock {
		p.lock.release(p.cpu)
		lk.acquire(p.cpu)
	}
}

// Wake up all processes sleeping on chan.
// Must be called without any p->lock.
func (sys *System) wakeup(c *CPU, chanv any) {
	for i := range sys.procs {
		p := &sys.procs[i]
		if p == c.proc {
			continue
		}
		p.lock.acquire(c)
		if p.State() == SLEEPING && p.wchan == chanv {
			p.setRunnable()
		}
		p.lock.release(c)
	}
}
