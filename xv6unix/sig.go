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
	"bytes"

	"rsc.io/xv6/debug"
	"rsc.io/xv6/rv64"
)

// Sigkind says which variant of disposition a Sigaction carries.
type Sigkind int

const (
	SigDefault Sigkind = iota // the signal's default action
	SigIgnore                 // consume the signal without effect
	SigBuiltin                // the default action of another signal
	SigCustom                 // run installed handler text
)

// A Sigaction is the disposition of one signal. Builtin is consulted
// only for SigBuiltin and must be SIGKILL, SIGSTOP, or SIGCONT; PC
// and Mask only for SigCustom. Mask is the signal mask installed for
// the duration of the handler activation.
type Sigaction struct {
	Kind    Sigkind
	Builtin int
	PC      uint64
	Mask    uint32
}

// kill raises signal signum for the process with the given pid.
// For most signals the target is not scheduled or woken here; it acts
// on the signal at its own next return to user code. SIGKILL is the
// exception: no mask or handler can change its outcome, so the dead
// mark is set now and a sleeping target is forced awake to reach the
// boundary. Raising on a process that is already killed or a zombie
// fails: its fate is sealed.
func (sys *System) kill(c *CPU, pid, signum int) int64 {
	if signum < 0 || signum >= NSIG {
		return errv(EINVAL)
	}
	for i := range sys.procs {
		p := &sys.procs[i]
		p.lock.acquire(c)
		if int(p.pid.Load()) == pid && p.State() != UNUSED {
			if p.killed || p.State() == ZOMBIE {
				p.lock.release(c)
				return errv(ESRCH)
			}
			p.pending |= 1 << uint(signum)
			if signum == SIGKILL {
				p.sigkillLocked()
			}
			debug.DPrintf(debug.SIG, "kill pid %d sig %d", pid, signum)
			p.lock.release(c)
			return 0
		}
		p.lock.release(c)
	}
	return errv(ESRCH)
}

// signal raises signum on every live process except init. The
// console turns its interrupt character into SIGINT this way.
func (sys *System) signal(c *CPU, signum int) {
	if signum < 0 || signum >= NSIG {
		return
	}
	for i := range sys.procs {
		p := &sys.procs[i]
		if p == sys.initp {
			continue
		}
		p.lock.acquire(c)
		if st := p.State(); st != UNUSED && st != ZOMBIE && !p.killed {
			p.pending |= 1 << uint(signum)
		}
		p.lock.release(c)
	}
}

// sigReadyLocked reports whether signum is pending and not masked.
func (p *Proc) sigReadyLocked(signum int) bool {
	bit := uint32(1) << uint(signum)
	return p.pending&bit != 0 && p.mask&bit == 0
}

func (p *Proc) clearSignalLocked(signum int) {
	p.pending &^= 1 << uint(signum)
}

// sigmaskLocked installs a new signal mask, refusing to block SIGKILL
// or SIGSTOP, and returns the previous mask.
func (p *Proc) sigmaskLocked(mask uint32) uint32 {
	old := p.mask
	p.mask = mask &^ (1<<SIGKILL | 1<<SIGSTOP)
	return old
}

// sigkillLocked marks p killed. A sleeping process is made runnable
// so it reaches its exit promptly.
func (p *Proc) sigkillLocked() {
	p.killed = true
	if p.State() == SLEEPING {
		// Wake process from sleep().
		p.setRunnable()
	}
}

func (p *Proc) sigstopLocked() { p.stopped = true }
func (p *Proc) sigcontLocked() { p.stopped = false }

// searchContLocked scans for a reason to leave the stopped state:
// a pending unmasked SIGCONT, a pending SIGKILL (the mask cannot
// block kill), or any pending unmasked signal whose disposition is
// the continue builtin. Consumes the signal it acts on.
func (p *Proc) searchContLocked() bool {
	if p.sigReadyLocked(SIGCONT) {
		p.sigcontLocked()
		p.clearSignalLocked(SIGCONT)
		return true
	}
	if p.pending&(1<<SIGKILL) != 0 {
		p.sigkillLocked()
		p.clearSignalLocked(SIGKILL)
		return true
	}
	for i := 0; i < NSIG; i++ {
		if p.sigReadyLocked(i) && p.handlers[i].Kind == SigBuiltin && p.handlers[i].Builtin == SIGCONT {
			p.sigcontLocked()
			p.clearSignalLocked(i)
			return true
		}
	}
	return false
}

// signalHandler is the signal boundary, run once per return to user
// code. It consumes every pending unmasked signal in ascending
// order, applying each signal's disposition. It is a no-op while a
// custom handler activation is in progress; processing resumes after
// sigret. At most one custom activation is begun per boundary.
func (p *Proc) signalHandler() {
	c := p.cpu
	p.lock.acquire(c)
	if p.handling {
		p.lock.release(c)
		return
	}
	for signum := 0; signum < NSIG; signum++ {
		if p.killed {
			break
		}
		// A stopped process stays at the boundary, consuming only
		// continue or kill, until one of them arrives.
		for p.stopped {
			if p.searchContLocked() {
				break
			}
			p.lock.release(c)
			p.yield()
			c = p.cpu // may wake on another cpu
			p.lock.acquire(c)
		}
		if !p.sigReadyLocked(signum) {
			continue
		}
		if p.handling {
			break
		}
		act := p.handlers[signum]
		switch act.Kind {
		case SigIgnore:
			// Consumed without effect.
		case SigDefault:
			switch signum {
			case SIGSTOP:
				p.sigstopLocked()
			case SIGCONT:
				p.sigcontLocked()
			default:
				p.sigkillLocked()
			}
		case SigBuiltin:
			switch act.Builtin {
			case SIGSTOP:
				p.sigstopLocked()
			case SIGCONT:
				p.sigcontLocked()
			default:
				p.sigkillLocked()
			}
		case SigCustom:
			p.deliverLocked(signum, act)
		}
		p.clearSignalLocked(signum)
	}
	p.lock.release(c)
}

// deliverLocked begins a custom handler activation: the current user
// trapframe is backed up to the user stack, the handler's mask is
// installed, and the registers are rewritten so that the return to
// user code enters the handler with the signal number in a0, the
// stack below the backup, and a return address at the sigret entry
// point.
func (p *Proc) deliverLocked(signum int, act Sigaction) {
	p.maskBackup = p.sigmaskLocked(act.Mask)
	p.handling = true

	sp := p.tf.Sp - rv64.TrapframeSize
	b, err := p.tf.Bytes()
	if err == nil {
		err = p.as.Write(sp, b)
	}
	if err != nil {
		// No stack to deliver on; the process cannot take the
		// signal and cannot be left with it pending forever.
		p.mask = p.maskBackup
		p.maskBackup = 0
		p.handling = false
		debug.DPrintf(debug.SIG, "deliver sig %d to pid %d failed: %v", signum, p.Pid(), err)
		p.sigkillLocked()
		return
	}
	p.tfBackup = sp
	p.tf.Sp = sp
	p.tf.Epc = act.PC
	p.tf.Ra = rv64.SigretVA
	p.tf.A0 = uint64(signum)
	p.redirected = true
	debug.DPrintf(debug.SIG, "deliver sig %d to pid %d handler %#x", signum, p.Pid(), act.PC)
}

// takeRedirect consumes a pending handler entry, if any, returning
// the text address to enter.
func (p *Proc) takeRedirect() (uint64, bool) {
	c := p.cpu
	p.lock.acquire(c)
	ok := p.redirected
	p.redirected = false
	va := p.tf.Epc
	p.lock.release(c)
	return va, ok
}

// sigaction installs a new disposition for signum and, when old is
// non-nil, reports the previous one. Descriptors are copied whole in
// both directions. Every reason to refuse is checked before the
// table is touched, so a failed call leaves no partial update.
// SIGKILL and SIGSTOP cannot be redisposed.
func (p *Proc) sigaction(signum int, act, old *Sigaction) int64 {
	if signum < 0 || signum >= NSIG || signum == SIGKILL || signum == SIGSTOP {
		return errv(EINVAL)
	}
	if act == nil {
		return errv(EINVAL)
	}
	switch act.Kind {
	case SigDefault, SigIgnore:
		// ok
	case SigBuiltin:
		if act.Builtin != SIGKILL && act.Builtin != SIGSTOP && act.Builtin != SIGCONT {
			return errv(EINVAL)
		}
	case SigCustom:
		if p.text[act.PC] == nil {
			return errv(EINVAL)
		}
	default:
		return errv(EINVAL)
	}
	c := p.cpu
	p.lock.acquire(c)
	if old != nil {
		*old = p.handlers[signum]
	}
	p.handlers[signum] = *act
	p.lock.release(c)
	debug.DPrintf(debug.SIG, "sigaction pid %d sig %d kind %d", p.Pid(), signum, act.Kind)
	return 0
}

// sigret ends a custom handler activation: the saved trapframe is
// copied back from the user stack and the pre-handler signal mask is
// restored. The syscall's return value is the restored a0, so the
// interrupted computation resumes undisturbed.
func (p *Proc) sigret() int64 {
	c := p.cpu
	p.lock.acquire(c)
	// handling, not tfBackup, is the activation flag: a backup saved
	// at user address 0 is legitimate.
	if !p.handling {
		p.lock.release(c)
		return errv(EINVAL)
	}
	b := make([]byte, rv64.TrapframeSize)
	if err := p.as.Read(p.tfBackup, b); err != nil {
		p.sigkillLocked()
		p.lock.release(c)
		return errv(EFAULT)
	}
	if err := p.tf.DecodeFrom(bytes.NewReader(b)); err != nil {
		p.sigkillLocked()
		p.lock.release(c)
		return errv(EFAULT)
	}
	p.mask = p.maskBackup
	p.maskBackup = 0
	p.tfBackup = 0
	p.handling = false
	ret := int64(p.tf.A0)
	p.lock.release(c)
	debug.DPrintf(debug.SIG, "sigret pid %d", p.Pid())
	return ret
}
