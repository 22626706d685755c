// Copyright 2023 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Ported from xv6-riscv kernel/trap.c.
//
// Copyright 2006-2019 Frans Kaashoek, Robert Morris, and Russ Cox.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package xv6unix

import (
	"rsc.io/xv6/debug"
	"rsc.io/xv6/rv64"
)

// ecall enters the kernel for a system call: the number goes in a7,
// up to six arguments in a0-a5, and the result comes back in a0.
// This is the only way into the kernel from a process body, and
// trapret below is the only way out.
func (p *Proc) ecall(num int, args ...uint64) int64 {
	tf := p.tf
	tf.A7 = uint64(num)
	regs := [...]*uint64{&tf.A0, &tf.A1, &tf.A2, &tf.A3, &tf.A4, &tf.A5}
	if len(args) > len(regs) {
		panic("ecall args")
	}
	for i, a := range args {
		*regs[i] = a
	}

	p.depth++
	p.syscall()
	p.depth--

	p.trapret()
	if p.depth == 0 {
		p.userret()
	}
	return int64(tf.A0)
}

// trapret is the lip of the kernel on the way back to user code.
// Everything that must happen once per return runs here, in order:
// restart handling for interrupted system calls (none restart in
// this kernel), a yield if the clock has moved since this process
// was dispatched, the signal boundary, and the killed check that
// turns a kill into an exit.
func (p *Proc) trapret() {
	if p.isKilled() {
		p.exitp(-1)
	}

	// Give up the CPU if the clock has ticked since dispatch.
	if p.sys.ticks.Load() != p.cpu.tick0 {
		p.yield()
	}

	p.signalHandler()

	if p.isKilled() {
		p.exitp(-1)
	}
}

// userret simulates the return to user text. If signal delivery
// pointed the pc at installed handler text, the handler runs here;
// its return rolls into the sigret entry point, and back-to-back
// deliveries chain through the loop. Nested traps (a handler's own
// system calls) skip this and return straight to the handler.
func (p *Proc) userret() {
	if p.inuserret {
		return
	}
	p.inuserret = true
	for {
		va, ok := p.takeRedirect()
		if !ok {
			break
		}
		h := p.text[va]
		if h == nil {
			// The pc points at nothing executable.
			debug.DPrintf(debug.TRAP, "pid %d jump to bad pc %#x", p.Pid(), va)
			p.setKilled()
			break
		}
		h(p, int(p.tf.A0))
		if p.tf.Ra == rv64.SigretVA {
			p.ecall(SYS_sigret)
		}
	}
	p.inuserret = false
}
