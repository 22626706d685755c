// Copyright 2023 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Ported from xv6-riscv kernel/trap.c (clockintr).
//
// Copyright 2006-2019 Frans Kaashoek, Robert Morris, and Russ Cox.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package xv6unix

import (
	"time"

	"rsc.io/xv6/debug"
)

// clockstart runs the simulated timer: one tick per configured
// interval until the system halts.
func (sys *System) clockstart() {
	interval := sys.conf.tick()
	go func() {
		c := &CPU{id: -1}
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-t.C:
				sys.clockintr(c)
			case <-sys.haltc:
				return
			}
		}
	}()
}

// clockintr advances the tick count and wakes sleepers. Processes
// notice the new tick at their next trap and yield there; ticks only
// ever advance here.
func (sys *System) clockintr(c *CPU) {
	sys.tickslock.acquire(c)
	sys.ticks.Add(1)
	sys.wakeup(c, &sys.ticks)
	sys.tickslock.release(c)
	debug.DPrintf(debug.CLOCK, "tick %d", sys.ticks.Load())
}

// Ticks reports the number of clock ticks since boot.
func (sys *System) Ticks() uint64 {
	return sys.ticks.Load()
}
