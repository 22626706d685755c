// Copyright 2023 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Ported from xv6-riscv kernel/spinlock.c.
//
// Copyright 2006-2019 Frans Kaashoek, Robert Morris, and Russ Cox.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package xv6unix

import (
	"sync"
	"sync/atomic"
)

// A spinlock is a mutual-exclusion lock whose hold is attributed to a
// CPU rather than to a goroutine. A process lock is acquired by the
// scheduler flow and released by the process flow it resumes (and the
// other way around at sleep), so ownership follows the CPU that the
// two flows share, not the goroutine that called acquire. sync.Mutex
// permits exactly this: one goroutine may lock and arrange for
// another to unlock. The context switch is the synchronization point
// between the two flows.
type spinlock struct {
	mu   sync.Mutex
	name string              // for diagnostics
	cpu  atomic.Pointer[CPU] // the cpu holding the lock
}

func (lk *spinlock) init(name string) {
	lk.name = name
}

// acquire the lock for cpu c.
// A real kernel spins; here contended CPUs are goroutines and
// parking them in mu stands in for spinning.
func (lk *spinlock) acquire(c *CPU) {
	c.pushOff() // disable interrupts to avoid deadlock.
	if lk.holding(c) {
		panic("acquire " + lk.name)
	}
	lk.mu.Lock()
	lk.cpu.Store(c)
}

// release the lock on behalf of cpu c.
func (lk *spinlock) release(c *CPU) {
	if !lk.holding(c) {
		panic("release " + lk.name)
	}
	lk.cpu.Store(nil)
	lk.mu.Unlock()
	c.popOff()
}

// holding reports whether cpu c holds the lock.
func (lk *spinlock) holding(c *CPU) bool {
	return lk.cpu.Load() == c
}

// pushOff and popOff are like intrOff and intrOn except that they are
// matched: it takes two popOff calls to undo two pushOff calls. Also,
// if interrupts are initially off, then pushOff, popOff leaves them off.

func (c *CPU) pushOff() {
	old := c.intr
	c.intr = false
	if c.noff == 0 {
		c.intena = old
	}
	c.noff++
}

func (c *CPU) popOff() {
	if c.intr {
		panic("pop_off - interruptible")
	}
	if c.noff < 1 {
		panic("pop_off")
	}
	c.noff--
	if c.noff == 0 && c.intena {
		c.intr = true
	}
}

func (c *CPU) intrOn()  { c.intr = true }
func (c *CPU) intrOff() { c.intr = false }
