// Copyright 2023 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package xv6unix

import (
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// Test helpers. Tests drive the kernel from two sides: process
// bodies run inside the simulation and report through channels, and
// the test goroutine acts as an operator, raising signals and
// inspecting state the way the monitor does (on a transient CPU).

const testTimeout = 10 * time.Second

// boot starts a machine on the built-in disk with a fast clock and
// the console silenced, and halts it when the test ends.
func boot(t *testing.T, conf *Config) *System {
	t.Helper()
	if conf == nil {
		conf = DefaultConfig()
		conf.TickMS = 1
		conf.Echo = false
	}
	sys, err := NewSystem(FS, io.Discard, conf)
	require.NoError(t, err)
	t.Cleanup(sys.Halt)
	return sys
}

// idleInit spawns an init that sleeps forever. Use it when a test
// needs zombies to stay zombies.
func idleInit(t *testing.T, sys *System) *Proc {
	t.Helper()
	p, err := sys.Spawn("init", func(p *Proc) int {
		for {
			p.Sleep(1000)
		}
	})
	require.NoError(t, err)
	return p
}

// reaperInit spawns an init that reaps orphans forever, like the
// real one.
func reaperInit(t *testing.T, sys *System) *Proc {
	t.Helper()
	p, err := sys.Spawn("init", func(p *Proc) int {
		for {
			if _, _, err := p.Wait(); err != nil {
				p.Sleep(1)
			}
		}
	})
	require.NoError(t, err)
	return p
}

// waitFor polls cond until it holds or the test times out.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(testTimeout)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(time.Millisecond)
	}
}

// recv receives a value sent by a process body, or fails the test.
func recv[T any](t *testing.T, what string, ch <-chan T) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(testTimeout):
		t.Fatalf("timed out waiting for %s", what)
		panic("unreachable")
	}
}

// procByPid finds the live process with the given pid.
func procByPid(sys *System, pid int) *Proc {
	for i := range sys.procs {
		p := &sys.procs[i]
		if p.Pid() == pid && p.State() != UNUSED {
			return p
		}
	}
	return nil
}

// A sigstate is an operator's snapshot of one process's signal
// fields, taken under the process lock.
type sigstate struct {
	pending  uint32
	mask     uint32
	handling bool
	stopped  bool
	handlers [NSIG]Sigaction
}

func peekSig(p *Proc) sigstate {
	c := &CPU{id: -1}
	p.lock.acquire(c)
	st := sigstate{p.pending, p.mask, p.handling, p.stopped, p.handlers}
	p.lock.release(c)
	return st
}
