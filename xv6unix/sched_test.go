// Copyright 2023 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package xv6unix

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rsc.io/xv6/rv64"
)

// TestNoLostWakeup forces the race between deciding to sleep and
// being woken. The sleeper and the waker advance in lock step: the
// waker bumps the shared counter and calls wakeup the instant the
// sleeper finishes the previous round, so many rounds land in the
// window where the sleeper has checked the condition but has not yet
// been marked SLEEPING. If a wakeup can be lost, the sleeper hangs
// and the test times out.
func TestNoLostWakeup(t *testing.T) {
	sys := boot(t, nil)
	idleInit(t, sys)

	const rounds = 300

	var lk spinlock
	lk.init("testcond")
	n := 0
	var progress atomic.Int64
	donec := make(chan struct{}, 1)

	_, err := sys.Spawn("sleeper", func(p *Proc) int {
		for i := 1; i <= rounds; i++ {
			lk.acquire(p.cpu)
			for n < i {
				p.sleep(&n, &lk)
			}
			lk.release(p.cpu)
			progress.Store(int64(i))
		}
		donec <- struct{}{}
		return 0
	})
	require.NoError(t, err)

	go func() {
		c := &CPU{id: -1}
		deadline := time.Now().Add(testTimeout)
		for i := 1; i <= rounds; i++ {
			lk.acquire(c)
			n = i
			lk.release(c)
			sys.wakeup(c, &n)
			for progress.Load() < int64(i) {
				if time.Now().After(deadline) {
					return
				}
			}
		}
	}()

	recv(t, "sleeper to finish all rounds", donec)
}

// TestTickPreemption runs two always-runnable processes on one CPU.
// Neither ever blocks; the only way both can progress is the yield
// a process performs when the clock has ticked since its dispatch.
func TestTickPreemption(t *testing.T) {
	conf := DefaultConfig()
	conf.NCPU = 1
	conf.TickMS = 1
	conf.Echo = false
	sys := boot(t, conf)

	var c1, c2 atomic.Int64
	spin := func(ctr *atomic.Int64) Program {
		return func(p *Proc) int {
			for {
				p.Getpid() // traps, and yields there on a new tick
				ctr.Add(1)
			}
		}
	}
	_, err := sys.Spawn("spin1", spin(&c1)) // becomes init; never exits
	require.NoError(t, err)
	_, err = sys.Spawn("spin2", spin(&c2))
	require.NoError(t, err)

	waitFor(t, "both spinners to progress", func() bool {
		return c1.Load() > 100 && c2.Load() > 100
	})
}

func TestYield(t *testing.T) {
	sys := boot(t, nil)
	idleInit(t, sys)

	donec := make(chan struct{}, 1)
	_, err := sys.Spawn("yielder", func(p *Proc) int {
		for i := 0; i < 50; i++ {
			p.yield()
		}
		donec <- struct{}{}
		return 0
	})
	require.NoError(t, err)
	recv(t, "yielder", donec)
}

func TestSchedStats(t *testing.T) {
	sys := boot(t, nil)
	idleInit(t, sys)

	donec := make(chan struct{}, 1)
	_, err := sys.Spawn("worker", func(p *Proc) int {
		for i := 0; i < 20; i++ {
			p.Sleep(1)
		}
		donec <- struct{}{}
		return 0
	})
	require.NoError(t, err)
	recv(t, "worker", donec)

	sum, err := sys.SchedStats()
	require.NoError(t, err)
	assert.Greater(t, sum.N, 0)
	assert.GreaterOrEqual(t, sum.Median, 0.0)
	assert.GreaterOrEqual(t, sum.P99, sum.Median, "p99 below median")
	assert.GreaterOrEqual(t, sum.Max, sum.P99, "max below p99")
	assert.NotEmpty(t, sum.String())
}

func TestHalt(t *testing.T) {
	sys := boot(t, nil)
	idleInit(t, sys)

	require.False(t, sys.Halted())
	sys.Halt()
	sys.Halt() // idempotent
	require.True(t, sys.Halted())
	select {
	case <-sys.Done():
	case <-time.After(testTimeout):
		t.Fatal("Done not closed after Halt")
	}
}

func TestSchedulerContexts(t *testing.T) {
	sys := boot(t, nil)

	// Every scheduler CPU must carry a parked context before the
	// first handoff: sched resumes it while holding the process
	// lock, and a zero context would park both flows forever.
	require.Len(t, sys.cpus, sys.conf.NCPU)
	for _, c := range sys.cpus {
		assert.NotEqual(t, rv64.Context{}, c.ctx, "cpu %d has a zero context", c.id)
	}
}
