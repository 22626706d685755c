// Copyright 2023 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package xv6unix

import (
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPidsIncrease(t *testing.T) {
	sys := boot(t, nil)
	idleInit(t, sys)

	last := 0
	for i := 0; i < 5; i++ {
		p, err := sys.Spawn("idler", func(p *Proc) int {
			for {
				p.Sleep(1000)
			}
		})
		require.NoError(t, err)
		require.Greater(t, p.Pid(), last, "pids must be strictly increasing")
		last = p.Pid()
	}
}

func TestWaitNoChildren(t *testing.T) {
	sys := boot(t, nil)
	idleInit(t, sys)

	errc := make(chan error, 1)
	_, err := sys.Spawn("childless", func(p *Proc) int {
		_, _, err := p.Wait()
		errc <- err
		return 0
	})
	require.NoError(t, err)
	require.Equal(t, ECHILD, recv(t, "wait result", errc))
}

func TestForkWaitStatus(t *testing.T) {
	sys := boot(t, nil)
	idleInit(t, sys)

	type result struct {
		forked, reaped, status int
	}
	resc := make(chan result, 1)
	errc := make(chan error, 2)
	_, err := sys.Spawn("parent", func(p *Proc) int {
		pid, err := p.Fork(func(p *Proc) int { return 42 })
		if err != nil {
			errc <- err
			return 1
		}
		wpid, status, err := p.Wait()
		if err != nil {
			errc <- err
			return 1
		}
		resc <- result{pid, wpid, status}
		for {
			p.Sleep(1000)
		}
	})
	require.NoError(t, err)
	select {
	case err := <-errc:
		t.Fatal(err)
	default:
	}
	res := recv(t, "fork/wait result", resc)
	assert.Equal(t, res.forked, res.reaped, "wait reaped the wrong child")
	assert.Equal(t, 42, res.status)
}

func TestForkInherits(t *testing.T) {
	sys := boot(t, nil)
	idleInit(t, sys)

	type result struct {
		mask, pending uint32
		ign, custom   Sigaction
	}
	resc := make(chan result, 1)
	errc := make(chan error, 1)
	_, err := sys.Spawn("parent", func(p *Proc) int {
		va := p.Text(func(p *Proc, signum int) {})
		p.Sigaction(SIGTERM, &Sigaction{Kind: SigIgnore}, nil)
		p.Sigaction(SIGUSR1, &Sigaction{Kind: SigCustom, PC: va, Mask: 1 << SIGHUP}, nil)
		p.Sigprocmask(1 << SIGUSR2)
		// A masked signal stays pending in the parent; the child
		// must not inherit it.
		if err := p.Kill(p.Getpid(), SIGUSR2); err != nil {
			errc <- err
			return 1
		}
		_, err := p.Fork(func(p *Proc) int {
			c := p.cpu
			p.lock.acquire(c)
			res := result{
				mask:    p.mask,
				pending: p.pending,
				ign:     p.handlers[SIGTERM],
				custom:  p.handlers[SIGUSR1],
			}
			p.lock.release(c)
			resc <- res
			return 0
		})
		if err != nil {
			errc <- err
			return 1
		}
		p.Wait()
		for {
			p.Sleep(1000)
		}
	})
	require.NoError(t, err)
	select {
	case err := <-errc:
		t.Fatal(err)
	default:
	}
	res := recv(t, "child snapshot", resc)
	assert.Equal(t, uint32(1<<SIGUSR2), res.mask, "child mask differs from parent's")
	assert.Zero(t, res.pending, "child inherited pending signals")
	assert.Equal(t, SigIgnore, res.ign.Kind)
	assert.Equal(t, SigCustom, res.custom.Kind)
	assert.Equal(t, uint32(1<<SIGHUP), res.custom.Mask, "handler descriptor not copied whole")
}

func TestTableExhaustion(t *testing.T) {
	sys := boot(t, nil)
	reaperInit(t, sys)

	var release atomic.Bool
	body := func(p *Proc) int {
		for !release.Load() {
			p.Sleep(1)
		}
		return 0
	}

	// Fill the table: init holds one slot, so NPROC-1 more fit.
	for i := 0; i < NPROC-1; i++ {
		_, err := sys.Spawn("filler", body)
		require.NoError(t, err, "spawn %d of %d", i+1, NPROC-1)
	}
	_, err := sys.Spawn("overflow", body)
	require.Equal(t, EAGAIN, err, "spawn into a full table must fail")

	// Draining the table frees the slots for reuse.
	release.Store(true)
	waitFor(t, "fillers to be reaped", func() bool { return sys.NumProcs() == 1 })
	_, err = sys.Spawn("again", body)
	require.NoError(t, err, "spawn after drain")
}

func TestZombieHeldUntilWait(t *testing.T) {
	sys := boot(t, nil)
	idleInit(t, sys)

	childc := make(chan int, 1)
	var reap atomic.Bool
	donec := make(chan int, 1)
	_, err := sys.Spawn("parent", func(p *Proc) int {
		pid, err := p.Fork(func(p *Proc) int { return 3 })
		if err != nil {
			return 1
		}
		childc <- pid
		for !reap.Load() {
			p.Sleep(1)
		}
		_, status, _ := p.Wait()
		donec <- status
		for {
			p.Sleep(1000)
		}
	})
	require.NoError(t, err)

	childPid := recv(t, "child pid", childc)
	var child *Proc
	waitFor(t, "child zombie", func() bool {
		child = procByPid(sys, childPid)
		return child != nil && child.State() == ZOMBIE
	})
	h := child.handle()

	// The slot keeps its pid and exit status until the parent reaps.
	assert.Equal(t, childPid, child.Pid())

	reap.Store(true)
	require.Equal(t, 3, recv(t, "reap status", donec))

	// The handle generation was retired with the slot.
	c := &CPU{id: -1}
	sys.waitLock.acquire(c)
	stale := sys.lookup(h)
	sys.waitLock.release(c)
	assert.Nil(t, stale, "stale handle resolved after reap")
}

func TestReparentToInit(t *testing.T) {
	sys := boot(t, nil)
	init := reaperInit(t, sys)

	childc := make(chan int, 1)
	_, err := sys.Spawn("parent", func(p *Proc) int {
		pid, err := p.Fork(func(p *Proc) int {
			for {
				p.Sleep(5)
			}
		})
		if err != nil {
			return 1
		}
		childc <- pid
		return 0 // orphan the child
	})
	require.NoError(t, err)

	childPid := recv(t, "grandchild pid", childc)
	var child *Proc
	waitFor(t, "grandchild adopted by init", func() bool {
		child = procByPid(sys, childPid)
		if child == nil {
			return false
		}
		c := &CPU{id: -1}
		sys.waitLock.acquire(c)
		pp := sys.lookup(child.parent)
		sys.waitLock.release(c)
		return pp == init
	})

	// Killing the orphan leaves it to init to reap.
	require.NoError(t, sys.Kill(childPid, SIGKILL))
	waitFor(t, "orphan reaped by init", func() bool { return sys.NumProcs() == 1 })
}

func TestKillWhileWaiting(t *testing.T) {
	sys := boot(t, nil)
	idleInit(t, sys)

	pidc := make(chan int, 1)
	p, err := sys.Spawn("parent", func(p *Proc) int {
		_, err := p.Fork(func(p *Proc) int {
			for {
				p.Sleep(5)
			}
		})
		if err != nil {
			return 1
		}
		pidc <- p.Getpid()
		p.Wait() // blocks; the child never exits
		return 0
	})
	require.NoError(t, err)

	pid := recv(t, "parent pid", pidc)
	require.NoError(t, sys.Kill(pid, SIGKILL))

	// The kill forces the parent out of its wait and through exit.
	waitFor(t, "parent zombie", func() bool { return p.State() == ZOMBIE })
	c := &CPU{id: -1}
	p.lock.acquire(c)
	xstate := p.xstate
	p.lock.release(c)
	assert.Equal(t, int32(-1), xstate, "killed process must exit with status -1")
}

func TestTextAndMemory(t *testing.T) {
	sys := boot(t, nil)
	idleInit(t, sys)

	errc := make(chan error, 1)
	okc := make(chan bool, 1)
	_, err := sys.Spawn("mem", func(p *Proc) int {
		va1 := p.Text(func(p *Proc, signum int) {})
		va2 := p.Text(func(p *Proc, signum int) {})
		if va1 == va2 {
			okc <- false
			return 1
		}
		old, err := p.Sbrk(8192)
		if err != nil {
			errc <- err
			return 1
		}
		if err := p.Poke(old, []byte("persist")); err != nil {
			errc <- err
			return 1
		}
		b := make([]byte, 7)
		if err := p.Peek(old, b); err != nil {
			errc <- err
			return 1
		}
		okc <- string(b) == "persist"
		return 0
	})
	require.NoError(t, err)
	select {
	case err := <-errc:
		t.Fatal(err)
	default:
	}
	require.True(t, recv(t, "memory check", okc))
}

func TestSyscallTable(t *testing.T) {
	// The table is filled in by an init function; a hole other than
	// the reserved exec slot means dispatch would report an unknown
	// syscall for a number the kernel defines.
	for num := SYS_fork; num <= SYS_sigret; num++ {
		if num == SYS_exec {
			assert.Nil(t, sysents[num].call, "exec is reserved")
			continue
		}
		assert.NotNil(t, sysents[num].call, "syscall %d has no implementation", num)
		assert.NotEmpty(t, sysents[num].name, "syscall %d has no name", num)
	}
}
