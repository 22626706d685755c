// Copyright 2023 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package xv6unix

import (
	"io"
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"

	"rsc.io/xv6/debug"
	"rsc.io/xv6/rv64"
)

// A System is one simulated machine: a process table, some CPUs, a
// clock, a console, and a file system booted from a disk image.
// Create one with NewSystem, start a workload with Spawn, and stop
// dispatching with Halt.
type System struct {
	conf Config

	procs [NPROC]Proc
	cpus  []*CPU
	initp *Proc // the init process; adopts orphans, may not exit

	pidLock spinlock
	nextPid int32

	waitLock spinlock // serializes parent/child bookkeeping

	tickslock spinlock
	ticks     atomic.Uint64

	kickc    chan struct{} // nudges idle schedulers
	halted   atomic.Bool
	haltc    chan struct{}
	haltOnce sync.Once

	fsOnce sync.Once
	fs     *fsys
	log    *oplog
	ftab   *ftable
	devs   [NDEV]devsw
	cons   *console

	stats *schedstats
}

// NewSystem boots a simulated machine from disk, a file-system image
// in the txtar format written by xv6disk. Console output goes to
// out. A nil conf means DefaultConfig.
func NewSystem(disk []byte, out io.Writer, conf *Config) (*System, error) {
	if conf == nil {
		conf = DefaultConfig()
	}
	if err := conf.check(); err != nil {
		return nil, err
	}

	sys := &System{conf: *conf}
	sys.kickc = make(chan struct{}, NPROC+NCPU)
	sys.haltc = make(chan struct{})
	sys.stats = new(schedstats)
	sys.procinit()
	sys.tickslock.init("time")
	sys.log = new(oplog)
	sys.log.lock.init("log")
	sys.ftab = new(ftable)
	sys.ftab.lock.init("ftable")
	sys.cons = &console{out: out, echo: conf.Echo}
	sys.cons.lock.init("cons")
	sys.devs[CONSOLE] = devsw{sys.consoleread, sys.consolewrite}
	sys.devs[NULLDEV] = devsw{sys.nullread, sys.nullwrite}

	if err := sys.mkfs(disk); err != nil {
		return nil, errors.Wrap(err, "boot")
	}

	for i := 0; i < conf.NCPU; i++ {
		c := &CPU{id: i, ctx: rv64.NewContext()}
		sys.cpus = append(sys.cpus, c)
		go sys.scheduler(c)
	}
	sys.clockstart()
	debug.DPrintf(debug.PROC, "booted: %d cpus, tick %v", conf.NCPU, conf.tick())
	return sys, nil
}

// kick nudges one idle scheduler. The channel is buffered larger
// than the process table, so a kick is never lost while anything is
// runnable; when the buffer is full there are more pending kicks
// than processes and dropping one is harmless.
func (sys *System) kick() {
	select {
	case sys.kickc <- struct{}{}:
	default:
	}
}

// Halt stops dispatching: schedulers exit after finishing their
// current process's turn. Goroutines parked inside sleeping
// processes are abandoned, so Halt is for the end of a run, not a
// pause. Safe to call more than once.
func (sys *System) Halt() {
	sys.haltOnce.Do(func() {
		sys.halted.Store(true)
		close(sys.haltc)
		for range sys.cpus {
			sys.kick()
		}
		debug.DPrintf(debug.PROC, "halt")
	})
}

// Done is closed when the system halts.
func (sys *System) Done() <-chan struct{} { return sys.haltc }

// Halted reports whether Halt has been called.
func (sys *System) Halted() bool { return sys.halted.Load() }

// Kill raises a signal from outside the simulation (the monitor's
// kill command). The error reports an invalid signal number or a
// pid that names no live process.
func (sys *System) Kill(pid, signum int) error {
	c := &CPU{id: -1}
	if r := sys.kill(c, pid, signum); r < 0 {
		return Errno(-r)
	}
	return nil
}

// Input feeds operator keystrokes to the console.
func (sys *System) Input(b []byte) {
	c := &CPU{id: -1}
	for _, ch := range b {
		sys.consoleInput(c, ch)
	}
}
