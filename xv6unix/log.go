// Copyright 2023 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Ported from xv6-riscv kernel/log.c.
//
// Copyright 2006-2019 Frans Kaashoek, Robert Morris, and Russ Cox.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package xv6unix

import "rsc.io/xv6/debug"

// The oplog serializes file-system operations into batches: an
// operation reserves a slot with begin and releases it with end, and
// the batch commits when the last outstanding operation ends. The
// in-memory tree has no disk to flush, but the protocol still
// provides the grouping and the backpressure, and every metadata
// mutation runs inside an operation.
type oplog struct {
	lock        spinlock
	outstanding int
	committing  bool
	commits     uint64 // completed batches, for the monitor
}

// begin is called at the start of each file-system operation.
// It sleeps until the log is not committing and there is room for
// this operation.
func (lg *oplog) begin(p *Proc) {
	lg.lock.acquire(p.cpu)
	for {
		if lg.committing {
			p.sleep(lg, &lg.lock)
		} else if lg.outstanding+1 > MAXOPS {
			// Over the limit; wait for the batch to drain.
			p.sleep(lg, &lg.lock)
		} else {
			lg.outstanding++
			lg.lock.release(p.cpu)
			break
		}
	}
}

// end is called at the close of each file-system operation.
// Commits the batch if this was the last outstanding operation.
func (lg *oplog) end(p *Proc) {
	docommit := false

	lg.lock.acquire(p.cpu)
	lg.outstanding--
	if lg.committing {
		panic("log.committing")
	}
	if lg.outstanding == 0 {
		docommit = true
		lg.committing = true
	} else {
		// begin() may be waiting for space; ending this operation
		// opened some up.
		p.sys.wakeup(p.cpu, lg)
	}
	lg.lock.release(p.cpu)

	if docommit {
		// Nothing to write back; the batch boundary is the commit.
		lg.lock.acquire(p.cpu)
		lg.commits++
		debug.DPrintf(debug.OP, "commit batch %d", lg.commits)
		lg.committing = false
		p.sys.wakeup(p.cpu, lg)
		lg.lock.release(p.cpu)
	}
}

// Commits reports how many operation batches have committed.
func (sys *System) Commits() uint64 {
	c := &CPU{id: -1}
	sys.log.lock.acquire(c)
	n := sys.log.commits
	sys.log.lock.release(c)
	return n
}
